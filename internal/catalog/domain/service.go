package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Service interface {
	CreateProduct(ctx context.Context, req CreateProductRequest) (*Product, error)
	GetProduct(ctx context.Context, id snowflake.ID) (*Product, error)
	GetProductBySlug(ctx context.Context, slug string) (*Product, error)
	ListProducts(ctx context.Context, filter ListFilter) ([]Product, int64, error)
	UpdateProduct(ctx context.Context, id snowflake.ID, req UpdateProductRequest) (*Product, error)
	ArchiveProduct(ctx context.Context, id snowflake.ID) error

	AddVariant(ctx context.Context, productID snowflake.ID, req VariantRequest) (*ProductVariant, error)
	UpdateVariant(ctx context.Context, id snowflake.ID, req VariantRequest) (*ProductVariant, error)
	DeleteVariant(ctx context.Context, id snowflake.ID) error
	ListVariants(ctx context.Context, productID snowflake.ID) ([]ProductVariant, error)
}

type CreateProductRequest struct {
	Name                string           `json:"name"`
	SKU                 *string          `json:"sku"`
	ShortDescription    *string          `json:"short_description"`
	DetailedDescription *string          `json:"detailed_description"`
	CategoryID          *snowflake.ID    `json:"category_id"`
	Brand               *string          `json:"brand"`
	BasePrice           decimal.Decimal  `json:"base_price"`
	ComparePrice        *decimal.Decimal `json:"compare_price"`
	Weight              *decimal.Decimal `json:"weight"`
	TrackInventory      *bool            `json:"track_inventory"`
	InventoryQuantity   int              `json:"inventory_quantity"`
	LowStockThreshold   int              `json:"low_stock_threshold"`
	IsActive            *bool            `json:"is_active"`
	IsFeatured          bool             `json:"is_featured"`
	Images              []ImageRequest   `json:"images"`
	Variants            []VariantRequest `json:"variants"`
}

type UpdateProductRequest struct {
	Name                *string          `json:"name"`
	ShortDescription    *string          `json:"short_description"`
	DetailedDescription *string          `json:"detailed_description"`
	CategoryID          *snowflake.ID    `json:"category_id"`
	Brand               *string          `json:"brand"`
	BasePrice           *decimal.Decimal `json:"base_price"`
	ComparePrice        *decimal.Decimal `json:"compare_price"`
	Weight              *decimal.Decimal `json:"weight"`
	TrackInventory      *bool            `json:"track_inventory"`
	InventoryQuantity   *int             `json:"inventory_quantity"`
	LowStockThreshold   *int             `json:"low_stock_threshold"`
	IsActive            *bool            `json:"is_active"`
	IsFeatured          *bool            `json:"is_featured"`
}

type VariantRequest struct {
	Title             *string          `json:"title"`
	SKU               *string          `json:"sku"`
	Price             *decimal.Decimal `json:"price"`
	ComparePrice      *decimal.Decimal `json:"compare_price"`
	Weight            *decimal.Decimal `json:"weight"`
	InventoryQuantity *int             `json:"inventory_quantity"`
	LowStockThreshold *int             `json:"low_stock_threshold"`
	Size              *string          `json:"size"`
	Color             *string          `json:"color"`
	Scent             *string          `json:"scent"`
	IsActive          *bool            `json:"is_active"`
	SortOrder         *int             `json:"sort_order"`
}

type ImageRequest struct {
	ImageURL  string  `json:"image_url"`
	AltText   *string `json:"alt_text"`
	IsPrimary bool    `json:"is_primary"`
	SortOrder int     `json:"sort_order"`
}

var (
	ErrNotFound          = errors.New("not_found")
	ErrInvalidName       = errors.New("invalid_name")
	ErrInvalidPrice      = errors.New("invalid_price")
	ErrDuplicateSlug     = errors.New("duplicate_slug")
	ErrDuplicateSKU      = errors.New("duplicate_sku")
	ErrLastActiveVariant = errors.New("last_active_variant")
	ErrVariantMismatch   = errors.New("variant_mismatch")
)
