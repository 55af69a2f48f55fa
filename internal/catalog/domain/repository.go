package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	CreateProduct(ctx context.Context, db *gorm.DB, product *Product) error
	FindProductByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Product, error)
	FindProductBySlug(ctx context.Context, db *gorm.DB, slug string) (*Product, error)
	ListProducts(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Product, int64, error)
	UpdateProduct(ctx context.Context, db *gorm.DB, product *Product) error

	CreateVariant(ctx context.Context, db *gorm.DB, variant *ProductVariant) error
	FindVariantByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*ProductVariant, error)
	ListVariants(ctx context.Context, db *gorm.DB, productID snowflake.ID) ([]ProductVariant, error)
	UpdateVariant(ctx context.Context, db *gorm.DB, variant *ProductVariant) error
	DeleteVariant(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	CountActiveVariants(ctx context.Context, db *gorm.DB, productID snowflake.ID, exclude snowflake.ID) (int64, error)

	CreateImage(ctx context.Context, db *gorm.DB, image *ProductImage) error
	PrimaryImageURL(ctx context.Context, db *gorm.DB, productID snowflake.ID) (*string, error)
}

type ListFilter struct {
	CategoryID  *snowflake.ID
	CategoryIDs []snowflake.ID
	Active      *bool
	Featured    *bool
	Search      string
	Page        int
	Limit       int
}
