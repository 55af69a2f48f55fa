package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Product is the sellable catalog entity. Stock fields live here when the
// product has no variants; once referenced by an order it is only ever
// archived, never deleted.
type Product struct {
	ID                  snowflake.ID     `json:"id" gorm:"primaryKey"`
	Name                string           `json:"name" gorm:"type:text;not null"`
	Slug                string           `json:"slug" gorm:"type:text;not null;uniqueIndex:ux_products_slug"`
	SKU                 *string          `json:"sku,omitempty" gorm:"column:sku;type:text;uniqueIndex:ux_products_sku"`
	ShortDescription    *string          `json:"short_description,omitempty" gorm:"type:text"`
	DetailedDescription *string          `json:"detailed_description,omitempty" gorm:"type:text"`
	CategoryID          *snowflake.ID    `json:"category_id,omitempty" gorm:"index"`
	Brand               *string          `json:"brand,omitempty" gorm:"type:text"`
	BasePrice           decimal.Decimal  `json:"base_price" gorm:"type:decimal(10,2);not null"`
	ComparePrice        *decimal.Decimal `json:"compare_price,omitempty" gorm:"type:decimal(10,2)"`
	Weight              *decimal.Decimal `json:"weight,omitempty" gorm:"type:decimal(10,2)"`
	TrackInventory      bool             `json:"track_inventory" gorm:"not null;default:true"`
	InventoryQuantity   int              `json:"inventory_quantity" gorm:"not null;default:0"`
	LowStockThreshold   int              `json:"low_stock_threshold" gorm:"not null;default:0"`
	ContinueSelling     bool             `json:"continue_selling" gorm:"not null;default:false"`
	RequiresShipping    bool             `json:"requires_shipping" gorm:"not null;default:true"`
	IsActive            bool             `json:"is_active" gorm:"not null;default:true"`
	IsFeatured          bool             `json:"is_featured" gorm:"not null;default:false"`
	CreatedAt           time.Time        `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt           time.Time        `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Product) TableName() string { return "products" }

// LowStock reports whether the product-level count has fallen to the alert
// threshold. Only meaningful when inventory is tracked.
func (p Product) LowStock() bool {
	return p.TrackInventory && p.InventoryQuantity <= p.LowStockThreshold
}

// ProductVariant is a sellable sub-configuration with its own price and its
// own stock count, independent of the parent product's.
type ProductVariant struct {
	ID                snowflake.ID     `json:"id" gorm:"primaryKey"`
	ProductID         snowflake.ID     `json:"product_id" gorm:"not null;index"`
	Title             string           `json:"title" gorm:"type:text;not null"`
	SKU               *string          `json:"sku,omitempty" gorm:"column:sku;type:text;uniqueIndex:ux_product_variants_sku"`
	Price             decimal.Decimal  `json:"price" gorm:"type:decimal(10,2);not null"`
	ComparePrice      *decimal.Decimal `json:"compare_price,omitempty" gorm:"type:decimal(10,2)"`
	Weight            *decimal.Decimal `json:"weight,omitempty" gorm:"type:decimal(10,2)"`
	InventoryQuantity int              `json:"inventory_quantity" gorm:"not null;default:0"`
	LowStockThreshold int              `json:"low_stock_threshold" gorm:"not null;default:0"`
	Size              *string          `json:"size,omitempty" gorm:"type:text"`
	Color             *string          `json:"color,omitempty" gorm:"type:text"`
	Scent             *string          `json:"scent,omitempty" gorm:"type:text"`
	IsActive          bool             `json:"is_active" gorm:"not null;default:true"`
	SortOrder         int              `json:"sort_order" gorm:"not null;default:0"`
	CreatedAt         time.Time        `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt         time.Time        `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (ProductVariant) TableName() string { return "product_variants" }

type ProductImage struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	ProductID snowflake.ID `json:"product_id" gorm:"not null;index"`
	ImageURL  string       `json:"image_url" gorm:"type:text;not null"`
	AltText   *string      `json:"alt_text,omitempty" gorm:"type:text"`
	IsPrimary bool         `json:"is_primary" gorm:"not null;default:false"`
	SortOrder int          `json:"sort_order" gorm:"not null;default:0"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (ProductImage) TableName() string { return "product_images" }
