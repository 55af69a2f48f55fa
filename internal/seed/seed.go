package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	catalogdomain "github.com/smallbiznis/herbcart/internal/catalog/domain"
	categorydomain "github.com/smallbiznis/herbcart/internal/category/domain"
	"gorm.io/gorm"
)

// EnsureDemoCatalog seeds a small browsable catalog for development
// environments. Idempotent: it backs off when the root category already
// exists.
func EnsureDemoCatalog(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing categorydomain.Category
		err := tx.First(&existing, "slug = ?", "herbal-teas").Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		now := time.Now().UTC()

		teas := demoCategory(node, now, "Herbal Teas", "herbal-teas", nil, "", 0)
		skincare := demoCategory(node, now, "Skincare", "skincare", nil, "", 1)
		if err := tx.Create(&teas).Error; err != nil {
			return err
		}
		if err := tx.Create(&skincare).Error; err != nil {
			return err
		}

		blends := demoCategory(node, now, "Sleep Blends", "sleep-blends", &teas.ID, teas.FullPath, 0)
		balms := demoCategory(node, now, "Balms", "balms", &skincare.ID, skincare.FullPath, 0)
		if err := tx.Create(&blends).Error; err != nil {
			return err
		}
		if err := tx.Create(&balms).Error; err != nil {
			return err
		}

		chamomile := catalogdomain.Product{
			ID:                node.Generate(),
			Name:              "Chamomile Night Blend",
			Slug:              "chamomile-night-blend",
			SKU:               ptr("TEA-CHAM-001"),
			ShortDescription:  ptr("Loose-leaf chamomile with lavender and lemon balm."),
			CategoryID:        &blends.ID,
			BasePrice:         decimal.RequireFromString("12.50"),
			Weight:            decimalPtr("0.10"),
			TrackInventory:    true,
			InventoryQuantity: 120,
			LowStockThreshold: 10,
			RequiresShipping:  true,
			IsActive:          true,
			IsFeatured:        true,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := tx.Create(&chamomile).Error; err != nil {
			return err
		}
		if err := tx.Create(&catalogdomain.ProductImage{
			ID:        node.Generate(),
			ProductID: chamomile.ID,
			ImageURL:  "https://cdn.herbcart.dev/demo/chamomile.jpg",
			IsPrimary: true,
			CreatedAt: now,
		}).Error; err != nil {
			return err
		}

		balm := catalogdomain.Product{
			ID:               node.Generate(),
			Name:             "Calendula Healing Balm",
			Slug:             "calendula-healing-balm",
			SKU:              ptr("BALM-CAL-001"),
			ShortDescription: ptr("Calendula-infused balm for dry skin."),
			CategoryID:       &balms.ID,
			BasePrice:        decimal.RequireFromString("18.00"),
			Weight:           decimalPtr("0.05"),
			TrackInventory:   false,
			RequiresShipping: true,
			IsActive:         true,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := tx.Create(&balm).Error; err != nil {
			return err
		}

		for _, variant := range []catalogdomain.ProductVariant{
			{
				ID:                node.Generate(),
				ProductID:         balm.ID,
				Title:             "30ml tin",
				SKU:               ptr("BALM-CAL-001-30"),
				Price:             decimal.RequireFromString("18.00"),
				InventoryQuantity: 40,
				Size:              ptr("30ml"),
				IsActive:          true,
				SortOrder:         0,
				CreatedAt:         now,
				UpdatedAt:         now,
			},
			{
				ID:                node.Generate(),
				ProductID:         balm.ID,
				Title:             "60ml tin",
				SKU:               ptr("BALM-CAL-001-60"),
				Price:             decimal.RequireFromString("29.00"),
				InventoryQuantity: 25,
				Size:              ptr("60ml"),
				IsActive:          true,
				SortOrder:         1,
				CreatedAt:         now,
				UpdatedAt:         now,
			},
		} {
			if err := tx.Create(&variant).Error; err != nil {
				return err
			}
		}

		return nil
	})
}

func demoCategory(node *snowflake.Node, now time.Time, name, slug string, parentID *snowflake.ID, parentPath string, sortOrder int) categorydomain.Category {
	level, fullPath := categorydomain.ComputePath(parentPath, slug)
	return categorydomain.Category{
		ID:        node.Generate(),
		Name:      name,
		Slug:      slug,
		ParentID:  parentID,
		IsActive:  true,
		SortOrder: sortOrder,
		Level:     level,
		FullPath:  fullPath,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func ptr(s string) *string { return &s }

func decimalPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}
