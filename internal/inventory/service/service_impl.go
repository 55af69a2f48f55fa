package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/herbcart/internal/catalog/domain"
	"github.com/smallbiznis/herbcart/internal/inventory/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger
}

func New(p Params) domain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("inventory.service"),
	}
}

// CheckAvailability applies the tracking rules: a variant's own count always
// gates the variant, regardless of the parent's track_inventory flag; a bare
// product with track_inventory off sells in any quantity.
func (s *Service) CheckAvailability(ctx context.Context, db *gorm.DB, productID snowflake.ID, variantID *snowflake.ID, quantity int) error {
	if db == nil {
		db = s.db
	}
	if quantity < 1 {
		return domain.ErrInvalidQuantity
	}

	if variantID != nil {
		var variant catalogdomain.ProductVariant
		err := db.WithContext(ctx).
			Select("id", "product_id", "inventory_quantity").
			First(&variant, "id = ? AND product_id = ?", *variantID, productID).Error
		if err == gorm.ErrRecordNotFound {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}
		if variant.InventoryQuantity < quantity {
			return domain.ErrInsufficientStock
		}
		return nil
	}

	var product catalogdomain.Product
	err := db.WithContext(ctx).
		Select("id", "track_inventory", "inventory_quantity").
		First(&product, "id = ?", productID).Error
	if err == gorm.ErrRecordNotFound {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}
	if product.TrackInventory && product.InventoryQuantity < quantity {
		return domain.ErrInsufficientStock
	}
	return nil
}

// Reserve decrements stock with a conditional update so two concurrent
// checkouts can never both pass against the same last unit: the row only
// changes when the remaining quantity covers the ask, and a miss on a
// tracked row fails the whole enclosing transaction.
func (s *Service) Reserve(ctx context.Context, tx *gorm.DB, adjustments []domain.Adjustment) error {
	for _, adj := range adjustments {
		if adj.Quantity < 1 {
			return domain.ErrInvalidQuantity
		}

		if adj.VariantID != nil {
			res := tx.WithContext(ctx).Exec(
				`UPDATE product_variants
				 SET inventory_quantity = inventory_quantity - ?, updated_at = CURRENT_TIMESTAMP
				 WHERE id = ? AND inventory_quantity >= ?`,
				adj.Quantity, *adj.VariantID, adj.Quantity,
			)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return domain.ErrInsufficientStock
			}
			continue
		}

		res := tx.WithContext(ctx).Exec(
			`UPDATE products
			 SET inventory_quantity = inventory_quantity - ?, updated_at = CURRENT_TIMESTAMP
			 WHERE id = ? AND track_inventory = ? AND inventory_quantity >= ?`,
			adj.Quantity, adj.ProductID, true, adj.Quantity,
		)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Untracked products reserve nothing; only a tracked row
			// with insufficient stock is a failure.
			tracked, err := s.isTracked(ctx, tx, adj.ProductID)
			if err != nil {
				return err
			}
			if tracked {
				return domain.ErrInsufficientStock
			}
		}
	}
	return nil
}

// Release is the exact inverse of Reserve: an unconditional increment, so a
// reserve-then-release round trip restores the original count.
func (s *Service) Release(ctx context.Context, tx *gorm.DB, adjustments []domain.Adjustment) error {
	for _, adj := range adjustments {
		if adj.Quantity < 1 {
			return domain.ErrInvalidQuantity
		}

		if adj.VariantID != nil {
			if err := tx.WithContext(ctx).Exec(
				`UPDATE product_variants
				 SET inventory_quantity = inventory_quantity + ?, updated_at = CURRENT_TIMESTAMP
				 WHERE id = ?`,
				adj.Quantity, *adj.VariantID,
			).Error; err != nil {
				return err
			}
			continue
		}

		if err := tx.WithContext(ctx).Exec(
			`UPDATE products
			 SET inventory_quantity = inventory_quantity + ?, updated_at = CURRENT_TIMESTAMP
			 WHERE id = ? AND track_inventory = ?`,
			adj.Quantity, adj.ProductID, true,
		).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) isTracked(ctx context.Context, tx *gorm.DB, productID snowflake.ID) (bool, error) {
	var product catalogdomain.Product
	err := tx.WithContext(ctx).
		Select("id", "track_inventory").
		First(&product, "id = ?", productID).Error
	if err == gorm.ErrRecordNotFound {
		return false, domain.ErrNotFound
	}
	if err != nil {
		return false, err
	}
	return product.TrackInventory, nil
}
