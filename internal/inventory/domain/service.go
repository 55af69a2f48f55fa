package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Adjustment is one stock movement against a product or, when VariantID is
// set, against that variant's own count.
type Adjustment struct {
	ProductID snowflake.ID
	VariantID *snowflake.ID
	Quantity  int
}

// Service is the inventory ledger. CheckAvailability is an advisory read;
// Reserve and Release run inside the caller's transaction and are invoked
// exactly once per order creation and once per cancellation, guarded by the
// order status transition.
type Service interface {
	CheckAvailability(ctx context.Context, db *gorm.DB, productID snowflake.ID, variantID *snowflake.ID, quantity int) error
	Reserve(ctx context.Context, tx *gorm.DB, adjustments []Adjustment) error
	Release(ctx context.Context, tx *gorm.DB, adjustments []Adjustment) error
}

var (
	ErrNotFound          = errors.New("not_found")
	ErrInvalidQuantity   = errors.New("invalid_quantity")
	ErrInsufficientStock = errors.New("insufficient_stock")
)
