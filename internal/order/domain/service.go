package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	cartdomain "github.com/smallbiznis/herbcart/internal/cart/domain"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Order, error)

	// CreateFromCart snapshots the identity's cart at live catalog
	// prices, reserves inventory and empties the cart, all in one
	// transaction. Any unsellable line fails the whole operation.
	CreateFromCart(ctx context.Context, identity cartdomain.Identity, req CheckoutRequest) (*Order, error)

	// Get scopes to the owner when userID is set; admins pass nil.
	Get(ctx context.Context, userID *snowflake.ID, id snowflake.ID) (*Order, error)
	GetByNumber(ctx context.Context, userID *snowflake.ID, number string) (*Order, error)
	List(ctx context.Context, userID snowflake.ID, page, limit int) ([]Order, int64, error)
	Cancel(ctx context.Context, userID *snowflake.ID, id snowflake.ID, reason *string) (*Order, error)
	History(ctx context.Context, userID *snowflake.ID, id snowflake.ID) ([]OrderStatusHistory, error)

	AdminList(ctx context.Context, filter ListFilter) ([]Order, int64, error)
	AdminUpdateStatus(ctx context.Context, id snowflake.ID, req UpdateStatusRequest) (*Order, error)
}

type Line struct {
	ProductID snowflake.ID  `json:"product_id"`
	VariantID *snowflake.ID `json:"variant_id"`
	Quantity  int           `json:"quantity"`
}

type CreateRequest struct {
	UserID          *snowflake.ID `json:"user_id"`
	CustomerEmail   string        `json:"customer_email"`
	CustomerPhone   *string       `json:"customer_phone"`
	Lines           []Line        `json:"lines"`
	ShippingAddress *Address      `json:"shipping_address"`
	BillingAddress  *Address      `json:"billing_address"`
	Notes           *string       `json:"notes"`
	Source          string        `json:"source"`
}

type CheckoutRequest struct {
	UserID          *snowflake.ID `json:"user_id"`
	CustomerEmail   string        `json:"customer_email"`
	CustomerPhone   *string       `json:"customer_phone"`
	ShippingAddress *Address      `json:"shipping_address"`
	BillingAddress  *Address      `json:"billing_address"`
	Notes           *string       `json:"notes"`
}

type UpdateStatusRequest struct {
	Status          OrderStatus   `json:"status"`
	ChangedBy       *snowflake.ID `json:"changed_by"`
	Notes           *string       `json:"notes"`
	TrackingNumber  *string       `json:"tracking_number"`
	ShippingCarrier *string       `json:"shipping_carrier"`
}

var (
	ErrNotFound               = errors.New("not_found")
	ErrNoItems                = errors.New("no_items")
	ErrEmptyCart              = errors.New("empty_cart")
	ErrInvalidEmail           = errors.New("invalid_email")
	ErrInvalidStateTransition = errors.New("invalid_state_transition")
	ErrProductUnavailable     = errors.New("product_unavailable")
	ErrVariantUnavailable     = errors.New("variant_unavailable")
	ErrVariantMismatch        = errors.New("variant_mismatch")
	ErrDuplicateOrderNumber   = errors.New("duplicate_order_number")
)
