package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Service interface {
	// EnsureSession resolves an anonymous session token, minting a fresh
	// session when the token is blank, unknown, or expired. The returned
	// bool reports whether a new session was created.
	EnsureSession(ctx context.Context, token string, userAgent, ipAddress *string) (*ShoppingSession, bool, error)

	GetCart(ctx context.Context, identity Identity) (*Summary, error)
	AddItem(ctx context.Context, identity Identity, req AddItemRequest) (*ItemView, error)
	UpdateItem(ctx context.Context, identity Identity, itemID snowflake.ID, req UpdateItemRequest) (*ItemView, error)
	RemoveItem(ctx context.Context, identity Identity, itemID snowflake.ID) error
	Clear(ctx context.Context, identity Identity) error

	// Merge folds an anonymous session cart into the user's cart. Lines
	// for the same (product, variant) combine quantities; the rest move
	// over unchanged. The session is consumed.
	Merge(ctx context.Context, userID snowflake.ID, sessionToken string) error

	Validate(ctx context.Context, identity Identity) (*ValidationResult, error)
	EstimateShipping(ctx context.Context, identity Identity) (decimal.Decimal, error)
}

type AddItemRequest struct {
	ProductID snowflake.ID  `json:"product_id"`
	VariantID *snowflake.ID `json:"variant_id"`
	Quantity  int           `json:"quantity"`
	Notes     *string       `json:"notes"`
}

type UpdateItemRequest struct {
	Quantity int     `json:"quantity"`
	Notes    *string `json:"notes"`
}

// ItemView is a cart line joined with the catalog fields the storefront
// renders alongside it.
type ItemView struct {
	CartItem
	ProductName  string  `json:"product_name"`
	ProductSlug  string  `json:"product_slug"`
	VariantTitle *string `json:"variant_title,omitempty"`
	ImageURL     *string `json:"image_url,omitempty"`
	Removed      bool    `json:"-"`
}

type Summary struct {
	Items             []ItemView      `json:"items"`
	TotalItems        int             `json:"total_items"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	EstimatedShipping decimal.Decimal `json:"estimated_shipping"`
	EstimatedTotal    decimal.Decimal `json:"estimated_total"`
	UpdatedAt         *time.Time      `json:"updated_at,omitempty"`
}

// ValidationResult reports per-line problems without mutating the cart;
// callers decide whether to drop or adjust offending lines.
type ValidationResult struct {
	Valid    bool          `json:"valid"`
	Problems []LineProblem `json:"problems"`
}

type LineProblem struct {
	ItemID    snowflake.ID `json:"item_id"`
	ProductID snowflake.ID `json:"product_id"`
	Code      string       `json:"code"`
	Message   string       `json:"message"`
}

const (
	ProblemProductUnavailable = "product_unavailable"
	ProblemVariantUnavailable = "variant_unavailable"
	ProblemInsufficientStock  = "insufficient_stock"
	ProblemPriceChanged       = "price_changed"
)

var (
	ErrNotFound           = errors.New("not_found")
	ErrProductUnavailable = errors.New("product_unavailable")
	ErrVariantUnavailable = errors.New("variant_unavailable")
	ErrVariantMismatch    = errors.New("variant_mismatch")
	ErrInvalidQuantity    = errors.New("invalid_quantity")
	ErrSessionExpired     = errors.New("session_expired")
	ErrEmptyCart          = errors.New("empty_cart")
)
