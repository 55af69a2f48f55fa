package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CartItem holds one (identity, product, variant) line. Unit and total
// price are denormalized at add/update time; reads never recompute them
// from the live catalog.
type CartItem struct {
	ID         snowflake.ID    `json:"id" gorm:"primaryKey"`
	UserID     *snowflake.ID   `json:"user_id,omitempty" gorm:"index"`
	SessionID  *string         `json:"session_id,omitempty" gorm:"type:text;index"`
	ProductID  snowflake.ID    `json:"product_id" gorm:"not null;index"`
	VariantID  *snowflake.ID   `json:"variant_id,omitempty" gorm:"index"`
	Quantity   int             `json:"quantity" gorm:"not null;default:1"`
	UnitPrice  decimal.Decimal `json:"unit_price" gorm:"type:decimal(10,2);not null"`
	TotalPrice decimal.Decimal `json:"total_price" gorm:"type:decimal(10,2);not null"`
	Notes      *string         `json:"notes,omitempty" gorm:"type:text"`
	AddedAt    time.Time       `json:"added_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt  time.Time       `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (CartItem) TableName() string { return "cart_items" }

// ShoppingSession anchors an anonymous cart. Items referencing an expired
// or absent session are orphaned and treated as not found.
type ShoppingSession struct {
	Token        string    `json:"token" gorm:"primaryKey;type:text"`
	CreatedAt    time.Time `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	LastAccessed time.Time `json:"last_accessed" gorm:"not null;default:CURRENT_TIMESTAMP"`
	ExpiresAt    time.Time `json:"expires_at" gorm:"not null"`
	UserAgent    *string   `json:"user_agent,omitempty" gorm:"type:text"`
	IPAddress    *string   `json:"ip_address,omitempty" gorm:"type:text"`
}

func (ShoppingSession) TableName() string { return "shopping_sessions" }

// Identity is the cart owner: an authenticated user or an anonymous
// session, never both. The union is closed over the constructors so the
// "exactly one set" invariant holds by type.
type Identity struct {
	userID       snowflake.ID
	sessionToken string
}

func UserIdentity(id snowflake.ID) Identity {
	return Identity{userID: id}
}

func SessionIdentity(token string) Identity {
	return Identity{sessionToken: token}
}

func (i Identity) IsUser() bool { return i.userID != 0 }

func (i Identity) IsZero() bool { return i.userID == 0 && i.sessionToken == "" }

func (i Identity) UserID() (snowflake.ID, bool) {
	return i.userID, i.userID != 0
}

func (i Identity) SessionToken() (string, bool) {
	return i.sessionToken, i.userID == 0 && i.sessionToken != ""
}

// Scope narrows a cart_items query to the identity's rows.
func (i Identity) Scope(stmt *gorm.DB) *gorm.DB {
	if i.IsUser() {
		return stmt.Where("user_id = ?", i.userID)
	}
	return stmt.Where("session_id = ?", i.sessionToken)
}

// DefaultItemWeightKg substitutes for products without a recorded weight
// when estimating shipping.
var DefaultItemWeightKg = decimal.RequireFromString("0.2")

// ShippingCost prices aggregate weight with a per-started-kg tier:
// anything below one kilogram bills as one, zero weight ships free.
func ShippingCost(totalWeightKg, ratePerKg decimal.Decimal) decimal.Decimal {
	if totalWeightKg.Sign() <= 0 {
		return decimal.Zero
	}
	billable := totalWeightKg.Ceil()
	one := decimal.NewFromInt(1)
	if billable.LessThan(one) {
		billable = one
	}
	return ratePerKg.Mul(billable)
}
