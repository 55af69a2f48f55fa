package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusConfirmed  OrderStatus = "confirmed"
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
	StatusRefunded   OrderStatus = "refunded"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

type FulfillmentStatus string

const (
	FulfillmentUnfulfilled FulfillmentStatus = "unfulfilled"
	FulfillmentPartial     FulfillmentStatus = "partial"
	FulfillmentFulfilled   FulfillmentStatus = "fulfilled"
)

// transitions is the forward edge set of the order state machine.
// Refunded is payment-side and terminal.
var transitions = map[OrderStatus][]OrderStatus{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered, StatusRefunded},
	StatusDelivered:  {StatusRefunded},
	StatusCancelled:  {StatusRefunded},
	StatusRefunded:   {},
}

func CanTransition(from, to OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Cancellable reports whether the customer may still cancel; once the
// order ships, only the refund path remains.
func (s OrderStatus) Cancellable() bool {
	return s == StatusPending || s == StatusConfirmed || s == StatusProcessing
}

func (s OrderStatus) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Address is a point-in-time contact snapshot stored as JSON on the
// order row, immune to later address-book edits.
type Address struct {
	FullName   string `json:"full_name,omitempty"`
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

func (a Address) Value() (driver.Value, error) {
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (a *Address) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	default:
		return errors.New("unsupported address column type")
	}
}

// Order is the immutable record of a checkout. Money and catalog fields
// are frozen at creation; only status, payment, fulfillment and tracking
// move afterwards.
type Order struct {
	ID                 snowflake.ID      `json:"id" gorm:"primaryKey"`
	OrderNumber        string            `json:"order_number" gorm:"type:text;not null;uniqueIndex:ux_orders_number"`
	UserID             *snowflake.ID     `json:"user_id,omitempty" gorm:"index"`
	CustomerEmail      string            `json:"customer_email" gorm:"type:text;not null"`
	CustomerPhone      *string           `json:"customer_phone,omitempty" gorm:"type:text"`
	Status             OrderStatus       `json:"status" gorm:"type:text;not null;default:pending;index"`
	PaymentStatus      PaymentStatus     `json:"payment_status" gorm:"type:text;not null;default:pending"`
	FulfillmentStatus  FulfillmentStatus `json:"fulfillment_status" gorm:"type:text;not null;default:unfulfilled"`
	Currency           string            `json:"currency" gorm:"type:text;not null;default:USD"`
	Subtotal           decimal.Decimal   `json:"subtotal" gorm:"type:decimal(10,2);not null"`
	DiscountTotal      decimal.Decimal   `json:"discount_total" gorm:"type:decimal(10,2);not null;default:0"`
	TaxTotal           decimal.Decimal   `json:"tax_total" gorm:"type:decimal(10,2);not null;default:0"`
	ShippingTotal      decimal.Decimal   `json:"shipping_total" gorm:"type:decimal(10,2);not null;default:0"`
	Total              decimal.Decimal   `json:"total" gorm:"type:decimal(10,2);not null"`
	Notes              *string           `json:"notes,omitempty" gorm:"type:text"`
	ShippingAddress    *Address          `json:"shipping_address,omitempty" gorm:"type:text"`
	BillingAddress     *Address          `json:"billing_address,omitempty" gorm:"type:text"`
	TrackingNumber     *string           `json:"tracking_number,omitempty" gorm:"type:text"`
	ShippingCarrier    *string           `json:"shipping_carrier,omitempty" gorm:"type:text"`
	CancelledAt        *time.Time        `json:"cancelled_at,omitempty"`
	CancellationReason *string           `json:"cancellation_reason,omitempty" gorm:"type:text"`
	ShippedAt          *time.Time        `json:"shipped_at,omitempty"`
	DeliveredAt        *time.Time        `json:"delivered_at,omitempty"`
	Source             string            `json:"source" gorm:"type:text;not null;default:web"`
	CreatedAt          time.Time         `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP;index"`
	UpdatedAt          time.Time         `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`

	Items []OrderItem `json:"items,omitempty" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

func (Order) TableName() string { return "orders" }

// OrderItem is a frozen line snapshot. Product ids are kept for
// reporting but reads never join back to the live catalog.
type OrderItem struct {
	ID              snowflake.ID    `json:"id" gorm:"primaryKey"`
	OrderID         snowflake.ID    `json:"order_id" gorm:"not null;index"`
	ProductID       snowflake.ID    `json:"product_id" gorm:"not null"`
	VariantID       *snowflake.ID   `json:"variant_id,omitempty"`
	ProductName     string          `json:"product_name" gorm:"type:text;not null"`
	VariantTitle    *string         `json:"variant_title,omitempty" gorm:"type:text"`
	SKU             *string         `json:"sku,omitempty" gorm:"column:sku;type:text"`
	Quantity        int             `json:"quantity" gorm:"not null"`
	UnitPrice       decimal.Decimal `json:"unit_price" gorm:"type:decimal(10,2);not null"`
	TotalPrice      decimal.Decimal `json:"total_price" gorm:"type:decimal(10,2);not null"`
	ProductImageURL *string         `json:"product_image_url,omitempty" gorm:"type:text"`
	CreatedAt       time.Time       `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (OrderItem) TableName() string { return "order_items" }

// OrderStatusHistory is append-only; rows are never updated or deleted.
type OrderStatusHistory struct {
	ID             snowflake.ID  `json:"id" gorm:"primaryKey"`
	OrderID        snowflake.ID  `json:"order_id" gorm:"not null;index"`
	PreviousStatus OrderStatus   `json:"previous_status" gorm:"type:text;not null"`
	NewStatus      OrderStatus   `json:"new_status" gorm:"type:text;not null"`
	ChangedBy      *snowflake.ID `json:"changed_by,omitempty"`
	Reason         *string       `json:"reason,omitempty" gorm:"type:text"`
	Notes          *string       `json:"notes,omitempty" gorm:"type:text"`
	ChangedAt      time.Time     `json:"changed_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (OrderStatusHistory) TableName() string { return "order_status_history" }
