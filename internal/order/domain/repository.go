package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, order *Order) error
	Update(ctx context.Context, db *gorm.DB, order *Order) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Order, error)
	FindByNumber(ctx context.Context, db *gorm.DB, number string) (*Order, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Order, int64, error)

	// CountByNumberPrefix sizes the day's sequence inside the creation
	// transaction; the unique index on order_number backstops races.
	CountByNumberPrefix(ctx context.Context, db *gorm.DB, prefix string) (int64, error)

	AppendHistory(ctx context.Context, db *gorm.DB, entry *OrderStatusHistory) error
	ListHistory(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]OrderStatusHistory, error)
}

type ListFilter struct {
	UserID *snowflake.ID
	Status *OrderStatus
	Page   int
	Limit  int
}
