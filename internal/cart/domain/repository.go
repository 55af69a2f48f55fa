package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	CreateItem(ctx context.Context, db *gorm.DB, item *CartItem) error
	UpdateItem(ctx context.Context, db *gorm.DB, item *CartItem) error
	DeleteItem(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	DeleteItems(ctx context.Context, db *gorm.DB, identity Identity) error

	FindItemByID(ctx context.Context, db *gorm.DB, identity Identity, id snowflake.ID) (*CartItem, error)
	FindItemByLine(ctx context.Context, db *gorm.DB, identity Identity, productID snowflake.ID, variantID *snowflake.ID) (*CartItem, error)
	ListItems(ctx context.Context, db *gorm.DB, identity Identity) ([]CartItem, error)

	FindSession(ctx context.Context, db *gorm.DB, token string) (*ShoppingSession, error)
	CreateSession(ctx context.Context, db *gorm.DB, session *ShoppingSession) error
	UpdateSession(ctx context.Context, db *gorm.DB, session *ShoppingSession) error
	DeleteSession(ctx context.Context, db *gorm.DB, token string) error
	DeleteExpiredSessions(ctx context.Context, db *gorm.DB, now time.Time) (int64, error)
}
