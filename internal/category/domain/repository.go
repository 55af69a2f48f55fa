package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, category *Category) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Category, error)
	FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*Category, error)
	ListActive(ctx context.Context, db *gorm.DB) ([]Category, error)
	ListByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]Category, error)
	ListSubtree(ctx context.Context, db *gorm.DB, fullPath string) ([]Category, error)
	Update(ctx context.Context, db *gorm.DB, category *Category) error
	HasChildren(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error)
}
