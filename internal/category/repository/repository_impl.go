package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/herbcart/internal/category/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Create(ctx context.Context, db *gorm.DB, category *domain.Category) error {
	return db.WithContext(ctx).Create(category).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Category, error) {
	var c domain.Category
	err := db.WithContext(ctx).First(&c, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repo) FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*domain.Category, error) {
	var c domain.Category
	err := db.WithContext(ctx).First(&c, "slug = ?", slug).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repo) ListActive(ctx context.Context, db *gorm.DB) ([]domain.Category, error) {
	var items []domain.Category
	err := db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("sort_order ASC, name ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]domain.Category, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var items []domain.Category
	err := db.WithContext(ctx).Where("id IN ?", ids).Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// ListSubtree returns the category itself plus every descendant, matched by
// the materialized path prefix.
func (r *repo) ListSubtree(ctx context.Context, db *gorm.DB, fullPath string) ([]domain.Category, error) {
	var items []domain.Category
	err := db.WithContext(ctx).
		Where("full_path = ? OR full_path LIKE ?", fullPath, fullPath+"/%").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, category *domain.Category) error {
	if category == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).Save(category).Error
}

func (r *repo) HasChildren(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.Category{}).
		Where("parent_id = ?", id).
		Count(&count).Error
	return count > 0, err
}
