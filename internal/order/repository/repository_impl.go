package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/herbcart/internal/order/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Create(ctx context.Context, db *gorm.DB, order *domain.Order) error {
	return db.WithContext(ctx).Create(order).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, order *domain.Order) error {
	if order == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).Omit("Items").Save(order).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Order, error) {
	var o domain.Order
	err := db.WithContext(ctx).Preload("Items").First(&o, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *repo) FindByNumber(ctx context.Context, db *gorm.DB, number string) (*domain.Order, error) {
	var o domain.Order
	err := db.WithContext(ctx).Preload("Items").First(&o, "order_number = ?", number).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.Order, int64, error) {
	stmt := db.WithContext(ctx).Model(&domain.Order{})

	if filter.UserID != nil {
		stmt = stmt.Where("user_id = ?", *filter.UserID)
	}
	if filter.Status != nil {
		stmt = stmt.Where("status = ?", *filter.Status)
	}

	var total int64
	if err := stmt.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 {
		limit = 20
	}

	var items []domain.Order
	err := stmt.Preload("Items").
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *repo) CountByNumberPrefix(ctx context.Context, db *gorm.DB, prefix string) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("order_number LIKE ?", prefix+"%").
		Count(&count).Error
	return count, err
}

func (r *repo) AppendHistory(ctx context.Context, db *gorm.DB, entry *domain.OrderStatusHistory) error {
	return db.WithContext(ctx).Create(entry).Error
}

func (r *repo) ListHistory(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]domain.OrderStatusHistory, error) {
	var entries []domain.OrderStatusHistory
	err := db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("changed_at ASC, id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
