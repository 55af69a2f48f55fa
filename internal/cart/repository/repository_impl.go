package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/herbcart/internal/cart/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) CreateItem(ctx context.Context, db *gorm.DB, item *domain.CartItem) error {
	return db.WithContext(ctx).Create(item).Error
}

func (r *repo) UpdateItem(ctx context.Context, db *gorm.DB, item *domain.CartItem) error {
	if item == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).Save(item).Error
}

func (r *repo) DeleteItem(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Delete(&domain.CartItem{}, "id = ?", id).Error
}

func (r *repo) DeleteItems(ctx context.Context, db *gorm.DB, identity domain.Identity) error {
	return identity.Scope(db.WithContext(ctx)).Delete(&domain.CartItem{}).Error
}

func (r *repo) FindItemByID(ctx context.Context, db *gorm.DB, identity domain.Identity, id snowflake.ID) (*domain.CartItem, error) {
	var item domain.CartItem
	err := identity.Scope(db.WithContext(ctx)).First(&item, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repo) FindItemByLine(ctx context.Context, db *gorm.DB, identity domain.Identity, productID snowflake.ID, variantID *snowflake.ID) (*domain.CartItem, error) {
	stmt := identity.Scope(db.WithContext(ctx)).Where("product_id = ?", productID)
	if variantID != nil {
		stmt = stmt.Where("variant_id = ?", *variantID)
	} else {
		stmt = stmt.Where("variant_id IS NULL")
	}

	var item domain.CartItem
	err := stmt.First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repo) ListItems(ctx context.Context, db *gorm.DB, identity domain.Identity) ([]domain.CartItem, error) {
	var items []domain.CartItem
	err := identity.Scope(db.WithContext(ctx)).
		Order("added_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) FindSession(ctx context.Context, db *gorm.DB, token string) (*domain.ShoppingSession, error) {
	var sess domain.ShoppingSession
	err := db.WithContext(ctx).First(&sess, "token = ?", token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (r *repo) CreateSession(ctx context.Context, db *gorm.DB, session *domain.ShoppingSession) error {
	return db.WithContext(ctx).Create(session).Error
}

func (r *repo) UpdateSession(ctx context.Context, db *gorm.DB, session *domain.ShoppingSession) error {
	if session == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).Save(session).Error
}

func (r *repo) DeleteSession(ctx context.Context, db *gorm.DB, token string) error {
	return db.WithContext(ctx).Delete(&domain.ShoppingSession{}, "token = ?", token).Error
}

func (r *repo) DeleteExpiredSessions(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&domain.ShoppingSession{})
	return res.RowsAffected, res.Error
}
