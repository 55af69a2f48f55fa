package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/herbcart/internal/catalog/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) CreateProduct(ctx context.Context, db *gorm.DB, product *domain.Product) error {
	return db.WithContext(ctx).Create(product).Error
}

func (r *repo) FindProductByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Product, error) {
	var p domain.Product
	err := db.WithContext(ctx).First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repo) FindProductBySlug(ctx context.Context, db *gorm.DB, slug string) (*domain.Product, error) {
	var p domain.Product
	err := db.WithContext(ctx).First(&p, "slug = ?", slug).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repo) ListProducts(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.Product, int64, error) {
	stmt := db.WithContext(ctx).Model(&domain.Product{})

	if filter.CategoryID != nil {
		stmt = stmt.Where("category_id = ?", *filter.CategoryID)
	}
	if len(filter.CategoryIDs) > 0 {
		stmt = stmt.Where("category_id IN ?", filter.CategoryIDs)
	}
	if filter.Active != nil {
		stmt = stmt.Where("is_active = ?", *filter.Active)
	}
	if filter.Featured != nil {
		stmt = stmt.Where("is_featured = ?", *filter.Featured)
	}
	if filter.Search != "" {
		stmt = stmt.Where("name LIKE ?", "%"+filter.Search+"%")
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

	var items []domain.Product
	err := stmt.Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *repo) UpdateProduct(ctx context.Context, db *gorm.DB, product *domain.Product) error {
	if product == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).Save(product).Error
}

func (r *repo) CreateVariant(ctx context.Context, db *gorm.DB, variant *domain.ProductVariant) error {
	return db.WithContext(ctx).Create(variant).Error
}

func (r *repo) FindVariantByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.ProductVariant, error) {
	var v domain.ProductVariant
	err := db.WithContext(ctx).First(&v, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *repo) ListVariants(ctx context.Context, db *gorm.DB, productID snowflake.ID) ([]domain.ProductVariant, error) {
	var items []domain.ProductVariant
	err := db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("sort_order ASC, created_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpdateVariant(ctx context.Context, db *gorm.DB, variant *domain.ProductVariant) error {
	if variant == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).Save(variant).Error
}

func (r *repo) DeleteVariant(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Delete(&domain.ProductVariant{}, "id = ?", id).Error
}

func (r *repo) CountActiveVariants(ctx context.Context, db *gorm.DB, productID snowflake.ID, exclude snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.ProductVariant{}).
		Where("product_id = ? AND is_active = ? AND id <> ?", productID, true, exclude).
		Count(&count).Error
	return count, err
}

func (r *repo) CreateImage(ctx context.Context, db *gorm.DB, image *domain.ProductImage) error {
	return db.WithContext(ctx).Create(image).Error
}

func (r *repo) PrimaryImageURL(ctx context.Context, db *gorm.DB, productID snowflake.ID) (*string, error) {
	var img domain.ProductImage
	err := db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("is_primary DESC, sort_order ASC").
		First(&img).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &img.ImageURL, nil
}
