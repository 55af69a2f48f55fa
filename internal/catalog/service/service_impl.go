package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/herbcart/internal/catalog/domain"
	"github.com/smallbiznis/herbcart/internal/clock"
	"github.com/smallbiznis/herbcart/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("catalog.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

// Slugify lowercases and collapses non-alphanumeric runs; an empty result
// falls back to a random identifier so the unique index always holds.
func Slugify(name string) string {
	s := slug.Make(name)
	if s == "" {
		return uuid.NewString()
	}
	return s
}

func (s *Service) CreateProduct(ctx context.Context, req domain.CreateProductRequest) (*domain.Product, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	if req.BasePrice.IsNegative() {
		return nil, domain.ErrInvalidPrice
	}

	trackInventory := true
	if req.TrackInventory != nil {
		trackInventory = *req.TrackInventory
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	// A product created with variants needs at least one of them active.
	if len(req.Variants) > 0 {
		hasActive := false
		for _, v := range req.Variants {
			if v.IsActive == nil || *v.IsActive {
				hasActive = true
				break
			}
		}
		if !hasActive {
			return nil, domain.ErrLastActiveVariant
		}
	}

	now := s.clock.Now()
	product := &domain.Product{
		ID:                  s.genID.Generate(),
		Name:                name,
		Slug:                Slugify(name),
		SKU:                 normalizePtr(req.SKU),
		ShortDescription:    req.ShortDescription,
		DetailedDescription: req.DetailedDescription,
		CategoryID:          req.CategoryID,
		Brand:               normalizePtr(req.Brand),
		BasePrice:           req.BasePrice,
		ComparePrice:        req.ComparePrice,
		Weight:              req.Weight,
		TrackInventory:      trackInventory,
		InventoryQuantity:   max(req.InventoryQuantity, 0),
		LowStockThreshold:   max(req.LowStockThreshold, 0),
		RequiresShipping:    true,
		IsActive:            active,
		IsFeatured:          req.IsFeatured,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.CreateProduct(ctx, tx, product); err != nil {
			return mapDuplicate(err, domain.ErrDuplicateSlug)
		}
		for _, vr := range req.Variants {
			variant, err := s.buildVariant(product.ID, vr, now)
			if err != nil {
				return err
			}
			if err := s.repo.CreateVariant(ctx, tx, variant); err != nil {
				return mapDuplicate(err, domain.ErrDuplicateSKU)
			}
		}
		for _, ir := range req.Images {
			img := &domain.ProductImage{
				ID:        s.genID.Generate(),
				ProductID: product.ID,
				ImageURL:  strings.TrimSpace(ir.ImageURL),
				AltText:   ir.AltText,
				IsPrimary: ir.IsPrimary,
				SortOrder: ir.SortOrder,
				CreatedAt: now,
			}
			if err := s.repo.CreateImage(ctx, tx, img); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}

func (s *Service) GetProduct(ctx context.Context, id snowflake.ID) (*domain.Product, error) {
	product, err := s.repo.FindProductByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, domain.ErrNotFound
	}
	return product, nil
}

func (s *Service) GetProductBySlug(ctx context.Context, slugValue string) (*domain.Product, error) {
	product, err := s.repo.FindProductBySlug(ctx, s.db, strings.TrimSpace(slugValue))
	if err != nil {
		return nil, err
	}
	if product == nil || !product.IsActive {
		return nil, domain.ErrNotFound
	}
	return product, nil
}

func (s *Service) ListProducts(ctx context.Context, filter domain.ListFilter) ([]domain.Product, int64, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	return s.repo.ListProducts(ctx, s.db, filter)
}

func (s *Service) UpdateProduct(ctx context.Context, id snowflake.ID, req domain.UpdateProductRequest) (*domain.Product, error) {
	product, err := s.repo.FindProductByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, domain.ErrNotFound
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, domain.ErrInvalidName
		}
		if name != product.Name {
			product.Name = name
			product.Slug = Slugify(name)
		}
	}
	if req.BasePrice != nil {
		if req.BasePrice.IsNegative() {
			return nil, domain.ErrInvalidPrice
		}
		product.BasePrice = *req.BasePrice
	}
	if req.ShortDescription != nil {
		product.ShortDescription = req.ShortDescription
	}
	if req.DetailedDescription != nil {
		product.DetailedDescription = req.DetailedDescription
	}
	if req.CategoryID != nil {
		product.CategoryID = req.CategoryID
	}
	if req.Brand != nil {
		product.Brand = normalizePtr(req.Brand)
	}
	if req.ComparePrice != nil {
		product.ComparePrice = req.ComparePrice
	}
	if req.Weight != nil {
		product.Weight = req.Weight
	}
	if req.TrackInventory != nil {
		product.TrackInventory = *req.TrackInventory
	}
	if req.InventoryQuantity != nil {
		product.InventoryQuantity = max(*req.InventoryQuantity, 0)
	}
	if req.LowStockThreshold != nil {
		product.LowStockThreshold = max(*req.LowStockThreshold, 0)
	}
	if req.IsActive != nil {
		product.IsActive = *req.IsActive
	}
	if req.IsFeatured != nil {
		product.IsFeatured = *req.IsFeatured
	}

	product.UpdatedAt = s.clock.Now()
	if err := s.repo.UpdateProduct(ctx, s.db, product); err != nil {
		return nil, mapDuplicate(err, domain.ErrDuplicateSlug)
	}
	return product, nil
}

// ArchiveProduct soft-deletes. Rows referenced by order snapshots must stay
// resolvable, so there is no hard delete path.
func (s *Service) ArchiveProduct(ctx context.Context, id snowflake.ID) error {
	product, err := s.repo.FindProductByID(ctx, s.db, id)
	if err != nil {
		return err
	}
	if product == nil {
		return domain.ErrNotFound
	}
	product.IsActive = false
	product.UpdatedAt = s.clock.Now()
	return s.repo.UpdateProduct(ctx, s.db, product)
}

func (s *Service) AddVariant(ctx context.Context, productID snowflake.ID, req domain.VariantRequest) (*domain.ProductVariant, error) {
	product, err := s.repo.FindProductByID(ctx, s.db, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, domain.ErrNotFound
	}

	variant, err := s.buildVariant(productID, req, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateVariant(ctx, s.db, variant); err != nil {
		return nil, mapDuplicate(err, domain.ErrDuplicateSKU)
	}
	return variant, nil
}

func (s *Service) UpdateVariant(ctx context.Context, id snowflake.ID, req domain.VariantRequest) (*domain.ProductVariant, error) {
	variant, err := s.repo.FindVariantByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if variant == nil {
		return nil, domain.ErrNotFound
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, domain.ErrInvalidName
		}
		variant.Title = title
	}
	if req.Price != nil {
		if req.Price.IsNegative() {
			return nil, domain.ErrInvalidPrice
		}
		variant.Price = *req.Price
	}
	if req.SKU != nil {
		variant.SKU = normalizePtr(req.SKU)
	}
	if req.ComparePrice != nil {
		variant.ComparePrice = req.ComparePrice
	}
	if req.Weight != nil {
		variant.Weight = req.Weight
	}
	if req.InventoryQuantity != nil {
		variant.InventoryQuantity = max(*req.InventoryQuantity, 0)
	}
	if req.LowStockThreshold != nil {
		variant.LowStockThreshold = max(*req.LowStockThreshold, 0)
	}
	if req.Size != nil {
		variant.Size = req.Size
	}
	if req.Color != nil {
		variant.Color = req.Color
	}
	if req.Scent != nil {
		variant.Scent = req.Scent
	}
	if req.SortOrder != nil {
		variant.SortOrder = *req.SortOrder
	}
	if req.IsActive != nil && *req.IsActive != variant.IsActive {
		if !*req.IsActive {
			others, err := s.repo.CountActiveVariants(ctx, s.db, variant.ProductID, variant.ID)
			if err != nil {
				return nil, err
			}
			if others == 0 {
				return nil, domain.ErrLastActiveVariant
			}
		}
		variant.IsActive = *req.IsActive
	}

	variant.UpdatedAt = s.clock.Now()
	if err := s.repo.UpdateVariant(ctx, s.db, variant); err != nil {
		return nil, mapDuplicate(err, domain.ErrDuplicateSKU)
	}
	return variant, nil
}

func (s *Service) DeleteVariant(ctx context.Context, id snowflake.ID) error {
	variant, err := s.repo.FindVariantByID(ctx, s.db, id)
	if err != nil {
		return err
	}
	if variant == nil {
		return domain.ErrNotFound
	}
	if variant.IsActive {
		others, err := s.repo.CountActiveVariants(ctx, s.db, variant.ProductID, variant.ID)
		if err != nil {
			return err
		}
		if others == 0 {
			return domain.ErrLastActiveVariant
		}
	}
	return s.repo.DeleteVariant(ctx, s.db, id)
}

func (s *Service) ListVariants(ctx context.Context, productID snowflake.ID) ([]domain.ProductVariant, error) {
	product, err := s.repo.FindProductByID(ctx, s.db, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, domain.ErrNotFound
	}
	return s.repo.ListVariants(ctx, s.db, productID)
}

func (s *Service) buildVariant(productID snowflake.ID, req domain.VariantRequest, now time.Time) (*domain.ProductVariant, error) {
	if req.Title == nil || strings.TrimSpace(*req.Title) == "" {
		return nil, domain.ErrInvalidName
	}
	if req.Price == nil || req.Price.IsNegative() {
		return nil, domain.ErrInvalidPrice
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	variant := &domain.ProductVariant{
		ID:           s.genID.Generate(),
		ProductID:    productID,
		Title:        strings.TrimSpace(*req.Title),
		SKU:          normalizePtr(req.SKU),
		Price:        *req.Price,
		ComparePrice: req.ComparePrice,
		Weight:       req.Weight,
		Size:         req.Size,
		Color:        req.Color,
		Scent:        req.Scent,
		IsActive:     active,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if req.InventoryQuantity != nil {
		variant.InventoryQuantity = max(*req.InventoryQuantity, 0)
	}
	if req.LowStockThreshold != nil {
		variant.LowStockThreshold = max(*req.LowStockThreshold, 0)
	}
	if req.SortOrder != nil {
		variant.SortOrder = *req.SortOrder
	}
	return variant, nil
}

// mapDuplicate resolves a unique violation to the given sentinel. Driver
// translation strips the column name, so the caller names the index it
// writes against.
func mapDuplicate(err, sentinel error) error {
	if !db.IsDuplicateKeyErr(err) {
		return err
	}
	if strings.Contains(strings.ToLower(err.Error()), "sku") {
		return domain.ErrDuplicateSKU
	}
	return sentinel
}

func normalizePtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
