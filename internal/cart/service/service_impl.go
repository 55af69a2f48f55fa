package service

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/herbcart/internal/cart/domain"
	catalogdomain "github.com/smallbiznis/herbcart/internal/catalog/domain"
	"github.com/smallbiznis/herbcart/internal/clock"
	"github.com/smallbiznis/herbcart/internal/config"
	inventorydomain "github.com/smallbiznis/herbcart/internal/inventory/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Cfg       config.Config
	GenID     *snowflake.Node
	Clock     clock.Clock
	Repo      domain.Repository
	Catalog   catalogdomain.Repository
	Inventory inventorydomain.Service
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       domain.Repository
	catalog    catalogdomain.Repository
	inventory  inventorydomain.Service
	sessionTTL time.Duration
	rate       decimal.Decimal
}

func New(p Params) domain.Service {
	ttlDays := p.Cfg.SessionTTLDays
	if ttlDays < 1 {
		ttlDays = 7
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("cart.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		catalog:    p.Catalog,
		inventory:  p.Inventory,
		sessionTTL: time.Duration(ttlDays) * 24 * time.Hour,
		rate:       p.Cfg.ShippingRatePerKg,
	}
}

func (s *Service) EnsureSession(ctx context.Context, token string, userAgent, ipAddress *string) (*domain.ShoppingSession, bool, error) {
	now := s.clock.Now()

	if token != "" {
		sess, err := s.repo.FindSession(ctx, s.db, token)
		if err != nil {
			return nil, false, err
		}
		if sess != nil && sess.ExpiresAt.After(now) {
			sess.LastAccessed = now
			if err := s.repo.UpdateSession(ctx, s.db, sess); err != nil {
				return nil, false, err
			}
			return sess, false, nil
		}
	}

	// Minting a fresh session doubles as the cleanup hook: expired rows
	// are swept so the sessions table does not grow unbounded.
	if swept, err := s.repo.DeleteExpiredSessions(ctx, s.db, now); err != nil {
		return nil, false, err
	} else if swept > 0 {
		s.log.Debug("expired sessions swept", zap.Int64("count", swept))
	}

	sess := &domain.ShoppingSession{
		Token:        uuid.NewString(),
		CreatedAt:    now,
		LastAccessed: now,
		ExpiresAt:    now.Add(s.sessionTTL),
		UserAgent:    userAgent,
		IPAddress:    ipAddress,
	}
	if err := s.repo.CreateSession(ctx, s.db, sess); err != nil {
		return nil, false, err
	}
	return sess, true, nil
}

func (s *Service) GetCart(ctx context.Context, identity domain.Identity) (*domain.Summary, error) {
	if err := s.resolveIdentity(ctx, identity); err != nil {
		return nil, err
	}
	items, err := s.repo.ListItems(ctx, s.db, identity)
	if err != nil {
		return nil, err
	}
	return s.summarize(ctx, items)
}

func (s *Service) AddItem(ctx context.Context, identity domain.Identity, req domain.AddItemRequest) (*domain.ItemView, error) {
	if req.Quantity < 1 {
		return nil, domain.ErrInvalidQuantity
	}
	if err := s.resolveIdentity(ctx, identity); err != nil {
		return nil, err
	}

	product, variant, err := s.loadSellable(ctx, req.ProductID, req.VariantID)
	if err != nil {
		return nil, err
	}

	unitPrice := product.BasePrice
	if variant != nil {
		unitPrice = variant.Price
	}

	existing, err := s.repo.FindItemByLine(ctx, s.db, identity, req.ProductID, req.VariantID)
	if err != nil {
		return nil, err
	}

	// Availability is checked against the combined quantity so merging
	// into an existing line cannot overshoot stock.
	wanted := req.Quantity
	if existing != nil {
		wanted += existing.Quantity
	}
	if err := s.checkStock(ctx, req.ProductID, req.VariantID, wanted); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var item *domain.CartItem
	if existing != nil {
		existing.Quantity = wanted
		existing.UnitPrice = unitPrice
		existing.TotalPrice = unitPrice.Mul(decimal.NewFromInt(int64(wanted)))
		if req.Notes != nil {
			existing.Notes = req.Notes
		}
		existing.UpdatedAt = now
		if err := s.repo.UpdateItem(ctx, s.db, existing); err != nil {
			return nil, err
		}
		item = existing
	} else {
		item = &domain.CartItem{
			ID:         s.genID.Generate(),
			ProductID:  req.ProductID,
			VariantID:  req.VariantID,
			Quantity:   req.Quantity,
			UnitPrice:  unitPrice,
			TotalPrice: unitPrice.Mul(decimal.NewFromInt(int64(req.Quantity))),
			Notes:      req.Notes,
			AddedAt:    now,
			UpdatedAt:  now,
		}
		if userID, ok := identity.UserID(); ok {
			item.UserID = &userID
		} else if token, ok := identity.SessionToken(); ok {
			item.SessionID = &token
		}
		if err := s.repo.CreateItem(ctx, s.db, item); err != nil {
			return nil, err
		}
	}

	return s.itemView(ctx, item, product, variant)
}

// UpdateItem sets the line quantity; zero or below removes the line, which
// is reported through ItemView.Removed.
func (s *Service) UpdateItem(ctx context.Context, identity domain.Identity, itemID snowflake.ID, req domain.UpdateItemRequest) (*domain.ItemView, error) {
	if err := s.resolveIdentity(ctx, identity); err != nil {
		return nil, err
	}
	item, err := s.repo.FindItemByID(ctx, s.db, identity, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}

	if req.Quantity <= 0 {
		if err := s.repo.DeleteItem(ctx, s.db, item.ID); err != nil {
			return nil, err
		}
		return &domain.ItemView{CartItem: *item, Removed: true}, nil
	}

	product, variant, err := s.loadSellable(ctx, item.ProductID, item.VariantID)
	if err != nil {
		return nil, err
	}
	if err := s.checkStock(ctx, item.ProductID, item.VariantID, req.Quantity); err != nil {
		return nil, err
	}

	// The line price is re-captured from the live catalog on every
	// quantity change, same as when the line is added.
	unitPrice := product.BasePrice
	if variant != nil {
		unitPrice = variant.Price
	}

	item.Quantity = req.Quantity
	item.UnitPrice = unitPrice
	item.TotalPrice = unitPrice.Mul(decimal.NewFromInt(int64(req.Quantity)))
	if req.Notes != nil {
		item.Notes = req.Notes
	}
	item.UpdatedAt = s.clock.Now()
	if err := s.repo.UpdateItem(ctx, s.db, item); err != nil {
		return nil, err
	}

	return s.itemView(ctx, item, product, variant)
}

func (s *Service) RemoveItem(ctx context.Context, identity domain.Identity, itemID snowflake.ID) error {
	if err := s.resolveIdentity(ctx, identity); err != nil {
		return err
	}
	item, err := s.repo.FindItemByID(ctx, s.db, identity, itemID)
	if err != nil {
		return err
	}
	if item == nil {
		return domain.ErrNotFound
	}
	return s.repo.DeleteItem(ctx, s.db, item.ID)
}

func (s *Service) Clear(ctx context.Context, identity domain.Identity) error {
	if err := s.resolveIdentity(ctx, identity); err != nil {
		return err
	}
	return s.repo.DeleteItems(ctx, s.db, identity)
}

func (s *Service) Merge(ctx context.Context, userID snowflake.ID, sessionToken string) error {
	if sessionToken == "" {
		return nil
	}
	sessionIdentity := domain.SessionIdentity(sessionToken)
	userIdentity := domain.UserIdentity(userID)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sessionItems, err := s.repo.ListItems(ctx, tx, sessionIdentity)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		for i := range sessionItems {
			item := &sessionItems[i]

			existing, err := s.repo.FindItemByLine(ctx, tx, userIdentity, item.ProductID, item.VariantID)
			if err != nil {
				return err
			}
			if existing != nil {
				existing.Quantity += item.Quantity
				existing.TotalPrice = existing.UnitPrice.Mul(decimal.NewFromInt(int64(existing.Quantity)))
				existing.UpdatedAt = now
				if err := s.repo.UpdateItem(ctx, tx, existing); err != nil {
					return err
				}
				if err := s.repo.DeleteItem(ctx, tx, item.ID); err != nil {
					return err
				}
				continue
			}

			item.UserID = &userID
			item.SessionID = nil
			item.UpdatedAt = now
			if err := s.repo.UpdateItem(ctx, tx, item); err != nil {
				return err
			}
		}

		return s.repo.DeleteSession(ctx, tx, sessionToken)
	})
}

// Validate reports, per line, whether the product and variant are still
// sellable and stock covers the quantity. Nothing is mutated.
func (s *Service) Validate(ctx context.Context, identity domain.Identity) (*domain.ValidationResult, error) {
	if err := s.resolveIdentity(ctx, identity); err != nil {
		return nil, err
	}
	items, err := s.repo.ListItems(ctx, s.db, identity)
	if err != nil {
		return nil, err
	}

	result := &domain.ValidationResult{Valid: true, Problems: []domain.LineProblem{}}
	for i := range items {
		item := &items[i]
		problem := s.validateLine(ctx, item)
		if problem != nil {
			result.Valid = false
			result.Problems = append(result.Problems, *problem)
		}
	}
	return result, nil
}

func (s *Service) EstimateShipping(ctx context.Context, identity domain.Identity) (decimal.Decimal, error) {
	if err := s.resolveIdentity(ctx, identity); err != nil {
		return decimal.Zero, err
	}
	items, err := s.repo.ListItems(ctx, s.db, identity)
	if err != nil {
		return decimal.Zero, err
	}
	return s.estimateShipping(ctx, items)
}

// resolveIdentity rejects anonymous access on an expired or unknown
// session so orphaned items never resurface.
func (s *Service) resolveIdentity(ctx context.Context, identity domain.Identity) error {
	if identity.IsZero() {
		return domain.ErrNotFound
	}
	token, ok := identity.SessionToken()
	if !ok {
		return nil
	}
	sess, err := s.repo.FindSession(ctx, s.db, token)
	if err != nil {
		return err
	}
	if sess == nil || !sess.ExpiresAt.After(s.clock.Now()) {
		return domain.ErrSessionExpired
	}
	return nil
}

func (s *Service) loadSellable(ctx context.Context, productID snowflake.ID, variantID *snowflake.ID) (*catalogdomain.Product, *catalogdomain.ProductVariant, error) {
	product, err := s.catalog.FindProductByID(ctx, s.db, productID)
	if err != nil {
		return nil, nil, err
	}
	if product == nil {
		return nil, nil, domain.ErrNotFound
	}
	if !product.IsActive {
		return nil, nil, domain.ErrProductUnavailable
	}

	if variantID == nil {
		return product, nil, nil
	}
	variant, err := s.catalog.FindVariantByID(ctx, s.db, *variantID)
	if err != nil {
		return nil, nil, err
	}
	if variant == nil {
		return nil, nil, domain.ErrNotFound
	}
	if variant.ProductID != productID {
		return nil, nil, domain.ErrVariantMismatch
	}
	if !variant.IsActive {
		return nil, nil, domain.ErrVariantUnavailable
	}
	return product, variant, nil
}

func (s *Service) loadLine(ctx context.Context, item *domain.CartItem) (*catalogdomain.Product, *catalogdomain.ProductVariant, error) {
	product, err := s.catalog.FindProductByID(ctx, s.db, item.ProductID)
	if err != nil {
		return nil, nil, err
	}
	var variant *catalogdomain.ProductVariant
	if item.VariantID != nil {
		variant, err = s.catalog.FindVariantByID(ctx, s.db, *item.VariantID)
		if err != nil {
			return nil, nil, err
		}
	}
	return product, variant, nil
}

func (s *Service) checkStock(ctx context.Context, productID snowflake.ID, variantID *snowflake.ID, quantity int) error {
	err := s.inventory.CheckAvailability(ctx, s.db, productID, variantID, quantity)
	switch {
	case errors.Is(err, inventorydomain.ErrInsufficientStock):
		return inventorydomain.ErrInsufficientStock
	case errors.Is(err, inventorydomain.ErrNotFound):
		return domain.ErrNotFound
	case errors.Is(err, inventorydomain.ErrInvalidQuantity):
		return domain.ErrInvalidQuantity
	default:
		return err
	}
}

func (s *Service) validateLine(ctx context.Context, item *domain.CartItem) *domain.LineProblem {
	product, variant, err := s.loadLine(ctx, item)
	if err != nil {
		return &domain.LineProblem{
			ItemID: item.ID, ProductID: item.ProductID,
			Code: domain.ProblemProductUnavailable, Message: "product lookup failed",
		}
	}
	if product == nil || !product.IsActive {
		return &domain.LineProblem{
			ItemID: item.ID, ProductID: item.ProductID,
			Code: domain.ProblemProductUnavailable, Message: "product is no longer available",
		}
	}
	if item.VariantID != nil && (variant == nil || !variant.IsActive || variant.ProductID != item.ProductID) {
		return &domain.LineProblem{
			ItemID: item.ID, ProductID: item.ProductID,
			Code: domain.ProblemVariantUnavailable, Message: "variant is no longer available",
		}
	}
	if err := s.checkStock(ctx, item.ProductID, item.VariantID, item.Quantity); err != nil {
		if errors.Is(err, inventorydomain.ErrInsufficientStock) {
			return &domain.LineProblem{
				ItemID: item.ID, ProductID: item.ProductID,
				Code: domain.ProblemInsufficientStock, Message: "not enough stock for requested quantity",
			}
		}
		return &domain.LineProblem{
			ItemID: item.ID, ProductID: item.ProductID,
			Code: domain.ProblemProductUnavailable, Message: "availability check failed",
		}
	}

	current := product.BasePrice
	if variant != nil {
		current = variant.Price
	}
	if !current.Equal(item.UnitPrice) {
		return &domain.LineProblem{
			ItemID: item.ID, ProductID: item.ProductID,
			Code: domain.ProblemPriceChanged, Message: "price changed since the item was added",
		}
	}
	return nil
}

// summarize builds the cart view: totals come from the stored line totals,
// never recomputed from live catalog prices.
func (s *Service) summarize(ctx context.Context, items []domain.CartItem) (*domain.Summary, error) {
	summary := &domain.Summary{
		Items:             []domain.ItemView{},
		Subtotal:          decimal.Zero,
		EstimatedShipping: decimal.Zero,
		EstimatedTotal:    decimal.Zero,
	}

	for i := range items {
		item := &items[i]
		product, variant, err := s.loadLine(ctx, item)
		if err != nil {
			return nil, err
		}
		if product == nil {
			continue
		}
		view, err := s.itemView(ctx, item, product, variant)
		if err != nil {
			return nil, err
		}
		summary.Items = append(summary.Items, *view)
		summary.TotalItems += item.Quantity
		summary.Subtotal = summary.Subtotal.Add(item.TotalPrice)
		if summary.UpdatedAt == nil || item.UpdatedAt.After(*summary.UpdatedAt) {
			updated := item.UpdatedAt
			summary.UpdatedAt = &updated
		}
	}

	shipping, err := s.estimateShipping(ctx, items)
	if err != nil {
		return nil, err
	}
	summary.EstimatedShipping = shipping
	summary.EstimatedTotal = summary.Subtotal.Add(shipping)
	return summary, nil
}

func (s *Service) estimateShipping(ctx context.Context, items []domain.CartItem) (decimal.Decimal, error) {
	total := decimal.Zero
	for i := range items {
		item := &items[i]
		product, err := s.catalog.FindProductByID(ctx, s.db, item.ProductID)
		if err != nil {
			return decimal.Zero, err
		}
		if product == nil || !product.RequiresShipping {
			continue
		}
		weight := domain.DefaultItemWeightKg
		if product.Weight != nil && product.Weight.Sign() > 0 {
			weight = *product.Weight
		}
		total = total.Add(weight.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return domain.ShippingCost(total, s.rate), nil
}

func (s *Service) itemView(ctx context.Context, item *domain.CartItem, product *catalogdomain.Product, variant *catalogdomain.ProductVariant) (*domain.ItemView, error) {
	view := &domain.ItemView{CartItem: *item}
	if product != nil {
		view.ProductName = product.Name
		view.ProductSlug = product.Slug
		imageURL, err := s.catalog.PrimaryImageURL(ctx, s.db, product.ID)
		if err != nil {
			return nil, err
		}
		view.ImageURL = imageURL
	}
	if variant != nil {
		title := variant.Title
		view.VariantTitle = &title
	}
	return view, nil
}
