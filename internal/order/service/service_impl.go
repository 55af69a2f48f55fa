package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	cartdomain "github.com/smallbiznis/herbcart/internal/cart/domain"
	catalogdomain "github.com/smallbiznis/herbcart/internal/catalog/domain"
	"github.com/smallbiznis/herbcart/internal/clock"
	"github.com/smallbiznis/herbcart/internal/config"
	inventorydomain "github.com/smallbiznis/herbcart/internal/inventory/domain"
	"github.com/smallbiznis/herbcart/internal/order/domain"
	"github.com/smallbiznis/herbcart/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// orderNumberAttempts bounds retries when two creations race to the same
// daily sequence slot; the unique index rejects the loser.
const orderNumberAttempts = 3

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Cfg       config.Config
	GenID     *snowflake.Node
	Clock     clock.Clock
	Repo      domain.Repository
	Catalog   catalogdomain.Repository
	CartRepo  cartdomain.Repository
	Inventory inventorydomain.Service
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	repo      domain.Repository
	catalog   catalogdomain.Repository
	cartRepo  cartdomain.Repository
	inventory inventorydomain.Service
	prefix    string
	rate      decimal.Decimal
}

func New(p Params) domain.Service {
	prefix := p.Cfg.OrderNumberPrefix
	if prefix == "" {
		prefix = "HC"
	}
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("order.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		repo:      p.Repo,
		catalog:   p.Catalog,
		cartRepo:  p.CartRepo,
		inventory: p.Inventory,
		prefix:    prefix,
		rate:      p.Cfg.ShippingRatePerKg,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Order, error) {
	if err := validateEmail(req.CustomerEmail); err != nil {
		return nil, err
	}
	if len(req.Lines) == 0 {
		return nil, domain.ErrNoItems
	}

	var order *domain.Order
	err := s.withNumberRetry(func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			items, adjustments, weight, subtotal, err := s.snapshotLines(ctx, tx, req.Lines)
			if err != nil {
				return err
			}
			order, err = s.persistOrder(ctx, tx, orderDraft{
				userID:          req.UserID,
				customerEmail:   req.CustomerEmail,
				customerPhone:   req.CustomerPhone,
				shippingAddress: req.ShippingAddress,
				billingAddress:  req.BillingAddress,
				notes:           req.Notes,
				source:          req.Source,
			}, items, adjustments, weight, subtotal)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *Service) CreateFromCart(ctx context.Context, identity cartdomain.Identity, req domain.CheckoutRequest) (*domain.Order, error) {
	if err := validateEmail(req.CustomerEmail); err != nil {
		return nil, err
	}
	if identity.IsZero() {
		return nil, domain.ErrEmptyCart
	}

	var order *domain.Order
	err := s.withNumberRetry(func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			cartItems, err := s.cartRepo.ListItems(ctx, tx, identity)
			if err != nil {
				return err
			}
			if len(cartItems) == 0 {
				return domain.ErrEmptyCart
			}

			lines := make([]domain.Line, 0, len(cartItems))
			for _, item := range cartItems {
				lines = append(lines, domain.Line{
					ProductID: item.ProductID,
					VariantID: item.VariantID,
					Quantity:  item.Quantity,
				})
			}

			items, adjustments, weight, subtotal, err := s.snapshotLines(ctx, tx, lines)
			if err != nil {
				return err
			}

			order, err = s.persistOrder(ctx, tx, orderDraft{
				userID:          req.UserID,
				customerEmail:   req.CustomerEmail,
				customerPhone:   req.CustomerPhone,
				shippingAddress: req.ShippingAddress,
				billingAddress:  req.BillingAddress,
				notes:           req.Notes,
				source:          "web",
			}, items, adjustments, weight, subtotal)
			if err != nil {
				return err
			}

			return s.cartRepo.DeleteItems(ctx, tx, identity)
		})
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *Service) Get(ctx context.Context, userID *snowflake.ID, id snowflake.ID) (*domain.Order, error) {
	order, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if order == nil || !visibleTo(order, userID) {
		return nil, domain.ErrNotFound
	}
	return order, nil
}

func (s *Service) GetByNumber(ctx context.Context, userID *snowflake.ID, number string) (*domain.Order, error) {
	order, err := s.repo.FindByNumber(ctx, s.db, strings.TrimSpace(number))
	if err != nil {
		return nil, err
	}
	if order == nil || !visibleTo(order, userID) {
		return nil, domain.ErrNotFound
	}
	return order, nil
}

func (s *Service) List(ctx context.Context, userID snowflake.ID, page, limit int) ([]domain.Order, int64, error) {
	return s.repo.List(ctx, s.db, domain.ListFilter{
		UserID: &userID,
		Page:   page,
		Limit:  limit,
	})
}

// Cancel releases every reserved quantity and appends the history row in
// the same transaction that flips the status.
func (s *Service) Cancel(ctx context.Context, userID *snowflake.ID, id snowflake.ID, reason *string) (*domain.Order, error) {
	var cancelled *domain.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if order == nil || !visibleTo(order, userID) {
			return domain.ErrNotFound
		}
		if !order.Status.Cancellable() {
			return domain.ErrInvalidStateTransition
		}

		if err := s.inventory.Release(ctx, tx, releaseAdjustments(order.Items)); err != nil {
			return err
		}

		now := s.clock.Now()
		previous := order.Status
		order.Status = domain.StatusCancelled
		order.CancelledAt = &now
		order.CancellationReason = reason
		order.UpdatedAt = now
		if err := s.repo.Update(ctx, tx, order); err != nil {
			return err
		}

		if err := s.repo.AppendHistory(ctx, tx, &domain.OrderStatusHistory{
			ID:             s.genID.Generate(),
			OrderID:        order.ID,
			PreviousStatus: previous,
			NewStatus:      domain.StatusCancelled,
			ChangedBy:      userID,
			Reason:         reason,
			ChangedAt:      now,
		}); err != nil {
			return err
		}

		cancelled = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

func (s *Service) History(ctx context.Context, userID *snowflake.ID, id snowflake.ID) ([]domain.OrderStatusHistory, error) {
	order, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if order == nil || !visibleTo(order, userID) {
		return nil, domain.ErrNotFound
	}
	return s.repo.ListHistory(ctx, s.db, id)
}

func (s *Service) AdminList(ctx context.Context, filter domain.ListFilter) ([]domain.Order, int64, error) {
	return s.repo.List(ctx, s.db, filter)
}

func (s *Service) AdminUpdateStatus(ctx context.Context, id snowflake.ID, req domain.UpdateStatusRequest) (*domain.Order, error) {
	if !req.Status.Valid() {
		return nil, domain.ErrInvalidStateTransition
	}

	var updated *domain.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if order == nil {
			return domain.ErrNotFound
		}
		if !domain.CanTransition(order.Status, req.Status) {
			return domain.ErrInvalidStateTransition
		}

		now := s.clock.Now()
		previous := order.Status
		order.Status = req.Status
		order.UpdatedAt = now

		switch req.Status {
		case domain.StatusShipped:
			order.ShippedAt = &now
			order.FulfillmentStatus = domain.FulfillmentFulfilled
			if req.TrackingNumber != nil {
				order.TrackingNumber = req.TrackingNumber
			}
			if req.ShippingCarrier != nil {
				order.ShippingCarrier = req.ShippingCarrier
			}
		case domain.StatusDelivered:
			order.DeliveredAt = &now
		case domain.StatusCancelled:
			order.CancelledAt = &now
			if err := s.inventory.Release(ctx, tx, releaseAdjustments(order.Items)); err != nil {
				return err
			}
		case domain.StatusRefunded:
			order.PaymentStatus = domain.PaymentRefunded
		}

		if err := s.repo.Update(ctx, tx, order); err != nil {
			return err
		}
		if err := s.repo.AppendHistory(ctx, tx, &domain.OrderStatusHistory{
			ID:             s.genID.Generate(),
			OrderID:        order.ID,
			PreviousStatus: previous,
			NewStatus:      req.Status,
			ChangedBy:      req.ChangedBy,
			Notes:          req.Notes,
			ChangedAt:      now,
		}); err != nil {
			return err
		}

		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

type orderDraft struct {
	userID          *snowflake.ID
	customerEmail   string
	customerPhone   *string
	shippingAddress *domain.Address
	billingAddress  *domain.Address
	notes           *string
	source          string
}

// snapshotLines freezes catalog fields for every line and accumulates the
// inventory adjustments, shippable weight and subtotal. Unsellable lines
// fail the whole batch.
func (s *Service) snapshotLines(ctx context.Context, tx *gorm.DB, lines []domain.Line) ([]domain.OrderItem, []inventorydomain.Adjustment, decimal.Decimal, decimal.Decimal, error) {
	items := make([]domain.OrderItem, 0, len(lines))
	adjustments := make([]inventorydomain.Adjustment, 0, len(lines))
	weight := decimal.Zero
	subtotal := decimal.Zero

	for _, line := range lines {
		if line.Quantity < 1 {
			return nil, nil, decimal.Zero, decimal.Zero, domain.ErrNoItems
		}

		product, err := s.catalog.FindProductByID(ctx, tx, line.ProductID)
		if err != nil {
			return nil, nil, decimal.Zero, decimal.Zero, err
		}
		if product == nil {
			return nil, nil, decimal.Zero, decimal.Zero, domain.ErrNotFound
		}
		if !product.IsActive {
			return nil, nil, decimal.Zero, decimal.Zero, domain.ErrProductUnavailable
		}

		unitPrice := product.BasePrice
		sku := product.SKU
		var variantTitle *string
		if line.VariantID != nil {
			variant, err := s.catalog.FindVariantByID(ctx, tx, *line.VariantID)
			if err != nil {
				return nil, nil, decimal.Zero, decimal.Zero, err
			}
			if variant == nil {
				return nil, nil, decimal.Zero, decimal.Zero, domain.ErrNotFound
			}
			if variant.ProductID != line.ProductID {
				return nil, nil, decimal.Zero, decimal.Zero, domain.ErrVariantMismatch
			}
			if !variant.IsActive {
				return nil, nil, decimal.Zero, decimal.Zero, domain.ErrVariantUnavailable
			}
			unitPrice = variant.Price
			title := variant.Title
			variantTitle = &title
			if variant.SKU != nil {
				sku = variant.SKU
			}
		}

		imageURL, err := s.catalog.PrimaryImageURL(ctx, tx, product.ID)
		if err != nil {
			return nil, nil, decimal.Zero, decimal.Zero, err
		}

		qty := decimal.NewFromInt(int64(line.Quantity))
		totalPrice := unitPrice.Mul(qty)
		subtotal = subtotal.Add(totalPrice)

		if product.RequiresShipping {
			itemWeight := cartdomain.DefaultItemWeightKg
			if product.Weight != nil && product.Weight.Sign() > 0 {
				itemWeight = *product.Weight
			}
			weight = weight.Add(itemWeight.Mul(qty))
		}

		items = append(items, domain.OrderItem{
			ID:              s.genID.Generate(),
			ProductID:       product.ID,
			VariantID:       line.VariantID,
			ProductName:     product.Name,
			VariantTitle:    variantTitle,
			SKU:             sku,
			Quantity:        line.Quantity,
			UnitPrice:       unitPrice,
			TotalPrice:      totalPrice,
			ProductImageURL: imageURL,
			CreatedAt:       s.clock.Now(),
		})
		adjustments = append(adjustments, inventorydomain.Adjustment{
			ProductID: line.ProductID,
			VariantID: line.VariantID,
			Quantity:  line.Quantity,
		})
	}

	return items, adjustments, weight, subtotal, nil
}

// persistOrder numbers, totals and writes the order, reserves inventory
// and appends the opening history row. Runs inside the caller's
// transaction.
func (s *Service) persistOrder(ctx context.Context, tx *gorm.DB, draft orderDraft, items []domain.OrderItem, adjustments []inventorydomain.Adjustment, weight, subtotal decimal.Decimal) (*domain.Order, error) {
	number, err := s.nextOrderNumber(ctx, tx)
	if err != nil {
		return nil, err
	}

	shipping := cartdomain.ShippingCost(weight, s.rate)
	now := s.clock.Now()
	source := draft.source
	if source == "" {
		source = "web"
	}

	order := &domain.Order{
		ID:                s.genID.Generate(),
		OrderNumber:       number,
		UserID:            draft.userID,
		CustomerEmail:     strings.ToLower(strings.TrimSpace(draft.customerEmail)),
		CustomerPhone:     draft.customerPhone,
		Status:            domain.StatusPending,
		PaymentStatus:     domain.PaymentPending,
		FulfillmentStatus: domain.FulfillmentUnfulfilled,
		Currency:          "USD",
		Subtotal:          subtotal,
		DiscountTotal:     decimal.Zero,
		TaxTotal:          decimal.Zero,
		ShippingTotal:     shipping,
		Total:             subtotal.Add(shipping),
		Notes:             draft.notes,
		ShippingAddress:   draft.shippingAddress,
		BillingAddress:    draft.billingAddress,
		Source:            source,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	for i := range items {
		items[i].OrderID = order.ID
	}
	order.Items = items

	if err := s.repo.Create(ctx, tx, order); err != nil {
		return nil, err
	}
	if err := s.inventory.Reserve(ctx, tx, adjustments); err != nil {
		return nil, err
	}
	if err := s.repo.AppendHistory(ctx, tx, &domain.OrderStatusHistory{
		ID:             s.genID.Generate(),
		OrderID:        order.ID,
		PreviousStatus: domain.StatusPending,
		NewStatus:      domain.StatusPending,
		ChangedBy:      draft.userID,
		ChangedAt:      now,
	}); err != nil {
		return nil, err
	}
	return order, nil
}

// nextOrderNumber derives the day's next sequence slot from a count of
// today's numbers. Two racing transactions can compute the same slot; the
// unique index fails one and the caller retries.
func (s *Service) nextOrderNumber(ctx context.Context, tx *gorm.DB) (string, error) {
	day := s.clock.Now().Format("20060102")
	prefix := fmt.Sprintf("%s-%s-", s.prefix, day)
	count, err := s.repo.CountByNumberPrefix(ctx, tx, prefix)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%04d", prefix, count+1), nil
}

func (s *Service) withNumberRetry(create func() error) error {
	var err error
	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		err = create()
		if err == nil || !db.IsDuplicateKeyErr(err) {
			return err
		}
		s.log.Warn("order number collision, retrying", zap.Int("attempt", attempt+1))
	}
	return domain.ErrDuplicateOrderNumber
}

func validateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return domain.ErrInvalidEmail
	}
	return nil
}

func visibleTo(order *domain.Order, userID *snowflake.ID) bool {
	if userID == nil {
		return true
	}
	return order.UserID != nil && *order.UserID == *userID
}

func releaseAdjustments(items []domain.OrderItem) []inventorydomain.Adjustment {
	adjustments := make([]inventorydomain.Adjustment, 0, len(items))
	for _, item := range items {
		adjustments = append(adjustments, inventorydomain.Adjustment{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
		})
	}
	return adjustments
}
