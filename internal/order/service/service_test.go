package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	cartdomain "github.com/smallbiznis/herbcart/internal/cart/domain"
	cartrepository "github.com/smallbiznis/herbcart/internal/cart/repository"
	catalogdomain "github.com/smallbiznis/herbcart/internal/catalog/domain"
	catalogrepository "github.com/smallbiznis/herbcart/internal/catalog/repository"
	"github.com/smallbiznis/herbcart/internal/clock"
	"github.com/smallbiznis/herbcart/internal/config"
	inventoryservice "github.com/smallbiznis/herbcart/internal/inventory/service"
	"github.com/smallbiznis/herbcart/internal/order/domain"
	"github.com/smallbiznis/herbcart/internal/order/repository"
	"github.com/smallbiznis/herbcart/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testEnv struct {
	svc      domain.Service
	cartRepo cartdomain.Repository
	db       *gorm.DB
	node     *snowflake.Node
	clock    *clock.FakeClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dbConn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, dbConn.AutoMigrate(
		&catalogdomain.Product{},
		&catalogdomain.ProductVariant{},
		&catalogdomain.ProductImage{},
		&cartdomain.ShoppingSession{},
		&cartdomain.CartItem{},
		&domain.Order{},
		&domain.OrderItem{},
		&domain.OrderStatusHistory{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	cartRepo := cartrepository.Provide()
	svc := New(Params{
		DB:    dbConn,
		Log:   zap.NewNop(),
		Cfg: config.Config{
			OrderNumberPrefix: "HC",
			ShippingRatePerKg: decimal.NewFromInt(30),
		},
		GenID:     node,
		Clock:     fake,
		Repo:      repository.Provide(),
		Catalog:   catalogrepository.Provide(),
		CartRepo:  cartRepo,
		Inventory: inventoryservice.New(inventoryservice.Params{DB: dbConn, Log: zap.NewNop()}),
	})
	return &testEnv{svc: svc, cartRepo: cartRepo, db: dbConn, node: node, clock: fake}
}

func (e *testEnv) seedProduct(t *testing.T, price string, stock int) catalogdomain.Product {
	t.Helper()

	product := catalogdomain.Product{
		ID:                e.node.Generate(),
		Name:              "Echinacea Drops",
		Slug:              "echinacea-drops-" + e.node.Generate().String(),
		BasePrice:         decimal.RequireFromString(price),
		TrackInventory:    true,
		InventoryQuantity: stock,
		RequiresShipping:  true,
		IsActive:          true,
	}
	require.NoError(t, e.db.Create(&product).Error)
	return product
}

func (e *testEnv) seedCartItem(t *testing.T, userID snowflake.ID, product catalogdomain.Product, quantity int) {
	t.Helper()

	qty := decimal.NewFromInt(int64(quantity))
	item := cartdomain.CartItem{
		ID:         e.node.Generate(),
		UserID:     &userID,
		ProductID:  product.ID,
		Quantity:   quantity,
		UnitPrice:  product.BasePrice,
		TotalPrice: product.BasePrice.Mul(qty),
		AddedAt:    e.clock.Now(),
		UpdatedAt:  e.clock.Now(),
	}
	require.NoError(t, e.db.Create(&item).Error)
}

func (e *testEnv) stock(t *testing.T, productID snowflake.ID) int {
	t.Helper()

	var product catalogdomain.Product
	require.NoError(t, e.db.First(&product, "id = ?", productID).Error)
	return product.InventoryQuantity
}

func TestCreateFromCartSnapshotsAndReserves(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	userID := env.node.Generate()
	product := env.seedProduct(t, "100.00", 10)
	env.seedCartItem(t, userID, product, 3)

	order, err := env.svc.CreateFromCart(ctx, cartdomain.UserIdentity(userID), domain.CheckoutRequest{
		UserID:        &userID,
		CustomerEmail: "buyer@example.com",
	})
	require.NoError(t, err)

	assert.True(t, order.Subtotal.Equal(decimal.RequireFromString("300.00")), "subtotal %s", order.Subtotal)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 3, order.Items[0].Quantity)
	assert.True(t, order.Items[0].TotalPrice.Equal(decimal.RequireFromString("300.00")))
	assert.Equal(t, product.Name, order.Items[0].ProductName)
	assert.Equal(t, domain.StatusPending, order.Status)

	// 3 x 0.2kg default weight bills as one kilogram.
	assert.True(t, order.ShippingTotal.Equal(decimal.NewFromInt(30)), "shipping %s", order.ShippingTotal)
	assert.True(t, order.Total.Equal(decimal.RequireFromString("330.00")), "total %s", order.Total)

	assert.Equal(t, 7, env.stock(t, product.ID))

	items, err := env.cartRepo.ListItems(ctx, env.db, cartdomain.UserIdentity(userID))
	require.NoError(t, err)
	assert.Empty(t, items)

	expectedNumber := fmt.Sprintf("HC-%s-0001", env.clock.Now().Format("20060102"))
	assert.Equal(t, expectedNumber, order.OrderNumber)
}

func TestCreateFromCartEmptyCart(t *testing.T) {
	env := newTestEnv(t)

	userID := env.node.Generate()
	_, err := env.svc.CreateFromCart(context.Background(), cartdomain.UserIdentity(userID), domain.CheckoutRequest{
		CustomerEmail: "buyer@example.com",
	})
	assert.ErrorIs(t, err, domain.ErrEmptyCart)
}

func TestCreateFromCartInactiveProductFailsWhole(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	userID := env.node.Generate()
	good := env.seedProduct(t, "10.00", 10)
	bad := env.seedProduct(t, "20.00", 10)
	env.seedCartItem(t, userID, good, 1)
	env.seedCartItem(t, userID, bad, 1)

	require.NoError(t, env.db.Model(&catalogdomain.Product{}).Where("id = ?", bad.ID).Update("is_active", false).Error)

	_, err := env.svc.CreateFromCart(ctx, cartdomain.UserIdentity(userID), domain.CheckoutRequest{
		CustomerEmail: "buyer@example.com",
	})
	assert.ErrorIs(t, err, domain.ErrProductUnavailable)

	// Nothing moved: stock intact, cart intact, no order rows.
	assert.Equal(t, 10, env.stock(t, good.ID))
	items, err := env.cartRepo.ListItems(ctx, env.db, cartdomain.UserIdentity(userID))
	require.NoError(t, err)
	assert.Len(t, items, 2)

	var orders int64
	require.NoError(t, env.db.Model(&domain.Order{}).Count(&orders).Error)
	assert.Zero(t, orders)
}

func TestOrderNumberDailySequence(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	product := env.seedProduct(t, "10.00", 100)
	day := env.clock.Now().Format("20060102")

	for i := 1; i <= 3; i++ {
		order, err := env.svc.Create(ctx, domain.CreateRequest{
			CustomerEmail: "buyer@example.com",
			Lines:         []domain.Line{{ProductID: product.ID, Quantity: 1}},
		})
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("HC-%s-%04d", day, i), order.OrderNumber)
	}

	env.clock.Advance(24 * time.Hour)
	order, err := env.svc.Create(ctx, domain.CreateRequest{
		CustomerEmail: "buyer@example.com",
		Lines:         []domain.Line{{ProductID: product.ID, Quantity: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("HC-%s-0001", env.clock.Now().Format("20060102")), order.OrderNumber)
}

func TestCreateValidations(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	product := env.seedProduct(t, "10.00", 100)

	_, err := env.svc.Create(ctx, domain.CreateRequest{CustomerEmail: "buyer@example.com"})
	assert.ErrorIs(t, err, domain.ErrNoItems)

	_, err = env.svc.Create(ctx, domain.CreateRequest{
		CustomerEmail: "not-an-email",
		Lines:         []domain.Line{{ProductID: product.ID, Quantity: 1}},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)

	_, err = env.svc.Create(ctx, domain.CreateRequest{
		CustomerEmail: "buyer@example.com",
		Lines:         []domain.Line{{ProductID: product.ID, Quantity: 0}},
	})
	assert.ErrorIs(t, err, domain.ErrNoItems)
}

func TestCancelReleasesStockAndAppendsHistory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	userID := env.node.Generate()
	product := env.seedProduct(t, "100.00", 10)
	env.seedCartItem(t, userID, product, 3)

	order, err := env.svc.CreateFromCart(ctx, cartdomain.UserIdentity(userID), domain.CheckoutRequest{
		UserID:        &userID,
		CustomerEmail: "buyer@example.com",
	})
	require.NoError(t, err)
	require.Equal(t, 7, env.stock(t, product.ID))

	reason := "changed my mind"
	cancelled, err := env.svc.Cancel(ctx, &userID, order.ID, &reason)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.CancelledAt)
	assert.Equal(t, 10, env.stock(t, product.ID))

	history, err := env.svc.History(ctx, &userID, order.ID)
	require.NoError(t, err)
	require.NotEmpty(t, history)
	last := history[len(history)-1]
	assert.Equal(t, domain.StatusPending, last.PreviousStatus)
	assert.Equal(t, domain.StatusCancelled, last.NewStatus)

	// A cancelled order cannot be cancelled again.
	_, err = env.svc.Cancel(ctx, &userID, order.ID, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)
}

func TestCancelScopedToOwner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := env.node.Generate()
	stranger := env.node.Generate()
	product := env.seedProduct(t, "10.00", 10)
	env.seedCartItem(t, owner, product, 1)

	order, err := env.svc.CreateFromCart(ctx, cartdomain.UserIdentity(owner), domain.CheckoutRequest{
		UserID:        &owner,
		CustomerEmail: "buyer@example.com",
	})
	require.NoError(t, err)

	_, err = env.svc.Cancel(ctx, &stranger, order.ID, nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = env.svc.Get(ctx, &stranger, order.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	got, err := env.svc.Get(ctx, nil, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)
}

func TestAdminStatusTransitions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	product := env.seedProduct(t, "10.00", 10)

	order, err := env.svc.Create(ctx, domain.CreateRequest{
		CustomerEmail: "buyer@example.com",
		Lines:         []domain.Line{{ProductID: product.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	_, err = env.svc.AdminUpdateStatus(ctx, order.ID, domain.UpdateStatusRequest{Status: domain.StatusDelivered})
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)

	for _, status := range []domain.OrderStatus{domain.StatusConfirmed, domain.StatusProcessing} {
		_, err = env.svc.AdminUpdateStatus(ctx, order.ID, domain.UpdateStatusRequest{Status: status})
		require.NoError(t, err)
	}

	tracking := "TRK-1001"
	shipped, err := env.svc.AdminUpdateStatus(ctx, order.ID, domain.UpdateStatusRequest{
		Status:         domain.StatusShipped,
		TrackingNumber: &tracking,
	})
	require.NoError(t, err)
	assert.NotNil(t, shipped.ShippedAt)
	assert.Equal(t, &tracking, shipped.TrackingNumber)
	assert.Equal(t, domain.FulfillmentFulfilled, shipped.FulfillmentStatus)

	delivered, err := env.svc.AdminUpdateStatus(ctx, order.ID, domain.UpdateStatusRequest{Status: domain.StatusDelivered})
	require.NoError(t, err)
	assert.NotNil(t, delivered.DeliveredAt)

	refunded, err := env.svc.AdminUpdateStatus(ctx, order.ID, domain.UpdateStatusRequest{Status: domain.StatusRefunded})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentRefunded, refunded.PaymentStatus)

	history, err := env.svc.History(ctx, nil, order.ID)
	require.NoError(t, err)
	// Creation plus five transitions.
	assert.Len(t, history, 6)
}

func TestAdminCancelReleasesStock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	product := env.seedProduct(t, "10.00", 10)

	order, err := env.svc.Create(ctx, domain.CreateRequest{
		CustomerEmail: "buyer@example.com",
		Lines:         []domain.Line{{ProductID: product.ID, Quantity: 4}},
	})
	require.NoError(t, err)
	require.Equal(t, 6, env.stock(t, product.ID))

	_, err = env.svc.AdminUpdateStatus(ctx, order.ID, domain.UpdateStatusRequest{Status: domain.StatusCancelled})
	require.NoError(t, err)
	assert.Equal(t, 10, env.stock(t, product.ID))
}

func TestAdminListFiltersByStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	product := env.seedProduct(t, "10.00", 100)

	first, err := env.svc.Create(ctx, domain.CreateRequest{
		CustomerEmail: "buyer@example.com",
		Lines:         []domain.Line{{ProductID: product.ID, Quantity: 1}},
	})
	require.NoError(t, err)
	_, err = env.svc.Create(ctx, domain.CreateRequest{
		CustomerEmail: "buyer@example.com",
		Lines:         []domain.Line{{ProductID: product.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	_, err = env.svc.AdminUpdateStatus(ctx, first.ID, domain.UpdateStatusRequest{Status: domain.StatusConfirmed})
	require.NoError(t, err)

	confirmed := domain.StatusConfirmed
	orders, total, err := env.svc.AdminList(ctx, domain.ListFilter{Status: &confirmed})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, orders, 1)
	assert.Equal(t, first.ID, orders[0].ID)
}

func TestInsufficientStockFailsCreation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	product := env.seedProduct(t, "10.00", 2)

	_, err := env.svc.Create(ctx, domain.CreateRequest{
		CustomerEmail: "buyer@example.com",
		Lines:         []domain.Line{{ProductID: product.ID, Quantity: 3}},
	})
	assert.Error(t, err)
	assert.Equal(t, 2, env.stock(t, product.ID))

	var orders int64
	require.NoError(t, env.db.Model(&domain.Order{}).Count(&orders).Error)
	assert.Zero(t, orders)
}
