package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/herbcart/internal/cart/domain"
	"github.com/smallbiznis/herbcart/internal/cart/repository"
	catalogdomain "github.com/smallbiznis/herbcart/internal/catalog/domain"
	catalogrepository "github.com/smallbiznis/herbcart/internal/catalog/repository"
	"github.com/smallbiznis/herbcart/internal/clock"
	"github.com/smallbiznis/herbcart/internal/config"
	inventoryservice "github.com/smallbiznis/herbcart/internal/inventory/service"
	"github.com/smallbiznis/herbcart/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testEnv struct {
	svc   domain.Service
	db    *gorm.DB
	node  *snowflake.Node
	clock *clock.FakeClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dbConn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, dbConn.AutoMigrate(
		&catalogdomain.Product{},
		&catalogdomain.ProductVariant{},
		&catalogdomain.ProductImage{},
		&domain.ShoppingSession{},
		&domain.CartItem{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	catalogRepo := catalogrepository.Provide()
	inventorySvc := inventoryservice.New(inventoryservice.Params{DB: dbConn, Log: zap.NewNop()})

	svc := New(Params{
		DB:    dbConn,
		Log:   zap.NewNop(),
		Cfg: config.Config{
			SessionTTLDays:    7,
			ShippingRatePerKg: decimal.NewFromInt(30),
		},
		GenID:     node,
		Clock:     fake,
		Repo:      repository.Provide(),
		Catalog:   catalogRepo,
		Inventory: inventorySvc,
	})
	return &testEnv{svc: svc, db: dbConn, node: node, clock: fake}
}

func (e *testEnv) seedProduct(t *testing.T, price string, stock int, weight *string) catalogdomain.Product {
	t.Helper()

	product := catalogdomain.Product{
		ID:                e.node.Generate(),
		Name:              "Peppermint Tea",
		Slug:              "peppermint-tea-" + e.node.Generate().String(),
		BasePrice:         decimal.RequireFromString(price),
		TrackInventory:    true,
		InventoryQuantity: stock,
		RequiresShipping:  true,
		IsActive:          true,
	}
	if weight != nil {
		w := decimal.RequireFromString(*weight)
		product.Weight = &w
	}
	require.NoError(t, e.db.Create(&product).Error)
	return product
}

func (e *testEnv) userIdentity() domain.Identity {
	return domain.UserIdentity(e.node.Generate())
}

func (e *testEnv) sessionIdentity(t *testing.T) domain.Identity {
	t.Helper()

	sess, created, err := e.svc.EnsureSession(context.Background(), "", nil, nil)
	require.NoError(t, err)
	require.True(t, created)
	return domain.SessionIdentity(sess.Token)
}

func TestEnsureSessionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sess, created, err := env.svc.EnsureSession(ctx, "", nil, nil)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, sess.ExpiresAt, sess.CreatedAt.Add(7*24*time.Hour))

	same, created, err := env.svc.EnsureSession(ctx, sess.Token, nil, nil)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, sess.Token, same.Token)

	env.clock.Advance(8 * 24 * time.Hour)
	fresh, created, err := env.svc.EnsureSession(ctx, sess.Token, nil, nil)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, sess.Token, fresh.Token)
}

func TestExpiredSessionCartUnreachable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	identity := env.sessionIdentity(t)
	product := env.seedProduct(t, "10.00", 10, nil)

	_, err := env.svc.AddItem(ctx, identity, domain.AddItemRequest{ProductID: product.ID, Quantity: 1})
	require.NoError(t, err)

	env.clock.Advance(8 * 24 * time.Hour)
	_, err = env.svc.GetCart(ctx, identity)
	assert.ErrorIs(t, err, domain.ErrSessionExpired)
}

func TestAddItemMergesExistingLine(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	identity := env.userIdentity()
	product := env.seedProduct(t, "10.00", 10, nil)

	_, err := env.svc.AddItem(ctx, identity, domain.AddItemRequest{ProductID: product.ID, Quantity: 2})
	require.NoError(t, err)
	item, err := env.svc.AddItem(ctx, identity, domain.AddItemRequest{ProductID: product.ID, Quantity: 3})
	require.NoError(t, err)

	assert.Equal(t, 5, item.Quantity)
	assert.True(t, item.TotalPrice.Equal(decimal.RequireFromString("50.00")))

	var count int64
	require.NoError(t, env.db.Model(&domain.CartItem{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestAddItemCombinedQuantityGatedByStock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	identity := env.userIdentity()
	product := env.seedProduct(t, "10.00", 4, nil)

	_, err := env.svc.AddItem(ctx, identity, domain.AddItemRequest{ProductID: product.ID, Quantity: 3})
	require.NoError(t, err)

	_, err = env.svc.AddItem(ctx, identity, domain.AddItemRequest{ProductID: product.ID, Quantity: 2})
	assert.Error(t, err)

	summary, err := env.svc.GetCart(ctx, identity)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.TotalItems)
}

func TestAddItemInactiveProduct(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	identity := env.userIdentity()
	product := env.seedProduct(t, "10.00", 10, nil)
	require.NoError(t, env.db.Model(&catalogdomain.Product{}).Where("id = ?", product.ID).Update("is_active", false).Error)

	_, err := env.svc.AddItem(ctx, identity, domain.AddItemRequest{ProductID: product.ID, Quantity: 1})
	assert.ErrorIs(t, err, domain.ErrProductUnavailable)
}

func TestUpdateItemToZeroRemoves(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	identity := env.userIdentity()
	product := env.seedProduct(t, "10.00", 10, nil)

	item, err := env.svc.AddItem(ctx, identity, domain.AddItemRequest{ProductID: product.ID, Quantity: 2})
	require.NoError(t, err)

	view, err := env.svc.UpdateItem(ctx, identity, item.ID, domain.UpdateItemRequest{Quantity: 0})
	require.NoError(t, err)
	assert.True(t, view.Removed)

	summary, err := env.svc.GetCart(ctx, identity)
	require.NoError(t, err)
	assert.Empty(t, summary.Items)
}

func TestUpdateItemRecapturesLivePrice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	identity := env.userIdentity()
	product := env.seedProduct(t, "100.00", 10, nil)

	item, err := env.svc.AddItem(ctx, identity, domain.AddItemRequest{ProductID: product.ID, Quantity: 1})
	require.NoError(t, err)
	assert.True(t, item.UnitPrice.Equal(decimal.RequireFromString("100.00")))

	require.NoError(t, env.db.Model(&catalogdomain.Product{}).
		Where("id = ?", product.ID).
		Update("base_price", "150.00").Error)

	view, err := env.svc.UpdateItem(ctx, identity, item.ID, domain.UpdateItemRequest{Quantity: 2})
	require.NoError(t, err)
	assert.True(t, view.UnitPrice.Equal(decimal.RequireFromString("150.00")), "unit %s", view.UnitPrice)
	assert.True(t, view.TotalPrice.Equal(decimal.RequireFromString("300.00")), "total %s", view.TotalPrice)
}

func TestMintingSessionSweepsExpiredRows(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	stale, created, err := env.svc.EnsureSession(ctx, "", nil, nil)
	require.NoError(t, err)
	require.True(t, created)

	env.clock.Advance(8 * 24 * time.Hour)
	fresh, created, err := env.svc.EnsureSession(ctx, stale.Token, nil, nil)
	require.NoError(t, err)
	require.True(t, created)
	require.NotEqual(t, stale.Token, fresh.Token)

	var tokens []string
	require.NoError(t, env.db.Model(&domain.ShoppingSession{}).Pluck("token", &tokens).Error)
	assert.Equal(t, []string{fresh.Token}, tokens)
}

func TestItemsScopedToIdentity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.userIdentity()
	bob := env.userIdentity()
	product := env.seedProduct(t, "10.00", 10, nil)

	item, err := env.svc.AddItem(ctx, alice, domain.AddItemRequest{ProductID: product.ID, Quantity: 1})
	require.NoError(t, err)

	err = env.svc.RemoveItem(ctx, bob, item.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMergeCombinesAndMoves(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	userID := env.node.Generate()
	user := domain.UserIdentity(userID)
	session := env.sessionIdentity(t)
	token, _ := session.SessionToken()

	productA := env.seedProduct(t, "10.00", 100, nil)
	productB := env.seedProduct(t, "5.00", 100, nil)

	_, err := env.svc.AddItem(ctx, session, domain.AddItemRequest{ProductID: productA.ID, Quantity: 2})
	require.NoError(t, err)
	_, err = env.svc.AddItem(ctx, session, domain.AddItemRequest{ProductID: productB.ID, Quantity: 1})
	require.NoError(t, err)
	_, err = env.svc.AddItem(ctx, user, domain.AddItemRequest{ProductID: productA.ID, Quantity: 3})
	require.NoError(t, err)

	require.NoError(t, env.svc.Merge(ctx, userID, token))

	summary, err := env.svc.GetCart(ctx, user)
	require.NoError(t, err)
	require.Len(t, summary.Items, 2)
	assert.Equal(t, 6, summary.TotalItems)

	byProduct := map[snowflake.ID]int{}
	for _, item := range summary.Items {
		byProduct[item.ProductID] = item.Quantity
	}
	assert.Equal(t, 5, byProduct[productA.ID])
	assert.Equal(t, 1, byProduct[productB.ID])

	var sessionRows int64
	require.NoError(t, env.db.Model(&domain.CartItem{}).Where("session_id = ?", token).Count(&sessionRows).Error)
	assert.Zero(t, sessionRows)

	// Merging a consumed session again is a no-op.
	require.NoError(t, env.svc.Merge(ctx, userID, token))
	summary, err = env.svc.GetCart(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 6, summary.TotalItems)
}

func TestValidateReportsProblems(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	identity := env.userIdentity()
	healthy := env.seedProduct(t, "10.00", 10, nil)
	doomed := env.seedProduct(t, "10.00", 10, nil)

	_, err := env.svc.AddItem(ctx, identity, domain.AddItemRequest{ProductID: healthy.ID, Quantity: 1})
	require.NoError(t, err)
	_, err = env.svc.AddItem(ctx, identity, domain.AddItemRequest{ProductID: doomed.ID, Quantity: 1})
	require.NoError(t, err)

	require.NoError(t, env.db.Model(&catalogdomain.Product{}).Where("id = ?", doomed.ID).Update("is_active", false).Error)

	result, err := env.svc.Validate(ctx, identity)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	require.Len(t, result.Problems, 1)
	assert.Equal(t, domain.ProblemProductUnavailable, result.Problems[0].Code)
	assert.Equal(t, doomed.ID, result.Problems[0].ProductID)
}

func TestEstimateShippingUsesDefaultWeight(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	identity := env.userIdentity()

	// No recorded weight: 3 x 0.2kg = 0.6kg, bills as one kilogram.
	product := env.seedProduct(t, "10.00", 10, nil)
	_, err := env.svc.AddItem(ctx, identity, domain.AddItemRequest{ProductID: product.ID, Quantity: 3})
	require.NoError(t, err)

	estimate, err := env.svc.EstimateShipping(ctx, identity)
	require.NoError(t, err)
	assert.True(t, estimate.Equal(decimal.NewFromInt(30)), "got %s", estimate)

	// Adding 1.5kg of recorded weight tips the total into the third
	// billable kilogram: 0.6 + 1.5 = 2.1 -> 3kg.
	heavyWeight := "1.5"
	heavy := env.seedProduct(t, "20.00", 10, &heavyWeight)
	_, err = env.svc.AddItem(ctx, identity, domain.AddItemRequest{ProductID: heavy.ID, Quantity: 1})
	require.NoError(t, err)

	estimate, err = env.svc.EstimateShipping(ctx, identity)
	require.NoError(t, err)
	assert.True(t, estimate.Equal(decimal.NewFromInt(90)), "got %s", estimate)
}
