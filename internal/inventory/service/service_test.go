package service

import (
	"context"
	"sync"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	catalogdomain "github.com/smallbiznis/herbcart/internal/catalog/domain"
	"github.com/smallbiznis/herbcart/internal/inventory/domain"
	"github.com/smallbiznis/herbcart/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (domain.Service, *gorm.DB, *snowflake.Node) {
	t.Helper()

	dbConn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, dbConn.AutoMigrate(&catalogdomain.Product{}, &catalogdomain.ProductVariant{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := New(Params{DB: dbConn, Log: zap.NewNop()})
	return svc, dbConn, node
}

func seedProduct(t *testing.T, dbConn *gorm.DB, node *snowflake.Node, tracked bool, quantity int) catalogdomain.Product {
	t.Helper()

	product := catalogdomain.Product{
		ID:                node.Generate(),
		Name:              "Lavender Oil",
		Slug:              "lavender-oil-" + node.Generate().String(),
		BasePrice:         decimal.RequireFromString("9.50"),
		TrackInventory:    tracked,
		InventoryQuantity: quantity,
		IsActive:          true,
	}
	require.NoError(t, dbConn.Create(&product).Error)
	return product
}

func seedVariant(t *testing.T, dbConn *gorm.DB, node *snowflake.Node, productID snowflake.ID, quantity int) catalogdomain.ProductVariant {
	t.Helper()

	variant := catalogdomain.ProductVariant{
		ID:                node.Generate(),
		ProductID:         productID,
		Title:             "10ml",
		Price:             decimal.RequireFromString("9.50"),
		InventoryQuantity: quantity,
		IsActive:          true,
	}
	require.NoError(t, dbConn.Create(&variant).Error)
	return variant
}

func productQuantity(t *testing.T, dbConn *gorm.DB, id snowflake.ID) int {
	t.Helper()

	var product catalogdomain.Product
	require.NoError(t, dbConn.First(&product, "id = ?", id).Error)
	return product.InventoryQuantity
}

func TestCheckAvailabilityOverAskNoMutation(t *testing.T) {
	svc, dbConn, node := newTestService(t)
	product := seedProduct(t, dbConn, node, true, 5)

	err := svc.CheckAvailability(context.Background(), dbConn, product.ID, nil, 6)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, 5, productQuantity(t, dbConn, product.ID))

	assert.NoError(t, svc.CheckAvailability(context.Background(), dbConn, product.ID, nil, 5))
}

func TestCheckAvailabilityInvalidQuantity(t *testing.T) {
	svc, dbConn, node := newTestService(t)
	product := seedProduct(t, dbConn, node, true, 5)

	err := svc.CheckAvailability(context.Background(), dbConn, product.ID, nil, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
}

func TestReserveReleaseRoundTrip(t *testing.T) {
	svc, dbConn, node := newTestService(t)
	product := seedProduct(t, dbConn, node, true, 10)

	adjustments := []domain.Adjustment{{ProductID: product.ID, Quantity: 3}}
	require.NoError(t, svc.Reserve(context.Background(), dbConn, adjustments))
	assert.Equal(t, 7, productQuantity(t, dbConn, product.ID))

	require.NoError(t, svc.Release(context.Background(), dbConn, adjustments))
	assert.Equal(t, 10, productQuantity(t, dbConn, product.ID))
}

func TestReserveInsufficientFails(t *testing.T) {
	svc, dbConn, node := newTestService(t)
	product := seedProduct(t, dbConn, node, true, 2)

	err := svc.Reserve(context.Background(), dbConn, []domain.Adjustment{{ProductID: product.ID, Quantity: 3}})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, 2, productQuantity(t, dbConn, product.ID))
}

func TestReserveNeverDrivesStockNegative(t *testing.T) {
	svc, dbConn, node := newTestService(t)
	product := seedProduct(t, dbConn, node, true, 5)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := svc.Reserve(context.Background(), dbConn, []domain.Adjustment{{ProductID: product.ID, Quantity: 1}})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, succeeded)
	assert.Equal(t, 0, productQuantity(t, dbConn, product.ID))
}

func TestReserveUntrackedProductUnlimited(t *testing.T) {
	svc, dbConn, node := newTestService(t)
	product := seedProduct(t, dbConn, node, false, 0)

	require.NoError(t, svc.CheckAvailability(context.Background(), dbConn, product.ID, nil, 100))
	require.NoError(t, svc.Reserve(context.Background(), dbConn, []domain.Adjustment{{ProductID: product.ID, Quantity: 100}}))
	assert.Equal(t, 0, productQuantity(t, dbConn, product.ID))
}

// A variant's own count gates the variant even when the parent product
// does not track inventory.
func TestVariantCountTakesPrecedence(t *testing.T) {
	svc, dbConn, node := newTestService(t)
	product := seedProduct(t, dbConn, node, false, 0)
	variant := seedVariant(t, dbConn, node, product.ID, 2)

	err := svc.CheckAvailability(context.Background(), dbConn, product.ID, &variant.ID, 3)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	require.NoError(t, svc.Reserve(context.Background(), dbConn, []domain.Adjustment{
		{ProductID: product.ID, VariantID: &variant.ID, Quantity: 2},
	}))

	var got catalogdomain.ProductVariant
	require.NoError(t, dbConn.First(&got, "id = ?", variant.ID).Error)
	assert.Equal(t, 0, got.InventoryQuantity)
}

func TestReserveUnknownProduct(t *testing.T) {
	svc, dbConn, node := newTestService(t)

	err := svc.Reserve(context.Background(), dbConn, []domain.Adjustment{{ProductID: node.Generate(), Quantity: 1}})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
