package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	cartdomain "github.com/smallbiznis/herbcart/internal/cart/domain"
	catalogdomain "github.com/smallbiznis/herbcart/internal/catalog/domain"
	categorydomain "github.com/smallbiznis/herbcart/internal/category/domain"
	orderdomain "github.com/smallbiznis/herbcart/internal/order/domain"
	"gorm.io/gorm"
)

// RunMigrations applies the embedded SQL schema. Postgres only; other
// dialects go through AutoMigrate.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

// AutoMigrate is the non-postgres path, used for sqlite development and
// test databases.
func AutoMigrate(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&categorydomain.Category{},
		&catalogdomain.Product{},
		&catalogdomain.ProductVariant{},
		&catalogdomain.ProductImage{},
		&cartdomain.ShoppingSession{},
		&cartdomain.CartItem{},
		&orderdomain.Order{},
		&orderdomain.OrderItem{},
		&orderdomain.OrderStatusHistory{},
	)
}
