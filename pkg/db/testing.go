package db

import (
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// NewTest opens an isolated in-memory sqlite database. The pool is capped
// at one connection so every query sees the same memory database.
func NewTest() (*gorm.DB, error) {
	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetMaxOpenConns(1)
	return conn, nil
}
