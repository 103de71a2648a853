package db

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewGorm opens a gorm handle that borrows connections from pool. It is used
// for read-only reporting queries; writes go through pgx repositories.
func NewGorm(pool *pgxpool.Pool, debug bool) (*gorm.DB, error) {
	sqlDB := stdlib.OpenDBFromPool(pool)

	level := logger.Silent
	if debug {
		level = logger.Warn
	}

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:                 logger.Default.LogMode(level),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm: %w", err)
	}
	return gdb, nil
}
