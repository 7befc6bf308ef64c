// Package db opens the database, migrates the schema and seeds it.
package db

import (
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/diewo77/stockroom/internal/config"
)

const connectAttempts = 5

// Connect opens the configured database. Postgres gets a few retries to
// let the server come up.
func Connect(cfg config.DatabaseConfig, dev bool) (*gorm.DB, error) {
	gcfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}
	if dev {
		gcfg.Logger = logger.Default.LogMode(logger.Info)
	}

	switch cfg.Driver {
	case "sqlite":
		slog.Info("opening database", "driver", "sqlite", "path", cfg.DSN())
		db, err := gorm.Open(sqlite.Open(cfg.DSN()), gcfg)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return db, nil
	case "postgres":
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	slog.Info("connecting to database",
		"driver", "postgres", "host", cfg.Host, "port", cfg.Port, "dbname", cfg.DBName, "user", cfg.User)

	var db *gorm.DB
	var err error
	for i := 1; i <= connectAttempts; i++ {
		db, err = gorm.Open(postgres.Open(NormalizeDSN(cfg.DSN())), gcfg)
		if err == nil {
			return db, nil
		}
		slog.Warn("database connection failed", "attempt", i, "of", connectAttempts, "err", err)
		if i < connectAttempts {
			time.Sleep(2 * time.Second)
		}
	}
	return nil, fmt.Errorf("connect postgres: %w", err)
}
