package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/clearcite/integrity-engine/internal/config"
	"github.com/clearcite/integrity-engine/internal/platform/logger"
)

// Open connects per config. Postgres is the production driver; sqlite backs
// local development and the corpusctl seed tool.
func Open(cfg config.DBConfig, log *logger.Logger) (*gorm.DB, error) {
	gcfg := &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	}

	var (
		gdb *gorm.DB
		err error
	)
	switch cfg.Driver {
	case "postgres":
		gdb, err = gorm.Open(postgres.Open(cfg.DSN), gcfg)
	case "sqlite":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = "integrity.db"
		}
		gdb, err = gorm.Open(sqlite.Open(dsn), gcfg)
	default:
		return nil, fmt.Errorf("unknown db driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}

	log.Info("Connected to database", "driver", cfg.Driver)
	return gdb, nil
}
