package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/snnyvrz/book-catalog/internal/config"
	"github.com/snnyvrz/book-catalog/internal/logging"
	"github.com/snnyvrz/book-catalog/internal/model"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	defaultMaxAttempts     = 10
	defaultDelayBetweenTry = 2 * time.Second
)

func dialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case config.DriverPostgres:
		return postgres.Open(dsn), nil
	case config.DriverMySQL:
		return mysql.Open(dsn), nil
	case config.DriverSQLite:
		return sqlite.Open(dsn), nil
	}
	return nil, fmt.Errorf("unsupported db driver %q", driver)
}

func open(ctx context.Context, driver, dsn string, gcfg *gorm.Config) (*gorm.DB, error) {
	d, err := dialector(driver, dsn)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(d, gcfg)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// ConnectWithRetry opens the configured database, retrying while the server
// is not ready. When the server reports that the database does not exist it
// is created once and the connection retried.
func ConnectWithRetry(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*gorm.DB, error) {
	attempts := cfg.DBConnectAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	delay := cfg.DBConnectDelay
	if delay <= 0 {
		delay = defaultDelayBetweenTry
	}

	gcfg := &gorm.Config{Logger: logging.NewGormLogger(logger)}
	bootstrapped := false

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		var db *gorm.DB
		db, err = open(ctx, cfg.DBDriver, cfg.DSN(), gcfg)
		if err == nil {
			if err := ConfigurePool(db, cfg); err != nil {
				return nil, err
			}
			logger.Info("database connected",
				slog.String("driver", cfg.DBDriver),
				slog.String("database", cfg.DBName),
			)
			return db, nil
		}

		if !bootstrapped && IsUnknownDatabase(err) {
			bootstrapped = true
			logger.Info("database missing, creating it", slog.String("database", cfg.DBName))
			if berr := EnsureDatabase(ctx, cfg); berr != nil {
				err = berr
			} else {
				continue
			}
		}

		logger.Warn("db not ready",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", attempts),
			slog.Any("error", err),
		)

		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, fmt.Errorf("could not connect to db after %d attempts: %w", attempts, err)
}

// ConfigurePool bounds the connection pool; requests beyond it queue.
func ConfigurePool(db *gorm.DB, cfg *config.Config) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
	return nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&model.Book{})
}

func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
