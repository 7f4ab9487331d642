package db

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/snnyvrz/book-catalog/internal/config"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	mysqlUnknownDatabase = 1049
	pgInvalidCatalogName = "3D000"
	pgDuplicateDatabase  = "42P04"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_]{1,63}$`)

// IsUnknownDatabase reports whether err means the target database does not exist.
func IsUnknownDatabase(err error) bool {
	var myErr *gomysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlUnknownDatabase
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgInvalidCatalogName
	}

	return false
}

// EnsureDatabase creates the configured database on the server if needed.
func EnsureDatabase(ctx context.Context, cfg *config.Config) error {
	stmt, err := createDatabaseStatement(cfg.DBDriver, cfg.DBName)
	if err != nil {
		return err
	}
	if stmt == "" {
		return nil
	}

	server, err := open(ctx, cfg.DBDriver, cfg.ServerDSN(), &gorm.Config{
		Logger: gormlogger.Discard,
	})
	if err != nil {
		return fmt.Errorf("connect to db server: %w", err)
	}
	defer func() { _ = Close(server) }()

	if err := server.WithContext(ctx).Exec(stmt).Error; err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgDuplicateDatabase {
			return nil
		}
		return fmt.Errorf("create database: %w", err)
	}
	return nil
}

func createDatabaseStatement(driver, name string) (string, error) {
	if driver == config.DriverSQLite {
		return "", nil
	}
	if !identifierPattern.MatchString(name) {
		return "", fmt.Errorf("refusing to create database with name %q", name)
	}

	switch driver {
	case config.DriverMySQL:
		return "CREATE DATABASE IF NOT EXISTS `" + name + "` CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci", nil
	case config.DriverPostgres:
		return `CREATE DATABASE "` + name + `"`, nil
	}
	return "", fmt.Errorf("unsupported db driver %q", driver)
}
