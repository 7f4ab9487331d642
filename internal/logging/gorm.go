package logging

import (
	"log/slog"
	"time"

	gormlogger "gorm.io/gorm/logger"
)

// NewGormLogger reports failed and slow queries through logger. Missing
// rows are expected lookups and stay quiet.
func NewGormLogger(logger *slog.Logger) gormlogger.Interface {
	return gormlogger.NewSlogLogger(logger, gormlogger.Config{
		LogLevel:                  gormlogger.Warn,
		SlowThreshold:             time.Second,
		IgnoreRecordNotFoundError: true,
	})
}
