// Package persistence provides the durable, content-addressed embedding
// cache backed by SQLite.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open opens (creating if necessary) the SQLite database at path. A failure
// here is fatal at startup; the caller should not continue without a cache.
func Open(path string) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory %s: %w", dir, err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: slogGormLogger{},
	})
	if err != nil {
		return nil, fmt.Errorf("open cache database %s: %w", path, err)
	}
	return db, nil
}

// slogGormLogger adapts slog to GORM's logger.Interface so SQL activity is
// visible at debug level without a second logging pipeline.
type slogGormLogger struct{}

// LogMode is a no-op; level filtering is delegated to slog.
func (l slogGormLogger) LogMode(logger.LogLevel) logger.Interface { return l }

// Info logs informational messages from GORM.
func (l slogGormLogger) Info(_ context.Context, msg string, args ...any) {
	slog.Info(fmt.Sprintf(msg, args...))
}

// Warn logs warning messages from GORM.
func (l slogGormLogger) Warn(_ context.Context, msg string, args ...any) {
	slog.Warn(fmt.Sprintf(msg, args...))
}

// Error logs error messages from GORM.
func (l slogGormLogger) Error(_ context.Context, msg string, args ...any) {
	slog.Error(fmt.Sprintf(msg, args...))
}

// Trace logs SQL statements at debug level; ErrRecordNotFound is the normal
// "no rows" outcome and is not treated as an error.
func (l slogGormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		sql, _ := fc()
		slog.Error("sql failed", slog.String("sql", sql), slog.String("error", err.Error()))
		return
	}
	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	sql, rows := fc()
	slog.Debug("sql",
		slog.String("sql", sql),
		slog.Int64("rows", rows),
		slog.Duration("elapsed", time.Since(begin)),
	)
}
