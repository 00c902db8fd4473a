package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/supportdesk/ticketflow/internal/config"
)

// SQLiteDSN builds the connection string for path. Every connection waits
// busyTimeoutMS on a locked database, runs in WAL mode, and opens write
// transactions with BEGIN IMMEDIATE so lock conflicts surface at BEGIN.
func SQLiteDSN(path string, busyTimeoutMS int) string {
	return fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)&_txlock=immediate",
		filepath.Clean(path), busyTimeoutMS)
}

// NewSQLite opens the database at cfg.Path and applies migrations.
func NewSQLite(ctx context.Context, cfg config.SQLiteConfig, logger *zap.Logger) (*sql.DB, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	db, err := sql.Open("sqlite", SQLiteDSN(cfg.Path, cfg.BusyTimeoutMS))
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := RunSQLiteMigrations(ctx, db, logger); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	logger.Info("opened sqlite database", zap.String("path", cfg.Path))
	return db, nil
}
