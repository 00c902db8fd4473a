package persistence

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationFS embed.FS

const (
	postgresMigrationsDir = "migrations/postgres"
	sqliteMigrationsDir   = "migrations/sqlite"
	migrationTable        = "schema_migrations"
)

type migration struct {
	name string
	up   string
}

// RunMigrations applies the embedded Postgres migrations, each at most once.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	if pool == nil {
		logger.Warn("no postgres pool available; skipping migrations")
		return nil
	}

	migrations, err := loadMigrations(postgresMigrationsDir)
	if err != nil {
		return err
	}

	createSQL := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
        name TEXT PRIMARY KEY,
        applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
    )`, migrationTable)
	if _, err := pool.Exec(ctx, createSQL); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	applied := 0
	for _, m := range migrations {
		var exists bool
		if err := pool.QueryRow(ctx,
			fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE name=$1)`, migrationTable), m.name,
		).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %s: %w", m.name, err)
		}
		if exists {
			continue
		}

		logger.Info("applying migration", zap.String("file", m.name))
		tx, err := pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", m.name, err)
		}
		if _, err := tx.Exec(ctx, m.up); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("apply migration %s: %w", m.name, err)
		}
		if _, err := tx.Exec(ctx, fmt.Sprintf(`INSERT INTO %s (name) VALUES ($1)`, migrationTable), m.name); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("record migration %s: %w", m.name, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit migration %s: %w", m.name, err)
		}
		applied++
	}

	logger.Info("migrations applied", zap.Int("count", applied))
	return nil
}

// RunSQLiteMigrations applies the embedded SQLite migrations, each at most once.
func RunSQLiteMigrations(ctx context.Context, db *sql.DB, logger *zap.Logger) error {
	migrations, err := loadMigrations(sqliteMigrationsDir)
	if err != nil {
		return err
	}

	createSQL := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
        name TEXT PRIMARY KEY,
        applied_at INTEGER NOT NULL DEFAULT (strftime('%%s', 'now'))
    )`, migrationTable)
	if _, err := db.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	applied := 0
	for _, m := range migrations {
		var count int
		if err := db.QueryRowContext(ctx,
			fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE name=?`, migrationTable), m.name,
		).Scan(&count); err != nil {
			return fmt.Errorf("check migration %s: %w", m.name, err)
		}
		if count > 0 {
			continue
		}

		logger.Info("applying migration", zap.String("file", m.name))
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", m.name, err)
		}
		if _, err := tx.ExecContext(ctx, m.up); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %s: %w", m.name, err)
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`INSERT INTO %s (name) VALUES (?)`, migrationTable), m.name); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", m.name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", m.name, err)
		}
		applied++
	}

	logger.Info("migrations applied", zap.Int("count", applied))
	return nil
}

func loadMigrations(dir string) ([]migration, error) {
	entries, err := fs.ReadDir(migrationFS, dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	filenames := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		filenames = append(filenames, entry.Name())
	}
	sort.Strings(filenames)

	result := make([]migration, 0, len(filenames))
	for _, name := range filenames {
		content, err := fs.ReadFile(migrationFS, path.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		up := upSection(string(content))
		if strings.TrimSpace(up) == "" {
			continue
		}
		result = append(result, migration{name: name, up: up})
	}
	return result, nil
}

// upSection returns the SQL between the "-- +migrate Up" and
// "-- +migrate Down" markers, or the whole file when they are absent.
func upSection(content string) string {
	const upMarker, downMarker = "-- +migrate Up", "-- +migrate Down"
	start := strings.Index(content, upMarker)
	if start == -1 {
		return content
	}
	content = content[start+len(upMarker):]
	if end := strings.Index(content, downMarker); end != -1 {
		content = content[:end]
	}
	return content
}
