package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/supportdesk/ticketflow/internal/repository"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the SQLite-backed repository.Store. Timestamps are stored as
// integer unix microseconds so the conditional update compares exact
// values.
type Store struct {
	db *sql.DB
}

var (
	_ repository.Store = (*Store)(nil)
	_ repository.Tx    = (*txScope)(nil)
)

// NewStore wraps an opened, migrated database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// WithinTx implements repository.Store. The DSN opens every transaction
// with BEGIN IMMEDIATE, so writers serialize on the database lock.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	if err := fn(ctx, &txScope{db: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// IsTransient implements repository.Store.
func (s *Store) IsTransient(err error) bool {
	return IsTransient(err)
}

// IsTransient reports SQLITE_BUSY and SQLITE_LOCKED, including their
// extended codes.
func IsTransient(err error) bool {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return false
}

func (s *Store) Tickets() repository.TicketReader         { return &ticketRepository{db: s.db} }
func (s *Store) Messages() repository.TicketMessageReader { return &ticketMessageRepository{db: s.db} }
func (s *Store) AuditLog() repository.AuditReader         { return &auditRepository{db: s.db} }
func (s *Store) Users() repository.UserDirectory          { return &userRepository{db: s.db} }

// Ping checks the database handle.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

type txScope struct {
	db dbtx
}

func (t *txScope) Tickets() repository.TicketRepository          { return &ticketRepository{db: t.db} }
func (t *txScope) Messages() repository.TicketMessageRepository { return &ticketMessageRepository{db: t.db} }
func (t *txScope) Audit() repository.AuditAppender               { return &auditRepository{db: t.db} }

func toMicros(t time.Time) int64 {
	return t.UTC().UnixMicro()
}

func fromMicros(v int64) time.Time {
	return time.UnixMicro(v).UTC()
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	return err
}
