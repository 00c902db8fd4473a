package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/supportdesk/ticketflow/internal/repository"
)

// SQLSTATE codes that signal momentary contention.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
)

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the Postgres-backed repository.Store.
type Store struct {
	pool *pgxpool.Pool
}

var (
	_ repository.Store = (*Store)(nil)
	_ repository.Tx    = (*txScope)(nil)
)

// NewStore wraps an established pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// WithinTx runs fn inside a READ COMMITTED transaction. Conditional updates
// re-check their WHERE clause against the latest committed row, which is
// all the compare-and-swap writes need.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	pgTx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = pgTx.Rollback(ctx)
	}()

	if err := fn(ctx, &txScope{db: pgTx}); err != nil {
		return err
	}
	if err := pgTx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// IsTransient reports serialization failures, deadlocks, lock timeouts and
// connection errors raised before anything was sent.
func (s *Store) IsTransient(err error) bool {
	return IsTransient(err)
}

// IsTransient is the predicate behind Store.IsTransient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
			return true
		}
		return false
	}
	return pgconn.SafeToRetry(err)
}

func (s *Store) Tickets() repository.TicketReader         { return &ticketRepository{db: s.pool} }
func (s *Store) Messages() repository.TicketMessageReader { return &ticketMessageRepository{db: s.pool} }
func (s *Store) AuditLog() repository.AuditReader         { return &auditRepository{db: s.pool} }
func (s *Store) Users() repository.UserDirectory          { return &userRepository{db: s.pool} }

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

type txScope struct {
	db dbtx
}

func (t *txScope) Tickets() repository.TicketRepository          { return &ticketRepository{db: t.db} }
func (t *txScope) Messages() repository.TicketMessageRepository { return &ticketMessageRepository{db: t.db} }
func (t *txScope) Audit() repository.AuditAppender               { return &auditRepository{db: t.db} }

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	return err
}
