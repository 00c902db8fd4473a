package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/supportdesk/ticketflow/internal/domain"
	"github.com/supportdesk/ticketflow/internal/repository"
)

// ErrBusy is the transient error the store reports for injected faults.
var ErrBusy = errors.New("memory store busy")

// Store keeps records in process memory. Transactions are serialized by a
// single store lock and stage their writes until commit, so a conditional
// update observes every previously committed write.
type Store struct {
	mu       sync.RWMutex
	tickets  map[string]domain.Ticket
	messages []domain.TicketMessage
	audit    []domain.AuditLogEntry
	users    map[string]domain.DirectoryUser
	faults   int
}

var _ repository.Store = (*Store)(nil)

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		tickets: make(map[string]domain.Ticket),
		users:   make(map[string]domain.DirectoryUser),
	}
}

// PutUser registers a directory account.
func (s *Store) PutUser(user domain.DirectoryUser) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
}

// FailNextCommits makes the next n commits fail with ErrBusy after the unit
// of work ran, discarding its staged writes.
func (s *Store) FailNextCommits(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = n
}

// WithinTx implements repository.Store.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{store: s, staged: make(map[string]domain.Ticket)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if s.faults > 0 {
		s.faults--
		return ErrBusy
	}
	for id, ticket := range tx.staged {
		s.tickets[id] = ticket
	}
	s.messages = append(s.messages, tx.messages...)
	s.audit = append(s.audit, tx.audit...)
	return nil
}

// IsTransient implements repository.Store.
func (s *Store) IsTransient(err error) bool {
	return errors.Is(err, ErrBusy)
}

func (s *Store) Tickets() repository.TicketReader         { return ticketReader{s} }
func (s *Store) Messages() repository.TicketMessageReader { return messageReader{s} }
func (s *Store) AuditLog() repository.AuditReader         { return auditReader{s} }
func (s *Store) Users() repository.UserDirectory          { return userDirectory{s} }

// Ping implements repository.Store.
func (s *Store) Ping(context.Context) error { return nil }

// Close implements repository.Store.
func (s *Store) Close() error { return nil }

type memTx struct {
	store    *Store
	staged   map[string]domain.Ticket
	messages []domain.TicketMessage
	audit    []domain.AuditLogEntry
}

func (tx *memTx) Tickets() repository.TicketRepository          { return txTickets{tx} }
func (tx *memTx) Messages() repository.TicketMessageRepository { return txMessages{tx} }
func (tx *memTx) Audit() repository.AuditAppender               { return txAudit{tx} }

func (tx *memTx) lookup(id string) (domain.Ticket, bool) {
	if ticket, ok := tx.staged[id]; ok {
		return ticket, true
	}
	ticket, ok := tx.store.tickets[id]
	return ticket, ok
}

type txTickets struct{ tx *memTx }

func (r txTickets) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	ticket, ok := r.tx.lookup(id)
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := ticket.Clone()
	return &out, nil
}

func (r txTickets) Create(_ context.Context, ticket *domain.Ticket) error {
	if _, exists := r.tx.lookup(ticket.ID); exists {
		return fmt.Errorf("ticket %s already exists", ticket.ID)
	}
	r.tx.staged[ticket.ID] = ticket.Clone()
	return nil
}

func (r txTickets) UpdateIf(_ context.Context, cond repository.TicketCondition, patch repository.TicketPatch) (int64, error) {
	current, ok := r.tx.lookup(cond.ID)
	if !ok || !cond.Matches(current) {
		return 0, nil
	}
	r.tx.staged[cond.ID] = patch.Apply(current)
	return 1, nil
}

type txMessages struct{ tx *memTx }

func (r txMessages) Create(_ context.Context, msg *domain.TicketMessage) error {
	if _, ok := r.tx.lookup(msg.TicketID); !ok {
		return fmt.Errorf("ticket %s does not exist", msg.TicketID)
	}
	r.tx.messages = append(r.tx.messages, *msg)
	return nil
}

type txAudit struct{ tx *memTx }

func (r txAudit) Append(_ context.Context, entry *domain.AuditLogEntry) error {
	normalized, err := normalizeMetadata(entry.Metadata)
	if err != nil {
		return err
	}
	stored := *entry
	stored.Metadata = normalized
	r.tx.audit = append(r.tx.audit, stored)
	return nil
}

// normalizeMetadata round-trips through JSON so reads look the same as
// from the SQL stores.
func normalizeMetadata(md domain.AuditMetadata) (domain.AuditMetadata, error) {
	raw, err := json.Marshal(md)
	if err != nil {
		return domain.AuditMetadata{}, fmt.Errorf("encode audit metadata: %w", err)
	}
	var out domain.AuditMetadata
	if err := json.Unmarshal(raw, &out); err != nil {
		return domain.AuditMetadata{}, fmt.Errorf("decode audit metadata: %w", err)
	}
	return out, nil
}

type ticketReader struct{ s *Store }

func (r ticketReader) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	ticket, ok := r.s.tickets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := ticket.Clone()
	return &out, nil
}

func (r ticketReader) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, int, error) {
	r.s.mu.RLock()
	matched := make([]domain.Ticket, 0)
	for _, ticket := range r.s.tickets {
		if matchesFilter(ticket, filter) {
			matched = append(matched, ticket.Clone())
		}
	}
	r.s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].UpdatedAt.Equal(matched[j].UpdatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
	})
	return page(matched, filter.Limit, filter.Offset), len(matched), nil
}

func matchesFilter(ticket domain.Ticket, filter repository.TicketFilter) bool {
	if filter.CustomerID != nil && ticket.CustomerID != *filter.CustomerID {
		return false
	}
	if filter.AssigneeID != nil && !ticket.IsAssignedTo(*filter.AssigneeID) {
		return false
	}
	if filter.Unassigned && ticket.AssigneeID != nil {
		return false
	}
	if filter.Status != nil && ticket.Status != *filter.Status {
		return false
	}
	return true
}

func page[T any](items []T, limit, offset int) []T {
	limit = repository.NormalizeLimit(limit)
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

type messageReader struct{ s *Store }

func (r messageReader) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketMessage, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var result []domain.TicketMessage
	for _, msg := range r.s.messages {
		if msg.TicketID == ticketID {
			result = append(result, msg)
		}
	}
	return result, nil
}

type auditReader struct{ s *Store }

func (r auditReader) List(_ context.Context, filter repository.AuditFilter) ([]domain.AuditLogEntry, int, error) {
	r.s.mu.RLock()
	matched := make([]domain.AuditLogEntry, 0)
	for _, entry := range r.s.audit {
		if filter.EntityType != nil && entry.EntityType != *filter.EntityType {
			continue
		}
		if filter.EntityID != nil && entry.EntityID != *filter.EntityID {
			continue
		}
		matched = append(matched, entry)
	}
	r.s.mu.RUnlock()
	return page(matched, filter.Limit, filter.Offset), len(matched), nil
}

type userDirectory struct{ s *Store }

func (r userDirectory) GetByID(_ context.Context, id string) (*domain.DirectoryUser, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	user, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &user, nil
}
