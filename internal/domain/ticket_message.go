package domain

import "time"

// TicketMessage captures one entry in a ticket thread. Messages are
// append-only: once created they are never updated or deleted.
type TicketMessage struct {
	ID         string
	TicketID   string
	AuthorID   string
	AuthorRole Role
	Content    string
	IsInternal bool
	CreatedAt  time.Time
}
