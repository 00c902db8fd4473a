package worker

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/supportdesk/ticketflow/internal/events"
)

// ErrQueueFull is returned when an event is dropped because the relay is
// saturated.
var ErrQueueFull = errors.New("event queue full")

// ErrQueueStopped is returned for events offered after Stop.
var ErrQueueStopped = errors.New("event queue stopped")

// EventQueue hands committed events to a slow sink on a background
// goroutine so request handlers never wait on it. Delivery is best-effort:
// a full buffer drops the event.
type EventQueue struct {
	sink   events.EventHandler
	logger *zap.Logger

	mu      sync.RWMutex
	stopped bool
	queue   chan events.Event
	done    chan struct{}
	once    sync.Once
}

// DefaultQueueSize is used when NewEventQueue gets a non-positive size.
const DefaultQueueSize = 1024

// NewEventQueue builds a queue in front of sink. Call Start before use.
func NewEventQueue(sink events.EventHandler, size int, logger *zap.Logger) *EventQueue {
	if logger == nil {
		logger = zap.NewNop()
	}
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &EventQueue{
		sink:   sink,
		logger: logger,
		queue:  make(chan events.Event, size),
		done:   make(chan struct{}),
	}
}

// Start launches the delivery goroutine.
func (q *EventQueue) Start() {
	go q.run()
}

func (q *EventQueue) run() {
	defer close(q.done)
	for event := range q.queue {
		if err := q.sink(context.Background(), event); err != nil {
			q.logger.Warn("event sink failed",
				zap.String("event_type", string(event.Type)),
				zap.String("ticket_id", event.TicketID),
				zap.Error(err))
		}
	}
}

// Handle is an events.EventHandler that enqueues without blocking.
func (q *EventQueue) Handle(_ context.Context, event events.Event) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.stopped {
		return ErrQueueStopped
	}
	select {
	case q.queue <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop refuses new events and waits until the buffered ones are delivered
// or ctx ends.
func (q *EventQueue) Stop(ctx context.Context) error {
	q.once.Do(func() {
		q.mu.Lock()
		q.stopped = true
		close(q.queue)
		q.mu.Unlock()
	})
	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		q.logger.Warn("event queue stopped before draining", zap.Int("pending", len(q.queue)))
		return ctx.Err()
	}
}
