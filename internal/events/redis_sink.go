package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// streamAdder is the part of *redis.Client the sink uses.
type streamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisStreamSink appends committed events to a Redis stream.
type RedisStreamSink struct {
	client  streamAdder
	stream  string
	maxLen  int64
	timeout time.Duration
	logger  *zap.Logger
}

// DefaultStreamMaxLen approximately caps the stream length.
const DefaultStreamMaxLen = 100000

// DefaultPublishTimeout bounds one XADD.
const DefaultPublishTimeout = 500 * time.Millisecond

// SinkOption customizes a RedisStreamSink.
type SinkOption func(*RedisStreamSink)

// WithPublishTimeout overrides DefaultPublishTimeout. Non-positive values
// are ignored.
func WithPublishTimeout(d time.Duration) SinkOption {
	return func(s *RedisStreamSink) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewRedisStreamSink builds a sink writing to stream.
func NewRedisStreamSink(client streamAdder, stream string, logger *zap.Logger, opts ...SinkOption) *RedisStreamSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &RedisStreamSink{
		client:  client,
		stream:  stream,
		maxLen:  DefaultStreamMaxLen,
		timeout: DefaultPublishTimeout,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle is an EventHandler. The write outlives the caller's cancellation
// so a client disconnect right after commit does not drop the event.
func (s *RedisStreamSink) Handle(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", event.Type, err)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	id, err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: map[string]any{
			"event_id":   event.ID,
			"type":       string(event.Type),
			"ticket_id":  event.TicketID,
			"actor_id":   event.Actor.ID,
			"actor_role": string(event.Actor.Role),
			"timestamp":  event.Timestamp.Format(time.RFC3339Nano),
			"payload":    string(payload),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", s.stream, err)
	}

	s.logger.Debug("event published",
		zap.String("stream", s.stream),
		zap.String("entry_id", id),
		zap.String("event_type", string(event.Type)),
		zap.String("ticket_id", event.TicketID))
	return nil
}
