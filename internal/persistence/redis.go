package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/supportdesk/ticketflow/internal/config"
)

// streamProber is the part of *redis.Client the readiness check uses.
type streamProber interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Type(ctx context.Context, key string) *redis.StatusCmd
}

// EventStream is the Redis connection that carries the workflow event
// stream.
type EventStream struct {
	Client *redis.Client
	Stream string
	probe  streamProber
}

// NewEventStream connects to Redis for stream. An unreachable server is
// logged, not fatal: events are best-effort.
func NewEventStream(ctx context.Context, cfg config.RedisConfig, stream string, logger *zap.Logger) *EventStream {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	es := &EventStream{Client: client, Stream: stream, probe: client}

	if err := es.Ping(ctx); err != nil {
		logger.Warn("event stream unavailable", zap.String("addr", cfg.Addr), zap.String("stream", stream), zap.Error(err))
	} else {
		logger.Info("event stream ready", zap.String("addr", cfg.Addr), zap.String("stream", stream))
	}
	return es
}

// Close closes the client.
func (e *EventStream) Close() {
	if e != nil && e.Client != nil {
		_ = e.Client.Close()
	}
}

// Ping checks that Redis answers and that the stream key is either absent
// or holds a stream, so XADD will not fail with WRONGTYPE.
func (e *EventStream) Ping(ctx context.Context) error {
	if e == nil || e.probe == nil {
		return errors.New("event stream not configured")
	}
	if err := e.probe.Ping(ctx).Err(); err != nil {
		return err
	}
	kind, err := e.probe.Type(ctx, e.Stream).Result()
	if err != nil {
		return err
	}
	switch kind {
	case "none", "stream":
		return nil
	default:
		return fmt.Errorf("key %q holds a %s, not a stream", e.Stream, kind)
	}
}
