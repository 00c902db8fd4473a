package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

type fakeProber struct {
	pingErr error
	kind    string
	keys    []string
}

func (f *fakeProber) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", f.pingErr)
}

func (f *fakeProber) Type(_ context.Context, key string) *redis.StatusCmd {
	f.keys = append(f.keys, key)
	return redis.NewStatusResult(f.kind, nil)
}

func TestEventStreamPing(t *testing.T) {
	cases := []struct {
		name    string
		prober  *fakeProber
		wantErr string
	}{
		{"stream not created yet", &fakeProber{kind: "none"}, ""},
		{"existing stream", &fakeProber{kind: "stream"}, ""},
		{"wrong key type", &fakeProber{kind: "hash"}, "holds a hash"},
		{"server down", &fakeProber{pingErr: errors.New("connection refused")}, "connection refused"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			es := &EventStream{Stream: "ticketflow.events", probe: tc.prober}
			err := es.Ping(context.Background())
			if tc.wantErr == "" {
				assert.NoError(t, err)
				assert.Equal(t, []string{"ticketflow.events"}, tc.prober.keys)
				return
			}
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestEventStreamPingWithoutClient(t *testing.T) {
	var es *EventStream
	assert.Error(t, es.Ping(context.Background()))
	assert.NotPanics(t, es.Close)
}
