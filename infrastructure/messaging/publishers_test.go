package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"bobbin-backend/domain/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recorder struct {
	got []events.DomainEvent
	err error
}

func (r *recorder) Publish(ctx context.Context, e events.DomainEvent) error {
	return r.PublishBatch(ctx, []events.DomainEvent{e})
}

func (r *recorder) PublishBatch(_ context.Context, evts []events.DomainEvent) error {
	r.got = append(r.got, evts...)
	return r.err
}

func TestFanout(t *testing.T) {
	ctx := context.Background()
	evt := events.NewConversationCreated("c1", "alice", "Thread", time.Now())
	failing := &recorder{err: errors.New("bus down")}
	healthy := &recorder{}

	err := Fanout{failing, healthy}.Publish(ctx, evt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bus down")
	assert.Len(t, healthy.got, 1, "later sinks still receive the batch")

	require.NoError(t, Fanout{healthy}.PublishBatch(ctx, nil))
	assert.Len(t, healthy.got, 1)
}

func TestLogPublisher(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	p := NewLogPublisher(zap.New(core))

	require.NoError(t, p.PublishBatch(context.Background(), []events.DomainEvent{
		events.NewConversationCreated("c1", "alice", "Thread", time.Now()),
		events.NewConceptCreated("k1", "alice", "topic", "Raft", "user", time.Now()),
	}))

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "concept.created", logs.All()[1].ContextMap()["event_type"])
}
