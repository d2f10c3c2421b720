package mq

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/programhub/apiserver/config"
	"github.com/programhub/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loopback delivers published messages to the subscriber of the same
// channel.
type loopback struct {
	mu       sync.Mutex
	messages chan Message
	channels []string
}

func newLoopback() *loopback {
	return &loopback{messages: make(chan Message, 16)}
}

func (l *loopback) Publish(_ context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	l.mu.Lock()
	l.channels = append(l.channels, channel)
	l.mu.Unlock()
	id := uuid.NewString()
	l.messages <- Message{ID: id, Data: data, Attributes: attrs}
	return id, nil
}

func (l *loopback) Subscribe(ctx context.Context, _ string, handler Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-l.messages:
			if err := handler(ctx, msg); err != nil {
				return err
			}
		}
	}
}

func (l *loopback) Close() error { return nil }

func TestActivityFeed_PublishAndWatch(t *testing.T) {
	backend := newLoopback()
	feed := NewActivityFeed(backend, "programhub.activity")

	entry := types.UpdateLog{
		ID:        uuid.New(),
		Type:      types.LogTypeAdmin,
		Message:   "Activated program setting dts-2026",
		UserID:    uuid.New(),
		Metadata:  []byte(`{"slug":"dts-2026"}`),
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, feed.PublishActivity(context.Background(), entry))
	_, err := backend.Publish(context.Background(), "programhub.activity", []byte("noise"), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var got []types.UpdateLog
	err = feed.Watch(ctx, func(e types.UpdateLog) error {
		got = append(got, e)
		cancel()
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, entry.ID, got[0].ID)
	assert.Equal(t, entry.UserID, got[0].UserID)
	assert.Equal(t, entry.Type, got[0].Type)
	assert.JSONEq(t, `{"slug":"dts-2026"}`, string(got[0].Metadata))
	assert.True(t, entry.CreatedAt.Equal(got[0].CreatedAt))
	assert.Equal(t, []string{"programhub.activity", "programhub.activity"}, backend.channels)
}

func TestNewBackend(t *testing.T) {
	backend, err := NewBackend(context.Background(), config.BrokerConfig{Kind: BrokerNone})
	require.NoError(t, err)
	assert.Nil(t, backend)

	_, err = NewBackend(context.Background(), config.BrokerConfig{Kind: "kafka"})
	assert.Error(t, err)

	_, err = NewBackend(context.Background(), config.BrokerConfig{Kind: BrokerRabbitMQ})
	assert.Error(t, err, "missing url")
}
