// Package mq fans activity log entries out to a message broker.
package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/programhub/apiserver/config"
	"github.com/programhub/apiserver/types"
)

const (
	BrokerNone     = "none"
	BrokerRabbitMQ = "rabbitmq"
	BrokerPubSub   = "pubsub"

	attrEvent   = "event"
	attrLogType = "type"

	eventActivityRecorded = "activity.recorded"
)

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. Return an error to signal a retry/nack.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// NewBackend connects to the broker selected by cfg. It returns a nil
// backend when no broker is configured.
func NewBackend(ctx context.Context, cfg config.BrokerConfig) (Backend, error) {
	switch cfg.Kind {
	case "", BrokerNone:
		return nil, nil
	case BrokerRabbitMQ:
		client, err := NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, err
		}
		return client, nil
	case BrokerPubSub:
		client, err := NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown broker %q", cfg.Kind)
	}
}

// ActivityFeed publishes and consumes activity log entries on one topic.
type ActivityFeed struct {
	backend Backend
	topic   string
}

func NewActivityFeed(backend Backend, topic string) *ActivityFeed {
	return &ActivityFeed{backend: backend, topic: topic}
}

// PublishActivity sends entry to the feed topic.
func (f *ActivityFeed) PublishActivity(ctx context.Context, entry types.UpdateLog) error {
	data, err := json.Marshal(newActivityEvent(entry))
	if err != nil {
		return fmt.Errorf("encode activity: %w", err)
	}
	_, err = f.backend.Publish(ctx, f.topic, data, map[string]string{
		attrEvent:   eventActivityRecorded,
		attrLogType: string(entry.Type),
	})
	return err
}

// Watch delivers every entry published after the call until ctx is done.
// Messages that are not activity entries are acknowledged and skipped.
func (f *ActivityFeed) Watch(ctx context.Context, fn func(types.UpdateLog) error) error {
	err := f.backend.Subscribe(ctx, f.topic, func(ctx context.Context, msg Message) error {
		if msg.Attributes[attrEvent] != eventActivityRecorded {
			return nil
		}
		var event activityEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			return nil
		}
		return fn(event.entry())
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (f *ActivityFeed) Close() error {
	return f.backend.Close()
}

// activityEvent is the wire form of an entry. Unlike the API form it
// carries the acting user's id.
type activityEvent struct {
	ID        uuid.UUID       `json:"id"`
	Type      types.LogType   `json:"type"`
	Message   string          `json:"message"`
	UserID    uuid.UUID       `json:"userId"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

func newActivityEvent(entry types.UpdateLog) activityEvent {
	return activityEvent{
		ID:        entry.ID,
		Type:      entry.Type,
		Message:   entry.Message,
		UserID:    entry.UserID,
		Metadata:  entry.Metadata,
		CreatedAt: entry.CreatedAt,
	}
}

func (e activityEvent) entry() types.UpdateLog {
	return types.UpdateLog{
		ID:        e.ID,
		Type:      e.Type,
		Message:   e.Message,
		UserID:    e.UserID,
		Metadata:  e.Metadata,
		CreatedAt: e.CreatedAt,
	}
}
