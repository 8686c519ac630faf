// Package eventbus publishes workflow lifecycle events over watermill.
package eventbus

import (
	"context"

	"github.com/unearth4334/vast-api-sub001/pkg/events"
)

type Event interface {
	GetType() events.EventType
}

type EventHandler func(ctx context.Context, event any) error

type EventBus interface {
	Publish(ctx context.Context, key string, event Event) error
	Subscribe(ctx context.Context) error
	Handle(eventType events.EventType, handler EventHandler) error
	GenerateID() string
	Close() error
}
