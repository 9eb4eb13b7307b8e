package store

import "context"

// EventStoreInterface is the cart journal: an append-only log of cart
// changes, each one published to Kafka when a producer is configured.
type EventStoreInterface interface {
	Append(ctx context.Context, aggregateID, aggregateType, eventType string, data any) (*Event, error)
	GetEvents(ctx context.Context, aggregateID string) ([]Event, error)
	GetAllEvents(ctx context.Context) ([]Event, error)
}

// Publisher sends a journal event downstream.
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}
