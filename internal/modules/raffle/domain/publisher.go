package domain

import "context"

// EventPublisher forwards committed events to an external bus.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}
