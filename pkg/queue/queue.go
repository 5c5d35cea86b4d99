package queue

import (
	"context"
)

// Handler processes one task; a non-nil error makes the task eligible for retry.
type Handler func(*Task) error

// Queue is implemented by RedisQueue and RabbitQueue.
type Queue interface {
	Publish(ctx context.Context, task *Task) error
	// Subscribe starts background consumers and returns immediately.
	Subscribe(ctx context.Context, handler Handler) error
	Close() error
}
