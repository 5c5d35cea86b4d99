package service

import (
	"context"

	"github.com/ds124wfegd/openmic-lineup/internal/entity"
	"github.com/ds124wfegd/openmic-lineup/pkg/queue"
)

// QueueAdapter turns persisted notifications into external delivery tasks.
type QueueAdapter struct {
	queue      queue.Queue
	maxRetries int
}

func NewQueueAdapter(q queue.Queue, maxRetries int) *QueueAdapter {
	return &QueueAdapter{queue: q, maxRetries: maxRetries}
}

func (a *QueueAdapter) Enqueue(ctx context.Context, n *entity.Notification) error {
	if a.queue == nil {
		return nil
	}

	task := queue.NewTask(queue.TaskTypeDeliverNotification, map[string]interface{}{
		"notification_id": n.ID,
		"user_id":         n.UserID,
		"type":            string(n.Type),
		"message":         n.Message,
	}, a.maxRetries)

	return a.queue.Publish(ctx, task)
}
