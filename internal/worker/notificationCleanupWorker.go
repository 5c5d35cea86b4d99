package worker

import (
	"context"
	"time"

	"github.com/ds124wfegd/openmic-lineup/internal/service"

	"github.com/sirupsen/logrus"
)

// NotificationCleanupWorker periodically drops read notifications older than
// the retention window.
type NotificationCleanupWorker struct {
	notificationService service.NotificationService
	interval            time.Duration
	retention           time.Duration
}

func NewNotificationCleanupWorker(notificationService service.NotificationService, interval, retention time.Duration) *NotificationCleanupWorker {
	return &NotificationCleanupWorker{
		notificationService: notificationService,
		interval:            interval,
		retention:           retention,
	}
}

// Start blocks until ctx is done.
func (w *NotificationCleanupWorker) Start(ctx context.Context) {
	if w.interval <= 0 || w.retention <= 0 {
		logrus.Info("Notification cleanup worker disabled")
		return
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	logrus.WithFields(logrus.Fields{
		"interval":  w.interval.String(),
		"retention": w.retention.String(),
	}).Info("Notification cleanup worker started")

	for {
		select {
		case <-ctx.Done():
			logrus.Info("Notification cleanup worker stopped")
			return
		case <-ticker.C:
			w.cleanup(ctx)
		}
	}
}

func (w *NotificationCleanupWorker) cleanup(ctx context.Context) {
	deleted, err := w.notificationService.PurgeRead(ctx, w.retention)
	if err != nil {
		logrus.Errorf("Failed to purge read notifications: %v", err)
		return
	}

	if deleted == 0 {
		logrus.Debug("No read notifications to purge")
		return
	}
	logrus.Infof("Purged %d read notifications", deleted)
}
