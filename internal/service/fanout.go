package service

import (
	"context"

	"github.com/ds124wfegd/openmic-lineup/internal/entity"

	"github.com/sirupsen/logrus"
)

// fanout sends an envelope to every live viewer and mirrors it to the
// activity stream. Either side may be nil.
type fanout struct {
	hub      Broadcaster
	activity ActivityPublisher
}

func (f fanout) toAll(ctx context.Context, env entity.Envelope) {
	if f.hub != nil {
		n := f.hub.BroadcastToAll(env)
		logrus.WithFields(logrus.Fields{
			"type":        env.Type,
			"action":      env.Action,
			"connections": n,
		}).Debug("Broadcast queued")
	}
	if f.activity != nil {
		f.activity.Publish(ctx, env)
	}
}

// notifyAndLog inspects a dispatch result and discards it after logging.
func notifyAndLog(ctx context.Context, notifier NotificationService, req NotificationRequest) {
	if notifier == nil {
		return
	}
	res := notifier.Notify(ctx, req)
	if res.Err != nil {
		logrus.WithError(res.Err).WithFields(logrus.Fields{
			"user_id":  req.RecipientID,
			"type":     req.Type,
			"event_id": derefInt64(req.EventID),
		}).Warn("Notification failed")
	}
}

func derefInt64(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}

func int64Ptr(v int64) *int64 {
	return &v
}
