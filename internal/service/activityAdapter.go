package service

import (
	"context"
	"strconv"
	"time"

	repository "github.com/ds124wfegd/openmic-lineup/internal/database/postgres"
	"github.com/ds124wfegd/openmic-lineup/internal/entity"
	"github.com/ds124wfegd/openmic-lineup/pkg/kafka"

	"github.com/sirupsen/logrus"
)

// ActivityRecord is one message on the lineup activity topic.
type ActivityRecord struct {
	entity.Envelope
	OccurredAt time.Time `json:"occurred_at"`
}

// KafkaActivityPublisher mirrors broadcasts to Kafka keyed by event id so
// one event's history stays in one partition.
type KafkaActivityPublisher struct {
	producer kafka.Producer
}

func NewKafkaActivityPublisher(producer kafka.Producer) *KafkaActivityPublisher {
	return &KafkaActivityPublisher{producer: producer}
}

func (p *KafkaActivityPublisher) Publish(ctx context.Context, env entity.Envelope) {
	if p.producer == nil {
		return
	}

	key := "global"
	if env.EventID != nil {
		key = strconv.FormatInt(*env.EventID, 10)
	}

	record := ActivityRecord{Envelope: env, OccurredAt: time.Now().UTC()}
	if err := p.producer.SendMessage(ctx, key, record); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"key":  key,
			"type": env.Type,
		}).Warn("Failed to publish lineup activity")
	}
}

// UserRecipients resolves Telegram chats for the delivery task handler.
type UserRecipients struct {
	users repository.UserRepository
}

func NewUserRecipients(users repository.UserRepository) *UserRecipients {
	return &UserRecipients{users: users}
}

func (r *UserRecipients) TelegramChatID(ctx context.Context, userID int64) (string, error) {
	user, err := r.users.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	return user.TelegramID, nil
}
