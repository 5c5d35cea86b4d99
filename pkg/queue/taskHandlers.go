package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// TelegramBot sends a plain text message to a chat.
type TelegramBot interface {
	SendMessage(ctx context.Context, chatID, text string) error
}

// RecipientLookup resolves the Telegram chat of a user; empty means none linked.
type RecipientLookup interface {
	TelegramChatID(ctx context.Context, userID int64) (string, error)
}

// TaskHandler delivers notifications to channels outside the app.
type TaskHandler struct {
	recipients  RecipientLookup
	telegramBot TelegramBot
	timeout     time.Duration
}

func NewTaskHandler(recipients RecipientLookup, telegramBot TelegramBot) *TaskHandler {
	return &TaskHandler{
		recipients:  recipients,
		telegramBot: telegramBot,
		timeout:     10 * time.Second,
	}
}

func (h *TaskHandler) HandleTask(task *Task) error {
	switch task.Type {
	case TaskTypeDeliverNotification:
		return h.handleDeliverNotification(task)
	default:
		return fmt.Errorf("%w: unknown task type %q", ErrPermanent, task.Type)
	}
}

func (h *TaskHandler) handleDeliverNotification(task *Task) error {
	userID := task.GetInt64("user_id")
	message := task.GetString("message")
	if userID == 0 || message == "" {
		return fmt.Errorf("%w: task %s has no recipient or message", ErrPermanent, task.ID)
	}

	log := logrus.WithFields(logrus.Fields{
		"task_id":         task.ID,
		"user_id":         userID,
		"notification_id": task.GetInt64("notification_id"),
	})

	if h.telegramBot == nil {
		log.Debug("No external channel configured, skipping delivery")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	chatID, err := h.recipients.TelegramChatID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to resolve recipient %d: %w", userID, err)
	}
	if chatID == "" {
		log.Debug("Recipient has no linked Telegram chat")
		return nil
	}

	if err := h.telegramBot.SendMessage(ctx, chatID, message); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("telegram send timed out: %w", err)
		}
		return fmt.Errorf("telegram send failed: %w", err)
	}

	log.Info("Notification delivered to Telegram")
	return nil
}
