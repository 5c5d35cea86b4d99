package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

type RabbitQueueConfig struct {
	URL       string
	QueueName string
}

// RabbitQueue is a durable AMQP queue. Retries are republished through a
// per-delay TTL queue that dead-letters back into the main queue.
type RabbitQueue struct {
	conn         *amqp.Connection
	channel      *amqp.Channel
	queue        amqp.Queue
	config       RabbitQueueConfig
	retryManager *RetryManager
}

func NewRabbitQueue(cfg RabbitQueueConfig, retryManager *RetryManager) (*RabbitQueue, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	q, err := channel.QueueDeclare(
		cfg.QueueName, // name
		true,          // durable
		false,         // delete when unused
		false,         // exclusive
		false,         // no-wait
		amqp.Table{"x-queue-mode": "lazy"},
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	return &RabbitQueue{
		conn:         conn,
		channel:      channel,
		queue:        q,
		config:       cfg,
		retryManager: retryManager,
	}, nil
}

func (r *RabbitQueue) Publish(ctx context.Context, task *Task) error {
	if err := task.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}

	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	routingKey := r.queue.Name
	if delay := time.Until(task.ExecuteAt); !task.ExecuteAt.IsZero() && delay > 0 {
		routingKey, err = r.declareDelayQueue(delay)
		if err != nil {
			return err
		}
	}

	err = r.channel.PublishWithContext(
		ctx,
		"",         // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			MessageId:    task.ID,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish task: %w", err)
	}
	return nil
}

// declareDelayQueue returns a queue whose messages expire after delay and
// are dead-lettered into the main queue.
func (r *RabbitQueue) declareDelayQueue(delay time.Duration) (string, error) {
	name := fmt.Sprintf("%s.delay.%d", r.config.QueueName, delay.Milliseconds())

	_, err := r.channel.QueueDeclare(
		name,
		true,
		false,
		false,
		false,
		amqp.Table{
			"x-message-ttl":             delay.Milliseconds(),
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": r.config.QueueName,
			"x-expires":                 delay.Milliseconds() + 60000,
		},
	)
	if err != nil {
		return "", fmt.Errorf("failed to declare delay queue: %w", err)
	}
	return name, nil
}

func (r *RabbitQueue) Subscribe(ctx context.Context, handler Handler) error {
	if err := r.channel.Qos(1, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := r.channel.Consume(
		r.queue.Name, // queue
		"",           // consumer
		false,        // auto-ack
		false,        // exclusive
		false,        // no-local
		false,        // no-wait
		nil,          // args
	)
	if err != nil {
		return fmt.Errorf("failed to consume messages: %w", err)
	}

	go r.handleMessages(ctx, msgs, handler)
	logrus.WithField("queue", r.queue.Name).Info("RabbitMQ subscriber started")
	return nil
}

func (r *RabbitQueue) handleMessages(ctx context.Context, msgs <-chan amqp.Delivery, handler Handler) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			r.handleDelivery(ctx, msg, handler)
		}
	}
}

func (r *RabbitQueue) handleDelivery(ctx context.Context, msg amqp.Delivery, handler Handler) {
	var task Task
	if err := json.Unmarshal(msg.Body, &task); err != nil {
		logrus.WithError(err).Error("Dropping malformed task")
		_ = msg.Nack(false, false)
		return
	}

	task.Attempts++
	handlerErr := handler(&task)
	if handlerErr == nil {
		_ = msg.Ack(false)
		return
	}

	log := logrus.WithFields(logrus.Fields{"task_id": task.ID, "type": task.Type, "attempts": task.Attempts})

	if retry, delay := r.retryManager.ShouldRetry(&task, handlerErr); retry {
		task.ExecuteAt = time.Now().Add(delay)
		if err := r.Publish(ctx, &task); err != nil {
			log.WithError(err).Error("Failed to schedule retry")
			_ = msg.Nack(false, true)
			return
		}
		log.WithError(handlerErr).Warnf("Task failed, retrying in %v", delay)
		_ = msg.Ack(false)
		return
	}

	log.WithError(handlerErr).Error("Task failed permanently, dropping")
	_ = msg.Ack(false)
}

func (r *RabbitQueue) Close() error {
	var errs []error

	if r.channel != nil {
		if err := r.channel.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if r.conn != nil {
		if err := r.conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors while closing RabbitMQ: %v", errs)
	}
	return nil
}
