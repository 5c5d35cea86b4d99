package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	defaultPollTimeout   = 5 * time.Second
	defaultDelayedTicker = time.Second
)

// RedisQueue keeps ready tasks in a list, delayed tasks in a sorted set
// scored by execution time, and exhausted tasks in a dead letter sorted set.
type RedisQueue struct {
	client          *redis.Client
	mainQueue       string
	delayedQueue    string
	processingQueue string
	dlq             string
	retryManager    *RetryManager
	pollTimeout     time.Duration

	stopOnce sync.Once
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// FailedTask is what lands in the dead letter queue.
type FailedTask struct {
	Task     *Task     `json:"task"`
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failed_at"`
}

func NewRedisQueue(client *redis.Client, name string, retryManager *RetryManager) *RedisQueue {
	return &RedisQueue{
		client:          client,
		mainQueue:       name,
		delayedQueue:    name + ":delayed",
		processingQueue: name + ":processing",
		dlq:             name + ":dlq",
		retryManager:    retryManager,
		pollTimeout:     defaultPollTimeout,
		stopChan:        make(chan struct{}),
	}
}

func (r *RedisQueue) Publish(ctx context.Context, task *Task) error {
	if task == nil {
		return fmt.Errorf("task cannot be nil")
	}
	if err := task.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}

	taskData, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	if !task.ExecuteAt.IsZero() && task.ExecuteAt.After(time.Now()) {
		err = r.client.ZAdd(ctx, r.delayedQueue, redis.Z{
			Score:  float64(task.ExecuteAt.UnixNano()) / 1e9,
			Member: taskData,
		}).Err()
		if err != nil {
			return fmt.Errorf("failed to publish delayed task: %w", err)
		}
		return nil
	}

	if err := r.client.LPush(ctx, r.mainQueue, taskData).Err(); err != nil {
		return fmt.Errorf("failed to publish task: %w", err)
	}
	return nil
}

func (r *RedisQueue) Subscribe(ctx context.Context, handler Handler) error {
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}

	r.wg.Add(2)
	go r.processDelayedTasks(ctx)
	go r.processMainQueue(ctx, handler)

	logrus.WithField("queue", r.mainQueue).Info("Redis queue subscriber started")
	return nil
}

func (r *RedisQueue) processMainQueue(ctx context.Context, handler Handler) {
	defer r.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopChan:
			return
		default:
			if err := r.processNext(ctx, handler); err != nil {
				logrus.WithError(err).Error("Error processing queue")
				time.Sleep(time.Second)
			}
		}
	}
}

func (r *RedisQueue) processNext(ctx context.Context, handler Handler) error {
	taskData, err := r.client.BLMove(ctx, r.mainQueue, r.processingQueue, "RIGHT", "LEFT", r.pollTimeout).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to move task to processing queue: %w", err)
	}

	defer func() {
		if err := r.client.LRem(ctx, r.processingQueue, 1, taskData).Err(); err != nil {
			logrus.WithError(err).Warn("Failed to remove task from processing queue")
		}
	}()

	var task Task
	if err := json.Unmarshal([]byte(taskData), &task); err != nil {
		r.moveToDLQ(ctx, &Task{ID: "unparseable", Data: map[string]interface{}{"raw": taskData}}, err)
		return nil
	}

	task.Attempts++
	handlerErr := handler(&task)
	if handlerErr == nil {
		return nil
	}

	log := logrus.WithFields(logrus.Fields{
		"task_id":  task.ID,
		"type":     task.Type,
		"attempts": task.Attempts,
	})

	if retry, delay := r.retryManager.ShouldRetry(&task, handlerErr); retry {
		task.ExecuteAt = time.Now().Add(delay)
		log.WithError(handlerErr).Warnf("Task failed, retrying in %v", delay)
		if err := r.Publish(ctx, &task); err != nil {
			r.moveToDLQ(ctx, &task, fmt.Errorf("requeue failed: %w (original: %v)", err, handlerErr))
		}
		return nil
	}

	log.WithError(handlerErr).Error("Task failed permanently")
	r.moveToDLQ(ctx, &task, handlerErr)
	return nil
}

func (r *RedisQueue) processDelayedTasks(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(defaultDelayedTicker)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopChan:
			return
		case <-ticker.C:
			if err := r.moveReadyDelayedTasks(ctx); err != nil {
				logrus.WithError(err).Error("Failed to process delayed tasks")
			}
		}
	}
}

func (r *RedisQueue) moveReadyDelayedTasks(ctx context.Context) error {
	now := strconv.FormatFloat(float64(time.Now().UnixNano())/1e9, 'f', 6, 64)

	tasks, err := r.client.ZRangeByScore(ctx, r.delayedQueue, &redis.ZRangeBy{Min: "0", Max: now}).Result()
	if err != nil {
		return fmt.Errorf("failed to get delayed tasks: %w", err)
	}
	if len(tasks) == 0 {
		return nil
	}

	pipe := r.client.TxPipeline()
	for _, taskData := range tasks {
		pipe.LPush(ctx, r.mainQueue, taskData)
		pipe.ZRem(ctx, r.delayedQueue, taskData)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to move delayed tasks: %w", err)
	}

	return nil
}

func (r *RedisQueue) moveToDLQ(ctx context.Context, task *Task, cause error) {
	failed, err := json.Marshal(FailedTask{Task: task, Error: cause.Error(), FailedAt: time.Now()})
	if err != nil {
		logrus.WithError(err).Error("Failed to marshal failed task")
		return
	}

	err = r.client.ZAdd(ctx, r.dlq, redis.Z{
		Score:  float64(time.Now().UnixNano()) / 1e9,
		Member: failed,
	}).Err()
	if err != nil {
		logrus.WithError(err).WithField("task_id", task.ID).Error("Failed to send task to DLQ")
	}
}

func (r *RedisQueue) Close() error {
	r.stopOnce.Do(func() { close(r.stopChan) })
	r.wg.Wait()
	return r.client.Close()
}
