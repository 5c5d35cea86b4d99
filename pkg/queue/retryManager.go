package queue

import (
	"errors"
	"math/rand"
	"time"
)

// ErrPermanent marks a failure that retrying cannot fix.
var ErrPermanent = errors.New("permanent task failure")

// RetryManager decides whether and when a failed task runs again.
type RetryManager struct {
	baseDelay time.Duration
	maxDelay  time.Duration
	rnd       func(n int64) int64
}

func NewRetryManager(baseDelay time.Duration) *RetryManager {
	return &RetryManager{
		baseDelay: baseDelay,
		maxDelay:  baseDelay * 16,
		rnd:       rand.Int63n,
	}
}

// ShouldRetry determines if a task should be retried and returns the delay
func (r *RetryManager) ShouldRetry(task *Task, err error) (bool, time.Duration) {
	if err == nil || errors.Is(err, ErrPermanent) {
		return false, 0
	}
	if task.Attempts >= task.MaxRetries {
		return false, 0
	}
	return true, r.backoff(task.Attempts)
}

// backoff is base * 2^(attempt-1) with ±25% jitter, capped at maxDelay.
func (r *RetryManager) backoff(attempt int) time.Duration {
	if attempt <= 0 || r.baseDelay <= 0 {
		return r.baseDelay
	}

	delay := r.baseDelay << (attempt - 1)
	if delay <= 0 || delay > r.maxDelay {
		delay = r.maxDelay
	}

	quarter := int64(delay / 4)
	if quarter > 0 {
		delay += time.Duration(r.rnd(2*quarter+1) - quarter)
	}

	if delay > r.maxDelay {
		delay = r.maxDelay
	}
	return delay
}
