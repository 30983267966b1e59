package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Priya8975/billing-reconciler/internal/store"
)

const RetryQueueKey = "reconcile_retry_queue"

// RetryJob represents one recorded-but-unprocessed event scheduled for
// another reconcile attempt.
type RetryJob struct {
	JobID      string `json:"job_id"`
	EventID    string `json:"event_id"`
	Attempt    int    `json:"attempt"`
	MaxRetries int    `json:"max_retries"`
}

// RetryQueue schedules failed reconcile attempts in a Redis sorted set,
// scored by the time the next attempt becomes due.
type RetryQueue struct {
	redisStore *store.RedisStore
	logger     *slog.Logger
}

func NewRetryQueue(rs *store.RedisStore, logger *slog.Logger) *RetryQueue {
	return &RetryQueue{
		redisStore: rs,
		logger:     logger,
	}
}

// Enqueue schedules a retry for the given event at the given time. The job
// carries its own unique id so identical retries of the same event never
// collapse into one sorted-set member with a clobbered score.
func (q *RetryQueue) Enqueue(ctx context.Context, job RetryJob, at time.Time) error {
	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}

	jobBytes, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshaling retry job: %w", err)
	}

	err = q.redisStore.Client().ZAdd(ctx, RetryQueueKey, redis.Z{
		Score:  float64(at.UnixMicro()),
		Member: string(jobBytes),
	}).Err()
	if err != nil {
		return fmt.Errorf("queuing retry to redis: %w", err)
	}

	q.logger.Info("retry scheduled",
		"event_id", job.EventID,
		"attempt", job.Attempt,
		"at", at.Format(time.RFC3339),
	)

	return nil
}

// Depth returns the current number of jobs waiting in the retry queue.
func (q *RetryQueue) Depth(ctx context.Context) (int64, error) {
	return q.redisStore.Client().ZCard(ctx, RetryQueueKey).Result()
}
