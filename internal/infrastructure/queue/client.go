package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"onboarding-backend/pkg/logger"
)

// Enqueuer is the part of *asynq.Client the producers use
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// NewClient connects an asynq producer to redis
func NewClient(redisAddr, password string, db int) *asynq.Client {
	return asynq.NewClient(asynq.RedisClientOpt{
		Addr:     redisAddr,
		Password: password,
		DB:       db,
	})
}

// Options describes how a task is enqueued
type Options struct {
	Queue    string
	MaxRetry int
	Timeout  time.Duration
}

// EnqueueJSON marshals payload and enqueues it as taskType
func EnqueueJSON(ctx context.Context, q Enqueuer, taskType string, payload interface{}, opts Options) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", taskType, err)
	}

	task := asynq.NewTask(taskType, data)
	info, err := q.EnqueueContext(
		ctx,
		task,
		asynq.Queue(opts.Queue),
		asynq.MaxRetry(opts.MaxRetry),
		asynq.Timeout(opts.Timeout),
	)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}

	if info != nil {
		logger.Debug("[Queue] task enqueued", map[string]interface{}{
			"type":  taskType,
			"id":    info.ID,
			"queue": info.Queue,
		})
	}
	return nil
}
