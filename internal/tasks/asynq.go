package tasks

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/eugenenazirov/alx-travel/internal/config"
)

// AsynqDispatcher enqueues tasks on a redis broker. The payload is the same
// protocol v2 body the AMQP dispatcher sends.
type AsynqDispatcher struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	logger    *zap.Logger
	origin    string
}

// NewAsynqDispatcher creates the client. Redis is contacted lazily.
func NewAsynqDispatcher(cfg config.Celery, logger *zap.Logger) (*AsynqDispatcher, error) {
	opt, err := asynq.ParseRedisURI(cfg.BrokerURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis broker url: %w", err)
	}
	return &AsynqDispatcher{
		client:    asynq.NewClient(opt),
		inspector: asynq.NewInspector(opt),
		logger:    logger,
		origin:    defaultOrigin(),
	}, nil
}

// Send enqueues the task on the default queue under its own id.
func (d *AsynqDispatcher) Send(ctx context.Context, task Task) (string, error) {
	env, err := NewEnvelope(task, "", d.origin)
	if err != nil {
		return "", err
	}

	info, err := d.client.EnqueueContext(ctx, asynq.NewTask(task.Name, env.Body), enqueueOptions(env.ID, task)...)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue task %s: %w", task.Name, err)
	}

	d.logger.Debug("task enqueued", zap.String("task", task.Name), zap.String("id", info.ID), zap.String("queue", info.Queue))
	return info.ID, nil
}

func enqueueOptions(id string, task Task) []asynq.Option {
	opts := []asynq.Option{
		asynq.TaskID(id),
		asynq.Queue(defaultQueue),
	}
	switch {
	case task.MaxRetries > 0:
		opts = append(opts, asynq.MaxRetry(task.MaxRetries))
	case task.MaxRetries < 0:
		opts = append(opts, asynq.MaxRetry(0))
	}
	if task.ETA != nil {
		opts = append(opts, asynq.ProcessAt(*task.ETA))
	}
	if task.Expires != nil {
		opts = append(opts, asynq.Deadline(*task.Expires))
	}
	return opts
}

// Wait is unsupported: asynq results are not collected here.
func (d *AsynqDispatcher) Wait(context.Context, string) (Result, error) {
	return Result{}, ErrNoResultBackend
}

// PingContext lists queues to prove redis answers.
func (d *AsynqDispatcher) PingContext(context.Context) error {
	if _, err := d.inspector.Queues(); err != nil {
		return fmt.Errorf("redis broker: %w", err)
	}
	return nil
}

// Close releases the redis connections.
func (d *AsynqDispatcher) Close() error {
	if err := d.inspector.Close(); err != nil {
		d.logger.Warn("close asynq inspector", zap.Error(err))
	}
	return d.client.Close()
}
