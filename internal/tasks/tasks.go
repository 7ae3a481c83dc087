// Package tasks publishes work to the task-queue broker named in the
// settings. AMQP brokers receive Celery protocol v2 JSON messages so existing
// Celery workers can consume them; redis brokers are served through asynq.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/eugenenazirov/alx-travel/internal/config"
)

var (
	// ErrNoBroker is returned when no broker URL is configured.
	ErrNoBroker = errors.New("task broker not configured")
	// ErrUnsupportedBroker is returned for broker URL schemes with no client.
	ErrUnsupportedBroker = errors.New("unsupported broker scheme")
	// ErrUnsupportedBackend is returned for result backends other than rpc://.
	ErrUnsupportedBackend = errors.New("unsupported result backend")
	// ErrUnsupportedSerializer is returned when content types other than JSON
	// are configured.
	ErrUnsupportedSerializer = errors.New("unsupported serializer")
	// ErrNoResultBackend is returned by Wait when results are not collected.
	ErrNoResultBackend = errors.New("no result backend")
	// ErrEmptyTaskName is returned when a task has no name.
	ErrEmptyTaskName = errors.New("task name is required")
	// ErrBrokerClosed is returned once the broker connection is gone.
	ErrBrokerClosed = errors.New("broker connection closed")
	// ErrTaskFailed wraps the traceback of a task that finished unsuccessfully.
	ErrTaskFailed = errors.New("task failed")
)

const (
	defaultQueue = "celery"
	rpcBackend   = "rpc://"
)

// Dispatcher sends tasks to the broker.
type Dispatcher interface {
	// Send publishes the task and returns its id.
	Send(ctx context.Context, task Task) (string, error)
	// Wait blocks until the task's final state arrives or ctx ends.
	Wait(ctx context.Context, taskID string) (Result, error)
	// PingContext reports whether the broker is reachable.
	PingContext(ctx context.Context) error
	Close() error
}

// New connects to the configured broker.
func New(cfg config.Celery, logger *zap.Logger) (Dispatcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	u, _ := url.Parse(cfg.BrokerURL)
	switch u.Scheme {
	case "amqp", "amqps":
		return NewAMQPDispatcher(cfg, logger)
	case "redis", "rediss":
		return NewAsynqDispatcher(cfg, logger)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedBroker, u.Scheme)
}

// Validate checks the task settings without contacting the broker.
func Validate(cfg config.Celery) error {
	if strings.TrimSpace(cfg.BrokerURL) == "" {
		return ErrNoBroker
	}
	u, err := url.Parse(cfg.BrokerURL)
	if err != nil {
		return fmt.Errorf("parse broker url: %w", err)
	}

	switch u.Scheme {
	case "amqp", "amqps":
		if cfg.ResultBackend != "" && cfg.ResultBackend != rpcBackend {
			return fmt.Errorf("%w: %q", ErrUnsupportedBackend, cfg.ResultBackend)
		}
	case "redis", "rediss":
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedBroker, u.Scheme)
	}

	for _, content := range cfg.AcceptContent {
		if !isJSON(content) {
			return fmt.Errorf("%w: accept content %q", ErrUnsupportedSerializer, content)
		}
	}
	if !isJSON(cfg.TaskSerializer) {
		return fmt.Errorf("%w: task serializer %q", ErrUnsupportedSerializer, cfg.TaskSerializer)
	}
	if !isJSON(cfg.ResultSerializer) {
		return fmt.Errorf("%w: result serializer %q", ErrUnsupportedSerializer, cfg.ResultSerializer)
	}
	return nil
}

func isJSON(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "json", contentTypeJSON:
		return true
	default:
		return false
	}
}
