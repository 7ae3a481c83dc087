package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/eugenenazirov/alx-travel/internal/config"
)

// AMQPDispatcher publishes Celery messages to the default "celery" exchange
// and queue. With the rpc:// backend it also consumes a private reply queue.
type AMQPDispatcher struct {
	conn   *amqp.Connection
	logger *zap.Logger
	origin string

	// channels are not safe for concurrent publishing
	mu sync.Mutex
	ch *amqp.Channel

	replyTo string
	results *resultRouter
}

// NewAMQPDispatcher dials the broker and declares the topology.
func NewAMQPDispatcher(cfg config.Celery, logger *zap.Logger) (*AMQPDispatcher, error) {
	conn, err := amqp.Dial(cfg.BrokerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := declareTopology(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	d := &AMQPDispatcher{
		conn:   conn,
		ch:     ch,
		logger: logger,
		origin: defaultOrigin(),
	}

	if cfg.ResultBackend == rpcBackend {
		if err := d.consumeReplies(); err != nil {
			ch.Close()
			conn.Close()
			return nil, err
		}
	}

	logger.Info("task broker connected",
		zap.String("broker", config.Settings{Celery: cfg}.Redacted().Celery.BrokerURL),
		zap.Bool("results", d.results != nil),
	)
	return d, nil
}

func declareTopology(ch *amqp.Channel) error {
	err := ch.ExchangeDeclare(
		defaultQueue, // name
		"direct",     // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	if _, err := ch.QueueDeclare(defaultQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}
	if err := ch.QueueBind(defaultQueue, defaultQueue, defaultQueue, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}
	return nil
}

// consumeReplies declares the exclusive reply queue rpc:// results are
// routed to and starts draining it.
func (d *AMQPDispatcher) consumeReplies() error {
	ch, err := d.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open reply channel: %w", err)
	}

	q, err := ch.QueueDeclare(uuid.NewString(), false, true, true, false, nil)
	if err != nil {
		ch.Close()
		return fmt.Errorf("failed to declare reply queue: %w", err)
	}

	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		ch.Close()
		return fmt.Errorf("failed to consume reply queue: %w", err)
	}

	d.replyTo = q.Name
	d.results = newResultRouter()
	go func() {
		for delivery := range deliveries {
			var res Result
			if err := json.Unmarshal(delivery.Body, &res); err != nil {
				d.logger.Warn("discarding malformed task result",
					zap.String("correlation_id", delivery.CorrelationId),
					zap.Error(err),
				)
				continue
			}
			if res.TaskID == "" {
				res.TaskID = delivery.CorrelationId
			}
			d.results.deliver(res)
		}
		d.results.close()
	}()
	return nil
}

// Send publishes the task as a persistent message.
func (d *AMQPDispatcher) Send(ctx context.Context, task Task) (string, error) {
	env, err := NewEnvelope(task, d.replyTo, d.origin)
	if err != nil {
		return "", err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conn.IsClosed() {
		return "", ErrBrokerClosed
	}
	err = d.ch.PublishWithContext(ctx,
		defaultQueue, // exchange
		defaultQueue, // routing key
		false,        // mandatory
		false,        // immediate
		amqp.Publishing{
			Headers:         amqp.Table(env.Headers),
			ContentType:     env.ContentType,
			ContentEncoding: env.ContentEncoding,
			DeliveryMode:    amqp.Persistent,
			CorrelationId:   env.ID,
			ReplyTo:         env.ReplyTo,
			Body:            env.Body,
		},
	)
	if err != nil {
		return "", fmt.Errorf("failed to publish task %s: %w", task.Name, err)
	}

	d.logger.Debug("task published", zap.String("task", task.Name), zap.String("id", env.ID))
	return env.ID, nil
}

// Wait returns the final state of a task sent by this dispatcher.
func (d *AMQPDispatcher) Wait(ctx context.Context, taskID string) (Result, error) {
	if d.results == nil {
		return Result{}, ErrNoResultBackend
	}
	return d.results.wait(ctx, taskID)
}

// PingContext fails once the connection has dropped.
func (d *AMQPDispatcher) PingContext(context.Context) error {
	if d.conn.IsClosed() {
		return ErrBrokerClosed
	}
	return nil
}

// Close closes the channel and connection.
func (d *AMQPDispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conn.IsClosed() {
		return nil
	}
	_ = d.ch.Close()
	return d.conn.Close()
}

// unclaimedResultTTL is how long a result nobody waits for is kept.
const unclaimedResultTTL = time.Hour

type earlyResult struct {
	res      Result
	received time.Time
}

// resultRouter hands results to waiters by task id. Results that arrive
// before anyone waits are kept until claimed or until they expire.
type resultRouter struct {
	mu        sync.Mutex
	waiters   map[string]chan Result
	early     map[string]earlyResult
	now       func() time.Time
	lastSweep time.Time
	done      chan struct{}
	once      sync.Once
}

func newResultRouter() *resultRouter {
	return &resultRouter{
		waiters: map[string]chan Result{},
		early:   map[string]earlyResult{},
		now:     time.Now,
		done:    make(chan struct{}),
	}
}

func (r *resultRouter) deliver(res Result) {
	if !res.Ready() {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if ch, ok := r.waiters[res.TaskID]; ok {
		delete(r.waiters, res.TaskID)
		ch <- res
		return
	}
	now := r.now()
	r.sweep(now)
	r.early[res.TaskID] = earlyResult{res: res, received: now}
}

// sweep drops expired unclaimed results at most once per minute; callers hold mu.
func (r *resultRouter) sweep(now time.Time) {
	if now.Sub(r.lastSweep) < time.Minute {
		return
	}
	r.lastSweep = now
	for id, e := range r.early {
		if now.Sub(e.received) >= unclaimedResultTTL {
			delete(r.early, id)
		}
	}
}

func (r *resultRouter) wait(ctx context.Context, id string) (Result, error) {
	r.mu.Lock()
	if e, ok := r.early[id]; ok {
		delete(r.early, id)
		r.mu.Unlock()
		return e.res, nil
	}
	ch := make(chan Result, 1)
	r.waiters[id] = ch
	r.mu.Unlock()

	select {
	case res := <-ch:
		return res, nil
	case <-r.done:
		return Result{}, ErrBrokerClosed
	case <-ctx.Done():
		r.mu.Lock()
		delete(r.waiters, id)
		r.mu.Unlock()
		return Result{}, ctx.Err()
	}
}

func (r *resultRouter) close() {
	r.once.Do(func() { close(r.done) })
}
