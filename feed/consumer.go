package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/eapache/queue"
	"github.com/go-redis/redis/v8"
	"go.uber.org/fx"
	"go.uber.org/zap"

	errors2 "github.com/tidepool-org/hydration/errors"
	"github.com/tidepool-org/hydration/metrics"
	"github.com/tidepool-org/hydration/normalize"
	"github.com/tidepool-org/hydration/patients"
)

// PayloadField is the stream message field holding the JSON device update.
const PayloadField = "payload"

const (
	resultIngested = "ingested"
	resultRejected = "rejected"
	resultFailed   = "failed"
)

var ErrInvalidMessage = errors.New("invalid feed message")

type Params struct {
	fx.In

	Config    *Config
	Client    *redis.Client
	Patients  patients.Service
	Logger    *zap.SugaredLogger
	Lifecycle fx.Lifecycle
}

// Consumer reads device updates from a redis stream as a member of a consumer
// group and applies them to the patients. A message is acknowledged once it was
// applied or rejected as unusable. Messages that failed for any other reason are
// retried in delivery order before new messages are read.
type Consumer struct {
	client   *redis.Client
	config   *Config
	patients patients.Service
	logger   *zap.SugaredLogger
	pending  *queue.Queue

	cancel context.CancelFunc
	done   chan struct{}
}

func NewClient(cfg *Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddress,
		DB:   cfg.RedisDB,
	})
}

func NewLifecycleClient(cfg *Config, lifecycle fx.Lifecycle) *redis.Client {
	client := NewClient(cfg)
	lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
	return client
}

func NewConsumer(cfg *Config, client *redis.Client, patientsService patients.Service, logger *zap.SugaredLogger) *Consumer {
	return &Consumer{
		client:   client,
		config:   cfg,
		patients: patientsService,
		logger:   logger,
		pending:  queue.New(),
	}
}

// NewLifecycleConsumer runs the consumer between application start and stop
// when the feed is enabled.
func NewLifecycleConsumer(p Params) *Consumer {
	consumer := NewConsumer(p.Config, p.Client, p.Patients, p.Logger)
	if !p.Config.Enabled {
		p.Logger.Infow("device feed is disabled")
		return consumer
	}

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := consumer.Initialize(ctx); err != nil {
				return err
			}
			consumer.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return consumer.Stop(ctx)
		},
	})
	return consumer
}

// Initialize creates the consumer group and the stream if they don't exist.
func (c *Consumer) Initialize(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.config.Stream, c.config.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("unable to create consumer group %s: %w", c.config.Group, err)
	}
	return nil
}

func (c *Consumer) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})

	go func() {
		defer close(c.done)
		c.Run(ctx)
	}()
}

func (c *Consumer) Stop(ctx context.Context) error {
	if c.cancel == nil {
		return nil
	}
	c.cancel()

	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run polls until the context is cancelled. Failures are retried with an
// exponential backoff.
func (c *Consumer) Run(ctx context.Context) {
	c.logger.Infow("consuming device feed", "stream", c.config.Stream, "group", c.config.Group, "consumer", c.config.Consumer)

	delay := time.Duration(0)
	for ctx.Err() == nil {
		if _, err := c.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			delay = c.nextBackoff(delay)
			c.logger.Warnw("unable to process device feed", "error", err, "retryIn", delay)
			select {
			case <-ctx.Done():
			case <-time.After(delay):
			}
			continue
		}
		delay = 0
	}

	c.logger.Infow("stopped consuming device feed", "stream", c.config.Stream)
}

func (c *Consumer) nextBackoff(previous time.Duration) time.Duration {
	if previous <= 0 {
		return c.config.MinBackoff
	}
	next := previous * 2
	if next > c.config.MaxBackoff {
		next = c.config.MaxBackoff
	}
	return next
}

// Poll reads one batch of messages unless earlier messages are still pending
// and processes them in order. It returns the number of acknowledged messages.
func (c *Consumer) Poll(ctx context.Context) (int, error) {
	if c.pending.Length() == 0 {
		if err := c.read(ctx); err != nil {
			return 0, err
		}
	}

	acknowledged := 0
	for c.pending.Length() > 0 {
		message := c.pending.Peek().(redis.XMessage)
		if err := c.process(ctx, message); err != nil {
			return acknowledged, err
		}
		if err := c.client.XAck(ctx, c.config.Stream, c.config.Group, message.ID).Err(); err != nil {
			return acknowledged, fmt.Errorf("unable to acknowledge message %s: %w", message.ID, err)
		}
		c.pending.Remove()
		acknowledged++
	}

	return acknowledged, nil
}

func (c *Consumer) read(ctx context.Context) error {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.config.Group,
		Consumer: c.config.Consumer,
		Streams:  []string{c.config.Stream, ">"},
		Count:    c.config.BatchSize,
		Block:    c.config.Block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	} else if err != nil {
		return fmt.Errorf("unable to read stream %s: %w", c.config.Stream, err)
	}

	for _, stream := range streams {
		for _, message := range stream.Messages {
			c.pending.Add(message)
		}
	}
	return nil
}

// process returns an error only when the message should be delivered again.
func (c *Consumer) process(ctx context.Context, message redis.XMessage) error {
	payload, err := Decode(message)
	if err != nil {
		metrics.FeedMessages.WithLabelValues(resultRejected).Inc()
		c.logger.Warnw("rejected device feed message", "messageId", message.ID, "error", err)
		return nil
	}

	dashboard, err := c.patients.IngestDevice(ctx, payload)
	if err != nil {
		if permanent(err) {
			metrics.FeedMessages.WithLabelValues(resultRejected).Inc()
			c.logger.Warnw("rejected device feed message", "messageId", message.ID, "error", err)
			return nil
		}
		metrics.FeedMessages.WithLabelValues(resultFailed).Inc()
		return fmt.Errorf("unable to ingest message %s: %w", message.ID, err)
	}

	metrics.FeedMessages.WithLabelValues(resultIngested).Inc()
	c.logger.Debugw("ingested device feed message", "messageId", message.ID, "patientId", dashboard.Patient.Id, "status", dashboard.Status)
	return nil
}

// Decode extracts the device update carried by a stream message.
func Decode(message redis.XMessage) (normalize.Record, error) {
	value, ok := message.Values[PayloadField]
	if !ok {
		return nil, fmt.Errorf("%w: missing %s field", ErrInvalidMessage, PayloadField)
	}
	raw, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected %s type %T", ErrInvalidMessage, PayloadField, value)
	}

	payload := normalize.Record{}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return payload, nil
}

// permanent reports whether delivering the message again can't succeed.
func permanent(err error) bool {
	var httpErr errors2.HttpError
	if errors.As(err, &httpErr) {
		return httpErr.Code >= http.StatusBadRequest && httpErr.Code < http.StatusInternalServerError && httpErr.Code != http.StatusConflict
	}
	return false
}
