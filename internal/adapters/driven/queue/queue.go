package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	json "github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"

	"github.com/custodia-labs/sleepsync/internal/core/domain"
	"github.com/custodia-labs/sleepsync/internal/core/ports/driven"
	"github.com/custodia-labs/sleepsync/internal/logger"
	"github.com/custodia-labs/sleepsync/internal/metrics"
)

// Ensure Queue implements the interface.
var _ driven.JobQueue = (*Queue)(nil)

// Backends.
const (
	BackendMemory = "memory"
	BackendNATS   = "nats"
)

// metadataKind carries the job kind on the message.
const metadataKind = "job_kind"

// Config holds queue configuration.
type Config struct {
	// Backend is memory or nats.
	Backend string
	// URL is the NATS server URL.
	URL string
	// Topic receives sync jobs.
	Topic string
	// PoisonTopic receives jobs that failed every attempt.
	PoisonTopic string
	// Concurrency is the number of NATS subscribers processing jobs at once.
	Concurrency int

	// MaxAttempts includes the first delivery.
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64

	CloseTimeout time.Duration
}

// DefaultConfig returns the queue defaults: three attempts with 1s, 2s
// backoff and five NATS workers.
func DefaultConfig() Config {
	return Config{
		Backend:         BackendMemory,
		Topic:           "sleepsync.jobs",
		PoisonTopic:     "sleepsync.jobs.poison",
		Concurrency:     5,
		MaxAttempts:     3,
		InitialInterval: time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2,
		CloseTimeout:    30 * time.Second,
	}
}

// Queue publishes jobs and runs the worker that consumes them.
type Queue struct {
	cfg    Config
	pub    message.Publisher
	sub    message.Subscriber
	logger watermill.LoggerAdapter
	// shared is set when pub and sub are the same pubsub.
	shared bool

	mu     sync.Mutex
	router *message.Router
	closed bool
}

// New creates a queue on the configured backend.
func New(cfg Config) (*Queue, error) {
	cfg = withDefaults(cfg)
	wlog := newLogAdapter()

	q := &Queue{cfg: cfg, logger: wlog}

	switch cfg.Backend {
	case BackendMemory:
		ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, wlog)
		q.pub, q.sub, q.shared = ch, ch, true
	case BackendNATS:
		if cfg.URL == "" {
			return nil, fmt.Errorf("%w: nats backend requires a url", domain.ErrInvalidInput)
		}
		pub, sub, err := newNATS(cfg, wlog)
		if err != nil {
			return nil, err
		}
		q.pub, q.sub = pub, sub
	default:
		return nil, fmt.Errorf("%w: unknown queue backend %q", domain.ErrInvalidInput, cfg.Backend)
	}

	return q, nil
}

func withDefaults(cfg Config) Config {
	def := DefaultConfig()
	if cfg.Backend == "" {
		cfg.Backend = def.Backend
	}
	cfg.Backend = strings.ToLower(cfg.Backend)
	if cfg.Topic == "" {
		cfg.Topic = def.Topic
	}
	if cfg.PoisonTopic == "" {
		cfg.PoisonTopic = cfg.Topic + ".poison"
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = def.InitialInterval
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = def.MaxInterval
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = def.Multiplier
	}
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = def.CloseTimeout
	}
	return cfg
}

// newNATS creates a JetStream publisher and a durable queue-group subscriber.
func newNATS(cfg Config, wlog watermill.LoggerAdapter) (message.Publisher, message.Subscriber, error) {
	natsOpts := []natsgo.Option{
		natsgo.Name("sleepsync"),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2 * time.Second),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				wlog.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			wlog.Info("NATS reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: true,
			TrackMsgId:    true,
		},
	}, wlog)
	if err != nil {
		return nil, nil, fmt.Errorf("create nats publisher: %w", err)
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              cfg.URL,
		QueueGroupPrefix: "sleepsync",
		SubscribersCount: cfg.Concurrency,
		AckWaitTimeout:   time.Hour,
		CloseTimeout:     cfg.CloseTimeout,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: true,
			DurablePrefix: "sleepsync",
		},
	}, wlog)
	if err != nil {
		_ = pub.Close()
		return nil, nil, fmt.Errorf("create nats subscriber: %w", err)
	}

	return pub, sub, nil
}

// Enqueue publishes job. The job id is used as the message id so that
// JetStream drops duplicate publishes.
func (q *Queue) Enqueue(ctx context.Context, job domain.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}

	msg := message.NewMessage(job.ID, data)
	msg.SetContext(ctx)
	msg.Metadata.Set(metadataKind, string(job.Kind))
	msg.Metadata.Set(natsgo.MsgIdHdr, job.ID)

	if err := q.pub.Publish(q.cfg.Topic, msg); err != nil {
		metrics.JobsTotal.WithLabelValues(string(job.Kind), "enqueue_failed").Inc()
		return fmt.Errorf("publish job: %w", err)
	}
	metrics.JobsTotal.WithLabelValues(string(job.Kind), "enqueued").Inc()
	return nil
}

// Durable reports whether jobs survive this process. Only the NATS
// backend delivers to workers in other processes.
func (q *Queue) Durable() bool {
	return q.cfg.Backend == BackendNATS
}

// Run consumes jobs with handler until ctx is cancelled or Close is called.
func (q *Queue) Run(ctx context.Context, handler driven.JobHandler) error {
	router, err := q.newRouter(handler)
	if err != nil {
		return err
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return errors.New("queue is closed")
	}
	q.router = router
	q.mu.Unlock()

	return router.Run(ctx)
}

// Running returns a channel closed once the worker is consuming, or nil
// before Run is called.
func (q *Queue) Running() <-chan struct{} {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.router == nil {
		return nil
	}
	return q.router.Running()
}

// newRouter wires the job handler behind poison queue, retry and panic
// recovery middleware, outermost first.
func (q *Queue) newRouter(handler driven.JobHandler) (*message.Router, error) {
	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: q.cfg.CloseTimeout}, q.logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill router: %w", err)
	}

	poison, err := middleware.PoisonQueue(q.pub, q.cfg.PoisonTopic)
	if err != nil {
		return nil, fmt.Errorf("create poison queue middleware: %w", err)
	}
	retry := middleware.Retry{
		MaxRetries:      q.cfg.MaxAttempts - 1,
		InitialInterval: q.cfg.InitialInterval,
		MaxInterval:     q.cfg.MaxInterval,
		Multiplier:      q.cfg.Multiplier,
		Logger:          q.logger,
	}
	router.AddMiddleware(poison, retry.Middleware, middleware.Recoverer)

	router.AddNoPublisherHandler("sleepsync_jobs", q.cfg.Topic, q.sub, jobHandler(handler))
	router.AddNoPublisherHandler("sleepsync_poison", q.cfg.PoisonTopic, q.sub, poisonHandler)

	return router, nil
}

// jobHandler decodes a job and runs handler. Jobs that can never succeed
// (malformed, invalid or for unknown users) are acknowledged and dropped.
func jobHandler(handler driven.JobHandler) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		var job domain.Job
		if err := json.Unmarshal(msg.Payload, &job); err != nil {
			logger.With("message_uuid", msg.UUID).Err(err).Warn("dropping undecodable job")
			metrics.JobsTotal.WithLabelValues("unknown", "dropped").Inc()
			return nil
		}

		err := handler(msg.Context(), job)
		switch {
		case err == nil:
			metrics.JobsTotal.WithLabelValues(string(job.Kind), "completed").Inc()
			return nil
		case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrNotFound):
			logger.With("job_id", job.ID).Err(err).Warn("dropping job that cannot succeed")
			metrics.JobsTotal.WithLabelValues(string(job.Kind), "dropped").Inc()
			return nil
		default:
			metrics.JobsTotal.WithLabelValues(string(job.Kind), "failed").Inc()
			return err
		}
	}
}

// poisonHandler logs and acknowledges jobs that exhausted their retries.
func poisonHandler(msg *message.Message) error {
	logger.With(
		"message_uuid", msg.UUID,
		"kind", msg.Metadata.Get(metadataKind),
		"reason", msg.Metadata.Get(middleware.ReasonForPoisonedKey),
	).Error("job failed after all retries, dropping")
	metrics.JobsTotal.WithLabelValues(msg.Metadata.Get(metadataKind), "poisoned").Inc()
	return nil
}

// Close stops the worker and releases backend connections.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	router := q.router
	q.mu.Unlock()

	var errs []error
	if router != nil {
		errs = append(errs, router.Close())
	}
	errs = append(errs, q.pub.Close())
	if !q.shared {
		errs = append(errs, q.sub.Close())
	}
	return errors.Join(errs...)
}
