package redisfeed

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vnykmshr/taskpool/pkg/common/validation"
	"github.com/vnykmshr/taskpool/pkg/metrics"
	"github.com/vnykmshr/taskpool/pkg/pool"
)

// Handler processes one payload popped from the feed list. It runs on a
// pool worker.
type Handler func(payload string)

// Config holds feeder configuration.
type Config struct {
	// Client is the Redis connection the feeder pops from.
	Client redis.UniversalClient

	// Key is the Redis list key holding job payloads.
	Key string

	// Pool receives one task per popped payload.
	Pool *pool.Pool

	// Handler is invoked with each payload.
	Handler Handler

	// PopTimeout bounds each blocking pop so the feeder can notice Stop.
	// Defaults to 1s.
	PopTimeout time.Duration

	// ErrorBackoff is the pause after a Redis error before retrying.
	// Defaults to 1s.
	ErrorBackoff time.Duration

	// Name labels this feeder's metrics. Defaults to the Key.
	Name string

	// Metrics is an optional registry for feed counters.
	Metrics *metrics.Registry
}

// Feeder consumes payloads from a Redis list with BLPOP and submits a
// handler task to the pool for each one. It is the bridge between a
// shared Redis-backed job list and the in-process worker pool.
type Feeder struct {
	cfg    Config
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	started bool
}

// New creates a feeder. The client, key, pool and handler are required.
func New(cfg Config) (*Feeder, error) {
	if cfg.Client == nil {
		return nil, validation.ValidateNotNil("redisfeed", "client", nil)
	}
	if err := validation.ValidateNotEmpty("redisfeed", "key", cfg.Key); err != nil {
		return nil, err
	}
	if cfg.Pool == nil {
		return nil, validation.ValidateNotNil("redisfeed", "pool", nil)
	}
	if cfg.Handler == nil {
		return nil, validation.ValidateNotNil("redisfeed", "handler", nil)
	}

	if cfg.PopTimeout <= 0 {
		cfg.PopTimeout = time.Second
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = time.Second
	}
	if cfg.Name == "" {
		cfg.Name = cfg.Key
	}

	return &Feeder{cfg: cfg}, nil
}

// Start launches the intake loop. It is idempotent.
func (f *Feeder) Start() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.started {
		return
	}
	f.started = true

	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	f.done = make(chan struct{})

	go f.run(ctx)
}

// Stop halts the intake loop and blocks until it has exited. Payloads
// already submitted to the pool are unaffected; payloads still in Redis
// stay there for the next consumer.
func (f *Feeder) Stop() {
	f.mu.Lock()
	if !f.started {
		f.mu.Unlock()
		return
	}
	f.started = false
	cancel, done := f.cancel, f.done
	f.mu.Unlock()

	cancel()
	<-done
}

// run pops payloads until the context is canceled.
func (f *Feeder) run(ctx context.Context) {
	defer close(f.done)

	for {
		vals, err := f.cfg.Client.BLPop(ctx, f.cfg.PopTimeout, f.cfg.Key).Result()
		switch {
		case err == nil:
			// BLPop returns [key, value].
			if len(vals) == 2 {
				f.dispatch(vals[1])
			}
		case errors.Is(err, redis.Nil):
			// Timed out with nothing queued; poll again.
		case ctx.Err() != nil:
			return
		default:
			f.countError()
			select {
			case <-time.After(f.cfg.ErrorBackoff):
			case <-ctx.Done():
				return
			}
		}
	}
}

// dispatch wraps the payload in a task and hands it to the pool.
func (f *Feeder) dispatch(payload string) {
	err := f.cfg.Pool.Submit(pool.TaskFunc(func() {
		f.cfg.Handler(payload)
	}))
	if err != nil {
		// Pool closed under us; the payload is lost to this process.
		f.countError()
		return
	}

	if f.cfg.Metrics != nil {
		f.cfg.Metrics.FeedJobsConsumed.WithLabelValues(f.cfg.Name).Inc()
	}
}

func (f *Feeder) countError() {
	if f.cfg.Metrics != nil {
		f.cfg.Metrics.FeedErrors.WithLabelValues(f.cfg.Name).Inc()
	}
}
