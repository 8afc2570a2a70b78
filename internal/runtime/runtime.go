// Package runtime assembles a DriftQ node from configuration: the ordered-set
// store backend, the logger, and factories for queue clients and pollers.
package runtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/rzbill/driftq/internal/config"
	"github.com/rzbill/driftq/internal/poller"
	"github.com/rzbill/driftq/internal/queue"
	"github.com/rzbill/driftq/internal/store"
	pebblestore "github.com/rzbill/driftq/internal/store/pebble"
	redisstore "github.com/rzbill/driftq/internal/store/redis"
	logpkg "github.com/rzbill/driftq/pkg/log"
)

// Runtime owns the store connection for the lifetime of the process.
type Runtime struct {
	cfg    config.Config
	st     store.OrderedSet
	logger logpkg.Logger

	mu     sync.Mutex
	queues map[string]*queue.Client
}

// Open validates cfg, builds the logger, and connects the selected backend.
func Open(cfg config.Config) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return nil, err
	}

	var st store.OrderedSet
	switch cfg.Backend {
	case config.BackendRedis:
		rds := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		st = redisstore.New(rds, redisstore.WithKeyPrefix(cfg.Redis.KeyPrefix))
	case config.BackendPebble:
		st, err = pebblestore.Open(pebblestore.Options{DataDir: cfg.DataDir})
		if err != nil {
			return nil, fmt.Errorf("open pebble at %s: %w", cfg.DataDir, err)
		}
	}

	logger.Info("runtime open",
		logpkg.Str("backend", cfg.Backend),
		logpkg.Str("data_dir", cfg.DataDir),
	)
	return &Runtime{
		cfg:    cfg,
		st:     st,
		logger: logger,
		queues: make(map[string]*queue.Client),
	}, nil
}

func newLogger(lc config.Log) (logpkg.Logger, error) {
	level, err := logpkg.ParseLevel(lc.Level)
	if err != nil {
		return nil, err
	}
	format, err := logpkg.ParseFormat(lc.Format)
	if err != nil {
		return nil, err
	}
	return logpkg.NewLogger(logpkg.WithLevel(level), logpkg.WithFormat(format)), nil
}

// Config returns the configuration the runtime was opened with.
func (r *Runtime) Config() config.Config { return r.cfg }

// Logger returns the process logger.
func (r *Runtime) Logger() logpkg.Logger { return r.logger }

// Store returns the backing ordered-set store.
func (r *Runtime) Store() store.OrderedSet { return r.st }

// OpenQueue returns the client for the named queue, creating it on first
// use. Clients are shared; a queue name always maps to the same client.
func (r *Runtime) OpenQueue(name string) *queue.Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	if q, ok := r.queues[name]; ok {
		return q
	}
	q := queue.New(r.st, name, queue.WithLogger(r.logger.WithComponent("queue")))
	r.queues[name] = q
	return q
}

// NewPoller builds a poller for q using the configured interval and retry
// policy.
func (r *Runtime) NewPoller(q *queue.Client) *poller.Poller {
	return poller.New(q, poller.Options{
		Interval: r.cfg.Poll.Interval(),
		Policy:   r.cfg.Poll.Policy(),
		Logger:   r.logger.WithComponent("poller"),
	})
}

// CheckHealth verifies the store connection is usable.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	return r.st.Ping(ctx)
}

// Close releases the store connection.
func (r *Runtime) Close() error {
	r.logger.Info("runtime closing")
	return r.st.Close()
}
