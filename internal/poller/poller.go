// Package poller turns a DriftQ queue into a push-style stream: a
// repeating, cancellable loop that claims due tasks and hands them to a
// consumer, feeding failures back through the retry policy.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/rzbill/driftq/internal/queue"
	"github.com/rzbill/driftq/internal/retry"
	"github.com/rzbill/driftq/internal/task"
	logpkg "github.com/rzbill/driftq/pkg/log"
)

// Handler processes one claimed task. A nil return acknowledges the task;
// an error routes it through the retry policy.
type Handler interface {
	Handle(ctx context.Context, t *task.Task) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, t *task.Task) error

func (f HandlerFunc) Handle(ctx context.Context, t *task.Task) error { return f(ctx, t) }

// Options configures a Poller.
type Options struct {
	// Interval between polls. Defaults to 500ms.
	Interval time.Duration
	// Policy drives retry/discard decisions for failed tasks.
	Policy retry.Policy
	// Logger defaults to a discard logger.
	Logger logpkg.Logger
	// OnDiscard is invoked when a task is dropped permanently, either
	// because its retries are exhausted or its ready-time cannot be
	// re-encoded. Optional.
	OnDiscard func(t *task.Task, cause error)
	// Now is the clock, injectable for tests. Defaults to time.Now.
	Now func() time.Time
}

// Poller repeatedly claims due tasks from one queue and delivers them.
// Multiple pollers may run against the same queue; the store's atomic claim
// guarantees each entry reaches exactly one of them.
//
// Delivery is at-least-once: a consumer crash after claim but before
// acknowledgment loses the task from the queue. There is no lease or
// visibility-timeout reclaim.
type Poller struct {
	q         *queue.Client
	interval  time.Duration
	policy    retry.Policy
	logger    logpkg.Logger
	onDiscard func(*task.Task, error)
	now       func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
}

// New builds a Poller around the queue client.
func New(q *queue.Client, opts Options) *Poller {
	p := &Poller{
		q:         q,
		interval:  opts.Interval,
		policy:    opts.Policy,
		logger:    opts.Logger,
		onDiscard: opts.OnDiscard,
		now:       opts.Now,
		stop:      make(chan struct{}),
	}
	if p.interval <= 0 {
		p.interval = 500 * time.Millisecond
	}
	if p.logger == nil {
		p.logger = logpkg.Discard()
	}
	if p.now == nil {
		p.now = time.Now
	}
	p.logger = p.logger.WithComponent("poller").With(logpkg.Str("queue", q.Name()))
	return p
}

// Stop requests a cooperative stop. In-flight deliveries finish; the next
// poll is skipped. Safe to call more than once.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
}

func (p *Poller) stopped(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-p.stop:
		return true
	default:
		return false
	}
}

// Run polls until ctx is cancelled or Stop is called, delivering each
// claimed task to h and awaiting its result before moving on. Delivery
// blocks the loop per claimed batch, bounding in-memory growth by batch
// size. Transient store errors are logged and polling continues on the
// next tick.
func (p *Poller) Run(ctx context.Context, h Handler) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.pollOnce(ctx, h)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.stop:
			return nil
		case <-ticker.C:
		}
	}
}

// pollOnce claims everything due now and delivers it in claim order.
func (p *Poller) pollOnce(ctx context.Context, h Handler) {
	if p.stopped(ctx) {
		return
	}
	now := p.now()
	batch, err := p.q.ClaimDue(ctx, now)
	if err != nil {
		p.logger.Warn("claim failed, will retry next poll", logpkg.Err(err))
		return
	}
	if batch.DecodeErrors > 0 {
		p.logger.Warn("dropped malformed entries", logpkg.Int("count", batch.DecodeErrors))
	}
	for i, t := range batch.Tasks {
		if p.stopped(ctx) {
			// Claimed entries are already removed from the store; put the
			// undelivered remainder back so a stop does not lose them.
			p.requeueRemainder(batch.Tasks[i:], now)
			return
		}
		if err := h.Handle(ctx, t); err != nil {
			p.fail(ctx, t, err)
		}
	}
}

// fail records one failed attempt and either requeues the task with its
// backoff delay or discards it.
func (p *Poller) fail(ctx context.Context, t *task.Task, cause error) {
	delay, ok := p.policy.Next(t.FailureCount)
	if !ok {
		p.logger.Warn("discarding task, retries exhausted",
			logpkg.Str("task", t.ID),
			logpkg.Int("failures", t.FailureCount+1),
			logpkg.Err(cause),
		)
		if p.onDiscard != nil {
			p.onDiscard(t, retry.ErrMaxAttemptsExceeded)
		}
		return
	}
	t.FailureCount++
	nextReadyAt := p.now().Add(delay)
	if err := p.q.Requeue(ctx, t, nextReadyAt); err != nil {
		// The entry is gone from the store; this is a real loss and must be
		// visible.
		p.logger.Error("requeue failed, task lost",
			logpkg.Str("task", t.ID),
			logpkg.Err(err),
		)
		if p.onDiscard != nil {
			p.onDiscard(t, err)
		}
		return
	}
	p.logger.Debug("requeued failed task",
		logpkg.Str("task", t.ID),
		logpkg.Int("failures", t.FailureCount),
		logpkg.Dur("delay", delay),
	)
}

func (p *Poller) requeueRemainder(tasks []*task.Task, now time.Time) {
	// Best effort with a background context: the caller's context is
	// already cancelled when this runs.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, t := range tasks {
		if err := p.q.Requeue(ctx, t, now); err != nil {
			p.logger.Error("task lost during shutdown",
				logpkg.Str("task", t.ID),
				logpkg.Err(err),
			)
		}
	}
}
