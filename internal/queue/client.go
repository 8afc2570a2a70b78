// Package queue provides the core DriftQ client: enqueue, claim-due-batch,
// and requeue against a single ordered-set queue.
//
// The client is stateless between calls; any number of instances may point
// at the same queue concurrently. Claim atomicity comes entirely from the
// backing store.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/rzbill/driftq/internal/score"
	"github.com/rzbill/driftq/internal/store"
	"github.com/rzbill/driftq/internal/task"
	logpkg "github.com/rzbill/driftq/pkg/log"
)

// Client operates on one named queue.
type Client struct {
	st     store.OrderedSet
	name   string
	logger logpkg.Logger
}

// Option configures New.
type Option func(*Client)

// WithLogger sets the logger used to report skipped malformed entries.
func WithLogger(l logpkg.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a client for the named queue.
func New(st store.OrderedSet, name string, opts ...Option) *Client {
	c := &Client{st: st, name: name, logger: logpkg.Discard()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the queue name.
func (c *Client) Name() string { return c.name }

// Batch is the result of one claim: the decoded tasks, oldest ready-time
// first, plus a count of members that were removed but could not be
// decoded. Malformed members are dropped, not retried; they no longer exist
// in the store once claimed.
type Batch struct {
	Tasks        []*task.Task
	DecodeErrors int
}

// Enqueue serializes t and inserts it with readyAt as its due instant.
func (c *Client) Enqueue(ctx context.Context, t *task.Task, readyAt time.Time) error {
	member, err := task.Encode(t)
	if err != nil {
		return err
	}
	sc, err := score.Encode(readyAt)
	if err != nil {
		return err
	}
	if err := c.st.Add(ctx, c.name, sc, member); err != nil {
		return fmt.Errorf("enqueue %s: %w", c.name, err)
	}
	return nil
}

// ClaimDue atomically removes every entry due by now and decodes it. A
// member that fails to decode is logged and skipped without aborting the
// rest of the batch.
func (c *Client) ClaimDue(ctx context.Context, now time.Time) (Batch, error) {
	floor, err := score.DueFloor(now)
	if err != nil {
		return Batch{}, err
	}
	members, err := c.st.ClaimDue(ctx, c.name, floor)
	if err != nil {
		return Batch{}, fmt.Errorf("claim %s: %w", c.name, err)
	}
	b := Batch{Tasks: make([]*task.Task, 0, len(members))}
	for _, m := range members {
		t, err := task.Decode(m)
		if err != nil {
			b.DecodeErrors++
			c.logger.Warn("dropping malformed queue entry",
				logpkg.Str("queue", c.name),
				logpkg.Err(err),
			)
			continue
		}
		b.Tasks = append(b.Tasks, t)
	}
	return b, nil
}

// Requeue re-inserts a task with a future ready-time. The caller is
// responsible for incrementing FailureCount before requeueing.
func (c *Client) Requeue(ctx context.Context, t *task.Task, nextReadyAt time.Time) error {
	return c.Enqueue(ctx, t, nextReadyAt)
}

// Pending reports how many entries the queue holds, due or not.
func (c *Client) Pending(ctx context.Context) (int64, error) {
	return c.st.Pending(ctx, c.name)
}

// Clear drops every entry in the queue.
func (c *Client) Clear(ctx context.Context) error {
	return c.st.Clear(ctx, c.name)
}
