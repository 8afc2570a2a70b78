package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rzbill/driftq/internal/queue"
	"github.com/rzbill/driftq/internal/retry"
	pebblestore "github.com/rzbill/driftq/internal/store/pebble"
	"github.com/rzbill/driftq/internal/task"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(at time.Time) *fakeClock { return &fakeClock{t: at} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestQueue(t *testing.T) *queue.Client {
	t.Helper()
	st, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return queue.New(st, "jobs")
}

func TestPollOnceDeliversInClaimOrder(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	clk := newFakeClock(time.UnixMilli(1_000_000))

	first := task.New([]byte(`"first"`))
	second := task.New([]byte(`"second"`))
	_ = q.Enqueue(ctx, first, clk.Now().Add(-2*time.Second))
	_ = q.Enqueue(ctx, second, clk.Now().Add(-time.Second))

	p := New(q, Options{Now: clk.Now, Policy: retry.Policy{MaxAttempts: 1}})
	var got []string
	p.pollOnce(ctx, HandlerFunc(func(_ context.Context, tk *task.Task) error {
		got = append(got, tk.ID)
		return nil
	}))

	if len(got) != 2 || got[0] != first.ID || got[1] != second.ID {
		t.Fatalf("delivery order: got %v", got)
	}
	n, _ := q.Pending(ctx)
	if n != 0 {
		t.Fatalf("pending after success = %d", n)
	}
}

func TestFailureRequeuesAfterBackoffWithIncrement(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	clk := newFakeClock(time.UnixMilli(2_000_000))

	tk := task.New([]byte(`"flaky"`))
	_ = q.Enqueue(ctx, tk, clk.Now())

	p := New(q, Options{
		Now:    clk.Now,
		Policy: retry.Policy{MaxAttempts: 5, Backoff: retry.Fixed(10 * time.Second)},
	})
	p.pollOnce(ctx, HandlerFunc(func(context.Context, *task.Task) error {
		return errors.New("boom")
	}))

	// not yet due again
	b, err := q.ClaimDue(ctx, clk.Now().Add(5*time.Second))
	if err != nil || len(b.Tasks) != 0 {
		t.Fatalf("task visible before backoff elapsed: %d (%v)", len(b.Tasks), err)
	}

	// due after the backoff, failure count bumped by exactly one
	b, err = q.ClaimDue(ctx, clk.Now().Add(11*time.Second))
	if err != nil || len(b.Tasks) != 1 {
		t.Fatalf("task not requeued: %d (%v)", len(b.Tasks), err)
	}
	if b.Tasks[0].ID != tk.ID || b.Tasks[0].FailureCount != 1 {
		t.Fatalf("requeued task: id=%s failures=%d", b.Tasks[0].ID, b.Tasks[0].FailureCount)
	}
}

func TestDiscardOnThirdFailureWithMaxAttempts3(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	clk := newFakeClock(time.UnixMilli(3_000_000))

	var discarded []*task.Task
	var discardCause error
	p := New(q, Options{
		Now:    clk.Now,
		Policy: retry.Policy{MaxAttempts: 3, Backoff: retry.Fixed(time.Second)},
		OnDiscard: func(tk *task.Task, cause error) {
			discarded = append(discarded, tk)
			discardCause = cause
		},
	})

	_ = q.Enqueue(ctx, task.New([]byte(`"doomed"`)), clk.Now())
	alwaysFail := HandlerFunc(func(context.Context, *task.Task) error { return errors.New("no") })

	for i := 0; i < 3; i++ {
		p.pollOnce(ctx, alwaysFail)
		clk.Advance(2 * time.Second)
	}

	if len(discarded) != 1 {
		t.Fatalf("discards = %d, want 1", len(discarded))
	}
	if !errors.Is(discardCause, retry.ErrMaxAttemptsExceeded) {
		t.Fatalf("discard cause = %v", discardCause)
	}
	if discarded[0].FailureCount != 2 {
		t.Fatalf("failure count at discard = %d, want 2 (third attempt failing)", discarded[0].FailureCount)
	}
	n, _ := q.Pending(ctx)
	if n != 0 {
		t.Fatalf("discarded task still pending: %d", n)
	}
}

func TestFailTwiceThenSucceedNeverReappears(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	clk := newFakeClock(time.UnixMilli(4_000_000))

	p := New(q, Options{
		Now:    clk.Now,
		Policy: retry.Policy{MaxAttempts: 5, Backoff: retry.Fixed(time.Second)},
	})

	_ = q.Enqueue(ctx, task.New([]byte(`"eventually"`)), clk.Now())

	attempts := 0
	var finalCount int
	h := HandlerFunc(func(_ context.Context, tk *task.Task) error {
		attempts++
		if attempts <= 2 {
			return errors.New("not yet")
		}
		finalCount = tk.FailureCount
		return nil
	})

	for i := 0; i < 5; i++ {
		p.pollOnce(ctx, h)
		clk.Advance(2 * time.Second)
	}

	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
	if finalCount != 2 {
		t.Fatalf("failure count on success = %d, want 2", finalCount)
	}
	n, _ := q.Pending(ctx)
	if n != 0 {
		t.Fatalf("succeeded task reappeared: pending=%d", n)
	}
}

func TestRunStopsCooperatively(t *testing.T) {
	q := newTestQueue(t)
	p := New(q, Options{Interval: 5 * time.Millisecond, Policy: retry.Policy{MaxAttempts: 1}})

	done := make(chan error, 1)
	go func() {
		done <- p.Run(context.Background(), HandlerFunc(func(context.Context, *task.Task) error { return nil }))
	}()

	time.Sleep(20 * time.Millisecond)
	p.Stop()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run after Stop: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Run did not stop")
	}
}

func TestStopMidBatchRequeuesRemainder(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	clk := newFakeClock(time.UnixMilli(5_000_000))

	for i := 0; i < 3; i++ {
		_ = q.Enqueue(ctx, task.New(nil), clk.Now().Add(-time.Duration(i+1)*time.Second))
	}

	p := New(q, Options{Now: clk.Now, Policy: retry.Policy{MaxAttempts: 1}})
	delivered := 0
	p.pollOnce(ctx, HandlerFunc(func(context.Context, *task.Task) error {
		delivered++
		p.Stop()
		return nil
	}))

	if delivered != 1 {
		t.Fatalf("delivered = %d, want 1", delivered)
	}
	n, _ := q.Pending(ctx)
	if n != 2 {
		t.Fatalf("undelivered remainder pending = %d, want 2", n)
	}
}

func TestSubscriptionAckAndNack(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	p := New(q, Options{
		Interval: 5 * time.Millisecond,
		Policy:   retry.Policy{MaxAttempts: 3, Backoff: retry.Fixed(0)},
	})

	tk := task.New([]byte(`"sub"`))
	_ = q.Enqueue(ctx, tk, time.Now().Add(-time.Second))

	sub := p.Subscribe(ctx, 0)
	defer sub.Close()

	// first delivery: nack it
	var d *Delivery
	select {
	case d = <-sub.Deliveries():
	case <-time.After(2 * time.Second):
		t.Fatalf("no first delivery")
	}
	if d.Task.ID != tk.ID || d.Task.FailureCount != 0 {
		t.Fatalf("first delivery: %+v", d.Task)
	}
	d.Nack(errors.New("try again"))

	// redelivery carries the incremented failure count; ack it
	select {
	case d = <-sub.Deliveries():
	case <-time.After(2 * time.Second):
		t.Fatalf("no redelivery after nack")
	}
	if d.Task.ID != tk.ID || d.Task.FailureCount != 1 {
		t.Fatalf("redelivery: id=%s failures=%d", d.Task.ID, d.Task.FailureCount)
	}
	d.Ack()

	sub.Close()
	n, _ := q.Pending(ctx)
	if n != 0 {
		t.Fatalf("pending after ack = %d", n)
	}
}
