package queue

import (
	"context"
	"testing"
	"time"

	"github.com/rzbill/driftq/internal/score"
	pebblestore "github.com/rzbill/driftq/internal/store/pebble"
	"github.com/rzbill/driftq/internal/task"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	st, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return New(st, "q")
}

// The end-to-end visibility scenario: a task due now is claimable exactly
// once; a task due in 10s is invisible until its ready-time passes.
func TestClaimVisibilityWindow(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	now := time.UnixMilli(1_000_000)

	t1 := task.New([]byte(`"t1"`))
	if err := c.Enqueue(ctx, t1, now); err != nil {
		t.Fatalf("enqueue t1: %v", err)
	}

	b, err := c.ClaimDue(ctx, now)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(b.Tasks) != 1 || b.Tasks[0].ID != t1.ID {
		t.Fatalf("first claim: got %d tasks", len(b.Tasks))
	}

	b, err = c.ClaimDue(ctx, now)
	if err != nil {
		t.Fatalf("claim 2: %v", err)
	}
	if len(b.Tasks) != 0 {
		t.Fatalf("second claim should be empty, got %d", len(b.Tasks))
	}

	t2 := task.New([]byte(`"t2"`))
	if err := c.Enqueue(ctx, t2, now.Add(10*time.Second)); err != nil {
		t.Fatalf("enqueue t2: %v", err)
	}
	b, _ = c.ClaimDue(ctx, now)
	if len(b.Tasks) != 0 {
		t.Fatalf("t2 visible before ready-time")
	}
	b, _ = c.ClaimDue(ctx, now.Add(11*time.Second))
	if len(b.Tasks) != 1 || b.Tasks[0].ID != t2.ID {
		t.Fatalf("t2 not claimable after ready-time")
	}
}

func TestClaimOrderOldestReadyFirst(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	now := time.UnixMilli(2_000_000)

	late := task.New([]byte(`"late"`))
	early := task.New([]byte(`"early"`))
	_ = c.Enqueue(ctx, late, now.Add(-time.Second))
	_ = c.Enqueue(ctx, early, now.Add(-time.Hour))

	b, err := c.ClaimDue(ctx, now)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(b.Tasks) != 2 || b.Tasks[0].ID != early.ID || b.Tasks[1].ID != late.ID {
		t.Fatalf("claim order wrong")
	}
}

func TestMalformedEntrySkippedNotFatal(t *testing.T) {
	st, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	c := New(st, "q")
	ctx := context.Background()
	now := time.UnixMilli(3_000_000)

	// inject a garbage member directly at a due score
	sc, _ := score.Encode(now.Add(-time.Second))
	if err := st.Add(ctx, "q", sc, []byte("not a task")); err != nil {
		t.Fatalf("raw add: %v", err)
	}
	good := task.New([]byte(`"ok"`))
	if err := c.Enqueue(ctx, good, now.Add(-2*time.Second)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	b, err := c.ClaimDue(ctx, now)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if b.DecodeErrors != 1 {
		t.Fatalf("decode errors = %d, want 1", b.DecodeErrors)
	}
	if len(b.Tasks) != 1 || b.Tasks[0].ID != good.ID {
		t.Fatalf("good task lost alongside malformed entry")
	}
}

func TestRequeuePreservesIdentity(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	now := time.UnixMilli(4_000_000)

	orig := task.New([]byte(`{"n":1}`))
	_ = c.Enqueue(ctx, orig, now)
	b, _ := c.ClaimDue(ctx, now)
	if len(b.Tasks) != 1 {
		t.Fatalf("claim: got %d tasks", len(b.Tasks))
	}

	claimed := b.Tasks[0]
	claimed.FailureCount++
	if err := c.Requeue(ctx, claimed, now.Add(5*time.Second)); err != nil {
		t.Fatalf("requeue: %v", err)
	}

	b, _ = c.ClaimDue(ctx, now.Add(6*time.Second))
	if len(b.Tasks) != 1 {
		t.Fatalf("requeued task not claimable")
	}
	got := b.Tasks[0]
	if got.ID != orig.ID || got.FailureCount != 1 || got.CreatedAt != orig.CreatedAt {
		t.Fatalf("requeue mutated identity: %+v", got)
	}
}

func TestEnqueueRejectsBadReadyAt(t *testing.T) {
	c := newTestClient(t)
	err := c.Enqueue(context.Background(), task.New(nil), time.UnixMilli(-5))
	if err == nil {
		t.Fatalf("expected range error for negative ready-time")
	}
}

func TestPendingAndClear(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	now := time.UnixMilli(5_000_000)
	_ = c.Enqueue(ctx, task.New(nil), now)
	_ = c.Enqueue(ctx, task.New(nil), now.Add(time.Hour))

	n, err := c.Pending(ctx)
	if err != nil || n != 2 {
		t.Fatalf("pending = %d (%v), want 2", n, err)
	}
	if err := c.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	n, _ = c.Pending(ctx)
	if n != 0 {
		t.Fatalf("pending after clear = %d", n)
	}
}
