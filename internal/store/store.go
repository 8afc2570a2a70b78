// Package store defines the ordered-set contract DriftQ queues run on.
//
// Any store offering insert-with-score, inclusive range query by score,
// range delete by score, and atomic execution of query+delete as one
// transaction satisfies the contract. The repo ships two implementations:
// redisstore (Redis sorted sets with a server-side Lua claim script) and
// pebblestore (embedded single-process ordered KV).
package store

import (
	"context"
	"errors"
)

// ErrUnavailable wraps transport or transaction failures from a backend.
// Callers retry the whole operation; partial claims never happen.
var ErrUnavailable = errors.New("store: backend unavailable")

// OrderedSet is a named collection of (score, member) entries.
//
// Members are unique within a queue at a given score; adding an identical
// (score, member) pair is a merge. Adding the same member at a different
// score may move or duplicate the entry depending on the backend, so callers
// that need per-task uniqueness embed a unique identifier in the member.
type OrderedSet interface {
	// Add inserts member at score into the named queue.
	Add(ctx context.Context, queue string, score uint64, member []byte) error

	// ClaimDue atomically removes and returns every entry whose score lies
	// in [minScore, MaxScore], ordered from highest score to lowest (oldest
	// ready-time first). An empty due range yields an empty, non-error
	// result. No two concurrent callers ever receive the same entry.
	ClaimDue(ctx context.Context, queue string, minScore uint64) ([][]byte, error)

	// Pending reports how many entries the queue currently holds.
	Pending(ctx context.Context, queue string) (int64, error)

	// Clear removes every entry in the queue.
	Clear(ctx context.Context, queue string) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	Close() error
}
