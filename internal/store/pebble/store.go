// Package pebblestore implements the ordered-set contract on an embedded
// Pebble database. It is a single-process backend: claim atomicity is
// provided by a store-level mutex around the read+delete, committed as one
// batch.
package pebblestore

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/rzbill/driftq/internal/score"
	"github.com/rzbill/driftq/internal/store"
)

// Options configures Open.
type Options struct {
	// DataDir is the path to the Pebble database directory.
	DataDir string
	// NoSync skips WAL fsync on commits, trading durability for throughput.
	NoSync bool
}

// Store wraps a Pebble database. Entries live under
// q/<queue>/<score 8B big-endian><member>, so iterating a queue prefix in
// reverse yields highest score (oldest ready-time) first.
type Store struct {
	mu    sync.Mutex
	db    *pebble.DB
	wopts *pebble.WriteOptions
}

// Open creates or opens the database at opts.DataDir.
func Open(opts Options) (*Store, error) {
	if opts.DataDir == "" {
		return nil, errors.New("pebblestore: Options.DataDir is required")
	}
	db, err := pebble.Open(opts.DataDir, &pebble.Options{})
	if err != nil {
		return nil, unavailable("open", err)
	}
	w := pebble.Sync
	if opts.NoSync {
		w = pebble.NoSync
	}
	return &Store{db: db, wopts: w}, nil
}

var _ store.OrderedSet = (*Store)(nil)

func queuePrefix(queue string) []byte {
	return append(append([]byte("q/"), queue...), '/')
}

// queueBounds returns the key range [lo, hi) holding every entry of the
// queue: prefix || score || member with score in [minScore, MaxScore].
// Bounding by the score domain rather than the bare prefix keeps a queue
// named a/b out of queue a's range, since a valid score never starts with
// an ASCII byte.
func queueBounds(queue string, minScore uint64) (lo, hi []byte) {
	p := queuePrefix(queue)
	lo = make([]byte, len(p)+8)
	copy(lo, p)
	binary.BigEndian.PutUint64(lo[len(p):], minScore)
	hi = make([]byte, len(p)+8)
	copy(hi, p)
	binary.BigEndian.PutUint64(hi[len(p):], score.MaxScore+1)
	return lo, hi
}

// entryKey is prefix || score || member. The score occupies a fixed 8 bytes,
// so no separator is needed before the member.
func entryKey(queue string, sc uint64, member []byte) []byte {
	p := queuePrefix(queue)
	key := make([]byte, len(p)+8+len(member))
	copy(key, p)
	binary.BigEndian.PutUint64(key[len(p):], sc)
	copy(key[len(p)+8:], member)
	return key
}

func (s *Store) Add(ctx context.Context, queue string, sc uint64, member []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if sc > score.MaxScore {
		return score.ErrOutOfRange
	}
	if err := s.db.Set(entryKey(queue, sc, member), nil, s.wopts); err != nil {
		return unavailable("set", err)
	}
	return nil
}

func (s *Store) ClaimDue(ctx context.Context, queue string, minScore uint64) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p := queuePrefix(queue)
	lo, hi := queueBounds(queue, minScore)

	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lo, UpperBound: hi})
	if err != nil {
		return nil, unavailable("iter", err)
	}

	var members [][]byte
	b := s.db.NewBatch()
	defer b.Close()
	// reverse iteration: highest score first, i.e. oldest ready-time first
	for ok := iter.Last(); ok; ok = iter.Prev() {
		k := iter.Key()
		if len(k) < len(p)+8 {
			continue
		}
		members = append(members, append([]byte(nil), k[len(p)+8:]...))
		if err := b.Delete(k, nil); err != nil {
			_ = iter.Close()
			return nil, unavailable("delete", err)
		}
	}
	if err := iter.Close(); err != nil {
		return nil, unavailable("iter", err)
	}
	if len(members) == 0 {
		return nil, nil
	}
	if err := b.Commit(s.wopts); err != nil {
		return nil, unavailable("commit", err)
	}
	return members, nil
}

func (s *Store) Pending(ctx context.Context, queue string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	lo, hi := queueBounds(queue, 0)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lo, UpperBound: hi})
	if err != nil {
		return 0, unavailable("iter", err)
	}
	defer iter.Close()
	var n int64
	for ok := iter.First(); ok; ok = iter.Next() {
		n++
	}
	return n, nil
}

func (s *Store) Clear(ctx context.Context, queue string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	lo, hi := queueBounds(queue, 0)
	if err := s.db.DeleteRange(lo, hi, s.wopts); err != nil {
		return unavailable("delete-range", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	iter, err := s.db.NewIter(nil)
	if err != nil {
		return unavailable("iter", err)
	}
	return iter.Close()
}

func (s *Store) Close() error { return s.db.Close() }

func unavailable(op string, err error) error {
	return fmt.Errorf("pebble %s: %w: %s", op, store.ErrUnavailable, err)
}
