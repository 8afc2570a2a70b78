// Package redisstore implements the ordered-set contract on Redis sorted
// sets. The claim path runs as a server-side Lua script, so concurrent
// pollers against the same queue never receive the same entry.
package redisstore

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/rzbill/driftq/internal/score"
	"github.com/rzbill/driftq/internal/store"
)

// Store holds sorted-set queues under a shared key prefix. It owns the
// client handed to New and closes it on Close.
type Store struct {
	rds    redis.UniversalClient
	prefix string
}

// Option configures New.
type Option func(*Store)

// WithKeyPrefix overrides the default "driftq" key prefix.
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// New wraps a Redis client as an OrderedSet store.
func New(rds redis.UniversalClient, opts ...Option) *Store {
	s := &Store{rds: rds, prefix: "driftq"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ store.OrderedSet = (*Store)(nil)

// key returns the sorted-set key for a queue. The hash-tag braces keep a
// queue on a single slot when running against a Redis cluster.
func (s *Store) key(queue string) string {
	return fmt.Sprintf("{%s:%s}:tasks", s.prefix, queue)
}

func (s *Store) Add(ctx context.Context, queue string, sc uint64, member []byte) error {
	// Scores above 2^53 lose precision as float64 and would corrupt the
	// due-window arithmetic inside the claim script.
	if sc > score.MaxScore {
		return score.ErrOutOfRange
	}
	err := s.rds.ZAdd(ctx, s.key(queue), redis.Z{Score: float64(sc), Member: member}).Err()
	if err != nil {
		return unavailable("zadd", err)
	}
	return nil
}

func (s *Store) ClaimDue(ctx context.Context, queue string, minScore uint64) ([][]byte, error) {
	members, err := claimScript.Run(ctx, s.rds, []string{s.key(queue)},
		strconv.FormatUint(minScore, 10),
		strconv.FormatUint(score.MaxScore, 10),
	).StringSlice()
	if err != nil {
		return nil, unavailable("claim", err)
	}
	out := make([][]byte, len(members))
	for i, m := range members {
		out[i] = []byte(m)
	}
	return out, nil
}

func (s *Store) Pending(ctx context.Context, queue string) (int64, error) {
	n, err := s.rds.ZCard(ctx, s.key(queue)).Result()
	if err != nil {
		return 0, unavailable("zcard", err)
	}
	return n, nil
}

func (s *Store) Clear(ctx context.Context, queue string) error {
	if err := s.rds.Del(ctx, s.key(queue)).Err(); err != nil {
		return unavailable("del", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.rds.Ping(ctx).Err(); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func (s *Store) Close() error { return s.rds.Close() }

func unavailable(op string, err error) error {
	return fmt.Errorf("redis %s: %w: %s", op, store.ErrUnavailable, err)
}
