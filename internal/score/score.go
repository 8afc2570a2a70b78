// Package score converts task ready-times into ordered-set sort keys.
//
// The backing ordered sets return members sorted by score. Encoding a
// ready-time as MaxTimestamp minus the unix-millisecond instant makes
// earlier ready-times produce larger scores, so "everything due by now" is
// the single contiguous range [Encode(now), MaxScore] and iterating that
// range from high score to low score yields oldest-ready entries first.
package score

import (
	"errors"
	"time"
)

// MaxTimestamp is the encoding ceiling in unix milliseconds. It is capped at
// 2^53-1 so every encoded score stays exactly representable in a float64,
// which the Redis backend requires for sorted-set scores.
const MaxTimestamp uint64 = 1<<53 - 1

// MaxScore is the largest score Encode can produce, reached at readyAt = 0.
const MaxScore = MaxTimestamp

// ErrOutOfRange reports a ready-time outside [0, MaxTimestamp].
var ErrOutOfRange = errors.New("score: ready-time outside encodable range")

// Encode maps a ready-time to its sort key.
func Encode(readyAt time.Time) (uint64, error) {
	ms := readyAt.UnixMilli()
	if ms < 0 || uint64(ms) > MaxTimestamp {
		return 0, ErrOutOfRange
	}
	return MaxTimestamp - uint64(ms), nil
}

// Decode is the inverse of Encode.
func Decode(s uint64) (time.Time, error) {
	if s > MaxScore {
		return time.Time{}, ErrOutOfRange
	}
	return time.UnixMilli(int64(MaxTimestamp - s)), nil
}

// DueFloor returns the minimum score of the due window for the given
// instant. An entry is due iff its score lies in [DueFloor(now), MaxScore].
func DueFloor(now time.Time) (uint64, error) {
	return Encode(now)
}
