// Package id generates lexicographically sortable task identifiers.
package id

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"sync"
	"time"
)

// ID is a 128-bit sortable identifier: 8 bytes of unix-millisecond timestamp
// followed by 8 bytes of per-process sequence, both big-endian. String order
// equals creation order within a process.
type ID [16]byte

// ErrBadID reports a string that is not a valid hex-encoded ID.
var ErrBadID = errors.New("id: malformed identifier")

// String returns the 32-character lowercase hex encoding.
func (i ID) String() string { return hex.EncodeToString(i[:]) }

// Time returns the timestamp half of the ID.
func (i ID) Time() time.Time {
	ms := int64(binary.BigEndian.Uint64(i[0:8]))
	return time.UnixMilli(ms)
}

// Less reports whether i sorts before other.
func (i ID) Less(other ID) bool {
	for n := 0; n < 16; n++ {
		if i[n] != other[n] {
			return i[n] < other[n]
		}
	}
	return false
}

// Parse decodes a hex string produced by String.
func Parse(s string) (ID, error) {
	var out ID
	if len(s) != 32 {
		return out, ErrBadID
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, ErrBadID
	}
	copy(out[:], b)
	return out, nil
}

// Generator produces monotonically increasing IDs per process. The zero
// value is not usable; call NewGenerator.
type Generator struct {
	mu     sync.Mutex
	lastMs int64
	seq    uint64
	now    func() time.Time
}

// NewGenerator creates a Generator using the wall clock.
func NewGenerator() *Generator { return &Generator{now: time.Now} }

// NewGeneratorAt creates a Generator with an injected clock, for tests.
func NewGeneratorAt(now func() time.Time) *Generator { return &Generator{now: now} }

// Next returns a new ID. If the clock moves backwards, the previous
// millisecond is reused and the sequence keeps the ordering monotonic.
func (g *Generator) Next() ID {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := g.now().UnixMilli()
	if ms < g.lastMs {
		ms = g.lastMs
	}
	if ms == g.lastMs {
		g.seq++
	} else {
		g.lastMs = ms
		g.seq = 0
	}

	var out ID
	binary.BigEndian.PutUint64(out[0:8], uint64(ms))
	binary.BigEndian.PutUint64(out[8:16], g.seq)
	return out
}
