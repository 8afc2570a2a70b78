// Package task defines the unit of work carried through DriftQ queues and
// its wire encoding.
package task

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/rzbill/driftq/pkg/id"
)

// ErrMalformed reports a member that cannot be decoded into a Task.
var ErrMalformed = errors.New("task: malformed task record")

var gen = id.NewGenerator()

// Task is an opaque payload plus delivery metadata. The serialized form is
// the member stored in the ordered set, so two tasks with identical
// serialized content are indistinguishable to the store; New assigns a
// unique ID to keep payload-equal tasks distinct.
//
// FailureCount only increases, by exactly one per failed attempt.
type Task struct {
	ID           string          `json:"id"`
	CreatedAt    int64           `json:"created_at_ms"`
	FailureCount int             `json:"failure_count"`
	Payload      json.RawMessage `json:"payload,omitempty"`
}

// New builds a fresh Task around payload with a generated ID.
func New(payload []byte) *Task {
	return &Task{
		ID:        gen.Next().String(),
		CreatedAt: time.Now().UnixMilli(),
		Payload:   json.RawMessage(payload),
	}
}

// Created returns the creation instant.
func (t *Task) Created() time.Time { return time.UnixMilli(t.CreatedAt) }

// Encode serializes the task into its ordered-set member form.
func Encode(t *Task) ([]byte, error) {
	if t == nil {
		return nil, ErrMalformed
	}
	if t.FailureCount < 0 {
		return nil, ErrMalformed
	}
	return json.Marshal(t)
}

// Decode parses a member back into a Task. Any record that does not
// round-trip failure count and payload losslessly is rejected.
func Decode(member []byte) (*Task, error) {
	var t Task
	if err := json.Unmarshal(member, &t); err != nil {
		return nil, errors.Join(ErrMalformed, err)
	}
	if t.ID == "" || t.FailureCount < 0 {
		return nil, ErrMalformed
	}
	return &t, nil
}
