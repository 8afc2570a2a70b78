package controllers

import (
	"encoding/json"

	"github.com/rzbill/driftq/internal/task"
)

// EnqueueRequest inserts a task. ReadyAtMs wins when both it and DelayMs are
// set; with neither, the task is due immediately.
type EnqueueRequest struct {
	Payload   json.RawMessage `json:"payload,omitempty"`
	DelayMs   int64           `json:"delay_ms,omitempty"`
	ReadyAtMs int64           `json:"ready_at_ms,omitempty"`
}

type EnqueueResponse struct {
	ID        string `json:"id"`
	ReadyAtMs int64  `json:"ready_at_ms"`
}

// ClaimResponse carries every task that was due at claim time, oldest
// ready-time first. DecodeErrors counts removed members that could not be
// decoded.
type ClaimResponse struct {
	Tasks        []*task.Task `json:"tasks"`
	DecodeErrors int          `json:"decode_errors,omitempty"`
}

// NackRequest reports a failed attempt on a previously claimed task. Task is
// the claimed task object exactly as returned by claim or subscribe.
type NackRequest struct {
	Task json.RawMessage `json:"task"`
}

type NackResponse struct {
	Requeued      bool  `json:"requeued"`
	NextReadyAtMs int64 `json:"next_ready_at_ms,omitempty"`
}

type StatsResponse struct {
	Queue   string `json:"queue"`
	Pending int64  `json:"pending"`
}
