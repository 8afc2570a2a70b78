package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/rzbill/driftq/internal/task"
)

// sseSink formats tasks as Server-Sent Events.
type sseSink struct {
	w http.ResponseWriter
}

// Send writes one task as an SSE data event.
func (s sseSink) Send(t *task.Task) error {
	b, err := json.Marshal(t)
	if err != nil {
		return err
	}
	if _, err := s.w.Write([]byte("data: ")); err != nil {
		return err
	}
	if _, err := s.w.Write(b); err != nil {
		return err
	}
	_, err = s.w.Write([]byte("\n\n"))
	return err
}

// Flush pushes the event to the client immediately when the writer supports
// it.
func (s sseSink) Flush() {
	if f, ok := s.w.(http.Flusher); ok {
		f.Flush()
	}
}
