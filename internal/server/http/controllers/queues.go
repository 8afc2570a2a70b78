package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rzbill/driftq/internal/poller"
	"github.com/rzbill/driftq/internal/queue"
	"github.com/rzbill/driftq/internal/runtime"
	"github.com/rzbill/driftq/internal/score"
	"github.com/rzbill/driftq/internal/task"
	logpkg "github.com/rzbill/driftq/pkg/log"
)

// QueuesController handles all queue-related HTTP endpoints: enqueue, claim,
// nack, stats, clear, and the SSE subscribe stream.
type QueuesController struct {
	rt *runtime.Runtime
}

func NewQueuesController(rt *runtime.Runtime) *QueuesController {
	return &QueuesController{rt: rt}
}

func (c *QueuesController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/queues/{queue}/enqueue", c.handleEnqueue)
	mux.HandleFunc("POST /v1/queues/{queue}/claim", c.handleClaim)
	mux.HandleFunc("POST /v1/queues/{queue}/nack", c.handleNack)
	mux.HandleFunc("POST /v1/queues/{queue}/clear", c.handleClear)
	mux.HandleFunc("GET /v1/queues/{queue}/stats", c.handleStats)
	mux.HandleFunc("GET /v1/queues/{queue}/subscribe", c.handleSubscribeSSE)
}

func (c *QueuesController) openQueue(w http.ResponseWriter, r *http.Request) (*queue.Client, bool) {
	name := r.PathValue("queue")
	if name == "" {
		writeError(w, http.StatusBadRequest, "queue name required")
		return nil, false
	}
	return c.rt.OpenQueue(name), true
}

// handleEnqueue inserts a task with an optional delay or absolute ready time.
// POST /v1/queues/{queue}/enqueue
func (c *QueuesController) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	q, ok := c.openQueue(w, r)
	if !ok {
		return
	}
	var req EnqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	readyAt := time.Now()
	switch {
	case req.ReadyAtMs > 0:
		readyAt = time.UnixMilli(req.ReadyAtMs)
	case req.DelayMs > 0:
		readyAt = readyAt.Add(time.Duration(req.DelayMs) * time.Millisecond)
	}

	t := task.New(req.Payload)
	if err := q.Enqueue(r.Context(), t, readyAt); err != nil {
		if errors.Is(err, score.ErrOutOfRange) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSONStatus(w, http.StatusAccepted, EnqueueResponse{
		ID:        t.ID,
		ReadyAtMs: readyAt.UnixMilli(),
	})
}

// handleClaim atomically removes and returns every task due now.
// POST /v1/queues/{queue}/claim
func (c *QueuesController) handleClaim(w http.ResponseWriter, r *http.Request) {
	q, ok := c.openQueue(w, r)
	if !ok {
		return
	}
	b, err := q.ClaimDue(r.Context(), time.Now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := ClaimResponse{Tasks: b.Tasks, DecodeErrors: b.DecodeErrors}
	if resp.Tasks == nil {
		resp.Tasks = []*task.Task{}
	}
	writeJSON(w, resp)
}

// handleNack reports a failed attempt. The retry policy decides between a
// backoff requeue with an incremented failure count and a discard.
// POST /v1/queues/{queue}/nack
func (c *QueuesController) handleNack(w http.ResponseWriter, r *http.Request) {
	q, ok := c.openQueue(w, r)
	if !ok {
		return
	}
	var req NackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	t, err := task.Decode(req.Task)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	pol := c.rt.Config().Poll.Policy()
	delay, retryable := pol.Next(t.FailureCount)
	if !retryable {
		writeJSON(w, NackResponse{Requeued: false})
		return
	}
	t.FailureCount++
	next := time.Now().Add(delay)
	if err := q.Requeue(r.Context(), t, next); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, NackResponse{Requeued: true, NextReadyAtMs: next.UnixMilli()})
}

// handleStats reports how many entries the queue holds, due or not.
// GET /v1/queues/{queue}/stats
func (c *QueuesController) handleStats(w http.ResponseWriter, r *http.Request) {
	q, ok := c.openQueue(w, r)
	if !ok {
		return
	}
	n, err := q.Pending(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, StatsResponse{Queue: q.Name(), Pending: n})
}

// handleClear drops every entry in the queue.
// POST /v1/queues/{queue}/clear
func (c *QueuesController) handleClear(w http.ResponseWriter, r *http.Request) {
	q, ok := c.openQueue(w, r)
	if !ok {
		return
	}
	if err := q.Clear(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSubscribeSSE streams claimed tasks as Server-Sent Events. An
// optional ?filter= CEL expression selects which tasks the stream delivers;
// non-matching tasks go back to the queue with their failure count
// unchanged.
// GET /v1/queues/{queue}/subscribe?filter=<cel>
func (c *QueuesController) handleSubscribeSSE(w http.ResponseWriter, r *http.Request) {
	q, ok := c.openQueue(w, r)
	if !ok {
		return
	}
	filter, err := newCELFilter(r.URL.Query().Get("filter"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	p := c.rt.NewPoller(q)
	sub := p.Subscribe(r.Context(), 0)
	defer sub.Close()

	sink := sseSink{w: w}
	for {
		select {
		case <-r.Context().Done():
			return
		case d, open := <-sub.Deliveries():
			if !open {
				return
			}
			if !filter.Eval(d.Task) {
				c.redeliverLater(q, d)
				continue
			}
			if err := sink.Send(d.Task); err != nil {
				// Client is gone; put the task back untouched.
				c.redeliverLater(q, d)
				return
			}
			sink.Flush()
			d.Ack()
		}
	}
}

// redeliverLater returns an undeliverable task to the queue one poll
// interval out, without counting a failure, then settles the delivery.
func (c *QueuesController) redeliverLater(q *queue.Client, d *poller.Delivery) {
	redeliver(q, d.Task, c.rt.Config().Poll.Interval(), c.rt.Logger())
	d.Ack()
}

// redeliver puts a claimed task back with its failure count unchanged. The
// claim already removed the entry, so a requeue failure is a real loss and
// must be visible.
func redeliver(q *queue.Client, t *task.Task, delay time.Duration, logger logpkg.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := q.Requeue(ctx, t, time.Now().Add(delay)); err != nil {
		logger.Error("requeue failed, task lost",
			logpkg.Str("queue", q.Name()),
			logpkg.Str("task", t.ID),
			logpkg.Err(err),
		)
	}
}
