package controllers

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rzbill/driftq/internal/queue"
	"github.com/rzbill/driftq/internal/task"
	logpkg "github.com/rzbill/driftq/pkg/log"
)

type downStore struct{ err error }

func (s downStore) Add(context.Context, string, uint64, []byte) error { return s.err }
func (s downStore) ClaimDue(context.Context, string, uint64) ([][]byte, error) {
	return nil, s.err
}
func (s downStore) Pending(context.Context, string) (int64, error) { return 0, s.err }
func (s downStore) Clear(context.Context, string) error            { return s.err }
func (s downStore) Ping(context.Context) error                     { return s.err }
func (s downStore) Close() error                                   { return nil }

func TestRedeliverLogsRequeueFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := logpkg.NewLogger(
		logpkg.WithWriter(&buf),
		logpkg.WithFormat(logpkg.JSONFormat),
		logpkg.WithLevel(logpkg.ErrorLevel),
	)
	q := queue.New(downStore{err: errors.New("store down")}, "jobs")
	tk := task.New([]byte(`"stuck"`))

	redeliver(q, tk, time.Second, logger)

	out := buf.String()
	if !strings.Contains(out, "task lost") {
		t.Fatalf("requeue failure not logged: %q", out)
	}
	if !strings.Contains(out, tk.ID) {
		t.Fatalf("log missing task id %s: %q", tk.ID, out)
	}
}

func TestRedeliverQuietOnSuccess(t *testing.T) {
	var buf bytes.Buffer
	logger := logpkg.NewLogger(logpkg.WithWriter(&buf), logpkg.WithLevel(logpkg.ErrorLevel))
	q := queue.New(downStore{err: nil}, "jobs")

	redeliver(q, task.New(nil), time.Second, logger)

	if buf.Len() != 0 {
		t.Fatalf("unexpected log output: %q", buf.String())
	}
}
