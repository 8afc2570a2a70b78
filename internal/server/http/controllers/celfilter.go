package controllers

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/rzbill/driftq/internal/task"
)

// celFilter wraps a compiled CEL program evaluated against each task on a
// subscribe stream. When disabled, Eval always returns true.
type celFilter struct {
	prog    cel.Program
	enabled bool
}

func newCELFilter(expr string) (celFilter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return celFilter{enabled: false}, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("id", cel.StringType),
		cel.Variable("failure_count", cel.IntType),
		cel.Variable("created_at_ms", cel.IntType),
		cel.Variable("size", cel.IntType),
		cel.Variable("text", cel.StringType),
		// Parsed JSON payload (map/list/values) for field filtering
		cel.Variable("json", cel.DynType),
		// Current time in ms for windowed filters
		cel.Variable("now_ms", cel.IntType),
	)
	if err != nil {
		return celFilter{}, err
	}
	ast, iss := env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return celFilter{}, iss.Err()
	}
	checked, iss2 := env.Check(ast)
	if iss2 != nil && iss2.Err() != nil {
		return celFilter{}, iss2.Err()
	}
	prog, err := env.Program(checked)
	if err != nil {
		return celFilter{}, err
	}
	return celFilter{prog: prog, enabled: true}, nil
}

// Eval evaluates the compiled expression against a task. Evaluation errors
// count as a non-match.
func (f celFilter) Eval(t *task.Task) bool {
	if !f.enabled {
		return true
	}
	var jsonObj any
	_ = json.Unmarshal(t.Payload, &jsonObj)
	out, _, err := f.prog.Eval(map[string]any{
		"id":            t.ID,
		"failure_count": int64(t.FailureCount),
		"created_at_ms": t.CreatedAt,
		"size":          int64(len(t.Payload)),
		"text":          string(t.Payload),
		"json":          jsonObj,
		"now_ms":        time.Now().UnixMilli(),
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
