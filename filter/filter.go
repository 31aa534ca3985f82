// Package filter selects threads with CEL expressions.
//
// An expression sees one thread at a time through these variables:
//
//	id          string
//	resourceId  string
//	title       string
//	metadata    map(string, dyn)
//	createdAt   timestamp
//	updatedAt   timestamp
//
// and must evaluate to a bool. For example:
//
//	metadata.subject == "math" && updatedAt > timestamp("2026-01-01T00:00:00Z")
//	title.startsWith("Exam") || "exam" in metadata
package filter

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/zero-day-ai/coachmem/store"
)

// ErrInvalidExpression is returned when an expression does not compile or
// does not produce a bool.
var ErrInvalidExpression = errors.New("filter: invalid expression")

var (
	envOnce sync.Once
	env     *cel.Env
	envErr  error
)

func threadEnv() (*cel.Env, error) {
	envOnce.Do(func() {
		env, envErr = cel.NewEnv(
			cel.Variable("id", cel.StringType),
			cel.Variable("resourceId", cel.StringType),
			cel.Variable("title", cel.StringType),
			cel.Variable("metadata", cel.MapType(cel.StringType, cel.DynType)),
			cel.Variable("createdAt", cel.TimestampType),
			cel.Variable("updatedAt", cel.TimestampType),
		)
	})
	return env, envErr
}

// Filter is a compiled thread predicate. It is safe for concurrent use.
type Filter struct {
	expr string
	prg  cel.Program
}

// Compile parses and type-checks expr.
func Compile(expr string) (*Filter, error) {
	e, err := threadEnv()
	if err != nil {
		return nil, fmt.Errorf("filter: build environment: %w", err)
	}

	ast, iss := e.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExpression, iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("%w: expression returns %v, want bool", ErrInvalidExpression, ast.OutputType())
	}

	prg, err := e.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExpression, err)
	}

	return &Filter{expr: expr, prg: prg}, nil
}

// String returns the source expression.
func (f *Filter) String() string {
	return f.expr
}

// Match evaluates the filter against one thread.
func (f *Filter) Match(t store.Thread) (bool, error) {
	metadata := t.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	out, _, err := f.prg.Eval(map[string]any{
		"id":         t.ID,
		"resourceId": t.ResourceID,
		"title":      t.Title,
		"metadata":   metadata,
		"createdAt":  t.CreatedAt,
		"updatedAt":  t.UpdatedAt,
	})
	if err != nil {
		return false, fmt.Errorf("filter: evaluate %q on thread %s: %w", f.expr, t.ID, err)
	}

	matched, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("%w: result %v is not a bool", ErrInvalidExpression, out.Value())
	}
	return matched, nil
}

// Apply returns the threads that match, preserving their order.
func (f *Filter) Apply(threads []store.Thread) ([]store.Thread, error) {
	out := make([]store.Thread, 0, len(threads))
	for _, t := range threads {
		ok, err := f.Match(t)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, t)
		}
	}
	return out, nil
}
