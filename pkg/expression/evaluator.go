// Package expression evaluates sandboxed expressions used by edge conditions and control steps.
// Programs are compiled once per source string and environment shape, then cached.
package expression

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

const DefaultMaxLength = 4096

// Evaluator compiles and runs expressions. It is safe for concurrent use.
type Evaluator struct {
	compiled map[string]*vm.Program
	mu       sync.RWMutex

	// MaxLength limits the size of an expression source.
	MaxLength int
}

func NewEvaluator() *Evaluator {
	return &Evaluator{
		compiled:  make(map[string]*vm.Program),
		MaxLength: DefaultMaxLength,
	}
}

// Normalize rewrites strict equality operators to their expr equivalents. String literals are left as they
// are.
func Normalize(source string) string {
	var b strings.Builder

	b.Grow(len(source))

	var quote byte

	for i := 0; i < len(source); i++ {
		c := source[i]

		if quote != 0 {
			b.WriteByte(c)

			switch {
			case c == '\\' && quote != '`' && i+1 < len(source):
				i++
				b.WriteByte(source[i])
			case c == quote:
				quote = 0
			}

			continue
		}

		switch {
		case c == '"' || c == '\'' || c == '`':
			quote = c
		case strings.HasPrefix(source[i:], "!=="):
			b.WriteString("!=")
			i += 2

			continue
		case strings.HasPrefix(source[i:], "==="):
			b.WriteString("==")
			i += 2

			continue
		}

		b.WriteByte(c)
	}

	return b.String()
}

// Evaluate runs the expression against env.
func (e *Evaluator) Evaluate(source string, env map[string]any) (any, error) {
	if len(source) > e.MaxLength {
		return nil, fmt.Errorf("expression exceeds maximum length of %d characters", e.MaxLength)
	}

	prog, err := e.program(source, env)
	if err != nil {
		return nil, err
	}

	result, err := expr.Run(prog, env)
	if err != nil {
		return nil, fmt.Errorf("evaluate expression %q: %w", source, err)
	}

	return result, nil
}

// EvaluateBool runs the expression and converts the result to its truthiness.
func (e *Evaluator) EvaluateBool(source string, env map[string]any) (bool, error) {
	result, err := e.Evaluate(source, env)
	if err != nil {
		return false, err
	}

	return Truthy(result)
}

// EvaluateString runs the expression and formats non-string results with fmt.Sprint.
func (e *Evaluator) EvaluateString(source string, env map[string]any) (string, error) {
	result, err := e.Evaluate(source, env)
	if err != nil {
		return "", err
	}

	if s, ok := result.(string); ok {
		return s, nil
	}

	return fmt.Sprint(result), nil
}

// Cached reports how many programs are cached.
func (e *Evaluator) Cached() int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return len(e.compiled)
}

func (e *Evaluator) program(source string, env map[string]any) (*vm.Program, error) {
	key := source + "\x00" + envShape(env)

	e.mu.RLock()
	prog, ok := e.compiled[key]
	e.mu.RUnlock()

	if ok {
		return prog, nil
	}

	prog, err := expr.Compile(Normalize(source), expr.Env(env))
	if err != nil {
		return nil, fmt.Errorf("compile expression %q: %w", source, err)
	}

	e.mu.Lock()
	e.compiled[key] = prog
	e.mu.Unlock()

	return prog, nil
}

// envShape describes the top-level names and value types of env. Programs are type-checked against them,
// so envs of another shape need their own program.
func envShape(env map[string]any) string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}

	slices.Sort(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s:%T;", k, env[k])
	}

	return b.String()
}

// Truthy converts an expression result to a boolean.
func Truthy(v any) (bool, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case int:
		return val != 0, nil
	case int64:
		return val != 0, nil
	case float64:
		return val != 0, nil
	case string:
		return val != "", nil
	case nil:
		return false, nil
	case map[string]any, []any:
		return true, nil
	default:
		return false, fmt.Errorf("expression returned %T, expected bool", v)
	}
}
