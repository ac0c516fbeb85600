// Package expression evaluates boolean guard expressions with expr-lang.
package expression

import (
	"fmt"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// compileEnv declares the helper functions available to every expression.
// Callers supply the real implementations in the runtime environment.
var compileEnv = map[string]any{
	"value": func(string) any { return nil },
	"lower": strings.ToLower,
}

// Evaluator compiles and runs guard expressions. Compiled programs are cached
// by source text; it is safe for concurrent use.
type Evaluator struct {
	cache map[string]*vm.Program
	mu    sync.RWMutex
}

// New creates an expression evaluator.
func New() *Evaluator {
	return &Evaluator{
		cache: make(map[string]*vm.Program),
	}
}

// Compile checks that source is a valid boolean expression.
func (e *Evaluator) Compile(source string) error {
	_, err := e.compile(source)
	return err
}

// Evaluate runs source against env and returns its boolean result.
//
// The environment usually holds:
//   - event: the event under evaluation (interface, direction, method, path,
//     status, headers, body, json, fault)
//   - vars: the bindings accumulated so far
//   - value(path): reads a path from the event body
//   - lower(s): lowercases a string
//
// Example:
//
//	event.status == 201 && vars.order_id == event.json.id
func (e *Evaluator) Evaluate(source string, env map[string]any) (bool, error) {
	if strings.TrimSpace(source) == "" {
		return true, nil
	}

	program, err := e.compile(source)
	if err != nil {
		return false, err
	}

	runEnv := make(map[string]any, len(env)+1)
	for k, v := range env {
		runEnv[k] = v
	}
	if _, ok := runEnv["lower"]; !ok {
		runEnv["lower"] = strings.ToLower
	}
	if _, ok := runEnv["value"]; !ok {
		runEnv["value"] = compileEnv["value"]
	}

	out, err := expr.Run(program, runEnv)
	if err != nil {
		return false, fmt.Errorf("expression %q failed: %w", source, err)
	}
	result, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("expression %q must return boolean, got %T", source, out)
	}
	return result, nil
}

func (e *Evaluator) compile(source string) (*vm.Program, error) {
	e.mu.RLock()
	if prog, ok := e.cache[source]; ok {
		e.mu.RUnlock()
		return prog, nil
	}
	e.mu.RUnlock()

	prog, err := expr.Compile(source,
		expr.Env(compileEnv),
		expr.AllowUndefinedVariables(),
		expr.AsBool(),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid expression %q: %w", source, err)
	}

	e.mu.Lock()
	e.cache[source] = prog
	e.mu.Unlock()
	return prog, nil
}

// CacheSize returns the number of cached programs.
func (e *Evaluator) CacheSize() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.cache)
}
