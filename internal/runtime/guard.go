package runtime

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/aretw0/interop/pkg/domain"
	"github.com/aretw0/interop/pkg/pathexpr"
)

// input is the event under evaluation plus its lazily parsed body.
type input struct {
	event  domain.Event
	doc    pathexpr.Document
	parsed bool
}

func newInput(ev domain.Event) *input {
	return &input{event: ev}
}

func (in *input) body() pathexpr.Document {
	if !in.parsed {
		in.doc = pathexpr.ParseString(in.event.Body)
		in.parsed = true
	}
	return in.doc
}

// view is the map form of the event exposed to expressions and templates.
func (in *input) view() map[string]any {
	ev := in.event
	headers := make(map[string]any, len(ev.Headers))
	for k, v := range ev.Headers {
		headers[k] = v
	}
	var parsed any
	if doc := in.body(); doc.Kind() == pathexpr.KindJSON {
		parsed = doc.Value()
	}
	return map[string]any{
		"seq":            ev.Seq,
		"interface":      ev.InterfaceID,
		"direction":      string(ev.Direction),
		"method":         ev.Method,
		"path":           ev.Path,
		"status":         ev.Status,
		"headers":        headers,
		"body":           ev.Body,
		"json":           parsed,
		"fault":          ev.Fault,
		"correlation_id": ev.CorrelationID,
	}
}

// matches reports whether every guard holds for the event. A guard that
// cannot be evaluated is recorded as an exception and counts as false.
// An empty guard list matches any non-fault event.
func (e *Engine) matches(ctx context.Context, guards []domain.Guard, in *input) bool {
	if len(guards) == 0 {
		return !in.event.IsFault()
	}
	for _, g := range guards {
		ok, err := e.holds(g, in)
		if err != nil {
			e.recordException(ctx, in.event, fmt.Errorf("guard evaluation: %w", err))
			return false
		}
		if !ok {
			return false
		}
	}
	return true
}

func (e *Engine) holds(g domain.Guard, in *input) (bool, error) {
	ev := in.event
	if g.Fault != ev.IsFault() {
		return false, nil
	}
	if g.Interface != "" && g.Interface != ev.InterfaceID {
		return false, nil
	}
	if g.Direction != "" && g.Direction != ev.Direction {
		return false, nil
	}
	if g.Method != "" && !strings.EqualFold(g.Method, ev.Method) {
		return false, nil
	}
	if g.Status != 0 && g.Status != ev.Status {
		return false, nil
	}
	for name, want := range g.Headers {
		if !strings.EqualFold(ev.Header(name), want) {
			return false, nil
		}
	}

	if g.Path != "" {
		ok, err := e.matchPath(g, in)
		if err != nil || !ok {
			return false, err
		}
	}

	if g.Schema != "" {
		schema, ok := e.schemas[g.Schema]
		if !ok {
			return false, fmt.Errorf("unknown schema %q", g.Schema)
		}
		if !e.paths.Conforms(in.body(), schema) {
			return false, nil
		}
	}

	if g.Expr != "" {
		env := map[string]any{
			"event": in.view(),
			"vars":  map[string]any(e.bindings()),
			"value": func(path string) any {
				v, err := e.paths.ReadValue(in.body(), path)
				if err != nil {
					return nil
				}
				return v
			},
		}
		return e.exprs.Evaluate(g.Expr, env)
	}

	return true, nil
}

// matchPath checks the Path/Equals pair. Without Equals the path only has to
// resolve.
func (e *Engine) matchPath(g domain.Guard, in *input) (bool, error) {
	if g.Equals == "" {
		_, err := e.paths.ReadValue(in.body(), g.Path)
		if errors.Is(err, pathexpr.ErrUnresolved) {
			return false, nil
		}
		return err == nil, err
	}

	want, err := substitute(g.Equals, e.bindings())
	if err != nil {
		return false, err
	}
	return e.paths.AssertMatch(in.body(), g.Path, want)
}

var bindingRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_.-]*)\}`)

// substitute replaces ${name} references with the string form of bindings.
func substitute(s string, vars domain.Bindings) (string, error) {
	var missing []string
	out := bindingRef.ReplaceAllStringFunc(s, func(ref string) string {
		name := bindingRef.FindStringSubmatch(ref)[1]
		v, ok := vars[name]
		if !ok {
			missing = append(missing, name)
			return ref
		}
		return pathexpr.Stringify(v)
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("unbound variable(s): %s", strings.Join(missing, ", "))
	}
	return out, nil
}
