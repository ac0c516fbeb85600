package middleware

import (
	"context"
	"encoding/json"
	"regexp"

	"github.com/aretw0/interop/pkg/domain"
	"github.com/aretw0/interop/pkg/pathexpr"
	"github.com/aretw0/interop/pkg/ports"
)

// Mask replaces every redacted value.
const Mask = "***"

type piiMiddleware struct {
	next     ports.TraceStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks header values and JSON
// body fields whose names match one of the patterns before they are stored.
// Redaction is one-way: loaded traces keep the mask.
func NewPIIMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.TraceStore) ports.TraceStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}
}

func (m *piiMiddleware) Save(ctx context.Context, trace *domain.Trace) error {
	masked := *trace
	masked.Events = make([]domain.Event, len(trace.Events))
	for i, ev := range trace.Events {
		// Clone so the caller's trace is left untouched.
		ev = ev.Clone()
		for k := range ev.Headers {
			if m.matches(k) {
				ev.Headers[k] = Mask
			}
		}
		ev.Body = m.maskBody(ev.Body)
		masked.Events[i] = ev
	}
	return m.next.Save(ctx, &masked)
}

func (m *piiMiddleware) Load(ctx context.Context, id string) (*domain.Trace, error) {
	return m.next.Load(ctx, id)
}

func (m *piiMiddleware) Delete(ctx context.Context, id string) error {
	return m.next.Delete(ctx, id)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func (m *piiMiddleware) matches(key string) bool {
	for _, p := range m.patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}

// maskBody redacts JSON bodies. Other bodies are stored as they are.
func (m *piiMiddleware) maskBody(body string) string {
	doc := pathexpr.ParseString(body)
	if doc.Kind() != pathexpr.KindJSON {
		return body
	}
	value := doc.Value()
	if !m.mask(value) {
		return body
	}
	out, err := json.Marshal(value)
	if err != nil {
		return body
	}
	return string(out)
}

// mask walks v in place and reports whether anything was redacted.
func (m *piiMiddleware) mask(v any) bool {
	changed := false
	switch t := v.(type) {
	case map[string]any:
		for k, sub := range t {
			if m.matches(k) {
				t[k] = Mask
				changed = true
				continue
			}
			if m.mask(sub) {
				changed = true
			}
		}
	case []any:
		for _, sub := range t {
			if m.mask(sub) {
				changed = true
			}
		}
	}
	return changed
}
