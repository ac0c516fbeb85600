package pathexpr

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
	"github.com/aretw0/interop/pkg/domain"
	"github.com/itchyny/gojq"
)

// ErrUnresolved is wrapped by the PathError returned when an expression is
// valid but selects nothing in the document.
var ErrUnresolved = errors.New("path does not resolve")

const (
	queryGetPath = "getpath($p)"
	querySetPath = "setpath($p; $v)"
)

// Evaluator evaluates path expressions. It caches compiled jq programs and is
// safe for concurrent use.
type Evaluator struct {
	logger *slog.Logger

	mu    sync.RWMutex
	cache map[string]*gojq.Code
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithLogger sets the logger used to report validation failures.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Evaluator) {
		e.logger = logger
	}
}

// New creates an Evaluator.
func New(opts ...Option) *Evaluator {
	e := &Evaluator{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		cache:  make(map[string]*gojq.Code),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultEvaluator = New()

// ReadValue evaluates expr with the package default Evaluator.
func ReadValue(doc Document, expr string) (any, error) {
	return defaultEvaluator.ReadValue(doc, expr)
}

// WriteValue evaluates expr with the package default Evaluator.
func WriteValue(doc Document, expr string, value any) (Document, error) {
	return defaultEvaluator.WriteValue(doc, expr, value)
}

// AssertMatch evaluates expr with the package default Evaluator.
func AssertMatch(doc Document, expr, expected string) (bool, error) {
	return defaultEvaluator.AssertMatch(doc, expr, expected)
}

// Compile checks that expr is syntactically valid.
func Compile(expr string) error {
	return defaultEvaluator.Compile(expr)
}

// Compile checks that expr is syntactically valid without evaluating it.
// The document kind is unknown here, so an expression starting with "." is
// accepted when it is either a valid jq program or a valid relative XPath.
// Slash paths are checked when they are evaluated.
func (e *Evaluator) Compile(expr string) error {
	if expr == "" {
		return &domain.PathError{Expr: expr, Reason: "empty expression"}
	}
	if isJQ(expr) {
		_, err := e.compile(expr)
		if err == nil {
			return nil
		}
		if _, xerr := xpath.Compile(expr); xerr == nil {
			return nil
		}
		return &domain.PathError{Expr: expr, Reason: "invalid expression", Err: err}
	}
	return nil
}

// ReadValue returns the value expr selects in doc. It returns a *PathError
// wrapping ErrUnresolved when nothing is selected.
func (e *Evaluator) ReadValue(doc Document, expr string) (any, error) {
	if expr == domain.WholeDocument {
		return doc.String(), nil
	}

	switch doc.Kind() {
	case KindJSON:
		return e.readJSON(doc, expr)
	case KindXML:
		return e.readXML(doc, expr)
	default:
		return nil, unresolved(expr)
	}
}

// AssertMatch reports whether the value expr selects equals expected once
// both the document and expected are lowercased. The whole-document token
// compares expected against the entire raw document.
//
// An expression that does not resolve yields false. An expression that is
// not valid yields an error.
func (e *Evaluator) AssertMatch(doc Document, expr, expected string) (bool, error) {
	lowered := ParseString(strings.ToLower(doc.String()))
	want := strings.ToLower(expected)

	if expr == domain.WholeDocument {
		return lowered.String() == want, nil
	}

	v, err := e.ReadValue(lowered, expr)
	if err != nil {
		if errors.Is(err, ErrUnresolved) {
			return false, nil
		}
		return false, err
	}
	return Stringify(v) == want, nil
}

// WriteValue returns a copy of doc with the element selected by expr replaced
// by value. The parent of the target must already exist and an array index
// must address an existing element. doc is not modified.
func (e *Evaluator) WriteValue(doc Document, expr string, value any) (Document, error) {
	if expr == domain.WholeDocument {
		return ParseString(Stringify(value)), nil
	}

	switch doc.Kind() {
	case KindJSON:
		return e.writeJSON(doc, expr, value)
	case KindXML:
		return e.writeXML(doc, expr, value)
	default:
		return Document{}, &domain.PathError{Expr: expr, Reason: "text documents only support the whole-document token"}
	}
}

func (e *Evaluator) readJSON(doc Document, expr string) (any, error) {
	if isJQ(expr) {
		code, err := e.compile(expr)
		if err != nil {
			return nil, &domain.PathError{Expr: expr, Reason: "invalid expression", Err: err}
		}
		v, err := first(code.Run(doc.Value()))
		if err != nil {
			return nil, &domain.PathError{Expr: expr, Reason: "evaluation failed", Err: err}
		}
		if v == nil {
			return nil, unresolved(expr)
		}
		return v, nil
	}

	segs, err := splitPath(expr)
	if err != nil {
		return nil, err
	}
	path, ok := resolvePath(doc.Value(), segs)
	if !ok {
		return nil, unresolved(expr)
	}
	v, err := e.getPath(doc.Value(), path)
	if err != nil || v == nil {
		return nil, unresolved(expr)
	}
	return v, nil
}

func (e *Evaluator) readXML(doc Document, expr string) (any, error) {
	root, err := doc.xmlRoot()
	if err != nil {
		return nil, &domain.PathError{Expr: expr, Reason: "malformed XML", Err: err}
	}
	node, err := xmlquery.Query(root, expr)
	if err != nil {
		return nil, &domain.PathError{Expr: expr, Reason: "invalid expression", Err: err}
	}
	if node == nil {
		return nil, unresolved(expr)
	}
	return node.InnerText(), nil
}

func (e *Evaluator) writeJSON(doc Document, expr string, value any) (Document, error) {
	v, err := normalize(value)
	if err != nil {
		return Document{}, &domain.PathError{Expr: expr, Reason: "value is not JSON-encodable", Err: err}
	}

	input := doc.Value()
	var parentPath []any
	var last any
	if isJQ(expr) {
		path, err := e.pathOf(doc, expr)
		if err != nil {
			return Document{}, err
		}
		if len(path) == 0 {
			return ParseString(Stringify(v)), nil
		}
		parentPath, last = path[:len(path)-1], path[len(path)-1]
	} else {
		segs, err := splitPath(expr)
		if err != nil {
			return Document{}, err
		}
		if len(segs) == 0 {
			return ParseString(Stringify(v)), nil
		}
		p, ok := resolvePath(input, segs[:len(segs)-1])
		if !ok {
			return Document{}, unresolved(expr)
		}
		parentPath, last = p, segs[len(segs)-1]
	}

	parent, err := e.getPath(input, parentPath)
	if err != nil {
		return Document{}, unresolved(expr)
	}
	switch container := parent.(type) {
	case map[string]any:
		if _, ok := last.(string); !ok {
			return Document{}, &domain.PathError{Expr: expr, Reason: "cannot index an object with a number"}
		}
	case []any:
		if seg, ok := last.(string); ok {
			n, err := strconv.Atoi(seg)
			if err != nil || strconv.Itoa(n) != seg {
				return Document{}, &domain.PathError{Expr: expr, Reason: "cannot index an array with a key"}
			}
			last = n
		}
		n, ok := last.(int)
		if !ok {
			return Document{}, &domain.PathError{Expr: expr, Reason: "cannot index an array with a key"}
		}
		if n < 0 || n >= len(container) {
			return Document{}, unresolved(expr)
		}
	default:
		return Document{}, unresolved(expr)
	}

	code, err := e.compile(querySetPath, "$p", "$v")
	if err != nil {
		return Document{}, err
	}
	path := append(append([]any(nil), parentPath...), last)
	out, err := first(code.Run(input, path, v))
	if err != nil {
		return Document{}, &domain.PathError{Expr: expr, Reason: "write failed", Err: err}
	}
	return ParseString(Stringify(out)), nil
}

func (e *Evaluator) writeXML(doc Document, expr string, value any) (Document, error) {
	root, err := doc.xmlRoot()
	if err != nil {
		return Document{}, &domain.PathError{Expr: expr, Reason: "malformed XML", Err: err}
	}
	node, err := xmlquery.Query(root, expr)
	if err != nil {
		return Document{}, &domain.PathError{Expr: expr, Reason: "invalid expression", Err: err}
	}
	if node == nil {
		return Document{}, unresolved(expr)
	}
	if node.Type != xmlquery.ElementNode {
		return Document{}, &domain.PathError{Expr: expr, Reason: "only element text can be written"}
	}

	for c := node.FirstChild; c != nil; {
		next := c.NextSibling
		xmlquery.RemoveFromTree(c)
		c = next
	}
	xmlquery.AddChild(node, &xmlquery.Node{Type: xmlquery.TextNode, Data: Stringify(value)})
	return ParseString(root.OutputXML(false)), nil
}

// pathOf resolves a jq expression to the single concrete path it addresses.
func (e *Evaluator) pathOf(doc Document, expr string) ([]any, error) {
	code, err := e.compile("[path(" + expr + ")]")
	if err != nil {
		return nil, &domain.PathError{Expr: expr, Reason: "invalid expression", Err: err}
	}
	v, err := first(code.Run(doc.Value()))
	if err != nil {
		return nil, &domain.PathError{Expr: expr, Reason: "not a path expression", Err: err}
	}
	paths, _ := v.([]any)
	switch len(paths) {
	case 0:
		return nil, unresolved(expr)
	case 1:
		p, _ := paths[0].([]any)
		return p, nil
	default:
		return nil, &domain.PathError{Expr: expr, Reason: fmt.Sprintf("expression selects %d paths", len(paths))}
	}
}

func (e *Evaluator) getPath(input any, path []any) (any, error) {
	if len(path) == 0 {
		return input, nil
	}
	code, err := e.compile(queryGetPath, "$p")
	if err != nil {
		return nil, err
	}
	return first(code.Run(input, path))
}

// compile returns the cached program for query, compiling it on first use.
func (e *Evaluator) compile(query string, vars ...string) (*gojq.Code, error) {
	e.mu.RLock()
	if code, ok := e.cache[query]; ok {
		e.mu.RUnlock()
		return code, nil
	}
	e.mu.RUnlock()

	parsed, err := gojq.Parse(query)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	code, err := gojq.Compile(parsed, gojq.WithVariables(vars))
	if err != nil {
		return nil, fmt.Errorf("compile error: %w", err)
	}

	e.mu.Lock()
	e.cache[query] = code
	e.mu.Unlock()
	return code, nil
}

// first returns the first result of a jq iteration.
func first(iter gojq.Iter) (any, error) {
	v, ok := iter.Next()
	if !ok {
		return nil, nil
	}
	if err, isErr := v.(error); isErr {
		return nil, err
	}
	return v, nil
}

func isJQ(expr string) bool {
	return strings.HasPrefix(expr, ".")
}

// splitPath turns "/a/0/b" into its segments ["a", "0", "b"], unescaping
// "~1" and "~0". Whether a segment is a key or an index depends on the
// document, see resolvePath.
func splitPath(expr string) ([]string, error) {
	if !strings.HasPrefix(expr, "/") {
		return nil, &domain.PathError{Expr: expr, Reason: `expected "*", a "/" path or a "." jq expression`}
	}
	trimmed := strings.Trim(expr, "/")
	if trimmed == "" {
		return []string{}, nil
	}
	segments := strings.Split(trimmed, "/")
	for i, seg := range segments {
		seg = strings.ReplaceAll(seg, "~1", "/")
		segments[i] = strings.ReplaceAll(seg, "~0", "~")
	}
	return segments, nil
}

// resolvePath walks segs through input and returns the jq path addressing
// them. A segment is an array index only when its parent is an array;
// anywhere else it is an object key, digits included.
func resolvePath(input any, segs []string) ([]any, bool) {
	path := make([]any, 0, len(segs))
	cur := input
	for _, seg := range segs {
		switch container := cur.(type) {
		case map[string]any:
			v, ok := container[seg]
			if !ok {
				return nil, false
			}
			path = append(path, seg)
			cur = v
		case []any:
			n, err := strconv.Atoi(seg)
			if err != nil || n < 0 || n >= len(container) || strconv.Itoa(n) != seg {
				return nil, false
			}
			path = append(path, n)
			cur = container[n]
		default:
			return nil, false
		}
	}
	return path, true
}

func unresolved(expr string) error {
	return &domain.PathError{Expr: expr, Reason: "unresolved", Err: ErrUnresolved}
}
