package pathexpr

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
)

// Kind is the detected shape of a Document.
type Kind int

const (
	KindText Kind = iota
	KindJSON
	KindXML
)

func (k Kind) String() string {
	switch k {
	case KindJSON:
		return "json"
	case KindXML:
		return "xml"
	default:
		return "text"
	}
}

// Document is a parsed, immutable message body.
type Document struct {
	kind  Kind
	raw   string
	value any // decoded JSON; nil for other kinds
}

// Parse detects the shape of raw and decodes it. Bodies that are neither
// valid JSON nor well-formed XML are kept as text, so Parse never fails.
func Parse(raw []byte) Document {
	return ParseString(string(raw))
}

// ParseString is Parse for string bodies.
func ParseString(raw string) Document {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Document{kind: KindText, raw: raw}
	}

	if trimmed[0] == '{' || trimmed[0] == '[' || trimmed[0] == '"' || json.Valid([]byte(trimmed)) {
		var v any
		if err := json.Unmarshal([]byte(trimmed), &v); err == nil {
			return Document{kind: KindJSON, raw: raw, value: v}
		}
	}

	if trimmed[0] == '<' {
		if _, err := xmlquery.Parse(strings.NewReader(trimmed)); err == nil {
			return Document{kind: KindXML, raw: raw}
		}
	}

	return Document{kind: KindText, raw: raw}
}

// Kind returns the detected document shape.
func (d Document) Kind() Kind { return d.kind }

// String returns the raw document.
func (d Document) String() string { return d.raw }

// Bytes returns a copy of the raw document.
func (d Document) Bytes() []byte { return []byte(d.raw) }

// Value returns a deep copy of the decoded JSON value, or the raw text for
// non-JSON documents.
func (d Document) Value() any {
	if d.kind != KindJSON {
		return d.raw
	}
	return deepCopy(d.value)
}

func (d Document) xmlRoot() (*xmlquery.Node, error) {
	return xmlquery.Parse(strings.NewReader(strings.TrimSpace(d.raw)))
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = deepCopy(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = deepCopy(e)
		}
		return out
	default:
		return v
	}
}

// normalize converts arbitrary Go values into the JSON-shaped values gojq
// and the schema validator operate on.
func normalize(v any) (any, error) {
	switch v.(type) {
	case nil, bool, string, float64, int:
		return v, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	dec := json.NewDecoder(bytes.NewReader(b))
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// Stringify renders a value the way comparisons see it: strings verbatim,
// numbers without trailing zeros, everything else as compact JSON.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case json.Number:
		return t.String()
	case []byte:
		return string(t)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
