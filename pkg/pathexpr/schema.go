package pathexpr

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aretw0/interop/pkg/domain"
	"github.com/getkin/kin-openapi/openapi3"
)

// LoadSchema builds a schema from its decoded JSON Schema form and checks
// that the schema itself is well formed.
func LoadSchema(ctx context.Context, raw map[string]any) (*openapi3.Schema, error) {
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to encode schema: %w", err)
	}
	return LoadSchemaJSON(ctx, b)
}

// LoadSchemaJSON is LoadSchema for a JSON-encoded schema.
func LoadSchemaJSON(ctx context.Context, b []byte) (*openapi3.Schema, error) {
	schema := openapi3.NewSchema()
	if err := schema.UnmarshalJSON(b); err != nil {
		return nil, fmt.Errorf("failed to decode schema: %w", err)
	}
	if err := schema.Validate(ctx); err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	return schema, nil
}

// Validate checks doc against schema with the package default Evaluator.
func Validate(doc Document, schema *openapi3.Schema) error {
	return defaultEvaluator.Validate(doc, schema)
}

// Validate checks doc against schema. JSON documents are validated as their
// decoded value, other documents as a single string. Mismatches are returned
// as a *domain.SchemaError listing every violation.
func (e *Evaluator) Validate(doc Document, schema *openapi3.Schema) error {
	return e.ValidateValue(doc.Value(), schema)
}

// ValidateValue checks an already decoded value against schema.
func (e *Evaluator) ValidateValue(value any, schema *openapi3.Schema) error {
	if schema == nil {
		return nil
	}
	v, err := normalize(value)
	if err != nil {
		return &domain.SchemaError{Err: err}
	}
	if err := schema.VisitJSON(v, openapi3.MultiErrors()); err != nil {
		return &domain.SchemaError{Subject: schema.Title, Err: err}
	}
	return nil
}

// Conforms reports whether doc satisfies schema. Mismatches are logged and
// reported as false; they never abort the caller.
func (e *Evaluator) Conforms(doc Document, schema *openapi3.Schema) bool {
	if err := e.Validate(doc, schema); err != nil {
		e.logger.Warn("Document does not conform to schema", "kind", doc.Kind(), "error", err)
		return false
	}
	return true
}
