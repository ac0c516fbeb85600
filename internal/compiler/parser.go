package compiler

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/aretw0/interop/internal/dto"
	"github.com/aretw0/interop/internal/logging"
	"github.com/aretw0/interop/internal/validator"
	"github.com/aretw0/interop/pkg/architecture"
	"github.com/aretw0/interop/pkg/domain"
	"github.com/aretw0/interop/pkg/pathexpr"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

//go:embed document.schema.json
var documentSchema []byte

// Parser converts specification documents (YAML or JSON) into a validated
// domain.Spec. Loading fails closed: any error means no spec is returned.
type Parser struct {
	logger *slog.Logger
	eval   *pathexpr.Evaluator

	once      sync.Once
	schema    *openapi3.Schema
	schemaErr error
}

// Option configures a Parser.
type Option func(*Parser)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Parser) {
		p.logger = logger
	}
}

// NewParser creates a new parser instance.
func NewParser(opts ...Option) *Parser {
	p := &Parser{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	p.eval = pathexpr.New(pathexpr.WithLogger(p.logger))
	return p
}

// ParseFile reads and parses the document at path.
func (p *Parser) ParseFile(path string) (*domain.Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read specification %q: %w", path, err)
	}
	spec, err := p.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return spec, nil
}

// Parse decodes and validates a specification document.
//
// Validation runs in three stages: the document schema, the architecture
// (ids and addresses) and the pattern structure. The returned error is a
// *domain.SchemaError, *domain.InvalidArchitectureError or
// *domain.InvalidPatternError respectively.
func (p *Parser) Parse(data []byte) (*domain.Spec, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("empty specification document")
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse specification: %w", err)
	}

	normalized, err := normalize(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize specification: %w", err)
	}

	schema, err := p.documentSchema()
	if err != nil {
		return nil, err
	}
	if err := p.eval.ValidateValue(normalized, schema); err != nil {
		p.logger.Warn("Specification rejected by document schema", "error", err)
		return nil, err
	}

	var doc dto.Document
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &doc,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(normalized); err != nil {
		return nil, &domain.SchemaError{Subject: "specification document", Err: err}
	}

	spec := doc.ToDomain()

	if err := architecture.Validate(spec.Components); err != nil {
		return nil, err
	}
	if err := validator.ValidateSpec(&spec); err != nil {
		return nil, err
	}

	p.logger.Debug("Specification loaded",
		"name", spec.Name,
		"components", len(spec.Components),
		"states", len(spec.Pattern.States),
		"transitions", len(spec.Pattern.Transitions),
	)
	return &spec, nil
}

func (p *Parser) documentSchema() (*openapi3.Schema, error) {
	p.once.Do(func() {
		p.schema, p.schemaErr = pathexpr.LoadSchemaJSON(context.Background(), documentSchema)
	})
	return p.schema, p.schemaErr
}

// normalize turns the YAML decoding into plain JSON values so schema
// validation and decoding see one representation for both formats.
func normalize(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
