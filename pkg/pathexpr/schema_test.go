package pathexpr_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/aretw0/interop/pkg/domain"
	"github.com/aretw0/interop/pkg/pathexpr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func orderSchema(t *testing.T) map[string]any {
	t.Helper()
	return map[string]any{
		"title":    "order",
		"type":     "object",
		"required": []any{"id", "total"},
		"properties": map[string]any{
			"id":    map[string]any{"type": "string"},
			"total": map[string]any{"type": "number", "minimum": 0},
		},
	}
}

func TestValidate(t *testing.T) {
	schema, err := pathexpr.LoadSchema(context.Background(), orderSchema(t))
	require.NoError(t, err)

	t.Run("Conforming", func(t *testing.T) {
		doc := pathexpr.ParseString(`{"id":"A1","total":12}`)
		assert.NoError(t, pathexpr.Validate(doc, schema))
	})

	t.Run("Missing Field", func(t *testing.T) {
		doc := pathexpr.ParseString(`{"id":"A1"}`)
		err := pathexpr.Validate(doc, schema)
		require.Error(t, err)

		var se *domain.SchemaError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, "order", se.Subject)
	})

	t.Run("Wrong Shape", func(t *testing.T) {
		doc := pathexpr.ParseString(`not json`)
		assert.Error(t, pathexpr.Validate(doc, schema))
	})

	t.Run("Nil Schema", func(t *testing.T) {
		assert.NoError(t, pathexpr.Validate(pathexpr.ParseString(`x`), nil))
	})
}

func TestConforms_LogsAndReturnsFalse(t *testing.T) {
	schema, err := pathexpr.LoadSchema(context.Background(), orderSchema(t))
	require.NoError(t, err)

	var buf bytes.Buffer
	eval := pathexpr.New(pathexpr.WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))

	assert.True(t, eval.Conforms(pathexpr.ParseString(`{"id":"A1","total":1}`), schema))
	assert.Empty(t, buf.String())

	assert.False(t, eval.Conforms(pathexpr.ParseString(`{"total":-1}`), schema))
	assert.Contains(t, buf.String(), "does not conform")
}

func TestLoadSchema_Invalid(t *testing.T) {
	_, err := pathexpr.LoadSchema(context.Background(), map[string]any{"type": "no-such-type"})
	assert.Error(t, err)
}
