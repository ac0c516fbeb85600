package cli

import (
	"context"
	"encoding/hex"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/interop/pkg/adapters/file"
	"github.com/aretw0/interop/pkg/domain"
	"github.com/aretw0/interop/pkg/persistence/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTrace() *domain.Trace {
	return &domain.Trace{
		ID:      "t-1",
		Pattern: "ping",
		Events: []domain.Event{{
			Seq:         1,
			InterfaceID: "api",
			Direction:   domain.DirectionRequest,
			Headers:     map[string]string{"Authorization": "Bearer secret"},
			Body:        `{"password":"hunter2","user":"ana"}`,
		}},
	}
}

func TestOpenStore_Backends(t *testing.T) {
	mr := miniredis.RunT(t)
	dir := t.TempDir()

	tests := []struct {
		name      string
		uri       string
		hasLocker bool
	}{
		{"memory", "memory", false},
		{"file prefix", "file:" + filepath.Join(dir, "a"), false},
		{"bare directory", filepath.Join(dir, "b"), false},
		{"sqlite", "sqlite:" + filepath.Join(dir, "traces.db"), false},
		{"redis", "redis://" + mr.Addr() + "/0", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opened, err := OpenStore(StoreOptions{URI: tt.uri})
			require.NoError(t, err)
			defer opened.Close()

			assert.Equal(t, tt.hasLocker, opened.Locker != nil)

			ctx := context.Background()
			require.NoError(t, opened.Store.Save(ctx, sampleTrace()))
			got, err := opened.Store.Load(ctx, "t-1")
			require.NoError(t, err)
			assert.Equal(t, sampleTrace().Events[0].Body, got.Events[0].Body)
		})
	}
}

func TestOpenStore_Errors(t *testing.T) {
	_, err := OpenStore(StoreOptions{URI: "s3://bucket"})
	assert.ErrorContains(t, err, "unsupported trace store")

	_, err = OpenStore(StoreOptions{URI: "sqlite:"})
	assert.Error(t, err)

	_, err = OpenStore(StoreOptions{URI: "memory", EncryptionKey: "short"})
	assert.ErrorContains(t, err, "invalid encryption key")
}

func TestOpenStore_Middlewares(t *testing.T) {
	dir := t.TempDir()
	key := hex.EncodeToString([]byte(strings.Repeat("k", 32)))

	opened, err := OpenStore(StoreOptions{
		URI:           "file:" + dir,
		EncryptionKey: key,
		MaskKeys:      []string{"authorization", "password"},
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, opened.Store.Save(ctx, sampleTrace()))

	// At rest the payload is sealed.
	raw, err := file.New(dir).Load(ctx, "t-1")
	require.NoError(t, err)
	assert.Equal(t, "aes-256-gcm", raw.Events[0].Headers[middleware.EnvelopeHeader])
	assert.NotContains(t, raw.Events[0].Body, "ana")

	// Through the chain it is decrypted, with sensitive fields masked.
	got, err := opened.Store.Load(ctx, "t-1")
	require.NoError(t, err)
	assert.Equal(t, middleware.Mask, got.Events[0].Headers["Authorization"])
	assert.JSONEq(t, `{"password":"***","user":"ana"}`, got.Events[0].Body)
}

func TestDecodeKey(t *testing.T) {
	raw := []byte(strings.Repeat("x", 32))

	k, err := decodeKey(hex.EncodeToString(raw))
	require.NoError(t, err)
	assert.Equal(t, raw, k)

	k, err = decodeKey("eHh4eHh4eHh4eHh4eHh4eHh4eHh4eHh4eHh4eHh4eHg=")
	require.NoError(t, err)
	assert.Equal(t, raw, k)

	_, err = decodeKey("abcd")
	assert.Error(t, err)
}
