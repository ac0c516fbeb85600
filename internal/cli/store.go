package cli

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/aretw0/interop/pkg/adapters/file"
	"github.com/aretw0/interop/pkg/adapters/memory"
	redisAdapter "github.com/aretw0/interop/pkg/adapters/redis"
	"github.com/aretw0/interop/pkg/adapters/sqlite"
	"github.com/aretw0/interop/pkg/persistence/middleware"
	"github.com/aretw0/interop/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// DefaultStore is used when no --store is given.
const DefaultStore = "file:.interop/traces"

// StoreOptions describes where traces live and how they are protected.
type StoreOptions struct {
	// URI selects the backend:
	//   memory
	//   file:<dir> (or a bare directory)
	//   redis://[:password@]host:port/db
	//   sqlite:<path>
	URI string

	// EncryptionKey seals event payloads at rest (32 bytes, hex or base64).
	EncryptionKey string

	// FallbackKeys decrypt traces sealed with previous keys.
	FallbackKeys []string

	// MaskKeys are header names and JSON body keys masked before storage,
	// matched case-insensitively.
	MaskKeys []string
}

// OpenedStore is a trace store ready for use.
type OpenedStore struct {
	Store  ports.TraceStore
	Locker ports.Locker

	closer io.Closer
}

// Close releases the backend connection, if any.
func (s *OpenedStore) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// OpenStore opens the trace store described by opts, wrapped with the
// configured masking and encryption middlewares.
func OpenStore(opts StoreOptions) (*OpenedStore, error) {
	uri := strings.TrimSpace(opts.URI)
	if uri == "" {
		uri = DefaultStore
	}

	out := &OpenedStore{}
	switch {
	case uri == "memory":
		out.Store = memory.NewStore()
	case strings.HasPrefix(uri, "redis://"), strings.HasPrefix(uri, "rediss://"):
		redisOpts, err := backend.ParseURL(uri)
		if err != nil {
			return nil, fmt.Errorf("invalid redis store %q: %w", uri, err)
		}
		client := backend.NewClient(redisOpts)
		store := redisAdapter.NewFromClient(client)
		out.Store = store
		out.Locker = redisAdapter.NewLocker(client, redisAdapter.DefaultPrefix)
		out.closer = store
	case strings.HasPrefix(uri, "sqlite:"):
		path := strings.TrimPrefix(uri, "sqlite:")
		if path == "" {
			return nil, errors.New("sqlite store needs a path (sqlite:<path>)")
		}
		store, err := sqlite.Open(path)
		if err != nil {
			return nil, err
		}
		out.Store = store
		out.closer = store
	case strings.HasPrefix(uri, "file:"):
		out.Store = file.New(strings.TrimPrefix(uri, "file:"))
	case strings.Contains(uri, "://"):
		return nil, fmt.Errorf("unsupported trace store %q", uri)
	default:
		out.Store = file.New(uri)
	}

	var mws []middleware.Middleware
	if len(opts.MaskKeys) > 0 {
		patterns := make([]string, len(opts.MaskKeys))
		for i, k := range opts.MaskKeys {
			patterns[i] = "(?i)^" + regexp.QuoteMeta(strings.TrimSpace(k)) + "$"
		}
		mws = append(mws, middleware.NewPIIMiddleware(patterns))
	}
	if opts.EncryptionKey != "" {
		active, err := decodeKey(opts.EncryptionKey)
		if err != nil {
			out.Close()
			return nil, fmt.Errorf("invalid encryption key: %w", err)
		}
		cfg := middleware.EncryptionConfig{ActiveKey: active}
		for i, k := range opts.FallbackKeys {
			key, err := decodeKey(k)
			if err != nil {
				out.Close()
				return nil, fmt.Errorf("invalid fallback key #%d: %w", i+1, err)
			}
			cfg.FallbackKeys = append(cfg.FallbackKeys, key)
		}
		mws = append(mws, middleware.NewEncryptionMiddleware(cfg))
	}
	// Masking runs before encryption on save.
	out.Store = middleware.Chain(out.Store, mws...)
	return out, nil
}

// decodeKey accepts a 32 byte key as 64 hex digits or as base64.
func decodeKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if key, err := hex.DecodeString(s); err == nil && len(key) == 32 {
		return key, nil
	}
	if key, err := base64.StdEncoding.DecodeString(s); err == nil && len(key) == 32 {
		return key, nil
	}
	return nil, errors.New("key must be 32 bytes, hex or base64 encoded")
}
