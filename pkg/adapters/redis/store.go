package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/interop/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by the store.
const DefaultPrefix = "interop:trace:"

// noExpiry is the index score of traces without a TTL (2100-01-01).
const noExpiry = 4102444800

// Store implements ports.TraceStore using Redis. A trace is kept as a
// metadata string plus a list of events, and an index sorted set tracks
// the stored ids by expiry.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithTTL sets the expiration for traces.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for traces.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: DefaultPrefix,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Client exposes the underlying client, for sharing it with a Locker.
func (s *Store) Client() *backend.Client {
	return s.client
}

type meta struct {
	ID        string    `json:"id"`
	Pattern   string    `json:"pattern,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Store) metaKey(id string) string   { return s.prefix + id }
func (s *Store) eventsKey(id string) string { return s.prefix + id + ":events" }
func (s *Store) indexKey() string           { return s.prefix + "index" }

// Save replaces the trace in a single transaction.
func (s *Store) Save(ctx context.Context, trace *domain.Trace) error {
	if trace.ID == "" {
		return errors.New("trace id cannot be empty")
	}

	head, err := json.Marshal(meta{ID: trace.ID, Pattern: trace.Pattern, CreatedAt: trace.CreatedAt})
	if err != nil {
		return fmt.Errorf("failed to marshal trace: %w", err)
	}
	events := make([]any, 0, len(trace.Events))
	for _, ev := range trace.Events {
		b, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("failed to marshal event %d: %w", ev.Seq, err)
		}
		events = append(events, b)
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.eventsKey(trace.ID))
	pipe.Set(ctx, s.metaKey(trace.ID), head, s.ttl)
	if len(events) > 0 {
		pipe.RPush(ctx, s.eventsKey(trace.ID), events...)
		if s.ttl > 0 {
			pipe.Expire(ctx, s.eventsKey(trace.ID), s.ttl)
		}
	}

	score := float64(noExpiry)
	if s.ttl > 0 {
		score = float64(time.Now().Add(s.ttl).Unix())
	}
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: score, Member: trace.ID})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Load retrieves the trace from Redis.
func (s *Store) Load(ctx context.Context, id string) (*domain.Trace, error) {
	val, err := s.client.Get(ctx, s.metaKey(id)).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrTraceNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var m meta
	if err := json.Unmarshal([]byte(val), &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trace: %w", err)
	}

	raw, err := s.client.LRange(ctx, s.eventsKey(id), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read events from redis: %w", err)
	}

	trace := &domain.Trace{
		ID:        m.ID,
		Pattern:   m.Pattern,
		CreatedAt: m.CreatedAt,
		Events:    make([]domain.Event, 0, len(raw)),
	}
	for i, r := range raw {
		var ev domain.Event
		if err := json.Unmarshal([]byte(r), &ev); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event #%d: %w", i+1, err)
		}
		trace.Events = append(trace.Events, ev)
	}
	return trace, nil
}

// Delete removes the trace.
func (s *Store) Delete(ctx context.Context, id string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.metaKey(id), s.eventsKey(id))
	pipe.ZRem(ctx, s.indexKey(), id)

	_, err := pipe.Exec(ctx)
	return err
}

// List returns the stored trace ids, pruning expired entries from the index.
func (s *Store) List(ctx context.Context) ([]string, error) {
	now := float64(time.Now().Unix())
	err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to prune expired traces: %w", err)
	}

	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list traces: %w", err)
	}
	return ids, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
