package file

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/interop/pkg/domain"
)

const ext = ".jsonl"

// Store implements ports.TraceStore using the local filesystem.
// Each trace is a JSON Lines file: a header line followed by one line per
// event, in stream order.
type Store struct {
	BasePath string
}

// header is the first line of a trace file.
type header struct {
	ID        string    `json:"id"`
	Pattern   string    `json:"pattern,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Events    int       `json:"events"`
}

// New creates a new Store with the given base path.
// If basePath is empty, it defaults to ".interop/traces".
func New(basePath string) *Store {
	if basePath == "" {
		basePath = filepath.Join(".interop", "traces")
	}
	return &Store{BasePath: basePath}
}

func (s *Store) path(id string) (string, error) {
	if id == "" {
		return "", errors.New("trace id cannot be empty")
	}
	if strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", fmt.Errorf("invalid trace id %q", id)
	}
	return filepath.Join(s.BasePath, id+ext), nil
}

// Save persists the trace atomically. It writes to a temporary file first,
// syncs it and then renames it over the destination.
func (s *Store) Save(ctx context.Context, trace *domain.Trace) error {
	destPath, err := s.path(trace.ID)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(s.BasePath, 0o755); err != nil {
		return fmt.Errorf("failed to ensure trace directory: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if err := enc.Encode(header{ID: trace.ID, Pattern: trace.Pattern, CreatedAt: trace.CreatedAt, Events: len(trace.Events)}); err != nil {
		return fmt.Errorf("failed to marshal trace header: %w", err)
	}
	for _, ev := range trace.Events {
		if err := enc.Encode(ev); err != nil {
			return fmt.Errorf("failed to marshal event %d: %w", ev.Seq, err)
		}
	}

	// Same directory as the destination so the rename stays on one filesystem.
	tmpFile, err := os.CreateTemp(s.BasePath, "tmp-"+trace.ID+"-*"+ext)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	// Windows cannot rename an open file.
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// os.Rename fails on Windows when the destination exists.
	if _, err := os.Stat(destPath); err == nil {
		if err := os.Remove(destPath); err != nil {
			return fmt.Errorf("failed to remove existing trace file for overwrite: %w", err)
		}
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file to trace: %w", err)
	}
	return nil
}

// Load reads a trace file.
func (s *Store) Load(ctx context.Context, id string) (*domain.Trace, error) {
	filePath, err := s.path(id)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrTraceNotFound
		}
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("failed to read trace header: %w", err)
		}
		return nil, fmt.Errorf("trace file %s is empty", filePath)
	}
	var h header
	if err := json.Unmarshal(scanner.Bytes(), &h); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trace header: %w", err)
	}

	trace := &domain.Trace{
		ID:        h.ID,
		Pattern:   h.Pattern,
		CreatedAt: h.CreatedAt,
		Events:    make([]domain.Event, 0, h.Events),
	}
	line := 1
	for scanner.Scan() {
		line++
		if len(bytes.TrimSpace(scanner.Bytes())) == 0 {
			continue
		}
		var ev domain.Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event on line %d: %w", line, err)
		}
		trace.Events = append(trace.Events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read trace file: %w", err)
	}
	return trace, nil
}

// Delete removes the trace file.
func (s *Store) Delete(ctx context.Context, id string) error {
	filePath, err := s.path(id)
	if err != nil {
		return err
	}
	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete trace file: %w", err)
	}
	return nil
}

// List returns the ids of all stored traces.
func (s *Store) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list traces: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ext || strings.HasPrefix(name, "tmp-") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ext))
	}
	return ids, nil
}
