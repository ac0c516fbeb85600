package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/interop/pkg/domain"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Store implements ports.TraceStore on SQLite. Events are stored one row
// each, keyed by trace and sequence number.
type Store struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at path and applies the schema.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - a 5-second busy timeout for lock contention
//   - foreign key enforcement, so deleting a trace drops its events
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save replaces the trace and its events in one transaction.
func (s *Store) Save(ctx context.Context, trace *domain.Trace) (err error) {
	if trace.ID == "" {
		return errors.New("trace id cannot be empty")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM events WHERE trace_id = ?`, trace.ID); err != nil {
		return fmt.Errorf("failed to clear events: %w", err)
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO traces (id, pattern, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET pattern = excluded.pattern, created_at = excluded.created_at`,
		trace.ID, trace.Pattern, trace.CreatedAt.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("failed to save trace: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO events (trace_id, seq, interface_id, direction, method, path, status, headers, body, timestamp, correlation_id, fault)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare event insert: %w", err)
	}
	defer stmt.Close()

	for _, ev := range trace.Events {
		headers, merr := json.Marshal(ev.Headers)
		if merr != nil {
			err = fmt.Errorf("failed to marshal headers of event %d: %w", ev.Seq, merr)
			return err
		}
		if _, err = stmt.ExecContext(ctx,
			trace.ID, int64(ev.Seq), ev.InterfaceID, string(ev.Direction), ev.Method, ev.Path, ev.Status,
			string(headers), ev.Body, ev.Timestamp.UTC().Format(time.RFC3339Nano), ev.CorrelationID, ev.Fault,
		); err != nil {
			return fmt.Errorf("failed to save event %d: %w", ev.Seq, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit trace: %w", err)
	}
	return nil
}

// Load retrieves a trace and its events in sequence order.
func (s *Store) Load(ctx context.Context, id string) (*domain.Trace, error) {
	var (
		trace   domain.Trace
		created string
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, pattern, created_at FROM traces WHERE id = ?`, id).
		Scan(&trace.ID, &trace.Pattern, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrTraceNotFound
		}
		return nil, fmt.Errorf("failed to load trace: %w", err)
	}
	if trace.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, fmt.Errorf("invalid created_at for trace %q: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, interface_id, direction, method, path, status, headers, body, timestamp, correlation_id, fault
		 FROM events WHERE trace_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}
	defer rows.Close()

	trace.Events = []domain.Event{}
	for rows.Next() {
		var (
			ev        domain.Event
			seq       int64
			direction string
			headers   string
			ts        string
		)
		if err := rows.Scan(&seq, &ev.InterfaceID, &direction, &ev.Method, &ev.Path, &ev.Status,
			&headers, &ev.Body, &ts, &ev.CorrelationID, &ev.Fault); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev.Seq = uint64(seq)
		ev.Direction = domain.Direction(direction)
		if err := json.Unmarshal([]byte(headers), &ev.Headers); err != nil {
			return nil, fmt.Errorf("invalid headers for event %d: %w", seq, err)
		}
		if ev.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("invalid timestamp for event %d: %w", seq, err)
		}
		trace.Events = append(trace.Events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	return &trace, nil
}

// Delete removes a trace; its events go with it.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM traces WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete trace: %w", err)
	}
	return nil
}

// List returns the stored trace ids, oldest first.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM traces ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list traces: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan trace id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
