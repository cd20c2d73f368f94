// Package sqlite stores the call journal: one row per flush with its
// snappy-compressed response body.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang/snappy"
	_ "modernc.org/sqlite"

	"github.com/rexliu/ksdk/pkg/core"
)

// ErrNotFound is returned when a journal entry does not exist.
var ErrNotFound = errors.New("journal entry not found")

// Options tunes the database.
type Options struct {
	JournalMode string
	Synchronous string
}

// Store owns the journal database of a profile. It satisfies client.Journal.
type Store struct {
	db   *sql.DB
	path string
	opts Options
}

// Path returns the underlying SQLite file path.
func (s *Store) Path() string {
	return s.path
}

// Open creates the parent directory and opens the database at path.
func Open(path string, opts Options) (*Store, error) {
	if opts.JournalMode == "" {
		opts.JournalMode = "DELETE"
	}
	if opts.Synchronous == "" {
		opts.Synchronous = "FULL"
	}
	if !oneOf(opts.JournalMode, "DELETE", "TRUNCATE", "PERSIST", "MEMORY", "WAL", "OFF") {
		return nil, fmt.Errorf("unsupported journal mode %q", opts.JournalMode)
	}
	if !oneOf(opts.Synchronous, "OFF", "NORMAL", "FULL", "EXTRA") {
		return nil, fmt.Errorf("unsupported synchronous mode %q", opts.Synchronous)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, path: path, opts: opts}, nil
}

// Close releases database resources.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Init ensures pragmas and schema are configured.
func (s *Store) Init(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("nil store")
	}
	pragmas := []string{
		"PRAGMA journal_mode = " + strings.ToUpper(s.opts.JournalMode) + ";",
		"PRAGMA synchronous = " + strings.ToUpper(s.opts.Synchronous) + ";",
		"PRAGMA busy_timeout = 5000;",
	}
	for _, stmt := range pragmas {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply pragma %q: %w", stmt, err)
		}
	}
	return s.applySchema(ctx)
}

func (s *Store) applySchema(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`INSERT OR IGNORE INTO meta(key,value) VALUES ('schemaVersion','1');`,
		`CREATE TABLE IF NOT EXISTS calls (
			id TEXT PRIMARY KEY,
			url TEXT NOT NULL,
			actions TEXT NOT NULL,
			batch INTEGER NOT NULL DEFAULT 0,
			status INTEGER NOT NULL DEFAULT 0,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			error TEXT,
			body BLOB,
			body_size INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_calls_created ON calls(created_at);`,
	}
	for _, stmt := range ddl {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// Record stores one flush. A missing id or timestamp is filled in.
func (s *Store) Record(ctx context.Context, rec core.CallRecord) error {
	if rec.ID == "" {
		rec.ID = core.NewTraceID()
	}
	if rec.CreatedAt == 0 {
		rec.CreatedAt = time.Now().Unix()
	}
	var body []byte
	if len(rec.Body) > 0 {
		body = snappy.Encode(nil, rec.Body)
	}
	var errText *string
	if rec.Error != "" {
		errText = &rec.Error
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO calls(id, url, actions, batch, status, duration_ms, error, body, body_size, created_at)
		VALUES(?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			duration_ms = excluded.duration_ms,
			error = excluded.error,
			body = excluded.body,
			body_size = excluded.body_size;
	`, rec.ID, rec.URL, strings.Join(rec.Actions, ","), rec.Batch, rec.Status, rec.DurationMS, errText, body, len(rec.Body), rec.CreatedAt)
	return err
}

// Recent returns the newest entries first, without bodies.
func (s *Store) Recent(ctx context.Context, limit int) ([]core.CallRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, url, actions, batch, status, duration_ms, error, created_at
		FROM calls
		ORDER BY id DESC
		LIMIT ?;
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []core.CallRecord
	for rows.Next() {
		var (
			rec     core.CallRecord
			actions string
			errText *string
		)
		if err := rows.Scan(&rec.ID, &rec.URL, &actions, &rec.Batch, &rec.Status, &rec.DurationMS, &errText, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if actions != "" {
			rec.Actions = strings.Split(actions, ",")
		}
		if errText != nil {
			rec.Error = *errText
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Body returns the decompressed response body of an entry.
func (s *Store) Body(ctx context.Context, id string) ([]byte, error) {
	var compressed []byte
	err := s.db.QueryRowContext(ctx, `SELECT body FROM calls WHERE id = ?`, id).Scan(&compressed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(compressed) == 0 {
		return nil, nil
	}
	body, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, fmt.Errorf("decompress body %s: %w", id, err)
	}
	return body, nil
}

// Prune keeps the newest keep entries and returns how many were removed.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM calls WHERE id NOT IN (
			SELECT id FROM calls ORDER BY id DESC LIMIT ?
		);
	`, keep)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func oneOf(v string, allowed ...string) bool {
	v = strings.ToUpper(v)
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
