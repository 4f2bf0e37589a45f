// Package archive keeps a SQLite index of every work item that reached a
// terminal stage. The directory tree stays authoritative for in-flight state;
// the archive exists so history survives the retention sweep and can be
// queried without walking directories.
package archive

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"snapflow/internal/store"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped when the schema changes; a mismatched database is
// rejected rather than migrated in place.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database was created by an incompatible
// version.
var ErrSchemaMismatch = errors.New("archive schema version mismatch")

// Entry is one archived terminal outcome.
type Entry struct {
	ID           string    `json:"id"`
	ItemID       string    `json:"item_id"`
	User         string    `json:"user"`
	Kind         string    `json:"kind"`
	OriginalName string    `json:"original_name"`
	ContentHash  string    `json:"content_hash"`
	Outcome      string    `json:"outcome"`
	PostID       string    `json:"post_id,omitempty"`
	Caption      string    `json:"caption,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
	Attempts     int       `json:"attempts"`
	DiscoveredAt time.Time `json:"discovered_at"`
	CompletedAt  time.Time `json:"completed_at"`
}

// Store manages the outcome index backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the archive database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open archive db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	s := &Store{db: db, path: path}
	if err := s.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create archive schema: %w", err)
		}
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		return nil
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has %d, this build expects %d", ErrSchemaMismatch, version, schemaVersion)
	}
	return nil
}

// Record indexes one terminal item. Recording the same item id twice is a
// no-op update, so a crash between the terminal move and the archive write
// cannot duplicate history on replay.
func (s *Store) Record(ctx context.Context, item *store.Item) error {
	if item == nil || !item.Stage.IsTerminal() {
		return fmt.Errorf("archive: item %v is not terminal", itemID(item))
	}
	completed := time.Now().UTC()
	if item.CompletedAt != nil {
		completed = item.CompletedAt.UTC()
	}
	attempts := 0
	for _, n := range item.Attempts {
		attempts += n
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO outcomes (id, item_id, user, kind, original_name, content_hash, outcome, post_id, caption, last_error, attempts, discovered_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			outcome = excluded.outcome,
			post_id = excluded.post_id,
			caption = excluded.caption,
			last_error = excluded.last_error,
			attempts = excluded.attempts,
			completed_at = excluded.completed_at`,
		outcomeRowID(item),
		item.ID,
		item.User,
		string(item.Kind),
		item.OriginalName,
		item.ContentHash,
		string(item.Stage),
		item.PostID,
		item.Caption,
		item.LastError,
		attempts,
		item.DiscoveredAt.UTC().Format(time.RFC3339Nano),
		completed.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("archive record %s: %w", item.ID, err)
	}
	return nil
}

// History returns archived outcomes, newest first. user filters to one user
// when non-empty; limit caps the result set (0 means a default of 50).
func (s *Store) History(ctx context.Context, user string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, item_id, user, kind, original_name, content_hash, outcome, post_id, caption, last_error, attempts, discovered_at, completed_at
		FROM outcomes`
	args := []any{}
	if user = strings.TrimSpace(user); user != "" {
		query += " WHERE user = ?"
		args = append(args, user)
	}
	query += " ORDER BY completed_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("archive history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var discovered, completed string
		if err := rows.Scan(&e.ID, &e.ItemID, &e.User, &e.Kind, &e.OriginalName, &e.ContentHash, &e.Outcome,
			&e.PostID, &e.Caption, &e.LastError, &e.Attempts, &discovered, &completed); err != nil {
			return nil, fmt.Errorf("archive history scan: %w", err)
		}
		e.DiscoveredAt, _ = time.Parse(time.RFC3339Nano, discovered)
		e.CompletedAt, _ = time.Parse(time.RFC3339Nano, completed)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CountByOutcome returns the number of archived items per terminal outcome.
func (s *Store) CountByOutcome(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT outcome, COUNT(1) FROM outcomes GROUP BY outcome")
	if err != nil {
		return nil, fmt.Errorf("archive counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("archive counts scan: %w", err)
		}
		counts[outcome] = n
	}
	return counts, rows.Err()
}

// outcomeRowID derives a stable row id from the item identity so replayed
// records collapse onto one row.
func outcomeRowID(item *store.Item) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("snapflow-outcome:"+item.ID)).String()
}

func itemID(item *store.Item) string {
	if item == nil {
		return "<nil>"
	}
	return item.ID
}
