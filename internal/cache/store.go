// Package cache persists comparison decisions in SQLite so exact repeats of
// a (valueA, valueB, fieldType) triple skip inference entirely. The store is
// append-only: re-validation inserts a new row under the same key and Lookup
// returns the most recent qualifying one.
package cache

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"validd/pkg/types"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DefaultPersistFloor drops low-confidence answers: an uncertain inference
// must never become cached ground truth.
const DefaultPersistFloor = 0.7

// Store wraps a SQLite database holding validation decisions.
type Store struct {
	db *sql.DB
	// persistFloor is the minimum confidence for Record to persist.
	persistFloor float64
}

// Open opens (or creates) the decision database in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database (tests).
func Open(dataDir string, persistFloor float64) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "decisions.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Single connection avoids "database is locked" under request threads.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	if persistFloor <= 0 {
		persistFloor = DefaultPersistFloor
	}
	s := &Store{db: db, persistFloor: persistFloor}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}
		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}
		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}
	return nil
}

func parseMigrationVersion(name string) (int, error) {
	idx := strings.IndexByte(name, '_')
	if idx <= 0 {
		return 0, fmt.Errorf("migration %s: missing version prefix", name)
	}
	v, err := strconv.Atoi(name[:idx])
	if err != nil {
		return 0, fmt.Errorf("migration %s: %w", name, err)
	}
	return v, nil
}

// Lookup returns the most recent decision for the normalized key with
// confidence at or above threshold, or nil when no qualifying entry exists.
func (s *Store) Lookup(valueA, valueB, fieldType string, threshold float64) (*types.ValidationDecision, error) {
	key := Key(valueA, valueB, fieldType)
	row := s.db.QueryRow(`
		SELECT id, key_hash, value_a, value_b, field_type, model_used,
		       is_match, confidence, reasoning, processing_time_ms, created_at
		FROM decisions
		WHERE key_hash = ? AND confidence >= ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1`, key, threshold)

	var d types.ValidationDecision
	var match int
	var createdAt string
	err := row.Scan(&d.ID, &d.KeyHash, &d.ValueA, &d.ValueB, &d.FieldType,
		&d.ModelUsed, &match, &d.Confidence, &d.Reasoning, &d.ProcessingTimeMs, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying decision: %w", err)
	}
	d.Match = match != 0
	if ts, perr := parseSQLiteTime(createdAt); perr == nil {
		d.CreatedAt = ts
	}
	return &d, nil
}

// Record persists a decision under its normalized key. Decisions below the
// persist floor are silently dropped; the returned bool reports whether the
// decision was written. Entries are immutable once written.
func (s *Store) Record(d types.ValidationDecision) (bool, error) {
	if d.Confidence < s.persistFloor {
		return false, nil
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.KeyHash == "" {
		d.KeyHash = Key(d.ValueA, d.ValueB, d.FieldType)
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	match := 0
	if d.Match {
		match = 1
	}
	_, err := s.db.Exec(`
		INSERT INTO decisions
			(id, key_hash, value_a, value_b, field_type, model_used,
			 is_match, confidence, reasoning, processing_time_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.KeyHash, d.ValueA, d.ValueB, d.FieldType, d.ModelUsed,
		match, d.Confidence, d.Reasoning, d.ProcessingTimeMs,
		d.CreatedAt.Format(sqliteTimeLayout))
	if err != nil {
		return false, fmt.Errorf("inserting decision: %w", err)
	}
	return true, nil
}

// CountByFieldType reports how many decisions are stored per field type,
// surfaced by diagnose for cache visibility.
func (s *Store) CountByFieldType() (map[string]int, error) {
	rows, err := s.db.Query("SELECT field_type, COUNT(*) FROM decisions GROUP BY field_type")
	if err != nil {
		return nil, fmt.Errorf("counting decisions: %w", err)
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var ft string
		var n int
		if err := rows.Scan(&ft, &n); err != nil {
			return nil, err
		}
		out[ft] = n
	}
	return out, rows.Err()
}

const sqliteTimeLayout = "2006-01-02 15:04:05.999999999Z07:00"

func parseSQLiteTime(s string) (time.Time, error) {
	for _, layout := range []string{sqliteTimeLayout, time.RFC3339Nano, "2006-01-02 15:04:05"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp: %q", s)
}
