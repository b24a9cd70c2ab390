// Package history keeps a local SQLite audit trail of reconciliation events:
// every flush, external merge and failure, with row and conflict counts.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Faroukdata/fairsync/internal/session"
)

// Schema version history:
//   v1: flushes table
const currentSchemaVersion = 1

// DB is the SQLite-backed flush history. Writes are synchronous; flushes
// happen at most every few hundred milliseconds, so there is nothing to batch.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the history database in dir.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}

	dbPath := filepath.Join(dir, "history.db")
	db, err := openAndMigrate(dbPath)
	if err != nil {
		// Database is corrupt or has incompatible schema — rebuild.
		db, err = rebuildDatabase(dbPath)
		if err != nil {
			return nil, fmt.Errorf("rebuild history database: %w", err)
		}
	}
	return &DB{db: db}, nil
}

func openAndMigrate(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// Set restrictive permissions - ignore error as file may not exist yet
	_ = os.Chmod(dbPath, 0600)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, err
	}
	if err := migrateSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// rebuildDatabase removes the corrupt database and creates a fresh one.
func rebuildDatabase(dbPath string) (*sql.DB, error) {
	// Remove the main file and WAL/SHM sidecars - ignore errors
	for _, suffix := range []string{"", "-wal", "-shm"} {
		_ = os.Remove(dbPath + suffix)
	}
	return openAndMigrate(dbPath)
}

func migrateSchema(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	version := getSchemaVersion(db)
	if version == 0 {
		return initFreshSchema(db)
	}
	if version == currentSchemaVersion {
		return nil
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}
	return nil
}

func initFreshSchema(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS flushes (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   DATETIME NOT NULL,
			"trigger"   TEXT NOT NULL,
			rows        INTEGER DEFAULT 0,
			conflicts   INTEGER DEFAULT 0,
			fingerprint TEXT DEFAULT '',
			error       TEXT DEFAULT ''
		)
	`); err != nil {
		return fmt.Errorf("create flushes table: %w", err)
	}

	for _, idx := range []string{
		`CREATE INDEX IF NOT EXISTS idx_flushes_timestamp ON flushes(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_flushes_trigger ON flushes("trigger")`,
	} {
		if _, err := db.Exec(idx); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}

	setSchemaVersion(db, currentSchemaVersion)
	return nil
}

func getSchemaVersion(db *sql.DB) int {
	var version int
	if err := db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return 0
	}
	return version
}

func setSchemaVersion(db *sql.DB, version int) {
	// Best-effort schema version update - errors are not critical
	_, _ = db.Exec("DELETE FROM schema_version")
	_, _ = db.Exec("INSERT INTO schema_version (version) VALUES (?)", version)
}

// RecordFlush implements session.Recorder. Insert failures are swallowed;
// the audit trail never blocks or fails a save.
func (h *DB) RecordFlush(ev session.FlushEvent) {
	_, _ = h.db.Exec(
		`INSERT INTO flushes (timestamp, "trigger", rows, conflicts, fingerprint, error) VALUES (?, ?, ?, ?, ?, ?)`,
		ev.At.UTC().Format(time.RFC3339Nano),
		string(ev.Trigger),
		ev.Rows,
		ev.Conflicts,
		ev.Fingerprint,
		ev.Err,
	)
}

// Filter narrows a Recent query.
type Filter struct {
	Trigger    string
	ErrorsOnly bool
	Limit      int
}

// Entry is one recorded reconciliation event.
type Entry struct {
	Timestamp   time.Time `json:"timestamp"`
	Trigger     string    `json:"trigger"`
	Rows        int       `json:"rows"`
	Conflicts   int       `json:"conflicts"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// Recent returns recorded events matching the filter, newest first.
func (h *DB) Recent(filter Filter) ([]Entry, error) {
	var conditions []string
	var args []interface{}

	if filter.Trigger != "" {
		conditions = append(conditions, `"trigger" = ?`)
		args = append(args, filter.Trigger)
	}
	if filter.ErrorsOnly {
		conditions = append(conditions, "error != ''")
	}

	query := `SELECT timestamp, "trigger", rows, conflicts, fingerprint, error FROM flushes`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY timestamp DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT ?"
	args = append(args, limit)

	rows, err := h.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var tsStr string
		if err := rows.Scan(&tsStr, &e.Trigger, &e.Rows, &e.Conflicts, &e.Fingerprint, &e.Error); err != nil {
			continue
		}
		if t, err := time.Parse(time.RFC3339Nano, tsStr); err == nil {
			e.Timestamp = t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the database.
func (h *DB) Close() error {
	return h.db.Close()
}
