// Package store provides SQLite-based storage for the local enrollment
// history. The history is the operator's durable record of who was issued
// which key; the CSV log is for handing off PINs, the store is for lookup.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// cliName is the name used for state directory paths.
const cliName = "entrayk"

// Enrollment is one completed provisioning run. The PIN is stored for
// the operator's queryable record but never serialized to output.
type Enrollment struct {
	ID         int64     `json:"id" yaml:"id"`
	UPN        string    `json:"upn" yaml:"upn"`
	Model      string    `json:"model" yaml:"model"`
	Serial     string    `json:"serial" yaml:"serial"`
	PIN        string    `json:"-" yaml:"-"`
	EnrolledAt time.Time `json:"enrolledAt" yaml:"enrolledAt"`
}

// Filter specifies criteria for querying the enrollment history.
type Filter struct {
	UPN   string
	Since time.Time
	Limit int
}

// Store is a handle to the history database.
type Store struct {
	db *sql.DB
}

// DefaultPath returns the default database path following the XDG spec.
func DefaultPath() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, _ := os.UserHomeDir()
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, cliName, cliName+".db")
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set busy timeout to handle concurrent access gracefully. Without
	// this, a second invocation during a long write immediately returns
	// SQLITE_BUSY.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS enrollments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		upn TEXT NOT NULL,
		model TEXT NOT NULL,
		serial TEXT NOT NULL,
		pin TEXT NOT NULL,
		enrolled_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_enrollments_upn ON enrollments(upn);
	CREATE INDEX IF NOT EXISTS idx_enrollments_enrolled_at ON enrollments(enrolled_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Insert adds a completed enrollment and returns its row id. A zero
// EnrolledAt is stamped with the current time.
func (s *Store) Insert(e *Enrollment) (int64, error) {
	at := e.EnrolledAt
	if at.IsZero() {
		at = time.Now()
	}
	result, err := s.db.Exec(
		`INSERT INTO enrollments (upn, model, serial, pin, enrolled_at)
		 VALUES (?, ?, ?, ?, ?)`,
		e.UPN, e.Model, e.Serial, e.PIN, at.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert enrollment: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert id: %w", err)
	}
	return id, nil
}

// Query retrieves enrollments matching the filter, newest first.
func (s *Store) Query(filter Filter) ([]*Enrollment, error) {
	var conditions []string
	var args []interface{}

	if filter.UPN != "" {
		conditions = append(conditions, "upn = ?")
		args = append(args, filter.UPN)
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "enrolled_at >= ?")
		args = append(args, filter.Since.Unix())
	}

	query := "SELECT id, upn, model, serial, pin, enrolled_at FROM enrollments"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY enrolled_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query enrollments: %w", err)
	}
	defer rows.Close()

	var entries []*Enrollment
	for rows.Next() {
		var e Enrollment
		var at int64
		if err := rows.Scan(&e.ID, &e.UPN, &e.Model, &e.Serial, &e.PIN, &at); err != nil {
			return nil, fmt.Errorf("failed to scan enrollment: %w", err)
		}
		e.EnrolledAt = time.Unix(at, 0)
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate enrollments: %w", err)
	}
	return entries, nil
}

// Count returns the number of stored enrollments.
func (s *Store) Count() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM enrollments").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count enrollments: %w", err)
	}
	return n, nil
}
