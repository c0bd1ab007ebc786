// Package store persists the operation audit trail to SQLite, adapted
// from the teacher's database bootstrap (open, ping, migrate) but against
// an audit_log schema instead of a device inventory cache.
package store

import (
	"database/sql"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS audit_log (
	id         TEXT PRIMARY KEY,
	ts         DATETIME NOT NULL,
	operation  TEXT NOT NULL,
	serial     TEXT NOT NULL,
	success    INTEGER NOT NULL,
	detail     TEXT
);
CREATE INDEX IF NOT EXISTS idx_audit_log_serial ON audit_log(serial);
CREATE INDEX IF NOT EXISTS idx_audit_log_ts ON audit_log(ts);
`

// Store wraps the audit_log SQLite database.
type Store struct {
	db *sql.DB
}

// Open creates (if needed) and opens the SQLite database at path, running
// the audit_log schema migration.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, err
	}

	log.Printf("store: audit log ready at %s", path)
	return &Store{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Record inserts one audit row. Failures to write are logged, never
// propagated: audit logging must never block or fail a device operation.
func (s *Store) Record(operation, serial string, success bool, detail string) {
	_, err := s.db.Exec(
		`INSERT INTO audit_log (id, ts, operation, serial, success, detail) VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), time.Now().UTC(), operation, serial, boolToInt(success), detail,
	)
	if err != nil {
		log.Printf("store: failed to record audit row for %s/%s: %v", operation, serial, err)
	}
}

// AuditRow is one row of the audit log, returned by Recent.
type AuditRow struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"ts"`
	Operation string    `json:"operation"`
	Serial    string    `json:"serial"`
	Success   bool      `json:"success"`
	Detail    string    `json:"detail"`
}

// Recent returns the most recent n audit rows, newest first.
func (s *Store) Recent(n int) ([]AuditRow, error) {
	rows, err := s.db.Query(
		`SELECT id, ts, operation, serial, success, detail FROM audit_log ORDER BY ts DESC LIMIT ?`, n,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AuditRow
	for rows.Next() {
		var r AuditRow
		var success int
		if err := rows.Scan(&r.ID, &r.Timestamp, &r.Operation, &r.Serial, &success, &r.Detail); err != nil {
			return nil, err
		}
		r.Success = success != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
