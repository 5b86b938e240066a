// Package history persists pipeline run records for auditing.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/doeshing/ffpilot/internal/domain"
	"github.com/doeshing/ffpilot/internal/pkg/filesystem"
	"github.com/doeshing/ffpilot/internal/ports"
)

// SQLiteStore persists run records in a SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// NewSQLiteStore creates (or opens) the ~/.ffpilot/history/runs.db database.
func NewSQLiteStore() (*SQLiteStore, error) {
	return NewSQLiteStoreAt(filepath.Join(filesystem.UserHomeDir(), ".ffpilot", "history", "runs.db"))
}

// NewSQLiteStoreAt opens a store at an explicit path.
func NewSQLiteStoreAt(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), domain.DirectoryPermissions); err != nil {
		return nil, fmt.Errorf("ledger dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	store := &SQLiteStore{db: db, path: path}
	if err := store.init(); err != nil {
		return nil, fmt.Errorf("init ledger: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) init() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT,
		request_id TEXT,
		operation TEXT,
		command TEXT,
		provenance TEXT,
		confidence REAL,
		valid INTEGER,
		success INTEGER,
		exit TEXT,
		exit_code INTEGER,
		duration_ms INTEGER,
		error TEXT
	);`)
	return err
}

// Save inserts a new record.
func (s *SQLiteStore) Save(record domain.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`INSERT INTO runs
		(timestamp, request_id, operation, command, provenance, confidence, valid, success, exit, exit_code, duration_ms, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.Timestamp.Format(time.RFC3339),
		record.RequestID,
		record.Operation,
		record.Command,
		string(record.Provenance),
		record.Confidence,
		boolToInt(record.Valid),
		boolToInt(record.Success),
		string(record.Exit),
		record.ExitCode,
		record.DurationMS,
		record.Error,
	)
	return err
}

// Records returns run entries (limit/search optional).
func (s *SQLiteStore) Records(limit int, search string) ([]domain.RunRecord, error) {
	builder := strings.Builder{}
	builder.WriteString("SELECT timestamp, request_id, operation, command, provenance, confidence, valid, success, exit, exit_code, duration_ms, error FROM runs")
	var args []interface{}
	if search != "" {
		builder.WriteString(" WHERE operation LIKE ? OR command LIKE ?")
		args = append(args, "%"+search+"%", "%"+search+"%")
	}
	builder.WriteString(" ORDER BY datetime(timestamp) DESC")
	if limit > 0 {
		builder.WriteString(" LIMIT ?")
		args = append(args, limit)
	}
	rows, err := s.db.Query(builder.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []domain.RunRecord
	for rows.Next() {
		var rec domain.RunRecord
		var ts, provenance, exit string
		var valid, success int
		if err := rows.Scan(&ts, &rec.RequestID, &rec.Operation, &rec.Command, &provenance,
			&rec.Confidence, &valid, &success, &exit, &rec.ExitCode, &rec.DurationMS, &rec.Error); err != nil {
			return nil, err
		}
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			rec.Timestamp = t
		}
		rec.Provenance = domain.Provenance(provenance)
		rec.Exit = domain.ExitClass(exit)
		rec.Valid = valid == 1
		rec.Success = success == 1
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Clear deletes all run entries.
func (s *SQLiteStore) Clear() error {
	_, err := s.db.Exec("DELETE FROM runs")
	return err
}

// Prune removes rows older than the retention window.
func (s *SQLiteStore) Prune(retainDays int) error {
	if retainDays <= 0 {
		return nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retainDays).Format(time.RFC3339)
	_, err := s.db.Exec("DELETE FROM runs WHERE datetime(timestamp) < datetime(?)", cutoff)
	return err
}

// Path returns the sqlite database path.
func (s *SQLiteStore) Path() string {
	return s.path
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ ports.RunLedger = (*SQLiteStore)(nil)
