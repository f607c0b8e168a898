package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver.
)

// Store wraps a SQLite database connection for the daemon.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the SQLite database at dbPath with WAL mode and a
// 5-second busy timeout, then runs any pending migrations.
func New(dbPath string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(on)", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("check journal mode: %w", err)
	}
	if journalMode != "wal" {
		_ = db.Close()
		return nil, fmt.Errorf("expected WAL journal mode, got %q", journalMode)
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RefreshRecord is one journalled refresh: the outcome of a single
// coalesced broadcast.
type RefreshRecord struct {
	ID        int64         `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`
	Staged    int           `json:"staged"`
	Modified  int           `json:"modified"`
	Deleted   int           `json:"deleted"`
	Untracked int           `json:"untracked"`
}

// InsertRefresh journals one refresh outcome.
func (s *Store) InsertRefresh(r RefreshRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO refreshes (timestamp, duration_ms, staged, modified, deleted, untracked)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.Timestamp.UTC().Format(time.RFC3339Nano),
		r.Duration.Milliseconds(),
		r.Staged, r.Modified, r.Deleted, r.Untracked,
	)
	if err != nil {
		return fmt.Errorf("insert refresh: %w", err)
	}
	return nil
}

// RecentRefreshes returns up to limit journal entries, newest first.
func (s *Store) RecentRefreshes(limit int) ([]RefreshRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, timestamp, duration_ms, staged, modified, deleted, untracked
		 FROM refreshes ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query refreshes: %w", err)
	}
	defer rows.Close()

	var records []RefreshRecord
	for rows.Next() {
		var (
			r          RefreshRecord
			ts         string
			durationMs int64
		)
		if err := rows.Scan(&r.ID, &ts, &durationMs, &r.Staged, &r.Modified, &r.Deleted, &r.Untracked); err != nil {
			return nil, fmt.Errorf("scan refresh: %w", err)
		}
		if r.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("parse refresh timestamp %q: %w", ts, err)
		}
		r.Duration = time.Duration(durationMs) * time.Millisecond
		records = append(records, r)
	}
	return records, rows.Err()
}

// RefreshCount returns the number of journalled refreshes.
func (s *Store) RefreshCount() (int64, error) {
	var count int64
	err := s.db.QueryRow("SELECT COUNT(*) FROM refreshes").Scan(&count)
	return count, err
}

// DBSizeBytes returns the database size approximated as
// page_count * page_size.
func (s *Store) DBSizeBytes() (int64, error) {
	var pageCount, pageSize int64
	if err := s.db.QueryRow("PRAGMA page_count").Scan(&pageCount); err != nil {
		return 0, err
	}
	if err := s.db.QueryRow("PRAGMA page_size").Scan(&pageSize); err != nil {
		return 0, err
	}
	return pageCount * pageSize, nil
}

// GetDaemonState reads a value from the daemon_state key/value table.
// Missing keys return an empty string.
func (s *Store) GetDaemonState(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM daemon_state WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SetDaemonState writes a value to the daemon_state key/value table.
func (s *Store) SetDaemonState(key, value string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.Exec(
		`INSERT INTO daemon_state (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, now,
	)
	return err
}
