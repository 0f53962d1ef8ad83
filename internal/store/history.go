package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vidfetch/vidfetch/internal/domain"
)

// HistoryStore is an append-only ledger of transfers that reached a terminal
// status. It is a log for the API's history listing; live task state is never
// rehydrated from it.
type HistoryStore struct {
	db *sql.DB
}

// HistoryEntry is one recorded terminal task.
type HistoryEntry struct {
	TaskID          string    `json:"task_id"`
	SourceURL       string    `json:"source_url"`
	Title           string    `json:"title"`
	OutputPath      string    `json:"output_path"`
	Status          string    `json:"status"`
	DownloadedBytes int64     `json:"downloaded_bytes"`
	TotalBytes      int64     `json:"total_bytes"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	CompletedAt     time.Time `json:"completed_at"`
}

func NewHistoryStore(dbPath string) (*HistoryStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// Ping makes sure the file is actually accessible and the DSN is valid
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to sqlite: %w", err)
	}

	s := &HistoryStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("could not migrate history database: %w", err)
	}
	return s, nil
}

func (s *HistoryStore) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS transfers (
		task_id          TEXT PRIMARY KEY,
		source_url       TEXT NOT NULL,
		title            TEXT NOT NULL,
		output_path      TEXT NOT NULL,
		status           TEXT NOT NULL,
		downloaded_bytes INTEGER NOT NULL DEFAULT 0,
		total_bytes      INTEGER NOT NULL DEFAULT 0,
		error            TEXT NOT NULL DEFAULT '',
		created_at       INTEGER NOT NULL,
		completed_at     INTEGER NOT NULL
	)`)
	return err
}

// Record persists the terminal outcome of a task.
func (s *HistoryStore) Record(t *domain.Task) error {
	p := t.Progress()

	query := `INSERT OR REPLACE INTO transfers
		(task_id, source_url, title, output_path, status, downloaded_bytes, total_bytes, error, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.Exec(query,
		t.ID,
		t.SourceURL,
		t.Title,
		t.OutputPath,
		string(p.Status),
		p.DownloadedBytes,
		p.TotalBytes,
		p.ErrorMessage,
		t.CreatedAt.Unix(),
		t.CompletedAt().Unix(),
	)
	return err
}

// Recent returns the most recently completed entries, newest first.
func (s *HistoryStore) Recent(limit int) ([]HistoryEntry, error) {
	rows, err := s.db.Query(`
		SELECT task_id, source_url, title, output_path, status, downloaded_bytes, total_bytes, error, created_at, completed_at
		FROM transfers
		ORDER BY completed_at DESC, task_id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch history: %w", err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var created, completed int64

		err := rows.Scan(&e.TaskID, &e.SourceURL, &e.Title, &e.OutputPath, &e.Status,
			&e.DownloadedBytes, &e.TotalBytes, &e.ErrorMessage, &created, &completed)
		if err != nil {
			return nil, err
		}

		e.CreatedAt = time.Unix(created, 0)
		e.CompletedAt = time.Unix(completed, 0)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *HistoryStore) Close() error {
	return s.db.Close()
}
