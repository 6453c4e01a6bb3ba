// Package logstore persists query and ingestion history in a local SQLite
// database. It is an audit trail, not a cache: the query path works without
// it and treats write failures as non-fatal.
package logstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Query modes recorded in query_logs.
const (
	ModeFullBook     = "full_book"
	ModeSelectedText = "selected_text"
)

// Ingestion run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

const schema = `
CREATE TABLE IF NOT EXISTS query_logs (
	id               TEXT PRIMARY KEY,
	session_id       TEXT NOT NULL,
	query_text       TEXT NOT NULL,
	query_mode       TEXT NOT NULL,
	selected_text    TEXT,
	answer_text      TEXT NOT NULL,
	source_chunks    TEXT NOT NULL DEFAULT '[]',
	response_time_ms INTEGER NOT NULL,
	created_at       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_query_logs_session ON query_logs(session_id, created_at);

CREATE TABLE IF NOT EXISTS ingestion_logs (
	id            TEXT PRIMARY KEY,
	status        TEXT NOT NULL,
	total_files   INTEGER NOT NULL DEFAULT 0,
	total_chunks  INTEGER NOT NULL DEFAULT 0,
	error_message TEXT,
	metadata      TEXT,
	started_at    TEXT NOT NULL,
	completed_at  TEXT
);
`

// QueryLog is one recorded question/answer exchange.
type QueryLog struct {
	ID             string          `json:"id"`
	SessionID      string          `json:"session_id"`
	QueryText      string          `json:"query_text"`
	QueryMode      string          `json:"query_mode"`
	SelectedText   string          `json:"selected_text,omitempty"`
	AnswerText     string          `json:"answer_text"`
	SourceChunks   json.RawMessage `json:"source_chunks"`
	ResponseTimeMS int             `json:"response_time_ms"`
	CreatedAt      time.Time       `json:"created_at"`
}

// IngestionLog is one recorded ingestion run.
type IngestionLog struct {
	ID           string     `json:"id"`
	Status       string     `json:"status"`
	TotalFiles   int        `json:"total_files"`
	TotalChunks  int        `json:"total_chunks"`
	ErrorMessage string     `json:"error_message,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// Store wraps the SQLite database.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// Open opens (creating if needed) the database at path and applies the
// schema. WAL mode keeps concurrent readers from blocking log writes.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open log database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply log schema: %w", err)
	}

	return &Store{db: db, logger: logger, now: time.Now}, nil
}

// LogQuery records a completed exchange and returns the new log ID.
func (s *Store) LogQuery(ctx context.Context, log QueryLog) (string, error) {
	id := uuid.New().String()
	if len(log.SourceChunks) == 0 {
		log.SourceChunks = json.RawMessage("[]")
	}

	var selected any
	if log.SelectedText != "" {
		selected = log.SelectedText
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO query_logs (id, session_id, query_text, query_mode, selected_text,
			answer_text, source_chunks, response_time_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, log.SessionID, log.QueryText, log.QueryMode, selected,
		log.AnswerText, string(log.SourceChunks), log.ResponseTimeMS,
		s.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return "", fmt.Errorf("insert query log: %w", err)
	}

	s.logger.Debug("query logged", "id", id, "mode", log.QueryMode)
	return id, nil
}

// StartIngestion opens an ingestion run in the running state and returns
// its ID. metadata may be nil.
func (s *Store) StartIngestion(ctx context.Context, metadata map[string]any) (string, error) {
	id := uuid.New().String()

	var metaJSON any
	if metadata != nil {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return "", fmt.Errorf("marshal ingestion metadata: %w", err)
		}
		metaJSON = string(raw)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ingestion_logs (id, status, metadata, started_at)
		VALUES (?, ?, ?, ?)`,
		id, StatusRunning, metaJSON, s.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return "", fmt.Errorf("insert ingestion log: %w", err)
	}

	s.logger.Info("ingestion started", "id", id)
	return id, nil
}

// CompleteIngestion finalizes a run. A non-empty errMessage marks it failed;
// counts are recorded either way so partial progress stays visible.
func (s *Store) CompleteIngestion(ctx context.Context, id string, totalFiles, totalChunks int, errMessage string) error {
	status := StatusCompleted
	var errVal any
	if errMessage != "" {
		status = StatusFailed
		errVal = errMessage
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE ingestion_logs
		SET status = ?, total_files = ?, total_chunks = ?, error_message = ?, completed_at = ?
		WHERE id = ?`,
		status, totalFiles, totalChunks, errVal,
		s.now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("complete ingestion log: %w", err)
	}

	s.logger.Info("ingestion finished", "id", id, "status", status,
		"files", totalFiles, "chunks", totalChunks)
	return nil
}

// RecentQueries returns up to limit query logs, newest first. An empty
// sessionID returns logs across all sessions.
func (s *Store) RecentQueries(ctx context.Context, sessionID string, limit int) ([]QueryLog, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, session_id, query_text, query_mode, selected_text,
			answer_text, source_chunks, response_time_ms, created_at
		FROM query_logs`
	args := []any{}
	if sessionID != "" {
		query += " WHERE session_id = ?"
		args = append(args, sessionID)
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query logs: %w", err)
	}
	defer rows.Close()

	var logs []QueryLog
	for rows.Next() {
		var (
			log       QueryLog
			selected  sql.NullString
			chunks    string
			createdAt string
		)
		if err := rows.Scan(&log.ID, &log.SessionID, &log.QueryText, &log.QueryMode,
			&selected, &log.AnswerText, &chunks, &log.ResponseTimeMS, &createdAt); err != nil {
			return nil, fmt.Errorf("scan query log: %w", err)
		}
		log.SelectedText = selected.String
		log.SourceChunks = json.RawMessage(chunks)
		log.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

// LastIngestion returns the most recently started ingestion run, or nil if
// none has ever run.
func (s *Store) LastIngestion(ctx context.Context) (*IngestionLog, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, status, total_files, total_chunks, error_message, started_at, completed_at
		FROM ingestion_logs
		ORDER BY started_at DESC
		LIMIT 1`)

	var (
		log         IngestionLog
		errMsg      sql.NullString
		startedAt   string
		completedAt sql.NullString
	)
	err := row.Scan(&log.ID, &log.Status, &log.TotalFiles, &log.TotalChunks,
		&errMsg, &startedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan ingestion log: %w", err)
	}

	log.ErrorMessage = errMsg.String
	log.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
	if completedAt.Valid {
		t, _ := time.Parse(time.RFC3339Nano, completedAt.String)
		log.CompletedAt = &t
	}
	return &log, nil
}

// TestConnection reports whether the database answers a trivial query.
func (s *Store) TestConnection(ctx context.Context) bool {
	var one int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		s.logger.Error("log store connection test failed", "error", err)
		return false
	}
	return one == 1
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
