// Package history persists completed turns to SQLite so past queries
// can be audited and replayed offline. The archive is write-mostly and
// entirely separate from the read-only healthcare database.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/saudata/txt2sql/pkg/models"
)

// Archive is the persistent turn log.
type Archive struct {
	db *sql.DB
}

const schema = `
	CREATE TABLE IF NOT EXISTS turns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		question TEXT NOT NULL,
		classification TEXT NOT NULL,
		sql_text TEXT,
		sql_valid INTEGER,
		row_count INTEGER,
		truncated INTEGER,
		response TEXT NOT NULL,
		success INTEGER NOT NULL,
		created_at_epoch INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id, created_at_epoch);
`

// Open creates or opens the archive database at path.
func Open(path string) (*Archive, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	// Single writer; WAL keeps readers unblocked.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Archive{db: db}, nil
}

// Record appends one completed turn.
func (a *Archive) Record(ctx context.Context, sessionID string, turn models.Turn, success bool) error {
	const query = `
		INSERT INTO turns
		(session_id, question, classification, sql_text, sql_valid, row_count, truncated, response, success, created_at_epoch)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var (
		sqlText  sql.NullString
		sqlValid sql.NullBool
		rowCount sql.NullInt64
		trunc    sql.NullBool
	)
	if turn.Verdict != nil {
		sqlValid = sql.NullBool{Bool: turn.Verdict.Valid, Valid: true}
		if turn.Verdict.Valid {
			sqlText = sql.NullString{String: turn.Verdict.Normalized, Valid: true}
		}
	}
	if turn.Result != nil {
		rowCount = sql.NullInt64{Int64: int64(turn.Result.RowCount), Valid: true}
		trunc = sql.NullBool{Bool: turn.Result.Truncated, Valid: true}
	}

	_, err := a.db.ExecContext(ctx, query,
		sessionID, turn.Question, string(turn.Classification),
		sqlText, sqlValid, rowCount, trunc,
		turn.Response, success, turn.Timestamp.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record turn: %w", err)
	}
	return nil
}

// Entry is one archived turn.
type Entry struct {
	ID             int64
	SessionID      string
	Question       string
	Classification string
	SQLText        string
	RowCount       int64
	Response       string
	Success        bool
	CreatedAt      time.Time
}

// Recent returns the latest entries, most recent first.
func (a *Archive) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
		SELECT id, session_id, question, classification,
		       COALESCE(sql_text, ''), COALESCE(row_count, 0), response, success, created_at_epoch
		FROM turns
		ORDER BY created_at_epoch DESC
		LIMIT ?
	`

	rows, err := a.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query archive: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var epoch int64
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Question, &e.Classification,
			&e.SQLText, &e.RowCount, &e.Response, &e.Success, &epoch); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.CreatedAt = time.UnixMilli(epoch)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the underlying database.
func (a *Archive) Close() error {
	return a.db.Close()
}
