package executor

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/saudata/txt2sql/pkg/models"
)

// Executor runs validated SELECT text against the database. The
// connection is expected to carry read-only credentials; on top of that,
// every statement runs inside an explicit read-only transaction with a
// context deadline, and rows are capped at rowLimit.
type Executor struct {
	db       *sql.DB
	timeout  time.Duration
	rowLimit int
}

// New creates an executor over an open database handle.
func New(db *sql.DB, timeout time.Duration, rowLimit int) *Executor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if rowLimit <= 0 {
		rowLimit = 1000
	}
	return &Executor{db: db, timeout: timeout, rowLimit: rowLimit}
}

// Execute runs sqlText and collects at most rowLimit rows, setting
// Truncated when the cap was reached. Failures come back as *QueryError
// carrying the retry classification. Cancelling ctx aborts the in-flight
// statement server-side.
func (e *Executor) Execute(ctx context.Context, sqlText string) (*models.ExecutionResult, error) {
	qctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()

	tx, err := e.db.BeginTx(qctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, &QueryError{Class: classify(err), Err: fmt.Errorf("begin read-only tx: %w", err)}
	}
	defer tx.Rollback() //nolint:errcheck // read-only, nothing to commit

	rows, err := tx.QueryContext(qctx, sqlText)
	if err != nil {
		return nil, &QueryError{Class: classify(err), Err: fmt.Errorf("query: %w", err)}
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, &QueryError{Class: classify(err), Err: fmt.Errorf("columns: %w", err)}
	}

	result := &models.ExecutionResult{Columns: cols}
	values := make([]any, len(cols))
	scanTargets := make([]any, len(cols))
	for i := range values {
		scanTargets[i] = &values[i]
	}

	for rows.Next() {
		if result.RowCount >= e.rowLimit {
			// One row past the cap proves truncation without draining
			// the server-side result.
			result.Truncated = true
			break
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, &QueryError{Class: classify(err), Err: fmt.Errorf("scan row %d: %w", result.RowCount, err)}
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			row[col] = normalizeValue(values[i])
		}
		result.Rows = append(result.Rows, row)
		result.RowCount++
	}
	if err := rows.Err(); err != nil && !result.Truncated {
		return nil, &QueryError{Class: classify(err), Err: fmt.Errorf("iterate rows: %w", err)}
	}

	result.Duration = time.Since(start)

	log.Debug().
		Int("rows", result.RowCount).
		Bool("truncated", result.Truncated).
		Dur("elapsed", result.Duration).
		Msg("Query executed")

	return result, nil
}

// Ping verifies database liveness for health reporting.
func (e *Executor) Ping(ctx context.Context) error {
	return e.db.PingContext(ctx)
}

// RowLimit returns the configured row cap.
func (e *Executor) RowLimit() int {
	return e.rowLimit
}

// normalizeValue converts driver byte slices to strings so results
// serialize cleanly.
func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
