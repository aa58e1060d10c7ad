package executor

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockExecutor(t *testing.T, rowLimit int) (*Executor, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db, 5*time.Second, rowLimit), mock
}

// TestExecute_Rows tests the happy path through the read-only tx.
func TestExecute_Rows(t *testing.T) {
	exec, mock := newMockExecutor(t, 10)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT").WillReturnRows(
		sqlmock.NewRows([]string{"nome", "total"}).
			AddRow("Porto Alegre", 120).
			AddRow("Caxias do Sul", 44),
	)
	mock.ExpectRollback()

	result, err := exec.Execute(context.Background(), `SELECT nome, COUNT(*) AS total FROM internacoes GROUP BY nome`)
	require.NoError(t, err)

	assert.Equal(t, []string{"nome", "total"}, result.Columns)
	assert.Equal(t, 2, result.RowCount)
	assert.False(t, result.Truncated)
	assert.Equal(t, "Porto Alegre", result.Rows[0]["nome"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestExecute_Truncation tests that the row cap sets Truncated and stops
// scanning at exactly rowLimit rows.
func TestExecute_Truncation(t *testing.T) {
	const limit = 1000
	exec, mock := newMockExecutor(t, limit)

	rows := sqlmock.NewRows([]string{"n"})
	for i := 0; i < 5000; i++ {
		rows.AddRow(i)
	}
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT").WillReturnRows(rows)
	mock.ExpectRollback()

	result, err := exec.Execute(context.Background(), "SELECT n FROM internacoes")
	require.NoError(t, err)

	assert.Equal(t, limit, result.RowCount)
	assert.Len(t, result.Rows, limit)
	assert.True(t, result.Truncated)
}

// TestExecute_ByteSlicesBecomeStrings tests driver []byte normalization.
func TestExecute_ByteSlicesBecomeStrings(t *testing.T) {
	exec, mock := newMockExecutor(t, 10)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT").WillReturnRows(
		sqlmock.NewRows([]string{"descricao"}).AddRow([]byte("Pneumonia")),
	)
	mock.ExpectRollback()

	result, err := exec.Execute(context.Background(), "SELECT descricao FROM cid10")
	require.NoError(t, err)
	assert.Equal(t, "Pneumonia", result.Rows[0]["descricao"])
}

// TestExecute_QueryError tests that failures carry a classification.
func TestExecute_QueryError(t *testing.T) {
	exec, mock := newMockExecutor(t, 10)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT").WillReturnError(&pgconn.PgError{Code: "42703", Message: "column does not exist"})
	mock.ExpectRollback()

	_, err := exec.Execute(context.Background(), "SELECT nope FROM internacoes")
	require.Error(t, err)

	var qe *QueryError
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, ClassTransient, qe.Class)
	assert.True(t, Transient(err))
}

// TestExecute_ConnectionHiccupIsTransient tests that a mid-query
// connection failure is retry-eligible rather than terminal.
func TestExecute_ConnectionHiccupIsTransient(t *testing.T) {
	exec, mock := newMockExecutor(t, 10)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT").WillReturnError(&pgconn.PgError{Code: "08006", Message: "connection failure"})
	mock.ExpectRollback()

	_, err := exec.Execute(context.Background(), "SELECT COUNT(*) FROM internacoes")
	require.Error(t, err)
	assert.True(t, Transient(err))
}

// TestClassify_TableDriven tests the SQLSTATE and fallback mapping.
func TestClassify_TableDriven(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{name: "context deadline", err: context.DeadlineExceeded, want: ClassTransient},
		{name: "statement timeout", err: &pgconn.PgError{Code: "57014"}, want: ClassTransient},
		{name: "deadlock", err: &pgconn.PgError{Code: "40P01"}, want: ClassTransient},
		{name: "out of memory", err: &pgconn.PgError{Code: "53200"}, want: ClassTransient},
		{name: "undefined column", err: &pgconn.PgError{Code: "42703"}, want: ClassTransient},
		{name: "syntax error", err: &pgconn.PgError{Code: "42601"}, want: ClassTransient},
		{name: "connection failure", err: &pgconn.PgError{Code: "08006"}, want: ClassTransient},
		{name: "connection does not exist", err: &pgconn.PgError{Code: "08003"}, want: ClassTransient},
		{name: "connection refused", err: fmt.Errorf("dial tcp: connection refused"), want: ClassTransient},
		{name: "permission denied", err: &pgconn.PgError{Code: "42501"}, want: ClassPermanent},
		{name: "bad password", err: &pgconn.PgError{Code: "28P01"}, want: ClassPermanent},
		{name: "unknown database", err: &pgconn.PgError{Code: "3D000"}, want: ClassPermanent},
		{name: "unknown pg error", err: &pgconn.PgError{Code: "XX000"}, want: ClassPermanent},
		{name: "sqlite missing table", err: fmt.Errorf("SQL logic error: no such table: mortes"), want: ClassTransient},
		{name: "sqlite readonly", err: fmt.Errorf("attempt to write a readonly database"), want: ClassPermanent},
		{name: "opaque error", err: errors.New("something odd"), want: ClassPermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.err))
		})
	}
}
