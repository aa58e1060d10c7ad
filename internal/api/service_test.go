package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saudata/txt2sql/internal/catalog"
	"github.com/saudata/txt2sql/internal/compose"
	"github.com/saudata/txt2sql/internal/pipeline"
	"github.com/saudata/txt2sql/internal/session"
	"github.com/saudata/txt2sql/pkg/models"
)

// Stub pipeline components. The pipeline itself has its own tests; here
// they only need to produce a deterministic end-to-end result.

type stubClassifier struct{ out models.Classification }

func (c stubClassifier) Classify(context.Context, string, []models.Turn) models.Classification {
	return c.out
}

type stubSelector struct{ names []string }

func (s stubSelector) Select(string, *catalog.Catalog) ([]string, error) {
	return s.names, nil
}

type stubGenerator struct{ sql string }

func (g stubGenerator) Generate(_ context.Context, _ string, _ []string, _ map[string]catalog.Table,
	_ []models.Turn, attempt int, priorReason string) (*models.SQLCandidate, error) {
	return &models.SQLCandidate{SQL: g.sql, Attempt: attempt, PriorReason: priorReason}, nil
}

type stubExecutor struct{}

func (stubExecutor) Execute(context.Context, string) (*models.ExecutionResult, error) {
	return &models.ExecutionResult{
		Columns:  []string{"total"},
		Rows:     []map[string]any{{"total": int64(42)}},
		RowCount: 1,
	}, nil
}

type stubComposer struct{}

func (stubComposer) Compose(_ context.Context, in compose.Input) string {
	if in.FailureKind != compose.FailNone {
		return "erro: " + in.FailureKind
	}
	return "resposta"
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func testService(t *testing.T) (*Service, *session.Store) {
	t.Helper()

	cat := catalog.New([]catalog.Table{
		{Name: "internacoes", Columns: []catalog.Column{{Name: "N_AIH", Type: "bigint"}}},
	})
	holder := catalog.NewHolder(cat)
	sessions := session.NewStore(time.Minute, 50)
	t.Cleanup(sessions.Stop)

	orch := pipeline.New(pipeline.Config{
		Classifier:  stubClassifier{out: models.ClassificationDatabase},
		Selector:    stubSelector{names: []string{"internacoes"}},
		Generator:   stubGenerator{sql: "SELECT COUNT(*) AS total FROM internacoes"},
		Executor:    stubExecutor{},
		Composer:    stubComposer{},
		Sessions:    sessions,
		Catalogs:    holder,
		MaxAttempts: 3,
	})

	svc := NewService(orch, sessions, holder, stubPinger{}, stubPinger{})
	return svc, sessions
}

func doJSON(t *testing.T, svc *Service, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	svc.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHandleQuery(t *testing.T) {
	svc, _ := testService(t)

	rec := doJSON(t, svc, http.MethodPost, "/api/query", queryRequest{
		Question: "Quantas internações houve em 2025?",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var result models.QueryResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Success)
	assert.Equal(t, "resposta", result.Response)
	assert.Equal(t, "SELECT COUNT(*) AS total FROM internacoes", result.SQLQuery)
	assert.NotEmpty(t, result.SessionID)
}

func TestHandleQueryValidation(t *testing.T) {
	svc, _ := testService(t)

	rec := doJSON(t, svc, http.MethodPost, "/api/query", queryRequest{Question: "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/query", bytes.NewBufferString("{not json"))
	rec2 := httptest.NewRecorder()
	svc.Handler().ServeHTTP(rec2, req)
	assert.Equal(t, http.StatusBadRequest, rec2.Code)
}

func TestHandleQueryUnknownSession(t *testing.T) {
	svc, _ := testService(t)

	rec := doJSON(t, svc, http.MethodPost, "/api/query", queryRequest{
		Question:  "quantas internações?",
		SessionID: "does-not-exist",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionLifecycle(t *testing.T) {
	svc, sessions := testService(t)

	rec := doJSON(t, svc, http.MethodPost, "/api/sessions", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.SessionID)
	assert.Equal(t, 1, sessions.Len())

	// Query against the created session, then read its history back.
	rec = doJSON(t, svc, http.MethodPost, "/api/query", queryRequest{
		Question:  "Quantas mortes em 2025?",
		SessionID: created.SessionID,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, svc, http.MethodGet, "/api/sessions/"+created.SessionID+"/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var hist struct {
		SessionID string        `json:"session_id"`
		Turns     []models.Turn `json:"turns"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hist))
	require.Len(t, hist.Turns, 1)
	assert.Equal(t, "Quantas mortes em 2025?", hist.Turns[0].Question)

	rec = doJSON(t, svc, http.MethodDelete, "/api/sessions/"+created.SessionID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, sessions.Len())

	rec = doJSON(t, svc, http.MethodDelete, "/api/sessions/"+created.SessionID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleSchema(t *testing.T) {
	svc, _ := testService(t)

	rec := doJSON(t, svc, http.MethodGet, "/api/schema", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Tables []catalog.Table `json:"tables"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Tables, 1)
	assert.Equal(t, "internacoes", body.Tables[0].Name)
}

func TestHandleHealth(t *testing.T) {
	svc, _ := testService(t)

	rec := doJSON(t, svc, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body healthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "ok", body.Checks["database"])
	assert.Equal(t, "ok", body.Checks["llm"])
}

func TestHandleHealthDegraded(t *testing.T) {
	svc, _ := testService(t)
	svc.llmPing = stubPinger{err: context.DeadlineExceeded}

	rec := doJSON(t, svc, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body healthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "ok", body.Checks["database"])
	assert.NotEqual(t, "ok", body.Checks["llm"])
}

func TestMetricsEndpoint(t *testing.T) {
	svc, _ := testService(t)

	rec := doJSON(t, svc, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
