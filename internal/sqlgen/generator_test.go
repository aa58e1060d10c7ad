package sqlgen

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saudata/txt2sql/internal/catalog"
	"github.com/saudata/txt2sql/internal/llm"
	"github.com/saudata/txt2sql/pkg/models"
)

var testTables = map[string]catalog.Table{
	"internacoes": {
		Name: "internacoes",
		Columns: []catalog.Column{
			{Name: "N_AIH", Type: "bigint"},
			{Name: "SEXO", Type: "bigint", Nullable: true},
		},
		RowEstimate: 1500000,
		Description: "Internações hospitalares do SIH-RS",
	},
}

func TestGenerate(t *testing.T) {
	stub := llm.NewStub("SELECT COUNT(*) FROM internacoes")
	g := New(stub, 6, 3000)

	candidate, err := g.Generate(context.Background(), "quantas internações?",
		[]string{"internacoes"}, testTables, nil, 0, "")
	require.NoError(t, err)

	assert.Equal(t, "SELECT COUNT(*) FROM internacoes", candidate.SQL)
	assert.Equal(t, 0, candidate.Attempt)
	assert.Empty(t, candidate.PriorReason)
}

func TestGeneratePromptContainsSchema(t *testing.T) {
	stub := llm.NewStub("SELECT 1")
	g := New(stub, 6, 3000)

	_, err := g.Generate(context.Background(), "quantas internações?",
		[]string{"internacoes"}, testTables, nil, 0, "")
	require.NoError(t, err)

	prompt := stub.Prompts()[0].Prompt
	assert.Contains(t, prompt, "Tabela internacoes")
	assert.Contains(t, prompt, `"N_AIH" bigint NOT NULL`)
	assert.Contains(t, prompt, `"SEXO" bigint NULL`)
	assert.Contains(t, prompt, "~1500000 linhas")
	assert.Contains(t, prompt, "Internações hospitalares do SIH-RS")
}

func TestGenerateInjectsFeedbackOnRetry(t *testing.T) {
	stub := llm.NewStub("SELECT 1")
	g := New(stub, 6, 3000)

	candidate, err := g.Generate(context.Background(), "quantas internações?",
		[]string{"internacoes"}, testTables, nil, 1, "write operation not permitted")
	require.NoError(t, err)

	prompt := stub.Prompts()[0].Prompt
	assert.Contains(t, prompt, "A tentativa anterior falhou: write operation not permitted")
	assert.Equal(t, 1, candidate.Attempt)
	assert.Equal(t, "write operation not permitted", candidate.PriorReason)
}

func TestGenerateNoFeedbackOnFirstAttempt(t *testing.T) {
	stub := llm.NewStub("SELECT 1")
	g := New(stub, 6, 3000)

	_, err := g.Generate(context.Background(), "quantas internações?",
		[]string{"internacoes"}, testTables, nil, 0, "")
	require.NoError(t, err)

	assert.NotContains(t, stub.Prompts()[0].Prompt, "tentativa anterior")
}

func TestGenerateIncludesValidatedHistorySQL(t *testing.T) {
	stub := llm.NewStub("SELECT 1")
	g := New(stub, 6, 3000)

	history := []models.Turn{
		{
			Question:       "quantas internações em 2024?",
			Classification: models.ClassificationDatabase,
			Candidate:      &models.SQLCandidate{SQL: "SELECT COUNT(*) FROM internacoes"},
			Verdict:        &models.Verdict{Valid: true, Normalized: "SELECT COUNT(*) FROM internacoes"},
		},
	}
	_, err := g.Generate(context.Background(), "e em 2025?",
		[]string{"internacoes"}, testTables, history, 0, "")
	require.NoError(t, err)

	prompt := stub.Prompts()[0].Prompt
	assert.Contains(t, prompt, "quantas internações em 2024?")
	assert.Contains(t, prompt, "SQL: SELECT COUNT(*) FROM internacoes")
}

func TestGenerateError(t *testing.T) {
	stub := llm.NewFailingStub(errors.New("backend down"))
	g := New(stub, 6, 3000)

	_, err := g.Generate(context.Background(), "quantas?",
		[]string{"internacoes"}, testTables, nil, 2, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "attempt 2")
}

func TestExtractSQL(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bare", "SELECT 1", "SELECT 1"},
		{"fenced", "```sql\nSELECT 1\n```", "SELECT 1"},
		{"fenced no language", "```\nSELECT 1\n```", "SELECT 1"},
		{"unterminated fence", "```sql\nSELECT 1", "SELECT 1"},
		{"surrounding prose", "Aqui está:\n```sql\nSELECT COUNT(*) FROM mortes\n```\nEspero que ajude.", "SELECT COUNT(*) FROM mortes"},
		{"label prefix", "sql\nSELECT 1", "SELECT 1"},
		{"whitespace", "  \n SELECT 1 \n ", "SELECT 1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractSQL(tc.in))
		})
	}
}
