// Package sqlgen drives SQL generation through the generation port. The
// output is untrusted text: it is never executed without passing the
// safety validator first.
package sqlgen

import (
	"context"
	"fmt"
	"strings"

	"github.com/saudata/txt2sql/internal/catalog"
	"github.com/saudata/txt2sql/internal/llm"
	"github.com/saudata/txt2sql/pkg/models"
)

// Generator builds schema-grounded prompts and extracts SQL candidates
// from model output. It keeps no hidden state: the candidate is a pure
// function of the arguments.
type Generator struct {
	gen           llm.Generator
	historyWindow int
	promptBudget  int
}

// New creates a generator.
func New(gen llm.Generator, historyWindow, promptBudget int) *Generator {
	return &Generator{gen: gen, historyWindow: historyWindow, promptBudget: promptBudget}
}

const systemPrompt = `Você gera SQL PostgreSQL para um banco de dados de internações hospitalares (SIH-RS).
Regras:
- Gere EXATAMENTE uma consulta SELECT (ou WITH ... SELECT). Nunca gere comandos de escrita.
- Use aspas duplas em nomes de colunas maiúsculas: "N_AIH", "SEXO", "IDADE".
- Use somente as tabelas e colunas fornecidas no esquema.
- Responda apenas com o SQL, sem explicações.`

// Generate produces the attempt-indexed candidate. For attempt > 0 the
// prior rejection or execution error is injected as corrective feedback.
func (g *Generator) Generate(
	ctx context.Context,
	question string,
	tableOrder []string,
	tables map[string]catalog.Table,
	history []models.Turn,
	attempt int,
	priorReason string,
) (*models.SQLCandidate, error) {
	prompt := g.buildPrompt(question, tableOrder, tables, history, attempt, priorReason)

	raw, err := g.gen.Generate(ctx, llm.Request{System: systemPrompt, Prompt: prompt})
	if err != nil {
		return nil, fmt.Errorf("generate sql (attempt %d): %w", attempt, err)
	}

	return &models.SQLCandidate{
		SQL:         ExtractSQL(raw),
		Attempt:     attempt,
		PriorReason: priorReason,
	}, nil
}

// buildPrompt renders the schema subset, bounded history, and corrective
// feedback into one prompt.
func (g *Generator) buildPrompt(
	question string,
	tableOrder []string,
	tables map[string]catalog.Table,
	history []models.Turn,
	attempt int,
	priorReason string,
) string {
	var b strings.Builder

	b.WriteString("Esquema disponível:\n")
	for _, name := range tableOrder {
		table, ok := tables[name]
		if !ok {
			continue
		}
		renderTable(&b, table)
	}

	if snippets := historySnippets(history, g.historyWindow); len(snippets) > 0 {
		b.WriteString("\nContexto da conversa:\n")
		for _, s := range llm.FitBudget(snippets, g.promptBudget) {
			b.WriteString(s)
			b.WriteByte('\n')
		}
	}

	if attempt > 0 && priorReason != "" {
		fmt.Fprintf(&b, "\nA tentativa anterior falhou: %s\nCorrija o problema e gere uma nova consulta.\n", priorReason)
	}

	fmt.Fprintf(&b, "\nPergunta: %s\nSQL:", question)
	return b.String()
}

// renderTable writes one table's schema block.
func renderTable(b *strings.Builder, table catalog.Table) {
	fmt.Fprintf(b, "\nTabela %s", table.Name)
	if table.RowEstimate > 0 {
		fmt.Fprintf(b, " (~%d linhas)", table.RowEstimate)
	}
	b.WriteString(":\n")
	for _, col := range table.Columns {
		nullable := "NOT NULL"
		if col.Nullable {
			nullable = "NULL"
		}
		fmt.Fprintf(b, "  \"%s\" %s %s\n", col.Name, col.Type, nullable)
	}
	if table.Description != "" {
		fmt.Fprintf(b, "  -- %s\n", table.Description)
	}
}

// historySnippets renders prior turns most-recent-first, each as a
// question/answer pair, capped at window turns.
func historySnippets(history []models.Turn, window int) []string {
	n := len(history)
	if window > 0 && n > window {
		n = window
	}
	snippets := make([]string, 0, n)
	for i := 0; i < n; i++ {
		turn := history[i]
		s := fmt.Sprintf("P: %s", turn.Question)
		if turn.Candidate != nil && turn.Verdict != nil && turn.Verdict.Valid {
			s += fmt.Sprintf("\nSQL: %s", turn.Verdict.Normalized)
		}
		snippets = append(snippets, s)
	}
	return snippets
}

// ExtractSQL strips markdown fences and labels from model output,
// returning the bare statement text.
func ExtractSQL(raw string) string {
	text := strings.TrimSpace(raw)

	if idx := strings.Index(text, "```"); idx >= 0 {
		rest := text[idx+3:]
		if end := strings.Index(rest, "```"); end >= 0 {
			text = rest[:end]
		} else {
			text = rest
		}
	}
	text = strings.TrimSpace(text)
	lower := strings.ToLower(text)
	for _, label := range []string{"sql\n", "sql\r\n", "sql "} {
		if strings.HasPrefix(lower, label) {
			text = strings.TrimSpace(text[len(label):])
			break
		}
	}
	return text
}
