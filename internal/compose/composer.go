// Package compose turns pipeline terminal states into user-facing text.
// Composition is total: when the generation backend fails, deterministic
// Portuguese fallbacks apply, so the user always receives a complete
// reply.
package compose

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/saudata/txt2sql/internal/catalog"
	"github.com/saudata/txt2sql/internal/llm"
	"github.com/saudata/txt2sql/pkg/models"
)

// Failure kinds carried into error composition. Each maps to one
// user-safe message; internals never leak.
const (
	FailNone            = ""
	FailValidation      = "validation_rejected"
	FailGeneration      = "generation_failure"
	FailExecution       = "execution_error"
	FailNoRelevantTable = "no_relevant_table"
	FailUnknownTable    = "unknown_table"
	FailMaxAttempts     = "max_attempts_exceeded"
	FailInternal        = "internal_error"
)

// Input is the terminal pipeline state handed to composition.
type Input struct {
	Question       string
	Classification models.Classification
	SQL            string
	Result         *models.ExecutionResult
	History        []models.Turn
	Catalog        *catalog.Catalog
	FailureKind    string
	FailureDetail  string
}

// Composer produces the final response text.
type Composer struct {
	gen           llm.Generator
	historyWindow int
}

// New creates a composer.
func New(gen llm.Generator, historyWindow int) *Composer {
	return &Composer{gen: gen, historyWindow: historyWindow}
}

// Compose maps the terminal state to a complete user reply.
func (c *Composer) Compose(ctx context.Context, in Input) string {
	if in.FailureKind != FailNone {
		return errorMessage(in.FailureKind)
	}

	switch in.Classification {
	case models.ClassificationSchema:
		return c.schemaListing(in.Catalog)
	case models.ClassificationConversational:
		return c.conversational(ctx, in)
	default:
		return c.databaseAnswer(ctx, in)
	}
}

// databaseAnswer summarizes execution results in natural language, with
// a deterministic fallback when generation fails.
func (c *Composer) databaseAnswer(ctx context.Context, in Input) string {
	if in.Result == nil {
		return errorMessage(FailInternal)
	}

	sample := in.Result.Rows
	if len(sample) > 20 {
		sample = sample[:20]
	}
	rowsJSON, err := json.Marshal(sample)
	if err != nil {
		rowsJSON = []byte("[]")
	}

	prompt := fmt.Sprintf(
		"Pergunta: %s\nSQL executado: %s\nLinhas retornadas: %d (amostra abaixo)\n%s\n\nResponda a pergunta em uma ou duas frases em português, citando os números relevantes.",
		in.Question, in.SQL, in.Result.RowCount, rowsJSON,
	)
	if in.Result.Truncated {
		prompt += "\nObservação: o resultado foi truncado no limite de linhas."
	}

	text, err := c.gen.Generate(ctx, llm.Request{Prompt: prompt})
	if err != nil || strings.TrimSpace(text) == "" {
		log.Warn().Err(err).Msg("Answer composition failed, using deterministic fallback")
		return fallbackAnswer(in.Result)
	}
	return strings.TrimSpace(text)
}

// fallbackAnswer renders results without the generation backend.
func fallbackAnswer(result *models.ExecutionResult) string {
	if result.RowCount == 0 {
		return "A consulta foi executada, mas não retornou resultados."
	}
	// Single-row single-column results are almost always aggregates;
	// answer with the value directly.
	if result.RowCount == 1 && len(result.Columns) == 1 {
		value := result.Rows[0][result.Columns[0]]
		return fmt.Sprintf("Resultado: %v.", value)
	}
	msg := fmt.Sprintf("A consulta retornou %d linha(s).", result.RowCount)
	if result.Truncated {
		msg += " O resultado foi truncado no limite configurado."
	}
	return msg
}

// conversational answers from history and domain context alone; SQL is
// never involved on this path.
func (c *Composer) conversational(ctx context.Context, in Input) string {
	var b strings.Builder
	b.WriteString("Você é um assistente de análise de dados de internações hospitalares do SUS (SIH-RS).\n")

	n := len(in.History)
	if c.historyWindow > 0 && n > c.historyWindow {
		n = c.historyWindow
	}
	for i := n - 1; i >= 0; i-- {
		turn := in.History[i]
		fmt.Fprintf(&b, "P: %s\nR: %s\n", turn.Question, turn.Response)
	}
	fmt.Fprintf(&b, "Pergunta: %s\nResponda em português, de forma objetiva.", in.Question)

	text, err := c.gen.Generate(ctx, llm.Request{Prompt: b.String()})
	if err != nil || strings.TrimSpace(text) == "" {
		return "Este sistema responde perguntas sobre internações hospitalares do SIH-RS. " +
			"Pergunte, por exemplo: \"Quantas internações ocorreram em 2023?\""
	}
	return strings.TrimSpace(text)
}

// schemaListing renders the catalog deterministically.
func (c *Composer) schemaListing(cat *catalog.Catalog) string {
	if cat == nil || cat.Len() == 0 {
		return "Nenhuma tabela disponível no catálogo."
	}

	var b strings.Builder
	b.WriteString("Tabelas disponíveis:\n")
	for _, table := range cat.Tables() {
		fmt.Fprintf(&b, "- %s (%d colunas", table.Name, len(table.Columns))
		if table.RowEstimate > 0 {
			fmt.Fprintf(&b, ", ~%d linhas", table.RowEstimate)
		}
		b.WriteString(")")
		if table.Description != "" {
			desc := table.Description
			if idx := strings.Index(desc, " | "); idx > 0 {
				desc = desc[:idx]
			}
			fmt.Fprintf(&b, ": %s", desc)
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

// errorMessage maps failure kinds to complete, user-safe replies.
func errorMessage(kind string) string {
	switch kind {
	case FailValidation, FailMaxAttempts:
		return "Não consegui gerar uma consulta segura para essa pergunta. " +
			"Tente reformular com mais detalhes sobre o que deseja contar ou listar."
	case FailGeneration:
		return "O serviço de geração está indisponível no momento. Tente novamente em instantes."
	case FailExecution:
		return "A consulta não pôde ser executada no banco de dados. Tente novamente em instantes."
	case FailNoRelevantTable:
		return "Não encontrei tabelas relacionadas à sua pergunta. " +
			"Pergunte sobre internações, óbitos, procedimentos, hospitais ou municípios."
	case FailUnknownTable:
		return "Ocorreu uma inconsistência interna ao resolver o esquema. A equipe foi notificada."
	default:
		return "Ocorreu um erro interno ao processar sua pergunta. Tente novamente."
	}
}
