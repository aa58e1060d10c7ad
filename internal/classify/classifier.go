// Package classify routes questions to DATABASE, CONVERSATIONAL, or
// SCHEMA handling. Classification is total: generation failures fall
// back to a keyword heuristic, and residual ambiguity fails open to
// DATABASE, the most capable path.
package classify

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/saudata/txt2sql/internal/llm"
	"github.com/saudata/txt2sql/internal/textnorm"
	"github.com/saudata/txt2sql/pkg/models"
)

// minConfidence is the threshold below which the model's route is
// treated as ambiguous and the heuristic takes over.
const minConfidence = 0.5

// Classifier labels questions using the generation backend with a
// deterministic fallback.
type Classifier struct {
	gen           llm.Generator
	historyWindow int
}

// New creates a classifier.
func New(gen llm.Generator, historyWindow int) *Classifier {
	return &Classifier{gen: gen, historyWindow: historyWindow}
}

const systemPrompt = `Você roteia perguntas sobre um banco de dados de saúde hospitalar (SIH-RS).
Responda SOMENTE com JSON: {"route": "DATABASE"|"CONVERSATIONAL"|"SCHEMA", "confidence": 0.0-1.0}.
DATABASE: a pergunta pede dados, contagens, estatísticas ou listagens.
CONVERSATIONAL: a pergunta pede explicações, definições ou contexto.
SCHEMA: a pergunta é sobre tabelas, colunas ou estrutura do banco.`

// Classify labels one question. It never fails.
func (c *Classifier) Classify(ctx context.Context, question string, history []models.Turn) models.Classification {
	route, ok := c.modelRoute(ctx, question, history)
	if ok {
		return route
	}

	route, scored := heuristicRoute(question)
	if !scored {
		// Nothing matched: fail open to the most capable path.
		log.Debug().Str("question", question).Msg("Ambiguous classification, defaulting to DATABASE")
		return models.ClassificationDatabase
	}
	return route
}

// modelRoute asks the generation backend, tolerating malformed output.
func (c *Classifier) modelRoute(ctx context.Context, question string, history []models.Turn) (models.Classification, bool) {
	var b strings.Builder
	n := len(history)
	if c.historyWindow > 0 && n > c.historyWindow {
		n = c.historyWindow
	}
	// History arrives most-recent-first; render oldest-first.
	for i := n - 1; i >= 0; i-- {
		fmt.Fprintf(&b, "Pergunta anterior: %s\n", history[i].Question)
	}
	fmt.Fprintf(&b, "Pergunta: %s\n", question)

	raw, err := c.gen.Generate(ctx, llm.Request{System: systemPrompt, Prompt: b.String()})
	if err != nil {
		log.Warn().Err(err).Msg("Classification generation failed, using heuristic")
		return "", false
	}

	var parsed struct {
		Route      string  `json:"route"`
		Confidence float64 `json:"confidence"`
	}
	block, ok := extractJSONBlock(raw)
	if !ok || json.Unmarshal([]byte(block), &parsed) != nil {
		log.Warn().Str("raw", raw).Msg("Unparseable classification output, using heuristic")
		return "", false
	}

	route := models.Classification(strings.ToUpper(strings.TrimSpace(parsed.Route)))
	if !route.Valid() || parsed.Confidence < minConfidence {
		return "", false
	}
	return route, true
}

// extractJSONBlock returns s itself when it parses as JSON, otherwise
// the first balanced {...} block. Models often wrap JSON in prose.
func extractJSONBlock(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if json.Valid([]byte(s)) && strings.HasPrefix(s, "{") {
		return s, true
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	block := s[start : end+1]
	if !json.Valid([]byte(block)) {
		return "", false
	}
	return block, true
}

// Keyword lists ported from the original agent, pre-normalized
// (lowercase, accent-free).
var routeKeywords = map[models.Classification][]string{
	models.ClassificationDatabase: {
		"quantos", "quantas", "quantidade", "numero", "total", "media",
		"taxa", "proporcao", "top", "ranking", "mais comuns", "mais comum",
		"listar", "mostrar", "por cidade", "por ano", "por sexo",
		"distribuicao", "contagem", "contar", "soma", "mediana",
	},
	models.ClassificationConversational: {
		"o que e", "o que eh", "o que significa", "definicao", "explica",
		"explicar", "por que", "porque", "como funciona", "diferenca",
		"explique",
	},
	models.ClassificationSchema: {
		"tabelas", "colunas", "schema", "estrutura", "dicionario de dados",
		"quais campos", "mostrar estrutura", "descrever tabela", "describe",
	},
}

// heuristicRoute scores the question against the keyword lists. The
// boolean reports whether anything matched at all. Ties prefer
// SCHEMA over DATABASE over CONVERSATIONAL, matching the original.
func heuristicRoute(question string) (models.Classification, bool) {
	normalized := textnorm.Normalize(question)

	scores := map[models.Classification]int{}
	for route, keywords := range routeKeywords {
		for _, kw := range keywords {
			if strings.Contains(normalized, kw) {
				scores[route]++
			}
		}
	}

	order := []models.Classification{
		models.ClassificationSchema,
		models.ClassificationDatabase,
		models.ClassificationConversational,
	}
	best := models.ClassificationDatabase
	bestScore := 0
	for _, route := range order {
		if scores[route] > bestScore {
			best = route
			bestScore = scores[route]
		}
	}
	return best, bestScore > 0
}
