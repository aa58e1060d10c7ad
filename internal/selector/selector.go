// Package selector narrows the catalog to the tables relevant to a
// question by lexical overlap scoring. Deterministic: equal scores fall
// back to catalog declaration order.
package selector

import (
	"errors"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/saudata/txt2sql/internal/catalog"
	"github.com/saudata/txt2sql/internal/textnorm"
)

// ErrNoRelevantTable is returned when a DATABASE question matches no
// table above the minimum score.
var ErrNoRelevantTable = errors.New("no relevant table for question")

// Weights for where a question token matched.
const (
	nameWeight        = 3.0
	columnWeight      = 2.0
	descriptionWeight = 1.0
)

// Selector scores catalog tables against question tokens.
type Selector struct {
	topK     int
	minScore float64
}

// New creates a selector returning at most topK tables scoring at least
// minScore.
func New(topK int, minScore float64) *Selector {
	if topK <= 0 {
		topK = 4
	}
	return &Selector{topK: topK, minScore: minScore}
}

type scoredTable struct {
	name  string
	score float64
	order int
}

// Select returns the most relevant table names in descending score
// order, ties broken by catalog declaration order.
func (s *Selector) Select(question string, cat *catalog.Catalog) ([]string, error) {
	tokens := textnorm.Tokenize(question)
	if len(tokens) == 0 {
		return nil, ErrNoRelevantTable
	}

	scored := make([]scoredTable, 0, cat.Len())
	for i, table := range cat.Tables() {
		score := scoreTable(tokens, table)
		if score >= s.minScore && score > 0 {
			scored = append(scored, scoredTable{name: table.Name, score: score, order: i})
		}
	}
	if len(scored) == 0 {
		return nil, ErrNoRelevantTable
	}

	sort.SliceStable(scored, func(a, b int) bool {
		if scored[a].score != scored[b].score {
			return scored[a].score > scored[b].score
		}
		return scored[a].order < scored[b].order
	})

	if len(scored) > s.topK {
		scored = scored[:s.topK]
	}

	names := make([]string, len(scored))
	for i, st := range scored {
		names[i] = st.name
	}

	log.Debug().Strs("tables", names).Msg("Tables selected")
	return names, nil
}

// scoreTable computes the weighted overlap between question tokens and
// the table's name, column names, and description tokens.
func scoreTable(questionTokens []string, table catalog.Table) float64 {
	nameTokens := tokenSet(textnorm.Tokenize(strings.ReplaceAll(table.Name, "_", " ")))

	columnTokens := make(map[string]struct{})
	for _, col := range table.Columns {
		for _, tok := range textnorm.Tokenize(strings.ReplaceAll(col.Name, "_", " ")) {
			columnTokens[tok] = struct{}{}
		}
	}

	descTokens := tokenSet(textnorm.Tokenize(table.Description))

	var score float64
	for _, tok := range questionTokens {
		switch {
		case matches(nameTokens, tok):
			score += nameWeight
		case matches(columnTokens, tok):
			score += columnWeight
		case matches(descTokens, tok):
			score += descriptionWeight
		}
	}
	return score
}

func tokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// matches checks the token and its crude singular against the set, so
// "mortes" in a question still hits a table doc mentioning "morte".
func matches(set map[string]struct{}, tok string) bool {
	if _, ok := set[tok]; ok {
		return true
	}
	if strings.HasSuffix(tok, "s") {
		if _, ok := set[tok[:len(tok)-1]]; ok {
			return true
		}
	}
	if _, ok := set[tok+"s"]; ok {
		return true
	}
	return false
}
