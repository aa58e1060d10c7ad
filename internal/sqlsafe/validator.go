package sqlsafe

import (
	"strings"

	"github.com/saudata/txt2sql/pkg/models"
)

// writeKeywords are statement verbs that can mutate data or schema, plus
// the administrative commands the original agent denied. Presence of any
// of these outside a string or comment literal rejects the candidate.
var writeKeywords = map[string]struct{}{
	"insert": {}, "update": {}, "delete": {}, "drop": {}, "alter": {},
	"truncate": {}, "create": {}, "grant": {}, "revoke": {}, "call": {},
	"copy": {}, "merge": {}, "do": {}, "vacuum": {}, "analyze": {},
	"analyse": {}, "comment": {}, "attach": {}, "detach": {},
	"pragma": {}, "reindex": {}, "checkpoint": {}, "cluster": {},
	"refresh": {}, "lock": {}, "set": {}, "reset": {}, "discard": {},
	"listen": {}, "notify": {}, "load": {}, "install": {},
	"prepare": {}, "deallocate": {}, "execute": {},
	"begin": {}, "commit": {}, "rollback": {}, "savepoint": {},
}

// systemNamespaces are catalog/metadata names the pipeline must never
// touch, regardless of quoting. Enforced as defense in depth on top of
// the read-only execution context.
var systemNamespaces = map[string]struct{}{
	"information_schema": {},
	"pg_catalog":         {},
	"sqlite_master":      {},
	"sqlite_schema":      {},
	"sqlite_temp_master": {},
	"sqlite_temp_schema": {},
	"duckdb_tables":      {},
	"duckdb_columns":     {},
}

// Rejection reasons. These strings feed the regeneration prompt, so they
// state what the generator must fix.
const (
	ReasonEmpty         = "empty statement after removing comments"
	ReasonLexer         = "malformed SQL"
	ReasonMultiple      = "multiple statements are not permitted"
	ReasonWrite         = "write operation not permitted; only read-only SELECT queries are allowed"
	ReasonNotSelect     = "only SELECT (or WITH ... SELECT) statements are permitted"
	ReasonSystemCatalog = "references to system catalog tables are not permitted"
)

// Validate statically checks one SQL candidate. It never panics and never
// errs: every input maps to exactly one verdict, and re-validating an
// accepted statement yields the same verdict.
func Validate(sqlText string) models.Verdict {
	tokens, normalized, err := lex(sqlText)
	if err != nil {
		return reject(ReasonLexer + ": " + err.Error())
	}

	// Strip at most one trailing semicolon from the normalized form.
	normalized = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(normalized), ";"))
	if normalized == "" {
		return reject(ReasonEmpty)
	}

	statements := splitStatements(tokens)
	if len(statements) == 0 {
		return reject(ReasonEmpty)
	}
	if len(statements) > 1 {
		return reject(ReasonMultiple)
	}

	stmt := statements[0]

	for _, tok := range stmt {
		if tok.kind != tokenWord {
			continue
		}
		if _, denied := writeKeywords[tok.text]; denied {
			return reject(ReasonWrite)
		}
	}

	for _, tok := range stmt {
		if tok.kind != tokenWord && tok.kind != tokenQuotedID {
			continue
		}
		if _, denied := systemNamespaces[tok.text]; denied {
			return reject(ReasonSystemCatalog)
		}
		if strings.HasPrefix(tok.text, "pg_") {
			return reject(ReasonSystemCatalog)
		}
	}

	first, ok := firstWord(stmt)
	if !ok {
		return reject(ReasonEmpty)
	}
	switch first {
	case "select":
		// Accepted form.
	case "with":
		// CTE bodies sit inside parentheses; the outer statement must
		// still reach a top-level SELECT.
		if !hasTopLevelSelect(stmt) {
			return reject(ReasonNotSelect)
		}
	default:
		return reject(ReasonNotSelect)
	}

	return models.Verdict{Valid: true, Normalized: normalized}
}

func reject(reason string) models.Verdict {
	return models.Verdict{Valid: false, Reason: reason}
}

// splitStatements splits the token stream on top-level terminators and
// drops empty segments (a single trailing semicolon is harmless).
func splitStatements(tokens []token) [][]token {
	var (
		statements [][]token
		current    []token
	)
	for _, tok := range tokens {
		if tok.kind == tokenPunct && tok.text == ";" && tok.depth == 0 {
			if len(current) > 0 {
				statements = append(statements, current)
				current = nil
			}
			continue
		}
		current = append(current, tok)
	}
	if len(current) > 0 {
		statements = append(statements, current)
	}
	return statements
}

// firstWord returns the first unquoted word token of the statement.
func firstWord(stmt []token) (string, bool) {
	for _, tok := range stmt {
		if tok.kind == tokenWord {
			return tok.text, true
		}
		if tok.kind == tokenQuotedID {
			return "", false
		}
	}
	return "", false
}

// hasTopLevelSelect reports whether a depth-zero SELECT keyword appears
// after the leading WITH.
func hasTopLevelSelect(stmt []token) bool {
	for i, tok := range stmt {
		if i == 0 {
			continue
		}
		if tok.kind == tokenWord && tok.depth == 0 && tok.text == "select" {
			return true
		}
	}
	return false
}
