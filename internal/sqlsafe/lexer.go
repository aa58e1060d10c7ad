// Package sqlsafe implements the static safety gate for generated SQL.
// It is total (always produces a verdict) and default-deny: anything the
// lexer cannot account for is rejected rather than permitted.
package sqlsafe

import (
	"errors"
	"strings"
	"unicode"
)

// tokenKind distinguishes the token classes the checks care about.
type tokenKind int

const (
	tokenWord      tokenKind = iota // unquoted identifier or keyword
	tokenQuotedID                   // double-quoted identifier
	tokenPunct                      // single punctuation rune
)

// token is one lexical unit with the paren depth it occurred at.
type token struct {
	kind  tokenKind
	text  string // lowercased
	depth int
}

var (
	errUnterminatedString  = errors.New("unterminated string literal")
	errUnterminatedComment = errors.New("unterminated comment")
	errUnterminatedQuote   = errors.New("unterminated quoted identifier")
	errUnterminatedDollar  = errors.New("unterminated dollar-quoted string")
	errUnbalancedParens    = errors.New("unbalanced parentheses")
)

// lex tokenizes sqlText, understanding line comments, nesting block
// comments, single-quoted strings ('' escape), E-strings (backslash
// escapes), dollar-quoted strings, and double-quoted identifiers.
// It also produces the normalized text: comments stripped, whitespace
// outside literals collapsed, literals verbatim.
func lex(sqlText string) ([]token, string, error) {
	var (
		tokens     []token
		normalized strings.Builder
		depth      int
	)
	src := []rune(sqlText)
	i := 0
	n := len(src)

	// space writes a single separating space to the normalized output.
	space := func() {
		if l := normalized.Len(); l > 0 && !strings.HasSuffix(normalized.String(), " ") {
			normalized.WriteByte(' ')
		}
	}

	for i < n {
		c := src[i]

		switch {
		case unicode.IsSpace(c):
			space()
			i++

		case c == '-' && i+1 < n && src[i+1] == '-':
			for i < n && src[i] != '\n' {
				i++
			}
			space()

		case c == '/' && i+1 < n && src[i+1] == '*':
			// Block comments nest (PostgreSQL semantics).
			level := 1
			i += 2
			for i < n && level > 0 {
				if src[i] == '/' && i+1 < n && src[i+1] == '*' {
					level++
					i += 2
				} else if src[i] == '*' && i+1 < n && src[i+1] == '/' {
					level--
					i += 2
				} else {
					i++
				}
			}
			if level > 0 {
				return nil, "", errUnterminatedComment
			}
			space()

		case c == '\'':
			// Standard string: '' escapes a quote, backslash is literal.
			// E-strings additionally escape with backslash; detected via
			// the immediately preceding word token.
			escaping := false
			if len(tokens) > 0 {
				last := tokens[len(tokens)-1]
				if last.kind == tokenWord && last.text == "e" && endsWithWord(normalized.String(), "e") {
					escaping = true
				}
			}
			start := i
			i++
			closed := false
			for i < n {
				if escaping && src[i] == '\\' && i+1 < n {
					i += 2
					continue
				}
				if src[i] == '\'' {
					if i+1 < n && src[i+1] == '\'' {
						i += 2
						continue
					}
					i++
					closed = true
					break
				}
				i++
			}
			if !closed {
				return nil, "", errUnterminatedString
			}
			normalized.WriteString(string(src[start:i]))

		case c == '"':
			start := i
			i++
			closed := false
			for i < n {
				if src[i] == '"' {
					if i+1 < n && src[i+1] == '"' {
						i += 2
						continue
					}
					i++
					closed = true
					break
				}
				i++
			}
			if !closed {
				return nil, "", errUnterminatedQuote
			}
			raw := string(src[start:i])
			inner := strings.ReplaceAll(raw[1:len(raw)-1], `""`, `"`)
			tokens = append(tokens, token{kind: tokenQuotedID, text: strings.ToLower(inner), depth: depth})
			normalized.WriteString(raw)

		case c == '$':
			// Dollar quoting: $$...$$ or $tag$...$tag$. A lone $ (e.g.
			// positional parameter) falls through as punctuation.
			if tag, tagLen, ok := dollarTag(src[i:]); ok {
				closer := "$" + tag + "$"
				rest := string(src[i+tagLen:])
				end := strings.Index(rest, closer)
				if end < 0 {
					return nil, "", errUnterminatedDollar
				}
				total := tagLen + end + len(closer)
				normalized.WriteString(string(src[i : i+total]))
				i += total
			} else {
				tokens = append(tokens, token{kind: tokenPunct, text: "$", depth: depth})
				normalized.WriteByte('$')
				i++
			}

		case isWordRune(c):
			start := i
			for i < n && isWordRune(src[i]) {
				i++
			}
			word := string(src[start:i])
			tokens = append(tokens, token{kind: tokenWord, text: strings.ToLower(word), depth: depth})
			normalized.WriteString(word)

		default:
			switch c {
			case '(':
				depth++
			case ')':
				depth--
				if depth < 0 {
					return nil, "", errUnbalancedParens
				}
			}
			tokens = append(tokens, token{kind: tokenPunct, text: string(c), depth: depth})
			normalized.WriteRune(c)
			i++
		}
	}

	if depth != 0 {
		return nil, "", errUnbalancedParens
	}

	return tokens, strings.TrimSpace(normalized.String()), nil
}

// dollarTag reports whether src starts a dollar quote, returning the tag
// and the opener length.
func dollarTag(src []rune) (string, int, bool) {
	if len(src) < 2 || src[0] != '$' {
		return "", 0, false
	}
	j := 1
	for j < len(src) && (src[j] == '_' || unicode.IsLetter(src[j]) || (j > 1 && unicode.IsDigit(src[j]))) {
		j++
	}
	if j < len(src) && src[j] == '$' {
		return string(src[1:j]), j + 1, true
	}
	return "", 0, false
}

// isWordRune reports whether c continues an unquoted identifier/keyword.
func isWordRune(c rune) bool {
	return c == '_' || unicode.IsLetter(c) || unicode.IsDigit(c)
}

// endsWithWord reports whether s ends with the standalone word w,
// ignoring a trailing space.
func endsWithWord(s, w string) bool {
	s = strings.TrimRight(s, " ")
	if !strings.HasSuffix(strings.ToLower(s), w) {
		return false
	}
	rest := s[:len(s)-len(w)]
	if rest == "" {
		return true
	}
	return !isWordRune(rune(rest[len(rest)-1]))
}
