package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Internações", "internacoes"},
		{"ÓBITOS por MUNICÍPIO", "obitos por municipio"},
		{"  já normalizado  ", "ja normalizado"},
		{"sem acentos", "sem acentos"},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Normalize(tc.in), "input: %q", tc.in)
	}
}

func TestTokenize(t *testing.T) {
	got := Tokenize("Quantas internações ocorreram em Porto Alegre no ano de 2025?")
	assert.Equal(t, []string{"quantas", "internacoes", "ocorreram", "porto", "alegre", "ano", "2025"}, got)
}

func TestTokenizeDropsStopWordsAndShortTokens(t *testing.T) {
	got := Tokenize("o que é a taxa de mortalidade?")
	assert.NotContains(t, got, "o")
	assert.NotContains(t, got, "de")
	assert.NotContains(t, got, "e")
	assert.Contains(t, got, "taxa")
	assert.Contains(t, got, "mortalidade")
}

func TestTokenizeEmpty(t *testing.T) {
	assert.Empty(t, Tokenize("   ?!  "))
}
