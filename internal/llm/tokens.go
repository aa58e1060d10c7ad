package llm

import (
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

var (
	codecOnce sync.Once
	codec     tokenizer.Codec
)

// CountTokens returns the BPE token count for text. If the codec cannot
// be loaded it falls back to a bytes/4 estimate, which overcounts short
// Portuguese text slightly but never underestimates by much.
func CountTokens(text string) int {
	codecOnce.Do(func() {
		c, err := tokenizer.Get(tokenizer.Cl100kBase)
		if err == nil {
			codec = c
		}
	})
	if codec == nil {
		return (len(text) + 3) / 4
	}
	ids, _, err := codec.Encode(text)
	if err != nil {
		return (len(text) + 3) / 4
	}
	return len(ids)
}

// FitBudget appends items in order until adding the next one would push
// the combined token count past budget. Used to bound prompt context.
func FitBudget(items []string, budget int) []string {
	if budget <= 0 {
		return nil
	}
	var out []string
	used := 0
	for _, item := range items {
		n := CountTokens(item)
		if used+n > budget && len(out) > 0 {
			break
		}
		out = append(out, item)
		used += n
	}
	return out
}
