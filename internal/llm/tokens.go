package llm

import (
	"sync"

	"github.com/tiktoken-go/tokenizer"

	"github.com/sokinpui/gfix/internal/history"
)

var (
	codec     tokenizer.Codec
	codecOnce sync.Once
	codecErr  error
)

func getCodec() (tokenizer.Codec, error) {
	codecOnce.Do(func() {
		codec, codecErr = tokenizer.Get(tokenizer.Cl100kBase)
	})
	return codec, codecErr
}

// EstimateTokens returns an approximate token count for text. Gemini uses
// its own vocabulary; cl100k_base is close enough for logging and budgets.
func EstimateTokens(text string) (int, error) {
	c, err := getCodec()
	if err != nil {
		return 0, err
	}
	ids, _, err := c.Encode(text)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// EstimateTurns sums the estimate over every turn, treating errors as zero.
func EstimateTurns(turns []history.Turn) int {
	total := 0
	for _, t := range turns {
		n, err := EstimateTokens(t.Text)
		if err == nil {
			total += n
		}
	}
	return total
}
