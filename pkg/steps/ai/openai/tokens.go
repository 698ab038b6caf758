package openai

import (
	"github.com/go-go-golems/banter/pkg/conversation"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/tiktoken-go/tokenizer"
)

// TokenCounter gives an approximate token count for a transcript. Models
// unknown to tiktoken (most OpenRouter models) fall back to cl100k_base.
type TokenCounter struct {
	codec tokenizer.Codec
}

func NewTokenCounter(model string) (*TokenCounter, error) {
	codec, err := tokenizer.ForModel(tokenizer.Model(model))
	if err != nil {
		log.Trace().Str("model", model).Msg("No tokenizer for model, using cl100k_base")
		codec, err = tokenizer.Get(tokenizer.Cl100kBase)
		if err != nil {
			return nil, errors.Wrap(err, "could not load cl100k_base tokenizer")
		}
	}
	return &TokenCounter{codec: codec}, nil
}

func (tc *TokenCounter) Count(text string) (int, error) {
	ids, _, err := tc.codec.Encode(text)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// CountMessages follows the usual chat accounting: 3 tokens of framing per
// message plus the role and content, and 3 for the reply primer.
func (tc *TokenCounter) CountMessages(messages []conversation.Message) (int, error) {
	total := 3
	for _, m := range messages {
		n, err := tc.Count(m.Content)
		if err != nil {
			return 0, err
		}
		r, err := tc.Count(string(m.Role))
		if err != nil {
			return 0, err
		}
		total += 3 + n + r
	}
	return total, nil
}
