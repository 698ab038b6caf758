package openai

import (
	"context"

	"github.com/go-go-golems/banter/pkg/conversation"
	"github.com/go-go-golems/banter/pkg/inference/engine"
	"github.com/go-go-golems/banter/pkg/inference/session"
	"github.com/go-go-golems/banter/pkg/steps/ai/settings"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	go_openai "github.com/sashabaranov/go-openai"
)

// OpenAIEngine implements engine.CompletionClient against any
// OpenAI-compatible chat completions endpoint (OpenRouter by default).
type OpenAIEngine struct {
	settings *settings.StepSettings
	client   *go_openai.Client
	tokens   *TokenCounter
}

// NewOpenAIEngine validates and copies the settings; later changes to s do
// not affect the engine.
func NewOpenAIEngine(s *settings.StepSettings) (*OpenAIEngine, error) {
	if s == nil {
		return nil, errors.New("no step settings")
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	s = s.Clone()

	client, err := MakeClient(s)
	if err != nil {
		return nil, err
	}

	tokens, err := NewTokenCounter(*s.Chat.Engine)
	if err != nil {
		// token counts are only used for logging
		log.Warn().Err(err).Msg("Token counting disabled")
	}

	return &OpenAIEngine{
		settings: s,
		client:   client,
		tokens:   tokens,
	}, nil
}

func (e *OpenAIEngine) Model() string {
	return *e.settings.Chat.Engine
}

// Tokens returns the engine's token counter, or nil if none could be loaded.
func (e *OpenAIEngine) Tokens() *TokenCounter {
	return e.tokens
}

// Complete sends the whole transcript and returns choices[0].message.content.
func (e *OpenAIEngine) Complete(ctx context.Context, messages []conversation.Message) (string, error) {
	req := MakeCompletionRequest(e.Model(), messages)

	ev := log.Debug().
		Str("model", req.Model).
		Int("num_messages", len(req.Messages)).
		Str("session_id", session.SessionIDFromContext(ctx)).
		Str("inference_id", session.InferenceIDFromContext(ctx))
	if e.tokens != nil {
		if n, err := e.tokens.CountMessages(messages); err == nil {
			ev = ev.Int("approx_prompt_tokens", n)
		}
	}
	ev.Msg("OpenAI Complete started")

	resp, err := e.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", classifyError(err)
	}

	if len(resp.Choices) == 0 {
		return "", engine.NewExchangeError(engine.FailureMissingContent, errors.New("response has no choices"))
	}
	content := resp.Choices[0].Message.Content
	if content == "" {
		return "", engine.NewExchangeError(engine.FailureMissingContent, errors.New("response has empty content"))
	}

	log.Debug().
		Str("model", resp.Model).
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Str("finish_reason", string(resp.Choices[0].FinishReason)).
		Msg("OpenAI Complete finished")

	return content, nil
}

var _ engine.CompletionClient = (*OpenAIEngine)(nil)
