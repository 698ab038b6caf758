package engine

import (
	"context"

	"github.com/go-go-golems/banter/pkg/conversation"
)

// CompletionClient performs one request/response exchange with a remote
// chat completion endpoint.
//
// Model, endpoint, credentials and client headers are fixed when the client is
// constructed; Complete only receives the ordered conversation. Every failure is
// reported as an *ExchangeError.
type CompletionClient interface {
	Complete(ctx context.Context, messages []conversation.Message) (string, error)
}

// CompletionClientFunc adapts a plain function to CompletionClient.
type CompletionClientFunc func(ctx context.Context, messages []conversation.Message) (string, error)

func (f CompletionClientFunc) Complete(ctx context.Context, messages []conversation.Message) (string, error) {
	return f(ctx, messages)
}

var _ CompletionClient = CompletionClientFunc(nil)
