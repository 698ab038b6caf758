package openai

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/go-go-golems/banter/pkg/conversation"
	"github.com/go-go-golems/banter/pkg/inference/engine"
	"github.com/go-go-golems/banter/pkg/steps/ai/settings"
	"github.com/pkg/errors"
	go_openai "github.com/sashabaranov/go-openai"
)

// headerTransport adds fixed headers to every outgoing request.
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}
	return t.base.RoundTrip(req)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// MakeClient builds a go-openai client pointed at the configured base URL,
// sending HTTP-Referer and X-Title with every request and bounded by the
// configured timeout.
func MakeClient(s *settings.StepSettings) (*go_openai.Client, error) {
	if s.API == nil || s.API.APIKey == nil {
		return nil, settings.ErrMissingAPIKey
	}
	if s.API.BaseURL == nil {
		return nil, settings.ErrMissingBaseURL
	}

	base := http.DefaultTransport
	if s.Client != nil && s.Client.HTTPClient != nil && s.Client.HTTPClient.Transport != nil {
		base = s.Client.HTTPClient.Transport
	}

	headers := map[string]string{
		"HTTP-Referer": deref(s.API.Referer),
		"X-Title":      deref(s.API.Title),
	}
	if s.Client != nil {
		headers["User-Agent"] = deref(s.Client.UserAgent)
	}

	config := go_openai.DefaultConfig(*s.API.APIKey)
	config.BaseURL = *s.API.BaseURL
	config.HTTPClient = &http.Client{
		Transport: &headerTransport{base: base, headers: headers},
		Timeout:   s.GetTimeout(),
	}
	client := go_openai.NewClientWithConfig(config)
	return client, nil
}

func messageToOpenAIMessage(m conversation.Message) go_openai.ChatCompletionMessage {
	role := go_openai.ChatMessageRoleUser
	if m.Role == conversation.RoleAssistant {
		role = go_openai.ChatMessageRoleAssistant
	}
	return go_openai.ChatCompletionMessage{
		Role:    role,
		Content: m.Content,
	}
}

// MakeCompletionRequest maps the transcript one to one onto request messages,
// preserving order.
func MakeCompletionRequest(model string, messages []conversation.Message) go_openai.ChatCompletionRequest {
	msgs := make([]go_openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, messageToOpenAIMessage(m))
	}
	return go_openai.ChatCompletionRequest{
		Model:    model,
		Messages: msgs,
	}
}

// classifyError sorts a go-openai error into the exchange failure kinds.
func classifyError(err error) *engine.ExchangeError {
	var apiErr *go_openai.APIError
	if errors.As(err, &apiErr) {
		xe := engine.NewExchangeError(engine.FailureStatus, err)
		xe.StatusCode = apiErr.HTTPStatusCode
		return xe
	}

	var reqErr *go_openai.RequestError
	if errors.As(err, &reqErr) {
		xe := engine.NewExchangeError(engine.FailureStatus, err)
		xe.StatusCode = reqErr.HTTPStatusCode
		return xe
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return engine.NewExchangeError(engine.FailureTransport, err)
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) ||
		errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return engine.NewExchangeError(engine.FailureMalformed, err)
	}

	return engine.NewExchangeError(engine.FailureTransport, err)
}
