package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-go-golems/banter/pkg/conversation"
	"github.com/go-go-golems/banter/pkg/helpers"
	"github.com/go-go-golems/banter/pkg/inference/engine"
	"github.com/go-go-golems/banter/pkg/steps/ai/settings"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	Method  string
	Path    string
	Header  http.Header
	Body    map[string]interface{}
	RawBody []byte
}

type fakeEndpoint struct {
	mu       sync.Mutex
	requests []capturedRequest
	status   int
	body     string
}

func (f *fakeEndpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	var body map[string]interface{}
	_ = json.Unmarshal(raw, &body)

	f.mu.Lock()
	f.requests = append(f.requests, capturedRequest{
		Method:  r.Method,
		Path:    r.URL.Path,
		Header:  r.Header.Clone(),
		Body:    body,
		RawBody: raw,
	})
	status, respBody := f.status, f.body
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = io.WriteString(w, respBody)
}

func (f *fakeEndpoint) Requests() []capturedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]capturedRequest(nil), f.requests...)
}

func newTestSettings(t *testing.T, baseURL string) *settings.StepSettings {
	t.Helper()
	s, err := settings.NewStepSettings()
	require.NoError(t, err)
	s.API.APIKey = helpers.ToPtr("sk-test")
	s.API.BaseURL = helpers.ToPtr(baseURL)
	s.API.Referer = helpers.ToPtr("http://localhost:5173")
	return s
}

func newTestEngine(t *testing.T, status int, body string) (*OpenAIEngine, *fakeEndpoint) {
	t.Helper()
	endpoint := &fakeEndpoint{status: status, body: body}
	srv := httptest.NewServer(endpoint)
	t.Cleanup(srv.Close)

	e, err := NewOpenAIEngine(newTestSettings(t, srv.URL+"/api/v1"))
	require.NoError(t, err)
	return e, endpoint
}

const okBody = `{
  "id": "gen-1",
  "object": "chat.completion",
  "model": "deepseek/deepseek-r1-distill-llama-70b:free",
  "choices": [{"index": 0, "message": {"role": "assistant", "content": "Hello!"}, "finish_reason": "stop"}],
  "usage": {"prompt_tokens": 3, "completion_tokens": 2, "total_tokens": 5}
}`

func requireKind(t *testing.T, err error, kind engine.FailureKind) *engine.ExchangeError {
	t.Helper()
	require.Error(t, err)
	require.ErrorIs(t, err, engine.ErrExchangeFailed)
	var xe *engine.ExchangeError
	require.True(t, errors.As(err, &xe))
	require.Equal(t, kind, xe.Kind)
	return xe
}

func TestComplete_Success(t *testing.T) {
	e, endpoint := newTestEngine(t, http.StatusOK, okBody)

	reply, err := e.Complete(context.Background(), []conversation.Message{
		conversation.NewUserMessage("Hi"),
	})
	require.NoError(t, err)
	require.Equal(t, "Hello!", reply)

	reqs := endpoint.Requests()
	require.Len(t, reqs, 1)
	req := reqs[0]
	require.Equal(t, http.MethodPost, req.Method)
	require.Equal(t, "/api/v1/chat/completions", req.Path)
	require.Equal(t, "Bearer sk-test", req.Header.Get("Authorization"))
	require.Equal(t, "http://localhost:5173", req.Header.Get("HTTP-Referer"))
	require.Equal(t, "Banter Chat App", req.Header.Get("X-Title"))
	require.Contains(t, req.Header.Get("Content-Type"), "application/json")
	require.Equal(t, "deepseek/deepseek-r1-distill-llama-70b:free", req.Body["model"])
}

func TestComplete_SendsFullHistoryAsRoleContentPairs(t *testing.T) {
	e, endpoint := newTestEngine(t, http.StatusOK, okBody)

	history := []conversation.Message{
		conversation.NewUserMessage("Hi"),
		conversation.NewAssistantMessage("Hello!"),
		conversation.NewUserMessage("How are you?"),
	}
	_, err := e.Complete(context.Background(), history)
	require.NoError(t, err)

	var body struct {
		Messages []map[string]interface{} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(endpoint.Requests()[0].RawBody, &body))
	require.Len(t, body.Messages, 3)
	for i, m := range body.Messages {
		require.Len(t, m, 2, "message %d should only carry role and content", i)
		require.Equal(t, string(history[i].Role), m["role"])
		require.Equal(t, history[i].Content, m["content"])
	}
}

func TestComplete_NonSuccessStatus(t *testing.T) {
	e, _ := newTestEngine(t, http.StatusInternalServerError, `{"error":{"message":"upstream down","code":500}}`)

	_, err := e.Complete(context.Background(), []conversation.Message{conversation.NewUserMessage("Hi")})
	xe := requireKind(t, err, engine.FailureStatus)
	require.Equal(t, http.StatusInternalServerError, xe.StatusCode)
}

func TestComplete_NonSuccessStatusWithoutErrorBody(t *testing.T) {
	e, _ := newTestEngine(t, http.StatusTooManyRequests, `rate limited`)

	_, err := e.Complete(context.Background(), []conversation.Message{conversation.NewUserMessage("Hi")})
	xe := requireKind(t, err, engine.FailureStatus)
	require.Equal(t, http.StatusTooManyRequests, xe.StatusCode)
}

func TestComplete_MalformedBody(t *testing.T) {
	e, _ := newTestEngine(t, http.StatusOK, `{"choices": [`)

	_, err := e.Complete(context.Background(), []conversation.Message{conversation.NewUserMessage("Hi")})
	requireKind(t, err, engine.FailureMalformed)
}

func TestComplete_NoChoices(t *testing.T) {
	e, _ := newTestEngine(t, http.StatusOK, `{"id":"x","choices":[]}`)

	_, err := e.Complete(context.Background(), []conversation.Message{conversation.NewUserMessage("Hi")})
	requireKind(t, err, engine.FailureMissingContent)
}

func TestComplete_EmptyContent(t *testing.T) {
	e, _ := newTestEngine(t, http.StatusOK, `{"id":"x","choices":[{"index":0,"message":{"role":"assistant","content":""}}]}`)

	_, err := e.Complete(context.Background(), []conversation.Message{conversation.NewUserMessage("Hi")})
	requireKind(t, err, engine.FailureMissingContent)
}

func TestComplete_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	e, err := NewOpenAIEngine(newTestSettings(t, url+"/api/v1"))
	require.NoError(t, err)

	_, err = e.Complete(context.Background(), []conversation.Message{conversation.NewUserMessage("Hi")})
	requireKind(t, err, engine.FailureTransport)
}

func TestComplete_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	s := newTestSettings(t, srv.URL+"/api/v1")
	s.Client.SetTimeout(50 * time.Millisecond)
	e, err := NewOpenAIEngine(s)
	require.NoError(t, err)

	_, err = e.Complete(context.Background(), []conversation.Message{conversation.NewUserMessage("Hi")})
	requireKind(t, err, engine.FailureTransport)
}

func TestNewOpenAIEngine_RequiresAPIKey(t *testing.T) {
	s, err := settings.NewStepSettings()
	require.NoError(t, err)

	_, err = NewOpenAIEngine(s)
	require.ErrorIs(t, err, settings.ErrMissingAPIKey)

	_, err = NewOpenAIEngine(nil)
	require.Error(t, err)
}

func TestNewOpenAIEngine_CopiesSettings(t *testing.T) {
	s := newTestSettings(t, "http://localhost:1/api/v1")
	e, err := NewOpenAIEngine(s)
	require.NoError(t, err)

	*s.Chat.Engine = "changed/model"
	require.Equal(t, "deepseek/deepseek-r1-distill-llama-70b:free", e.Model())
}

func TestMakeCompletionRequest(t *testing.T) {
	req := MakeCompletionRequest("m", []conversation.Message{
		conversation.NewUserMessage("a"),
		conversation.NewAssistantMessage("b"),
	})
	require.Equal(t, "m", req.Model)
	require.Len(t, req.Messages, 2)
	require.Equal(t, "user", req.Messages[0].Role)
	require.Equal(t, "a", req.Messages[0].Content)
	require.Equal(t, "assistant", req.Messages[1].Role)
	require.Equal(t, "b", req.Messages[1].Content)
}

func TestTokenCounter(t *testing.T) {
	tc, err := NewTokenCounter("deepseek/deepseek-r1-distill-llama-70b:free")
	require.NoError(t, err)

	n, err := tc.Count("hello world")
	require.NoError(t, err)
	require.Greater(t, n, 0)

	total, err := tc.CountMessages([]conversation.Message{conversation.NewUserMessage("hello world")})
	require.NoError(t, err)
	require.Greater(t, total, n)

	empty, err := tc.CountMessages(nil)
	require.NoError(t, err)
	require.Equal(t, 3, empty)
}
