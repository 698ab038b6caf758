package session

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/go-go-golems/banter/pkg/conversation"
	"github.com/go-go-golems/banter/pkg/events"
	"github.com/go-go-golems/banter/pkg/inference"
	"github.com/go-go-golems/banter/pkg/inference/engine"
	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var (
	ErrSessionNil           = errors.New("session is nil")
	ErrClientNil            = errors.New("completion client is nil")
	ErrPromptEmpty          = errors.New("prompt is empty")
	ErrSessionAlreadyActive = errors.New("session already has an active exchange")
)

// Session is a single conversation with a remote completion endpoint.
//
// It owns:
// - a stable SessionID
// - the transcript (append-only)
// - the request state; at most one exchange is pending at a time
type Session struct {
	SessionID string

	client   engine.CompletionClient
	notifier Notifier
	sinks    []inference.EventSink

	mu         sync.Mutex
	transcript *conversation.Transcript
	state      RequestState
	active     *ExecutionHandle

	// publishMu is always taken before mu and held until the events of a
	// mutation are published. Sinks may take mu again to read the session.
	publishMu sync.Mutex
}

type Option func(*Session)

func WithSessionID(id string) Option {
	return func(s *Session) {
		if id != "" {
			s.SessionID = id
		}
	}
}

// WithEventSink adds a sink receiving every change event. Can be given
// several times.
func WithEventSink(sink inference.EventSink) Option {
	return func(s *Session) {
		if sink != nil {
			s.sinks = append(s.sinks, sink)
		}
	}
}

// NewSession constructs an idle Session with an empty transcript. A nil
// notifier falls back to logging notifications.
func NewSession(client engine.CompletionClient, notifier Notifier, options ...Option) (*Session, error) {
	if client == nil {
		return nil, ErrClientNil
	}
	if notifier == nil {
		notifier = NewLogNotifier()
	}

	s := &Session{
		SessionID:  uuid.NewString(),
		client:     client,
		notifier:   notifier,
		transcript: conversation.NewTranscript(),
		state:      StateIdle,
	}
	for _, o := range options {
		o(s)
	}

	return s, nil
}

// Transcript returns a copy of the conversation so far.
func (s *Session) Transcript() []conversation.Message {
	if s == nil {
		return []conversation.Message{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript.Messages()
}

func (s *Session) State() RequestState {
	if s == nil {
		return StateIdle
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsRunning reports whether the session currently has a pending exchange.
func (s *Session) IsRunning() bool {
	return s.State() == StatePending
}

// Submit records userText as a user turn and starts one exchange carrying the
// whole transcript.
//
// Whitespace-only text is rejected with ErrPromptEmpty and a submit while an
// exchange is pending with ErrSessionAlreadyActive. Neither rejection changes
// anything; callers are free to ignore them.
func (s *Session) Submit(ctx context.Context, userText string) (*ExecutionHandle, error) {
	if s == nil {
		return nil, ErrSessionNil
	}
	if strings.TrimSpace(userText) == "" {
		return nil, ErrPromptEmpty
	}
	if ctx == nil {
		ctx = context.Background()
	}

	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	s.mu.Lock()
	if s.state == StatePending {
		s.mu.Unlock()
		return nil, ErrSessionAlreadyActive
	}
	userMsg := conversation.NewUserMessage(userText)
	index := s.transcript.Append(userMsg)
	s.state = StatePending
	payload := s.transcript.Messages()
	inferenceID := uuid.NewString()
	handle := newExecutionHandle(s.SessionID, inferenceID, payload)
	s.active = handle
	s.mu.Unlock()

	meta := events.NewEventMetadata(s.SessionID, inferenceID)
	s.publish(events.NewMessageAppendedEvent(meta, index, userMsg))
	s.publish(events.NewStateChangedEvent(events.NewEventMetadata(s.SessionID, inferenceID), StatePending.String()))

	log.Debug().
		Str("session_id", s.SessionID).
		Str("inference_id", inferenceID).
		Int("messages", len(payload)).
		Msg("Starting exchange")

	go s.runExchange(WithSessionMeta(ctx, s.SessionID, inferenceID), handle)

	return handle, nil
}

func (s *Session) runExchange(ctx context.Context, handle *ExecutionHandle) {
	reply, err := s.complete(ctx, handle.Payload)
	if err == nil && reply == "" {
		err = engine.NewExchangeError(engine.FailureMissingContent, pkgerrors.New("empty reply"))
	}
	s.finish(ctx, handle, reply, err)
}

// complete calls the client and turns a panic into a failed exchange.
func (s *Session) complete(ctx context.Context, payload []conversation.Message) (reply string, err error) {
	defer func() {
		if r := recover(); r != nil {
			reply = ""
			err = engine.NewExchangeError(engine.FailureTransport, pkgerrors.Errorf("completion client panicked: %v", r))
		}
	}()

	reply, err = s.client.Complete(ctx, payload)
	if err != nil {
		return "", engine.AsExchangeError(err)
	}
	return reply, nil
}

func (s *Session) finish(ctx context.Context, handle *ExecutionHandle, reply string, err error) {
	var (
		assistantMsg conversation.Message
		index        int
	)

	s.publishMu.Lock()
	s.mu.Lock()
	if err == nil {
		assistantMsg = conversation.NewAssistantMessage(reply)
		index = s.transcript.Append(assistantMsg)
	}
	s.state = StateIdle
	if s.active == handle {
		s.active = nil
	}
	s.mu.Unlock()

	if err == nil {
		s.publish(events.NewMessageAppendedEvent(events.NewEventMetadata(s.SessionID, handle.InferenceID), index, assistantMsg))
	} else {
		xe := engine.AsExchangeError(err)
		log.Error().
			Err(xe.Err).
			Str("session_id", s.SessionID).
			Str("inference_id", handle.InferenceID).
			Str("kind", string(xe.Kind)).
			Int("status", xe.StatusCode).
			Msg("Exchange failed")
		s.publish(events.NewExchangeFailedEvent(events.NewEventMetadata(s.SessionID, handle.InferenceID), string(xe.Kind)))
		err = xe
	}
	s.publish(events.NewStateChangedEvent(events.NewEventMetadata(s.SessionID, handle.InferenceID), StateIdle.String()))
	s.publishMu.Unlock()

	if err != nil {
		s.notify(context.WithoutCancel(ctx), FailureNotification())
	}

	handle.setResult(assistantMsg, err)
}

func (s *Session) publish(ev events.Event) {
	for _, sink := range s.sinks {
		if err := sink.PublishEvent(ev); err != nil {
			log.Warn().Err(err).Str("event_type", string(ev.Type())).Msg("Failed to publish session event")
		}
	}
}

func (s *Session) notify(ctx context.Context, n Notification) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Notifier panicked")
		}
	}()
	s.notifier.Notify(ctx, n)
}
