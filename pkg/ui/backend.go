package ui

import (
	"context"

	"github.com/go-go-golems/banter/pkg/conversation"
	"github.com/go-go-golems/banter/pkg/events"
	"github.com/go-go-golems/banter/pkg/inference/session"
)

// Backend is what the chat model needs from a session.
type Backend interface {
	Submit(ctx context.Context, userText string) (*session.ExecutionHandle, error)
	Transcript() []conversation.Message
	State() session.RequestState
}

var _ Backend = (*session.Session)(nil)

// SessionEventMsg tells the model that the session changed. The model
// re-reads the transcript and state from the backend.
type SessionEventMsg struct {
	Event events.Event
}

// SessionEventForwardFunc returns an event handler that forwards session
// events into the bubbletea program.
func SessionEventForwardFunc(s Sender) func(ev events.Event) error {
	return func(ev events.Event) error {
		s.Send(SessionEventMsg{Event: ev})
		return nil
	}
}
