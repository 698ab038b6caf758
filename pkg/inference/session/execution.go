package session

import (
	"errors"
	"sync"

	"github.com/go-go-golems/banter/pkg/conversation"
)

var ErrExecutionHandleNil = errors.New("execution handle is nil")

// ExecutionHandle represents a single in-flight exchange started by Submit.
//
// It is waitable but not cancelable: once accepted, an exchange runs until
// the completion client returns or its HTTP timeout fires.
type ExecutionHandle struct {
	SessionID   string
	InferenceID string

	// Payload is the transcript snapshot sent to the completion client.
	Payload []conversation.Message

	done chan struct{}

	mu  sync.Mutex
	out conversation.Message
	err error
}

func newExecutionHandle(sessionID, inferenceID string, payload []conversation.Message) *ExecutionHandle {
	return &ExecutionHandle{
		SessionID:   sessionID,
		InferenceID: inferenceID,
		Payload:     payload,
		done:        make(chan struct{}),
	}
}

func (h *ExecutionHandle) setResult(out conversation.Message, err error) {
	h.mu.Lock()
	h.out = out
	h.err = err
	close(h.done)
	h.mu.Unlock()
}

// Wait blocks until the exchange has been fully applied to the session and
// returns the assistant message, or an error matching engine.ErrExchangeFailed.
func (h *ExecutionHandle) Wait() (conversation.Message, error) {
	if h == nil {
		return conversation.Message{}, ErrExecutionHandleNil
	}
	<-h.done
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.out, h.err
}

// Done is closed once Wait would no longer block.
func (h *ExecutionHandle) Done() <-chan struct{} {
	return h.done
}

// IsRunning reports whether the exchange appears to still be running.
func (h *ExecutionHandle) IsRunning() bool {
	if h == nil {
		return false
	}
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}
