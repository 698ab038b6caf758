package events

import (
	"encoding/json"
	"fmt"

	"github.com/go-go-golems/banter/pkg/conversation"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type EventType string

const (
	// EventTypeMessageAppended is published after a turn was added to the transcript.
	EventTypeMessageAppended EventType = "message-appended"
	// EventTypeStateChanged is published when the session flips between idle and pending.
	EventTypeStateChanged EventType = "state-changed"
	// EventTypeExchangeFailed is published when an exchange ended without a reply.
	EventTypeExchangeFailed EventType = "exchange-failed"
)

type Event interface {
	Type() EventType
	Metadata() EventMetadata
	Payload() []byte
}

type EventMetadata struct {
	ID          uuid.UUID `json:"message_id"`
	SessionID   string    `json:"session_id,omitempty"`
	InferenceID string    `json:"inference_id,omitempty"`
}

func NewEventMetadata(sessionID, inferenceID string) EventMetadata {
	return EventMetadata{
		ID:          uuid.New(),
		SessionID:   sessionID,
		InferenceID: inferenceID,
	}
}

func (em EventMetadata) MarshalZerologObject(e *zerolog.Event) {
	e.Str("message_id", em.ID.String())
	if em.SessionID != "" {
		e.Str("session_id", em.SessionID)
	}
	if em.InferenceID != "" {
		e.Str("inference_id", em.InferenceID)
	}
}

type EventImpl struct {
	Type_     EventType     `json:"type"`
	Metadata_ EventMetadata `json:"meta"`

	// store payload if the event was deserialized from JSON (see NewEventFromJson), not further used
	payload []byte
}

func (e *EventImpl) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", string(e.Type_))
	ev.Object("meta", e.Metadata_)
}

func (e *EventImpl) Type() EventType {
	return e.Type_
}

func (e *EventImpl) Metadata() EventMetadata {
	return e.Metadata_
}

func (e *EventImpl) Payload() []byte {
	return e.payload
}

func (e *EventImpl) SetPayload(b []byte) {
	e.payload = b
}

var _ Event = &EventImpl{}

type EventMessageAppended struct {
	EventImpl
	Index   int                  `json:"index"`
	Message conversation.Message `json:"message"`
}

func NewMessageAppendedEvent(metadata EventMetadata, index int, msg conversation.Message) *EventMessageAppended {
	return &EventMessageAppended{
		EventImpl: EventImpl{
			Type_:     EventTypeMessageAppended,
			Metadata_: metadata,
		},
		Index:   index,
		Message: msg,
	}
}

var _ Event = &EventMessageAppended{}

type EventStateChanged struct {
	EventImpl
	State string `json:"state"`
}

func NewStateChangedEvent(metadata EventMetadata, state string) *EventStateChanged {
	return &EventStateChanged{
		EventImpl: EventImpl{
			Type_:     EventTypeStateChanged,
			Metadata_: metadata,
		},
		State: state,
	}
}

var _ Event = &EventStateChanged{}

// EventExchangeFailed only carries the failure kind. The underlying error is
// logged by the session and never shown to the user.
type EventExchangeFailed struct {
	EventImpl
	Kind string `json:"kind"`
}

func NewExchangeFailedEvent(metadata EventMetadata, kind string) *EventExchangeFailed {
	return &EventExchangeFailed{
		EventImpl: EventImpl{
			Type_:     EventTypeExchangeFailed,
			Metadata_: metadata,
		},
		Kind: kind,
	}
}

var _ Event = &EventExchangeFailed{}

func NewEventFromJson(b []byte) (Event, error) {
	var e *EventImpl
	err := json.Unmarshal(b, &e)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, fmt.Errorf("empty event payload")
	}

	e.payload = b

	switch e.Type_ {
	case EventTypeMessageAppended:
		ev, ok := ToTypedEvent[EventMessageAppended](e)
		if !ok {
			return nil, fmt.Errorf("could not decode %s event", e.Type_)
		}
		if !ev.Message.Role.IsValid() {
			return nil, fmt.Errorf("unknown role %q in %s event", ev.Message.Role, e.Type_)
		}
		ev.payload = b
		return ev, nil
	case EventTypeStateChanged:
		ev, ok := ToTypedEvent[EventStateChanged](e)
		if !ok {
			return nil, fmt.Errorf("could not decode %s event", e.Type_)
		}
		ev.payload = b
		return ev, nil
	case EventTypeExchangeFailed:
		ev, ok := ToTypedEvent[EventExchangeFailed](e)
		if !ok {
			return nil, fmt.Errorf("could not decode %s event", e.Type_)
		}
		ev.payload = b
		return ev, nil
	}

	return e, nil
}

func ToTypedEvent[T any](e Event) (*T, bool) {
	var ret *T
	err := json.Unmarshal(e.Payload(), &ret)
	if err != nil || ret == nil {
		return nil, false
	}

	return ret, true
}
