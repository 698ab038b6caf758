package inference

import "github.com/go-go-golems/banter/pkg/events"

// EventSink represents a destination for session events.
// Implementations can publish events to different backends like watermill,
// logging systems, or a UI callback.
type EventSink interface {
	// PublishEvent publishes an event to the sink.
	// Returns an error if the event could not be published.
	PublishEvent(event events.Event) error
}

// EventSinkFunc adapts a plain function to EventSink.
type EventSinkFunc func(event events.Event) error

func (f EventSinkFunc) PublishEvent(event events.Event) error {
	return f(event)
}

var _ EventSink = EventSinkFunc(nil)
