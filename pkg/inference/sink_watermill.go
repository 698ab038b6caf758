package inference

import (
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-go-golems/banter/pkg/events"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// WatermillSink publishes events to a watermill Publisher so that several
// subscribers (TUI, event dump, tests) can observe one session.
type WatermillSink struct {
	publisher message.Publisher
	topic     string
}

func NewWatermillSink(publisher message.Publisher, topic string) *WatermillSink {
	return &WatermillSink{
		publisher: publisher,
		topic:     topic,
	}
}

// PublishEvent serializes the event to JSON and publishes it on the sink's topic.
func (w *WatermillSink) PublishEvent(event events.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal event to JSON")
		return errors.Wrap(err, "marshal event")
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)

	err = w.publisher.Publish(w.topic, msg)
	if err != nil {
		log.Error().Err(err).Str("topic", w.topic).Msg("Failed to publish event to watermill")
		return errors.Wrapf(err, "publish to %s", w.topic)
	}

	log.Trace().Str("topic", w.topic).Str("event_type", string(event.Type())).Msg("Published event to watermill")
	return nil
}

var _ EventSink = (*WatermillSink)(nil)
