package events

import (
	"fmt"
	"io"
	"strings"

	"github.com/ThreeDotsLabs/watermill/message"
)

// StepPrinterFunc returns a handler printing one line per session event,
// prefixed with name when given.
func StepPrinterFunc(name string, w io.Writer) func(msg *message.Message) error {
	prefix := ""
	if name != "" {
		prefix = name + " "
	}

	return func(msg *message.Message) error {
		defer msg.Ack()

		e, err := NewEventFromJson(msg.Payload)
		if err != nil {
			return err
		}

		switch p_ := e.(type) {
		case *EventMessageAppended:
			content := p_.Message.Content
			if i := strings.IndexByte(content, '\n'); i >= 0 {
				content = content[:i] + " ..."
			}
			_, err = fmt.Fprintf(w, "%s[%d] %s: %s\n", prefix, p_.Index, p_.Message.Role, content)

		case *EventStateChanged:
			_, err = fmt.Fprintf(w, "%s-> %s\n", prefix, p_.State)

		case *EventExchangeFailed:
			_, err = fmt.Fprintf(w, "%s!! exchange failed (%s)\n", prefix, p_.Kind)

		default:
			_, err = fmt.Fprintf(w, "%s%s\n", prefix, e.Type())
		}

		return err
	}
}
