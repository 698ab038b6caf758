package session

import (
	"context"

	"github.com/rs/zerolog/log"
)

type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityError Severity = "error"
)

// Notification is a short, user-facing message. It never carries the
// underlying error.
type Notification struct {
	Title       string   `json:"title" yaml:"title"`
	Description string   `json:"description" yaml:"description"`
	Severity    Severity `json:"severity" yaml:"severity"`
}

const (
	failureTitle       = "Error"
	failureDescription = "Failed to send message. Please try again."
)

// FailureNotification is what the user sees for every failed exchange,
// whatever the cause.
func FailureNotification() Notification {
	return Notification{
		Title:       failureTitle,
		Description: failureDescription,
		Severity:    SeverityError,
	}
}

// Notifier surfaces transient notifications. Notify is fire-and-forget and
// must not block for long.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

type NotifierFunc func(ctx context.Context, n Notification)

func (f NotifierFunc) Notify(ctx context.Context, n Notification) {
	f(ctx, n)
}

type logNotifier struct{}

// NewLogNotifier returns a Notifier writing notifications to the global
// zerolog logger.
func NewLogNotifier() Notifier {
	return logNotifier{}
}

func (logNotifier) Notify(_ context.Context, n Notification) {
	ev := log.Info()
	if n.Severity == SeverityError {
		ev = log.Warn()
	}
	ev.Str("title", n.Title).Str("severity", string(n.Severity)).Msg(n.Description)
}

var (
	_ Notifier = NotifierFunc(nil)
	_ Notifier = logNotifier{}
)
