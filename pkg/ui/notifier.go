package ui

import (
	"context"
	"fmt"
	"io"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/banter/pkg/inference/session"
	"github.com/rs/zerolog/log"
)

// Sender is the part of *tea.Program used to push messages into the UI.
type Sender interface {
	Send(msg tea.Msg)
}

// NotificationMsg carries a session notification into the bubbletea loop,
// where it is shown as a toast.
type NotificationMsg struct {
	Notification session.Notification
}

// ProgramNotifier forwards notifications to a running bubbletea program.
// The program is attached after construction because the session has to
// exist before the program does.
type ProgramNotifier struct {
	mu     sync.Mutex
	sender Sender
}

func NewProgramNotifier() *ProgramNotifier {
	return &ProgramNotifier{}
}

func (n *ProgramNotifier) SetSender(s Sender) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sender = s
}

func (n *ProgramNotifier) Notify(_ context.Context, notification session.Notification) {
	n.mu.Lock()
	s := n.sender
	n.mu.Unlock()

	if s == nil {
		log.Warn().Str("title", notification.Title).Msg(notification.Description)
		return
	}
	s.Send(NotificationMsg{Notification: notification})
}

// WriterNotifier prints notifications as a single line, for line mode.
type WriterNotifier struct {
	w     io.Writer
	style *Style
}

func NewWriterNotifier(w io.Writer, theme Theme) *WriterNotifier {
	return &WriterNotifier{w: w, style: StylesFor(theme)}
}

func (n *WriterNotifier) Notify(_ context.Context, notification session.Notification) {
	_, err := fmt.Fprintf(n.w, "%s %s\n", n.style.ToastTitle.Render(notification.Title+":"), notification.Description)
	if err != nil {
		log.Debug().Err(err).Msg("Could not write notification")
	}
}

var (
	_ session.Notifier = (*ProgramNotifier)(nil)
	_ session.Notifier = (*WriterNotifier)(nil)
)
