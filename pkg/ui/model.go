package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/banter/pkg/conversation"
	"github.com/go-go-golems/banter/pkg/inference/session"
	"github.com/rs/zerolog/log"
)

const (
	appTitle        = "Banter"
	emptyHeading    = "How can I help you today?"
	pendingText     = "Waiting for a reply..."
	scrollStep      = 8
	defaultToastTTL = 4 * time.Second
)

type submitDoneMsg struct {
	err error
}

type toastExpiredMsg struct {
	id int
}

type toast struct {
	id           int
	notification session.Notification
}

// Model is the full-screen chat view over a Backend. It holds no
// conversation state of its own: the transcript and request state are
// re-read from the backend whenever a session event arrives.
type Model struct {
	backend Backend
	ctx     context.Context

	keyMap   KeyMap
	help     help.Model
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	theme    Theme
	style    *Style
	renderer *Renderer
	plain    bool

	suggestions []Suggestion

	messages []conversation.Message
	state    session.RequestState
	spinning bool

	toast    *toast
	toastSeq int
	toastTTL time.Duration

	width  int
	height int
}

type ModelOption func(*Model)

func WithTheme(t Theme) ModelOption {
	return func(m *Model) {
		m.theme = t
	}
}

// WithContext sets the context passed to Submit. Cancelling it aborts the
// exchange in flight.
func WithContext(ctx context.Context) ModelOption {
	return func(m *Model) {
		m.ctx = ctx
	}
}

func WithSuggestions(suggestions []Suggestion) ModelOption {
	return func(m *Model) {
		m.suggestions = suggestions
	}
}

func WithToastDuration(d time.Duration) ModelOption {
	return func(m *Model) {
		m.toastTTL = d
	}
}

// WithPlainRendering disables markdown colors, for dumb terminals.
func WithPlainRendering(plain bool) ModelOption {
	return func(m *Model) {
		m.plain = plain
	}
}

func NewModel(backend Backend, options ...ModelOption) Model {
	input := textinput.New()
	input.Placeholder = "Message Banter..."
	input.Prompt = "❯ "
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		backend:     backend,
		ctx:         context.Background(),
		keyMap:      DefaultKeyMap,
		help:        help.New(),
		input:       input,
		viewport:    viewport.New(0, 0),
		spinner:     sp,
		theme:       ThemeDark,
		suggestions: DefaultSuggestions,
		toastTTL:    defaultToastTTL,
	}
	for _, o := range options {
		o(&m)
	}

	m.applyTheme()
	m.sync()

	return m
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keyMap.Quit):
			return m, tea.Quit

		case key.Matches(msg, m.keyMap.ToggleTheme):
			m.theme = m.theme.Toggle()
			m.applyTheme()
			m.refreshViewport()
			return m, nil

		case key.Matches(msg, m.keyMap.Help):
			m.help.ShowAll = !m.help.ShowAll
			m.resize()
			return m, nil

		case key.Matches(msg, m.keyMap.DismissToast):
			if m.toast != nil {
				m.toast = nil
				m.resize()
			}
			return m, nil

		case key.Matches(msg, m.keyMap.ScrollUp):
			m.viewport.LineUp(scrollStep)
			return m, nil

		case key.Matches(msg, m.keyMap.ScrollDown):
			m.viewport.LineDown(scrollStep)
			return m, nil

		case key.Matches(msg, m.keyMap.SubmitMessage):
			return m, m.submit(m.input.Value())

		case key.Matches(msg, m.keyMap.PickSuggestion) && m.suggestionsVisible() && m.input.Value() == "":
			idx := int(msg.String()[0] - '1')
			if idx >= 0 && idx < len(m.suggestions) {
				return m, m.submit(m.suggestions[idx].Prompt())
			}
			return m, nil
		}

		if m.state == session.StateIdle {
			m.input, cmd = m.input.Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		if m.renderer == nil || m.renderer.Width() != m.contentWidth() {
			m.applyTheme()
		}
		m.resize()

	case SessionEventMsg:
		log.Trace().Str("event_type", string(msg.Event.Type())).Msg("Session event")
		cmds = append(cmds, m.sync())

	case submitDoneMsg:
		if msg.err != nil {
			log.Debug().Err(msg.err).Msg("Submit rejected")
		}
		cmds = append(cmds, m.sync())

	case NotificationMsg:
		m.toastSeq++
		m.toast = &toast{id: m.toastSeq, notification: msg.Notification}
		m.resize()
		id := m.toastSeq
		cmds = append(cmds, tea.Tick(m.toastTTL, func(time.Time) tea.Msg {
			return toastExpiredMsg{id: id}
		}))

	case toastExpiredMsg:
		if m.toast != nil && m.toast.id == msg.id {
			m.toast = nil
			m.resize()
		}

	case spinner.TickMsg:
		if m.state != session.StatePending {
			m.spinning = false
			return m, nil
		}
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	default:
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// submit clears the input and hands text to the backend from a command, so
// that events published during Submit can be delivered back into Update.
func (m *Model) submit(text string) tea.Cmd {
	if m.state == session.StatePending || strings.TrimSpace(text) == "" {
		return nil
	}

	m.input.Reset()
	spinnerCmd := m.setState(session.StatePending)

	backend, ctx := m.backend, m.ctx
	submitCmd := func() tea.Msg {
		_, err := backend.Submit(ctx, text)
		return submitDoneMsg{err: err}
	}

	return tea.Batch(submitCmd, spinnerCmd)
}

// sync re-reads transcript and state from the backend.
func (m *Model) sync() tea.Cmd {
	m.messages = m.backend.Transcript()
	cmd := m.setState(m.backend.State())
	m.refreshViewport()
	return cmd
}

func (m *Model) setState(state session.RequestState) tea.Cmd {
	m.state = state
	if state == session.StatePending {
		m.input.Blur()
		return m.startSpinner()
	}
	return m.input.Focus()
}

func (m *Model) startSpinner() tea.Cmd {
	if m.spinning {
		return nil
	}
	m.spinning = true
	return m.spinner.Tick
}

func (m *Model) applyTheme() {
	m.style = StylesFor(m.theme)
	m.spinner.Style = m.style.Spinner
	m.renderer = NewRenderer(m.theme, m.contentWidth(), m.plain)
}

func (m Model) contentWidth() int {
	if m.width <= 4 {
		return defaultWrapWidth
	}
	return m.width - 4
}

func (m Model) suggestionsVisible() bool {
	return len(m.messages) == 0 && m.state == session.StateIdle && len(m.suggestions) > 0
}

func (m *Model) resize() {
	headerHeight := lipgloss.Height(m.headerView())
	footerHeight := lipgloss.Height(m.footerView())

	h := m.height - headerHeight - footerHeight
	if h < 0 {
		h = 0
	}
	m.viewport.Width = m.width
	m.viewport.Height = h
	m.input.Width = m.contentWidth() - lipgloss.Width(m.input.Prompt)

	m.refreshViewport()
}

func (m *Model) refreshViewport() {
	m.viewport.SetContent(m.conversationView())
	m.viewport.GotoBottom()
}

func (m Model) headerView() string {
	right := m.style.Muted.Render(string(m.theme))
	left := appTitle
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	return m.style.Header.Render(left + strings.Repeat(" ", gap) + right)
}

func (m Model) conversationView() string {
	if len(m.messages) == 0 {
		return m.emptyView()
	}
	return m.renderer.RenderTranscript(m.messages)
}

func (m Model) emptyView() string {
	var b strings.Builder
	b.WriteString(m.style.Heading.Render(emptyHeading))
	b.WriteString("\n")
	for i, s := range m.suggestions {
		b.WriteString(fmt.Sprintf("%s %s\n    %s\n",
			m.style.SuggestionKey.Render(fmt.Sprintf("[%d]", i+1)),
			s.Title,
			m.style.SuggestionText.Render(s.Description),
		))
	}
	return b.String()
}

func (m Model) inputView() string {
	if m.state == session.StatePending {
		return m.style.BlurredInput.Render(m.spinner.View() + " " + m.style.Muted.Render(pendingText))
	}
	return m.style.FocusedInput.Render(m.input.View())
}

func (m Model) toastView() string {
	if m.toast == nil {
		return ""
	}
	n := m.toast.notification
	return m.style.Toast.Render(m.style.ToastTitle.Render(n.Title) + "\n" + n.Description)
}

func (m Model) footerView() string {
	parts := []string{}
	if t := m.toastView(); t != "" {
		parts = append(parts, t)
	}
	parts = append(parts, m.inputView(), m.help.View(m.keyMap))
	return strings.Join(parts, "\n")
}

func (m Model) View() string {
	return m.headerView() + "\n" + m.viewport.View() + "\n" + m.footerView()
}

// Transcript returns what the model currently displays.
func (m Model) Transcript() []conversation.Message {
	return m.messages
}

func (m Model) State() session.RequestState {
	return m.state
}
