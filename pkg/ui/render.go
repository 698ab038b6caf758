package ui

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/go-go-golems/banter/pkg/conversation"
	"github.com/rs/zerolog/log"
)

const defaultWrapWidth = 80

// Renderer turns transcript messages into terminal text. Assistant replies
// are rendered as markdown, user text is shown as typed.
type Renderer struct {
	theme Theme
	plain bool
	width int
	style *Style
	term  *glamour.TermRenderer
}

func NewRenderer(theme Theme, width int, plain bool) *Renderer {
	if width <= 0 {
		width = defaultWrapWidth
	}
	r := &Renderer{
		theme: theme,
		plain: plain,
		width: width,
		style: StylesFor(theme),
	}

	glamourStyle := string(theme)
	if plain {
		glamourStyle = "notty"
	}
	tr, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(glamourStyle),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		log.Warn().Err(err).Str("style", glamourStyle).Msg("Could not create markdown renderer, falling back to plain text")
	} else {
		r.term = tr
	}

	return r
}

func (r *Renderer) Width() int {
	return r.width
}

// Markdown renders s, or returns it unchanged if rendering fails.
func (r *Renderer) Markdown(s string) string {
	if r.term == nil {
		return s
	}
	out, err := r.term.Render(s)
	if err != nil {
		log.Debug().Err(err).Msg("Markdown rendering failed")
		return s
	}
	return strings.Trim(out, "\n")
}

func (r *Renderer) RenderMessage(m conversation.Message) string {
	switch m.Role {
	case conversation.RoleAssistant:
		return r.style.AssistantLabel.Render("Banter") + "\n" + r.Markdown(m.Content)
	case conversation.RoleUser:
		return r.style.UserLabel.Render("You") + "\n" + r.style.UserMessage.Width(r.width).Render(m.Content)
	default:
		return m.View()
	}
}

func (r *Renderer) RenderTranscript(messages []conversation.Message) string {
	parts := make([]string, 0, len(messages))
	for _, m := range messages {
		parts = append(parts, r.RenderMessage(m))
	}
	return strings.Join(parts, "\n\n")
}
