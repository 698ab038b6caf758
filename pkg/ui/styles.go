package ui

import "github.com/charmbracelet/lipgloss"

// Theme names double as glamour standard style names.
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

func (t Theme) Toggle() Theme {
	if t == ThemeLight {
		return ThemeDark
	}
	return ThemeLight
}

func ParseTheme(s string) Theme {
	if s == string(ThemeLight) {
		return ThemeLight
	}
	return ThemeDark
}

type Style struct {
	Header         lipgloss.Style
	Heading        lipgloss.Style
	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	UserMessage    lipgloss.Style
	FocusedInput   lipgloss.Style
	BlurredInput   lipgloss.Style
	Spinner        lipgloss.Style
	SuggestionKey  lipgloss.Style
	SuggestionText lipgloss.Style
	Muted          lipgloss.Style
	ToastTitle     lipgloss.Style
	Toast          lipgloss.Style
}

func StylesFor(t Theme) *Style {
	if t == ThemeLight {
		return LightStyles()
	}
	return DarkStyles()
}

func DarkStyles() *Style {
	text := lipgloss.Color("#f3f3ff")
	muted := lipgloss.Color("#9ca3d8")
	accent := lipgloss.Color("#01cdfe")
	mint := lipgloss.Color("#05ffa1")
	red := lipgloss.Color("#ff5f87")

	return newStyle(text, muted, accent, mint, red)
}

func LightStyles() *Style {
	text := lipgloss.Color("#1f2335")
	muted := lipgloss.Color("#6b7089")
	accent := lipgloss.Color("#005f87")
	mint := lipgloss.Color("#007a5a")
	red := lipgloss.Color("#d7005f")

	return newStyle(text, muted, accent, mint, red)
}

func newStyle(text, muted, accent, mint, red lipgloss.Color) *Style {
	return &Style{
		Header: lipgloss.NewStyle().
			Foreground(text).
			Bold(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(muted).
			Padding(0, 1),
		Heading:        lipgloss.NewStyle().Foreground(text).Bold(true).Padding(1, 0),
		UserLabel:      lipgloss.NewStyle().Foreground(mint).Bold(true),
		AssistantLabel: lipgloss.NewStyle().Foreground(accent).Bold(true),
		UserMessage:    lipgloss.NewStyle().Foreground(text).PaddingLeft(2),
		FocusedInput: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(accent),
		BlurredInput: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(muted),
		Spinner:        lipgloss.NewStyle().Foreground(mint),
		SuggestionKey:  lipgloss.NewStyle().Foreground(accent).Bold(true),
		SuggestionText: lipgloss.NewStyle().Foreground(muted),
		Muted:          lipgloss.NewStyle().Foreground(muted),
		ToastTitle:     lipgloss.NewStyle().Foreground(red).Bold(true),
		Toast: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(red).
			Padding(0, 1),
	}
}
