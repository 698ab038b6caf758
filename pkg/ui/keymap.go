package ui

import "github.com/charmbracelet/bubbles/key"

type KeyMap struct {
	SubmitMessage  key.Binding
	PickSuggestion key.Binding
	ScrollUp       key.Binding
	ScrollDown     key.Binding
	ToggleTheme    key.Binding
	DismissToast   key.Binding
	Help           key.Binding
	Quit           key.Binding
}

var DefaultKeyMap = KeyMap{
	SubmitMessage: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "send"),
	),
	PickSuggestion: key.NewBinding(
		key.WithKeys("1", "2", "3", "4"),
		key.WithHelp("1-4", "suggestion"),
	),
	ScrollUp: key.NewBinding(
		key.WithKeys("pgup", "shift+up"),
		key.WithHelp("pgup", "scroll up"),
	),
	ScrollDown: key.NewBinding(
		key.WithKeys("pgdown", "shift+down"),
		key.WithHelp("pgdn", "scroll down"),
	),
	ToggleTheme: key.NewBinding(
		key.WithKeys("ctrl+t"),
		key.WithHelp("ctrl+t", "theme"),
	),
	DismissToast: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "dismiss"),
	),
	Help: key.NewBinding(
		key.WithKeys("f1"),
		key.WithHelp("f1", "help"),
	),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c", "ctrl+d"),
		key.WithHelp("ctrl+c", "quit"),
	),
}

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.SubmitMessage, k.PickSuggestion, k.ToggleTheme, k.Help, k.Quit}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.SubmitMessage, k.PickSuggestion},
		{k.ScrollUp, k.ScrollDown},
		{k.ToggleTheme, k.DismissToast},
		{k.Help, k.Quit},
	}
}
