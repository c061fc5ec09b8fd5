package tui

import (
	"github.com/charmbracelet/bubbles/key"

	"github.com/angeloszaimis/healthdash/internal/dashboard"
)

type keyMap struct {
	Refresh key.Binding
	Toggle  key.Binding
	Info    key.Binding
	Dismiss key.Binding
	Quit    key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Refresh: key.NewBinding(
			key.WithKeys(dashboard.KeyRefresh),
			key.WithHelp("ctrl+r", "refresh"),
		),
		Toggle: key.NewBinding(
			key.WithKeys(dashboard.KeyToggle),
			key.WithHelp("ctrl+p", "toggle auto-refresh"),
		),
		Info: key.NewBinding(
			key.WithKeys("i"),
			key.WithHelp("i", "system info"),
		),
		Dismiss: key.NewBinding(
			key.WithKeys("esc", "enter"),
			key.WithHelp("esc", "close dialog"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Refresh, k.Toggle, k.Info, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Refresh, k.Toggle},
		{k.Info, k.Dismiss, k.Quit},
	}
}
