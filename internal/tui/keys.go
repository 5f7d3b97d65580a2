package tui

import (
	"github.com/charmbracelet/bubbles/key"

	"github.com/pavelanni/flashquiz/internal/i18n"
)

type keyMap struct {
	Start   key.Binding
	Restart key.Binding
	Listen  key.Binding
	Exit    key.Binding
}

func newKeyMap(tr *i18n.Translator) keyMap {
	return keyMap{
		Start: key.NewBinding(
			key.WithKeys("s", "enter"),
			key.WithHelp("s", tr.T("ButtonStart")),
		),
		Restart: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", tr.T("ButtonRestart")),
		),
		Listen: key.NewBinding(
			key.WithKeys("l"),
			key.WithHelp("l", tr.T("ButtonListen")),
			key.WithDisabled(),
		),
		Exit: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q", tr.T("ButtonExit")),
		),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Start, k.Restart, k.Listen, k.Exit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}
