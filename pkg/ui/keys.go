package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap lists the explorer's bindings. It implements help.KeyMap.
type keyMap struct {
	Next     key.Binding
	Prev     key.Binding
	Select   key.Binding
	Clear    key.Binding
	Play     key.Binding
	Back     key.Binding
	Forward  key.Binding
	Faster   key.Binding
	Slower   key.Binding
	Search   key.Binding
	Types    key.Binding
	Copy     key.Binding
	Detail   key.Binding
	Reset    key.Binding
	Help     key.Binding
	Quit     key.Binding
	Accept   key.Binding
	Cancel   key.Binding
	ScrollUp key.Binding
	ScrollDn key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Next:     key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next node")),
		Prev:     key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("⇧tab", "prev node")),
		Select:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
		Clear:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "clear")),
		Play:     key.NewBinding(key.WithKeys(" ", "space"), key.WithHelp("space", "play/pause")),
		Back:     key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←", "prev point")),
		Forward:  key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→", "next point")),
		Faster:   key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "faster")),
		Slower:   key.NewBinding(key.WithKeys("-", "_"), key.WithHelp("-", "slower")),
		Search:   key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		Types:    key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "cycle type")),
		Copy:     key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "copy json")),
		Detail:   key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "detail pane")),
		Reset:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reset")),
		Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Accept:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "apply")),
		Cancel:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		ScrollUp: key.NewBinding(key.WithKeys("pgup", "K"), key.WithHelp("pgup", "scroll detail")),
		ScrollDn: key.NewBinding(key.WithKeys("pgdown", "J"), key.WithHelp("pgdn", "scroll detail")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Select, k.Play, k.Forward, k.Search, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Next, k.Prev, k.Select, k.Clear, k.Copy},
		{k.Play, k.Back, k.Forward, k.Faster, k.Slower},
		{k.Search, k.Types, k.Detail, k.ScrollUp, k.ScrollDn},
		{k.Reset, k.Help, k.Quit},
	}
}
