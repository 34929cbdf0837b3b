package ui

import "github.com/charmbracelet/bubbles/key"

// KeyMap holds the terminal key bindings.
type KeyMap struct {
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Left     key.Binding
	Right    key.Binding

	Focus   key.Binding
	Execute key.Binding
	Reset   key.Binding
	Export  key.Binding
	Confirm key.Binding

	Cancel key.Binding
	Quit   key.Binding
}

// DefaultKeyMap returns the bindings for a view. Editing bindings are
// disabled when editable is false.
func DefaultKeyMap(editable bool) KeyMap {
	km := KeyMap{
		Up:       key.NewBinding(key.WithKeys("up"), key.WithHelp("↑", "row up")),
		Down:     key.NewBinding(key.WithKeys("down"), key.WithHelp("↓", "row down")),
		PageUp:   key.NewBinding(key.WithKeys("pgup"), key.WithHelp("pgup", "prev batch")),
		PageDown: key.NewBinding(key.WithKeys("pgdown"), key.WithHelp("pgdn", "next batch")),
		Left:     key.NewBinding(key.WithKeys("left"), key.WithHelp("←", "cols left")),
		Right:    key.NewBinding(key.WithKeys("right"), key.WithHelp("→", "cols right")),

		Focus:   key.NewBinding(key.WithKeys("f2"), key.WithHelp("F2", "focus")),
		Execute: key.NewBinding(key.WithKeys("ctrl+e"), key.WithHelp("ctrl+e", "execute")),
		Reset:   key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "reset")),
		Export:  key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "save")),
		Confirm: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "confirm")),

		Cancel: key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "quit")),
		Quit:   key.NewBinding(key.WithKeys("ctrl+q", "ctrl+c"), key.WithHelp("ctrl+q", "quit")),
	}

	for _, b := range []*key.Binding{&km.Focus, &km.Execute, &km.Reset, &km.Export, &km.Confirm} {
		b.SetEnabled(editable)
	}
	return km
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.PageDown, k.PageUp, k.Right, k.Focus, k.Execute, k.Export, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.PageUp, k.PageDown, k.Left, k.Right},
		{k.Focus, k.Execute, k.Reset, k.Export},
		{k.Cancel, k.Quit},
	}
}
