// Package ui is the terminal front end. It maps key presses onto controller
// actions and renders the controller's snapshot; it never changes
// navigation state itself.
package ui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/leapstack-labs/peak/internal/app"
	"github.com/leapstack-labs/peak/internal/window"
)

const editorHeight = 5

// Model is the Bubble Tea model wrapping a controller.
type Model struct {
	ctrl *app.Controller
	keys KeyMap

	editor  textarea.Model
	prompt  textinput.Model
	spinner spinner.Model
	help    help.Model

	spinning bool
	width    int
	height   int
}

var _ tea.Model = (*Model)(nil)

// New creates the model. In edit mode the editor starts with the session
// text.
func New(c *app.Controller) *Model {
	editable := c.Mode() == app.ModeEdit

	ed := textarea.New()
	ed.Placeholder = "SELECT * FROM data"
	ed.ShowLineNumbers = false
	ed.SetHeight(editorHeight)
	ed.CharLimit = 0
	if s := c.Session(); s != nil {
		ed.SetValue(s.Text())
	}
	if c.Window().Focus() == window.FocusEditor {
		ed.Focus()
	}

	prompt := textinput.New()
	prompt.Prompt = "Save as: "

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return &Model{
		ctrl:    c,
		keys:    DefaultKeyMap(editable),
		editor:  ed,
		prompt:  prompt,
		spinner: sp,
		help:    help.New(),
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.ctrl.Init()
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.editor.SetWidth(max(msg.Width-2, 10))
		m.help.Width = msg.Width
		return m, nil

	case spinner.TickMsg:
		if !m.busy() {
			m.spinning = false
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m, m.withSpinner(m.handleKey(msg))
	}

	return m, m.withSpinner(m.ctrl.Update(msg))
}

func (m *Model) busy() bool {
	snap := m.ctrl.Snapshot()
	return snap.Executing || snap.Exporting
}

// withSpinner starts the spinner when background work begins.
func (m *Model) withSpinner(cmd tea.Cmd) tea.Cmd {
	if m.spinning || !m.busy() {
		return cmd
	}
	m.spinning = true
	return tea.Batch(cmd, m.spinner.Tick)
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if key.Matches(msg, m.keys.Quit) {
		return m.ctrl.Dispatch(app.Quit)
	}

	if m.ctrl.Snapshot().Prompting {
		return m.handlePrompt(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Cancel):
		return m.ctrl.Dispatch(app.Quit)
	case key.Matches(msg, m.keys.Focus):
		m.ctrl.Dispatch(app.SwitchFocus)
		return m.syncFocus()
	case key.Matches(msg, m.keys.Execute):
		m.ctrl.SetSQL(m.editor.Value())
		return m.ctrl.Dispatch(app.Execute)
	case key.Matches(msg, m.keys.Reset):
		cmd := m.ctrl.Dispatch(app.Reset)
		m.editor.SetValue(m.ctrl.Session().Text())
		return cmd
	case key.Matches(msg, m.keys.Export):
		m.ctrl.Dispatch(app.OpenExport)
		snap := m.ctrl.Snapshot()
		if !snap.Prompting {
			return nil
		}
		m.editor.Blur()
		m.prompt.SetValue(snap.ExportPath)
		m.prompt.CursorEnd()
		return m.prompt.Focus()
	case key.Matches(msg, m.keys.PageUp):
		return m.ctrl.Dispatch(app.PrevBatch)
	case key.Matches(msg, m.keys.PageDown):
		return m.ctrl.Dispatch(app.NextBatch)
	}

	if m.ctrl.Window().Focus() == window.FocusEditor {
		var cmd tea.Cmd
		m.editor, cmd = m.editor.Update(msg)
		return cmd
	}

	switch {
	case key.Matches(msg, m.keys.Up):
		return m.ctrl.Dispatch(app.PrevRow)
	case key.Matches(msg, m.keys.Down):
		return m.ctrl.Dispatch(app.NextRow)
	case key.Matches(msg, m.keys.Left):
		return m.ctrl.Dispatch(app.ScrollLeft)
	case key.Matches(msg, m.keys.Right):
		return m.ctrl.Dispatch(app.ScrollRight)
	}
	return nil
}

func (m *Model) handlePrompt(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.prompt.Blur()
		m.ctrl.Dispatch(app.CancelExport)
		return m.syncFocus()
	case key.Matches(msg, m.keys.Confirm):
		m.prompt.Blur()
		cmd := m.ctrl.ConfirmExport(m.prompt.Value())
		return tea.Batch(cmd, m.syncFocus())
	}
	var cmd tea.Cmd
	m.prompt, cmd = m.prompt.Update(msg)
	return cmd
}

// syncFocus gives the editor keyboard focus when the window state says so.
func (m *Model) syncFocus() tea.Cmd {
	if m.ctrl.Window().Focus() == window.FocusEditor {
		return m.editor.Focus()
	}
	m.editor.Blur()
	return nil
}

// Run drives c in a full-screen terminal program until the user quits.
func Run(ctx context.Context, c *app.Controller, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	p := tea.NewProgram(New(c), opts...)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("terminal UI failed: %w", err)
	}
	return nil
}
