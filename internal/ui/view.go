package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/leapstack-labs/peak/internal/app"
	"github.com/leapstack-labs/peak/internal/window"
	"github.com/leapstack-labs/peak/pkg/core"
)

var counts = message.NewPrinter(language.English)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	headerStyle   = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle     = lipgloss.NewStyle().Padding(0, 1)
	numberStyle   = cellStyle.Align(lipgloss.Right)
	cursorStyle   = lipgloss.NewStyle().Reverse(true)
	focusedBorder = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("12"))
	blurredBorder = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("8"))

	statusStyles = map[app.StatusLevel]lipgloss.Style{
		app.StatusInfo:    lipgloss.NewStyle(),
		app.StatusSuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		app.StatusWarning: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		app.StatusError:   lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
	}
)

// chrome is the number of lines around the table body: title, table
// borders and header, status and help.
const chrome = 7

// View implements tea.Model.
func (m *Model) View() string {
	if m.ctrl.Quitting() {
		return ""
	}
	snap := m.ctrl.Snapshot()

	var sections []string
	if snap.Mode == app.ModeEdit {
		sections = append(sections, m.editorView(snap))
	}
	sections = append(sections,
		titleStyle.Render(Title(snap)),
		m.tableView(snap),
	)
	if snap.Prompting {
		sections = append(sections, m.prompt.View())
	}
	sections = append(sections, m.statusView(snap), m.help.View(m.keys))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *Model) editorView(snap app.Snapshot) string {
	style := blurredBorder
	if snap.Focus == window.FocusEditor {
		style = focusedBorder
	}
	return style.Render(m.editor.View())
}

// Title renders the table caption: source, column window, row window,
// batch position and the preview limit note.
func Title(snap app.Snapshot) string {
	var b strings.Builder
	b.WriteString(snap.SourceLabel)

	if snap.ColumnCount > 0 {
		fmt.Fprintf(&b, " | Cols %d-%d/%d", snap.ColumnStart+1, snap.ColumnEnd, snap.ColumnCount)
	}

	total := "?"
	if snap.TotalKnown {
		total = counts.Sprintf("%d", snap.TotalRows)
	}
	if snap.LastRow > 0 {
		b.WriteString(counts.Sprintf(" | Rows %d-%d/%s", snap.FirstRow, snap.LastRow, total))
	} else {
		b.WriteString(" | Rows 0/" + total)
	}

	batches := fmt.Sprintf("%d+", snap.BatchCount)
	if snap.BatchCountKnown {
		batches = fmt.Sprintf("%d", snap.BatchCount)
	}
	fmt.Fprintf(&b, " | Batch %d/%s", snap.BatchIndex+1, batches)

	if snap.AppliedLimit > 0 {
		b.WriteString(counts.Sprintf(" (limited to %d for preview)", snap.AppliedLimit))
	}
	return b.String()
}

// rowWindow returns the slice of batch rows that fits the terminal, keeping
// the cursor in view.
func (m *Model) rowWindow(snap app.Snapshot) (start, end int) {
	n := len(snap.Rows)
	if m.height == 0 {
		return 0, n
	}
	avail := m.height - chrome
	if snap.Mode == app.ModeEdit {
		avail -= editorHeight + 2
	}
	if snap.Prompting {
		avail--
	}
	avail = max(avail, 1)
	if n <= avail {
		return 0, n
	}
	start = max(snap.Cursor-avail/2, 0)
	end = min(start+avail, n)
	return end - avail, end
}

func (m *Model) tableView(snap app.Snapshot) string {
	if len(snap.Header) == 0 {
		return mutedStyle.Render("(no columns)")
	}

	start, end := m.rowWindow(snap)
	cursor := snap.Cursor - start
	tableFocused := snap.Focus == window.FocusTable

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(mutedStyle).
		Headers(snap.Header...).
		Rows(snap.Rows[start:end]...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			style := cellStyle
			if col < len(snap.Kinds) && numeric(snap.Kinds[col]) {
				style = numberStyle
			}
			if row == cursor && tableFocused {
				return style.Inherit(cursorStyle)
			}
			return style
		})
	if m.width > 0 {
		t = t.Width(m.width)
	}

	if len(snap.Rows) == 0 {
		return t.String() + "\n" + mutedStyle.Render("(0 rows)")
	}
	return t.String()
}

func numeric(k core.Kind) bool {
	return k == core.KindInt || k == core.KindUint || k == core.KindFloat
}

func (m *Model) statusView(snap app.Snapshot) string {
	text := snap.Status
	if snap.Executing || snap.Exporting {
		text = m.spinner.View() + " " + text
	}
	if snap.Loading {
		text += mutedStyle.Render("  loading...")
	}
	return statusStyles[snap.StatusLevel].Render(text)
}
