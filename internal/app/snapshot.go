package app

import (
	"github.com/leapstack-labs/peak/internal/window"
	"github.com/leapstack-labs/peak/pkg/core"
)

// StatusLevel grades the status line.
type StatusLevel int

// Status levels.
const (
	StatusInfo StatusLevel = iota
	StatusSuccess
	StatusWarning
	StatusError
)

// Snapshot is the read-only view of the controller handed to the renderer
// once per frame.
type Snapshot struct {
	Mode        Mode
	SourceLabel string
	Filtered    bool

	Header      []string
	Kinds       []core.Kind
	Rows        [][]string
	Cursor      int
	ColumnStart int
	ColumnEnd   int
	ColumnCount int

	BatchIndex      int
	BatchCount      int
	BatchCountKnown bool
	FirstRow        int64
	LastRow         int64
	TotalRows       int64
	TotalKnown      bool
	Loading         bool

	Focus       window.Focus
	Status      string
	StatusLevel StatusLevel

	SQL          string
	Executing    bool
	AppliedLimit int
	Prompting    bool
	ExportPath   string
	Exporting    bool
}

// Snapshot renders the current state.
func (c *Controller) Snapshot() Snapshot {
	w := c.win
	schema := w.Schema()
	start, end := w.ColumnWindow()

	snap := Snapshot{
		Mode:        c.mode,
		SourceLabel: c.active.Label(),
		Filtered:    c.active != c.file,
		Cursor:      w.Cursor(),
		ColumnStart: start,
		ColumnEnd:   end,
		ColumnCount: schema.Len(),
		BatchIndex:  w.BatchIndex(),
		Loading:     c.pending,
		Focus:       w.Focus(),
		Status:      c.status,
		StatusLevel: c.level,
		Prompting:   c.prompting,
		ExportPath:  c.exportPath,
		Exporting:   c.exporting,
	}
	snap.BatchCount, snap.BatchCountKnown = w.BatchCount()
	snap.FirstRow, snap.LastRow = w.RowRange()
	snap.TotalRows, snap.TotalKnown = w.Total()

	visible := schema[start:end]
	snap.Header = visible.Names()
	snap.Kinds = make([]core.Kind, len(visible))
	for i, f := range visible {
		snap.Kinds[i] = f.Kind
	}

	rows := w.Batch().Rows
	snap.Rows = make([][]string, len(rows))
	for i, r := range rows {
		snap.Rows[i] = core.FormatRow(visible, r[start:end])
	}

	if c.session != nil {
		snap.SQL = c.session.Text()
		snap.Executing = c.session.Executing()
		if n, ok := c.session.AppliedLimit(); ok && snap.Filtered {
			snap.AppliedLimit = n
		}
	}
	return snap
}
