// Package window implements the navigation state machine over the active
// data source: which batch is shown, the row cursor inside it, and the
// horizontal column window. It never fetches; callers fetch the target
// batch and commit it with Apply.
package window

import (
	"fmt"

	"github.com/leapstack-labs/peak/pkg/core"
)

// Focus is the pane receiving input in edit mode.
type Focus int

// Focus values.
const (
	FocusTable Focus = iota
	FocusEditor
)

func (f Focus) String() string {
	if f == FocusEditor {
		return "editor"
	}
	return "table"
}

// DefaultVisibleColumns is the column window width.
const DefaultVisibleColumns = 10

// State is the navigation state. It is owned and mutated by the foreground
// loop only.
type State struct {
	batchSize      int
	visibleColumns int
	editable       bool

	schema     core.Schema
	total      int64
	totalKnown bool

	batchIndex int
	cursor     int
	colOffset  int
	focus      Focus

	batch  core.Batch
	loaded bool

	// batchLimit is the exclusive upper bound on valid batch indexes, or
	// -1 while unknown.
	batchLimit     int
	highestFetched int
}

// New returns a state with nothing bound. Editable states start with the
// editor focused.
func New(batchSize, visibleColumns int, editable bool) *State {
	if batchSize <= 0 {
		batchSize = 1
	}
	if visibleColumns <= 0 {
		visibleColumns = DefaultVisibleColumns
	}
	s := &State{
		batchSize:      batchSize,
		visibleColumns: visibleColumns,
		editable:       editable,
		batchLimit:     -1,
		highestFetched: -1,
	}
	if editable {
		s.focus = FocusEditor
	}
	return s
}

// Rebind switches to a new source and resets batch index, row cursor and
// column offset to 0. Focus is kept.
func (s *State) Rebind(schema core.Schema, total int64, known bool) {
	s.schema = schema
	s.total = total
	s.totalKnown = known
	s.batchIndex = 0
	s.cursor = 0
	s.colOffset = 0
	s.batch = core.Batch{Schema: schema}
	s.loaded = false
	s.highestFetched = -1
	s.batchLimit = -1
	if known {
		s.batchLimit = int((total + int64(s.batchSize) - 1) / int64(s.batchSize))
	}
}

func invalid(op string) error {
	return core.Errorf(core.InvalidNavigation, op, nil)
}

// NextBatchTarget returns the index a NextBatch transition would move to.
// When the end is unknown the target is speculative and the fetch decides.
func (s *State) NextBatchTarget() (int, error) {
	return s.BatchTarget(1)
}

// PrevBatchTarget returns the index a PrevBatch transition would move to.
func (s *State) PrevBatchTarget() (int, error) {
	return s.BatchTarget(-1)
}

// BatchTarget returns the index steps batches away from the current one,
// clamped to the first and the last known batch. It fails when the clamped
// index is the current one.
func (s *State) BatchTarget(steps int) (int, error) {
	target := s.batchIndex + steps
	if s.batchLimit >= 0 && target >= s.batchLimit {
		target = s.batchLimit - 1
	}
	if target < 0 {
		target = 0
	}
	if target == s.batchIndex {
		op := "next batch"
		if steps < 0 {
			op = "previous batch"
		}
		return s.batchIndex, invalid(op)
	}
	return target, nil
}

// Apply commits a fetched batch as the current one. The row cursor is kept
// and clamped into the new batch. An empty batch past index 0 marks the end
// of the source and is rejected, leaving the state unchanged.
func (s *State) Apply(index int, b core.Batch) error {
	if index < 0 {
		return invalid(fmt.Sprintf("apply batch %d", index))
	}
	if b.Empty() && index > 0 {
		if s.batchLimit < 0 || index < s.batchLimit {
			s.batchLimit = index
		}
		return invalid(fmt.Sprintf("apply batch %d", index))
	}

	s.batchIndex = index
	s.batch = b
	s.loaded = true
	if index > s.highestFetched {
		s.highestFetched = index
	}
	if !s.totalKnown && b.Len() < s.batchSize {
		s.batchLimit = index + 1
	}

	switch {
	case b.Empty():
		s.cursor = 0
	case s.cursor >= b.Len():
		s.cursor = b.Len() - 1
	}
	return nil
}

// NextRow moves the cursor down inside the current batch. It never crosses
// into the next batch.
func (s *State) NextRow() error {
	if s.cursor+1 >= s.batch.Len() {
		return invalid("next row")
	}
	s.cursor++
	return nil
}

// PrevRow moves the cursor up inside the current batch.
func (s *State) PrevRow() error {
	if s.cursor == 0 {
		return invalid("previous row")
	}
	s.cursor--
	return nil
}

func (s *State) maxColumnOffset() int {
	return max(0, len(s.schema)-s.visibleColumns)
}

// ScrollRight shifts the column window one column right.
func (s *State) ScrollRight() error {
	if s.colOffset >= s.maxColumnOffset() {
		return invalid("scroll right")
	}
	s.colOffset++
	return nil
}

// ScrollLeft shifts the column window one column left.
func (s *State) ScrollLeft() error {
	if s.colOffset == 0 {
		return invalid("scroll left")
	}
	s.colOffset--
	return nil
}

// SwitchFocus toggles between editor and table. It reports false and does
// nothing when the state is not editable.
func (s *State) SwitchFocus() bool {
	if !s.editable {
		return false
	}
	if s.focus == FocusEditor {
		s.focus = FocusTable
	} else {
		s.focus = FocusEditor
	}
	return true
}

// ColumnWindow returns the visible column range [start, end).
func (s *State) ColumnWindow() (start, end int) {
	start = s.colOffset
	end = min(s.colOffset+s.visibleColumns, len(s.schema))
	return start, max(start, end)
}

// BatchCount returns the number of batches. When the end of the source has
// not been seen it returns the speculative bound (highest fetched + 1) and
// false.
func (s *State) BatchCount() (int, bool) {
	if s.batchLimit >= 0 {
		return s.batchLimit, true
	}
	return s.highestFetched + 1, false
}

// RowRange returns the 1-based absolute row numbers of the first and last
// rows of the current batch, or 0, 0 when it is empty.
func (s *State) RowRange() (first, last int64) {
	if s.batch.Empty() {
		return 0, 0
	}
	base := int64(s.batchIndex) * int64(s.batchSize)
	return base + 1, base + int64(s.batch.Len())
}

// BatchIndex returns the current batch index.
func (s *State) BatchIndex() int { return s.batchIndex }

// Cursor returns the row cursor within the current batch.
func (s *State) Cursor() int { return s.cursor }

// ColumnOffset returns the first visible column.
func (s *State) ColumnOffset() int { return s.colOffset }

// Focus returns the focused pane.
func (s *State) Focus() Focus { return s.focus }

// Editable reports whether focus switching is enabled.
func (s *State) Editable() bool { return s.editable }

// Batch returns the current batch.
func (s *State) Batch() core.Batch { return s.batch }

// Loaded reports whether a batch has been applied since the last Rebind.
func (s *State) Loaded() bool { return s.loaded }

// Schema returns the bound schema.
func (s *State) Schema() core.Schema { return s.schema }

// Total returns the bound source's row count when known.
func (s *State) Total() (int64, bool) { return s.total, s.totalKnown }

// BatchSize returns the rows per batch.
func (s *State) BatchSize() int { return s.batchSize }

// VisibleColumns returns the column window width.
func (s *State) VisibleColumns() int { return s.visibleColumns }
