package app

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/peak/internal/codec"
	"github.com/leapstack-labs/peak/internal/history"
	"github.com/leapstack-labs/peak/internal/source"
	"github.com/leapstack-labs/peak/internal/testutil"
	"github.com/leapstack-labs/peak/internal/window"
	"github.com/leapstack-labs/peak/pkg/adapters/duckdb"
	"github.com/leapstack-labs/peak/pkg/core"
)

type stubRunner struct {
	result  func() core.Result
	err     error
	release chan struct{}

	mu    sync.Mutex
	calls []string
}

func (r *stubRunner) Execute(ctx context.Context, sql string) (core.Result, error) {
	r.mu.Lock()
	r.calls = append(r.calls, sql)
	r.mu.Unlock()

	if r.release != nil {
		select {
		case <-r.release:
		case <-ctx.Done():
		}
	}
	if r.err != nil {
		return nil, r.err
	}
	return r.result(), nil
}

type memRecorder struct {
	entries []history.Entry
}

func (m *memRecorder) Record(_ context.Context, e history.Entry) (history.Entry, error) {
	m.entries = append(m.entries, e)
	return e, nil
}

// drive runs cmd and every command produced by applying its messages.
func drive(t *testing.T, c *Controller, cmd tea.Cmd) {
	t.Helper()
	queue := []tea.Cmd{cmd}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if next == nil {
			continue
		}
		switch msg := next().(type) {
		case tea.BatchMsg:
			queue = append(queue, msg...)
		default:
			queue = append(queue, c.Update(msg))
		}
	}
}

func newController(t *testing.T, rows, batchSize int, opts Options) *Controller {
	t.Helper()
	path := testutil.WriteOrdersParquet(t, t.TempDir(), rows, 0)
	file, err := source.OpenFile(path, batchSize, testutil.NewTestLogger(t))
	require.NoError(t, err)

	opts.Logger = testutil.NewTestLogger(t)
	c, err := New(context.Background(), file, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	drive(t, c, c.Init())
	return c
}

func intRunner(n int) *stubRunner {
	return &stubRunner{result: func() core.Result { return testutil.IntResult(n) }}
}

func TestNew_EditModeRequiresRunner(t *testing.T) {
	path := testutil.WriteOrdersParquet(t, t.TempDir(), 10, 0)
	file, err := source.OpenFile(path, 5, nil)
	require.NoError(t, err)
	defer func() { _ = file.Close() }()

	_, err = New(context.Background(), file, Options{Mode: ModeEdit})
	assert.Error(t, err)
}

func TestController_SnapshotBeforeInit(t *testing.T) {
	path := testutil.WriteOrdersParquet(t, t.TempDir(), 30, 0)
	file, err := source.OpenFile(path, 10, nil)
	require.NoError(t, err)

	c, err := New(context.Background(), file, Options{VisibleColumns: 2})
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	snap := c.Snapshot()
	assert.Equal(t, path, snap.SourceLabel)
	assert.False(t, snap.Filtered)
	assert.Equal(t, []string{"id", "name"}, snap.Header)
	assert.Empty(t, snap.Rows)
	assert.Equal(t, int64(30), snap.TotalRows)

	drive(t, c, c.Init())
	assert.Len(t, c.Snapshot().Rows, 10)
}

func TestController_PageDownScenario(t *testing.T) {
	c := newController(t, 1000, 200, Options{})

	for i := 0; i < 3; i++ {
		cmd := c.Dispatch(NextBatch)
		require.NotNil(t, cmd, "page %d", i)
		drive(t, c, cmd)
	}

	snap := c.Snapshot()
	assert.Equal(t, 3, snap.BatchIndex)
	assert.Equal(t, int64(601), snap.FirstRow)
	assert.Equal(t, int64(800), snap.LastRow)
	assert.Equal(t, 5, snap.BatchCount)
	assert.True(t, snap.BatchCountKnown)
	assert.Equal(t, int64(1000), snap.TotalRows)
	assert.Equal(t, "600", snap.Rows[0][0])
}

func TestController_PageDownClampsAtLastBatch(t *testing.T) {
	c := newController(t, 400, 200, Options{})

	drive(t, c, c.Dispatch(NextBatch))
	assert.Equal(t, 1, c.Window().BatchIndex())

	for i := 0; i < 2; i++ {
		assert.Nil(t, c.Dispatch(NextBatch), "no fetch past the last batch")
	}
	assert.Equal(t, 1, c.Window().BatchIndex())

	drive(t, c, c.Dispatch(PrevBatch))
	assert.Equal(t, 0, c.Window().BatchIndex())
	assert.Nil(t, c.Dispatch(PrevBatch))
}

func TestController_OneFetchInFlight(t *testing.T) {
	c := newController(t, 1000, 200, Options{})

	first := c.Dispatch(NextBatch)
	require.NotNil(t, first)
	assert.Nil(t, c.Dispatch(NextBatch))
	assert.Equal(t, StatusLoading, c.Snapshot().Status)
	assert.True(t, c.Snapshot().Loading)

	// The queued press is fetched once the first batch lands.
	drive(t, c, first)
	snap := c.Snapshot()
	assert.Equal(t, 2, snap.BatchIndex)
	assert.Equal(t, StatusReadyPeak, snap.Status)
	assert.False(t, snap.Loading)
}

func TestController_QueuedNavigation(t *testing.T) {
	tests := []struct {
		name      string
		presses   []Action
		wantIndex int
	}{
		{"presses accumulate", []Action{NextBatch, NextBatch, NextBatch}, 3},
		{"clamps at last batch", []Action{NextBatch, NextBatch, NextBatch, NextBatch, NextBatch, NextBatch}, 4},
		{"opposite presses cancel", []Action{NextBatch, NextBatch, PrevBatch}, 1},
		{"back past the start", []Action{NextBatch, PrevBatch, PrevBatch, PrevBatch}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newController(t, 1000, 200, Options{})

			first := c.Dispatch(tt.presses[0])
			require.NotNil(t, first)
			for _, a := range tt.presses[1:] {
				assert.Nil(t, c.Dispatch(a), "one fetch in flight")
			}

			drive(t, c, first)
			snap := c.Snapshot()
			assert.Equal(t, tt.wantIndex, snap.BatchIndex)
			assert.False(t, snap.Loading)
			assert.Equal(t, StatusReadyPeak, snap.Status)
		})
	}
}

func TestController_RowAndColumnNavigation(t *testing.T) {
	c := newController(t, 30, 10, Options{VisibleColumns: 2})

	snap := c.Snapshot()
	assert.Equal(t, []string{"id", "name"}, snap.Header)
	assert.Equal(t, []string{"0", "item-0000"}, snap.Rows[0])
	assert.Equal(t, 5, snap.ColumnCount)

	for i := 0; i < 5; i++ {
		c.Dispatch(ScrollRight)
	}
	snap = c.Snapshot()
	assert.Equal(t, 3, snap.ColumnStart)
	assert.Equal(t, []string{"price", "created_at"}, snap.Header)
	assert.Equal(t, "NULL", snap.Rows[0][0])
	assert.Equal(t, "2024-01-01 00:00:00", snap.Rows[0][1])

	for i := 0; i < 15; i++ {
		c.Dispatch(NextRow)
	}
	assert.Equal(t, 9, c.Snapshot().Cursor, "rows never cross into the next batch")
	assert.Equal(t, 0, c.Snapshot().BatchIndex)

	c.Dispatch(PrevRow)
	assert.Equal(t, 8, c.Snapshot().Cursor)
}

func TestController_PeakModeIgnoresEditActions(t *testing.T) {
	c := newController(t, 10, 5, Options{})

	for _, a := range []Action{SwitchFocus, Execute, Reset, OpenExport, CancelExport} {
		assert.Nil(t, c.Dispatch(a), a.String())
	}
	snap := c.Snapshot()
	assert.Equal(t, window.FocusTable, snap.Focus)
	assert.Equal(t, StatusReadyPeak, snap.Status)
	assert.Nil(t, c.Session())
	assert.Nil(t, c.ConfirmExport("out.parquet"))
}

func TestController_Quit(t *testing.T) {
	c := newController(t, 10, 5, Options{})
	assert.NotNil(t, c.Dispatch(Quit))
	assert.True(t, c.Quitting())
}

func TestController_EditStartsWithDefaultSQL(t *testing.T) {
	c := newController(t, 10, 5, Options{Mode: ModeEdit, Runner: intRunner(1)})

	snap := c.Snapshot()
	assert.Equal(t, DefaultSQL, snap.SQL)
	assert.Equal(t, window.FocusEditor, snap.Focus)
	assert.Equal(t, StatusReadyEdit, snap.Status)

	c.Dispatch(SwitchFocus)
	assert.Equal(t, window.FocusTable, c.Snapshot().Focus)
}

func TestController_ExecuteRebindsToResult(t *testing.T) {
	runner := intRunner(250)
	c := newController(t, 1000, 100, Options{Mode: ModeEdit, Runner: runner})

	drive(t, c, c.Dispatch(NextBatch))
	c.SetSQL("SELECT id AS n FROM data")

	cmd := c.Dispatch(Execute)
	require.NotNil(t, cmd)
	assert.Equal(t, StatusExecuting, c.Snapshot().Status)
	assert.True(t, c.Snapshot().Executing)

	drive(t, c, cmd)

	assert.Equal(t, []string{"SELECT id AS n FROM data\nLIMIT 1000"}, runner.calls)
	assert.Equal(t, source.KindQuery, c.Active().Kind())

	snap := c.Snapshot()
	assert.True(t, snap.Filtered)
	assert.False(t, snap.Executing)
	assert.Equal(t, 0, snap.BatchIndex, "rebind resets navigation")
	assert.Equal(t, int64(250), snap.TotalRows)
	assert.Equal(t, 3, snap.BatchCount)
	assert.Equal(t, 1000, snap.AppliedLimit)
	assert.Equal(t, []string{"n"}, snap.Header)
	assert.Equal(t, StatusSuccess, snap.StatusLevel)
	assert.Contains(t, snap.Status, StatusExecuted)
	assert.Contains(t, snap.Status, "limited to 1000 for preview")
}

func TestController_ExplicitLimitNotCapped(t *testing.T) {
	runner := intRunner(5)
	c := newController(t, 10, 5, Options{Mode: ModeEdit, Runner: runner})

	drive(t, c, c.Dispatch(Execute))

	assert.Equal(t, []string{DefaultSQL}, runner.calls)
	assert.Equal(t, 0, c.Snapshot().AppliedLimit)
	assert.NotContains(t, c.Snapshot().Status, "limited")
}

func TestController_ExecuteWhileRunning(t *testing.T) {
	runner := intRunner(5)
	c := newController(t, 10, 5, Options{Mode: ModeEdit, Runner: runner})

	first := c.Dispatch(Execute)
	require.NotNil(t, first)

	assert.Nil(t, c.Dispatch(Execute))
	assert.Equal(t, StatusQueryActive, c.Snapshot().Status)

	drive(t, c, first)
	assert.Len(t, runner.calls, 1)
	assert.Equal(t, source.KindQuery, c.Active().Kind())
}

func TestController_EmptySQL(t *testing.T) {
	c := newController(t, 10, 5, Options{Mode: ModeEdit, Runner: intRunner(1)})
	c.SetSQL("   \n")

	assert.Nil(t, c.Dispatch(Execute))
	snap := c.Snapshot()
	assert.Equal(t, StatusError, snap.StatusLevel)
	assert.Contains(t, snap.Status, "SQL query is empty")
}

func TestController_QueryFailureKeepsActiveSource(t *testing.T) {
	runner := &stubRunner{err: errors.New("Binder Error: column nope not found")}
	recorder := &memRecorder{}
	c := newController(t, 50, 10, Options{Mode: ModeEdit, Runner: runner, History: recorder})
	drive(t, c, c.Dispatch(NextBatch))

	c.SetSQL("SELECT nope FROM data")
	drive(t, c, c.Dispatch(Execute))

	snap := c.Snapshot()
	assert.Equal(t, source.KindFile, c.Active().Kind())
	assert.Equal(t, 1, snap.BatchIndex, "failed query leaves the view alone")
	assert.Equal(t, StatusError, snap.StatusLevel)
	assert.Contains(t, snap.Status, "column nope not found")
	assert.ErrorIs(t, c.Session().LastError(), core.ErrQueryFailed)

	require.Len(t, recorder.entries, 1)
	assert.True(t, recorder.entries[0].Failed())
}

func TestController_ResetBeforeCompletion(t *testing.T) {
	res := testutil.IntResult(10)
	runner := &stubRunner{
		result:  func() core.Result { return res },
		release: make(chan struct{}),
	}
	recorder := &memRecorder{}
	c := newController(t, 20, 5, Options{Mode: ModeEdit, Runner: runner, History: recorder})

	cmd := c.Dispatch(Execute)
	require.NotNil(t, cmd)

	assert.Nil(t, c.Dispatch(Reset), "file source still active, nothing to refetch")

	// The cancelled task finishes late with a result.
	drive(t, c, cmd)

	snap := c.Snapshot()
	assert.Equal(t, source.KindFile, c.Active().Kind())
	assert.False(t, snap.Executing)
	assert.Empty(t, snap.SQL)
	assert.Equal(t, StatusReset, snap.Status)
	assert.Nil(t, c.Session().Result())
	assert.True(t, res.Closed(), "late result is released")
	assert.Empty(t, recorder.entries)
}

func TestController_ResetReturnsToFile(t *testing.T) {
	runner := intRunner(42)
	c := newController(t, 20, 5, Options{Mode: ModeEdit, Runner: runner})
	drive(t, c, c.Dispatch(Execute))
	require.Equal(t, source.KindQuery, c.Active().Kind())
	query := c.Session().Result()

	cmd := c.Dispatch(Reset)
	require.NotNil(t, cmd)
	drive(t, c, cmd)

	snap := c.Snapshot()
	assert.Equal(t, source.KindFile, c.Active().Kind())
	assert.False(t, snap.Filtered)
	assert.Equal(t, int64(20), snap.TotalRows)
	assert.Equal(t, []string{"0", "item-0000"}, snap.Rows[0][:2])

	_, err := query.Fetch(context.Background(), 0)
	assert.ErrorIs(t, err, core.ErrSourceUnavailable)
}

func TestController_StaleFetchDiscarded(t *testing.T) {
	c := newController(t, 1000, 100, Options{Mode: ModeEdit, Runner: intRunner(3)})

	// A page fetch against the file is still in flight when the query
	// result replaces it.
	stale := c.Dispatch(NextBatch)
	require.NotNil(t, stale)

	// Execute is allowed while the fetch is pending.
	drive(t, c, c.Dispatch(Execute))
	drive(t, c, stale)

	snap := c.Snapshot()
	assert.Equal(t, 0, snap.BatchIndex)
	assert.Equal(t, []string{"n"}, snap.Header)
	assert.Len(t, snap.Rows, 3)
}

func TestController_ExportRequiresResult(t *testing.T) {
	c := newController(t, 10, 5, Options{Mode: ModeEdit, Runner: intRunner(1)})

	c.Dispatch(OpenExport)
	snap := c.Snapshot()
	assert.False(t, snap.Prompting)
	assert.Equal(t, StatusNoResult, snap.Status)
	assert.Nil(t, c.ConfirmExport("out.parquet"))
}

func TestController_ExportPromptCancel(t *testing.T) {
	c := newController(t, 10, 5, Options{Mode: ModeEdit, Runner: intRunner(4), ExportPath: "mine.parquet"})
	drive(t, c, c.Dispatch(Execute))

	c.Dispatch(OpenExport)
	snap := c.Snapshot()
	assert.True(t, snap.Prompting)
	assert.Equal(t, "mine.parquet", snap.ExportPath)

	c.Dispatch(CancelExport)
	snap = c.Snapshot()
	assert.False(t, snap.Prompting)
	assert.Equal(t, "Export cancelled", snap.Status)
}

func TestController_ExportWriteFailure(t *testing.T) {
	c := newController(t, 10, 5, Options{Mode: ModeEdit, Runner: intRunner(4)})
	drive(t, c, c.Dispatch(Execute))

	c.Dispatch(OpenExport)
	drive(t, c, c.ConfirmExport(filepath.Join(t.TempDir(), "missing", "out.parquet")))

	snap := c.Snapshot()
	assert.False(t, snap.Exporting)
	assert.Equal(t, StatusError, snap.StatusLevel)
	assert.Contains(t, snap.Status, "failed to save")
}

func TestController_ExportScenario(t *testing.T) {
	ctx := context.Background()
	path := testutil.WriteOrdersParquet(t, t.TempDir(), 5000, 1000)

	adp := duckdb.New(testutil.NewTestLogger(t))
	require.NoError(t, adp.Connect(ctx, core.AdapterConfig{}))
	t.Cleanup(func() { _ = adp.Close() })
	require.NoError(t, adp.BindTable(ctx, "data", path))

	file, err := source.OpenFile(path, 100, testutil.NewTestLogger(t))
	require.NoError(t, err)
	recorder := &memRecorder{}
	c, err := New(ctx, file, Options{
		Mode:    ModeEdit,
		Runner:  adp,
		History: recorder,
		Logger:  testutil.NewTestLogger(t),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	drive(t, c, c.Init())

	c.SetSQL("SELECT * FROM data WHERE quantity > 100")
	drive(t, c, c.Dispatch(Execute))

	want := testutil.CountQuantityAbove(5000, 100)
	snap := c.Snapshot()
	require.Equal(t, StatusSuccess, snap.StatusLevel, snap.Status)
	assert.Equal(t, int64(want), snap.TotalRows)
	assert.Equal(t, 10, snap.BatchCount)

	out := filepath.Join(t.TempDir(), "filtered.parquet")
	c.Dispatch(OpenExport)
	require.True(t, c.Snapshot().Prompting)
	drive(t, c, c.ConfirmExport(out))

	snap = c.Snapshot()
	assert.Equal(t, StatusSuccess, snap.StatusLevel, snap.Status)
	assert.Contains(t, snap.Status, "Saved 960 rows")

	r, err := codec.Open(out, 100, nil)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()
	assert.Equal(t, int64(want), r.NumRows())
	assert.Equal(t, file.Schema().Names(), r.Schema().Names())

	require.Len(t, recorder.entries, 1)
	assert.Equal(t, int64(want), recorder.entries[0].Rows)
	assert.Equal(t, path, recorder.entries[0].Source)
}
