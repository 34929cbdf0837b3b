// Package app wires navigation, data sources, query execution and export
// into the controller driven by the terminal UI. Blocking work is returned
// as tea.Cmd values; their messages come back through Update on the
// foreground loop.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/leapstack-labs/peak/internal/export"
	"github.com/leapstack-labs/peak/internal/history"
	"github.com/leapstack-labs/peak/internal/query"
	"github.com/leapstack-labs/peak/internal/source"
	"github.com/leapstack-labs/peak/internal/window"
	"github.com/leapstack-labs/peak/pkg/core"
)

// Mode selects the browsing or the editing view.
type Mode int

// Modes.
const (
	ModePeak Mode = iota
	ModeEdit
)

func (m Mode) String() string {
	if m == ModeEdit {
		return "edit"
	}
	return "peak"
}

// Defaults.
const (
	DefaultExportPath = "output.parquet"
	DefaultSQL        = "SELECT * FROM data LIMIT 100"
)

// Status texts.
const (
	StatusReadyPeak   = "Ready"
	StatusReadyEdit   = "Ready (Ctrl+E to execute SQL)"
	StatusExecuting   = "Executing SQL query..."
	StatusExecuted    = "Query executed successfully"
	StatusNoResult    = "Execute a query first before saving"
	StatusLoading     = "Loading batch..."
	StatusReset       = "Query reset (Ctrl+E to execute SQL)"
	StatusQueryActive = "A query is already running (Ctrl+R to reset)"
)

// Action is an input event with no payload.
type Action int

// Actions.
const (
	NextRow Action = iota + 1
	PrevRow
	NextBatch
	PrevBatch
	ScrollLeft
	ScrollRight
	SwitchFocus
	Execute
	Reset
	OpenExport
	CancelExport
	Quit
)

var actionNames = map[Action]string{
	NextRow:      "next_row",
	PrevRow:      "prev_row",
	NextBatch:    "next_batch",
	PrevBatch:    "prev_batch",
	ScrollLeft:   "scroll_left",
	ScrollRight:  "scroll_right",
	SwitchFocus:  "switch_focus",
	Execute:      "execute",
	Reset:        "reset",
	OpenExport:   "open_export",
	CancelExport: "cancel_export",
	Quit:         "quit",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("action(%d)", int(a))
}

func (a Action) editOnly() bool {
	switch a {
	case SwitchFocus, Execute, Reset, OpenExport, CancelExport:
		return true
	}
	return false
}

// Recorder stores executed queries.
type Recorder interface {
	Record(ctx context.Context, e history.Entry) (history.Entry, error)
}

// Options configures a Controller.
type Options struct {
	Mode           Mode
	VisibleColumns int
	QueryLimit     int
	CacheSize      int
	ExportPath     string
	DefaultSQL     string

	// Runner executes SQL; required in edit mode.
	Runner query.Runner
	// History is optional.
	History Recorder
	Logger  *slog.Logger
}

// Controller owns the window state, the active data source and the query
// session. All methods run on the foreground loop.
type Controller struct {
	ctx    context.Context
	mode   Mode
	opts   Options
	logger *slog.Logger

	file      *source.FileSource
	active    source.DataSource
	sourceGen uint64
	pending   bool
	// queued is the net batch steps requested while a fetch was pending.
	queued int

	win      *window.State
	session  *query.Session
	exporter *export.Service
	history  Recorder

	status string
	level  StatusLevel
	// notice marks a status raised by navigation, cleared by the next
	// successful fetch.
	notice bool

	prompting  bool
	exportPath string
	exporting  bool
	quitting   bool
}

// New creates a controller over file. The controller takes ownership of
// file and closes it in Close.
func New(ctx context.Context, file *source.FileSource, opts Options) (*Controller, error) {
	if opts.Mode == ModeEdit && opts.Runner == nil {
		return nil, errors.New("edit mode requires a query runner")
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.VisibleColumns <= 0 {
		opts.VisibleColumns = window.DefaultVisibleColumns
	}
	if opts.ExportPath == "" {
		opts.ExportPath = DefaultExportPath
	}

	c := &Controller{
		ctx:      ctx,
		mode:     opts.Mode,
		opts:     opts,
		logger:   opts.Logger,
		file:     file,
		active:   file,
		win:      window.New(file.BatchSize(), opts.VisibleColumns, opts.Mode == ModeEdit),
		exporter: export.New(opts.Logger),
		history:  opts.History,
	}

	if opts.Mode == ModeEdit {
		c.session = query.NewSession(opts.Runner, query.Options{
			Limit:     opts.QueryLimit,
			BatchSize: file.BatchSize(),
			CacheSize: opts.CacheSize,
			Logger:    opts.Logger,
		})
		sql := opts.DefaultSQL
		if sql == "" {
			sql = DefaultSQL
		}
		c.session.SetText(sql)
	}

	// Snapshot shows the file's columns with no rows until Init fetches.
	total, known := file.RowCountHint()
	c.win.Rebind(file.Schema(), total, known)

	c.ready()
	return c, nil
}

// Init binds the file source and fetches its first batch.
func (c *Controller) Init() tea.Cmd {
	return c.bind(c.file)
}

// Mode returns the controller mode.
func (c *Controller) Mode() Mode { return c.mode }

// Quitting reports whether Quit was dispatched.
func (c *Controller) Quitting() bool { return c.quitting }

// Session returns the query session, nil in peak mode.
func (c *Controller) Session() *query.Session { return c.session }

// Window returns the navigation state for inspection.
func (c *Controller) Window() *window.State { return c.win }

// Active returns the active data source.
func (c *Controller) Active() source.DataSource { return c.active }

// SetSQL replaces the session text. It is a no-op in peak mode.
func (c *Controller) SetSQL(text string) {
	if c.session != nil {
		c.session.SetText(text)
	}
}

// Dispatch applies an action and returns the background work it started,
// if any. Edit-only actions are ignored in peak mode.
func (c *Controller) Dispatch(a Action) tea.Cmd {
	if a.editOnly() && c.mode != ModeEdit {
		return nil
	}
	c.logger.Debug("dispatch", slog.String("action", a.String()))

	switch a {
	case NextRow:
		_ = c.win.NextRow()
	case PrevRow:
		_ = c.win.PrevRow()
	case ScrollLeft:
		_ = c.win.ScrollLeft()
	case ScrollRight:
		_ = c.win.ScrollRight()
	case NextBatch:
		return c.navigate(1)
	case PrevBatch:
		return c.navigate(-1)
	case SwitchFocus:
		c.win.SwitchFocus()
	case Execute:
		return c.execute()
	case Reset:
		return c.reset()
	case OpenExport:
		c.openExport()
	case CancelExport:
		if c.prompting {
			c.prompting = false
			c.setStatus(StatusInfo, "Export cancelled")
		}
	case Quit:
		c.quitting = true
		return tea.Quit
	}
	return nil
}

// Update applies a background completion. Messages of other types are
// ignored.
func (c *Controller) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case BatchFetchedMsg:
		return c.applyBatch(msg)
	case QueryCompletedMsg:
		return c.applyQuery(msg)
	case ExportFinishedMsg:
		c.applyExport(msg)
	case HistoryRecordedMsg:
		if msg.Err != nil {
			c.logger.Warn("failed to record query history", slog.String("error", msg.Err.Error()))
		}
	}
	return nil
}

// Close releases the session result and the file.
func (c *Controller) Close() error {
	if c.session != nil {
		c.session.Close()
	}
	return c.file.Close()
}

func (c *Controller) ready() {
	c.notice = false
	switch {
	case c.mode == ModePeak:
		c.setStatus(StatusInfo, StatusReadyPeak)
	case c.active != nil && c.active != source.DataSource(c.file):
		c.setStatus(StatusInfo, "Showing SQL query results")
	default:
		c.setStatus(StatusInfo, StatusReadyEdit)
	}
}

func (c *Controller) setStatus(level StatusLevel, text string) {
	c.level = level
	c.status = text
	c.notice = false
}

func (c *Controller) setError(prefix string, err error) {
	c.setStatus(StatusError, "Error: "+prefix+err.Error())
}

// bind makes src the active source, resets navigation and fetches batch 0.
// Fetches issued against the previous source are discarded on arrival.
func (c *Controller) bind(src source.DataSource) tea.Cmd {
	c.active = src
	c.sourceGen++
	c.pending = false
	c.queued = 0

	total, known := src.RowCountHint()
	c.win.Rebind(src.Schema(), total, known)

	c.logger.Debug("bound data source",
		slog.String("kind", src.Kind().String()),
		slog.String("label", src.Label()),
		slog.Uint64("generation", c.sourceGen))
	return c.fetch(0)
}

func (c *Controller) fetch(index int) tea.Cmd {
	ctx := c.ctx
	src := c.active
	gen := c.sourceGen
	c.pending = true

	return func() tea.Msg {
		b, err := src.Fetch(ctx, index)
		return BatchFetchedMsg{SourceGen: gen, Index: index, Batch: b, Err: err}
	}
}

// navigate moves steps batches. While a fetch is pending the steps are
// queued and applied once it lands.
func (c *Controller) navigate(steps int) tea.Cmd {
	if c.pending {
		c.queued += steps
		c.setStatus(StatusWarning, StatusLoading)
		c.notice = true
		return nil
	}
	index, err := c.win.BatchTarget(steps)
	if err != nil {
		return nil
	}
	return c.fetch(index)
}

func (c *Controller) applyBatch(msg BatchFetchedMsg) tea.Cmd {
	if msg.SourceGen != c.sourceGen {
		c.logger.Debug("discarding stale batch",
			slog.Int("index", msg.Index),
			slog.Uint64("generation", msg.SourceGen),
			slog.Uint64("current", c.sourceGen))
		return nil
	}
	c.pending = false
	queued := c.queued
	c.queued = 0

	if msg.Err != nil {
		c.logger.Warn("batch fetch failed", slog.Int("index", msg.Index), slog.String("error", msg.Err.Error()))
		c.setError("", msg.Err)
		c.notice = true
		return nil
	}

	if err := c.win.Apply(msg.Index, msg.Batch); err != nil {
		if errors.Is(err, core.ErrInvalidNavigation) {
			c.setStatus(StatusInfo, "No more rows")
			c.notice = true
			return nil
		}
		c.setError("", err)
		return nil
	}

	if queued != 0 {
		if index, err := c.win.BatchTarget(queued); err == nil {
			c.logger.Debug("applying queued navigation", slog.Int("steps", queued), slog.Int("index", index))
			return c.fetch(index)
		}
	}
	if c.notice {
		c.ready()
	}
	return nil
}

func (c *Controller) execute() tea.Cmd {
	task, err := c.session.Execute(c.ctx)
	if err != nil {
		if errors.Is(err, core.ErrAlreadyRunning) {
			c.setStatus(StatusWarning, StatusQueryActive)
			return nil
		}
		c.setError("", err)
		return nil
	}

	c.setStatus(StatusInfo, StatusExecuting)
	return func() tea.Msg {
		return QueryCompletedMsg{Completion: task()}
	}
}

func (c *Controller) applyQuery(msg QueryCompletedMsg) tea.Cmd {
	if !c.session.Complete(msg.Completion) {
		return nil
	}
	record := c.record(msg.Completion)

	if err := c.session.LastError(); err != nil {
		c.setError("", err)
		return record
	}

	src := c.session.Result()
	rows, _ := src.RowCountHint()
	text := fmt.Sprintf("%s (%d rows in %s)", StatusExecuted, rows, msg.Elapsed.Round(time.Millisecond))
	if n, ok := c.session.AppliedLimit(); ok {
		text += fmt.Sprintf(" (limited to %d for preview)", n)
	}
	cmd := c.bind(src)
	c.setStatus(StatusSuccess, text)
	return tea.Batch(cmd, record)
}

func (c *Controller) record(done query.Completion) tea.Cmd {
	if c.history == nil {
		return nil
	}

	entry := history.Entry{
		Source:       c.file.Path(),
		SQL:          done.SQL,
		AppliedLimit: done.AppliedLimit,
		Elapsed:      done.Elapsed,
	}
	if done.Err != nil {
		entry.Error = done.Err.Error()
	} else if done.Source != nil {
		entry.Rows, _ = done.Source.RowCountHint()
	}

	ctx := c.ctx
	rec := c.history
	return func() tea.Msg {
		_, err := rec.Record(ctx, entry)
		return HistoryRecordedMsg{Err: err}
	}
}

func (c *Controller) reset() tea.Cmd {
	c.session.Reset()
	c.prompting = false

	var cmd tea.Cmd
	if c.active != source.DataSource(c.file) {
		cmd = c.bind(c.file)
	}
	c.setStatus(StatusInfo, StatusReset)
	return cmd
}

func (c *Controller) openExport() {
	switch {
	case c.exporting:
		c.setStatus(StatusWarning, "An export is already running")
	case c.session.Result() == nil:
		c.setStatus(StatusWarning, StatusNoResult)
	default:
		c.prompting = true
		c.exportPath = c.opts.ExportPath
	}
}

// ConfirmExport closes the export prompt and writes the current query
// result to path. An empty path uses the configured default.
func (c *Controller) ConfirmExport(path string) tea.Cmd {
	if c.mode != ModeEdit || !c.prompting {
		return nil
	}
	c.prompting = false

	path = strings.TrimSpace(path)
	if path == "" {
		path = c.opts.ExportPath
	}
	src := c.session.Result()
	if src == nil {
		c.setStatus(StatusWarning, StatusNoResult)
		return nil
	}

	c.exporting = true
	c.exportPath = path
	c.setStatus(StatusInfo, "Saving to "+path+"...")

	ctx := c.ctx
	exporter := c.exporter
	return func() tea.Msg {
		stats, err := exporter.Export(ctx, src, path)
		return ExportFinishedMsg{Stats: stats, Err: err}
	}
}

func (c *Controller) applyExport(msg ExportFinishedMsg) {
	c.exporting = false
	if msg.Err != nil {
		c.setError("failed to save: ", msg.Err)
		return
	}
	c.setStatus(StatusSuccess, fmt.Sprintf("Saved %d rows to %s", msg.Stats.Rows, msg.Stats.Path))
}
