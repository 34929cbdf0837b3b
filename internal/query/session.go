// Package query manages the lifecycle of SQL queries against the bound
// file: text editing, asynchronous execution with a default row limit,
// cancellation by generation, and the resulting data source.
package query

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/leapstack-labs/peak/internal/source"
	"github.com/leapstack-labs/peak/pkg/core"
)

// ErrEmptyQuery is returned when executing blank SQL text.
var ErrEmptyQuery = errors.New("SQL query is empty")

// Runner executes SQL against the query engine and returns a materialized
// result.
type Runner interface {
	Execute(ctx context.Context, sql string) (core.Result, error)
}

// Options configures a Session.
type Options struct {
	// Limit is the default row cap; 0 means DefaultLimit, negative disables.
	Limit     int
	BatchSize int
	CacheSize int
	Logger    *slog.Logger
}

// Completion is the outcome of one execution, delivered back to the
// foreground loop.
type Completion struct {
	Generation   uint64
	Source       *source.QuerySource
	Err          error
	SQL          string
	AppliedLimit int
	Elapsed      time.Duration
}

// Task runs an execution off the foreground loop.
type Task func() Completion

// Session holds the SQL text and the outcome of its last execution. All
// methods are called from the foreground loop; only the returned Task runs
// elsewhere.
type Session struct {
	runner Runner
	opts   Options
	logger *slog.Logger

	text         string
	executing    bool
	result       *source.QuerySource
	lastErr      error
	appliedLimit int

	generation uint64
	cancel     context.CancelFunc
}

// NewSession creates a session executing through runner.
func NewSession(runner Runner, opts Options) *Session {
	if opts.Limit == 0 {
		opts.Limit = DefaultLimit
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Session{runner: runner, opts: opts, logger: opts.Logger}
}

// SetText replaces the SQL text.
func (s *Session) SetText(text string) {
	s.text = text
}

// Text returns the SQL text.
func (s *Session) Text() string { return s.text }

// Executing reports whether an execution is in flight.
func (s *Session) Executing() bool { return s.executing }

// Result returns the source built from the last successful execution.
func (s *Session) Result() *source.QuerySource { return s.result }

// LastError returns the error of the last failed execution.
func (s *Session) LastError() error { return s.lastErr }

// AppliedLimit returns the default limit added to the current or last
// execution, if any.
func (s *Session) AppliedLimit() (int, bool) {
	return s.appliedLimit, s.appliedLimit > 0
}

// Limit returns the configured default row cap.
func (s *Session) Limit() int { return s.opts.Limit }

// Generation returns the tag of the current execution.
func (s *Session) Generation() uint64 { return s.generation }

// Execute starts executing the SQL text. It fails with AlreadyRunning while
// another execution is in flight, leaving text and result untouched. The
// returned Task performs the work and must be run off the foreground loop;
// its Completion goes back through Complete.
func (s *Session) Execute(ctx context.Context) (Task, error) {
	if s.executing {
		return nil, core.Errorf(core.AlreadyRunning, "execute", nil)
	}
	if strings.TrimSpace(s.text) == "" {
		return nil, core.Errorf(core.QueryFailed, "execute", ErrEmptyQuery)
	}

	stmt, applied := ApplyLimit(s.text, s.opts.Limit)
	s.appliedLimit = 0
	if applied {
		s.appliedLimit = s.opts.Limit
	}

	s.generation++
	gen := s.generation
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.executing = true

	s.logger.Debug("executing query",
		slog.Uint64("generation", gen),
		slog.Bool("limit_applied", applied),
		slog.String("sql", stmt))

	runner := s.runner
	opts := s.opts
	limit := s.appliedLimit
	label := trimStatement(s.text)

	return func() Completion {
		start := time.Now()
		c := Completion{Generation: gen, SQL: stmt, AppliedLimit: limit}

		res, err := runner.Execute(runCtx, stmt)
		c.Elapsed = time.Since(start)
		if err != nil {
			c.Err = err
			return c
		}

		src, err := source.NewQuery(res, source.QueryOptions{
			BatchSize: opts.BatchSize,
			CacheSize: opts.CacheSize,
			Label:     label,
			Logger:    opts.Logger,
		})
		if err != nil {
			_ = res.Close()
			c.Err = err
			return c
		}
		c.Source = src
		return c
	}, nil
}

// Complete applies a finished execution. A completion from a superseded
// generation is discarded, its result closed, and false is returned.
func (s *Session) Complete(c Completion) bool {
	if c.Generation != s.generation || !s.executing {
		s.logger.Debug("discarding stale query completion",
			slog.Uint64("generation", c.Generation),
			slog.Uint64("current", s.generation))
		if c.Source != nil {
			_ = c.Source.Close()
		}
		return false
	}

	s.executing = false
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}

	if c.Err != nil {
		if core.KindOf(c.Err) == 0 {
			s.lastErr = core.Errorf(core.QueryFailed, "execute", c.Err)
		} else {
			s.lastErr = c.Err
		}
		s.logger.Info("query failed",
			slog.Uint64("generation", c.Generation),
			slog.Duration("elapsed", c.Elapsed),
			slog.String("error", c.Err.Error()))
		return true
	}

	prev := s.result
	s.result = c.Source
	s.lastErr = nil
	if prev != nil {
		_ = prev.Close()
	}

	rows, _ := c.Source.RowCountHint()
	s.logger.Info("query executed",
		slog.Uint64("generation", c.Generation),
		slog.Int64("rows", rows),
		slog.Duration("elapsed", c.Elapsed))
	return true
}

// Reset cancels any in-flight execution and clears text, result, error and
// applied limit. A completion of the cancelled execution is discarded when
// it arrives.
func (s *Session) Reset() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.generation++
	s.executing = false
	s.text = ""
	s.lastErr = nil
	s.appliedLimit = 0
	if s.result != nil {
		_ = s.result.Close()
		s.result = nil
	}
}

// Close releases the session's result and cancels any execution.
func (s *Session) Close() {
	s.Reset()
}
