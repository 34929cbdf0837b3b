package source

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/leapstack-labs/peak/pkg/core"
)

// DefaultCacheSize is the number of query batches kept in memory.
const DefaultCacheSize = 8

// QueryOptions configures a QuerySource.
type QueryOptions struct {
	BatchSize int
	// CacheSize bounds cached batches; 0 means DefaultCacheSize.
	CacheSize int
	// Label is usually the executed SQL.
	Label  string
	Logger *slog.Logger
}

// QuerySource serves random batch access over a forward-only query result.
//
// Fetched batches are cached by index. The cache is only read with Peek, so
// entries leave in insertion order. On a miss the open stream is advanced
// when it sits at or before the requested batch; otherwise the result is
// reopened and replayed from the start. Batches skipped while replaying are
// discarded.
type QuerySource struct {
	mu sync.Mutex

	result    core.Result
	schema    core.Schema
	total     int64
	batchSize int
	label     string
	logger    *slog.Logger

	cache *lru.Cache[int, core.Batch]

	stream    core.RowStream
	streamPos int // index of the next batch the stream yields
	exhausted bool

	// streams outlive a single Fetch, so they get their own context.
	streamCtx context.Context
	cancel    context.CancelFunc

	closed bool
	// replays counts stream reopenings.
	replays int
}

// NewQuery wraps a completed engine result.
func NewQuery(result core.Result, opts QueryOptions) (*QuerySource, error) {
	if opts.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", opts.BatchSize)
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	cache, err := lru.New[int, core.Batch](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create batch cache: %w", err)
	}

	streamCtx, cancel := context.WithCancel(context.Background())

	return &QuerySource{
		streamCtx: streamCtx,
		cancel:    cancel,
		result:    result,
		schema:    result.Schema(),
		total:     result.RowCount(),
		batchSize: opts.BatchSize,
		label:     opts.Label,
		logger:    opts.Logger,
		cache:     cache,
	}, nil
}

// Kind implements DataSource.
func (s *QuerySource) Kind() Kind { return KindQuery }

// Label implements DataSource.
func (s *QuerySource) Label() string { return s.label }

// Schema implements DataSource.
func (s *QuerySource) Schema() core.Schema { return s.schema }

// BatchSize implements DataSource.
func (s *QuerySource) BatchSize() int { return s.batchSize }

// RowCountHint implements DataSource. The result is fully computed before
// the source exists, so the count is always known.
func (s *QuerySource) RowCountHint() (int64, bool) { return s.total, true }

// Fetch implements DataSource.
func (s *QuerySource) Fetch(ctx context.Context, index int) (core.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	op := fmt.Sprintf("fetch result batch %d", index)
	if s.closed {
		return core.Batch{}, core.Errorf(core.SourceUnavailable, op, nil)
	}
	if index < 0 {
		return core.Batch{}, core.Errorf(core.InvalidNavigation, op, nil)
	}
	if int64(index)*int64(s.batchSize) >= s.total {
		return core.Batch{Schema: s.schema}, nil
	}

	if b, ok := s.cache.Peek(index); ok {
		return b, nil
	}

	if s.stream == nil || s.streamPos > index {
		if err := s.reopen(); err != nil {
			return core.Batch{}, core.Errorf(core.FetchFailed, op, err)
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return core.Batch{}, core.Errorf(core.FetchFailed, op, err)
		}
		if s.exhausted {
			return core.Batch{Schema: s.schema}, nil
		}

		rows, err := s.stream.Next(s.batchSize)
		if err != nil {
			s.dropStream()
			return core.Batch{}, core.Errorf(core.FetchFailed, op, err)
		}
		if len(rows) < s.batchSize {
			s.exhausted = true
		}
		pos := s.streamPos
		s.streamPos++

		if pos < index {
			continue
		}

		b := core.Batch{Schema: s.schema, Rows: rows}
		if len(rows) > 0 {
			s.cache.Add(index, b)
		}
		s.logger.Debug("fetched result batch",
			slog.Int("index", index),
			slog.Int("rows", len(rows)),
			slog.Int("cached", s.cache.Len()))
		return b, nil
	}
}

func (s *QuerySource) reopen() error {
	s.dropStream()
	stream, err := s.result.Open(s.streamCtx)
	if err != nil {
		return err
	}
	s.stream = stream
	s.streamPos = 0
	s.exhausted = false
	s.replays++
	return nil
}

func (s *QuerySource) dropStream() {
	if s.stream != nil {
		if err := s.stream.Close(); err != nil {
			s.logger.Debug("failed to close result stream", slog.String("error", err.Error()))
		}
		s.stream = nil
	}
	s.streamPos = 0
	s.exhausted = false
}

// Close implements DataSource. The underlying engine result is released.
func (s *QuerySource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.dropStream()
	s.cancel()
	s.cache.Purge()
	return s.result.Close()
}
