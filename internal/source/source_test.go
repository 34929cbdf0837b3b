package source

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/peak/internal/testutil"
	"github.com/leapstack-labs/peak/pkg/core"
)

// fakeResult is an in-memory core.Result that counts stream activity.
type fakeResult struct {
	schema  core.Schema
	rows    []core.Row
	opens   int
	nexts   int
	closed  bool
	openErr error
	nextErr error
}

func newFakeResult(n int) *fakeResult {
	rows := make([]core.Row, n)
	for i := range rows {
		rows[i] = core.Row{int64(i)}
	}
	return &fakeResult{schema: core.Schema{{Name: "n", Kind: core.KindInt}}, rows: rows}
}

func (r *fakeResult) Schema() core.Schema { return r.schema }
func (r *fakeResult) RowCount() int64     { return int64(len(r.rows)) }

func (r *fakeResult) Close() error {
	r.closed = true
	return nil
}

func (r *fakeResult) Open(context.Context) (core.RowStream, error) {
	if r.openErr != nil {
		return nil, r.openErr
	}
	r.opens++
	return &fakeStream{r: r}, nil
}

type fakeStream struct {
	r   *fakeResult
	pos int
}

func (s *fakeStream) Next(n int) ([]core.Row, error) {
	s.r.nexts++
	if s.r.nextErr != nil {
		return nil, s.r.nextErr
	}
	end := min(s.pos+n, len(s.r.rows))
	out := s.r.rows[s.pos:end]
	s.pos = end
	return out, nil
}

func (s *fakeStream) Close() error { return nil }

func firstValue(t *testing.T, b core.Batch) int64 {
	t.Helper()
	require.False(t, b.Empty())
	return b.Rows[0][0].(int64)
}

func TestFileSource(t *testing.T) {
	path := testutil.WriteOrdersParquet(t, t.TempDir(), 450, 0)

	src, err := OpenFile(path, 200, testutil.NewTestLogger(t))
	require.NoError(t, err)

	assert.Equal(t, KindFile, src.Kind())
	assert.Equal(t, path, src.Label())
	assert.Equal(t, 200, src.BatchSize())
	total, ok := src.RowCountHint()
	assert.True(t, ok)
	assert.Equal(t, int64(450), total)
	n, ok := BatchCount(src)
	assert.True(t, ok)
	assert.Equal(t, 3, n)

	ctx := context.Background()
	b, err := src.Fetch(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 50, b.Len())
	assert.Equal(t, int64(400), firstValue(t, b))

	b, err = src.Fetch(ctx, 3)
	require.NoError(t, err)
	assert.True(t, b.Empty())

	_, err = src.Fetch(ctx, -1)
	assert.ErrorIs(t, err, core.ErrInvalidNavigation)

	require.NoError(t, src.Close())
	_, err = src.Fetch(ctx, 0)
	assert.ErrorIs(t, err, core.ErrSourceUnavailable)
}

func TestOpenFile_Errors(t *testing.T) {
	_, err := OpenFile("notes.txt", 100, nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "UNSUPPORTED_FILE_TYPE")

	_, err = OpenFile(t.TempDir()+"/missing.parquet", 100, nil)
	assert.Error(t, err)
}

func TestQuerySource_SequentialReadsReuseStream(t *testing.T) {
	res := newFakeResult(250)
	src, err := NewQuery(res, QueryOptions{BatchSize: 100, Label: "SELECT 1"})
	require.NoError(t, err)

	assert.Equal(t, KindQuery, src.Kind())
	assert.Equal(t, "SELECT 1", src.Label())

	ctx := context.Background()
	for i, want := range []int64{0, 100, 200} {
		b, err := src.Fetch(ctx, i)
		require.NoError(t, err)
		assert.Equal(t, want, firstValue(t, b))
	}
	assert.Equal(t, 1, res.opens)

	b, err := src.Fetch(ctx, 3)
	require.NoError(t, err)
	assert.True(t, b.Empty())
}

func TestQuerySource_CacheHitDoesNotTouchStream(t *testing.T) {
	res := newFakeResult(300)
	src, err := NewQuery(res, QueryOptions{BatchSize: 100})
	require.NoError(t, err)

	ctx := context.Background()
	_, err = src.Fetch(ctx, 1)
	require.NoError(t, err)
	nexts := res.nexts

	b, err := src.Fetch(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(100), firstValue(t, b))
	assert.Equal(t, nexts, res.nexts)
	assert.Equal(t, 1, res.opens)
}

func TestQuerySource_BackwardMissReplays(t *testing.T) {
	res := newFakeResult(1000)
	src, err := NewQuery(res, QueryOptions{BatchSize: 100, CacheSize: 2})
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := src.Fetch(ctx, i)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, res.opens)

	// Batch 0 was evicted in insertion order; the stream is past it.
	b, err := src.Fetch(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), firstValue(t, b))
	assert.Equal(t, 2, res.opens)
	assert.Equal(t, 2, src.replays)

	// Batch 4 is still cached.
	nexts := res.nexts
	b, err = src.Fetch(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(400), firstValue(t, b))
	assert.Equal(t, nexts, res.nexts)
}

func TestQuerySource_ForwardSkipDiscards(t *testing.T) {
	res := newFakeResult(1000)
	src, err := NewQuery(res, QueryOptions{BatchSize: 100})
	require.NoError(t, err)

	b, err := src.Fetch(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(700), firstValue(t, b))
	assert.Equal(t, 8, res.nexts)
	assert.Equal(t, 1, src.cache.Len())
}

func TestQuerySource_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := NewQuery(newFakeResult(1), QueryOptions{})
	assert.Error(t, err)

	res := newFakeResult(10)
	res.openErr = errors.New("connection lost")
	src, err := NewQuery(res, QueryOptions{BatchSize: 5})
	require.NoError(t, err)
	_, err = src.Fetch(ctx, 0)
	assert.ErrorIs(t, err, core.ErrFetchFailed)

	res = newFakeResult(10)
	res.nextErr = errors.New("io")
	src, err = NewQuery(res, QueryOptions{BatchSize: 5})
	require.NoError(t, err)
	_, err = src.Fetch(ctx, 1)
	assert.ErrorIs(t, err, core.ErrFetchFailed)

	res = newFakeResult(10)
	src, err = NewQuery(res, QueryOptions{BatchSize: 5})
	require.NoError(t, err)
	require.NoError(t, src.Close())
	assert.True(t, res.closed)
	_, err = src.Fetch(ctx, 0)
	assert.ErrorIs(t, err, core.ErrSourceUnavailable)
	assert.NoError(t, src.Close())
}

func TestQuerySource_EmptyResult(t *testing.T) {
	src, err := NewQuery(newFakeResult(0), QueryOptions{BatchSize: 10})
	require.NoError(t, err)

	b, err := src.Fetch(context.Background(), 0)
	require.NoError(t, err)
	assert.True(t, b.Empty())
	assert.Equal(t, core.Schema{{Name: "n", Kind: core.KindInt}}, b.Schema)

	n, ok := BatchCount(src)
	assert.True(t, ok)
	assert.Equal(t, 0, n)
}
