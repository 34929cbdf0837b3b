package codec

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/peak/internal/testutil"
	"github.com/leapstack-labs/peak/pkg/core"
)

func TestValidateExtension(t *testing.T) {
	tests := []struct {
		path    string
		wantErr bool
	}{
		{"data.parquet", false},
		{"data.PARQUET", false},
		{"/tmp/x.pqt", false},
		{"data.csv", true},
		{"data", true},
		{"parquet", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			err := ValidateExtension(tt.path)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedFileType)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestOpen_RejectsBadInput(t *testing.T) {
	_, err := Open("rows.csv", 10, nil)
	assert.ErrorIs(t, err, ErrUnsupportedFileType)

	_, err = Open(filepath.Join(t.TempDir(), "missing.parquet"), 10, nil)
	assert.Error(t, err)

	path := testutil.WriteOrdersParquet(t, t.TempDir(), 10, 0)
	_, err = Open(path, 0, nil)
	assert.Error(t, err)
}

func TestReader_Metadata(t *testing.T) {
	path := testutil.WriteOrdersParquet(t, t.TempDir(), 250, 0)

	r, err := Open(path, 100, testutil.NewTestLogger(t))
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, int64(250), r.NumRows())
	assert.Equal(t, 100, r.BatchSize())
	assert.Equal(t, path, r.Path())
	assert.Equal(t, []string{"id", "name", "quantity", "price", "created_at"}, r.Schema().Names())

	kinds := make([]core.Kind, 0, len(r.Schema()))
	for _, f := range r.Schema() {
		kinds = append(kinds, f.Kind)
	}
	assert.Equal(t, []core.Kind{
		core.KindInt, core.KindString, core.KindInt, core.KindFloat, core.KindTimestamp,
	}, kinds)
}

func TestReader_ReadBatch(t *testing.T) {
	// Row groups of 70 force batches to straddle group boundaries.
	path := testutil.WriteOrdersParquet(t, t.TempDir(), 250, 70)

	r, err := Open(path, 100, nil)
	require.NoError(t, err)
	defer r.Close()

	tests := []struct {
		index   int
		wantLen int
		firstID int64
	}{
		{0, 100, 0},
		{1, 100, 100},
		{2, 50, 200},
		{3, 0, 0},
		{1, 100, 100}, // seeking backwards
	}

	ctx := context.Background()
	for _, tt := range tests {
		b, err := r.ReadBatch(ctx, tt.index)
		require.NoError(t, err)
		require.Equal(t, tt.wantLen, b.Len(), "batch %d", tt.index)
		require.NoError(t, b.Validate())
		if tt.wantLen > 0 {
			assert.Equal(t, tt.firstID, b.Rows[0][0], "batch %d", tt.index)
			last := b.Rows[b.Len()-1][0].(int64)
			assert.Equal(t, tt.firstID+int64(tt.wantLen)-1, last)
		}
	}
}

func TestReader_CellValues(t *testing.T) {
	path := testutil.WriteOrdersParquet(t, t.TempDir(), 20, 0)

	r, err := Open(path, 20, nil)
	require.NoError(t, err)
	defer r.Close()

	b, err := r.ReadBatch(context.Background(), 0)
	require.NoError(t, err)

	row := b.Rows[13]
	assert.Equal(t, int64(13), row[0])
	assert.Equal(t, "item-0013", row[1])
	assert.Equal(t, int64(13), row[2])
	assert.Equal(t, 3.25, row[3])
	ts, ok := row[4].(time.Time)
	require.True(t, ok)
	assert.True(t, ts.Equal(testutil.FixtureEpoch.Add(13*time.Minute)))

	assert.Nil(t, b.Rows[10][3], "every tenth price is NULL")
}

func TestReader_Closed(t *testing.T) {
	path := testutil.WriteOrdersParquet(t, t.TempDir(), 5, 0)

	r, err := Open(path, 2, nil)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	_, err = r.ReadBatch(context.Background(), 0)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestReader_CanceledContext(t *testing.T) {
	path := testutil.WriteOrdersParquet(t, t.TempDir(), 5, 0)

	r, err := Open(path, 2, nil)
	require.NoError(t, err)
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.ReadBatch(ctx, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWriter_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := testutil.WriteOrdersParquet(t, dir, 230, 0)

	r, err := Open(src, 100, nil)
	require.NoError(t, err)
	defer r.Close()

	out := filepath.Join(dir, "copy.parquet")
	w, err := Create(out, r.Schema(), testutil.NewTestLogger(t))
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; ; i++ {
		b, err := r.ReadBatch(ctx, i)
		require.NoError(t, err)
		if b.Empty() {
			break
		}
		require.NoError(t, w.Write(b))
	}
	assert.Equal(t, int64(230), w.Rows())
	require.NoError(t, w.Close())

	copied, err := Open(out, 1000, nil)
	require.NoError(t, err)
	defer copied.Close()

	assert.Equal(t, int64(230), copied.NumRows())
	assert.Equal(t, r.Schema().Names(), copied.Schema().Names())

	want, err := r.ReadBatch(ctx, 0)
	require.NoError(t, err)
	got, err := copied.ReadBatch(ctx, 0)
	require.NoError(t, err)
	for i := range want.Rows {
		assert.Equal(t, core.FormatRow(r.Schema(), want.Rows[i]), core.FormatRow(copied.Schema(), got.Rows[i]))
	}
}

func TestWriter_Errors(t *testing.T) {
	schema := core.Schema{{Name: "n", Kind: core.KindInt}}

	_, err := Create(filepath.Join(t.TempDir(), "x.parquet"), nil, nil)
	assert.Error(t, err)

	_, err = Create(filepath.Join(t.TempDir(), "missing", "dir", "x.parquet"), schema, nil)
	assert.Error(t, err)

	w, err := Create(filepath.Join(t.TempDir(), "x.parquet"), schema, nil)
	require.NoError(t, err)
	defer w.Close()

	err = w.Write(core.Batch{Schema: schema, Rows: []core.Row{{"not an int"}}})
	assert.Error(t, err)

	wide := core.Schema{{Name: "a", Kind: core.KindInt}, {Name: "b", Kind: core.KindInt}}
	err = w.Write(core.Batch{Schema: wide, Rows: []core.Row{{int64(1), int64(2)}}})
	assert.Error(t, err)

	assert.NoError(t, w.Write(core.Batch{Schema: schema}))
}

func TestWriter_OtherKindsAsStrings(t *testing.T) {
	schema := core.Schema{
		{Name: "tags", Kind: core.KindOther},
		{Name: "day", Kind: core.KindDate},
	}
	path := filepath.Join(t.TempDir(), "other.parquet")
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	w, err := Create(path, schema, nil)
	require.NoError(t, err)
	require.NoError(t, w.Write(core.Batch{Schema: schema, Rows: []core.Row{
		{"[a, b]", day},
		{nil, nil},
	}}))
	require.NoError(t, w.Close())

	r, err := Open(path, 10, nil)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, core.KindString, r.Schema()[0].Kind)
	assert.Equal(t, core.KindDate, r.Schema()[1].Kind)

	b, err := r.ReadBatch(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, 2, b.Len())
	assert.Equal(t, "[a, b]", b.Rows[0][0])
	assert.Equal(t, "2024-05-01", core.FormatCell(r.Schema()[1], b.Rows[0][1]))
	assert.Nil(t, b.Rows[1][0])
}

func TestWriter_UnsignedRoundTrip(t *testing.T) {
	const huge = uint64(1<<63 + 5)
	schema := core.Schema{{Name: "x", Kind: core.KindUint}}
	path := filepath.Join(t.TempDir(), "uint.parquet")

	w, err := Create(path, schema, nil)
	require.NoError(t, err)
	require.NoError(t, w.Write(core.Batch{Schema: schema, Rows: []core.Row{
		{huge},
		{int64(7)},
		{nil},
	}}))
	assert.Error(t, w.Write(core.Batch{Schema: schema, Rows: []core.Row{{int64(-1)}}}))
	require.NoError(t, w.Close())

	r, err := Open(path, 10, nil)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, core.KindUint, r.Schema()[0].Kind)

	b, err := r.ReadBatch(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, 3, b.Len())
	assert.Equal(t, huge, b.Rows[0][0])
	assert.Equal(t, uint64(7), b.Rows[1][0])
	assert.Nil(t, b.Rows[2][0])
	assert.Equal(t, "9223372036854775813", core.FormatCell(r.Schema()[0], b.Rows[0][0]))
}
