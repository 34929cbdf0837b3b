package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/peak/internal/testutil"
)

func openStore(t *testing.T, path string) *Store {
	t.Helper()
	s, err := Open(path, testutil.NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_RunsMigrations(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
	}{
		{"in-memory", func(*testing.T) string { return ":memory:" }},
		{"file in new directory", func(t *testing.T) string {
			return filepath.Join(t.TempDir(), "nested", "history.db")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := openStore(t, tt.path(t))
			version, err := s.Version()
			require.NoError(t, err)
			assert.Equal(t, int64(1), version)
		})
	}
}

func TestStore_RecordAndList(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, ":memory:")
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	first, err := s.Record(ctx, Entry{
		Source:       "orders.parquet",
		SQL:          "SELECT * FROM data\nLIMIT 1000",
		Rows:         1000,
		AppliedLimit: 1000,
		Elapsed:      1500 * time.Millisecond,
		ExecutedAt:   base,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)

	_, err = s.Record(ctx, Entry{
		Source:     "orders.parquet",
		SQL:        "SELECT nope FROM data",
		Error:      "Binder Error: column nope not found",
		ExecutedAt: base.Add(time.Minute),
	})
	require.NoError(t, err)

	entries, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "SELECT nope FROM data", entries[0].SQL)
	assert.True(t, entries[0].Failed())

	got := entries[1]
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, int64(1000), got.Rows)
	assert.Equal(t, 1000, got.AppliedLimit)
	assert.Equal(t, 1500*time.Millisecond, got.Elapsed)
	assert.True(t, base.Equal(got.ExecutedAt))
	assert.False(t, got.Failed())
}

func TestStore_ListLimit(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, ":memory:")

	for i := 0; i < DefaultListLimit+5; i++ {
		_, err := s.Record(ctx, Entry{Source: "orders.parquet", SQL: "SELECT 1"})
		require.NoError(t, err)
	}

	tests := []struct {
		limit int
		want  int
	}{
		{0, DefaultListLimit},
		{3, 3},
		{100, DefaultListLimit + 5},
	}
	for _, tt := range tests {
		entries, err := s.List(ctx, tt.limit)
		require.NoError(t, err)
		assert.Len(t, entries, tt.want, "limit %d", tt.limit)
	}
}

func TestStore_PersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")

	s, err := Open(path, nil)
	require.NoError(t, err)
	_, err = s.Record(ctx, Entry{Source: "a.parquet", SQL: "SELECT 1"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened := openStore(t, path)
	entries, err := reopened.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a.parquet", entries[0].Source)
}
