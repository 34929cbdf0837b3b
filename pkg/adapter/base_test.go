package adapter

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseSQLAdapter_NotConnected(t *testing.T) {
	ctx := context.Background()
	base := &BaseSQLAdapter{}

	assert.False(t, base.IsConnected())
	assert.ErrorIs(t, base.Exec(ctx, "SELECT 1"), ErrNotConnected)

	rows, err := base.Query(ctx, "SELECT 1")
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Nil(t, rows)

	_, err = base.Materialize(ctx, "SELECT 1", "peak_results.r_1", plainTypes{})
	assert.ErrorIs(t, err, ErrNotConnected)

	assert.NoError(t, base.Close())
}

func TestBaseSQLAdapter_CloseDisconnects(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectClose()

	base := &BaseSQLAdapter{DB: db}
	require.True(t, base.IsConnected())

	require.NoError(t, base.Close())
	assert.False(t, base.IsConnected())
	assert.ErrorIs(t, base.Exec(context.Background(), "SELECT 1"), ErrNotConnected)

	// A second close is a no-op.
	require.NoError(t, base.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBaseSQLAdapter_Exec(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(mock sqlmock.Sqlmock)
		sql       string
		errMsg    string
	}{
		{
			name: "bind view",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("CREATE OR REPLACE VIEW data").WillReturnResult(sqlmock.NewResult(0, 0))
			},
			sql: "CREATE OR REPLACE VIEW data AS SELECT * FROM read_parquet('orders.parquet')",
		},
		{
			name: "engine rejects statement",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("DROP SCHEMA").WillReturnError(assert.AnError)
			},
			sql:    "DROP SCHEMA peak_results CASCADE",
			errMsg: "failed to execute SQL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base, mock := newMockBase(t)
			tt.setupMock(mock)

			err := base.Exec(context.Background(), tt.sql)
			if tt.errMsg != "" {
				assert.ErrorContains(t, err, tt.errMsg)
				assert.ErrorIs(t, err, assert.AnError)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestMaterialize_FailureDropsTable(t *testing.T) {
	const table = "peak_results.r_4"

	tests := []struct {
		name      string
		setupMock func(mock sqlmock.Sqlmock)
		errMsg    string
	}{
		{
			name: "describe fails",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM " + table + " LIMIT 0")).
					WillReturnError(assert.AnError)
			},
			errMsg: "failed to describe result",
		},
		{
			name: "count fails",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM " + table + " LIMIT 0")).
					WillReturnRows(sqlmock.NewRowsWithColumnDefinition(columns()...))
				mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM " + table)).
					WillReturnError(assert.AnError)
			},
			errMsg: "failed to count result rows",
		},
		{
			name: "count returns nothing",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM " + table + " LIMIT 0")).
					WillReturnRows(sqlmock.NewRowsWithColumnDefinition(columns()...))
				mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM " + table)).
					WillReturnRows(sqlmock.NewRows([]string{"count"}))
			},
			errMsg: "failed to count result rows",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base, mock := newMockBase(t)

			mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE " + table + " AS")).
				WillReturnResult(sqlmock.NewResult(0, 0))
			tt.setupMock(mock)
			mock.ExpectExec(regexp.QuoteMeta("DROP TABLE IF EXISTS " + table)).
				WillReturnResult(sqlmock.NewResult(0, 0))

			res, err := base.Materialize(context.Background(), "SELECT id, name FROM data", table, plainTypes{})
			assert.ErrorContains(t, err, tt.errMsg)
			assert.Nil(t, res)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
