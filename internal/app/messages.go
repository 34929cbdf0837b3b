package app

import (
	"github.com/leapstack-labs/peak/internal/export"
	"github.com/leapstack-labs/peak/internal/query"
	"github.com/leapstack-labs/peak/pkg/core"
)

// BatchFetchedMsg carries a finished batch fetch back to the foreground
// loop. SourceGen identifies the source the fetch was issued against.
type BatchFetchedMsg struct {
	SourceGen uint64
	Index     int
	Batch     core.Batch
	Err       error
}

// QueryCompletedMsg carries a finished query execution.
type QueryCompletedMsg struct {
	query.Completion
}

// ExportFinishedMsg carries the outcome of an export.
type ExportFinishedMsg struct {
	Stats export.Stats
	Err   error
}

// HistoryRecordedMsg reports whether an executed query was stored in the
// history database.
type HistoryRecordedMsg struct {
	Err error
}
