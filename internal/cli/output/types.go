package output

// SchemaColumn is one column of the schema command's JSON output.
type SchemaColumn struct {
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	DBType string `json:"db_type,omitempty"`
}

// SchemaOutput is the schema command's JSON output.
type SchemaOutput struct {
	Path    string         `json:"path"`
	Rows    int64          `json:"rows"`
	Batches int            `json:"batches"`
	Columns []SchemaColumn `json:"columns"`
}

// HistoryEntry is one row of the history command's JSON output.
type HistoryEntry struct {
	ID           string `json:"id"`
	ExecutedAt   string `json:"executed_at"`
	Source       string `json:"source"`
	SQL          string `json:"sql"`
	Rows         int64  `json:"rows"`
	AppliedLimit int    `json:"applied_limit,omitempty"`
	ElapsedMS    int64  `json:"elapsed_ms"`
	Error        string `json:"error,omitempty"`
}

// QueryOutput is the query command's JSON output.
type QueryOutput struct {
	SQL          string              `json:"sql"`
	Rows         int64               `json:"rows"`
	AppliedLimit int                 `json:"applied_limit,omitempty"`
	Columns      []string            `json:"columns"`
	Data         []map[string]string `json:"data"`
	Saved        string              `json:"saved,omitempty"`
}
