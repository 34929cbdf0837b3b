package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/peak/internal/cli/output"
	"github.com/leapstack-labs/peak/internal/history"
)

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recently executed queries",
		Long: `List queries executed by 'peak edit' and 'peak query', most recent first.

History is stored in history_path ($HOME/.config/peak/history.db by
default); set it to an empty string to disable recording.`,
		Example: `  peak history
  peak history -n 50 -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistory(cmd, count)
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", history.DefaultListLimit, "Number of entries to show")
	return cmd
}

func runHistory(cmd *cobra.Command, count int) error {
	cc := NewCommandContext(cmd)

	store, err := cc.openHistory()
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("query history is disabled (history_path is empty)")
	}
	defer func() { _ = store.Close() }()

	entries, err := store.List(cmd.Context(), count)
	if err != nil {
		return err
	}

	r := cc.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		out := make([]output.HistoryEntry, len(entries))
		for i, e := range entries {
			out[i] = output.HistoryEntry{
				ID:           e.ID,
				ExecutedAt:   e.ExecutedAt.Format(time.RFC3339),
				Source:       e.Source,
				SQL:          e.SQL,
				Rows:         e.Rows,
				AppliedLimit: e.AppliedLimit,
				ElapsedMS:    e.Elapsed.Milliseconds(),
				Error:        e.Error,
			}
		}
		return r.JSON(out)
	}

	if len(entries) == 0 {
		r.Println("No queries recorded yet.")
		return nil
	}

	header := []string{"executed", "source", "sql", "rows", "elapsed", "status"}
	rows := make([][]string, len(entries))
	for i, e := range entries {
		status := r.Styles().StatusSuccess.String()
		if e.Failed() {
			status = r.Styles().StatusFailed.String() + " " + e.Error
		} else if e.AppliedLimit > 0 {
			status += fmt.Sprintf(" limited to %d", e.AppliedLimit)
		}
		rows[i] = []string{
			e.ExecutedAt.Local().Format("2006-01-02 15:04:05"),
			e.Source,
			e.SQL,
			output.FormatCount(e.Rows),
			e.Elapsed.String(),
			status,
		}
	}
	return r.Table(header, rows)
}
