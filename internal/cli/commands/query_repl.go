package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	sharedcfg "github.com/leapstack-labs/peak/internal/config"
)

const (
	replPrompt     = "peak> "
	replContPrompt = "  ...> "
)

func runQueryREPL(cmd *cobra.Command, run *queryRun) error {
	ctx := cmd.Context()

	// History file lives next to the config; empty disables it.
	historyFile := ""
	if dir := sharedcfg.ConfigDir(); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err == nil {
			historyFile = filepath.Join(dir, "query_history")
		}
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     historyFile,
		AutoComplete:    newREPLCompleter(run),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
		Stdin:           io.NopCloser(cmd.InOrStdin()),
		Stdout:          cmd.OutOrStdout(),
		Stderr:          cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "peak query REPL (%s as %s)\n", run.path, run.cc.Cfg.TableName)
	_, _ = fmt.Fprintln(out, "Type .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(out)

	var multiLineBuffer strings.Builder
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			multiLineBuffer.Reset()
			rl.SetPrompt(replPrompt)
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if multiLineBuffer.Len() == 0 && strings.HasPrefix(line, ".") {
			if quit := handleDotCommand(cmd, run, line); quit {
				break
			}
			continue
		}

		// Accumulate multi-line SQL until semicolon
		multiLineBuffer.WriteString(line)
		if !strings.HasSuffix(line, ";") {
			multiLineBuffer.WriteString(" ")
			rl.SetPrompt(replContPrompt)
			continue
		}
		rl.SetPrompt(replPrompt)

		sqlText := multiLineBuffer.String()
		multiLineBuffer.Reset()

		if err := run.execute(ctx, sqlText, ""); err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}
		_, _ = fmt.Fprintln(out)
	}

	return nil
}

// handleDotCommand runs a REPL command and reports whether the REPL should
// exit.
func handleDotCommand(cmd *cobra.Command, run *queryRun, line string) bool {
	parts := strings.Fields(line)
	command := strings.ToLower(parts[0])

	switch command {
	case ".quit", ".exit":
		return true

	case ".help":
		printREPLHelp(cmd.OutOrStdout())

	case ".schema":
		header := []string{"column", "kind", "type"}
		cols := schemaColumns(run.file.Schema())
		rows := make([][]string, len(cols))
		for i, c := range cols {
			rows[i] = []string{c.Name, c.Kind, c.DBType}
		}
		if err := run.renderer.Table(header, rows); err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}

	case ".save":
		if len(parts) < 3 {
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "Usage: .save <path> <sql>")
			return false
		}
		rest := strings.TrimSpace(line[len(parts[0]):])
		sqlText := strings.TrimSpace(strings.TrimPrefix(rest, parts[1]))
		if err := run.execute(cmd.Context(), sqlText, parts[1]); err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}

	case ".clear":
		_, _ = fmt.Fprint(cmd.OutOrStdout(), "\033[H\033[2J")

	default:
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Unknown command: %s (type .help for commands)\n", command)
	}
	return false
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  .help               Show this help message
  .schema             Show the columns of the file
  .save <path> <sql>  Run sql and save the full result as Parquet
  .clear              Clear the screen
  .quit / .exit       Exit the REPL

Tips:
  - SQL statements must end with a semicolon (;)
  - The file is the table "data" unless table_name says otherwise
  - Queries without LIMIT are capped at the query limit
  - Tab completion works for the table and column names
`
	_, _ = fmt.Fprintln(w, help)
}

// newREPLCompleter completes dot-commands, the table name and column names.
func newREPLCompleter(run *queryRun) *readline.PrefixCompleter {
	items := []readline.PrefixCompleterInterface{
		readline.PcItem(run.cc.Cfg.TableName),
	}
	for _, name := range run.file.Schema().Names() {
		items = append(items, readline.PcItem(name))
	}

	// Add dot-commands
	items = append(items,
		readline.PcItem(".help"),
		readline.PcItem(".schema"),
		readline.PcItem(".save"),
		readline.PcItem(".clear"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)

	return readline.NewPrefixCompleter(items...)
}
