package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/peak/internal/cli/config"
	"github.com/leapstack-labs/peak/internal/cli/output"
	"github.com/leapstack-labs/peak/internal/source"
	"github.com/leapstack-labs/peak/pkg/core"
)

// NewSchemaCommand creates the schema command.
func NewSchemaCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema <file>",
		Short: "Show the columns and row count of a Parquet file",
		Long: `Show the columns of a Parquet file with their display kind and
physical type, along with the row count and the number of batches at the
configured batch size.`,
		Example: `  peak schema orders.parquet
  peak schema orders.parquet -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchema(cmd, args[0])
		},
	}
	cmd.Flags().IntP("batch-size", "b", config.DefaultBatchSize, "Rows per batch used for the batch count")
	return cmd
}

func runSchema(cmd *cobra.Command, path string) error {
	cc := NewCommandContext(cmd)

	file, err := cc.openFile(path)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	out := schemaOutput(file)
	r := cc.Renderer

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(out)
	}

	header := []string{"column", "kind", "type"}
	rows := make([][]string, len(out.Columns))
	for i, c := range out.Columns {
		rows[i] = []string{c.Name, c.Kind, c.DBType}
	}

	switch r.EffectiveMode() {
	case output.ModeCSV:
		return r.Table(header, rows)
	case output.ModeMarkdown:
		r.Header(1, out.Path)
		r.Println()
		r.Println(output.FormatKeyValue("Rows", output.FormatCount(out.Rows)))
		r.Println(output.FormatKeyValue("Batches", fmt.Sprintf("%d", out.Batches)))
		r.Println(output.FormatKeyValue("Columns", fmt.Sprintf("%d", len(out.Columns))))
		r.Println()
		r.Header(2, "Columns")
		r.Println()
	default:
		r.Header(1, out.Path)
		r.Printf("%s rows, %d batches of %d, %d columns\n",
			output.FormatCount(out.Rows), out.Batches, file.BatchSize(), len(out.Columns))
		r.Println()
	}
	return r.Table(header, rows)
}

func schemaOutput(file *source.FileSource) output.SchemaOutput {
	rows, _ := file.RowCountHint()
	batches, _ := source.BatchCount(file)
	return output.SchemaOutput{
		Path:    file.Path(),
		Rows:    rows,
		Batches: batches,
		Columns: schemaColumns(file.Schema()),
	}
}

func schemaColumns(s core.Schema) []output.SchemaColumn {
	cols := make([]output.SchemaColumn, len(s))
	for i, f := range s {
		cols[i] = output.SchemaColumn{Name: f.Name, Kind: f.Kind.String(), DBType: f.DBType}
	}
	return cols
}
