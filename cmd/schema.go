package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/sheetchat/internal/dataset"
	"github.com/KaramelBytes/sheetchat/internal/frame"
	"github.com/KaramelBytes/sheetchat/internal/ingest"
	"github.com/KaramelBytes/sheetchat/internal/prompt"
	"github.com/KaramelBytes/sheetchat/internal/render"
	"github.com/KaramelBytes/sheetchat/internal/utils"
)

var schemaPrintPrompt bool

var schemaCmd = &cobra.Command{
	Use:   "schema <file>",
	Short: "Describe a file the way the model will see it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		df, err := ingest.ReadFile(args[0], ingestOptions(sheetName, sheetIndex))
		if err != nil {
			return fmt.Errorf("load %s: %w", args[0], err)
		}
		out := cmd.OutOrStdout()
		if err := dataset.Check(df); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "⚠ Warning: %v\n", err)
		}
		if err := writeSchema(out, args[0], df); err != nil {
			return err
		}
		p := prompt.Build(dataset.Summarize(df), "")
		fmt.Fprintf(out, "Prompt tokens (est.): %d\n", utils.CountTokens(p))
		if schemaPrintPrompt {
			fmt.Fprintln(out, "\n--print-prompt --")
			fmt.Fprintln(out, p)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
	schemaCmd.Flags().StringVar(&sheetName, "sheet", "", "XLSX sheet name")
	schemaCmd.Flags().IntVar(&sheetIndex, "sheet-index", 0, "XLSX sheet number, 1-based (used when --sheet is empty)")
	schemaCmd.Flags().BoolVar(&schemaPrintPrompt, "print-prompt", false, "print the full prompt with an empty question")
}

// writeSchema prints one row per column with its kind and sample values.
func writeSchema(w io.Writer, name string, df *frame.Frame) error {
	s := dataset.Summarize(df)
	fmt.Fprintf(w, "%s: %d rows, %d columns\n", name, s.Rows, len(s.Columns))

	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Column", "Type", "Samples"})
	for _, c := range s.Columns {
		samples := make([]string, len(c.Samples))
		for i, v := range c.Samples {
			samples[i] = render.FormatValue(v)
		}
		table.Append([]string{c.Name, string(c.Kind), strings.Join(samples, ", ")})
	}
	table.Render()
	return nil
}
