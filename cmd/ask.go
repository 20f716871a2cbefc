package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/sheetchat/internal/utils"
)

var (
	askJSON   bool
	askExport string
)

var askCmd = &cobra.Command{
	Use:   "ask <file> <question>",
	Short: "Ask a single question about a file and exit",
	Example: `  sheetchat ask sales.csv "What is the average income?"
  sheetchat ask sales.csv "Top 5 regions by sales" --export top5.csv`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := newChatSession(cfg)
		if err != nil {
			return err
		}
		if err := loadDataset(sess, args[0]); err != nil {
			return err
		}
		res, err := sess.ProcessQuery(cmd.Context(), strings.Join(args[1:], " "))
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if askJSON {
			b, err := utils.PrettyJSON(map[string]any{
				"query":   res.Query,
				"reply":   res.Reply,
				"kind":    res.Kind.String(),
				"outcome": res.Outcome(),
				"code":    res.Code,
				"trace":   res.Trace,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
		} else if err := printTurn(out, res); err != nil {
			return err
		}

		if askExport != "" {
			b, err := sess.ExportCSV()
			if err != nil {
				return err
			}
			if err := utils.SafeWriteFile(askExport, b); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "✓ Saved %s\n", askExport)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVar(&sheetName, "sheet", "", "XLSX sheet name")
	askCmd.Flags().IntVar(&sheetIndex, "sheet-index", 0, "XLSX sheet number, 1-based (used when --sheet is empty)")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the turn as JSON")
	askCmd.Flags().StringVar(&askExport, "export", "", "save a tabular answer as CSV to this path")
}
