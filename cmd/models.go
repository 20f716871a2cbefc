package cmd

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/sheetchat/internal/ai"
	"github.com/KaramelBytes/sheetchat/internal/utils"
)

var modelsJSON bool

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Manage or inspect model catalog and pricing",
	Example: `  sheetchat models show
  sheetchat models sync --file ./models.json --merge
  sheetchat models fetch --url https://example.com/models.json
  sheetchat models fetch --provider anthropic --output models.json`,
}

var modelsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current model catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		cat := ai.Catalog()
		if modelsJSON {
			b, err := utils.PrettyJSON(cat)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		}
		keys := make([]string, 0, len(cat))
		for k := range cat {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.SetAutoFormatHeaders(false)
		table.SetHeader([]string{"Model", "Context", "$/1K in", "$/1K out"})
		for _, k := range keys {
			m := cat[k]
			table.Append([]string{k, fmt.Sprintf("%d", m.ContextTokens), fmt.Sprintf("%.5f", m.InputPerK), fmt.Sprintf("%.5f", m.OutputPerK)})
		}
		table.Render()
		return nil
	},
}

var (
	syncPath  string
	syncMerge bool
)

var modelsSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Load model catalog/pricing from a JSON file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if syncPath == "" {
			return fmt.Errorf("--file is required")
		}
		m, err := ai.LoadCatalogFromJSON(syncPath)
		if err != nil {
			return fmt.Errorf("load catalog: %w", err)
		}
		applyCatalog(m, syncMerge)
		fmt.Fprintf(cmd.OutOrStdout(), "✓ %s model catalog from %s (%d models)\n", verb(syncMerge), syncPath, len(m))
		return nil
	},
}

var (
	fetchURL      string
	fetchOutput   string
	fetchMerge    bool
	fetchProvider string
)

var modelsFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch model catalog/pricing JSON from a URL, or apply a built-in preset",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		// Without a URL, a known provider preset is applied locally without network.
		if fetchURL == "" && fetchProvider != "" {
			name := normalizeProvider(fetchProvider)
			preset, ok := ai.PresetCatalog(name)
			if !ok {
				return fmt.Errorf("no built-in preset for provider %s (have %s)", fetchProvider, strings.Join(ai.Providers(), ", "))
			}
			applyCatalog(preset, fetchMerge)
			fmt.Fprintf(out, "✓ %s catalog with built-in '%s' preset\n", verb(fetchMerge), name)
			return writeCatalog(out, preset)
		}
		if fetchURL == "" {
			return fmt.Errorf("--url is required (or specify --provider with a known preset)")
		}
		m, err := ai.FetchCatalog(cmd.Context(), nil, fetchURL)
		if err != nil {
			return err
		}
		if err := writeCatalog(out, m); err != nil {
			return err
		}
		applyCatalog(m, fetchMerge)
		fmt.Fprintf(out, "✓ %s catalog from %s (%d models)\n", verb(fetchMerge), fetchURL, len(m))
		return nil
	},
}

func applyCatalog(m map[string]ai.ModelInfo, merge bool) {
	if merge {
		ai.MergeCatalog(m)
	} else {
		ai.OverrideCatalog(m)
	}
}

func writeCatalog(out io.Writer, m map[string]ai.ModelInfo) error {
	if fetchOutput == "" {
		return nil
	}
	data, err := utils.PrettyJSON(m)
	if err != nil {
		return err
	}
	if err := utils.SafeWriteFile(fetchOutput, data); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	fmt.Fprintf(out, "💾 Saved catalog to %s\n", fetchOutput)
	return nil
}

func verb(merge bool) string {
	if merge {
		return "Merged"
	}
	return "Replaced"
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.AddCommand(modelsShowCmd)
	modelsCmd.AddCommand(modelsSyncCmd)
	modelsCmd.AddCommand(modelsFetchCmd)

	modelsShowCmd.Flags().BoolVar(&modelsJSON, "json", false, "print the catalog as JSON")

	modelsSyncCmd.Flags().StringVar(&syncPath, "file", "", "path to JSON catalog file")
	modelsSyncCmd.Flags().BoolVar(&syncMerge, "merge", false, "merge into existing catalog instead of replacing")

	modelsFetchCmd.Flags().StringVar(&fetchURL, "url", "", "URL to JSON catalog file")
	modelsFetchCmd.Flags().StringVar(&fetchOutput, "output", "", "optional path to save the fetched JSON")
	modelsFetchCmd.Flags().BoolVar(&fetchMerge, "merge", false, "merge into existing catalog instead of replacing")
	modelsFetchCmd.Flags().StringVar(&fetchProvider, "provider", "", "built-in preset to apply when --url is not set (openrouter, anthropic, ollama)")
}
