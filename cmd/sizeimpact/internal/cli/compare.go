package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/sizeimpact/cmd/sizeimpact/internal/store"
	"github.com/albertocavalcante/sizeimpact/pkg/config"
	"github.com/albertocavalcante/sizeimpact/pkg/impact"
	"github.com/albertocavalcante/sizeimpact/pkg/report"
)

var compareFlags struct {
	dir      string
	json     bool
	maxRows  int
	ordering string
	open     bool
	metrics  []string
}

var compareCmd = &cobra.Command{
	Use:   "compare BEFORE AFTER",
	Short: "Compare two snapshots and report the size impact",
	Long: `Compares the snapshot taken before a change with the one taken after it.

Files are matched by their manifest name when a manifest maps them, so a
content-hashed file that changed name is reported once, as renamed or modified,
instead of as a removal plus an addition.

The report is markdown, one collapsible section per group. Use --json for the
raw comparison result:

  { "<group>": { "<file>": { "beforeMerge": {...}, "afterMerge": {...} } } }`,
	Args: cobra.ExactArgs(2),
	RunE: runCompare,
}

func init() {
	compareCmd.Flags().StringVar(&compareFlags.dir, "dir", ".",
		"Project directory (for report configuration)")
	compareCmd.Flags().BoolVar(&compareFlags.json, "json", false,
		"Output the comparison result as JSON")
	compareCmd.Flags().IntVar(&compareFlags.maxRows, "max-rows", 0,
		"Maximum rows per group table (overrides config, 0 = unlimited)")
	compareCmd.Flags().StringVar(&compareFlags.ordering, "ordering", "",
		"Row ordering: size_impact or filesystem (overrides config)")
	compareCmd.Flags().BoolVar(&compareFlags.open, "open", false,
		"Render group sections expanded (overrides config)")
	compareCmd.Flags().StringSliceVar(&compareFlags.metrics, "metrics", nil,
		"Metric columns to show (comma-separated, default: all recorded)")

	rootCmd.AddCommand(compareCmd)
}

func runCompare(cmd *cobra.Command, args []string) error {
	before, err := store.NewJSONStore(args[0]).Load()
	if err != nil {
		return fmt.Errorf("before: %w", err)
	}
	after, err := store.NewJSONStore(args[1]).Load()
	if err != nil {
		return fmt.Errorf("after: %w", err)
	}

	result := impact.CompareSnapshots(&before, &after)
	if compareFlags.json {
		return outputJSON(cmd.OutOrStdout(), result)
	}

	dir, err := projectDir(compareFlags.dir)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(dir, func(cfg *config.Config) {
		flags := cmd.Flags()
		if flags.Changed("max-rows") {
			cfg.Report.MaxRowsPerTable = compareFlags.maxRows
		}
		if flags.Changed("ordering") {
			cfg.Report.FilesOrdering = compareFlags.ordering
		}
		if flags.Changed("open") {
			open := compareFlags.open
			cfg.Report.OpenGroups = &open
		}
	})
	if err != nil {
		return err
	}

	opts := report.FromConfig(cfg.Report)
	opts.Metrics = compareFlags.metrics
	_, err = fmt.Fprint(cmd.OutOrStdout(), report.Format(result, opts))
	return err
}
