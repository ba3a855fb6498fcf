package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/sizeimpact/cmd/sizeimpact/internal/collect"
	"github.com/albertocavalcante/sizeimpact/cmd/sizeimpact/internal/store"
	"github.com/albertocavalcante/sizeimpact/cmd/sizeimpact/internal/watch"
	"github.com/albertocavalcante/sizeimpact/internal/log"
	"github.com/albertocavalcante/sizeimpact/pkg/impact"
	"github.com/albertocavalcante/sizeimpact/pkg/measure"
	"github.com/albertocavalcante/sizeimpact/pkg/report"
)

var watchFlags struct {
	dir      string
	baseline string
	debounce int
	verbose  bool
	json     bool
	noColor  bool
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-compare against a baseline whenever the build output changes",
	Long: `Watches the configured group directories. After each burst of changes
(for example a rebuild in watch mode) the output is snapshotted again and
compared with the baseline snapshot; the report is printed to stdout.

Example output:

  $ sizeimpact watch --baseline before.json

  sizeimpact: watching dist in /path/to/project
  sizeimpact: ready

  [14:32:15] 12 files changed, comparing...
  [14:32:16] ~ 3 files differ from baseline

Press Ctrl+C to stop watching.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchFlags.dir, "dir", ".",
		"Project directory")
	watchCmd.Flags().StringVar(&watchFlags.baseline, "baseline", "",
		"Snapshot file to compare against (required)")
	watchCmd.Flags().IntVar(&watchFlags.debounce, "debounce", 500,
		"Debounce window in milliseconds")
	watchCmd.Flags().BoolVar(&watchFlags.verbose, "verbose", false,
		"Show file-level changes")
	watchCmd.Flags().BoolVar(&watchFlags.json, "json", false,
		"Stream JSON events and results (for tooling integration)")
	watchCmd.Flags().BoolVar(&watchFlags.noColor, "no-color", false,
		"Disable colored output")
	_ = watchCmd.MarkFlagRequired("baseline")

	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	dir, err := projectDir(watchFlags.dir)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(dir, nil)
	if err != nil {
		return err
	}
	metrics, err := measure.Lookup(cfg.Metrics.Enabled)
	if err != nil {
		return err
	}

	baseline, err := store.NewJSONStore(watchFlags.baseline).Load()
	if err != nil {
		return fmt.Errorf("baseline: %w", err)
	}

	c := collect.New(collect.Options{
		Root:    dir,
		Groups:  cfg.Groups,
		Metrics: metrics,
	})
	opts := report.FromConfig(cfg.Report)
	out := cmd.OutOrStdout()

	handler := func(ctx context.Context, _ []string) (impact.Result, error) {
		snap, err := c.Collect(ctx)
		if err != nil {
			return nil, err
		}
		result := impact.CompareSnapshots(&baseline, &snap)
		if watchFlags.json {
			return result, outputJSON(out, result)
		}
		_, err = fmt.Fprint(out, report.Format(result, opts))
		return result, err
	}

	dirs := make([]string, len(cfg.Groups))
	for i, g := range cfg.Groups {
		dirs[i] = g.Directory
	}

	// Setup signal handling for graceful shutdown
	// Include SIGHUP to handle terminal hangup
	ctx, cancel := signal.NotifyContext(contextOf(cmd), os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	w, err := watch.New(watch.Config{
		Root:     dir,
		Dirs:     dirs,
		Debounce: watchFlags.debounce,
		Verbose:  watchFlags.verbose,
		NoColor:  watchFlags.noColor,
		JSON:     watchFlags.json,
		Writer:   cmd.ErrOrStderr(),
	}, handler)
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	if err := w.Run(ctx); err != nil {
		return err
	}
	stats := w.Stats()
	log.Component("watch").Info("watch session ended",
		"comparisons", stats.CompareCount,
		"errors", stats.ErrorCount,
		"duration", time.Since(stats.StartTime).Round(time.Second))
	return nil
}
