package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/sizeimpact/cmd/sizeimpact/internal/collect"
	"github.com/albertocavalcante/sizeimpact/cmd/sizeimpact/internal/runner"
	"github.com/albertocavalcante/sizeimpact/cmd/sizeimpact/internal/store"
	"github.com/albertocavalcante/sizeimpact/internal/log"
	"github.com/albertocavalcante/sizeimpact/pkg/config"
	"github.com/albertocavalcante/sizeimpact/pkg/measure"
)

var snapshotFlags struct {
	dir     string
	out     string
	install bool
	build   bool
	metrics []string
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Record file hashes and sizes of the build output",
	Long: `Walks every configured group directory and records, for each file, its
content hash and its size under every enabled metric. Manifest files are parsed
so that content-hashed file names can be matched across builds.

With --install and --build the project's install and build commands
(project.install_command, project.build_command) run first.

The snapshot document is written to --out, or to stdout when omitted.`,
	Args: cobra.NoArgs,
	RunE: runSnapshot,
}

func init() {
	snapshotCmd.Flags().StringVar(&snapshotFlags.dir, "dir", ".",
		"Project directory")
	snapshotCmd.Flags().StringVarP(&snapshotFlags.out, "out", "o", "",
		"Write the snapshot to this file instead of stdout")
	snapshotCmd.Flags().BoolVar(&snapshotFlags.install, "install", false,
		"Run the install command first")
	snapshotCmd.Flags().BoolVar(&snapshotFlags.build, "build", false,
		"Run the build command first")
	snapshotCmd.Flags().StringSliceVar(&snapshotFlags.metrics, "metrics", nil,
		"Metrics to record (comma-separated, overrides config)")

	rootCmd.AddCommand(snapshotCmd)
}

func runSnapshot(cmd *cobra.Command, _ []string) error {
	dir, err := projectDir(snapshotFlags.dir)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(dir, func(cfg *config.Config) {
		if len(snapshotFlags.metrics) > 0 {
			cfg.Metrics.Enabled = snapshotFlags.metrics
		}
	})
	if err != nil {
		return err
	}
	metrics, err := measure.Lookup(cfg.Metrics.Enabled)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(contextOf(cmd), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	r := runner.New(dir, runner.WithOutput(cmd.ErrOrStderr(), cmd.ErrOrStderr()))
	if snapshotFlags.install {
		if err := r.Run(ctx, cfg.Project.InstallCommand); err != nil {
			return err
		}
	}
	if snapshotFlags.build {
		if err := r.Run(ctx, cfg.Project.BuildCommand); err != nil {
			return err
		}
	}

	c := collect.New(collect.Options{
		Root:    dir,
		Groups:  cfg.Groups,
		Metrics: metrics,
	})
	snap, err := c.Collect(ctx)
	if err != nil {
		return err
	}

	if snapshotFlags.out == "" {
		return store.Encode(cmd.OutOrStdout(), snap)
	}
	st := store.NewJSONStore(snapshotFlags.out)
	if err := st.Save(snap); err != nil {
		return err
	}
	log.Info("snapshot written", "path", st.Path(), "groups", snap.Groups.Len())
	return nil
}

// contextOf returns the command context, or a background context when the
// command runs outside Execute.
func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
