package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/oshokin/release-watcher/internal/config"
	"github.com/oshokin/release-watcher/internal/logger"
	"github.com/oshokin/release-watcher/internal/service/watcher"
	"github.com/oshokin/release-watcher/internal/version"
)

var (
	// configPath stores the configuration file path.
	configPath string
	// manifestPath overrides the manifest location from config.
	manifestPath string
	// logLevel is the minimal level written to stderr.
	logLevel string
	// dryRun resolves versions without writing anything.
	dryRun bool

	// rootCmd represents the base command for a single upstream check.
	rootCmd = &cobra.Command{
		Use:   "release-watcher",
		Short: "Check upstream for a new release and prepare the package update.",
		Long: `Compares the packaged version with the newest upstream release.

When upstream is newer and no update branch exists yet, downloads every release
asset, writes its source descriptor with a SHA-256 checksum and bumps the
manifest version. The outcome (VERSION, BRANCH, PROCEED) is appended to the
file named by $GITHUB_ENV so the next workflow step can open a pull request.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			level, ok := logger.ParseLogLevel(logLevel)
			if !ok {
				return fmt.Errorf("unknown log level %q", logLevel)
			}

			log := logger.New(zap.NewAtomicLevelAt(level), os.Stderr)
			defer func() {
				_ = log.Sync()
			}()

			ctx = logger.ToContext(ctx, log)

			return watcher.Run(ctx, &watcher.Options{
				ConfigPath:   configPath,
				ManifestPath: manifestPath,
				DryRun:       dryRun,
			})
		},
	}
)

// Execute runs the release-watcher CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "release-watcher:", err)
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVarP(&manifestPath, "manifest", "m", "", "path to manifest.toml or manifest.json")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "resolve and checksum without writing files")
}
