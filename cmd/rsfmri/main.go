package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"rsfmri/pkg/command"
	"rsfmri/pkg/config"
)

var (
	// Global flags
	verbose    bool
	configPath string

	// Loaded in PersistentPreRunE
	cfg    *config.Config
	logger *zap.Logger

	// runner executes external tools; tests swap it for a scripted one.
	runner command.Runner
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "rsfmri",
	Short: "Helpers for resting-state fMRI preprocessing",
	Long: `rsfmri bundles the small steps around an SPM preprocessing run:
listing run images, slice-timing variables for interleaved acquisitions,
gzip/gunzip of images, and realign & unwarp through MATLAB.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return err
		}

		if logger == nil {
			zcfg := zap.NewProductionConfig()
			if verbose || cfg.Output.Verbose {
				zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			logger, err = zcfg.Build()
			if err != nil {
				return errors.Wrap(err, "failed to initialize logger")
			}
		}
		if runner == nil {
			runner = command.NewExecRunner(logger)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "rsfmri.yaml", "configuration file")

	rootCmd.AddCommand(
		filesCmd,
		datestrCmd,
		slicetimeCmd,
		zipCmd,
		unzipCmd,
		realignCmd,
		motionCmd,
		configCmd,
	)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
