package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"fast3r/internal/config"
	"fast3r/internal/logging"
)

var (
	// Global flags
	configPath string
	verbose    bool
	timeout    time.Duration

	// Loaded in PersistentPreRunE
	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "fast3r",
	Short: "Fast3R - 3D reconstruction assistant",
	Long: `Fast3R is a conversational assistant for 3D reconstruction work.

It answers questions (with live search when needed), analyzes photos of a
subject, generates concept images and videos, transcribes voice notes, and
recommends reconstruction settings for new jobs.

Run without arguments to start the interactive chat interface.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}

		lc := logging.Config{
			Level:      cfg.Logging.Level,
			Format:     cfg.Logging.Format,
			Categories: cfg.Logging.Categories,
		}
		if verbose {
			lc.Level = "debug"
		}
		// The interactive UI owns the terminal, so its logs go to a file.
		if interactive(cmd) && cfg.Logging.File != "" {
			if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
				return fmt.Errorf("failed to create log directory: %w", err)
			}
			lc.File = cfg.Logging.File
		}
		if err := logging.Initialize(lc); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = logging.Base()
		logger.Debug("config loaded", zap.String("path", configPath), zap.String("command", cmd.Name()))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runChat,
}

// interactive reports whether cmd runs the TUI (the bare root or "chat").
func interactive(cmd *cobra.Command) bool {
	return !cmd.HasParent() || cmd.Name() == "chat"
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", ".fast3r/config.yaml", "Path to the YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Bound each provider request (0 uses the configured provider timeout)")

	rootCmd.AddCommand(
		chatCmd,
		askCmd,
		imageCmd,
		videoCmd,
		transcribeCmd,
		adviseCmd,
		jobCmd,
		usageCmd,
		configCmd,
	)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
