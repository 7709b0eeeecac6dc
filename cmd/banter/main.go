// Package main provides the banter CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"banter/internal/config"
	"banter/internal/logging"
)

var (
	// Global flags
	cfgPath string
	debug   bool

	cfg *config.Config

	// logger is the process-level structured logger; category file logs
	// stay inside internal/logging.
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "banter",
	Short: "banter - persona chatbot runtime",
	Long: `banter runs an LLM-backed persona across chat conversations.

Model output streams through an in-band bracket command protocol:
the persona talks with [SEND: ...], thinks with [NOTE: ...], and
reacts with [REACT: ...]. Structured tool calls cover GIF search,
wiki lookups, local datasets, and long-term memory.

Run without arguments to start the interactive chat interface.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional; real environments set variables directly
		_ = godotenv.Load()

		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if debug {
			cfg.Logging.Debug = true
			cfg.Logging.Level = "debug"
		}

		zcfg := zap.NewProductionConfig()
		if cfg.Logging.Debug {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if err := logging.Initialize(cfg.StateDir); err != nil {
			return err
		}
		return logging.Configure(logging.Options{
			Debug:      cfg.Logging.Debug,
			Level:      cfg.Logging.Level,
			Categories: cfg.Logging.Categories,
		})
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "banter.yaml", "path to the config file")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(instancesCmd)
	rootCmd.AddCommand(statusCmd)

	instancesCmd.AddCommand(instancesListCmd)
	instancesCmd.AddCommand(instancesShowCmd)
	instancesCmd.AddCommand(instancesResetCmd)
	instancesCmd.AddCommand(instancesRemoveCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
