package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"banter/internal/server"
)

// serveCmd runs the admin API server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the admin HTTP API",
	Long: `Starts the admin API: instance inspection and control, a loopback
respond endpoint, archive search, and Prometheus metrics.

The API is an operator surface. Chat platform adapters connect to the
runtime directly, not through this server.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		rt, err := buildRuntime(ctx, true)
		if err != nil {
			return err
		}
		defer rt.close(ctx)

		logger.Info("admin API starting",
			zap.String("version", cfg.Version),
			zap.String("addr", cfg.Server.Addr),
			zap.String("model", cfg.LLM.Model))

		srv := server.New(cfg.Server, rt.registry, rt.arch, rt.metrics)
		err = srv.Run(ctx)
		if err != nil {
			logger.Error("admin API exited", zap.Error(err))
		}
		return err
	},
}
