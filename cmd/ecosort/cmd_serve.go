package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tendant/ecosort-api/internal/models"
	"github.com/tendant/ecosort-api/internal/server"
)

// serveCmd runs the HTTP API
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the EcoSort HTTP API",
	Long: `Run the EcoSort HTTP API.

Endpoints:
  GET  /              - Redirect to the static landing page
  GET  /health        - Health check
  GET  /regions       - Regions with instruction documents
  POST /upload-image  - Classify an image (multipart: image, metadata)
  GET  /metrics       - Prometheus metrics (METRICS_ENABLED)`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("EcoSort API starting",
		zap.String("addr", cfg.Addr()),
		zap.String("provider", cfg.Model.Provider),
		zap.String("model", cfg.Model.Name))

	model, err := models.New(ctx, cfg.Model, logger.Named("model"))
	if err != nil {
		return err
	}

	srv, err := server.New(cfg, model, logger)
	if err != nil {
		return err
	}

	return srv.Run(ctx)
}
