package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tendant/ecosort-api/internal/config"
	"github.com/tendant/ecosort-api/internal/logging"
)

var (
	cfg    config.Config
	logger *zap.Logger

	serverURL string
)

var rootCmd = &cobra.Command{
	Use:   "ecosort",
	Short: "EcoSort - region-aware recycling instructions from a photo",
	Long: `EcoSort classifies a photo of a waste item and explains how to dispose
of it according to the recycling rules of a city or region.

Configuration is read from the environment and an optional .env file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		logger, err = logging.New(cfg.LogLevel, cfg.LogFormat)
		if err != nil {
			return err
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
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "",
		"talk to a running EcoSort API at this URL instead of working in-process")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(regionsCmd)
	rootCmd.AddCommand(classifyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
