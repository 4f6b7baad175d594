package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tendant/ecosort-api/internal/storage"
	"github.com/tendant/ecosort-api/pkg/client"
)

// regionsCmd lists region keys that have an instruction document
var regionsCmd = &cobra.Command{
	Use:   "regions",
	Short: "List regions with recycling instructions",
	Args:  cobra.NoArgs,
	RunE:  runRegions,
}

func runRegions(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var keys []string
	if serverURL != "" {
		var err error
		keys, err = client.New(serverURL).Regions(ctx)
		if err != nil {
			return fmt.Errorf("failed to list regions: %w", err)
		}
	} else {
		store, err := storage.NewFilesystemStore(cfg.DataDir)
		if err != nil {
			return err
		}
		keys, err = store.List(ctx)
		if err != nil {
			return fmt.Errorf("failed to list regions: %w", err)
		}
	}

	for _, k := range keys {
		fmt.Fprintln(cmd.OutOrStdout(), k)
	}
	return nil
}
