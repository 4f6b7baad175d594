package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tendant/ecosort-api/internal/models"
	"github.com/tendant/ecosort-api/internal/server"
	"github.com/tendant/ecosort-api/internal/service"
	"github.com/tendant/ecosort-api/pkg/client"
	"github.com/tendant/ecosort-api/pkg/recycling"
)

var (
	classifyCity        string
	classifyRegion      string
	classifyConcurrency int
)

// classifyCmd runs one or more images through the upload flow
var classifyCmd = &cobra.Command{
	Use:   "classify IMAGE [IMAGE...]",
	Short: "Get disposal instructions for images",
	Long: `Get disposal instructions for one or more images.

Without --server the images are classified in-process using DATA_DIR and the
configured model. With --server they are posted to a running EcoSort API.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runClassify,
}

func init() {
	classifyCmd.Flags().StringVar(&classifyRegion, "region", "", "region name (required)")
	classifyCmd.Flags().StringVar(&classifyCity, "city", "", "city name, takes precedence over --region")
	classifyCmd.Flags().IntVar(&classifyConcurrency, "concurrency", 2, "images classified at once")
	_ = classifyCmd.MarkFlagRequired("region")
}

func runClassify(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	uploader, err := newUploader(ctx)
	if err != nil {
		return err
	}

	meta := recycling.UploadMetadata{Region: &classifyRegion}
	if classifyCity != "" {
		meta.City = &classifyCity
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	results := make([]*recycling.Response, len(args))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(classifyConcurrency, 1))
	for i, path := range args {
		g.Go(func() error {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}
			resp, err := uploader.HandleUpload(service.WithRequestID(gctx, ""), recycling.UploadRequest{
				Image:        data,
				ContentType:  http.DetectContentType(data),
				Filename:     filepath.Base(path),
				MetadataJSON: string(metaJSON),
			})
			if err != nil {
				return fmt.Errorf("%s: %s", path, describeError(err))
			}
			results[i] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for i, resp := range results {
		if len(results) > 1 {
			fmt.Fprintf(out, "== %s\n", args[i])
		}
		fmt.Fprintln(out, resp.Response)
	}
	return nil
}

// newUploader returns the HTTP client when --server is set, otherwise an
// in-process request handler
func newUploader(ctx context.Context) (recycling.Uploader, error) {
	if serverURL != "" {
		return client.New(serverURL), nil
	}

	model, err := models.New(ctx, cfg.Model, logger.Named("model"))
	if err != nil {
		return nil, err
	}
	srv, err := server.New(cfg, model, logger)
	if err != nil {
		return nil, err
	}
	return srv.Uploads(), nil
}

// describeError returns the caller-facing message for err
func describeError(err error) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Detail
	}
	if recycling.IsClientError(err) {
		return recycling.DetailOf(err, err.Error())
	}
	return err.Error()
}
