package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tendant/ecosort-api/internal/config"
	"github.com/tendant/ecosort-api/internal/handlers"
	"github.com/tendant/ecosort-api/internal/metrics"
	"github.com/tendant/ecosort-api/internal/models"
	"github.com/tendant/ecosort-api/internal/regions"
	"github.com/tendant/ecosort-api/internal/resolver"
	"github.com/tendant/ecosort-api/internal/service"
	"github.com/tendant/ecosort-api/internal/storage"
)

// Server wires configuration, storage, the model and HTTP routes together
type Server struct {
	cfg       config.Config
	logger    *zap.Logger
	metrics   *metrics.Metrics
	documents *storage.FilesystemStore
	uploads   *service.UploadService
	handler   http.Handler
}

// New builds a server around an already constructed vision model
func New(cfg config.Config, model models.VisionModel, logger *zap.Logger) (*Server, error) {
	documents, err := storage.NewFilesystemStore(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	stager, err := storage.NewStager(cfg.UploadDir)
	if err != nil {
		return nil, err
	}
	catalog, err := regions.LoadCatalog(cfg.RegionAliasesFile)
	if err != nil {
		return nil, err
	}

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}

	res := resolver.New(documents, model,
		resolver.WithImageMaxDim(cfg.Model.ImageMaxDim),
		resolver.WithMetrics(m),
		resolver.WithLogger(logger.Named("resolver")),
	)

	uploads := service.NewUploadService(service.Deps{
		Documents:    documents,
		Stager:       stager,
		Resolver:     res,
		Catalog:      catalog,
		Metrics:      m,
		Logger:       logger.Named("upload"),
		MaxImageSize: cfg.MaxImageSize,
	})

	s := &Server{
		cfg:       cfg,
		logger:    logger,
		metrics:   m,
		documents: documents,
		uploads:   uploads,
	}
	s.handler = s.routes()

	logger.Info("Server configured",
		zap.String("model", model.Name()),
		zap.String("data_dir", cfg.DataDir),
		zap.String("upload_dir", stager.Dir()),
		zap.Int64("max_image_size", cfg.MaxImageSize),
		zap.Int("region_aliases", catalog.Len()),
		zap.Strings("allowed_origins", cfg.Origins()))

	return s, nil
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Uploads returns the request handler used by the HTTP layer
func (s *Server) Uploads() *service.UploadService {
	return s.uploads
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(s.recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.Origins(),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	uploadHandler := handlers.NewUploadHandler(s.uploads, s.cfg.MaxImageSize, s.logger.Named("http"))
	regionsHandler := handlers.NewRegionsHandler(s.documents, s.logger.Named("http"))

	r.Get("/", handlers.HandleIndex)
	r.Get("/health", handlers.HandleHealth)
	r.Get("/regions", regionsHandler.HandleList)
	r.Post("/upload-image", uploadHandler.HandleUpload)
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(s.cfg.StaticDir))))
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	return r
}

// requestLogger echoes the request ID and logs one line per request
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(middleware.RequestIDHeader, middleware.GetReqID(r.Context()))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("HTTP request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)))
	})
}

// recoverer turns panics into the generic 500 body. If the handler already started the
// response, the panic is only logged.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.logger.Error("Panic while handling request",
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.Any("panic", rec),
					zap.Stack("stack"))
				if ww.Status() != 0 {
					return
				}
				ww.Header().Set("Content-Type", "application/json")
				ww.WriteHeader(http.StatusInternalServerError)
				fmt.Fprintf(ww, `{"detail":%q}`, handlers.InternalErrorDetail)
			}
		}()
		next.ServeHTTP(ww, r)
	})
}

// Run serves on cfg.Addr() until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("EcoSort API ready", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		s.logger.Info("Server stopped")
		return nil
	})

	return g.Wait()
}
