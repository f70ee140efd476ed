// Package api serves the public feed endpoints and the ingest trigger.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/lueurxax/companion-radar/internal/pipeline"
	"github.com/lueurxax/companion-radar/internal/storage"
)

const shutdownTimeout = 5 * time.Second

// CycleRunner triggers one ingest cycle; implemented by pipeline.Runner.
type CycleRunner interface {
	RunCycle(ctx context.Context) (*pipeline.Result, error)
}

type Server struct {
	db           *storage.DB
	runner       CycleRunner
	ingestSecret string
	cronSecret   string
	port         int
	logger       *zerolog.Logger
}

func NewServer(db *storage.DB, runner CycleRunner, ingestSecret, cronSecret string, port int, logger *zerolog.Logger) *Server {
	return &Server{
		db:           db,
		runner:       runner,
		ingestSecret: ingestSecret,
		cronSecret:   cronSecret,
		port:         port,
		logger:       logger,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Cron-Secret"},
		MaxAge:         300,
	}))

	r.Get("/clusters", s.handleClusters)
	r.Get("/platforms", s.handlePlatforms)
	r.Get("/ingest", s.handleIngestRuns)
	r.Post("/ingest", s.handleTriggerIngest)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprint(w, "OK")
	})

	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		if err := s.db.Pool.Ping(req.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = fmt.Fprintf(w, "DB error: %v", err)

			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprint(w, "OK")
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, req.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, req)

		s.logger.Info().
			Str("method", req.Method).
			Str("path", req.URL.Path).
			Str("remote", req.RemoteAddr).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

// Start serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.Router(),
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info().Int("port", s.port).Msg("API server starting")

	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}

	return nil
}
