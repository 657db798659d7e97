package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skyrag-assistant/server/internal/agent"
	"github.com/skyrag-assistant/server/internal/ingestion"
	"github.com/skyrag-assistant/server/internal/metrics"
	logx "github.com/skyrag-assistant/server/pkg/logger"
)

const maxUploadBytes = 32 << 20

// Assistant answers queries and exposes session transcripts.
type Assistant interface {
	Reply(ctx context.Context, sessionID, query string) agent.Reply
	History(ctx context.Context, sessionID string) ([]*schema.Message, error)
	ClearHistory(ctx context.Context, sessionID string) error
}

// Indexer adds a PDF to the vector index.
type Indexer interface {
	IndexPDF(ctx context.Context, path string) (*ingestion.IndexResult, error)
}

// Resetter empties the vector index.
type Resetter interface {
	Clear(ctx context.Context) (int64, error)
}

type Config struct {
	Assistant Assistant
	Indexer   Indexer
	Resetter  Resetter
	Metrics   *metrics.Metrics
	Gatherer  prometheus.Gatherer
}

// Server is the HTTP surface over the assistant.
type Server struct {
	assistant Assistant
	indexer   Indexer
	resetter  Resetter
	metrics   *metrics.Metrics
	gatherer  prometheus.Gatherer
}

func New(cfg Config) *Server {
	g := cfg.Gatherer
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return &Server{
		assistant: cfg.Assistant,
		indexer:   cfg.Indexer,
		resetter:  cfg.Resetter,
		metrics:   cfg.Metrics,
		gatherer:  g,
	}
}

func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.MethodNotAllowedHandler = http.HandlerFunc(handleMethodNotAllowed)

	// Routes stay on the root router: mux only reports 405 for method
	// mismatches there, subrouters answer 404.
	router.HandleFunc("/api/query", s.handleQuery).Methods(http.MethodPost)
	router.HandleFunc("/api/sessions/{id}/messages", s.handleGetMessages).Methods(http.MethodGet)
	router.HandleFunc("/api/sessions/{id}/messages", s.handleDeleteMessages).Methods(http.MethodDelete)
	router.HandleFunc("/api/documents", s.handleUploadDocuments).Methods(http.MethodPost)
	router.HandleFunc("/api/documents", s.handleResetDocuments).Methods(http.MethodDelete)

	router.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	return router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logx.Info().Str("addr", addr).Msg("HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logx.Info().Msg("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
