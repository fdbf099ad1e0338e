// Package api provides the HTTP API over the published sentiment tables.
//
// It serves the per-ticker aggregate, the top-ticker join and the sync
// status, and lets a client trigger a sync run.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/seenimoa/tickersent/internal/aggregate"
	"github.com/seenimoa/tickersent/internal/config"
	"github.com/seenimoa/tickersent/internal/ingest"
	"github.com/seenimoa/tickersent/internal/logger"
	"github.com/seenimoa/tickersent/internal/store"
	"github.com/seenimoa/tickersent/pkg/models"
	"github.com/seenimoa/tickersent/pkg/utils"
)

// Version is reported by /health.
var Version = "dev"

// Server is the HTTP API server.
type Server struct {
	router chi.Router
	cfg    *config.Config
	runner *ingest.Runner
	log    logrus.FieldLogger

	// base outlives requests; syncs started over HTTP run under it.
	base context.Context
}

// NewServer creates a configured API server with all routes and middleware.
func NewServer(cfg *config.Config, runner *ingest.Runner, log logrus.FieldLogger) *Server {
	s := &Server{
		cfg:    cfg,
		runner: runner,
		log:    logger.OrDiscard(log),
		base:   context.Background(),
	}
	s.router = s.buildRouter()
	return s
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully and waits for an in-flight sync to finish.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.base = ctx
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("api listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	s.log.Info("shutting down api server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	err := httpSrv.Shutdown(shutdownCtx)
	s.runner.Wait()
	return err
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Published tables
		r.Get("/aggregates", s.handleAggregates)
		r.Get("/aggregates/{ticker}", s.handleAggregate)
		r.Get("/top", s.handleTop)

		// Sync
		r.Get("/status", s.handleStatus)
		r.Post("/sync", s.handleSync)
		r.Post("/sync/stop", s.handleStop)

		// Configuration
		r.Get("/config", s.handleGetConfig)
		r.Get("/config/keys", s.handleGetConfigKeys)
	})

	return r
}

// requestLogger logs each request through logrus.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start).String(),
			"request_id": middleware.GetReqID(r.Context()),
		}).Debug("http request")
	})
}

// ============================================================
// Request / Response types
// ============================================================

// APIResponse is the standard JSON envelope.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// StatusResponse is the body of GET /api/v1/status.
type StatusResponse struct {
	Running   bool             `json:"running"`
	State     *store.SyncState `json:"state,omitempty"`
	LastRun   *ingest.Report   `json:"last_run,omitempty"`
	LastError string           `json:"last_error,omitempty"`
}

// ============================================================
// Handlers
// ============================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"status":        "ok",
			"version":       Version,
			"market_status": utils.MarketStatus(),
			"time_et":       utils.FormatDateTimeET(utils.NowET()),
		},
	})
}

// loadAggregates reads the published aggregate. A table not yet published
// reads as empty.
func (s *Server) loadAggregates() (map[string]models.TickerAggregate, error) {
	aggs, err := aggregate.ReadTable(s.cfg.Data.Path(s.cfg.Data.AggregateFile))
	if errors.Is(err, store.ErrInputNotFound) || errors.Is(err, store.ErrEmptyInput) {
		return map[string]models.TickerAggregate{}, nil
	}
	return aggs, err
}

func (s *Server) handleAggregates(w http.ResponseWriter, r *http.Request) {
	aggs, err := s.loadAggregates()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    aggregate.Sorted(aggs),
	})
}

func (s *Server) handleAggregate(w http.ResponseWriter, r *http.Request) {
	ticker := utils.NormalizeTicker(chi.URLParam(r, "ticker"))
	if !utils.IsValidTicker(ticker) {
		writeError(w, http.StatusBadRequest, "invalid ticker")
		return
	}
	aggs, err := s.loadAggregates()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	agg, ok := aggs[ticker]
	if !ok {
		writeError(w, http.StatusNotFound, "no sentiment for "+ticker)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: agg})
}

func (s *Server) handleTop(w http.ResponseWriter, r *http.Request) {
	n := s.cfg.Aggregate.TopN
	if q := r.URL.Query().Get("n"); q != "" {
		v, err := strconv.Atoi(q)
		if err != nil || v <= 0 {
			writeError(w, http.StatusBadRequest, "n must be a positive integer")
			return
		}
		n = v
	}
	aggs, err := s.loadAggregates()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	prices, err := aggregate.ReadPrices(s.cfg.Data.Path(s.cfg.Data.PriceFile))
	switch {
	case errors.Is(err, store.ErrInputNotFound), errors.Is(err, store.ErrEmptyInput):
		prices = map[string]models.PriceRow{}
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	top := aggregate.TopTickers(aggs, prices, n)
	if top == nil {
		top = []models.TopTicker{}
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: top})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{Running: s.runner.Running()}
	state, ok, err := s.runner.Syncer().State()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if ok {
		state.ProcessedKeys = nil
		resp.State = &state
	}
	last, lastErr := s.runner.Last()
	resp.LastRun = last
	if lastErr != nil {
		resp.LastError = lastErr.Error()
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: resp})
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if err := s.runner.Trigger(s.base); err != nil {
		if errors.Is(err, ingest.ErrRunInProgress) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, APIResponse{
		Success: true,
		Data:    map[string]string{"status": "started"},
	})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if !s.runner.Stop() {
		writeError(w, http.StatusConflict, "no sync run in progress")
		return
	}
	writeJSON(w, http.StatusAccepted, APIResponse{
		Success: true,
		Data:    map[string]string{"status": "stopping"},
	})
}

// ============================================================
// Helpers
// ============================================================

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Errorf("failed to write JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}
