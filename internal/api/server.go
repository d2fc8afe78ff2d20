// Package api serves the registry read-only over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/ahj-registry/internal/export"
	"github.com/sells-group/ahj-registry/internal/model"
)

const (
	defaultLimit = 20
	maxLimit     = 200
)

// Reader is the store surface the API reads.
type Reader interface {
	export.Reader
	SearchJurisdictions(ctx context.Context, query string, limit int) ([]model.Jurisdiction, error)
	ListRuns(ctx context.Context, limit int) ([]model.IngestRun, error)
}

type handlers struct {
	r        Reader
	exporter *export.Exporter
}

// NewRouter builds the API routes over r.
func NewRouter(r Reader, opts ...export.Option) http.Handler {
	h := &handlers{r: r, exporter: export.New(r, opts...)}

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(requestLogger)
	router.Use(chimiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	router.Get("/health", h.health)
	router.Route("/v1", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(30 * time.Second))
		r.Get("/export", h.export)
		r.Get("/jurisdictions", h.searchJurisdictions)
		r.Get("/jurisdictions/{state}", h.state)
		r.Get("/runs", h.runs)
	})
	return router
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) export(w http.ResponseWriter, r *http.Request) {
	doc, err := h.exporter.Build(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *handlers) state(w http.ResponseWriter, r *http.Request) {
	abbr := strings.ToUpper(chi.URLParam(r, "state"))
	doc, err := h.exporter.Build(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	node, ok := doc.Jurisdictions[abbr]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown state " + abbr})
		return
	}
	writeJSON(w, http.StatusOK, node)
}

func (h *handlers) searchJurisdictions(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	js, err := h.r.SearchJurisdictions(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	if js == nil {
		js = []model.Jurisdiction{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"jurisdictions": js, "count": len(js)})
}

func (h *handlers) runs(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	runs, err := h.r.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	if runs == nil {
		runs = []model.IngestRun{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs, "count": len(runs)})
}

// parseLimit reads ?limit=, defaulting to 20 and capping at 200.
func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, eris.Errorf("invalid limit %q", raw)
	}
	return min(n, maxLimit), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	if status >= http.StatusInternalServerError {
		zap.L().Error("api request failed",
			zap.String("component", "api"),
			zap.String("path", r.URL.Path),
			zap.String("request_id", chimiddleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		writeJSON(w, status, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			zap.L().Info("request completed",
				zap.String("component", "api"),
				zap.String("request_id", chimiddleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("elapsed", time.Since(start)),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}

// Server wraps an http.Server with graceful shutdown on context cancel.
type Server struct {
	srv *http.Server
}

// NewServer creates a server for handler listening on addr.
func NewServer(addr string, handler http.Handler) *Server {
	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}}
}

// Run serves until ctx is cancelled, then shuts down within ten seconds.
func (s *Server) Run(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		zap.L().Info("starting server", zap.String("component", "api"), zap.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- eris.Wrap(err, "api: listen")
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	zap.L().Info("shutting down server", zap.String("component", "api"))
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	return eris.Wrap(s.srv.Shutdown(shutdownCtx), "api: shutdown")
}
