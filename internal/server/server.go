// Package server exposes the bundle endpoint over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matzehuels/snackager/pkg/coordinator"
	snerrors "github.com/matzehuels/snackager/pkg/errors"
	"github.com/matzehuels/snackager/pkg/request"
)

const shutdownTimeout = 10 * time.Second

// Bundler answers bundle requests. *coordinator.Coordinator implements it.
type Bundler interface {
	Bundle(ctx context.Context, req *request.Request) (*coordinator.Response, error)
}

// Config configures a Server.
type Config struct {
	Bundler  Bundler
	Parser   *request.Parser
	Logger   *log.Logger
	Health   func(ctx context.Context) error // Checked by /healthz; nil means always healthy
	Gatherer prometheus.Gatherer             // Served on /metrics; nil disables the endpoint
}

// Server routes HTTP requests to the bundler.
type Server struct {
	router   chi.Router
	bundler  Bundler
	parser   *request.Parser
	logger   *log.Logger
	health   func(ctx context.Context) error
	gatherer prometheus.Gatherer
}

// New creates a Server.
func New(cfg Config) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		bundler:  cfg.Bundler,
		parser:   cfg.Parser,
		logger:   cfg.Logger,
		health:   cfg.Health,
		gatherer: cfg.Gatherer,
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	if s.parser == nil {
		s.parser = request.NewParser(nil)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.logRequests)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/bundle/*", s.handleBundle)
	s.router.Get("/healthz", s.handleHealth)
	if s.gatherer != nil {
		s.router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleBundle(w http.ResponseWriter, r *http.Request) {
	spec, err := url.PathUnescape(chi.URLParam(r, "*"))
	if err != nil {
		s.writeError(w, r, snerrors.Wrap(snerrors.ErrCodeInvalidRequest, err, "invalid bundle path"))
		return
	}
	req, err := s.parser.ParseWithQuery(spec, r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp, err := s.bundler.Bundle(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			s.logger.Warn("health check failed", "err", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type errorBody struct {
	Error string        `json:"error"`
	Code  snerrors.Code `json:"code"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := snerrors.HTTPStatus(err)
	code := snerrors.GetCode(err)
	if code == "" {
		code = snerrors.ErrCodeInternal
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("bundle request failed", "path", r.URL.Path, "err", err)
	}
	writeJSON(w, status, errorBody{Error: snerrors.UserMessage(err), Code: code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// logRequests logs every request once it completes.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
