// Package server exposes the conversion engine over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wbrown/img2ascii"
)

// DefaultMaxUploadSize bounds request bodies for /api/convert.
const DefaultMaxUploadSize = 32 << 20

// Server serves the conversion API.
type Server struct {
	engine     *img2ascii.Engine
	defaults   img2ascii.Options
	rasterOpts []img2ascii.RasterizerOption
	maxUpload  int64
	logger     hclog.Logger
	router     *mux.Router
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger hclog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithDefaults sets the options query parameters are applied over.
func WithDefaults(opts img2ascii.Options) Option {
	return func(s *Server) {
		s.defaults = opts
	}
}

// WithRasterizerOptions configures the rasterizer used for image output.
func WithRasterizerOptions(opts ...img2ascii.RasterizerOption) Option {
	return func(s *Server) {
		s.rasterOpts = opts
	}
}

// WithMaxUploadSize bounds request bodies.
func WithMaxUploadSize(n int64) Option {
	return func(s *Server) {
		s.maxUpload = n
	}
}

// New creates a Server around engine.
func New(engine *img2ascii.Engine, opts ...Option) *Server {
	s := &Server{
		engine:    engine,
		defaults:  img2ascii.DefaultOptions(),
		maxUpload: DefaultMaxUploadSize,
		logger:    hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(crossOriginIsolation, s.observe)

	r.HandleFunc("/healthz", s.healthz).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/converters", s.listConverters).Methods("GET")
	api.HandleFunc("/convert", s.convert).Methods("POST")

	// Router middleware only wraps matched routes.
	r.NotFoundHandler = crossOriginIsolation(s.observe(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, errors.New("not found"))
	})))
	r.MethodNotAllowedHandler = crossOriginIsolation(s.observe(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
	})))
	return r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	s.logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}
