package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/jukebox/internal/metrics"
	"github.com/desertthunder/jukebox/internal/shared"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
// Common middleware includes logging, panic recovery, CORS and rate limiting.
type Middleware func(http.Handler) http.Handler

// Router defines the interface for HTTP routing and middleware management.
type Router interface {
	Use(middleware ...Middleware)                                             // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler, extra ...Middleware)    // Handle registers a handler for the specified method and path
	HandleFunc(method, path string, fn http.HandlerFunc, extra ...Middleware) // HandleFunc registers a plain function
	ServeHTTP(w http.ResponseWriter, r *http.Request)                         // ServeHTTP implements http.Handler for the entire router
}

// Shutdowner drains background work. [tasks.IngestEngine] satisfies it.
type Shutdowner interface {
	Shutdown(ctx context.Context) error
}

// HandlerOpts wires the full HTTP surface.
type HandlerOpts struct {
	API     *API
	Metrics *metrics.Metrics
	Config  shared.ServerConfig
	Logger  *log.Logger
}

// NewHandler builds the router with middleware, API routes, health and metrics endpoints.
func NewHandler(opts HandlerOpts) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	logger = shared.WithLogger(logger, "component", "server")

	var observer RequestObserver
	if opts.Metrics != nil {
		observer = opts.Metrics
	}

	router := NewBasicRouter()
	router.Use(Logging(logger, observer), Recover(logger), CORS(opts.Config.AllowedOrigins))

	router.HandleFunc(http.MethodGet, "/health", Health)
	if opts.Metrics != nil {
		router.Handle(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}
	// Preflight requests are answered by the CORS middleware.
	router.HandleFunc(http.MethodOptions, "/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	opts.API.Register(router, NewRateLimiter(opts.Config.IngestPerMinute, opts.Config.IngestPerMinute))
	return router
}

// Server runs the HTTP listener and drains ingest jobs on shutdown.
type Server struct {
	http            *http.Server
	background      Shutdowner
	shutdownTimeout time.Duration
	logger          *log.Logger
}

// ServerOpts configures a [Server].
type ServerOpts struct {
	Config     shared.ServerConfig
	Handler    http.Handler
	Background Shutdowner
	Logger     *log.Logger
}

// New creates a Server. Background, when set, is drained after the listener closes.
func New(opts ServerOpts) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	timeout := time.Duration(opts.Config.ShutdownTimeout) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Server{
		http: &http.Server{
			Addr:              opts.Config.Addr(),
			Handler:           opts.Handler,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       2 * time.Minute,
		},
		background:      opts.Background,
		shutdownTimeout: timeout,
		logger:          shared.WithLogger(logger, "component", "server"),
	}
}

// Run listens on the configured address until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.http.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down gracefully:
// in-flight requests get the shutdown timeout to finish, then background jobs are drained.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", ln.Addr().String())
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down", "timeout", s.shutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
	defer cancel()

	var errs []error
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if s.background != nil {
		if err := s.background.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
