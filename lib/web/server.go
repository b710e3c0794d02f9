// Package web serves the pool status endpoints: JSON statistics, liveness
// and readiness probes, and Prometheus metrics.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-i2p/dbpool/lib/driver"
	"github.com/go-i2p/dbpool/lib/metrics"
	"github.com/go-i2p/dbpool/lib/pool"
)

// DefaultReadinessTimeout bounds the acquire and validation done by /readyz.
const DefaultReadinessTimeout = 2 * time.Second

// Pool is the part of *pool.Pool the status server uses.
type Pool interface {
	Stats() pool.Stats
	WithConnection(ctx context.Context, fn func(conn driver.Conn) error) error
}

// Server is the status HTTP server.
type Server struct {
	httpServer *http.Server
	router     chi.Router
	pool       Pool
	limiter    *RateLimiter
	logger     *slog.Logger
	readyWait  time.Duration

	mu      sync.RWMutex
	running bool
	addr    net.Addr
}

// Config holds status server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., "127.0.0.1:9470")
	ListenAddr string
	// Pool is the pool to report on.
	Pool Pool
	// Logger is the structured logger
	Logger *slog.Logger
	// RequestsPerSecond and Burst limit requests per client address.
	// Zero selects DefaultRateLimitConfig.
	RequestsPerSecond float64
	Burst             int
	// TrustProxyHeaders takes the client address from X-Forwarded-For or
	// X-Real-IP. Enable it only behind a reverse proxy.
	TrustProxyHeaders bool
	// ReadinessTimeout bounds /readyz. Zero means DefaultReadinessTimeout.
	ReadinessTimeout time.Duration
}

// New creates a status server. Call Start to begin serving and Stop to
// release the listener and the rate limiter.
func New(cfg Config) (*Server, error) {
	if cfg.Pool == nil {
		return nil, errors.New("web: pool is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ReadinessTimeout <= 0 {
		cfg.ReadinessTimeout = DefaultReadinessTimeout
	}

	rl := DefaultRateLimitConfig()
	rl.RequestsPerSecond = cfg.RequestsPerSecond
	rl.BurstSize = cfg.Burst

	s := &Server{
		pool:      cfg.Pool,
		limiter:   NewRateLimiter(rl),
		logger:    cfg.Logger,
		readyWait: cfg.ReadinessTimeout,
	}
	s.limiter.SetOnReject(func(ip, path string) {
		s.logger.Warn("rate limited", "remote", ip, "path", path)
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if cfg.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(s.limiter.Middleware)

	r.Get("/stats", s.handleStats)
	r.Get("/healthz", s.handleLiveness)
	r.Get("/readyz", s.handleReadiness)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	s.router = r

	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s, nil
}

// Handler returns the router, for embedding in another server or tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts serving in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("server already running")
	}

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	s.running = true
	s.addr = ln.Addr()

	s.logger.Info("status server started", "addr", s.addr.String())

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound address once started, or nil.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// Stop stops the server gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		s.limiter.Close()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	defer s.limiter.Close()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.logger.Info("status server stopped")
	return nil
}

// logRequests logs every request at debug level.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		w.Header().Set("X-Content-Type-Options", "nosniff")
		next.ServeHTTP(ww, r)

		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"remote", r.RemoteAddr,
			"status", ww.Status(),
			"request_id", middleware.GetReqID(r.Context()),
			"duration", time.Since(start),
		)
	})
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("json encode error", "error", err)
	}
}
