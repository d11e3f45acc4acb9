package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Layr-Labs/proof-of-reserve-go/pkg/metrics"
	"github.com/Layr-Labs/proof-of-reserve-go/pkg/proofService"
)

/*
Server exposes the reserve commitment to account holders.

Endpoints:
  GET /api/proof/root
    - Returns { root, leafCount } over every balance currently in the store
    - 503 when the store holds no balances

  GET /api/proof/{userId}
    - Returns { userBalance, proofPath: [{ hash, direction }] }
    - JSON by default, CBOR when the request sends Accept: application/cbor
    - 400 for a non-integer id, 404 "User ID N not found."

  GET /health
    - 200 when the balance store answers its health check, 503 otherwise

  GET /metrics
    - Prometheus exposition of tree build and request metrics

Every response carries an X-Request-Id header. When a rate limit is configured,
requests beyond it receive 429.
*/

const (
	readHeaderTimeout = 5 * time.Second
	idleTimeout       = 60 * time.Second
)

// IHealthChecker reports whether the backing store is usable
type IHealthChecker interface {
	HealthCheck() error
}

// Config configures the HTTP server
type Config struct {
	Port int

	// Requests per second across all clients; 0 disables limiting
	RateLimit float64
	RateBurst int
}

// Server handles HTTP requests for proofs of reserve
type Server struct {
	service proofService.IUserProofService
	health  IHealthChecker
	metrics *metrics.Metrics
	logger  *zap.Logger

	limiter    *rate.Limiter
	httpServer *http.Server

	mu       sync.Mutex
	listener net.Listener
}

// NewServer creates a new server instance. health and m may be nil.
func NewServer(cfg *Config, service proofService.IUserProofService, health IHealthChecker, m *metrics.Metrics, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		service: service,
		health:  health,
		metrics: m,
		logger:  logger,
	}
	if cfg.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	}

	mux := http.NewServeMux()

	// Proof endpoints
	mux.HandleFunc("GET /api/proof/root", s.handleGetRoot)
	mux.HandleFunc("GET /api/proof/{userId}", s.handleGetProof)

	// Operational endpoints
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", m.Handler())

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.withMiddleware(mux),
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}

	return s
}

// Start binds the listening socket and serves in the background
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	go func() {
		s.logger.Sugar().Infow("Starting HTTP server", "address", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Sugar().Errorw("HTTP server error", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address once Start has succeeded
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop gracefully shuts down the HTTP server, waiting for in-flight requests until ctx expires
func (s *Server) Stop(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down HTTP server: %w", err)
	}
	s.logger.Sugar().Info("HTTP server stopped")
	return nil
}

// GetHandler returns the HTTP handler (for testing)
func (s *Server) GetHandler() http.Handler {
	return s.httpServer.Handler
}
