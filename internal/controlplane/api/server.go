package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bc-dunia/httpdrill/internal/auth"
	"github.com/bc-dunia/httpdrill/internal/metrics"
)

// Server exposes the control-plane API (spec §6): POST /runs, DELETE
// /runs/{id}, GET /runs/{id}/report, GET /runs/{id}/stream, plus the
// ambient healthz/readyz/metrics endpoints.
type Server struct {
	runs              RunService
	metricsCollector  *metrics.Collector
	server            *http.Server
	listener          net.Listener
	mu                sync.Mutex
	running           bool
	addr              string
	customHandlers    map[string]http.HandlerFunc
	authConfig        *auth.Config
	authMiddleware    *auth.Middleware
	rateLimiter       *rateLimiter
	rateLimiterConfig *RateLimiterConfig
	stopCh            chan struct{}
}

// NewServer constructs a Server bound to addr, backed by runs.
func NewServer(addr string, runs RunService) *Server {
	return &Server{
		runs:              runs,
		addr:              addr,
		authConfig:        auth.DefaultConfig(),
		rateLimiterConfig: DefaultRateLimiterConfig(),
	}
}

func (s *Server) SetAuthConfig(config *auth.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authConfig = config
	s.authMiddleware = nil
}

// SetRateLimiterConfig configures the rate limiter. Must be called before
// Start() for changes to take effect.
func (s *Server) SetRateLimiterConfig(config *RateLimiterConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rateLimiterConfig = config
	s.rateLimiter = nil
}

func (s *Server) SetMetricsCollector(mc *metrics.Collector) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metricsCollector = mc
}

func (s *Server) GetMetricsCollector() *metrics.Collector {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metricsCollector
}

func (s *Server) SetCustomHandler(pattern string, handler http.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.customHandlers == nil {
		s.customHandlers = make(map[string]http.HandlerFunc)
	}
	s.customHandlers[pattern] = handler
}

func (s *Server) initAuthMiddlewareLocked() {
	if s.authMiddleware != nil {
		return
	}
	if s.authConfig == nil {
		s.authConfig = auth.DefaultConfig()
	}

	var authenticator auth.Authenticator
	switch s.authConfig.Mode {
	case auth.AuthModeAPIKey:
		authenticator = auth.NewAPIKeyAuthenticator(s.authConfig)
	case auth.AuthModeJWT:
		authenticator = auth.NewJWTAuthenticator(s.authConfig)
	default:
		authenticator = nil
	}

	s.authMiddleware = auth.NewMiddleware(s.authConfig, authenticator)
}

func (s *Server) getAuthMiddleware() *auth.Middleware {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initAuthMiddlewareLocked()
	return s.authMiddleware
}

func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("server already running")
	}

	// Initialize auth middleware before route registration to avoid deadlock
	// (rbacMiddleware calls getAuthMiddleware which would try to acquire s.mu again)
	s.initAuthMiddlewareLocked()

	mux := http.NewServeMux()

	mux.HandleFunc("/runs", s.rateLimitMiddleware(s.rbacMiddleware(http.HandlerFunc(s.handleCreateRun))).ServeHTTP)
	mux.HandleFunc("/runs/", s.rateLimitMiddleware(s.rbacMiddleware(http.HandlerFunc(s.routeRuns))).ServeHTTP)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/readyz", s.handleReadyz)
	mux.HandleFunc("/metrics", s.handleMetrics)

	for pattern, handler := range s.customHandlers {
		mux.HandleFunc(pattern, s.rateLimitMiddleware(s.rbacMiddleware(http.HandlerFunc(handler))).ServeHTTP)
	}

	if s.authConfig == nil {
		s.authConfig = auth.DefaultConfig()
	}
	if s.authConfig.Mode == auth.AuthModeNone && !s.authConfig.InsecureMode && !isLoopbackBindAddr(s.addr) {
		return fmt.Errorf("refusing to bind to non-loopback address without authentication (use --insecure to override)")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = listener

	s.server = &http.Server{
		Handler:           mux,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.running = true
	s.stopCh = make(chan struct{})

	srv := s.server
	go func() {
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			slog.Error("api_server_error", "error", err)
		}
	}()

	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}

	s.running = false
	srv := s.server
	stopCh := s.stopCh
	s.server = nil
	s.stopCh = nil
	s.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
	}

	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}

func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

func (s *Server) URL() string {
	return fmt.Sprintf("http://%s", s.Addr())
}

func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func isLoopbackBindAddr(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if host == "" {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback()
}

// routeRuns dispatches everything under /runs/{id}... : the bare run_id
// (DELETE to stop), /report, and /stream.
func (s *Server) routeRuns(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/runs/")
	if path == "" || path == "/" {
		if r.Method == http.MethodGet {
			s.handleListRuns(w, r)
			return
		}
		s.handleCreateRun(w, r)
		return
	}

	parts := strings.Split(strings.TrimSuffix(path, "/"), "/")
	runID := parts[0]

	if len(parts) == 1 {
		s.handleStopRun(w, r, runID)
		return
	}

	switch parts[1] {
	case "report":
		s.handleGetReport(w, r, runID)
	case "stream":
		s.handleStreamRun(w, r, runID)
	default:
		s.writeError(w, http.StatusNotFound, &ErrorResponse{
			ErrorType:    ErrorTypeNotFound,
			ErrorCode:    "ENDPOINT_NOT_FOUND",
			ErrorMessage: "endpoint not found",
			Details:      map[string]interface{}{"path": r.URL.Path},
		})
	}
}

func (s *Server) rbacMiddleware(next http.Handler) http.Handler {
	if s.authMiddleware != nil {
		return s.authMiddleware.Handler(next)
	}
	return s.getAuthMiddleware().Handler(next)
}

func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		if s.rateLimiter == nil {
			s.rateLimiter = newRateLimiter(s.rateLimiterConfig)
		}
		rl := s.rateLimiter
		config := s.rateLimiterConfig
		s.mu.Unlock()

		key := s.rateLimitKey(r)
		if !rl.allowKey(key) {
			slog.Warn("api_rate_limit_exceeded", "client_key", key)
			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", config.BurstSize))
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", time.Now().Add(time.Second).Unix()))
			w.Header().Set("Retry-After", "1")

			s.writeError(w, http.StatusTooManyRequests, &ErrorResponse{
				ErrorType:    ErrorTypeRateLimited,
				ErrorCode:    "RATE_LIMIT_EXCEEDED",
				ErrorMessage: "too many requests, please slow down",
				Retryable:    true,
				Details:      map[string]interface{}{"retry_after_seconds": 1},
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) rateLimitKey(r *http.Request) string {
	if user := auth.GetUserFromContext(r.Context()); user != nil && user.ID != "" {
		return "user:" + user.ID
	}
	ip := clientIPFromRequest(r)
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + ip
}

func clientIPFromRequest(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

// StartTestServer creates a test server bound to an ephemeral loopback port
// with auth disabled, and returns it with a cleanup function.
func StartTestServer(runs RunService) (*Server, func(), error) {
	server := NewServer("127.0.0.1:0", runs)
	server.SetAuthConfig(&auth.Config{
		Mode:      auth.AuthModeNone,
		SkipPaths: []string{"/healthz", "/readyz"},
	})
	if err := server.Start(); err != nil {
		return nil, nil, fmt.Errorf("failed to start test server: %w", err)
	}
	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}
	return server, cleanup, nil
}
