package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/devintruefi/91825truefi-sub000/internal/log"
	"github.com/devintruefi/91825truefi-sub000/internal/metrics"
	"github.com/devintruefi/91825truefi-sub000/internal/middleware/ratelimit"
	"github.com/devintruefi/91825truefi-sub000/internal/middleware/security"
	"github.com/devintruefi/91825truefi-sub000/internal/middleware/trace"
)

// Server serves the onboarding API.
type Server struct {
	http.Server
	svc      OnboardingService
	logger   *log.Logger
	limiter  *ratelimit.Limiter
	detector *security.Detector

	rateLimitPerMinute int
	shutdownOnce       sync.Once
}

type ServerOption func(*Server)

// WithRateLimit caps POST requests per client per minute.
func WithRateLimit(perMinute int) ServerOption {
	return func(s *Server) { s.rateLimitPerMinute = perMinute }
}

func WithLogger(l *log.Logger) ServerOption {
	return func(s *Server) { s.logger = l }
}

// NewServer configures routes and middleware, returning a ready-to-run
// server.
func NewServer(addr string, svc OnboardingService, opts ...ServerOption) *Server {
	s := &Server{
		svc:                svc,
		logger:             log.Discard(),
		rateLimitPerMinute: ratelimit.DefaultConfig().RequestsPerMinute,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.limiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: s.rateLimitPerMinute})
	s.detector = security.NewDetector(s.logger)

	mux := http.NewServeMux()
	s.handle(mux, "GET /api/onboarding/state", s.handleState)
	s.handle(mux, "POST /api/onboarding/submit", s.handleSubmit)
	s.handle(mux, "GET /api/onboarding/catalog", s.handleCatalog)
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", metrics.Handler())

	tracer := trace.NewMiddleware(s.logger, s.detector.ExtractClientIP)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limit := s.limiter.Middleware(s.detector.ExtractClientIP, isPost, func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusTooManyRequests, CodeRateLimited, "rate limit exceeded, try again later").Write(w)
	})

	s.Server = http.Server{
		Addr:              addr,
		Handler:           tracer.Middleware(headers.Middleware(s.detector.Middleware(limit(mux)))),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// handle registers an API route and records its latency under the route
// pattern rather than the raw path, which would carry user input.
func (s *Server) handle(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	route := pattern[strings.IndexByte(pattern, ' ')+1:]
	mux.Handle(pattern, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rw, r)
		metrics.RecordHTTPRequest(r.Method, route, strconv.Itoa(rw.status), time.Since(start))
	}))
}

func isPost(r *http.Request) bool {
	return r.Method == http.MethodPost
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
