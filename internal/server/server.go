package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/cors"

	"photo-explorer/internal/explorer"
)

// BuildInfo is reported by /health and the px_build_info metric.
type BuildInfo struct {
	Version string
	Commit  string
}

type Config struct {
	Addr    string // e.g. ":8080"
	Service *explorer.Service
	Build   BuildInfo

	// Workers is reported in /health.
	Workers int
	// MaxUploadBytes caps the upload request body. Zero means no limit.
	MaxUploadBytes int64
	// RateLimitRPS enables the per-IP limiter when positive.
	RateLimitRPS   float64
	RateLimitBurst int

	// TrustProxyHeaders identifies clients by X-Forwarded-For or X-Real-IP
	// for rate limiting and access logs.
	TrustProxyHeaders bool

	// ReadTimeout bounds reading a whole request, upload body included.
	// Zero means defaultReadTimeout.
	ReadTimeout time.Duration
	// IdleTimeout bounds keep-alive connections between requests. Zero
	// means defaultIdleTimeout.
	IdleTimeout time.Duration
}

const (
	defaultReadTimeout = 2 * time.Minute
	defaultIdleTimeout = 2 * time.Minute
)

type Server struct {
	httpServer *http.Server
	handler    http.Handler

	svc            *explorer.Service
	metrics        *Metrics
	limiter        *rateLimiter
	build          BuildInfo
	workers        int
	maxUploadBytes int64
}

func New(cfg Config) (*Server, error) {
	if cfg.Service == nil {
		return nil, fmt.Errorf("server: explorer service is required")
	}

	s := &Server{
		svc:            cfg.Service,
		metrics:        NewMetrics(cfg.Build),
		build:          cfg.Build,
		workers:        cfg.Workers,
		maxUploadBytes: cfg.MaxUploadBytes,
	}

	gzip, err := gzhttp.NewWrapper(gzhttp.ContentTypes([]string{"application/json"}))
	if err != nil {
		return nil, fmt.Errorf("server: gzip wrapper: %w", err)
	}

	mux := http.NewServeMux()

	mux.Handle("POST /file/upload", s.uploadHandler())
	mux.Handle("GET /file/explorer", gzip(s.explorerHandler()))
	mux.Handle("GET /file/view/{fileName}", s.fileHandler(dispositionInline))
	mux.Handle("GET /file/download/{fileName}", s.fileHandler(dispositionAttachment))

	mux.HandleFunc("GET /health", s.HandleHealth)
	mux.HandleFunc("GET /live", s.HandleLive)
	mux.Handle("GET /metrics", s.metrics.Handler())

	// Wrap middleware: requestID -> logging -> security -> cors -> ratelimit -> mux
	var handler http.Handler = mux
	if cfg.RateLimitRPS > 0 {
		s.limiter = newRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, cfg.TrustProxyHeaders)
		handler = s.limiter.middleware(handler)
	}
	handler = corsPolicy().Handler(handler)
	handler = securityHeadersMiddleware(handler)
	handler = accessLogMiddleware(s.metrics, cfg.TrustProxyHeaders)(handler)
	handler = requestIDMiddleware(handler)
	s.handler = handler

	readTimeout := cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = defaultReadTimeout
	}
	idleTimeout := cfg.IdleTimeout
	if idleTimeout <= 0 {
		idleTimeout = defaultIdleTimeout
	}

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       readTimeout,
		IdleTimeout:       idleTimeout,
	}

	return s, nil
}

// corsPolicy echoes any origin and allows credentials. It is a development
// default and should be narrowed before exposing the service publicly.
func corsPolicy() *cors.Cors {
	return cors.New(cors.Options{
		AllowOriginFunc: func(string) bool { return true },
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodHead,
			http.MethodOptions,
		},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
}

// Handler returns the fully wrapped handler, for use with httptest.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	err := s.httpServer.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.limiter != nil {
		s.limiter.Close()
	}
	return s.httpServer.Shutdown(ctx)
}
