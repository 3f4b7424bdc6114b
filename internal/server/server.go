package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/lazypower/muza/internal/engine"
	"github.com/lazypower/muza/internal/metrics"
)

// DefaultFrameInterval is the websocket frame rate when none is configured.
const DefaultFrameInterval = 50 * time.Millisecond

// UnmatchedRoute labels requests that matched no route.
const UnmatchedRoute = "unmatched"

// Server is the muza HTTP API server.
type Server struct {
	eng     *engine.Engine
	metrics *metrics.Collector
	logger  *zap.Logger
	router  chi.Router
	version string
	started time.Time
	origins []string
	frame   time.Duration

	validate *validator.Validate

	tickMu   sync.Mutex
	lastTick time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request and stream logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMetrics records HTTP metrics and mounts /metrics.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Server) { s.metrics = c }
}

// WithCORSOrigins restricts browser origins. Empty allows any origin.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) { s.origins = origins }
}

// WithFrameInterval sets how often the stream ticks the graph.
func WithFrameInterval(d time.Duration) Option {
	return func(s *Server) { s.frame = d }
}

// New creates a new Server around the engine.
func New(eng *engine.Engine, version string, opts ...Option) *Server {
	s := &Server{
		eng:      eng,
		logger:   zap.NewNop(),
		version:  version,
		started:  time.Now(),
		frame:    DefaultFrameInterval,
		validate: validator.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.frame <= 0 {
		s.frame = DefaultFrameInterval
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.allowedOrigins(),
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/stats", s.handleStats)
		r.Get("/network", s.handleNetwork)
		r.Get("/network/visual", s.handleVisualNetwork)
		r.Get("/nodes/{id}", s.handleNode)
		r.Get("/generate", s.handleGenerate)
		r.Get("/reflect", s.handleReflect)
		r.Get("/state", s.handleState)
		r.Get("/events", s.handleEvents)
		r.Get("/stream", s.handleStream)

		r.Post("/tick", s.handleTick)
		r.Post("/learn", s.handleLearn)
		r.Post("/input", s.handleInput)
		r.Post("/evolve", s.handleEvolve)
		r.Post("/chat", s.handleChat)
	})

	if s.metrics != nil {
		r.Method("GET", "/metrics", s.metrics.Handler())
	}

	s.router = r
}

func (s *Server) allowedOrigins() []string {
	if len(s.origins) == 0 {
		return []string{"*"}
	}
	return s.origins
}

// requestLogger logs each request and feeds the HTTP metrics.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := UnmatchedRoute
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)

		if s.metrics != nil {
			s.metrics.ObserveHTTP(r.Method, route, status, elapsed)
		}
		s.logger.Debug("http: request",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Duration("duration", elapsed))
	})
}
