// Package api serves the matching, path, outcome, and recalculation
// endpoints over HTTP.
package api

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/sells-group/futuretree/internal/config"
	"github.com/sells-group/futuretree/internal/contradiction"
	"github.com/sells-group/futuretree/internal/matcher"
	"github.com/sells-group/futuretree/internal/monitoring"
	"github.com/sells-group/futuretree/internal/outcome"
	"github.com/sells-group/futuretree/internal/recalc"
	"github.com/sells-group/futuretree/internal/store"
)

// Deps are the services behind the API.
type Deps struct {
	Store     store.Store
	Matcher   *matcher.Matcher
	Options   matcher.Options
	Recalc    *recalc.Scheduler
	Outcomes  *outcome.Service
	Collector *monitoring.Collector
	Policy    contradiction.Policy
	Server    config.ServerConfig
	// LookbackHours is the default /stats window.
	LookbackHours int
}

// Server holds the handler dependencies.
type Server struct {
	Deps

	limiters *clientLimiters
	// computing dedupes on-demand match computation per profile.
	computing singleflight.Group
	now       func() time.Time
	log       *zap.Logger
}

// New creates a Server.
func New(d Deps) *Server {
	if d.LookbackHours <= 0 {
		d.LookbackHours = 24
	}
	return &Server{
		Deps:     d,
		limiters: newClientLimiters(rate.Limit(d.Server.RateLimitRPS), d.Server.RateLimitBurst),
		now:      func() time.Time { return time.Now().UTC() },
		log:      zap.L().With(zap.String("component", "api")),
	}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.Server.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.With(s.rateLimit).Post("/discover", s.handleDiscover)
	r.Get("/discover", s.handleGetDiscover)

	r.Route("/paths", func(r chi.Router) {
		r.Get("/", s.handleListPaths)
		r.Route("/{pathID}", func(r chi.Router) {
			r.Get("/", s.handleGetPath)
			r.Get("/tree", s.handleTree)
			r.Get("/prediction", s.handlePrediction)
			r.Post("/recalculate", s.handleRecalculate)
			r.Get("/jobs", s.handlePathJobs)
		})
	})

	r.Route("/jobs/{jobID}", func(r chi.Router) {
		r.Get("/", s.handleGetJob)
		r.Post("/retry", s.handleRetryJob)
	})

	r.Route("/explorations", func(r chi.Router) {
		r.Post("/", s.handleStartExploration)
		r.Post("/{id}/engagement", s.handleEngagement)
		r.Post("/{id}/end", s.handleEndExploration)
		r.Post("/{id}/commit", s.handleCommit)
	})
	r.Post("/outcomes/{id}/survey", s.handleSurvey)

	r.Get("/contradictions", s.handleContradictions)
	r.Get("/stats", s.handleStats)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

const (
	// limiterIdle is how long an unused client bucket is kept.
	limiterIdle = 10 * time.Minute
	// maxClients bounds the bucket map; past it idle buckets are swept.
	maxClients = 10000
)

type clientLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// clientLimiters holds one token bucket per client IP. Buckets idle long
// enough to have refilled are dropped, so forgetting them changes nothing.
type clientLimiters struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	idle      time.Duration
	lastSweep time.Time
	limiters  map[string]*clientLimiter
}

func newClientLimiters(limit rate.Limit, burst int) *clientLimiters {
	if burst < 1 {
		burst = 1
	}
	idle := limiterIdle
	if limit > 0 {
		if refill := time.Duration(float64(burst) / float64(limit) * float64(time.Second)); refill > idle {
			idle = refill
		}
	}
	return &clientLimiters{limit: limit, burst: burst, idle: idle, limiters: make(map[string]*clientLimiter)}
}

func (c *clientLimiters) allow(key string, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.limiters) >= maxClients || now.Sub(c.lastSweep) >= c.idle {
		c.sweep(now)
	}
	cl, ok := c.limiters[key]
	if !ok {
		cl = &clientLimiter{lim: rate.NewLimiter(c.limit, c.burst)}
		c.limiters[key] = cl
	}
	cl.lastSeen = now
	return cl.lim.AllowN(now, 1)
}

func (c *clientLimiters) sweep(now time.Time) {
	for key, cl := range c.limiters {
		if now.Sub(cl.lastSeen) >= c.idle {
			delete(c.limiters, key)
		}
	}
	c.lastSweep = now
}

func (c *clientLimiters) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.limiters)
}

// clientKey is the client IP without its port. After middleware.RealIP the
// address may already be a bare IP.
func clientKey(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Server.RateLimitRPS > 0 && !s.limiters.allow(clientKey(r), s.now()) {
			w.Header().Set("Retry-After", "1")
			writeErrorBody(w, http.StatusTooManyRequests, errorBody{Kind: kindRateLimited, Message: "too many requests"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
