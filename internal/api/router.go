/*
Package api exposes a Companion over a local HTTP API.

Routes:

	GET  /api/search?q=     personalized search across providers
	POST /api/rank          personalize a caller-supplied result list
	POST /api/track         record one interaction
	POST /api/summarize     summarize text
	POST /api/simplify      summarize text to a short form
	GET  /api/profile       derived interest profile
	GET  /healthz           liveness and storage state
	GET  /metrics           Prometheus exposition

The browser extension calls it cross-origin, so CORS is enabled for the
configured origins.
*/
package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/khanglvm/kimo/internal/companion"
	"github.com/khanglvm/kimo/internal/logger"
)

// maxBodyBytes bounds request bodies; summarize input is the largest.
const maxBodyBytes = 1 << 20

// Server holds the handlers.
type Server struct {
	c   *companion.Companion
	log logger.Logger
}

// NewRouter builds the HTTP handler for c.
func NewRouter(c *companion.Companion) http.Handler {
	s := &Server{c: c, log: c.Log.With(logger.String("component", "api"))}
	cfg := c.Config.Server

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.recoverer)
	r.Use(s.observe)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         86400,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(c.Metrics.Registry, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		if cfg.RateLimit > 0 {
			window := cfg.RateWindow
			if window <= 0 {
				window = time.Minute
			}
			r.Use(httprate.LimitByIP(cfg.RateLimit, window))
		}
		r.Use(chimiddleware.RequestSize(maxBodyBytes))

		r.Get("/search", s.handleSearch)
		r.Post("/rank", s.handleRank)
		r.Post("/track", s.handleTrack)
		r.Post("/summarize", s.handleSummarize)
		r.Post("/simplify", s.handleSimplify)
		r.Get("/profile", s.handleProfile)
	})

	return r
}

// observe logs and counts each request under its route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)

		s.c.Metrics.ObserveHTTP(route, strconv.Itoa(status), elapsed)
		s.log.Debug("request",
			logger.String("method", r.Method),
			logger.String("route", route),
			logger.Int("status", status),
			logger.Duration("elapsed", elapsed),
			logger.String("request_id", chimiddleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.log.Error("handler panic",
					logger.String("path", r.URL.Path),
					logger.String("panic", fmt.Sprint(rec)),
				)
				writeError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
