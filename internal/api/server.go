// Package api exposes availability over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"slotbook/internal/availability"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SlotService is the availability engine as seen by the handlers.
type SlotService interface {
	GetAvailability(ctx context.Context, req availability.Request) (*availability.Result, error)
	GetAvailableDays(ctx context.Context, req availability.DaysRequest) ([]availability.DaySummary, error)
}

// Options configure the HTTP layer.
type Options struct {
	// Location is the business timezone dates are parsed in.
	Location *time.Location
	// MinAdvance hides slots starting sooner than now + MinAdvance.
	MinAdvance time.Duration
	// MaxAdvance rejects dates later than today + MaxAdvance.
	MaxAdvance time.Duration

	RateLimit float64 // requests per second per client, 0 disables
	RateBurst int
	Timeout   time.Duration

	// Ready checks run by /readyz, keyed by dependency name.
	Ready map[string]func(context.Context) error
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler

	Now func() time.Time
}

type Server struct {
	slots  SlotService
	opts   Options
	logger zerolog.Logger
}

func NewServer(slots SlotService, opts Options, logger *zerolog.Logger) *Server {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "api").Logger()
	}
	return &Server{slots: slots, opts: opts, logger: l}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(s.requestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	if s.opts.Metrics != nil {
		r.Handle("/metrics", s.opts.Metrics)
	}

	r.Route("/api/v1/businesses/{businessID}/services/{serviceID}", func(r chi.Router) {
		if s.opts.RateLimit > 0 {
			r.Use(RateLimit(s.opts.RateLimit, s.opts.RateBurst))
		}
		r.Use(middleware.Timeout(s.opts.Timeout))
		r.Get("/slots", s.handleSlots)
		r.Get("/days", s.handleDays)
	})

	return r
}

const requestIDHeader = "X-Request-ID"

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		logger := s.logger.With().Str("request_id", id).Logger()
		next.ServeHTTP(w, r.WithContext(logger.WithContext(r.Context())))
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		zerolog.Ctx(r.Context()).Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(started)).
			Msg("http request")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Second)
	defer cancel()

	for name, check := range s.opts.Ready {
		if err := check(ctx); err != nil {
			s.logger.Warn().Err(err).Str("dependency", name).Msg("readiness check failed")
			http.Error(w, name+" not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
