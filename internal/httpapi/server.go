// Package httpapi exposes events, guest submission and ranking over HTTP
// with chi.
//
// Routes:
//
//	POST   /events                      open an event
//	GET    /events/{eventID}            event with its selection
//	POST   /events/{eventID}/selection  pick a ranked restaurant
//	DELETE /events/{eventID}/selection  undo the pick
//	POST   /events/{eventID}/responses  submit a guest response
//	POST   /events/{eventID}/rankings   rank the event now
//	GET    /events/{eventID}/rankings   latest stored ranking
//	GET    /healthz                     dependency checks
//	GET    /metrics                     Prometheus exposition
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ahrav/go-tablefit/internal/application"
	"github.com/ahrav/go-tablefit/internal/domain"
)

// EventManager opens events and records the host's final restaurant.
type EventManager interface {
	CreateEvent(ctx context.Context, req application.EventRequest) (domain.Event, error)
	GetEvent(ctx context.Context, eventID string) (domain.Event, error)
	SelectRestaurant(ctx context.Context, eventID, placeID string) (domain.Selection, error)
	ClearSelection(ctx context.Context, eventID string) error
}

// Submitter stores guest responses.
type Submitter interface {
	Submit(ctx context.Context, eventID string, sub application.GuestSubmission) (domain.GuestResponse, error)
}

// Ranker ranks events and reads back stored rankings.
type Ranker interface {
	RankEvent(ctx context.Context, eventID string) (domain.RankingRun, error)
	LatestRanking(ctx context.Context, eventID string) (domain.RankingRun, error)
}

// HealthCheck reports whether one dependency is usable.
type HealthCheck func(ctx context.Context) error

// Config wires the router.
type Config struct {
	Events    EventManager
	Responses Submitter
	Rankings  Ranker

	// Checks are run by /healthz, keyed by dependency name.
	Checks map[string]HealthCheck

	// Gatherer backs /metrics. Nil uses the default registry.
	Gatherer prometheus.Gatherer

	Logger *zap.Logger

	// MaxBodyBytes caps request bodies. Zero uses 1 MiB.
	MaxBodyBytes int64
}

const (
	defaultMaxBodyBytes = 1 << 20
	healthTimeout       = 2 * time.Second
)

type handler struct {
	events       EventManager
	responses    Submitter
	rankings     Ranker
	checks       map[string]HealthCheck
	logger       *zap.Logger
	maxBodyBytes int64
}

// NewRouter builds the HTTP handler.
func NewRouter(cfg Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}

	h := &handler{
		events:       cfg.Events,
		responses:    cfg.Responses,
		rankings:     cfg.Rankings,
		checks:       cfg.Checks,
		logger:       logger.Named("http"),
		maxBodyBytes: maxBody,
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", h.health)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Post("/events", h.createEvent)
	r.Route("/events/{eventID}", func(r chi.Router) {
		r.Get("/", h.getEvent)
		r.Post("/selection", h.selectRestaurant)
		r.Delete("/selection", h.clearSelection)
		r.Post("/responses", h.submitResponse)
		r.Post("/rankings", h.rankEvent)
		r.Get("/rankings", h.latestRanking)
	})
	return r
}

// requestLogger logs one line per request with its status and latency.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", chimiddleware.GetReqID(r.Context())),
					zap.String("remote", r.RemoteAddr),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
