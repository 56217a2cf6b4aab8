// Package httprouter exposes the status endpoints of a running batch.
package httprouter

import (
	"log/slog"
	"net/http"
	"slices"

	"ytbatch/internal/consts"
	"ytbatch/internal/entity"
	"ytbatch/internal/infrastructure/delivery/http/middleware"
	"ytbatch/internal/infrastructure/delivery/http/response"
	"ytbatch/internal/observability"
)

// SummaryProvider returns the live counters of a run.
type SummaryProvider interface {
	Snapshot() entity.Summary
}

type chain []func(http.Handler) http.Handler

func (c chain) then(h http.Handler) http.Handler {
	for _, mw := range slices.Backward(c) {
		h = mw(h)
	}

	return h
}

// Router serves /healthz, /summary and /metrics.
type Router struct {
	*http.ServeMux
	log         *slog.Logger
	globalChain chain
	summary     SummaryProvider
	metrics     *observability.Metrics
}

// New creates a router for one run.
func New(log *slog.Logger, summary SummaryProvider, metrics *observability.Metrics) *Router {
	r := &Router{
		ServeMux: http.NewServeMux(),
		log:      log.With(slog.String("package", "httprouter")),
		summary:  summary,
		metrics:  metrics,
	}

	r.SetGlobalMiddlewares()
	r.SetRoutes()

	return r
}

// Use appends global middlewares.
func (r *Router) Use(middleware ...func(http.Handler) http.Handler) {
	r.globalChain = append(r.globalChain, middleware...)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.globalChain.then(r.ServeMux).ServeHTTP(w, req)
}

// SetGlobalMiddlewares installs the middlewares applied to every route.
func (r *Router) SetGlobalMiddlewares() {
	r.Use(
		middleware.Recoverer(r.log),
		middleware.RequestID,
		middleware.Logger(r.log),
		middleware.Metrics(r.metrics),
	)
}

// SetRoutes registers every route.
func (r *Router) SetRoutes() {
	r.HandleFunc("GET /healthz", r.Healthz)
	r.HandleFunc("GET /summary", r.Summary)
	r.Handle("GET /metrics", r.metrics.Handler())
}

// Healthz reports that the process is alive.
func (r *Router) Healthz(w http.ResponseWriter, _ *http.Request) {
	response.OK(w, consts.RespHealthy, nil, nil)
}

// Summary returns the live batch counters.
func (r *Router) Summary(w http.ResponseWriter, req *http.Request) {
	summary := r.summary.Snapshot()

	r.log.DebugContext(req.Context(), consts.RespSummary, slog.Any("summary", summary))

	response.OK(w, consts.RespSummary, summary, nil)
}
