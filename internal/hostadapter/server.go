package hostadapter

import (
	"context"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openauthd/engine/internal/claims"
	"github.com/openauthd/engine/internal/engine"
	"github.com/openauthd/engine/internal/options"
)

// Config configures the HTTP surface this package builds on top of an
// Engine, mirroring the subset of the teacher's server.Config (server/
// server.go) that is this adapter's concern rather than the engine's:
// CORS and metrics. Everything protocol-shaped (issuer, endpoints, grants)
// already lives on options.Options and is read from there.
type Config struct {
	AllowedOrigins []string
	AllowedHeaders []string

	// PrometheusRegistry, when non-nil, gets per-handler request counter,
	// duration and response-size collectors registered against it,
	// grounded on the teacher's instrumentHandler (server/server.go).
	PrometheusRegistry *prometheus.Registry
}

// endpointMethods lists the HTTP methods routed to each protocol
// endpoint. Every endpoint also accepts the methods a browser-navigable
// flow needs (GET for anything that can be reached by redirect, POST for
// anything a client submits a body to), matching the teacher's per-path
// method constraints in its own route table (server/server.go).
var endpointMethods = map[string][]string{
	options.EndpointAuthorization: {http.MethodGet, http.MethodPost},
	options.EndpointToken:         {http.MethodPost},
	options.EndpointDevice:        {http.MethodPost},
	options.EndpointVerification:  {http.MethodGet, http.MethodPost},
	options.EndpointIntrospection: {http.MethodPost},
	options.EndpointRevocation:    {http.MethodPost},
	options.EndpointUserinfo:      {http.MethodGet, http.MethodPost},
	options.EndpointConfiguration: {http.MethodGet},
	options.EndpointCryptography:  {http.MethodGet},
	options.EndpointLogout:        {http.MethodGet, http.MethodPost},
}

// NewRouter builds the *mux.Router serving every endpoint options.Options
// has enabled, wired against eng. Grounded directly on the teacher's
// NewServer router construction: SkipClean/UseEncodedPath, a CORS wrapper
// curried per path, and Prometheus instrumentation curried per handler
// name, all in the same shape (server/server.go lines ~334-465) — only the
// fixed dex route table is replaced with a loop over options.Options.Endpoints,
// since which endpoints exist is this engine's own configuration concern.
func NewRouter(eng *engine.Engine, cfg Config) *mux.Router {
	instrument := buildInstrumentor(cfg.PrometheusRegistry)

	r := mux.NewRouter().SkipClean(true).UseEncodedPath()
	r.NotFoundHandler = http.NotFoundHandler()

	for name, path := range eng.Options.Endpoints {
		methods, ok := endpointMethods[name]
		if !ok {
			continue
		}
		handler := instrument(name, endpointHandler(eng, name))
		if len(cfg.AllowedOrigins) > 0 {
			cors := handlers.CORS(
				handlers.AllowedOrigins(cfg.AllowedOrigins),
				handlers.AllowedHeaders(cfg.AllowedHeaders),
			)
			handler = cors(handler).ServeHTTP
		}
		r.Handle(path, http.HandlerFunc(handler)).Methods(methods...)
	}

	return r
}

// buildInstrumentor returns a curry that wraps a handler with Prometheus
// duration/counter/response-size collectors labeled by handler name, or a
// no-op passthrough when registry is nil — the exact shape of the
// teacher's instrumentHandler closure (server/server.go).
func buildInstrumentor(registry *prometheus.Registry) func(name string, h http.HandlerFunc) http.HandlerFunc {
	if registry == nil {
		return func(_ string, h http.HandlerFunc) http.HandlerFunc { return h }
	}

	requestCounter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Count of all HTTP requests.",
	}, []string{"code", "method", "handler"})

	durationHist := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "request_duration_seconds",
		Help:    "A histogram of latencies for requests.",
		Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"code", "method", "handler"})

	sizeHist := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "response_size_bytes",
		Help:    "A histogram of response sizes for requests.",
		Buckets: []float64{200, 500, 900, 1500},
	}, []string{"code", "method", "handler"})

	registry.MustRegister(requestCounter, durationHist, sizeHist)

	return func(name string, h http.HandlerFunc) http.HandlerFunc {
		return promhttp.InstrumentHandlerDuration(durationHist.MustCurryWith(prometheus.Labels{"handler": name}),
			promhttp.InstrumentHandlerCounter(requestCounter.MustCurryWith(prometheus.Labels{"handler": name}),
				promhttp.InstrumentHandlerResponseSize(sizeHist.MustCurryWith(prometheus.Labels{"handler": name}), h),
			),
		)
	}
}

// endpointHandler returns the generic request/pipeline/response cycle for
// one named endpoint: build an engine.Request from the incoming
// *http.Request, run the Engine's pipeline against a fresh Transaction,
// and write the result back out.
func endpointHandler(eng *engine.Engine, name string) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		er, err := buildRequest(req)
		if err != nil {
			http.Error(w, "malformed request body", http.StatusBadRequest)
			return
		}

		tx := eng.NewTransaction(name)
		tx.Request = er
		if subject, ok := subjectFromContext(req.Context()); ok {
			tx.SetSubjectPrincipal(subject)
		}

		if err := eng.RunPipeline(req.Context(), tx); err != nil {
			eng.Logger.WithField("endpoint", name).WithError(err).Error("pipeline failure")
		}

		writeResponse(w, req, tx)
	}
}

// subjectKey is the context key a host's own authentication middleware
// uses to attach an already-authenticated resource owner ahead of
// ServeHTTP. Endpoints that need one (authorization, verification) read it
// back off the Transaction via SubjectPrincipal; a host that never calls
// ContextWithSubject gets the same login_required fallback as one with no
// session system at all (internal/endpoints/authorization.go dispatches
// KindProcessChallenge in that case).
type subjectKey struct{}

// ContextWithSubject returns a context carrying the authenticated
// principal, for a host middleware to attach before the request reaches
// this package's handlers.
func ContextWithSubject(ctx context.Context, p *claims.Principal) context.Context {
	return context.WithValue(ctx, subjectKey{}, p)
}

func subjectFromContext(ctx context.Context) (*claims.Principal, bool) {
	p, ok := ctx.Value(subjectKey{}).(*claims.Principal)
	return p, ok
}
