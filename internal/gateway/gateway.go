package gateway

import (
	stderrors "errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/devgate/internal/compress"
	"github.com/vango-dev/devgate/internal/errors"
	"github.com/vango-dev/devgate/internal/metrics"
)

const tracerName = "devgate"

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets the request logger.
func WithLogger(log zerolog.Logger) Option {
	return func(g *Gateway) {
		g.log = log
	}
}

// WithMetrics records requests on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gateway) {
		g.metrics = m
	}
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(g *Gateway) {
		g.tracer = t
	}
}

// Gateway serves compiler outputs over HTTP.
type Gateway struct {
	src     Source
	router  *Router
	gzip    compress.Middleware
	log     zerolog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

// New creates a gateway reading artifacts from src.
func New(src Source, opts ...Option) (*Gateway, error) {
	wrap, err := compress.NewMiddleware()
	if err != nil {
		return nil, err
	}

	g := &Gateway{
		src:  src,
		gzip: wrap,
		log:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.tracer == nil {
		g.tracer = otel.Tracer(tracerName)
	}

	g.router = g.routes()
	return g, nil
}

// Router returns the artifact router.
func (g *Gateway) Router() *Router {
	return g.router
}

// Handler returns the full HTTP handler: request IDs, request logging and
// panic recovery in front of the artifact router. Every method and path
// reaches the router.
func (g *Gateway) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(g.log))
	r.Use(middleware.Recoverer)
	r.Handle("/*", g.router)
	return r
}

// Serve writes buf to w, gzipped when the request accepts gzip.
func (g *Gateway) Serve(buf []byte, w http.ResponseWriter, r *http.Request) {
	g.gzip(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write(buf)
	})).ServeHTTP(w, r)
}

// SetCORS marks the response as readable from any origin.
func SetCORS(w http.ResponseWriter) {
	h := w.Header()
	h.Set("access-control-allow-origin", "*")
	h.Set("access-control-allow-method", "*")
	h.Set("access-control-allow-header", "*")
	h.Set("access-control-allow-credentials", "true")
}

// NotFound answers 404 with err's message as a plain-text body. Coded
// errors contribute their message without the code prefix.
func NotFound(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte(message(err)))
}

func message(err error) string {
	var e *errors.Error
	if stderrors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return err.Error()
}
