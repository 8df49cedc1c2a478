package gateway

import (
	"context"
	"mime"
	"net/http"
	"path"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/devgate/internal/compiler"
)

// Source provides the artifacts served by the gateway.
type Source interface {
	Manifest(ctx context.Context) (*compiler.Node, error)
	ServiceWorker(ctx context.Context) (*compiler.Node, error)
	Script(ctx context.Context, name string) (*compiler.Node, error)
	Style(ctx context.Context) (*compiler.Node, error)
	Document(ctx context.Context, url string) (*compiler.Node, error)
	Asset(ctx context.Context, name string) (*compiler.Node, error)
}

// Route names, used as metric and span labels.
const (
	RouteManifest      = "manifest"
	RouteServiceWorker = "service-worker"
	RouteScript        = "script"
	RouteStyle         = "style"
	RouteAsset         = "asset"
	RouteDocument      = "document"
)

// Route patterns in priority order.
const (
	PatternManifest      = `^/manifest\.json$`
	PatternServiceWorker = `^/(?:service-worker|sw)\.js$`
	PatternAsset         = `^/assets/(.+)$`
	PatternScript        = `/([a-zA-Z0-9_-]+)\.js$`
	PatternStyle         = `/bundle\.css$`
)

type fetchFunc func(r *http.Request, params Params) (*compiler.Node, error)

func (g *Gateway) routes() *Router {
	rt := NewRouter()

	rt.Route(PatternManifest, g.artifact(RouteManifest, "application/json",
		func(r *http.Request, _ Params) (*compiler.Node, error) {
			return g.src.Manifest(r.Context())
		}))

	rt.Route(PatternServiceWorker, g.artifact(RouteServiceWorker, "application/javascript",
		func(r *http.Request, _ Params) (*compiler.Node, error) {
			return g.src.ServiceWorker(r.Context())
		}))

	// Assets precede scripts so /assets/x.js stays an asset.
	rt.Route(PatternAsset, g.artifact(RouteAsset, "",
		func(r *http.Request, p Params) (*compiler.Node, error) {
			return g.src.Asset(r.Context(), p.Get(1))
		}))

	rt.Route(PatternScript, g.artifact(RouteScript, "application/javascript",
		func(r *http.Request, p Params) (*compiler.Node, error) {
			return g.src.Script(r.Context(), p.Get(1))
		}))

	rt.Route(PatternStyle, g.artifact(RouteStyle, "text/css",
		func(r *http.Request, _ Params) (*compiler.Node, error) {
			return g.src.Style(r.Context())
		}))

	rt.Default(g.artifact(RouteDocument, "text/html",
		func(r *http.Request, _ Params) (*compiler.Node, error) {
			return g.src.Document(r.Context(), requestURI(r))
		}))

	return rt
}

// artifact builds a handler that fetches one artifact and serves it. An
// empty contentType is derived from the file extension.
func (g *Gateway) artifact(name, contentType string, fetch fetchFunc) HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, params Params) {
		start := time.Now()
		ctx, span := g.tracer.Start(r.Context(), "devgate.route",
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("devgate.route", name),
				attribute.String("http.path", r.URL.Path),
			),
		)
		defer span.End()

		r = r.WithContext(ctx)
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		SetCORS(ww)

		node, err := fetch(r, params)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			g.log.Debug().Err(err).Str("route", name).Str("path", r.URL.Path).Msg("artifact unavailable")
			NotFound(ww, err)
		} else {
			ct := contentType
			if ct == "" {
				ct = typeByExtension(r.URL.Path)
			}
			ww.Header().Set("Content-Type", ct)

			var buf []byte
			if node != nil {
				buf = node.Buffer
			}
			g.Serve(buf, ww, r)
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		span.SetAttributes(attribute.Int("http.status_code", status))
		g.metrics.ObserveRequest(name, status, time.Since(start))
	}
}

func requestURI(r *http.Request) string {
	if r.RequestURI != "" {
		return r.RequestURI
	}
	return r.URL.RequestURI()
}

func typeByExtension(p string) string {
	if ct := mime.TypeByExtension(path.Ext(p)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
