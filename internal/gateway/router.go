package gateway

import (
	"net/http"
	"regexp"
)

// Params holds the submatches of a route pattern. Params[0] is the whole
// match.
type Params []string

// Get returns the i-th submatch, or "".
func (p Params) Get(i int) string {
	if i < 0 || i >= len(p) {
		return ""
	}
	return p[i]
}

// HandlerFunc handles a routed request.
type HandlerFunc func(w http.ResponseWriter, r *http.Request, params Params)

type route struct {
	pattern *regexp.Regexp
	handler HandlerFunc
}

// Router dispatches on the request path to the first matching pattern,
// in registration order.
type Router struct {
	routes   []route
	fallback HandlerFunc
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{}
}

// Route appends a pattern. It panics if pattern does not compile.
func (rt *Router) Route(pattern string, h HandlerFunc) {
	rt.routes = append(rt.routes, route{
		pattern: regexp.MustCompile(pattern),
		handler: h,
	})
}

// Default sets the handler used when no pattern matches.
func (rt *Router) Default(h HandlerFunc) {
	rt.fallback = h
}

// Match dispatches r.
func (rt *Router) Match(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	for _, rte := range rt.routes {
		if m := rte.pattern.FindStringSubmatch(path); m != nil {
			rte.handler(w, r, Params(m))
			return
		}
	}
	if rt.fallback != nil {
		rt.fallback(w, r, Params{path})
		return
	}
	http.NotFound(w, r)
}

// ServeHTTP implements http.Handler.
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt.Match(w, r)
}
