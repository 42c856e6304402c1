// Package routing holds the transient, request-scoped route table that the
// auth module registers its sign-in and sign-out endpoints into. Routes are
// matched with chi before the application router runs.
package routing

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// Route describes an endpoint: a chi pattern, an HTTP method and the
// controller action it dispatches to.
type Route struct {
	Name       string
	Pattern    string
	Method     string
	Controller string
	Action     string
}

// Router is an ordered set of routes for a single request.
// It is not safe for concurrent use.
type Router struct {
	routes   []*Route
	matchers map[string]*chi.Mux
}

// NewRouter creates an empty Router.
func NewRouter() *Router {
	return &Router{matchers: make(map[string]*chi.Mux)}
}

// AddRoute registers route. With prepend it is matched before every route
// added earlier. A route with the same name is replaced.
func (rt *Router) AddRoute(route *Route, prepend bool) {
	rt.RemoveRoute(route.Name)

	mux := chi.NewMux()
	mux.MethodFunc(methodOf(route), route.Pattern, func(http.ResponseWriter, *http.Request) {})
	rt.matchers[route.Name] = mux

	if prepend {
		rt.routes = append([]*Route{route}, rt.routes...)
		return
	}
	rt.routes = append(rt.routes, route)
}

// HasRoute reports whether a route with name is registered.
func (rt *Router) HasRoute(name string) bool {
	_, ok := rt.matchers[name]
	return ok
}

// RemoveRoute unregisters the route with name, if any.
func (rt *Router) RemoveRoute(name string) {
	if _, ok := rt.matchers[name]; !ok {
		return
	}
	delete(rt.matchers, name)
	for i, r := range rt.routes {
		if r.Name == name {
			rt.routes = append(rt.routes[:i], rt.routes[i+1:]...)
			return
		}
	}
}

// Routes returns the registered routes in match order.
func (rt *Router) Routes() []*Route {
	out := make([]*Route, len(rt.routes))
	copy(out, rt.routes)
	return out
}

// URL returns the path for the named route, or "" if it is not registered.
func (rt *Router) URL(name string) string {
	for _, r := range rt.routes {
		if r.Name == name {
			return URLFor(r)
		}
	}
	return ""
}

// Match returns the first registered route that matches the request.
func (rt *Router) Match(r *http.Request) (*Route, bool) {
	path := r.URL.RawPath
	if path == "" {
		path = r.URL.Path
	}
	for _, route := range rt.routes {
		mux := rt.matchers[route.Name]
		if mux.Match(chi.NewRouteContext(), r.Method, path) {
			return route, true
		}
	}
	return nil, false
}

// URLFor returns the path of a route pattern with a trailing wildcard or
// slash removed. Patterns with URL parameters are returned unchanged.
func URLFor(route *Route) string {
	p := strings.TrimSuffix(route.Pattern, "*")
	if len(p) > 1 {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}

func methodOf(route *Route) string {
	if route.Method == "" {
		return http.MethodPost
	}
	return strings.ToUpper(route.Method)
}
