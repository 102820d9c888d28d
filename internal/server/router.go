package server

import (
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
)

// BasicRouter is a simple HTTP router implementing the [Router] interface.
//
// Uses [http.ServeMux] internally for routing.
type BasicRouter struct {
	mux         *http.ServeMux
	middlewares []Middleware
}

// NewBasicRouter creates a new [BasicRouter] instance.
func NewBasicRouter() *BasicRouter {
	return &BasicRouter{
		mux:         http.NewServeMux(),
		middlewares: []Middleware{},
	}
}

// Use adds [Middleware] to the [Router] instance's middleware stack, applied in the order it's added.
func (r *BasicRouter) Use(middleware ...Middleware) {
	r.middlewares = append(r.middlewares, middleware...)
}

// Handle registers a [Handler] for the specified HTTP method and path.
//
// Paths may use [http.ServeMux] wildcards ("/download-file/{name}"). GET routes also answer HEAD.
// The handler is wrapped with all registered middleware, including the method check, so
// rejected requests are still logged.
func (r *BasicRouter) Handle(method, path string, handler http.Handler) {
	methodHandler := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if !allowMethod(method, req.Method) {
			w.Header().Set("Allow", allowHeader(method))
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		handler.ServeHTTP(w, req)
	})

	r.mux.Handle(path, r.Apply(methodHandler))
}

// HandleFunc registers fn for the specified HTTP method and path.
func (r *BasicRouter) HandleFunc(method, path string, fn http.HandlerFunc) {
	r.Handle(method, path, fn)
}

func allowMethod(route, got string) bool {
	if strings.EqualFold(route, got) {
		return true
	}
	return strings.EqualFold(route, http.MethodGet) && got == http.MethodHead
}

func allowHeader(method string) string {
	if strings.EqualFold(method, http.MethodGet) {
		return "GET, HEAD"
	}
	return strings.ToUpper(method)
}

// Handler registers a custom Handler implementation.
//
// All routes returned by [Handler.Routes] are registered with this handler.
func (r *BasicRouter) Handler(handler Handler) {
	wrapped := r.Apply(handler)

	for _, route := range handler.Routes() {
		r.mux.Handle(route, wrapped)
	}
}

// ServeHTTP implements [http.Handler] for the entire router.
func (r *BasicRouter) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Apply wraps a handler with all registered middleware.
//
// Middleware is applied in reverse order (last added wraps first).
func (r *BasicRouter) Apply(handler http.Handler) http.Handler {
	wrapped := handler

	for i := len(r.middlewares) - 1; i >= 0; i-- {
		wrapped = r.middlewares[i](wrapped)
	}

	return wrapped
}

// NewRouter builds the application router: recovery, request IDs, client addresses, logging
// and security headers on every route, the index page at "/" and the API routes.
func NewRouter(api *API, index Handler, limiter *IPRateLimiter, trustProxy bool, logger *log.Logger) *BasicRouter {
	r := NewBasicRouter()
	r.Use(
		RecoverMiddleware(logger),
		RequestIDMiddleware(),
		ClientIPMiddleware(trustProxy),
		LoggingMiddleware(logger),
		SecurityHeadersMiddleware(),
	)
	if index != nil {
		r.Handler(index)
	}
	api.Register(r, limiter)
	return r
}
