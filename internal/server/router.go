package server

import (
	"errors"
	"fmt"

	"github.com/nhdewitt/formserver/internal/request"
	"github.com/nhdewitt/formserver/internal/response"
)

const otherMethod = "other"

var (
	ErrUnsupportedMethod = errors.New("unsupported method")
	ErrNotFound          = errors.New("resource not found")
	ErrHandlerFailure    = errors.New("handler failed")
)

// Router dispatches decoded requests to registered handlers, falling back
// to static resources for unmatched GETs.
type Router struct {
	registry *Registry
	static   StaticResources
	allowed  map[string]struct{}
}

// NewRouter creates a router accepting allowedMethods. static may be nil,
// in which case unmatched GETs are answered with 404.
func NewRouter(allowedMethods []string, static StaticResources) *Router {
	allowed := make(map[string]struct{}, len(allowedMethods))
	for _, m := range allowedMethods {
		allowed[m] = struct{}{}
	}
	return &Router{
		registry: NewRegistry(),
		static:   static,
		allowed:  allowed,
	}
}

func (rt *Router) Registry() *Registry {
	return rt.registry
}

// Handle registers h for method and path, replacing any earlier handler.
func (rt *Router) Handle(method, path string, h Handler) {
	rt.registry.Register(method, path, h)
}

func (rt *Router) HandleFunc(method, path string, f func(w *response.Writer, req *request.Request) error) {
	rt.registry.Register(method, path, HandlerFunc(f))
}

// MethodLabel returns method when it is allowed or has handlers, and
// "other" otherwise, so that metric labels stay bounded.
func (rt *Router) MethodLabel(method string) string {
	if _, ok := rt.allowed[method]; ok || rt.registry.HasMethod(method) {
		return method
	}
	return otherMethod
}

// Route picks the handler for req. It returns ErrUnsupportedMethod for a
// method that is neither allowed nor registered, and ErrNotFound when no
// handler or static resource matches.
func (rt *Router) Route(req *request.Request) (Handler, error) {
	method := req.RequestLine.Method
	if !rt.registry.HasMethod(method) {
		if _, ok := rt.allowed[method]; !ok {
			return nil, ErrUnsupportedMethod
		}
	}

	if h, ok := rt.registry.Lookup(method, req.Path); ok {
		return h, nil
	}
	if method == "GET" && rt.static != nil && rt.static.Exists(req.Path) {
		return rt.static, nil
	}
	return nil, ErrNotFound
}

// Dispatch routes req and runs the chosen handler. Routing failures are
// answered with 501 or 404. A handler error or panic is answered with 500
// when nothing has been written yet, and returned wrapped in
// ErrHandlerFailure.
func (rt *Router) Dispatch(w *response.Writer, req *request.Request) error {
	h, err := rt.Route(req)
	switch {
	case errors.Is(err, ErrUnsupportedMethod):
		return w.WriteError(response.StatusNotImplemented)
	case errors.Is(err, ErrNotFound):
		return w.WriteError(response.StatusNotFound)
	}

	if err := invoke(h, w, req); err != nil {
		if !w.Started() {
			_ = w.WriteError(response.StatusInternalServerError)
		}
		return fmt.Errorf("%w: %s %s: %v", ErrHandlerFailure, req.RequestLine.Method, req.Path, err)
	}
	return nil
}

func invoke(h Handler, w *response.Writer, req *request.Request) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return h.Handle(w, req)
}
