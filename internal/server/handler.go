package server

import (
	"github.com/nhdewitt/formserver/internal/request"
	"github.com/nhdewitt/formserver/internal/response"
)

// Handler writes a complete response for req to w. An error returned
// before anything was written becomes a 500 response; after that the
// connection is simply closed.
type Handler interface {
	Handle(w *response.Writer, req *request.Request) error
}

type HandlerFunc func(w *response.Writer, req *request.Request) error

func (f HandlerFunc) Handle(w *response.Writer, req *request.Request) error {
	return f(w, req)
}

// StaticResources serves GET requests that have no registered handler.
type StaticResources interface {
	Handler
	Exists(path string) bool
}
