package main

import (
	"bytes"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/nhdewitt/formserver/internal/headers"
	"github.com/nhdewitt/formserver/internal/messages"
	"github.com/nhdewitt/formserver/internal/metrics"
	"github.com/nhdewitt/formserver/internal/request"
	"github.com/nhdewitt/formserver/internal/response"
	"github.com/nhdewitt/formserver/internal/server"
	"github.com/nhdewitt/formserver/internal/static"
)

const (
	classicPath       = "/classic.html"
	timePlaceholder   = "{time}"
	classicTimeFormat = "Mon Jan 2 15:04:05 MST 2006"
	contentTypeHTML   = "text/html; charset=utf-8"
	metricsPath       = "/metrics"
	messagesPath      = "/messages"
)

// classicHandler serves the classic.html template from the static catalog
// with every {time} replaced by the current server time.
type classicHandler struct {
	catalog *static.Catalog
	now     func() time.Time
}

func (h classicHandler) Handle(w *response.Writer, req *request.Request) error {
	p, ok := h.catalog.Resolve(classicPath)
	if !ok {
		return w.WriteError(response.StatusNotFound)
	}
	tmpl, err := os.ReadFile(p)
	if err != nil {
		return err
	}

	body := bytes.ReplaceAll(tmpl, []byte(timePlaceholder), []byte(h.now().Format(classicTimeFormat)))
	return w.Respond(response.StatusOK, headers.Headers{"Content-Type": contentTypeHTML}, body)
}

// routes registers the application handlers on rt.
func routes(rt *server.Router, catalog *static.Catalog, store *messages.Store, m *metrics.Metrics, uploadDir string, logger *zap.Logger) {
	rt.Handle("GET", metricsPath, m)
	rt.Handle("GET", classicPath, classicHandler{catalog: catalog, now: time.Now})

	mh := messages.NewHandler(store, uploadDir, logger.Named("messages"))
	rt.HandleFunc("GET", messagesPath, mh.List)
	rt.HandleFunc("POST", messagesPath, mh.Post)
}
