package static

import (
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strconv"

	"github.com/nhdewitt/formserver/internal/headers"
	"github.com/nhdewitt/formserver/internal/request"
	"github.com/nhdewitt/formserver/internal/response"
)

// Handler streams catalog files unmodified.
type Handler struct {
	Catalog *Catalog
}

func NewHandler(c *Catalog) *Handler {
	return &Handler{Catalog: c}
}

// ContentType guesses a MIME type from the file extension.
func ContentType(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func (h *Handler) Handle(w *response.Writer, req *request.Request) error {
	p, ok := h.Catalog.Resolve(req.Path)
	if !ok {
		return w.WriteError(response.StatusNotFound)
	}

	f, err := os.Open(p)
	if err != nil {
		return fmt.Errorf("opening %s: %w", req.Path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", req.Path, err)
	}

	if err := w.WriteStatusLine(response.StatusOK); err != nil {
		return err
	}
	hdr := headers.Headers{
		"Content-Type":   ContentType(p),
		"Content-Length": strconv.FormatInt(info.Size(), 10),
		"Connection":     "close",
	}
	if err := w.WriteHeaders(hdr); err != nil {
		return err
	}
	if _, err := io.Copy(w, f); err != nil {
		return err
	}
	return w.Flush()
}

// Exists reports whether a request for reqPath would be served.
func (h *Handler) Exists(reqPath string) bool {
	return h.Catalog.Exists(reqPath)
}
