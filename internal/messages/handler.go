package messages

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nhdewitt/formserver/internal/headers"
	"github.com/nhdewitt/formserver/internal/request"
	"github.com/nhdewitt/formserver/internal/response"
)

const contentTypeJSON = "application/json"

// Handler serves POST and GET for the message list. Form fields are read
// from any supported body encoding; file parts of a multipart body are
// saved under UploadDir.
type Handler struct {
	store     *Store
	uploadDir string
	logger    *zap.Logger
}

func NewHandler(store *Store, uploadDir string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, uploadDir: uploadDir, logger: logger}
}

// Post stores the submitted message and answers 201 with it as JSON, or 400
// when the text field is missing.
func (h *Handler) Post(w *response.Writer, req *request.Request) error {
	m := Message{
		ID:     uuid.NewString(),
		Author: field(req, "author"),
		Text:   field(req, "text"),
	}
	if m.Text == "" {
		return w.WriteError(response.StatusBadRequest)
	}
	if m.Author == "" {
		m.Author = "anonymous"
	}

	for _, d := range req.MultipartData {
		filename, ok := d.FormDataFilename()
		if !ok || !d.HasBody() {
			continue
		}
		name, err := h.saveUpload(m.ID, filename, d.SaveBodyToFile)
		if err != nil {
			return err
		}
		h.logger.Debug("saved upload", zap.String("message", m.ID), zap.String("file", name), zap.Int("bytes", d.Size()))
		m.Attachments = append(m.Attachments, name)
	}

	stored, err := h.store.Add(context.Background(), m)
	if errors.Is(err, ErrEmptyText) {
		return w.WriteError(response.StatusBadRequest)
	}
	if err != nil {
		return err
	}

	body, err := json.Marshal(stored)
	if err != nil {
		return err
	}
	return w.Respond(response.StatusCreated, headers.Headers{"Content-Type": contentTypeJSON}, body)
}

// List answers with every stored message as a JSON array.
func (h *Handler) List(w *response.Writer, req *request.Request) error {
	messages, err := h.store.List(context.Background())
	if err != nil {
		return err
	}
	body, err := json.Marshal(messages)
	if err != nil {
		return err
	}
	return w.Respond(response.StatusOK, headers.Headers{"Content-Type": contentTypeJSON}, body)
}

func (h *Handler) saveUpload(id, filename string, save func(string) error) (string, error) {
	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		return "", fmt.Errorf("creating upload dir: %w", err)
	}
	name := id + "-" + cleanFilename(filename)
	if err := save(filepath.Join(h.uploadDir, name)); err != nil {
		return "", fmt.Errorf("saving upload %q: %w", filename, err)
	}
	return name, nil
}

// field returns the first value of a URL-encoded or text/plain parameter,
// falling back to a textual multipart part of that name.
func field(req *request.Request, name string) string {
	if v := req.PostParams.Get(name); v != "" {
		return v
	}
	for _, d := range req.MultipartData {
		if n, ok := d.FormDataName(); !ok || n != name {
			continue
		}
		if _, isFile := d.FormDataFilename(); isFile || !d.IsText() {
			continue
		}
		return d.BodyString()
	}
	return ""
}

// cleanFilename keeps only the last element of a client-supplied path.
func cleanFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	if name == "." || name == "/" || name == ".." || name == "" {
		return "upload"
	}
	return name
}
