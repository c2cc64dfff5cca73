package response

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/nhdewitt/formserver/internal/headers"
)

type writerState int

const (
	StateWritingStatusLine writerState = iota
	StateWritingHeaders
	StateWritingBody
	StateDone
)

// Writer is the output sink handed to handlers. The structured methods
// must be called in order: status line, headers, body. Write sends raw
// bytes and may be used instead of, or after, the structured methods.
type Writer struct {
	writer  io.Writer
	state   writerState
	started bool
	written int64
	status  StatusCode
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{
		writer: w,
		state:  StateWritingStatusLine,
	}
}

// Started reports whether any byte of the response has been written.
func (w *Writer) Started() bool {
	return w.started
}

// Status is the status code of the response written so far, or 0 if it is
// not known yet.
func (w *Writer) Status() StatusCode {
	return w.status
}

// Written returns the number of bytes written so far.
func (w *Writer) Written() int64 {
	return w.written
}

func (w *Writer) WriteStatusLine(statusCode StatusCode) error {
	if w.state != StateWritingStatusLine {
		return fmt.Errorf("writer state out-of-order")
	}

	if _, err := w.Write([]byte(statusLine(statusCode))); err != nil {
		return err
	}

	w.state = StateWritingHeaders
	return nil
}

func (w *Writer) WriteHeaders(h headers.Headers) error {
	if w.state != StateWritingHeaders {
		return fmt.Errorf("writer state out-of-order")
	}

	if err := WriteHeaders(w, h); err != nil {
		return err
	}

	w.state = StateWritingBody
	return nil
}

func (w *Writer) WriteBody(p []byte) (int, error) {
	if w.state != StateWritingBody {
		return 0, fmt.Errorf("writer state out-of-order")
	}

	w.state = StateDone
	return w.Write(p)
}

// WriteError writes a complete body-less response. It fails if anything
// has already been written.
func (w *Writer) WriteError(statusCode StatusCode) error {
	if w.started {
		return fmt.Errorf("writer state out-of-order")
	}
	if err := WriteError(w, statusCode); err != nil {
		return err
	}
	w.state = StateDone
	return nil
}

// Respond writes a full response with the default headers, overridden by
// extra, and body.
func (w *Writer) Respond(statusCode StatusCode, extra headers.Headers, body []byte) error {
	if err := w.WriteStatusLine(statusCode); err != nil {
		return err
	}
	h := GetDefaultHeaders(len(body))
	for k, v := range extra {
		h.Del(k)
		h.Set(k, v)
	}
	if err := w.WriteHeaders(h); err != nil {
		return err
	}
	if _, err := w.WriteBody(body); err != nil {
		return err
	}
	return nil
}

// Write sends raw bytes to the connection.
func (w *Writer) Write(p []byte) (int, error) {
	if !w.started && len(p) > 0 {
		w.started = true
		w.status = sniffStatus(p)
	}
	n, err := w.writer.Write(p)
	w.written += int64(n)
	return n, err
}

// Flush pushes buffered output to the connection when the underlying
// writer buffers.
func (w *Writer) Flush() error {
	if f, ok := w.writer.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

// sniffStatus reads the code out of a status line written as raw bytes.
func sniffStatus(p []byte) StatusCode {
	if !bytes.HasPrefix(p, []byte("HTTP/")) {
		return 0
	}
	_, rest, ok := bytes.Cut(p, []byte(" "))
	if !ok || len(rest) < 3 {
		return 0
	}
	code, err := strconv.Atoi(string(rest[:3]))
	if err != nil {
		return 0
	}
	return StatusCode(code)
}
