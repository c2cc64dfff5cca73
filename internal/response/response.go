package response

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/nhdewitt/formserver/internal/headers"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

func statusLine(statusCode StatusCode) string {
	return fmt.Sprintf("HTTP/1.1 %d %s\r\n", statusCode, statusCode.Reason())
}

func WriteStatusLine(w io.Writer, statusCode StatusCode) error {
	_, err := io.WriteString(w, statusLine(statusCode))
	return err
}

// GetDefaultHeaders returns the headers every response carries. Connections
// are never reused, so Connection is always "close".
func GetDefaultHeaders(contentLen int) headers.Headers {
	h := headers.NewHeaders()
	h.Set("Content-Length", strconv.Itoa(contentLen))
	h.Set("Connection", "close")
	h.Set("Content-Type", "text/plain")
	h.Set("Date", time.Now().UTC().Format(time.RFC1123))

	return h
}

// WriteHeaders writes the header lines in name order followed by the empty
// line that ends the header block.
func WriteHeaders(w io.Writer, h headers.Headers) error {
	caser := cases.Title(language.English)
	for _, k := range h.Keys() {
		line := caser.String(k) + ": " + h[k] + "\r\n"
		if _, err := io.WriteString(w, line); err != nil {
			return fmt.Errorf("error writing header: %v", err)
		}
	}
	_, err := io.WriteString(w, "\r\n")
	return err
}

// WriteError writes a complete body-less response, as used for the
// terminal 400, 404, 500 and 501 answers.
func WriteError(w io.Writer, statusCode StatusCode) error {
	if err := WriteStatusLine(w, statusCode); err != nil {
		return err
	}
	h := headers.NewHeaders()
	h.Set("Content-Length", "0")
	h.Set("Connection", "close")
	return WriteHeaders(w, h)
}
