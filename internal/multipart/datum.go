package multipart

import (
	"fmt"
	"os"
	"strings"

	"github.com/nhdewitt/formserver/internal/headers"
)

const (
	headerContentDisposition = "Content-Disposition"
	headerContentType        = "Content-Type"
)

// Datum is one section of a multipart/form-data body. It is immutable once
// built.
type Datum struct {
	headers     headers.Headers
	disposition map[string]string
	body        []byte
}

// NewDatum builds a Datum from the raw header area and body of one part.
// Header lines that cannot be split on a colon are skipped.
func NewDatum(headerArea, bodyArea []byte) *Datum {
	h := headers.NewHeaders()
	for _, line := range strings.Split(string(headerArea), crlf) {
		if line == "" {
			continue
		}
		_ = h.ParseLine([]byte(line))
	}

	d := &Datum{
		headers:     h,
		disposition: map[string]string{},
		body:        bodyArea,
	}
	if disposition, ok := h.Lookup(headerContentDisposition); ok {
		d.disposition = parseDisposition(disposition)
	}
	return d
}

func parseDisposition(value string) map[string]string {
	props := map[string]string{}
	for _, property := range splitParams(value) {
		name, val, ok := strings.Cut(property, "=")
		if !ok {
			continue
		}
		val = strings.TrimSpace(val)
		if len(val) >= 2 && val[0] == '"' && val[len(val)-1] == '"' {
			val = val[1 : len(val)-1]
		}
		props[strings.TrimSpace(name)] = val
	}
	return props
}

// splitParams splits a header value on the semicolons that are not inside
// a quoted string.
func splitParams(value string) []string {
	var (
		params []string
		quoted bool
		start  int
	)
	for i := 0; i < len(value); i++ {
		switch value[i] {
		case '"':
			quoted = !quoted
		case ';':
			if !quoted {
				params = append(params, value[start:i])
				start = i + 1
			}
		}
	}
	return append(params, value[start:])
}

// Headers returns a copy of the part's own header lines.
func (d *Datum) Headers() headers.Headers {
	h := make(headers.Headers, len(d.headers))
	for k, v := range d.headers {
		h[k] = v
	}
	return h
}

func (d *Datum) Header(name string) (string, bool) {
	return d.headers.Lookup(name)
}

// DispositionProperties returns a copy of the key/value pairs found in the
// Content-Disposition header.
func (d *Datum) DispositionProperties() map[string]string {
	props := make(map[string]string, len(d.disposition))
	for k, v := range d.disposition {
		props[k] = v
	}
	return props
}

func (d *Datum) Body() []byte {
	return d.body
}

func (d *Datum) BodyString() string {
	return string(d.body)
}

func (d *Datum) HasBody() bool {
	return len(d.body) > 0
}

func (d *Datum) Size() int {
	return len(d.body)
}

// FormDataName is the "name" disposition property of a form-data part.
func (d *Datum) FormDataName() (string, bool) {
	return d.formDataProperty("name")
}

// FormDataFilename is the "filename" disposition property of a form-data part.
func (d *Datum) FormDataFilename() (string, bool) {
	return d.formDataProperty("filename")
}

func (d *Datum) ContentType() (string, bool) {
	return d.headers.Lookup(headerContentType)
}

// IsText reports whether the part has no declared content type or a
// text/plain one.
func (d *Datum) IsText() bool {
	ct, ok := d.ContentType()
	return !ok || strings.HasPrefix(strings.ToLower(ct), "text/plain")
}

// SaveBodyToFile writes the raw part body to path, replacing any existing file.
func (d *Datum) SaveBodyToFile(path string) error {
	if err := os.WriteFile(path, d.body, 0o644); err != nil {
		return fmt.Errorf("saving part body: %w", err)
	}
	return nil
}

func (d *Datum) formDataProperty(name string) (string, bool) {
	disposition, ok := d.headers.Lookup(headerContentDisposition)
	if !ok {
		return "", false
	}
	kind, _, _ := strings.Cut(disposition, ";")
	if !strings.EqualFold(strings.TrimSpace(kind), "form-data") {
		return "", false
	}
	v, ok := d.disposition[name]
	return v, ok
}

func (d *Datum) String() string {
	var b strings.Builder
	b.WriteString("multipart datum:\n")
	for _, k := range d.headers.Keys() {
		fmt.Fprintf(&b, "\t%s = %s\n", k, d.headers[k])
	}
	if name, ok := d.FormDataName(); ok {
		fmt.Fprintf(&b, "form name: %s\n", name)
	}
	if filename, ok := d.FormDataFilename(); ok {
		fmt.Fprintf(&b, "filename: %s\n", filename)
	}
	ct, ok := d.ContentType()
	if !ok {
		ct = "unspecified"
	}
	fmt.Fprintf(&b, "content type: %s\n", ct)
	fmt.Fprintf(&b, "body: %d bytes", len(d.body))
	return b.String()
}
