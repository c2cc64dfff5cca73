package request

import (
	"fmt"
	"strings"

	"github.com/nhdewitt/formserver/internal/form"
	"github.com/nhdewitt/formserver/internal/multipart"
)

const (
	ContentTypeURLEncoded = "application/x-www-form-urlencoded"
	ContentTypePlainText  = "text/plain"
	ContentTypeMultipart  = "multipart/form-data"
)

// interpretBody fills PostParams or MultipartData, never both, based only on
// the declared Content-Type. Unknown types leave the body uninterpreted.
func (r *Request) interpretBody() error {
	if len(r.Body) == 0 {
		return nil
	}
	contentType, ok := r.Headers.Lookup("Content-Type")
	if !ok {
		return nil
	}

	switch mediaType(contentType) {
	case ContentTypeURLEncoded:
		params, err := form.ParseURLEncoded(r.Body)
		if err != nil {
			return fmt.Errorf("%w: url-encoded body: %v", ErrMalformedRequest, err)
		}
		r.PostParams = params
	case ContentTypePlainText:
		r.PostParams = form.ParsePlainText(r.Body)
	case ContentTypeMultipart:
		boundary, err := multipart.Boundary(contentType)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedRequest, err)
		}
		parts, err := multipart.Parse(r.Body, boundary)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedRequest, err)
		}
		r.MultipartData = parts
	}
	return nil
}

func mediaType(contentType string) string {
	mt, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}
