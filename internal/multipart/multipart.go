// Package multipart splits multipart/form-data bodies into their parts.
//
// The whole body is already in memory (its size is bounded by
// Content-Length), so parts are located with plain substring scans rather
// than a streaming reader.
package multipart

import (
	"bytes"
	"errors"
	"fmt"
	"mime"
	"strings"
)

const (
	crlf           = "\r\n"
	boundaryPrefix = "--"
	headerEnd      = "\r\n\r\n"
)

var (
	ErrNoBoundary   = errors.New("multipart: boundary not found")
	ErrUnterminated = errors.New("multipart: part is not followed by a boundary")
	ErrNoHeaderEnd  = errors.New("multipart: part has no header terminator")
)

// Boundary extracts the boundary parameter from a multipart Content-Type value.
func Boundary(contentType string) (string, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", fmt.Errorf("multipart: content type %q: %w", contentType, err)
	}
	if !strings.HasPrefix(mediaType, "multipart/") {
		return "", fmt.Errorf("multipart: content type %q is not multipart", contentType)
	}
	boundary := params["boundary"]
	if boundary == "" {
		return "", fmt.Errorf("multipart: content type %q: %w", contentType, ErrNoBoundary)
	}
	return boundary, nil
}

// Parse splits body into parts delimited by "--" + boundary. Scanning stops
// at the closing "--boundary--" or, failing that, at the first boundary that
// is not followed by CRLF.
func Parse(body []byte, boundary string) ([]*Datum, error) {
	delim := []byte(boundaryPrefix + boundary)

	start := bytes.Index(body, delim)
	if start == -1 {
		return nil, ErrNoBoundary
	}
	cursor := start + len(delim)

	var parts []*Datum
	for {
		rest := body[cursor:]
		if bytes.HasPrefix(rest, []byte(boundaryPrefix)) || !bytes.HasPrefix(rest, []byte(crlf)) {
			return parts, nil
		}
		cursor += len(crlf)

		next := bytes.Index(body[cursor:], delim)
		if next == -1 {
			return nil, fmt.Errorf("part %d: %w", len(parts)+1, ErrUnterminated)
		}
		end := cursor + next

		d, err := parsePart(body[cursor:end])
		if err != nil {
			return nil, fmt.Errorf("part %d: %w", len(parts)+1, err)
		}
		parts = append(parts, d)

		cursor = end + len(delim)
	}
}

func parsePart(part []byte) (*Datum, error) {
	if bytes.HasPrefix(part, []byte(crlf)) {
		return NewDatum(nil, bytes.TrimSuffix(part[len(crlf):], []byte(crlf))), nil
	}

	sep := bytes.Index(part, []byte(headerEnd))
	if sep == -1 {
		return nil, ErrNoHeaderEnd
	}
	body := bytes.TrimSuffix(part[sep+len(headerEnd):], []byte(crlf))
	return NewDatum(part[:sep], body), nil
}
