// Package form decodes flat name/value parameters from query strings and
// request bodies.
package form

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"
)

const crlf = "\r\n"

// Values maps a parameter name to its values in the order they were seen.
type Values map[string][]string

func (v Values) Add(name, value string) {
	v[name] = append(v[name], value)
}

// Get returns the first value for name, or "".
func (v Values) Get(name string) string {
	if vs := v[name]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// All returns every value for name. The result is never nil.
func (v Values) All(name string) []string {
	vs := v[name]
	if vs == nil {
		return []string{}
	}
	return append([]string(nil), vs...)
}

func (v Values) Has(name string) bool {
	_, ok := v[name]
	return ok
}

// ParseQuery decodes an application/x-www-form-urlencoded string. Pairs are
// separated by '&' and split on the first '='; both sides are
// percent-decoded. A pair without '=' yields an empty value.
func ParseQuery(query string) (Values, error) {
	values := Values{}
	for query != "" {
		var pair string
		pair, query, _ = strings.Cut(query, "&")
		if pair == "" {
			continue
		}
		rawName, rawValue, _ := strings.Cut(pair, "=")

		name, err := url.QueryUnescape(rawName)
		if err != nil {
			return nil, fmt.Errorf("invalid parameter name %q: %w", rawName, err)
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			return nil, fmt.Errorf("invalid value for parameter %q: %w", name, err)
		}
		values.Add(name, value)
	}
	return values, nil
}

// ParseURLEncoded decodes a URL-encoded request body.
func ParseURLEncoded(body []byte) (Values, error) {
	return ParseQuery(string(body))
}

// ParsePlainText decodes a text/plain body of CRLF separated name=value lines.
// Nothing is percent-decoded; lines without '=' are ignored.
func ParsePlainText(body []byte) Values {
	values := Values{}
	for _, line := range bytes.Split(body, []byte(crlf)) {
		name, value, ok := bytes.Cut(line, []byte("="))
		if !ok {
			continue
		}
		values.Add(string(name), string(value))
	}
	return values
}
