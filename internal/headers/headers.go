package headers

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
)

const (
	crlf                = "\r\n"
	validFieldNameChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789!#$%&'*+-.^_`|~"
)

// Headers maps a header name, as received, to its single value.
// A repeated name keeps the last value seen.
type Headers map[string]string

func NewHeaders() Headers {
	return map[string]string{}
}

// Parse consumes one header line from data. It returns done once the empty
// line that terminates a header block is reached, and n == 0 with no error
// when data does not yet hold a full line.
func (h Headers) Parse(data []byte) (n int, done bool, err error) {
	idx := bytes.Index(data, []byte(crlf))
	if idx == -1 {
		return 0, false, nil
	}
	if idx == 0 {
		return len(crlf), true, nil
	}

	if err := h.ParseLine(data[:idx]); err != nil {
		return 0, false, err
	}

	return idx + len(crlf), false, nil
}

// ParseBlock parses every CRLF separated line of a header block. The block
// must not include the terminating empty line.
func (h Headers) ParseBlock(block []byte) error {
	if len(block) == 0 {
		return nil
	}
	for _, line := range bytes.Split(block, []byte(crlf)) {
		if err := h.ParseLine(line); err != nil {
			return err
		}
	}
	return nil
}

// ParseLine splits a single "Name: Value" line on its first colon.
func (h Headers) ParseLine(line []byte) error {
	colonIdx := bytes.IndexByte(line, ':')
	if colonIdx == -1 {
		return fmt.Errorf("malformed header line (no colon): %q", line)
	}

	name := line[:colonIdx]
	if len(name) == 0 || bytes.ContainsAny(name, " \t") {
		return fmt.Errorf("malformed field-name: %q", line)
	}
	for _, r := range string(name) {
		if !strings.ContainsRune(validFieldNameChars, r) {
			return fmt.Errorf("invalid character in field-name: %q", line)
		}
	}

	// only the conventional single space after the colon is dropped
	value := line[colonIdx+1:]
	if len(value) > 0 && (value[0] == ' ' || value[0] == '\t') {
		value = value[1:]
	}

	h.Set(string(name), string(value))
	return nil
}

func (h Headers) Set(key, value string) {
	h[key] = value
}

// Get returns the value stored under key. An exact match wins; otherwise the
// first name equal to key under case folding is used.
func (h Headers) Get(key string) (value string) {
	v, _ := h.Lookup(key)
	return v
}

func (h Headers) Lookup(key string) (string, bool) {
	if v, ok := h[key]; ok {
		return v, true
	}
	for _, k := range h.Keys() {
		if strings.EqualFold(k, key) {
			return h[k], true
		}
	}
	return "", false
}

func (h Headers) Del(key string) {
	for k := range h {
		if strings.EqualFold(k, key) {
			delete(h, k)
		}
	}
}

// Keys returns the header names in sorted order.
func (h Headers) Keys() []string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
