package request

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nhdewitt/formserver/internal/form"
	"github.com/nhdewitt/formserver/internal/headers"
	"github.com/nhdewitt/formserver/internal/multipart"
)

type requestState int

const (
	crlf = "\r\n"

	DefaultMaxHeaderBytes       = 4096
	DefaultMaxBodyBytes   int64 = 10 << 20
	DefaultPath                 = "/index.html"
)

const (
	stateRequestLine requestState = iota
	stateHeaders
	stateBody
	stateDone
)

var (
	// ErrMalformedRequest covers every framing problem in the request line,
	// header block or body.
	ErrMalformedRequest = errors.New("malformed request")
	// ErrHeaderTooLarge means the request line and headers did not fit in
	// the decoder's header buffer.
	ErrHeaderTooLarge = errors.New("request header section too large")
	// ErrBodyTooLarge means Content-Length exceeded the decoder's body limit.
	ErrBodyTooLarge = errors.New("request body too large")
)

// Request is a decoded HTTP request. It is built once per connection and
// not modified afterwards.
type Request struct {
	RequestLine RequestLine
	// Path is RequestTarget without its query string; "" and "/" are
	// replaced with the decoder's default path.
	Path          string
	Headers       headers.Headers
	QueryParams   form.Values
	PostParams    form.Values
	MultipartData []*multipart.Datum
	Body          []byte

	defaultPath string
	state       requestState
}

type RequestLine struct {
	HttpVersion   string
	RequestTarget string
	Method        string
}

// Decoder turns a byte stream into a Request. The zero value uses the
// package defaults.
type Decoder struct {
	MaxHeaderBytes int
	MaxBodyBytes   int64
	DefaultPath    string
}

// RequestFromReader decodes a request with the default limits.
func RequestFromReader(reader io.Reader) (*Request, error) {
	return Decoder{}.Decode(reader)
}

func (d Decoder) maxHeaderBytes() int {
	if d.MaxHeaderBytes > 0 {
		return d.MaxHeaderBytes
	}
	return DefaultMaxHeaderBytes
}

func (d Decoder) maxBodyBytes() int64 {
	if d.MaxBodyBytes > 0 {
		return d.MaxBodyBytes
	}
	return DefaultMaxBodyBytes
}

func (d Decoder) defaultPath() string {
	if d.DefaultPath != "" {
		return d.DefaultPath
	}
	return DefaultPath
}

// Decode reads the request line and headers into a fixed buffer of
// MaxHeaderBytes, then reads exactly Content-Length body bytes for any
// method other than GET.
func (d Decoder) Decode(reader io.Reader) (*Request, error) {
	buf := make([]byte, d.maxHeaderBytes())
	readToIndex := 0
	parsedIndex := 0

	r := &Request{
		Headers:     headers.NewHeaders(),
		QueryParams: form.Values{},
		PostParams:  form.Values{},
		defaultPath: d.defaultPath(),
		state:       stateRequestLine,
	}

	for r.state != stateBody {
		if readToIndex == len(buf) {
			return nil, fmt.Errorf("%w: limit is %d bytes", ErrHeaderTooLarge, len(buf))
		}

		n, err := reader.Read(buf[readToIndex:])
		if n > 0 {
			readToIndex += n

			bytesParsed, perr := r.parse(buf[parsedIndex:readToIndex])
			if perr != nil {
				return nil, perr
			}
			parsedIndex += bytesParsed
		}

		if err != nil && r.state != stateBody {
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("%w: early EOF", ErrMalformedRequest)
			}
			return nil, err
		}
	}

	if err := r.readBody(reader, buf[parsedIndex:readToIndex], d.maxBodyBytes()); err != nil {
		return nil, err
	}
	if err := r.interpretBody(); err != nil {
		return nil, err
	}

	r.state = stateDone
	return r, nil
}

// parse consumes as much of the head as data allows and reports how many
// bytes it used.
func (r *Request) parse(data []byte) (int, error) {
	total := 0
	for {
		switch r.state {
		case stateRequestLine:
			n, err := r.parseRequestLine(data[total:])
			if err != nil {
				return 0, err
			}
			if n == 0 {
				return total, nil
			}
			total += n
			r.state = stateHeaders
		case stateHeaders:
			n, done, err := r.Headers.Parse(data[total:])
			if err != nil {
				return 0, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
			}
			if n == 0 {
				return total, nil
			}
			total += n
			if done {
				r.state = stateBody
				return total, nil
			}
		case stateBody, stateDone:
			return total, nil
		default:
			return 0, fmt.Errorf("error: unknown state")
		}
	}
}

func (r *Request) parseRequestLine(data []byte) (int, error) {
	idx := bytes.Index(data, []byte(crlf))
	if idx == -1 {
		return 0, nil
	}

	rl, err := requestLineFromString(string(data[:idx]))
	if err != nil {
		return 0, err
	}
	r.RequestLine = *rl

	path, query, hasQuery := strings.Cut(rl.RequestTarget, "?")
	if path == "" || path == "/" {
		path = r.defaultPath
	}
	r.Path = path

	if hasQuery {
		params, err := form.ParseQuery(query)
		if err != nil {
			return 0, fmt.Errorf("%w: query string: %v", ErrMalformedRequest, err)
		}
		r.QueryParams = params
	}

	return idx + len(crlf), nil
}

func requestLineFromString(s string) (*RequestLine, error) {
	parts := strings.Split(s, " ")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: invalid request line: %q", ErrMalformedRequest, s)
	}
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("%w: invalid request line: %q", ErrMalformedRequest, s)
		}
	}

	protocol, version, ok := strings.Cut(parts[2], "/")
	if !ok || protocol != "HTTP" {
		return nil, fmt.Errorf("%w: invalid HTTP version: %s", ErrMalformedRequest, parts[2])
	}
	// other versions use framing this decoder does not read
	if version != "1.1" && version != "1.0" {
		return nil, fmt.Errorf("%w: invalid HTTP version: %s", ErrMalformedRequest, parts[2])
	}

	return &RequestLine{
		Method:        parts[0],
		RequestTarget: parts[1],
		HttpVersion:   version,
	}, nil
}

// readBody reads Content-Length bytes, starting with whatever followed the
// header block in the head buffer. A missing Content-Length means no body.
func (r *Request) readBody(reader io.Reader, buffered []byte, limit int64) error {
	if r.RequestLine.Method == "GET" {
		return nil
	}

	raw, ok := r.Headers.Lookup("Content-Length")
	if !ok {
		return nil
	}
	length, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || length < 0 {
		return fmt.Errorf("%w: invalid Content-Length %q", ErrMalformedRequest, raw)
	}
	if length > limit {
		return fmt.Errorf("%w: %d bytes, limit is %d", ErrBodyTooLarge, length, limit)
	}
	if length == 0 {
		return nil
	}

	body := make([]byte, length)
	copied := copy(body, buffered)
	if int64(copied) < length {
		if _, err := io.ReadFull(reader, body[copied:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return fmt.Errorf("%w: body shorter than Content-Length %d", ErrMalformedRequest, length)
			}
			return err
		}
	}
	r.Body = body
	return nil
}

func (r *Request) Method() string {
	return r.RequestLine.Method
}

// OriginalPath is the request target exactly as received.
func (r *Request) OriginalPath() string {
	return r.RequestLine.RequestTarget
}

func (r *Request) DefaultPath() string {
	return r.defaultPath
}

// QueryParam returns every value of a query parameter; never nil.
func (r *Request) QueryParam(name string) []string {
	return r.QueryParams.All(name)
}

func (r *Request) HasQueryParams() bool {
	return len(r.QueryParams) > 0
}

// PostParam returns every value of a URL-encoded or text/plain body
// parameter; never nil.
func (r *Request) PostParam(name string) []string {
	return r.PostParams.All(name)
}

func (r *Request) ContentType() string {
	return r.Headers.Get("Content-Type")
}
