package response

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/nhdewitt/formserver/internal/headers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteError(t *testing.T) {
	cases := map[StatusCode]string{
		StatusBadRequest:          "HTTP/1.1 400 Bad Request\r\n",
		StatusNotFound:            "HTTP/1.1 404 Not Found\r\n",
		StatusInternalServerError: "HTTP/1.1 500 Internal Server Error\r\n",
		StatusNotImplemented:      "HTTP/1.1 501 Not Implemented\r\n",
	}
	for code, line := range cases {
		var buf bytes.Buffer
		require.NoError(t, WriteError(&buf, code))
		assert.Equal(t, line+"Connection: close\r\nContent-Length: 0\r\n\r\n", buf.String())
	}
}

func TestWriterOrder(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	assert.False(t, w.Started())

	_, err := w.WriteBody([]byte("x"))
	require.Error(t, err)
	require.Error(t, w.WriteHeaders(headers.NewHeaders()))

	require.NoError(t, w.WriteStatusLine(StatusOK))
	assert.True(t, w.Started())
	require.Error(t, w.WriteStatusLine(StatusOK))

	h := headers.Headers{"content-length": "2", "x-custom": "yes"}
	require.NoError(t, w.WriteHeaders(h))
	n, err := w.WriteBody([]byte("hi"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Equal(t, "HTTP/1.1 200 OK\r\nContent-Length: 2\r\nX-Custom: yes\r\n\r\nhi", buf.String())
	assert.Equal(t, int64(buf.Len()), w.Written())
	assert.Equal(t, StatusOK, w.Status())
	require.Error(t, w.WriteError(StatusInternalServerError))
}

func TestWriterRespondOverridesDefaults(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.Respond(StatusOK, headers.Headers{"Content-Type": "text/html"}, []byte("<p>")))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "HTTP/1.1 200 OK\r\n"))
	assert.Contains(t, out, "Content-Type: text/html\r\n")
	assert.NotContains(t, out, "text/plain")
	assert.Contains(t, out, "Content-Length: 3\r\n")
	assert.Contains(t, out, "Connection: close\r\n")
	assert.True(t, strings.HasSuffix(out, "\r\n\r\n<p>"))
}

func TestWriterFlush(t *testing.T) {
	var buf bytes.Buffer
	bw := bufio.NewWriter(&buf)
	w := NewWriter(bw)
	require.NoError(t, w.WriteError(StatusNotFound))
	assert.Zero(t, buf.Len())
	require.NoError(t, w.Flush())
	assert.Contains(t, buf.String(), "404 Not Found")

	require.NoError(t, NewWriter(&buf).Flush())
}

func TestWriterSniffsRawStatus(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	_, err := w.Write([]byte("HTTP/1.1 303 See Other\r\nLocation: /\r\n\r\n"))
	require.NoError(t, err)
	assert.Equal(t, StatusSeeOther, w.Status())

	w = NewWriter(&buf)
	_, err = w.Write([]byte("garbage"))
	require.NoError(t, err)
	assert.Equal(t, StatusCode(0), w.Status())
	assert.True(t, w.Started())
}
