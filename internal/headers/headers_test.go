package headers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderLineParse(t *testing.T) {
	// Test: Valid single header
	headers := NewHeaders()
	data := []byte("Host: localhost:9999\r\n\r\n")
	n, done, err := headers.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, "localhost:9999", headers["Host"])
	assert.Equal(t, 22, n)
	assert.False(t, done)
	n, done, err = headers.Parse(data[n:])
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, done)

	// Test: Leading whitespace in the name
	headers = NewHeaders()
	_, _, err = headers.Parse([]byte(" Host: localhost:9999 \r\n"))
	require.Error(t, err)

	// Test: Space before colon
	headers = NewHeaders()
	n, done, err = headers.Parse([]byte("Host : localhost:9999\r\n\r\n"))
	require.Error(t, err)
	assert.Equal(t, 0, n)
	assert.False(t, done)

	// Partial line (no CRLF)
	headers = NewHeaders()
	n, done, err = headers.Parse([]byte("Host: loca"))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.False(t, done)

	// Invalid no colon
	headers = NewHeaders()
	n, _, err = headers.Parse([]byte("Host localhost 9999\r\n"))
	require.Error(t, err)
	assert.Equal(t, 0, n)

	// Invalid character in header key
	headers = NewHeaders()
	_, _, err = headers.Parse([]byte("H©st: localhost:9999\r\n\r\n"))
	require.Error(t, err)
}

func TestHeaderValueKeepsTrailingText(t *testing.T) {
	headers := NewHeaders()
	require.NoError(t, headers.ParseLine([]byte("Content-Type: multipart/form-data; boundary=XYZ")))
	assert.Equal(t, "multipart/form-data; boundary=XYZ", headers["Content-Type"])

	require.NoError(t, headers.ParseLine([]byte("X-Empty:")))
	assert.Equal(t, "", headers["X-Empty"])

	require.NoError(t, headers.ParseLine([]byte("X-Spaces:   padded ")))
	assert.Equal(t, "  padded ", headers["X-Spaces"])
}

func TestParseBlockLastValueWins(t *testing.T) {
	headers := NewHeaders()
	block := []byte("Set-Person: lane-loves-go\r\nSet-Person: prime-loves-zig\r\nAccept: */*")
	require.NoError(t, headers.ParseBlock(block))
	assert.Equal(t, "prime-loves-zig", headers["Set-Person"])
	assert.Equal(t, "*/*", headers["Accept"])
	assert.Len(t, headers, 2)

	headers = NewHeaders()
	require.Error(t, headers.ParseBlock([]byte("Host: x\r\nbroken line")))

	headers = NewHeaders()
	require.NoError(t, headers.ParseBlock(nil))
	assert.Empty(t, headers)
}

func TestGetPrefersExactName(t *testing.T) {
	headers := Headers{"content-length": "1", "Content-Length": "2"}
	assert.Equal(t, "2", headers.Get("Content-Length"))
	assert.Equal(t, "1", headers.Get("content-length"))

	headers = Headers{"content-type": "text/plain"}
	assert.Equal(t, "text/plain", headers.Get("Content-Type"))

	_, ok := headers.Lookup("Host")
	assert.False(t, ok)

	headers.Del("CONTENT-TYPE")
	assert.Empty(t, headers)
}
