package multipart

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func join(lines ...string) []byte {
	return []byte(strings.Join(lines, "\r\n"))
}

func TestParseTwoParts(t *testing.T) {
	png := "\x89PNG\r\n\x1a\n\x00\x01"
	body := join(
		"--XYZ",
		`Content-Disposition: form-data; name="name"`,
		"",
		"file",
		"--XYZ",
		`Content-Disposition: form-data; name="upload"; filename="a.png"`,
		"Content-Type: image/png",
		"",
		png,
		"--XYZ--",
		"",
	)

	parts, err := Parse(body, "XYZ")
	require.NoError(t, err)
	require.Len(t, parts, 2)

	name, ok := parts[0].FormDataName()
	require.True(t, ok)
	assert.Equal(t, "name", name)
	assert.Equal(t, "file", parts[0].BodyString())
	assert.True(t, parts[0].IsText())
	_, ok = parts[0].FormDataFilename()
	assert.False(t, ok)

	filename, ok := parts[1].FormDataFilename()
	require.True(t, ok)
	assert.Equal(t, "a.png", filename)
	assert.False(t, parts[1].IsText())
	assert.Equal(t, []byte(png), parts[1].Body())
	ct, ok := parts[1].ContentType()
	require.True(t, ok)
	assert.Equal(t, "image/png", ct)
	assert.Equal(t, map[string]string{"name": "upload", "filename": "a.png"}, parts[1].DispositionProperties())
}

func TestParseStopsWithoutTerminalMarker(t *testing.T) {
	// the last boundary is followed by neither "--" nor CRLF
	body := join(
		"preamble",
		"--b",
		`Content-Disposition: form-data; name="a"`,
		"",
		"1",
		"--b",
	)
	parts, err := Parse(body, "b")
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, "1", parts[0].BodyString())
}

func TestParseEmptyBodyAndHeaderlessPart(t *testing.T) {
	body := join(
		"--b",
		`Content-Disposition: form-data; name="empty"`,
		"",
		"",
		"--b",
		"",
		"raw",
		"--b--",
	)
	parts, err := Parse(body, "b")
	require.NoError(t, err)
	require.Len(t, parts, 2)
	assert.False(t, parts[0].HasBody())
	assert.Equal(t, 0, parts[0].Size())
	assert.Empty(t, parts[1].Headers())
	assert.Equal(t, "raw", parts[1].BodyString())
	assert.True(t, parts[1].IsText())
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]byte("no boundary here"), "b")
	require.ErrorIs(t, err, ErrNoBoundary)

	_, err = Parse(join("--b", "Content-Type: text/plain", "", "dangling"), "b")
	require.ErrorIs(t, err, ErrUnterminated)

	_, err = Parse(join("--b", "Content-Type: text/plain", "--b--"), "b")
	require.ErrorIs(t, err, ErrNoHeaderEnd)
}

func TestBoundary(t *testing.T) {
	b, err := Boundary("multipart/form-data; boundary=XYZ")
	require.NoError(t, err)
	assert.Equal(t, "XYZ", b)

	b, err = Boundary(`multipart/form-data; boundary="with space"`)
	require.NoError(t, err)
	assert.Equal(t, "with space", b)

	_, err = Boundary("multipart/form-data")
	require.ErrorIs(t, err, ErrNoBoundary)

	_, err = Boundary("text/plain; boundary=x")
	require.Error(t, err)
}

func TestDatumDisposition(t *testing.T) {
	d := NewDatum(join(`Content-Disposition: attachment; name="x"`, "garbage", "Content-Type: text/plain; charset=utf-8"), []byte("v"))
	_, ok := d.FormDataName()
	assert.False(t, ok, "only form-data dispositions expose a form name")
	assert.Equal(t, "x", d.DispositionProperties()["name"])
	assert.True(t, d.IsText())
	assert.Len(t, d.Headers(), 2)

	v, ok := d.Header("content-type")
	require.True(t, ok)
	assert.Equal(t, "text/plain; charset=utf-8", v)
	assert.Contains(t, d.String(), "body: 1 bytes")
}

func TestDatumDispositionQuotedSemicolon(t *testing.T) {
	d := NewDatum(join(`Content-Disposition: form-data; name="f"; filename="a;b.png"`), []byte("x"))
	assert.Equal(t, map[string]string{"name": "f", "filename": "a;b.png"}, d.DispositionProperties())

	filename, ok := d.FormDataFilename()
	require.True(t, ok)
	assert.Equal(t, "a;b.png", filename)
}

func TestSaveBodyToFile(t *testing.T) {
	d := NewDatum(nil, []byte{0, 1, 2})
	path := filepath.Join(t.TempDir(), "part.bin")
	require.NoError(t, d.SaveBodyToFile(path))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 2}, got)
}
