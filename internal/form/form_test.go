package form

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuery(t *testing.T) {
	cases := []struct {
		query string
		want  Values
	}{
		{"a=1&a=2&b=x", Values{"a": {"1", "2"}, "b": {"x"}}},
		{"name=John+Doe&city=New%20York", Values{"name": {"John Doe"}, "city": {"New York"}}},
		{"%D0%B8%D0%BC%D1%8F=%D0%BF", Values{"имя": {"п"}}},
		{"flag&x=", Values{"flag": {""}, "x": {""}}},
		{"a=1&&a=3&", Values{"a": {"1", "3"}}},
		{"eq=a=b", Values{"eq": {"a=b"}}},
		{"", Values{}},
	}
	for _, c := range cases {
		got, err := ParseQuery(c.query)
		require.NoError(t, err, c.query)
		assert.Equal(t, c.want, got, c.query)
	}

	_, err := ParseQuery("bad=%zz")
	require.Error(t, err)
	_, err = ParseQuery("%g=1")
	require.Error(t, err)
}

func TestParseURLEncodedBody(t *testing.T) {
	got, err := ParseURLEncoded([]byte("login=joe&password=hi"))
	require.NoError(t, err)
	assert.Equal(t, Values{"login": {"joe"}, "password": {"hi"}}, got)
	assert.Equal(t, "joe", got.Get("login"))
}

func TestParsePlainText(t *testing.T) {
	got := ParsePlainText([]byte("login=joe\r\npassword=a%20b\r\nnoise\r\nlogin=ann\r\n"))
	assert.Equal(t, Values{"login": {"joe", "ann"}, "password": {"a%20b"}}, got)
	assert.Empty(t, ParsePlainText(nil))
}

func TestValuesAccessors(t *testing.T) {
	v := Values{}
	assert.Equal(t, "", v.Get("missing"))
	assert.NotNil(t, v.All("missing"))
	assert.False(t, v.Has("missing"))

	v.Add("k", "1")
	v.Add("k", "2")
	all := v.All("k")
	all[0] = "changed"
	assert.Equal(t, []string{"1", "2"}, v["k"])
	assert.True(t, v.Has("k"))
}
