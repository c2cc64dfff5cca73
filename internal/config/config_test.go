package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, 64, cfg.Server.PoolSize)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 4096, cfg.Request.MaxHeaderBytes)
	assert.Equal(t, int64(10<<20), cfg.Request.MaxBodyBytes)
	assert.Equal(t, "/index.html", cfg.Request.DefaultPath)
	assert.Contains(t, cfg.Request.AllowedMethods, "POST")
	assert.Equal(t, "public", cfg.Static.Dir)
	assert.True(t, cfg.Static.Watch)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFileEnvAndFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	yaml := `
server:
  port: 8080
  read_timeout: 5s
request:
  max_header_bytes: 8192
  allowed_methods: [get, post]
static:
  dir: www
  paths: ["/index.html", "/forms.html"]
log:
  format: console
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("FORMSERVER_SERVER_POOL_SIZE", "8")
	t.Setenv("FORMSERVER_REQUEST_DEFAULT_PATH", "/home.html")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	Flags(fs)
	require.NoError(t, fs.Parse([]string{"--log.level=debug", "--server.port=7070"}))

	cfg, err := Load(path, fs)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port, "flags win over the file")
	assert.Equal(t, 8, cfg.Server.PoolSize)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 8192, cfg.Request.MaxHeaderBytes)
	assert.Equal(t, []string{"GET", "POST"}, cfg.Request.AllowedMethods)
	assert.Equal(t, "/home.html", cfg.Request.DefaultPath)
	assert.Equal(t, "www", cfg.Static.Dir)
	assert.Equal(t, []string{"/index.html", "/forms.html"}, cfg.Static.Paths)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	require.Error(t, err)
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := Config{
		Server:  ServerConfig{Port: 0, PoolSize: 0, ReadTimeout: -time.Second},
		Request: RequestConfig{MaxHeaderBytes: 10, DefaultPath: "index.html"},
		Log:     LogConfig{Level: "loud", Format: "xml"},
	}
	errs := multierr.Errors(Validate(&cfg))
	assert.ElementsMatch(t, []error{
		ErrInvalidPort,
		ErrInvalidPoolSize,
		ErrInvalidTimeout,
		ErrInvalidHeaderCap,
		ErrInvalidBodyCap,
		ErrInvalidDefault,
		ErrNoMethods,
		ErrNoStaticDir,
		ErrInvalidLogLevel,
		ErrInvalidLogFormat,
	}, errs)
}

func TestEnvValidationFailure(t *testing.T) {
	t.Setenv("FORMSERVER_SERVER_POOL_SIZE", "0")
	_, err := Load("", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pool_size")
}
