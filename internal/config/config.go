// Package config loads server settings from an optional YAML file,
// FORMSERVER_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

const EnvPrefix = "FORMSERVER"

type Config struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Request  RequestConfig  `mapstructure:"request" yaml:"request"`
	Static   StaticConfig   `mapstructure:"static" yaml:"static"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Messages MessagesConfig `mapstructure:"messages" yaml:"messages"`
}

type ServerConfig struct {
	Port     int `mapstructure:"port" yaml:"port"`
	PoolSize int `mapstructure:"pool_size" yaml:"pool_size"`
	// ReadTimeout and WriteTimeout bound a whole connection; zero disables
	// the deadline.
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
}

type RequestConfig struct {
	MaxHeaderBytes int      `mapstructure:"max_header_bytes" yaml:"max_header_bytes"`
	MaxBodyBytes   int64    `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
	DefaultPath    string   `mapstructure:"default_path" yaml:"default_path"`
	AllowedMethods []string `mapstructure:"allowed_methods" yaml:"allowed_methods"`
}

type StaticConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
	// Paths restricts static serving to these request paths. Empty means
	// every regular file under Dir.
	Paths []string `mapstructure:"paths" yaml:"paths"`
	Watch bool     `mapstructure:"watch" yaml:"watch"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

type MessagesConfig struct {
	DSN       string `mapstructure:"dsn" yaml:"dsn"`
	UploadDir string `mapstructure:"upload_dir" yaml:"upload_dir"`
}

var defaults = map[string]any{
	"server.port":              9999,
	"server.pool_size":         64,
	"server.read_timeout":      30 * time.Second,
	"server.write_timeout":     30 * time.Second,
	"request.max_header_bytes": 4096,
	"request.max_body_bytes":   int64(10 << 20),
	"request.default_path":     "/index.html",
	"request.allowed_methods":  []string{"GET", "POST", "PUT", "DELETE", "HEAD", "OPTIONS", "PATCH"},
	"static.dir":               "public",
	"static.paths":             []string{},
	"static.watch":             true,
	"log.level":                "info",
	"log.format":               "json",
	"messages.dsn":             "messages.db",
	"messages.upload_dir":      "uploads",
}

// Flags registers the command-line flags understood by Load.
func Flags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a YAML configuration file")
	fs.Int("server.port", 9999, "TCP port to listen on")
	fs.Int("server.pool_size", 64, "number of connection workers")
	fs.String("static.dir", "public", "directory holding static resources")
	fs.String("log.level", "info", "log level (debug, info, warn, error)")
	fs.String("log.format", "json", "log format (json, console)")
}

// New returns a viper instance carrying the defaults and environment
// binding, with fs bound on top when it is not nil.
func New(fs *pflag.FlagSet) *viper.Viper {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		fs.VisitAll(func(f *pflag.Flag) {
			if f.Name == "config" {
				return
			}
			_ = v.BindPFlag(f.Name, f)
		})
	}
	return v
}

// Load builds the configuration. A non-empty path must name a readable
// YAML file.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	v := New(fs)
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
		}
	}
	return FromViper(v)
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	for i, m := range cfg.Request.AllowedMethods {
		cfg.Request.AllowedMethods[i] = strings.ToUpper(strings.TrimSpace(m))
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

var (
	ErrInvalidPort      = errors.New("server.port must be between 1 and 65535")
	ErrInvalidPoolSize  = errors.New("server.pool_size must be positive")
	ErrInvalidTimeout   = errors.New("server timeouts must not be negative")
	ErrInvalidHeaderCap = errors.New("request.max_header_bytes must be at least 64")
	ErrInvalidBodyCap   = errors.New("request.max_body_bytes must be positive")
	ErrInvalidDefault   = errors.New("request.default_path must start with '/'")
	ErrNoMethods        = errors.New("request.allowed_methods must not be empty")
	ErrNoStaticDir      = errors.New("static.dir must be set")
	ErrInvalidLogLevel  = errors.New("log.level must be one of debug, info, warn, error")
	ErrInvalidLogFormat = errors.New("log.format must be json or console")
)

// Validate reports every problem in cfg at once.
func Validate(cfg *Config) error {
	var err error
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		err = multierr.Append(err, ErrInvalidPort)
	}
	if cfg.Server.PoolSize <= 0 {
		err = multierr.Append(err, ErrInvalidPoolSize)
	}
	if cfg.Server.ReadTimeout < 0 || cfg.Server.WriteTimeout < 0 {
		err = multierr.Append(err, ErrInvalidTimeout)
	}
	if cfg.Request.MaxHeaderBytes < 64 {
		err = multierr.Append(err, ErrInvalidHeaderCap)
	}
	if cfg.Request.MaxBodyBytes <= 0 {
		err = multierr.Append(err, ErrInvalidBodyCap)
	}
	if !strings.HasPrefix(cfg.Request.DefaultPath, "/") {
		err = multierr.Append(err, ErrInvalidDefault)
	}
	if len(cfg.Request.AllowedMethods) == 0 {
		err = multierr.Append(err, ErrNoMethods)
	}
	if cfg.Static.Dir == "" {
		err = multierr.Append(err, ErrNoStaticDir)
	}
	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		err = multierr.Append(err, ErrInvalidLogLevel)
	}
	switch strings.ToLower(cfg.Log.Format) {
	case "json", "console":
	default:
		err = multierr.Append(err, ErrInvalidLogFormat)
	}
	return err
}
