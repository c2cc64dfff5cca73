package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/nhdewitt/formserver/internal/config"
	"github.com/nhdewitt/formserver/internal/logging"
	"github.com/nhdewitt/formserver/internal/messages"
	"github.com/nhdewitt/formserver/internal/metrics"
	"github.com/nhdewitt/formserver/internal/request"
	"github.com/nhdewitt/formserver/internal/server"
	"github.com/nhdewitt/formserver/internal/static"
)

const applicationName = "httpserver"

// parseFlags loads the configuration from args. It reports whether the
// effective configuration should only be printed.
func parseFlags(args []string) (*config.Config, bool, error) {
	fs := pflag.NewFlagSet(applicationName, pflag.ContinueOnError)
	config.Flags(fs)
	printConfig := fs.Bool("print-config", false, "print the effective configuration as YAML and exit")
	if err := fs.Parse(args); err != nil {
		return nil, false, err
	}

	path, err := fs.GetString("config")
	if err != nil {
		return nil, false, err
	}
	cfg, err := config.Load(path, fs)
	if err != nil {
		return nil, false, err
	}
	return cfg, *printConfig, nil
}

func writeConfig(w io.Writer, cfg *config.Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	return enc.Close()
}

func provideLogger(cfg *config.Config, lc fx.Lifecycle) (*zap.Logger, error) {
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			_ = logger.Sync()
			return nil
		},
	})
	return logger, nil
}

func provideCatalog(cfg *config.Config) (*static.Catalog, error) {
	return static.NewCatalog(cfg.Static.Dir, cfg.Static.Paths)
}

func provideStore(cfg *config.Config, lc fx.Lifecycle) (*messages.Store, error) {
	store, err := messages.Open(cfg.Messages.DSN)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return store.Close()
		},
	})
	return store, nil
}

func provideRouter(cfg *config.Config, catalog *static.Catalog, store *messages.Store, m *metrics.Metrics, logger *zap.Logger) *server.Router {
	rt := server.NewRouter(cfg.Request.AllowedMethods, static.NewHandler(catalog))
	routes(rt, catalog, store, m, cfg.Messages.UploadDir, logger)
	return rt
}

// runServer starts listening when the application starts, and shuts the
// application down if the listener fails.
func runServer(cfg *config.Config, rt *server.Router, m *metrics.Metrics, logger *zap.Logger, lc fx.Lifecycle, sh fx.Shutdowner) {
	var srv *server.Server
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			var err error
			srv, err = server.Serve(server.Config{
				Port:         cfg.Server.Port,
				PoolSize:     cfg.Server.PoolSize,
				ReadTimeout:  cfg.Server.ReadTimeout,
				WriteTimeout: cfg.Server.WriteTimeout,
				Decoder: request.Decoder{
					MaxHeaderBytes: cfg.Request.MaxHeaderBytes,
					MaxBodyBytes:   cfg.Request.MaxBodyBytes,
					DefaultPath:    cfg.Request.DefaultPath,
				},
			}, rt, server.WithLogger(logger), server.WithMetrics(m))
			if err != nil {
				return fmt.Errorf("starting server: %w", err)
			}

			logger.Info("server started",
				zap.Stringer("addr", srv.Addr()),
				zap.Int("pool_size", cfg.Server.PoolSize),
				zap.Strings("routes", rt.Registry().Routes()),
			)
			go func() {
				if err := srv.Wait(); err != nil {
					logger.Error("server stopped", zap.Error(err))
					_ = sh.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			if srv == nil {
				return nil
			}
			err := srv.Close()
			logger.Info("server gracefully stopped")
			return err
		},
	})
}

func watchCatalog(cfg *config.Config, catalog *static.Catalog, logger *zap.Logger, lc fx.Lifecycle) {
	if !cfg.Static.Watch {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := catalog.Watch(ctx, logger.Named("static")); err != nil {
					logger.Warn("static catalog is not watched", zap.String("dir", catalog.Dir()), zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}

func newApp(cfg *config.Config) *fx.App {
	return fx.New(
		fx.Supply(cfg),
		fx.Provide(
			provideLogger,
			provideCatalog,
			provideStore,
			provideRouter,
			func() *metrics.Metrics { return metrics.New(nil) },
		),
		fx.WithLogger(func(l *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: l.Named("fx")}
		}),
		fx.Invoke(runServer, watchCatalog),
	)
}

func main() {
	cfg, printConfig, err := parseFlags(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if printConfig {
		if err := writeConfig(os.Stdout, cfg); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	app := newApp(cfg)
	if err := app.Err(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	app.Run()
}
