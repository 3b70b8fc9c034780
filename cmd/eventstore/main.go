package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/rmacdonaldsmith/eventstore-go/internal/config"
	internalstore "github.com/rmacdonaldsmith/eventstore-go/internal/eventstore"
	"github.com/rmacdonaldsmith/eventstore-go/internal/healthcheck"
	"github.com/rmacdonaldsmith/eventstore-go/internal/httpapi"
)

const (
	// Application info
	appName    = "EventStore"
	appVersion = "0.1.0"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

// run starts every server and blocks until ctx is cancelled or one of them fails
func run(ctx context.Context, args []string, stdout io.Writer) error {
	flags := flag.NewFlagSet("eventstore", flag.ContinueOnError)
	configPath := flags.String("config", "", "Path to a YAML config file (optional)")
	showVersion := flags.Bool("version", false, "Show version and exit")
	if err := flags.Parse(args); err != nil {
		return err
	}

	if *showVersion {
		fmt.Fprintf(stdout, "%s v%s\n", appName, appVersion)
		return nil
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	level := new(slog.LevelVar)
	logger, err := newLogger(cfg.Log, level, stdout)
	if err != nil {
		return err
	}
	logger.Info("starting", "app", appName, "version", appVersion, "address", cfg.Server.Address())

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	store, err := newStore(cfg, logger, registry)
	if err != nil {
		return err
	}

	apiConfig := httpapi.Config{
		Address:      cfg.Server.Address(),
		SecretKey:    cfg.Auth.SecretKey,
		NoAuth:       cfg.Auth.Disabled,
		TokenTTL:     cfg.Auth.TokenTTL,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		Logger:       logger,
	}
	if cfg.Metrics.Enabled {
		apiConfig.MetricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
		apiConfig.MetricsPath = cfg.Metrics.Path
	}
	if cfg.Auth.Disabled {
		logger.Warn("authentication disabled; every request runs as dev-client")
	}
	api := httpapi.NewServer(store, apiConfig)

	if *configPath != "" {
		unwatch, err := config.Watch(*configPath, func(next *config.Config, err error) {
			if err != nil {
				logger.Error("config reload failed", "error", err)
				return
			}
			applyLogLevel(logger, level, next.Log)
		})
		if err != nil {
			logger.Warn("config hot reload unavailable", "error", err)
		} else {
			defer unwatch()
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	apiListener, err := net.Listen("tcp", cfg.Server.Address())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Server.Address(), err)
	}
	g.Go(func() error {
		if err := api.Serve(apiListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http api: %w", err)
		}
		return nil
	})

	var health *healthcheck.Server
	if cfg.GRPC.HealthAddress != "" {
		healthListener, err := net.Listen("tcp", cfg.GRPC.HealthAddress)
		if err != nil {
			apiListener.Close()
			return fmt.Errorf("failed to listen on %s: %w", cfg.GRPC.HealthAddress, err)
		}
		health = healthcheck.NewServer(store, healthcheck.Config{Logger: logger})
		g.Go(func() error {
			return health.Serve(healthListener)
		})
		g.Go(func() error {
			health.Run(gctx)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down", "timeout", cfg.Server.ShutdownTimeout)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		err := api.Stop(shutdownCtx)
		if health != nil {
			health.Stop()
		}
		return errors.Join(err, store.Close())
	})

	err = g.Wait()
	logger.Info("stopped", "app", appName)
	return err
}

// newLogger builds the process logger from log config; level is kept so reloads can change it
func newLogger(cfg config.LogConfig, level *slog.LevelVar, w io.Writer) (*slog.Logger, error) {
	lvl, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	level.Set(lvl)

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler).With("service", "eventstore"), nil
}

func applyLogLevel(logger *slog.Logger, level *slog.LevelVar, cfg config.LogConfig) {
	lvl, err := cfg.SlogLevel()
	if err != nil {
		logger.Error("ignoring invalid log level", "error", err)
		return
	}
	if lvl != level.Level() {
		logger.Info("log level changed", "from", level.Level().String(), "to", lvl.String())
		level.Set(lvl)
	}
}

func newStore(cfg *config.Config, logger *slog.Logger, registerer prometheus.Registerer) (*internalstore.InMemoryEventStore, error) {
	ordering, err := cfg.Store.OrderingPolicy()
	if err != nil {
		return nil, err
	}
	mode, err := cfg.Store.IterationMode()
	if err != nil {
		return nil, err
	}

	storeConfig := internalstore.NewConfig().
		WithOrdering(ordering).
		WithMode(mode).
		WithLogger(logger)
	if cfg.Metrics.Enabled {
		storeConfig = storeConfig.WithRegisterer(registerer)
	}

	store, err := internalstore.NewInMemoryEventStoreWithConfig(storeConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create event store: %w", err)
	}
	return store, nil
}
