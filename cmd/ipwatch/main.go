package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"ipwatch/internal/api"
	"ipwatch/internal/config"
	"ipwatch/internal/history"
	"ipwatch/internal/logger"
	"ipwatch/internal/notify"
	"ipwatch/internal/resolver"
	"ipwatch/internal/types"
	"ipwatch/internal/version"
	"ipwatch/internal/watcher"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version information")
	debug := flag.Bool("debug", false, "Enable debug logging")
	once := flag.Bool("once", false, "Run a single check and exit")
	flag.Parse()

	// Show version if requested
	if *showVersion {
		fmt.Println(version.GetInfo().String())
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *debug {
		cfg.Log.Level = "debug"
	}

	// Initialize logger
	log, err := logger.New(&cfg.Log)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *once, log); err != nil {
		log.Error("ipwatch exited with error", zap.Error(err))
		_ = log.Sync()
		stop()
		os.Exit(1)
	}

	log.Info("Shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, once bool, log *zap.Logger) error {
	info := version.GetInfo()
	log.Info("Starting ipwatch",
		zap.String("version", info.Version),
		zap.String("commit", info.GitCommit),
		zap.Strings("sources", cfg.Sources()),
		zap.Duration("interval", cfg.Interval()),
		zap.String("history_driver", cfg.History.Driver))

	// Initialize history store
	store, err := history.Open(ctx, &cfg.History, log)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("Failed to close history", zap.Error(err))
		}
	}()

	// Initialize notifiers
	manager, err := notify.NewManager(cfg, log)
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrConfiguration, err)
	}
	log.Info("Notification channels ready", zap.Any("channels", manager.Channels()))

	w, err := watcher.New(
		resolver.New(log, resolver.WithTimeout(cfg.Watch.RequestTimeout)),
		store,
		manager,
		watcher.Options{
			Sources:       cfg.Sources(),
			Interval:      cfg.Interval(),
			JitterMin:     cfg.Watch.JitterMin,
			JitterMax:     cfg.Watch.JitterMax,
			FinishTimeout: cfg.Watch.FinishTimeout,
		},
		watcher.WithEventHandler(watcher.LogEvents(log)),
	)
	if err != nil {
		return err
	}

	if once {
		outcome, err := w.RunCycle(ctx)
		log.Info("Single check finished", zap.String("outcome", string(outcome)))
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.API.Enabled {
		router := api.NewRouter(store, w, cfg.Log.Level == "debug", log)
		srv := api.NewServer(cfg.API.Listen, router, log)
		g.Go(func() error {
			return srv.Run(gctx)
		})
	}

	g.Go(func() error {
		if err := w.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	return g.Wait()
}
