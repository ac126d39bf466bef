// Package supervisor composes the HTTP server, the background loops,
// and the metrics pump, and fate-shares them: the first task to
// terminate decides the process outcome.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kklingenberg/docker-job-dispatcher/internal/cleaner"
	"github.com/kklingenberg/docker-job-dispatcher/internal/config"
	"github.com/kklingenberg/docker-job-dispatcher/internal/dispatcher"
	"github.com/kklingenberg/docker-job-dispatcher/internal/engine"
	"github.com/kklingenberg/docker-job-dispatcher/internal/filter"
	"github.com/kklingenberg/docker-job-dispatcher/internal/metrics"
	"github.com/kklingenberg/docker-job-dispatcher/internal/scheduler"
)

// Run wires up and runs every component described by cfg, blocking
// until ctx is canceled or a fatal error occurs in any of them.
func Run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	transport, err := engine.ParseTransport(cfg.Transport)
	if err != nil {
		return fmt.Errorf("supervisor: %w", err)
	}

	// The engine client must be initialized before any task that uses it
	// is spawned.
	eng, err := engine.Init(transport)
	if err != nil {
		return fmt.Errorf("supervisor: initializing engine client: %w", err)
	}
	if err := eng.Ping(ctx); err != nil {
		return fmt.Errorf("supervisor: container engine unreachable at startup: %w", err)
	}

	filterSource, err := loadFilterSource(cfg, logger)
	if err != nil {
		return fmt.Errorf("supervisor: %w", err)
	}
	runtime, err := filter.Compile(filterSource)
	if err != nil {
		return fmt.Errorf("supervisor: compiling filter: %w", err)
	}

	reg := metrics.NewRegistry()

	startInline := !cfg.MaxConcurrentSet
	if cfg.MaxConcurrentSet && cfg.MaxConcurrent == 0 {
		logger.Warn("max-concurrent is 0: the dispatcher will not start containers")
	}
	if cfg.MaxConcurrentSet && !cfg.KeepExitedSet {
		logger.Warn("keep-exited-for is unset: exited jobs will be kept indefinitely")
	}

	svc := &dispatcher.Service{
		Engine:      eng,
		Filter:      runtime,
		Metrics:     reg,
		Namespace:   cfg.Namespace,
		StartInline: startInline,
		Logger:      logger,
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: svc.Router(),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		errc := make(chan error, 1)
		go func() { errc <- srv.ListenAndServe() }()
		select {
		case <-gctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		case err := <-errc:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		}
	})

	g.Go(func() error {
		pump := &metrics.Pump{Registry: reg, Engine: eng, Namespace: cfg.Namespace, Logger: logger}
		return pump.Run(gctx)
	})

	interval := time.Duration(cfg.UpkeepInterval) * time.Second

	if cfg.MaxConcurrentSet && cfg.MaxConcurrent > 0 {
		logger.Info("using a scheduler", zap.Uint16("max_concurrent", cfg.MaxConcurrent))
		sched := &scheduler.Loop{
			Engine:        eng,
			Namespace:     cfg.Namespace,
			MaxConcurrent: int(cfg.MaxConcurrent),
			Interval:      interval,
			Logger:        logger,
		}
		g.Go(func() error { return sched.Run(gctx) })
	}

	if cfg.KeepExitedSet {
		logger.Info("using a cleaner", zap.Uint32("keep_exited_for_seconds", cfg.KeepExitedFor))
		clean := &cleaner.Loop{
			Engine:    eng,
			Namespace: cfg.Namespace,
			MaxAge:    time.Duration(cfg.KeepExitedFor) * time.Second,
			Interval:  interval,
			Logger:    logger,
		}
		g.Go(func() error { return clean.Run(gctx) })
	}

	return g.Wait()
}

func loadFilterSource(cfg *config.Config, logger *zap.Logger) (string, error) {
	if cfg.FromFile != "" {
		if cfg.Filter != "" {
			logger.Warn("filter given both as file and argument; argument will be ignored")
		}
		data, err := readFile(cfg.FromFile)
		if err != nil {
			return "", fmt.Errorf("reading filter file: %w", err)
		}
		return data, nil
	}
	if cfg.Filter != "" {
		return cfg.Filter, nil
	}
	logger.Warn("no filter given; the default filter will be used")
	return filterDefaultSource()
}
