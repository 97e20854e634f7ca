// Command tablefit serves guest preference collection and restaurant
// ranking over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/ahrav/go-tablefit/infrastructure/cache"
	"github.com/ahrav/go-tablefit/infrastructure/middleware"
	"github.com/ahrav/go-tablefit/infrastructure/store/postgres"
	"github.com/ahrav/go-tablefit/infrastructure/units"
	"github.com/ahrav/go-tablefit/internal/application"
	"github.com/ahrav/go-tablefit/internal/config"
	"github.com/ahrav/go-tablefit/internal/domain"
	"github.com/ahrav/go-tablefit/internal/httpapi"
	"github.com/ahrav/go-tablefit/internal/logging"
	"github.com/ahrav/go-tablefit/internal/ports"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "tablefit: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := middleware.NewPrometheusMetrics(reg)

	store, err := postgres.Open(ctx, cfg.Postgres.DSN, postgres.PoolConfig{
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
	})
	if err != nil {
		return err
	}
	defer store.Close()
	if cfg.Postgres.Migrate {
		if err := store.Migrate(ctx); err != nil {
			return err
		}
	}
	checks := map[string]httpapi.HealthCheck{"postgres": store.Ping}

	var classifications ports.CacheStore
	if cfg.Redis.Addr != "" {
		rc, err := cache.Connect(ctx, cache.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		}, metrics)
		if err != nil {
			return err
		}
		defer rc.Close()
		classifications = rc
		checks["redis"] = rc.Ping
	}

	vocab := domain.DefaultVocabulary()

	var classifier ports.LLMClient
	if cfg.LLM.Enabled {
		client, err := newLLMClient(cfg.LLM, metrics, logger)
		if err != nil {
			return err
		}
		classifier = client
	}

	source, err := newCandidateSource(cfg.Places, vocab, metrics, logger)
	if err != nil {
		return err
	}

	registry := application.NewDefaultUnitRegistry(units.Dependencies{
		Vocabulary: vocab,
		LLM:        classifier,
		Cache:      classifications,
	})
	loader, err := application.NewPlanLoader(registry)
	if err != nil {
		return err
	}
	plan, err := loadPlan(ctx, loader, cfg.Plan)
	if err != nil {
		return err
	}
	logger.Info("ranking plan loaded", zap.Strings("steps", plan.Steps()))

	rankings, err := application.NewRankingService(application.RankingServiceConfig{
		Responses: store,
		Areas:     store,
		Source:    source,
		Results:   store,
		Plan:      plan,
		Metrics:   metrics,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	responses, err := application.NewResponseService(store, application.NewSubmissionValidator(vocab), logger)
	if err != nil {
		return err
	}
	events, err := application.NewEventService(store, store, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: httpapi.NewRouter(httpapi.Config{
			Events:    events,
			Responses: responses,
			Rankings:  rankings,
			Checks:    checks,
			Gatherer:  reg,
			Logger:    logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

func loadPlan(ctx context.Context, loader *application.PlanLoader, cfg config.PlanConfig) (*application.Plan, error) {
	if cfg.File != "" {
		return loader.LoadFromFile(ctx, cfg.File)
	}
	return loader.LoadBuiltin(ctx, cfg.Builtin)
}
