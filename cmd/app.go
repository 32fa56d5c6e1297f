package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/mohammad-safakhou/scholar/config"
	"github.com/mohammad-safakhou/scholar/internal/knowledge"
	"github.com/mohammad-safakhou/scholar/internal/logger"
	"github.com/mohammad-safakhou/scholar/internal/research"
	"github.com/mohammad-safakhou/scholar/internal/telemetry"
	"github.com/mohammad-safakhou/scholar/provider"
	"github.com/mohammad-safakhou/scholar/repository"
	"github.com/mohammad-safakhou/scholar/session"
	"github.com/mohammad-safakhou/scholar/tools/paper_search"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// app is the wired process: configuration, logging, telemetry, storage and
// the research orchestrator.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *telemetry.Metrics
	store    session.Store
	search   *paper_search.Client
	research *research.Orchestrator

	closers []func(context.Context) error
}

// newApp loads cfgPath and builds every component. Logs go to console, which
// must not be stdout when stdout carries a protocol.
func newApp(ctx context.Context, cfgPath string, console io.Writer) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg}

	log, closeLog, err := logger.New(logger.Options{
		Level:   cfg.General.LogLevel,
		Debug:   cfg.General.Debug,
		LogFile: cfg.General.LogFile,
		Console: console,
	})
	if err != nil {
		return nil, err
	}
	a.logger = log
	a.closers = append(a.closers, func(context.Context) error { return closeLog() })

	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.Telemetry.OTLPEndpoint, version, log)
	if err != nil {
		log.Warn("tracing unavailable", zap.Error(err))
	} else {
		a.closers = append(a.closers, shutdownTracing)
	}

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = telemetry.NewMetrics(a.registry)

	repo, closeRepo, err := repository.NewSnapshotRepository(ctx, cfg.Storage)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("snapshot repository: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error { return closeRepo() })

	store, err := session.NewStore(session.InMemoryStore, cfg.Session, repo, log, a.metrics)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.store = store
	a.closers = append(a.closers, func(context.Context) error { store.Close(); return nil })

	llmProvider, err := provider.NewProvider(cfg.LLM)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("llm provider: %w", err)
	}
	search, err := paper_search.NewClientFromConfig(cfg.Search, log, a.metrics)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("paper search: %w", err)
	}
	a.search = search

	a.research = research.NewOrchestrator(
		store,
		search,
		knowledge.NewExtractor(llmProvider, log, a.metrics),
		llmProvider,
		log,
		a.metrics,
		research.Options{
			CapabilityTimeout: cfg.Session.CapabilityTimeout,
			DefaultMaxResults: cfg.Search.DefaultMaxResults,
			HistoryWindow:     cfg.Session.MaxContextLength,
		},
	)
	log.Info("scholar ready",
		zap.String("version", version),
		zap.String("llm", llmProvider.Name()),
		zap.Strings("search_providers", cfg.Search.Providers),
		zap.String("storage", cfg.Storage.Backend))
	return a, nil
}

// Close releases components in reverse order of construction.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
