package main

import (
	"fmt"

	"github.com/aleister1102/oerscout/internal/adapters"
	"github.com/aleister1102/oerscout/internal/config"
	"github.com/aleister1102/oerscout/internal/datastore"
	"github.com/aleister1102/oerscout/internal/discovery"
	"github.com/aleister1102/oerscout/internal/fetcher"
	"github.com/aleister1102/oerscout/internal/logger"
	"github.com/aleister1102/oerscout/internal/registry"
	"github.com/aleister1102/oerscout/internal/retrieval"
	"github.com/aleister1102/oerscout/internal/urlhandler"
	"github.com/rs/zerolog"
)

// App holds the long-lived services shared by every command.
type App struct {
	Config    *config.GlobalConfig
	Logger    zerolog.Logger
	Fetcher   *fetcher.Fetcher
	Store     datastore.Store
	Registry  *registry.Service
	Discovery *discovery.Service
	Retrieval *retrieval.Service
}

// newApp loads and validates the configuration and builds every service. scanID, when
// set, keeps file logs for the session apart. The caller must defer app.Close().
func newApp(scanID string) (*App, error) {
	bootstrap := zerolog.Nop()
	cfg, err := config.LoadGlobalConfig(globalFlags.configPath, bootstrap)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if globalFlags.logLevel != "" {
		cfg.LogConfig.LogLevel = globalFlags.logLevel
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}

	var log zerolog.Logger
	if scanID != "" {
		log, err = logger.NewWithScanID(cfg.LogConfig, scanID)
	} else {
		log, err = logger.New(cfg.LogConfig)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	st, err := datastore.New(cfg.StoreConfig, log)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	f := fetcher.New(cfg.FetcherConfig, log)
	allowlist := urlhandler.NewDomainAllowlist(cfg.ScanConfig.AllowedDomains)
	adapterRegistry := adapters.NewDefaultRegistry(f, allowlist, log)
	registryService := registry.NewService(st, adapterRegistry, f, allowlist, log)

	var discoveryOpts []discovery.Option
	if cfg.DiscoveryConfig.EnableWebSearch {
		discoveryOpts = append(discoveryOpts, discovery.WithWebSearcher(
			discovery.NewWebSearcher(f, cfg.DiscoveryConfig.WebSearchURLTemplate, log)))
	}
	catalog := discovery.NewCatalogCache(adapterRegistry, cfg.DiscoveryConfig.CatalogCacheTTL(), log)
	discoveryService := discovery.NewService(cfg.DiscoveryConfig, st, registryService, catalog, cfg.Seeds, allowlist, log, discoveryOpts...)

	return &App{
		Config:    cfg,
		Logger:    log,
		Fetcher:   f,
		Store:     st,
		Registry:  registryService,
		Discovery: discoveryService,
		Retrieval: retrieval.NewService(f, cfg.RetrievalConfig, log),
	}, nil
}

// Close releases the store.
func (a *App) Close() {
	if err := a.Store.Close(); err != nil {
		a.Logger.Error().Err(err).Msg("Failed to close store")
	}
}

// scanOptions merges command flags over the configured scan defaults.
func (a *App) scanOptions(resume, autoActivate *bool) registry.ScanOptions {
	opts := registry.ScanOptions{
		ResumeMode:   a.Config.ScanConfig.ResumeMode,
		AutoActivate: a.Config.ScanConfig.AutoActivate,
	}
	if resume != nil {
		opts.ResumeMode = *resume
	}
	if autoActivate != nil {
		opts.AutoActivate = *autoActivate
	}
	return opts
}
