// File: cmd/components.go
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/shelfcheck/internal/apicheck"
	"github.com/xkilldash9x/shelfcheck/internal/browser/session"
	"github.com/xkilldash9x/shelfcheck/internal/config"
	"github.com/xkilldash9x/shelfcheck/internal/network"
	"github.com/xkilldash9x/shelfcheck/internal/scenario"
	"github.com/xkilldash9x/shelfcheck/internal/store"
)

const shutdownTimeout = 15 * time.Second

// browserPool opens UI surfaces and is shut down after the run.
type browserPool interface {
	scenario.SurfaceFactory
	Shutdown(ctx context.Context) error
}

// dependencies are the constructors the commands use. Tests replace them.
type dependencies struct {
	openBrowser func(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (browserPool, error)
	openStore   func(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (*store.Store, func(), error)
}

func defaultDependencies() dependencies {
	return dependencies{
		openBrowser: func(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (browserPool, error) {
			m, err := session.NewManager(ctx, cfg, logger)
			if err != nil {
				return nil, err
			}
			return m, nil
		},
		openStore: openPostgresStore,
	}
}

func openPostgresStore(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (*store.Store, func(), error) {
	pool, err := pgxpool.New(ctx, cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create database pool: %w", err)
	}
	s, err := store.New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return s, pool.Close, nil
}

// runComponents holds the initialized services of one run.
type runComponents struct {
	Browser    browserPool
	API        *apicheck.Client
	Store      *store.Store
	closeStore func()
	logger     *zap.Logger
}

// initializeRunComponents starts only what the selected scenarios need.
func initializeRunComponents(ctx context.Context, deps dependencies, cfg *config.Config, needUI, needAPI bool, logger *zap.Logger) (*runComponents, error) {
	c := &runComponents{logger: logger}

	if needAPI {
		httpCfg := network.NewDefaultClientConfig()
		httpCfg.IgnoreTLSErrors = cfg.Browser.IgnoreTLSErrors
		httpCfg.RequestTimeout = cfg.API.RequestTimeout
		httpCfg.Logger = logger.Named("httpclient")
		api, err := apicheck.New(cfg.Target.APIURL, apicheck.Options{
			RateLimit: cfg.API.RateLimit,
			Burst:     cfg.API.Burst,
			HTTP:      network.NewClient(httpCfg),
			Logger:    logger,
		})
		if err != nil {
			return c, fmt.Errorf("failed to create API client: %w", err)
		}
		c.API = api
	}

	if needUI {
		b, err := deps.openBrowser(ctx, cfg.Browser, logger)
		if err != nil {
			return c, fmt.Errorf("failed to start browser: %w", err)
		}
		c.Browser = b
	}

	if cfg.Store.Enabled {
		s, closeStore, err := deps.openStore(ctx, cfg.Store, logger)
		if err != nil {
			return c, fmt.Errorf("failed to open result store: %w", err)
		}
		c.Store, c.closeStore = s, closeStore
	}
	return c, nil
}

// Shutdown releases every component. It runs even after ctx was cancelled.
func (c *runComponents) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if c.Browser != nil {
		if err := c.Browser.Shutdown(ctx); err != nil {
			c.logger.Warn("Browser shutdown failed", zap.Error(err))
		}
	}
	if c.closeStore != nil {
		c.closeStore()
	}
}
