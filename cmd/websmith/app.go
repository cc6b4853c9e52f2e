package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	websmith "github.com/pcak20/websmith-frontend-v2-sub001"
	"github.com/pcak20/websmith-frontend-v2-sub001/config"
	"github.com/pcak20/websmith-frontend-v2-sub001/perflog"
	"github.com/pcak20/websmith-frontend-v2-sub001/redisstore"
)

type globalFlags struct {
	configPath string
	envFile    string
}

// app bundles a configured client with the resources it owns.
type app struct {
	cfg     *config.Config
	client  *websmith.Client
	logger  *zap.Logger
	store   *redisstore.Store
	perfLog *perflog.Log
}

func loadConfig(flags *globalFlags) (*config.Config, error) {
	if flags.envFile != "" {
		if err := config.LoadDotEnv(flags.envFile); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newApp(ctx context.Context, flags *globalFlags) (*app, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &app{cfg: cfg, logger: logger}
	opts := cfg.ClientOptions()
	opts = append(opts, websmith.WithLogger(websmith.NewZapLogger(logger)))

	if cfg.Redis.Enabled {
		connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		store, err := redisstore.New(connectCtx, redisstore.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
		cancel()
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init shared cache: %w", err)
		}
		a.store = store
		opts = append(opts, websmith.WithSharedCache(store))
	}

	a.client = websmith.New(opts...)
	if !a.client.IsValid() {
		err := a.client.ValidationError()
		a.Close()
		return nil, err
	}

	if cfg.Performance.DBPath != "" {
		pl, err := perflog.Open(cfg.Performance.DBPath)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init performance log: %w", err)
		}
		a.perfLog = pl
		a.client.PerformanceMonitor().SetSink(pl, func(err error) {
			logger.Warn("Performance log write failed", zap.Error(err))
		})
	}

	return a, nil
}

func (a *app) Close() {
	if a.perfLog != nil {
		_ = a.perfLog.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}
