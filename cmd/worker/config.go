package main

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"

	"onboarding-backend/internal/config"
)

// Config holds what the worker needs; it shares the API's environment
type Config struct {
	App       config.AppConfig
	Redis     config.RedisConfig
	Analytics config.AnalyticsConfig
	IndexNow  config.IndexNowConfig

	Concurrency int    `env:"WORKER_CONCURRENCY" envDefault:"10"`
	HealthAddr  string `env:"WORKER_HEALTH_ADDR" envDefault:":9999"`
}

func loadConfig() (*Config, error) {
	appCfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		App:       appCfg.App,
		Redis:     appCfg.Redis,
		Analytics: appCfg.Analytics,
		IndexNow:  appCfg.IndexNow,
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse worker config: %w", err)
	}

	log.Info().
		Str("redis", cfg.Redis.Host).
		Int("concurrency", cfg.Concurrency).
		Bool("analytics", cfg.Analytics.MeasurementID != "").
		Bool("indexnow", cfg.IndexNow.Key != "").
		Msg("[Config] Worker configuration loaded")

	return cfg, nil
}
