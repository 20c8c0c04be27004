package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	HTTPAddr string     `env:"HTTP_ADDR" envDefault:":8080"`
	DBPath   string     `env:"DB_PATH" envDefault:"data/campus.db"`
	RedisURL string     `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	NATSURL  string     `env:"NATS_URL"`
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	SPADir   string     `env:"SPA_DIR" envDefault:"../client/build"`

	// ZoneRefresh is how often the geofence index is rebuilt from the quest
	// sources; PersistTimeout bounds each visit-persistence call.
	ZoneRefresh    time.Duration `env:"ZONE_REFRESH" envDefault:"30s"`
	PersistTimeout time.Duration `env:"PERSIST_TIMEOUT" envDefault:"5s"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	return &cfg, nil
}
