// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every tunable of the service.
type Config struct {
	Port   int    `env:"PORT" envDefault:"8080"`
	DBPath string `env:"DB_PATH" envDefault:"data/poker.db"`

	UndoWindow      time.Duration `env:"UNDO_WINDOW" envDefault:"10s"`
	ReconnectGrace  time.Duration `env:"RECONNECT_GRACE" envDefault:"30s"`
	RoomIdleTimeout time.Duration `env:"ROOM_IDLE_TIMEOUT" envDefault:"10m"`
	SweepInterval   time.Duration `env:"SWEEP_INTERVAL" envDefault:"30s"`
	MaxParticipants int           `env:"MAX_PARTICIPANTS" envDefault:"20"`
	ReplayCapacity  int           `env:"REPLAY_CAPACITY" envDefault:"256"`
}

// Load reads an optional .env file and parses the environment.
func Load() (Config, error) {
	// Missing .env is fine; explicit environment always wins.
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
