package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env              string
	ListenAddr       string
	DatabaseURL      string
	StationTZ        *time.Location
	DashboardRefresh time.Duration
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Load reads configuration from the environment, after loading a .env file if
// one is present. An empty DATABASE_URL is not an error: the server falls
// back to the in-memory store for single-station runs.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Env:         getenv("APP_ENV", "development"),
		ListenAddr:  getenv("LISTEN_ADDR", ":8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		StationTZ:   time.Local,
	}

	if tz := os.Getenv("STATION_TZ"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return cfg, fmt.Errorf("STATION_TZ %q: %w", tz, err)
		}
		cfg.StationTZ = loc
	}

	if v := os.Getenv("DASHBOARD_REFRESH"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("DASHBOARD_REFRESH %q: %w", v, err)
		}
		cfg.DashboardRefresh = d
	}
	return cfg, nil
}
