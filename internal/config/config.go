package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ListenAddr         string
	DBPath             string
	PhotoPath          string
	PhotoBucket        string
	PublicBaseURL      string
	PhotoSigningKey    string
	WeatherForecastURL string
	WeatherArchiveURL  string
	WeatherTimeout     time.Duration
	WeatherCacheTTL    time.Duration
	SweepInterval      time.Duration
	PinGracePeriod     time.Duration
	SessionTTL         time.Duration
	TimeZone           *time.Location
	LogLevel           string
	LogFile            string
}

// Load reads configuration from the environment, after merging a .env file
// from the working directory if one exists. Invalid durations keep their
// defaults and are reported in the returned error.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env file", "error", err)
	}

	var errs []error
	cfg := &Config{
		ListenAddr:         getEnv("LISTEN_ADDR", ":8080"),
		DBPath:             getEnv("DB_PATH", "/data/catchlogs.db"),
		PhotoPath:          getEnv("PHOTO_LOCAL_PATH", "/data/photos"),
		PhotoBucket:        getEnv("PHOTO_BUCKET", "catch-photos"),
		PublicBaseURL:      getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
		PhotoSigningKey:    getEnv("PHOTO_SIGNING_KEY", ""),
		WeatherForecastURL: getEnv("WEATHER_FORECAST_URL", "https://api.open-meteo.com/v1/forecast"),
		WeatherArchiveURL:  getEnv("WEATHER_ARCHIVE_URL", "https://archive-api.open-meteo.com/v1/archive"),
		WeatherTimeout:     getDuration("WEATHER_TIMEOUT", 8*time.Second, &errs),
		WeatherCacheTTL:    getDuration("WEATHER_CACHE_TTL", 30*time.Minute, &errs),
		SweepInterval:      getDuration("SWEEP_INTERVAL", 0, &errs),
		PinGracePeriod:     getDuration("PIN_GRACE_PERIOD", time.Hour, &errs),
		SessionTTL:         getDuration("SESSION_TTL", 24*time.Hour, &errs),
		TimeZone:           getLocation("TIME_ZONE", &errs),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFile:            getEnv("LOG_FILE", ""),
	}
	return cfg, errors.Join(errs...)
}

func getEnv(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration, errs *[]error) time.Duration {
	val, exists := os.LookupEnv(key)
	if !exists || val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return defaultVal
	}
	return d
}

// getLocation loads the named IANA zone, falling back to the host zone.
func getLocation(key string, errs *[]error) *time.Location {
	name, exists := os.LookupEnv(key)
	if !exists || name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return time.Local
	}
	return loc
}
