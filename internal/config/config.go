// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every setting the doccenter service reads from its environment.
type Config struct {
	Port     string
	LogLevel slog.Level

	SnapshotPath string
	DatabaseURL  string

	RemoteAPIURL string
	RemoteAPIPIN string

	AdminPIN          string
	GuestPIN          string
	AuthRatePerMinute int

	OTLPEndpoint string

	S3Bucket        string
	S3Region        string
	S3Endpoint      string
	S3PathStyle     bool
	S3UploadEvery   time.Duration
	ShutdownTimeout time.Duration
}

// Load reads the optional .env files and then the process environment.
// Variables already set in the environment win over .env values.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	cfg := Config{
		Port:         getEnv("PORT", "8080"),
		SnapshotPath: getEnv("SNAPSHOT_PATH", "doccenter.db"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		RemoteAPIURL: strings.TrimRight(getEnv("REMOTE_API_URL", ""), "/"),
		RemoteAPIPIN: getEnv("REMOTE_API_PIN", ""),
		AdminPIN:     getEnv("ADMIN_PIN", ""),
		GuestPIN:     getEnv("GUEST_PIN", ""),
		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		S3Bucket:     getEnv("S3_BUCKET", ""),
		S3Region:     getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:   getEnv("S3_ENDPOINT", ""),
	}

	var err error
	if cfg.LogLevel, err = parseLevel(getEnv("LOG_LEVEL", "info")); err != nil {
		return Config{}, err
	}
	if cfg.S3PathStyle, err = strconv.ParseBool(getEnv("S3_PATH_STYLE", "false")); err != nil {
		return Config{}, fmt.Errorf("invalid S3_PATH_STYLE: %w", err)
	}
	if cfg.AuthRatePerMinute, err = strconv.Atoi(getEnv("AUTH_RATE_PER_MINUTE", "5")); err != nil {
		return Config{}, fmt.Errorf("invalid AUTH_RATE_PER_MINUTE: %w", err)
	}
	if cfg.AuthRatePerMinute < 1 {
		return Config{}, fmt.Errorf("invalid AUTH_RATE_PER_MINUTE: must be positive, got %d", cfg.AuthRatePerMinute)
	}
	if cfg.S3UploadEvery, err = time.ParseDuration(getEnv("S3_UPLOAD_INTERVAL", "5m")); err != nil {
		return Config{}, fmt.Errorf("invalid S3_UPLOAD_INTERVAL: %w", err)
	}
	if cfg.ShutdownTimeout, err = time.ParseDuration(getEnv("SHUTDOWN_TIMEOUT", "10s")); err != nil {
		return Config{}, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}
	return cfg, nil
}

// AuthEnabled reports whether any access PIN is configured.
func (c Config) AuthEnabled() bool {
	return c.AdminPIN != "" || c.GuestPIN != ""
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL %q: %w", s, err)
	}
	return level, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
