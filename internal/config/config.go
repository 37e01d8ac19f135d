// Package config reads process configuration from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// LoadEnv loads path into the environment without overriding variables that
// are already set. A missing file is not an error.
func LoadEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	slog.Debug("Environment file loaded", "path", path)
	return nil
}

// Server configures cmd/server.
type Server struct {
	Addr        string
	DBDriver    string
	DBPath      string
	DatabaseURL string

	JWTSecret string
	JWTTTL    time.Duration

	ClassifierURL    string
	ClassifierAPIKey string
	ClassifierModel  string

	NATSURL   string
	NATSToken string

	DuplicateScanLimit int
	QuotaWarnPercent   int
	QuotaCycle         time.Duration
}

// LoadServer reads the server configuration.
func LoadServer() (*Server, error) {
	var errs []error
	cfg := &Server{
		Addr:             getEnv("ADDR", ":8080"),
		DBDriver:         getEnv("DB_DRIVER", "sqlite"),
		DBPath:           getEnv("DB_PATH", "./data/cardscan.db"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		JWTTTL:           getDuration("JWT_TTL", 24*time.Hour, &errs),
		ClassifierURL:    os.Getenv("CLASSIFIER_URL"),
		ClassifierAPIKey: os.Getenv("CLASSIFIER_API_KEY"),
		ClassifierModel:  os.Getenv("CLASSIFIER_MODEL"),
		NATSURL:          os.Getenv("NATS_URL"),
		NATSToken:        os.Getenv("NATS_TOKEN"),

		DuplicateScanLimit: getInt("DUPLICATE_SCAN_LIMIT", 1000, &errs),
		QuotaWarnPercent:   getInt("QUOTA_WARN_PERCENT", 80, &errs),
		QuotaCycle:         time.Duration(getInt("QUOTA_CYCLE_DAYS", 30, &errs)) * 24 * time.Hour,
	}

	switch cfg.DBDriver {
	case "sqlite":
	case "postgres":
		if cfg.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when DB_DRIVER=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown DB_DRIVER %q", cfg.DBDriver))
	}
	if cfg.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if cfg.QuotaWarnPercent < 1 || cfg.QuotaWarnPercent > 100 {
		errs = append(errs, fmt.Errorf("QUOTA_WARN_PERCENT must be 1-100, got %d", cfg.QuotaWarnPercent))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Scanner configures cmd/scanner.
type Scanner struct {
	ServerURL    string
	Token        string
	Camera       string
	PollInterval time.Duration
}

// LoadScanner reads the scanner configuration.
func LoadScanner() (*Scanner, error) {
	var errs []error
	cfg := &Scanner{
		ServerURL:    getEnv("SCANNER_SERVER_URL", "http://localhost:8080"),
		Token:        os.Getenv("SCANNER_TOKEN"),
		Camera:       os.Getenv("SCANNER_CAMERA"),
		PollInterval: getDuration("SCANNER_POLL_INTERVAL", 1500*time.Millisecond, &errs),
	}
	if cfg.Token == "" {
		errs = append(errs, errors.New("SCANNER_TOKEN is required"))
	}
	if cfg.Camera == "" {
		errs = append(errs, errors.New("SCANNER_CAMERA is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int, errs *[]error) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		*errs = append(*errs, fmt.Errorf("%s must be a positive integer, got %q", key, value))
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration, errs *[]error) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		*errs = append(*errs, fmt.Errorf("%s must be a positive duration, got %q", key, value))
		return fallback
	}
	return d
}
