package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort  string
	DatabaseURL string
	LogLevel    string

	// OTLPEndpoint enables trace export when set; empty disables tracing.
	OTLPEndpoint string

	CatalogCacheTTL time.Duration
}

func Load() (*Config, error) {
	// Load .env file if it exists (useful for local dev)
	_ = godotenv.Load()

	serverPort := os.Getenv("SERVER_PORT")
	if serverPort == "" {
		serverPort = "8080"
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL must be set")
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	catalogTTL := 30 * time.Second
	if v := os.Getenv("CATALOG_CACHE_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid CATALOG_CACHE_TTL: %w", err)
		}
		catalogTTL = ttl
	}

	return &Config{
		ServerPort:      serverPort,
		DatabaseURL:     databaseURL,
		LogLevel:        logLevel,
		OTLPEndpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		CatalogCacheTTL: catalogTTL,
	}, nil
}
