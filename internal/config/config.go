// Package config loads all service configuration from the environment in
// one place. Components receive a Config (or a slice of it) at
// construction time and never read env vars themselves.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds everything the orders-api needs to start.
type Config struct {
	HTTPAddr string

	DatabaseURL string

	// Customers API (upstream service for customer lookup).
	CustomersBaseURL string
	CustomersTimeout time.Duration

	// ServiceToken authenticates inbound requests and outbound calls to
	// the customers API.
	ServiceToken string

	// RedisAddr enables the customer lookup cache when set.
	RedisAddr        string
	CustomerCacheTTL time.Duration

	// Telemetry.
	ServiceName  string
	OTLPEndpoint string
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	cfg := Config{
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		CustomersTimeout: 5 * time.Second,
		RedisAddr:        strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		CustomerCacheTTL: 5 * time.Minute,
		ServiceName:      getEnv("SERVICE_NAME", "orders-api"),
		OTLPEndpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
	}

	var err error
	if cfg.DatabaseURL, err = requiredString("DATABASE_URL"); err != nil {
		return Config{}, err
	}
	if cfg.CustomersBaseURL, err = requiredString("CUSTOMERS_API_BASE"); err != nil {
		return Config{}, err
	}
	if cfg.ServiceToken, err = requiredString("SERVICE_TOKEN"); err != nil {
		return Config{}, err
	}
	cfg.CustomersBaseURL = strings.TrimRight(cfg.CustomersBaseURL, "/")

	if raw := strings.TrimSpace(os.Getenv("CUSTOMERS_TIMEOUT")); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("CUSTOMERS_TIMEOUT: %w", err)
		}
		cfg.CustomersTimeout = d
	}
	if raw := strings.TrimSpace(os.Getenv("CUSTOMER_CACHE_TTL")); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("CUSTOMER_CACHE_TTL: %w", err)
		}
		cfg.CustomerCacheTTL = d
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func requiredString(name string) (string, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return "", fmt.Errorf("%s is required", name)
	}
	return raw, nil
}
