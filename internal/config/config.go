package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	AppEnv            string
	Port              string
	LogLevel          string
	LogFormat         string
	DeviceTokenPrefix string
	PingInterval      time.Duration
	PingTimeout       time.Duration
	MaxClients        int64
	SendBufferSize    int
	IngestRate        float64
	IngestBurst       int
}

func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:            getEnv("APP_ENV", "development"),
		Port:              getEnv("PORT", "8080"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "text"),
		DeviceTokenPrefix: getEnv("DEVICE_TOKEN_PREFIX", "lampadaire_token"),
	}

	pingInterval, err := getEnvInt("PING_INTERVAL_SECONDS", 20)
	if err != nil {
		return nil, err
	}
	pingTimeout, err := getEnvInt("PING_TIMEOUT_SECONDS", 10)
	if err != nil {
		return nil, err
	}
	maxClients, err := getEnvInt("MAX_CLIENTS", 1000)
	if err != nil {
		return nil, err
	}
	sendBuffer, err := getEnvInt("SEND_BUFFER_SIZE", 16)
	if err != nil {
		return nil, err
	}
	ingestBurst, err := getEnvInt("INGEST_BURST", 20)
	if err != nil {
		return nil, err
	}
	ingestRate, err := getEnvFloat("INGEST_RATE_PER_SECOND", 10)
	if err != nil {
		return nil, err
	}

	cfg.PingInterval = time.Duration(pingInterval) * time.Second
	cfg.PingTimeout = time.Duration(pingTimeout) * time.Second
	cfg.MaxClients = maxClients
	cfg.SendBufferSize = int(sendBuffer)
	cfg.IngestRate = ingestRate
	cfg.IngestBurst = int(ingestBurst)

	if cfg.DeviceTokenPrefix == "" {
		return nil, fmt.Errorf("DEVICE_TOKEN_PREFIX must not be empty")
	}
	if cfg.PingInterval <= 0 {
		return nil, fmt.Errorf("PING_INTERVAL_SECONDS must be positive")
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("PING_TIMEOUT_SECONDS must be positive")
	}
	if cfg.PingTimeout >= cfg.PingInterval {
		return nil, fmt.Errorf("PING_TIMEOUT_SECONDS (%v) must be shorter than PING_INTERVAL_SECONDS (%v)", cfg.PingTimeout, cfg.PingInterval)
	}
	if cfg.MaxClients <= 0 {
		return nil, fmt.Errorf("MAX_CLIENTS must be positive")
	}
	if cfg.SendBufferSize <= 0 {
		return nil, fmt.Errorf("SEND_BUFFER_SIZE must be positive")
	}
	if cfg.IngestRate <= 0 {
		return nil, fmt.Errorf("INGEST_RATE_PER_SECOND must be positive")
	}
	if cfg.IngestBurst <= 0 {
		return nil, fmt.Errorf("INGEST_BURST must be positive")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int64) (int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return parsed, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return parsed, nil
}
