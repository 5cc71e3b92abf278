package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the explorer service configuration
type Config struct {
	// Port for the HTTP API
	Port string

	// Network served when the preference store has no selection
	// ( public, testnet or futurenet )
	DefaultNetwork string

	// Optional endpoint overrides, empty means the public defaults
	HorizonURLOverride string
	RPCURLOverride     string

	// Path of the bbolt preference database
	StorePath string

	// Maximum entries held by the query cache
	CacheSize int

	// Liveness window for streaming subscriptions
	StreamHeartbeat time.Duration

	// stellar.toml proxy limits
	TomlTimeout       time.Duration
	TomlRequestsPerIP int
	TomlWindow        time.Duration

	// Log level ( debug, info, warn, error )
	LogLevel string
}

// Load reads configuration from environment variables with sane defaults
func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		DefaultNetwork:     getEnv("DEFAULT_NETWORK", "testnet"),
		HorizonURLOverride: getEnv("HORIZON_URL", ""),
		RPCURLOverride:     getEnv("SOROBAN_RPC_URL", ""),
		StorePath:          getEnv("STORE_PATH", "explorer.db"),
		CacheSize:          getEnvAsInt("CACHE_SIZE", 4096),
		StreamHeartbeat:    getEnvAsDuration("STREAM_HEARTBEAT_SECONDS", 90),
		TomlTimeout:        getEnvAsDuration("TOML_TIMEOUT_SECONDS", 10),
		TomlRequestsPerIP:  getEnvAsInt("TOML_REQUESTS_PER_IP", 30),
		TomlWindow:         getEnvAsDuration("TOML_WINDOW_SECONDS", 60),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("Port is required")
	}
	switch c.DefaultNetwork {
	case "public", "testnet", "futurenet":
	default:
		return fmt.Errorf("DefaultNetwork must be public, testnet or futurenet, got %q", c.DefaultNetwork)
	}
	if c.StorePath == "" {
		return fmt.Errorf("StorePath is required")
	}
	if c.CacheSize <= 0 {
		return fmt.Errorf("CacheSize must be positive")
	}
	if c.TomlRequestsPerIP <= 0 {
		return fmt.Errorf("TomlRequestsPerIP must be positive")
	}
	return nil
}

// Helper: get string from env
func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// Helper: get int from env
func getEnvAsInt(key string, defaultVal int) int {
	valStr := os.Getenv(key)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil {
		return defaultVal
	}
	return val
}

// Helper: get seconds from env
func getEnvAsDuration(key string, defaultSeconds int) time.Duration {
	return time.Duration(getEnvAsInt(key, defaultSeconds)) * time.Second
}
