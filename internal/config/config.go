package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

type Config struct {
	AuthAPIURL    string
	ContestAPIURL string
	ContestWSURL  string

	SessionBackend string // "file" or "redis"
	SessionFile    string
	DeviceFile     string
	DeviceLabel    string

	Redis RedisConfig

	HTTPTimeoutSeconds      int
	ReconnectBackoffSeconds int

	LogLevel  string
	LogPretty bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

var AppConfig *Config

func LoadConfig() *Config {
	stateDir := GetEnv("PICKFOLIO_STATE_DIR", defaultStateDir())

	deviceLabel := GetEnv("PICKFOLIO_DEVICE_LABEL", "")
	if deviceLabel == "" {
		if host, err := os.Hostname(); err == nil {
			deviceLabel = host
		} else {
			deviceLabel = "GoClient"
		}
	}

	AppConfig = &Config{
		AuthAPIURL:    GetEnv("AUTH_API_URL", "http://localhost:8080/api/auth"),
		ContestAPIURL: GetEnv("CONTEST_API_URL", "http://localhost:8081/api/contests"),
		ContestWSURL:  GetEnv("CONTEST_WS_URL", "ws://localhost:8081/ws-contests"),

		SessionBackend: GetEnv("SESSION_BACKEND", "file"),
		SessionFile:    GetEnv("SESSION_FILE", filepath.Join(stateDir, "session.json")),
		DeviceFile:     GetEnv("DEVICE_FILE", filepath.Join(stateDir, "device-id")),
		DeviceLabel:    deviceLabel,

		Redis: RedisConfig{
			Addr:     GetEnv("REDIS_URL", "localhost:6379"),
			Password: GetEnv("REDIS_PASSWORD", ""),
			DB:       GetEnvAsInt("REDIS_DB", 0),
		},

		HTTPTimeoutSeconds:      GetEnvAsInt("HTTP_TIMEOUT_SECONDS", 15),
		ReconnectBackoffSeconds: GetEnvAsInt("WS_RECONNECT_BACKOFF_SECONDS", 5),

		LogLevel:  GetEnv("LOG_LEVEL", "info"),
		LogPretty: GetEnvAsBool("LOG_PRETTY", false),
	}

	return AppConfig
}

// HTTPTimeout returns the per-request timeout for HTTP calls.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// ReconnectBackoff returns the fixed delay between realtime reconnect attempts.
func (c *Config) ReconnectBackoff() time.Duration {
	return time.Duration(c.ReconnectBackoffSeconds) * time.Second
}

func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pickfolio"
	}
	return filepath.Join(home, ".pickfolio")
}

func GetEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func GetEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid integer value for %s: %s, using default: %d", key, valueStr, defaultValue)
		return defaultValue
	}
	return value
}

func GetEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Invalid boolean value for %s: %s, using default: %t", key, valueStr, defaultValue)
		return defaultValue
	}
	return value
}
