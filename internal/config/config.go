package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Change notification backends.
const (
	NotifyMemory = "memory"
	NotifyAMQP   = "amqp"
	NotifyRedis  = "redis"
)

type Config struct {
	// HTTP Server
	Port string

	// Database
	SQLiteDBPath string

	// Change notification
	NotifyBackend string
	AMQPURL       string
	AMQPExchange  string
	// AMQPQueue, when set, is the prefix of a durable queue per process
	// (<prefix>.app for the API, <prefix>.worker for the worker). Replicas of
	// one binary share that queue; leave it empty to give each process an
	// exclusive queue instead.
	AMQPQueue     string
	RedisURL      string
	RedisChannel  string

	// Auth
	JWTSecret string
	TokenTTL  time.Duration

	// MutationsPerMinute caps writes per client IP.
	MutationsPerMinute int

	// Logging
	LogLevel  string
	LogFormat string

	// Snapshot
	RefreshInterval time.Duration
	ExportCacheTTL  time.Duration
	Currency        string

	// Google Sheets mirror (worker)
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Worker
	MetricsPort string
}

func Load() *Config {
	return &Config{
		Port:         getEnv("PORT", "8081"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/kharcha.db"),

		NotifyBackend: getEnv("NOTIFY_BACKEND", NotifyMemory),
		AMQPURL:       getEnv("AMQP_URL", ""),
		AMQPExchange:  getEnv("AMQP_EXCHANGE", "kharcha.changes"),
		AMQPQueue:     getEnv("AMQP_QUEUE", ""),
		RedisURL:      getEnv("REDIS_URL", ""),
		RedisChannel:  getEnv("REDIS_CHANNEL", "kharcha:changes"),

		JWTSecret: getEnv("JWT_SECRET", ""),
		TokenTTL:  getEnvDuration("TOKEN_TTL", 7*24*time.Hour),

		MutationsPerMinute: getEnvInt("MUTATIONS_PER_MINUTE", 60),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		RefreshInterval: getEnvDuration("REFRESH_INTERVAL", 5*time.Minute),
		ExportCacheTTL:  getEnvDuration("EXPORT_CACHE_TTL", 10*time.Minute),
		Currency:        getEnv("CURRENCY", "PKR"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Snapshot"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")),

		MetricsPort: getEnv("METRICS_PORT", "9091"),
	}
}

// SheetsEnabled reports whether the worker should mirror to Google Sheets.
func (c *Config) SheetsEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

// Validate validates the API server configuration and returns an error if invalid
func (c *Config) Validate() error {
	return c.validate(true)
}

// ValidateWorker validates the configuration of the worker, which issues and
// checks no tokens.
func (c *Config) ValidateWorker() error {
	return c.validate(false)
}

func (c *Config) validate(needsAuth bool) error {
	var errors []string

	errors = append(errors, validatePort("port", c.Port)...)
	if c.MetricsPort != "" {
		errors = append(errors, validatePort("metrics port", c.MetricsPort)...)
	}

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	validBackends := []string{NotifyMemory, NotifyAMQP, NotifyRedis}
	if !slices.Contains(validBackends, c.NotifyBackend) {
		errors = append(errors, fmt.Sprintf("invalid notify backend '%s': must be one of %v", c.NotifyBackend, validBackends))
	}

	switch c.NotifyBackend {
	case NotifyAMQP:
		if c.AMQPURL == "" {
			errors = append(errors, "AMQP URL is required when using amqp notify backend")
		} else if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when using amqp notify backend")
		}
	case NotifyRedis:
		if c.RedisURL == "" {
			errors = append(errors, "Redis URL is required when using redis notify backend")
		} else if parsedURL, err := url.Parse(c.RedisURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid Redis URL '%s': %v", c.RedisURL, err))
		} else if parsedURL.Scheme != "redis" && parsedURL.Scheme != "rediss" {
			errors = append(errors, fmt.Sprintf("invalid Redis URL scheme '%s': must be 'redis' or 'rediss'", parsedURL.Scheme))
		}
		if c.RedisChannel == "" {
			errors = append(errors, "Redis channel cannot be empty when using redis notify backend")
		}
	}

	if needsAuth {
		if len(c.JWTSecret) < 16 {
			errors = append(errors, "JWT secret must be at least 16 characters")
		}
		if c.TokenTTL < time.Minute {
			errors = append(errors, fmt.Sprintf("invalid token TTL %v: must be at least 1 minute", c.TokenTTL))
		}
		if c.MutationsPerMinute < 1 {
			errors = append(errors, fmt.Sprintf("invalid mutations per minute %d: must be at least 1", c.MutationsPerMinute))
		}
	}

	validFormats := []string{"text", "json", "tint"}
	if !slices.Contains(validFormats, strings.ToLower(c.LogFormat)) {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be one of %v", c.LogFormat, validFormats))
	}

	if c.RefreshInterval != 0 && c.RefreshInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid refresh interval %v: must be 0 or at least 1 second", c.RefreshInterval))
	}
	if c.ExportCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid export cache TTL %v: must not be negative", c.ExportCacheTTL))
	}

	if c.SheetsEnabled() {
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when a spreadsheet ID is set")
		}
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided for the sheets mirror")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func validatePort(name, value string) []string {
	port, err := strconv.Atoi(value)
	if err != nil {
		return []string{fmt.Sprintf("invalid %s '%s': must be a number", name, value)}
	}
	if port < 1 || port > 65535 {
		return []string{fmt.Sprintf("invalid %s %d: must be between 1 and 65535", name, port)}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
