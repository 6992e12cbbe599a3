package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port        string
	CORSOrigins []string
	RateLimit   float64 // requests per second per client
	RateBurst   int

	// Logging
	LogLevel  string
	LogFormat string

	// Identity
	AuthSecret string
	AuthIssuer string
	// DevUserID is used when a request carries no token. Development only.
	DevUserID string

	// Backend selection: memory, sqlite or remote
	DataBackend   string
	DataDirectory string
	SQLiteDBPath  string
	APIBaseURL    string
	APIToken      string
	APITimeout    time.Duration

	// Caches and fan-out
	LookupTTL        time.Duration
	SessionTTL       time.Duration
	MaxSessions      int
	FetchConcurrency int
	CleanupInterval  time.Duration

	// AMQP; an empty URL disables events
	AMQPURL               string
	AMQPExchange          string
	AMQPQueue             string
	AMQPInvalidationQueue string

	// Export worker
	GoogleSpreadsheetID string
	ReportSheetName     string
	ExportUsers         []string
}

var validBackends = []string{"memory", "remote", "sqlite"}

func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8081"),
		CORSOrigins: getEnvList("CORS_ORIGINS", []string{"http://localhost:5173"}),
		RateLimit:   getEnvFloat("RATE_LIMIT_RPS", 10),
		RateBurst:   getEnvInt("RATE_LIMIT_BURST", 20),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		AuthSecret: getEnv("AUTH_JWT_SECRET", ""),
		AuthIssuer: getEnv("AUTH_JWT_ISSUER", ""),
		DevUserID:  getEnv("DEV_USER_ID", ""),

		DataBackend:   getEnv("DATA_BACKEND", "memory"),
		DataDirectory: getEnv("DATA_DIR", "data"),
		SQLiteDBPath:  getEnv("SQLITE_DB_PATH", "./data/financeiro.db"),
		APIBaseURL:    getEnv("API_BASE_URL", ""),
		APIToken:      getEnv("API_TOKEN", ""),
		APITimeout:    getEnvDuration("API_TIMEOUT", 15*time.Second),

		LookupTTL:        getEnvDuration("LOOKUP_CACHE_TTL", 5*time.Minute),
		SessionTTL:       getEnvDuration("SESSION_TTL", 30*time.Minute),
		MaxSessions:      getEnvInt("MAX_SESSIONS", 1000),
		FetchConcurrency: getEnvInt("FETCH_CONCURRENCY", 6),
		CleanupInterval:  getEnvDuration("CACHE_CLEANUP_INTERVAL", time.Minute),

		AMQPURL:               getEnv("AMQP_URL", ""),
		AMQPExchange:          getEnv("AMQP_EXCHANGE", "financeiro"),
		AMQPQueue:             getEnv("AMQP_QUEUE", "financeiro_export"),
		AMQPInvalidationQueue: getEnv("AMQP_INVALIDATION_QUEUE", "financeiro_invalidate"),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		ReportSheetName:     getEnv("REPORT_SHEET_NAME", "Resumo"),
		ExportUsers:         getEnvList("EXPORT_USERS", nil),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.AuthSecret == "" && c.DevUserID == "" {
		errors = append(errors, "AUTH_JWT_SECRET is required unless DEV_USER_ID is set")
	}

	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	case "remote":
		if c.APIBaseURL == "" {
			errors = append(errors, "API_BASE_URL is required when using remote backend")
		} else if u, err := url.Parse(c.APIBaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errors = append(errors, fmt.Sprintf("invalid API base URL '%s': must be an absolute http(s) URL", c.APIBaseURL))
		}
		if c.APITimeout <= 0 {
			errors = append(errors, fmt.Sprintf("invalid API timeout %v: must be positive", c.APITimeout))
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
	}

	if c.RateLimit <= 0 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %v: must be positive", c.RateLimit))
	}
	if c.RateBurst < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate burst %d: must be at least 1", c.RateBurst))
	}
	if c.FetchConcurrency < 1 || c.FetchConcurrency > 64 {
		errors = append(errors, fmt.Sprintf("invalid fetch concurrency %d: must be between 1 and 64", c.FetchConcurrency))
	}
	if c.MaxSessions < 1 {
		errors = append(errors, fmt.Sprintf("invalid max sessions %d: must be at least 1", c.MaxSessions))
	}
	if c.CleanupInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid cache cleanup interval %v: must be at least 1 second", c.CleanupInterval))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// ValidateWorker checks what the export worker needs on top of Validate.
func (c *Config) ValidateWorker() error {
	var errors []string
	if c.AMQPURL == "" {
		errors = append(errors, "AMQP_URL is required for the export worker")
	}
	if c.AMQPQueue == "" {
		errors = append(errors, "AMQP_QUEUE is required for the export worker")
	}
	if c.GoogleSpreadsheetID == "" {
		errors = append(errors, "GOOGLE_SPREADSHEET_ID is required for the export worker")
	}
	if len(errors) > 0 {
		return fmt.Errorf("worker configuration invalid:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
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

// getEnvList splits a comma separated value, dropping empty items.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
