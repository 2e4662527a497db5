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

// Backend names accepted by STATE_BACKEND and DETECTION_BACKEND.
const (
	StateBackendMemory = "memory"
	StateBackendSQLite = "sqlite"
	StateBackendRedis  = "redis"

	DetectionBackendNone   = "none"
	DetectionBackendMemory = "memory"
	DetectionBackendSheets = "sheets"
)

var (
	validStateBackends     = []string{StateBackendMemory, StateBackendSQLite, StateBackendRedis}
	validDetectionBackends = []string{DetectionBackendNone, DetectionBackendMemory, DetectionBackendSheets}
	validLogLevels         = []string{"debug", "info", "warn", "warning", "error"}
)

type Config struct {
	// HTTP Server
	Port               string
	RateLimitPerMinute int
	LogLevel           string

	// State persistence
	StateBackend string
	SQLiteDBPath string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration
	RedisPrefix   string

	// AMQP (answer log). Empty URL writes answers straight to the store.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Detection signals
	DetectionBackend        string
	DetectionDataDir        string
	DetectionTimeout        time.Duration
	DetectionTTL            time.Duration
	DetectionLookbackMonths int

	// Google Sheets transaction source
	GoogleSpreadsheetID      string
	GoogleTransactionsSheet  string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Worker
	AnswerLogBatchSize int
	ShutdownTimeout    time.Duration
}

func Load() *Config {
	cfg := &Config{
		Port:               getEnv("PORT", "8081"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		LogLevel:           getEnv("LOG_LEVEL", "info"),

		StateBackend: getEnv("STATE_BACKEND", StateBackendMemory),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/onboarding.db"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		RedisTTL:      getEnvDuration("REDIS_TTL", 30*24*time.Hour),
		RedisPrefix:   getEnv("REDIS_PREFIX", "onboarding:"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "onboarding"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "answer_log"),

		DetectionBackend:        getEnv("DETECTION_BACKEND", DetectionBackendNone),
		DetectionDataDir:        getEnv("DETECTION_DATA_DIR", "./data"),
		DetectionTimeout:        getEnvDuration("DETECTION_TIMEOUT", 3*time.Second),
		DetectionTTL:            getEnvDuration("DETECTION_TTL", 15*time.Minute),
		DetectionLookbackMonths: getEnvInt("DETECTION_LOOKBACK_MONTHS", 3),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleTransactionsSheet:  getEnv("GOOGLE_TRANSACTIONS_SHEET", "Transactions"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")),

		AnswerLogBatchSize: getEnvInt("ANSWER_LOG_BATCH_SIZE", 10),
		ShutdownTimeout:    getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	if c.LogLevel != "" && !slices.Contains(validLogLevels, strings.ToLower(c.LogLevel)) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLogLevels))
	}

	// Validate state backend
	if !slices.Contains(validStateBackends, c.StateBackend) {
		errors = append(errors, fmt.Sprintf("invalid state backend '%s': must be one of %v", c.StateBackend, validStateBackends))
	}

	if c.StateBackend == StateBackendSQLite {
		errors = append(errors, c.validateSQLitePath()...)
	}

	if c.StateBackend == StateBackendRedis {
		if strings.TrimSpace(c.RedisAddr) == "" {
			errors = append(errors, "Redis address cannot be empty when using redis backend")
		}
		if c.RedisDB < 0 || c.RedisDB > 15 {
			errors = append(errors, fmt.Sprintf("invalid Redis DB %d: must be between 0 and 15", c.RedisDB))
		}
		if c.RedisTTL < 0 {
			errors = append(errors, fmt.Sprintf("invalid Redis TTL %v: must not be negative", c.RedisTTL))
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	// Validate detection
	if !slices.Contains(validDetectionBackends, c.DetectionBackend) {
		errors = append(errors, fmt.Sprintf("invalid detection backend '%s': must be one of %v", c.DetectionBackend, validDetectionBackends))
	}
	if c.DetectionTimeout < 100*time.Millisecond {
		errors = append(errors, fmt.Sprintf("invalid detection timeout %v: must be at least 100ms", c.DetectionTimeout))
	} else if c.DetectionTimeout > time.Minute {
		errors = append(errors, fmt.Sprintf("invalid detection timeout %v: must be at most 1 minute", c.DetectionTimeout))
	}
	if c.DetectionTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid detection TTL %v: must not be negative", c.DetectionTTL))
	}
	if c.DetectionLookbackMonths < 1 || c.DetectionLookbackMonths > 24 {
		errors = append(errors, fmt.Sprintf("invalid detection lookback %d: must be between 1 and 24 months", c.DetectionLookbackMonths))
	}

	if c.DetectionBackend == DetectionBackendMemory && c.DetectionDataDir == "" {
		errors = append(errors, "detection data directory cannot be empty when using memory detection backend")
	}

	// Validate Google Sheets configuration if detection reads from sheets
	if c.DetectionBackend == DetectionBackendSheets {
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets detection backend")
		}
		if c.GoogleTransactionsSheet == "" {
			errors = append(errors, "Google transactions sheet name is required when using sheets detection backend")
		}
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided for sheets detection backend")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	// Validate worker configuration
	if c.AnswerLogBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid answer log batch size %d: must be at least 1", c.AnswerLogBatchSize))
	} else if c.AnswerLogBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid answer log batch size %d: must be at most 1000", c.AnswerLogBatchSize))
	}

	if c.ShutdownTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid shutdown timeout %v: must be at least 1 second", c.ShutdownTimeout))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ValidateWorker checks the settings the answer-log worker needs on top of
// Validate: a broker to consume from and a SQLite file to write to.
func (c *Config) ValidateWorker() error {
	var errors []string
	if c.AMQPURL == "" {
		errors = append(errors, "AMQP URL is required for the answer log worker")
	}
	errors = append(errors, c.validateSQLitePath()...)
	if len(errors) > 0 {
		return fmt.Errorf("worker configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func (c *Config) validateSQLitePath() []string {
	if c.SQLiteDBPath == "" {
		return []string{"SQLite database path cannot be empty when using sqlite backend"}
	}
	dir := filepath.Dir(c.SQLiteDBPath)
	if dir != "." && dir != "" {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return []string{fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err)}
			}
		}
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
