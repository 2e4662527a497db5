package backend

import (
	"fmt"

	"github.com/devintruefi/91825truefi-sub000/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	state := BackendType(appConfig.StateBackend)
	if !state.IsValid() {
		return Config{}, fmt.Errorf("invalid state backend in config: %s", appConfig.StateBackend)
	}
	det := DetectionType(appConfig.DetectionBackend)
	if !det.IsValid() {
		return Config{}, fmt.Errorf("invalid detection backend in config: %s", appConfig.DetectionBackend)
	}

	return Config{
		State:     state,
		Detection: det,

		SQLiteDBPath: appConfig.SQLiteDBPath,

		RedisAddr:     appConfig.RedisAddr,
		RedisPassword: appConfig.RedisPassword,
		RedisDB:       appConfig.RedisDB,
		RedisTTL:      appConfig.RedisTTL,
		RedisPrefix:   appConfig.RedisPrefix,

		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,

		DetectionDataDir:        appConfig.DetectionDataDir,
		DetectionTimeout:        appConfig.DetectionTimeout,
		DetectionTTL:            appConfig.DetectionTTL,
		DetectionLookbackMonths: appConfig.DetectionLookbackMonths,

		GoogleSpreadsheetID:      appConfig.GoogleSpreadsheetID,
		GoogleTransactionsSheet:  appConfig.GoogleTransactionsSheet,
		GoogleServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
		GoogleServiceAccountFile: appConfig.GoogleServiceAccountFile,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.State.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.State)
	}
	if !c.Detection.IsValid() {
		return fmt.Errorf("invalid detection type: %s", c.Detection)
	}

	switch c.State {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	case RedisBackend:
		if c.RedisAddr == "" {
			return fmt.Errorf("Redis address is required for redis backend")
		}
	case MemoryBackend:
		// Nothing to configure; state is lost on restart.
	}

	switch c.Detection {
	case MemoryDetection:
		if c.DetectionDataDir == "" {
			return fmt.Errorf("data directory is required for memory detection")
		}
	case SheetsDetection:
		if c.GoogleSpreadsheetID == "" {
			return fmt.Errorf("Google Spreadsheet ID is required for sheets detection")
		}
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
			return fmt.Errorf("either GoogleServiceAccountJSON or GoogleServiceAccountFile must be provided for sheets detection")
		}
	}

	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{MemoryBackend, SQLiteBackend, RedisBackend}
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	types := GetBackendTypes()
	strings := make([]string, len(types))
	for i, t := range types {
		strings[i] = t.String()
	}
	return strings
}
