package backend

import (
	"context"
	"time"

	"github.com/devintruefi/91825truefi-sub000/internal/detection"
	"github.com/devintruefi/91825truefi-sub000/internal/store"
)

// Store is the full surface a state backend offers: session state plus the
// answer log and the read paths used by tooling.
type Store interface {
	store.StateStore
	store.AnswerLog
	store.AnswerReader
	store.SessionLister
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Result bundles everything the server needs from the configured backends.
type Result struct {
	Store Store
	// AnswerLog queues answers over AMQP when a broker is configured and
	// falls back to Store otherwise.
	AnswerLog store.AnswerLog
	Signals   *detection.Resolver
	Cleanup   CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for backend creation
type Config struct {
	State     BackendType
	Detection DetectionType

	// SQLite specific
	SQLiteDBPath string

	// Redis specific
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration
	RedisPrefix   string

	// Optional answer queue
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Detection
	DetectionDataDir        string
	DetectionTimeout        time.Duration
	DetectionTTL            time.Duration
	DetectionLookbackMonths int

	// Google Sheets specific
	GoogleSpreadsheetID      string
	GoogleTransactionsSheet  string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
}

// BackendType selects where onboarding state lives.
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	RedisBackend  BackendType = "redis"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, RedisBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// DetectionType selects where transactions for signal detection come from.
type DetectionType string

const (
	NoDetection     DetectionType = "none"
	MemoryDetection DetectionType = "memory"
	SheetsDetection DetectionType = "sheets"
)

func (dt DetectionType) String() string {
	return string(dt)
}

func (dt DetectionType) IsValid() bool {
	switch dt {
	case NoDetection, MemoryDetection, SheetsDetection:
		return true
	default:
		return false
	}
}
