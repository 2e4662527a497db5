package backend

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/redis/go-redis/v9"

	"github.com/devintruefi/91825truefi-sub000/internal/amqp"
	"github.com/devintruefi/91825truefi-sub000/internal/detection"
	detmemory "github.com/devintruefi/91825truefi-sub000/internal/detection/memory"
	detsheets "github.com/devintruefi/91825truefi-sub000/internal/detection/sheets"
	"github.com/devintruefi/91825truefi-sub000/internal/log"
	"github.com/devintruefi/91825truefi-sub000/internal/services"
	"github.com/devintruefi/91825truefi-sub000/internal/storage"
	"github.com/devintruefi/91825truefi-sub000/internal/store/memory"
	redisstore "github.com/devintruefi/91825truefi-sub000/internal/store/redis"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend. On error every resource
// opened so far is released.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var closers []CleanupFunc
	cleanup := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}

	st, closeStore, err := f.createStateStore(ctx, config)
	if err != nil {
		return nil, err
	}
	if closeStore != nil {
		closers = append(closers, closeStore)
	}

	answers, closeQueue := f.createAnswerLog(config, st)
	if closeQueue != nil {
		closers = append(closers, closeQueue)
	}

	provider, err := f.createProvider(ctx, config)
	if err != nil {
		_ = cleanup()
		return nil, err
	}

	opts := []detection.ResolverOption{
		detection.WithLogger(f.logger),
		detection.WithName(config.Detection.String()),
	}
	if config.DetectionTimeout > 0 {
		opts = append(opts, detection.WithTimeout(config.DetectionTimeout))
	}
	if config.DetectionTTL > 0 {
		opts = append(opts, detection.WithTTL(config.DetectionTTL))
	}
	resolver := detection.NewResolver(provider, opts...)

	return &Result{
		Store:     st,
		AnswerLog: answers,
		Signals:   resolver,
		Cleanup:   cleanup,
	}, nil
}

func (f *DefaultFactory) createStateStore(ctx context.Context, config Config) (Store, CleanupFunc, error) {
	switch config.State {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite state store", "db_path", config.SQLiteDBPath)
		return repo, repo.Close, nil

	case RedisBackend:
		client := redis.NewClient(&redis.Options{
			Addr:     config.RedisAddr,
			Password: config.RedisPassword,
			DB:       config.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("failed to connect to Redis at %s: %w", config.RedisAddr, err)
		}
		var opts []redisstore.Option
		if config.RedisTTL > 0 {
			opts = append(opts, redisstore.WithTTL(config.RedisTTL))
		}
		if config.RedisPrefix != "" {
			opts = append(opts, redisstore.WithPrefix(config.RedisPrefix))
		}
		f.logger.Info("Initialized Redis state store", "addr", config.RedisAddr, "db", config.RedisDB)
		return redisstore.New(client, opts...), client.Close, nil

	case MemoryBackend:
		f.logger.Info("Initialized memory state store")
		return memory.New(), nil, nil

	default:
		return nil, nil, fmt.Errorf("unsupported backend type: %s", config.State)
	}
}

// createAnswerLog connects to the broker when one is configured. A broker
// that cannot be reached is not fatal: answers go straight to the store.
func (f *DefaultFactory) createAnswerLog(config Config, direct Store) (*services.AnswerRecorder, CleanupFunc) {
	if config.AMQPURL == "" {
		return services.NewAnswerRecorder(nil, direct), nil
	}

	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, writing answers directly", "error", err)
		return services.NewAnswerRecorder(nil, direct), nil
	}
	f.logger.Info("Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)
	return services.NewAnswerRecorder(client, direct), client.Close
}

func (f *DefaultFactory) createProvider(ctx context.Context, config Config) (detection.Provider, error) {
	analyzer := detection.Analyzer{LookbackMonths: config.DetectionLookbackMonths}

	switch config.Detection {
	case MemoryDetection:
		path := filepath.Join(config.DetectionDataDir, detmemory.SeedFile)
		src, err := detmemory.NewFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load transactions from %s: %w", path, err)
		}
		f.logger.Info("Initialized memory detection", "seed_file", path)
		return detection.NewTransactionProvider(src, analyzer), nil

	case SheetsDetection:
		src, err := detsheets.New(ctx, detsheets.Config{
			SpreadsheetID:   config.GoogleSpreadsheetID,
			SheetName:       config.GoogleTransactionsSheet,
			CredentialsJSON: config.GoogleServiceAccountJSON,
			CredentialsFile: config.GoogleServiceAccountFile,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
		}
		f.logger.Info("Initialized Google Sheets detection", "sheet", config.GoogleTransactionsSheet)
		return detection.NewTransactionProvider(src, analyzer), nil

	default:
		return detection.None{}, nil
	}
}

var (
	_ Store = (*memory.Store)(nil)
	_ Store = (*redisstore.Store)(nil)
	_ Store = (*storage.SQLiteRepository)(nil)
)
