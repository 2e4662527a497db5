package main

import (
	"context"
	"os"

	"github.com/devintruefi/91825truefi-sub000/internal/amqp"
	"github.com/devintruefi/91825truefi-sub000/internal/cli"
	"github.com/devintruefi/91825truefi-sub000/internal/log"
	"github.com/devintruefi/91825truefi-sub000/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Stdout)
	logger.Info("Starting onboarding-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if err := cfg.ValidateWorker(); err != nil {
		logger.Error("Configuration validation failed", log.FieldErrorType, log.ErrorTypeConfiguration, log.FieldError, err)
		os.Exit(1)
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, amqp.WithPrefetch(cfg.AnswerLogBatchSize))
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()

	w := worker.NewAnswerWorker(repo)
	stopped := make(chan struct{})

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(context.Context) {
		// Let the in-flight delivery finish before the deferred closes run.
		<-stopped
	})

	go func() {
		defer close(stopped)
		if err := w.Run(ctx, client); err != nil {
			logger.Error("Answer consumption failed", log.FieldError, err)
			os.Exit(1)
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}
