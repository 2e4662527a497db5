package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/devintruefi/91825truefi-sub000/internal/backend"
	"github.com/devintruefi/91825truefi-sub000/internal/cache"
	"github.com/devintruefi/91825truefi-sub000/internal/cli"
	apphttp "github.com/devintruefi/91825truefi-sub000/internal/http"
	"github.com/devintruefi/91825truefi-sub000/internal/log"
	"github.com/devintruefi/91825truefi-sub000/internal/onboarding"
	"github.com/devintruefi/91825truefi-sub000/internal/services"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Stdout)
	cfg := cli.LoadAndValidateConfig(logger)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	res, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend)).CreateBackend(startupCtx, backendCfg)
	cancelStartup()
	if err != nil {
		logger.Error("Failed to create backends", log.FieldError, err,
			"state_backend", backendCfg.State, "detection_backend", backendCfg.Detection)
		os.Exit(1)
	}

	machine := onboarding.NewMachine(onboarding.DefaultCatalog())
	svc := services.NewOnboardingService(machine, res.Store,
		services.WithAnswerLog(res.AnswerLog),
		services.WithSignals(res.Signals),
		services.WithLogger(logger.WithComponent(log.ComponentOnboarding)),
	)

	srv := apphttp.NewServer(":"+cfg.Port, svc,
		apphttp.WithRateLimit(cfg.RateLimitPerMinute),
		apphttp.WithLogger(logger.WithComponent(log.ComponentHTTP)),
	)

	janitor := cache.NewJanitor(res.Signals.Cache())

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		janitor.Wait()
		if res.Cleanup != nil {
			if err := res.Cleanup(); err != nil {
				logger.Error("Backend cleanup error", log.FieldError, err)
			}
		}
	})
	janitor.Start(ctx, time.Minute)

	logger.Info("Starting onboarding server",
		"port", cfg.Port,
		"state_backend", cfg.StateBackend,
		"detection_backend", cfg.DetectionBackend,
		"answer_queue", cfg.AMQPURL != "")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
