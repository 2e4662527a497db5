// Command onboardctl is the support tool for onboarding sessions: it inspects
// and resets stored state and manages the SQLite schema.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/devintruefi/91825truefi-sub000/internal/backend"
	"github.com/devintruefi/91825truefi-sub000/internal/cli"
	"github.com/devintruefi/91825truefi-sub000/internal/config"
	"github.com/devintruefi/91825truefi-sub000/internal/log"
	"github.com/devintruefi/91825truefi-sub000/internal/onboarding"
	"github.com/devintruefi/91825truefi-sub000/internal/services"
)

// storeOpener returns the configured state store and a function releasing it.
type storeOpener func(ctx context.Context) (backend.Store, func() error, error)

type app struct {
	out       io.Writer
	logger    *log.Logger
	openStore storeOpener
	dbPath    string
	asJSON    bool
}

func (a *app) service(st backend.Store) *services.OnboardingService {
	machine := onboarding.NewMachine(onboarding.DefaultCatalog())
	return services.NewOnboardingService(machine, st,
		services.WithLogger(a.logger.WithComponent(log.ComponentCLI)))
}

// withStore opens the store, runs fn and releases the store.
func (a *app) withStore(ctx context.Context, fn func(backend.Store) error) error {
	st, release, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if release == nil {
			return
		}
		if err := release(); err != nil {
			a.logger.Warn("Failed to release store", log.FieldError, err)
		}
	}()
	return fn(st)
}

// configuredStore opens the state backend selected by the environment.
// Detection and the answer queue are not needed here and are left off.
func configuredStore(logger *log.Logger) storeOpener {
	return func(ctx context.Context) (backend.Store, func() error, error) {
		cfg := config.Load()
		if err := cfg.Validate(); err != nil {
			return nil, nil, err
		}
		bc, err := backend.FromAppConfig(cfg)
		if err != nil {
			return nil, nil, err
		}
		bc.Detection = backend.NoDetection
		bc.AMQPURL = ""

		res, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend)).CreateBackend(ctx, bc)
		if err != nil {
			return nil, nil, fmt.Errorf("open %s backend: %w", bc.State, err)
		}
		return res.Store, res.Cleanup, nil
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "onboardctl",
		Short:         "Inspect and manage onboarding sessions",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&a.dbPath, "db", a.dbPath, "SQLite database path for stats and migrate")
	root.PersistentFlags().BoolVar(&a.asJSON, "json", false, "print JSON instead of tables")

	root.AddCommand(
		newCatalogCmd(a),
		newStateCmd(a),
		newSessionsCmd(a),
		newAnswersCmd(a),
		newResetCmd(a),
		newStatsCmd(a),
		newMigrateCmd(a),
	)
	return root
}

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Stderr)

	a := &app{
		out:       os.Stdout,
		logger:    logger,
		openStore: configuredStore(logger),
		dbPath:    config.Load().SQLiteDBPath,
	}
	if err := newRootCmd(a).Execute(); err != nil {
		os.Exit(1)
	}
}
