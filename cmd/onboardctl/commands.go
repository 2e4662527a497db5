package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/devintruefi/91825truefi-sub000/internal/backend"
	"github.com/devintruefi/91825truefi-sub000/internal/onboarding"
	"github.com/devintruefi/91825truefi-sub000/internal/services"
	"github.com/devintruefi/91825truefi-sub000/internal/storage"
	"github.com/devintruefi/91825truefi-sub000/internal/store"
)

type sessionFlags struct {
	userID    string
	sessionID string
}

func (f *sessionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.userID, "user", "u", "", "user id (required)")
	cmd.Flags().StringVarP(&f.sessionID, "session", "s", services.DefaultSessionID, "session id")
	_ = cmd.MarkFlagRequired("user")
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) table() *tabwriter.Writer {
	return tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
}

func newCatalogCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List the onboarding steps in order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries := a.service(nil).Catalog()
			if a.asJSON {
				return a.printJSON(entries)
			}
			tw := a.table()
			fmt.Fprintln(tw, "#\tSTEP\tCOMPONENT\tSKIPPABLE\tREQUIRES")
			for i, e := range entries {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%t\t%s\n", i+1, e.ID, e.Component, e.SkipAllowed, joinSteps(e.Requires))
			}
			return tw.Flush()
		},
	}
}

func newStateCmd(a *app) *cobra.Command {
	var f sessionFlags
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Show the stored state of a session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), func(st backend.Store) error {
				state, err := st.Load(cmd.Context(), f.userID, f.sessionID)
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("no session %q for user %q", f.sessionID, f.userID)
				}
				if err != nil {
					return err
				}
				if a.asJSON {
					return a.printJSON(state)
				}

				p, err := onboarding.DefaultCatalog().CalculateProgress(state.CompletedSteps, state.CurrentStep)
				if err != nil {
					return err
				}
				tw := a.table()
				fmt.Fprintf(tw, "user\t%s\n", state.UserID)
				fmt.Fprintf(tw, "session\t%s\n", state.SessionID)
				fmt.Fprintf(tw, "current step\t%s\n", state.CurrentStep)
				fmt.Fprintf(tw, "instance\t%s\n", state.CurrentInstance.InstanceID)
				fmt.Fprintf(tw, "progress\t%d%% (%d collected, %d remaining)\n", p.PercentComplete, p.ItemsCollected, p.RemainingCount)
				fmt.Fprintf(tw, "completed\t%s\n", joinSteps(state.CompletedSteps))
				fmt.Fprintf(tw, "version\t%d\n", state.Version)
				if state.CompletedAt != nil {
					fmt.Fprintf(tw, "finished\t%s\n", state.CompletedAt.Format("2006-01-02 15:04:05Z07:00"))
				}
				return tw.Flush()
			})
		},
	}
	f.register(cmd)
	return cmd
}

func newSessionsCmd(a *app) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List the sessions stored for a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), func(st backend.Store) error {
				ids, err := st.Sessions(cmd.Context(), userID)
				if err != nil {
					return err
				}
				if a.asJSON {
					return a.printJSON(ids)
				}
				for _, id := range ids {
					fmt.Fprintln(a.out, id)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "user id (required)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newAnswersCmd(a *app) *cobra.Command {
	var f sessionFlags
	cmd := &cobra.Command{
		Use:   "answers",
		Short: "Print the answer log of a session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), func(st backend.Store) error {
				recs, err := st.ListAnswers(cmd.Context(), f.userID, f.sessionID)
				if err != nil {
					return err
				}
				if a.asJSON {
					return a.printJSON(recs)
				}
				tw := a.table()
				fmt.Fprintln(tw, "RECORDED\tSTEP\tANSWER")
				for _, r := range recs {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", r.RecordedAt.Format("2006-01-02 15:04:05"), r.StepID, r.Answer)
				}
				return tw.Flush()
			})
		},
	}
	f.register(cmd)
	return cmd
}

func newResetCmd(a *app) *cobra.Command {
	var f sessionFlags
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete a session so the user starts over",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), func(st backend.Store) error {
				if err := a.service(st).Reset(cmd.Context(), f.userID, f.sessionID); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "reset session %q for user %q\n", f.sessionID, f.userID)
				return nil
			})
		},
	}
	f.register(cmd)
	return cmd
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count unfinished sessions per step (SQLite only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := storage.NewSQLiteRepository(a.dbPath)
			if err != nil {
				return err
			}
			defer repo.Close()

			counts, err := repo.StepCounts(cmd.Context())
			if err != nil {
				return err
			}
			if a.asJSON {
				return a.printJSON(counts)
			}
			tw := a.table()
			fmt.Fprintln(tw, "STEP\tSESSIONS")
			for _, c := range counts {
				fmt.Fprintf(tw, "%s\t%d\n", c.StepID, c.Count)
			}
			return tw.Flush()
		},
	}
}

func newMigrateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the SQLite schema",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := storage.RunMigrations(a.dbPath); err != nil {
					return err
				}
				return printVersion(a)
			},
		},
		&cobra.Command{
			Use:   "down [steps]",
			Short: "Roll back migrations (default 1)",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				steps := 1
				if len(args) == 1 {
					n, err := strconv.Atoi(args[0])
					if err != nil || n < 1 {
						return fmt.Errorf("invalid step count %q", args[0])
					}
					steps = n
				}
				if err := storage.RollbackMigrations(a.dbPath, steps); err != nil {
					return err
				}
				return printVersion(a)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return printVersion(a)
			},
		},
	)
	return cmd
}

func printVersion(a *app) error {
	v, dirty, err := storage.MigrationVersion(a.dbPath)
	if err != nil {
		return err
	}
	if a.asJSON {
		return a.printJSON(map[string]any{"version": v, "dirty": dirty})
	}
	fmt.Fprintf(a.out, "schema version %d", v)
	if dirty {
		fmt.Fprint(a.out, " (dirty)")
	}
	fmt.Fprintln(a.out)
	return nil
}

func joinSteps(ids []onboarding.StepID) string {
	if len(ids) == 0 {
		return "-"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, ",")
}
