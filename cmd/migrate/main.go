// Command migrate manages the materiel schema. Postgres runs the goose SQL
// files; sqlite only supports "up", which applies the GORM models.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/angelmondragon/materiel-backend/pkg/config"
	"github.com/angelmondragon/materiel-backend/pkg/db"
	"github.com/angelmondragon/materiel-backend/pkg/logger"
	"github.com/angelmondragon/materiel-backend/pkg/migrate"
)

func main() {
	_ = godotenv.Load()
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var dir string

	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Apply and author materiel schema migrations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&dir, "dir", migrate.DefaultDir, "goose migrations directory")

	root.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withRunner(cmd.Context(), dir, true, func(ctx context.Context, r *migrate.Runner) error {
					applied, err := r.Up(ctx)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", len(applied))
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the latest migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withRunner(cmd.Context(), dir, false, func(ctx context.Context, r *migrate.Runner) error {
					version, err := r.Down(ctx)
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), "rolled back", version)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Print applied and pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withRunner(cmd.Context(), dir, false, func(ctx context.Context, r *migrate.Runner) error {
					rows, err := r.Status(ctx)
					if err != nil {
						return err
					}
					out := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
					fmt.Fprintln(out, "VERSION\tSTATE\tAPPLIED AT\tFILE")
					for _, row := range rows {
						state, at := "pending", "-"
						if row.Applied {
							state, at = "applied", row.AppliedAt.UTC().Format(time.RFC3339)
						}
						fmt.Fprintf(out, "%d\t%s\t%s\t%s\n", row.Version, state, at, filepath.Base(row.Path))
					}
					return out.Flush()
				})
			},
		},
		&cobra.Command{
			Use:   "version TARGET",
			Short: "Migrate up or down to TARGET (YYYYMMDDHHMMSS)",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withRunner(cmd.Context(), dir, false, func(ctx context.Context, r *migrate.Runner) error {
					moved, err := r.To(ctx, args[0])
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "now at %s after %d step(s)\n", args[0], len(moved))
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "create NAME",
			Short: "Write an empty SQL migration",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				path, err := migrate.CreateSQLMigration(dir, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "created", path)
				return nil
			},
		},
		&cobra.Command{
			Use:   "validate",
			Short: "Check migration names and goose annotations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if err := migrate.ValidateDir(dir); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations ok")
				return nil
			},
		},
	)
	return root
}

// withRunner loads config, connects, and hands fn a goose runner. On sqlite,
// commands other than up are refused and up applies the GORM models.
func withRunner(ctx context.Context, dir string, sqliteOK bool, fn func(context.Context, *migrate.Runner) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx = logg.WithField(ctx, "env", cfg.App.Env)

	client, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer client.Close()

	if client.Driver() == config.DriverSQLite {
		if !sqliteOK {
			return fmt.Errorf("sqlite databases only support up")
		}
		logg.Info(ctx, "migrate.sqlite.automigrate")
		return migrate.AutoMigrateModels(ctx, client.DB())
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("sql handle: %w", err)
	}
	runner, err := migrate.NewRunner(sqlDB, dir)
	if err != nil {
		return err
	}
	logg.Info(ctx, "migrate.goose.start")
	if err := fn(ctx, runner); err != nil {
		return err
	}
	logg.Info(ctx, "migrate.goose.done")
	return nil
}
