package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/angelmondragon/materiel-backend/internal/access"
	"github.com/angelmondragon/materiel-backend/internal/materiellogs"
	"github.com/angelmondragon/materiel-backend/pkg/config"
	"github.com/angelmondragon/materiel-backend/pkg/db"
)

func newLogsCmd(d deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Maintain materiel history",
	}
	cmd.AddCommand(newBackfillActionByCmd(d))
	return cmd
}

func newBackfillActionByCmd(d deps) *cobra.Command {
	var defaultUser int64

	cmd := &cobra.Command{
		Use:   "backfill-actionby",
		Short: "Stamp a default acting user on history rows that have none",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return d.withDB(ctx, func(_ *config.Config, client *db.Client) error {
				repo := materiellogs.NewRepository(client.DB())
				recorder, err := materiellogs.NewRecorder(repo)
				if err != nil {
					return err
				}
				// the backfill bypasses the policy, so an empty allow-list is enough
				svc, err := materiellogs.NewService(repo, recorder, access.NewStaticPolicy())
				if err != nil {
					return err
				}
				n, err := svc.BackfillActionBy(ctx, defaultUser)
				if err != nil {
					return err
				}
				d.logg.Info(d.logg.WithField(ctx, "rows", n), "materiel.logs.backfilled")
				fmt.Fprintf(cmd.OutOrStdout(), "updated %d log entries\n", n)
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&defaultUser, "default-user", 0, "user id recorded as action_by")
	_ = cmd.MarkFlagRequired("default-user")
	return cmd
}
