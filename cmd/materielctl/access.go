package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/angelmondragon/materiel-backend/internal/access"
	"github.com/angelmondragon/materiel-backend/pkg/config"
	"github.com/angelmondragon/materiel-backend/pkg/db"
)

func newAccessCmd(d deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "access",
		Short: "Manage the materiel role assignment",
	}
	cmd.AddCommand(
		newAccessChangeCmd(d, "grant", "Assign the materiel role to a user", (*access.RolePolicy).Grant),
		newAccessChangeCmd(d, "revoke", "Remove the materiel role from a user", (*access.RolePolicy).Revoke),
		newAccessCheckCmd(d),
	)
	return cmd
}

func newAccessChangeCmd(d deps, use, short string, apply func(*access.RolePolicy, context.Context, int64) error) *cobra.Command {
	var userID int64

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return d.withDB(ctx, func(cfg *config.Config, client *db.Client) error {
				policy, err := rolePolicy(cfg, client)
				if err != nil {
					return err
				}
				if err := apply(policy, ctx, userID); err != nil {
					return fmt.Errorf("%s user %d: %w", use, userID, err)
				}
				d.forgetAccess(ctx, cfg, userID)
				d.logg.Info(d.logg.WithUserID(ctx, userID), "materiel.access."+use)
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s for user %d\n", cfg.Access.RoleShortname, pastTense(use), userID)
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&userID, "user", 0, "user id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newAccessCheckCmd(d deps) *cobra.Command {
	var userID int64

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report whether a user holds the materiel capability",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return d.withDB(ctx, func(cfg *config.Config, client *db.Client) error {
				policy, err := access.FromConfig(cfg.Access, client.DB(), nil, d.logg)
				if err != nil {
					return err
				}
				ok, err := policy.HasAccess(ctx, userID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "user %d access=%t\n", userID, ok)
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&userID, "user", 0, "user id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func rolePolicy(cfg *config.Config, client *db.Client) (*access.RolePolicy, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Access.Mode))
	if mode != "" && mode != access.ModeRole {
		return nil, fmt.Errorf("access mode %q has no role assignments to change", cfg.Access.Mode)
	}
	return access.NewRolePolicy(client.DB(), cfg.Access.RoleShortname, cfg.Access.ContextLevel)
}

func pastTense(verb string) string {
	if verb == "grant" {
		return "granted"
	}
	return "revoked"
}
