package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/angelmondragon/materiel-backend/pkg/auth"
)

func newTokenCmd(d deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue access tokens",
	}
	cmd.AddCommand(newTokenMintCmd(d))
	return cmd
}

func newTokenMintCmd(d deps) *cobra.Command {
	var (
		userID   int64
		username string
	)

	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Mint a bearer token for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := d.loadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			token, err := auth.MintAccessToken(cfg.JWT, time.Now(), auth.AccessTokenPayload{
				UserID:   userID,
				Username: username,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().Int64Var(&userID, "user", 0, "user id carried in the token")
	cmd.Flags().StringVar(&username, "username", "", "optional username claim")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
