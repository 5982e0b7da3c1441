package main

import (
	"errors"
	"fmt"

	"github.com/cuemby/burrow/pkg/api"
	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for the status API",
	Long: `Issue an HS256 bearer token signed with api.secret from the config file.

Pass it to the status API as "Authorization: Bearer <token>".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.API.Secret == "" {
			return errors.New("api.secret is not set in the config file")
		}
		subject, _ := cmd.Flags().GetString("subject")
		ttl := cfg.API.TokenTTL
		if cmd.Flags().Changed("ttl") {
			ttl, _ = cmd.Flags().GetDuration("ttl")
		}

		token, err := api.IssueToken([]byte(cfg.API.Secret), subject, ttl)
		if err != nil {
			return fmt.Errorf("failed to issue token: %v", err)
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().String("subject", "operator", "Token subject")
	tokenCmd.Flags().Duration("ttl", 0, "Token lifetime (default: api.token_ttl)")
}
