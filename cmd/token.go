package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/phonelink/internal/authz"
)

var tokenUID string

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for a directory user (development)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("token"); err != nil {
			return err
		}

		tm, err := newTokenManager()
		if err != nil {
			return err
		}
		token, exp, err := tm.Mint(tokenUID)
		if err != nil {
			return err
		}

		_, _ = fmt.Fprintln(cmd.OutOrStdout(), token)
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", exp.Format(time.RFC3339))
		return nil
	},
}

func newTokenManager() (*authz.TokenManager, error) {
	ttl := time.Duration(cfg.Auth.TokenTTLMins) * time.Minute
	return authz.NewTokenManager(cfg.Auth.JWTSecret, ttl, cfg.Auth.Issuer)
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUID, "uid", "", "directory user id to embed in the token (required)")
	_ = tokenCmd.MarkFlagRequired("uid")
	rootCmd.AddCommand(tokenCmd)
}
