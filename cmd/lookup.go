package main

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var lookupPhone string

var lookupCmd = &cobra.Command{
	Use:   "lookup",
	Short: "Resolve a phone number to the account email",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("lookup"); err != nil {
			return err
		}

		dir, err := openDirectory(ctx, cfg)
		if err != nil {
			return err
		}
		defer dir.Close() //nolint:errcheck

		svc, closeCache := newLookupService(ctx, cfg, dir, nil)
		defer closeCache()

		res, err := svc.ResolveEmailByPhone(ctx, lookupPhone)
		if err != nil {
			return eris.Wrap(err, "lookup")
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

func init() {
	lookupCmd.Flags().StringVar(&lookupPhone, "phone", "", "phone number in any common format (required)")
	_ = lookupCmd.MarkFlagRequired("phone")
	rootCmd.AddCommand(lookupCmd)
}
