package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/phonelink/internal/backfill"
	"github.com/sells-group/phonelink/internal/monitoring"
)

var (
	linkDryRun    bool
	linkLimit     int
	linkCommunity string
	linkOutput    string
)

var linkPhonesCmd = &cobra.Command{
	Use:   "link-phones",
	Short: "Attach canonical phone numbers to existing identity accounts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("link-phones"); err != nil {
			return err
		}

		st, err := openStores(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		res, err := newOrchestrator(cfg, st, nil, 0).RunLinkPhones(ctx, backfill.LinkRequest{
			Limit:     linkLimit,
			DryRun:    linkDryRun,
			Community: linkCommunity,
		})
		if err != nil {
			return eris.Wrap(err, "link phones")
		}

		monitoring.NewAlerter(cfg.Monitoring).Notify(ctx, "link", res)

		zap.L().Info("link-phones complete",
			zap.String("run_id", res.RunID),
			zap.Int("linked", res.Linked),
			zap.Int("failures", res.Failures()),
		)
		return writeResult(cmd.OutOrStdout(), linkOutput, res)
	},
}

func init() {
	f := linkPhonesCmd.Flags()
	f.BoolVar(&linkDryRun, "dry-run", false, "plan changes without calling the identity store")
	f.IntVar(&linkLimit, "limit", 0, "maximum candidates to process (0 = all)")
	f.StringVar(&linkCommunity, "community", "", "only records in this service community")
	f.StringVar(&linkOutput, "output", "text", "result format: text, json, or yaml")
	rootCmd.AddCommand(linkPhonesCmd)
}
