package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/phonelink/internal/backfill"
	"github.com/sells-group/phonelink/internal/config"
	"github.com/sells-group/phonelink/internal/metrics"
	"github.com/sells-group/phonelink/internal/monitoring"
)

var (
	backfillDomain      string
	backfillPassword    string
	backfillDryRun      bool
	backfillLimit       int
	backfillCommunity   string
	backfillConcurrency int
	backfillOutput      string
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Derive emails from phones and create or update identity accounts",
	Long: "Selects directory records that have a phone but no email, derives p<digits>@<domain> " +
		"from the canonical phone, reconciles the matching identity account, and writes the email back.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("backfill"); err != nil {
			return err
		}

		domain := backfillDomain
		if domain == "" {
			domain = cfg.Backfill.Domain
		}
		if domain == "" {
			return eris.New("domain is required (--domain or PHONELINK_BACKFILL_DOMAIN)")
		}

		st, err := openStores(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		orch := newOrchestrator(cfg, st, nil, backfillConcurrency)
		res, err := orch.Run(ctx, backfill.Request{
			Domain:    domain,
			Password:  backfillPassword,
			Limit:     backfillLimit,
			DryRun:    backfillDryRun,
			Community: backfillCommunity,
		})
		if err != nil {
			return eris.Wrap(err, "backfill")
		}

		monitoring.NewAlerter(cfg.Monitoring).Notify(ctx, "backfill", res)

		zap.L().Info("backfill complete",
			zap.String("run_id", res.RunID),
			zap.Int("processed", res.Processed),
			zap.Int("failures", res.Failures()),
		)
		return writeResult(cmd.OutOrStdout(), backfillOutput, res)
	},
}

// newOrchestrator wires the configured stores and tuning into an
// Orchestrator. A positive concurrency overrides backfill.concurrency.
func newOrchestrator(c *config.Config, st *stores, m *metrics.Metrics, concurrency int) *backfill.Orchestrator {
	if concurrency <= 0 {
		concurrency = c.Backfill.Concurrency
	}
	opts := []backfill.Option{
		backfill.WithConcurrency(concurrency),
		backfill.WithCallTimeout(c.Backfill.CallTimeout()),
		backfill.WithPlan(c.Phone.Plan()),
		backfill.WithMetrics(m),
	}
	return backfill.New(st.Accounts, st.Dir, opts...)
}

func init() {
	f := backfillCmd.Flags()
	f.StringVar(&backfillDomain, "domain", "", "email domain for derived addresses (default from config)")
	f.StringVar(&backfillPassword, "password", "", "initial password for new accounts (random when shorter than 6)")
	f.BoolVar(&backfillDryRun, "dry-run", false, "plan changes without calling the identity store")
	f.IntVar(&backfillLimit, "limit", 0, "maximum candidates to process (0 = all)")
	f.StringVar(&backfillCommunity, "community", "", "only records in this service community")
	f.IntVar(&backfillConcurrency, "concurrency", 0, "parallel reconciliations (default from config)")
	f.StringVar(&backfillOutput, "output", "text", "result format: text, json, or yaml")
	rootCmd.AddCommand(backfillCmd)
}
