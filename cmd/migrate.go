package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/phonelink/internal/identity"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the users and accounts tables",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("migrate"); err != nil {
			return err
		}

		st, err := openStores(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Dir.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate directory")
		}
		zap.L().Info("directory migrated", zap.String("driver", cfg.Directory.Driver))

		m, ok := st.Accounts.(identity.Migrator)
		if !ok {
			zap.L().Info("identity store has no schema to migrate", zap.String("driver", cfg.Identity.Driver))
			return nil
		}
		if err := m.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate identity store")
		}
		zap.L().Info("identity store migrated", zap.String("driver", cfg.Identity.Driver))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
