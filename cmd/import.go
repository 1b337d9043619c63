package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/phonelink/internal/importer"
)

var importSource string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load directory records from a CSV or XLSX file, URL, or FTP path",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("import"); err != nil {
			return err
		}

		users, skipped, err := importer.Load(ctx, importer.NewSourceOpener(), importSource)
		if err != nil {
			return eris.Wrap(err, "import")
		}

		dir, err := openDirectory(ctx, cfg)
		if err != nil {
			return err
		}
		defer dir.Close() //nolint:errcheck

		n, err := dir.Upsert(ctx, users)
		if err != nil {
			return eris.Wrap(err, "import: upsert users")
		}

		zap.L().Info("import complete",
			zap.String("source", importSource),
			zap.Int64("upserted", n),
			zap.Int("skipped", skipped),
		)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importSource, "source", "", "path, http(s) URL, or ftp URL of a .csv or .xlsx file (required)")
	_ = importCmd.MarkFlagRequired("source")
	rootCmd.AddCommand(importCmd)
}
