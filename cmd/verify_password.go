package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/phonelink/internal/apperr"
	"github.com/sells-group/phonelink/internal/identity"
)

var (
	verifyUID      string
	verifyPassword string
)

var verifyPasswordCmd = &cobra.Command{
	Use:   "verify-password",
	Short: "Check that a password signs in to an identity account",
	Long: `Checks a password against the identity store, for example the shared
password applied by a backfill run. Without --password the first line of
stdin is used. Exits non-zero on a mismatch.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("verify-password"); err != nil {
			return err
		}

		password := verifyPassword
		if password == "" {
			var err error
			if password, err = readPasswordLine(cmd.InOrStdin()); err != nil {
				return err
			}
		}

		accounts, closeAccounts, err := openIdentity(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeAccounts()

		ok, err := checkPassword(ctx, accounts, verifyUID, password)
		if err != nil {
			return err
		}
		if !ok {
			return eris.Errorf("password does not match account %s", verifyUID)
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "ok")
		return nil
	},
}

// checkPassword verifies password for uid on stores that support it.
func checkPassword(ctx context.Context, accounts identity.Store, uid, password string) (bool, error) {
	v, ok := accounts.(identity.PasswordVerifier)
	if !ok {
		return false, apperr.Newf(apperr.FailedPrecondition, "identity store %T cannot verify passwords", accounts)
	}
	password = strings.TrimSpace(password)
	if password == "" {
		return false, apperr.New(apperr.InvalidArgument, "password is empty")
	}
	match, err := v.VerifyPassword(ctx, uid, password)
	if err != nil {
		return false, eris.Wrap(err, "verify password")
	}
	zap.L().Debug("password checked", zap.String("uid", uid), zap.Bool("match", match))
	return match, nil
}

func readPasswordLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", eris.Wrap(err, "read password from stdin")
	}
	return strings.TrimSpace(line), nil
}

func init() {
	verifyPasswordCmd.Flags().StringVar(&verifyUID, "uid", "", "identity account id (required)")
	verifyPasswordCmd.Flags().StringVar(&verifyPassword, "password", "", "password to check; read from stdin when empty")
	_ = verifyPasswordCmd.MarkFlagRequired("uid")
	rootCmd.AddCommand(verifyPasswordCmd)
}
