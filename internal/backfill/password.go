package backfill

import (
	"crypto/rand"
	"math/big"

	"github.com/rotisserie/eris"
)

// MinPasswordLength is the shortest explicit password reused for a batch.
// Shorter ones are ignored in favor of generated temporaries.
const MinPasswordLength = 6

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// PasswordFunc generates a temporary password for one account.
type PasswordFunc func() (string, error)

// TempPassword returns "Temp" followed by eight random base-36 characters
// and "!1".
func TempPassword() (string, error) {
	b := make([]byte, 8)
	max := big.NewInt(int64(len(base36)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", eris.Wrap(err, "backfill: generate password")
		}
		b[i] = base36[n.Int64()]
	}
	return "Temp" + string(b) + "!1", nil
}
