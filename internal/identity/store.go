// Package identity adapts identity-account backends (a Postgres accounts
// table, a remote identity service, or process memory) to one Store
// interface whose errors are classified with apperr.
package identity

import (
	"context"

	"github.com/sells-group/phonelink/internal/model"
)

// Store is the identity-account capability used by the reconciler. Accounts
// are keyed by id with email and phone number as alternate unique keys.
//
// GetAccount and UpdateAccount return an apperr.NotFound error for unknown
// ids. CreateAccount and UpdateAccount return *apperr.ConflictError when
// the email, phone number, or id is held by another account.
type Store interface {
	GetAccount(ctx context.Context, id string) (*model.Account, error)
	CreateAccount(ctx context.Context, in model.AccountInput) (*model.Account, error)
	UpdateAccount(ctx context.Context, id string, upd model.AccountUpdate) (*model.Account, error)
}

// PasswordVerifier is implemented by stores that can check a stored
// password without exposing it.
type PasswordVerifier interface {
	VerifyPassword(ctx context.Context, id, password string) (bool, error)
}

// Migrator is implemented by stores that own their schema.
type Migrator interface {
	Migrate(ctx context.Context) error
}
