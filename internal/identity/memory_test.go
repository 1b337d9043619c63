package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/phonelink/internal/apperr"
	"github.com/sells-group/phonelink/internal/model"
)

func TestMemoryStore_CreateGetUpdate(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	_, err := s.GetAccount(ctx, "u1")
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))

	_, err = s.CreateAccount(ctx, model.AccountInput{ID: "u1", Email: "a@ex.com", Password: "secret1", PhoneNumber: "+886912345678"})
	require.NoError(t, err)
	assert.Equal(t, "secret1", s.Password("u1"))

	_, err = s.UpdateAccount(ctx, "u1", model.AccountUpdate{Email: model.StringPtr("b@ex.com")})
	require.NoError(t, err)

	a, err := s.GetAccount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "b@ex.com", a.Email)
	assert.Equal(t, "+886912345678", a.PhoneNumber)
	assert.Equal(t, "secret1", s.Password("u1"))
	assert.Equal(t, 4, s.Calls())
}

func TestMemoryStore_Uniqueness(t *testing.T) {
	s := NewMemory(model.Account{ID: "u1", Email: "a@ex.com", PhoneNumber: "+886912345678"})
	ctx := context.Background()

	_, err := s.CreateAccount(ctx, model.AccountInput{ID: "u1"})
	key, _ := apperr.ConflictKey(err)
	assert.Equal(t, apperr.KeyID, key)

	_, err = s.CreateAccount(ctx, model.AccountInput{ID: "u2", PhoneNumber: "+886912345678"})
	key, _ = apperr.ConflictKey(err)
	assert.Equal(t, apperr.KeyPhone, key)

	_, err = s.CreateAccount(ctx, model.AccountInput{ID: "u2", Email: "a@ex.com", PhoneNumber: "+886912345678"})
	key, _ = apperr.ConflictKey(err)
	assert.Equal(t, apperr.KeyEmail, key)

	// An account may be updated to the values it already holds.
	_, err = s.UpdateAccount(ctx, "u1", model.AccountUpdate{Email: model.StringPtr("a@ex.com"), PhoneNumber: model.StringPtr("+886912345678")})
	require.NoError(t, err)

	_, err = s.UpdateAccount(ctx, "ghost", model.AccountUpdate{Email: model.StringPtr("z@ex.com")})
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestMemoryStore_FailHook(t *testing.T) {
	s := NewMemory()
	s.Fail = func(op, id string) error {
		if op == "create" {
			return apperr.New(apperr.Internal, "quota exceeded")
		}
		return nil
	}
	_, err := s.CreateAccount(context.Background(), model.AccountInput{ID: "u1"})
	require.Error(t, err)
	assert.Empty(t, s.Accounts())
}

func TestMemoryStore_VerifyPassword(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	_, err := s.CreateAccount(ctx, model.AccountInput{ID: "u1", Email: "a@ex.com", Password: "secret1"})
	require.NoError(t, err)
	_, err = s.CreateAccount(ctx, model.AccountInput{ID: "u2", Email: "b@ex.com"})
	require.NoError(t, err)

	ok, err := s.VerifyPassword(ctx, "u1", "secret1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.VerifyPassword(ctx, "u1", "secret2")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.VerifyPassword(ctx, "u2", "")
	require.NoError(t, err)
	assert.False(t, ok, "an account without a password never matches")

	_, err = s.VerifyPassword(ctx, "ghost", "secret1")
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}
