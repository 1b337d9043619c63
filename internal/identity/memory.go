package identity

import (
	"context"
	"sync"
	"time"

	"github.com/sells-group/phonelink/internal/apperr"
	"github.com/sells-group/phonelink/internal/model"
)

// MemoryStore is an in-process Store that enforces the same uniqueness
// rules as the real backends. It is used by tests and local dry runs.
type MemoryStore struct {
	mu        sync.Mutex
	accounts  map[string]model.Account
	passwords map[string]string
	calls     int

	// Fail, when set, is consulted before every operation. A non-nil
	// return is reported instead of performing the call.
	Fail func(op, id string) error
}

// NewMemory returns a MemoryStore seeded with accounts.
func NewMemory(accounts ...model.Account) *MemoryStore {
	s := &MemoryStore{
		accounts:  make(map[string]model.Account, len(accounts)),
		passwords: make(map[string]string),
	}
	for _, a := range accounts {
		s.accounts[a.ID] = a
	}
	return s
}

// Calls returns the number of store operations attempted so far.
func (s *MemoryStore) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Password returns the password last set for id.
func (s *MemoryStore) Password(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.passwords[id]
}

// Accounts returns a snapshot of every account.
func (s *MemoryStore) Accounts() map[string]model.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]model.Account, len(s.accounts))
	for k, v := range s.accounts {
		out[k] = v
	}
	return out
}

func (s *MemoryStore) enter(ctx context.Context, op, id string) error {
	s.calls++
	if err := ctx.Err(); err != nil {
		return apperr.Wrap(apperr.Internal, err, "identity: "+op)
	}
	if s.Fail != nil {
		return s.Fail(op, id)
	}
	return nil
}

// VerifyPassword reports whether password matches the one stored for id.
func (s *MemoryStore) VerifyPassword(ctx context.Context, id, password string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, "verify password", id); err != nil {
		return false, err
	}
	if _, ok := s.accounts[id]; !ok {
		return false, apperr.Newf(apperr.NotFound, "identity: account %s not found", id)
	}
	stored := s.passwords[id]
	return stored != "" && stored == password, nil
}

func (s *MemoryStore) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, "get", id); err != nil {
		return nil, err
	}
	a, ok := s.accounts[id]
	if !ok {
		return nil, apperr.Newf(apperr.NotFound, "identity: account %s not found", id)
	}
	return &a, nil
}

func (s *MemoryStore) CreateAccount(ctx context.Context, in model.AccountInput) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, "create", in.ID); err != nil {
		return nil, err
	}
	if _, ok := s.accounts[in.ID]; ok {
		return nil, apperr.NewConflict(apperr.KeyID, in.ID)
	}
	if err := s.checkUnique(in.ID, in.Email, in.PhoneNumber); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	a := model.Account{ID: in.ID, Email: in.Email, PhoneNumber: in.PhoneNumber, CreatedAt: now, UpdatedAt: now}
	s.accounts[in.ID] = a
	s.passwords[in.ID] = in.Password
	return &a, nil
}

func (s *MemoryStore) UpdateAccount(ctx context.Context, id string, upd model.AccountUpdate) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, "update", id); err != nil {
		return nil, err
	}
	a, ok := s.accounts[id]
	if !ok {
		return nil, apperr.Newf(apperr.NotFound, "identity: account %s not found", id)
	}
	var email, phone string
	if upd.Email != nil {
		email = *upd.Email
	}
	if upd.PhoneNumber != nil {
		phone = *upd.PhoneNumber
	}
	if err := s.checkUnique(id, email, phone); err != nil {
		return nil, err
	}
	if upd.Email != nil {
		a.Email = email
	}
	if upd.PhoneNumber != nil {
		a.PhoneNumber = phone
	}
	if upd.Password != nil {
		s.passwords[id] = *upd.Password
	}
	a.UpdatedAt = time.Now().UTC()
	s.accounts[id] = a
	return &a, nil
}

// checkUnique reports a conflict when another account holds email or phone.
// Email is checked first. Callers hold the lock.
func (s *MemoryStore) checkUnique(self, email, phone string) error {
	for id, a := range s.accounts {
		if id == self {
			continue
		}
		if email != "" && a.Email == email {
			return apperr.NewConflict(apperr.KeyEmail, email)
		}
	}
	for id, a := range s.accounts {
		if id == self {
			continue
		}
		if phone != "" && a.PhoneNumber == phone {
			return apperr.NewConflict(apperr.KeyPhone, phone)
		}
	}
	return nil
}
