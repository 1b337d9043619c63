package directory

import (
	"context"
	"sort"
	"sync"

	"github.com/sells-group/phonelink/internal/apperr"
	"github.com/sells-group/phonelink/internal/model"
)

// MemoryStore is an in-process Store used by tests and local dry runs.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]model.User

	// UpdateErr, when set, is returned by Update instead of applying it.
	UpdateErr func(id string) error
}

// NewMemory returns a MemoryStore seeded with users.
func NewMemory(users ...model.User) *MemoryStore {
	s := &MemoryStore{users: make(map[string]model.User, len(users))}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *MemoryStore) Migrate(context.Context) error { return nil }
func (s *MemoryStore) Close() error                  { return nil }

func (s *MemoryStore) Scan(ctx context.Context) ([]model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "directory: scan")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sorted(func(model.User) bool { return true }, 0), nil
}

func (s *MemoryStore) FindBy(ctx context.Context, field, value string, limit int) ([]model.User, error) {
	if err := checkField(field); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "directory: find by "+field)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sorted(func(u model.User) bool { return fieldValue(u, field) == value }, limit), nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, apperr.Newf(apperr.NotFound, "directory: user %s not found", id)
	}
	return &u, nil
}

func (s *MemoryStore) Update(_ context.Context, id string, fields map[string]any) error {
	names, values, err := sortedFields(fields)
	if err != nil {
		return err
	}
	if s.UpdateErr != nil {
		if err := s.UpdateErr(id); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return apperr.Newf(apperr.NotFound, "directory: user %s not found", id)
	}
	for i, name := range names {
		setField(&u, name, values[i])
	}
	s.users[id] = u
	return nil
}

func (s *MemoryStore) Upsert(_ context.Context, users []model.User) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range users {
		s.users[u.ID] = u
	}
	return int64(len(users)), nil
}

// sorted returns matching users ordered by id. Callers hold the read lock.
func (s *MemoryStore) sorted(match func(model.User) bool, limit int) []model.User {
	ids := make([]string, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []model.User
	for _, id := range ids {
		u := s.users[id]
		if !match(u) {
			continue
		}
		out = append(out, u)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
