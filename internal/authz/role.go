package authz

import (
	"context"

	"github.com/sells-group/phonelink/internal/apperr"
	"github.com/sells-group/phonelink/internal/directory"
)

// RoleResolver reports the directory role of a caller.
type RoleResolver interface {
	ResolveCallerRole(ctx context.Context, id string) (string, error)
}

// DirectoryRoles resolves roles from the directory record of the caller.
type DirectoryRoles struct {
	dir directory.Store
}

// NewDirectoryRoles creates a RoleResolver over dir.
func NewDirectoryRoles(dir directory.Store) *DirectoryRoles {
	return &DirectoryRoles{dir: dir}
}

// ResolveCallerRole returns the role stored on record id, or "" when the
// caller has no directory record.
func (d *DirectoryRoles) ResolveCallerRole(ctx context.Context, id string) (string, error) {
	u, err := d.dir.Get(ctx, id)
	if apperr.Is(err, apperr.NotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return u.Role, nil
}
