// Package directory provides access to the users collection: the records
// that hold each person's phone, email, community scope, and role.
package directory

import (
	"context"
	"sort"

	"github.com/sells-group/phonelink/internal/apperr"
	"github.com/sells-group/phonelink/internal/model"
)

// Field names accepted by FindBy and Update.
const (
	FieldPhone          = "phone"
	FieldEmail          = "email"
	FieldName           = "name"
	FieldCommunityScope = "service_community_code"
	FieldRole           = "role"
)

var allowedFields = map[string]bool{
	FieldPhone:          true,
	FieldEmail:          true,
	FieldName:           true,
	FieldCommunityScope: true,
	FieldRole:           true,
}

// Store is the directory of user records.
type Store interface {
	// FindBy returns records whose field equals value, ordered by id.
	// A non-positive limit returns every match.
	FindBy(ctx context.Context, field, value string, limit int) ([]model.User, error)
	// Scan returns every record ordered by id.
	Scan(ctx context.Context) ([]model.User, error)
	// Get returns the record with id or an apperr.NotFound error.
	Get(ctx context.Context, id string) (*model.User, error)
	// Update sets only the given fields on record id.
	Update(ctx context.Context, id string, fields map[string]any) error
	// Upsert inserts or replaces whole records and returns rows affected.
	Upsert(ctx context.Context, users []model.User) (int64, error)

	Migrate(ctx context.Context) error
	Close() error
}

// checkField rejects fields outside the users schema.
func checkField(field string) error {
	if !allowedFields[field] {
		return apperr.Newf(apperr.InvalidArgument, "directory: unknown field %q", field)
	}
	return nil
}

// sortedFields validates fields and returns their names in a stable order
// along with their string values.
func sortedFields(fields map[string]any) ([]string, []string, error) {
	if len(fields) == 0 {
		return nil, nil, apperr.New(apperr.InvalidArgument, "directory: no fields to update")
	}
	names := make([]string, 0, len(fields))
	for name := range fields {
		if err := checkField(name); err != nil {
			return nil, nil, err
		}
		names = append(names, name)
	}
	sort.Strings(names)

	values := make([]string, len(names))
	for i, name := range names {
		s, ok := fields[name].(string)
		if !ok {
			return nil, nil, apperr.Newf(apperr.InvalidArgument, "directory: field %q must be a string", name)
		}
		values[i] = s
	}
	return names, values, nil
}

// fieldValue reads the named field from u.
func fieldValue(u model.User, field string) string {
	switch field {
	case FieldPhone:
		return u.Phone
	case FieldEmail:
		return u.Email
	case FieldName:
		return u.Name
	case FieldCommunityScope:
		return u.CommunityScope
	case FieldRole:
		return u.Role
	default:
		return ""
	}
}

// setField writes the named field on u.
func setField(u *model.User, field, value string) {
	switch field {
	case FieldPhone:
		u.Phone = value
	case FieldEmail:
		u.Email = value
	case FieldName:
		u.Name = value
	case FieldCommunityScope:
		u.CommunityScope = value
	case FieldRole:
		u.Role = value
	}
}
