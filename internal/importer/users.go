package importer

import (
	"context"
	"strings"

	"github.com/sells-group/phonelink/internal/apperr"
	"github.com/sells-group/phonelink/internal/model"
)

// headerAliases maps lower-cased export headers onto record fields.
var headerAliases = map[string]string{
	"id":                     "id",
	"uid":                    "id",
	"user_id":                "id",
	"phone":                  "phone",
	"phone_number":           "phone",
	"phonenumber":            "phone",
	"mobile":                 "phone",
	"email":                  "email",
	"name":                   "name",
	"display_name":           "name",
	"service_community_code": "community",
	"servicecommunitycode":   "community",
	"community_code":         "community",
	"communitycode":          "community",
	"community":              "community",
	"role":                   "role",
}

// MapUsers turns a header row plus data rows into records. Rows without an
// id are skipped; later rows win when an id repeats.
func MapUsers(rows [][]string) ([]model.User, int, error) {
	if len(rows) == 0 {
		return nil, 0, nil
	}

	idx := make(map[string]int)
	for i, h := range rows[0] {
		if field, ok := headerAliases[strings.ToLower(strings.TrimSpace(h))]; ok {
			if _, dup := idx[field]; !dup {
				idx[field] = i
			}
		}
	}
	if _, ok := idx["id"]; !ok {
		return nil, 0, apperr.New(apperr.InvalidArgument, "importer: header has no id column")
	}

	cell := func(row []string, field string) string {
		i, ok := idx[field]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var (
		users   []model.User
		skipped int
		pos     = make(map[string]int)
	)
	for _, row := range rows[1:] {
		u := model.User{
			ID:             cell(row, "id"),
			Phone:          cell(row, "phone"),
			Email:          cell(row, "email"),
			Name:           cell(row, "name"),
			CommunityScope: cell(row, "community"),
			Role:           cell(row, "role"),
		}
		if u.ID == "" {
			skipped++
			continue
		}
		if p, ok := pos[u.ID]; ok {
			users[p] = u
			continue
		}
		pos[u.ID] = len(users)
		users = append(users, u)
	}
	return users, skipped, nil
}

// Load reads source and maps it into directory records.
func Load(ctx context.Context, o Opener, source string) ([]model.User, int, error) {
	rows, err := ReadRows(ctx, o, source)
	if err != nil {
		return nil, 0, err
	}
	return MapUsers(rows)
}
