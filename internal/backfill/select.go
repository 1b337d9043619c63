// Package backfill derives synthetic emails for phone-only directory
// records, provisions matching identity accounts, and writes the email
// back to the directory.
package backfill

import (
	"context"
	"strings"

	"github.com/sells-group/phonelink/internal/apperr"
	"github.com/sells-group/phonelink/internal/directory"
	"github.com/sells-group/phonelink/internal/model"
	"github.com/sells-group/phonelink/internal/phone"
)

// Filter narrows candidate selection.
type Filter struct {
	// Community keeps only records with this community scope when set.
	Community string
	// Limit caps the number of candidates. Non-positive means unbounded.
	Limit int
	// Plan normalizes phones. The zero value uses phone.Taiwan.
	Plan phone.Plan
}

func (f Filter) plan() phone.Plan {
	if f.Plan == (phone.Plan{}) {
		return phone.Taiwan
	}
	return f.Plan
}

// SelectCandidates scans the directory and returns records that have a
// phone but no email, in directory order. Phones are normalized but not
// validated; invalid ones are reported by the reconciler.
func SelectCandidates(ctx context.Context, dir directory.Store, f Filter) ([]model.Candidate, error) {
	return selectWhere(ctx, dir, f, func(u model.User) bool {
		return u.HasPhone() && !u.HasEmail()
	})
}

// SelectLinkCandidates returns every record that has a phone, with or
// without an email.
func SelectLinkCandidates(ctx context.Context, dir directory.Store, f Filter) ([]model.Candidate, error) {
	return selectWhere(ctx, dir, f, model.User.HasPhone)
}

func selectWhere(ctx context.Context, dir directory.Store, f Filter, keep func(model.User) bool) ([]model.Candidate, error) {
	users, err := dir.Scan(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "backfill: scan directory")
	}

	plan := f.plan()
	community := strings.TrimSpace(f.Community)

	var out []model.Candidate
	for _, u := range users {
		if !keep(u) {
			continue
		}
		if community != "" && u.CommunityScope != community {
			continue
		}
		out = append(out, model.Candidate{
			ID:             u.ID,
			Phone:          plan.Normalize(u.Phone),
			RawPhone:       u.Phone,
			Name:           u.Name,
			CommunityScope: u.CommunityScope,
		})
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}
