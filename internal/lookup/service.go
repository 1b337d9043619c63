// Package lookup resolves a login email from a phone number.
package lookup

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/phonelink/internal/apperr"
	"github.com/sells-group/phonelink/internal/directory"
	"github.com/sells-group/phonelink/internal/metrics"
	"github.com/sells-group/phonelink/internal/model"
	"github.com/sells-group/phonelink/internal/phone"
)

// Service answers phone to email lookups against the directory.
type Service struct {
	dir     directory.Store
	cache   Cache
	plan    phone.Plan
	metrics *metrics.Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithCache serves repeat lookups from c.
func WithCache(c Cache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

// WithPlan overrides the numbering plan.
func WithPlan(p phone.Plan) Option {
	return func(s *Service) {
		s.plan = p
	}
}

// WithMetrics counts lookup results.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// NewService creates a lookup Service over dir.
func NewService(dir directory.Store, opts ...Option) *Service {
	s := &Service{dir: dir, plan: phone.Taiwan}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ResolveEmailByPhone returns the email and id of the first directory
// record holding raw, tried as the canonical form first and then as the
// domestic and stripped forms.
//
// Errors: InvalidArgument for a blank or unusable phone, NotFound when no
// record holds it, FailedPrecondition when the record has no email yet,
// and Internal for store failures.
func (s *Service) ResolveEmailByPhone(ctx context.Context, raw string) (*model.Resolution, error) {
	if strings.TrimSpace(raw) == "" {
		s.metrics.IncLookup("invalid")
		return nil, apperr.New(apperr.InvalidArgument, "phone is required")
	}
	canonical := s.plan.Normalize(raw)
	if canonical == "" {
		s.metrics.IncLookup("invalid")
		return nil, apperr.New(apperr.InvalidArgument, "invalid phone")
	}

	if s.cache != nil {
		res, ok, err := s.cache.Get(ctx, canonical)
		if err != nil {
			zap.L().Warn("lookup cache read failed", zap.Error(err))
		} else if ok {
			s.metrics.IncLookup("hit")
			return res, nil
		}
	}

	// Records keep phones as entered, so fall back to the domestic and
	// stripped spellings when the canonical form has no match.
	var users []model.User
	for _, form := range s.plan.StoredForms(raw) {
		found, err := s.dir.FindBy(ctx, directory.FieldPhone, form, 1)
		if err != nil {
			s.metrics.IncLookup("error")
			return nil, apperr.Wrap(apperr.Internal, err, "lookup failed")
		}
		if len(found) > 0 {
			users = found
			break
		}
	}
	if len(users) == 0 {
		s.metrics.IncLookup("not_found")
		return nil, apperr.New(apperr.NotFound, "phone not found")
	}
	u := users[0]
	email := strings.TrimSpace(u.Email)
	if email == "" {
		s.metrics.IncLookup("no_email")
		return nil, apperr.New(apperr.FailedPrecondition, "email not set for this user")
	}

	res := &model.Resolution{Email: email, ID: u.ID}
	if s.cache != nil {
		if err := s.cache.Set(ctx, canonical, res); err != nil {
			zap.L().Warn("lookup cache write failed", zap.Error(err))
		}
	}
	s.metrics.IncLookup("found")
	return res, nil
}
