package backfill

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/phonelink/internal/apperr"
	"github.com/sells-group/phonelink/internal/directory"
	"github.com/sells-group/phonelink/internal/identity"
	"github.com/sells-group/phonelink/internal/model"
	"github.com/sells-group/phonelink/internal/phone"
)

// DefaultCallTimeout bounds each call to an external store.
const DefaultCallTimeout = 15 * time.Second

// Options configures a Reconciler.
type Options struct {
	Domain      string
	Password    string
	DryRun      bool
	CallTimeout time.Duration
}

// Reconciler brings one candidate's identity account and directory record
// in line with its derived email.
type Reconciler struct {
	accounts    identity.Store
	dir         directory.Store
	opts        Options
	newPassword PasswordFunc
}

// NewReconciler creates a Reconciler. A nil newPassword uses TempPassword.
func NewReconciler(accounts identity.Store, dir directory.Store, opts Options, newPassword PasswordFunc) *Reconciler {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	if newPassword == nil {
		newPassword = TempPassword
	}
	return &Reconciler{accounts: accounts, dir: dir, opts: opts, newPassword: newPassword}
}

// Reconcile creates or updates the identity account for c and writes the
// derived email back to the directory. It never returns an error; every
// failure is reported as an outcome.
func (r *Reconciler) Reconcile(ctx context.Context, c model.Candidate) model.Outcome {
	out := model.Outcome{ID: c.ID, Phone: c.Phone}
	if !phone.Valid(c.Phone) {
		out.Kind = model.OutcomeInvalid
		out.Detail = fmt.Sprintf("unusable phone %q", c.RawPhone)
		return out
	}

	out.Email = phone.DeriveEmail(c.Phone, r.opts.Domain)
	if r.opts.DryRun {
		out.Kind = model.OutcomePlanned
		return out
	}

	password, err := r.password()
	if err != nil {
		return failed(out, err)
	}

	var existing *model.Account
	err = r.call(ctx, func(ctx context.Context) error {
		var err error
		existing, err = r.accounts.GetAccount(ctx, c.ID)
		return err
	})
	switch {
	case err == nil && existing != nil:
		err = r.call(ctx, func(ctx context.Context) error {
			_, err := r.accounts.UpdateAccount(ctx, c.ID, model.AccountUpdate{
				Email:       model.StringPtr(out.Email),
				Password:    model.StringPtr(password),
				PhoneNumber: model.StringPtr(c.Phone),
			})
			return err
		})
		out.Kind = model.OutcomeUpdated
	case err == nil || apperr.Is(err, apperr.NotFound):
		err = r.call(ctx, func(ctx context.Context) error {
			_, err := r.accounts.CreateAccount(ctx, model.AccountInput{
				ID:          c.ID,
				Email:       out.Email,
				Password:    password,
				PhoneNumber: c.Phone,
			})
			return err
		})
		out.Kind = model.OutcomeCreated
	}
	if err != nil {
		return failed(out, err)
	}

	werr := r.call(ctx, func(ctx context.Context) error {
		return r.dir.Update(ctx, c.ID, map[string]any{directory.FieldEmail: out.Email})
	})
	if werr != nil {
		zap.L().Warn("directory write-back failed",
			zap.String("uid", c.ID),
			zap.String("action", string(out.Kind)),
			zap.Error(werr),
		)
		out.Detail = "write-back failed: " + werr.Error()
	}
	return out
}

// Link attaches c's canonical phone to its existing identity account. Email
// and password are left untouched and the directory is not written.
func (r *Reconciler) Link(ctx context.Context, c model.Candidate) model.Outcome {
	out := model.Outcome{ID: c.ID, Phone: c.Phone}
	if !phone.Valid(c.Phone) {
		out.Kind = model.OutcomeInvalid
		out.Detail = fmt.Sprintf("unusable phone %q", c.RawPhone)
		return out
	}
	if r.opts.DryRun {
		out.Kind = model.OutcomePlanned
		return out
	}

	err := r.call(ctx, func(ctx context.Context) error {
		_, err := r.accounts.UpdateAccount(ctx, c.ID, model.AccountUpdate{PhoneNumber: model.StringPtr(c.Phone)})
		return err
	})
	if err != nil {
		return failed(out, err)
	}
	out.Kind = model.OutcomeLinked
	return out
}

func (r *Reconciler) password() (string, error) {
	if len(r.opts.Password) >= MinPasswordLength {
		return r.opts.Password, nil
	}
	return r.newPassword()
}

func (r *Reconciler) call(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, r.opts.CallTimeout)
	defer cancel()
	return fn(ctx)
}

// failed classifies err into a failure outcome. The kind is reset so a
// partially applied branch never reports success.
func failed(out model.Outcome, err error) model.Outcome {
	switch apperr.KindOf(err) {
	case apperr.Conflict:
		out.Kind = model.OutcomeConflict
		if key, ok := apperr.ConflictKey(err); ok {
			out.Detail = key.Code()
		} else {
			out.Detail = apperr.Message(err)
		}
	case apperr.NotFound:
		out.Kind = model.OutcomeNotFound
		out.Detail = apperr.Message(err)
	default:
		out.Kind = model.OutcomeError
		if apperr.IsTimeout(err) {
			out.Detail = "timeout: " + err.Error()
		} else {
			out.Detail = strings.TrimSpace(err.Error())
		}
	}
	return out
}
