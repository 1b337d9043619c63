package identity

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/sells-group/phonelink/internal/apperr"
	"github.com/sells-group/phonelink/internal/model"
	"github.com/sells-group/phonelink/internal/resilience"
	"github.com/sells-group/phonelink/pkg/identityapi"
)

// RemoteStore adapts a remote identity service. Transient failures are
// retried under the configured policy; service error codes become apperr
// kinds.
type RemoteStore struct {
	client identityapi.Client
	policy resilience.Policy
}

// NewRemote creates a RemoteStore over client.
func NewRemote(client identityapi.Client, policy resilience.Policy) *RemoteStore {
	return &RemoteStore{client: client, policy: policy}
}

func (s *RemoteStore) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	p := s.withLogging("identity.get", id)
	u, err := resilience.DoVal(ctx, p, func(ctx context.Context) (*identityapi.User, error) {
		u, err := s.client.GetUser(ctx, id)
		return u, classifyRemote(err, id, "", "")
	})
	if err != nil {
		return nil, err
	}
	return toAccount(u), nil
}

func (s *RemoteStore) CreateAccount(ctx context.Context, in model.AccountInput) (*model.Account, error) {
	req := identityapi.CreateUserRequest{
		UID:         in.ID,
		Email:       in.Email,
		Password:    in.Password,
		PhoneNumber: in.PhoneNumber,
	}
	p := s.withLogging("identity.create", in.ID)
	u, err := resilience.DoVal(ctx, p, func(ctx context.Context) (*identityapi.User, error) {
		u, err := s.client.CreateUser(ctx, req)
		return u, classifyRemote(err, in.ID, in.Email, in.PhoneNumber)
	})
	if err != nil {
		return nil, err
	}
	return toAccount(u), nil
}

func (s *RemoteStore) UpdateAccount(ctx context.Context, id string, upd model.AccountUpdate) (*model.Account, error) {
	req := identityapi.UpdateUserRequest{
		Email:       upd.Email,
		Password:    upd.Password,
		PhoneNumber: upd.PhoneNumber,
	}
	var email, phone string
	if upd.Email != nil {
		email = *upd.Email
	}
	if upd.PhoneNumber != nil {
		phone = *upd.PhoneNumber
	}
	p := s.withLogging("identity.update", id)
	u, err := resilience.DoVal(ctx, p, func(ctx context.Context) (*identityapi.User, error) {
		u, err := s.client.UpdateUser(ctx, id, req)
		return u, classifyRemote(err, id, email, phone)
	})
	if err != nil {
		return nil, err
	}
	return toAccount(u), nil
}

func (s *RemoteStore) withLogging(op, id string) resilience.Policy {
	p := s.policy
	if p.OnRetry == nil {
		p.OnRetry = resilience.LogRetries(op, zap.String("uid", id))
	}
	return p
}

// classifyRemote maps a service error onto an apperr kind. Retryable
// statuses become resilience.TransientError so the policy retries them.
func classifyRemote(err error, id, email, phone string) error {
	if err == nil {
		return nil
	}
	var apiErr *identityapi.APIError
	if !errors.As(err, &apiErr) {
		return err
	}

	switch apiErr.Code {
	case identityapi.CodeUserNotFound:
		return apperr.Wrap(apperr.NotFound, err, "identity: account "+id+" not found")
	case identityapi.CodeEmailExists:
		return apperr.NewConflict(apperr.KeyEmail, email)
	case identityapi.CodePhoneExists:
		return apperr.NewConflict(apperr.KeyPhone, phone)
	case identityapi.CodeUIDExists:
		return apperr.NewConflict(apperr.KeyID, id)
	case identityapi.CodeInvalidEmail, identityapi.CodeInvalidPhoneNumber, identityapi.CodeInvalidPassword:
		return apperr.Wrap(apperr.InvalidArgument, err, "identity: rejected input")
	}

	switch {
	case apiErr.StatusCode == http.StatusNotFound:
		return apperr.Wrap(apperr.NotFound, err, "identity: account "+id+" not found")
	case apiErr.StatusCode == http.StatusConflict:
		return apperr.Wrap(apperr.Conflict, err, "identity: conflict")
	case resilience.IsTransientHTTPStatus(apiErr.StatusCode):
		return resilience.NewTransientError(err, apiErr.StatusCode)
	case apiErr.StatusCode == http.StatusBadRequest:
		return apperr.Wrap(apperr.InvalidArgument, err, "identity: rejected input")
	default:
		return apperr.Wrap(apperr.Internal, err, "identity: unexpected response")
	}
}

func toAccount(u *identityapi.User) *model.Account {
	if u == nil {
		return nil
	}
	return &model.Account{
		ID:          u.UID,
		Email:       u.Email,
		PhoneNumber: u.PhoneNumber,
		Disabled:    u.Disabled,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}
