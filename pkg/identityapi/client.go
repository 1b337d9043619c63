// Package identityapi is a REST client for the identity-account service that
// stores login credentials keyed by account id, email, and phone number.
package identityapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Error codes reported by the service.
const (
	CodeUserNotFound        = "user-not-found"
	CodeEmailExists         = "email-already-exists"
	CodePhoneExists         = "phone-number-already-exists"
	CodeUIDExists           = "uid-already-exists"
	CodeInvalidPhoneNumber  = "invalid-phone-number"
	CodeInvalidEmail        = "invalid-email"
	CodeInvalidPassword     = "invalid-password"
	CodeTooManyRequests     = "too-many-requests"
	CodeInternalServerError = "internal-error"
)

// Client defines the identity-account operations used by the reconciler.
type Client interface {
	GetUser(ctx context.Context, uid string) (*User, error)
	CreateUser(ctx context.Context, req CreateUserRequest) (*User, error)
	UpdateUser(ctx context.Context, uid string, req UpdateUserRequest) (*User, error)
}

// User is an account as returned by the service.
type User struct {
	UID         string    `json:"uid"`
	Email       string    `json:"email,omitempty"`
	PhoneNumber string    `json:"phoneNumber,omitempty"`
	Disabled    bool      `json:"disabled,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CreateUserRequest is the body for POST /v1/accounts.
type CreateUserRequest struct {
	UID         string `json:"uid"`
	Email       string `json:"email,omitempty"`
	Password    string `json:"password,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
}

// UpdateUserRequest is the body for PATCH /v1/accounts/{uid}. Nil fields are
// omitted and left unchanged by the service.
type UpdateUserRequest struct {
	Email       *string `json:"email,omitempty"`
	Password    *string `json:"password,omitempty"`
	PhoneNumber *string `json:"phoneNumber,omitempty"`
}

// APIError is a non-2xx response from the service.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("identityapi: unexpected status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("identityapi: %s (status %d): %s", e.Code, e.StatusCode, e.Message)
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit sets a per-second request ceiling. A burst equal to the
// integer portion of rps is allowed.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

const defaultBaseURL = "http://localhost:9099"

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates an identity service client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) GetUser(ctx context.Context, uid string) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, "/v1/accounts/"+url.PathEscape(uid), nil, &u); err != nil {
		return nil, eris.Wrapf(err, "identityapi: get user %s", uid)
	}
	return &u, nil
}

func (c *httpClient) CreateUser(ctx context.Context, req CreateUserRequest) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodPost, "/v1/accounts", req, &u); err != nil {
		return nil, eris.Wrapf(err, "identityapi: create user %s", req.UID)
	}
	return &u, nil
}

func (c *httpClient) UpdateUser(ctx context.Context, uid string, req UpdateUserRequest) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodPatch, "/v1/accounts/"+url.PathEscape(uid), req, &u); err != nil {
		return nil, eris.Wrapf(err, "identityapi: update user %s", uid)
	}
	return &u, nil
}

func (c *httpClient) do(ctx context.Context, method, path string, in, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "rate limit")
		}
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return eris.Wrap(err, "marshal request")
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
		var eb errorBody
		if json.Unmarshal(respBody, &eb) == nil && eb.Error.Code != "" {
			apiErr.Code = eb.Error.Code
			apiErr.Message = eb.Error.Message
		}
		return apiErr
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return eris.Wrap(err, "unmarshal response")
	}
	return nil
}
