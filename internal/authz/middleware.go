package authz

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/phonelink/internal/apperr"
	"github.com/sells-group/phonelink/internal/httputil"
)

type contextKeyUserID struct{}

// UserID returns the authenticated caller id stored by Authenticate.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(contextKeyUserID{}).(string)
	return id
}

// WithUserID returns ctx carrying id as the authenticated caller.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKeyUserID{}, id)
}

// Authenticate requires a valid "Authorization: Bearer <token>" header.
func Authenticate(m *TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				httputil.WriteError(w, apperr.New(apperr.Unauthenticated, "missing bearer token"))
				return
			}
			claims, err := m.Parse(strings.TrimSpace(token))
			if err != nil {
				zap.L().Warn("rejected token", zap.Error(err))
				httputil.WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), claims.UserID)))
		})
	}
}

// RequireRole allows the request through only when the authenticated
// caller's directory role equals role.
func RequireRole(resolver RoleResolver, role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			uid := UserID(r.Context())
			if uid == "" {
				httputil.WriteError(w, apperr.New(apperr.Unauthenticated, "authentication required"))
				return
			}
			got, err := resolver.ResolveCallerRole(r.Context(), uid)
			if err != nil {
				zap.L().Warn("role lookup failed", zap.String("uid", uid), zap.Error(err))
				httputil.WriteError(w, apperr.New(apperr.PermissionDenied, role+" only"))
				return
			}
			if got != role {
				zap.L().Warn("permission denied", zap.String("uid", uid), zap.String("role", got))
				httputil.WriteError(w, apperr.New(apperr.PermissionDenied, role+" only"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
