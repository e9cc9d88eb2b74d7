package httpx

import (
	"context"

	domainauth "github.com/edusuite/portal/internal/domain/auth"
)

// userKey is an unexported context key type to avoid collisions across packages.
// Centralized in this file so all handlers/middleware use the same key.
type userKey struct{}

// SetUserInContext returns a child context that carries the verified user.
// If user is nil, the original ctx is returned unchanged.
func SetUserInContext(ctx context.Context, user *domainauth.VerifiedUser) context.Context {
	if user == nil {
		return ctx
	}
	return context.WithValue(ctx, userKey{}, user)
}

// GetUserFromContext returns the verified user from context and a boolean
// indicating presence.
func GetUserFromContext(ctx context.Context) (*domainauth.VerifiedUser, bool) {
	if user, ok := ctx.Value(userKey{}).(*domainauth.VerifiedUser); ok && user != nil {
		return user, true
	}
	return nil, false
}

// IsAuthenticated reports whether the current request context carries a
// verified user.
func IsAuthenticated(ctx context.Context) bool {
	_, ok := GetUserFromContext(ctx)
	return ok
}
