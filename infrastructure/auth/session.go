// Package auth resolves who is calling: bearer token verification against
// Supabase or a shared JWT secret, and the per-request session.
package auth

import (
	"context"

	"bobbin-backend/application/ports"
	"bobbin-backend/pkg/common"
	pkgerrors "bobbin-backend/pkg/errors"
)

type userKey struct{}

// WithUser stores the verified user on the context. The user id is also set
// under the shared user_id key so request logging can pick it up.
func WithUser(ctx context.Context, user *ports.User) context.Context {
	if user == nil {
		return ctx
	}
	ctx = common.WithUserID(ctx, user.ID)
	if user.Role != "" {
		ctx = common.WithUserRoles(ctx, []string{user.Role})
	}
	return context.WithValue(ctx, userKey{}, user)
}

// ContextSession resolves the current user from the request context
type ContextSession struct{}

// NewContextSession creates the resolver used by the HTTP layer
func NewContextSession() ContextSession {
	return ContextSession{}
}

// CurrentUser implements ports.SessionResolver
func (ContextSession) CurrentUser(ctx context.Context) (*ports.User, error) {
	if user, ok := ctx.Value(userKey{}).(*ports.User); ok && user.ID != "" {
		return user, nil
	}
	if id, ok := common.GetUserID(ctx); ok && id != "" {
		return &ports.User{ID: id}, nil
	}
	return nil, pkgerrors.NewAuthorizationError("no active session")
}
