package ports

import "context"

// User is the authenticated principal on whose behalf the access layer acts
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// SessionResolver returns the current user, or nil when there is no session
type SessionResolver interface {
	CurrentUser(ctx context.Context) (*User, error)
}

// TokenVerifier turns a bearer token into a user
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*User, error)
}
