package auth

import (
	"context"
	"errors"

	"bobbin-backend/application/ports"
	pkgauth "bobbin-backend/pkg/auth"
	pkgerrors "bobbin-backend/pkg/errors"

	"github.com/supabase-community/supabase-go"
	"go.uber.org/zap"
)

// JWTVerifier accepts session tokens signed with the shared secret
type JWTVerifier struct {
	parser *pkgauth.SessionParser
}

var _ ports.TokenVerifier = (*JWTVerifier)(nil)

// NewJWTVerifier creates an HS256 verifier
func NewJWTVerifier(secret, issuer string) (*JWTVerifier, error) {
	parser, err := pkgauth.NewSessionParser(pkgauth.SessionKeys{Secret: secret, Issuer: issuer})
	if err != nil {
		return nil, err
	}
	return &JWTVerifier{parser: parser}, nil
}

// VerifyToken implements ports.TokenVerifier
func (v *JWTVerifier) VerifyToken(_ context.Context, token string) (*ports.User, error) {
	who, err := v.parser.Parse(token)
	if err != nil {
		msg := "invalid token"
		if errors.Is(err, pkgauth.ErrExpiredToken) {
			msg = "token has expired"
		}
		return nil, pkgerrors.NewAuthorizationError(msg).WithCause(err)
	}
	return &ports.User{ID: who.UserID, Email: who.Email, Role: who.Role}, nil
}

// SupabaseVerifier asks Supabase Auth who owns a token
type SupabaseVerifier struct {
	lookup func(token string) (*ports.User, error)
	logger *zap.Logger
}

var _ ports.TokenVerifier = (*SupabaseVerifier)(nil)

// NewSupabaseVerifier creates a verifier backed by the project at url
func NewSupabaseVerifier(url, key string, logger *zap.Logger) (*SupabaseVerifier, error) {
	client, err := supabase.NewClient(url, key, nil)
	if err != nil {
		return nil, err
	}
	return &SupabaseVerifier{
		lookup: func(token string) (*ports.User, error) {
			user, err := client.Auth.WithToken(token).GetUser()
			if err != nil {
				return nil, err
			}
			return &ports.User{ID: user.ID.String(), Email: user.Email, Role: user.Role}, nil
		},
		logger: logger,
	}, nil
}

// VerifyToken implements ports.TokenVerifier. GetUser takes no context; the
// call is bounded by the HTTP client's own timeout.
func (v *SupabaseVerifier) VerifyToken(ctx context.Context, token string) (*ports.User, error) {
	if token == "" {
		return nil, pkgerrors.NewAuthorizationError("missing authentication token")
	}
	if err := ctx.Err(); err != nil {
		return nil, pkgerrors.Classify("verify token", err)
	}
	user, err := v.lookup(token)
	if err != nil {
		v.logger.Debug("supabase rejected token", zap.Error(err))
		return nil, pkgerrors.NewAuthorizationError("invalid token").WithCause(err)
	}
	if user.ID == "" {
		return nil, pkgerrors.NewAuthorizationError("token has no subject")
	}
	return user, nil
}

// ChainVerifier tries each verifier in order and returns the first success
type ChainVerifier []ports.TokenVerifier

// VerifyToken implements ports.TokenVerifier
func (c ChainVerifier) VerifyToken(ctx context.Context, token string) (*ports.User, error) {
	var last error = pkgerrors.NewAuthorizationError("no token verifier configured")
	for _, v := range c {
		user, err := v.VerifyToken(ctx, token)
		if err == nil {
			return user, nil
		}
		if !pkgerrors.IsUnauthorized(err) {
			return nil, err
		}
		last = err
	}
	return nil, last
}
