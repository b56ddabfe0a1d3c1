package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Session token failures. Every parse error wraps one of these.
var (
	ErrMissingToken     = errors.New("missing session token")
	ErrExpiredToken     = errors.New("session token has expired")
	ErrInvalidSignature = errors.New("session token signature does not match")
	ErrInvalidToken     = errors.New("invalid session token")
)

// Identity is who a session token speaks for
type Identity struct {
	UserID string
	Email  string
	Role   string
}

// SessionClaims is the payload of a locally signed session token. The user
// id travels as the subject.
type SessionClaims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Identity returns the user the claims were issued for
func (c *SessionClaims) Identity() Identity {
	return Identity{UserID: c.Subject, Email: c.Email, Role: c.Role}
}

// SessionKeys are shared by the signer and the parser. Tokens are HS256.
type SessionKeys struct {
	Secret   string
	Issuer   string
	Audience string
}

func (k SessionKeys) validate() error {
	if k.Secret == "" {
		return errors.New("session secret is required")
	}
	return nil
}

// SessionSigner issues session tokens for bobbinctl and tests
type SessionSigner struct {
	keys SessionKeys
	ttl  time.Duration
	now  func() time.Time
}

// NewSessionSigner creates a signer whose tokens live for ttl, one hour
// when ttl is not positive
func NewSessionSigner(keys SessionKeys, ttl time.Duration) (*SessionSigner, error) {
	if err := keys.validate(); err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &SessionSigner{keys: keys, ttl: ttl, now: time.Now}, nil
}

// Sign issues a token for who
func (s *SessionSigner) Sign(who Identity) (string, error) {
	if who.UserID == "" {
		return "", errors.New("user id is required")
	}
	now := s.now()
	claims := SessionClaims{
		Email: who.Email,
		Role:  who.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.keys.Issuer,
			Subject:   who.UserID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	if s.keys.Audience != "" {
		claims.Audience = jwt.ClaimStrings{s.keys.Audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.keys.Secret))
}

// SessionParser checks session tokens against SessionKeys
type SessionParser struct {
	secret []byte
	parser *jwt.Parser
}

// NewSessionParser creates a parser that requires the configured issuer and
// audience when they are set
func NewSessionParser(keys SessionKeys) (*SessionParser, error) {
	if err := keys.validate(); err != nil {
		return nil, err
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if keys.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(keys.Issuer))
	}
	if keys.Audience != "" {
		opts = append(opts, jwt.WithAudience(keys.Audience))
	}
	return &SessionParser{secret: []byte(keys.Secret), parser: jwt.NewParser(opts...)}, nil
}

// Parse verifies raw, with or without a Bearer prefix, and returns the
// identity it was issued for
func (p *SessionParser) Parse(raw string) (Identity, error) {
	raw = strings.TrimSpace(strings.TrimPrefix(raw, "Bearer "))
	if raw == "" {
		return Identity{}, ErrMissingToken
	}

	var claims SessionClaims
	_, err := p.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return p.secret, nil
	})
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return Identity{}, ErrExpiredToken
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return Identity{}, ErrInvalidSignature
	default:
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return Identity{}, fmt.Errorf("%w: no subject", ErrInvalidToken)
	}
	return claims.Identity(), nil
}
