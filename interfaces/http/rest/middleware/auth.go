package middleware

import (
	"net/http"
	"strings"

	"bobbin-backend/application/ports"
	infraauth "bobbin-backend/infrastructure/auth"
	pkgerrors "bobbin-backend/pkg/errors"

	"go.uber.org/zap"
)

// Authenticate verifies the bearer token and stores the caller on the
// request context for the session resolver
func Authenticate(verifier ports.TokenVerifier, errs *pkgerrors.ErrorHandler, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				errs.Handle(w, r, pkgerrors.NewAuthorizationError("missing authentication token"))
				return
			}

			user, err := verifier.VerifyToken(r.Context(), token)
			if err != nil {
				if pkgerrors.IsUnauthorized(err) {
					logger.Warn("Invalid token",
						zap.Error(err),
						zap.String("ip", getClientIP(r)),
						zap.String("path", r.URL.Path),
					)
				}
				errs.Handle(w, r, err)
				return
			}

			logger.Debug("Request authenticated",
				zap.String("user_id", user.ID),
				zap.String("path", r.URL.Path),
				zap.String("method", r.Method),
			)

			next.ServeHTTP(w, r.WithContext(infraauth.WithUser(r.Context(), user)))
		})
	}
}

// extractToken extracts the token from the Authorization header or the
// auth_token cookie
func extractToken(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}

	if cookie, err := r.Cookie("auth_token"); err == nil {
		return cookie.Value
	}
	return ""
}

// getClientIP extracts the client IP address
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}
