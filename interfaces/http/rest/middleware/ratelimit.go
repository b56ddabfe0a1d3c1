package middleware

import (
	"net/http"

	"bobbin-backend/pkg/auth"
	"bobbin-backend/pkg/common"
	pkgerrors "bobbin-backend/pkg/errors"

	"go.uber.org/zap"
)

// KeyFunc picks the rate limit key for a request. An empty key skips the
// limiter.
type KeyFunc func(r *http.Request) string

// ByClientIP keys requests by caller address
func ByClientIP(r *http.Request) string {
	return getClientIP(r)
}

// ByUser keys requests by the authenticated user
func ByUser(r *http.Request) string {
	id, _ := common.GetUserID(r.Context())
	return id
}

// RateLimit rejects requests over the limit with RATE_LIMIT. Limiter errors
// are logged and the request goes through.
func RateLimit(limiter auth.RateLimiter, key KeyFunc, limit int, errs *pkgerrors.ErrorHandler, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if k == "" {
				next.ServeHTTP(w, r)
				return
			}

			allowed, err := limiter.Allow(r.Context(), k)
			if err != nil {
				logger.Error("Rate limiter error", zap.Error(err), zap.String("key", k))
			}
			if !allowed {
				errs.Handle(w, r, pkgerrors.NewRateLimitError(limit, "minute"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
