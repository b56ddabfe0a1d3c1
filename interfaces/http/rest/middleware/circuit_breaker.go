package middleware

import (
	"errors"
	"net/http"
	"time"

	pkgerrors "bobbin-backend/pkg/errors"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

var errServerFailure = errors.New("handler returned a server error")

// CircuitBreakerConfig holds configuration for the API circuit breaker
type CircuitBreakerConfig struct {
	Name        string
	MaxFailures uint32
	OpenTimeout time.Duration
}

// NewCircuitBreaker trips after MaxFailures consecutive 5xx responses and
// probes again after OpenTimeout
func NewCircuitBreaker(cfg CircuitBreakerConfig, logger *zap.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return cfg.MaxFailures > 0 && counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
}

// CircuitBreaker counts 5xx responses as failures. While the breaker is
// open requests fail fast with UNAVAILABLE.
func CircuitBreaker(cb *gobreaker.CircuitBreaker, errs *pkgerrors.ErrorHandler) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, err := cb.Execute(func() (interface{}, error) {
				ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
				next.ServeHTTP(ww, r)
				if ww.Status() >= http.StatusInternalServerError {
					return nil, errServerFailure
				}
				return nil, nil
			})

			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				errs.Handle(w, r, pkgerrors.NewUnavailableError("api").WithCause(err))
			}
		})
	}
}
