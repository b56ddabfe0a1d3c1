package middleware

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"bobbin-backend/application/ports"
	"bobbin-backend/pkg/common"
	pkgerrors "bobbin-backend/pkg/errors"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Idempotency headers
const (
	IdempotencyKeyHeader     = "Idempotency-Key"
	IdempotentReplayedHeader = "Idempotent-Replayed"
	maxIdempotencyKeyLength  = 255

	// a reservation outlives a crashed request by at most this long
	maxReservation = time.Minute
)

// Idempotency replays the stored response when a POST repeats an
// Idempotency-Key the same user already used on the same path. The key is
// reserved before the handler runs, and a request that finds it reserved
// gets 409 while the first is in flight. Only 2xx responses are stored; any
// other outcome releases the key.
func Idempotency(store ports.IdempotencyStore, ttl time.Duration, errs *pkgerrors.ErrorHandler, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(IdempotencyKeyHeader)
			if r.Method != http.MethodPost || key == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(key) > maxIdempotencyKeyLength {
				errs.Handle(w, r, pkgerrors.NewFieldValidationError(IdempotencyKeyHeader, "is too long"))
				return
			}

			userID, _ := common.GetUserID(r.Context())
			scoped := userID + ":" + r.URL.Path + ":" + key

			stored, err := store.Get(r.Context(), scoped)
			if err != nil {
				errs.Handle(w, r, err)
				return
			}
			if stored != nil {
				replay(w, stored)
				return
			}

			reserved, err := store.Reserve(r.Context(), scoped, min(ttl, maxReservation))
			if err != nil {
				errs.Handle(w, r, err)
				return
			}
			if !reserved {
				// the holder may have finished between Get and Reserve
				stored, err := store.Get(r.Context(), scoped)
				if err != nil {
					errs.Handle(w, r, err)
					return
				}
				if stored != nil {
					replay(w, stored)
					return
				}
				errs.Handle(w, r, pkgerrors.NewConflictError("a request with this idempotency key is in progress").
					WithCode("IDEMPOTENCY_KEY_IN_USE"))
				return
			}

			var body bytes.Buffer
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			ww.Tee(&body)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status < 200 || status >= 300 {
				if err := store.Release(context.WithoutCancel(r.Context()), scoped); err != nil {
					logger.Warn("Failed to release idempotency key",
						zap.Error(err),
						zap.String("path", r.URL.Path),
					)
				}
				return
			}
			response := &ports.StoredResponse{
				StatusCode:  status,
				ContentType: w.Header().Get("Content-Type"),
				Body:        body.Bytes(),
			}
			if err := store.Put(context.WithoutCancel(r.Context()), scoped, response, ttl); err != nil {
				logger.Warn("Failed to store idempotent response",
					zap.Error(err),
					zap.String("path", r.URL.Path),
				)
			}
		})
	}
}

func replay(w http.ResponseWriter, stored *ports.StoredResponse) {
	if stored.ContentType != "" {
		w.Header().Set("Content-Type", stored.ContentType)
	}
	w.Header().Set(IdempotentReplayedHeader, "true")
	w.WriteHeader(stored.StatusCode)
	_, _ = w.Write(stored.Body)
}
