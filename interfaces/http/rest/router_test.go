package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bobbin-backend/application/ports"
	"bobbin-backend/application/services"
	"bobbin-backend/domain/config"
	"bobbin-backend/infrastructure/auth"
	"bobbin-backend/infrastructure/idempotency"
	"bobbin-backend/infrastructure/persistence/memory"
	"bobbin-backend/interfaces/http/rest/middleware"
	pkgauth "bobbin-backend/pkg/auth"
	pkgerrors "bobbin-backend/pkg/errors"
	"bobbin-backend/pkg/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// tokenVerifier accepts "token-<user>" and rejects everything else
type tokenVerifier struct{}

func (tokenVerifier) VerifyToken(_ context.Context, token string) (*ports.User, error) {
	if id, ok := strings.CutPrefix(token, "token-"); ok && id != "" {
		return &ports.User{ID: id}, nil
	}
	return nil, pkgerrors.NewAuthorizationError("invalid token")
}

type pingFailStore struct {
	ports.GraphStore
}

func (pingFailStore) Ping(context.Context) error {
	return pkgerrors.NewDatabaseError("ping", errors.New("connection refused"))
}

func newTestServer(t *testing.T, store ports.GraphStore, limiter pkgauth.RateLimiter) http.Handler {
	t.Helper()
	logger := zaptest.NewLogger(t)
	graph := services.NewKnowledgeGraph(store, auth.NewContextSession(), nil, nil, config.DefaultDomainConfig(), logger, nil, nil)
	metrics := observability.NewCollector("bobbin_test", nil)
	router := NewRouter(
		graph,
		store,
		tokenVerifier{},
		idempotency.NewMemoryStore(),
		limiter,
		middleware.NewCircuitBreaker(middleware.CircuitBreakerConfig{Name: "api", MaxFailures: 5, OpenTimeout: time.Second}, logger),
		pkgerrors.NewErrorHandler(logger, false),
		metrics,
		Options{EnableMetrics: true, RateLimitPerMinute: 100, RequestTimeout: 5 * time.Second, IdempotencyTTL: time.Hour},
		logger,
	)
	return router.Setup()
}

func do(t *testing.T, h http.Handler, method, path, user string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("Authorization", "Bearer token-"+user)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthAndReady(t *testing.T) {
	h := newTestServer(t, memory.NewStore(), nil)

	rec := do(t, h, "GET", "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "v1", rec.Header().Get("X-API-Version"))

	rec = do(t, h, "GET", "/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, "GET", "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	h = newTestServer(t, pingFailStore{memory.NewStore()}, nil)
	rec = do(t, h, "GET", "/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestAuthentication(t *testing.T) {
	h := newTestServer(t, memory.NewStore(), nil)

	rec := do(t, h, "GET", "/api/v1/artifacts", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, string(pkgerrors.ErrorTypeUnauthorized), decode(t, rec)["type"])

	rec = do(t, h, "GET", "/api/v1/artifacts", "", nil, "Authorization", "Bearer nope")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, "GET", "/api/v1/me", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", decode(t, rec)["id"])
}

func TestArtifactLifecycle(t *testing.T) {
	h := newTestServer(t, memory.NewStore(), nil)

	rec := do(t, h, "POST", "/api/v1/concepts", "alice", map[string]interface{}{"type": "topic", "label": "Graphs"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	conceptID := decode(t, rec)["id"].(string)

	rec = do(t, h, "POST", "/api/v1/artifacts", "alice", map[string]interface{}{
		"kind": "note", "title": "Reading list", "body": "graph theory", "concept_ids": []string{conceptID},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	artifact := decode(t, rec)
	artifactID := artifact["id"].(string)
	assert.EqualValues(t, 1, artifact["version"])

	rec = do(t, h, "GET", "/api/v1/artifacts/"+artifactID, "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	enriched := decode(t, rec)
	assert.Len(t, enriched["concepts"], 1)

	rec = do(t, h, "GET", "/api/v1/artifacts/"+artifactID, "bob", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "other owners cannot see it")

	rec = do(t, h, "PATCH", "/api/v1/artifacts/"+artifactID, "alice", map[string]interface{}{"title": "Renamed", "expected_version": 1})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 2, decode(t, rec)["version"])

	rec = do(t, h, "PATCH", "/api/v1/artifacts/"+artifactID, "alice", map[string]interface{}{"title": "Stale", "expected_version": 1})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, "GET", "/api/v1/artifacts?page_size=10", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode(t, rec)
	assert.Len(t, page["items"], 1)
	assert.EqualValues(t, 1, page["pagination"].(map[string]interface{})["total"])

	rec = do(t, h, "DELETE", "/api/v1/artifacts/"+artifactID, "alice", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, "GET", "/api/v1/artifacts/"+artifactID, "alice", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestValidationErrors(t *testing.T) {
	h := newTestServer(t, memory.NewStore(), nil)

	rec := do(t, h, "POST", "/api/v1/artifacts", "alice", map[string]interface{}{"title": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, "POST", "/api/v1/artifacts", "alice", map[string]interface{}{"title": "x", "surprise": true})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unknown fields are rejected")

	rec = do(t, h, "GET", "/api/v1/concepts?type=flavour", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, "POST", "/api/v1/connections", "alice", map[string]interface{}{
		"source": map[string]string{"kind": "artifact", "id": "missing-1"},
		"target": map[string]string{"kind": "artifact", "id": "missing-2"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "ids inside a payload are validated")

	rec = do(t, h, "GET", "/api/v1/artifacts/not-a-uuid", "alice", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "a path id that names nothing is not found")
}

func TestConnectionsAndSuggestions(t *testing.T) {
	h := newTestServer(t, memory.NewStore(), nil)

	create := func(title, body string) string {
		rec := do(t, h, "POST", "/api/v1/artifacts", "alice", map[string]interface{}{"title": title, "body": body})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		return decode(t, rec)["id"].(string)
	}
	a := create("Distributed systems", "consensus raft paxos replication")
	b := create("Raft notes", "raft consensus leader election")
	create("Sourdough", "flour water salt")

	rec := do(t, h, "POST", "/api/v1/suggestions", "alice", map[string]interface{}{
		"anchor": map[string]string{"kind": "artifact", "id": a},
		"limit":  5,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	items := decode(t, rec)["items"].([]interface{})
	require.NotEmpty(t, items)
	first := items[0].(map[string]interface{})
	assert.Equal(t, b, first["target"].(map[string]interface{})["id"])

	body := map[string]interface{}{
		"source": map[string]string{"kind": "artifact", "id": a},
		"target": map[string]string{"kind": "artifact", "id": b},
		"kind":   "related",
		"status": "suggested",
	}
	rec = do(t, h, "POST", "/api/v1/connections", "alice", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	connectionID := decode(t, rec)["id"].(string)

	rec = do(t, h, "POST", "/api/v1/connections", "alice", body)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "DUPLICATE_CONNECTION", decode(t, rec)["code"])

	rec = do(t, h, "POST", "/api/v1/connections/"+connectionID+"/confirm", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "confirmed", decode(t, rec)["status"])

	rec = do(t, h, "GET", "/api/v1/connections?endpoint_kind=artifact&endpoint_id="+a, "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["items"], 1)

	rec = do(t, h, "DELETE", "/api/v1/connections/"+connectionID, "alice", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestConversationMessages(t *testing.T) {
	h := newTestServer(t, memory.NewStore(), nil)

	rec := do(t, h, "POST", "/api/v1/conversations", "alice", map[string]interface{}{"title": "Weekly review"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decode(t, rec)["id"].(string)

	rec = do(t, h, "POST", "/api/v1/conversations/"+id+"/messages", "alice", map[string]interface{}{"role": "user", "content": "What did I read?"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Len(t, decode(t, rec)["messages"], 1)

	rec = do(t, h, "DELETE", "/api/v1/conversations/"+id, "alice", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestIdempotentCreate(t *testing.T) {
	h := newTestServer(t, memory.NewStore(), nil)
	body := map[string]interface{}{"type": "topic", "label": "Once"}

	first := do(t, h, "POST", "/api/v1/concepts", "alice", body, middleware.IdempotencyKeyHeader, "k-1")
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

	replay := do(t, h, "POST", "/api/v1/concepts", "alice", body, middleware.IdempotencyKeyHeader, "k-1")
	assert.Equal(t, http.StatusCreated, replay.Code)
	assert.Equal(t, "true", replay.Header().Get(middleware.IdempotentReplayedHeader))
	assert.JSONEq(t, first.Body.String(), replay.Body.String())

	other := do(t, h, "POST", "/api/v1/concepts", "bob", body, middleware.IdempotencyKeyHeader, "k-1")
	assert.Equal(t, http.StatusCreated, other.Code)
	assert.Empty(t, other.Header().Get(middleware.IdempotentReplayedHeader), "keys are scoped per user")
}

func TestRateLimit(t *testing.T) {
	h := newTestServer(t, memory.NewStore(), pkgauth.NewSlidingWindowLimiter(2, time.Minute))

	for i := 0; i < 2; i++ {
		rec := do(t, h, "GET", "/api/v1/artifacts", "alice", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := do(t, h, "GET", "/api/v1/artifacts", "alice", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, string(pkgerrors.ErrorTypeRateLimit), decode(t, rec)["type"])
}
