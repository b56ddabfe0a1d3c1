package services

import (
	"context"
	"sync/atomic"
	"time"

	"bobbin-backend/application/ports"
	"bobbin-backend/application/suggestions"
	"bobbin-backend/domain/config"
	"bobbin-backend/domain/core/valueobjects"
	"bobbin-backend/domain/events"
	pkgerrors "bobbin-backend/pkg/errors"
	"bobbin-backend/pkg/observability"

	"go.uber.org/zap"
)

// KnowledgeGraph is the access layer over a user's knowledge graph. Every
// operation resolves the current user, scopes all store calls to that
// user and performs at most one write. Nothing is cached and nothing is
// retried.
type KnowledgeGraph struct {
	store     ports.GraphStore
	session   ports.SessionResolver
	scorer    ports.SuggestionScorer
	publisher ports.EventPublisher
	config    atomic.Pointer[config.DomainConfig]
	logger    *zap.Logger
	metrics   *observability.Collector
	tracer    *observability.Tracer
}

// NewKnowledgeGraph creates the access layer. publisher, metrics and tracer
// may be nil. A nil scorer falls back to keyword overlap.
func NewKnowledgeGraph(
	store ports.GraphStore,
	session ports.SessionResolver,
	scorer ports.SuggestionScorer,
	publisher ports.EventPublisher,
	cfg *config.DomainConfig,
	logger *zap.Logger,
	metrics *observability.Collector,
	tracer *observability.Tracer,
) *KnowledgeGraph {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if scorer == nil {
		scorer = suggestions.NewKeywordScorer()
	}
	s := &KnowledgeGraph{
		store:     store,
		session:   session,
		scorer:    scorer,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
		tracer:    tracer,
	}
	s.config.Store(cfg)
	return s
}

// SetDomainConfig swaps the business rules used by subsequent operations
func (s *KnowledgeGraph) SetDomainConfig(cfg *config.DomainConfig) {
	if cfg != nil {
		s.config.Store(cfg)
	}
}

// DomainConfig returns the rules currently in force
func (s *KnowledgeGraph) DomainConfig() *config.DomainConfig {
	return s.config.Load()
}

// CurrentUser resolves the session. A missing user is an
// AuthorizationError.
func (s *KnowledgeGraph) CurrentUser(ctx context.Context) (*ports.User, error) {
	if s.session == nil {
		return nil, pkgerrors.NewAuthorizationError("")
	}
	user, err := s.session.CurrentUser(ctx)
	if err != nil {
		if pkgerrors.GetAppError(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.NewAuthorizationError("session could not be resolved").WithCause(err)
	}
	if user == nil || user.ID == "" {
		return nil, pkgerrors.NewAuthorizationError("")
	}
	return user, nil
}

// currentOwner resolves the session into an owner id
func (s *KnowledgeGraph) currentOwner(ctx context.Context) (string, error) {
	user, err := s.CurrentUser(ctx)
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

// observe wraps one operation with tracing, metrics and failure logging
func (s *KnowledgeGraph) observe(ctx context.Context, operation string, fn func(context.Context) error) error {
	start := time.Now()
	err := s.tracer.TraceFunction(ctx, operation, fn)
	s.metrics.RecordOperation(ctx, operation, time.Since(start), err)

	if err != nil {
		fields := []zap.Field{
			zap.String("operation", operation),
			zap.String("error_type", string(pkgerrors.TypeOf(err))),
			zap.Error(err),
		}
		switch pkgerrors.TypeOf(err) {
		case pkgerrors.ErrorTypeValidation, pkgerrors.ErrorTypeNotFound,
			pkgerrors.ErrorTypeConflict, pkgerrors.ErrorTypeUnauthorized:
			s.logger.Debug("operation rejected", fields...)
		default:
			s.logger.Error("operation failed", fields...)
		}
	}
	return err
}

type eventSource interface {
	GetUncommittedEvents() []events.DomainEvent
	MarkEventsAsCommitted()
}

// publish hands committed events to the publisher. Failures are logged and
// never surfaced: the write has already succeeded.
func (s *KnowledgeGraph) publish(ctx context.Context, source eventSource) {
	evts := source.GetUncommittedEvents()
	source.MarkEventsAsCommitted()
	s.publishEvents(ctx, evts...)
}

func (s *KnowledgeGraph) publishEvents(ctx context.Context, evts ...events.DomainEvent) {
	if s.publisher == nil || len(evts) == 0 {
		return
	}
	err := s.publisher.PublishBatch(ctx, evts)
	for _, e := range evts {
		s.metrics.RecordEventPublish(e.GetEventType(), err)
	}
	if err != nil {
		s.logger.Warn("failed to publish domain events",
			zap.Int("count", len(evts)),
			zap.String("first_type", evts[0].GetEventType()),
			zap.Error(err))
	}
}

// resolveID parses an id taken from a resource path. An id that cannot name
// any stored resource is reported as a missing resource.
func resolveID(resource, raw string) (valueobjects.ID, error) {
	id, err := valueobjects.ParseID("id", raw)
	if err != nil {
		return valueobjects.ID{}, pkgerrors.NewNotFoundError(resource, raw)
	}
	return id, nil
}

// checkExpectedVersion enforces an optimistic precondition from the caller
func checkExpectedVersion(resource, id string, expected *int, actual int) error {
	if expected != nil && *expected != actual {
		return pkgerrors.NewVersionConflictError(resource, id, *expected).
			WithDetail("actual_version", actual)
	}
	return nil
}
