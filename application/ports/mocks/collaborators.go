package mocks

import (
	"context"

	"bobbin-backend/application/ports"
	"bobbin-backend/domain/events"

	"github.com/stretchr/testify/mock"
)

// MockEventPublisher is a mock implementation of ports.EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockEventPublisher) PublishBatch(ctx context.Context, evts []events.DomainEvent) error {
	args := m.Called(ctx, evts)
	return args.Error(0)
}

// MockSessionResolver is a mock implementation of ports.SessionResolver
type MockSessionResolver struct {
	mock.Mock
}

func (m *MockSessionResolver) CurrentUser(ctx context.Context) (*ports.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.User), args.Error(1)
}

// StaticSession always resolves to the same user; a nil user means no session
type StaticSession struct {
	User *ports.User
}

func (s StaticSession) CurrentUser(context.Context) (*ports.User, error) {
	return s.User, nil
}

// MockSuggestionScorer is a mock implementation of ports.SuggestionScorer
type MockSuggestionScorer struct {
	mock.Mock
}

func (m *MockSuggestionScorer) Name() string {
	return "mock"
}

func (m *MockSuggestionScorer) Score(ctx context.Context, anchor ports.SuggestionCandidate, candidates []ports.SuggestionCandidate) ([]ports.ScoredCandidate, error) {
	args := m.Called(ctx, anchor, candidates)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ports.ScoredCandidate), args.Error(1)
}

// MockTokenVerifier is a mock implementation of ports.TokenVerifier
type MockTokenVerifier struct {
	mock.Mock
}

func (m *MockTokenVerifier) VerifyToken(ctx context.Context, token string) (*ports.User, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.User), args.Error(1)
}
