package mocks

import (
	"context"

	"bobbin-backend/application/ports"
	"bobbin-backend/domain/core/aggregates"
	"bobbin-backend/domain/core/entities"
	"bobbin-backend/domain/core/valueobjects"
	"bobbin-backend/pkg/common"

	"github.com/stretchr/testify/mock"
)

// MockGraphStore bundles the repository mocks behind ports.GraphStore
type MockGraphStore struct {
	mock.Mock
	ArtifactRepo     *MockArtifactRepository
	ConceptRepo      *MockConceptRepository
	ConnectionRepo   *MockConnectionRepository
	ConversationRepo *MockConversationRepository
}

// NewMockGraphStore creates a store with fresh repository mocks
func NewMockGraphStore() *MockGraphStore {
	return &MockGraphStore{
		ArtifactRepo:     new(MockArtifactRepository),
		ConceptRepo:      new(MockConceptRepository),
		ConnectionRepo:   new(MockConnectionRepository),
		ConversationRepo: new(MockConversationRepository),
	}
}

var _ ports.GraphStore = (*MockGraphStore)(nil)

func (m *MockGraphStore) Artifacts() ports.ArtifactRepository         { return m.ArtifactRepo }
func (m *MockGraphStore) Concepts() ports.ConceptRepository           { return m.ConceptRepo }
func (m *MockGraphStore) Connections() ports.ConnectionRepository     { return m.ConnectionRepo }
func (m *MockGraphStore) Conversations() ports.ConversationRepository { return m.ConversationRepo }

func (m *MockGraphStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockArtifactRepository is a mock implementation of ports.ArtifactRepository
type MockArtifactRepository struct {
	mock.Mock
}

func (m *MockArtifactRepository) Create(ctx context.Context, artifact *entities.Artifact) error {
	args := m.Called(ctx, artifact)
	return args.Error(0)
}

func (m *MockArtifactRepository) GetByID(ctx context.Context, ownerID string, id valueobjects.ID) (*entities.Artifact, error) {
	args := m.Called(ctx, ownerID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Artifact), args.Error(1)
}

func (m *MockArtifactRepository) GetByIDs(ctx context.Context, ownerID string, ids []valueobjects.ID) ([]*entities.Artifact, error) {
	args := m.Called(ctx, ownerID, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Artifact), args.Error(1)
}

func (m *MockArtifactRepository) Update(ctx context.Context, artifact *entities.Artifact, expectedVersion int) error {
	args := m.Called(ctx, artifact, expectedVersion)
	return args.Error(0)
}

func (m *MockArtifactRepository) Delete(ctx context.Context, ownerID string, id valueobjects.ID) (*aggregates.RemovalPlan, error) {
	args := m.Called(ctx, ownerID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*aggregates.RemovalPlan), args.Error(1)
}

func (m *MockArtifactRepository) List(ctx context.Context, ownerID string, params common.PaginationParams) ([]*entities.Artifact, int, error) {
	args := m.Called(ctx, ownerID, params)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*entities.Artifact), args.Int(1), args.Error(2)
}

// MockConceptRepository is a mock implementation of ports.ConceptRepository
type MockConceptRepository struct {
	mock.Mock
}

func (m *MockConceptRepository) Create(ctx context.Context, concept *entities.Concept) error {
	args := m.Called(ctx, concept)
	return args.Error(0)
}

func (m *MockConceptRepository) GetByID(ctx context.Context, ownerID string, id valueobjects.ID) (*entities.Concept, error) {
	args := m.Called(ctx, ownerID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Concept), args.Error(1)
}

func (m *MockConceptRepository) GetByIDs(ctx context.Context, ownerID string, ids []valueobjects.ID) ([]*entities.Concept, error) {
	args := m.Called(ctx, ownerID, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Concept), args.Error(1)
}

func (m *MockConceptRepository) FindByLabel(ctx context.Context, ownerID string, conceptType valueobjects.ConceptType, label string) (*entities.Concept, error) {
	args := m.Called(ctx, ownerID, conceptType, label)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Concept), args.Error(1)
}

func (m *MockConceptRepository) Update(ctx context.Context, concept *entities.Concept, expectedVersion int) error {
	args := m.Called(ctx, concept, expectedVersion)
	return args.Error(0)
}

func (m *MockConceptRepository) Delete(ctx context.Context, ownerID string, id valueobjects.ID) ([]valueobjects.ID, error) {
	args := m.Called(ctx, ownerID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]valueobjects.ID), args.Error(1)
}

func (m *MockConceptRepository) List(ctx context.Context, ownerID string, filter ports.ConceptFilter, params common.PaginationParams) ([]*entities.Concept, int, error) {
	args := m.Called(ctx, ownerID, filter, params)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*entities.Concept), args.Int(1), args.Error(2)
}

// MockConnectionRepository is a mock implementation of ports.ConnectionRepository
type MockConnectionRepository struct {
	mock.Mock
}

func (m *MockConnectionRepository) Create(ctx context.Context, connection *entities.Connection) error {
	args := m.Called(ctx, connection)
	return args.Error(0)
}

func (m *MockConnectionRepository) GetByID(ctx context.Context, ownerID string, id valueobjects.ID) (*entities.Connection, error) {
	args := m.Called(ctx, ownerID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Connection), args.Error(1)
}

func (m *MockConnectionRepository) FindDuplicate(ctx context.Context, ownerID, duplicateKey string) (*entities.Connection, error) {
	args := m.Called(ctx, ownerID, duplicateKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Connection), args.Error(1)
}

func (m *MockConnectionRepository) ListByEndpoint(ctx context.Context, ownerID string, endpoint valueobjects.Endpoint) ([]*entities.Connection, error) {
	args := m.Called(ctx, ownerID, endpoint)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Connection), args.Error(1)
}

func (m *MockConnectionRepository) Update(ctx context.Context, connection *entities.Connection, expectedVersion int) error {
	args := m.Called(ctx, connection, expectedVersion)
	return args.Error(0)
}

func (m *MockConnectionRepository) Delete(ctx context.Context, ownerID string, id valueobjects.ID) error {
	args := m.Called(ctx, ownerID, id)
	return args.Error(0)
}

func (m *MockConnectionRepository) List(ctx context.Context, ownerID string, filter ports.ConnectionFilter, params common.PaginationParams) ([]*entities.Connection, int, error) {
	args := m.Called(ctx, ownerID, filter, params)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*entities.Connection), args.Int(1), args.Error(2)
}

// MockConversationRepository is a mock implementation of ports.ConversationRepository
type MockConversationRepository struct {
	mock.Mock
}

func (m *MockConversationRepository) Create(ctx context.Context, conversation *entities.Conversation) error {
	args := m.Called(ctx, conversation)
	return args.Error(0)
}

func (m *MockConversationRepository) GetByID(ctx context.Context, ownerID string, id valueobjects.ID) (*entities.Conversation, error) {
	args := m.Called(ctx, ownerID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Conversation), args.Error(1)
}

func (m *MockConversationRepository) Update(ctx context.Context, conversation *entities.Conversation, expectedVersion int) error {
	args := m.Called(ctx, conversation, expectedVersion)
	return args.Error(0)
}

func (m *MockConversationRepository) Delete(ctx context.Context, ownerID string, id valueobjects.ID) error {
	args := m.Called(ctx, ownerID, id)
	return args.Error(0)
}

func (m *MockConversationRepository) List(ctx context.Context, ownerID string, params common.PaginationParams) ([]*entities.Conversation, int, error) {
	args := m.Called(ctx, ownerID, params)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*entities.Conversation), args.Int(1), args.Error(2)
}
