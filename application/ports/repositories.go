package ports

import (
	"context"

	"bobbin-backend/domain/core/aggregates"
	"bobbin-backend/domain/core/entities"
	"bobbin-backend/domain/core/valueobjects"
	"bobbin-backend/pkg/common"
)

// GraphStore is the single handle to the persistent store. It is created
// once per process and shared by concurrent requests. Every repository
// method is scoped by owner: entities of other owners behave as missing.
type GraphStore interface {
	Artifacts() ArtifactRepository
	Concepts() ConceptRepository
	Connections() ConnectionRepository
	Conversations() ConversationRepository

	// Ping checks that the store is reachable
	Ping(ctx context.Context) error
}

// ArtifactRepository defines the interface for artifact persistence
type ArtifactRepository interface {
	// Create persists a new artifact. Every related concept must exist for
	// the owner, otherwise a validation error is returned.
	Create(ctx context.Context, artifact *entities.Artifact) error

	// GetByID retrieves an artifact; NotFound when missing or not owned
	GetByID(ctx context.Context, ownerID string, id valueobjects.ID) (*entities.Artifact, error)

	// GetByIDs retrieves the owned artifacts among ids; missing ids are skipped
	GetByIDs(ctx context.Context, ownerID string, ids []valueobjects.ID) ([]*entities.Artifact, error)

	// Update writes the artifact if the stored version equals expectedVersion
	Update(ctx context.Context, artifact *entities.Artifact, expectedVersion int) error

	// Delete removes the artifact together with its connections, detaches it
	// from conversations and removes orphaned derived concepts.
	Delete(ctx context.Context, ownerID string, id valueobjects.ID) (*aggregates.RemovalPlan, error)

	// List returns a page of artifacts, newest first, and the total count
	List(ctx context.Context, ownerID string, params common.PaginationParams) ([]*entities.Artifact, int, error)
}

// ConceptFilter narrows concept listings
type ConceptFilter struct {
	Type   *valueobjects.ConceptType
	Origin *valueobjects.ConceptOrigin
}

// ConceptRepository defines the interface for concept persistence
type ConceptRepository interface {
	// Create persists a new concept; Conflict when the owner already has a
	// concept of the same type and label.
	Create(ctx context.Context, concept *entities.Concept) error

	// GetByID retrieves a concept; NotFound when missing or not owned
	GetByID(ctx context.Context, ownerID string, id valueobjects.ID) (*entities.Concept, error)

	// GetByIDs retrieves the owned concepts among ids; missing ids are skipped
	GetByIDs(ctx context.Context, ownerID string, ids []valueobjects.ID) ([]*entities.Concept, error)

	// FindByLabel looks a concept up by type and case-folded label
	FindByLabel(ctx context.Context, ownerID string, conceptType valueobjects.ConceptType, label string) (*entities.Concept, error)

	// Update writes the concept if the stored version equals expectedVersion
	Update(ctx context.Context, concept *entities.Concept, expectedVersion int) error

	// Delete removes the concept and its connections and detaches it from
	// artifacts and conversations. It returns the removed connection ids.
	Delete(ctx context.Context, ownerID string, id valueobjects.ID) ([]valueobjects.ID, error)

	// List returns a page of concepts ordered by label, and the total count
	List(ctx context.Context, ownerID string, filter ConceptFilter, params common.PaginationParams) ([]*entities.Concept, int, error)
}

// ConnectionFilter narrows connection listings
type ConnectionFilter struct {
	Endpoint *valueobjects.Endpoint
	Kind     *valueobjects.RelationshipKind
	Status   *valueobjects.ConnectionStatus
}

// ConnectionRepository defines the interface for connection persistence
type ConnectionRepository interface {
	// Create persists a connection. Both endpoints are re-checked inside the
	// write: a missing endpoint yields a validation error and an existing
	// connection with the same duplicate key yields Conflict.
	Create(ctx context.Context, connection *entities.Connection) error

	// GetByID retrieves a connection; NotFound when missing or not owned
	GetByID(ctx context.Context, ownerID string, id valueobjects.ID) (*entities.Connection, error)

	// FindDuplicate returns the connection stored under the duplicate key
	FindDuplicate(ctx context.Context, ownerID, duplicateKey string) (*entities.Connection, error)

	// ListByEndpoint returns every connection touching the endpoint
	ListByEndpoint(ctx context.Context, ownerID string, endpoint valueobjects.Endpoint) ([]*entities.Connection, error)

	// Update writes the connection if the stored version equals expectedVersion
	Update(ctx context.Context, connection *entities.Connection, expectedVersion int) error

	// Delete removes a connection
	Delete(ctx context.Context, ownerID string, id valueobjects.ID) error

	// List returns a page of connections, newest first, and the total count
	List(ctx context.Context, ownerID string, filter ConnectionFilter, params common.PaginationParams) ([]*entities.Connection, int, error)
}

// ConversationRepository defines the interface for conversation persistence
type ConversationRepository interface {
	// Create persists a conversation; every referenced artifact and concept
	// must exist for the owner.
	Create(ctx context.Context, conversation *entities.Conversation) error

	// GetByID retrieves a conversation with its messages
	GetByID(ctx context.Context, ownerID string, id valueobjects.ID) (*entities.Conversation, error)

	// Update writes the conversation, including appended messages, if the
	// stored version equals expectedVersion
	Update(ctx context.Context, conversation *entities.Conversation, expectedVersion int) error

	// Delete removes a conversation and its messages
	Delete(ctx context.Context, ownerID string, id valueobjects.ID) error

	// List returns a page of conversations, most recently updated first
	List(ctx context.Context, ownerID string, params common.PaginationParams) ([]*entities.Conversation, int, error)
}
