package events

import (
	"time"
)

// SourceBackend is the event source name used on the bus
const SourceBackend = "bobbin.knowledge-graph"

// Event type names
const (
	TypeArtifactCreated     = "artifact.created"
	TypeArtifactUpdated     = "artifact.updated"
	TypeArtifactDeleted     = "artifact.deleted"
	TypeConceptCreated      = "concept.created"
	TypeConceptUpdated      = "concept.updated"
	TypeConceptDeleted      = "concept.deleted"
	TypeConnectionCreated   = "connection.created"
	TypeConnectionUpdated   = "connection.updated"
	TypeConnectionDeleted   = "connection.deleted"
	TypeConversationCreated = "conversation.created"
	TypeConversationUpdated = "conversation.updated"
	TypeConversationDeleted = "conversation.deleted"
	TypeMessageAppended     = "conversation.message_appended"
)

// DomainEvent is the base interface for all domain events
// Events represent something that has happened in the past
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetOwnerID() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	OwnerID     string    `json:"owner_id"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetOwnerID() string      { return e.OwnerID }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

func newBase(eventType, aggregateID, ownerID string, version int, at time.Time) BaseEvent {
	return BaseEvent{
		AggregateID: aggregateID,
		EventType:   eventType,
		OwnerID:     ownerID,
		Timestamp:   at,
		Version:     version,
	}
}

// Artifact events

// ArtifactCreated is raised when a user captures a new artifact
type ArtifactCreated struct {
	BaseEvent
	Kind       string   `json:"kind"`
	Title      string   `json:"title"`
	ConceptIDs []string `json:"concept_ids,omitempty"`
}

// NewArtifactCreated creates an ArtifactCreated event
func NewArtifactCreated(id, ownerID, kind, title string, conceptIDs []string, at time.Time) ArtifactCreated {
	return ArtifactCreated{
		BaseEvent:  newBase(TypeArtifactCreated, id, ownerID, 1, at),
		Kind:       kind,
		Title:      title,
		ConceptIDs: conceptIDs,
	}
}

// EntityUpdated is raised when mutable fields of any entity change
type EntityUpdated struct {
	BaseEvent
	Changed []string `json:"changed"`
}

// NewArtifactUpdated creates an update event for an artifact
func NewArtifactUpdated(id, ownerID string, version int, changed []string, at time.Time) EntityUpdated {
	return EntityUpdated{BaseEvent: newBase(TypeArtifactUpdated, id, ownerID, version, at), Changed: changed}
}

// NewConceptUpdated creates an update event for a concept
func NewConceptUpdated(id, ownerID string, version int, changed []string, at time.Time) EntityUpdated {
	return EntityUpdated{BaseEvent: newBase(TypeConceptUpdated, id, ownerID, version, at), Changed: changed}
}

// NewConnectionUpdated creates an update event for a connection
func NewConnectionUpdated(id, ownerID string, version int, changed []string, at time.Time) EntityUpdated {
	return EntityUpdated{BaseEvent: newBase(TypeConnectionUpdated, id, ownerID, version, at), Changed: changed}
}

// NewConversationUpdated creates an update event for a conversation
func NewConversationUpdated(id, ownerID string, version int, changed []string, at time.Time) EntityUpdated {
	return EntityUpdated{BaseEvent: newBase(TypeConversationUpdated, id, ownerID, version, at), Changed: changed}
}

// EntityDeleted is raised after an entity and its dependents are removed
type EntityDeleted struct {
	BaseEvent
	CascadedConnections []string `json:"cascaded_connections,omitempty"`
	CascadedConcepts    []string `json:"cascaded_concepts,omitempty"`
}

// NewEntityDeleted creates a deletion event of the given type
func NewEntityDeleted(eventType, id, ownerID string, connections, concepts []string, at time.Time) EntityDeleted {
	return EntityDeleted{
		BaseEvent:           newBase(eventType, id, ownerID, 0, at),
		CascadedConnections: connections,
		CascadedConcepts:    concepts,
	}
}

// Concept events

// ConceptCreated is raised when a concept is created by a user or derived from an artifact
type ConceptCreated struct {
	BaseEvent
	Type   string `json:"type"`
	Label  string `json:"label"`
	Origin string `json:"origin"`
}

// NewConceptCreated creates a ConceptCreated event
func NewConceptCreated(id, ownerID, conceptType, label, origin string, at time.Time) ConceptCreated {
	return ConceptCreated{
		BaseEvent: newBase(TypeConceptCreated, id, ownerID, 1, at),
		Type:      conceptType,
		Label:     label,
		Origin:    origin,
	}
}

// Connection events

// ConnectionCreated is raised when two endpoints are connected
type ConnectionCreated struct {
	BaseEvent
	Source     string   `json:"source"`
	Target     string   `json:"target"`
	Kind       string   `json:"kind"`
	Status     string   `json:"status"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// NewConnectionCreated creates a ConnectionCreated event
func NewConnectionCreated(id, ownerID, source, target, kind, status string, confidence *float64, at time.Time) ConnectionCreated {
	return ConnectionCreated{
		BaseEvent:  newBase(TypeConnectionCreated, id, ownerID, 1, at),
		Source:     source,
		Target:     target,
		Kind:       kind,
		Status:     status,
		Confidence: confidence,
	}
}

// Conversation events

// ConversationCreated is raised when a discussion thread starts
type ConversationCreated struct {
	BaseEvent
	Title string `json:"title"`
}

// NewConversationCreated creates a ConversationCreated event
func NewConversationCreated(id, ownerID, title string, at time.Time) ConversationCreated {
	return ConversationCreated{
		BaseEvent: newBase(TypeConversationCreated, id, ownerID, 1, at),
		Title:     title,
	}
}

// MessageAppended is raised when a message is added to a conversation
type MessageAppended struct {
	BaseEvent
	MessageID string `json:"message_id"`
	Role      string `json:"role"`
}

// NewMessageAppended creates a MessageAppended event
func NewMessageAppended(conversationID, ownerID string, version int, messageID, role string, at time.Time) MessageAppended {
	return MessageAppended{
		BaseEvent: newBase(TypeMessageAppended, conversationID, ownerID, version, at),
		MessageID: messageID,
		Role:      role,
	}
}
