package dynamodb

import (
	"time"

	"bobbin-backend/domain/core/entities"
	"bobbin-backend/domain/core/valueobjects"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Single-table layout. Every item of an owner lives in the partition
// USER#<owner>; the sort key prefix names the item type.
const (
	prefixArtifact     = "ARTIFACT#"
	prefixConcept      = "CONCEPT#"
	prefixConceptKey   = "CONCEPTKEY#"
	prefixConnection   = "CONNECTION#"
	prefixConnKey      = "CONNKEY#"
	prefixConversation = "CONVERSATION#"
	prefixEvent        = "EVENT#"
)

// Entity type attribute values
const (
	entityArtifact     = "ARTIFACT"
	entityConcept      = "CONCEPT"
	entityConceptKey   = "CONCEPT_KEY"
	entityConnection   = "CONNECTION"
	entityConnKey      = "CONNECTION_KEY"
	entityConversation = "CONVERSATION"
	entityEvent        = "EVENT"
)

func ownerPK(owner string) string { return "USER#" + owner }

func itemKey(owner, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: ownerPK(owner)},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

// endpointRef is the stored form of a connection endpoint, e.g.
// "concept:<uuid>"
func endpointRef(kind, id string) string { return kind + ":" + id }

func endpointSK(ep valueobjects.Endpoint) string {
	switch ep.Kind() {
	case valueobjects.EndpointArtifact:
		return prefixArtifact + ep.ID().String()
	case valueobjects.EndpointConcept:
		return prefixConcept + ep.ID().String()
	default:
		return ""
	}
}

type artifactItem struct {
	PK         string            `dynamodbav:"PK"`
	SK         string            `dynamodbav:"SK"`
	EntityType string            `dynamodbav:"EntityType"`
	ID         string            `dynamodbav:"ID"`
	OwnerID    string            `dynamodbav:"OwnerID"`
	Kind       string            `dynamodbav:"Kind"`
	Title      string            `dynamodbav:"Title"`
	Body       string            `dynamodbav:"Body,omitempty"`
	SourceURL  string            `dynamodbav:"SourceURL,omitempty"`
	Metadata   map[string]string `dynamodbav:"Metadata,omitempty"`
	ConceptIDs []string          `dynamodbav:"ConceptIDs"`
	CreatedAt  time.Time         `dynamodbav:"CreatedAt"`
	UpdatedAt  time.Time         `dynamodbav:"UpdatedAt"`
	Version    int               `dynamodbav:"Version"`
	RefEpoch   int               `dynamodbav:"RefEpoch,omitempty"`
}

func newArtifactItem(s entities.ArtifactState) artifactItem {
	return artifactItem{
		PK:         ownerPK(s.OwnerID),
		SK:         prefixArtifact + s.ID,
		EntityType: entityArtifact,
		ID:         s.ID,
		OwnerID:    s.OwnerID,
		Kind:       s.Kind,
		Title:      s.Title,
		Body:       s.Body,
		SourceURL:  s.SourceURL,
		Metadata:   s.Metadata,
		ConceptIDs: nonNil(s.ConceptIDs),
		CreatedAt:  s.CreatedAt.UTC(),
		UpdatedAt:  s.UpdatedAt.UTC(),
		Version:    s.Version,
	}
}

func (i artifactItem) state() entities.ArtifactState {
	return entities.ArtifactState{
		ID:         i.ID,
		OwnerID:    i.OwnerID,
		Kind:       i.Kind,
		Title:      i.Title,
		Body:       i.Body,
		SourceURL:  i.SourceURL,
		Metadata:   i.Metadata,
		ConceptIDs: nonNil(i.ConceptIDs),
		CreatedAt:  i.CreatedAt,
		UpdatedAt:  i.UpdatedAt,
		Version:    i.Version,
	}
}

type conceptItem struct {
	PK               string            `dynamodbav:"PK"`
	SK               string            `dynamodbav:"SK"`
	EntityType       string            `dynamodbav:"EntityType"`
	ID               string            `dynamodbav:"ID"`
	OwnerID          string            `dynamodbav:"OwnerID"`
	UniqueKey        string            `dynamodbav:"UniqueKey"`
	Type             string            `dynamodbav:"Type"`
	Label            string            `dynamodbav:"Label"`
	LabelKey         string            `dynamodbav:"LabelKey"`
	Description      string            `dynamodbav:"Description,omitempty"`
	Metadata         map[string]string `dynamodbav:"Metadata,omitempty"`
	Origin           string            `dynamodbav:"Origin"`
	SourceArtifactID string            `dynamodbav:"SourceArtifactID,omitempty"`
	CreatedAt        time.Time         `dynamodbav:"CreatedAt"`
	UpdatedAt        time.Time         `dynamodbav:"UpdatedAt"`
	Version          int               `dynamodbav:"Version"`
	RefEpoch         int               `dynamodbav:"RefEpoch,omitempty"`
}

func newConceptItem(s entities.ConceptState) conceptItem {
	return conceptItem{
		PK:               ownerPK(s.OwnerID),
		SK:               prefixConcept + s.ID,
		EntityType:       entityConcept,
		ID:               s.ID,
		OwnerID:          s.OwnerID,
		UniqueKey:        entities.ConceptUniqueKey(valueobjects.ConceptType(s.Type), s.Label),
		Type:             s.Type,
		Label:            s.Label,
		LabelKey:         valueobjects.LabelKey(s.Label),
		Description:      s.Description,
		Metadata:         s.Metadata,
		Origin:           s.Origin,
		SourceArtifactID: s.SourceArtifactID,
		CreatedAt:        s.CreatedAt.UTC(),
		UpdatedAt:        s.UpdatedAt.UTC(),
		Version:          s.Version,
	}
}

func (i conceptItem) state() entities.ConceptState {
	return entities.ConceptState{
		ID:               i.ID,
		OwnerID:          i.OwnerID,
		Type:             i.Type,
		Label:            i.Label,
		Description:      i.Description,
		Metadata:         i.Metadata,
		Origin:           i.Origin,
		SourceArtifactID: i.SourceArtifactID,
		CreatedAt:        i.CreatedAt,
		UpdatedAt:        i.UpdatedAt,
		Version:          i.Version,
	}
}

// guardItem reserves a unique key (concept type and label, or connection
// duplicate key) for the entity named by TargetID
type guardItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"EntityType"`
	TargetID   string `dynamodbav:"TargetID"`
}

func conceptGuard(owner, uniqueKey, conceptID string) guardItem {
	return guardItem{PK: ownerPK(owner), SK: prefixConceptKey + uniqueKey, EntityType: entityConceptKey, TargetID: conceptID}
}

func connectionGuard(owner, duplicateKey, connectionID string) guardItem {
	return guardItem{PK: ownerPK(owner), SK: prefixConnKey + duplicateKey, EntityType: entityConnKey, TargetID: connectionID}
}

type connectionItem struct {
	PK           string    `dynamodbav:"PK"`
	SK           string    `dynamodbav:"SK"`
	EntityType   string    `dynamodbav:"EntityType"`
	ID           string    `dynamodbav:"ID"`
	OwnerID      string    `dynamodbav:"OwnerID"`
	DuplicateKey string    `dynamodbav:"DuplicateKey"`
	SourceKind   string    `dynamodbav:"SourceKind"`
	SourceID     string    `dynamodbav:"SourceID"`
	SourceRef    string    `dynamodbav:"SourceRef"`
	TargetKind   string    `dynamodbav:"TargetKind"`
	TargetID     string    `dynamodbav:"TargetID"`
	TargetRef    string    `dynamodbav:"TargetRef"`
	Kind         string    `dynamodbav:"Kind"`
	Label        string    `dynamodbav:"Label,omitempty"`
	Strength     float64   `dynamodbav:"Strength"`
	Directed     bool      `dynamodbav:"Directed"`
	Status       string    `dynamodbav:"Status"`
	Confidence   *float64  `dynamodbav:"Confidence,omitempty"`
	Reason       string    `dynamodbav:"Reason,omitempty"`
	CreatedAt    time.Time `dynamodbav:"CreatedAt"`
	UpdatedAt    time.Time `dynamodbav:"UpdatedAt"`
	Version      int       `dynamodbav:"Version"`
}

func newConnectionItem(c *entities.Connection) connectionItem {
	s := c.State()
	return connectionItem{
		PK:           ownerPK(s.OwnerID),
		SK:           prefixConnection + s.ID,
		EntityType:   entityConnection,
		ID:           s.ID,
		OwnerID:      s.OwnerID,
		DuplicateKey: c.DuplicateKey(),
		SourceKind:   s.Source.Kind,
		SourceID:     s.Source.ID,
		SourceRef:    endpointRef(s.Source.Kind, s.Source.ID),
		TargetKind:   s.Target.Kind,
		TargetID:     s.Target.ID,
		TargetRef:    endpointRef(s.Target.Kind, s.Target.ID),
		Kind:         s.Kind,
		Label:        s.Label,
		Strength:     s.Strength,
		Directed:     s.Directed,
		Status:       s.Status,
		Confidence:   s.Confidence,
		Reason:       s.Reason,
		CreatedAt:    s.CreatedAt.UTC(),
		UpdatedAt:    s.UpdatedAt.UTC(),
		Version:      s.Version,
	}
}

func (i connectionItem) state() entities.ConnectionState {
	return entities.ConnectionState{
		ID:         i.ID,
		OwnerID:    i.OwnerID,
		Source:     entities.EndpointState{Kind: i.SourceKind, ID: i.SourceID},
		Target:     entities.EndpointState{Kind: i.TargetKind, ID: i.TargetID},
		Kind:       i.Kind,
		Label:      i.Label,
		Strength:   i.Strength,
		Directed:   i.Directed,
		Status:     i.Status,
		Confidence: i.Confidence,
		Reason:     i.Reason,
		CreatedAt:  i.CreatedAt,
		UpdatedAt:  i.UpdatedAt,
		Version:    i.Version,
	}
}

func (i connectionItem) touches(ref string) bool {
	return i.SourceRef == ref || i.TargetRef == ref
}

type messageItem struct {
	ID        string    `dynamodbav:"ID"`
	Role      string    `dynamodbav:"Role"`
	Content   string    `dynamodbav:"Content"`
	CreatedAt time.Time `dynamodbav:"CreatedAt"`
}

// conversationItem keeps the messages inline; DynamoDB's item size limit
// bounds a conversation at roughly 400KB.
type conversationItem struct {
	PK          string        `dynamodbav:"PK"`
	SK          string        `dynamodbav:"SK"`
	EntityType  string        `dynamodbav:"EntityType"`
	ID          string        `dynamodbav:"ID"`
	OwnerID     string        `dynamodbav:"OwnerID"`
	Title       string        `dynamodbav:"Title"`
	ArtifactIDs []string      `dynamodbav:"ArtifactIDs"`
	ConceptIDs  []string      `dynamodbav:"ConceptIDs"`
	Messages    []messageItem `dynamodbav:"Messages"`
	CreatedAt   time.Time     `dynamodbav:"CreatedAt"`
	UpdatedAt   time.Time     `dynamodbav:"UpdatedAt"`
	Version     int           `dynamodbav:"Version"`
}

func newConversationItem(s entities.ConversationState) conversationItem {
	messages := make([]messageItem, 0, len(s.Messages))
	for _, m := range s.Messages {
		messages = append(messages, messageItem{ID: m.ID, Role: m.Role, Content: m.Content, CreatedAt: m.CreatedAt.UTC()})
	}
	return conversationItem{
		PK:          ownerPK(s.OwnerID),
		SK:          prefixConversation + s.ID,
		EntityType:  entityConversation,
		ID:          s.ID,
		OwnerID:     s.OwnerID,
		Title:       s.Title,
		ArtifactIDs: nonNil(s.ArtifactIDs),
		ConceptIDs:  nonNil(s.ConceptIDs),
		Messages:    messages,
		CreatedAt:   s.CreatedAt.UTC(),
		UpdatedAt:   s.UpdatedAt.UTC(),
		Version:     s.Version,
	}
}

func (i conversationItem) state() entities.ConversationState {
	messages := make([]entities.MessageState, 0, len(i.Messages))
	for _, m := range i.Messages {
		messages = append(messages, entities.MessageState{ID: m.ID, Role: m.Role, Content: m.Content, CreatedAt: m.CreatedAt})
	}
	return entities.ConversationState{
		ID:          i.ID,
		OwnerID:     i.OwnerID,
		Title:       i.Title,
		ArtifactIDs: nonNil(i.ArtifactIDs),
		ConceptIDs:  nonNil(i.ConceptIDs),
		Messages:    messages,
		CreatedAt:   i.CreatedAt,
		UpdatedAt:   i.UpdatedAt,
		Version:     i.Version,
	}
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

func without(ids []string, drop map[string]struct{}) ([]string, bool) {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := drop[id]; !ok {
			out = append(out, id)
		}
	}
	return out, len(out) != len(ids)
}
