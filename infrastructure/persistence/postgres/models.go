package postgres

import (
	"time"

	"bobbin-backend/domain/core/entities"
	"bobbin-backend/domain/core/valueobjects"

	"gorm.io/datatypes"
)

// Reference kinds stored in conversation_refs
const (
	refArtifact = "artifact"
	refConcept  = "concept"
)

type metadataJSON = datatypes.JSONType[map[string]string]

type artifactRow struct {
	ID        string       `gorm:"primaryKey;type:varchar(36)"`
	OwnerID   string       `gorm:"not null;index:idx_artifacts_owner_created,priority:1"`
	Kind      string       `gorm:"not null"`
	Title     string       `gorm:"not null"`
	Body      string       `gorm:"type:text"`
	SourceURL string       `gorm:"column:source_url"`
	Metadata  metadataJSON `gorm:"not null"`
	CreatedAt time.Time    `gorm:"not null;index:idx_artifacts_owner_created,priority:2"`
	UpdatedAt time.Time    `gorm:"not null"`
	Version   int          `gorm:"not null"`
}

func (artifactRow) TableName() string { return "artifacts" }

// artifactConceptRow keeps an artifact's relation list in order
type artifactConceptRow struct {
	ArtifactID string `gorm:"primaryKey;type:varchar(36)"`
	ConceptID  string `gorm:"primaryKey;type:varchar(36);index"`
	OwnerID    string `gorm:"not null;index"`
	Position   int    `gorm:"not null"`
}

func (artifactConceptRow) TableName() string { return "artifact_concepts" }

type conceptRow struct {
	ID               string       `gorm:"primaryKey;type:varchar(36)"`
	OwnerID          string       `gorm:"not null;uniqueIndex:idx_concepts_owner_key,priority:1"`
	UniqueKey        string       `gorm:"not null;uniqueIndex:idx_concepts_owner_key,priority:2"`
	Type             string       `gorm:"not null"`
	Label            string       `gorm:"not null"`
	LabelKey         string       `gorm:"not null;index"`
	Description      string       `gorm:"type:text"`
	Metadata         metadataJSON `gorm:"not null"`
	Origin           string       `gorm:"not null"`
	SourceArtifactID *string      `gorm:"type:varchar(36)"`
	CreatedAt        time.Time    `gorm:"not null"`
	UpdatedAt        time.Time    `gorm:"not null"`
	Version          int          `gorm:"not null"`
}

func (conceptRow) TableName() string { return "concepts" }

type connectionRow struct {
	ID           string    `gorm:"primaryKey;type:varchar(36)"`
	OwnerID      string    `gorm:"not null;uniqueIndex:idx_connections_owner_dup,priority:1"`
	DuplicateKey string    `gorm:"not null;uniqueIndex:idx_connections_owner_dup,priority:2"`
	SourceKind   string    `gorm:"not null;index:idx_connections_source,priority:1"`
	SourceID     string    `gorm:"not null;index:idx_connections_source,priority:2"`
	TargetKind   string    `gorm:"not null;index:idx_connections_target,priority:1"`
	TargetID     string    `gorm:"not null;index:idx_connections_target,priority:2"`
	Kind         string    `gorm:"not null"`
	Label        string    `gorm:"not null;default:''"`
	Strength     float64   `gorm:"not null"`
	Directed     bool      `gorm:"not null"`
	Status       string    `gorm:"not null"`
	Confidence   *float64  `gorm:"column:confidence"`
	Reason       string    `gorm:"type:text"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
	Version      int       `gorm:"not null"`
}

func (connectionRow) TableName() string { return "connections" }

type conversationRow struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)"`
	OwnerID   string    `gorm:"not null;index:idx_conversations_owner_updated,priority:1"`
	Title     string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null;index:idx_conversations_owner_updated,priority:2"`
	Version   int       `gorm:"not null"`
}

func (conversationRow) TableName() string { return "conversations" }

// conversationRefRow links a conversation to an artifact or concept
type conversationRefRow struct {
	ConversationID string `gorm:"primaryKey;type:varchar(36)"`
	RefKind        string `gorm:"primaryKey;type:varchar(16)"`
	RefID          string `gorm:"primaryKey;type:varchar(36);index"`
	OwnerID        string `gorm:"not null;index"`
	Position       int    `gorm:"not null"`
}

func (conversationRefRow) TableName() string { return "conversation_refs" }

type messageRow struct {
	ID             string    `gorm:"primaryKey;type:varchar(36)"`
	ConversationID string    `gorm:"not null;index:idx_messages_conversation_seq,priority:1"`
	Seq            int       `gorm:"not null;index:idx_messages_conversation_seq,priority:2"`
	OwnerID        string    `gorm:"not null"`
	Role           string    `gorm:"not null"`
	Content        string    `gorm:"type:text;not null"`
	CreatedAt      time.Time `gorm:"not null"`
}

func (messageRow) TableName() string { return "messages" }

// allModels lists every table in migration order
func allModels() []interface{} {
	return []interface{}{
		&artifactRow{},
		&artifactConceptRow{},
		&conceptRow{},
		&connectionRow{},
		&conversationRow{},
		&conversationRefRow{},
		&messageRow{},
	}
}

func newArtifactRow(s entities.ArtifactState) artifactRow {
	return artifactRow{
		ID:        s.ID,
		OwnerID:   s.OwnerID,
		Kind:      s.Kind,
		Title:     s.Title,
		Body:      s.Body,
		SourceURL: s.SourceURL,
		Metadata:  datatypes.NewJSONType(nonNilMetadata(s.Metadata)),
		CreatedAt: s.CreatedAt.UTC(),
		UpdatedAt: s.UpdatedAt.UTC(),
		Version:   s.Version,
	}
}

func artifactConceptRows(s entities.ArtifactState) []artifactConceptRow {
	rows := make([]artifactConceptRow, 0, len(s.ConceptIDs))
	for i, id := range s.ConceptIDs {
		rows = append(rows, artifactConceptRow{ArtifactID: s.ID, ConceptID: id, OwnerID: s.OwnerID, Position: i})
	}
	return rows
}

func (r artifactRow) state(conceptIDs []string) entities.ArtifactState {
	return entities.ArtifactState{
		ID:         r.ID,
		OwnerID:    r.OwnerID,
		Kind:       r.Kind,
		Title:      r.Title,
		Body:       r.Body,
		SourceURL:  r.SourceURL,
		Metadata:   r.Metadata.Data(),
		ConceptIDs: conceptIDs,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
		Version:    r.Version,
	}
}

func newConceptRow(s entities.ConceptState) conceptRow {
	var source *string
	if s.SourceArtifactID != "" {
		v := s.SourceArtifactID
		source = &v
	}
	return conceptRow{
		ID:               s.ID,
		OwnerID:          s.OwnerID,
		UniqueKey:        entities.ConceptUniqueKey(valueobjects.ConceptType(s.Type), s.Label),
		Type:             s.Type,
		Label:            s.Label,
		LabelKey:         valueobjects.LabelKey(s.Label),
		Description:      s.Description,
		Metadata:         datatypes.NewJSONType(nonNilMetadata(s.Metadata)),
		Origin:           s.Origin,
		SourceArtifactID: source,
		CreatedAt:        s.CreatedAt.UTC(),
		UpdatedAt:        s.UpdatedAt.UTC(),
		Version:          s.Version,
	}
}

func (r conceptRow) state() entities.ConceptState {
	s := entities.ConceptState{
		ID:          r.ID,
		OwnerID:     r.OwnerID,
		Type:        r.Type,
		Label:       r.Label,
		Description: r.Description,
		Metadata:    r.Metadata.Data(),
		Origin:      r.Origin,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		Version:     r.Version,
	}
	if r.SourceArtifactID != nil {
		s.SourceArtifactID = *r.SourceArtifactID
	}
	return s
}

func newConnectionRow(c *entities.Connection) connectionRow {
	s := c.State()
	return connectionRow{
		ID:           s.ID,
		OwnerID:      s.OwnerID,
		DuplicateKey: c.DuplicateKey(),
		SourceKind:   s.Source.Kind,
		SourceID:     s.Source.ID,
		TargetKind:   s.Target.Kind,
		TargetID:     s.Target.ID,
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

func (r connectionRow) state() entities.ConnectionState {
	return entities.ConnectionState{
		ID:         r.ID,
		OwnerID:    r.OwnerID,
		Source:     entities.EndpointState{Kind: r.SourceKind, ID: r.SourceID},
		Target:     entities.EndpointState{Kind: r.TargetKind, ID: r.TargetID},
		Kind:       r.Kind,
		Label:      r.Label,
		Strength:   r.Strength,
		Directed:   r.Directed,
		Status:     r.Status,
		Confidence: r.Confidence,
		Reason:     r.Reason,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
		Version:    r.Version,
	}
}

func newConversationRow(s entities.ConversationState) conversationRow {
	return conversationRow{
		ID:        s.ID,
		OwnerID:   s.OwnerID,
		Title:     s.Title,
		CreatedAt: s.CreatedAt.UTC(),
		UpdatedAt: s.UpdatedAt.UTC(),
		Version:   s.Version,
	}
}

func conversationRefRows(s entities.ConversationState) []conversationRefRow {
	rows := make([]conversationRefRow, 0, len(s.ArtifactIDs)+len(s.ConceptIDs))
	for i, id := range s.ArtifactIDs {
		rows = append(rows, conversationRefRow{ConversationID: s.ID, RefKind: refArtifact, RefID: id, OwnerID: s.OwnerID, Position: i})
	}
	for i, id := range s.ConceptIDs {
		rows = append(rows, conversationRefRow{ConversationID: s.ID, RefKind: refConcept, RefID: id, OwnerID: s.OwnerID, Position: i})
	}
	return rows
}

func newMessageRow(s entities.ConversationState, seq int) messageRow {
	m := s.Messages[seq]
	return messageRow{
		ID:             m.ID,
		ConversationID: s.ID,
		Seq:            seq,
		OwnerID:        s.OwnerID,
		Role:           m.Role,
		Content:        m.Content,
		CreatedAt:      m.CreatedAt.UTC(),
	}
}

func (r conversationRow) state(refs []conversationRefRow, messages []messageRow) entities.ConversationState {
	s := entities.ConversationState{
		ID:          r.ID,
		OwnerID:     r.OwnerID,
		Title:       r.Title,
		ArtifactIDs: []string{},
		ConceptIDs:  []string{},
		Messages:    make([]entities.MessageState, 0, len(messages)),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		Version:     r.Version,
	}
	for _, ref := range refs {
		switch ref.RefKind {
		case refArtifact:
			s.ArtifactIDs = append(s.ArtifactIDs, ref.RefID)
		case refConcept:
			s.ConceptIDs = append(s.ConceptIDs, ref.RefID)
		}
	}
	for _, m := range messages {
		s.Messages = append(s.Messages, entities.MessageState{ID: m.ID, Role: m.Role, Content: m.Content, CreatedAt: m.CreatedAt})
	}
	return s
}

func nonNilMetadata(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
