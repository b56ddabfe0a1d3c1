package entities

import (
	"strings"
	"time"
	"unicode/utf8"

	"bobbin-backend/domain/config"
	"bobbin-backend/domain/core/valueobjects"
	"bobbin-backend/domain/events"
	pkgerrors "bobbin-backend/pkg/errors"
	"bobbin-backend/pkg/utils"
)

const maxConversationTitleLength = 200

// Message is a single entry in a conversation
type Message struct {
	ID        valueobjects.ID          `json:"id"`
	Role      valueobjects.MessageRole `json:"role"`
	Content   string                   `json:"content"`
	CreatedAt time.Time                `json:"created_at"`
}

// Conversation is a discussion thread that references artifacts and concepts
type Conversation struct {
	id          valueobjects.ID
	ownerID     string
	title       string
	artifactIDs []valueobjects.ID
	conceptIDs  []valueobjects.ID
	messages    []Message

	tracking
}

// MessageState is the flat form of a Message
type MessageState struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ConversationState is the flat, serializable form of a Conversation
type ConversationState struct {
	ID          string         `json:"id"`
	OwnerID     string         `json:"owner_id"`
	Title       string         `json:"title"`
	ArtifactIDs []string       `json:"artifact_ids"`
	ConceptIDs  []string       `json:"concept_ids"`
	Messages    []MessageState `json:"messages"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	Version     int            `json:"version"`
}

// NewConversation starts a conversation referencing existing entities
func NewConversation(
	ownerID, title string,
	artifactIDs, conceptIDs []valueobjects.ID,
	cfg *config.DomainConfig,
) (*Conversation, error) {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	if ownerID == "" {
		return nil, pkgerrors.NewValidationError("owner cannot be empty")
	}
	title, err := normalizeConversationTitle(title)
	if err != nil {
		return nil, err
	}
	if err := checkReferenceCount(len(artifactIDs)+len(conceptIDs), cfg); err != nil {
		return nil, err
	}

	c := &Conversation{
		id:          valueobjects.NewID(),
		ownerID:     ownerID,
		title:       title,
		artifactIDs: copyIDs(artifactIDs),
		conceptIDs:  copyIDs(conceptIDs),
		tracking:    newTracking(utils.Now()),
	}

	c.addEvent(events.NewConversationCreated(c.id.String(), ownerID, title, c.createdAt))

	return c, nil
}

// ReconstructConversation rebuilds a conversation from stored state
func ReconstructConversation(s ConversationState) (*Conversation, error) {
	id, err := valueobjects.ParseID("id", s.ID)
	if err != nil {
		return nil, err
	}
	artifactIDs, err := valueobjects.ParseIDs("artifact_ids", s.ArtifactIDs)
	if err != nil {
		return nil, err
	}
	conceptIDs, err := valueobjects.ParseIDs("concept_ids", s.ConceptIDs)
	if err != nil {
		return nil, err
	}

	messages := make([]Message, 0, len(s.Messages))
	for _, m := range s.Messages {
		mid, err := valueobjects.ParseID("messages.id", m.ID)
		if err != nil {
			return nil, err
		}
		role, err := valueobjects.ParseMessageRole(m.Role)
		if err != nil {
			return nil, err
		}
		messages = append(messages, Message{ID: mid, Role: role, Content: m.Content, CreatedAt: m.CreatedAt})
	}

	return &Conversation{
		id:          id,
		ownerID:     s.OwnerID,
		title:       s.Title,
		artifactIDs: artifactIDs,
		conceptIDs:  conceptIDs,
		messages:    messages,
		tracking:    restoreTracking(s.CreatedAt, s.UpdatedAt, s.Version),
	}, nil
}

func normalizeConversationTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", pkgerrors.NewFieldValidationError("title", "is required")
	}
	if utf8.RuneCountInString(title) > maxConversationTitleLength {
		return "", pkgerrors.NewFieldValidationError("title", "is too long").
			WithDetail("max_length", maxConversationTitleLength)
	}
	return title, nil
}

func checkReferenceCount(n int, cfg *config.DomainConfig) error {
	if n > cfg.MaxReferencesPerConversation {
		return pkgerrors.NewValidationError("conversation references too many entities").
			WithDetail("max_references", cfg.MaxReferencesPerConversation)
	}
	return nil
}

// ID returns the conversation's unique identifier
func (c *Conversation) ID() valueobjects.ID { return c.id }

// OwnerID returns the owner's ID
func (c *Conversation) OwnerID() string { return c.ownerID }

// Title returns the conversation title
func (c *Conversation) Title() string { return c.title }

// ArtifactIDs returns the referenced artifacts
func (c *Conversation) ArtifactIDs() []valueobjects.ID { return copyIDs(c.artifactIDs) }

// ConceptIDs returns the referenced concepts
func (c *Conversation) ConceptIDs() []valueobjects.ID { return copyIDs(c.conceptIDs) }

// Messages returns the messages in append order
func (c *Conversation) Messages() []Message {
	return append([]Message(nil), c.messages...)
}

// Rename changes the title
func (c *Conversation) Rename(title string) error {
	title, err := normalizeConversationTitle(title)
	if err != nil {
		return err
	}
	if title == c.title {
		return nil
	}
	c.title = title
	c.markChanged("title")
	return nil
}

// SetReferences replaces the referenced artifacts and concepts. A nil slice
// leaves that list untouched.
func (c *Conversation) SetReferences(artifactIDs, conceptIDs []valueobjects.ID, cfg *config.DomainConfig) error {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	nextArtifacts, nextConcepts := c.artifactIDs, c.conceptIDs
	if artifactIDs != nil {
		nextArtifacts = artifactIDs
	}
	if conceptIDs != nil {
		nextConcepts = conceptIDs
	}
	if err := checkReferenceCount(len(nextArtifacts)+len(nextConcepts), cfg); err != nil {
		return err
	}
	if !sameIDs(c.artifactIDs, nextArtifacts) {
		c.artifactIDs = copyIDs(nextArtifacts)
		c.markChanged("artifact_ids")
	}
	if !sameIDs(c.conceptIDs, nextConcepts) {
		c.conceptIDs = copyIDs(nextConcepts)
		c.markChanged("concept_ids")
	}
	return nil
}

// DetachArtifact drops a deleted artifact from the references
func (c *Conversation) DetachArtifact(id valueobjects.ID) bool {
	ids, found := removeID(c.artifactIDs, id)
	if found {
		c.artifactIDs = ids
		c.markChanged("artifact_ids")
	}
	return found
}

// DetachConcept drops a deleted concept from the references
func (c *Conversation) DetachConcept(id valueobjects.ID) bool {
	ids, found := removeID(c.conceptIDs, id)
	if found {
		c.conceptIDs = ids
		c.markChanged("concept_ids")
	}
	return found
}

// AppendMessage adds a message and bumps the version
func (c *Conversation) AppendMessage(role valueobjects.MessageRole, content string, cfg *config.DomainConfig) (Message, error) {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	if !role.IsValid() {
		return Message{}, pkgerrors.NewFieldValidationError("role", "is not a recognised message role")
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return Message{}, pkgerrors.NewFieldValidationError("content", "is required")
	}
	if utf8.RuneCountInString(content) > cfg.MaxMessageLength {
		return Message{}, pkgerrors.NewFieldValidationError("content", "is too long").
			WithDetail("max_length", cfg.MaxMessageLength)
	}
	if len(c.messages) >= cfg.MaxMessagesPerConversation {
		return Message{}, pkgerrors.NewValidationError("conversation has reached its message limit").
			WithDetail("max_messages", cfg.MaxMessagesPerConversation)
	}

	now := utils.Now()
	msg := Message{ID: valueobjects.NewID(), Role: role, Content: content, CreatedAt: now}
	c.messages = append(c.messages, msg)
	c.markChanged("messages")
	c.commit(now)
	c.resetChanges()
	c.addEvent(events.NewMessageAppended(c.id.String(), c.ownerID, c.version, msg.ID.String(), string(role), now))

	return msg, nil
}

// CommitUpdate bumps the version for pending changes and records the event
func (c *Conversation) CommitUpdate() bool {
	changed := c.ChangedFields()
	if !c.commit(utils.Now()) {
		return false
	}
	c.addEvent(events.NewConversationUpdated(c.id.String(), c.ownerID, c.version, changed, c.updatedAt))
	c.resetChanges()
	return true
}

// State returns the flat representation
func (c *Conversation) State() ConversationState {
	messages := make([]MessageState, len(c.messages))
	for i, m := range c.messages {
		messages[i] = MessageState{ID: m.ID.String(), Role: string(m.Role), Content: m.Content, CreatedAt: m.CreatedAt}
	}
	return ConversationState{
		ID:          c.id.String(),
		OwnerID:     c.ownerID,
		Title:       c.title,
		ArtifactIDs: valueobjects.IDStrings(c.artifactIDs),
		ConceptIDs:  valueobjects.IDStrings(c.conceptIDs),
		Messages:    messages,
		CreatedAt:   c.createdAt,
		UpdatedAt:   c.updatedAt,
		Version:     c.version,
	}
}
