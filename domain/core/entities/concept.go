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

// Concept is a named idea, person, place or term in a user's graph
type Concept struct {
	id               valueobjects.ID
	ownerID          string
	conceptType      valueobjects.ConceptType
	label            valueobjects.Label
	description      string
	metadata         valueobjects.Metadata
	origin           valueobjects.ConceptOrigin
	sourceArtifactID *valueobjects.ID

	tracking
}

// ConceptState is the flat, serializable form of a Concept
type ConceptState struct {
	ID               string            `json:"id"`
	OwnerID          string            `json:"owner_id"`
	Type             string            `json:"type"`
	Label            string            `json:"label"`
	Description      string            `json:"description,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	Origin           string            `json:"origin"`
	SourceArtifactID string            `json:"source_artifact_id,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
	Version          int               `json:"version"`
}

// NewConcept creates a user-authored concept
func NewConcept(
	ownerID string,
	conceptType valueobjects.ConceptType,
	label valueobjects.Label,
	description string,
	metadata valueobjects.Metadata,
	cfg *config.DomainConfig,
) (*Concept, error) {
	return newConcept(ownerID, conceptType, label, description, metadata, valueobjects.OriginUser, nil, cfg)
}

// NewDerivedConcept creates a concept extracted from an artifact
func NewDerivedConcept(
	ownerID string,
	conceptType valueobjects.ConceptType,
	label valueobjects.Label,
	sourceArtifactID valueobjects.ID,
	cfg *config.DomainConfig,
) (*Concept, error) {
	return newConcept(ownerID, conceptType, label, "", nil, valueobjects.OriginDerived, &sourceArtifactID, cfg)
}

func newConcept(
	ownerID string,
	conceptType valueobjects.ConceptType,
	label valueobjects.Label,
	description string,
	metadata valueobjects.Metadata,
	origin valueobjects.ConceptOrigin,
	sourceArtifactID *valueobjects.ID,
	cfg *config.DomainConfig,
) (*Concept, error) {
	if ownerID == "" {
		return nil, pkgerrors.NewValidationError("owner cannot be empty")
	}
	if !conceptType.IsValid() {
		return nil, pkgerrors.NewFieldValidationError("type", "is not a recognised concept type")
	}
	if label.String() == "" {
		return nil, pkgerrors.NewFieldValidationError("label", "is required")
	}
	description, err := normalizeDescription(description, cfg)
	if err != nil {
		return nil, err
	}

	c := &Concept{
		id:               valueobjects.NewID(),
		ownerID:          ownerID,
		conceptType:      conceptType,
		label:            label,
		description:      description,
		metadata:         metadata.Clone(),
		origin:           origin,
		sourceArtifactID: sourceArtifactID,
		tracking:         newTracking(utils.Now()),
	}

	c.addEvent(events.NewConceptCreated(
		c.id.String(),
		ownerID,
		string(conceptType),
		label.String(),
		string(origin),
		c.createdAt,
	))

	return c, nil
}

// ReconstructConcept rebuilds a concept from stored state
func ReconstructConcept(s ConceptState) (*Concept, error) {
	id, err := valueobjects.ParseID("id", s.ID)
	if err != nil {
		return nil, err
	}
	conceptType, err := valueobjects.ParseConceptType(s.Type)
	if err != nil {
		return nil, err
	}
	origin := valueobjects.OriginUser
	if s.Origin != "" {
		if origin, err = valueobjects.ParseConceptOrigin(s.Origin); err != nil {
			return nil, err
		}
	}

	var source *valueobjects.ID
	if s.SourceArtifactID != "" {
		sid, err := valueobjects.ParseID("source_artifact_id", s.SourceArtifactID)
		if err != nil {
			return nil, err
		}
		source = &sid
	}

	return &Concept{
		id:               id,
		ownerID:          s.OwnerID,
		conceptType:      conceptType,
		label:            valueobjects.RestoreLabel(s.Label),
		description:      s.Description,
		metadata:         valueobjects.Metadata(s.Metadata).Clone(),
		origin:           origin,
		sourceArtifactID: source,
		tracking:         restoreTracking(s.CreatedAt, s.UpdatedAt, s.Version),
	}, nil
}

func normalizeDescription(s string, cfg *config.DomainConfig) (string, error) {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > cfg.MaxDescriptionLength {
		return "", pkgerrors.NewFieldValidationError("description", "is too long").
			WithDetail("max_length", cfg.MaxDescriptionLength)
	}
	return s, nil
}

// ID returns the concept's unique identifier
func (c *Concept) ID() valueobjects.ID { return c.id }

// OwnerID returns the owner's ID
func (c *Concept) OwnerID() string { return c.ownerID }

// Type returns the concept type
func (c *Concept) Type() valueobjects.ConceptType { return c.conceptType }

// Label returns the display label
func (c *Concept) Label() valueobjects.Label { return c.label }

// Description returns the free-text description
func (c *Concept) Description() string { return c.description }

// Metadata returns a copy of the metadata
func (c *Concept) Metadata() valueobjects.Metadata { return c.metadata.Clone() }

// Origin reports whether the concept was authored or derived
func (c *Concept) Origin() valueobjects.ConceptOrigin { return c.origin }

// SourceArtifactID returns the artifact a derived concept came from
func (c *Concept) SourceArtifactID() (valueobjects.ID, bool) {
	if c.sourceArtifactID == nil {
		return valueobjects.ID{}, false
	}
	return *c.sourceArtifactID, true
}

// UniqueKey identifies the concept among its owner's concepts
func (c *Concept) UniqueKey() string {
	return ConceptUniqueKey(c.conceptType, c.label.String())
}

// ConceptUniqueKey builds the per-owner uniqueness key for a type and label
func ConceptUniqueKey(t valueobjects.ConceptType, label string) string {
	return string(t) + "|" + valueobjects.LabelKey(label)
}

// SetType changes the concept type
func (c *Concept) SetType(t valueobjects.ConceptType) error {
	if !t.IsValid() {
		return pkgerrors.NewFieldValidationError("type", "is not a recognised concept type")
	}
	if t == c.conceptType {
		return nil
	}
	c.conceptType = t
	c.markChanged("type")
	return nil
}

// Relabel changes the label
func (c *Concept) Relabel(label valueobjects.Label) {
	if label.String() == c.label.String() {
		return
	}
	c.label = label
	c.markChanged("label")
}

// SetDescription changes the description
func (c *Concept) SetDescription(description string, cfg *config.DomainConfig) error {
	description, err := normalizeDescription(description, cfg)
	if err != nil {
		return err
	}
	if description == c.description {
		return nil
	}
	c.description = description
	c.markChanged("description")
	return nil
}

// SetMetadata replaces the metadata map
func (c *Concept) SetMetadata(md valueobjects.Metadata) {
	if sameMetadata(c.metadata, md) {
		return
	}
	c.metadata = md.Clone()
	c.markChanged("metadata")
}

// CommitUpdate bumps the version for pending changes and records the event
func (c *Concept) CommitUpdate() bool {
	changed := c.ChangedFields()
	if !c.commit(utils.Now()) {
		return false
	}
	c.addEvent(events.NewConceptUpdated(c.id.String(), c.ownerID, c.version, changed, c.updatedAt))
	c.resetChanges()
	return true
}

// State returns the flat representation
func (c *Concept) State() ConceptState {
	s := ConceptState{
		ID:          c.id.String(),
		OwnerID:     c.ownerID,
		Type:        string(c.conceptType),
		Label:       c.label.String(),
		Description: c.description,
		Metadata:    c.metadata.Clone(),
		Origin:      string(c.origin),
		CreatedAt:   c.createdAt,
		UpdatedAt:   c.updatedAt,
		Version:     c.version,
	}
	if c.sourceArtifactID != nil {
		s.SourceArtifactID = c.sourceArtifactID.String()
	}
	return s
}
