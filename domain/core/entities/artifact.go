package entities

import (
	"time"

	"bobbin-backend/domain/config"
	"bobbin-backend/domain/core/valueobjects"
	"bobbin-backend/domain/events"
	pkgerrors "bobbin-backend/pkg/errors"
	"bobbin-backend/pkg/utils"
)

// Artifact is a captured piece of content in a user's graph
type Artifact struct {
	id         valueobjects.ID
	ownerID    string
	content    valueobjects.ArtifactContent
	metadata   valueobjects.Metadata
	conceptIDs []valueobjects.ID

	tracking
}

// ArtifactState is the flat, serializable form of an Artifact
type ArtifactState struct {
	ID         string            `json:"id"`
	OwnerID    string            `json:"owner_id"`
	Kind       string            `json:"kind"`
	Title      string            `json:"title"`
	Body       string            `json:"body,omitempty"`
	SourceURL  string            `json:"source_url,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	ConceptIDs []string          `json:"concept_ids"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
	Version    int               `json:"version"`
}

// NewArtifact creates a new artifact owned by ownerID
func NewArtifact(
	ownerID string,
	content valueobjects.ArtifactContent,
	metadata valueobjects.Metadata,
	conceptIDs []valueobjects.ID,
	cfg *config.DomainConfig,
) (*Artifact, error) {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	if ownerID == "" {
		return nil, pkgerrors.NewValidationError("owner cannot be empty")
	}
	if len(conceptIDs) > cfg.MaxConceptsPerArtifact {
		return nil, pkgerrors.NewFieldValidationError("concept_ids", "has too many entries").
			WithDetail("max_entries", cfg.MaxConceptsPerArtifact)
	}

	a := &Artifact{
		id:         valueobjects.NewID(),
		ownerID:    ownerID,
		content:    content,
		metadata:   metadata.Clone(),
		conceptIDs: copyIDs(conceptIDs),
		tracking:   newTracking(utils.Now()),
	}

	a.addEvent(events.NewArtifactCreated(
		a.id.String(),
		ownerID,
		string(content.Kind()),
		content.Title(),
		valueobjects.IDStrings(a.conceptIDs),
		a.createdAt,
	))

	return a, nil
}

// ReconstructArtifact rebuilds an artifact from stored state
func ReconstructArtifact(s ArtifactState) (*Artifact, error) {
	id, err := valueobjects.ParseID("id", s.ID)
	if err != nil {
		return nil, err
	}
	kind, err := valueobjects.ParseArtifactKind(s.Kind)
	if err != nil {
		return nil, err
	}
	conceptIDs, err := valueobjects.ParseIDs("concept_ids", s.ConceptIDs)
	if err != nil {
		return nil, err
	}

	return &Artifact{
		id:         id,
		ownerID:    s.OwnerID,
		content:    valueobjects.RestoreArtifactContent(kind, s.Title, s.Body, s.SourceURL),
		metadata:   valueobjects.Metadata(s.Metadata).Clone(),
		conceptIDs: conceptIDs,
		tracking:   restoreTracking(s.CreatedAt, s.UpdatedAt, s.Version),
	}, nil
}

// ID returns the artifact's unique identifier
func (a *Artifact) ID() valueobjects.ID { return a.id }

// OwnerID returns the owner's ID
func (a *Artifact) OwnerID() string { return a.ownerID }

// Content returns the artifact content
func (a *Artifact) Content() valueobjects.ArtifactContent { return a.content }

// Metadata returns a copy of the metadata
func (a *Artifact) Metadata() valueobjects.Metadata { return a.metadata.Clone() }

// ConceptIDs returns the related concept ids in insertion order
func (a *Artifact) ConceptIDs() []valueobjects.ID { return copyIDs(a.conceptIDs) }

// HasConcept reports whether the concept is in the relation list
func (a *Artifact) HasConcept(id valueobjects.ID) bool {
	for _, c := range a.conceptIDs {
		if c.Equals(id) {
			return true
		}
	}
	return false
}

// UpdateContent replaces the content
func (a *Artifact) UpdateContent(content valueobjects.ArtifactContent) {
	if content.Equals(a.content) {
		return
	}
	if content.Title() != a.content.Title() {
		a.markChanged("title")
	}
	if content.Body() != a.content.Body() {
		a.markChanged("body")
	}
	if content.SourceURL() != a.content.SourceURL() {
		a.markChanged("source_url")
	}
	if content.Kind() != a.content.Kind() {
		a.markChanged("kind")
	}
	a.content = content
}

// SetMetadata replaces the metadata map
func (a *Artifact) SetMetadata(md valueobjects.Metadata) {
	if sameMetadata(a.metadata, md) {
		return
	}
	a.metadata = md.Clone()
	a.markChanged("metadata")
}

// SetConcepts replaces the relation list
func (a *Artifact) SetConcepts(ids []valueobjects.ID, cfg *config.DomainConfig) error {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	if len(ids) > cfg.MaxConceptsPerArtifact {
		return pkgerrors.NewFieldValidationError("concept_ids", "has too many entries").
			WithDetail("max_entries", cfg.MaxConceptsPerArtifact)
	}
	if sameIDs(a.conceptIDs, ids) {
		return nil
	}
	a.conceptIDs = copyIDs(ids)
	a.markChanged("concept_ids")
	return nil
}

// AddConcept appends a concept if not already present
func (a *Artifact) AddConcept(id valueobjects.ID, cfg *config.DomainConfig) error {
	if a.HasConcept(id) {
		return nil
	}
	return a.SetConcepts(append(a.ConceptIDs(), id), cfg)
}

// RemoveConcept drops a concept from the relation list
func (a *Artifact) RemoveConcept(id valueobjects.ID) bool {
	ids, found := removeID(a.conceptIDs, id)
	if found {
		a.conceptIDs = ids
		a.markChanged("concept_ids")
	}
	return found
}

// CommitUpdate bumps the version for pending changes and records the event.
// It returns false when nothing changed.
func (a *Artifact) CommitUpdate() bool {
	changed := a.ChangedFields()
	if !a.commit(utils.Now()) {
		return false
	}
	a.addEvent(events.NewArtifactUpdated(a.id.String(), a.ownerID, a.version, changed, a.updatedAt))
	a.resetChanges()
	return true
}

// State returns the flat representation
func (a *Artifact) State() ArtifactState {
	return ArtifactState{
		ID:         a.id.String(),
		OwnerID:    a.ownerID,
		Kind:       string(a.content.Kind()),
		Title:      a.content.Title(),
		Body:       a.content.Body(),
		SourceURL:  a.content.SourceURL(),
		Metadata:   a.metadata.Clone(),
		ConceptIDs: valueobjects.IDStrings(a.conceptIDs),
		CreatedAt:  a.createdAt,
		UpdatedAt:  a.updatedAt,
		Version:    a.version,
	}
}
