package entities

import (
	"testing"

	"bobbin-backend/domain/config"
	"bobbin-backend/domain/core/valueobjects"
	"bobbin-backend/domain/events"
	pkgerrors "bobbin-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newNoteContent(t *testing.T, title, body string) valueobjects.ArtifactContent {
	t.Helper()
	content, err := valueobjects.NewArtifactContent(valueobjects.ArtifactNote, title, body, "", nil)
	require.NoError(t, err)
	return content
}

func TestNewArtifact(t *testing.T) {
	conceptID := valueobjects.NewID()

	a, err := NewArtifact("user-1", newNoteContent(t, "Reading list", "Books"), nil, []valueobjects.ID{conceptID}, nil)

	require.NoError(t, err)
	assert.False(t, a.ID().IsZero())
	assert.Equal(t, 1, a.Version())
	assert.Equal(t, a.CreatedAt(), a.UpdatedAt())
	assert.True(t, a.HasConcept(conceptID))

	evts := a.GetUncommittedEvents()
	require.Len(t, evts, 1)
	assert.Equal(t, events.TypeArtifactCreated, evts[0].GetEventType())
}

func TestNewArtifact_TooManyConcepts(t *testing.T) {
	cfg := config.DefaultDomainConfig()
	cfg.MaxConceptsPerArtifact = 1

	_, err := NewArtifact("user-1", newNoteContent(t, "t", "b"), nil,
		[]valueobjects.ID{valueobjects.NewID(), valueobjects.NewID()}, cfg)

	assert.True(t, pkgerrors.IsValidation(err))
}

func TestArtifact_PartialUpdateBumpsVersionOnce(t *testing.T) {
	a, err := NewArtifact("user-1", newNoteContent(t, "Old", "Body"), nil, nil, nil)
	require.NoError(t, err)
	a.MarkEventsAsCommitted()

	a.UpdateContent(newNoteContent(t, "New", "Body"))
	a.SetMetadata(valueobjects.Metadata{"source": "web"})

	assert.ElementsMatch(t, []string{"title", "metadata"}, a.ChangedFields())
	assert.True(t, a.CommitUpdate())
	assert.Equal(t, 2, a.Version())
	assert.Equal(t, "Body", a.Content().Body())
	assert.False(t, a.HasChanges())

	evts := a.GetUncommittedEvents()
	require.Len(t, evts, 1)
	updated, ok := evts[0].(events.EntityUpdated)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"title", "metadata"}, updated.Changed)
}

func TestArtifact_NoopUpdateKeepsVersion(t *testing.T) {
	a, err := NewArtifact("user-1", newNoteContent(t, "Same", "Body"), nil, nil, nil)
	require.NoError(t, err)

	a.UpdateContent(newNoteContent(t, "Same", "Body"))

	assert.False(t, a.CommitUpdate())
	assert.Equal(t, 1, a.Version())
}

func TestArtifact_StateRoundTrip(t *testing.T) {
	a, err := NewArtifact("user-1", newNoteContent(t, "Title", "Body"),
		valueobjects.Metadata{"k": "v"}, []valueobjects.ID{valueobjects.NewID()}, nil)
	require.NoError(t, err)

	restored, err := ReconstructArtifact(a.State())

	require.NoError(t, err)
	assert.Equal(t, a.State(), restored.State())
	assert.Empty(t, restored.GetUncommittedEvents())
}

func TestArtifact_RemoveConcept(t *testing.T) {
	keep, drop := valueobjects.NewID(), valueobjects.NewID()
	a, err := NewArtifact("user-1", newNoteContent(t, "t", "b"), nil, []valueobjects.ID{keep, drop}, nil)
	require.NoError(t, err)

	assert.True(t, a.RemoveConcept(drop))
	assert.False(t, a.RemoveConcept(drop))
	assert.Equal(t, []valueobjects.ID{keep}, a.ConceptIDs())
}

func TestNewConcept(t *testing.T) {
	label, err := valueobjects.NewLabel("Go", nil)
	require.NoError(t, err)

	c, err := NewConcept("user-1", valueobjects.ConceptTechnology, label, "  a language ", nil, nil)

	require.NoError(t, err)
	assert.Equal(t, "a language", c.Description())
	assert.Equal(t, valueobjects.OriginUser, c.Origin())
	assert.Equal(t, "technology|go", c.UniqueKey())

	_, err = NewConcept("user-1", valueobjects.ConceptType("animal"), label, "", nil, nil)
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestNewDerivedConcept_KeepsSource(t *testing.T) {
	label, _ := valueobjects.NewLabel("Paris", nil)
	source := valueobjects.NewID()

	c, err := NewDerivedConcept("user-1", valueobjects.ConceptPlace, label, source, nil)
	require.NoError(t, err)

	got, ok := c.SourceArtifactID()
	assert.True(t, ok)
	assert.True(t, got.Equals(source))

	restored, err := ReconstructConcept(c.State())
	require.NoError(t, err)
	assert.Equal(t, valueobjects.OriginDerived, restored.Origin())
	got, ok = restored.SourceArtifactID()
	assert.True(t, ok)
	assert.True(t, got.Equals(source))
}

func TestConcept_SetTypeRejectsUnknown(t *testing.T) {
	label, _ := valueobjects.NewLabel("Go", nil)
	c, err := NewConcept("user-1", valueobjects.ConceptTechnology, label, "", nil, nil)
	require.NoError(t, err)

	err = c.SetType("animal")

	assert.True(t, pkgerrors.IsValidation(err))
	assert.False(t, c.HasChanges())
}

func TestNewConnection_Defaults(t *testing.T) {
	src := valueobjects.ArtifactEndpoint(valueobjects.NewID())
	tgt := valueobjects.ConceptEndpoint(valueobjects.NewID())

	c, err := NewConnection("user-1", src, tgt, valueobjects.RelationReferences, ConnectionOptions{}, nil)

	require.NoError(t, err)
	assert.Equal(t, 0.5, c.Strength())
	assert.True(t, c.IsDirected())
	assert.Equal(t, valueobjects.StatusConfirmed, c.Status())
	assert.Nil(t, c.Confidence())
	assert.True(t, c.Touches(src))
	assert.True(t, c.Other(src).Equals(tgt))
}

func TestNewConnection_Validation(t *testing.T) {
	a := valueobjects.ArtifactEndpoint(valueobjects.NewID())
	b := valueobjects.ConceptEndpoint(valueobjects.NewID())
	tooStrong := 1.5
	badConfidence := -0.2

	tests := []struct {
		name    string
		source  valueobjects.Endpoint
		target  valueobjects.Endpoint
		kind    valueobjects.RelationshipKind
		opts    ConnectionOptions
		wantErr string
	}{
		{name: "self connection", source: a, target: a, kind: valueobjects.RelationRelated, wantErr: "itself"},
		{name: "unknown kind", source: a, target: b, kind: "loves", wantErr: "kind"},
		{name: "strength out of range", source: a, target: b, kind: valueobjects.RelationRelated,
			opts: ConnectionOptions{Strength: &tooStrong}, wantErr: "strength"},
		{name: "confidence out of range", source: a, target: b, kind: valueobjects.RelationRelated,
			opts: ConnectionOptions{Confidence: &badConfidence}, wantErr: "confidence"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConnection("user-1", tt.source, tt.target, tt.kind, tt.opts, nil)
			require.Error(t, err)
			assert.True(t, pkgerrors.IsValidation(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewConnection_SelfAllowedByConfig(t *testing.T) {
	cfg := config.DefaultDomainConfig()
	cfg.AllowSelfConnections = true
	a := valueobjects.ConceptEndpoint(valueobjects.NewID())

	_, err := NewConnection("user-1", a, a, valueobjects.RelationRelated, ConnectionOptions{}, cfg)

	assert.NoError(t, err)
}

func TestConnectionDuplicateKey(t *testing.T) {
	a := valueobjects.ArtifactEndpoint(valueobjects.NewID())
	b := valueobjects.ConceptEndpoint(valueobjects.NewID())

	assert.Equal(t,
		ConnectionDuplicateKey(a, b, valueobjects.RelationRelated, false),
		ConnectionDuplicateKey(b, a, valueobjects.RelationRelated, false))
	assert.NotEqual(t,
		ConnectionDuplicateKey(a, b, valueobjects.RelationPartOf, true),
		ConnectionDuplicateKey(b, a, valueobjects.RelationPartOf, true))
	assert.NotEqual(t,
		ConnectionDuplicateKey(a, b, valueobjects.RelationRelated, false),
		ConnectionDuplicateKey(a, b, valueobjects.RelationSimilar, false))
}

func TestConnection_ConfirmSuggested(t *testing.T) {
	confidence := 0.8
	c, err := NewConnection("user-1",
		valueobjects.ConceptEndpoint(valueobjects.NewID()),
		valueobjects.ConceptEndpoint(valueobjects.NewID()),
		valueobjects.RelationSimilar,
		ConnectionOptions{Status: valueobjects.StatusSuggested, Confidence: &confidence, Reason: "shared keywords"},
		nil)
	require.NoError(t, err)

	c.Confirm()
	require.True(t, c.CommitUpdate())

	assert.Equal(t, valueobjects.StatusConfirmed, c.Status())
	assert.Equal(t, 2, c.Version())
	assert.InDelta(t, 0.8, *c.Confidence(), 1e-9)

	restored, err := ReconstructConnection(c.State())
	require.NoError(t, err)
	assert.Equal(t, c.State(), restored.State())
}

func TestConversation_AppendMessage(t *testing.T) {
	cfg := config.DefaultDomainConfig()
	cfg.MaxMessagesPerConversation = 2

	conv, err := NewConversation("user-1", " Trip planning ", nil, nil, cfg)
	require.NoError(t, err)
	assert.Equal(t, "Trip planning", conv.Title())

	msg, err := conv.AppendMessage(valueobjects.RoleUser, "Where first?", cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, conv.Version())
	assert.False(t, msg.ID.IsZero())

	_, err = conv.AppendMessage(valueobjects.RoleAssistant, "   ", cfg)
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = conv.AppendMessage(valueobjects.RoleAssistant, "Lisbon", cfg)
	require.NoError(t, err)
	_, err = conv.AppendMessage(valueobjects.RoleUser, "And then?", cfg)
	assert.True(t, pkgerrors.IsValidation(err))

	assert.Len(t, conv.Messages(), 2)
	assert.Equal(t, 3, conv.Version())
}

func TestConversation_SetReferencesPartial(t *testing.T) {
	artifact := valueobjects.NewID()
	concept := valueobjects.NewID()
	conv, err := NewConversation("user-1", "Notes", []valueobjects.ID{artifact}, nil, nil)
	require.NoError(t, err)

	require.NoError(t, conv.SetReferences(nil, []valueobjects.ID{concept}, nil))

	assert.Equal(t, []valueobjects.ID{artifact}, conv.ArtifactIDs())
	assert.Equal(t, []valueobjects.ID{concept}, conv.ConceptIDs())
	assert.Equal(t, []string{"concept_ids"}, conv.ChangedFields())

	assert.True(t, conv.DetachArtifact(artifact))
	assert.Empty(t, conv.ArtifactIDs())
}

func TestConversation_StateRoundTrip(t *testing.T) {
	conv, err := NewConversation("user-1", "Notes", []valueobjects.ID{valueobjects.NewID()}, nil, nil)
	require.NoError(t, err)
	_, err = conv.AppendMessage(valueobjects.RoleSystem, "Summarise", nil)
	require.NoError(t, err)

	restored, err := ReconstructConversation(conv.State())

	require.NoError(t, err)
	assert.Equal(t, conv.State(), restored.State())
}
