package valueobjects

import (
	"encoding/json"
	"strings"
	"testing"

	"bobbin-backend/domain/config"
	pkgerrors "bobbin-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConceptType(t *testing.T) {
	tests := []struct {
		input   string
		want    ConceptType
		wantErr bool
	}{
		{"topic", ConceptTopic, false},
		{"  Person ", ConceptPerson, false},
		{"TECHNOLOGY", ConceptTechnology, false},
		{"animal", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseConceptType(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, pkgerrors.IsValidation(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConceptTypes_AllValid(t *testing.T) {
	for _, ct := range ConceptTypes() {
		assert.True(t, ct.IsValid(), ct)
	}
	assert.Len(t, ConceptTypes(), 8)
}

func TestParseRelationshipKind(t *testing.T) {
	k, err := ParseRelationshipKind("")
	require.NoError(t, err)
	assert.Equal(t, RelationRelated, k)

	k, err = ParseRelationshipKind("Part_Of")
	require.NoError(t, err)
	assert.Equal(t, RelationPartOf, k)
	assert.True(t, k.DirectedByDefault())

	_, err = ParseRelationshipKind("loves")
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestParseID(t *testing.T) {
	id := NewID()

	parsed, err := ParseID("id", id.String())
	require.NoError(t, err)
	assert.True(t, parsed.Equals(id))

	_, err = ParseID("artifact_id", "not-a-uuid")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))
	assert.Contains(t, err.Error(), "artifact_id")

	_, err = ParseID("id", "")
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestParseIDs_RejectsDuplicates(t *testing.T) {
	id := NewID().String()

	_, err := ParseIDs("concept_ids", []string{id, id})

	assert.True(t, pkgerrors.IsValidation(err))
}

func TestID_JSONRoundTrip(t *testing.T) {
	id := NewID()

	data, err := json.Marshal(id)
	require.NoError(t, err)

	var decoded ID
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, decoded.Equals(id))

	assert.Error(t, json.Unmarshal([]byte(`"nope"`), &decoded))
}

func TestNewEndpoint(t *testing.T) {
	id := NewID()

	ep, err := NewEndpoint("source", "Concept", id.String())
	require.NoError(t, err)
	assert.Equal(t, EndpointConcept, ep.Kind())
	assert.Equal(t, "concept:"+id.String(), ep.Key())

	_, err = NewEndpoint("source", "user", id.String())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source.kind")
}

func TestNewArtifactContent(t *testing.T) {
	cfg := config.DefaultDomainConfig()

	tests := []struct {
		name    string
		kind    ArtifactKind
		title   string
		body    string
		source  string
		wantErr string
	}{
		{name: "note", kind: ArtifactNote, title: "Idea", body: "Write it down"},
		{name: "link", kind: ArtifactLink, title: "Paper", source: "https://example.com/p.pdf"},
		{name: "missing title", kind: ArtifactNote, body: "x", wantErr: "title"},
		{name: "link without url", kind: ArtifactLink, title: "Paper", wantErr: "source_url"},
		{name: "relative url", kind: ArtifactMedia, title: "Clip", source: "/clip.mp4", wantErr: "source_url"},
		{name: "empty note", kind: ArtifactNote, title: "Empty", wantErr: "body"},
		{name: "long title", kind: ArtifactNote, title: strings.Repeat("a", 201), body: "x", wantErr: "title"},
		{name: "bad kind", kind: "video", title: "t", body: "b", wantErr: "kind"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content, err := NewArtifactContent(tt.kind, tt.title, tt.body, tt.source, cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, pkgerrors.IsValidation(err))
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.kind, content.Kind())
		})
	}
}

func TestArtifactContent_Summary(t *testing.T) {
	c := RestoreArtifactContent(ArtifactNote, "Title", "a long body of text", "")

	assert.Equal(t, "Title: a long body of text", c.Summary(100))
	assert.Equal(t, "Title: ...", c.Summary(10))
}

func TestLabel_KeyFoldsCaseAndSpace(t *testing.T) {
	a, err := NewLabel("  Machine   Learning ", nil)
	require.NoError(t, err)
	b, err := NewLabel("machine learning", nil)
	require.NoError(t, err)

	assert.Equal(t, "Machine Learning", a.String())
	assert.Equal(t, a.Key(), b.Key())

	_, err = NewLabel("   ", nil)
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestNewMetadata(t *testing.T) {
	cfg := config.DefaultDomainConfig()
	cfg.MaxMetadataEntries = 2

	md, err := NewMetadata(map[string]string{" source ": "web"}, cfg)
	require.NoError(t, err)
	assert.Equal(t, "web", md["source"])

	_, err = NewMetadata(map[string]string{"a": "1", "b": "2", "c": "3"}, cfg)
	assert.True(t, pkgerrors.IsValidation(err))
}
