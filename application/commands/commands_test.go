package commands

import (
	"testing"

	pkgerrors "bobbin-backend/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

func TestCreateArtifactCommand_Validate(t *testing.T) {
	id := uuid.NewString()

	tests := []struct {
		name    string
		cmd     CreateArtifactCommand
		wantErr string
	}{
		{name: "valid", cmd: CreateArtifactCommand{Title: "Note", Body: "text", ConceptIDs: []string{id}}},
		{name: "blank title", cmd: CreateArtifactCommand{Title: "   "}, wantErr: "title"},
		{name: "relative url", cmd: CreateArtifactCommand{Title: "x", SourceURL: "/a"}, wantErr: "source_url"},
		{name: "bad concept id", cmd: CreateArtifactCommand{Title: "x", ConceptIDs: []string{"nope"}}, wantErr: "concept_ids"},
		{name: "duplicate concept ids", cmd: CreateArtifactCommand{Title: "x", ConceptIDs: []string{id, id}}, wantErr: "concept_ids"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cmd.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, pkgerrors.IsValidation(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestUpdateArtifactCommand_IsEmpty(t *testing.T) {
	assert.True(t, UpdateArtifactCommand{}.IsEmpty())
	assert.False(t, UpdateArtifactCommand{Title: strPtr("x")}.IsEmpty())
	assert.True(t, UpdateArtifactCommand{Title: strPtr("x")}.TouchesContent())

	err := UpdateArtifactCommand{Title: strPtr(" ")}.Validate()
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestCreateConnectionCommand_Validate(t *testing.T) {
	valid := CreateConnectionCommand{
		Source: EndpointInput{Kind: "artifact", ID: uuid.NewString()},
		Target: EndpointInput{Kind: "concept", ID: uuid.NewString()},
	}
	assert.NoError(t, valid.Validate())

	missingTarget := valid
	missingTarget.Target = EndpointInput{}
	assert.True(t, pkgerrors.IsValidation(missingTarget.Validate()))

	tooStrong := valid
	tooStrong.Strength = floatPtr(2)
	err := tooStrong.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "strength")
}

func TestEndpointInput_Endpoint(t *testing.T) {
	_, err := EndpointInput{Kind: "user", ID: uuid.NewString()}.Endpoint("source")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "source.kind")
}

func TestDeriveConceptsCommand_Validate(t *testing.T) {
	assert.True(t, pkgerrors.IsValidation(DeriveConceptsCommand{}.Validate()))
	assert.NoError(t, DeriveConceptsCommand{Concepts: []DerivedConceptInput{{Type: "topic", Label: "Go"}}}.Validate())
}

func TestAppendMessageCommand_Validate(t *testing.T) {
	assert.NoError(t, AppendMessageCommand{Content: "hi"}.Validate())
	assert.True(t, pkgerrors.IsValidation(AppendMessageCommand{Content: " "}.Validate()))
}
