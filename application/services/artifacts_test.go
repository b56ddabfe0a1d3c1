package services

import (
	"context"
	"testing"

	"bobbin-backend/application/commands"
	"bobbin-backend/application/ports"
	"bobbin-backend/application/queries"
	"bobbin-backend/pkg/common"
	pkgerrors "bobbin-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func TestCreateArtifact(t *testing.T) {
	g, _ := newTestGraph(t)
	ctx := asUser(alice)

	t.Run("SuccessfulCreation", func(t *testing.T) {
		a, err := g.CreateArtifact(ctx, commands.CreateArtifactCommand{
			Title:    "Raft notes",
			Body:     "Leader election first",
			Metadata: map[string]string{"source": "reading"},
		})
		require.NoError(t, err)

		assert.Equal(t, alice, a.OwnerID())
		assert.Equal(t, 1, a.Version())
		assert.Equal(t, "note", string(a.Content().Kind()))
		assert.Equal(t, "reading", a.Metadata()["source"])
	})

	t.Run("LinkRequiresSourceURL", func(t *testing.T) {
		_, err := g.CreateArtifact(ctx, commands.CreateArtifactCommand{Kind: "link", Title: "Paper"})
		require.Error(t, err)
		assert.True(t, pkgerrors.IsValidation(err))
	})

	t.Run("UnknownKind", func(t *testing.T) {
		_, err := g.CreateArtifact(ctx, commands.CreateArtifactCommand{Kind: "podcast", Title: "t", Body: "b"})
		assert.True(t, pkgerrors.IsValidation(err))
	})

	t.Run("UnknownConcept", func(t *testing.T) {
		_, err := g.CreateArtifact(ctx, commands.CreateArtifactCommand{
			Title:      "t",
			Body:       "b",
			ConceptIDs: []string{"9b2f0c1e-3c4d-4a5b-8c6d-7e8f9a0b1c2d"},
		})
		require.Error(t, err)
		assert.True(t, pkgerrors.IsValidation(err))
		assert.ErrorContains(t, err, "does not exist")
	})

	t.Run("OtherOwnersConcept", func(t *testing.T) {
		foreign := mustCreateConcept(t, g, asUser(bob), "topic", "Private")

		_, err := g.CreateArtifact(ctx, commands.CreateArtifactCommand{
			Title:      "t",
			Body:       "b",
			ConceptIDs: []string{foreign.ID().String()},
		})
		assert.True(t, pkgerrors.IsValidation(err))
	})
}

func TestGetArtifactWithRelations(t *testing.T) {
	g, _ := newTestGraph(t)
	ctx := asUser(alice)

	raft := mustCreateConcept(t, g, ctx, "technology", "Raft")
	paxos := mustCreateConcept(t, g, ctx, "technology", "Paxos")
	anchor := mustCreateArtifact(t, g, ctx, "Consensus", "Comparing protocols", raft.ID().String(), paxos.ID().String())
	other := mustCreateArtifact(t, g, ctx, "Follow-up", "More reading")
	unrelated := mustCreateArtifact(t, g, ctx, "Groceries", "Eggs")

	_, _, err := g.CreateConnection(ctx, commands.CreateConnectionCommand{Source: artifactEndpoint(anchor), Target: artifactEndpoint(other)})
	require.NoError(t, err)
	_, _, err = g.CreateConnection(ctx, commands.CreateConnectionCommand{Source: conceptEndpoint(raft), Target: artifactEndpoint(anchor), Kind: "references"})
	require.NoError(t, err)
	_, _, err = g.CreateConnection(ctx, commands.CreateConnectionCommand{Source: artifactEndpoint(other), Target: artifactEndpoint(unrelated)})
	require.NoError(t, err)

	result, err := g.GetArtifactWithRelations(ctx, anchor.ID().String())
	require.NoError(t, err)

	assert.Equal(t, anchor.ID().String(), result.Artifact.ID)
	require.Len(t, result.Concepts, 2)
	assert.Equal(t, raft.ID().String(), result.Concepts[0].ID)
	assert.Equal(t, paxos.ID().String(), result.Concepts[1].ID)
	require.Len(t, result.Connections, 2)
	for _, c := range result.Connections {
		touches := c.Source.ID == anchor.ID().String() || c.Target.ID == anchor.ID().String()
		assert.True(t, touches)
	}

	t.Run("OtherOwnerSeesNotFound", func(t *testing.T) {
		_, err := g.GetArtifactWithRelations(asUser(bob), anchor.ID().String())
		assert.True(t, pkgerrors.IsNotFound(err))
	})

	t.Run("UnknownIDShapeIsNotFound", func(t *testing.T) {
		_, err := g.GetArtifactWithRelations(ctx, "missing-1")
		assert.True(t, pkgerrors.IsNotFound(err))
		app := pkgerrors.GetAppError(err)
		require.NotNil(t, app)
		assert.Equal(t, "missing-1", app.Details["id"])
	})

	t.Run("NoRelations", func(t *testing.T) {
		result, err := g.GetArtifactWithRelations(ctx, unrelated.ID().String())
		require.NoError(t, err)
		assert.Empty(t, result.Concepts)
		assert.NotNil(t, result.Concepts)
		assert.Len(t, result.Connections, 1)
	})
}

func TestUpdateArtifact(t *testing.T) {
	g, _ := newTestGraph(t)
	ctx := asUser(alice)

	t.Run("PartialUpdateKeepsUnsetFields", func(t *testing.T) {
		a := mustCreateArtifact(t, g, ctx, "Draft", "Original body")

		updated, err := g.UpdateArtifact(ctx, a.ID().String(), commands.UpdateArtifactCommand{Title: strPtr("Final")})
		require.NoError(t, err)

		assert.Equal(t, "Final", updated.Content().Title())
		assert.Equal(t, "Original body", updated.Content().Body())
		assert.Equal(t, 2, updated.Version())
	})

	t.Run("NoChangesKeepsVersion", func(t *testing.T) {
		a := mustCreateArtifact(t, g, ctx, "Same", "Body")

		updated, err := g.UpdateArtifact(ctx, a.ID().String(), commands.UpdateArtifactCommand{Title: strPtr("Same")})
		require.NoError(t, err)
		assert.Equal(t, 1, updated.Version())
	})

	t.Run("StaleExpectedVersion", func(t *testing.T) {
		a := mustCreateArtifact(t, g, ctx, "Versioned", "Body")
		_, err := g.UpdateArtifact(ctx, a.ID().String(), commands.UpdateArtifactCommand{Body: strPtr("v2")})
		require.NoError(t, err)

		_, err = g.UpdateArtifact(ctx, a.ID().String(), commands.UpdateArtifactCommand{
			Body:            strPtr("v3"),
			ExpectedVersion: intPtr(1),
		})
		require.Error(t, err)
		assert.True(t, pkgerrors.IsConflict(err))
		assert.Equal(t, "VERSION_MISMATCH", pkgerrors.GetAppError(err).Code)
	})

	t.Run("ReplaceConcepts", func(t *testing.T) {
		c := mustCreateConcept(t, g, ctx, "idea", "Replace me")
		a := mustCreateArtifact(t, g, ctx, "With concepts", "Body")

		updated, err := g.UpdateArtifact(ctx, a.ID().String(), commands.UpdateArtifactCommand{
			ConceptIDs: &[]string{c.ID().String()},
		})
		require.NoError(t, err)
		assert.True(t, updated.HasConcept(c.ID()))
	})

	t.Run("InvalidContentLeavesStoreUntouched", func(t *testing.T) {
		a := mustCreateArtifact(t, g, ctx, "Valid", "Body")

		_, err := g.UpdateArtifact(ctx, a.ID().String(), commands.UpdateArtifactCommand{Kind: strPtr("link")})
		require.Error(t, err)
		assert.True(t, pkgerrors.IsValidation(err))

		result, err := g.GetArtifactWithRelations(ctx, a.ID().String())
		require.NoError(t, err)
		assert.Equal(t, "note", result.Artifact.Kind)
		assert.Equal(t, 1, result.Artifact.Version)
	})

	t.Run("OtherOwner", func(t *testing.T) {
		a := mustCreateArtifact(t, g, ctx, "Mine", "Body")

		_, err := g.UpdateArtifact(asUser(bob), a.ID().String(), commands.UpdateArtifactCommand{Title: strPtr("Theirs")})
		assert.True(t, pkgerrors.IsNotFound(err))
	})
}

func TestDeleteArtifact_Cascades(t *testing.T) {
	g, store := newTestGraph(t)
	ctx := asUser(alice)

	a := mustCreateArtifact(t, g, ctx, "Source", "Body")
	keep := mustCreateArtifact(t, g, ctx, "Neighbour", "Body")
	userConcept := mustCreateConcept(t, g, ctx, "topic", "Kept")

	derived, err := g.DeriveConcepts(ctx, a.ID().String(), commands.DeriveConceptsCommand{
		Concepts: []commands.DerivedConceptInput{{Type: "term", Label: "Orphan"}},
	})
	require.NoError(t, err)
	require.Len(t, derived, 1)
	_, err = g.UpdateArtifact(ctx, a.ID().String(), commands.UpdateArtifactCommand{
		ConceptIDs: &[]string{derived[0].ID().String(), userConcept.ID().String()},
	})
	require.NoError(t, err)

	_, _, err = g.CreateConnection(ctx, commands.CreateConnectionCommand{Source: artifactEndpoint(a), Target: artifactEndpoint(keep)})
	require.NoError(t, err)
	conv, err := g.CreateConversation(ctx, commands.CreateConversationCommand{
		Title:       "About it",
		ArtifactIDs: []string{a.ID().String(), keep.ID().String()},
	})
	require.NoError(t, err)

	require.NoError(t, g.DeleteArtifact(ctx, a.ID().String()))

	_, err = g.GetArtifactWithRelations(ctx, a.ID().String())
	assert.True(t, pkgerrors.IsNotFound(err))

	_, total, err := store.Connections().List(context.Background(), alice, ports.ConnectionFilter{}, common.DefaultPaginationParams())
	require.NoError(t, err)
	assert.Zero(t, total)

	_, err = g.GetConcept(ctx, derived[0].ID().String())
	assert.True(t, pkgerrors.IsNotFound(err), "orphaned derived concept is removed")
	_, err = g.GetConcept(ctx, userConcept.ID().String())
	assert.NoError(t, err, "user concepts survive")

	reloaded, err := g.GetConversation(ctx, conv.ID().String())
	require.NoError(t, err)
	assert.Equal(t, []string{keep.ID().String()}, reloaded.State().ArtifactIDs)

	assert.True(t, pkgerrors.IsNotFound(g.DeleteArtifact(ctx, a.ID().String())))
}

func TestListArtifacts(t *testing.T) {
	g, _ := newTestGraph(t)
	ctx := asUser(alice)
	for _, title := range []string{"one", "two", "three"} {
		mustCreateArtifact(t, g, ctx, title, "body")
	}
	mustCreateArtifact(t, g, asUser(bob), "hidden", "body")

	page, err := g.ListArtifacts(ctx, queries.ListArtifactsQuery{Pagination: common.PaginationParams{Page: 1, PageSize: 2}})
	require.NoError(t, err)

	assert.Len(t, page.Items, 2)
	assert.Equal(t, 3, page.Pagination.Total)
	assert.True(t, page.Pagination.HasNext)
}
