package memory

import (
	"context"
	"testing"

	"bobbin-backend/application/ports"
	"bobbin-backend/domain/config"
	"bobbin-backend/domain/core/entities"
	"bobbin-backend/domain/core/valueobjects"
	"bobbin-backend/pkg/common"
	pkgerrors "bobbin-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newArtifact(t *testing.T, owner, title string, conceptIDs ...valueobjects.ID) *entities.Artifact {
	t.Helper()
	a, err := entities.NewArtifact(owner, valueobjects.RestoreArtifactContent(valueobjects.ArtifactNote, title, "body", ""), nil, conceptIDs, nil)
	require.NoError(t, err)
	return a
}

func newConcept(t *testing.T, owner, label string) *entities.Concept {
	t.Helper()
	c, err := entities.NewConcept(owner, valueobjects.ConceptTopic, valueobjects.RestoreLabel(label), "", nil, nil)
	require.NoError(t, err)
	return c
}

func TestStore_OwnerScoping(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	a := newArtifact(t, "alice", "Mine")
	require.NoError(t, s.Artifacts().Create(ctx, a))

	_, err := s.Artifacts().GetByID(ctx, "bob", a.ID())
	assert.True(t, pkgerrors.IsNotFound(err))

	found, err := s.Artifacts().GetByIDs(ctx, "bob", []valueobjects.ID{a.ID()})
	require.NoError(t, err)
	assert.Empty(t, found)

	_, err = s.Artifacts().Delete(ctx, "bob", a.ID())
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestStore_ConditionalUpdate(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	a := newArtifact(t, "alice", "Original")
	require.NoError(t, s.Artifacts().Create(ctx, a))

	first, err := s.Artifacts().GetByID(ctx, "alice", a.ID())
	require.NoError(t, err)
	second, err := s.Artifacts().GetByID(ctx, "alice", a.ID())
	require.NoError(t, err)

	first.SetMetadata(valueobjects.Metadata{"k": "1"})
	require.True(t, first.CommitUpdate())
	require.NoError(t, s.Artifacts().Update(ctx, first, 1))

	second.SetMetadata(valueobjects.Metadata{"k": "2"})
	require.True(t, second.CommitUpdate())
	err = s.Artifacts().Update(ctx, second, 1)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsConflict(err))

	stored, err := s.Artifacts().GetByID(ctx, "alice", a.ID())
	require.NoError(t, err)
	assert.Equal(t, "1", stored.Metadata()["k"])
	assert.Equal(t, 2, stored.Version())
}

func TestStore_ReturnedEntitiesAreDetached(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	a := newArtifact(t, "alice", "Original")
	require.NoError(t, s.Artifacts().Create(ctx, a))
	a.SetMetadata(valueobjects.Metadata{"changed": "locally"})

	stored, err := s.Artifacts().GetByID(ctx, "alice", a.ID())
	require.NoError(t, err)
	assert.Empty(t, stored.Metadata())
}

func TestStore_ConceptUniqueness(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	require.NoError(t, s.Concepts().Create(ctx, newConcept(t, "alice", "Graph Theory")))
	err := s.Concepts().Create(ctx, newConcept(t, "alice", "graph  theory"))
	assert.True(t, pkgerrors.IsConflict(err))
	assert.NoError(t, s.Concepts().Create(ctx, newConcept(t, "bob", "Graph Theory")))

	found, err := s.Concepts().FindByLabel(ctx, "alice", valueobjects.ConceptTopic, "GRAPH THEORY")
	require.NoError(t, err)
	assert.Equal(t, "Graph Theory", found.Label().String())
}

func TestStore_ConnectionWriteChecks(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	cfg := config.DefaultDomainConfig()

	a := newArtifact(t, "alice", "A")
	b := newArtifact(t, "alice", "B")
	require.NoError(t, s.Artifacts().Create(ctx, a))

	conn, err := entities.NewConnection("alice", valueobjects.ArtifactEndpoint(a.ID()), valueobjects.ArtifactEndpoint(b.ID()), valueobjects.RelationRelated, entities.ConnectionOptions{}, cfg)
	require.NoError(t, err)
	err = s.Connections().Create(ctx, conn)
	assert.True(t, pkgerrors.IsValidation(err), "target was never stored")

	require.NoError(t, s.Artifacts().Create(ctx, b))
	require.NoError(t, s.Connections().Create(ctx, conn))

	reversed, err := entities.NewConnection("alice", valueobjects.ArtifactEndpoint(b.ID()), valueobjects.ArtifactEndpoint(a.ID()), valueobjects.RelationRelated, entities.ConnectionOptions{}, cfg)
	require.NoError(t, err)
	assert.True(t, pkgerrors.IsConflict(s.Connections().Create(ctx, reversed)))

	dup, err := s.Connections().FindDuplicate(ctx, "alice", reversed.DuplicateKey())
	require.NoError(t, err)
	assert.Equal(t, conn.ID(), dup.ID())

	_, err = s.Connections().FindDuplicate(ctx, "bob", reversed.DuplicateKey())
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestStore_DeleteArtifactPlan(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	cfg := config.DefaultDomainConfig()

	a := newArtifact(t, "alice", "Doomed")
	derived, err := entities.NewDerivedConcept("alice", valueobjects.ConceptTerm, valueobjects.RestoreLabel("only here"), a.ID(), cfg)
	require.NoError(t, err)
	shared, err := entities.NewDerivedConcept("alice", valueobjects.ConceptTerm, valueobjects.RestoreLabel("shared"), a.ID(), cfg)
	require.NoError(t, err)
	require.NoError(t, s.Concepts().Create(ctx, derived))
	require.NoError(t, s.Concepts().Create(ctx, shared))

	require.NoError(t, a.SetConcepts([]valueobjects.ID{derived.ID(), shared.ID()}, cfg))
	require.NoError(t, s.Artifacts().Create(ctx, a))
	other := newArtifact(t, "alice", "Also uses shared", shared.ID())
	require.NoError(t, s.Artifacts().Create(ctx, other))

	conn, err := entities.NewConnection("alice", valueobjects.ArtifactEndpoint(a.ID()), valueobjects.ArtifactEndpoint(other.ID()), valueobjects.RelationRelated, entities.ConnectionOptions{}, cfg)
	require.NoError(t, err)
	require.NoError(t, s.Connections().Create(ctx, conn))
	conceptConn, err := entities.NewConnection("alice", valueobjects.ConceptEndpoint(derived.ID()), valueobjects.ArtifactEndpoint(other.ID()), valueobjects.RelationReferences, entities.ConnectionOptions{}, cfg)
	require.NoError(t, err)
	require.NoError(t, s.Connections().Create(ctx, conceptConn))

	plan, err := s.Artifacts().Delete(ctx, "alice", a.ID())
	require.NoError(t, err)

	assert.ElementsMatch(t, []valueobjects.ID{conn.ID()}, plan.Connections)
	assert.Empty(t, plan.OrphanedConcepts, "a connection elsewhere keeps the derived concept alive")

	_, total, err := s.Connections().List(ctx, "alice", ports.ConnectionFilter{}, common.DefaultPaginationParams())
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestStore_ListPaginates(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	for _, title := range []string{"a", "b", "c"} {
		require.NoError(t, s.Artifacts().Create(ctx, newArtifact(t, "alice", title)))
	}

	items, total, err := s.Artifacts().List(ctx, "alice", common.PaginationParams{Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, items, 1)
}
