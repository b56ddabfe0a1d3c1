package services

import (
	"context"

	"bobbin-backend/application/commands"
	"bobbin-backend/application/queries"
	"bobbin-backend/domain/core/aggregates"
	"bobbin-backend/domain/core/entities"
	"bobbin-backend/domain/core/valueobjects"
	"bobbin-backend/domain/events"
	pkgerrors "bobbin-backend/pkg/errors"
	"bobbin-backend/pkg/utils"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// CreateArtifact captures a new artifact for the current user
func (s *KnowledgeGraph) CreateArtifact(ctx context.Context, cmd commands.CreateArtifactCommand) (*entities.Artifact, error) {
	var artifact *entities.Artifact

	err := s.observe(ctx, "CreateArtifact", func(ctx context.Context) error {
		owner, err := s.currentOwner(ctx)
		if err != nil {
			return err
		}
		if err := cmd.Validate(); err != nil {
			return err
		}

		cfg := s.DomainConfig()
		kind, err := valueobjects.ParseArtifactKind(cmd.Kind)
		if err != nil {
			return err
		}
		content, err := valueobjects.NewArtifactContent(kind, cmd.Title, cmd.Body, cmd.SourceURL, cfg)
		if err != nil {
			return err
		}
		metadata, err := valueobjects.NewMetadata(cmd.Metadata, cfg)
		if err != nil {
			return err
		}
		conceptIDs, err := valueobjects.ParseIDs("concept_ids", cmd.ConceptIDs)
		if err != nil {
			return err
		}
		if err := s.requireConcepts(ctx, owner, "concept_ids", conceptIDs); err != nil {
			return err
		}

		artifact, err = entities.NewArtifact(owner, content, metadata, conceptIDs, cfg)
		if err != nil {
			return err
		}
		if err := s.store.Artifacts().Create(ctx, artifact); err != nil {
			return err
		}

		s.logger.Info("artifact created",
			zap.String("artifact_id", artifact.ID().String()),
			zap.String("owner_id", owner),
			zap.String("kind", string(kind)))
		s.publish(ctx, artifact)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return artifact, nil
}

// GetArtifactWithRelations returns an artifact with its related concepts and
// every connection that has it as an endpoint
func (s *KnowledgeGraph) GetArtifactWithRelations(ctx context.Context, id string) (*queries.ArtifactWithRelations, error) {
	var result *queries.ArtifactWithRelations

	err := s.observe(ctx, "GetArtifactWithRelations", func(ctx context.Context) error {
		owner, err := s.currentOwner(ctx)
		if err != nil {
			return err
		}
		graph, err := s.loadArtifactGraph(ctx, owner, id)
		if err != nil {
			return err
		}

		result = &queries.ArtifactWithRelations{
			Artifact:    graph.Artifact().State(),
			Concepts:    make([]entities.ConceptState, 0),
			Connections: make([]entities.ConnectionState, 0),
		}
		for _, c := range graph.Concepts() {
			result.Concepts = append(result.Concepts, c.State())
		}
		for _, c := range graph.Connections() {
			result.Connections = append(result.Connections, c.State())
		}

		if missing := graph.MissingConcepts(); len(missing) > 0 {
			s.logger.Warn("artifact references missing concepts",
				zap.String("artifact_id", id),
				zap.Strings("concept_ids", valueobjects.IDStrings(missing)))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// loadArtifactGraph reads an artifact and, concurrently, its concepts and
// connections
func (s *KnowledgeGraph) loadArtifactGraph(ctx context.Context, owner, rawID string) (*aggregates.ArtifactGraph, error) {
	id, err := resolveID("artifact", rawID)
	if err != nil {
		return nil, err
	}
	artifact, err := s.store.Artifacts().GetByID(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	var (
		concepts    []*entities.Concept
		connections []*entities.Connection
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		concepts, err = s.store.Concepts().GetByIDs(gctx, owner, artifact.ConceptIDs())
		return err
	})
	g.Go(func() error {
		var err error
		connections, err = s.store.Connections().ListByEndpoint(gctx, owner, valueobjects.ArtifactEndpoint(id))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return aggregates.NewArtifactGraph(artifact, concepts, connections)
}

// UpdateArtifact applies a partial update. Unset fields keep their values.
func (s *KnowledgeGraph) UpdateArtifact(ctx context.Context, id string, cmd commands.UpdateArtifactCommand) (*entities.Artifact, error) {
	var artifact *entities.Artifact

	err := s.observe(ctx, "UpdateArtifact", func(ctx context.Context) error {
		owner, err := s.currentOwner(ctx)
		if err != nil {
			return err
		}
		if err := cmd.Validate(); err != nil {
			return err
		}
		artifactID, err := resolveID("artifact", id)
		if err != nil {
			return err
		}

		artifact, err = s.store.Artifacts().GetByID(ctx, owner, artifactID)
		if err != nil {
			return err
		}
		if err := checkExpectedVersion("artifact", id, cmd.ExpectedVersion, artifact.Version()); err != nil {
			return err
		}
		previous := artifact.Version()

		if err := s.applyArtifactUpdate(ctx, owner, artifact, cmd); err != nil {
			return err
		}
		if !artifact.CommitUpdate() {
			return nil
		}
		if err := s.store.Artifacts().Update(ctx, artifact, previous); err != nil {
			return err
		}

		s.logger.Debug("artifact updated",
			zap.String("artifact_id", id),
			zap.Int("version", artifact.Version()))
		s.publish(ctx, artifact)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return artifact, nil
}

func (s *KnowledgeGraph) applyArtifactUpdate(ctx context.Context, owner string, artifact *entities.Artifact, cmd commands.UpdateArtifactCommand) error {
	cfg := s.DomainConfig()

	if cmd.TouchesContent() {
		current := artifact.Content()
		kind, title, body, sourceURL := current.Kind(), current.Title(), current.Body(), current.SourceURL()
		if cmd.Kind != nil {
			parsed, err := valueobjects.ParseArtifactKind(*cmd.Kind)
			if err != nil {
				return err
			}
			kind = parsed
		}
		if cmd.Title != nil {
			title = *cmd.Title
		}
		if cmd.Body != nil {
			body = *cmd.Body
		}
		if cmd.SourceURL != nil {
			sourceURL = *cmd.SourceURL
		}
		content, err := valueobjects.NewArtifactContent(kind, title, body, sourceURL, cfg)
		if err != nil {
			return err
		}
		artifact.UpdateContent(content)
	}

	if cmd.Metadata != nil {
		metadata, err := valueobjects.NewMetadata(*cmd.Metadata, cfg)
		if err != nil {
			return err
		}
		artifact.SetMetadata(metadata)
	}

	if cmd.ConceptIDs != nil {
		ids, err := valueobjects.ParseIDs("concept_ids", *cmd.ConceptIDs)
		if err != nil {
			return err
		}
		if err := s.requireConcepts(ctx, owner, "concept_ids", ids); err != nil {
			return err
		}
		if err := artifact.SetConcepts(ids, cfg); err != nil {
			return err
		}
	}

	return nil
}

// DeleteArtifact removes an artifact together with its connections, drops it
// from conversations and removes derived concepts it leaves orphaned
func (s *KnowledgeGraph) DeleteArtifact(ctx context.Context, id string) error {
	return s.observe(ctx, "DeleteArtifact", func(ctx context.Context) error {
		owner, err := s.currentOwner(ctx)
		if err != nil {
			return err
		}
		artifactID, err := resolveID("artifact", id)
		if err != nil {
			return err
		}

		plan, err := s.store.Artifacts().Delete(ctx, owner, artifactID)
		if err != nil {
			return err
		}

		s.logger.Info("artifact deleted",
			zap.String("artifact_id", id),
			zap.Int("cascaded_connections", len(plan.Connections)),
			zap.Int("cascaded_concepts", len(plan.OrphanedConcepts)))
		s.publishEvents(ctx, events.NewEntityDeleted(
			events.TypeArtifactDeleted,
			id,
			owner,
			valueobjects.IDStrings(plan.Connections),
			valueobjects.IDStrings(plan.OrphanedConcepts),
			utils.Now(),
		))
		return nil
	})
}

// ListArtifacts returns the user's feed, newest first
func (s *KnowledgeGraph) ListArtifacts(ctx context.Context, q queries.ListArtifactsQuery) (queries.Page[*entities.Artifact], error) {
	var page queries.Page[*entities.Artifact]

	err := s.observe(ctx, "ListArtifacts", func(ctx context.Context) error {
		owner, err := s.currentOwner(ctx)
		if err != nil {
			return err
		}
		params := normalizePage(q.Pagination)
		items, total, err := s.store.Artifacts().List(ctx, owner, params)
		if err != nil {
			return err
		}
		page = queries.NewPage(items, params, total)
		return nil
	})
	return page, err
}

// requireConcepts fails with a validation error naming the first id that is
// not one of the owner's concepts
func (s *KnowledgeGraph) requireConcepts(ctx context.Context, owner, field string, ids []valueobjects.ID) error {
	if len(ids) == 0 {
		return nil
	}
	found, err := s.store.Concepts().GetByIDs(ctx, owner, ids)
	if err != nil {
		return err
	}
	return missingReference(field, "concept", ids, conceptIDSet(found))
}

// requireArtifacts fails with a validation error naming the first id that is
// not one of the owner's artifacts
func (s *KnowledgeGraph) requireArtifacts(ctx context.Context, owner, field string, ids []valueobjects.ID) error {
	if len(ids) == 0 {
		return nil
	}
	found, err := s.store.Artifacts().GetByIDs(ctx, owner, ids)
	if err != nil {
		return err
	}
	present := make(map[string]struct{}, len(found))
	for _, a := range found {
		present[a.ID().String()] = struct{}{}
	}
	return missingReference(field, "artifact", ids, present)
}

func conceptIDSet(concepts []*entities.Concept) map[string]struct{} {
	present := make(map[string]struct{}, len(concepts))
	for _, c := range concepts {
		present[c.ID().String()] = struct{}{}
	}
	return present
}

func missingReference(field, resource string, ids []valueobjects.ID, present map[string]struct{}) error {
	for _, id := range ids {
		if _, ok := present[id.String()]; !ok {
			return pkgerrors.NewFieldValidationError(field, resource+" "+id.String()+" does not exist").
				WithDetail("missing_id", id.String())
		}
	}
	return nil
}
