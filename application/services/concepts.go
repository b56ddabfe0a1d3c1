package services

import (
	"context"

	"bobbin-backend/application/commands"
	"bobbin-backend/application/ports"
	"bobbin-backend/application/queries"
	"bobbin-backend/domain/core/entities"
	"bobbin-backend/domain/core/valueobjects"
	"bobbin-backend/domain/events"
	pkgerrors "bobbin-backend/pkg/errors"
	"bobbin-backend/pkg/utils"

	"go.uber.org/zap"
)

// CreateConcept creates a user-authored concept. A type outside the closed
// set is a validation error; a label already used by the user for the same
// type is a conflict.
func (s *KnowledgeGraph) CreateConcept(ctx context.Context, cmd commands.CreateConceptCommand) (*entities.Concept, error) {
	var concept *entities.Concept

	err := s.observe(ctx, "CreateConcept", func(ctx context.Context) error {
		owner, err := s.currentOwner(ctx)
		if err != nil {
			return err
		}
		if err := cmd.Validate(); err != nil {
			return err
		}

		cfg := s.DomainConfig()
		conceptType, err := valueobjects.ParseConceptType(cmd.Type)
		if err != nil {
			return err
		}
		label, err := valueobjects.NewLabel(cmd.Label, cfg)
		if err != nil {
			return err
		}
		metadata, err := valueobjects.NewMetadata(cmd.Metadata, cfg)
		if err != nil {
			return err
		}

		concept, err = entities.NewConcept(owner, conceptType, label, cmd.Description, metadata, cfg)
		if err != nil {
			return err
		}
		if err := s.store.Concepts().Create(ctx, concept); err != nil {
			return err
		}

		s.logger.Info("concept created",
			zap.String("concept_id", concept.ID().String()),
			zap.String("owner_id", owner),
			zap.String("type", string(conceptType)))
		s.publish(ctx, concept)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return concept, nil
}

// GetConcept returns one of the user's concepts
func (s *KnowledgeGraph) GetConcept(ctx context.Context, id string) (*entities.Concept, error) {
	var concept *entities.Concept

	err := s.observe(ctx, "GetConcept", func(ctx context.Context) error {
		owner, err := s.currentOwner(ctx)
		if err != nil {
			return err
		}
		conceptID, err := resolveID("concept", id)
		if err != nil {
			return err
		}
		concept, err = s.store.Concepts().GetByID(ctx, owner, conceptID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return concept, nil
}

// UpdateConcept applies a partial update
func (s *KnowledgeGraph) UpdateConcept(ctx context.Context, id string, cmd commands.UpdateConceptCommand) (*entities.Concept, error) {
	var concept *entities.Concept

	err := s.observe(ctx, "UpdateConcept", func(ctx context.Context) error {
		owner, err := s.currentOwner(ctx)
		if err != nil {
			return err
		}
		if err := cmd.Validate(); err != nil {
			return err
		}
		conceptID, err := resolveID("concept", id)
		if err != nil {
			return err
		}

		concept, err = s.store.Concepts().GetByID(ctx, owner, conceptID)
		if err != nil {
			return err
		}
		if err := checkExpectedVersion("concept", id, cmd.ExpectedVersion, concept.Version()); err != nil {
			return err
		}
		previous := concept.Version()

		cfg := s.DomainConfig()
		if cmd.Type != nil {
			conceptType, err := valueobjects.ParseConceptType(*cmd.Type)
			if err != nil {
				return err
			}
			if err := concept.SetType(conceptType); err != nil {
				return err
			}
		}
		if cmd.Label != nil {
			label, err := valueobjects.NewLabel(*cmd.Label, cfg)
			if err != nil {
				return err
			}
			concept.Relabel(label)
		}
		if cmd.Description != nil {
			if err := concept.SetDescription(*cmd.Description, cfg); err != nil {
				return err
			}
		}
		if cmd.Metadata != nil {
			metadata, err := valueobjects.NewMetadata(*cmd.Metadata, cfg)
			if err != nil {
				return err
			}
			concept.SetMetadata(metadata)
		}

		if !concept.CommitUpdate() {
			return nil
		}
		if err := s.store.Concepts().Update(ctx, concept, previous); err != nil {
			return err
		}

		s.publish(ctx, concept)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return concept, nil
}

// DeleteConcept removes a concept and its connections and detaches it from
// artifacts and conversations
func (s *KnowledgeGraph) DeleteConcept(ctx context.Context, id string) error {
	return s.observe(ctx, "DeleteConcept", func(ctx context.Context) error {
		owner, err := s.currentOwner(ctx)
		if err != nil {
			return err
		}
		conceptID, err := resolveID("concept", id)
		if err != nil {
			return err
		}

		removed, err := s.store.Concepts().Delete(ctx, owner, conceptID)
		if err != nil {
			return err
		}

		s.logger.Info("concept deleted",
			zap.String("concept_id", id),
			zap.Int("cascaded_connections", len(removed)))
		s.publishEvents(ctx, events.NewEntityDeleted(
			events.TypeConceptDeleted,
			id,
			owner,
			valueobjects.IDStrings(removed),
			nil,
			utils.Now(),
		))
		return nil
	})
}

// ListConcepts returns the user's concepts ordered by label
func (s *KnowledgeGraph) ListConcepts(ctx context.Context, q queries.ListConceptsQuery) (queries.Page[*entities.Concept], error) {
	var page queries.Page[*entities.Concept]

	err := s.observe(ctx, "ListConcepts", func(ctx context.Context) error {
		owner, err := s.currentOwner(ctx)
		if err != nil {
			return err
		}

		var filter ports.ConceptFilter
		if q.Type != "" {
			conceptType, err := valueobjects.ParseConceptType(q.Type)
			if err != nil {
				return err
			}
			filter.Type = &conceptType
		}
		if q.Origin != "" {
			origin, err := valueobjects.ParseConceptOrigin(q.Origin)
			if err != nil {
				return err
			}
			filter.Origin = &origin
		}

		params := normalizePage(q.Pagination)
		items, total, err := s.store.Concepts().List(ctx, owner, filter, params)
		if err != nil {
			return err
		}
		page = queries.NewPage(items, params, total)
		return nil
	})
	return page, err
}

// DeriveConcepts attaches concepts extracted from an artifact. Existing
// concepts with the same type and label are reused; the rest are created
// with origin "derived". Each concept is its own write, followed by one
// write of the artifact's relation list.
func (s *KnowledgeGraph) DeriveConcepts(ctx context.Context, artifactID string, cmd commands.DeriveConceptsCommand) ([]*entities.Concept, error) {
	var derived []*entities.Concept

	err := s.observe(ctx, "DeriveConcepts", func(ctx context.Context) error {
		owner, err := s.currentOwner(ctx)
		if err != nil {
			return err
		}
		if err := cmd.Validate(); err != nil {
			return err
		}
		id, err := resolveID("artifact", artifactID)
		if err != nil {
			return err
		}
		artifact, err := s.store.Artifacts().GetByID(ctx, owner, id)
		if err != nil {
			return err
		}
		previous := artifact.Version()

		cfg := s.DomainConfig()
		type input struct {
			conceptType valueobjects.ConceptType
			label       valueobjects.Label
		}
		inputs := make([]input, 0, len(cmd.Concepts))
		verrs := pkgerrors.NewValidationErrors()
		for i, in := range cmd.Concepts {
			conceptType, err := valueobjects.ParseConceptType(in.Type)
			if err != nil {
				verrs.Addf("concepts", "[%d] type %q is not a recognised concept type", i, in.Type)
				continue
			}
			label, err := valueobjects.NewLabel(in.Label, cfg)
			if err != nil {
				verrs.Addf("concepts", "[%d] label is invalid", i)
				continue
			}
			inputs = append(inputs, input{conceptType: conceptType, label: label})
		}
		if err := verrs.Err(); err != nil {
			return err
		}

		seen := make(map[string]struct{}, len(inputs))
		for _, in := range inputs {
			key := entities.ConceptUniqueKey(in.conceptType, in.label.String())
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}

			concept, err := s.store.Concepts().FindByLabel(ctx, owner, in.conceptType, in.label.String())
			switch {
			case err == nil:
			case pkgerrors.IsNotFound(err):
				concept, err = entities.NewDerivedConcept(owner, in.conceptType, in.label, id, cfg)
				if err != nil {
					return err
				}
				if err := s.store.Concepts().Create(ctx, concept); err != nil {
					return err
				}
				s.publish(ctx, concept)
			default:
				return err
			}

			if err := artifact.AddConcept(concept.ID(), cfg); err != nil {
				return err
			}
			derived = append(derived, concept)
		}

		if artifact.CommitUpdate() {
			if err := s.store.Artifacts().Update(ctx, artifact, previous); err != nil {
				return err
			}
			s.publish(ctx, artifact)
		}

		s.logger.Info("concepts derived",
			zap.String("artifact_id", artifactID),
			zap.Int("count", len(derived)))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return derived, nil
}
