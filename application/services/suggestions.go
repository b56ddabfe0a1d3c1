package services

import (
	"context"
	"iter"

	"bobbin-backend/application/ports"
	"bobbin-backend/application/queries"
	"bobbin-backend/application/suggestions"
	"bobbin-backend/domain/core/aggregates"
	"bobbin-backend/domain/core/entities"
	"bobbin-backend/domain/core/valueobjects"
	"bobbin-backend/pkg/common"
	pkgerrors "bobbin-backend/pkg/errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// GetConnectionSuggestions proposes connections from the anchor to the
// user's other artifacts and concepts. Endpoints already connected to the
// anchor are skipped. The sequence is finite, ordered by non-increasing
// confidence and computed as it is consumed. Nothing is persisted.
func (s *KnowledgeGraph) GetConnectionSuggestions(ctx context.Context, sc queries.SuggestionContext) (iter.Seq[queries.ConnectionSuggestion], error) {
	var ranked iter.Seq[ports.ScoredCandidate]
	var anchor valueobjects.Endpoint

	err := s.observe(ctx, "GetConnectionSuggestions", func(ctx context.Context) error {
		owner, err := s.currentOwner(ctx)
		if err != nil {
			return err
		}
		if err := sc.Validate(); err != nil {
			return err
		}
		anchor, err = sc.Anchor.Endpoint("anchor")
		if err != nil {
			return err
		}

		cfg := s.DomainConfig()
		anchorCandidate, err := s.loadCandidate(ctx, owner, anchor)
		if err != nil {
			return err
		}

		candidates, err := s.suggestionCandidates(ctx, owner, anchor, sc.CandidateKinds, cfg.MaxSuggestionCandidates)
		if err != nil {
			return err
		}

		var scored []ports.ScoredCandidate
		if len(candidates) > 0 {
			scored, err = s.scorer.Score(ctx, anchorCandidate, candidates)
			if err != nil {
				return err
			}
		}

		minConfidence := cfg.MinSuggestionConfidence
		if sc.MinConfidence != nil {
			minConfidence = *sc.MinConfidence
		}
		limit := sc.Limit
		if limit <= 0 {
			limit = cfg.DefaultSuggestionLimit
		}
		if limit > cfg.MaxSuggestionLimit {
			limit = cfg.MaxSuggestionLimit
		}

		s.logger.Debug("scored suggestion candidates",
			zap.String("anchor", anchor.Key()),
			zap.String("scorer", s.scorer.Name()),
			zap.Int("candidates", len(candidates)),
			zap.Int("scored", len(scored)))
		ranked = suggestions.Ranked(scored, minConfidence, limit)
		return nil
	})
	if err != nil {
		return nil, err
	}

	source := entities.EndpointState{Kind: string(anchor.Kind()), ID: anchor.ID().String()}
	return func(yield func(queries.ConnectionSuggestion) bool) {
		yielded := 0
		defer func() { s.metrics.RecordSuggestions(yielded) }()

		for c := range ranked {
			yielded++
			if !yield(queries.ConnectionSuggestion{
				Source: source,
				Target: queries.EndpointSummary{
					Kind:  string(c.Candidate.Endpoint.Kind()),
					ID:    c.Candidate.Endpoint.ID().String(),
					Title: c.Candidate.Title,
				},
				Kind:       string(c.Kind),
				Confidence: c.Score,
				Reason:     c.Reason,
			}) {
				return
			}
		}
	}, nil
}

// loadCandidate resolves the anchor into scorer input
func (s *KnowledgeGraph) loadCandidate(ctx context.Context, owner string, ep valueobjects.Endpoint) (ports.SuggestionCandidate, error) {
	switch ep.Kind() {
	case valueobjects.EndpointArtifact:
		a, err := s.store.Artifacts().GetByID(ctx, owner, ep.ID())
		if err != nil {
			return ports.SuggestionCandidate{}, err
		}
		return artifactCandidate(a), nil
	case valueobjects.EndpointConcept:
		c, err := s.store.Concepts().GetByID(ctx, owner, ep.ID())
		if err != nil {
			return ports.SuggestionCandidate{}, err
		}
		return conceptCandidate(c), nil
	default:
		return ports.SuggestionCandidate{}, pkgerrors.NewFieldValidationError("anchor", "unknown endpoint kind "+string(ep.Kind()))
	}
}

// suggestionCandidates gathers the owner's artifacts and concepts that are
// not the anchor and not already connected to it
func (s *KnowledgeGraph) suggestionCandidates(
	ctx context.Context,
	owner string,
	anchor valueobjects.Endpoint,
	kinds []string,
	maxCandidates int,
) ([]ports.SuggestionCandidate, error) {
	wantArtifacts, wantConcepts := len(kinds) == 0, len(kinds) == 0
	for _, k := range kinds {
		switch valueobjects.EndpointKind(k) {
		case valueobjects.EndpointArtifact:
			wantArtifacts = true
		case valueobjects.EndpointConcept:
			wantConcepts = true
		}
	}

	params := common.PaginationParams{Page: 1, PageSize: maxCandidates, Order: "desc"}
	var (
		artifacts   []*entities.Artifact
		concepts    []*entities.Concept
		connections []*entities.Connection
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		connections, err = s.store.Connections().ListByEndpoint(gctx, owner, anchor)
		return err
	})
	if wantArtifacts {
		g.Go(func() error {
			var err error
			artifacts, _, err = s.store.Artifacts().List(gctx, owner, params)
			return err
		})
	}
	if wantConcepts {
		g.Go(func() error {
			var err error
			concepts, _, err = s.store.Concepts().List(gctx, owner, ports.ConceptFilter{}, params)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	excluded := aggregates.ConnectedEndpoints(anchor, connections)
	candidates := make([]ports.SuggestionCandidate, 0, len(artifacts)+len(concepts))
	for _, a := range artifacts {
		c := artifactCandidate(a)
		if _, skip := excluded[c.Endpoint.Key()]; !skip {
			candidates = append(candidates, c)
		}
	}
	for _, concept := range concepts {
		c := conceptCandidate(concept)
		if _, skip := excluded[c.Endpoint.Key()]; !skip {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) > maxCandidates {
		candidates = candidates[:maxCandidates]
	}
	return candidates, nil
}

func artifactCandidate(a *entities.Artifact) ports.SuggestionCandidate {
	content := a.Content()
	return ports.SuggestionCandidate{
		Endpoint: valueobjects.ArtifactEndpoint(a.ID()),
		Title:    content.Title(),
		Text:     content.Body(),
	}
}

func conceptCandidate(c *entities.Concept) ports.SuggestionCandidate {
	return ports.SuggestionCandidate{
		Endpoint: valueobjects.ConceptEndpoint(c.ID()),
		Title:    c.Label().String(),
		Text:     c.Description(),
	}
}
