package services

import (
	"context"

	"bobbin-backend/application/commands"
	"bobbin-backend/application/ports"
	"bobbin-backend/application/queries"
	"bobbin-backend/domain/config"
	"bobbin-backend/domain/core/entities"
	"bobbin-backend/domain/core/valueobjects"
	"bobbin-backend/domain/events"
	pkgerrors "bobbin-backend/pkg/errors"
	"bobbin-backend/pkg/utils"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// CreateConnection connects two of the user's artifacts or concepts. Both
// endpoints must exist and be visible to the user, otherwise the result is
// a validation error. When the same connection already exists the
// configured duplicate policy either rejects the request with a conflict
// or returns the stored connection; created reports which happened.
func (s *KnowledgeGraph) CreateConnection(ctx context.Context, cmd commands.CreateConnectionCommand) (connection *entities.Connection, created bool, err error) {
	err = s.observe(ctx, "CreateConnection", func(ctx context.Context) error {
		owner, err := s.currentOwner(ctx)
		if err != nil {
			return err
		}
		if err := cmd.Validate(); err != nil {
			return err
		}

		source, err := cmd.Source.Endpoint("source")
		if err != nil {
			return err
		}
		target, err := cmd.Target.Endpoint("target")
		if err != nil {
			return err
		}
		kind, err := valueobjects.ParseRelationshipKind(cmd.Kind)
		if err != nil {
			return err
		}
		status, err := valueobjects.ParseConnectionStatus(cmd.Status)
		if err != nil {
			return err
		}

		cfg := s.DomainConfig()
		candidate, err := entities.NewConnection(owner, source, target, kind, entities.ConnectionOptions{
			Label:      cmd.Label,
			Strength:   cmd.Strength,
			Directed:   cmd.Directed,
			Status:     status,
			Confidence: cmd.Confidence,
			Reason:     cmd.Reason,
		}, cfg)
		if err != nil {
			return err
		}

		if err := s.requireEndpoints(ctx, owner, source, target); err != nil {
			return err
		}

		existing, err := s.store.Connections().FindDuplicate(ctx, owner, candidate.DuplicateKey())
		switch {
		case err == nil:
			return s.resolveDuplicate(existing, cfg, &connection)
		case !pkgerrors.IsNotFound(err):
			return err
		}

		if err := s.store.Connections().Create(ctx, candidate); err != nil {
			// A concurrent writer may have stored the same connection
			// between the lookup and the write.
			if pkgerrors.IsConflict(err) && cfg.DuplicateConnectionPolicy == config.DuplicateReturnExisting {
				existing, lookupErr := s.store.Connections().FindDuplicate(ctx, owner, candidate.DuplicateKey())
				if lookupErr == nil {
					connection = existing
					return nil
				}
			}
			return err
		}

		connection, created = candidate, true
		s.logger.Info("connection created",
			zap.String("connection_id", candidate.ID().String()),
			zap.String("source", source.Key()),
			zap.String("target", target.Key()),
			zap.String("kind", string(kind)))
		s.publish(ctx, candidate)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return connection, created, nil
}

func (s *KnowledgeGraph) resolveDuplicate(existing *entities.Connection, cfg *config.DomainConfig, out **entities.Connection) error {
	switch cfg.DuplicateConnectionPolicy {
	case config.DuplicateReturnExisting:
		*out = existing
		return nil
	case config.DuplicateReject:
		return pkgerrors.NewConflictError("connection already exists").
			WithCode("DUPLICATE_CONNECTION").
			WithDetail("existing_id", existing.ID().String())
	default:
		return pkgerrors.NewInternalError("unknown duplicate connection policy " + string(cfg.DuplicateConnectionPolicy))
	}
}

// requireEndpoints checks that both endpoints exist for the owner. A missing
// endpoint is the caller's mistake, so it surfaces as a validation error.
func (s *KnowledgeGraph) requireEndpoints(ctx context.Context, owner string, source, target valueobjects.Endpoint) error {
	endpoints := []struct {
		field string
		ep    valueobjects.Endpoint
	}{{"source", source}, {"target", target}}
	for _, e := range endpoints {
		field, ep := e.field, e.ep
		if _, err := s.describeEndpoint(ctx, owner, ep); err != nil {
			if pkgerrors.IsNotFound(err) {
				return pkgerrors.NewFieldValidationError(field, string(ep.Kind())+" "+ep.ID().String()+" does not exist").
					WithCause(err)
			}
			return err
		}
	}
	return nil
}

// describeEndpoint loads an endpoint and returns its display summary
func (s *KnowledgeGraph) describeEndpoint(ctx context.Context, owner string, ep valueobjects.Endpoint) (queries.EndpointSummary, error) {
	summary := queries.EndpointSummary{Kind: string(ep.Kind()), ID: ep.ID().String()}
	switch ep.Kind() {
	case valueobjects.EndpointArtifact:
		a, err := s.store.Artifacts().GetByID(ctx, owner, ep.ID())
		if err != nil {
			return summary, err
		}
		summary.Title = a.Content().Title()
	case valueobjects.EndpointConcept:
		c, err := s.store.Concepts().GetByID(ctx, owner, ep.ID())
		if err != nil {
			return summary, err
		}
		summary.Title = c.Label().String()
	default:
		return summary, pkgerrors.NewFieldValidationError("kind", "unknown endpoint kind "+string(ep.Kind()))
	}
	return summary, nil
}

// GetConnection returns a connection with both endpoints resolved
func (s *KnowledgeGraph) GetConnection(ctx context.Context, id string) (*queries.ConnectionWithEndpoints, error) {
	var result *queries.ConnectionWithEndpoints

	err := s.observe(ctx, "GetConnection", func(ctx context.Context) error {
		owner, err := s.currentOwner(ctx)
		if err != nil {
			return err
		}
		connectionID, err := resolveID("connection", id)
		if err != nil {
			return err
		}
		connection, err := s.store.Connections().GetByID(ctx, owner, connectionID)
		if err != nil {
			return err
		}

		result = &queries.ConnectionWithEndpoints{Connection: connection.State()}
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			result.Source, err = s.describeEndpoint(gctx, owner, connection.Source())
			return err
		})
		g.Go(func() error {
			var err error
			result.Target, err = s.describeEndpoint(gctx, owner, connection.Target())
			return err
		})
		return g.Wait()
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateConnection applies a partial update
func (s *KnowledgeGraph) UpdateConnection(ctx context.Context, id string, cmd commands.UpdateConnectionCommand) (*entities.Connection, error) {
	return s.mutateConnection(ctx, "UpdateConnection", id, cmd.ExpectedVersion, func(c *entities.Connection) error {
		if err := cmd.Validate(); err != nil {
			return err
		}
		if cmd.Kind != nil {
			kind, err := valueobjects.ParseRelationshipKind(*cmd.Kind)
			if err != nil {
				return err
			}
			if err := c.SetKind(kind); err != nil {
				return err
			}
		}
		if cmd.Label != nil {
			if err := c.SetLabel(*cmd.Label); err != nil {
				return err
			}
		}
		if cmd.Strength != nil {
			if err := c.SetStrength(*cmd.Strength); err != nil {
				return err
			}
		}
		if cmd.Directed != nil {
			c.SetDirected(*cmd.Directed)
		}
		return nil
	})
}

// ConfirmConnection marks a suggested connection as confirmed
func (s *KnowledgeGraph) ConfirmConnection(ctx context.Context, id string) (*entities.Connection, error) {
	return s.mutateConnection(ctx, "ConfirmConnection", id, nil, func(c *entities.Connection) error {
		c.Confirm()
		return nil
	})
}

func (s *KnowledgeGraph) mutateConnection(
	ctx context.Context,
	operation, id string,
	expectedVersion *int,
	mutate func(*entities.Connection) error,
) (*entities.Connection, error) {
	var connection *entities.Connection

	err := s.observe(ctx, operation, func(ctx context.Context) error {
		owner, err := s.currentOwner(ctx)
		if err != nil {
			return err
		}
		connectionID, err := resolveID("connection", id)
		if err != nil {
			return err
		}
		connection, err = s.store.Connections().GetByID(ctx, owner, connectionID)
		if err != nil {
			return err
		}
		if err := checkExpectedVersion("connection", id, expectedVersion, connection.Version()); err != nil {
			return err
		}
		previous := connection.Version()

		if err := mutate(connection); err != nil {
			return err
		}
		if !connection.CommitUpdate() {
			return nil
		}
		if err := s.store.Connections().Update(ctx, connection, previous); err != nil {
			return err
		}

		s.publish(ctx, connection)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return connection, nil
}

// DeleteConnection removes a connection
func (s *KnowledgeGraph) DeleteConnection(ctx context.Context, id string) error {
	return s.observe(ctx, "DeleteConnection", func(ctx context.Context) error {
		owner, err := s.currentOwner(ctx)
		if err != nil {
			return err
		}
		connectionID, err := resolveID("connection", id)
		if err != nil {
			return err
		}
		if err := s.store.Connections().Delete(ctx, owner, connectionID); err != nil {
			return err
		}

		s.publishEvents(ctx, events.NewEntityDeleted(events.TypeConnectionDeleted, id, owner, nil, nil, utils.Now()))
		return nil
	})
}

// ListConnections returns the user's connections, newest first
func (s *KnowledgeGraph) ListConnections(ctx context.Context, q queries.ListConnectionsQuery) (queries.Page[*entities.Connection], error) {
	var page queries.Page[*entities.Connection]

	err := s.observe(ctx, "ListConnections", func(ctx context.Context) error {
		owner, err := s.currentOwner(ctx)
		if err != nil {
			return err
		}

		var filter ports.ConnectionFilter
		if q.EndpointKind != "" || q.EndpointID != "" {
			ep, err := valueobjects.NewEndpoint("endpoint", q.EndpointKind, q.EndpointID)
			if err != nil {
				return err
			}
			filter.Endpoint = &ep
		}
		if q.Kind != "" {
			kind, err := valueobjects.ParseRelationshipKind(q.Kind)
			if err != nil {
				return err
			}
			filter.Kind = &kind
		}
		if q.Status != "" {
			status, err := valueobjects.ParseConnectionStatus(q.Status)
			if err != nil {
				return err
			}
			filter.Status = &status
		}

		params := normalizePage(q.Pagination)
		items, total, err := s.store.Connections().List(ctx, owner, filter, params)
		if err != nil {
			return err
		}
		page = queries.NewPage(items, params, total)
		return nil
	})
	return page, err
}
