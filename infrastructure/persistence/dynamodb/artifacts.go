package dynamodb

import (
	"context"
	"time"

	"bobbin-backend/domain/core/aggregates"
	"bobbin-backend/domain/core/entities"
	"bobbin-backend/domain/core/valueobjects"
	"bobbin-backend/pkg/common"
	pkgerrors "bobbin-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"go.uber.org/zap"
)

type artifactRepo struct{ s *Store }

func (r artifactRepo) Create(ctx context.Context, artifact *entities.Artifact) error {
	state := artifact.State()
	t := r.s.txn()
	if err := t.put(newArtifactItem(state), &notExists, alreadyExists("artifact")); err != nil {
		return err
	}
	if err := t.requireAll(state.OwnerID, prefixConcept, "concept_ids", "concept", state.ConceptIDs); err != nil {
		return err
	}
	return t.commit(ctx, "create artifact")
}

func (r artifactRepo) GetByID(ctx context.Context, ownerID string, id valueobjects.ID) (*entities.Artifact, error) {
	var item artifactItem
	found, err := r.s.getItem(ctx, ownerID, prefixArtifact+id.String(), &item)
	if err != nil {
		return nil, classify("get artifact", err)
	}
	if !found {
		return nil, pkgerrors.NewNotFoundError("artifact", id.String())
	}
	return entities.ReconstructArtifact(item.state())
}

func (r artifactRepo) GetByIDs(ctx context.Context, ownerID string, ids []valueobjects.ID) ([]*entities.Artifact, error) {
	sks := make([]string, len(ids))
	for i, id := range ids {
		sks[i] = prefixArtifact + id.String()
	}
	found, err := r.s.batchGet(ctx, ownerID, sks)
	if err != nil {
		return nil, classify("get artifacts", err)
	}

	out := make([]*entities.Artifact, 0, len(found))
	for _, sk := range sks {
		raw, ok := found[sk]
		if !ok {
			continue
		}
		delete(found, sk)
		var item artifactItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			return nil, classify("decode artifact", err)
		}
		a, err := entities.ReconstructArtifact(item.state())
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (r artifactRepo) Update(ctx context.Context, artifact *entities.Artifact, expectedVersion int) error {
	state := artifact.State()
	cond := exists.And(versionIs(expectedVersion))
	t := r.s.txn()
	if err := t.put(newArtifactItem(state), &cond, versionFailure("artifact", state.ID, expectedVersion)); err != nil {
		return err
	}
	if err := t.requireAll(state.OwnerID, prefixConcept, "concept_ids", "concept", state.ConceptIDs); err != nil {
		return err
	}
	return t.commit(ctx, "update artifact")
}

func (r artifactRepo) Delete(ctx context.Context, ownerID string, id valueobjects.ID) (*aggregates.RemovalPlan, error) {
	var item artifactItem
	found, err := r.s.getItem(ctx, ownerID, prefixArtifact+id.String(), &item)
	if err != nil {
		return nil, classify("delete artifact", err)
	}
	if !found {
		return nil, pkgerrors.NewNotFoundError("artifact", id.String())
	}

	snap, err := r.s.loadSnapshot(ctx, ownerID)
	if err != nil {
		return nil, classify("delete artifact", err)
	}
	plan, err := snap.planArtifactRemoval(item)
	if err != nil {
		return nil, err
	}

	t := r.s.txn()
	cond := unchangedSince(item.Version, item.RefEpoch)
	if err := t.del(ownerID, item.SK, &cond, goneOrChanged("artifact", item.ID)); err != nil {
		return nil, err
	}

	removedConcepts := make(map[string]struct{}, len(plan.OrphanedConcepts))
	for _, cid := range plan.OrphanedConcepts {
		removedConcepts[cid.String()] = struct{}{}
	}
	connections := snap.connectionsTouching(
		append([]string{endpointRef(string(valueobjects.EndpointArtifact), item.ID)},
			refsOf(valueobjects.EndpointConcept, plan.OrphanedConcepts)...)...)
	if err := snap.deleteConnections(t, connections); err != nil {
		return nil, err
	}
	for _, cid := range plan.OrphanedConcepts {
		if err := snap.deleteConcept(t, cid.String()); err != nil {
			return nil, err
		}
	}
	if err := snap.detachConversations(t, map[string]struct{}{item.ID: {}}, removedConcepts); err != nil {
		return nil, err
	}

	if err := t.commit(ctx, "delete artifact"); err != nil {
		return nil, err
	}

	plan.Connections = connectionIDs(connections)
	r.s.logger.Debug("artifact deleted",
		zap.String("artifactID", item.ID),
		zap.Int("connections", len(plan.Connections)),
		zap.Int("orphanedConcepts", len(plan.OrphanedConcepts)),
	)
	return plan, nil
}

func (r artifactRepo) List(ctx context.Context, ownerID string, params common.PaginationParams) ([]*entities.Artifact, int, error) {
	items, err := queryInto[artifactItem](ctx, r.s, ownerID, prefixArtifact, nil)
	if err != nil {
		return nil, 0, classify("list artifacts", err)
	}
	byCreated(items, params.Order,
		func(i artifactItem) time.Time { return i.CreatedAt },
		func(i artifactItem) string { return i.ID })

	pageItems := paginate(items, params)
	out := make([]*entities.Artifact, 0, len(pageItems))
	for _, item := range pageItems {
		a, err := entities.ReconstructArtifact(item.state())
		if err != nil {
			return nil, 0, err
		}
		out = append(out, a)
	}
	return out, len(items), nil
}
