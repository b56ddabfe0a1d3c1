package dynamodb

import (
	"context"
	"time"

	"bobbin-backend/application/ports"
	"bobbin-backend/domain/core/entities"
	"bobbin-backend/domain/core/valueobjects"
	"bobbin-backend/pkg/common"
	pkgerrors "bobbin-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type connectionRepo struct{ s *Store }

func duplicateConnection(old map[string]types.AttributeValue) error {
	err := pkgerrors.NewConflictError("connection already exists").WithCode("DUPLICATE_CONNECTION")
	if id := guardTarget(old); id != "" {
		err = err.WithDetail("existing_id", id)
	}
	return err
}

func (r connectionRepo) Create(ctx context.Context, connection *entities.Connection) error {
	item := newConnectionItem(connection)
	t := r.s.txn()
	for _, ep := range []struct{ field, kind, id string }{
		{"source", item.SourceKind, item.SourceID},
		{"target", item.TargetKind, item.TargetID},
	} {
		endpoint, err := valueobjects.NewEndpoint(ep.field, ep.kind, ep.id)
		if err != nil {
			return err
		}
		if err := t.reference(item.OwnerID, endpointSK(endpoint), missingReference(ep.field, ep.kind, ep.id)); err != nil {
			return err
		}
	}
	if err := t.put(connectionGuard(item.OwnerID, item.DuplicateKey, item.ID), &notExists, duplicateConnection); err != nil {
		return err
	}
	if err := t.put(item, &notExists, alreadyExists("connection")); err != nil {
		return err
	}
	return t.commit(ctx, "create connection")
}

func (r connectionRepo) GetByID(ctx context.Context, ownerID string, id valueobjects.ID) (*entities.Connection, error) {
	item, err := r.get(ctx, ownerID, id.String())
	if err != nil {
		return nil, err
	}
	return entities.ReconstructConnection(item.state())
}

func (r connectionRepo) get(ctx context.Context, ownerID, id string) (connectionItem, error) {
	var item connectionItem
	found, err := r.s.getItem(ctx, ownerID, prefixConnection+id, &item)
	if err != nil {
		return item, classify("get connection", err)
	}
	if !found {
		return item, pkgerrors.NewNotFoundError("connection", id)
	}
	return item, nil
}

func (r connectionRepo) FindDuplicate(ctx context.Context, ownerID, duplicateKey string) (*entities.Connection, error) {
	var guard guardItem
	found, err := r.s.getItem(ctx, ownerID, prefixConnKey+duplicateKey, &guard)
	if err != nil {
		return nil, classify("find duplicate connection", err)
	}
	if !found {
		return nil, pkgerrors.NewNotFoundError("connection", duplicateKey)
	}
	item, err := r.get(ctx, ownerID, guard.TargetID)
	if err != nil {
		return nil, err
	}
	return entities.ReconstructConnection(item.state())
}

func (r connectionRepo) ListByEndpoint(ctx context.Context, ownerID string, endpoint valueobjects.Endpoint) ([]*entities.Connection, error) {
	filter := touchingFilter(endpointRef(string(endpoint.Kind()), endpoint.ID().String()))
	items, err := queryInto[connectionItem](ctx, r.s, ownerID, prefixConnection, &filter)
	if err != nil {
		return nil, classify("list connections by endpoint", err)
	}
	sortConnections(items, "desc")
	return reconstructConnections(items)
}

func (r connectionRepo) Update(ctx context.Context, connection *entities.Connection, expectedVersion int) error {
	item := newConnectionItem(connection)

	stored, err := r.get(ctx, item.OwnerID, item.ID)
	if err != nil {
		return err
	}
	if stored.Version != expectedVersion {
		return pkgerrors.NewVersionConflictError("connection", item.ID, expectedVersion).
			WithDetail("actual_version", stored.Version)
	}

	t := r.s.txn()
	cond := exists.And(versionIs(expectedVersion))
	if err := t.put(item, &cond, versionFailure("connection", item.ID, expectedVersion)); err != nil {
		return err
	}
	if stored.DuplicateKey != item.DuplicateKey {
		owned := expression.Name("TargetID").Equal(expression.Value(item.ID))
		if err := t.del(item.OwnerID, prefixConnKey+stored.DuplicateKey, &owned, goneOrChanged("connection key", stored.DuplicateKey)); err != nil {
			return err
		}
		if err := t.put(connectionGuard(item.OwnerID, item.DuplicateKey, item.ID), &notExists, duplicateConnection); err != nil {
			return err
		}
	}
	return t.commit(ctx, "update connection")
}

func (r connectionRepo) Delete(ctx context.Context, ownerID string, id valueobjects.ID) error {
	stored, err := r.get(ctx, ownerID, id.String())
	if err != nil {
		return err
	}
	t := r.s.txn()
	if err := t.del(ownerID, stored.SK, &exists, goneOrChanged("connection", stored.ID)); err != nil {
		return err
	}
	if err := t.del(ownerID, prefixConnKey+stored.DuplicateKey, nil, nil); err != nil {
		return err
	}
	return t.commit(ctx, "delete connection")
}

func (r connectionRepo) List(ctx context.Context, ownerID string, filter ports.ConnectionFilter, params common.PaginationParams) ([]*entities.Connection, int, error) {
	var conds []expression.ConditionBuilder
	if filter.Endpoint != nil {
		conds = append(conds, touchingFilter(endpointRef(string(filter.Endpoint.Kind()), filter.Endpoint.ID().String())))
	}
	if filter.Kind != nil {
		conds = append(conds, expression.Name("Kind").Equal(expression.Value(string(*filter.Kind))))
	}
	if filter.Status != nil {
		conds = append(conds, expression.Name("Status").Equal(expression.Value(string(*filter.Status))))
	}

	items, err := queryInto[connectionItem](ctx, r.s, ownerID, prefixConnection, allOf(conds))
	if err != nil {
		return nil, 0, classify("list connections", err)
	}
	sortConnections(items, params.Order)

	out, err := reconstructConnections(paginate(items, params))
	if err != nil {
		return nil, 0, err
	}
	return out, len(items), nil
}

func sortConnections(items []connectionItem, order string) {
	byCreated(items, order,
		func(i connectionItem) time.Time { return i.CreatedAt },
		func(i connectionItem) string { return i.ID })
}

func reconstructConnections(items []connectionItem) ([]*entities.Connection, error) {
	out := make([]*entities.Connection, 0, len(items))
	for _, item := range items {
		c, err := entities.ReconstructConnection(item.state())
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
