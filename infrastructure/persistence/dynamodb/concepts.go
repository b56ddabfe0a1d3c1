package dynamodb

import (
	"context"
	"sort"

	"bobbin-backend/application/ports"
	"bobbin-backend/domain/core/entities"
	"bobbin-backend/domain/core/valueobjects"
	"bobbin-backend/pkg/common"
	pkgerrors "bobbin-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type conceptRepo struct{ s *Store }

// labelTaken reports the concept already holding a type and label
func labelTaken(old map[string]types.AttributeValue) error {
	err := pkgerrors.NewConflictError("a concept with this type and label already exists")
	if id := guardTarget(old); id != "" {
		err = err.WithDetail("existing_id", id)
	}
	return err
}

func (r conceptRepo) Create(ctx context.Context, concept *entities.Concept) error {
	item := newConceptItem(concept.State())
	t := r.s.txn()
	if err := t.put(conceptGuard(item.OwnerID, item.UniqueKey, item.ID), &notExists, labelTaken); err != nil {
		return err
	}
	if err := t.put(item, &notExists, alreadyExists("concept")); err != nil {
		return err
	}
	return t.commit(ctx, "create concept")
}

func (r conceptRepo) GetByID(ctx context.Context, ownerID string, id valueobjects.ID) (*entities.Concept, error) {
	var item conceptItem
	found, err := r.s.getItem(ctx, ownerID, prefixConcept+id.String(), &item)
	if err != nil {
		return nil, classify("get concept", err)
	}
	if !found {
		return nil, pkgerrors.NewNotFoundError("concept", id.String())
	}
	return entities.ReconstructConcept(item.state())
}

func (r conceptRepo) GetByIDs(ctx context.Context, ownerID string, ids []valueobjects.ID) ([]*entities.Concept, error) {
	sks := make([]string, len(ids))
	for i, id := range ids {
		sks[i] = prefixConcept + id.String()
	}
	found, err := r.s.batchGet(ctx, ownerID, sks)
	if err != nil {
		return nil, classify("get concepts", err)
	}

	out := make([]*entities.Concept, 0, len(found))
	for _, sk := range sks {
		raw, ok := found[sk]
		if !ok {
			continue
		}
		delete(found, sk)
		var item conceptItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			return nil, classify("decode concept", err)
		}
		c, err := entities.ReconstructConcept(item.state())
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (r conceptRepo) FindByLabel(ctx context.Context, ownerID string, conceptType valueobjects.ConceptType, label string) (*entities.Concept, error) {
	var guard guardItem
	found, err := r.s.getItem(ctx, ownerID, prefixConceptKey+entities.ConceptUniqueKey(conceptType, label), &guard)
	if err != nil {
		return nil, classify("find concept", err)
	}
	if !found {
		return nil, pkgerrors.NewNotFoundError("concept", label)
	}
	id, err := valueobjects.ParseID("concept_id", guard.TargetID)
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, ownerID, id)
}

func (r conceptRepo) Update(ctx context.Context, concept *entities.Concept, expectedVersion int) error {
	item := newConceptItem(concept.State())

	// the stored unique key is needed to move the guard on a relabel
	var stored conceptItem
	found, err := r.s.getItem(ctx, item.OwnerID, item.SK, &stored)
	if err != nil {
		return classify("update concept", err)
	}
	if !found {
		return pkgerrors.NewNotFoundError("concept", item.ID)
	}
	if stored.Version != expectedVersion {
		return pkgerrors.NewVersionConflictError("concept", item.ID, expectedVersion).
			WithDetail("actual_version", stored.Version)
	}

	t := r.s.txn()
	cond := exists.And(versionIs(expectedVersion))
	if err := t.put(item, &cond, versionFailure("concept", item.ID, expectedVersion)); err != nil {
		return err
	}
	if stored.UniqueKey != item.UniqueKey {
		owned := expression.Name("TargetID").Equal(expression.Value(item.ID))
		if err := t.del(item.OwnerID, prefixConceptKey+stored.UniqueKey, &owned, goneOrChanged("concept label", stored.UniqueKey)); err != nil {
			return err
		}
		if err := t.put(conceptGuard(item.OwnerID, item.UniqueKey, item.ID), &notExists, labelTaken); err != nil {
			return err
		}
	}
	return t.commit(ctx, "update concept")
}

func (r conceptRepo) Delete(ctx context.Context, ownerID string, id valueobjects.ID) ([]valueobjects.ID, error) {
	var item conceptItem
	found, err := r.s.getItem(ctx, ownerID, prefixConcept+id.String(), &item)
	if err != nil {
		return nil, classify("delete concept", err)
	}
	if !found {
		return nil, pkgerrors.NewNotFoundError("concept", id.String())
	}

	snap, err := r.s.loadSnapshot(ctx, ownerID)
	if err != nil {
		return nil, classify("delete concept", err)
	}
	snap.concepts[item.ID] = item

	t := r.s.txn()
	if err := snap.deleteConcept(t, item.ID); err != nil {
		return nil, err
	}
	connections := snap.connectionsTouching(endpointRef(string(valueobjects.EndpointConcept), item.ID))
	if err := snap.deleteConnections(t, connections); err != nil {
		return nil, err
	}
	dropped := map[string]struct{}{item.ID: {}}
	if err := snap.detachArtifacts(t, dropped); err != nil {
		return nil, err
	}
	if err := snap.detachConversations(t, nil, dropped); err != nil {
		return nil, err
	}
	if err := t.commit(ctx, "delete concept"); err != nil {
		return nil, err
	}
	return connectionIDs(connections), nil
}

func (r conceptRepo) List(ctx context.Context, ownerID string, filter ports.ConceptFilter, params common.PaginationParams) ([]*entities.Concept, int, error) {
	var conds []expression.ConditionBuilder
	if filter.Type != nil {
		conds = append(conds, expression.Name("Type").Equal(expression.Value(string(*filter.Type))))
	}
	if filter.Origin != nil {
		conds = append(conds, expression.Name("Origin").Equal(expression.Value(string(*filter.Origin))))
	}

	items, err := queryInto[conceptItem](ctx, r.s, ownerID, prefixConcept, allOf(conds))
	if err != nil {
		return nil, 0, classify("list concepts", err)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].LabelKey != items[j].LabelKey {
			return items[i].LabelKey < items[j].LabelKey
		}
		return items[i].ID < items[j].ID
	})

	pageItems := paginate(items, params)
	out := make([]*entities.Concept, 0, len(pageItems))
	for _, item := range pageItems {
		c, err := entities.ReconstructConcept(item.state())
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, len(items), nil
}
