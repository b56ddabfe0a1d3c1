package postgres

import (
	"context"

	"bobbin-backend/application/ports"
	"bobbin-backend/domain/core/entities"
	"bobbin-backend/domain/core/valueobjects"
	"bobbin-backend/pkg/common"
	pkgerrors "bobbin-backend/pkg/errors"

	"gorm.io/gorm"
)

type conceptRepo struct{ s *Store }

func (r conceptRepo) Create(ctx context.Context, concept *entities.Concept) error {
	row := newConceptRow(concept.State())
	return r.s.transaction(ctx, "create concept", func(tx *gorm.DB) error {
		if err := checkConceptKey(tx, row); err != nil {
			return err
		}
		return tx.Create(&row).Error
	})
}

func (r conceptRepo) GetByID(ctx context.Context, ownerID string, id valueobjects.ID) (*entities.Concept, error) {
	var row conceptRow
	if err := r.s.conn(ctx).Where("id = ? AND owner_id = ?", id.String(), ownerID).Take(&row).Error; err != nil {
		return nil, translateError("get concept", notFound(err, "concept", id.String()))
	}
	return entities.ReconstructConcept(row.state())
}

func (r conceptRepo) GetByIDs(ctx context.Context, ownerID string, ids []valueobjects.ID) ([]*entities.Concept, error) {
	if len(ids) == 0 {
		return []*entities.Concept{}, nil
	}
	var rows []conceptRow
	if err := r.s.conn(ctx).
		Where("owner_id = ? AND id IN ?", ownerID, valueobjects.IDStrings(ids)).
		Find(&rows).Error; err != nil {
		return nil, translateError("get concepts", err)
	}

	byID := make(map[string]conceptRow, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}
	out := make([]*entities.Concept, 0, len(rows))
	for _, id := range ids {
		row, ok := byID[id.String()]
		if !ok {
			continue
		}
		c, err := entities.ReconstructConcept(row.state())
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (r conceptRepo) FindByLabel(ctx context.Context, ownerID string, conceptType valueobjects.ConceptType, label string) (*entities.Concept, error) {
	var row conceptRow
	err := r.s.conn(ctx).
		Where("owner_id = ? AND unique_key = ?", ownerID, entities.ConceptUniqueKey(conceptType, label)).
		Take(&row).Error
	if err != nil {
		return nil, translateError("find concept", notFound(err, "concept", label))
	}
	return entities.ReconstructConcept(row.state())
}

func (r conceptRepo) Update(ctx context.Context, concept *entities.Concept, expectedVersion int) error {
	row := newConceptRow(concept.State())
	return r.s.transaction(ctx, "update concept", func(tx *gorm.DB) error {
		if err := checkConceptKey(tx, row); err != nil {
			return err
		}
		return conditionalUpdate(tx, &conceptRow{}, "concept", row.OwnerID, row.ID, expectedVersion, map[string]interface{}{
			"unique_key":  row.UniqueKey,
			"type":        row.Type,
			"label":       row.Label,
			"label_key":   row.LabelKey,
			"description": row.Description,
			"metadata":    row.Metadata,
			"updated_at":  row.UpdatedAt,
			"version":     row.Version,
		})
	})
}

func (r conceptRepo) Delete(ctx context.Context, ownerID string, id valueobjects.ID) ([]valueobjects.ID, error) {
	var removed []valueobjects.ID
	err := r.s.transaction(ctx, "delete concept", func(tx *gorm.DB) error {
		var found []string
		if err := tx.Model(&conceptRow{}).Clauses(lockExclusive).
			Where("id = ? AND owner_id = ?", id.String(), ownerID).
			Pluck("id", &found).Error; err != nil {
			return err
		}
		if len(found) == 0 {
			return pkgerrors.NewNotFoundError("concept", id.String())
		}

		var err error
		removed, err = deleteConcept(tx, ownerID, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

func (r conceptRepo) List(ctx context.Context, ownerID string, filter ports.ConceptFilter, params common.PaginationParams) ([]*entities.Concept, int, error) {
	query := r.s.conn(ctx).Model(&conceptRow{}).Where("owner_id = ?", ownerID)
	if filter.Type != nil {
		query = query.Where("type = ?", string(*filter.Type))
	}
	if filter.Origin != nil {
		query = query.Where("origin = ?", string(*filter.Origin))
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translateError("count concepts", err)
	}

	var rows []conceptRow
	if err := page(query.Order("label_key ASC").Order("id ASC"), params).Find(&rows).Error; err != nil {
		return nil, 0, translateError("list concepts", err)
	}

	out := make([]*entities.Concept, 0, len(rows))
	for _, row := range rows {
		c, err := entities.ReconstructConcept(row.state())
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, int(total), nil
}

// checkConceptKey reports a conflict when another concept of the owner
// already holds row's type and label
func checkConceptKey(tx *gorm.DB, row conceptRow) error {
	var existing []string
	if err := tx.Model(&conceptRow{}).
		Where("owner_id = ? AND unique_key = ? AND id <> ?", row.OwnerID, row.UniqueKey, row.ID).
		Limit(1).
		Pluck("id", &existing).Error; err != nil {
		return err
	}
	if len(existing) > 0 {
		return pkgerrors.NewConflictError("a concept with this type and label already exists").
			WithDetail("existing_id", existing[0])
	}
	return nil
}

// deleteConcept removes the concept, its connections and every reference
// to it. It returns the removed connection ids.
func deleteConcept(tx *gorm.DB, owner string, id valueobjects.ID) ([]valueobjects.ID, error) {
	var connIDs []string
	if err := touching(tx.Model(&connectionRow{}).Where("owner_id = ?", owner), valueobjects.ConceptEndpoint(id)).
		Order("id ASC").
		Pluck("id", &connIDs).Error; err != nil {
		return nil, err
	}
	if len(connIDs) > 0 {
		if err := tx.Where("owner_id = ? AND id IN ?", owner, connIDs).Delete(&connectionRow{}).Error; err != nil {
			return nil, err
		}
	}
	if err := tx.Where("owner_id = ? AND concept_id = ?", owner, id.String()).Delete(&artifactConceptRow{}).Error; err != nil {
		return nil, err
	}
	if err := tx.Where("owner_id = ? AND ref_kind = ? AND ref_id = ?", owner, refConcept, id.String()).
		Delete(&conversationRefRow{}).Error; err != nil {
		return nil, err
	}
	if err := tx.Where("owner_id = ? AND id = ?", owner, id.String()).Delete(&conceptRow{}).Error; err != nil {
		return nil, err
	}

	removed := make([]valueobjects.ID, 0, len(connIDs))
	for _, cid := range connIDs {
		parsed, err := valueobjects.ParseID("connection_id", cid)
		if err != nil {
			return nil, err
		}
		removed = append(removed, parsed)
	}
	return removed, nil
}
