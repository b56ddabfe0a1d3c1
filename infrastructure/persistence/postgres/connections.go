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

type connectionRepo struct{ s *Store }

func (r connectionRepo) Create(ctx context.Context, connection *entities.Connection) error {
	row := newConnectionRow(connection)
	return r.s.transaction(ctx, "create connection", func(tx *gorm.DB) error {
		for _, ep := range []struct{ field, kind, id string }{
			{"source", row.SourceKind, row.SourceID},
			{"target", row.TargetKind, row.TargetID},
		} {
			ok, err := endpointExists(tx, row.OwnerID, ep.kind, ep.id)
			if err != nil {
				return err
			}
			if !ok {
				return pkgerrors.NewFieldValidationError(ep.field, ep.kind+" "+ep.id+" does not exist")
			}
		}
		if err := checkDuplicateKey(tx, row); err != nil {
			return err
		}
		if err := tx.Create(&row).Error; err != nil {
			if pkgerrors.IsConflict(translateError("create connection", err)) {
				return duplicateConnection("").WithCause(err)
			}
			return err
		}
		return nil
	})
}

func (r connectionRepo) GetByID(ctx context.Context, ownerID string, id valueobjects.ID) (*entities.Connection, error) {
	var row connectionRow
	if err := r.s.conn(ctx).Where("id = ? AND owner_id = ?", id.String(), ownerID).Take(&row).Error; err != nil {
		return nil, translateError("get connection", notFound(err, "connection", id.String()))
	}
	return entities.ReconstructConnection(row.state())
}

func (r connectionRepo) FindDuplicate(ctx context.Context, ownerID, duplicateKey string) (*entities.Connection, error) {
	var row connectionRow
	err := r.s.conn(ctx).
		Where("owner_id = ? AND duplicate_key = ?", ownerID, duplicateKey).
		Take(&row).Error
	if err != nil {
		return nil, translateError("find duplicate connection", notFound(err, "connection", duplicateKey))
	}
	return entities.ReconstructConnection(row.state())
}

func (r connectionRepo) ListByEndpoint(ctx context.Context, ownerID string, endpoint valueobjects.Endpoint) ([]*entities.Connection, error) {
	var rows []connectionRow
	if err := touching(r.s.conn(ctx).Where("owner_id = ?", ownerID), endpoint).
		Order("created_at DESC").Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, translateError("list connections by endpoint", err)
	}
	return reconstructConnections(rows)
}

func (r connectionRepo) Update(ctx context.Context, connection *entities.Connection, expectedVersion int) error {
	row := newConnectionRow(connection)
	return r.s.transaction(ctx, "update connection", func(tx *gorm.DB) error {
		if err := checkDuplicateKey(tx, row); err != nil {
			return err
		}
		return conditionalUpdate(tx, &connectionRow{}, "connection", row.OwnerID, row.ID, expectedVersion, map[string]interface{}{
			"duplicate_key": row.DuplicateKey,
			"kind":          row.Kind,
			"label":         row.Label,
			"strength":      row.Strength,
			"directed":      row.Directed,
			"status":        row.Status,
			"confidence":    row.Confidence,
			"reason":        row.Reason,
			"updated_at":    row.UpdatedAt,
			"version":       row.Version,
		})
	})
}

func (r connectionRepo) Delete(ctx context.Context, ownerID string, id valueobjects.ID) error {
	result := r.s.conn(ctx).Where("id = ? AND owner_id = ?", id.String(), ownerID).Delete(&connectionRow{})
	if result.Error != nil {
		return translateError("delete connection", result.Error)
	}
	if result.RowsAffected == 0 {
		return pkgerrors.NewNotFoundError("connection", id.String())
	}
	return nil
}

func (r connectionRepo) List(ctx context.Context, ownerID string, filter ports.ConnectionFilter, params common.PaginationParams) ([]*entities.Connection, int, error) {
	query := r.s.conn(ctx).Model(&connectionRow{}).Where("owner_id = ?", ownerID)
	if filter.Endpoint != nil {
		query = touching(query, *filter.Endpoint)
	}
	if filter.Kind != nil {
		query = query.Where("kind = ?", string(*filter.Kind))
	}
	if filter.Status != nil {
		query = query.Where("status = ?", string(*filter.Status))
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translateError("count connections", err)
	}

	var rows []connectionRow
	if err := page(query.Order("created_at "+direction(params)).Order("id ASC"), params).
		Find(&rows).Error; err != nil {
		return nil, 0, translateError("list connections", err)
	}

	out, err := reconstructConnections(rows)
	if err != nil {
		return nil, 0, err
	}
	return out, int(total), nil
}

// checkDuplicateKey reports a conflict when another connection of the
// owner already holds row's duplicate key
func checkDuplicateKey(tx *gorm.DB, row connectionRow) error {
	var existing []string
	if err := tx.Model(&connectionRow{}).
		Where("owner_id = ? AND duplicate_key = ? AND id <> ?", row.OwnerID, row.DuplicateKey, row.ID).
		Limit(1).
		Pluck("id", &existing).Error; err != nil {
		return err
	}
	if len(existing) > 0 {
		return duplicateConnection(existing[0])
	}
	return nil
}

func duplicateConnection(existingID string) *pkgerrors.AppError {
	err := pkgerrors.NewConflictError("connection already exists").WithCode("DUPLICATE_CONNECTION")
	if existingID != "" {
		err = err.WithDetail("existing_id", existingID)
	}
	return err
}

func reconstructConnections(rows []connectionRow) ([]*entities.Connection, error) {
	out := make([]*entities.Connection, 0, len(rows))
	for _, row := range rows {
		c, err := entities.ReconstructConnection(row.state())
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
