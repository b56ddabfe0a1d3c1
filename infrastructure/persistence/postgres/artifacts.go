package postgres

import (
	"context"

	"bobbin-backend/domain/core/aggregates"
	"bobbin-backend/domain/core/entities"
	"bobbin-backend/domain/core/valueobjects"
	"bobbin-backend/pkg/common"

	"gorm.io/gorm"
)

type artifactRepo struct{ s *Store }

func (r artifactRepo) Create(ctx context.Context, artifact *entities.Artifact) error {
	state := artifact.State()
	return r.s.transaction(ctx, "create artifact", func(tx *gorm.DB) error {
		if err := requireConcepts(tx, state.OwnerID, "concept_ids", state.ConceptIDs); err != nil {
			return err
		}
		row := newArtifactRow(state)
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		if links := artifactConceptRows(state); len(links) > 0 {
			return tx.Create(&links).Error
		}
		return nil
	})
}

func (r artifactRepo) GetByID(ctx context.Context, ownerID string, id valueobjects.ID) (*entities.Artifact, error) {
	var row artifactRow
	err := r.s.conn(ctx).Where("id = ? AND owner_id = ?", id.String(), ownerID).Take(&row).Error
	if err != nil {
		return nil, translateError("get artifact", notFound(err, "artifact", id.String()))
	}
	out, err := r.reconstruct(r.s.conn(ctx), []artifactRow{row})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (r artifactRepo) GetByIDs(ctx context.Context, ownerID string, ids []valueobjects.ID) ([]*entities.Artifact, error) {
	if len(ids) == 0 {
		return []*entities.Artifact{}, nil
	}
	var rows []artifactRow
	if err := r.s.conn(ctx).
		Where("owner_id = ? AND id IN ?", ownerID, valueobjects.IDStrings(ids)).
		Find(&rows).Error; err != nil {
		return nil, translateError("get artifacts", err)
	}

	// keep the caller's order
	byID := make(map[string]artifactRow, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}
	ordered := make([]artifactRow, 0, len(rows))
	for _, id := range ids {
		if row, ok := byID[id.String()]; ok {
			ordered = append(ordered, row)
		}
	}
	return r.reconstruct(r.s.conn(ctx), ordered)
}

func (r artifactRepo) Update(ctx context.Context, artifact *entities.Artifact, expectedVersion int) error {
	state := artifact.State()
	return r.s.transaction(ctx, "update artifact", func(tx *gorm.DB) error {
		row := newArtifactRow(state)
		err := conditionalUpdate(tx, &artifactRow{}, "artifact", state.OwnerID, state.ID, expectedVersion, map[string]interface{}{
			"kind":       row.Kind,
			"title":      row.Title,
			"body":       row.Body,
			"source_url": row.SourceURL,
			"metadata":   row.Metadata,
			"updated_at": row.UpdatedAt,
			"version":    row.Version,
		})
		if err != nil {
			return err
		}
		if err := requireConcepts(tx, state.OwnerID, "concept_ids", state.ConceptIDs); err != nil {
			return err
		}
		if err := tx.Where("artifact_id = ?", state.ID).Delete(&artifactConceptRow{}).Error; err != nil {
			return err
		}
		if links := artifactConceptRows(state); len(links) > 0 {
			return tx.Create(&links).Error
		}
		return nil
	})
}

func (r artifactRepo) Delete(ctx context.Context, ownerID string, id valueobjects.ID) (*aggregates.RemovalPlan, error) {
	var plan *aggregates.RemovalPlan
	err := r.s.transaction(ctx, "delete artifact", func(tx *gorm.DB) error {
		var row artifactRow
		if err := tx.Clauses(lockExclusive).Where("id = ? AND owner_id = ?", id.String(), ownerID).Take(&row).Error; err != nil {
			return notFound(err, "artifact", id.String())
		}

		var err error
		plan, err = r.planRemoval(tx, row)
		if err != nil {
			return err
		}

		if len(plan.Connections) > 0 {
			if err := tx.Where("owner_id = ? AND id IN ?", ownerID, valueobjects.IDStrings(plan.Connections)).
				Delete(&connectionRow{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("artifact_id = ?", row.ID).Delete(&artifactConceptRow{}).Error; err != nil {
			return err
		}
		if err := tx.Where("owner_id = ? AND ref_kind = ? AND ref_id = ?", ownerID, refArtifact, row.ID).
			Delete(&conversationRefRow{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&row).Error; err != nil {
			return err
		}

		for _, conceptID := range plan.OrphanedConcepts {
			removed, err := deleteConcept(tx, ownerID, conceptID)
			if err != nil {
				return err
			}
			plan.Connections = append(plan.Connections, removed...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return plan, nil
}

func (r artifactRepo) List(ctx context.Context, ownerID string, params common.PaginationParams) ([]*entities.Artifact, int, error) {
	query := r.s.conn(ctx).Model(&artifactRow{}).Where("owner_id = ?", ownerID).Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translateError("count artifacts", err)
	}

	var rows []artifactRow
	if err := page(query.Order("created_at "+direction(params)).Order("id ASC"), params).
		Find(&rows).Error; err != nil {
		return nil, 0, translateError("list artifacts", err)
	}

	out, err := r.reconstruct(r.s.conn(ctx), rows)
	if err != nil {
		return nil, 0, err
	}
	return out, int(total), nil
}

// reconstruct loads the relation lists for rows and rebuilds the entities
func (r artifactRepo) reconstruct(tx *gorm.DB, rows []artifactRow) ([]*entities.Artifact, error) {
	out := make([]*entities.Artifact, 0, len(rows))
	if len(rows) == 0 {
		return out, nil
	}

	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	var links []artifactConceptRow
	if err := tx.Where("artifact_id IN ?", ids).
		Order("artifact_id, position").
		Find(&links).Error; err != nil {
		return nil, translateError("load artifact concepts", err)
	}
	conceptIDs := make(map[string][]string, len(rows))
	for _, link := range links {
		conceptIDs[link.ArtifactID] = append(conceptIDs[link.ArtifactID], link.ConceptID)
	}

	for _, row := range rows {
		ids := conceptIDs[row.ID]
		if ids == nil {
			ids = []string{}
		}
		a, err := entities.ReconstructArtifact(row.state(ids))
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// planRemoval builds the cascade for an artifact delete inside tx
func (r artifactRepo) planRemoval(tx *gorm.DB, row artifactRow) (*aggregates.RemovalPlan, error) {
	loaded, err := r.reconstruct(tx, []artifactRow{row})
	if err != nil {
		return nil, err
	}
	artifact := loaded[0]
	anchor := valueobjects.ArtifactEndpoint(artifact.ID())

	// Related concepts are orphan candidates, so they are locked before the
	// usage checks run.
	var conceptRows []conceptRow
	if ids := valueobjects.IDStrings(artifact.ConceptIDs()); len(ids) > 0 {
		if err := tx.Clauses(lockExclusive).Where("owner_id = ? AND id IN ?", row.OwnerID, ids).Order("id ASC").Find(&conceptRows).Error; err != nil {
			return nil, err
		}
	}
	concepts := make([]*entities.Concept, 0, len(conceptRows))
	for _, cr := range conceptRows {
		c, err := entities.ReconstructConcept(cr.state())
		if err != nil {
			return nil, err
		}
		concepts = append(concepts, c)
	}

	var connRows []connectionRow
	if err := touching(tx.Where("owner_id = ?", row.OwnerID), anchor).Find(&connRows).Error; err != nil {
		return nil, err
	}
	connections, err := reconstructConnections(connRows)
	if err != nil {
		return nil, err
	}

	graph, err := aggregates.NewArtifactGraph(artifact, concepts, connections)
	if err != nil {
		return nil, err
	}

	var checkErr error
	plan := graph.PlanRemoval(func(conceptID valueobjects.ID) bool {
		used, err := conceptUsedElsewhere(tx, row.OwnerID, row.ID, conceptID)
		if err != nil && checkErr == nil {
			checkErr = err
		}
		return used || err != nil
	})
	if checkErr != nil {
		return nil, checkErr
	}
	return &plan, nil
}

// conceptUsedElsewhere reports whether a concept is related to another
// artifact or joined by a connection that does not touch the artifact
func conceptUsedElsewhere(tx *gorm.DB, owner, artifactID string, conceptID valueobjects.ID) (bool, error) {
	var count int64
	if err := tx.Model(&artifactConceptRow{}).
		Where("owner_id = ? AND concept_id = ? AND artifact_id <> ?", owner, conceptID.String(), artifactID).
		Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return true, nil
	}

	artifactKind := string(valueobjects.EndpointArtifact)
	err := touching(tx.Model(&connectionRow{}).Where("owner_id = ?", owner), valueobjects.ConceptEndpoint(conceptID)).
		Where("NOT ((source_kind = ? AND source_id = ?) OR (target_kind = ? AND target_id = ?))",
			artifactKind, artifactID, artifactKind, artifactID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
