// Package postgres implements the graph store on a relational database
// through gorm. Production runs on PostgreSQL; tests run the same code on
// sqlite.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bobbin-backend/application/ports"
	"bobbin-backend/domain/core/valueobjects"
	"bobbin-backend/pkg/common"
	pkgerrors "bobbin-backend/pkg/errors"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"
)

// Options tune the connection pool
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Store is the gorm-backed graph store. One Store is shared by every
// request; each write runs in its own transaction.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

var _ ports.GraphStore = (*Store)(nil)

// Open connects to PostgreSQL
func Open(dsn string, opts Options, logger *zap.Logger) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), GormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql handle: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	return NewStore(db, logger), nil
}

// GormConfig is shared by the PostgreSQL and test connections
func GormConfig() *gorm.Config {
	return &gorm.Config{
		TranslateError:                           true,
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLogger.Default.LogMode(gormLogger.Silent),
		NowFunc:                                  func() time.Time { return time.Now().UTC() },
	}
}

// NewStore wraps an open gorm handle
func NewStore(db *gorm.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger.Named("postgres")}
}

// Migrate creates or updates the schema
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(allModels()...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	s.logger.Info("schema migrated")
	return nil
}

// Close releases the connection pool
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Artifacts() ports.ArtifactRepository         { return artifactRepo{s} }
func (s *Store) Concepts() ports.ConceptRepository           { return conceptRepo{s} }
func (s *Store) Connections() ports.ConnectionRepository     { return connectionRepo{s} }
func (s *Store) Conversations() ports.ConversationRepository { return conversationRepo{s} }

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return translateError("ping", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return pkgerrors.NewUnavailableError("postgres").WithCause(err)
	}
	return nil
}

func (s *Store) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// transaction runs fn in a transaction; any error rolls it back
func (s *Store) transaction(ctx context.Context, op string, fn func(tx *gorm.DB) error) error {
	err := s.conn(ctx).Transaction(fn)
	return translateError(op, err)
}

// A write that references a row holds it FOR SHARE until commit. A delete
// holds the row FOR UPDATE before planning its cascade, so a concurrent
// reference is either seen by the cascade or finds the row gone. sqlite
// drops the clause.
var (
	lockShared    = clause.Locking{Strength: "SHARE"}
	lockExclusive = clause.Locking{Strength: "UPDATE"}
)

// notFound turns gorm's missing-row error into a NotFound for resource
func notFound(err error, resource, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.NewNotFoundError(resource, id).WithCause(err)
	}
	return err
}

// requireOwned returns a validation error naming the first id in ids that
// is not a row of model owned by owner
func requireOwned(tx *gorm.DB, model interface{}, resource, field, owner string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	var found []string
	if err := tx.Model(model).
		Clauses(lockShared).
		Where("owner_id = ? AND id IN ?", owner, ids).
		Pluck("id", &found).Error; err != nil {
		return err
	}
	present := make(map[string]struct{}, len(found))
	for _, id := range found {
		present[id] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := present[id]; !ok {
			return pkgerrors.NewFieldValidationError(field, resource+" "+id+" does not exist")
		}
	}
	return nil
}

func requireConcepts(tx *gorm.DB, owner, field string, ids []string) error {
	return requireOwned(tx, &conceptRow{}, "concept", field, owner, ids)
}

func requireArtifacts(tx *gorm.DB, owner, field string, ids []string) error {
	return requireOwned(tx, &artifactRow{}, "artifact", field, owner, ids)
}

// endpointExists checks the endpoint row and holds it FOR SHARE for the
// rest of the transaction
func endpointExists(tx *gorm.DB, owner, kind, id string) (bool, error) {
	var model interface{}
	switch valueobjects.EndpointKind(kind) {
	case valueobjects.EndpointArtifact:
		model = &artifactRow{}
	case valueobjects.EndpointConcept:
		model = &conceptRow{}
	default:
		return false, nil
	}
	var found []string
	if err := tx.Model(model).Clauses(lockShared).Where("owner_id = ? AND id = ?", owner, id).Pluck("id", &found).Error; err != nil {
		return false, err
	}
	return len(found) > 0, nil
}

// conditionalUpdate applies updates when the stored version matches and
// distinguishes a missing row from a lost race.
func conditionalUpdate(tx *gorm.DB, model interface{}, resource, owner, id string, expectedVersion int, updates map[string]interface{}) error {
	result := tx.Model(model).
		Where("id = ? AND owner_id = ? AND version = ?", id, owner, expectedVersion).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 1 {
		return nil
	}

	var actual []int
	if err := tx.Model(model).Where("id = ? AND owner_id = ?", id, owner).Pluck("version", &actual).Error; err != nil {
		return err
	}
	if len(actual) == 0 {
		return pkgerrors.NewNotFoundError(resource, id)
	}
	return pkgerrors.NewVersionConflictError(resource, id, expectedVersion).
		WithDetail("actual_version", actual[0])
}

// touching restricts a connection query to rows with ep as an endpoint
func touching(tx *gorm.DB, ep valueobjects.Endpoint) *gorm.DB {
	kind, id := string(ep.Kind()), ep.ID().String()
	return tx.Where("((source_kind = ? AND source_id = ?) OR (target_kind = ? AND target_id = ?))", kind, id, kind, id)
}

// page applies limit and offset for a listing
func page(tx *gorm.DB, params common.PaginationParams) *gorm.DB {
	if params.PageSize <= 0 {
		return tx
	}
	if params.Page <= 0 {
		params.Page = 1
	}
	return tx.Limit(params.PageSize).Offset(params.CalculateOffset())
}

func direction(params common.PaginationParams) string {
	if params.Order == "asc" {
		return "ASC"
	}
	return "DESC"
}
