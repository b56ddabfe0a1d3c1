// Package dynamodb implements the graph store on a single DynamoDB table.
// Each write is one TransactWriteItems call. A write that points at an
// artifact or concept bumps that item's RefEpoch inside the transaction, and
// updates and deletes are conditional on the stored Version.
package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"bobbin-backend/application/ports"
	"bobbin-backend/pkg/common"
	pkgerrors "bobbin-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"
)

// maxTransactItems is DynamoDB's limit on actions per transaction
const maxTransactItems = 100

// maxBatchGetKeys is DynamoDB's limit on keys per BatchGetItem
const maxBatchGetKeys = 100

// API is the subset of the DynamoDB client used by the store
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	BatchGetItem(ctx context.Context, params *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

var _ API = (*dynamodb.Client)(nil)

// Store is the DynamoDB graph store
type Store struct {
	client    API
	tableName string
	logger    *zap.Logger
}

var _ ports.GraphStore = (*Store)(nil)

// NewStore creates a store on tableName
func NewStore(client API, tableName string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		client:    client,
		tableName: tableName,
		logger:    logger.Named("dynamodb"),
	}
}

func (s *Store) Artifacts() ports.ArtifactRepository         { return artifactRepo{s} }
func (s *Store) Concepts() ports.ConceptRepository           { return conceptRepo{s} }
func (s *Store) Connections() ports.ConnectionRepository     { return connectionRepo{s} }
func (s *Store) Conversations() ports.ConversationRepository { return conversationRepo{s} }

// Ping checks that the table is reachable
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.tableName)})
	if err != nil {
		return pkgerrors.NewUnavailableError("dynamodb").WithCause(err)
	}
	return nil
}

// EnsureTable creates the table with on-demand billing when it is missing
// and waits until it is active.
func (s *Store) EnsureTable(ctx context.Context, wait time.Duration) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.tableName)})
	if err == nil {
		return nil
	}
	var missing *types.ResourceNotFoundException
	if !errors.As(err, &missing) {
		return classify("describe table", err)
	}

	_, err = s.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName:   aws.String(s.tableName),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("PK"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("SK"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("PK"), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String("SK"), KeyType: types.KeyTypeRange},
		},
	})
	if err != nil {
		return classify("create table", err)
	}
	s.logger.Info("table created", zap.String("table", s.tableName))

	waiter := dynamodb.NewTableExistsWaiter(s.client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.tableName)}, wait); err != nil {
		return classify("wait for table", err)
	}
	return nil
}

// getItem reads one item with a strongly consistent read. It reports
// whether the item exists.
func (s *Store) getItem(ctx context.Context, owner, sk string, out interface{}) (bool, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            itemKey(owner, sk),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return false, err
	}
	if len(result.Item) == 0 {
		return false, nil
	}
	if err := attributevalue.UnmarshalMap(result.Item, out); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", sk, err)
	}
	return true, nil
}

// batchGet reads the items under sks. Missing items are skipped; the result
// is keyed by sort key.
func (s *Store) batchGet(ctx context.Context, owner string, sks []string) (map[string]map[string]types.AttributeValue, error) {
	found := make(map[string]map[string]types.AttributeValue, len(sks))
	seen := make(map[string]struct{}, len(sks))
	keys := make([]map[string]types.AttributeValue, 0, len(sks))
	for _, sk := range sks {
		if _, dup := seen[sk]; dup {
			continue
		}
		seen[sk] = struct{}{}
		keys = append(keys, itemKey(owner, sk))
	}

	for start := 0; start < len(keys); start += maxBatchGetKeys {
		end := start + maxBatchGetKeys
		if end > len(keys) {
			end = len(keys)
		}
		result, err := s.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{
			RequestItems: map[string]types.KeysAndAttributes{
				s.tableName: {Keys: keys[start:end], ConsistentRead: aws.Bool(true)},
			},
		})
		if err != nil {
			return nil, err
		}
		if pending := result.UnprocessedKeys[s.tableName]; len(pending.Keys) > 0 {
			return nil, pkgerrors.NewUnavailableError("dynamodb").
				WithDetail("unprocessed_keys", len(pending.Keys))
		}
		for _, item := range result.Responses[s.tableName] {
			var k struct {
				SK string `dynamodbav:"SK"`
			}
			if err := attributevalue.UnmarshalMap(item, &k); err != nil {
				return nil, err
			}
			found[k.SK] = item
		}
	}
	return found, nil
}

// query collects every item of owner whose sort key starts with prefix and
// that passes filter, following pagination to the end.
func (s *Store) query(ctx context.Context, owner, prefix string, filter *expression.ConditionBuilder) ([]map[string]types.AttributeValue, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(ownerPK(owner))).
		And(expression.KeyBeginsWith(expression.Key("SK"), prefix))
	builder := expression.NewBuilder().WithKeyCondition(keyCond)
	if filter != nil {
		builder = builder.WithFilter(*filter)
	}
	expr, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(s.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ConsistentRead:            aws.Bool(true),
	}

	var items []map[string]types.AttributeValue
	paginator := dynamodb.NewQueryPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		items = append(items, page.Items...)
	}
	return items, nil
}

// queryInto runs query and unmarshals the items into T
func queryInto[T any](ctx context.Context, s *Store, owner, prefix string, filter *expression.ConditionBuilder) ([]T, error) {
	raw, err := s.query(ctx, owner, prefix, filter)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(raw))
	if err := attributevalue.UnmarshalListOfMaps(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s items: %w", prefix, err)
	}
	return out, nil
}

// touchingFilter matches connections with ref as either endpoint
func touchingFilter(ref string) expression.ConditionBuilder {
	return expression.Name("SourceRef").Equal(expression.Value(ref)).
		Or(expression.Name("TargetRef").Equal(expression.Value(ref)))
}

// allOf joins conds with AND; nil when there are none
func allOf(conds []expression.ConditionBuilder) *expression.ConditionBuilder {
	switch len(conds) {
	case 0:
		return nil
	case 1:
		return &conds[0]
	}
	joined := expression.And(conds[0], conds[1], conds[2:]...)
	return &joined
}

// paginate slices an ordered listing
func paginate[T any](items []T, params common.PaginationParams) []T {
	if params.Page <= 0 {
		params.Page = 1
	}
	if params.PageSize <= 0 {
		return items
	}
	start := (params.Page - 1) * params.PageSize
	if start >= len(items) {
		return []T{}
	}
	end := start + params.PageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func byCreated[T any](items []T, order string, created func(T) time.Time, id func(T) string) {
	sort.Slice(items, func(i, j int) bool {
		a, b := created(items[i]), created(items[j])
		if !a.Equal(b) {
			if order == "asc" {
				return a.Before(b)
			}
			return a.After(b)
		}
		return id(items[i]) < id(items[j])
	})
}

// failure turns the old item of a failed condition into a domain error.
// old is empty when the item did not exist.
type failure func(old map[string]types.AttributeValue) error

// txn accumulates the actions of one TransactWriteItems call together with
// the meaning of each action's condition failing
type txn struct {
	s        *Store
	items    []types.TransactWriteItem
	failures []failure
}

func (s *Store) txn() *txn { return &txn{s: s} }

func buildCondition(cond *expression.ConditionBuilder, update *expression.UpdateBuilder) (expression.Expression, error) {
	builder := expression.NewBuilder()
	if cond != nil {
		builder = builder.WithCondition(*cond)
	}
	if update != nil {
		builder = builder.WithUpdate(*update)
	}
	return builder.Build()
}

// put writes item, guarded by cond when set
func (t *txn) put(item interface{}, cond *expression.ConditionBuilder, onFail failure) error {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}
	put := &types.Put{
		TableName:                           aws.String(t.s.tableName),
		Item:                                av,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	}
	if cond != nil {
		expr, err := buildCondition(cond, nil)
		if err != nil {
			return err
		}
		put.ConditionExpression = expr.Condition()
		put.ExpressionAttributeNames = expr.Names()
		put.ExpressionAttributeValues = expr.Values()
	}
	t.items = append(t.items, types.TransactWriteItem{Put: put})
	t.failures = append(t.failures, onFail)
	return nil
}

// del removes the item under key, guarded by cond when set
func (t *txn) del(owner, sk string, cond *expression.ConditionBuilder, onFail failure) error {
	del := &types.Delete{
		TableName:                           aws.String(t.s.tableName),
		Key:                                 itemKey(owner, sk),
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	}
	if cond != nil {
		expr, err := buildCondition(cond, nil)
		if err != nil {
			return err
		}
		del.ConditionExpression = expr.Condition()
		del.ExpressionAttributeNames = expr.Names()
		del.ExpressionAttributeValues = expr.Values()
	}
	t.items = append(t.items, types.TransactWriteItem{Delete: del})
	t.failures = append(t.failures, onFail)
	return nil
}

// update applies an update expression to the item under key, guarded by cond
func (t *txn) update(owner, sk string, update expression.UpdateBuilder, cond expression.ConditionBuilder, onFail failure) error {
	expr, err := buildCondition(&cond, &update)
	if err != nil {
		return err
	}
	t.items = append(t.items, types.TransactWriteItem{Update: &types.Update{
		TableName:                           aws.String(t.s.tableName),
		Key:                                 itemKey(owner, sk),
		UpdateExpression:                    expr.Update(),
		ConditionExpression:                 expr.Condition(),
		ExpressionAttributeNames:            expr.Names(),
		ExpressionAttributeValues:           expr.Values(),
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	}})
	t.failures = append(t.failures, onFail)
	return nil
}

// commit sends the accumulated actions as one transaction
func (t *txn) commit(ctx context.Context, op string) error {
	if len(t.items) == 0 {
		return nil
	}
	if len(t.items) > maxTransactItems {
		return pkgerrors.NewValidationError(fmt.Sprintf("%s touches %d items, more than one transaction allows", op, len(t.items))).
			WithCode("TRANSACTION_TOO_LARGE").
			WithDetail("items", len(t.items))
	}

	_, err := t.s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: t.items})
	if err == nil {
		return nil
	}

	var canceled *types.TransactionCanceledException
	if errors.As(err, &canceled) {
		for i, reason := range canceled.CancellationReasons {
			if aws.ToString(reason.Code) != "ConditionalCheckFailed" || i >= len(t.failures) || t.failures[i] == nil {
				continue
			}
			mapped := t.failures[i](reason.Item)
			if app := pkgerrors.GetAppError(mapped); app != nil {
				return app.WithCause(err)
			}
			return mapped
		}
		for _, reason := range canceled.CancellationReasons {
			if aws.ToString(reason.Code) == "TransactionConflict" {
				return pkgerrors.NewConflictError("concurrent write").WithCause(err)
			}
		}
	}
	return classify(op, err)
}

var (
	notExists = expression.AttributeNotExists(expression.Name("PK"))
	exists    = expression.AttributeExists(expression.Name("PK"))
)

func versionIs(v int) expression.ConditionBuilder {
	return expression.Name("Version").Equal(expression.Value(v))
}

// unchangedSince holds when neither the version nor the reference epoch moved
// after the item was read. Every write that points at an artifact or concept
// bumps its epoch, so a delete planned on a stale snapshot fails.
func unchangedSince(version, epoch int) expression.ConditionBuilder {
	cond := expression.AttributeNotExists(expression.Name("RefEpoch"))
	if epoch > 0 {
		cond = expression.Name("RefEpoch").Equal(expression.Value(epoch))
	}
	return versionIs(version).And(cond)
}

// versionFailure reports NotFound when the item is gone and a version
// conflict otherwise
func versionFailure(resource, id string, expected int) failure {
	return func(old map[string]types.AttributeValue) error {
		if len(old) == 0 {
			return pkgerrors.NewNotFoundError(resource, id)
		}
		var stored struct {
			Version int `dynamodbav:"Version"`
		}
		if err := attributevalue.UnmarshalMap(old, &stored); err != nil {
			return pkgerrors.NewVersionConflictError(resource, id, expected)
		}
		return pkgerrors.NewVersionConflictError(resource, id, expected).
			WithDetail("actual_version", stored.Version)
	}
}

func missingReference(field, resource, id string) failure {
	return func(map[string]types.AttributeValue) error {
		return pkgerrors.NewFieldValidationError(field, resource+" "+id+" does not exist")
	}
}

func alreadyExists(resource string) failure {
	return func(map[string]types.AttributeValue) error {
		return pkgerrors.NewConflictError(resource + " already exists")
	}
}

func goneOrChanged(resource, id string) failure {
	return func(old map[string]types.AttributeValue) error {
		if len(old) == 0 {
			return pkgerrors.NewNotFoundError(resource, id)
		}
		return pkgerrors.NewConflictError(resource + " " + id + " was modified concurrently")
	}
}

// guardTarget reads the id reserved by a guard item
func guardTarget(old map[string]types.AttributeValue) string {
	var g guardItem
	if err := attributevalue.UnmarshalMap(old, &g); err != nil {
		return ""
	}
	return g.TargetID
}

// reference bumps the reference epoch of the item under key, failing when
// the item is gone
func (t *txn) reference(owner, sk string, onFail failure) error {
	bump := expression.Add(expression.Name("RefEpoch"), expression.Value(1))
	return t.update(owner, sk, bump, exists, onFail)
}

// requireAll references every id under prefix
func (t *txn) requireAll(owner, prefix, field, resource string, ids []string) error {
	for _, id := range ids {
		if err := t.reference(owner, prefix+id, missingReference(field, resource, id)); err != nil {
			return err
		}
	}
	return nil
}

// classify maps DynamoDB API failures onto the error taxonomy, keeping the
// original error as the cause
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if pkgerrors.GetAppError(err) != nil {
		return err
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ConditionalCheckFailedException", "TransactionConflictException", "TransactionCanceledException":
			return pkgerrors.NewConflictError(op + ": condition failed").WithCause(err)
		case "ProvisionedThroughputExceededException", "ThrottlingException", "RequestLimitExceeded",
			"ResourceNotFoundException", "ServiceUnavailable", "InternalServerError":
			return pkgerrors.NewUnavailableError("dynamodb").WithCause(err)
		case "ValidationException":
			return pkgerrors.NewDatabaseError(op, err)
		}
	}
	return pkgerrors.Classify(op, err)
}
