// Package idempotency remembers responses to requests that carry an
// Idempotency-Key header so a replayed request gets the first answer back.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	"bobbin-backend/application/ports"
	pkgerrors "bobbin-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "IDEMPOTENCY#"

// pendingMarker is what a reserved key holds in Redis until its response
// is stored
const pendingMarker = "pending"

type entry struct {
	response  ports.StoredResponse
	pending   bool
	expiresAt time.Time
}

// MemoryStore keeps responses in process. Entries are dropped lazily once
// expired.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

var _ ports.IdempotencyStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]entry), now: time.Now}
}

// Get implements ports.IdempotencyStore
func (s *MemoryStore) Get(_ context.Context, key string) (*ports.StoredResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.live(key)
	if !ok || e.pending {
		return nil, nil
	}
	response := e.response
	response.Body = append([]byte(nil), e.response.Body...)
	return &response, nil
}

// live returns the unexpired entry for key. Callers hold mu.
func (s *MemoryStore) live(key string) (entry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return entry{}, false
	}
	if !s.now().Before(e.expiresAt) {
		delete(s.entries, key)
		return entry{}, false
	}
	return e, true
}

// Reserve implements ports.IdempotencyStore
func (s *MemoryStore) Reserve(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.live(key); ok {
		return false, nil
	}
	s.entries[key] = entry{pending: true, expiresAt: s.now().Add(ttl)}
	return true, nil
}

// Release implements ports.IdempotencyStore
func (s *MemoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok && e.pending {
		delete(s.entries, key)
	}
	return nil
}

// Put implements ports.IdempotencyStore
func (s *MemoryStore) Put(_ context.Context, key string, response *ports.StoredResponse, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *response
	stored.Body = append([]byte(nil), response.Body...)
	s.entries[key] = entry{response: stored, expiresAt: s.now().Add(ttl)}
	return nil
}

// RedisClient is the part of the go-redis client the store needs
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisStore keeps responses in Redis, expired by Redis itself
type RedisStore struct {
	client RedisClient
}

var _ ports.IdempotencyStore = (*RedisStore)(nil)

// NewRedisStore creates a store on client
func NewRedisStore(client RedisClient) *RedisStore {
	return &RedisStore{client: client}
}

// NewRedisClient parses a redis:// URL into a client
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opts), nil
}

// Get implements ports.IdempotencyStore
func (s *RedisStore) Get(ctx context.Context, key string) (*ports.StoredResponse, error) {
	raw, err := s.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.NewUnavailableError("redis").WithCause(err)
	}
	if string(raw) == pendingMarker {
		return nil, nil
	}
	var response ports.StoredResponse
	if err := json.Unmarshal(raw, &response); err != nil {
		return nil, pkgerrors.NewInternalError("corrupt idempotency record").WithCause(err)
	}
	return &response, nil
}

// Put implements ports.IdempotencyStore
func (s *RedisStore) Put(ctx context.Context, key string, response *ports.StoredResponse, ttl time.Duration) error {
	raw, err := json.Marshal(response)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, keyPrefix+key, raw, ttl).Err(); err != nil {
		return pkgerrors.NewUnavailableError("redis").WithCause(err)
	}
	return nil
}

// Reserve implements ports.IdempotencyStore with SET NX
func (s *RedisStore) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, keyPrefix+key, pendingMarker, ttl).Result()
	if err != nil {
		return false, pkgerrors.NewUnavailableError("redis").WithCause(err)
	}
	return ok, nil
}

// Release implements ports.IdempotencyStore. Only the reserving request
// writes the key while it is pending, so the read and delete do not race.
func (s *RedisStore) Release(ctx context.Context, key string) error {
	raw, err := s.client.Get(ctx, keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return pkgerrors.NewUnavailableError("redis").WithCause(err)
	}
	if raw != pendingMarker {
		return nil
	}
	if err := s.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return pkgerrors.NewUnavailableError("redis").WithCause(err)
	}
	return nil
}

// DynamoDBAPI is the part of the DynamoDB client the store needs
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DynamoDBStore keeps responses in the graph table under their own
// partition. DynamoDB's TTL sweep is lazy, so Get also checks ExpiresAt.
type DynamoDBStore struct {
	client    DynamoDBAPI
	tableName string
	now       func() time.Time
}

var _ ports.IdempotencyStore = (*DynamoDBStore)(nil)

type record struct {
	PK          string `dynamodbav:"PK"`
	SK          string `dynamodbav:"SK"`
	StatusCode  int    `dynamodbav:"StatusCode"`
	ContentType string `dynamodbav:"ContentType"`
	Body        []byte `dynamodbav:"Body"`
	Pending     bool   `dynamodbav:"Pending"`
	ExpiresAt   int64  `dynamodbav:"TTL"`
}

// NewDynamoDBStore creates a store on tableName
func NewDynamoDBStore(client DynamoDBAPI, tableName string) *DynamoDBStore {
	return &DynamoDBStore{client: client, tableName: tableName, now: time.Now}
}

func (s *DynamoDBStore) key(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: keyPrefix + key},
		"SK": &types.AttributeValueMemberS{Value: "RESPONSE"},
	}
}

// Get implements ports.IdempotencyStore
func (s *DynamoDBStore) Get(ctx context.Context, key string) (*ports.StoredResponse, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key:       s.key(key),
	})
	if err != nil {
		return nil, pkgerrors.NewUnavailableError("dynamodb").WithCause(err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var r record
	if err := attributevalue.UnmarshalMap(out.Item, &r); err != nil {
		return nil, pkgerrors.NewInternalError("corrupt idempotency record").WithCause(err)
	}
	if r.Pending || r.ExpiresAt <= s.now().Unix() {
		return nil, nil
	}
	return &ports.StoredResponse{StatusCode: r.StatusCode, ContentType: r.ContentType, Body: r.Body}, nil
}

// Reserve implements ports.IdempotencyStore with a conditional put that
// succeeds only on a missing or expired key
func (s *DynamoDBStore) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	err := s.write(ctx, record{
		PK:        keyPrefix + key,
		SK:        "RESPONSE",
		Pending:   true,
		ExpiresAt: s.now().Add(ttl).Unix(),
	}, "attribute_not_exists(PK) OR #ttl <= :now", nil)
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return false, nil
	}
	if err != nil {
		return false, pkgerrors.NewUnavailableError("dynamodb").WithCause(err)
	}
	return true, nil
}

// Put implements ports.IdempotencyStore. The first response for a key wins
// and replaces the reservation.
func (s *DynamoDBStore) Put(ctx context.Context, key string, response *ports.StoredResponse, ttl time.Duration) error {
	err := s.write(ctx, record{
		PK:          keyPrefix + key,
		SK:          "RESPONSE",
		StatusCode:  response.StatusCode,
		ContentType: response.ContentType,
		Body:        response.Body,
		ExpiresAt:   s.now().Add(ttl).Unix(),
	}, "attribute_not_exists(PK) OR #ttl <= :now OR #pending = :pending", map[string]types.AttributeValue{
		":pending": &types.AttributeValueMemberBOOL{Value: true},
	})
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return nil
	}
	if err != nil {
		return pkgerrors.NewUnavailableError("dynamodb").WithCause(err)
	}
	return nil
}

func (s *DynamoDBStore) write(ctx context.Context, r record, condition string, values map[string]types.AttributeValue) error {
	item, err := attributevalue.MarshalMap(r)
	if err != nil {
		return err
	}
	names := map[string]string{"#ttl": "TTL"}
	if values == nil {
		values = map[string]types.AttributeValue{}
	} else {
		names["#pending"] = "Pending"
	}
	values[":now"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(s.now().Unix(), 10)}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(s.tableName),
		Item:                      item,
		ConditionExpression:       aws.String(condition),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	return err
}

// Release implements ports.IdempotencyStore
func (s *DynamoDBStore) Release(ctx context.Context, key string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(s.tableName),
		Key:                 s.key(key),
		ConditionExpression: aws.String("#pending = :pending"),
		ExpressionAttributeNames: map[string]string{
			"#pending": "Pending",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pending": &types.AttributeValueMemberBOOL{Value: true},
		},
	})
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return nil
	}
	if err != nil {
		return pkgerrors.NewUnavailableError("dynamodb").WithCause(err)
	}
	return nil
}
