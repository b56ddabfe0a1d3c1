package idempotency

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"bobbin-backend/application/ports"
	pkgerrors "bobbin-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var created = &ports.StoredResponse{StatusCode: 201, ContentType: "application/json", Body: []byte(`{"id":"a1"}`)}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemoryStore()
	s.now = func() time.Time { return now }

	got, err := s.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, s.Put(ctx, "k1", created, time.Minute))
	got, err = s.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, created, got)

	got.Body[0] = 'X'
	again, _ := s.Get(ctx, "k1")
	assert.Equal(t, byte('{'), again.Body[0], "callers get copies")

	now = now.Add(time.Minute)
	got, err = s.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStore_Reservations(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemoryStore()
	s.now = func() time.Time { return now }

	ok, err := s.Reserve(ctx, "k1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Reserve(ctx, "k1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "a reserved key cannot be claimed twice")

	got, err := s.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Nil(t, got, "a reservation is not a response")

	require.NoError(t, s.Release(ctx, "k1"))
	ok, _ = s.Reserve(ctx, "k1", time.Minute)
	assert.True(t, ok, "released keys can be reserved again")

	require.NoError(t, s.Put(ctx, "k1", created, time.Hour))
	require.NoError(t, s.Release(ctx, "k1"))
	got, _ = s.Get(ctx, "k1")
	assert.Equal(t, created, got, "release keeps a stored response")
	ok, _ = s.Reserve(ctx, "k1", time.Minute)
	assert.False(t, ok)

	ok, _ = s.Reserve(ctx, "k2", time.Minute)
	require.True(t, ok)
	now = now.Add(time.Minute)
	ok, _ = s.Reserve(ctx, "k2", time.Minute)
	assert.True(t, ok, "an abandoned reservation expires")
}

type fakeRedis struct {
	values map[string]string
	ttls   map[string]time.Duration
	err    error
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd {
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	f.values[key] = string(value.([]byte))
	f.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value interface{}, ttl time.Duration) *redis.BoolCmd {
	if f.err != nil {
		return redis.NewBoolResult(false, f.err)
	}
	if _, ok := f.values[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.values[key] = value.(string)
	f.ttls[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	var n int64
	for _, k := range keys {
		if _, ok := f.values[k]; ok {
			delete(f.values, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	client := &fakeRedis{values: map[string]string{}, ttls: map[string]time.Duration{}}
	s := NewRedisStore(client)

	got, err := s.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, s.Put(ctx, "k1", created, time.Hour))
	assert.Equal(t, time.Hour, client.ttls["IDEMPOTENCY#k1"])

	got, err = s.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, created, got)

	client.err = errors.New("connection refused")
	_, err = s.Get(ctx, "k1")
	assert.Equal(t, pkgerrors.ErrorTypeUnavailable, pkgerrors.TypeOf(err))
	assert.Equal(t, pkgerrors.ErrorTypeUnavailable, pkgerrors.TypeOf(s.Put(ctx, "k2", created, time.Hour)))
}

func TestRedisStore_Reservations(t *testing.T) {
	ctx := context.Background()
	client := &fakeRedis{values: map[string]string{}, ttls: map[string]time.Duration{}}
	s := NewRedisStore(client)

	ok, err := s.Reserve(ctx, "k1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, time.Minute, client.ttls["IDEMPOTENCY#k1"])

	ok, err = s.Reserve(ctx, "k1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := s.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Nil(t, got, "the pending marker is not a response")

	require.NoError(t, s.Release(ctx, "k1"))
	assert.NotContains(t, client.values, "IDEMPOTENCY#k1")

	require.NoError(t, s.Put(ctx, "k1", created, time.Hour))
	require.NoError(t, s.Release(ctx, "k1"))
	got, err = s.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, created, got, "release keeps a stored response")

	client.err = errors.New("connection refused")
	_, err = s.Reserve(ctx, "k2", time.Minute)
	assert.Equal(t, pkgerrors.ErrorTypeUnavailable, pkgerrors.TypeOf(err))
}

type mockDynamo struct {
	mock.Mock
}

func (m *mockDynamo) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.GetItemOutput)
	return out, args.Error(1)
}

func (m *mockDynamo) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.DeleteItemOutput)
	return out, args.Error(1)
}

func (m *mockDynamo) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.PutItemOutput)
	return out, args.Error(1)
}

func TestDynamoDBStore(t *testing.T) {
	ctx := context.Background()
	api := &mockDynamo{}
	defer api.AssertExpectations(t)
	s := NewDynamoDBStore(api, "bobbin")
	s.now = func() time.Time { return time.Unix(1000, 0) }

	live, err := attributevalue.MarshalMap(record{PK: "IDEMPOTENCY#k1", SK: "RESPONSE", StatusCode: 201, ContentType: "application/json", Body: created.Body, ExpiresAt: 2000})
	require.NoError(t, err)
	stale, err := attributevalue.MarshalMap(record{PK: "IDEMPOTENCY#k2", SK: "RESPONSE", StatusCode: 201, ExpiresAt: 999})
	require.NoError(t, err)

	forKey := func(key string) interface{} {
		return mock.MatchedBy(func(in *dynamodb.GetItemInput) bool {
			return in.Key["PK"].(*types.AttributeValueMemberS).Value == "IDEMPOTENCY#"+key
		})
	}
	api.On("GetItem", mock.Anything, forKey("k1")).Return(&dynamodb.GetItemOutput{Item: live}, nil).Once()
	api.On("GetItem", mock.Anything, forKey("k2")).Return(&dynamodb.GetItemOutput{Item: stale}, nil).Once()
	api.On("GetItem", mock.Anything, forKey("k3")).Return(&dynamodb.GetItemOutput{}, nil).Once()

	got, err := s.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, created, got)

	got, err = s.Get(ctx, "k2")
	require.NoError(t, err)
	assert.Nil(t, got, "expired but not yet swept")

	got, err = s.Get(ctx, "k3")
	require.NoError(t, err)
	assert.Nil(t, got)

	api.On("PutItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.PutItemInput) bool {
		return aws.ToString(in.TableName) == "bobbin" && in.ConditionExpression != nil
	})).Return(nil, &types.ConditionalCheckFailedException{Message: aws.String("exists")}).Once()
	assert.NoError(t, s.Put(ctx, "k1", created, time.Hour), "first response wins")
}

func TestDynamoDBStore_Reservations(t *testing.T) {
	ctx := context.Background()
	api := &mockDynamo{}
	defer api.AssertExpectations(t)
	s := NewDynamoDBStore(api, "bobbin")
	s.now = func() time.Time { return time.Unix(1000, 0) }

	pendingPut := mock.MatchedBy(func(in *dynamodb.PutItemInput) bool {
		p, ok := in.Item["Pending"].(*types.AttributeValueMemberBOOL)
		return ok && p.Value && aws.ToString(in.ConditionExpression) == "attribute_not_exists(PK) OR #ttl <= :now"
	})
	api.On("PutItem", mock.Anything, pendingPut).Return(&dynamodb.PutItemOutput{}, nil).Once()
	ok, err := s.Reserve(ctx, "k1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	api.On("PutItem", mock.Anything, pendingPut).
		Return(nil, &types.ConditionalCheckFailedException{Message: aws.String("exists")}).Once()
	ok, err = s.Reserve(ctx, "k1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	reserved, err := attributevalue.MarshalMap(record{PK: "IDEMPOTENCY#k1", SK: "RESPONSE", Pending: true, ExpiresAt: 1060})
	require.NoError(t, err)
	api.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{Item: reserved}, nil).Once()
	got, err := s.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Nil(t, got, "a reservation is not a response")

	api.On("PutItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.PutItemInput) bool {
		return strings.Contains(aws.ToString(in.ConditionExpression), "#pending = :pending")
	})).Return(&dynamodb.PutItemOutput{}, nil).Once()
	require.NoError(t, s.Put(ctx, "k1", created, time.Hour))

	api.On("DeleteItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.DeleteItemInput) bool {
		return aws.ToString(in.ConditionExpression) == "#pending = :pending"
	})).Return(nil, &types.ConditionalCheckFailedException{Message: aws.String("answered")}).Once()
	assert.NoError(t, s.Release(ctx, "k1"), "a stored response is kept")
}
