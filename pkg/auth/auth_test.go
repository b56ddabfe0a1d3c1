package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestSessionToken_RoundTrip(t *testing.T) {
	keys := SessionKeys{Secret: "s3cret", Issuer: "bobbin", Audience: "api"}
	signer, err := NewSessionSigner(keys, time.Minute)
	require.NoError(t, err)
	token, err := signer.Sign(Identity{UserID: "alice", Email: "alice@example.com", Role: "authenticated"})
	require.NoError(t, err)

	parser, err := NewSessionParser(keys)
	require.NoError(t, err)

	who, err := parser.Parse("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: "alice", Email: "alice@example.com", Role: "authenticated"}, who)
}

func TestSessionToken_Rejections(t *testing.T) {
	sign := func(t *testing.T, keys SessionKeys, ttl time.Duration, at time.Time) string {
		signer, err := NewSessionSigner(keys, ttl)
		require.NoError(t, err)
		signer.now = func() time.Time { return at }
		token, err := signer.Sign(Identity{UserID: "alice"})
		require.NoError(t, err)
		return token
	}
	parser, err := NewSessionParser(SessionKeys{Secret: "s3cret", Issuer: "bobbin"})
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"missing", "", ErrMissingToken},
		{"garbage", "not.a.jwt", ErrInvalidToken},
		{"wrong secret", sign(t, SessionKeys{Secret: "other", Issuer: "bobbin"}, time.Hour, time.Now()), ErrInvalidSignature},
		{"expired", sign(t, SessionKeys{Secret: "s3cret", Issuer: "bobbin"}, time.Minute, time.Now().Add(-time.Hour)), ErrExpiredToken},
		{"wrong issuer", sign(t, SessionKeys{Secret: "s3cret", Issuer: "someone-else"}, time.Hour, time.Now()), ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parser.Parse(tt.token)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSessionToken_RequiresSecretAndSubject(t *testing.T) {
	_, err := NewSessionParser(SessionKeys{Issuer: "bobbin"})
	assert.Error(t, err)
	_, err = NewSessionSigner(SessionKeys{}, time.Hour)
	assert.Error(t, err)

	signer, err := NewSessionSigner(SessionKeys{Secret: "s3cret"}, time.Hour)
	require.NoError(t, err)
	_, err = signer.Sign(Identity{Email: "nobody@example.com"})
	assert.Error(t, err)
}

func TestSlidingWindowLimiter(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewSlidingWindowLimiter(2, time.Minute)
	l.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "alice")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, _ := l.Allow(ctx, "alice")
	assert.False(t, ok)

	ok, _ = l.Allow(ctx, "bob")
	assert.True(t, ok, "keys are independent")

	now = now.Add(61 * time.Second)
	ok, _ = l.Allow(ctx, "alice")
	assert.True(t, ok, "window slid past old requests")

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 2, l.Sweep())

	require.NoError(t, l.Reset(ctx, "alice"))
}

func TestKeyedRateLimiter(t *testing.T) {
	ctx := context.Background()
	base := NewSlidingWindowLimiter(1, time.Minute)
	users, ips := NewUserRateLimiter(base), NewIPRateLimiter(base)

	ok, _ := users.Allow(ctx, "1.2.3.4")
	assert.True(t, ok)
	ok, _ = ips.Allow(ctx, "1.2.3.4")
	assert.True(t, ok, "same key under another prefix counts separately")
	ok, _ = users.Allow(ctx, "1.2.3.4")
	assert.False(t, ok)
}

type mockCounter struct {
	mock.Mock
}

func (m *mockCounter) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.UpdateItemOutput)
	return out, args.Error(1)
}

func (m *mockCounter) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.DeleteItemOutput)
	return out, args.Error(1)
}

func TestDistributedRateLimiter(t *testing.T) {
	ctx := context.Background()
	api := &mockCounter{}
	defer api.AssertExpectations(t)
	l := NewDistributedRateLimiter(api, "limits", 10, time.Minute)
	l.now = func() time.Time { return time.Unix(120, 0) }

	forWindow := mock.MatchedBy(func(in *dynamodb.UpdateItemInput) bool {
		pk := in.Key["PK"].(*types.AttributeValueMemberS).Value
		sk := in.Key["SK"].(*types.AttributeValueMemberS).Value
		return aws.ToString(in.TableName) == "limits" && pk == "RATELIMIT#user:alice" && sk == "WINDOW#120"
	})

	api.On("UpdateItem", mock.Anything, forWindow).Return(&dynamodb.UpdateItemOutput{
		Attributes: map[string]types.AttributeValue{"Count": &types.AttributeValueMemberN{Value: "3"}},
	}, nil).Once()
	ok, err := l.Allow(ctx, "user:alice")
	require.NoError(t, err)
	assert.True(t, ok)

	api.On("UpdateItem", mock.Anything, forWindow).
		Return(nil, &types.ConditionalCheckFailedException{Message: aws.String("limit")}).Once()
	ok, err = l.Allow(ctx, "user:alice")
	require.NoError(t, err)
	assert.False(t, ok)

	api.On("UpdateItem", mock.Anything, forWindow).Return(nil, errors.New("network down")).Once()
	ok, err = l.Allow(ctx, "user:alice")
	assert.Error(t, err)
	assert.True(t, ok, "fails open")
}
