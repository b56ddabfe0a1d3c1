package eventbridge

import (
	"context"
	"errors"
	"testing"
	"time"

	"bobbin-backend/domain/events"
	pkgerrors "bobbin-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) PutEvents(ctx context.Context, in *eventbridge.PutEventsInput, _ ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*eventbridge.PutEventsOutput)
	return out, args.Error(1)
}

func batch(n int) []events.DomainEvent {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	out := make([]events.DomainEvent, n)
	for i := range out {
		out[i] = events.NewConversationCreated("c1", "alice", "Thread", at)
	}
	return out
}

func TestPublisher_ChunksByTen(t *testing.T) {
	api := &mockAPI{}
	defer api.AssertExpectations(t)
	p := NewPublisher(api, "bobbin-bus", zaptest.NewLogger(t))

	var sizes []int
	api.On("PutEvents", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			in := args.Get(1).(*eventbridge.PutEventsInput)
			sizes = append(sizes, len(in.Entries))
			entry := in.Entries[0]
			assert.Equal(t, "bobbin-bus", aws.ToString(entry.EventBusName))
			assert.Equal(t, events.SourceBackend, aws.ToString(entry.Source))
			assert.Equal(t, events.TypeConversationCreated, aws.ToString(entry.DetailType))
			assert.Contains(t, aws.ToString(entry.Detail), `"title":"Thread"`)
		}).
		Return(&eventbridge.PutEventsOutput{}, nil).Times(3)

	require.NoError(t, p.PublishBatch(context.Background(), batch(23)))
	assert.Equal(t, []int{10, 10, 3}, sizes)
	require.NoError(t, p.PublishBatch(context.Background(), nil))
}

func TestPublisher_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("partial", func(t *testing.T) {
		api := &mockAPI{}
		p := NewPublisher(api, "bus", zaptest.NewLogger(t))
		api.On("PutEvents", mock.Anything, mock.Anything).Return(&eventbridge.PutEventsOutput{
			FailedEntryCount: 1,
			Entries: []types.PutEventsResultEntry{
				{EventId: aws.String("e1")},
				{ErrorCode: aws.String("InternalFailure"), ErrorMessage: aws.String("try later")},
			},
		}, nil).Once()

		err := p.PublishBatch(ctx, batch(2))
		assert.Equal(t, pkgerrors.ErrorTypeExternal, pkgerrors.TypeOf(err))
	})

	t.Run("transport", func(t *testing.T) {
		api := &mockAPI{}
		p := NewPublisher(api, "bus", zaptest.NewLogger(t))
		cause := errors.New("dial tcp: timeout")
		api.On("PutEvents", mock.Anything, mock.Anything).Return(nil, cause).Once()

		err := p.Publish(ctx, batch(1)[0])
		assert.ErrorIs(t, err, cause)
		api.AssertNumberOfCalls(t, "PutEvents", 1)
	})
}
