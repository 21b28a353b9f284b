package eventbridge

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mindo/domain/core/valueobjects"
	"mindo/domain/events"
)

type mockEventBridge struct {
	mock.Mock
}

func (m *mockEventBridge) PutEvents(ctx context.Context, in *eventbridge.PutEventsInput, _ ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	args := m.Called(len(in.Entries))
	out, _ := args.Get(0).(*eventbridge.PutEventsOutput)
	return out, args.Error(1)
}

func nodeEvents(n int) []events.DomainEvent {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	out := make([]events.DomainEvent, n)
	for i := range out {
		out[i] = events.NewNodeMastered("user-123", valueobjects.NewNodeID(), now)
	}
	return out
}

func TestPublisher_SplitsIntoBatchesOfTen(t *testing.T) {
	// Arrange
	client := new(mockEventBridge)
	client.On("PutEvents", 10).Return(&eventbridge.PutEventsOutput{}, nil).Twice()
	client.On("PutEvents", 3).Return(&eventbridge.PutEventsOutput{}, nil).Once()
	p := NewPublisher(client, "mindo-events", zap.NewNop())

	// Act
	err := p.PublishBatch(context.Background(), nodeEvents(23))

	// Assert
	require.NoError(t, err)
	client.AssertExpectations(t)
}

func TestPublisher_ReportsFailedEntries(t *testing.T) {
	client := new(mockEventBridge)
	client.On("PutEvents", 2).Return(&eventbridge.PutEventsOutput{
		FailedEntryCount: 1,
		Entries: []types.PutEventsResultEntry{
			{EventId: aws.String("ok")},
			{ErrorCode: aws.String("ThrottlingException"), ErrorMessage: aws.String("slow down")},
		},
	}, nil)
	p := NewPublisher(client, "mindo-events", zap.NewNop())

	err := p.PublishBatch(context.Background(), nodeEvents(2))

	assert.EqualError(t, err, "1 events failed to publish")
}

func TestPublisher_EmptyBatchIsNoop(t *testing.T) {
	client := new(mockEventBridge)
	p := NewPublisher(client, "mindo-events", zap.NewNop())

	require.NoError(t, p.PublishBatch(context.Background(), nil))
	client.AssertNotCalled(t, "PutEvents", mock.Anything)
}
