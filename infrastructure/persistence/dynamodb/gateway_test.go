package dynamodb

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mindo/application/ports"
	"mindo/domain/config"
	"mindo/domain/core/entities"
	"mindo/domain/core/valueobjects"
	pkgerrors "mindo/pkg/errors"
)

const testUser = "user-123"

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type mockDynamoDB struct {
	mock.Mock
}

func (m *mockDynamoDB) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	args := m.Called(in)
	out, _ := args.Get(0).(*dynamodb.QueryOutput)
	return out, args.Error(1)
}

func (m *mockDynamoDB) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	args := m.Called(in)
	out, _ := args.Get(0).(*dynamodb.GetItemOutput)
	return out, args.Error(1)
}

func (m *mockDynamoDB) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	args := m.Called(in)
	return &dynamodb.PutItemOutput{}, args.Error(0)
}

func (m *mockDynamoDB) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	args := m.Called(in)
	return &dynamodb.UpdateItemOutput{}, args.Error(0)
}

func (m *mockDynamoDB) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	args := m.Called(in)
	return &dynamodb.DeleteItemOutput{}, args.Error(0)
}

func newTestGateway(client *mockDynamoDB) *Gateway {
	g := NewGateway(client, "mindo", "GSI1", zap.NewNop())
	g.now = func() time.Time { return testNow }
	return g
}

func beginsWith(prefix string) any {
	return mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
		for _, v := range in.ExpressionAttributeValues {
			if s, ok := v.(*types.AttributeValueMemberS); ok && s.Value == prefix {
				return true
			}
		}
		return false
	})
}

func TestGateway_FetchNodesJoinsUnits(t *testing.T) {
	// Arrange
	n, err := entities.NewNode(testUser, "Cell", valueobjects.NodeTypeText, entities.StatusNew, testNow, config.DefaultDomainConfig())
	require.NoError(t, err)
	n.Tags = []string{"bio"}
	review := testNow.Add(-time.Hour)
	n.LastReview = &review

	item, err := toNodeItem(n)
	require.NoError(t, err)
	nodeAV, err := attributevalue.MarshalMap(item)
	require.NoError(t, err)

	unit := entities.MemoryUnit{ID: valueobjects.NewMemoryUnitID(), Question: "Q?", Status: entities.UnitStatusLearning}
	unitAV, err := attributevalue.MarshalMap(toUnitItem(testUser, n.ID, unit, testNow))
	require.NoError(t, err)

	client := new(mockDynamoDB)
	client.On("Query", beginsWith(prefixNode)).Return(&dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{nodeAV}}, nil)
	client.On("Query", beginsWith(prefixUnit)).Return(&dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{unitAV}}, nil)

	// Act
	nodes, err := newTestGateway(client).FetchNodes(context.Background(), testUser)

	// Assert
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	got := nodes[0]
	assert.Equal(t, n.ID, got.ID)
	assert.Equal(t, n.Content, got.Content)
	assert.Equal(t, []string{"bio"}, got.Tags)
	require.NotNil(t, got.LastReview)
	assert.True(t, review.Equal(*got.LastReview))
	require.Len(t, got.MemoryUnits, 1)
	assert.Equal(t, unit, got.MemoryUnits[0])
	client.AssertExpectations(t)
}

func TestGateway_CreateNodeConflict(t *testing.T) {
	client := new(mockDynamoDB)
	client.On("PutItem", mock.MatchedBy(func(in *dynamodb.PutItemInput) bool {
		return aws.ToString(in.ConditionExpression) != ""
	})).Return(&types.ConditionalCheckFailedException{Message: aws.String("exists")})

	n, err := entities.NewNode(testUser, "Cell", valueobjects.NodeTypeText, entities.StatusNew, testNow, config.DefaultDomainConfig())
	require.NoError(t, err)

	err = newTestGateway(client).CreateNode(context.Background(), n)

	assert.True(t, pkgerrors.IsConflict(err))
}

func TestGateway_UpdateMissingNode(t *testing.T) {
	client := new(mockDynamoDB)
	client.On("UpdateItem", mock.Anything).Return(&types.ConditionalCheckFailedException{Message: aws.String("missing")})

	label := "x"
	err := newTestGateway(client).UpdateNode(context.Background(), valueobjects.NewNodeID(), ports.NodeUpdate{Label: &label})

	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestGateway_UpdateNodeStyleMergesData(t *testing.T) {
	// Arrange
	id := valueobjects.NewNodeID()
	client := new(mockDynamoDB)
	client.On("GetItem", mock.Anything).Return(&dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{
		"Data": &types.AttributeValueMemberS{Value: `{"url":"https://x/a.png","style":{"width":100,"height":50}}`},
	}}, nil)

	var written string
	client.On("UpdateItem", mock.MatchedBy(func(in *dynamodb.UpdateItemInput) bool {
		for _, v := range in.ExpressionAttributeValues {
			if s, ok := v.(*types.AttributeValueMemberS); ok && len(s.Value) > 0 && s.Value[0] == '{' && s.Value != `{"url":"https://x/a.png","style":{"width":100,"height":50}}` {
				written = s.Value
			}
		}
		return true
	})).Return(nil)

	// Act
	err := newTestGateway(client).UpdateNodeStyle(context.Background(), id, valueobjects.Dimensions{Width: 400})

	// Assert
	require.NoError(t, err)
	assert.JSONEq(t, `{"url":"https://x/a.png","style":{"width":400,"height":50}}`, written)
}

func TestGateway_UpdateNodeDataMissing(t *testing.T) {
	client := new(mockDynamoDB)
	client.On("GetItem", mock.Anything).Return(&dynamodb.GetItemOutput{}, nil)

	err := newTestGateway(client).UpdateNodeData(context.Background(), valueobjects.NewNodeID(), valueobjects.Payload{})

	assert.True(t, pkgerrors.IsNotFound(err))
	client.AssertNotCalled(t, "UpdateItem", mock.Anything)
}

func TestGateway_EdgeKeys(t *testing.T) {
	client := new(mockDynamoDB)
	e, err := entities.NewTentativeEdge(entities.Connection{Source: "a", Target: "b"}, testNow)
	require.NoError(t, err)

	client.On("PutItem", mock.MatchedBy(func(in *dynamodb.PutItemInput) bool {
		var item edgeItem
		require.NoError(t, attributevalue.UnmarshalMap(in.Item, &item))
		return item.PK == prefixEdge+e.ID.String() && item.GSI1PK == prefixUser+testUser && item.IsTentative
	})).Return(nil)
	client.On("DeleteItem", mock.MatchedBy(func(in *dynamodb.DeleteItemInput) bool {
		pk := in.Key["PK"].(*types.AttributeValueMemberS)
		return pk.Value == prefixEdge+e.ID.String()
	})).Return(nil)

	g := newTestGateway(client)
	require.NoError(t, g.CreateEdge(context.Background(), testUser, e))
	require.NoError(t, g.DeleteEdge(context.Background(), e.ID))
	client.AssertExpectations(t)
}
