package dynamodb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"mindo/application/ports"
	"mindo/domain/core/entities"
	"mindo/domain/core/valueobjects"
	apperrors "mindo/pkg/errors"
)

// API is the subset of the DynamoDB client used by the gateway
type API interface {
	dynamodb.QueryAPIClient
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// Gateway implements ports.Gateway on a single DynamoDB table
type Gateway struct {
	client    API
	tableName string
	indexName string
	logger    *zap.Logger
	now       func() time.Time
}

// NewGateway creates a new DynamoDB gateway
func NewGateway(client API, tableName, indexName string, logger *zap.Logger) *Gateway {
	return &Gateway{
		client:    client,
		tableName: tableName,
		indexName: indexName,
		logger:    logger,
		now:       time.Now,
	}
}

// FetchNodes returns the user's nodes with their memory units
func (g *Gateway) FetchNodes(ctx context.Context, userID string) ([]*entities.Node, error) {
	nodeItems, err := g.queryOwned(ctx, userID, prefixNode)
	if err != nil {
		return nil, apperrors.NewDatabaseError("FetchNodes", err)
	}
	unitItems, err := g.queryOwned(ctx, userID, prefixUnit)
	if err != nil {
		return nil, apperrors.NewDatabaseError("FetchNodes", err)
	}

	nodes := make([]*entities.Node, 0, len(nodeItems))
	byID := make(map[string]*entities.Node, len(nodeItems))
	for _, raw := range nodeItems {
		var item nodeItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			return nil, apperrors.NewDatabaseError("FetchNodes", fmt.Errorf("failed to unmarshal node: %w", err))
		}
		n, err := item.toEntity()
		if err != nil {
			return nil, apperrors.NewDatabaseError("FetchNodes", err)
		}
		nodes = append(nodes, n)
		byID[item.NodeID] = n
	}

	for _, raw := range unitItems {
		var item unitItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			return nil, apperrors.NewDatabaseError("FetchNodes", fmt.Errorf("failed to unmarshal memory unit: %w", err))
		}
		if n, ok := byID[item.NodeID]; ok {
			n.MemoryUnits = append(n.MemoryUnits, item.toEntity())
		}
	}

	g.logger.Debug("Fetched nodes from DynamoDB",
		zap.String("userID", userID),
		zap.Int("nodeCount", len(nodes)),
		zap.Int("unitCount", len(unitItems)),
	)
	return nodes, nil
}

// queryOwned pages through every GSI1 item of the user under prefix
func (g *Gateway) queryOwned(ctx context.Context, userID, prefix string) ([]map[string]types.AttributeValue, error) {
	keyExpr := expression.Key("GSI1PK").Equal(expression.Value(prefixUser + userID)).
		And(expression.Key("GSI1SK").BeginsWith(prefix))
	expr, err := expression.NewBuilder().WithKeyCondition(keyExpr).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	paginator := dynamodb.NewQueryPaginator(g.client, &dynamodb.QueryInput{
		TableName:                 aws.String(g.tableName),
		IndexName:                 aws.String(g.indexName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})

	var items []map[string]types.AttributeValue
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		items = append(items, page.Items...)
	}
	return items, nil
}

// CreateNode implements ports.NodeGateway
func (g *Gateway) CreateNode(ctx context.Context, node *entities.Node) error {
	item, err := toNodeItem(node)
	if err != nil {
		return apperrors.NewInternalError("failed to encode node").WithCause(err)
	}
	return g.putNew(ctx, "CreateNode", "node", item)
}

// UpdateNode implements ports.NodeGateway
func (g *Gateway) UpdateNode(ctx context.Context, id valueobjects.NodeID, u ports.NodeUpdate) error {
	if u.IsEmpty() {
		return nil
	}

	update := expression.Set(expression.Name("UpdatedAt"), expression.Value(formatTime(g.now())))
	if u.Label != nil {
		update = update.Set(expression.Name("Label"), expression.Value(*u.Label))
	}
	if u.Status != nil {
		update = update.Set(expression.Name("Status"), expression.Value(string(*u.Status)))
	}
	if u.Tags != nil {
		tags := *u.Tags
		if tags == nil {
			tags = []string{}
		}
		update = update.Set(expression.Name("Tags"), expression.Value(tags))
	}
	if u.Weight != nil {
		update = update.Set(expression.Name("Weight"), expression.Value(*u.Weight))
	}
	if u.LastReview != nil {
		update = update.Set(expression.Name("LastReview"), expression.Value(formatTime(*u.LastReview)))
	}
	if u.NextReview != nil {
		update = update.Set(expression.Name("NextReview"), expression.Value(formatTime(*u.NextReview)))
	}
	if u.Position != nil {
		update = update.Set(expression.Name("PositionX"), expression.Value(u.Position.X)).
			Set(expression.Name("PositionY"), expression.Value(u.Position.Y))
	}
	return g.updateExisting(ctx, "UpdateNode", "node", itemKey(prefixNode, id.String()), update)
}

// UpdateNodeData implements ports.NodeGateway
func (g *Gateway) UpdateNodeData(ctx context.Context, id valueobjects.NodeID, payload valueobjects.Payload) error {
	return g.rewritePayload(ctx, "UpdateNodeData", id, func(stored valueobjects.Payload) valueobjects.Payload {
		return valueobjects.MergeContent(stored, payload)
	})
}

// UpdateNodeStyle implements ports.NodeGateway
func (g *Gateway) UpdateNodeStyle(ctx context.Context, id valueobjects.NodeID, dims valueobjects.Dimensions) error {
	return g.rewritePayload(ctx, "UpdateNodeStyle", id, func(stored valueobjects.Payload) valueobjects.Payload {
		return valueobjects.MergeStyle(stored, dims)
	})
}

// rewritePayload is a read-merge-write of the Data attribute, guarded so a
// concurrent rewrite fails instead of being overwritten
func (g *Gateway) rewritePayload(ctx context.Context, op string, id valueobjects.NodeID, merge func(valueobjects.Payload) valueobjects.Payload) error {
	key := itemKey(prefixNode, id.String())
	out, err := g.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:            aws.String(g.tableName),
		Key:                  key,
		ConsistentRead:       aws.Bool(true),
		ProjectionExpression: aws.String("#data"),
		ExpressionAttributeNames: map[string]string{
			"#data": "Data",
		},
	})
	if err != nil {
		return apperrors.NewDatabaseError(op, err)
	}
	if len(out.Item) == 0 {
		return apperrors.NewNotFoundError("node")
	}

	var current struct {
		Data string `dynamodbav:"Data"`
	}
	if err := attributevalue.UnmarshalMap(out.Item, &current); err != nil {
		return apperrors.NewDatabaseError(op, err)
	}
	var stored valueobjects.Payload
	if current.Data != "" {
		if err := json.Unmarshal([]byte(current.Data), &stored); err != nil {
			return apperrors.NewDatabaseError(op, err)
		}
	}
	merged, err := json.Marshal(merge(stored))
	if err != nil {
		return apperrors.NewInternalError("failed to encode node data").WithCause(err)
	}

	update := expression.Set(expression.Name("Data"), expression.Value(string(merged))).
		Set(expression.Name("UpdatedAt"), expression.Value(formatTime(g.now())))
	cond := expression.Name("Data").Equal(expression.Value(current.Data))
	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(cond).Build()
	if err != nil {
		return apperrors.NewInternalError("failed to build update").WithCause(err)
	}

	_, err = g.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(g.tableName),
		Key:                       key,
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if isConditionFailure(err) {
		return apperrors.NewConflictError("node data changed concurrently")
	}
	if err != nil {
		return apperrors.NewDatabaseError(op, err)
	}
	return nil
}

// DeleteNode implements ports.NodeGateway
func (g *Gateway) DeleteNode(ctx context.Context, id valueobjects.NodeID) error {
	return g.delete(ctx, "DeleteNode", itemKey(prefixNode, id.String()))
}

// FetchEdges implements ports.EdgeGateway
func (g *Gateway) FetchEdges(ctx context.Context, userID string) ([]*entities.Edge, error) {
	items, err := g.queryOwned(ctx, userID, prefixEdge)
	if err != nil {
		return nil, apperrors.NewDatabaseError("FetchEdges", err)
	}

	edges := make([]*entities.Edge, 0, len(items))
	for _, raw := range items {
		var item edgeItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			return nil, apperrors.NewDatabaseError("FetchEdges", fmt.Errorf("failed to unmarshal edge: %w", err))
		}
		e, err := item.toEntity()
		if err != nil {
			return nil, apperrors.NewDatabaseError("FetchEdges", err)
		}
		edges = append(edges, e)
	}
	sort.SliceStable(edges, func(i, j int) bool { return edges[i].CreatedAt.Before(edges[j].CreatedAt) })
	return edges, nil
}

// CreateEdge implements ports.EdgeGateway
func (g *Gateway) CreateEdge(ctx context.Context, userID string, edge *entities.Edge) error {
	return g.putNew(ctx, "CreateEdge", "edge", toEdgeItem(userID, edge))
}

// UpdateEdge implements ports.EdgeGateway
func (g *Gateway) UpdateEdge(ctx context.Context, id valueobjects.EdgeID, u ports.EdgeUpdate) error {
	update := expression.Set(expression.Name("SourceID"), expression.Value(u.Source.String())).
		Set(expression.Name("TargetID"), expression.Value(u.Target.String())).
		Set(expression.Name("SourceHandle"), expression.Value(u.SourceHandle)).
		Set(expression.Name("TargetHandle"), expression.Value(u.TargetHandle)).
		Set(expression.Name("Type"), expression.Value(string(u.Type))).
		Set(expression.Name("IsTentative"), expression.Value(u.IsTentative)).
		Set(expression.Name("SemanticLabel"), expression.Value(u.Label))
	return g.updateExisting(ctx, "UpdateEdge", "edge", itemKey(prefixEdge, id.String()), update)
}

// UpdateEdgeHandles implements ports.EdgeGateway
func (g *Gateway) UpdateEdgeHandles(ctx context.Context, id valueobjects.EdgeID, sourceHandle, targetHandle string) error {
	update := expression.Set(expression.Name("SourceHandle"), expression.Value(sourceHandle)).
		Set(expression.Name("TargetHandle"), expression.Value(targetHandle))
	return g.updateExisting(ctx, "UpdateEdgeHandles", "edge", itemKey(prefixEdge, id.String()), update)
}

// DeleteEdge implements ports.EdgeGateway
func (g *Gateway) DeleteEdge(ctx context.Context, id valueobjects.EdgeID) error {
	return g.delete(ctx, "DeleteEdge", itemKey(prefixEdge, id.String()))
}

// CreateMemoryUnit implements ports.MemoryUnitGateway
func (g *Gateway) CreateMemoryUnit(ctx context.Context, userID string, nodeID valueobjects.NodeID, unit entities.MemoryUnit) error {
	return g.putNew(ctx, "CreateMemoryUnit", "memory unit", toUnitItem(userID, nodeID, unit, g.now()))
}

// UpdateMemoryUnit implements ports.MemoryUnitGateway
func (g *Gateway) UpdateMemoryUnit(ctx context.Context, unit entities.MemoryUnit) error {
	update := expression.Set(expression.Name("Question"), expression.Value(unit.Question)).
		Set(expression.Name("Answer"), expression.Value(unit.Answer)).
		Set(expression.Name("TextSegment"), expression.Value(unit.TextSegment)).
		Set(expression.Name("Status"), expression.Value(string(unit.Status)))
	return g.updateExisting(ctx, "UpdateMemoryUnit", "memory unit", itemKey(prefixUnit, unit.ID.String()), update)
}

// DeleteMemoryUnit implements ports.MemoryUnitGateway
func (g *Gateway) DeleteMemoryUnit(ctx context.Context, id valueobjects.MemoryUnitID) error {
	return g.delete(ctx, "DeleteMemoryUnit", itemKey(prefixUnit, id.String()))
}

func (g *Gateway) putNew(ctx context.Context, op, resource string, item any) error {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return apperrors.NewInternalError("failed to marshal " + resource).WithCause(err)
	}
	expr, err := expression.NewBuilder().WithCondition(expression.Name("PK").AttributeNotExists()).Build()
	if err != nil {
		return apperrors.NewInternalError("failed to build condition").WithCause(err)
	}

	_, err = g.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(g.tableName),
		Item:                     av,
		ConditionExpression:      expr.Condition(),
		ExpressionAttributeNames: expr.Names(),
	})
	if isConditionFailure(err) {
		return apperrors.NewConflictError(resource + " already exists")
	}
	if err != nil {
		g.logger.Error("Failed to put item", zap.String("operation", op), zap.Error(err))
		return apperrors.NewDatabaseError(op, err)
	}
	return nil
}

func (g *Gateway) updateExisting(ctx context.Context, op, resource string, key map[string]types.AttributeValue, update expression.UpdateBuilder) error {
	expr, err := expression.NewBuilder().
		WithUpdate(update).
		WithCondition(expression.Name("PK").AttributeExists()).
		Build()
	if err != nil {
		return apperrors.NewInternalError("failed to build update").WithCause(err)
	}

	_, err = g.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(g.tableName),
		Key:                       key,
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if isConditionFailure(err) {
		return apperrors.NewNotFoundError(resource)
	}
	if err != nil {
		g.logger.Error("Failed to update item", zap.String("operation", op), zap.Error(err))
		return apperrors.NewDatabaseError(op, err)
	}
	return nil
}

func (g *Gateway) delete(ctx context.Context, op string, key map[string]types.AttributeValue) error {
	_, err := g.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(g.tableName),
		Key:       key,
	})
	if err != nil {
		return apperrors.NewDatabaseError(op, err)
	}
	return nil
}

func isConditionFailure(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return err != nil && errors.As(err, &ccf)
}
