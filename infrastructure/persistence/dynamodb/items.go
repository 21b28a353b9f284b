package dynamodb

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"mindo/domain/core/entities"
	"mindo/domain/core/valueobjects"
)

// Entity prefixes of the single-table layout. Items are keyed by their own
// ID so updates need no user lookup; GSI1 groups them under the owner.
const (
	prefixUser = "USER#"
	prefixNode = "NODE#"
	prefixEdge = "EDGE#"
	prefixUnit = "UNIT#"
	sortKey    = "METADATA"
)

// nodeItem represents the DynamoDB item structure for a node
type nodeItem struct {
	PK         string   `dynamodbav:"PK"`
	SK         string   `dynamodbav:"SK"`
	GSI1PK     string   `dynamodbav:"GSI1PK"` // USER#<id>
	GSI1SK     string   `dynamodbav:"GSI1SK"` // NODE#<created>#<id>
	EntityType string   `dynamodbav:"EntityType"`
	NodeID     string   `dynamodbav:"NodeID"`
	UserID     string   `dynamodbav:"UserID"`
	Label      string   `dynamodbav:"Label"`
	Type       string   `dynamodbav:"Type"`
	Status     string   `dynamodbav:"Status"`
	Data       string   `dynamodbav:"Data"`
	Tags       []string `dynamodbav:"Tags"`
	Weight     int      `dynamodbav:"Weight"`
	PositionX  float64  `dynamodbav:"PositionX"`
	PositionY  float64  `dynamodbav:"PositionY"`
	LastReview string   `dynamodbav:"LastReview,omitempty"`
	NextReview string   `dynamodbav:"NextReview,omitempty"`
	CreatedAt  string   `dynamodbav:"CreatedAt"`
	UpdatedAt  string   `dynamodbav:"UpdatedAt"`
}

type edgeItem struct {
	PK            string `dynamodbav:"PK"`
	SK            string `dynamodbav:"SK"`
	GSI1PK        string `dynamodbav:"GSI1PK"`
	GSI1SK        string `dynamodbav:"GSI1SK"`
	EntityType    string `dynamodbav:"EntityType"`
	EdgeID        string `dynamodbav:"EdgeID"`
	UserID        string `dynamodbav:"UserID"`
	SourceID      string `dynamodbav:"SourceID"`
	TargetID      string `dynamodbav:"TargetID"`
	SourceHandle  string `dynamodbav:"SourceHandle"`
	TargetHandle  string `dynamodbav:"TargetHandle"`
	Type          string `dynamodbav:"Type"`
	IsTentative   bool   `dynamodbav:"IsTentative"`
	SemanticLabel string `dynamodbav:"SemanticLabel"`
	CreatedAt     string `dynamodbav:"CreatedAt"`
}

type unitItem struct {
	PK          string  `dynamodbav:"PK"`
	SK          string  `dynamodbav:"SK"`
	GSI1PK      string  `dynamodbav:"GSI1PK"`
	GSI1SK      string  `dynamodbav:"GSI1SK"` // UNIT#<node>#<seq>
	EntityType  string  `dynamodbav:"EntityType"`
	UnitID      string  `dynamodbav:"UnitID"`
	NodeID      string  `dynamodbav:"NodeID"`
	Question    string  `dynamodbav:"Question"`
	Answer      string  `dynamodbav:"Answer"`
	TextSegment string  `dynamodbav:"TextSegment"`
	Status      string  `dynamodbav:"Status"`
	EaseFactor  float64 `dynamodbav:"EaseFactor"`
	Interval    int     `dynamodbav:"Interval"`
}

func itemKey(prefix, id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: prefix + id},
		"SK": &types.AttributeValueMemberS{Value: sortKey},
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func parseOptionalTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func toNodeItem(n *entities.Node) (nodeItem, error) {
	data, err := json.Marshal(valueobjects.EncodePayload(n.Content, n.Dimensions))
	if err != nil {
		return nodeItem{}, fmt.Errorf("failed to encode node data: %w", err)
	}
	tags := n.Tags
	if tags == nil {
		tags = []string{}
	}
	created := formatTime(n.CreatedAt)
	return nodeItem{
		PK:         prefixNode + n.ID.String(),
		SK:         sortKey,
		GSI1PK:     prefixUser + n.UserID,
		GSI1SK:     prefixNode + created + "#" + n.ID.String(),
		EntityType: "NODE",
		NodeID:     n.ID.String(),
		UserID:     n.UserID,
		Label:      n.Label,
		Type:       string(n.Type),
		Status:     string(n.Status),
		Data:       string(data),
		Tags:       tags,
		Weight:     n.Weight,
		PositionX:  n.Position.X,
		PositionY:  n.Position.Y,
		LastReview: formatOptionalTime(n.LastReview),
		NextReview: formatOptionalTime(n.NextReview),
		CreatedAt:  created,
		UpdatedAt:  formatTime(n.UpdatedAt),
	}, nil
}

func (it nodeItem) toEntity() (*entities.Node, error) {
	n := &entities.Node{
		ID:       valueobjects.NodeID(it.NodeID),
		UserID:   it.UserID,
		Label:    it.Label,
		Type:     valueobjects.NodeType(it.Type),
		Status:   entities.NodeStatus(it.Status),
		Tags:     it.Tags,
		Weight:   it.Weight,
		Position: valueobjects.Position{X: it.PositionX, Y: it.PositionY},
	}
	if n.Tags == nil {
		n.Tags = []string{}
	}

	var payload valueobjects.Payload
	if it.Data != "" {
		if err := json.Unmarshal([]byte(it.Data), &payload); err != nil {
			return nil, fmt.Errorf("failed to decode data of node %s: %w", it.NodeID, err)
		}
	}
	n.Content, n.Dimensions = valueobjects.DecodeContent(n.Type, payload)

	var err error
	if n.CreatedAt, err = time.Parse(time.RFC3339Nano, it.CreatedAt); err != nil {
		return nil, fmt.Errorf("invalid CreatedAt on node %s: %w", it.NodeID, err)
	}
	if n.UpdatedAt, err = time.Parse(time.RFC3339Nano, it.UpdatedAt); err != nil {
		return nil, fmt.Errorf("invalid UpdatedAt on node %s: %w", it.NodeID, err)
	}
	if n.LastReview, err = parseOptionalTime(it.LastReview); err != nil {
		return nil, fmt.Errorf("invalid LastReview on node %s: %w", it.NodeID, err)
	}
	if n.NextReview, err = parseOptionalTime(it.NextReview); err != nil {
		return nil, fmt.Errorf("invalid NextReview on node %s: %w", it.NodeID, err)
	}
	return n, nil
}

func toEdgeItem(userID string, e *entities.Edge) edgeItem {
	created := formatTime(e.CreatedAt)
	return edgeItem{
		PK:            prefixEdge + e.ID.String(),
		SK:            sortKey,
		GSI1PK:        prefixUser + userID,
		GSI1SK:        prefixEdge + created + "#" + e.ID.String(),
		EntityType:    "EDGE",
		EdgeID:        e.ID.String(),
		UserID:        userID,
		SourceID:      e.Source.String(),
		TargetID:      e.Target.String(),
		SourceHandle:  e.SourceHandle,
		TargetHandle:  e.TargetHandle,
		Type:          string(e.Type),
		IsTentative:   e.IsTentative,
		SemanticLabel: e.SemanticLabel,
		CreatedAt:     created,
	}
}

func (it edgeItem) toEntity() (*entities.Edge, error) {
	created, err := time.Parse(time.RFC3339Nano, it.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid CreatedAt on edge %s: %w", it.EdgeID, err)
	}
	return &entities.Edge{
		ID:            valueobjects.EdgeID(it.EdgeID),
		Source:        valueobjects.NodeID(it.SourceID),
		Target:        valueobjects.NodeID(it.TargetID),
		Type:          entities.EdgeType(it.Type),
		SourceHandle:  it.SourceHandle,
		TargetHandle:  it.TargetHandle,
		IsTentative:   it.IsTentative,
		SemanticLabel: it.SemanticLabel,
		CreatedAt:     created,
	}, nil
}

func toUnitItem(userID string, nodeID valueobjects.NodeID, u entities.MemoryUnit, now time.Time) unitItem {
	return unitItem{
		PK:          prefixUnit + u.ID.String(),
		SK:          sortKey,
		GSI1PK:      prefixUser + userID,
		GSI1SK:      prefixUnit + nodeID.String() + "#" + formatTime(now),
		EntityType:  "UNIT",
		UnitID:      u.ID.String(),
		NodeID:      nodeID.String(),
		Question:    u.Question,
		Answer:      u.Answer,
		TextSegment: u.TextSegment,
		Status:      string(u.Status),
		EaseFactor:  entities.DefaultEaseFactor,
		Interval:    entities.DefaultInterval,
	}
}

func (it unitItem) toEntity() entities.MemoryUnit {
	return entities.MemoryUnit{
		ID:          valueobjects.MemoryUnitID(it.UnitID),
		Question:    it.Question,
		Answer:      it.Answer,
		TextSegment: it.TextSegment,
		Status:      entities.UnitStatus(it.Status),
	}
}
