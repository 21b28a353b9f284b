package events

import (
	"time"

	"mindo/domain/core/valueobjects"
)

// DomainEvent is the base interface for all domain events
// Events represent something that has happened in the past
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetUserID() string
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	UserID      string    `json:"user_id"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetUserID() string       { return e.UserID }

// Event type names
const (
	TypeNodeCreated    = "node.created"
	TypeNodeDeleted    = "node.deleted"
	TypeNodeReviewed   = "node.reviewed"
	TypeNodeMastered   = "node.mastered"
	TypeEdgeCreated    = "edge.created"
	TypeEdgeSolidified = "edge.solidified"
	TypeEdgeDeleted    = "edge.deleted"
	TypeLayoutApplied  = "layout.applied"
)

// Node Events

// NodeCreated is raised when a new node is created
type NodeCreated struct {
	BaseEvent
	NodeID   valueobjects.NodeID   `json:"node_id"`
	NodeType valueobjects.NodeType `json:"node_type"`
	ParentID valueobjects.NodeID   `json:"parent_id,omitempty"`
}

// NewNodeCreated creates a NodeCreated event
func NewNodeCreated(userID string, nodeID valueobjects.NodeID, nodeType valueobjects.NodeType, parentID valueobjects.NodeID, timestamp time.Time) NodeCreated {
	return NodeCreated{
		BaseEvent: BaseEvent{
			AggregateID: nodeID.String(),
			EventType:   TypeNodeCreated,
			Timestamp:   timestamp,
			UserID:      userID,
		},
		NodeID:   nodeID,
		NodeType: nodeType,
		ParentID: parentID,
	}
}

// NodeDeleted is raised when a node is deleted
type NodeDeleted struct {
	BaseEvent
	NodeID       valueobjects.NodeID `json:"node_id"`
	EdgesRemoved int                 `json:"edges_removed"`
	MediaURL     string              `json:"media_url,omitempty"`
}

// NewNodeDeleted creates a NodeDeleted event
func NewNodeDeleted(userID string, nodeID valueobjects.NodeID, edgesRemoved int, mediaURL string, timestamp time.Time) NodeDeleted {
	return NodeDeleted{
		BaseEvent: BaseEvent{
			AggregateID: nodeID.String(),
			EventType:   TypeNodeDeleted,
			Timestamp:   timestamp,
			UserID:      userID,
		},
		NodeID:       nodeID,
		EdgesRemoved: edgesRemoved,
		MediaURL:     mediaURL,
	}
}

// NodeReviewed is raised after a review grade is recorded
type NodeReviewed struct {
	BaseEvent
	NodeID valueobjects.NodeID `json:"node_id"`
	Grade  string              `json:"grade"`
	Status string              `json:"status"`
}

// NewNodeReviewed creates a NodeReviewed event
func NewNodeReviewed(userID string, nodeID valueobjects.NodeID, grade, status string, timestamp time.Time) NodeReviewed {
	return NodeReviewed{
		BaseEvent: BaseEvent{
			AggregateID: nodeID.String(),
			EventType:   TypeNodeReviewed,
			Timestamp:   timestamp,
			UserID:      userID,
		},
		NodeID: nodeID,
		Grade:  grade,
		Status: status,
	}
}

// NodeMastered is raised when a node passes the explanation gate
type NodeMastered struct {
	BaseEvent
	NodeID valueobjects.NodeID `json:"node_id"`
}

// NewNodeMastered creates a NodeMastered event
func NewNodeMastered(userID string, nodeID valueobjects.NodeID, timestamp time.Time) NodeMastered {
	return NodeMastered{
		BaseEvent: BaseEvent{
			AggregateID: nodeID.String(),
			EventType:   TypeNodeMastered,
			Timestamp:   timestamp,
			UserID:      userID,
		},
		NodeID: nodeID,
	}
}

// Edge Events

// EdgeCreated is raised when two nodes are connected
type EdgeCreated struct {
	BaseEvent
	EdgeID      valueobjects.EdgeID `json:"edge_id"`
	SourceID    valueobjects.NodeID `json:"source_id"`
	TargetID    valueobjects.NodeID `json:"target_id"`
	IsTentative bool                `json:"is_tentative"`
}

// NewEdgeCreated creates an EdgeCreated event
func NewEdgeCreated(userID string, edgeID valueobjects.EdgeID, sourceID, targetID valueobjects.NodeID, tentative bool, timestamp time.Time) EdgeCreated {
	return EdgeCreated{
		BaseEvent: BaseEvent{
			AggregateID: edgeID.String(),
			EventType:   TypeEdgeCreated,
			Timestamp:   timestamp,
			UserID:      userID,
		},
		EdgeID:      edgeID,
		SourceID:    sourceID,
		TargetID:    targetID,
		IsTentative: tentative,
	}
}

// EdgeSolidified is raised when a tentative edge receives its label
type EdgeSolidified struct {
	BaseEvent
	EdgeID valueobjects.EdgeID `json:"edge_id"`
	Label  string              `json:"label"`
}

// NewEdgeSolidified creates an EdgeSolidified event
func NewEdgeSolidified(userID string, edgeID valueobjects.EdgeID, label string, timestamp time.Time) EdgeSolidified {
	return EdgeSolidified{
		BaseEvent: BaseEvent{
			AggregateID: edgeID.String(),
			EventType:   TypeEdgeSolidified,
			Timestamp:   timestamp,
			UserID:      userID,
		},
		EdgeID: edgeID,
		Label:  label,
	}
}

// EdgeDeleted is raised when an edge is deleted or cancelled
type EdgeDeleted struct {
	BaseEvent
	EdgeID   valueobjects.EdgeID `json:"edge_id"`
	SourceID valueobjects.NodeID `json:"source_id"`
	TargetID valueobjects.NodeID `json:"target_id"`
}

// NewEdgeDeleted creates an EdgeDeleted event
func NewEdgeDeleted(userID string, edgeID valueobjects.EdgeID, sourceID, targetID valueobjects.NodeID, timestamp time.Time) EdgeDeleted {
	return EdgeDeleted{
		BaseEvent: BaseEvent{
			AggregateID: edgeID.String(),
			EventType:   TypeEdgeDeleted,
			Timestamp:   timestamp,
			UserID:      userID,
		},
		EdgeID:   edgeID,
		SourceID: sourceID,
		TargetID: targetID,
	}
}

// Layout Events

// LayoutApplied is raised after an organize run is committed
type LayoutApplied struct {
	BaseEvent
	Algorithm    string `json:"algorithm"`
	NodesMoved   int    `json:"nodes_moved"`
	EdgesUpdated int    `json:"edges_updated"`
}

// NewLayoutApplied creates a LayoutApplied event
func NewLayoutApplied(userID, algorithm string, nodesMoved, edgesUpdated int, timestamp time.Time) LayoutApplied {
	return LayoutApplied{
		BaseEvent: BaseEvent{
			AggregateID: userID,
			EventType:   TypeLayoutApplied,
			Timestamp:   timestamp,
			UserID:      userID,
		},
		Algorithm:    algorithm,
		NodesMoved:   nodesMoved,
		EdgesUpdated: edgesUpdated,
	}
}
