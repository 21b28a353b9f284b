package ports

import (
	"context"
	"io"
	"time"

	"mindo/domain/core/entities"
	"mindo/domain/core/valueobjects"
	"mindo/domain/events"
)

// NodeUpdate carries the node columns to change. Nil fields are left alone.
type NodeUpdate struct {
	Label      *string
	Status     *entities.NodeStatus
	Tags       *[]string
	Weight     *int
	LastReview *time.Time
	NextReview *time.Time
	Position   *valueobjects.Position
}

// IsEmpty reports whether the update sets nothing
func (u NodeUpdate) IsEmpty() bool {
	return u.Label == nil && u.Status == nil && u.Tags == nil && u.Weight == nil &&
		u.LastReview == nil && u.NextReview == nil && u.Position == nil
}

// EdgeUpdate re-points an edge. Identity and type are kept by the store.
type EdgeUpdate struct {
	Source       valueobjects.NodeID
	Target       valueobjects.NodeID
	SourceHandle string
	TargetHandle string
	Type         entities.EdgeType
	IsTentative  bool
	Label        string
}

// NodeGateway persists nodes.
// This is a port in hexagonal architecture - the core doesn't know about the implementation
type NodeGateway interface {
	// FetchNodes returns every node of a user with its memory units joined
	FetchNodes(ctx context.Context, userID string) ([]*entities.Node, error)

	// CreateNode inserts a new node row
	CreateNode(ctx context.Context, node *entities.Node) error

	// UpdateNode changes the direct columns of a node
	UpdateNode(ctx context.Context, id valueobjects.NodeID, update NodeUpdate) error

	// UpdateNodeData replaces the content fields of the payload column, keeping its style
	UpdateNodeData(ctx context.Context, id valueobjects.NodeID, payload valueobjects.Payload) error

	// UpdateNodeStyle merges width/height into the payload style
	UpdateNodeStyle(ctx context.Context, id valueobjects.NodeID, dims valueobjects.Dimensions) error

	// DeleteNode removes a node row only; callers cascade
	DeleteNode(ctx context.Context, id valueobjects.NodeID) error
}

// EdgeGateway persists edges
type EdgeGateway interface {
	FetchEdges(ctx context.Context, userID string) ([]*entities.Edge, error)
	CreateEdge(ctx context.Context, userID string, edge *entities.Edge) error
	UpdateEdge(ctx context.Context, id valueobjects.EdgeID, update EdgeUpdate) error
	UpdateEdgeHandles(ctx context.Context, id valueobjects.EdgeID, sourceHandle, targetHandle string) error
	DeleteEdge(ctx context.Context, id valueobjects.EdgeID) error
}

// MemoryUnitGateway persists memory units
type MemoryUnitGateway interface {
	CreateMemoryUnit(ctx context.Context, userID string, nodeID valueobjects.NodeID, unit entities.MemoryUnit) error
	UpdateMemoryUnit(ctx context.Context, unit entities.MemoryUnit) error
	DeleteMemoryUnit(ctx context.Context, id valueobjects.MemoryUnitID) error
}

// Gateway is the full remote store contract
type Gateway interface {
	NodeGateway
	EdgeGateway
	MemoryUnitGateway
}

// BlobStorage stores uploaded media files
type BlobStorage interface {
	// Upload stores r under folder/name and returns its public URL
	Upload(ctx context.Context, folder, name, contentType string, r io.Reader) (string, error)

	// Delete removes the file behind a public URL
	Delete(ctx context.Context, url string) error

	// IsManaged reports whether url points into this storage
	IsManaged(url string) bool
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	// Publish sends a single event
	Publish(ctx context.Context, event events.DomainEvent) error

	// PublishBatch sends multiple events
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}

// Metrics receives operational observations
type Metrics interface {
	ObserveGatewayCall(operation string, duration time.Duration, err error)
	ObserveLayout(algorithm string, nodes int, duration time.Duration)
	IncReviewGrade(grade string)
}

// NopMetrics discards every observation
type NopMetrics struct{}

func (NopMetrics) ObserveGatewayCall(string, time.Duration, error) {}
func (NopMetrics) ObserveLayout(string, int, time.Duration)        {}
func (NopMetrics) IncReviewGrade(string)                           {}
