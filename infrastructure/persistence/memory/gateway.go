// Package memory provides process-local implementations of the persistence
// ports. They back the CLI, local development and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"mindo/application/ports"
	"mindo/domain/core/entities"
	"mindo/domain/core/valueobjects"
	"mindo/pkg/errors"
)

// Gateway is an in-memory ports.Gateway. Every value crossing the boundary
// is copied, so callers never share state with the store.
type Gateway struct {
	mu       sync.RWMutex
	nodes    map[valueobjects.NodeID]*entities.Node
	edges    map[valueobjects.EdgeID]*storedEdge
	unitNode map[valueobjects.MemoryUnitID]valueobjects.NodeID
	failures map[string]error
	calls    []string
}

type storedEdge struct {
	userID string
	edge   *entities.Edge
}

// NewGateway creates an empty store
func NewGateway() *Gateway {
	return &Gateway{
		nodes:    make(map[valueobjects.NodeID]*entities.Node),
		edges:    make(map[valueobjects.EdgeID]*storedEdge),
		unitNode: make(map[valueobjects.MemoryUnitID]valueobjects.NodeID),
		failures: make(map[string]error),
	}
}

// FailOn makes every later call of operation return err. A nil err clears it.
func (g *Gateway) FailOn(operation string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err == nil {
		delete(g.failures, operation)
		return
	}
	g.failures[operation] = err
}

// Calls returns the operations invoked so far, in order
func (g *Gateway) Calls() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.calls...)
}

// record logs the call and returns the injected failure, if any. Caller holds the lock.
func (g *Gateway) record(operation string) error {
	g.calls = append(g.calls, operation)
	return g.failures[operation]
}

// Seed stores nodes and edges directly, bypassing failure injection
func (g *Gateway) Seed(userID string, nodes []*entities.Node, edges []*entities.Edge) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, n := range nodes {
		c := n.Clone()
		if c.UserID == "" {
			c.UserID = userID
		}
		g.nodes[c.ID] = c
		for _, u := range c.MemoryUnits {
			g.unitNode[u.ID] = c.ID
		}
	}
	for _, e := range edges {
		g.edges[e.ID] = &storedEdge{userID: userID, edge: e.Clone()}
	}
}

// StoredNode returns a copy of a persisted node
func (g *Gateway) StoredNode(id valueobjects.NodeID) (*entities.Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	if !ok {
		return nil, false
	}
	return n.Clone(), true
}

// StoredEdge returns a copy of a persisted edge
func (g *Gateway) StoredEdge(id valueobjects.EdgeID) (*entities.Edge, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e, ok := g.edges[id]
	if !ok {
		return nil, false
	}
	return e.edge.Clone(), true
}

// FetchNodes implements ports.NodeGateway
func (g *Gateway) FetchNodes(ctx context.Context, userID string) ([]*entities.Node, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.record("FetchNodes"); err != nil {
		return nil, err
	}

	var out []*entities.Node
	for _, n := range g.nodes {
		if n.UserID == userID {
			out = append(out, n.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// CreateNode implements ports.NodeGateway
func (g *Gateway) CreateNode(ctx context.Context, node *entities.Node) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.record("CreateNode"); err != nil {
		return err
	}
	if _, exists := g.nodes[node.ID]; exists {
		return errors.NewConflictError("node already exists")
	}
	g.nodes[node.ID] = node.Clone()
	return nil
}

// UpdateNode implements ports.NodeGateway
func (g *Gateway) UpdateNode(ctx context.Context, id valueobjects.NodeID, u ports.NodeUpdate) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.record("UpdateNode"); err != nil {
		return err
	}
	n, ok := g.nodes[id]
	if !ok {
		return errors.NewNotFoundError("node")
	}
	if u.Label != nil {
		n.Label = *u.Label
	}
	if u.Status != nil {
		n.Status = *u.Status
	}
	if u.Tags != nil {
		n.Tags = append([]string(nil), (*u.Tags)...)
	}
	if u.Weight != nil {
		n.Weight = *u.Weight
	}
	if u.LastReview != nil {
		t := *u.LastReview
		n.LastReview = &t
	}
	if u.NextReview != nil {
		t := *u.NextReview
		n.NextReview = &t
	}
	if u.Position != nil {
		n.Position = *u.Position
	}
	return nil
}

// UpdateNodeData implements ports.NodeGateway
func (g *Gateway) UpdateNodeData(ctx context.Context, id valueobjects.NodeID, payload valueobjects.Payload) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.record("UpdateNodeData"); err != nil {
		return err
	}
	n, ok := g.nodes[id]
	if !ok {
		return errors.NewNotFoundError("node")
	}
	stored := valueobjects.EncodePayload(n.Content, n.Dimensions)
	n.Content, n.Dimensions = valueobjects.DecodeContent(n.Type, valueobjects.MergeContent(stored, payload))
	return nil
}

// UpdateNodeStyle implements ports.NodeGateway
func (g *Gateway) UpdateNodeStyle(ctx context.Context, id valueobjects.NodeID, dims valueobjects.Dimensions) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.record("UpdateNodeStyle"); err != nil {
		return err
	}
	n, ok := g.nodes[id]
	if !ok {
		return errors.NewNotFoundError("node")
	}
	n.Dimensions = n.Dimensions.Merge(dims)
	return nil
}

// DeleteNode implements ports.NodeGateway
func (g *Gateway) DeleteNode(ctx context.Context, id valueobjects.NodeID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.record("DeleteNode"); err != nil {
		return err
	}
	delete(g.nodes, id)
	return nil
}

// FetchEdges implements ports.EdgeGateway
func (g *Gateway) FetchEdges(ctx context.Context, userID string) ([]*entities.Edge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.record("FetchEdges"); err != nil {
		return nil, err
	}

	var out []*entities.Edge
	for _, e := range g.edges {
		if e.userID == userID {
			out = append(out, e.edge.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// CreateEdge implements ports.EdgeGateway
func (g *Gateway) CreateEdge(ctx context.Context, userID string, edge *entities.Edge) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.record("CreateEdge"); err != nil {
		return err
	}
	if _, exists := g.edges[edge.ID]; exists {
		return errors.NewConflictError("edge already exists")
	}
	g.edges[edge.ID] = &storedEdge{userID: userID, edge: edge.Clone()}
	return nil
}

// UpdateEdge implements ports.EdgeGateway
func (g *Gateway) UpdateEdge(ctx context.Context, id valueobjects.EdgeID, u ports.EdgeUpdate) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.record("UpdateEdge"); err != nil {
		return err
	}
	e, ok := g.edges[id]
	if !ok {
		return errors.NewNotFoundError("edge")
	}
	e.edge.Source = u.Source
	e.edge.Target = u.Target
	e.edge.SourceHandle = u.SourceHandle
	e.edge.TargetHandle = u.TargetHandle
	e.edge.Type = u.Type
	e.edge.IsTentative = u.IsTentative
	e.edge.SemanticLabel = u.Label
	return nil
}

// UpdateEdgeHandles implements ports.EdgeGateway
func (g *Gateway) UpdateEdgeHandles(ctx context.Context, id valueobjects.EdgeID, sourceHandle, targetHandle string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.record("UpdateEdgeHandles"); err != nil {
		return err
	}
	e, ok := g.edges[id]
	if !ok {
		return errors.NewNotFoundError("edge")
	}
	e.edge.SourceHandle = sourceHandle
	e.edge.TargetHandle = targetHandle
	return nil
}

// DeleteEdge implements ports.EdgeGateway
func (g *Gateway) DeleteEdge(ctx context.Context, id valueobjects.EdgeID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.record("DeleteEdge"); err != nil {
		return err
	}
	delete(g.edges, id)
	return nil
}

// CreateMemoryUnit implements ports.MemoryUnitGateway
func (g *Gateway) CreateMemoryUnit(ctx context.Context, userID string, nodeID valueobjects.NodeID, unit entities.MemoryUnit) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.record("CreateMemoryUnit"); err != nil {
		return err
	}
	n, ok := g.nodes[nodeID]
	if !ok {
		return errors.NewNotFoundError("node")
	}
	n.MemoryUnits = append(n.MemoryUnits, unit)
	g.unitNode[unit.ID] = nodeID
	return nil
}

// UpdateMemoryUnit implements ports.MemoryUnitGateway
func (g *Gateway) UpdateMemoryUnit(ctx context.Context, unit entities.MemoryUnit) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.record("UpdateMemoryUnit"); err != nil {
		return err
	}
	n, i := g.unitLocation(unit.ID)
	if n == nil {
		return errors.NewNotFoundError("memory unit")
	}
	n.MemoryUnits[i] = unit
	return nil
}

// DeleteMemoryUnit implements ports.MemoryUnitGateway
func (g *Gateway) DeleteMemoryUnit(ctx context.Context, id valueobjects.MemoryUnitID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.record("DeleteMemoryUnit"); err != nil {
		return err
	}
	if n, i := g.unitLocation(id); n != nil {
		n.MemoryUnits = append(n.MemoryUnits[:i], n.MemoryUnits[i+1:]...)
	}
	delete(g.unitNode, id)
	return nil
}

func (g *Gateway) unitLocation(id valueobjects.MemoryUnitID) (*entities.Node, int) {
	nodeID, ok := g.unitNode[id]
	if !ok {
		return nil, -1
	}
	n, ok := g.nodes[nodeID]
	if !ok {
		return nil, -1
	}
	i := n.MemoryUnitIndex(id)
	if i < 0 {
		return nil, -1
	}
	return n, i
}
