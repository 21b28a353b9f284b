package aggregates

import (
	"mindo/domain/core/entities"
	"mindo/domain/core/valueobjects"
	pkgerrors "mindo/pkg/errors"
)

// Graph is the aggregate root for a user's canvas.
// It owns nodes and edges in insertion order and guarantees that every edge
// references existing nodes.
type Graph struct {
	userID string
	nodes  []*entities.Node
	edges  []*entities.Edge
	nodeIx map[valueobjects.NodeID]int
	edgeIx map[valueobjects.EdgeID]int
}

// NewGraph creates an empty graph for a user
func NewGraph(userID string) *Graph {
	return &Graph{
		userID: userID,
		nodeIx: make(map[valueobjects.NodeID]int),
		edgeIx: make(map[valueobjects.EdgeID]int),
	}
}

// UserID returns the owner's ID
func (g *Graph) UserID() string {
	return g.userID
}

// Replace swaps the whole content of the graph. Edges whose endpoints are not
// among nodes are dropped and returned so the caller can report them.
func (g *Graph) Replace(nodes []*entities.Node, edges []*entities.Edge) []*entities.Edge {
	g.nodes = g.nodes[:0]
	g.edges = g.edges[:0]
	g.nodeIx = make(map[valueobjects.NodeID]int, len(nodes))
	g.edgeIx = make(map[valueobjects.EdgeID]int, len(edges))

	for _, n := range nodes {
		if n == nil {
			continue
		}
		if _, dup := g.nodeIx[n.ID]; dup {
			continue
		}
		g.nodeIx[n.ID] = len(g.nodes)
		g.nodes = append(g.nodes, n)
	}

	var dropped []*entities.Edge
	for _, e := range edges {
		if e == nil {
			continue
		}
		if !g.HasNode(e.Source) || !g.HasNode(e.Target) {
			dropped = append(dropped, e)
			continue
		}
		if _, dup := g.edgeIx[e.ID]; dup {
			continue
		}
		g.edgeIx[e.ID] = len(g.edges)
		g.edges = append(g.edges, e)
	}
	return dropped
}

// AddNode adds a node to the graph
func (g *Graph) AddNode(node *entities.Node) error {
	if node == nil {
		return pkgerrors.NewValidationError("node cannot be nil")
	}
	if _, exists := g.nodeIx[node.ID]; exists {
		return pkgerrors.NewConflictError("node already exists in graph")
	}
	g.nodeIx[node.ID] = len(g.nodes)
	g.nodes = append(g.nodes, node)
	return nil
}

// AddEdge adds an edge after checking both endpoints exist
func (g *Graph) AddEdge(edge *entities.Edge) error {
	if edge == nil {
		return pkgerrors.NewValidationError("edge cannot be nil")
	}
	if _, exists := g.edgeIx[edge.ID]; exists {
		return pkgerrors.NewConflictError("edge already exists in graph")
	}
	if !g.HasNode(edge.Source) {
		return pkgerrors.NewNotFoundError("source node")
	}
	if !g.HasNode(edge.Target) {
		return pkgerrors.NewNotFoundError("target node")
	}
	g.edgeIx[edge.ID] = len(g.edges)
	g.edges = append(g.edges, edge)
	return nil
}

// Node returns the live node for id, or nil
func (g *Graph) Node(id valueobjects.NodeID) *entities.Node {
	if i, ok := g.nodeIx[id]; ok {
		return g.nodes[i]
	}
	return nil
}

// Edge returns the live edge for id, or nil
func (g *Graph) Edge(id valueobjects.EdgeID) *entities.Edge {
	if i, ok := g.edgeIx[id]; ok {
		return g.edges[i]
	}
	return nil
}

// HasNode checks if a node exists in the graph
func (g *Graph) HasNode(id valueobjects.NodeID) bool {
	_, ok := g.nodeIx[id]
	return ok
}

// Nodes returns the live nodes in insertion order. Callers must not retain the
// slice across mutations.
func (g *Graph) Nodes() []*entities.Node {
	return g.nodes
}

// Edges returns the live edges in insertion order
func (g *Graph) Edges() []*entities.Edge {
	return g.edges
}

// NodeCount returns the number of nodes
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges
func (g *Graph) EdgeCount() int { return len(g.edges) }

// RemoveNodes removes the given nodes and every edge touching them. It returns
// the removed nodes and edges; unknown ids are ignored.
func (g *Graph) RemoveNodes(ids ...valueobjects.NodeID) ([]*entities.Node, []*entities.Edge) {
	doomed := make(map[valueobjects.NodeID]struct{}, len(ids))
	for _, id := range ids {
		if g.HasNode(id) {
			doomed[id] = struct{}{}
		}
	}
	if len(doomed) == 0 {
		return nil, nil
	}

	var removedEdges []*entities.Edge
	keptEdges := g.edges[:0]
	for _, e := range g.edges {
		_, s := doomed[e.Source]
		_, t := doomed[e.Target]
		if s || t {
			removedEdges = append(removedEdges, e)
			continue
		}
		keptEdges = append(keptEdges, e)
	}
	g.edges = keptEdges

	var removedNodes []*entities.Node
	keptNodes := g.nodes[:0]
	for _, n := range g.nodes {
		if _, ok := doomed[n.ID]; ok {
			removedNodes = append(removedNodes, n)
			continue
		}
		keptNodes = append(keptNodes, n)
	}
	g.nodes = keptNodes

	g.reindex()
	return removedNodes, removedEdges
}

// RemoveEdge removes a single edge
func (g *Graph) RemoveEdge(id valueobjects.EdgeID) (*entities.Edge, bool) {
	i, ok := g.edgeIx[id]
	if !ok {
		return nil, false
	}
	e := g.edges[i]
	g.edges = append(g.edges[:i], g.edges[i+1:]...)
	g.reindex()
	return e, true
}

// ConnectionCounts returns the connection count of every node in one pass
func (g *Graph) ConnectionCounts() map[valueobjects.NodeID]int {
	counts := make(map[valueobjects.NodeID]int, len(g.nodes))
	for _, e := range g.edges {
		counts[e.Source]++
		if e.Target != e.Source {
			counts[e.Target]++
		}
	}
	return counts
}

// Neighbors returns the ids connected to id, in edge order, without duplicates
func (g *Graph) Neighbors(id valueobjects.NodeID) []valueobjects.NodeID {
	seen := make(map[valueobjects.NodeID]struct{})
	var out []valueobjects.NodeID
	for _, e := range g.edges {
		var other valueobjects.NodeID
		switch id {
		case e.Source:
			other = e.Target
		case e.Target:
			other = e.Source
		default:
			continue
		}
		if _, dup := seen[other]; dup {
			continue
		}
		seen[other] = struct{}{}
		out = append(out, other)
	}
	return out
}

// Validate ensures graph invariants
func (g *Graph) Validate() error {
	for _, e := range g.edges {
		if !g.HasNode(e.Source) {
			return pkgerrors.NewInternalError("edge references non-existent source node " + e.Source.String())
		}
		if !g.HasNode(e.Target) {
			return pkgerrors.NewInternalError("edge references non-existent target node " + e.Target.String())
		}
	}
	if len(g.nodeIx) != len(g.nodes) || len(g.edgeIx) != len(g.edges) {
		return pkgerrors.NewInternalError("index size mismatch")
	}
	return nil
}

// Snapshot returns deep copies of all nodes and edges
func (g *Graph) Snapshot() ([]*entities.Node, []*entities.Edge) {
	nodes := make([]*entities.Node, len(g.nodes))
	for i, n := range g.nodes {
		nodes[i] = n.Clone()
	}
	edges := make([]*entities.Edge, len(g.edges))
	for i, e := range g.edges {
		edges[i] = e.Clone()
	}
	return nodes, edges
}

func (g *Graph) reindex() {
	g.nodeIx = make(map[valueobjects.NodeID]int, len(g.nodes))
	for i, n := range g.nodes {
		g.nodeIx[n.ID] = i
	}
	g.edgeIx = make(map[valueobjects.EdgeID]int, len(g.edges))
	for i, e := range g.edges {
		g.edgeIx[e.ID] = i
	}
}
