// Package layout computes node positions for a graph. Both algorithms are pure:
// they read a snapshot and return new coordinates without touching the graph.
package layout

import (
	"mindo/domain/core/valueobjects"
)

// Node is the layout view of a graph node
type Node struct {
	ID       valueobjects.NodeID
	Position valueobjects.Position
	// Size is the explicit render size; zero means "use the default".
	Size   valueobjects.Dimensions
	Weight int
}

// Edge is the layout view of a graph edge
type Edge struct {
	ID     valueobjects.EdgeID
	Source valueobjects.NodeID
	Target valueobjects.NodeID
}

// Handles names the node faces an edge attaches to
type Handles struct {
	Source string
	Target string
}

// Result is the output of a layout run
type Result struct {
	Positions map[valueobjects.NodeID]valueobjects.Position
	// Handles is only filled by the hierarchical layout.
	Handles map[valueobjects.EdgeID]Handles
}

// Algorithm selects a layout implementation
type Algorithm string

const (
	AlgorithmForce        Algorithm = "force"
	AlgorithmHierarchical Algorithm = "hierarchical"
)

// IsValid reports whether a is a known algorithm
func (a Algorithm) IsValid() bool {
	return a == AlgorithmForce || a == AlgorithmHierarchical
}

// Direction is the rank axis of the hierarchical layout
type Direction string

const (
	LeftToRight Direction = "LR"
	TopToBottom Direction = "TB"
)

// IsValid reports whether d is a known direction
func (d Direction) IsValid() bool {
	return d == LeftToRight || d == TopToBottom
}

// effectiveWeight treats an unweighted node as weight 1
func effectiveWeight(w int) float64 {
	if w <= 0 {
		return 1
	}
	return float64(w)
}

// index maps node ids to their slice position and filters edges whose
// endpoints are missing or identical
func index(nodes []Node, edges []Edge) (map[valueobjects.NodeID]int, []Edge) {
	ix := make(map[valueobjects.NodeID]int, len(nodes))
	for i, n := range nodes {
		ix[n.ID] = i
	}
	valid := make([]Edge, 0, len(edges))
	for _, e := range edges {
		_, s := ix[e.Source]
		_, t := ix[e.Target]
		if s && t && e.Source != e.Target {
			valid = append(valid, e)
		}
	}
	return ix, valid
}
