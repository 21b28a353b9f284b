package entities

import (
	"strings"
	"time"

	"mindo/domain/core/valueobjects"
	pkgerrors "mindo/pkg/errors"
)

// EdgeType defines the kind of connection between two nodes
type EdgeType string

const (
	// EdgeTypeSocratic is the tentative marker: a connection awaiting justification.
	EdgeTypeSocratic EdgeType = "socratic"
	EdgeTypeSemantic EdgeType = "semantic"
	// EdgeTypeBiologic is decorative only.
	EdgeTypeBiologic EdgeType = "biologic"
)

// IsValid reports whether t is a known edge type
func (t EdgeType) IsValid() bool {
	return t == EdgeTypeSocratic || t == EdgeTypeSemantic || t == EdgeTypeBiologic
}

// Edge is a directed connection between two nodes
type Edge struct {
	ID            valueobjects.EdgeID
	Source        valueobjects.NodeID
	Target        valueobjects.NodeID
	Type          EdgeType
	SourceHandle  string
	TargetHandle  string
	IsTentative   bool
	SemanticLabel string
	CreatedAt     time.Time
}

// Connection is a drag from one node handle to another
type Connection struct {
	Source       valueobjects.NodeID
	Target       valueobjects.NodeID
	SourceHandle string
	TargetHandle string
}

// Validate checks the structural shape of the connection
func (c Connection) Validate() error {
	if c.Source == "" || c.Target == "" {
		return pkgerrors.NewValidationError("connection requires source and target")
	}
	if c.Source == c.Target {
		return pkgerrors.NewValidationError("a node cannot connect to itself")
	}
	return nil
}

// NewTentativeEdge creates an unlabeled edge pending justification
func NewTentativeEdge(conn Connection, now time.Time) (*Edge, error) {
	if err := conn.Validate(); err != nil {
		return nil, err
	}
	return &Edge{
		ID:           valueobjects.NewEdgeID(),
		Source:       conn.Source,
		Target:       conn.Target,
		Type:         EdgeTypeSocratic,
		SourceHandle: conn.SourceHandle,
		TargetHandle: conn.TargetHandle,
		IsTentative:  true,
		CreatedAt:    now,
	}, nil
}

// NewSolidEdge creates an already-labeled semantic edge
func NewSolidEdge(conn Connection, label string, now time.Time) (*Edge, error) {
	if err := conn.Validate(); err != nil {
		return nil, err
	}
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, pkgerrors.NewValidationError("a solid edge needs a label")
	}
	return &Edge{
		ID:            valueobjects.NewEdgeID(),
		Source:        conn.Source,
		Target:        conn.Target,
		Type:          EdgeTypeSemantic,
		SourceHandle:  conn.SourceHandle,
		TargetHandle:  conn.TargetHandle,
		SemanticLabel: label,
		CreatedAt:     now,
	}, nil
}

// Solidify turns a tentative edge into a labeled semantic edge. The
// transition is one-way.
func (e *Edge) Solidify(label string) error {
	if !e.IsTentative {
		return pkgerrors.NewConflictError("edge is already solid")
	}
	label = strings.TrimSpace(label)
	if label == "" {
		return pkgerrors.NewValidationError("a label is required to solidify an edge")
	}
	e.IsTentative = false
	e.Type = EdgeTypeSemantic
	e.SemanticLabel = label
	return nil
}

// Touches reports whether the edge has id as one of its endpoints
func (e *Edge) Touches(id valueobjects.NodeID) bool {
	return e.Source == id || e.Target == id
}

// Clone returns a copy of the edge
func (e *Edge) Clone() *Edge {
	c := *e
	return &c
}
