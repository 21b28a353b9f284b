package valueobjects

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// NodeID identifies a node. Identifiers loaded from the remote store are opaque,
// freshly generated ones are UUIDs.
type NodeID string

// EdgeID identifies an edge
type EdgeID string

// MemoryUnitID identifies a memory unit
type MemoryUnitID string

// NewNodeID creates a new random NodeID
func NewNodeID() NodeID {
	return NodeID(uuid.New().String())
}

// NewEdgeID creates a new random EdgeID
func NewEdgeID() EdgeID {
	return EdgeID(uuid.New().String())
}

// NewMemoryUnitID creates a new random MemoryUnitID
func NewMemoryUnitID() MemoryUnitID {
	return MemoryUnitID(uuid.New().String())
}

// ParseNodeID creates a NodeID from an existing string
func ParseNodeID(id string) (NodeID, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", errors.New("node ID cannot be empty")
	}
	return NodeID(id), nil
}

// ParseEdgeID creates an EdgeID from an existing string
func ParseEdgeID(id string) (EdgeID, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", errors.New("edge ID cannot be empty")
	}
	return EdgeID(id), nil
}

// String returns the string representation of the NodeID
func (id NodeID) String() string { return string(id) }

// IsZero checks if the NodeID is the zero value
func (id NodeID) IsZero() bool { return id == "" }

func (id EdgeID) String() string { return string(id) }

func (id MemoryUnitID) String() string { return string(id) }

// IsUUID reports whether s is a well-formed UUID
func IsUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
