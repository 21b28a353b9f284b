package entities

import (
	"strings"
	"time"
	"unicode/utf8"

	"mindo/domain/config"
	"mindo/domain/core/valueobjects"
	pkgerrors "mindo/pkg/errors"
)

// NodeStatus is the learning lifecycle state of a node
type NodeStatus string

const (
	StatusNew       NodeStatus = "new"
	StatusLearning  NodeStatus = "learning"
	StatusReviewDue NodeStatus = "review_due"
	StatusMastered  NodeStatus = "mastered"
	StatusInbox     NodeStatus = "inbox"
)

// IsValid reports whether s is a known status
func (s NodeStatus) IsValid() bool {
	switch s {
	case StatusNew, StatusLearning, StatusReviewDue, StatusMastered, StatusInbox:
		return true
	}
	return false
}

// Node is a unit of content on the canvas
type Node struct {
	ID          valueobjects.NodeID
	UserID      string
	Label       string
	Type        valueobjects.NodeType
	Status      NodeStatus
	Content     valueobjects.Content
	Tags        []string
	Weight      int
	Position    valueobjects.Position
	Dimensions  valueobjects.Dimensions
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastReview  *time.Time
	NextReview  *time.Time
	MemoryUnits []MemoryUnit
}

// NewNode creates a node with default content for its type
func NewNode(userID, label string, nodeType valueobjects.NodeType, status NodeStatus, now time.Time, cfg *config.DomainConfig) (*Node, error) {
	if userID == "" {
		return nil, pkgerrors.NewValidationError("userID cannot be empty")
	}
	if nodeType == "" {
		nodeType = valueobjects.NodeTypeText
	}
	if !nodeType.IsValid() {
		return nil, pkgerrors.NewValidationError("unknown node type: " + string(nodeType))
	}
	if status == "" {
		status = StatusNew
	}
	if !status.IsValid() {
		return nil, pkgerrors.NewValidationError("unknown node status: " + string(status))
	}

	label = strings.TrimSpace(label)
	if err := validateLabel(label, cfg); err != nil {
		return nil, err
	}

	return &Node{
		ID:         valueobjects.NewNodeID(),
		UserID:     userID,
		Label:      label,
		Type:       nodeType,
		Status:     status,
		Content:    valueobjects.DefaultContent(nodeType, label),
		Tags:       []string{},
		Dimensions: defaultDimensions(nodeType, cfg),
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

func defaultDimensions(t valueobjects.NodeType, cfg *config.DomainConfig) valueobjects.Dimensions {
	var size config.Size
	switch t {
	case valueobjects.NodeTypeVideo:
		size = cfg.VideoSize
	case valueobjects.NodeTypeImage:
		size = cfg.ImageSize
	case valueobjects.NodeTypePDF:
		size = cfg.DocumentSize
	}
	return valueobjects.Dimensions{Width: size.Width, Height: size.Height}
}

func validateLabel(label string, cfg *config.DomainConfig) error {
	if label == "" {
		return pkgerrors.NewValidationError("label cannot be empty")
	}
	if utf8.RuneCountInString(label) > cfg.MaxLabelLength {
		return pkgerrors.NewValidationError("label exceeds maximum length")
	}
	return nil
}

// ValidateTags normalises a tag list, dropping blanks and duplicates
func ValidateTags(tags []string, cfg *config.DomainConfig) ([]string, error) {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	if len(out) > cfg.MaxTagsPerNode {
		return nil, pkgerrors.NewValidationError("too many tags")
	}
	return out, nil
}

// SetLabel validates and replaces the label
func (n *Node) SetLabel(label string, cfg *config.DomainConfig) error {
	label = strings.TrimSpace(label)
	if err := validateLabel(label, cfg); err != nil {
		return err
	}
	n.Label = label
	return nil
}

// HasTag reports whether the node carries tag (case-insensitive)
func (n *Node) HasTag(tag string) bool {
	for _, t := range n.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// IsOnCanvas reports whether the node takes part in layout, health and review
func (n *Node) IsOnCanvas() bool {
	return n.Status != StatusInbox
}

// AllUnitsMastered is true when the node has at least one memory unit and
// every unit is mastered.
func (n *Node) AllUnitsMastered() bool {
	if len(n.MemoryUnits) == 0 {
		return false
	}
	for _, u := range n.MemoryUnits {
		if u.Status != UnitStatusMastered {
			return false
		}
	}
	return true
}

// MemoryUnitIndex returns the index of unit id, or -1
func (n *Node) MemoryUnitIndex(id valueobjects.MemoryUnitID) int {
	for i := range n.MemoryUnits {
		if n.MemoryUnits[i].ID == id {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy safe to hand out of the graph state
func (n *Node) Clone() *Node {
	c := *n
	c.Tags = append([]string(nil), n.Tags...)
	c.MemoryUnits = append([]MemoryUnit(nil), n.MemoryUnits...)
	if n.LastReview != nil {
		t := *n.LastReview
		c.LastReview = &t
	}
	if n.NextReview != nil {
		t := *n.NextReview
		c.NextReview = &t
	}
	return &c
}
