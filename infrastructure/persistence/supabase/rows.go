// Package supabase persists the note graph in Supabase tables and stores
// uploaded media in a Supabase Storage bucket.
package supabase

import (
	"time"

	"mindo/application/ports"
	"mindo/domain/core/entities"
	"mindo/domain/core/valueobjects"
)

// nodeRow mirrors the nodes table. position and data are jsonb columns.
type nodeRow struct {
	ID          string                `json:"id"`
	UserID      string                `json:"user_id"`
	Title       string                `json:"title"`
	Type        string                `json:"type"`
	Status      string                `json:"status"`
	Tags        []string              `json:"tags"`
	Weight      int                   `json:"weight"`
	Position    valueobjects.Position `json:"position"`
	Data        valueobjects.Payload  `json:"data"`
	LastReview  *time.Time            `json:"last_review"`
	NextReview  *time.Time            `json:"next_review"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
	MemoryUnits []unitRow             `json:"memory_units,omitempty"`
}

type edgeRow struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	SourceID     string    `json:"source_id"`
	TargetID     string    `json:"target_id"`
	SourceHandle *string   `json:"source_handle"`
	TargetHandle *string   `json:"target_handle"`
	Type         string    `json:"type"`
	Label        *string   `json:"label"`
	IsTentative  bool      `json:"is_tentative"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type unitRow struct {
	ID          string  `json:"id"`
	UserID      string  `json:"user_id,omitempty"`
	NodeID      string  `json:"node_id,omitempty"`
	Question    string  `json:"question"`
	Answer      string  `json:"answer"`
	TextSegment string  `json:"text_segment"`
	Status      string  `json:"status"`
	EaseFactor  float64 `json:"ease_factor,omitempty"`
	Interval    int     `json:"interval"`
}

func toNodeRow(n *entities.Node) nodeRow {
	tags := n.Tags
	if tags == nil {
		tags = []string{}
	}
	return nodeRow{
		ID:         n.ID.String(),
		UserID:     n.UserID,
		Title:      n.Label,
		Type:       string(n.Type),
		Status:     string(n.Status),
		Tags:       tags,
		Weight:     n.Weight,
		Position:   n.Position,
		Data:       valueobjects.EncodePayload(n.Content, n.Dimensions),
		LastReview: n.LastReview,
		NextReview: n.NextReview,
		CreatedAt:  n.CreatedAt,
		UpdatedAt:  n.UpdatedAt,
	}
}

func (r nodeRow) toEntity() *entities.Node {
	n := &entities.Node{
		ID:         valueobjects.NodeID(r.ID),
		UserID:     r.UserID,
		Label:      r.Title,
		Type:       valueobjects.NodeType(r.Type),
		Status:     entities.NodeStatus(r.Status),
		Tags:       r.Tags,
		Weight:     r.Weight,
		Position:   r.Position,
		LastReview: r.LastReview,
		NextReview: r.NextReview,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
	if n.Type == "" {
		n.Type = valueobjects.NodeTypeText
	}
	if n.Tags == nil {
		n.Tags = []string{}
	}
	n.Content, n.Dimensions = valueobjects.DecodeContent(n.Type, r.Data)
	for _, u := range r.MemoryUnits {
		n.MemoryUnits = append(n.MemoryUnits, u.toEntity())
	}
	return n
}

// nodeUpdateColumns renders an update as a column map, stamping updated_at
func nodeUpdateColumns(u ports.NodeUpdate, now time.Time) map[string]any {
	cols := map[string]any{"updated_at": now}
	if u.Label != nil {
		cols["title"] = *u.Label
	}
	if u.Status != nil {
		cols["status"] = string(*u.Status)
	}
	if u.Tags != nil {
		cols["tags"] = *u.Tags
	}
	if u.Weight != nil {
		cols["weight"] = *u.Weight
	}
	if u.LastReview != nil {
		cols["last_review"] = *u.LastReview
	}
	if u.NextReview != nil {
		cols["next_review"] = *u.NextReview
	}
	if u.Position != nil {
		cols["position"] = *u.Position
	}
	return cols
}

func toEdgeRow(userID string, e *entities.Edge, now time.Time) edgeRow {
	return edgeRow{
		ID:           e.ID.String(),
		UserID:       userID,
		SourceID:     e.Source.String(),
		TargetID:     e.Target.String(),
		SourceHandle: optional(e.SourceHandle),
		TargetHandle: optional(e.TargetHandle),
		Type:         string(e.Type),
		Label:        optional(e.SemanticLabel),
		IsTentative:  e.IsTentative,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    now,
	}
}

func (r edgeRow) toEntity() *entities.Edge {
	e := &entities.Edge{
		ID:           valueobjects.EdgeID(r.ID),
		Source:       valueobjects.NodeID(r.SourceID),
		Target:       valueobjects.NodeID(r.TargetID),
		Type:         entities.EdgeType(r.Type),
		SourceHandle: deref(r.SourceHandle),
		TargetHandle: deref(r.TargetHandle),
		IsTentative:  r.IsTentative,
		CreatedAt:    r.CreatedAt,
	}
	e.SemanticLabel = deref(r.Label)
	return e
}

func edgeUpdateColumns(u ports.EdgeUpdate, now time.Time) map[string]any {
	return map[string]any{
		"source_id":     u.Source.String(),
		"target_id":     u.Target.String(),
		"source_handle": optional(u.SourceHandle),
		"target_handle": optional(u.TargetHandle),
		"type":          string(u.Type),
		"is_tentative":  u.IsTentative,
		"label":         optional(u.Label),
		"updated_at":    now,
	}
}

func toUnitRow(userID string, nodeID valueobjects.NodeID, u entities.MemoryUnit) unitRow {
	return unitRow{
		ID:          u.ID.String(),
		UserID:      userID,
		NodeID:      nodeID.String(),
		Question:    u.Question,
		Answer:      u.Answer,
		TextSegment: u.TextSegment,
		Status:      string(u.Status),
		EaseFactor:  entities.DefaultEaseFactor,
		Interval:    entities.DefaultInterval,
	}
}

func (r unitRow) toEntity() entities.MemoryUnit {
	return entities.MemoryUnit{
		ID:          valueobjects.MemoryUnitID(r.ID),
		Question:    r.Question,
		Answer:      r.Answer,
		TextSegment: r.TextSegment,
		Status:      entities.UnitStatus(r.Status),
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
