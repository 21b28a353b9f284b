package handlers

import (
	"time"

	"mindo/domain/core/entities"
	"mindo/domain/core/valueobjects"
	"mindo/domain/health"
)

// NodeResponse is the wire shape of a node
type NodeResponse struct {
	ID          string                  `json:"id"`
	Label       string                  `json:"label"`
	Type        string                  `json:"type"`
	Status      string                  `json:"status"`
	Data        valueobjects.Payload    `json:"data"`
	Tags        []string                `json:"tags"`
	Weight      int                     `json:"weight"`
	Position    valueobjects.Position   `json:"position"`
	Dimensions  valueobjects.Dimensions `json:"dimensions"`
	Health      health.Status           `json:"health,omitempty"`
	LastReview  *time.Time              `json:"lastReview,omitempty"`
	NextReview  *time.Time              `json:"nextReview,omitempty"`
	CreatedAt   time.Time               `json:"createdAt"`
	UpdatedAt   time.Time               `json:"updatedAt"`
	MemoryUnits []MemoryUnitResponse    `json:"memoryUnits"`
}

// EdgeResponse is the wire shape of an edge
type EdgeResponse struct {
	ID            string    `json:"id"`
	Source        string    `json:"source"`
	Target        string    `json:"target"`
	Type          string    `json:"type"`
	SourceHandle  string    `json:"sourceHandle,omitempty"`
	TargetHandle  string    `json:"targetHandle,omitempty"`
	IsTentative   bool      `json:"isTentative"`
	SemanticLabel string    `json:"semanticLabel,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// MemoryUnitResponse is the wire shape of a memory unit
type MemoryUnitResponse struct {
	ID          string `json:"id"`
	Question    string `json:"question"`
	Answer      string `json:"answer"`
	TextSegment string `json:"textSegment"`
	Status      string `json:"status"`
}

// GraphResponse is the whole canvas
type GraphResponse struct {
	Nodes []NodeResponse `json:"nodes"`
	Edges []EdgeResponse `json:"edges"`
}

// IDResponse answers creations
type IDResponse struct {
	ID string `json:"id"`
}

func toNodeResponse(n *entities.Node, status health.Status) NodeResponse {
	tags := n.Tags
	if tags == nil {
		tags = []string{}
	}
	units := make([]MemoryUnitResponse, len(n.MemoryUnits))
	for i, u := range n.MemoryUnits {
		units[i] = MemoryUnitResponse{
			ID:          u.ID.String(),
			Question:    u.Question,
			Answer:      u.Answer,
			TextSegment: u.TextSegment,
			Status:      string(u.Status),
		}
	}
	return NodeResponse{
		ID:          n.ID.String(),
		Label:       n.Label,
		Type:        string(n.Type),
		Status:      string(n.Status),
		Data:        valueobjects.EncodePayload(n.Content, valueobjects.Dimensions{}),
		Tags:        tags,
		Weight:      n.Weight,
		Position:    n.Position,
		Dimensions:  n.Dimensions,
		Health:      status,
		LastReview:  n.LastReview,
		NextReview:  n.NextReview,
		CreatedAt:   n.CreatedAt,
		UpdatedAt:   n.UpdatedAt,
		MemoryUnits: units,
	}
}

func toEdgeResponse(e *entities.Edge) EdgeResponse {
	return EdgeResponse{
		ID:            e.ID.String(),
		Source:        e.Source.String(),
		Target:        e.Target.String(),
		Type:          string(e.Type),
		SourceHandle:  e.SourceHandle,
		TargetHandle:  e.TargetHandle,
		IsTentative:   e.IsTentative,
		SemanticLabel: e.SemanticLabel,
		CreatedAt:     e.CreatedAt,
	}
}

func toGraphResponse(nodes []*entities.Node, edges []*entities.Edge, statuses map[valueobjects.NodeID]health.Status) GraphResponse {
	resp := GraphResponse{
		Nodes: make([]NodeResponse, len(nodes)),
		Edges: make([]EdgeResponse, len(edges)),
	}
	for i, n := range nodes {
		resp.Nodes[i] = toNodeResponse(n, statuses[n.ID])
	}
	for i, e := range edges {
		resp.Edges[i] = toEdgeResponse(e)
	}
	return resp
}
