package supabase

import (
	"context"
	"time"

	"github.com/supabase-community/supabase-go"
	"go.uber.org/zap"

	"mindo/application/ports"
	"mindo/domain/core/entities"
	"mindo/domain/core/valueobjects"
	"mindo/pkg/errors"
)

const (
	tableNodes       = "nodes"
	tableEdges       = "edges"
	tableMemoryUnits = "memory_units"
)

// NewClient connects to a Supabase project
func NewClient(url, key string) (*supabase.Client, error) {
	client, err := supabase.NewClient(url, key, nil)
	if err != nil {
		return nil, errors.NewExternalError("supabase", err)
	}
	return client, nil
}

// Gateway implements ports.Gateway against the Supabase REST API.
// The REST client takes no context, so cancellation is only checked up front.
type Gateway struct {
	client *supabase.Client
	logger *zap.Logger
	now    func() time.Time
}

// NewGateway creates a gateway over a connected client
func NewGateway(client *supabase.Client, logger *zap.Logger) *Gateway {
	return &Gateway{client: client, logger: logger, now: time.Now}
}

// FetchNodes implements ports.NodeGateway
func (g *Gateway) FetchNodes(ctx context.Context, userID string) ([]*entities.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rows []nodeRow
	_, err := g.client.From(tableNodes).
		Select("*, memory_units(*)", "", false).
		Eq("user_id", userID).
		ExecuteTo(&rows)
	if err != nil {
		return nil, errors.NewDatabaseError("FetchNodes", err)
	}

	nodes := make([]*entities.Node, 0, len(rows))
	for _, r := range rows {
		nodes = append(nodes, r.toEntity())
	}
	g.logger.Debug("Fetched nodes", zap.String("userID", userID), zap.Int("count", len(nodes)))
	return nodes, nil
}

// CreateNode implements ports.NodeGateway
func (g *Gateway) CreateNode(ctx context.Context, node *entities.Node) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, _, err := g.client.From(tableNodes).Insert(toNodeRow(node), false, "", "minimal", "").Execute()
	if err != nil {
		return errors.NewDatabaseError("CreateNode", err)
	}
	return nil
}

// UpdateNode implements ports.NodeGateway
func (g *Gateway) UpdateNode(ctx context.Context, id valueobjects.NodeID, u ports.NodeUpdate) error {
	if u.IsEmpty() {
		return nil
	}
	return g.update(ctx, "UpdateNode", tableNodes, id.String(), nodeUpdateColumns(u, g.now()))
}

// UpdateNodeData implements ports.NodeGateway
func (g *Gateway) UpdateNodeData(ctx context.Context, id valueobjects.NodeID, payload valueobjects.Payload) error {
	return g.rewritePayload(ctx, "UpdateNodeData", id, func(stored valueobjects.Payload) valueobjects.Payload {
		return valueobjects.MergeContent(stored, payload)
	})
}

// UpdateNodeStyle implements ports.NodeGateway
func (g *Gateway) UpdateNodeStyle(ctx context.Context, id valueobjects.NodeID, dims valueobjects.Dimensions) error {
	return g.rewritePayload(ctx, "UpdateNodeStyle", id, func(stored valueobjects.Payload) valueobjects.Payload {
		return valueobjects.MergeStyle(stored, dims)
	})
}

// rewritePayload reads the data column, merges and writes it back. The two
// requests are not atomic.
func (g *Gateway) rewritePayload(ctx context.Context, op string, id valueobjects.NodeID, merge func(valueobjects.Payload) valueobjects.Payload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var rows []struct {
		Data valueobjects.Payload `json:"data"`
	}
	_, err := g.client.From(tableNodes).Select("data", "", false).Eq("id", id.String()).ExecuteTo(&rows)
	if err != nil {
		return errors.NewDatabaseError(op, err)
	}
	if len(rows) == 0 {
		return errors.NewNotFoundError("node")
	}

	return g.update(ctx, op, tableNodes, id.String(), map[string]any{
		"data":       merge(rows[0].Data),
		"updated_at": g.now(),
	})
}

// DeleteNode implements ports.NodeGateway
func (g *Gateway) DeleteNode(ctx context.Context, id valueobjects.NodeID) error {
	return g.delete(ctx, "DeleteNode", tableNodes, id.String())
}

// FetchEdges implements ports.EdgeGateway
func (g *Gateway) FetchEdges(ctx context.Context, userID string) ([]*entities.Edge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rows []edgeRow
	_, err := g.client.From(tableEdges).Select("*", "", false).Eq("user_id", userID).ExecuteTo(&rows)
	if err != nil {
		return nil, errors.NewDatabaseError("FetchEdges", err)
	}
	edges := make([]*entities.Edge, 0, len(rows))
	for _, r := range rows {
		edges = append(edges, r.toEntity())
	}
	return edges, nil
}

// CreateEdge implements ports.EdgeGateway
func (g *Gateway) CreateEdge(ctx context.Context, userID string, edge *entities.Edge) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, _, err := g.client.From(tableEdges).Insert(toEdgeRow(userID, edge, g.now()), false, "", "minimal", "").Execute()
	if err != nil {
		return errors.NewDatabaseError("CreateEdge", err)
	}
	return nil
}

// UpdateEdge implements ports.EdgeGateway
func (g *Gateway) UpdateEdge(ctx context.Context, id valueobjects.EdgeID, u ports.EdgeUpdate) error {
	return g.update(ctx, "UpdateEdge", tableEdges, id.String(), edgeUpdateColumns(u, g.now()))
}

// UpdateEdgeHandles implements ports.EdgeGateway
func (g *Gateway) UpdateEdgeHandles(ctx context.Context, id valueobjects.EdgeID, sourceHandle, targetHandle string) error {
	return g.update(ctx, "UpdateEdgeHandles", tableEdges, id.String(), map[string]any{
		"source_handle": optional(sourceHandle),
		"target_handle": optional(targetHandle),
		"updated_at":    g.now(),
	})
}

// DeleteEdge implements ports.EdgeGateway
func (g *Gateway) DeleteEdge(ctx context.Context, id valueobjects.EdgeID) error {
	return g.delete(ctx, "DeleteEdge", tableEdges, id.String())
}

// CreateMemoryUnit implements ports.MemoryUnitGateway
func (g *Gateway) CreateMemoryUnit(ctx context.Context, userID string, nodeID valueobjects.NodeID, unit entities.MemoryUnit) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, _, err := g.client.From(tableMemoryUnits).Insert(toUnitRow(userID, nodeID, unit), false, "", "minimal", "").Execute()
	if err != nil {
		return errors.NewDatabaseError("CreateMemoryUnit", err)
	}
	return nil
}

// UpdateMemoryUnit implements ports.MemoryUnitGateway
func (g *Gateway) UpdateMemoryUnit(ctx context.Context, unit entities.MemoryUnit) error {
	return g.update(ctx, "UpdateMemoryUnit", tableMemoryUnits, unit.ID.String(), map[string]any{
		"question":     unit.Question,
		"answer":       unit.Answer,
		"text_segment": unit.TextSegment,
		"status":       string(unit.Status),
		"updated_at":   g.now(),
	})
}

// DeleteMemoryUnit implements ports.MemoryUnitGateway
func (g *Gateway) DeleteMemoryUnit(ctx context.Context, id valueobjects.MemoryUnitID) error {
	return g.delete(ctx, "DeleteMemoryUnit", tableMemoryUnits, id.String())
}

func (g *Gateway) update(ctx context.Context, op, table, id string, columns map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, _, err := g.client.From(table).Update(columns, "minimal", "").Eq("id", id).Execute(); err != nil {
		return errors.NewDatabaseError(op, err)
	}
	return nil
}

func (g *Gateway) delete(ctx context.Context, op, table, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, _, err := g.client.From(table).Delete("minimal", "").Eq("id", id).Execute(); err != nil {
		return errors.NewDatabaseError(op, err)
	}
	return nil
}
