package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"mindo/application/ports"
	"mindo/domain/core/entities"
	"mindo/domain/core/valueobjects"
	"mindo/pkg/errors"
)

// Gateway implements ports.Gateway on top of the SQLite schema.
type Gateway struct {
	db     *DB
	logger *zap.Logger
	now    func() time.Time
}

// NewGateway creates a gateway over an opened database
func NewGateway(db *DB, logger *zap.Logger) *Gateway {
	return &Gateway{db: db, logger: logger, now: time.Now}
}

const nodeColumns = `id, user_id, label, type, status, data, tags, weight,
	position_x, position_y, last_review, next_review, created_at, updated_at`

// FetchNodes returns every node of the user with its memory units joined
func (g *Gateway) FetchNodes(ctx context.Context, userID string) ([]*entities.Node, error) {
	rows, err := g.db.QueryContext(ctx,
		`SELECT `+nodeColumns+` FROM nodes WHERE user_id = ? ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, errors.NewDatabaseError("FetchNodes", err)
	}
	defer rows.Close()

	var nodes []*entities.Node
	byID := make(map[valueobjects.NodeID]*entities.Node)
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, errors.NewDatabaseError("FetchNodes", err)
		}
		nodes = append(nodes, n)
		byID[n.ID] = n
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDatabaseError("FetchNodes", err)
	}

	units, err := g.db.QueryContext(ctx,
		`SELECT id, node_id, question, answer, text_segment, status
		 FROM memory_units WHERE user_id = ? ORDER BY rowid`, userID)
	if err != nil {
		return nil, errors.NewDatabaseError("FetchNodes", err)
	}
	defer units.Close()

	for units.Next() {
		var (
			u      entities.MemoryUnit
			nodeID string
			status string
		)
		if err := units.Scan(&u.ID, &nodeID, &u.Question, &u.Answer, &u.TextSegment, &status); err != nil {
			return nil, errors.NewDatabaseError("FetchNodes", err)
		}
		u.Status = entities.UnitStatus(status)
		if n, ok := byID[valueobjects.NodeID(nodeID)]; ok {
			n.MemoryUnits = append(n.MemoryUnits, u)
		}
	}
	if err := units.Err(); err != nil {
		return nil, errors.NewDatabaseError("FetchNodes", err)
	}

	g.logger.Debug("Fetched nodes", zap.String("userID", userID), zap.Int("count", len(nodes)))
	return nodes, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNode(s scanner) (*entities.Node, error) {
	var (
		n                      entities.Node
		id, nodeType, status   string
		data, tags             string
		lastReview, nextReview sql.NullInt64
		createdAt, updatedAt   int64
	)
	err := s.Scan(&id, &n.UserID, &n.Label, &nodeType, &status, &data, &tags, &n.Weight,
		&n.Position.X, &n.Position.Y, &lastReview, &nextReview, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	n.ID = valueobjects.NodeID(id)
	n.Type = valueobjects.NodeType(nodeType)
	n.Status = entities.NodeStatus(status)
	n.CreatedAt = time.UnixMilli(createdAt).UTC()
	n.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	n.LastReview = fromMillis(lastReview)
	n.NextReview = fromMillis(nextReview)

	var payload valueobjects.Payload
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		return nil, fmt.Errorf("decode data of node %s: %w", id, err)
	}
	n.Content, n.Dimensions = valueobjects.DecodeContent(n.Type, payload)

	n.Tags = []string{}
	if err := json.Unmarshal([]byte(tags), &n.Tags); err != nil {
		return nil, fmt.Errorf("decode tags of node %s: %w", id, err)
	}
	return &n, nil
}

// CreateNode inserts a new node row
func (g *Gateway) CreateNode(ctx context.Context, node *entities.Node) error {
	data, err := json.Marshal(valueobjects.EncodePayload(node.Content, node.Dimensions))
	if err != nil {
		return errors.NewInternalError("failed to encode node data").WithCause(err)
	}
	tags, err := json.Marshal(nonNil(node.Tags))
	if err != nil {
		return errors.NewInternalError("failed to encode node tags").WithCause(err)
	}

	_, err = g.db.ExecContext(ctx,
		`INSERT INTO nodes (`+nodeColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		node.ID.String(), node.UserID, node.Label, string(node.Type), string(node.Status),
		string(data), string(tags), node.Weight, node.Position.X, node.Position.Y,
		toMillis(node.LastReview), toMillis(node.NextReview),
		node.CreatedAt.UnixMilli(), node.UpdatedAt.UnixMilli())
	if err != nil {
		if isUniqueViolation(err) {
			return errors.NewConflictError("node already exists")
		}
		return errors.NewDatabaseError("CreateNode", err)
	}
	return nil
}

// UpdateNode changes the direct columns of a node
func (g *Gateway) UpdateNode(ctx context.Context, id valueobjects.NodeID, u ports.NodeUpdate) error {
	if u.IsEmpty() {
		return nil
	}

	var (
		sets []string
		args []any
	)
	set := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}
	if u.Label != nil {
		set("label", *u.Label)
	}
	if u.Status != nil {
		set("status", string(*u.Status))
	}
	if u.Tags != nil {
		tags, err := json.Marshal(nonNil(*u.Tags))
		if err != nil {
			return errors.NewInternalError("failed to encode node tags").WithCause(err)
		}
		set("tags", string(tags))
	}
	if u.Weight != nil {
		set("weight", *u.Weight)
	}
	if u.LastReview != nil {
		set("last_review", u.LastReview.UnixMilli())
	}
	if u.NextReview != nil {
		set("next_review", u.NextReview.UnixMilli())
	}
	if u.Position != nil {
		set("position_x", u.Position.X)
		set("position_y", u.Position.Y)
	}
	set("updated_at", g.now().UnixMilli())
	args = append(args, id.String())

	res, err := g.db.ExecContext(ctx, `UPDATE nodes SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return errors.NewDatabaseError("UpdateNode", err)
	}
	return requireRow(res, "node")
}

// UpdateNodeData replaces the content fields of the payload, keeping its style
func (g *Gateway) UpdateNodeData(ctx context.Context, id valueobjects.NodeID, payload valueobjects.Payload) error {
	return g.rewritePayload(ctx, "UpdateNodeData", id, func(stored valueobjects.Payload) valueobjects.Payload {
		return valueobjects.MergeContent(stored, payload)
	})
}

// UpdateNodeStyle merges width/height into the payload style
func (g *Gateway) UpdateNodeStyle(ctx context.Context, id valueobjects.NodeID, dims valueobjects.Dimensions) error {
	return g.rewritePayload(ctx, "UpdateNodeStyle", id, func(stored valueobjects.Payload) valueobjects.Payload {
		return valueobjects.MergeStyle(stored, dims)
	})
}

func (g *Gateway) rewritePayload(ctx context.Context, op string, id valueobjects.NodeID, merge func(valueobjects.Payload) valueobjects.Payload) error {
	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewDatabaseError(op, err)
	}
	defer tx.Rollback()

	var data string
	err = tx.QueryRowContext(ctx, `SELECT data FROM nodes WHERE id = ?`, id.String()).Scan(&data)
	if err == sql.ErrNoRows {
		return errors.NewNotFoundError("node")
	}
	if err != nil {
		return errors.NewDatabaseError(op, err)
	}

	var stored valueobjects.Payload
	if err := json.Unmarshal([]byte(data), &stored); err != nil {
		return errors.NewDatabaseError(op, err)
	}
	updated, err := json.Marshal(merge(stored))
	if err != nil {
		return errors.NewInternalError("failed to encode node data").WithCause(err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE nodes SET data = ?, updated_at = ? WHERE id = ?`,
		string(updated), g.now().UnixMilli(), id.String()); err != nil {
		return errors.NewDatabaseError(op, err)
	}
	if err := tx.Commit(); err != nil {
		return errors.NewDatabaseError(op, err)
	}
	return nil
}

// DeleteNode removes a node row. Memory units go with it through the foreign key.
func (g *Gateway) DeleteNode(ctx context.Context, id valueobjects.NodeID) error {
	if _, err := g.db.ExecContext(ctx, `DELETE FROM nodes WHERE id = ?`, id.String()); err != nil {
		return errors.NewDatabaseError("DeleteNode", err)
	}
	return nil
}

// FetchEdges returns every edge of the user
func (g *Gateway) FetchEdges(ctx context.Context, userID string) ([]*entities.Edge, error) {
	rows, err := g.db.QueryContext(ctx,
		`SELECT id, source, target, source_handle, target_handle, type, is_tentative, semantic_label, created_at
		 FROM edges WHERE user_id = ? ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, errors.NewDatabaseError("FetchEdges", err)
	}
	defer rows.Close()

	var edges []*entities.Edge
	for rows.Next() {
		var (
			e                        entities.Edge
			id, source, target, kind string
			createdAt                int64
		)
		if err := rows.Scan(&id, &source, &target, &e.SourceHandle, &e.TargetHandle, &kind,
			&e.IsTentative, &e.SemanticLabel, &createdAt); err != nil {
			return nil, errors.NewDatabaseError("FetchEdges", err)
		}
		e.ID = valueobjects.EdgeID(id)
		e.Source = valueobjects.NodeID(source)
		e.Target = valueobjects.NodeID(target)
		e.Type = entities.EdgeType(kind)
		e.CreatedAt = time.UnixMilli(createdAt).UTC()
		edges = append(edges, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDatabaseError("FetchEdges", err)
	}
	return edges, nil
}

// CreateEdge inserts a new edge row
func (g *Gateway) CreateEdge(ctx context.Context, userID string, e *entities.Edge) error {
	_, err := g.db.ExecContext(ctx,
		`INSERT INTO edges (id, user_id, source, target, source_handle, target_handle, type, is_tentative, semantic_label, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID.String(), userID, e.Source.String(), e.Target.String(), e.SourceHandle, e.TargetHandle,
		string(e.Type), e.IsTentative, e.SemanticLabel, e.CreatedAt.UnixMilli())
	if err != nil {
		if isUniqueViolation(err) {
			return errors.NewConflictError("edge already exists")
		}
		return errors.NewDatabaseError("CreateEdge", err)
	}
	return nil
}

// UpdateEdge re-points an edge
func (g *Gateway) UpdateEdge(ctx context.Context, id valueobjects.EdgeID, u ports.EdgeUpdate) error {
	res, err := g.db.ExecContext(ctx,
		`UPDATE edges SET source = ?, target = ?, source_handle = ?, target_handle = ?,
		 type = ?, is_tentative = ?, semantic_label = ? WHERE id = ?`,
		u.Source.String(), u.Target.String(), u.SourceHandle, u.TargetHandle,
		string(u.Type), u.IsTentative, u.Label, id.String())
	if err != nil {
		return errors.NewDatabaseError("UpdateEdge", err)
	}
	return requireRow(res, "edge")
}

// UpdateEdgeHandles changes only the handle columns
func (g *Gateway) UpdateEdgeHandles(ctx context.Context, id valueobjects.EdgeID, sourceHandle, targetHandle string) error {
	res, err := g.db.ExecContext(ctx,
		`UPDATE edges SET source_handle = ?, target_handle = ? WHERE id = ?`,
		sourceHandle, targetHandle, id.String())
	if err != nil {
		return errors.NewDatabaseError("UpdateEdgeHandles", err)
	}
	return requireRow(res, "edge")
}

// DeleteEdge removes an edge row
func (g *Gateway) DeleteEdge(ctx context.Context, id valueobjects.EdgeID) error {
	if _, err := g.db.ExecContext(ctx, `DELETE FROM edges WHERE id = ?`, id.String()); err != nil {
		return errors.NewDatabaseError("DeleteEdge", err)
	}
	return nil
}

// CreateMemoryUnit inserts a unit with the default scheduling values
func (g *Gateway) CreateMemoryUnit(ctx context.Context, userID string, nodeID valueobjects.NodeID, u entities.MemoryUnit) error {
	_, err := g.db.ExecContext(ctx,
		`INSERT INTO memory_units (id, node_id, user_id, question, answer, text_segment, status, ease_factor, interval)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID.String(), nodeID.String(), userID, u.Question, u.Answer, u.TextSegment, string(u.Status),
		entities.DefaultEaseFactor, entities.DefaultInterval)
	if err != nil {
		if isForeignKeyViolation(err) {
			return errors.NewNotFoundError("node")
		}
		return errors.NewDatabaseError("CreateMemoryUnit", err)
	}
	return nil
}

// UpdateMemoryUnit rewrites the editable unit columns
func (g *Gateway) UpdateMemoryUnit(ctx context.Context, u entities.MemoryUnit) error {
	res, err := g.db.ExecContext(ctx,
		`UPDATE memory_units SET question = ?, answer = ?, text_segment = ?, status = ? WHERE id = ?`,
		u.Question, u.Answer, u.TextSegment, string(u.Status), u.ID.String())
	if err != nil {
		return errors.NewDatabaseError("UpdateMemoryUnit", err)
	}
	return requireRow(res, "memory unit")
}

// DeleteMemoryUnit removes a unit row
func (g *Gateway) DeleteMemoryUnit(ctx context.Context, id valueobjects.MemoryUnitID) error {
	if _, err := g.db.ExecContext(ctx, `DELETE FROM memory_units WHERE id = ?`, id.String()); err != nil {
		return errors.NewDatabaseError("DeleteMemoryUnit", err)
	}
	return nil
}

func requireRow(res sql.Result, resource string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.NewDatabaseError("RowsAffected", err)
	}
	if n == 0 {
		return errors.NewNotFoundError(resource)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKeyViolation(err error) bool {
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

func toMillis(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}

func fromMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64).UTC()
	return &t
}

func nonNil(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
