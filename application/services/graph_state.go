package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mindo/application/ports"
	"mindo/domain/config"
	"mindo/domain/core/aggregates"
	"mindo/domain/core/entities"
	"mindo/domain/core/validators"
	"mindo/domain/core/valueobjects"
	"mindo/domain/events"
	"mindo/domain/health"
	"mindo/domain/layout"
	"mindo/domain/review"
	pkgerrors "mindo/pkg/errors"
)

// GraphState owns one user's canvas. Every mutation is applied to the local
// graph synchronously and then mirrored to the remote store in the background;
// the local graph is the source of truth until the next LoadGraph.
type GraphState struct {
	userID    string
	gateway   ports.Gateway
	blobs     ports.BlobStorage
	publisher ports.EventPublisher
	runner    *PersistenceRunner
	cfg       *config.DomainConfig
	validator *validators.NodeValidator
	logger    *zap.Logger

	now    func() time.Time
	jitter func() float64

	mu        sync.RWMutex
	graph     *aggregates.Graph
	ready     chan struct{}
	readyOnce sync.Once
}

// GraphStateOption customises a GraphState
type GraphStateOption func(*GraphState)

// WithClock replaces time.Now
func WithClock(now func() time.Time) GraphStateOption {
	return func(s *GraphState) { s.now = now }
}

// WithJitter replaces the [0,1) source used to scatter new nodes
func WithJitter(jitter func() float64) GraphStateOption {
	return func(s *GraphState) { s.jitter = jitter }
}

// WithBlobStorage enables media cleanup on delete
func WithBlobStorage(blobs ports.BlobStorage) GraphStateOption {
	return func(s *GraphState) { s.blobs = blobs }
}

// WithEventPublisher publishes domain events after each mutation
func WithEventPublisher(p ports.EventPublisher) GraphStateOption {
	return func(s *GraphState) { s.publisher = p }
}

// NewGraphState creates an empty, not yet loaded graph state for userID
func NewGraphState(
	userID string,
	gateway ports.Gateway,
	runner *PersistenceRunner,
	cfg *config.DomainConfig,
	logger *zap.Logger,
	opts ...GraphStateOption,
) *GraphState {
	s := &GraphState{
		userID:    userID,
		gateway:   gateway,
		runner:    runner,
		cfg:       cfg,
		validator: validators.NewNodeValidator(),
		logger:    logger.With(zap.String("userID", userID)),
		now:       time.Now,
		jitter:    rand.Float64,
		graph:     aggregates.NewGraph(userID),
		ready:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UserID returns the owner of this state
func (s *GraphState) UserID() string {
	return s.userID
}

// Ready is closed once the first LoadGraph finishes, successfully or not
func (s *GraphState) Ready() <-chan struct{} {
	return s.ready
}

// Loaded reports whether a load has completed
func (s *GraphState) Loaded() bool {
	select {
	case <-s.ready:
		return true
	default:
		return false
	}
}

// Wait blocks until background writes have drained
func (s *GraphState) Wait() {
	s.runner.Wait()
}

func (s *GraphState) markLoaded() {
	s.readyOnce.Do(func() { close(s.ready) })
}

// LoadGraph fetches nodes and edges in parallel and replaces the local graph
// wholesale. On failure the local graph is kept and the state is still marked
// loaded.
func (s *GraphState) LoadGraph(ctx context.Context) error {
	defer s.markLoaded()

	var nodes []*entities.Node
	var edges []*entities.Edge

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		nodes, err = s.gateway.FetchNodes(gctx, s.userID)
		return err
	})
	g.Go(func() error {
		var err error
		edges, err = s.gateway.FetchEdges(gctx, s.userID)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Error("Failed to load graph", zap.Error(err))
		return pkgerrors.NewExternalError("gateway", err)
	}

	s.mu.Lock()
	dropped := s.graph.Replace(nodes, edges)
	nodeCount, edgeCount := s.graph.NodeCount(), s.graph.EdgeCount()
	invalid := s.graph.Validate()
	s.mu.Unlock()

	if invalid != nil {
		s.logger.Error("Loaded graph violates invariants", zap.Error(invalid))
	}

	for _, e := range dropped {
		s.logger.Warn("Dropped edge with missing endpoint",
			zap.String("edgeID", e.ID.String()),
			zap.String("source", e.Source.String()),
			zap.String("target", e.Target.String()))
	}
	s.logger.Info("Graph loaded", zap.Int("nodes", nodeCount), zap.Int("edges", edgeCount))
	return nil
}

// AddNodeParams describes a node to create
type AddNodeParams struct {
	Label           string
	Type            valueobjects.NodeType
	ParentID        valueobjects.NodeID
	Status          entities.NodeStatus
	ConnectionLabel string
	Tags            []string
	Initial         valueobjects.ContentPatch
}

// AddNode creates a node near its parent (or the origin) and, with a parent,
// the edge connecting them: tentative, or solid when ConnectionLabel is given.
// The id is returned before anything is persisted. Without an owner it
// returns an empty id.
func (s *GraphState) AddNode(p AddNodeParams) (valueobjects.NodeID, error) {
	if s.userID == "" {
		s.logger.Error("Cannot create node: no user ID")
		return "", pkgerrors.NewUnauthorizedError("no authenticated user")
	}

	now := s.now()
	node, err := entities.NewNode(s.userID, p.Label, p.Type, p.Status, now, s.cfg)
	if err != nil {
		return "", err
	}
	if len(p.Tags) > 0 {
		if err := s.validator.ValidateTags(p.Tags); err != nil {
			return "", err
		}
		if node.Tags, err = entities.ValidateTags(p.Tags, s.cfg); err != nil {
			return "", err
		}
	}
	if !p.Initial.IsEmpty() {
		if err := s.validator.ValidatePatch(node.Type, p.Initial); err != nil {
			return "", err
		}
		node.Content = p.Initial.Apply(node.Content)
	}

	s.mu.Lock()

	base := valueobjects.Position{}
	var parent *entities.Node
	if p.ParentID != "" {
		if parent = s.graph.Node(p.ParentID); parent != nil {
			base = parent.Position
		} else {
			s.logger.Warn("Parent node not found, placing at origin", zap.String("parentID", p.ParentID.String()))
		}
	}
	node.Position = valueobjects.Position{
		X: base.X + (s.jitter()-0.5)*2*s.cfg.SpawnJitterX,
		Y: base.Y + s.cfg.SpawnOffsetY,
	}

	var edge *entities.Edge
	if parent != nil {
		conn := entities.Connection{Source: parent.ID, Target: node.ID}
		if p.ConnectionLabel != "" {
			edge, err = entities.NewSolidEdge(conn, p.ConnectionLabel, now)
		} else {
			edge, err = entities.NewTentativeEdge(conn, now)
		}
		if err != nil {
			s.mu.Unlock()
			return "", err
		}
	}

	if err := s.graph.AddNode(node); err != nil {
		s.mu.Unlock()
		return "", err
	}
	if edge != nil {
		if err := s.graph.AddEdge(edge); err != nil {
			s.graph.RemoveNodes(node.ID)
			s.mu.Unlock()
			return "", err
		}
	}

	nodeCopy := node.Clone()
	var edgeCopy *entities.Edge
	if edge != nil {
		edgeCopy = edge.Clone()
	}
	s.mu.Unlock()

	s.runner.Go("addNode", func(ctx context.Context) error {
		if err := s.gateway.CreateNode(ctx, nodeCopy); err != nil {
			return err
		}
		if edgeCopy != nil {
			return s.gateway.CreateEdge(ctx, s.userID, edgeCopy)
		}
		return nil
	}, zap.String("nodeID", node.ID.String()))

	evts := []events.DomainEvent{events.NewNodeCreated(s.userID, node.ID, node.Type, p.ParentID, now)}
	if edge != nil {
		evts = append(evts, events.NewEdgeCreated(s.userID, edge.ID, edge.Source, edge.Target, edge.IsTentative, now))
	}
	s.publish(evts...)

	s.logger.Debug("Node added",
		zap.String("nodeID", node.ID.String()),
		zap.String("type", string(node.Type)),
		zap.Bool("withEdge", edge != nil))
	return node.ID, nil
}

// NodePatch is a partial node edit. Label, status and tags are direct
// columns; Content holds the fields stored in the payload column.
type NodePatch struct {
	Label   *string
	Status  *entities.NodeStatus
	Tags    *[]string
	Content valueobjects.ContentPatch
}

// UpdateNode merges patch into the node. Core columns and payload fields are
// persisted through separate gateway calls. Memory unit anchors are not
// re-checked against the new content.
func (s *GraphState) UpdateNode(id valueobjects.NodeID, patch NodePatch) error {
	s.mu.Lock()
	node := s.graph.Node(id)
	if node == nil {
		s.mu.Unlock()
		return pkgerrors.NewNotFoundError("node")
	}

	// Validate everything before touching the node
	if patch.Status != nil && !patch.Status.IsValid() {
		s.mu.Unlock()
		return pkgerrors.NewValidationError("unknown node status: " + string(*patch.Status))
	}
	var tags []string
	if patch.Tags != nil {
		var err error
		if err = s.validator.ValidateTags(*patch.Tags); err == nil {
			tags, err = entities.ValidateTags(*patch.Tags, s.cfg)
		}
		if err != nil {
			s.mu.Unlock()
			return err
		}
	}
	if err := s.validator.ValidatePatch(node.Type, patch.Content); err != nil {
		s.mu.Unlock()
		return err
	}
	label := node.Label
	if patch.Label != nil {
		if err := node.SetLabel(*patch.Label, s.cfg); err != nil {
			s.mu.Unlock()
			return err
		}
		label = node.Label
	}

	var core ports.NodeUpdate
	if patch.Label != nil {
		core.Label = &label
	}
	if patch.Status != nil {
		status := *patch.Status
		node.Status = status
		core.Status = &status
	}
	if patch.Tags != nil {
		node.Tags = tags
		persisted := append([]string{}, tags...)
		core.Tags = &persisted
	}
	var payload *valueobjects.Payload
	if !patch.Content.IsEmpty() {
		node.Content = patch.Content.Apply(node.Content)
		p := valueobjects.EncodePayload(node.Content, valueobjects.Dimensions{})
		payload = &p
	}
	node.UpdatedAt = s.now()
	s.mu.Unlock()

	if core.IsEmpty() && payload == nil {
		return nil
	}
	s.runner.Go("updateNode", func(ctx context.Context) error {
		var errs []error
		if !core.IsEmpty() {
			errs = append(errs, s.gateway.UpdateNode(ctx, id, core))
		}
		if payload != nil {
			errs = append(errs, s.gateway.UpdateNodeData(ctx, id, *payload))
		}
		return errors.Join(errs...)
	}, zap.String("nodeID", id.String()))
	return nil
}

// UpdateNodePosition moves a node. Call it when a drag ends, not per frame.
func (s *GraphState) UpdateNodePosition(id valueobjects.NodeID, pos valueobjects.Position) error {
	if err := s.validator.ValidatePosition(pos); err != nil {
		return err
	}

	s.mu.Lock()
	node := s.graph.Node(id)
	if node == nil {
		s.mu.Unlock()
		return pkgerrors.NewNotFoundError("node")
	}
	node.Position = pos
	node.UpdatedAt = s.now()
	s.mu.Unlock()

	s.runner.Go("updateNodePosition", func(ctx context.Context) error {
		return s.gateway.UpdateNode(ctx, id, ports.NodeUpdate{Position: &pos})
	}, zap.String("nodeID", id.String()))
	return nil
}

// ResizeNode records explicit render dimensions after a resize ends
func (s *GraphState) ResizeNode(id valueobjects.NodeID, dims valueobjects.Dimensions) error {
	if err := s.validator.ValidateDimensions(dims); err != nil {
		return err
	}

	s.mu.Lock()
	node := s.graph.Node(id)
	if node == nil {
		s.mu.Unlock()
		return pkgerrors.NewNotFoundError("node")
	}
	node.Dimensions = node.Dimensions.Merge(dims)
	node.UpdatedAt = s.now()
	s.mu.Unlock()

	s.runner.Go("resizeNode", func(ctx context.Context) error {
		return s.gateway.UpdateNodeStyle(ctx, id, dims)
	}, zap.String("nodeID", id.String()))
	return nil
}

// ActivateNodeFromInbox places an inbox node on the canvas as a new node
func (s *GraphState) ActivateNodeFromInbox(id valueobjects.NodeID, pos valueobjects.Position) error {
	if err := s.validator.ValidatePosition(pos); err != nil {
		return err
	}

	s.mu.Lock()
	node := s.graph.Node(id)
	if node == nil {
		s.mu.Unlock()
		return pkgerrors.NewNotFoundError("node")
	}
	if node.Status != entities.StatusInbox {
		s.mu.Unlock()
		return pkgerrors.NewConflictError("node is not in the inbox")
	}
	node.Position = pos
	node.Status = entities.StatusNew
	node.UpdatedAt = s.now()
	s.mu.Unlock()

	status := entities.StatusNew
	s.runner.Go("activateNode", func(ctx context.Context) error {
		return s.gateway.UpdateNode(ctx, id, ports.NodeUpdate{Position: &pos, Status: &status})
	}, zap.String("nodeID", id.String()))
	return nil
}

// UnlockNodeContent marks a node as being learned from now on
func (s *GraphState) UnlockNodeContent(id valueobjects.NodeID) error {
	now := s.now()

	s.mu.Lock()
	node := s.graph.Node(id)
	if node == nil {
		s.mu.Unlock()
		return pkgerrors.NewNotFoundError("node")
	}
	node.LastReview = &now
	node.Status = entities.StatusLearning
	node.UpdatedAt = now
	s.mu.Unlock()

	status := entities.StatusLearning
	s.runner.Go("unlockNode", func(ctx context.Context) error {
		return s.gateway.UpdateNode(ctx, id, ports.NodeUpdate{Status: &status, LastReview: &now})
	}, zap.String("nodeID", id.String()))
	return nil
}

// DeleteNode removes a node and every edge touching it
func (s *GraphState) DeleteNode(id valueobjects.NodeID) error {
	return s.DeleteNodes([]valueobjects.NodeID{id})
}

// DeleteNodes removes nodes and their edges locally, then deletes the remote
// rows. Media files in managed storage are removed best-effort; a cleanup
// failure never restores the node.
func (s *GraphState) DeleteNodes(ids []valueobjects.NodeID) error {
	s.mu.Lock()
	nodes, edges := s.graph.RemoveNodes(ids...)
	s.mu.Unlock()

	if len(nodes) == 0 {
		return pkgerrors.NewNotFoundError("node")
	}

	now := s.now()
	var evts []events.DomainEvent
	for _, n := range nodes {
		touching := 0
		for _, e := range edges {
			if e.Touches(n.ID) {
				touching++
			}
		}
		evts = append(evts, events.NewNodeDeleted(s.userID, n.ID, touching, n.Content.MediaURL(), now))
	}

	s.runner.Go("deleteNodes", func(ctx context.Context) error {
		var errs []error
		for _, e := range edges {
			errs = append(errs, s.gateway.DeleteEdge(ctx, e.ID))
		}
		for _, n := range nodes {
			for _, u := range n.MemoryUnits {
				errs = append(errs, s.gateway.DeleteMemoryUnit(ctx, u.ID))
			}
			errs = append(errs, s.gateway.DeleteNode(ctx, n.ID))
		}
		return errors.Join(errs...)
	}, zap.Int("nodes", len(nodes)), zap.Int("edges", len(edges)))

	if s.blobs != nil {
		for _, n := range nodes {
			url := n.Content.MediaURL()
			if url == "" || !s.blobs.IsManaged(url) {
				continue
			}
			s.runner.GoBestEffort("deleteMedia", func(ctx context.Context) error {
				return s.blobs.Delete(ctx, url)
			}, zap.String("nodeID", n.ID.String()), zap.String("url", url))
		}
	}

	s.publish(evts...)
	s.logger.Debug("Nodes deleted", zap.Int("nodes", len(nodes)), zap.Int("edges", len(edges)))
	return nil
}

// Connect creates a tentative edge that keeps the exact handles dragged from
// and to
func (s *GraphState) Connect(conn entities.Connection) (valueobjects.EdgeID, error) {
	now := s.now()
	edge, err := entities.NewTentativeEdge(conn, now)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	for _, e := range s.graph.Edges() {
		if e.Source == conn.Source && e.Target == conn.Target &&
			e.SourceHandle == conn.SourceHandle && e.TargetHandle == conn.TargetHandle {
			s.mu.Unlock()
			return "", pkgerrors.NewConflictError("connection already exists")
		}
	}
	if err := s.graph.AddEdge(edge); err != nil {
		s.mu.Unlock()
		return "", err
	}
	edgeCopy := edge.Clone()
	s.mu.Unlock()

	s.runner.Go("connect", func(ctx context.Context) error {
		return s.gateway.CreateEdge(ctx, s.userID, edgeCopy)
	}, zap.String("edgeID", edge.ID.String()))
	s.publish(events.NewEdgeCreated(s.userID, edge.ID, edge.Source, edge.Target, true, now))
	return edge.ID, nil
}

// SolidifyEdge labels a tentative edge and adds one to the weight of both
// endpoints. Already solid edges are rejected, so weights never double count.
func (s *GraphState) SolidifyEdge(id valueobjects.EdgeID, label string) error {
	s.mu.Lock()
	edge := s.graph.Edge(id)
	if edge == nil {
		s.mu.Unlock()
		return pkgerrors.NewNotFoundError("edge")
	}
	if err := edge.Solidify(label); err != nil {
		s.mu.Unlock()
		return err
	}
	weights := s.bumpWeights(edge)
	update := edgeUpdate(edge)
	s.mu.Unlock()

	s.runner.Go("solidifyEdge", func(ctx context.Context) error {
		errs := []error{s.gateway.UpdateEdge(ctx, id, update)}
		errs = append(errs, s.persistWeights(ctx, weights)...)
		return errors.Join(errs...)
	}, zap.String("edgeID", id.String()))
	s.publish(events.NewEdgeSolidified(s.userID, id, update.Label, s.now()))
	return nil
}

// CancelEdge deletes a tentative edge abandoned before it was labeled
func (s *GraphState) CancelEdge(id valueobjects.EdgeID) error {
	s.mu.Lock()
	edge := s.graph.Edge(id)
	if edge == nil {
		s.mu.Unlock()
		return pkgerrors.NewNotFoundError("edge")
	}
	if !edge.IsTentative {
		s.mu.Unlock()
		return pkgerrors.NewConflictError("only tentative edges can be cancelled")
	}
	s.graph.RemoveEdge(id)
	s.mu.Unlock()

	s.runner.Go("cancelEdge", func(ctx context.Context) error {
		return s.gateway.DeleteEdge(ctx, id)
	}, zap.String("edgeID", id.String()))
	s.publish(events.NewEdgeDeleted(s.userID, id, edge.Source, edge.Target, s.now()))
	return nil
}

// DeleteEdge removes any edge. Endpoint weights are kept.
func (s *GraphState) DeleteEdge(id valueobjects.EdgeID) error {
	s.mu.Lock()
	edge, ok := s.graph.RemoveEdge(id)
	s.mu.Unlock()
	if !ok {
		return pkgerrors.NewNotFoundError("edge")
	}

	s.runner.Go("deleteEdge", func(ctx context.Context) error {
		return s.gateway.DeleteEdge(ctx, id)
	}, zap.String("edgeID", id.String()))
	s.publish(events.NewEdgeDeleted(s.userID, id, edge.Source, edge.Target, s.now()))
	return nil
}

// CreateSolidEdge links two existing nodes with a labeled edge directly and
// adds one to both endpoint weights
func (s *GraphState) CreateSolidEdge(source, target valueobjects.NodeID, label string) (valueobjects.EdgeID, error) {
	now := s.now()
	edge, err := entities.NewSolidEdge(entities.Connection{Source: source, Target: target}, label, now)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	if err := s.graph.AddEdge(edge); err != nil {
		s.mu.Unlock()
		return "", err
	}
	weights := s.bumpWeights(edge)
	edgeCopy := edge.Clone()
	s.mu.Unlock()

	s.runner.Go("createSolidEdge", func(ctx context.Context) error {
		if err := s.gateway.CreateEdge(ctx, s.userID, edgeCopy); err != nil {
			return err
		}
		return errors.Join(s.persistWeights(ctx, weights)...)
	}, zap.String("edgeID", edge.ID.String()))
	s.publish(events.NewEdgeCreated(s.userID, edge.ID, source, target, false, now))
	return edge.ID, nil
}

// UpdateEdge re-points an edge to new endpoints and handles, keeping its
// identity, type and label
func (s *GraphState) UpdateEdge(id valueobjects.EdgeID, conn entities.Connection) error {
	if err := conn.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	edge := s.graph.Edge(id)
	if edge == nil {
		s.mu.Unlock()
		return pkgerrors.NewNotFoundError("edge")
	}
	if !s.graph.HasNode(conn.Source) || !s.graph.HasNode(conn.Target) {
		s.mu.Unlock()
		return pkgerrors.NewNotFoundError("node")
	}
	edge.Source = conn.Source
	edge.Target = conn.Target
	edge.SourceHandle = conn.SourceHandle
	edge.TargetHandle = conn.TargetHandle
	update := edgeUpdate(edge)
	s.mu.Unlock()

	s.runner.Go("updateEdge", func(ctx context.Context) error {
		return s.gateway.UpdateEdge(ctx, id, update)
	}, zap.String("edgeID", id.String()))
	return nil
}

// UpdateEdgeHandles changes only the attachment faces of an edge
func (s *GraphState) UpdateEdgeHandles(id valueobjects.EdgeID, sourceHandle, targetHandle string) error {
	s.mu.Lock()
	edge := s.graph.Edge(id)
	if edge == nil {
		s.mu.Unlock()
		return pkgerrors.NewNotFoundError("edge")
	}
	edge.SourceHandle = sourceHandle
	edge.TargetHandle = targetHandle
	s.mu.Unlock()

	s.runner.Go("updateEdgeHandles", func(ctx context.Context) error {
		return s.gateway.UpdateEdgeHandles(ctx, id, sourceHandle, targetHandle)
	}, zap.String("edgeID", id.String()))
	return nil
}

// AddMemoryUnit anchors a new flashcard in a node. A non-empty segment must
// occur verbatim in the node content.
func (s *GraphState) AddMemoryUnit(nodeID valueobjects.NodeID, question, answer, segment string) (valueobjects.MemoryUnitID, error) {
	s.mu.Lock()
	node := s.graph.Node(nodeID)
	if node == nil {
		s.mu.Unlock()
		return "", pkgerrors.NewNotFoundError("node")
	}
	unit, err := entities.NewMemoryUnit(question, answer, segment, node.Content)
	if err != nil {
		s.mu.Unlock()
		return "", err
	}
	node.MemoryUnits = append(node.MemoryUnits, unit)
	node.UpdatedAt = s.now()
	s.mu.Unlock()

	s.runner.Go("addMemoryUnit", func(ctx context.Context) error {
		return s.gateway.CreateMemoryUnit(ctx, s.userID, nodeID, unit)
	}, zap.String("nodeID", nodeID.String()), zap.String("unitID", unit.ID.String()))
	return unit.ID, nil
}

// UpdateMemoryUnit edits a flashcard in place
func (s *GraphState) UpdateMemoryUnit(nodeID valueobjects.NodeID, unitID valueobjects.MemoryUnitID, patch entities.MemoryUnitPatch) error {
	if patch.Status != nil && !patch.Status.IsValid() {
		return pkgerrors.NewValidationError("unknown memory unit status: " + string(*patch.Status))
	}

	s.mu.Lock()
	node := s.graph.Node(nodeID)
	if node == nil {
		s.mu.Unlock()
		return pkgerrors.NewNotFoundError("node")
	}
	i := node.MemoryUnitIndex(unitID)
	if i < 0 {
		s.mu.Unlock()
		return pkgerrors.NewNotFoundError("memory unit")
	}
	if patch.TextSegment != nil {
		if err := entities.CheckAnchor(*patch.TextSegment, node.Content); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	updated := patch.Apply(node.MemoryUnits[i])
	if updated.Question == "" {
		s.mu.Unlock()
		return pkgerrors.NewValidationError("question cannot be empty")
	}
	node.MemoryUnits[i] = updated
	node.UpdatedAt = s.now()
	s.mu.Unlock()

	s.runner.Go("updateMemoryUnit", func(ctx context.Context) error {
		return s.gateway.UpdateMemoryUnit(ctx, updated)
	}, zap.String("unitID", unitID.String()))
	return nil
}

// DeleteMemoryUnit removes a flashcard from a node
func (s *GraphState) DeleteMemoryUnit(nodeID valueobjects.NodeID, unitID valueobjects.MemoryUnitID) error {
	s.mu.Lock()
	node := s.graph.Node(nodeID)
	if node == nil {
		s.mu.Unlock()
		return pkgerrors.NewNotFoundError("node")
	}
	i := node.MemoryUnitIndex(unitID)
	if i < 0 {
		s.mu.Unlock()
		return pkgerrors.NewNotFoundError("memory unit")
	}
	node.MemoryUnits = append(node.MemoryUnits[:i], node.MemoryUnits[i+1:]...)
	s.mu.Unlock()

	s.runner.Go("deleteMemoryUnit", func(ctx context.Context) error {
		return s.gateway.DeleteMemoryUnit(ctx, unitID)
	}, zap.String("unitID", unitID.String()))
	return nil
}

// Snapshot returns deep copies of the current nodes and edges
func (s *GraphState) Snapshot() ([]*entities.Node, []*entities.Edge) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph.Snapshot()
}

// Node returns a copy of one node
func (s *GraphState) Node(id valueobjects.NodeID) (*entities.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := s.graph.Node(id)
	if n == nil {
		return nil, false
	}
	return n.Clone(), true
}

// Neighbors lists the nodes sharing an edge with id
func (s *GraphState) Neighbors(id valueobjects.NodeID) []valueobjects.NodeID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph.Neighbors(id)
}

// EdgeLabel returns the label of an edge between a and b in either direction.
// Tentative edges report an empty label.
func (s *GraphState) EdgeLabel(a, b valueobjects.NodeID) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.graph.Edges() {
		if (e.Source == a && e.Target == b) || (e.Source == b && e.Target == a) {
			return e.SemanticLabel, true
		}
	}
	return "", false
}

// Health classifies every canvas node. It is recomputed on each call.
func (s *GraphState) Health(now time.Time) map[valueobjects.NodeID]health.Status {
	th := health.ThresholdsFromConfig(s.cfg)

	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := s.graph.ConnectionCounts()
	out := make(map[valueobjects.NodeID]health.Status, s.graph.NodeCount())
	for _, n := range s.graph.Nodes() {
		if !n.IsOnCanvas() {
			continue
		}
		out[n.ID] = th.Classify(now, n, counts[n.ID])
	}
	return out
}

// MarkDue moves canvas nodes whose next review has passed, or that have
// petrified, to review_due. It returns the ids that changed.
func (s *GraphState) MarkDue(now time.Time) []valueobjects.NodeID {
	th := health.ThresholdsFromConfig(s.cfg)

	s.mu.Lock()
	counts := s.graph.ConnectionCounts()
	var due []valueobjects.NodeID
	for _, n := range s.graph.Nodes() {
		switch n.Status {
		case entities.StatusInbox, entities.StatusMastered, entities.StatusReviewDue:
			continue
		}
		overdue := n.NextReview != nil && !n.NextReview.After(now)
		if overdue || th.Classify(now, n, counts[n.ID]).NeedsReview() {
			n.Status = entities.StatusReviewDue
			n.UpdatedAt = now
			due = append(due, n.ID)
		}
	}
	s.mu.Unlock()

	if len(due) == 0 {
		return nil
	}
	ids := append([]valueobjects.NodeID(nil), due...)
	s.runner.Go("markDue", func(ctx context.Context) error {
		status := entities.StatusReviewDue
		var errs []error
		for _, id := range ids {
			errs = append(errs, s.gateway.UpdateNode(ctx, id, ports.NodeUpdate{Status: &status}))
		}
		return errors.Join(errs...)
	}, zap.Int("nodes", len(ids)))
	return due
}

// LayoutInput returns the canvas nodes and the edges between them
func (s *GraphState) LayoutInput() ([]layout.Node, []layout.Edge) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	onCanvas := make(map[valueobjects.NodeID]struct{}, s.graph.NodeCount())
	var nodes []layout.Node
	for _, n := range s.graph.Nodes() {
		if !n.IsOnCanvas() {
			continue
		}
		onCanvas[n.ID] = struct{}{}
		nodes = append(nodes, layout.Node{ID: n.ID, Position: n.Position, Size: n.Dimensions, Weight: n.Weight})
	}
	var edges []layout.Edge
	for _, e := range s.graph.Edges() {
		_, src := onCanvas[e.Source]
		_, tgt := onCanvas[e.Target]
		if src && tgt {
			edges = append(edges, layout.Edge{ID: e.ID, Source: e.Source, Target: e.Target})
		}
	}
	return nodes, edges
}

// ApplyLayout commits computed positions and handles, then persists every
// changed node and edge. Ids that disappeared since the layout was computed
// are skipped. It returns how many nodes and edges were updated.
func (s *GraphState) ApplyLayout(algorithm string, res layout.Result) (int, int) {
	type handleUpdate struct {
		id   valueobjects.EdgeID
		hand layout.Handles
	}

	s.mu.Lock()
	now := s.now()
	positions := make(map[valueobjects.NodeID]valueobjects.Position, len(res.Positions))
	for id, pos := range res.Positions {
		n := s.graph.Node(id)
		if n == nil || !n.IsOnCanvas() {
			continue
		}
		n.Position = pos
		n.UpdatedAt = now
		positions[id] = pos
	}
	var handles []handleUpdate
	for id, h := range res.Handles {
		e := s.graph.Edge(id)
		if e == nil {
			continue
		}
		e.SourceHandle = h.Source
		e.TargetHandle = h.Target
		handles = append(handles, handleUpdate{id: id, hand: h})
	}
	s.mu.Unlock()

	s.runner.Go("applyLayout", func(ctx context.Context) error {
		var errs []error
		for id, pos := range positions {
			p := pos
			if err := s.gateway.UpdateNode(ctx, id, ports.NodeUpdate{Position: &p}); err != nil {
				errs = append(errs, fmt.Errorf("node %s: %w", id, err))
			}
		}
		for _, h := range handles {
			if err := s.gateway.UpdateEdgeHandles(ctx, h.id, h.hand.Source, h.hand.Target); err != nil {
				errs = append(errs, fmt.Errorf("edge %s: %w", h.id, err))
			}
		}
		return errors.Join(errs...)
	}, zap.String("algorithm", algorithm))

	s.publish(events.NewLayoutApplied(s.userID, algorithm, len(positions), len(handles), now))
	return len(positions), len(handles)
}

// RecordReview stores a graded review on a node and, when unitID is set, the
// new status of that memory unit
func (s *GraphState) RecordReview(nodeID valueobjects.NodeID, grade review.Grade, sched review.Schedule, unitID valueobjects.MemoryUnitID) error {
	s.mu.Lock()
	node := s.graph.Node(nodeID)
	if node == nil {
		s.mu.Unlock()
		return pkgerrors.NewNotFoundError("node")
	}
	var unit *entities.MemoryUnit
	if unitID != "" {
		i := node.MemoryUnitIndex(unitID)
		if i < 0 {
			s.mu.Unlock()
			return pkgerrors.NewNotFoundError("memory unit")
		}
		node.MemoryUnits[i].Status = review.UnitStatusAfter(node.MemoryUnits[i].Status, grade)
		u := node.MemoryUnits[i]
		unit = &u
	}
	last, next := sched.LastReview, sched.NextReview
	node.LastReview = &last
	node.NextReview = &next
	node.Status = sched.Status
	node.UpdatedAt = sched.LastReview
	s.mu.Unlock()

	status := sched.Status
	s.runner.Go("recordReview", func(ctx context.Context) error {
		errs := []error{s.gateway.UpdateNode(ctx, nodeID, ports.NodeUpdate{
			Status:     &status,
			LastReview: &last,
			NextReview: &next,
		})}
		if unit != nil {
			errs = append(errs, s.gateway.UpdateMemoryUnit(ctx, *unit))
		}
		return errors.Join(errs...)
	}, zap.String("nodeID", nodeID.String()), zap.String("grade", string(grade)))
	s.publish(events.NewNodeReviewed(s.userID, nodeID, string(grade), string(status), last))
	return nil
}

// MarkMastered sets a node to mastered outside grade-based scheduling
func (s *GraphState) MarkMastered(nodeID valueobjects.NodeID) error {
	now := s.now()

	s.mu.Lock()
	node := s.graph.Node(nodeID)
	if node == nil {
		s.mu.Unlock()
		return pkgerrors.NewNotFoundError("node")
	}
	if !node.IsOnCanvas() {
		s.mu.Unlock()
		return pkgerrors.NewConflictError("inbox nodes cannot be mastered")
	}
	node.Status = entities.StatusMastered
	node.UpdatedAt = now
	s.mu.Unlock()

	status := entities.StatusMastered
	s.runner.Go("markMastered", func(ctx context.Context) error {
		return s.gateway.UpdateNode(ctx, nodeID, ports.NodeUpdate{Status: &status})
	}, zap.String("nodeID", nodeID.String()))
	s.publish(events.NewNodeMastered(s.userID, nodeID, now))
	return nil
}

// bumpWeights adds one to both endpoints of edge. Caller holds the lock.
func (s *GraphState) bumpWeights(edge *entities.Edge) map[valueobjects.NodeID]int {
	weights := make(map[valueobjects.NodeID]int, 2)
	for _, id := range []valueobjects.NodeID{edge.Source, edge.Target} {
		if n := s.graph.Node(id); n != nil {
			n.Weight++
			weights[id] = n.Weight
		}
	}
	return weights
}

func (s *GraphState) persistWeights(ctx context.Context, weights map[valueobjects.NodeID]int) []error {
	var errs []error
	for id, w := range weights {
		weight := w
		errs = append(errs, s.gateway.UpdateNode(ctx, id, ports.NodeUpdate{Weight: &weight}))
	}
	return errs
}

func (s *GraphState) publish(evts ...events.DomainEvent) {
	if s.publisher == nil || len(evts) == 0 {
		return
	}
	s.runner.GoBestEffort("publishEvents", func(ctx context.Context) error {
		return s.publisher.PublishBatch(ctx, evts)
	}, zap.Int("events", len(evts)))
}

func edgeUpdate(e *entities.Edge) ports.EdgeUpdate {
	return ports.EdgeUpdate{
		Source:       e.Source,
		Target:       e.Target,
		SourceHandle: e.SourceHandle,
		TargetHandle: e.TargetHandle,
		Type:         e.Type,
		IsTentative:  e.IsTentative,
		Label:        e.SemanticLabel,
	}
}
