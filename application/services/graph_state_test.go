package services

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mindo/domain/config"
	"mindo/domain/core/entities"
	"mindo/domain/core/valueobjects"
	"mindo/domain/events"
	"mindo/domain/health"
	"mindo/domain/layout"
	"mindo/domain/review"
	"mindo/infrastructure/persistence/memory"
	pkgerrors "mindo/pkg/errors"
)

const testUser = "user-123"

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type mockBlobStorage struct {
	mock.Mock
}

func (m *mockBlobStorage) Upload(ctx context.Context, folder, name, contentType string, r io.Reader) (string, error) {
	args := m.Called(ctx, folder, name, contentType, r)
	return args.String(0), args.Error(1)
}

func (m *mockBlobStorage) Delete(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}

func (m *mockBlobStorage) IsManaged(url string) bool {
	return m.Called(url).Bool(0)
}

type fixture struct {
	state    *GraphState
	gateway  *memory.Gateway
	recorder *memory.EventRecorder
}

func newFixture(t *testing.T, opts ...GraphStateOption) *fixture {
	t.Helper()
	gw := memory.NewGateway()
	rec := memory.NewEventRecorder()
	runner := NewPersistenceRunner(time.Second, nil, zap.NewNop())
	opts = append([]GraphStateOption{
		WithClock(func() time.Time { return testNow }),
		WithJitter(func() float64 { return 0.5 }),
		WithEventPublisher(rec),
	}, opts...)
	state := NewGraphState(testUser, gw, runner, config.DefaultDomainConfig(), zap.NewNop(), opts...)
	return &fixture{state: state, gateway: gw, recorder: rec}
}

func (f *fixture) node(t *testing.T, id valueobjects.NodeID) *entities.Node {
	t.Helper()
	n, ok := f.state.Node(id)
	require.True(t, ok, "node %s missing", id)
	return n
}

func (f *fixture) onlyEdge(t *testing.T) *entities.Edge {
	t.Helper()
	_, edges := f.state.Snapshot()
	require.Len(t, edges, 1)
	return edges[0]
}

func TestGraphState_CreateAndSolidify(t *testing.T) {
	// Arrange
	f := newFixture(t)

	// Act
	a, err := f.state.AddNode(AddNodeParams{Label: "A"})
	require.NoError(t, err)
	b, err := f.state.AddNode(AddNodeParams{Label: "B", ParentID: a})
	require.NoError(t, err)

	// Assert
	nodes, _ := f.state.Snapshot()
	assert.Len(t, nodes, 2)
	edge := f.onlyEdge(t)
	assert.Equal(t, a, edge.Source)
	assert.Equal(t, b, edge.Target)
	assert.True(t, edge.IsTentative)
	assert.Equal(t, 0, f.node(t, a).Weight)
	assert.Equal(t, 0, f.node(t, b).Weight)

	require.NoError(t, f.state.SolidifyEdge(edge.ID, "example"))
	edge = f.onlyEdge(t)
	assert.False(t, edge.IsTentative)
	assert.Equal(t, "example", edge.SemanticLabel)
	assert.Equal(t, 1, f.node(t, a).Weight)
	assert.Equal(t, 1, f.node(t, b).Weight)

	f.state.Wait()
	stored, ok := f.gateway.StoredEdge(edge.ID)
	require.True(t, ok)
	assert.False(t, stored.IsTentative)
	assert.Equal(t, "example", stored.SemanticLabel)
	storedA, _ := f.gateway.StoredNode(a)
	assert.Equal(t, 1, storedA.Weight)
}

func TestGraphState_SolidifyTwiceKeepsWeights(t *testing.T) {
	f := newFixture(t)
	a, _ := f.state.AddNode(AddNodeParams{Label: "A"})
	b, _ := f.state.AddNode(AddNodeParams{Label: "B", ParentID: a})
	edge := f.onlyEdge(t)

	require.NoError(t, f.state.SolidifyEdge(edge.ID, "first"))
	err := f.state.SolidifyEdge(edge.ID, "second")

	assert.True(t, pkgerrors.IsConflict(err))
	assert.Equal(t, 1, f.node(t, a).Weight)
	assert.Equal(t, 1, f.node(t, b).Weight)
	assert.Equal(t, "first", f.onlyEdge(t).SemanticLabel)
}

func TestGraphState_SolidifyRejectsEmptyLabel(t *testing.T) {
	f := newFixture(t)
	a, _ := f.state.AddNode(AddNodeParams{Label: "A"})
	_, _ = f.state.AddNode(AddNodeParams{Label: "B", ParentID: a})
	edge := f.onlyEdge(t)

	assert.True(t, pkgerrors.IsValidation(f.state.SolidifyEdge(edge.ID, "  ")))
	assert.True(t, f.onlyEdge(t).IsTentative)
	assert.Equal(t, 0, f.node(t, a).Weight)
}

func TestGraphState_AddNodeWithLabelCreatesSolidEdge(t *testing.T) {
	f := newFixture(t)
	a, _ := f.state.AddNode(AddNodeParams{Label: "A"})
	_, err := f.state.AddNode(AddNodeParams{Label: "B", ParentID: a, ConnectionLabel: "causes"})
	require.NoError(t, err)

	edge := f.onlyEdge(t)
	assert.False(t, edge.IsTentative)
	assert.Equal(t, "causes", edge.SemanticLabel)
	assert.Equal(t, 0, f.node(t, a).Weight)
}

func TestGraphState_AddNodePlacement(t *testing.T) {
	for _, tc := range []struct {
		name   string
		jitter float64
		wantX  float64
	}{
		{"low", 0, -100},
		{"centre", 0.5, 0},
		{"high", 0.75, 50},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, WithJitter(func() float64 { return tc.jitter }))
			parent, _ := f.state.AddNode(AddNodeParams{Label: "P"})
			require.NoError(t, f.state.UpdateNodePosition(parent, valueobjects.Position{X: 300, Y: 40}))

			child, err := f.state.AddNode(AddNodeParams{Label: "C", ParentID: parent})
			require.NoError(t, err)

			pos := f.node(t, child).Position
			assert.InDelta(t, 300+tc.wantX, pos.X, 1e-9)
			assert.InDelta(t, 190, pos.Y, 1e-9)
		})
	}
}

func TestGraphState_AddNodeMissingParent(t *testing.T) {
	f := newFixture(t)

	id, err := f.state.AddNode(AddNodeParams{Label: "Orphan", ParentID: valueobjects.NewNodeID()})

	require.NoError(t, err)
	assert.Equal(t, valueobjects.Position{X: 0, Y: 150}, f.node(t, id).Position)
	_, edges := f.state.Snapshot()
	assert.Empty(t, edges)
}

func TestGraphState_AddNodeWithoutUser(t *testing.T) {
	gw := memory.NewGateway()
	state := NewGraphState("", gw, NewPersistenceRunner(time.Second, nil, zap.NewNop()), config.DefaultDomainConfig(), zap.NewNop())

	id, err := state.AddNode(AddNodeParams{Label: "A"})

	assert.Empty(t, id)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeUnauthorized))
	state.Wait()
	assert.Empty(t, gw.Calls())
}

func TestGraphState_AddNodePersistsNodeBeforeEdge(t *testing.T) {
	f := newFixture(t)
	a, _ := f.state.AddNode(AddNodeParams{Label: "A"})
	f.state.Wait()

	b, _ := f.state.AddNode(AddNodeParams{Label: "B", ParentID: a})
	f.state.Wait()

	calls := f.gateway.Calls()
	assert.Equal(t, []string{"CreateNode", "CreateNode", "CreateEdge"}, calls)
	_, ok := f.gateway.StoredNode(b)
	assert.True(t, ok)
	assert.Equal(t, []string{events.TypeNodeCreated, events.TypeNodeCreated, events.TypeEdgeCreated}, f.recorder.Types())
}

func TestGraphState_RemoteFailureKeepsLocalState(t *testing.T) {
	f := newFixture(t)
	f.gateway.FailOn("CreateNode", errors.New("network down"))

	id, err := f.state.AddNode(AddNodeParams{Label: "A"})
	require.NoError(t, err)
	f.state.Wait()

	_, ok := f.state.Node(id)
	assert.True(t, ok)
	_, stored := f.gateway.StoredNode(id)
	assert.False(t, stored)
}

func TestGraphState_DeleteNodeWithMedia(t *testing.T) {
	// Arrange
	const url = "https://cdn.test/mindo-assets/images/photo-1.png"
	blobs := new(mockBlobStorage)
	blobs.On("IsManaged", url).Return(true)
	blobs.On("Delete", mock.Anything, url).Return(errors.New("storage unavailable"))

	f := newFixture(t, WithBlobStorage(blobs))
	text, _ := f.state.AddNode(AddNodeParams{Label: "Text"})
	image, err := f.state.AddNode(AddNodeParams{
		Label:    "Photo",
		Type:     valueobjects.NodeTypeImage,
		ParentID: text,
		Initial:  valueobjects.ContentPatch{URL: strPtr(url)},
	})
	require.NoError(t, err)
	_, err = f.state.AddMemoryUnit(image, "What is shown?", "A cat", "")
	require.NoError(t, err)
	f.state.Wait()

	// Act
	require.NoError(t, f.state.DeleteNode(image))

	// Assert
	nodes, edges := f.state.Snapshot()
	assert.Len(t, nodes, 1)
	assert.Empty(t, edges)

	f.state.Wait()
	blobs.AssertExpectations(t)
	_, ok := f.state.Node(image)
	assert.False(t, ok, "storage failure must not restore the node")
	_, ok = f.gateway.StoredNode(image)
	assert.False(t, ok)
	assert.Contains(t, f.gateway.Calls(), "DeleteMemoryUnit")
}

func TestGraphState_DeleteNodeSkipsForeignMedia(t *testing.T) {
	const url = "https://example.com/video.mp4"
	blobs := new(mockBlobStorage)
	blobs.On("IsManaged", url).Return(false)

	f := newFixture(t, WithBlobStorage(blobs))
	id, _ := f.state.AddNode(AddNodeParams{
		Label:   "Clip",
		Type:    valueobjects.NodeTypeVideo,
		Initial: valueobjects.ContentPatch{URL: strPtr(url)},
	})

	require.NoError(t, f.state.DeleteNode(id))
	f.state.Wait()

	blobs.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestGraphState_DeleteUnknownNode(t *testing.T) {
	f := newFixture(t)
	assert.True(t, pkgerrors.IsNotFound(f.state.DeleteNode(valueobjects.NewNodeID())))
}

func TestGraphState_DeleteNodesCascades(t *testing.T) {
	f := newFixture(t)
	a, _ := f.state.AddNode(AddNodeParams{Label: "A"})
	b, _ := f.state.AddNode(AddNodeParams{Label: "B", ParentID: a})
	c, _ := f.state.AddNode(AddNodeParams{Label: "C", ParentID: b})
	_, err := f.state.CreateSolidEdge(a, c, "relates")
	require.NoError(t, err)

	require.NoError(t, f.state.DeleteNodes([]valueobjects.NodeID{a, b}))

	nodes, edges := f.state.Snapshot()
	require.Len(t, nodes, 1)
	assert.Equal(t, c, nodes[0].ID)
	assert.Empty(t, edges)
	assert.NoError(t, f.state.graph.Validate())
}

func TestGraphState_LoadGraph(t *testing.T) {
	// Arrange
	f := newFixture(t)
	reviewed := testNow.Add(-48 * time.Hour)
	a := &entities.Node{
		ID: "a", UserID: testUser, Label: "A", Type: valueobjects.NodeTypeText, Status: entities.StatusLearning,
		Content:    valueobjects.TextContent{HTML: "<p>Mitochondria make ATP</p>"},
		Tags:       []string{"biology", "cells"},
		Weight:     3,
		Position:   valueobjects.Position{X: 120, Y: -40},
		Dimensions: valueobjects.Dimensions{Width: 320, Height: 180},
		CreatedAt:  testNow,
		LastReview: &reviewed,
		MemoryUnits: []entities.MemoryUnit{
			{ID: "u1", Question: "What makes ATP?", Answer: "Mitochondria", TextSegment: "Mitochondria", Status: entities.UnitStatusLearning},
		},
	}
	b := &entities.Node{ID: "b", UserID: testUser, Label: "B", Type: valueobjects.NodeTypeText, Status: entities.StatusNew, Content: valueobjects.TextContent{}, Weight: 1, CreatedAt: testNow}
	f.gateway.Seed(testUser, []*entities.Node{a, b}, []*entities.Edge{
		{ID: "ab", Source: "a", Target: "b", Type: entities.EdgeTypeSemantic, SemanticLabel: "feeds", SourceHandle: "a-right", TargetHandle: "b-left", CreatedAt: testNow},
		{ID: "dangling", Source: "a", Target: "zz", Type: entities.EdgeTypeSocratic, CreatedAt: testNow},
	})
	assert.False(t, f.state.Loaded())

	// Act
	require.NoError(t, f.state.LoadGraph(context.Background()))
	firstNodes, firstEdges := f.state.Snapshot()
	require.NoError(t, f.state.LoadGraph(context.Background()))
	secondNodes, secondEdges := f.state.Snapshot()

	// Assert
	assert.True(t, f.state.Loaded())
	require.Len(t, firstNodes, 2)
	require.Len(t, firstEdges, 1)
	assert.Equal(t, valueobjects.EdgeID("ab"), firstEdges[0].ID)
	assert.Equal(t, firstNodes, secondNodes, "reloading unchanged data must give identical nodes")
	assert.Equal(t, firstEdges, secondEdges, "reloading unchanged data must give identical edges")
	assert.Equal(t, a.Position, secondNodes[0].Position)
	assert.Equal(t, 3, secondNodes[0].Weight)
	assert.Equal(t, []string{"biology", "cells"}, secondNodes[0].Tags)
	assert.Equal(t, a.MemoryUnits, secondNodes[0].MemoryUnits)
	assert.NoError(t, f.state.graph.Validate())
}

func TestGraphState_LoadFailureStillMarksLoaded(t *testing.T) {
	f := newFixture(t)
	local, _ := f.state.AddNode(AddNodeParams{Label: "Local"})
	f.state.Wait()
	f.gateway.FailOn("FetchEdges", errors.New("timeout"))

	err := f.state.LoadGraph(context.Background())

	require.Error(t, err)
	assert.True(t, f.state.Loaded())
	select {
	case <-f.state.Ready():
	default:
		t.Fatal("ready channel not closed")
	}
	_, ok := f.state.Node(local)
	assert.True(t, ok, "failed load must keep local state")
}

func TestGraphState_UpdateNodeSplitsColumnsAndPayload(t *testing.T) {
	f := newFixture(t)
	id, _ := f.state.AddNode(AddNodeParams{Label: "Code", Type: valueobjects.NodeTypeCode})
	f.state.Wait()

	err := f.state.UpdateNode(id, NodePatch{
		Label:   strPtr("Quicksort"),
		Tags:    &[]string{"algorithms", "algorithms", " sorting "},
		Content: valueobjects.ContentPatch{Code: strPtr("func qs() {}"), Language: strPtr("go")},
	})
	require.NoError(t, err)
	f.state.Wait()

	n := f.node(t, id)
	assert.Equal(t, "Quicksort", n.Label)
	assert.Equal(t, []string{"algorithms", "sorting"}, n.Tags)
	assert.Equal(t, valueobjects.CodeContent{Code: "func qs() {}", Language: "go"}, n.Content)

	calls := f.gateway.Calls()
	assert.Equal(t, []string{"CreateNode", "UpdateNode", "UpdateNodeData"}, calls)
	stored, _ := f.gateway.StoredNode(id)
	assert.Equal(t, "Quicksort", stored.Label)
	assert.Equal(t, n.Content, stored.Content)
}

func TestGraphState_UpdateNodeRejectsForeignFields(t *testing.T) {
	f := newFixture(t)
	id, _ := f.state.AddNode(AddNodeParams{Label: "Text"})

	err := f.state.UpdateNode(id, NodePatch{
		Label:   strPtr("Changed"),
		Content: valueobjects.ContentPatch{URL: strPtr("https://example.com/x.png")},
	})

	assert.True(t, pkgerrors.IsValidation(err))
	assert.Equal(t, "Text", f.node(t, id).Label, "nothing is applied when validation fails")
}

func TestGraphState_ResizeAndActivate(t *testing.T) {
	f := newFixture(t)
	id, _ := f.state.AddNode(AddNodeParams{Label: "Inbox", Status: entities.StatusInbox})

	require.NoError(t, f.state.ResizeNode(id, valueobjects.Dimensions{Width: 400}))
	assert.Equal(t, 400.0, f.node(t, id).Dimensions.Width)

	pos := valueobjects.Position{X: 10, Y: 20}
	require.NoError(t, f.state.ActivateNodeFromInbox(id, pos))
	n := f.node(t, id)
	assert.Equal(t, entities.StatusNew, n.Status)
	assert.Equal(t, pos, n.Position)

	assert.True(t, pkgerrors.IsConflict(f.state.ActivateNodeFromInbox(id, pos)))
}

func TestGraphState_UnlockNodeContent(t *testing.T) {
	f := newFixture(t)
	id, _ := f.state.AddNode(AddNodeParams{Label: "A"})

	require.NoError(t, f.state.UnlockNodeContent(id))

	n := f.node(t, id)
	assert.Equal(t, entities.StatusLearning, n.Status)
	require.NotNil(t, n.LastReview)
	assert.Equal(t, testNow, *n.LastReview)
}

func TestGraphState_ConnectAndCancel(t *testing.T) {
	f := newFixture(t)
	a, _ := f.state.AddNode(AddNodeParams{Label: "A"})
	b, _ := f.state.AddNode(AddNodeParams{Label: "B"})
	conn := entities.Connection{Source: a, Target: b, SourceHandle: "a-right", TargetHandle: "b-left"}

	id, err := f.state.Connect(conn)
	require.NoError(t, err)
	edge := f.onlyEdge(t)
	assert.Equal(t, "a-right", edge.SourceHandle)
	assert.Equal(t, "b-left", edge.TargetHandle)

	_, err = f.state.Connect(conn)
	assert.True(t, pkgerrors.IsConflict(err))

	require.NoError(t, f.state.CancelEdge(id))
	_, edges := f.state.Snapshot()
	assert.Empty(t, edges)
}

func TestGraphState_CancelSolidEdgeRejected(t *testing.T) {
	f := newFixture(t)
	a, _ := f.state.AddNode(AddNodeParams{Label: "A"})
	b, _ := f.state.AddNode(AddNodeParams{Label: "B"})
	id, err := f.state.CreateSolidEdge(a, b, "supports")
	require.NoError(t, err)

	assert.True(t, pkgerrors.IsConflict(f.state.CancelEdge(id)))
	require.NoError(t, f.state.DeleteEdge(id))
	assert.Equal(t, 1, f.node(t, a).Weight, "deleting an edge keeps weights")
}

func TestGraphState_CreateSolidEdge(t *testing.T) {
	f := newFixture(t)
	a, _ := f.state.AddNode(AddNodeParams{Label: "A"})
	b, _ := f.state.AddNode(AddNodeParams{Label: "B"})

	_, err := f.state.CreateSolidEdge(a, a, "self")
	assert.True(t, pkgerrors.IsValidation(err))
	_, err = f.state.CreateSolidEdge(a, valueobjects.NewNodeID(), "missing")
	assert.True(t, pkgerrors.IsNotFound(err))

	id, err := f.state.CreateSolidEdge(a, b, "supports")
	require.NoError(t, err)
	assert.Equal(t, 1, f.node(t, a).Weight)
	assert.Equal(t, 1, f.node(t, b).Weight)

	label, ok := f.state.EdgeLabel(b, a)
	assert.True(t, ok)
	assert.Equal(t, "supports", label)

	f.state.Wait()
	stored, ok := f.gateway.StoredEdge(id)
	require.True(t, ok)
	assert.False(t, stored.IsTentative)
}

func TestGraphState_UpdateEdgeKeepsIdentity(t *testing.T) {
	f := newFixture(t)
	a, _ := f.state.AddNode(AddNodeParams{Label: "A"})
	b, _ := f.state.AddNode(AddNodeParams{Label: "B"})
	c, _ := f.state.AddNode(AddNodeParams{Label: "C"})
	id, _ := f.state.CreateSolidEdge(a, b, "supports")

	require.NoError(t, f.state.UpdateEdge(id, entities.Connection{Source: a, Target: c, SourceHandle: "a-bottom", TargetHandle: "c-top"}))

	edge := f.onlyEdge(t)
	assert.Equal(t, id, edge.ID)
	assert.Equal(t, c, edge.Target)
	assert.Equal(t, "supports", edge.SemanticLabel)
	assert.False(t, edge.IsTentative)

	require.NoError(t, f.state.UpdateEdgeHandles(id, "a-right", "c-left"))
	assert.Equal(t, "c-left", f.onlyEdge(t).TargetHandle)
}

func TestGraphState_MemoryUnits(t *testing.T) {
	f := newFixture(t)
	id, _ := f.state.AddNode(AddNodeParams{
		Label:   "Heat",
		Initial: valueobjects.ContentPatch{Content: strPtr("<p>Heat is energy in transit.</p>")},
	})

	_, err := f.state.AddMemoryUnit(id, "What is heat?", "Energy in transit", "not in content")
	assert.True(t, pkgerrors.IsValidation(err))

	unitID, err := f.state.AddMemoryUnit(id, "What is heat?", "Energy in transit", "energy in transit")
	require.NoError(t, err)

	assert.True(t, pkgerrors.IsValidation(f.state.UpdateMemoryUnit(id, unitID, entities.MemoryUnitPatch{TextSegment: strPtr("missing")})))
	require.NoError(t, f.state.UpdateMemoryUnit(id, unitID, entities.MemoryUnitPatch{Answer: strPtr("Transferred energy")}))
	assert.Equal(t, "Transferred energy", f.node(t, id).MemoryUnits[0].Answer)

	require.NoError(t, f.state.DeleteMemoryUnit(id, unitID))
	assert.Empty(t, f.node(t, id).MemoryUnits)
	assert.True(t, pkgerrors.IsNotFound(f.state.DeleteMemoryUnit(id, unitID)))
}

func TestGraphState_HealthAndMarkDue(t *testing.T) {
	f := newFixture(t)
	old := testNow.Add(-10 * 24 * time.Hour)
	past := testNow.Add(-time.Hour)
	f.gateway.Seed(testUser, []*entities.Node{
		{ID: "a", Label: "A", Type: valueobjects.NodeTypeText, Status: entities.StatusLearning, Content: valueobjects.TextContent{}, CreatedAt: old},
		{ID: "b", Label: "B", Type: valueobjects.NodeTypeText, Status: entities.StatusLearning, Content: valueobjects.TextContent{}, CreatedAt: old, LastReview: &old, NextReview: &past},
		{ID: "c", Label: "C", Type: valueobjects.NodeTypeText, Status: entities.StatusInbox, Content: valueobjects.TextContent{}, CreatedAt: old},
		{ID: "d", Label: "D", Type: valueobjects.NodeTypeText, Status: entities.StatusNew, Content: valueobjects.TextContent{}, CreatedAt: testNow},
	}, []*entities.Edge{
		{ID: "ab", Source: "a", Target: "b", Type: entities.EdgeTypeSocratic, CreatedAt: old},
	})
	require.NoError(t, f.state.LoadGraph(context.Background()))

	h := f.state.Health(testNow)
	assert.Equal(t, map[valueobjects.NodeID]health.Status{
		"a": health.Petrified,
		"b": health.Petrified,
		"d": health.Radiant,
	}, h)

	due := f.state.MarkDue(testNow)
	assert.ElementsMatch(t, []valueobjects.NodeID{"a", "b"}, due)
	assert.Equal(t, entities.StatusReviewDue, f.node(t, "a").Status)
	assert.Equal(t, entities.StatusInbox, f.node(t, "c").Status)
	assert.Empty(t, f.state.MarkDue(testNow))
}

func TestGraphState_ApplyLayout(t *testing.T) {
	f := newFixture(t)
	a, _ := f.state.AddNode(AddNodeParams{Label: "A"})
	b, _ := f.state.AddNode(AddNodeParams{Label: "B", ParentID: a})
	inbox, _ := f.state.AddNode(AddNodeParams{Label: "Later", Status: entities.StatusInbox})
	edge := f.onlyEdge(t)

	nodes, edges := f.state.LayoutInput()
	assert.Len(t, nodes, 2)
	assert.Len(t, edges, 1)

	moved, handled := f.state.ApplyLayout("hierarchical", layout.Result{
		Positions: map[valueobjects.NodeID]valueobjects.Position{
			a:      {X: 50, Y: 50},
			b:      {X: 390, Y: 50},
			inbox:  {X: 1, Y: 1},
			"gone": {X: 9, Y: 9},
		},
		Handles: map[valueobjects.EdgeID]layout.Handles{
			edge.ID: {Source: a.String() + "-right", Target: b.String() + "-left"},
		},
	})

	assert.Equal(t, 2, moved)
	assert.Equal(t, 1, handled)
	assert.Equal(t, valueobjects.Position{X: 390, Y: 50}, f.node(t, b).Position)
	assert.Equal(t, a.String()+"-right", f.onlyEdge(t).SourceHandle)

	f.state.Wait()
	stored, _ := f.gateway.StoredNode(b)
	assert.Equal(t, valueobjects.Position{X: 390, Y: 50}, stored.Position)
	assert.Contains(t, f.recorder.Types(), events.TypeLayoutApplied)
}

func TestGraphState_RecordReview(t *testing.T) {
	f := newFixture(t)
	id, _ := f.state.AddNode(AddNodeParams{Label: "A"})
	unitID, _ := f.state.AddMemoryUnit(id, "Q?", "A", "")
	sched := review.Schedule{
		Status:     entities.StatusLearning,
		LastReview: testNow,
		NextReview: testNow.Add(48 * time.Hour),
	}

	require.NoError(t, f.state.RecordReview(id, review.GradeEasy, sched, unitID))

	n := f.node(t, id)
	assert.Equal(t, entities.StatusLearning, n.Status)
	assert.Equal(t, testNow.Add(48*time.Hour), *n.NextReview)
	assert.Equal(t, entities.UnitStatusLearning, n.MemoryUnits[0].Status)

	require.NoError(t, f.state.MarkMastered(id))
	assert.Equal(t, entities.StatusMastered, f.node(t, id).Status)
	f.state.Wait()
	stored, _ := f.gateway.StoredNode(id)
	assert.Equal(t, entities.StatusMastered, stored.Status)
}

func strPtr(s string) *string {
	return &s
}
