package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mindo/application/ports"
	"mindo/domain/config"
	"mindo/domain/core/entities"
	"mindo/domain/core/valueobjects"
	pkgerrors "mindo/pkg/errors"
)

const testUser = "user-123"

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestGateway(t *testing.T) *Gateway {
	t.Helper()
	db, err := OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	g := NewGateway(db, zap.NewNop())
	g.now = func() time.Time { return testNow }
	return g
}

func newNode(t *testing.T, label string, nodeType valueobjects.NodeType) *entities.Node {
	t.Helper()
	n, err := entities.NewNode(testUser, label, nodeType, entities.StatusNew, testNow, config.DefaultDomainConfig())
	require.NoError(t, err)
	return n
}

func TestOpen_CreatesSchema(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "nested", "mindo.db"))
	require.NoError(t, err)
	defer db.Close()

	v, err := db.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, len(migrations), v)

	for _, table := range []string{"nodes", "edges", "memory_units"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		assert.NoError(t, err, table)
	}
}

func TestGateway_NodeRoundTrip(t *testing.T) {
	// Arrange
	g := newTestGateway(t)
	ctx := context.Background()
	n := newNode(t, "Mitochondria", valueobjects.NodeTypeText)
	n.Tags = []string{"biology"}
	n.Position = valueobjects.Position{X: 10, Y: 20}

	// Act
	require.NoError(t, g.CreateNode(ctx, n))
	nodes, err := g.FetchNodes(ctx, testUser)

	// Assert
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	got := nodes[0]
	assert.Equal(t, n.ID, got.ID)
	assert.Equal(t, "Mitochondria", got.Label)
	assert.Equal(t, valueobjects.TextContent{HTML: "<p>Mitochondria</p>"}, got.Content)
	assert.Equal(t, []string{"biology"}, got.Tags)
	assert.Equal(t, n.Position, got.Position)
	assert.True(t, testNow.Equal(got.CreatedAt))
	assert.Nil(t, got.LastReview)

	other, err := g.FetchNodes(ctx, "someone-else")
	require.NoError(t, err)
	assert.Empty(t, other)

	assert.True(t, pkgerrors.IsConflict(g.CreateNode(ctx, n)))
}

func TestGateway_UpdateNodeColumns(t *testing.T) {
	g := newTestGateway(t)
	ctx := context.Background()
	n := newNode(t, "Krebs", valueobjects.NodeTypeText)
	require.NoError(t, g.CreateNode(ctx, n))

	label := "Krebs cycle"
	status := entities.StatusLearning
	weight := 3
	next := testNow.Add(24 * time.Hour)
	err := g.UpdateNode(ctx, n.ID, ports.NodeUpdate{
		Label:      &label,
		Status:     &status,
		Weight:     &weight,
		NextReview: &next,
		Position:   &valueobjects.Position{X: 5, Y: 6},
	})
	require.NoError(t, err)

	nodes, err := g.FetchNodes(ctx, testUser)
	require.NoError(t, err)
	got := nodes[0]
	assert.Equal(t, label, got.Label)
	assert.Equal(t, status, got.Status)
	assert.Equal(t, 3, got.Weight)
	require.NotNil(t, got.NextReview)
	assert.True(t, next.Equal(*got.NextReview))
	assert.Equal(t, valueobjects.Position{X: 5, Y: 6}, got.Position)

	missing := g.UpdateNode(ctx, valueobjects.NewNodeID(), ports.NodeUpdate{Label: &label})
	assert.True(t, pkgerrors.IsNotFound(missing))
}

func TestGateway_DataAndStyleKeepEachOther(t *testing.T) {
	g := newTestGateway(t)
	ctx := context.Background()
	n := newNode(t, "Diagram", valueobjects.NodeTypeImage)
	require.NoError(t, g.CreateNode(ctx, n))

	require.NoError(t, g.UpdateNodeStyle(ctx, n.ID, valueobjects.Dimensions{Width: 640}))
	require.NoError(t, g.UpdateNodeData(ctx, n.ID, valueobjects.Payload{URL: "https://cdn.test/a.png"}))

	nodes, err := g.FetchNodes(ctx, testUser)
	require.NoError(t, err)
	got := nodes[0]
	assert.Equal(t, "https://cdn.test/a.png", got.Content.MediaURL())
	assert.Equal(t, float64(640), got.Dimensions.Width)
	assert.Equal(t, n.Dimensions.Height, got.Dimensions.Height)

	err = g.UpdateNodeData(ctx, valueobjects.NewNodeID(), valueobjects.Payload{})
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestGateway_EdgesAndUnits(t *testing.T) {
	// Arrange
	g := newTestGateway(t)
	ctx := context.Background()
	a := newNode(t, "A", valueobjects.NodeTypeText)
	b := newNode(t, "B", valueobjects.NodeTypeText)
	require.NoError(t, g.CreateNode(ctx, a))
	require.NoError(t, g.CreateNode(ctx, b))

	e, err := entities.NewTentativeEdge(entities.Connection{Source: a.ID, Target: b.ID}, testNow)
	require.NoError(t, err)

	// Act
	require.NoError(t, g.CreateEdge(ctx, testUser, e))
	require.NoError(t, g.UpdateEdge(ctx, e.ID, ports.EdgeUpdate{
		Source: a.ID, Target: b.ID, Type: entities.EdgeTypeSemantic, Label: "causes",
	}))
	require.NoError(t, g.UpdateEdgeHandles(ctx, e.ID, a.ID.String()+"-right", b.ID.String()+"-left"))

	unit := entities.MemoryUnit{ID: valueobjects.NewMemoryUnitID(), Question: "What?", Status: entities.UnitStatusNew}
	require.NoError(t, g.CreateMemoryUnit(ctx, testUser, a.ID, unit))
	unit.Status = entities.UnitStatusMastered
	require.NoError(t, g.UpdateMemoryUnit(ctx, unit))

	// Assert
	edges, err := g.FetchEdges(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.False(t, edges[0].IsTentative)
	assert.Equal(t, "causes", edges[0].SemanticLabel)
	assert.Equal(t, b.ID.String()+"-left", edges[0].TargetHandle)

	nodes, err := g.FetchNodes(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, nodes[0].MemoryUnits, 1)
	assert.Equal(t, entities.UnitStatusMastered, nodes[0].MemoryUnits[0].Status)

	orphan := g.CreateMemoryUnit(ctx, testUser, valueobjects.NewNodeID(), entities.MemoryUnit{ID: valueobjects.NewMemoryUnitID(), Question: "Q"})
	assert.True(t, pkgerrors.IsNotFound(orphan))
}

func TestGateway_DeleteCascadesUnits(t *testing.T) {
	g := newTestGateway(t)
	ctx := context.Background()
	n := newNode(t, "A", valueobjects.NodeTypeText)
	require.NoError(t, g.CreateNode(ctx, n))
	unit := entities.MemoryUnit{ID: valueobjects.NewMemoryUnitID(), Question: "Q", Status: entities.UnitStatusNew}
	require.NoError(t, g.CreateMemoryUnit(ctx, testUser, n.ID, unit))

	require.NoError(t, g.DeleteNode(ctx, n.ID))

	var count int
	require.NoError(t, g.db.QueryRow("SELECT COUNT(*) FROM memory_units").Scan(&count))
	assert.Zero(t, count)
	assert.True(t, pkgerrors.IsNotFound(g.UpdateMemoryUnit(ctx, unit)))
}
