package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mindo/domain/analytics"
	"mindo/domain/config"
	"mindo/domain/core/entities"
	"mindo/infrastructure/persistence/memory"
)

type staticActivity struct {
	reviews []time.Time
	spans   []analytics.Span
}

func (s staticActivity) Activity(string) ([]time.Time, []analytics.Span) {
	return s.reviews, s.spans
}

func TestAnalyticsService_Dashboard(t *testing.T) {
	w := newTestWorkspaces(t, memory.NewGateway())
	ctx := context.Background()
	state, err := w.Get(ctx, testUser)
	require.NoError(t, err)

	a, _ := state.AddNode(AddNodeParams{Label: "A", Tags: []string{"physics"}})
	b, _ := state.AddNode(AddNodeParams{Label: "B", Tags: []string{"physics"}})
	_, _ = state.AddNode(AddNodeParams{Label: "C", Status: entities.StatusInbox})
	_, err = state.CreateSolidEdge(a, b, "explains")
	require.NoError(t, err)
	require.NoError(t, state.MarkMastered(a))

	activity := staticActivity{
		reviews: []time.Time{testNow.Add(-time.Hour)},
		spans:   []analytics.Span{{Start: testNow.Add(-2 * time.Hour), End: testNow.Add(-time.Hour)}},
	}
	svc := NewAnalyticsService(w, activity, config.DefaultDomainConfig(), zap.NewNop())
	svc.now = func() time.Time { return testNow }

	d, err := svc.Dashboard(ctx, testUser)

	require.NoError(t, err)
	assert.Equal(t, 3, d.Metrics.TotalNodes)
	assert.Equal(t, 1, d.Metrics.TotalConnections)
	assert.InDelta(t, 55, d.Metrics.ConfidenceScore, 1e-9)
	assert.InDelta(t, 1.0, d.Metrics.HoursThisWeek, 1e-9)
	assert.Equal(t, 1, d.Metrics.StreakDays)
	assert.Equal(t, analytics.ObesityCritical, d.Obesity)
	require.Len(t, d.Radar, 1)
	assert.Equal(t, "physics", d.Radar[0].Subject)
	assert.InDelta(t, 50, d.Radar[0].A, 1e-9)
}
