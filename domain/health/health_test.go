package health

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"mindo/domain/core/entities"
)

var now = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func nodeCreated(ago time.Duration) *entities.Node {
	return &entities.Node{
		ID:        "n1",
		Status:    entities.StatusLearning,
		CreatedAt: now.Add(-ago),
	}
}

func TestClassify_PetrifiedWhenNeverReviewed(t *testing.T) {
	n := nodeCreated(10 * 24 * time.Hour)

	assert.Equal(t, Petrified, Classify(now, n, 2))
}

func TestClassify_IsolationBeatsPetrification(t *testing.T) {
	n := nodeCreated(10 * 24 * time.Hour)
	last := now.Add(-2 * 24 * time.Hour)
	n.LastReview = &last

	assert.Equal(t, Isolated, Classify(now, n, 0))
}

func TestClassify_NewNodesAreRadiant(t *testing.T) {
	n := nodeCreated(23 * time.Hour)

	assert.Equal(t, Radiant, Classify(now, n, 0))
	assert.Equal(t, Radiant, Classify(now, n, 5))
}

func TestClassify_MasteredRegardlessOfAge(t *testing.T) {
	n := nodeCreated(400 * 24 * time.Hour)
	n.Status = entities.StatusMastered

	assert.Equal(t, Mastered, Classify(now, n, 0))
}

func TestClassify_AllUnitsMastered(t *testing.T) {
	n := nodeCreated(30 * 24 * time.Hour)
	n.MemoryUnits = []entities.MemoryUnit{
		{ID: "u1", Status: entities.UnitStatusMastered},
		{ID: "u2", Status: entities.UnitStatusMastered},
	}
	assert.Equal(t, Mastered, Classify(now, n, 1))

	n.MemoryUnits[1].Status = entities.UnitStatusLearning
	assert.Equal(t, Petrified, Classify(now, n, 1))
}

func TestClassify_Table(t *testing.T) {
	recent := now.Add(-3 * 24 * time.Hour)
	stale := now.Add(-8 * 24 * time.Hour)

	tests := []struct {
		name        string
		age         time.Duration
		lastReview  *time.Time
		connections int
		want        Status
	}{
		{"recently reviewed and connected", 20 * 24 * time.Hour, &recent, 1, Dimmed},
		{"stale review", 20 * 24 * time.Hour, &stale, 1, Petrified},
		{"unreviewed inside a week", 5 * 24 * time.Hour, nil, 3, Dimmed},
		{"unreviewed exactly a week", 168 * time.Hour, nil, 3, Dimmed},
		{"unreviewed just past a week", 169 * time.Hour, nil, 3, Petrified},
		{"isolated old node", 90 * 24 * time.Hour, nil, 0, Isolated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := nodeCreated(tt.age)
			n.LastReview = tt.lastReview
			assert.Equal(t, tt.want, Classify(now, n, tt.connections))
		})
	}
}

func TestClassify_Deterministic(t *testing.T) {
	n := nodeCreated(9 * 24 * time.Hour)
	first := Classify(now, n, 1)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Classify(now, n, 1))
	}
	assert.Equal(t, entities.StatusLearning, n.Status)
}

func TestThresholds_Custom(t *testing.T) {
	th := Thresholds{NewNodeGrace: time.Hour, ReviewDecay: time.Hour, UnreviewedDecay: 2 * time.Hour}
	n := nodeCreated(3 * time.Hour)

	assert.Equal(t, Petrified, th.Classify(now, n, 1))
	assert.Equal(t, Radiant, th.Classify(now, nodeCreated(30*time.Minute), 1))
}

func TestStatus_NeedsReview(t *testing.T) {
	for _, s := range []Status{Radiant, Isolated, Dimmed, Mastered} {
		assert.False(t, s.NeedsReview(), string(s))
	}
	assert.True(t, Petrified.NeedsReview())
}
