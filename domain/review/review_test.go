package review

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindo/domain/core/entities"
	"mindo/domain/core/valueobjects"
	pkgerrors "mindo/pkg/errors"
)

var now = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func policy() *LadderPolicy {
	return NewLadderPolicy(21*24*time.Hour, 10*time.Minute)
}

func applySchedule(n *entities.Node, s Schedule) {
	last, next := s.LastReview, s.NextReview
	n.LastReview = &last
	n.NextReview = &next
	n.Status = s.Status
}

func TestLadderPolicy_RepeatedEasyReachesMastered(t *testing.T) {
	p := policy()
	n := &entities.Node{ID: "n", Status: entities.StatusNew}

	clock := now
	var reached int
	for i := 1; i <= 10; i++ {
		s := p.Next(clock, n, GradeEasy)
		applySchedule(n, s)
		if s.Status == entities.StatusMastered {
			reached = i
			break
		}
		clock = s.NextReview
	}
	require.NotZero(t, reached, "easy grades never mastered the node")
	assert.Equal(t, 4, reached)
}

func TestLadderPolicy_FailAndHardNeverAdvance(t *testing.T) {
	p := policy()
	for _, g := range []Grade{GradeFail, GradeHard} {
		n := &entities.Node{ID: "n", Status: entities.StatusMastered}
		last := now.Add(-30 * 24 * time.Hour)
		next := now
		n.LastReview, n.NextReview = &last, &next

		s := p.Next(now, n, g)
		assert.Equal(t, entities.StatusLearning, s.Status, string(g))
		assert.Equal(t, now, s.LastReview)
	}
}

// easyGradesToMastery grades n easy until it is mastered
func easyGradesToMastery(t *testing.T, p Policy, n *entities.Node, clock time.Time) int {
	t.Helper()
	for i := 1; i <= 20; i++ {
		s := p.Next(clock, n, GradeEasy)
		applySchedule(n, s)
		if s.Status == entities.StatusMastered {
			return i
		}
		clock = s.NextReview
	}
	t.Fatal("easy grades never mastered the node")
	return 0
}

func TestLadderPolicy_HardOnFreshNodeDoesNotAdvance(t *testing.T) {
	// Arrange
	p := policy()
	fresh := &entities.Node{ID: "fresh", Status: entities.StatusNew}
	graded := &entities.Node{ID: "graded", Status: entities.StatusNew}

	// Act
	hard := p.Next(now, graded, GradeHard)
	applySchedule(graded, hard)

	// Assert
	assert.Equal(t, entities.StatusLearning, hard.Status)
	assert.Equal(t, 10*time.Minute, hard.Interval)
	assert.Less(t, hard.Interval, p.Next(now, &entities.Node{ID: "g"}, GradeGood).Interval)
	assert.Equal(t,
		easyGradesToMastery(t, p, fresh, now),
		easyGradesToMastery(t, p, graded, hard.NextReview),
		"a hard grade must not shorten the path to mastered")
}

func TestLadderPolicy_Intervals(t *testing.T) {
	p := policy()
	n := &entities.Node{ID: "n"}
	last := now.Add(-4 * 24 * time.Hour)
	n.LastReview, n.NextReview = &last, &now

	assert.Equal(t, 10*time.Minute, p.Next(now, n, GradeFail).Interval)
	assert.Equal(t, 4*24*time.Hour, p.Next(now, n, GradeHard).Interval)
	assert.Equal(t, 8*24*time.Hour, p.Next(now, n, GradeGood).Interval)
	assert.Equal(t, 12*24*time.Hour, p.Next(now, n, GradeEasy).Interval)

	fresh := &entities.Node{ID: "f"}
	assert.Equal(t, 24*time.Hour, p.Next(now, fresh, GradeGood).Interval)
	assert.Equal(t, 48*time.Hour, p.Next(now, fresh, GradeEasy).Interval)
	assert.Equal(t, 10*time.Minute, p.Next(now, fresh, GradeHard).Interval)
}

func TestUnitStatusAfter(t *testing.T) {
	assert.Equal(t, entities.UnitStatusLearning, UnitStatusAfter(entities.UnitStatusNew, GradeEasy))
	assert.Equal(t, entities.UnitStatusMastered, UnitStatusAfter(entities.UnitStatusLearning, GradeEasy))
	assert.Equal(t, entities.UnitStatusLearning, UnitStatusAfter(entities.UnitStatusMastered, GradeFail))
	assert.Equal(t, entities.UnitStatusLearning, UnitStatusAfter(entities.UnitStatusMastered, GradeHard))
	assert.Equal(t, entities.UnitStatusMastered, UnitStatusAfter(entities.UnitStatusMastered, GradeGood))
}

func sessionWith(n int) *Session {
	s := &Session{ID: "s", Mode: ModeCustomCluster}
	for i := 0; i < n; i++ {
		s.Questions = append(s.Questions, Question{ID: string(rune('a' + i))})
	}
	return s
}

func TestMachine_SelectionFlow(t *testing.T) {
	m := NewMachine()
	assert.Equal(t, PhaseIdle, m.Phase())

	require.NoError(t, m.StartSelection())
	assert.Equal(t, PhaseSelecting, m.Phase())

	_, err := m.ConfirmSelection()
	assert.True(t, pkgerrors.IsValidation(err))
	assert.Equal(t, PhaseSelecting, m.Phase(), "empty confirm must not leave selection")

	require.NoError(t, m.ToggleDraft("a"))
	require.NoError(t, m.ToggleDraft("b"))
	require.NoError(t, m.ToggleDraft("a"))
	ids, err := m.ConfirmSelection()
	require.NoError(t, err)
	assert.Equal(t, []valueobjects.NodeID{"b"}, ids)

	require.NoError(t, m.Begin(sessionWith(2)))
	assert.Equal(t, PhaseInSession, m.Phase())
	assert.Empty(t, m.Draft())
	assert.True(t, pkgerrors.IsConflict(m.StartSelection()))
}

func TestMachine_CancelSelection(t *testing.T) {
	m := NewMachine()
	require.NoError(t, m.StartSelection())
	require.NoError(t, m.ToggleDraft("a"))
	m.CancelSelection()

	assert.Equal(t, PhaseIdle, m.Phase())
	assert.Empty(t, m.Draft())
	assert.True(t, pkgerrors.IsConflict(m.ToggleDraft("a")))
}

func TestMachine_CursorEndsSession(t *testing.T) {
	m := NewMachine()
	s := sessionWith(2)
	unit := valueobjects.MemoryUnitID("u1")
	s.Questions[1].MemoryUnitID = unit
	require.NoError(t, m.Begin(s))
	assert.Nil(t, m.Session().ActiveMemoryUnitID)

	require.NoError(t, m.Prev())
	assert.Equal(t, 0, m.Session().CurrentIndex)

	ended, err := m.Next()
	require.NoError(t, err)
	assert.False(t, ended)
	require.NotNil(t, m.Session().ActiveMemoryUnitID)
	assert.Equal(t, unit, *m.Session().ActiveMemoryUnitID)

	ended, err = m.Next()
	require.NoError(t, err)
	assert.True(t, ended)
	assert.Equal(t, PhaseIdle, m.Phase())
	assert.Nil(t, m.Session())

	_, err = m.Next()
	assert.Error(t, err)
}

func TestMachine_BeginRejectsEmptySession(t *testing.T) {
	m := NewMachine()
	assert.True(t, pkgerrors.IsValidation(m.Begin(sessionWith(0))))
	assert.Equal(t, PhaseIdle, m.Phase())
}

func TestBuildQuestions(t *testing.T) {
	a := &entities.Node{
		ID:      "a",
		Label:   "Entropy",
		Content: valueobjects.TextContent{HTML: "<p>Entropy measures <b>disorder</b>.</p>"},
	}
	b := &entities.Node{
		ID:      "b",
		Label:   "Heat",
		Content: valueobjects.TextContent{HTML: "<p>Heat is energy in transit.</p>"},
		MemoryUnits: []entities.MemoryUnit{
			{ID: "u1", Question: "What is heat?", TextSegment: "energy"},
			{ID: "u2", Question: "Unit of heat?"},
		},
	}

	plain := BuildQuestions([]*entities.Node{a, b}, nil)
	require.Len(t, plain, 3)
	assert.Equal(t, QuestionConcept, plain[0].QuestionType)
	assert.Equal(t, "Entropy measures disorder .", plain[0].RelevantSegment)
	assert.Equal(t, QuestionFact, plain[1].QuestionType)
	assert.Equal(t, valueobjects.MemoryUnitID("u1"), plain[1].MemoryUnitID)
	assert.Equal(t, "energy", plain[1].RelevantSegment)
	assert.Equal(t, "q3", plain[2].ID)

	labels := func(x, y valueobjects.NodeID) (string, bool) {
		if x == "a" && y == "b" {
			return "causes", true
		}
		return "", false
	}
	path := BuildQuestions([]*entities.Node{a, b}, labels)
	require.Len(t, path, 4)
	assert.Equal(t, QuestionConnection, path[1].QuestionType)
	assert.Equal(t, []valueobjects.NodeID{"a", "b"}, path[1].RelatedNodeIDs)
	assert.Equal(t, "causes", path[1].RelevantSegment)
}

func TestBuildQuestions_DropsBrokenAnchors(t *testing.T) {
	// Arrange: the anchored sentence was edited away after the unit was made
	n := &entities.Node{
		ID:      "n",
		Label:   "Osmosis",
		Content: valueobjects.TextContent{HTML: "<p>Water crosses membranes.</p>"},
		MemoryUnits: []entities.MemoryUnit{
			{ID: "kept", Question: "What crosses?", TextSegment: "Water crosses"},
			{ID: "broken", Question: "Which gradient?", TextSegment: "solute gradient"},
		},
	}

	// Act
	qs := BuildQuestions([]*entities.Node{n}, nil)

	// Assert
	require.Len(t, qs, 2)
	assert.Equal(t, "Water crosses", qs[0].RelevantSegment)
	assert.Empty(t, qs[1].RelevantSegment)
	assert.Equal(t, valueobjects.MemoryUnitID("broken"), qs[1].MemoryUnitID)
}

func TestSelect(t *testing.T) {
	nodes := []*entities.Node{
		{ID: "a", Status: entities.StatusReviewDue, Tags: []string{"Physics"}},
		{ID: "b", Status: entities.StatusLearning, Tags: []string{"math"}},
		{ID: "c", Status: entities.StatusInbox, Tags: []string{"physics"}},
		{ID: "d", Status: entities.StatusReviewDue},
	}

	ids := func(ns []*entities.Node) []valueobjects.NodeID {
		var out []valueobjects.NodeID
		for _, n := range ns {
			out = append(out, n.ID)
		}
		return out
	}

	assert.Equal(t, []valueobjects.NodeID{"a", "d"}, ids(Select(ModeDaily, nodes, nil, nil)))
	assert.Equal(t, []valueobjects.NodeID{"a"}, ids(Select(ModeCustomTags, nodes, []string{"physics"}, nil)))
	assert.Equal(t, []valueobjects.NodeID{"d", "b"},
		ids(Select(ModeCustomCluster, nodes, nil, []valueobjects.NodeID{"d", "c", "b", "d", "zz"})))
}

func TestWalk(t *testing.T) {
	adj := map[valueobjects.NodeID][]valueobjects.NodeID{
		"a": {"b", "c"},
		"b": {"a", "d"},
		"c": {"a"},
		"d": {"b", "x"},
		"x": {"d"},
	}
	neighbors := func(id valueobjects.NodeID) []valueobjects.NodeID { return adj[id] }
	skip := func(id valueobjects.NodeID) bool { return id == "x" }

	assert.Equal(t, []valueobjects.NodeID{"a", "b", "d", "c"}, Walk("a", neighbors, skip, 10))
	assert.Equal(t, []valueobjects.NodeID{"a", "b"}, Walk("a", neighbors, skip, 2))
	assert.Nil(t, Walk("x", neighbors, skip, 10))
}

func TestCheckExplanation(t *testing.T) {
	assert.True(t, pkgerrors.IsValidation(CheckExplanation("too short", 20)))
	assert.True(t, pkgerrors.IsValidation(CheckExplanation("   padded  short     ", 20)))
	assert.NoError(t, CheckExplanation("Heat flows from hot to cold bodies.", 20))
}
