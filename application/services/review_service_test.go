package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mindo/domain/config"
	"mindo/domain/core/entities"
	"mindo/domain/core/valueobjects"
	"mindo/domain/review"
	"mindo/infrastructure/persistence/memory"
	pkgerrors "mindo/pkg/errors"
)

type reviewFixture struct {
	svc   *ReviewService
	state *GraphState
	clock time.Time
}

func newReviewFixture(t *testing.T) *reviewFixture {
	t.Helper()
	w := newTestWorkspaces(t, memory.NewGateway())
	state, err := w.Get(context.Background(), testUser)
	require.NoError(t, err)

	f := &reviewFixture{state: state, clock: testNow}
	f.svc = NewReviewService(w, nil, config.DefaultDomainConfig(), nil, zap.NewNop())
	f.svc.now = func() time.Time { return f.clock }
	return f
}

func (f *reviewFixture) add(t *testing.T, label string, status entities.NodeStatus, tags ...string) valueobjects.NodeID {
	t.Helper()
	id, err := f.state.AddNode(AddNodeParams{Label: label, Status: status, Tags: tags})
	require.NoError(t, err)
	return id
}

func TestReviewService_ManualSelection(t *testing.T) {
	f := newReviewFixture(t)
	a := f.add(t, "A", entities.StatusLearning)
	b := f.add(t, "B", entities.StatusLearning)
	inbox := f.add(t, "Later", entities.StatusInbox)
	ctx := context.Background()

	_, err := f.svc.StartSelection(testUser)
	require.NoError(t, err)

	_, err = f.svc.ConfirmSelection(ctx, testUser)
	assert.True(t, pkgerrors.IsValidation(err))
	assert.Equal(t, review.PhaseSelecting, f.svc.State(testUser).Phase)

	_, err = f.svc.ToggleDraft(ctx, testUser, inbox)
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = f.svc.ToggleDraft(ctx, testUser, b)
	require.NoError(t, err)
	st, err := f.svc.ToggleDraft(ctx, testUser, a)
	require.NoError(t, err)
	assert.Equal(t, []valueobjects.NodeID{b, a}, st.Draft)

	sess, err := f.svc.ConfirmSelection(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, review.ModeCustomCluster, sess.Mode)
	assert.Equal(t, []valueobjects.NodeID{b, a}, sess.NodeIDs)
	assert.Len(t, sess.Questions, 2)
	assert.Equal(t, review.PhaseInSession, f.svc.State(testUser).Phase)
}

func TestReviewService_DailyRefreshesDueNodes(t *testing.T) {
	f := newReviewFixture(t)
	due := f.add(t, "Due", entities.StatusLearning)
	f.add(t, "Fresh", entities.StatusNew)
	sched := review.Schedule{Status: entities.StatusLearning, LastReview: testNow.Add(-48 * time.Hour), NextReview: testNow.Add(-time.Hour)}
	require.NoError(t, f.state.RecordReview(due, review.GradeGood, sched, ""))

	sess, err := f.svc.StartSession(context.Background(), testUser, StartSessionRequest{Mode: review.ModeDaily})

	require.NoError(t, err)
	assert.Equal(t, []valueobjects.NodeID{due}, sess.NodeIDs)
}

func TestReviewService_EmptySelection(t *testing.T) {
	f := newReviewFixture(t)
	f.add(t, "A", entities.StatusLearning, "math")

	_, err := f.svc.StartSession(context.Background(), testUser, StartSessionRequest{Mode: review.ModeCustomTags, Tags: []string{"art"}})

	assert.True(t, pkgerrors.IsValidation(err))
	assert.Equal(t, review.PhaseIdle, f.svc.State(testUser).Phase)
}

func TestReviewService_PathMode(t *testing.T) {
	f := newReviewFixture(t)
	a := f.add(t, "A", entities.StatusLearning)
	b, err := f.state.AddNode(AddNodeParams{Label: "B", ParentID: a, ConnectionLabel: "leads to"})
	require.NoError(t, err)
	c, err := f.state.AddNode(AddNodeParams{Label: "C", ParentID: b})
	require.NoError(t, err)

	sess, err := f.svc.StartSession(context.Background(), testUser, StartSessionRequest{Mode: review.ModePath, NodeIDs: []valueobjects.NodeID{a}})
	require.NoError(t, err)

	assert.Equal(t, []valueobjects.NodeID{a, b, c}, sess.PathNodes)
	var types []review.QuestionType
	for _, q := range sess.Questions {
		types = append(types, q.QuestionType)
	}
	assert.Equal(t, []review.QuestionType{
		review.QuestionConcept, review.QuestionConnection,
		review.QuestionConcept, review.QuestionConnection,
		review.QuestionConcept,
	}, types)
	assert.Equal(t, "leads to", sess.Questions[1].RelevantSegment)
}

func TestReviewService_GradesAndSpans(t *testing.T) {
	f := newReviewFixture(t)
	a := f.add(t, "A", entities.StatusNew)
	outside := f.add(t, "Outside", entities.StatusNew)
	ctx := context.Background()

	_, err := f.svc.SubmitGrade(ctx, testUser, GradeRequest{NodeID: a, Grade: review.GradeGood})
	assert.True(t, pkgerrors.IsConflict(err), "grading needs a running session")

	_, err = f.svc.StartSession(ctx, testUser, StartSessionRequest{Mode: review.ModeCustomCluster, NodeIDs: []valueobjects.NodeID{a}})
	require.NoError(t, err)

	_, err = f.svc.SubmitGrade(ctx, testUser, GradeRequest{NodeID: outside, Grade: review.GradeGood})
	assert.True(t, pkgerrors.IsConflict(err))
	_, err = f.svc.SubmitGrade(ctx, testUser, GradeRequest{NodeID: a, Grade: "perfect"})
	assert.True(t, pkgerrors.IsValidation(err))

	sched, err := f.svc.SubmitGrade(ctx, testUser, GradeRequest{NodeID: a, Grade: review.GradeGood})
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, sched.Interval)
	n, _ := f.state.Node(a)
	assert.Equal(t, entities.StatusLearning, n.Status)

	f.clock = f.clock.Add(20 * time.Minute)
	st, err := f.svc.Next(testUser)
	require.NoError(t, err)
	assert.Equal(t, review.PhaseIdle, st.Phase)

	reviews, spans := f.svc.Activity(testUser)
	assert.Len(t, reviews, 1)
	require.Len(t, spans, 1)
	assert.Equal(t, 20*time.Minute, spans[0].End.Sub(spans[0].Start))
}

func TestReviewService_ConfirmMastery(t *testing.T) {
	f := newReviewFixture(t)
	a := f.add(t, "Entropy", entities.StatusLearning)
	ctx := context.Background()

	err := f.svc.ConfirmMastery(ctx, testUser, a, "  disorder   ")
	assert.True(t, pkgerrors.IsValidation(err))
	n, _ := f.state.Node(a)
	assert.Equal(t, entities.StatusLearning, n.Status, "a rejected explanation changes nothing")

	require.NoError(t, f.svc.ConfirmMastery(ctx, testUser, a, "Entropy counts the microstates behind a macrostate."))
	n, _ = f.state.Node(a)
	assert.Equal(t, entities.StatusMastered, n.Status)
}
