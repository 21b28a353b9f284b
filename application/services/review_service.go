package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mindo/application/ports"
	"mindo/domain/analytics"
	"mindo/domain/config"
	"mindo/domain/core/entities"
	"mindo/domain/core/valueobjects"
	"mindo/domain/review"
	"mindo/pkg/errors"
)

// StartSessionRequest describes the working set of a new review session
type StartSessionRequest struct {
	Mode    review.Mode           `json:"mode" validate:"required,oneof=daily custom_tags custom_cluster path"`
	Tags    []string              `json:"tags,omitempty" validate:"required_if=Mode custom_tags,dive,required"`
	NodeIDs []valueobjects.NodeID `json:"nodeIds,omitempty" validate:"required_if=Mode custom_cluster,required_if=Mode path"`
}

// GradeRequest is a learner's answer to the current question
type GradeRequest struct {
	NodeID       valueobjects.NodeID       `json:"nodeId" validate:"required"`
	Grade        review.Grade              `json:"grade" validate:"required,oneof=fail hard good easy"`
	MemoryUnitID valueobjects.MemoryUnitID `json:"memoryUnitId,omitempty"`
}

// ReviewState is the externally visible state of a learner's review flow
type ReviewState struct {
	Phase   review.Phase          `json:"phase"`
	Draft   []valueobjects.NodeID `json:"draft"`
	Session *review.Session       `json:"session"`
}

// ReviewService runs review sessions. Each learner has one state machine;
// calls for the same learner are serialized.
type ReviewService struct {
	workspaces *Workspaces
	policy     review.Policy
	cfg        *config.DomainConfig
	metrics    ports.Metrics
	logger     *zap.Logger
	now        func() time.Time

	mu       sync.Mutex
	learners map[string]*learner
}

type learner struct {
	mu      sync.Mutex
	machine *review.Machine
	reviews []time.Time
	spans   []analytics.Span
}

// NewReviewService creates a review service. A nil policy uses the ladder
// policy configured by cfg.
func NewReviewService(workspaces *Workspaces, policy review.Policy, cfg *config.DomainConfig, metrics ports.Metrics, logger *zap.Logger) *ReviewService {
	if policy == nil {
		policy = review.NewLadderPolicy(cfg.MasteryInterval, cfg.RelearnDelay)
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &ReviewService{
		workspaces: workspaces,
		policy:     policy,
		cfg:        cfg,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
		learners:   make(map[string]*learner),
	}
}

func (s *ReviewService) learner(userID string) *learner {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.learners[userID]
	if !ok {
		l = &learner{machine: review.NewMachine()}
		s.learners[userID] = l
	}
	return l
}

func (l *learner) state() *ReviewState {
	st := &ReviewState{Phase: l.machine.Phase(), Draft: l.machine.Draft()}
	if sess := l.machine.Session(); sess != nil {
		st.Session = sess.Clone()
	}
	return st
}

// State returns the learner's phase, draft and session
func (s *ReviewService) State(userID string) *ReviewState {
	l := s.learner(userID)
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state()
}

// StartSelection enters manual node selection
func (s *ReviewService) StartSelection(userID string) (*ReviewState, error) {
	l := s.learner(userID)
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.machine.StartSelection(); err != nil {
		return nil, err
	}
	return l.state(), nil
}

// ToggleDraft adds or removes a canvas node from the selection draft
func (s *ReviewService) ToggleDraft(ctx context.Context, userID string, nodeID valueobjects.NodeID) (*ReviewState, error) {
	state, err := s.workspaces.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	node, ok := state.Node(nodeID)
	if !ok {
		return nil, errors.NewNotFoundError("node")
	}
	if !node.IsOnCanvas() {
		return nil, errors.NewValidationError("inbox nodes cannot be reviewed")
	}

	l := s.learner(userID)
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.machine.ToggleDraft(nodeID); err != nil {
		return nil, err
	}
	return l.state(), nil
}

// CancelSelection drops the draft and returns to idle
func (s *ReviewService) CancelSelection(userID string) *ReviewState {
	l := s.learner(userID)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.machine.CancelSelection()
	return l.state()
}

// ConfirmSelection starts a custom_cluster session over the drafted nodes.
// An empty draft is rejected and selection continues.
func (s *ReviewService) ConfirmSelection(ctx context.Context, userID string) (*review.Session, error) {
	l := s.learner(userID)
	l.mu.Lock()
	ids, err := l.machine.ConfirmSelection()
	l.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.StartSession(ctx, userID, StartSessionRequest{Mode: review.ModeCustomCluster, NodeIDs: ids})
}

// StartSession selects the working set for req and begins a session
func (s *ReviewService) StartSession(ctx context.Context, userID string, req StartSessionRequest) (*review.Session, error) {
	if !req.Mode.IsValid() {
		return nil, errors.NewValidationError("unknown review mode: " + string(req.Mode))
	}
	state, err := s.workspaces.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if req.Mode == review.ModeDaily {
		state.MarkDue(now)
	}
	nodes, _ := state.Snapshot()

	var selected []*entities.Node
	var labels review.EdgeLabeler
	var path []valueobjects.NodeID
	switch req.Mode {
	case review.ModePath:
		if len(req.NodeIDs) == 0 {
			return nil, errors.NewValidationError("path review needs a starting node")
		}
		path = s.walk(state, nodes, req.NodeIDs)
		selected = review.Select(review.ModePath, nodes, nil, path)
		labels = state.EdgeLabel
	default:
		selected = review.Select(req.Mode, nodes, req.Tags, req.NodeIDs)
	}
	if len(selected) == 0 {
		return nil, errors.NewValidationError("no nodes match the review selection").
			WithDetail("mode", string(req.Mode))
	}

	sess := &review.Session{
		ID:        uuid.New().String(),
		Mode:      req.Mode,
		Tags:      append([]string(nil), req.Tags...),
		Questions: review.BuildQuestions(selected, labels),
		StartedAt: now,
		PathNodes: path,
	}
	for _, n := range selected {
		sess.NodeIDs = append(sess.NodeIDs, n.ID)
	}

	l := s.learner(userID)
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.machine.Begin(sess); err != nil {
		return nil, err
	}

	s.logger.Info("Review session started",
		zap.String("userID", userID),
		zap.String("sessionID", sess.ID),
		zap.String("mode", string(sess.Mode)),
		zap.Int("nodes", len(sess.NodeIDs)),
		zap.Int("questions", len(sess.Questions)))
	return sess.Clone(), nil
}

// walk concatenates depth-first walks from each start node, skipping inbox
// and already visited nodes, up to MaxPathLength nodes in total
func (s *ReviewService) walk(state *GraphState, nodes []*entities.Node, starts []valueobjects.NodeID) []valueobjects.NodeID {
	onCanvas := make(map[valueobjects.NodeID]bool, len(nodes))
	for _, n := range nodes {
		onCanvas[n.ID] = n.IsOnCanvas()
	}

	var path []valueobjects.NodeID
	seen := make(map[valueobjects.NodeID]struct{})
	skip := func(id valueobjects.NodeID) bool {
		_, visited := seen[id]
		return visited || !onCanvas[id]
	}
	for _, start := range starts {
		remaining := s.cfg.MaxPathLength - len(path)
		if remaining <= 0 {
			break
		}
		for _, id := range review.Walk(start, state.Neighbors, skip, remaining) {
			seen[id] = struct{}{}
			path = append(path, id)
		}
	}
	return path
}

// Next advances to the next question; past the last one the session ends
func (s *ReviewService) Next(userID string) (*ReviewState, error) {
	l := s.learner(userID)
	l.mu.Lock()
	defer l.mu.Unlock()

	sess := l.machine.Session()
	var started time.Time
	if sess != nil {
		started = sess.StartedAt
	}
	ended, err := l.machine.Next()
	if err != nil {
		return nil, err
	}
	if ended {
		l.recordSpan(started, s.now())
	}
	return l.state(), nil
}

// Prev moves back one question
func (s *ReviewService) Prev(userID string) (*ReviewState, error) {
	l := s.learner(userID)
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.machine.Prev(); err != nil {
		return nil, err
	}
	return l.state(), nil
}

// EndSession abandons the running session
func (s *ReviewService) EndSession(userID string) *ReviewState {
	l := s.learner(userID)
	l.mu.Lock()
	defer l.mu.Unlock()
	if sess := l.machine.Session(); sess != nil {
		l.recordSpan(sess.StartedAt, s.now())
	}
	l.machine.End()
	return l.state()
}

// SubmitGrade schedules the next review of a node in the running session
func (s *ReviewService) SubmitGrade(ctx context.Context, userID string, req GradeRequest) (*review.Schedule, error) {
	if !req.Grade.IsValid() {
		return nil, errors.NewValidationError("unknown grade: " + string(req.Grade))
	}

	l := s.learner(userID)
	l.mu.Lock()
	sess := l.machine.Session()
	inSession := sess != nil && sess.Contains(req.NodeID)
	l.mu.Unlock()
	if !inSession {
		return nil, errors.NewConflictError("node is not part of the running review session")
	}

	state, err := s.workspaces.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	node, ok := state.Node(req.NodeID)
	if !ok {
		return nil, errors.NewNotFoundError("node")
	}

	now := s.now()
	sched := s.policy.Next(now, node, req.Grade)
	if err := state.RecordReview(req.NodeID, req.Grade, sched, req.MemoryUnitID); err != nil {
		return nil, err
	}
	s.metrics.IncReviewGrade(string(req.Grade))

	l.mu.Lock()
	l.reviews = append(l.reviews, now)
	l.mu.Unlock()

	s.logger.Debug("Review graded",
		zap.String("userID", userID),
		zap.String("nodeID", req.NodeID.String()),
		zap.String("grade", string(req.Grade)),
		zap.String("status", string(sched.Status)),
		zap.Duration("interval", sched.Interval))
	return &sched, nil
}

// ConfirmMastery is the Feynman gate: the node is mastered only after the
// learner explains it in at least FeynmanMinLength characters. A short
// explanation is rejected before anything changes.
func (s *ReviewService) ConfirmMastery(ctx context.Context, userID string, nodeID valueobjects.NodeID, explanation string) error {
	if err := review.CheckExplanation(explanation, s.cfg.FeynmanMinLength); err != nil {
		return err
	}
	state, err := s.workspaces.Get(ctx, userID)
	if err != nil {
		return err
	}
	if err := state.MarkMastered(nodeID); err != nil {
		return err
	}

	l := s.learner(userID)
	l.mu.Lock()
	l.reviews = append(l.reviews, s.now())
	l.mu.Unlock()
	return nil
}

// Activity returns the review timestamps and finished session spans of a learner
func (s *ReviewService) Activity(userID string) ([]time.Time, []analytics.Span) {
	l := s.learner(userID)
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]time.Time(nil), l.reviews...), append([]analytics.Span(nil), l.spans...)
}

func (l *learner) recordSpan(start, end time.Time) {
	if start.IsZero() || !end.After(start) {
		return
	}
	l.spans = append(l.spans, analytics.Span{Start: start, End: end})
}
