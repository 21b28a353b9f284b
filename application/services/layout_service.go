package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"mindo/application/ports"
	"mindo/domain/config"
	"mindo/domain/core/valueobjects"
	"mindo/domain/layout"
	"mindo/pkg/errors"
)

// LayoutRequest selects the algorithm for an organize run
type LayoutRequest struct {
	Algorithm layout.Algorithm `json:"algorithm" validate:"required,oneof=force hierarchical"`
	Direction layout.Direction `json:"direction,omitempty" validate:"omitempty,oneof=LR TB"`
}

// LayoutSummary reports what an organize run changed
type LayoutSummary struct {
	Algorithm    layout.Algorithm `json:"algorithm"`
	NodesMoved   int              `json:"nodesMoved"`
	EdgesUpdated int              `json:"edgesUpdated"`
	DurationMs   int64            `json:"durationMs"`
}

// LayoutService arranges a user's canvas
type LayoutService struct {
	workspaces *Workspaces
	cfg        *config.DomainConfig
	metrics    ports.Metrics
	logger     *zap.Logger
}

// NewLayoutService creates a layout service
func NewLayoutService(workspaces *Workspaces, cfg *config.DomainConfig, metrics ports.Metrics, logger *zap.Logger) *LayoutService {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &LayoutService{
		workspaces: workspaces,
		cfg:        cfg,
		metrics:    metrics,
		logger:     logger,
	}
}

// Organize computes a layout over the canvas nodes of userID and commits it.
// Inbox nodes are neither moved nor considered.
func (s *LayoutService) Organize(ctx context.Context, userID string, req LayoutRequest) (*LayoutSummary, error) {
	if !req.Algorithm.IsValid() {
		return nil, errors.NewValidationError("unknown layout algorithm: " + string(req.Algorithm))
	}
	if req.Direction != "" && !req.Direction.IsValid() {
		return nil, errors.NewValidationError("unknown layout direction: " + string(req.Direction))
	}

	state, err := s.workspaces.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	nodes, edges := state.LayoutInput()
	start := time.Now()
	res := s.Compute(req, nodes, edges)
	elapsed := time.Since(start)
	s.metrics.ObserveLayout(string(req.Algorithm), len(nodes), elapsed)

	moved, updated := state.ApplyLayout(string(req.Algorithm), res)
	s.logger.Info("Layout applied",
		zap.String("userID", userID),
		zap.String("algorithm", string(req.Algorithm)),
		zap.Int("nodesMoved", moved),
		zap.Int("edgesUpdated", updated),
		zap.Duration("duration", elapsed))

	return &LayoutSummary{
		Algorithm:    req.Algorithm,
		NodesMoved:   moved,
		EdgesUpdated: updated,
		DurationMs:   elapsed.Milliseconds(),
	}, nil
}

// Compute runs the requested algorithm without committing anything
func (s *LayoutService) Compute(req LayoutRequest, nodes []layout.Node, edges []layout.Edge) layout.Result {
	if req.Algorithm == layout.AlgorithmHierarchical {
		return layout.Hierarchical(nodes, edges, s.hierarchicalOptions(req.Direction))
	}
	return layout.Force(nodes, edges, s.forceOptions())
}

func (s *LayoutService) forceOptions() layout.ForceOptions {
	return layout.ForceOptions{
		Ticks:             s.cfg.ForceTicks,
		ChargeBase:        s.cfg.ForceChargeBase,
		ChargePerWeight:   s.cfg.ForceChargePerW,
		CollideBase:       s.cfg.ForceCollideBase,
		CollidePerWeight:  s.cfg.ForceCollidePerW,
		CollideIterations: s.cfg.ForceCollideIters,
		LinkDistance:      s.cfg.ForceLinkDistance,
	}
}

func (s *LayoutService) hierarchicalOptions(dir layout.Direction) layout.HierarchicalOptions {
	if dir == "" {
		dir = layout.LeftToRight
	}
	return layout.HierarchicalOptions{
		Direction:      dir,
		NodeSeparation: s.cfg.NodeSeparation,
		RankSeparation: s.cfg.RankSeparation,
		Margin:         s.cfg.LayoutMargin,
		DefaultSize:    valueobjects.Dimensions{Width: s.cfg.DefaultLayout.Width, Height: s.cfg.DefaultLayout.Height},
	}
}
