package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"mindo/domain/analytics"
	"mindo/domain/config"
	"mindo/domain/health"
)

// Dashboard bundles every learner statistic shown on the analytics page
type Dashboard struct {
	Metrics analytics.UserMetrics      `json:"metrics"`
	Obesity analytics.ObesityLevel     `json:"obesity"`
	Radar   []analytics.RadarDataPoint `json:"radar"`
}

// ActivitySource supplies review history for a learner
type ActivitySource interface {
	Activity(userID string) ([]time.Time, []analytics.Span)
}

// AnalyticsService derives dashboards from the live graph state
type AnalyticsService struct {
	workspaces *Workspaces
	activity   ActivitySource
	cfg        *config.DomainConfig
	logger     *zap.Logger
	now        func() time.Time
}

// NewAnalyticsService creates an analytics service
func NewAnalyticsService(workspaces *Workspaces, activity ActivitySource, cfg *config.DomainConfig, logger *zap.Logger) *AnalyticsService {
	return &AnalyticsService{
		workspaces: workspaces,
		activity:   activity,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// Dashboard computes the current statistics of userID
func (s *AnalyticsService) Dashboard(ctx context.Context, userID string) (*Dashboard, error) {
	state, err := s.workspaces.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	nodes, edges := state.Snapshot()

	var reviews []time.Time
	var spans []analytics.Span
	if s.activity != nil {
		reviews, spans = s.activity.Activity(userID)
	}

	return &Dashboard{
		Metrics: analytics.Compute(analytics.Input{
			Now:     s.now(),
			Nodes:   nodes,
			Edges:   edges,
			Reviews: reviews,
			Spans:   spans,
			Health:  health.ThresholdsFromConfig(s.cfg),
		}),
		Obesity: analytics.Obesity(nodes),
		Radar:   analytics.Radar(nodes),
	}, nil
}
