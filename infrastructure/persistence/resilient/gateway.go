// Package resilient decorates a ports.Gateway with a circuit breaker,
// tracing and call metrics.
package resilient

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"mindo/application/ports"
	"mindo/domain/core/entities"
	"mindo/domain/core/valueobjects"
	apperrors "mindo/pkg/errors"
	"mindo/pkg/observability"
)

// BreakerConfig holds configuration for the circuit breaker
type BreakerConfig struct {
	Name        string
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	// Trip when at least MinRequests were seen and this share failed
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns the breaker settings used for the remote store
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

// Gateway wraps another gateway. Domain outcomes such as not-found or
// conflict do not count as breaker failures.
type Gateway struct {
	next    ports.Gateway
	breaker *gobreaker.CircuitBreaker
	metrics ports.Metrics
	tracer  *observability.Tracer
	logger  *zap.Logger
}

// NewGateway creates the decorator. metrics and tracer may be nil.
func NewGateway(next ports.Gateway, cfg BreakerConfig, metrics ports.Metrics, tracer *observability.Tracer, logger *zap.Logger) *Gateway {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		IsSuccessful: isSuccessful,
	})

	return &Gateway{
		next:    next,
		breaker: breaker,
		metrics: metrics,
		tracer:  tracer,
		logger:  logger,
	}
}

// State exposes the breaker state for health reporting
func (g *Gateway) State() gobreaker.State {
	return g.breaker.State()
}

func isSuccessful(err error) bool {
	if err == nil {
		return true
	}
	return apperrors.IsNotFound(err) || apperrors.IsValidation(err) || apperrors.IsConflict(err) ||
		errors.Is(err, context.Canceled)
}

func (g *Gateway) call(ctx context.Context, operation string, fn func(context.Context) error) error {
	start := time.Now()
	_, err := g.breaker.Execute(func() (interface{}, error) {
		return nil, g.tracer.TraceFunction(ctx, "gateway."+operation, fn)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		g.logger.Warn("Gateway call rejected by circuit breaker",
			zap.String("operation", operation),
			zap.String("state", g.breaker.State().String()))
		err = apperrors.NewUnavailableError("gateway").WithCause(err)
	}
	g.metrics.ObserveGatewayCall(operation, time.Since(start), err)
	return err
}

// FetchNodes implements ports.NodeGateway
func (g *Gateway) FetchNodes(ctx context.Context, userID string) ([]*entities.Node, error) {
	var nodes []*entities.Node
	err := g.call(ctx, "FetchNodes", func(ctx context.Context) error {
		var err error
		nodes, err = g.next.FetchNodes(ctx, userID)
		return err
	})
	return nodes, err
}

// CreateNode implements ports.NodeGateway
func (g *Gateway) CreateNode(ctx context.Context, node *entities.Node) error {
	return g.call(ctx, "CreateNode", func(ctx context.Context) error {
		return g.next.CreateNode(ctx, node)
	})
}

// UpdateNode implements ports.NodeGateway
func (g *Gateway) UpdateNode(ctx context.Context, id valueobjects.NodeID, u ports.NodeUpdate) error {
	return g.call(ctx, "UpdateNode", func(ctx context.Context) error {
		return g.next.UpdateNode(ctx, id, u)
	})
}

// UpdateNodeData implements ports.NodeGateway
func (g *Gateway) UpdateNodeData(ctx context.Context, id valueobjects.NodeID, payload valueobjects.Payload) error {
	return g.call(ctx, "UpdateNodeData", func(ctx context.Context) error {
		return g.next.UpdateNodeData(ctx, id, payload)
	})
}

// UpdateNodeStyle implements ports.NodeGateway
func (g *Gateway) UpdateNodeStyle(ctx context.Context, id valueobjects.NodeID, dims valueobjects.Dimensions) error {
	return g.call(ctx, "UpdateNodeStyle", func(ctx context.Context) error {
		return g.next.UpdateNodeStyle(ctx, id, dims)
	})
}

// DeleteNode implements ports.NodeGateway
func (g *Gateway) DeleteNode(ctx context.Context, id valueobjects.NodeID) error {
	return g.call(ctx, "DeleteNode", func(ctx context.Context) error {
		return g.next.DeleteNode(ctx, id)
	})
}

// FetchEdges implements ports.EdgeGateway
func (g *Gateway) FetchEdges(ctx context.Context, userID string) ([]*entities.Edge, error) {
	var edges []*entities.Edge
	err := g.call(ctx, "FetchEdges", func(ctx context.Context) error {
		var err error
		edges, err = g.next.FetchEdges(ctx, userID)
		return err
	})
	return edges, err
}

// CreateEdge implements ports.EdgeGateway
func (g *Gateway) CreateEdge(ctx context.Context, userID string, edge *entities.Edge) error {
	return g.call(ctx, "CreateEdge", func(ctx context.Context) error {
		return g.next.CreateEdge(ctx, userID, edge)
	})
}

// UpdateEdge implements ports.EdgeGateway
func (g *Gateway) UpdateEdge(ctx context.Context, id valueobjects.EdgeID, u ports.EdgeUpdate) error {
	return g.call(ctx, "UpdateEdge", func(ctx context.Context) error {
		return g.next.UpdateEdge(ctx, id, u)
	})
}

// UpdateEdgeHandles implements ports.EdgeGateway
func (g *Gateway) UpdateEdgeHandles(ctx context.Context, id valueobjects.EdgeID, sourceHandle, targetHandle string) error {
	return g.call(ctx, "UpdateEdgeHandles", func(ctx context.Context) error {
		return g.next.UpdateEdgeHandles(ctx, id, sourceHandle, targetHandle)
	})
}

// DeleteEdge implements ports.EdgeGateway
func (g *Gateway) DeleteEdge(ctx context.Context, id valueobjects.EdgeID) error {
	return g.call(ctx, "DeleteEdge", func(ctx context.Context) error {
		return g.next.DeleteEdge(ctx, id)
	})
}

// CreateMemoryUnit implements ports.MemoryUnitGateway
func (g *Gateway) CreateMemoryUnit(ctx context.Context, userID string, nodeID valueobjects.NodeID, unit entities.MemoryUnit) error {
	return g.call(ctx, "CreateMemoryUnit", func(ctx context.Context) error {
		return g.next.CreateMemoryUnit(ctx, userID, nodeID, unit)
	})
}

// UpdateMemoryUnit implements ports.MemoryUnitGateway
func (g *Gateway) UpdateMemoryUnit(ctx context.Context, unit entities.MemoryUnit) error {
	return g.call(ctx, "UpdateMemoryUnit", func(ctx context.Context) error {
		return g.next.UpdateMemoryUnit(ctx, unit)
	})
}

// DeleteMemoryUnit implements ports.MemoryUnitGateway
func (g *Gateway) DeleteMemoryUnit(ctx context.Context, id valueobjects.MemoryUnitID) error {
	return g.call(ctx, "DeleteMemoryUnit", func(ctx context.Context) error {
		return g.next.DeleteMemoryUnit(ctx, id)
	})
}
