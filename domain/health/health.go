// Package health classifies how urgently a node needs attention based on its
// age, review history and connectivity.
package health

import (
	"time"

	"mindo/domain/config"
	"mindo/domain/core/entities"
)

// Status is the health classification of a node
type Status string

const (
	Radiant   Status = "radiant"
	Isolated  Status = "isolated"
	Dimmed    Status = "dimmed"
	Petrified Status = "petrified"
	Mastered  Status = "mastered"
)

// Thresholds are the time windows used by Classify
type Thresholds struct {
	// NewNodeGrace keeps freshly created nodes radiant regardless of connections.
	NewNodeGrace time.Duration
	// ReviewDecay is how long after the last review a node petrifies.
	ReviewDecay time.Duration
	// UnreviewedDecay is how long a never-reviewed, connected node lasts.
	UnreviewedDecay time.Duration
}

// DefaultThresholds returns 24h grace, 7 day review decay and 168h unreviewed decay
func DefaultThresholds() Thresholds {
	return Thresholds{
		NewNodeGrace:    24 * time.Hour,
		ReviewDecay:     7 * 24 * time.Hour,
		UnreviewedDecay: 168 * time.Hour,
	}
}

// ThresholdsFromConfig reads the decay windows from the domain configuration
func ThresholdsFromConfig(cfg *config.DomainConfig) Thresholds {
	return Thresholds{
		NewNodeGrace:    cfg.NewNodeGrace,
		ReviewDecay:     cfg.ReviewDecay,
		UnreviewedDecay: cfg.UnreviewedDecay,
	}
}

// Classify maps a node snapshot to its health. The first matching rule wins:
// mastered, radiant, isolated, petrified, dimmed. connections is the number of
// edges touching the node and is supplied by the caller.
func (t Thresholds) Classify(now time.Time, node *entities.Node, connections int) Status {
	if node.Status == entities.StatusMastered || node.AllUnitsMastered() {
		return Mastered
	}

	age := now.Sub(node.CreatedAt)
	if age < t.NewNodeGrace {
		return Radiant
	}

	if connections == 0 {
		return Isolated
	}

	if node.LastReview != nil {
		if now.Sub(*node.LastReview) > t.ReviewDecay {
			return Petrified
		}
	} else if age > t.UnreviewedDecay {
		return Petrified
	}

	return Dimmed
}

// Classify uses DefaultThresholds
func Classify(now time.Time, node *entities.Node, connections int) Status {
	return DefaultThresholds().Classify(now, node, connections)
}

// NeedsReview reports whether the status should surface in a daily review
func (s Status) NeedsReview() bool {
	return s == Petrified
}
