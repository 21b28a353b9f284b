package review

import (
	"time"

	"mindo/domain/core/entities"
)

// Grade is the learner's self-assessed recall quality
type Grade string

const (
	GradeFail Grade = "fail"
	GradeHard Grade = "hard"
	GradeGood Grade = "good"
	GradeEasy Grade = "easy"
)

// IsValid reports whether g is a known grade
func (g Grade) IsValid() bool {
	switch g {
	case GradeFail, GradeHard, GradeGood, GradeEasy:
		return true
	}
	return false
}

// Schedule is the outcome of grading a node
type Schedule struct {
	Status     entities.NodeStatus
	LastReview time.Time
	NextReview time.Time
	Interval   time.Duration
}

// Policy decides the next review of a node. Implementations must never move a
// node toward mastered on fail or hard, and repeated easy grades must reach
// mastered eventually.
type Policy interface {
	Next(now time.Time, node *entities.Node, grade Grade) Schedule
}

const day = 24 * time.Hour

// LadderPolicy grows the review interval geometrically: fail restarts after
// RelearnDelay, hard keeps the interval (never shorter than RelearnDelay), good doubles it and easy triples it.
// A node whose interval reaches MasteryInterval is mastered.
type LadderPolicy struct {
	MasteryInterval time.Duration
	RelearnDelay    time.Duration
}

// NewLadderPolicy creates a ladder policy
func NewLadderPolicy(mastery, relearn time.Duration) *LadderPolicy {
	return &LadderPolicy{MasteryInterval: mastery, RelearnDelay: relearn}
}

// Next implements Policy
func (p *LadderPolicy) Next(now time.Time, node *entities.Node, grade Grade) Schedule {
	prev := currentInterval(node)

	var interval time.Duration
	switch grade {
	case GradeFail:
		interval = p.RelearnDelay
	case GradeHard:
		interval = max(prev, p.RelearnDelay)
	case GradeGood:
		interval = max(prev*2, day)
	default:
		interval = max(prev*3, 2*day)
	}

	status := entities.StatusLearning
	if (grade == GradeGood || grade == GradeEasy) && interval >= p.MasteryInterval {
		status = entities.StatusMastered
	}

	return Schedule{
		Status:     status,
		LastReview: now,
		NextReview: now.Add(interval),
		Interval:   interval,
	}
}

// currentInterval recovers the last scheduled interval from the node's review
// timestamps
func currentInterval(node *entities.Node) time.Duration {
	if node.LastReview == nil || node.NextReview == nil {
		return 0
	}
	d := node.NextReview.Sub(*node.LastReview)
	if d < 0 {
		return 0
	}
	return d
}

// UnitStatusAfter moves a memory unit along new → learning → mastered. Only an
// easy grade on a unit already in learning masters it; fail and hard fall back
// to learning.
func UnitStatusAfter(current entities.UnitStatus, grade Grade) entities.UnitStatus {
	switch grade {
	case GradeFail, GradeHard:
		return entities.UnitStatusLearning
	case GradeGood:
		if current == entities.UnitStatusMastered {
			return current
		}
		return entities.UnitStatusLearning
	default:
		if current == entities.UnitStatusLearning || current == entities.UnitStatusMastered {
			return entities.UnitStatusMastered
		}
		return entities.UnitStatusLearning
	}
}
