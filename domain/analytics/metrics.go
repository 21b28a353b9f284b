// Package analytics derives learner-facing statistics from a graph snapshot.
package analytics

import (
	"math"
	"sort"
	"strings"
	"time"

	"mindo/domain/core/entities"
	"mindo/domain/health"
)

// UserMetrics is the dashboard summary of a learner's graph
type UserMetrics struct {
	ConfidenceScore  float64 `json:"confidenceScore"`
	KnowledgeEntropy float64 `json:"knowledgeEntropy"`
	SynapticVelocity float64 `json:"synapticVelocity"`
	StreakDays       int     `json:"streakDays"`
	TotalNodes       int     `json:"totalNodes"`
	TotalConnections int     `json:"totalConnections"`
	HoursThisWeek    float64 `json:"hoursThisWeek"`
}

// ObesityLevel describes how much unprocessed material sits in the graph
type ObesityLevel string

const (
	ObesityHealthy  ObesityLevel = "healthy"
	ObesityWarning  ObesityLevel = "warning"
	ObesityCritical ObesityLevel = "critical"
)

// RadarDataPoint is one axis of the mastery radar chart
type RadarDataPoint struct {
	Subject  string  `json:"subject"`
	A        float64 `json:"A"`
	FullMark float64 `json:"fullMark"`
}

// Span is a completed review session
type Span struct {
	Start time.Time
	End   time.Time
}

// Input is everything the metrics are computed from
type Input struct {
	Now     time.Time
	Nodes   []*entities.Node
	Edges   []*entities.Edge
	Reviews []time.Time
	Spans   []Span
	Health  health.Thresholds
}

const (
	week        = 7 * 24 * time.Hour
	radarAxes   = 6
	obesityWarn = 0.3
	obesityCrit = 0.6
)

var statusScore = map[entities.NodeStatus]float64{
	entities.StatusMastered:  100,
	entities.StatusLearning:  60,
	entities.StatusReviewDue: 30,
	entities.StatusNew:       10,
}

// Compute builds UserMetrics. Inbox nodes are counted in TotalNodes only.
func Compute(in Input) UserMetrics {
	m := UserMetrics{
		TotalNodes:       len(in.Nodes),
		TotalConnections: len(in.Edges),
	}

	conns := make(map[string]int, len(in.Nodes))
	for _, e := range in.Edges {
		conns[e.Source.String()]++
		conns[e.Target.String()]++
	}

	var scoreSum float64
	var onCanvas, decayed int
	for _, n := range in.Nodes {
		if !n.IsOnCanvas() {
			continue
		}
		onCanvas++
		scoreSum += statusScore[n.Status]
		switch in.Health.Classify(in.Now, n, conns[n.ID.String()]) {
		case health.Isolated, health.Petrified:
			decayed++
		}
	}
	if onCanvas > 0 {
		m.ConfidenceScore = round1(scoreSum / float64(onCanvas))
		m.KnowledgeEntropy = round1(float64(decayed) / float64(onCanvas) * 100)
	}

	solidThisWeek := 0
	for _, e := range in.Edges {
		if !e.IsTentative && in.Now.Sub(e.CreatedAt) <= week {
			solidThisWeek++
		}
	}
	m.SynapticVelocity = round1(float64(solidThisWeek) / 7)

	reviews := append([]time.Time(nil), in.Reviews...)
	for _, n := range in.Nodes {
		if n.LastReview != nil {
			reviews = append(reviews, *n.LastReview)
		}
	}
	m.StreakDays = Streak(in.Now, reviews)

	var hours float64
	for _, s := range in.Spans {
		if in.Now.Sub(s.End) <= week && s.End.After(s.Start) {
			hours += s.End.Sub(s.Start).Hours()
		}
	}
	m.HoursThisWeek = round1(hours)
	return m
}

// Streak counts consecutive calendar days with at least one review, ending
// today or yesterday
func Streak(now time.Time, reviews []time.Time) int {
	days := make(map[string]struct{}, len(reviews))
	for _, r := range reviews {
		days[r.In(now.Location()).Format(time.DateOnly)] = struct{}{}
	}
	day := now
	if _, ok := days[day.Format(time.DateOnly)]; !ok {
		day = day.AddDate(0, 0, -1)
	}
	streak := 0
	for {
		if _, ok := days[day.Format(time.DateOnly)]; !ok {
			return streak
		}
		streak++
		day = day.AddDate(0, 0, -1)
	}
}

// Obesity rates the share of nodes that were captured but never worked on
func Obesity(nodes []*entities.Node) ObesityLevel {
	if len(nodes) == 0 {
		return ObesityHealthy
	}
	idle := 0
	for _, n := range nodes {
		if n.Status == entities.StatusInbox || n.Status == entities.StatusNew {
			idle++
		}
	}
	ratio := float64(idle) / float64(len(nodes))
	switch {
	case ratio < obesityWarn:
		return ObesityHealthy
	case ratio < obesityCrit:
		return ObesityWarning
	default:
		return ObesityCritical
	}
}

// Radar returns mastery percentages for the most used tags
func Radar(nodes []*entities.Node) []RadarDataPoint {
	type tally struct {
		name     string
		total    int
		mastered int
	}
	byTag := make(map[string]*tally)
	for _, n := range nodes {
		if !n.IsOnCanvas() {
			continue
		}
		seen := make(map[string]struct{}, len(n.Tags))
		for _, t := range n.Tags {
			key := strings.ToLower(t)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			tl, ok := byTag[key]
			if !ok {
				tl = &tally{name: t}
				byTag[key] = tl
			}
			tl.total++
			if n.Status == entities.StatusMastered || n.AllUnitsMastered() {
				tl.mastered++
			}
		}
	}

	tallies := make([]*tally, 0, len(byTag))
	for _, t := range byTag {
		tallies = append(tallies, t)
	}
	sort.Slice(tallies, func(i, j int) bool {
		if tallies[i].total != tallies[j].total {
			return tallies[i].total > tallies[j].total
		}
		return tallies[i].name < tallies[j].name
	})
	if len(tallies) > radarAxes {
		tallies = tallies[:radarAxes]
	}

	out := make([]RadarDataPoint, 0, len(tallies))
	for _, t := range tallies {
		out = append(out, RadarDataPoint{
			Subject:  t.name,
			A:        round1(float64(t.mastered) / float64(t.total) * 100),
			FullMark: 100,
		})
	}
	return out
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
