package review

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"mindo/domain/core/entities"
	"mindo/domain/core/valueobjects"
)

const maxSegmentRunes = 280

// EdgeLabeler returns the label of an edge between a and b, in either direction
type EdgeLabeler func(a, b valueobjects.NodeID) (string, bool)

// BuildQuestions derives the recall prompts for a working set. Every memory
// unit becomes a fact question; a node without units gets one concept
// question. When labels is non-nil the nodes are treated as a walk and a
// connection question is added between adjacent nodes.
func BuildQuestions(nodes []*entities.Node, labels EdgeLabeler) []Question {
	var out []Question
	add := func(q Question) {
		q.ID = fmt.Sprintf("q%d", len(out)+1)
		out = append(out, q)
	}

	for i, n := range nodes {
		if len(n.MemoryUnits) == 0 {
			add(Question{
				Question:        fmt.Sprintf("Explain %q in your own words.", n.Label),
				RelatedNodeIDs:  []valueobjects.NodeID{n.ID},
				QuestionType:    QuestionConcept,
				RelevantSegment: excerpt(n.Content),
			})
		}
		for _, u := range n.MemoryUnits {
			add(Question{
				Question:        u.Question,
				RelatedNodeIDs:  []valueobjects.NodeID{n.ID},
				QuestionType:    QuestionFact,
				RelevantSegment: anchoredSegment(u, n.Content),
				MemoryUnitID:    u.ID,
			})
		}

		if labels == nil || i+1 >= len(nodes) {
			continue
		}
		next := nodes[i+1]
		label, ok := labels(n.ID, next.ID)
		if !ok {
			continue
		}
		add(Question{
			Question:        fmt.Sprintf("How does %q relate to %q?", n.Label, next.Label),
			RelatedNodeIDs:  []valueobjects.NodeID{n.ID, next.ID},
			QuestionType:    QuestionConnection,
			RelevantSegment: label,
		})
	}
	return out
}

// anchoredSegment is the unit's text segment, or "" once later edits have
// removed it from the content
func anchoredSegment(u entities.MemoryUnit, c valueobjects.Content) string {
	if !u.IsAnchored(c) {
		return ""
	}
	return u.TextSegment
}

func excerpt(c valueobjects.Content) string {
	var s string
	switch v := c.(type) {
	case valueobjects.TextContent:
		s = valueobjects.PlainText(v.HTML)
	case valueobjects.CodeContent:
		s = strings.TrimSpace(v.Code)
	default:
		return ""
	}
	if utf8.RuneCountInString(s) <= maxSegmentRunes {
		return s
	}
	r := []rune(s)
	return string(r[:maxSegmentRunes]) + "…"
}

// Select picks the working set for a mode from the canvas nodes, preserving
// canvas order (or the requested order for custom_cluster). Inbox nodes are
// never selected.
func Select(mode Mode, nodes []*entities.Node, tags []string, ids []valueobjects.NodeID) []*entities.Node {
	var out []*entities.Node
	switch mode {
	case ModeDaily:
		for _, n := range nodes {
			if n.Status == entities.StatusReviewDue {
				out = append(out, n)
			}
		}
	case ModeCustomTags:
		for _, n := range nodes {
			if !n.IsOnCanvas() {
				continue
			}
			for _, t := range tags {
				if n.HasTag(t) {
					out = append(out, n)
					break
				}
			}
		}
	case ModeCustomCluster, ModePath:
		byID := make(map[valueobjects.NodeID]*entities.Node, len(nodes))
		for _, n := range nodes {
			byID[n.ID] = n
		}
		seen := make(map[valueobjects.NodeID]struct{}, len(ids))
		for _, id := range ids {
			n, ok := byID[id]
			if !ok || !n.IsOnCanvas() {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, n)
		}
	}
	return out
}

// Walk returns a depth-first walk from start over neighbors, visiting at most
// limit nodes. skip excludes nodes from the walk.
func Walk(start valueobjects.NodeID, neighbors func(valueobjects.NodeID) []valueobjects.NodeID, skip func(valueobjects.NodeID) bool, limit int) []valueobjects.NodeID {
	if limit <= 0 || (skip != nil && skip(start)) {
		return nil
	}
	visited := map[valueobjects.NodeID]struct{}{start: {}}
	walk := []valueobjects.NodeID{start}
	stack := []valueobjects.NodeID{start}

	for len(stack) > 0 && len(walk) < limit {
		top := stack[len(stack)-1]
		advanced := false
		for _, next := range neighbors(top) {
			if _, ok := visited[next]; ok {
				continue
			}
			if skip != nil && skip(next) {
				continue
			}
			visited[next] = struct{}{}
			walk = append(walk, next)
			stack = append(stack, next)
			advanced = true
			break
		}
		if !advanced {
			stack = stack[:len(stack)-1]
		}
	}
	return walk
}
