package review

import (
	"time"

	"mindo/domain/core/valueobjects"
)

// Mode chooses how the working set of a session is selected
type Mode string

const (
	ModeDaily         Mode = "daily"
	ModeCustomTags    Mode = "custom_tags"
	ModeCustomCluster Mode = "custom_cluster"
	ModePath          Mode = "path"
)

// IsValid reports whether m is a known mode
func (m Mode) IsValid() bool {
	switch m {
	case ModeDaily, ModeCustomTags, ModeCustomCluster, ModePath:
		return true
	}
	return false
}

// QuestionType classifies a recall prompt
type QuestionType string

const (
	QuestionConcept    QuestionType = "concept"
	QuestionFact       QuestionType = "fact"
	QuestionConnection QuestionType = "connection"
)

// Question is a single recall prompt
type Question struct {
	ID              string                    `json:"id"`
	Question        string                    `json:"question"`
	RelatedNodeIDs  []valueobjects.NodeID     `json:"relatedNodeIds"`
	QuestionType    QuestionType              `json:"questionType"`
	RelevantSegment string                    `json:"relevantSegment"`
	MemoryUnitID    valueobjects.MemoryUnitID `json:"memoryUnitId,omitempty"`
}

// Session is an in-progress review
type Session struct {
	ID                 string                     `json:"id"`
	Mode               Mode                       `json:"mode"`
	Tags               []string                   `json:"tags,omitempty"`
	NodeIDs            []valueobjects.NodeID      `json:"nodeIds"`
	Questions          []Question                 `json:"questions"`
	CurrentIndex       int                        `json:"currentIndex"`
	StartedAt          time.Time                  `json:"startedAt"`
	PathNodes          []valueobjects.NodeID      `json:"pathNodes,omitempty"`
	ActiveMemoryUnitID *valueobjects.MemoryUnitID `json:"activeMemoryUnitId"`
}

// Current returns the question under the cursor
func (s *Session) Current() (Question, bool) {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Questions) {
		return Question{}, false
	}
	return s.Questions[s.CurrentIndex], true
}

// Contains reports whether id is part of the working set
func (s *Session) Contains(id valueobjects.NodeID) bool {
	for _, n := range s.NodeIDs {
		if n == id {
			return true
		}
	}
	return false
}

func (s *Session) syncActiveUnit() {
	s.ActiveMemoryUnitID = nil
	if q, ok := s.Current(); ok && q.MemoryUnitID != "" {
		id := q.MemoryUnitID
		s.ActiveMemoryUnitID = &id
	}
}

// Clone returns a deep copy
func (s *Session) Clone() *Session {
	c := *s
	c.Tags = append([]string(nil), s.Tags...)
	c.NodeIDs = append([]valueobjects.NodeID(nil), s.NodeIDs...)
	c.PathNodes = append([]valueobjects.NodeID(nil), s.PathNodes...)
	c.Questions = make([]Question, len(s.Questions))
	for i, q := range s.Questions {
		q.RelatedNodeIDs = append([]valueobjects.NodeID(nil), q.RelatedNodeIDs...)
		c.Questions[i] = q
	}
	if s.ActiveMemoryUnitID != nil {
		id := *s.ActiveMemoryUnitID
		c.ActiveMemoryUnitID = &id
	}
	return &c
}
