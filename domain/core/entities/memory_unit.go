package entities

import (
	"strings"

	"mindo/domain/core/valueobjects"
	pkgerrors "mindo/pkg/errors"
)

// UnitStatus is the learning state of a single memory unit
type UnitStatus string

const (
	UnitStatusNew      UnitStatus = "new"
	UnitStatusLearning UnitStatus = "learning"
	UnitStatusMastered UnitStatus = "mastered"
)

// IsValid reports whether s is a known unit status
func (s UnitStatus) IsValid() bool {
	return s == UnitStatusNew || s == UnitStatusLearning || s == UnitStatusMastered
}

// Initial scheduling values stored with every new unit row.
const (
	DefaultEaseFactor = 2.5
	DefaultInterval   = 0
)

// MemoryUnit is a flashcard anchored to a span of its node's content.
// Anchoring is a literal substring match, so later edits to the content can
// silently orphan TextSegment.
type MemoryUnit struct {
	ID          valueobjects.MemoryUnitID
	Question    string
	Answer      string
	TextSegment string
	Status      UnitStatus
}

// NewMemoryUnit validates a unit against the content it will be anchored in
func NewMemoryUnit(question, answer, segment string, content valueobjects.Content) (MemoryUnit, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return MemoryUnit{}, pkgerrors.NewValidationError("question cannot be empty")
	}
	if err := CheckAnchor(segment, content); err != nil {
		return MemoryUnit{}, err
	}
	return MemoryUnit{
		ID:          valueobjects.NewMemoryUnitID(),
		Question:    question,
		Answer:      strings.TrimSpace(answer),
		TextSegment: segment,
		Status:      UnitStatusNew,
	}, nil
}

// CheckAnchor verifies that a non-empty segment occurs verbatim in content
func CheckAnchor(segment string, content valueobjects.Content) error {
	if segment == "" {
		return nil
	}
	if content == nil || !strings.Contains(content.SearchableText(), segment) {
		return pkgerrors.NewValidationError("text segment does not occur in node content")
	}
	return nil
}

// IsAnchored reports whether the segment still matches content
func (u MemoryUnit) IsAnchored(content valueobjects.Content) bool {
	return u.TextSegment == "" || (content != nil && strings.Contains(content.SearchableText(), u.TextSegment))
}

// MemoryUnitPatch is a partial update of a memory unit
type MemoryUnitPatch struct {
	Question    *string
	Answer      *string
	TextSegment *string
	Status      *UnitStatus
}

// IsEmpty reports whether the patch sets nothing
func (p MemoryUnitPatch) IsEmpty() bool {
	return p.Question == nil && p.Answer == nil && p.TextSegment == nil && p.Status == nil
}

// Apply returns u with the patch applied
func (p MemoryUnitPatch) Apply(u MemoryUnit) MemoryUnit {
	if p.Question != nil {
		u.Question = strings.TrimSpace(*p.Question)
	}
	if p.Answer != nil {
		u.Answer = strings.TrimSpace(*p.Answer)
	}
	if p.TextSegment != nil {
		u.TextSegment = *p.TextSegment
	}
	if p.Status != nil {
		u.Status = *p.Status
	}
	return u
}
