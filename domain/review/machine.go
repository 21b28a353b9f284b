package review

import (
	"mindo/domain/core/valueobjects"
	"mindo/pkg/errors"
)

// Phase is the state of a learner's review flow
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseSelecting Phase = "selecting"
	PhaseInSession Phase = "in_session"
)

// Machine drives idle → selecting → in_session → idle. It is not safe for
// concurrent use; callers serialize access.
type Machine struct {
	phase   Phase
	draft   []valueobjects.NodeID
	session *Session
}

// NewMachine returns an idle machine
func NewMachine() *Machine {
	return &Machine{phase: PhaseIdle}
}

// Phase returns the current phase
func (m *Machine) Phase() Phase {
	return m.phase
}

// Draft returns a copy of the selection draft
func (m *Machine) Draft() []valueobjects.NodeID {
	return append([]valueobjects.NodeID{}, m.draft...)
}

// Session returns the active session, or nil
func (m *Machine) Session() *Session {
	return m.session
}

// StartSelection enters manual selection with an empty draft
func (m *Machine) StartSelection() error {
	if m.phase == PhaseInSession {
		return errors.NewConflictError("a review session is already running")
	}
	m.phase = PhaseSelecting
	m.draft = nil
	return nil
}

// ToggleDraft adds id to the draft, or removes it when already present
func (m *Machine) ToggleDraft(id valueobjects.NodeID) error {
	if m.phase != PhaseSelecting {
		return errors.NewConflictError("not selecting nodes for review")
	}
	for i, d := range m.draft {
		if d == id {
			m.draft = append(m.draft[:i], m.draft[i+1:]...)
			return nil
		}
	}
	m.draft = append(m.draft, id)
	return nil
}

// ConfirmSelection returns the drafted ids. An empty draft is rejected and the
// machine stays in selection.
func (m *Machine) ConfirmSelection() ([]valueobjects.NodeID, error) {
	if m.phase != PhaseSelecting {
		return nil, errors.NewConflictError("not selecting nodes for review")
	}
	if len(m.draft) == 0 {
		return nil, errors.NewValidationError("select at least one node to review")
	}
	return m.Draft(), nil
}

// CancelSelection drops the draft and returns to idle
func (m *Machine) CancelSelection() {
	if m.phase == PhaseSelecting {
		m.phase = PhaseIdle
	}
	m.draft = nil
}

// Begin starts a session from idle or selecting
func (m *Machine) Begin(s *Session) error {
	if m.phase == PhaseInSession {
		return errors.NewConflictError("a review session is already running")
	}
	if s == nil || len(s.Questions) == 0 {
		return errors.NewValidationError("nothing to review")
	}
	s.CurrentIndex = 0
	s.syncActiveUnit()
	m.session = s
	m.draft = nil
	m.phase = PhaseInSession
	return nil
}

// Next advances the cursor. Moving past the last question ends the session and
// reports true.
func (m *Machine) Next() (bool, error) {
	if m.session == nil {
		return false, errors.NewConflictError("no active review session")
	}
	if m.session.CurrentIndex+1 >= len(m.session.Questions) {
		m.End()
		return true, nil
	}
	m.session.CurrentIndex++
	m.session.syncActiveUnit()
	return false, nil
}

// Prev moves the cursor back, stopping at the first question
func (m *Machine) Prev() error {
	if m.session == nil {
		return errors.NewConflictError("no active review session")
	}
	if m.session.CurrentIndex > 0 {
		m.session.CurrentIndex--
		m.session.syncActiveUnit()
	}
	return nil
}

// End clears the session and returns to idle
func (m *Machine) End() {
	m.session = nil
	m.draft = nil
	m.phase = PhaseIdle
}
