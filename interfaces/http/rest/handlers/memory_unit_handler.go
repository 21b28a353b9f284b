package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"mindo/application/services"
	"mindo/domain/core/entities"
	"mindo/pkg/common"
	"mindo/pkg/errors"
)

// MemoryUnitHandler handles the question/answer pairs anchored in a node
type MemoryUnitHandler struct {
	base
}

// NewMemoryUnitHandler creates a new memory unit handler
func NewMemoryUnitHandler(workspaces *services.Workspaces, errs *errors.ErrorHandler, logger *zap.Logger) *MemoryUnitHandler {
	return &MemoryUnitHandler{base: base{workspaces: workspaces, errs: errs, logger: logger}}
}

// CreateMemoryUnitRequest represents the request body for a new unit
type CreateMemoryUnitRequest struct {
	Question    string `json:"question" validate:"required,max=1000"`
	Answer      string `json:"answer" validate:"max=5000"`
	TextSegment string `json:"textSegment" validate:"required"`
}

// UpdateMemoryUnitRequest represents a partial unit edit
type UpdateMemoryUnitRequest struct {
	Question    *string              `json:"question,omitempty" validate:"omitempty,max=1000"`
	Answer      *string              `json:"answer,omitempty" validate:"omitempty,max=5000"`
	TextSegment *string              `json:"textSegment,omitempty"`
	Status      *entities.UnitStatus `json:"status,omitempty" validate:"omitempty,oneof=new learning mastered"`
}

// CreateMemoryUnit handles POST /nodes/{nodeID}/memory-units
func (h *MemoryUnitHandler) CreateMemoryUnit(w http.ResponseWriter, r *http.Request) {
	nodeID, err := nodeParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req CreateMemoryUnitRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	state, err := h.state(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	id, err := state.AddMemoryUnit(nodeID, req.Question, req.Answer, req.TextSegment)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, IDResponse{ID: id.String()})
}

// UpdateMemoryUnit handles PATCH /nodes/{nodeID}/memory-units/{unitID}
func (h *MemoryUnitHandler) UpdateMemoryUnit(w http.ResponseWriter, r *http.Request) {
	nodeID, err := nodeParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	unitID, err := unitParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req UpdateMemoryUnitRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	state, err := h.state(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	patch := entities.MemoryUnitPatch{
		Question:    req.Question,
		Answer:      req.Answer,
		TextSegment: req.TextSegment,
		Status:      req.Status,
	}
	if err := state.UpdateMemoryUnit(nodeID, unitID, patch); err != nil {
		h.fail(w, r, err)
		return
	}
	common.RespondNoContent(w)
}

// DeleteMemoryUnit handles DELETE /nodes/{nodeID}/memory-units/{unitID}
func (h *MemoryUnitHandler) DeleteMemoryUnit(w http.ResponseWriter, r *http.Request) {
	nodeID, err := nodeParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	unitID, err := unitParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	state, err := h.state(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := state.DeleteMemoryUnit(nodeID, unitID); err != nil {
		h.fail(w, r, err)
		return
	}
	common.RespondNoContent(w)
}
