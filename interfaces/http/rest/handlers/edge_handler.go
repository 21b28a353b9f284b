package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"mindo/application/services"
	"mindo/domain/core/entities"
	"mindo/domain/core/valueobjects"
	"mindo/pkg/common"
	"mindo/pkg/errors"
)

// EdgeHandler handles edge-related HTTP requests
type EdgeHandler struct {
	base
}

// NewEdgeHandler creates a new edge handler
func NewEdgeHandler(workspaces *services.Workspaces, errs *errors.ErrorHandler, logger *zap.Logger) *EdgeHandler {
	return &EdgeHandler{base: base{workspaces: workspaces, errs: errs, logger: logger}}
}

// ConnectRequest is a drag between two node handles. With a Label the edge
// is created solid right away.
type ConnectRequest struct {
	Source       valueobjects.NodeID `json:"source" validate:"required"`
	Target       valueobjects.NodeID `json:"target" validate:"required"`
	SourceHandle string              `json:"sourceHandle,omitempty"`
	TargetHandle string              `json:"targetHandle,omitempty"`
	Label        string              `json:"label,omitempty" validate:"max=200"`
}

// SolidifyRequest names a tentative edge
type SolidifyRequest struct {
	Label string `json:"label" validate:"required,max=200"`
}

// HandlesRequest re-anchors an edge on its nodes
type HandlesRequest struct {
	SourceHandle string `json:"sourceHandle"`
	TargetHandle string `json:"targetHandle"`
}

// CreateEdge handles POST /edges
func (h *EdgeHandler) CreateEdge(w http.ResponseWriter, r *http.Request) {
	var req ConnectRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	state, err := h.state(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var id valueobjects.EdgeID
	if req.Label != "" {
		id, err = state.CreateSolidEdge(req.Source, req.Target, req.Label)
	} else {
		id, err = state.Connect(entities.Connection{
			Source:       req.Source,
			Target:       req.Target,
			SourceHandle: req.SourceHandle,
			TargetHandle: req.TargetHandle,
		})
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, IDResponse{ID: id.String()})
}

// SolidifyEdge handles POST /edges/{edgeID}/solidify
func (h *EdgeHandler) SolidifyEdge(w http.ResponseWriter, r *http.Request) {
	id, err := edgeParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req SolidifyRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	state, err := h.state(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := state.SolidifyEdge(id, req.Label); err != nil {
		h.fail(w, r, err)
		return
	}
	common.RespondNoContent(w)
}

// CancelEdge handles POST /edges/{edgeID}/cancel, dropping a tentative edge
func (h *EdgeHandler) CancelEdge(w http.ResponseWriter, r *http.Request) {
	id, err := edgeParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	state, err := h.state(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := state.CancelEdge(id); err != nil {
		h.fail(w, r, err)
		return
	}
	common.RespondNoContent(w)
}

// UpdateEdge handles PUT /edges/{edgeID}, reconnecting an edge
func (h *EdgeHandler) UpdateEdge(w http.ResponseWriter, r *http.Request) {
	id, err := edgeParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req ConnectRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	state, err := h.state(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	err = state.UpdateEdge(id, entities.Connection{
		Source:       req.Source,
		Target:       req.Target,
		SourceHandle: req.SourceHandle,
		TargetHandle: req.TargetHandle,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	common.RespondNoContent(w)
}

// UpdateHandles handles PUT /edges/{edgeID}/handles
func (h *EdgeHandler) UpdateHandles(w http.ResponseWriter, r *http.Request) {
	id, err := edgeParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req HandlesRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	state, err := h.state(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := state.UpdateEdgeHandles(id, req.SourceHandle, req.TargetHandle); err != nil {
		h.fail(w, r, err)
		return
	}
	common.RespondNoContent(w)
}

// DeleteEdge handles DELETE /edges/{edgeID}
func (h *EdgeHandler) DeleteEdge(w http.ResponseWriter, r *http.Request) {
	id, err := edgeParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	state, err := h.state(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := state.DeleteEdge(id); err != nil {
		h.fail(w, r, err)
		return
	}
	common.RespondNoContent(w)
}
