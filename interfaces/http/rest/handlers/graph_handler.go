package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"mindo/application/services"
	"mindo/pkg/common"
	"mindo/pkg/errors"
)

// GraphHandler serves the canvas as a whole
type GraphHandler struct {
	base
	layout *services.LayoutService
	now    func() time.Time
}

// NewGraphHandler creates a new graph handler
func NewGraphHandler(workspaces *services.Workspaces, layout *services.LayoutService, errs *errors.ErrorHandler, logger *zap.Logger) *GraphHandler {
	return &GraphHandler{
		base:   base{workspaces: workspaces, errs: errs, logger: logger},
		layout: layout,
		now:    time.Now,
	}
}

// GetGraph handles GET /graph
func (h *GraphHandler) GetGraph(w http.ResponseWriter, r *http.Request) {
	state, err := h.state(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	nodes, edges := state.Snapshot()
	common.RespondJSON(w, http.StatusOK, toGraphResponse(nodes, edges, state.Health(h.now())))
}

// ReloadGraph handles POST /graph/reload. The local graph is replaced by
// the remote one.
func (h *GraphHandler) ReloadGraph(w http.ResponseWriter, r *http.Request) {
	state, err := h.state(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := state.LoadGraph(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	nodes, edges := state.Snapshot()
	common.RespondJSON(w, http.StatusOK, toGraphResponse(nodes, edges, state.Health(h.now())))
}

// MarkDue handles POST /graph/due
func (h *GraphHandler) MarkDue(w http.ResponseWriter, r *http.Request) {
	state, err := h.state(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ids := state.MarkDue(h.now())
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	common.RespondJSON(w, http.StatusOK, map[string]interface{}{"nodeIds": out})
}

// Organize handles POST /graph/organize
func (h *GraphHandler) Organize(w http.ResponseWriter, r *http.Request) {
	userID, err := h.userID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req services.LayoutRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	summary, err := h.layout.Organize(r.Context(), userID, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, summary)
}
