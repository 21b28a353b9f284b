package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"mindo/application/services"
	"mindo/domain/core/entities"
	"mindo/domain/core/valueobjects"
	"mindo/pkg/common"
	"mindo/pkg/errors"
)

// NodeHandler handles node-related HTTP requests
type NodeHandler struct {
	base
	assets *services.AssetService
	now    func() time.Time
}

// NewNodeHandler creates a new node handler
func NewNodeHandler(workspaces *services.Workspaces, assets *services.AssetService, errs *errors.ErrorHandler, logger *zap.Logger) *NodeHandler {
	return &NodeHandler{
		base:   base{workspaces: workspaces, errs: errs, logger: logger},
		assets: assets,
		now:    time.Now,
	}
}

// CreateNodeRequest represents the request body for creating a node
type CreateNodeRequest struct {
	Label           string                    `json:"label" validate:"max=200"`
	Type            valueobjects.NodeType     `json:"type,omitempty" validate:"omitempty,oneof=text code video image pdf"`
	ParentID        valueobjects.NodeID       `json:"parentId,omitempty"`
	Status          entities.NodeStatus       `json:"status,omitempty" validate:"omitempty,oneof=new learning review_due mastered inbox"`
	ConnectionLabel string                    `json:"connectionLabel,omitempty" validate:"max=200"`
	Tags            []string                  `json:"tags,omitempty" validate:"omitempty,max=20,dive,max=50"`
	Data            valueobjects.ContentPatch `json:"data"`
}

// UpdateNodeRequest represents the request body for updating a node
type UpdateNodeRequest struct {
	Label  *string                   `json:"label,omitempty" validate:"omitempty,max=200"`
	Status *entities.NodeStatus      `json:"status,omitempty" validate:"omitempty,oneof=new learning review_due mastered inbox"`
	Tags   *[]string                 `json:"tags,omitempty" validate:"omitempty,max=20,dive,max=50"`
	Data   valueobjects.ContentPatch `json:"data"`
}

// PositionRequest moves a node
type PositionRequest struct {
	X *float64 `json:"x" validate:"required"`
	Y *float64 `json:"y" validate:"required"`
}

// ResizeRequest sets the rendered size of a node
type ResizeRequest struct {
	Width  float64 `json:"width" validate:"gt=0"`
	Height float64 `json:"height" validate:"gt=0"`
}

// BulkDeleteRequest lists nodes to delete together
type BulkDeleteRequest struct {
	NodeIDs []valueobjects.NodeID `json:"nodeIds" validate:"required,min=1,max=500,dive,required"`
}

// CreateNode handles POST /nodes
func (h *NodeHandler) CreateNode(w http.ResponseWriter, r *http.Request) {
	var req CreateNodeRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	state, err := h.state(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	id, err := state.AddNode(services.AddNodeParams{
		Label:           req.Label,
		Type:            req.Type,
		ParentID:        req.ParentID,
		Status:          req.Status,
		ConnectionLabel: req.ConnectionLabel,
		Tags:            req.Tags,
		Initial:         req.Data,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, IDResponse{ID: id.String()})
}

// GetNode handles GET /nodes/{nodeID}
func (h *NodeHandler) GetNode(w http.ResponseWriter, r *http.Request) {
	id, err := nodeParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	state, err := h.state(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	node, ok := state.Node(id)
	if !ok {
		h.fail(w, r, errors.NewNotFoundError("node"))
		return
	}
	common.RespondJSON(w, http.StatusOK, toNodeResponse(node, state.Health(h.now())[id]))
}

// UpdateNode handles PATCH /nodes/{nodeID}
func (h *NodeHandler) UpdateNode(w http.ResponseWriter, r *http.Request) {
	id, err := nodeParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req UpdateNodeRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	state, err := h.state(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	patch := services.NodePatch{Label: req.Label, Status: req.Status, Tags: req.Tags, Content: req.Data}
	if err := state.UpdateNode(id, patch); err != nil {
		h.fail(w, r, err)
		return
	}
	common.RespondNoContent(w)
}

// MoveNode handles PUT /nodes/{nodeID}/position
func (h *NodeHandler) MoveNode(w http.ResponseWriter, r *http.Request) {
	id, err := nodeParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req PositionRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	state, err := h.state(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := state.UpdateNodePosition(id, valueobjects.Position{X: *req.X, Y: *req.Y}); err != nil {
		h.fail(w, r, err)
		return
	}
	common.RespondNoContent(w)
}

// ResizeNode handles PUT /nodes/{nodeID}/dimensions
func (h *NodeHandler) ResizeNode(w http.ResponseWriter, r *http.Request) {
	id, err := nodeParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req ResizeRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	state, err := h.state(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := state.ResizeNode(id, valueobjects.Dimensions{Width: req.Width, Height: req.Height}); err != nil {
		h.fail(w, r, err)
		return
	}
	common.RespondNoContent(w)
}

// ActivateNode handles POST /nodes/{nodeID}/activate, moving an inbox node
// onto the canvas
func (h *NodeHandler) ActivateNode(w http.ResponseWriter, r *http.Request) {
	id, err := nodeParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req PositionRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	state, err := h.state(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := state.ActivateNodeFromInbox(id, valueobjects.Position{X: *req.X, Y: *req.Y}); err != nil {
		h.fail(w, r, err)
		return
	}
	common.RespondNoContent(w)
}

// UnlockNode handles POST /nodes/{nodeID}/unlock
func (h *NodeHandler) UnlockNode(w http.ResponseWriter, r *http.Request) {
	id, err := nodeParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	state, err := h.state(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := state.UnlockNodeContent(id); err != nil {
		h.fail(w, r, err)
		return
	}
	common.RespondNoContent(w)
}

// DeleteNode handles DELETE /nodes/{nodeID}
func (h *NodeHandler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	id, err := nodeParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	state, err := h.state(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := state.DeleteNode(id); err != nil {
		h.fail(w, r, err)
		return
	}
	common.RespondNoContent(w)
}

// BulkDeleteNodes handles POST /nodes/bulk-delete
func (h *NodeHandler) BulkDeleteNodes(w http.ResponseWriter, r *http.Request) {
	var req BulkDeleteRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	state, err := h.state(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := state.DeleteNodes(req.NodeIDs); err != nil {
		h.fail(w, r, err)
		return
	}
	common.RespondNoContent(w)
}

// UploadMedia handles POST /nodes/{nodeID}/media as multipart/form-data
// with a single "file" part
func (h *NodeHandler) UploadMedia(w http.ResponseWriter, r *http.Request) {
	id, err := nodeParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	userID, err := h.userID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	reader, err := r.MultipartReader()
	if err != nil {
		h.fail(w, r, errors.NewValidationError("expected multipart/form-data").WithCause(err))
		return
	}
	for {
		part, err := reader.NextPart()
		if err != nil {
			h.fail(w, r, errors.NewValidationError("missing file part"))
			return
		}
		if part.FormName() != "file" {
			part.Close()
			continue
		}

		url, err := h.assets.AttachMedia(r.Context(), userID, id, part.FileName(), part)
		part.Close()
		if err != nil {
			h.fail(w, r, err)
			return
		}
		common.RespondJSON(w, http.StatusOK, map[string]string{"url": url})
		return
	}
}
