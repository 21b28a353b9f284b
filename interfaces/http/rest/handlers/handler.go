// Package handlers exposes the graph, review and analytics services over
// HTTP. Every route acts on the canvas of the authenticated learner.
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"mindo/application/services"
	"mindo/domain/core/valueobjects"
	"mindo/pkg/auth"
	"mindo/pkg/common"
	"mindo/pkg/errors"
	"mindo/pkg/utils"
)

// maxBodyBytes bounds JSON request bodies
const maxBodyBytes = 1 << 20

// base carries what every handler needs
type base struct {
	workspaces *services.Workspaces
	errs       *errors.ErrorHandler
	logger     *zap.Logger
}

func (b base) userID(r *http.Request) (string, error) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		return "", errors.NewUnauthorizedError("no authenticated user")
	}
	return user.UserID, nil
}

// state resolves the caller's loaded graph
func (b base) state(r *http.Request) (*services.GraphState, error) {
	userID, err := b.userID(r)
	if err != nil {
		return nil, err
	}
	return b.workspaces.Get(r.Context(), userID)
}

// decode parses and validates a JSON body
func (b base) decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	if err := common.ParseJSONBody(w, r, v, maxBodyBytes); err != nil {
		return err
	}
	return utils.ValidateStruct(v)
}

func (b base) fail(w http.ResponseWriter, r *http.Request, err error) {
	b.errs.Handle(w, r, err)
}

func nodeParam(r *http.Request) (valueobjects.NodeID, error) {
	id, err := valueobjects.ParseNodeID(chi.URLParam(r, "nodeID"))
	if err != nil {
		return "", errors.NewValidationError(err.Error())
	}
	return id, nil
}

func edgeParam(r *http.Request) (valueobjects.EdgeID, error) {
	id, err := valueobjects.ParseEdgeID(chi.URLParam(r, "edgeID"))
	if err != nil {
		return "", errors.NewValidationError(err.Error())
	}
	return id, nil
}

func unitParam(r *http.Request) (valueobjects.MemoryUnitID, error) {
	id := chi.URLParam(r, "unitID")
	if id == "" {
		return "", errors.NewValidationError("memory unit ID cannot be empty")
	}
	return valueobjects.MemoryUnitID(id), nil
}
