package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"mindo/application/services"
	"mindo/domain/core/valueobjects"
	"mindo/pkg/common"
	"mindo/pkg/errors"
)

// ReviewHandler drives the review flow of the authenticated learner
type ReviewHandler struct {
	base
	reviews *services.ReviewService
}

// NewReviewHandler creates a new review handler
func NewReviewHandler(reviews *services.ReviewService, errs *errors.ErrorHandler, logger *zap.Logger) *ReviewHandler {
	return &ReviewHandler{
		base:    base{errs: errs, logger: logger},
		reviews: reviews,
	}
}

// DraftRequest toggles a node in the selection draft
type DraftRequest struct {
	NodeID valueobjects.NodeID `json:"nodeId" validate:"required"`
}

// MasteryRequest is the learner's own explanation of a node
type MasteryRequest struct {
	NodeID      valueobjects.NodeID `json:"nodeId" validate:"required"`
	Explanation string              `json:"explanation"`
}

// ScheduleResponse is the outcome of a grade
type ScheduleResponse struct {
	Status       string    `json:"status"`
	LastReview   time.Time `json:"lastReview"`
	NextReview   time.Time `json:"nextReview"`
	IntervalDays float64   `json:"intervalDays"`
}

// GetState handles GET /review
func (h *ReviewHandler) GetState(w http.ResponseWriter, r *http.Request) {
	userID, err := h.userID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, h.reviews.State(userID))
}

// StartSelection handles POST /review/selection
func (h *ReviewHandler) StartSelection(w http.ResponseWriter, r *http.Request) {
	userID, err := h.userID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	state, err := h.reviews.StartSelection(userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, state)
}

// ToggleDraft handles POST /review/selection/toggle
func (h *ReviewHandler) ToggleDraft(w http.ResponseWriter, r *http.Request) {
	userID, err := h.userID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req DraftRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	state, err := h.reviews.ToggleDraft(r.Context(), userID, req.NodeID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, state)
}

// CancelSelection handles DELETE /review/selection
func (h *ReviewHandler) CancelSelection(w http.ResponseWriter, r *http.Request) {
	userID, err := h.userID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, h.reviews.CancelSelection(userID))
}

// ConfirmSelection handles POST /review/selection/confirm
func (h *ReviewHandler) ConfirmSelection(w http.ResponseWriter, r *http.Request) {
	userID, err := h.userID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	session, err := h.reviews.ConfirmSelection(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, session)
}

// StartSession handles POST /review/sessions
func (h *ReviewHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	userID, err := h.userID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req services.StartSessionRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	session, err := h.reviews.StartSession(r.Context(), userID, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, session)
}

// Next handles POST /review/next
func (h *ReviewHandler) Next(w http.ResponseWriter, r *http.Request) {
	userID, err := h.userID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	state, err := h.reviews.Next(userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, state)
}

// Prev handles POST /review/prev
func (h *ReviewHandler) Prev(w http.ResponseWriter, r *http.Request) {
	userID, err := h.userID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	state, err := h.reviews.Prev(userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, state)
}

// EndSession handles DELETE /review/sessions/current
func (h *ReviewHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	userID, err := h.userID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, h.reviews.EndSession(userID))
}

// SubmitGrade handles POST /review/grade
func (h *ReviewHandler) SubmitGrade(w http.ResponseWriter, r *http.Request) {
	userID, err := h.userID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req services.GradeRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	sched, err := h.reviews.SubmitGrade(r.Context(), userID, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, ScheduleResponse{
		Status:       string(sched.Status),
		LastReview:   sched.LastReview,
		NextReview:   sched.NextReview,
		IntervalDays: sched.Interval.Hours() / 24,
	})
}

// ConfirmMastery handles POST /review/mastery
func (h *ReviewHandler) ConfirmMastery(w http.ResponseWriter, r *http.Request) {
	userID, err := h.userID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req MasteryRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.reviews.ConfirmMastery(r.Context(), userID, req.NodeID, req.Explanation); err != nil {
		h.fail(w, r, err)
		return
	}
	common.RespondNoContent(w)
}
