package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"mindo/application/services"
	"mindo/pkg/common"
	"mindo/pkg/errors"
)

// AnalyticsHandler serves learner statistics
type AnalyticsHandler struct {
	base
	analytics *services.AnalyticsService
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(analytics *services.AnalyticsService, errs *errors.ErrorHandler, logger *zap.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		base:      base{errs: errs, logger: logger},
		analytics: analytics,
	}
}

// GetDashboard handles GET /analytics
func (h *AnalyticsHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	userID, err := h.userID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	dashboard, err := h.analytics.Dashboard(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, dashboard)
}
