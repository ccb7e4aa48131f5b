package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/straye-as/offer-pipeline-api/internal/domain"
	"github.com/straye-as/offer-pipeline-api/internal/service"
	"go.uber.org/zap"
)

const dateOnly = "2006-01-02"

// ActivityHandler serves the audit trail of offers, targets and sessions
type ActivityHandler struct {
	activityService *service.ActivityService
	logger          *zap.Logger
}

// NewActivityHandler creates a new ActivityHandler instance
func NewActivityHandler(activityService *service.ActivityService, logger *zap.Logger) *ActivityHandler {
	return &ActivityHandler{
		activityService: activityService,
		logger:          logger,
	}
}

// ListByOffer godoc
// @Summary Offer history
// @Description Activity of one offer, newest first. The history is kept after the offer is deleted.
// @Tags Activities
// @Produce json
// @Param referenceNumber path string true "Offer reference number"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page (max 200)" default(20)
// @Success 200 {object} domain.ActivityListResponse
// @Failure 400 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /activities/offer/{referenceNumber} [get]
func (h *ActivityHandler) ListByOffer(w http.ResponseWriter, r *http.Request) {
	resp, err := h.activityService.ListByOffer(r.Context(),
		chi.URLParam(r, "referenceNumber"),
		queryInt(r, "page", 1),
		queryInt(r, "limit", 20))
	if err != nil {
		handleServiceError(w, h.logger, "list offer activity", err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// Feed godoc
// @Summary Activity feed
// @Description Filtered activity with summary stats and analytics. startDate and endDate override timeframe.
// @Tags Activities
// @Produce json
// @Param timeframe query string false "Look-back window" Enums(24h, 7d, 30d, 90d, all) default(all)
// @Param search query string false "Search reference number, user or entity"
// @Param action query string false "Filter by action"
// @Param userId query string false "Filter by user ID" format(uuid)
// @Param startDate query string false "From this date (YYYY-MM-DD or RFC3339), inclusive"
// @Param endDate query string false "To this date (YYYY-MM-DD inclusive, or an exclusive RFC3339 instant)"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page (max 200)" default(20)
// @Success 200 {object} domain.ActivityFeedResponse
// @Failure 400 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /activities [get]
func (h *ActivityHandler) Feed(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	userID, ok := optionalUUID(r, "userId")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid userId: must be a valid UUID")
		return
	}

	start, err := parseDateParam(q.Get("startDate"), false)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid startDate: "+err.Error())
		return
	}
	end, err := parseDateParam(q.Get("endDate"), true)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid endDate: "+err.Error())
		return
	}

	query := service.FeedQuery{
		Timeframe: q.Get("timeframe"),
		Search:    q.Get("search"),
		UserID:    userID,
		StartDate: start,
		EndDate:   end,
		Page:      queryInt(r, "page", 1),
		Limit:     queryInt(r, "limit", 20),
	}
	if a := q.Get("action"); a != "" {
		action := domain.ActivityAction(a)
		query.Action = &action
	}

	resp, err := h.activityService.Feed(r.Context(), query)
	if err != nil {
		handleServiceError(w, h.logger, "activity feed", err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// Export godoc
// @Summary Export activity
// @Description Downloads every activity between the two dates as a JSON attachment. endDate is inclusive.
// @Tags Activities
// @Produce json
// @Param startDate query string true "First day (YYYY-MM-DD)"
// @Param endDate query string true "Last day (YYYY-MM-DD)"
// @Success 200 {object} service.ActivityExport
// @Failure 400 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /activities/export [get]
func (h *ActivityHandler) Export(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := time.Parse(dateOnly, q.Get("startDate"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "startDate is required in YYYY-MM-DD format")
		return
	}
	last, err := time.Parse(dateOnly, q.Get("endDate"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "endDate is required in YYYY-MM-DD format")
		return
	}

	data, count, err := h.activityService.Export(r.Context(), start, last.AddDate(0, 0, 1))
	if err != nil {
		handleServiceError(w, h.logger, "export activity", err)
		return
	}

	h.logger.Info("activity exported",
		zap.String("from", start.Format(dateOnly)),
		zap.String("to", last.Format(dateOnly)),
		zap.Int("count", count))

	filename := fmt.Sprintf("activity-%s-to-%s.json", start.Format(dateOnly), last.Format(dateOnly))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// parseDateParam accepts RFC3339 or a bare date. A bare end date becomes the
// following midnight so the upper bound stays exclusive.
func parseDateParam(raw string, endOfDay bool) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(dateOnly, raw)
	if err != nil {
		return nil, fmt.Errorf("use YYYY-MM-DD or RFC3339")
	}
	if endOfDay {
		t = t.AddDate(0, 0, 1)
	}
	return &t, nil
}
