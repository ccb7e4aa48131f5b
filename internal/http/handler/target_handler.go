package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/straye-as/offer-pipeline-api/internal/domain"
	"github.com/straye-as/offer-pipeline-api/internal/repository"
	"github.com/straye-as/offer-pipeline-api/internal/service"
	"go.uber.org/zap"
)

// TargetHandler manages sales targets and their achievement
type TargetHandler struct {
	targetService *service.TargetService
	reportService *service.ReportService
	logger        *zap.Logger
}

func NewTargetHandler(targetService *service.TargetService, reportService *service.ReportService, logger *zap.Logger) *TargetHandler {
	return &TargetHandler{
		targetService: targetService,
		reportService: reportService,
		logger:        logger,
	}
}

// targetFilter reads the shared list filters; it writes a 400 and returns false on bad input
func targetFilter(w http.ResponseWriter, r *http.Request) (repository.TargetFilter, bool) {
	q := r.URL.Query()
	zoneID, ok := optionalUUID(r, "zoneId")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid zoneId: must be a valid UUID")
		return repository.TargetFilter{}, false
	}
	userID, ok := optionalUUID(r, "userId")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid userId: must be a valid UUID")
		return repository.TargetFilter{}, false
	}

	f := repository.TargetFilter{
		Scope:     domain.TargetScope(q.Get("scope")),
		ZoneID:    zoneID,
		UserID:    userID,
		Period:    domain.TargetPeriod(q.Get("period")),
		PeriodKey: q.Get("periodKey"),
	}
	if p := q.Get("productType"); p != "" {
		pt := domain.ProductType(p)
		if !pt.IsValid() {
			respondWithError(w, http.StatusBadRequest, "Invalid productType: "+p)
			return repository.TargetFilter{}, false
		}
		f.ProductType = &pt
	}
	return f, true
}

// @Summary List targets
// @Tags Targets
// @Produce json
// @Param scope query string false "Target scope" Enums(ZONE, USER)
// @Param zoneId query string false "Zone ID"
// @Param userId query string false "User ID"
// @Param period query string false "Period" Enums(MONTHLY, YEARLY)
// @Param periodKey query string false "YYYY-MM or YYYY"
// @Param productType query string false "Product type"
// @Success 200 {array} domain.TargetDTO
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /targets [get]
func (h *TargetHandler) List(w http.ResponseWriter, r *http.Request) {
	f, ok := targetFilter(w, r)
	if !ok {
		return
	}

	targets, err := h.targetService.List(r.Context(), f)
	if err != nil {
		handleServiceError(w, h.logger, "list targets", err)
		return
	}
	respondJSON(w, http.StatusOK, targets)
}

// @Summary Create target
// @Description Zone targets need zoneId, user targets need userId. Restricted to admins and zone managers.
// @Tags Targets
// @Accept json
// @Produce json
// @Param request body domain.CreateTargetRequest true "Target"
// @Success 201 {object} domain.TargetDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Failure 409 {object} domain.APIError "A target already exists for this owner and period"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /targets [post]
func (h *TargetHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateTargetRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	target, err := h.targetService.Create(r.Context(), &req)
	if err != nil {
		handleServiceError(w, h.logger, "create target", err)
		return
	}

	w.Header().Set("Location", "/api/v1/targets/"+target.ID.String())
	respondJSON(w, http.StatusCreated, target)
}

// @Summary Update target
// @Tags Targets
// @Accept json
// @Produce json
// @Param id path string true "Target ID"
// @Param request body domain.UpdateTargetRequest true "New value"
// @Success 200 {object} domain.TargetDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /targets/{id} [put]
func (h *TargetHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, chi.URLParam(r, "id"), "target ID")
	if !ok {
		return
	}

	var req domain.UpdateTargetRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	target, err := h.targetService.Update(r.Context(), id, &req)
	if err != nil {
		handleServiceError(w, h.logger, "update target", err)
		return
	}
	respondJSON(w, http.StatusOK, target)
}

// @Summary Target achievement
// @Description Actual won value against each matching target, as a percentage.
// @Tags Targets
// @Produce json
// @Param scope query string false "Target scope" Enums(ZONE, USER)
// @Param zoneId query string false "Zone ID"
// @Param period query string false "Period" Enums(MONTHLY, YEARLY)
// @Param periodKey query string false "YYYY-MM or YYYY"
// @Success 200 {array} domain.TargetAchievementDTO
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /targets/achievement [get]
func (h *TargetHandler) Achievement(w http.ResponseWriter, r *http.Request) {
	f, ok := targetFilter(w, r)
	if !ok {
		return
	}

	results, err := h.reportService.TargetAchievement(r.Context(), f)
	if err != nil {
		handleServiceError(w, h.logger, "target achievement", err)
		return
	}
	respondJSON(w, http.StatusOK, results)
}
