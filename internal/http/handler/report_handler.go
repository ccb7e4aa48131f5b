package handler

import (
	"net/http"

	"github.com/straye-as/offer-pipeline-api/internal/domain"
	"github.com/straye-as/offer-pipeline-api/internal/service"
	"go.uber.org/zap"
)

type ReportHandler struct {
	reportService *service.ReportService
	logger        *zap.Logger
}

func NewReportHandler(reportService *service.ReportService, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{
		reportService: reportService,
		logger:        logger,
	}
}

// @Summary Pipeline dashboard
// @Description Pipeline summary for the caller's zones.
// @Description
// @Description - `pipelineValue`: sum of offer values in open stages
// @Description - `wonValue` / `lostValue`: closed value
// @Description - `winRate`: WON / (WON + LOST), displayed as "N/A" when nothing is closed
// @Description - `byStage`, `byProduct`, `byZone`, `byMonth`: grouped counts and values
// @Description - `targets`: achievement for the current month
// @Description
// @Description Results are cached and recomputed after any offer or target change.
// @Tags Reports
// @Produce json
// @Param zoneId query string false "Zone ID"
// @Param productType query string false "Product type"
// @Param startMonth query string false "First month (YYYY-MM)"
// @Param endMonth query string false "Last month (YYYY-MM)"
// @Success 200 {object} service.Dashboard
// @Failure 400 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /reports/dashboard [get]
func (h *ReportHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	zoneID, ok := optionalUUID(r, "zoneId")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid zoneId: must be a valid UUID")
		return
	}

	f := service.ReportFilter{
		ZoneID:     zoneID,
		StartMonth: q.Get("startMonth"),
		EndMonth:   q.Get("endMonth"),
	}
	if p := q.Get("productType"); p != "" {
		pt := domain.ProductType(p)
		if !pt.IsValid() {
			respondWithError(w, http.StatusBadRequest, "Invalid productType: "+p)
			return
		}
		f.ProductType = &pt
	}

	dashboard, err := h.reportService.Dashboard(r.Context(), f)
	if err != nil {
		handleServiceError(w, h.logger, "dashboard", err)
		return
	}
	respondJSON(w, http.StatusOK, dashboard)
}
