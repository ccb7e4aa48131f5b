package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/straye-as/offer-pipeline-api/internal/service"
	"go.uber.org/zap"
)

// ReferenceHandler serves the lookup data used to fill in offers
type ReferenceHandler struct {
	referenceService *service.ReferenceService
	logger           *zap.Logger
}

func NewReferenceHandler(referenceService *service.ReferenceService, logger *zap.Logger) *ReferenceHandler {
	return &ReferenceHandler{
		referenceService: referenceService,
		logger:           logger,
	}
}

// @Summary List zones
// @Tags Reference
// @Produce json
// @Param includeInactive query bool false "Include inactive zones"
// @Success 200 {array} domain.ZoneDTO
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /zones [get]
func (h *ReferenceHandler) ListZones(w http.ResponseWriter, r *http.Request) {
	zones, err := h.referenceService.ListZones(r.Context(), r.URL.Query().Get("includeInactive") == "true")
	if err != nil {
		handleServiceError(w, h.logger, "list zones", err)
		return
	}
	respondJSON(w, http.StatusOK, zones)
}

// @Summary List customers
// @Tags Reference
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Page size" default(20)
// @Param search query string false "Search name or code"
// @Param zoneId query string false "Zone ID"
// @Success 200 {object} domain.PaginatedResponse{data=[]domain.CustomerDTO}
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /customers [get]
func (h *ReferenceHandler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	zoneID, ok := optionalUUID(r, "zoneId")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid zoneId: must be a valid UUID")
		return
	}

	result, err := h.referenceService.ListCustomers(r.Context(),
		queryInt(r, "page", 1),
		queryInt(r, "pageSize", 20),
		r.URL.Query().Get("search"),
		zoneID)
	if err != nil {
		handleServiceError(w, h.logger, "list customers", err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// @Summary Get customer
// @Description Customer with contacts and installed assets
// @Tags Reference
// @Produce json
// @Param id path string true "Customer ID"
// @Success 200 {object} domain.CustomerWithDetailsDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /customers/{id} [get]
func (h *ReferenceHandler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, chi.URLParam(r, "id"), "customer ID")
	if !ok {
		return
	}

	customer, err := h.referenceService.GetCustomer(r.Context(), id)
	if err != nil {
		handleServiceError(w, h.logger, "get customer", err)
		return
	}
	respondJSON(w, http.StatusOK, customer)
}

// @Summary List spare parts
// @Tags Reference
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Page size" default(20)
// @Param search query string false "Search part number or description"
// @Success 200 {object} domain.PaginatedResponse{data=[]domain.SparePartDTO}
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /spare-parts [get]
func (h *ReferenceHandler) ListSpareParts(w http.ResponseWriter, r *http.Request) {
	result, err := h.referenceService.ListSpareParts(r.Context(),
		queryInt(r, "page", 1),
		queryInt(r, "pageSize", 20),
		r.URL.Query().Get("search"))
	if err != nil {
		handleServiceError(w, h.logger, "list spare parts", err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}
