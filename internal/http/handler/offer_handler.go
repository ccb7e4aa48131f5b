package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/straye-as/offer-pipeline-api/internal/domain"
	"github.com/straye-as/offer-pipeline-api/internal/repository"
	"github.com/straye-as/offer-pipeline-api/internal/service"
	"go.uber.org/zap"
)

type OfferHandler struct {
	offerService *service.OfferService
	logger       *zap.Logger
}

func NewOfferHandler(offerService *service.OfferService, logger *zap.Logger) *OfferHandler {
	return &OfferHandler{
		offerService: offerService,
		logger:       logger,
	}
}

// @Summary List offers
// @Tags Offers
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Page size" default(20)
// @Param stage query string false "Filter by stage"
// @Param zoneId query string false "Filter by zone ID"
// @Param customerId query string false "Filter by customer ID"
// @Param productType query string false "Filter by product type"
// @Param leadStatus query string false "Filter by lead status" Enums(HOT, WARM, COLD)
// @Param search query string false "Search reference number or title"
// @Param sortBy query string false "Sort field" Enums(createdAt, updatedAt, referenceNumber, offerValue, offerMonth, stage)
// @Param sortOrder query string false "Sort order" Enums(asc, desc) default(desc)
// @Success 200 {object} domain.PaginatedResponse
// @Failure 400 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /offers [get]
func (h *OfferHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	zoneID, ok := optionalUUID(r, "zoneId")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid zoneId: must be a valid UUID")
		return
	}
	customerID, ok := optionalUUID(r, "customerId")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid customerId: must be a valid UUID")
		return
	}

	filters := repository.OfferFilters{
		ZoneID:     zoneID,
		CustomerID: customerID,
		Search:     q.Get("search"),
	}
	if s := q.Get("stage"); s != "" {
		st := domain.OfferStage(s)
		if !st.IsValid() {
			respondWithError(w, http.StatusBadRequest, "Invalid stage: "+s)
			return
		}
		filters.Stage = &st
	}
	if p := q.Get("productType"); p != "" {
		pt := domain.ProductType(p)
		if !pt.IsValid() {
			respondWithError(w, http.StatusBadRequest, "Invalid productType: "+p)
			return
		}
		filters.ProductType = &pt
	}
	if l := q.Get("leadStatus"); l != "" {
		ls := domain.LeadStatus(l)
		if !ls.IsValid() {
			respondWithError(w, http.StatusBadRequest, "Invalid leadStatus: "+l)
			return
		}
		filters.LeadStatus = &ls
	}

	sort := repository.DefaultSortConfig()
	if sortBy := q.Get("sortBy"); sortBy != "" {
		sort.Field = sortBy
	}
	if sortOrder := q.Get("sortOrder"); sortOrder != "" {
		sort.Order = repository.ParseSortOrder(sortOrder)
	}

	result, err := h.offerService.List(r.Context(), filters, sort, queryInt(r, "page", 1), queryInt(r, "pageSize", 20))
	if err != nil {
		handleServiceError(w, h.logger, "list offers", err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// @Summary Create offer
// @Description Creates an offer at INITIAL, or at a later stage when every field that stage requires is supplied.
// @Description The reference number is assigned by the server.
// @Tags Offers
// @Accept json
// @Produce json
// @Param request body domain.CreateOfferRequest true "Offer data"
// @Success 201 {object} domain.OfferDTO
// @Failure 400 {object} domain.APIError "Validation error with the blocking fields"
// @Failure 404 {object} domain.APIError "Customer, contact, zone or asset not found"
// @Failure 503 {object} domain.APIError "Storage or audit failure"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /offers [post]
func (h *OfferHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateOfferRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	offer, err := h.offerService.Create(r.Context(), &req)
	if err != nil {
		handleServiceError(w, h.logger, "create offer", err)
		return
	}

	w.Header().Set("Location", "/api/v1/offers/"+offer.ID.String())
	respondJSON(w, http.StatusCreated, offer)
}

// @Summary Get offer
// @Tags Offers
// @Produce json
// @Param id path string true "Offer ID"
// @Success 200 {object} domain.OfferDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /offers/{id} [get]
func (h *OfferHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, chi.URLParam(r, "id"), "offer ID")
	if !ok {
		return
	}

	offer, err := h.offerService.GetByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, h.logger, "get offer", err)
		return
	}

	respondJSON(w, http.StatusOK, offer)
}

// @Summary Update offer
// @Description Applies a partial update. Fields that are absent or null are left unchanged and an empty string clears a field.
// @Description Moving to a new stage requires every field that stage needs on the merged offer.
// @Tags Offers
// @Accept json
// @Produce json
// @Param id path string true "Offer ID"
// @Param request body domain.UpdateOfferRequest true "Fields to change"
// @Success 200 {object} domain.OfferDTO
// @Failure 400 {object} domain.APIError "Validation error with the blocking fields"
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError "Version conflict"
// @Failure 503 {object} domain.APIError "Storage or audit failure, please try again"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /offers/{id} [patch]
func (h *OfferHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, chi.URLParam(r, "id"), "offer ID")
	if !ok {
		return
	}

	var req domain.UpdateOfferRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	offer, err := h.offerService.Update(r.Context(), id, &req)
	if err != nil {
		handleServiceError(w, h.logger, "update offer", err)
		return
	}

	respondJSON(w, http.StatusOK, offer)
}

// @Summary Update offer status
// @Description Changes the stage and/or lead status. Notes are kept as a stage remark.
// @Tags Offers
// @Accept json
// @Produce json
// @Param id path string true "Offer ID"
// @Param request body domain.UpdateOfferStatusRequest true "New status"
// @Success 200 {object} domain.OfferDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /offers/{id}/status [patch]
func (h *OfferHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, chi.URLParam(r, "id"), "offer ID")
	if !ok {
		return
	}

	var req domain.UpdateOfferStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Stage == nil && req.LeadStatus == nil {
		respondWithError(w, http.StatusBadRequest, "stage or leadStatus is required")
		return
	}

	offer, err := h.offerService.UpdateStatus(r.Context(), id, &req)
	if err != nil {
		handleServiceError(w, h.logger, "update offer status", err)
		return
	}

	respondJSON(w, http.StatusOK, offer)
}

// @Summary Add note to offer
// @Tags Offers
// @Accept json
// @Produce json
// @Param id path string true "Offer ID"
// @Param request body domain.AddStageRemarkRequest true "Note"
// @Success 201 {object} domain.OfferDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /offers/{id}/notes [post]
func (h *OfferHandler) AddNote(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, chi.URLParam(r, "id"), "offer ID")
	if !ok {
		return
	}

	var req domain.AddStageRemarkRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	offer, err := h.offerService.AddNote(r.Context(), id, &req)
	if err != nil {
		handleServiceError(w, h.logger, "add offer note", err)
		return
	}

	respondJSON(w, http.StatusCreated, offer)
}

// @Summary Delete offer
// @Tags Offers
// @Param id path string true "Offer ID"
// @Param version query int false "Expected version"
// @Success 204
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /offers/{id} [delete]
func (h *OfferHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, chi.URLParam(r, "id"), "offer ID")
	if !ok {
		return
	}

	var version *int
	if raw := r.URL.Query().Get("version"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			respondWithError(w, http.StatusBadRequest, "Invalid version: must be a positive integer")
			return
		}
		version = &v
	}

	if err := h.offerService.Delete(r.Context(), id, version); err != nil {
		handleServiceError(w, h.logger, "delete offer", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
