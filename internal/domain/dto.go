package domain

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DTOs for API responses. Timestamps are ISO 8601 strings, dates are YYYY-MM-DD.

type ZoneDTO struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Code string    `json:"code"`
}

type CustomerDTO struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	Code      string     `json:"code,omitempty"`
	Email     string     `json:"email,omitempty"`
	Phone     string     `json:"phone,omitempty"`
	City      string     `json:"city,omitempty"`
	Country   string     `json:"country,omitempty"`
	ZoneID    *uuid.UUID `json:"zoneId,omitempty"`
	CreatedAt string     `json:"createdAt"`
}

// CustomerWithDetailsDTO includes the customer's contacts and installed assets
type CustomerWithDetailsDTO struct {
	CustomerDTO
	Contacts []ContactDTO `json:"contacts"`
	Assets   []AssetDTO   `json:"assets"`
}

type ContactDTO struct {
	ID         uuid.UUID `json:"id"`
	CustomerID uuid.UUID `json:"customerId"`
	FirstName  string    `json:"firstName"`
	LastName   string    `json:"lastName,omitempty"`
	FullName   string    `json:"fullName"`
	Email      string    `json:"email,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	Position   string    `json:"position,omitempty"`
}

type AssetDTO struct {
	ID           uuid.UUID `json:"id"`
	CustomerID   uuid.UUID `json:"customerId"`
	SerialNumber string    `json:"serialNumber"`
	Model        string    `json:"model,omitempty"`
	Description  string    `json:"description,omitempty"`
}

type SparePartDTO struct {
	ID          uuid.UUID `json:"id"`
	PartNumber  string    `json:"partNumber"`
	Description string    `json:"description,omitempty"`
	UnitPrice   float64   `json:"unitPrice"`
}

type OfferSparePartDTO struct {
	ID          uuid.UUID `json:"id"`
	SparePartID uuid.UUID `json:"sparePartId"`
	PartNumber  string    `json:"partNumber,omitempty"`
	Quantity    int       `json:"quantity"`
	UnitPrice   float64   `json:"unitPrice"`
	LineTotal   float64   `json:"lineTotal"`
}

type StageRemarkDTO struct {
	ID         uuid.UUID  `json:"id"`
	Stage      OfferStage `json:"stage"`
	Content    string     `json:"content"`
	AuthorID   *uuid.UUID `json:"authorId,omitempty"`
	AuthorName string     `json:"authorName,omitempty"`
	CreatedAt  string     `json:"createdAt"`
}

type OfferDTO struct {
	ID                    uuid.UUID           `json:"id"`
	ReferenceNumber       string              `json:"referenceNumber"`
	Title                 string              `json:"title,omitempty"`
	CustomerID            uuid.UUID           `json:"customerId"`
	Customer              *CustomerDTO        `json:"customer,omitempty"`
	ZoneID                uuid.UUID           `json:"zoneId"`
	Zone                  *ZoneDTO            `json:"zone,omitempty"`
	ContactID             uuid.UUID           `json:"contactId"`
	Contact               *ContactDTO         `json:"contact,omitempty"`
	Assets                []AssetDTO          `json:"assets"`
	ProductType           ProductType         `json:"productType"`
	LeadStatus            LeadStatus          `json:"leadStatus"`
	Stage                 OfferStage          `json:"stage"`
	OfferReferenceDate    string              `json:"offerReferenceDate,omitempty"`
	OfferValue            *float64            `json:"offerValue"`
	OfferMonth            string              `json:"offerMonth,omitempty"`
	ProbabilityPercentage *int                `json:"probabilityPercentage"`
	POExpectedMonth       string              `json:"poExpectedMonth,omitempty"`
	PONumber              string              `json:"poNumber,omitempty"`
	PODate                string              `json:"poDate,omitempty"`
	POValue               *float64            `json:"poValue"`
	BookingDateInSAP      string              `json:"bookingDateInSap,omitempty"`
	Remarks               string              `json:"remarks,omitempty"`
	CreatedByID           *uuid.UUID          `json:"createdById,omitempty"`
	CreatedByName         string              `json:"createdByName,omitempty"`
	Version               int                 `json:"version"`
	SpareParts            []OfferSparePartDTO `json:"spareParts,omitempty"`
	StageRemarks          []StageRemarkDTO    `json:"stageRemarks"`
	CreatedAt             string              `json:"createdAt"`
	UpdatedAt             string              `json:"updatedAt"`
}

// CreateOfferRequest creates an offer, normally at INITIAL
type CreateOfferRequest struct {
	Title                 string                  `json:"title,omitempty" validate:"max=200"`
	CustomerID            uuid.UUID               `json:"customerId" validate:"required"`
	ZoneID                uuid.UUID               `json:"zoneId" validate:"required"`
	ContactID             uuid.UUID               `json:"contactId" validate:"required"`
	AssetIDs              []uuid.UUID             `json:"assetIds" validate:"required,min=1"`
	ProductType           ProductType             `json:"productType" validate:"required"`
	LeadStatus            LeadStatus              `json:"leadStatus" validate:"required,oneof=HOT WARM COLD"`
	Stage                 *OfferStage             `json:"stage,omitempty"`
	OfferReferenceDate    *string                 `json:"offerReferenceDate,omitempty"`
	OfferValue            *decimal.Decimal        `json:"offerValue,omitempty"`
	OfferMonth            *string                 `json:"offerMonth,omitempty"`
	ProbabilityPercentage *int                    `json:"probabilityPercentage,omitempty"`
	POExpectedMonth       *string                 `json:"poExpectedMonth,omitempty"`
	Remarks               *string                 `json:"remarks,omitempty"`
	SpareParts            []OfferSparePartRequest `json:"spareParts,omitempty" validate:"omitempty,dive"`
}

type OfferSparePartRequest struct {
	SparePartID uuid.UUID `json:"sparePartId" validate:"required"`
	Quantity    int       `json:"quantity" validate:"required,min=1"`
}

// Patch expresses the creation payload as a patch over an empty offer
func (r *CreateOfferRequest) Patch() *UpdateOfferRequest {
	title := r.Title
	productType := r.ProductType
	leadStatus := r.LeadStatus
	customerID := r.CustomerID
	zoneID := r.ZoneID
	contactID := r.ContactID
	return &UpdateOfferRequest{
		Title:                 &title,
		CustomerID:            &customerID,
		ZoneID:                &zoneID,
		ContactID:             &contactID,
		AssetIDs:              r.AssetIDs,
		ProductType:           &productType,
		LeadStatus:            &leadStatus,
		Stage:                 r.Stage,
		OfferReferenceDate:    r.OfferReferenceDate,
		OfferValue:            r.OfferValue,
		OfferMonth:            r.OfferMonth,
		ProbabilityPercentage: r.ProbabilityPercentage,
		POExpectedMonth:       r.POExpectedMonth,
		Remarks:               r.Remarks,
	}
}

// UpdateOfferRequest is a partial update. Absent and null fields are left
// unchanged. An empty string clears a text, month or date field.
type UpdateOfferRequest struct {
	Version               *int             `json:"version,omitempty"`
	Title                 *string          `json:"title,omitempty" validate:"omitempty,max=200"`
	CustomerID            *uuid.UUID       `json:"customerId,omitempty"`
	ZoneID                *uuid.UUID       `json:"zoneId,omitempty"`
	ContactID             *uuid.UUID       `json:"contactId,omitempty"`
	AssetIDs              []uuid.UUID      `json:"assetIds,omitempty"`
	ProductType           *ProductType     `json:"productType,omitempty"`
	LeadStatus            *LeadStatus      `json:"leadStatus,omitempty"`
	Stage                 *OfferStage      `json:"stage,omitempty"`
	OfferReferenceDate    *string          `json:"offerReferenceDate,omitempty"`
	OfferValue            *decimal.Decimal `json:"offerValue,omitempty"`
	OfferMonth            *string          `json:"offerMonth,omitempty"`
	ProbabilityPercentage *int             `json:"probabilityPercentage,omitempty"`
	POExpectedMonth       *string          `json:"poExpectedMonth,omitempty"`
	PONumber              *string          `json:"poNumber,omitempty" validate:"omitempty,max=100"`
	PODate                *string          `json:"poDate,omitempty"`
	POValue               *decimal.Decimal `json:"poValue,omitempty"`
	BookingDateInSAP      *string          `json:"bookingDateInSap,omitempty"`
	Remarks               *string          `json:"remarks,omitempty" validate:"omitempty,max=5000"`
}

// UpdateOfferStatusRequest moves an offer between stages and lead statuses.
// Notes become a stage remark, and the offer remarks when closing as LOST.
type UpdateOfferStatusRequest struct {
	Version    *int        `json:"version,omitempty"`
	Stage      *OfferStage `json:"stage,omitempty"`
	LeadStatus *LeadStatus `json:"leadStatus,omitempty"`
	Notes      string      `json:"notes,omitempty" validate:"max=5000"`
}

type AddStageRemarkRequest struct {
	Content string `json:"content" validate:"required,max=5000"`
}

type ActivityDTO struct {
	ID              uuid.UUID       `json:"id"`
	Action          ActivityAction  `json:"action"`
	UserID          *uuid.UUID      `json:"userId,omitempty"`
	UserName        string          `json:"userName,omitempty"`
	EntityType      string          `json:"entityType"`
	EntityID        *uuid.UUID      `json:"entityId,omitempty"`
	ReferenceNumber string          `json:"referenceNumber,omitempty"`
	Details         json.RawMessage `json:"details,omitempty"`
	IPAddress       string          `json:"ipAddress,omitempty"`
	UserAgent       string          `json:"userAgent,omitempty"`
	RequestID       string          `json:"requestId,omitempty"`
	CreatedAt       string          `json:"createdAt"`
}

// Pagination describes one page of a list
type Pagination struct {
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Pages int   `json:"pages"`
}

// NewPagination computes the page count for total items
func NewPagination(total int64, page, limit int) Pagination {
	pages := 0
	if limit > 0 {
		pages = int((total + int64(limit) - 1) / int64(limit))
	}
	return Pagination{Total: total, Page: page, Limit: limit, Pages: pages}
}

type ActivityListResponse struct {
	Success    bool          `json:"success"`
	Activities []ActivityDTO `json:"activities"`
	Pagination Pagination    `json:"pagination"`
}

type ActivityStats struct {
	Total        int64 `json:"total"`
	Today        int64 `json:"today"`
	UniqueUsers  int64 `json:"uniqueUsers"`
	OfferUpdates int64 `json:"offerUpdates"`
	StageChanges int64 `json:"stageChanges"`
}

// CountEntry is one bucket of a grouped count
type CountEntry struct {
	Key   string `json:"key"`
	Label string `json:"label,omitempty"`
	Count int64  `json:"count"`
}

type ActivityAnalytics struct {
	ByAction []CountEntry `json:"byAction"`
	ByDay    []CountEntry `json:"byDay"`
	TopUsers []CountEntry `json:"topUsers"`
}

type ActivityFeedResponse struct {
	Success    bool              `json:"success"`
	Activities []ActivityDTO     `json:"activities"`
	Pagination Pagination        `json:"pagination"`
	Stats      ActivityStats     `json:"stats"`
	Analytics  ActivityAnalytics `json:"analytics"`
}

type CreateTargetRequest struct {
	Scope       TargetScope     `json:"scope" validate:"required,oneof=ZONE USER"`
	ZoneID      *uuid.UUID      `json:"zoneId,omitempty"`
	UserID      *uuid.UUID      `json:"userId,omitempty"`
	Period      TargetPeriod    `json:"period" validate:"required,oneof=MONTHLY YEARLY"`
	PeriodKey   string          `json:"periodKey" validate:"required,max=7"`
	ProductType ProductType     `json:"productType,omitempty"`
	TargetValue decimal.Decimal `json:"targetValue"`
}

type UpdateTargetRequest struct {
	TargetValue *decimal.Decimal `json:"targetValue,omitempty"`
	ProductType *ProductType     `json:"productType,omitempty"`
}

type TargetDTO struct {
	ID          uuid.UUID    `json:"id"`
	Scope       TargetScope  `json:"scope"`
	ZoneID      *uuid.UUID   `json:"zoneId,omitempty"`
	ZoneName    string       `json:"zoneName,omitempty"`
	UserID      *uuid.UUID   `json:"userId,omitempty"`
	UserName    string       `json:"userName,omitempty"`
	Period      TargetPeriod `json:"period"`
	PeriodKey   string       `json:"periodKey"`
	ProductType ProductType  `json:"productType,omitempty"`
	TargetValue float64      `json:"targetValue"`
	CreatedAt   string       `json:"createdAt"`
}

type TargetAchievementDTO struct {
	Target             TargetDTO `json:"target"`
	Actual             float64   `json:"actual"`
	AchievementPercent float64   `json:"achievementPercent"`
}

type UserDTO struct {
	ID     uuid.UUID  `json:"id"`
	Email  string     `json:"email,omitempty"`
	Name   string     `json:"name"`
	Role   UserRole   `json:"role"`
	ZoneID *uuid.UUID `json:"zoneId,omitempty"`
	System bool       `json:"system,omitempty"`
}

type SessionRequest struct {
	Method string `json:"method,omitempty" validate:"max=50"`
}

// PaginatedResponse is the generic list envelope
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"pageSize"`
	TotalPages int         `json:"totalPages"`
}

// ErrorResponse represents a plain API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
