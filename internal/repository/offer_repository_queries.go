package repository

// List and search queries for the OfferRepository, plus the lookups used by
// the SAP booking sync.

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/straye-as/offer-pipeline-api/internal/domain"
	"gorm.io/gorm"
)

// OfferFilters narrows an offer list. Nil fields are ignored.
type OfferFilters struct {
	Stage       *domain.OfferStage
	ZoneID      *uuid.UUID
	CustomerID  *uuid.UUID
	ProductType *domain.ProductType
	LeadStatus  *domain.LeadStatus
	Search      string
}

// offerSortFields maps API sort fields to columns
var offerSortFields = map[string]string{
	"createdAt":       "created_at",
	"updatedAt":       "updated_at",
	"referenceNumber": "reference_number",
	"offerValue":      "offer_value",
	"offerMonth":      "offer_month",
	"stage":           "stage",
}

// List returns a page of offers with their customer, zone and contact
func (r *OfferRepository) List(ctx context.Context, filters OfferFilters, sort SortConfig, page, pageSize int) ([]domain.Offer, int64, error) {
	var offers []domain.Offer
	var total int64

	page, pageSize = NormalizePage(page, pageSize)

	query := r.db.WithContext(ctx).Model(&domain.Offer{})
	query = ApplyZoneFilter(ctx, query, "zone_id")
	query = applyOfferFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count offers: %w", err)
	}

	offset := (page - 1) * pageSize
	err := query.
		Preload("Customer").
		Preload("Zone").
		Preload("Contact").
		Preload("Assets").
		Order(BuildOrderClause(sort, offerSortFields, "updated_at")).
		Offset(offset).
		Limit(pageSize).
		Find(&offers).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list offers: %w", err)
	}

	return offers, total, nil
}

func applyOfferFilters(query *gorm.DB, f OfferFilters) *gorm.DB {
	if f.Stage != nil {
		query = query.Where("stage = ?", *f.Stage)
	}
	if f.ZoneID != nil {
		query = query.Where("zone_id = ?", *f.ZoneID)
	}
	if f.CustomerID != nil {
		query = query.Where("customer_id = ?", *f.CustomerID)
	}
	if f.ProductType != nil {
		query = query.Where("product_type = ?", *f.ProductType)
	}
	if f.LeadStatus != nil {
		query = query.Where("lead_status = ?", *f.LeadStatus)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		pattern := "%" + strings.ToLower(s) + "%"
		query = query.Where(
			"LOWER(reference_number) LIKE ? OR LOWER(title) LIKE ? OR LOWER(po_number) LIKE ? OR customer_id IN (?)",
			pattern, pattern, pattern,
			query.Session(&gorm.Session{NewDB: true}).Model(&domain.Customer{}).Select("id").Where("LOWER(name) LIKE ?", pattern),
		)
	}
	return query
}

// ListAwaitingBooking returns offers that have a purchase order but no SAP
// booking date yet
func (r *OfferRepository) ListAwaitingBooking(ctx context.Context, limit int) ([]domain.Offer, error) {
	var offers []domain.Offer
	err := r.db.WithContext(ctx).
		Where("stage = ?", domain.StagePOReceived).
		Where("po_number <> ''").
		Where("booking_date_in_sap IS NULL").
		Order("updated_at ASC").
		Limit(limit).
		Find(&offers).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list offers awaiting booking: %w", err)
	}
	return offers, nil
}
