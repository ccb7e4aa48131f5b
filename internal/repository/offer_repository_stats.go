package repository

// Reporting reads for the OfferRepository. These run outside the write path
// and may observe slightly stale data.

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/straye-as/offer-pipeline-api/internal/domain"
	"github.com/straye-as/offer-pipeline-api/internal/reporting"
)

// FigureFilter narrows the offers a report covers. Months are YYYY-MM and inclusive.
type FigureFilter struct {
	ZoneID      *uuid.UUID
	ProductType *domain.ProductType
	StartMonth  string
	EndMonth    string
	CreatedByID *uuid.UUID
}

type figureRow struct {
	Stage                 domain.OfferStage
	ZoneID                uuid.UUID
	ZoneName              string
	ProductType           domain.ProductType
	OfferMonth            string
	OfferValue            *decimal.Decimal
	ProbabilityPercentage *int
}

// ListFigures loads the report columns of every matching offer
func (r *OfferRepository) ListFigures(ctx context.Context, f FigureFilter) ([]reporting.OfferFigure, error) {
	var rows []figureRow

	query := r.db.WithContext(ctx).
		Table("offers").
		Select("offers.stage, offers.zone_id, COALESCE(zones.name, '') AS zone_name, offers.product_type, offers.offer_month, offers.offer_value, offers.probability_percentage").
		Joins("LEFT JOIN zones ON zones.id = offers.zone_id").
		Where("offers.deleted_at IS NULL")
	query = ApplyZoneFilter(ctx, query, "offers.zone_id")

	if f.ZoneID != nil {
		query = query.Where("offers.zone_id = ?", *f.ZoneID)
	}
	if f.ProductType != nil {
		query = query.Where("offers.product_type = ?", *f.ProductType)
	}
	if f.StartMonth != "" {
		query = query.Where("offers.offer_month >= ?", f.StartMonth)
	}
	if f.EndMonth != "" {
		query = query.Where("offers.offer_month <= ?", f.EndMonth)
	}
	if f.CreatedByID != nil {
		query = query.Where("offers.created_by_id = ?", *f.CreatedByID)
	}

	if err := query.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load offer figures: %w", err)
	}

	figures := make([]reporting.OfferFigure, len(rows))
	for i, row := range rows {
		figures[i] = reporting.OfferFigure(row)
	}
	return figures, nil
}

// WonValueQuery selects the WON offers counted against a target
type WonValueQuery struct {
	ZoneID      *uuid.UUID
	CreatedByID *uuid.UUID
	ProductType domain.ProductType
	FromMonth   string
	ToMonth     string
}

// SumWonValue sums offerValue over WON offers whose offer month falls in the range
func (r *OfferRepository) SumWonValue(ctx context.Context, q WonValueQuery) (decimal.Decimal, error) {
	var total decimal.NullDecimal

	query := r.db.WithContext(ctx).
		Model(&domain.Offer{}).
		Select("SUM(offer_value)").
		Where("stage = ?", domain.StageWon).
		Where("offer_month >= ? AND offer_month <= ?", q.FromMonth, q.ToMonth)

	if q.ZoneID != nil {
		query = query.Where("zone_id = ?", *q.ZoneID)
	}
	if q.CreatedByID != nil {
		query = query.Where("created_by_id = ?", *q.CreatedByID)
	}
	if q.ProductType != "" {
		query = query.Where("product_type = ?", q.ProductType)
	}

	if err := query.Row().Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum won value: %w", err)
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}
