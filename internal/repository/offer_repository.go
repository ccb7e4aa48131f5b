package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/straye-as/offer-pipeline-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OfferRepository reads and writes offers. Writes that belong to an
// orchestrated change go through WithTx so they share the caller's transaction.
type OfferRepository struct {
	db *gorm.DB
}

func NewOfferRepository(db *gorm.DB) *OfferRepository {
	return &OfferRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *OfferRepository) WithTx(tx *gorm.DB) *OfferRepository {
	return &OfferRepository{db: tx}
}

// Create inserts the offer row only. Assets and spare parts are written
// separately with ReplaceAssets and AddSpareParts.
func (r *OfferRepository) Create(ctx context.Context, offer *domain.Offer) error {
	if offer.Version == 0 {
		offer.Version = 1
	}
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(offer).Error
}

// GetByID loads an offer with everything the detail view shows. Stage
// remarks are ordered oldest first.
func (r *OfferRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Offer, error) {
	var offer domain.Offer
	query := r.db.WithContext(ctx).
		Preload("Customer").
		Preload("Zone").
		Preload("Contact").
		Preload("Assets", func(db *gorm.DB) *gorm.DB { return db.Order("serial_number ASC") }).
		Preload("SpareParts.SparePart").
		Preload("StageRemarks", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Where("id = ?", id)
	query = ApplyZoneFilter(ctx, query, "zone_id")
	if err := query.First(&offer).Error; err != nil {
		return nil, err
	}
	return &offer, nil
}

// GetForUpdate loads an offer and its assets, locking the row where the
// database supports it
func (r *OfferRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Offer, error) {
	var offer domain.Offer
	query := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id)
	query = ApplyZoneFilter(ctx, query, "zone_id")
	if err := query.First(&offer).Error; err != nil {
		return nil, err
	}

	assets, err := r.assetsOf(ctx, id)
	if err != nil {
		return nil, err
	}
	offer.Assets = assets
	return &offer, nil
}

func (r *OfferRepository) assetsOf(ctx context.Context, offerID uuid.UUID) ([]domain.Asset, error) {
	var assets []domain.Asset
	err := r.db.WithContext(ctx).
		Joins("JOIN offer_assets ON offer_assets.asset_id = assets.id").
		Where("offer_assets.offer_id = ?", offerID).
		Order("assets.serial_number ASC").
		Find(&assets).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load offer assets: %w", err)
	}
	return assets, nil
}

// GetByReferenceNumber looks an offer up by its reference number, including
// soft-deleted offers so their history stays reachable
func (r *OfferRepository) GetByReferenceNumber(ctx context.Context, ref string) (*domain.Offer, error) {
	var offer domain.Offer
	query := r.db.WithContext(ctx).Unscoped().Where("reference_number = ?", ref)
	query = ApplyZoneFilter(ctx, query, "zone_id")
	if err := query.First(&offer).Error; err != nil {
		return nil, err
	}
	return &offer, nil
}

// UpdateVersioned writes columns only if the stored version still equals
// version, and bumps the version. It returns the number of rows written,
// which is 0 when another writer got there first.
func (r *OfferRepository) UpdateVersioned(ctx context.Context, id uuid.UUID, version int, columns map[string]interface{}) (int64, error) {
	values := make(map[string]interface{}, len(columns)+1)
	for k, v := range columns {
		values[k] = v
	}
	values["version"] = gorm.Expr("version + 1")

	result := r.db.WithContext(ctx).
		Model(&domain.Offer{}).
		Where("id = ? AND version = ?", id, version).
		Updates(values)
	return result.RowsAffected, result.Error
}

// CurrentVersion returns the stored version, or 0 if the offer is gone
func (r *OfferRepository) CurrentVersion(ctx context.Context, id uuid.UUID) (int, error) {
	var versions []int
	err := r.db.WithContext(ctx).Model(&domain.Offer{}).Where("id = ?", id).Limit(1).Pluck("version", &versions).Error
	if err != nil || len(versions) == 0 {
		return 0, err
	}
	return versions[0], nil
}

// ReplaceAssets sets the offer's asset links to exactly assetIDs
func (r *OfferRepository) ReplaceAssets(ctx context.Context, offerID uuid.UUID, assetIDs []uuid.UUID) error {
	db := r.db.WithContext(ctx)
	if err := db.Exec("DELETE FROM offer_assets WHERE offer_id = ?", offerID).Error; err != nil {
		return fmt.Errorf("failed to clear offer assets: %w", err)
	}
	seen := make(map[uuid.UUID]bool, len(assetIDs))
	for _, id := range assetIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		if err := db.Exec("INSERT INTO offer_assets (offer_id, asset_id) VALUES (?, ?)", offerID, id).Error; err != nil {
			return fmt.Errorf("failed to link asset %s: %w", id, err)
		}
	}
	return nil
}

// AddSpareParts inserts spare part lines for an offer
func (r *OfferRepository) AddSpareParts(ctx context.Context, lines []domain.OfferSparePart) error {
	if len(lines) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Omit("SparePart").Create(&lines).Error
}

// SoftDelete marks the offer deleted if version still matches
func (r *OfferRepository) SoftDelete(ctx context.Context, id uuid.UUID, version int) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("version = ?", version).
		Delete(&domain.Offer{}, "id = ?", id)
	return result.RowsAffected, result.Error
}

// ReferenceExists reports whether a reference number is taken, deleted offers included
func (r *OfferRepository) ReferenceExists(ctx context.Context, ref string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Unscoped().Model(&domain.Offer{}).Where("reference_number = ?", ref).Count(&count).Error
	return count > 0, err
}

// IsNotFound reports whether err means the row does not exist
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
