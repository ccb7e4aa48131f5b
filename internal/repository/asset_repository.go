package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/straye-as/offer-pipeline-api/internal/domain"
	"gorm.io/gorm"
)

type AssetRepository struct {
	db *gorm.DB
}

func NewAssetRepository(db *gorm.DB) *AssetRepository {
	return &AssetRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *AssetRepository) WithTx(tx *gorm.DB) *AssetRepository {
	return &AssetRepository{db: tx}
}

// MissingIDs returns the ids that do not exist, in the order given
func (r *AssetRepository) MissingIDs(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var found []uuid.UUID
	if err := r.db.WithContext(ctx).Model(&domain.Asset{}).Where("id IN ?", ids).Pluck("id", &found).Error; err != nil {
		return nil, fmt.Errorf("failed to look up assets: %w", err)
	}

	present := make(map[uuid.UUID]bool, len(found))
	for _, id := range found {
		present[id] = true
	}
	var missing []uuid.UUID
	for _, id := range ids {
		if !present[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// ListByCustomer returns a customer's installed assets
func (r *AssetRepository) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]domain.Asset, error) {
	var assets []domain.Asset
	err := r.db.WithContext(ctx).Where("customer_id = ?", customerID).Order("serial_number ASC").Find(&assets).Error
	return assets, err
}
