package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/straye-as/offer-pipeline-api/internal/domain"
	"gorm.io/gorm"
)

type ZoneRepository struct {
	db *gorm.DB
}

func NewZoneRepository(db *gorm.DB) *ZoneRepository {
	return &ZoneRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *ZoneRepository) WithTx(tx *gorm.DB) *ZoneRepository {
	return &ZoneRepository{db: tx}
}

func (r *ZoneRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Zone, error) {
	var zone domain.Zone
	if err := r.db.WithContext(ctx).First(&zone, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &zone, nil
}

// List returns zones ordered by name. Inactive zones are included only when asked.
func (r *ZoneRepository) List(ctx context.Context, includeInactive bool) ([]domain.Zone, error) {
	var zones []domain.Zone
	query := r.db.WithContext(ctx)
	if !includeInactive {
		query = query.Where("is_active = ?", true)
	}
	err := query.Order("name ASC").Find(&zones).Error
	return zones, err
}
