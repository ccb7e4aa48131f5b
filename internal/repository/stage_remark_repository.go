package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/straye-as/offer-pipeline-api/internal/domain"
	"gorm.io/gorm"
)

// StageRemarkRepository appends and lists stage remarks
type StageRemarkRepository struct {
	db *gorm.DB
}

func NewStageRemarkRepository(db *gorm.DB) *StageRemarkRepository {
	return &StageRemarkRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *StageRemarkRepository) WithTx(tx *gorm.DB) *StageRemarkRepository {
	return &StageRemarkRepository{db: tx}
}

func (r *StageRemarkRepository) Create(ctx context.Context, remark *domain.StageRemark) error {
	return r.db.WithContext(ctx).Create(remark).Error
}

// ListByOffer returns an offer's remarks oldest first
func (r *StageRemarkRepository) ListByOffer(ctx context.Context, offerID uuid.UUID) ([]domain.StageRemark, error) {
	var remarks []domain.StageRemark
	err := r.db.WithContext(ctx).
		Where("offer_id = ?", offerID).
		Order("created_at ASC, id ASC").
		Find(&remarks).Error
	return remarks, err
}
