package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/straye-as/offer-pipeline-api/internal/domain"
	"gorm.io/gorm"
)

type SparePartRepository struct {
	db *gorm.DB
}

func NewSparePartRepository(db *gorm.DB) *SparePartRepository {
	return &SparePartRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *SparePartRepository) WithTx(tx *gorm.DB) *SparePartRepository {
	return &SparePartRepository{db: tx}
}

// GetByIDs loads spare parts keyed by id
func (r *SparePartRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.SparePart, error) {
	out := make(map[uuid.UUID]domain.SparePart, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var parts []domain.SparePart
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&parts).Error; err != nil {
		return nil, fmt.Errorf("failed to look up spare parts: %w", err)
	}
	for _, p := range parts {
		out[p.ID] = p
	}
	return out, nil
}

func (r *SparePartRepository) List(ctx context.Context, page, pageSize int, search string) ([]domain.SparePart, int64, error) {
	var parts []domain.SparePart
	var total int64

	page, pageSize = NormalizePage(page, pageSize)

	query := r.db.WithContext(ctx).Model(&domain.SparePart{})
	if search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(part_number) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count spare parts: %w", err)
	}

	offset := (page - 1) * pageSize
	err := query.Offset(offset).Limit(pageSize).Order("part_number ASC").Find(&parts).Error
	return parts, total, err
}
