package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/straye-as/offer-pipeline-api/internal/domain"
	"gorm.io/gorm"
)

// TargetFilter narrows a target list. Empty fields are ignored.
type TargetFilter struct {
	Scope       domain.TargetScope
	ZoneID      *uuid.UUID
	UserID      *uuid.UUID
	Period      domain.TargetPeriod
	PeriodKey   string
	ProductType *domain.ProductType
}

type TargetRepository struct {
	db *gorm.DB
}

func NewTargetRepository(db *gorm.DB) *TargetRepository {
	return &TargetRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *TargetRepository) WithTx(tx *gorm.DB) *TargetRepository {
	return &TargetRepository{db: tx}
}

func (r *TargetRepository) Create(ctx context.Context, target *domain.Target) error {
	return r.db.WithContext(ctx).Omit("Zone", "User").Create(target).Error
}

func (r *TargetRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Target, error) {
	var target domain.Target
	err := r.db.WithContext(ctx).Preload("Zone").Preload("User").First(&target, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &target, nil
}

// UpdateColumns writes the given columns of one target
func (r *TargetRepository) UpdateColumns(ctx context.Context, id uuid.UUID, columns map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&domain.Target{}).Where("id = ?", id).Updates(columns)
	if result.Error != nil {
		return fmt.Errorf("failed to update target: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// FindDuplicate returns an existing target with the same scope, owner,
// period and product type, if any
func (r *TargetRepository) FindDuplicate(ctx context.Context, t *domain.Target) (*domain.Target, error) {
	var existing domain.Target
	query := r.db.WithContext(ctx).
		Where("scope = ? AND period = ? AND period_key = ? AND product_type = ?", t.Scope, t.Period, t.PeriodKey, t.ProductType)
	if t.ZoneID != nil {
		query = query.Where("zone_id = ?", *t.ZoneID)
	}
	if t.UserID != nil {
		query = query.Where("user_id = ?", *t.UserID)
	}
	err := query.First(&existing).Error
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &existing, nil
}

// List returns the matching targets with zone and user loaded
func (r *TargetRepository) List(ctx context.Context, f TargetFilter) ([]domain.Target, error) {
	var targets []domain.Target

	query := r.db.WithContext(ctx).Preload("Zone").Preload("User")
	query = ApplyZoneFilter(ctx, query, "zone_id")

	if f.Scope != "" {
		query = query.Where("scope = ?", f.Scope)
	}
	if f.ZoneID != nil {
		query = query.Where("zone_id = ?", *f.ZoneID)
	}
	if f.UserID != nil {
		query = query.Where("user_id = ?", *f.UserID)
	}
	if f.Period != "" {
		query = query.Where("period = ?", f.Period)
	}
	if f.PeriodKey != "" {
		query = query.Where("period_key = ?", f.PeriodKey)
	}
	if f.ProductType != nil {
		query = query.Where("product_type = ?", *f.ProductType)
	}

	if err := query.Order("period_key DESC, scope ASC, created_at ASC").Find(&targets).Error; err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}
	return targets, nil
}
