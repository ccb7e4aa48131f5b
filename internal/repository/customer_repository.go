package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/straye-as/offer-pipeline-api/internal/domain"
	"gorm.io/gorm"
)

type CustomerRepository struct {
	db *gorm.DB
}

func NewCustomerRepository(db *gorm.DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *CustomerRepository) WithTx(tx *gorm.DB) *CustomerRepository {
	return &CustomerRepository{db: tx}
}

func (r *CustomerRepository) Create(ctx context.Context, customer *domain.Customer) error {
	return r.db.WithContext(ctx).Omit("Zone", "Contacts", "Assets").Create(customer).Error
}

func (r *CustomerRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Customer, error) {
	var customer domain.Customer
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&customer).Error
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

// GetWithDetails loads a customer with contacts and installed assets
func (r *CustomerRepository) GetWithDetails(ctx context.Context, id uuid.UUID) (*domain.Customer, error) {
	var customer domain.Customer
	err := r.db.WithContext(ctx).
		Preload("Zone").
		Preload("Contacts", func(db *gorm.DB) *gorm.DB { return db.Order("first_name ASC, last_name ASC") }).
		Preload("Assets", func(db *gorm.DB) *gorm.DB { return db.Order("serial_number ASC") }).
		Where("id = ?", id).
		First(&customer).Error
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *CustomerRepository) List(ctx context.Context, page, pageSize int, search string, zoneID *uuid.UUID) ([]domain.Customer, int64, error) {
	var customers []domain.Customer
	var total int64

	page, pageSize = NormalizePage(page, pageSize)

	query := r.db.WithContext(ctx).Model(&domain.Customer{})

	if zoneID != nil {
		query = query.Where("zone_id = ?", *zoneID)
	}

	if search != "" {
		searchPattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(code) LIKE ?", searchPattern, searchPattern)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count customers: %w", err)
	}

	offset := (page - 1) * pageSize
	err := query.Offset(offset).Limit(pageSize).Order("name ASC").Find(&customers).Error

	return customers, total, err
}

// Exists reports whether a customer with id exists
func (r *CustomerRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Customer{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}
