package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/straye-as/offer-pipeline-api/internal/domain"
	"gorm.io/gorm"
)

type ContactRepository struct {
	db *gorm.DB
}

func NewContactRepository(db *gorm.DB) *ContactRepository {
	return &ContactRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *ContactRepository) WithTx(tx *gorm.DB) *ContactRepository {
	return &ContactRepository{db: tx}
}

func (r *ContactRepository) Create(ctx context.Context, contact *domain.Contact) error {
	return r.db.WithContext(ctx).Create(contact).Error
}

func (r *ContactRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Contact, error) {
	var contact domain.Contact
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&contact).Error
	if err != nil {
		return nil, err
	}
	return &contact, nil
}

// ListByCustomer returns the contacts of a customer ordered by name
func (r *ContactRepository) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]domain.Contact, error) {
	var contacts []domain.Contact
	err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("first_name ASC, last_name ASC").
		Find(&contacts).Error
	return contacts, err
}
