package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/straye-as/offer-pipeline-api/internal/domain"
	"github.com/straye-as/offer-pipeline-api/internal/mapper"
	"github.com/straye-as/offer-pipeline-api/internal/repository"
	"go.uber.org/zap"
)

// ReferenceService serves the read-only reference data offers point at:
// zones, customers with their contacts and assets, and the spare part catalog
type ReferenceService struct {
	zoneRepo      *repository.ZoneRepository
	customerRepo  *repository.CustomerRepository
	sparePartRepo *repository.SparePartRepository
	logger        *zap.Logger
}

func NewReferenceService(
	zoneRepo *repository.ZoneRepository,
	customerRepo *repository.CustomerRepository,
	sparePartRepo *repository.SparePartRepository,
	logger *zap.Logger,
) *ReferenceService {
	return &ReferenceService{
		zoneRepo:      zoneRepo,
		customerRepo:  customerRepo,
		sparePartRepo: sparePartRepo,
		logger:        logger,
	}
}

// ListZones returns the zones the caller can see
func (s *ReferenceService) ListZones(ctx context.Context, includeInactive bool) ([]domain.ZoneDTO, error) {
	zones, err := s.zoneRepo.List(ctx, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("failed to list zones: %w", err)
	}

	dtos := make([]domain.ZoneDTO, 0, len(zones))
	for i := range zones {
		if !repository.HasZoneAccess(ctx, zones[i].ID) {
			continue
		}
		dtos = append(dtos, mapper.ToZoneDTO(&zones[i]))
	}
	return dtos, nil
}

// ListCustomers returns a page of customers, optionally searched by name or code
func (s *ReferenceService) ListCustomers(ctx context.Context, page, pageSize int, search string, zoneID *uuid.UUID) (*domain.PaginatedResponse, error) {
	page, pageSize = repository.NormalizePage(page, pageSize)

	customers, total, err := s.customerRepo.List(ctx, page, pageSize, strings.TrimSpace(search), zoneID)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}

	dtos := make([]domain.CustomerDTO, len(customers))
	for i := range customers {
		dtos[i] = mapper.ToCustomerDTO(&customers[i])
	}

	p := domain.NewPagination(total, page, pageSize)
	return &domain.PaginatedResponse{
		Data:       dtos,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: p.Pages,
	}, nil
}

// GetCustomer returns a customer with its contacts and installed assets
func (s *ReferenceService) GetCustomer(ctx context.Context, id uuid.UUID) (*domain.CustomerWithDetailsDTO, error) {
	customer, err := s.customerRepo.GetWithDetails(ctx, id)
	if err != nil {
		return nil, lookupError("customer", id, err)
	}
	dto := mapper.ToCustomerWithDetailsDTO(customer)
	return &dto, nil
}

// ListSpareParts returns a page of the spare part catalog
func (s *ReferenceService) ListSpareParts(ctx context.Context, page, pageSize int, search string) (*domain.PaginatedResponse, error) {
	page, pageSize = repository.NormalizePage(page, pageSize)

	parts, total, err := s.sparePartRepo.List(ctx, page, pageSize, strings.TrimSpace(search))
	if err != nil {
		return nil, fmt.Errorf("failed to list spare parts: %w", err)
	}

	dtos := make([]domain.SparePartDTO, len(parts))
	for i := range parts {
		dtos[i] = mapper.ToSparePartDTO(&parts[i])
	}

	p := domain.NewPagination(total, page, pageSize)
	return &domain.PaginatedResponse{
		Data:       dtos,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: p.Pages,
	}, nil
}
