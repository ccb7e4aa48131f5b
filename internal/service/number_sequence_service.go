package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/straye-as/offer-pipeline-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// NumberSequenceService hands out offer reference numbers.
//
// Format: OFF-{ZONE}-{YEAR}-{SEQUENCE}
// Example: OFF-NO-2025-0042
type NumberSequenceService struct {
	repo   *repository.NumberSequenceRepository
	logger *zap.Logger
}

// NewNumberSequenceService creates a new NumberSequenceService
func NewNumberSequenceService(
	repo *repository.NumberSequenceRepository,
	logger *zap.Logger,
) *NumberSequenceService {
	return &NumberSequenceService{
		repo:   repo,
		logger: logger,
	}
}

// GenerateOfferNumber allocates the next reference number for a zone inside
// tx. The sequence row stays locked until tx ends, and a rolled back tx
// returns the number.
func (s *NumberSequenceService) GenerateOfferNumber(ctx context.Context, tx *gorm.DB, zoneCode string, at time.Time) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(zoneCode))
	if code == "" {
		return "", fmt.Errorf("%w: zone has no code", ErrInvalidInput)
	}

	year := at.UTC().Year()
	nextSeq, err := s.repo.WithTx(tx).GetNextNumber(ctx, code, year)
	if err != nil {
		s.logger.Error("failed to get next sequence number",
			zap.String("zoneCode", code),
			zap.Int("year", year),
			zap.Error(err))
		return "", err
	}

	number := FormatOfferNumber(code, year, nextSeq)
	s.logger.Debug("generated offer number", zap.String("number", number))
	return number, nil
}

// FormatOfferNumber renders a reference number. Sequences past 9999 widen
// rather than wrap.
func FormatOfferNumber(zoneCode string, year, seq int) string {
	return fmt.Sprintf("OFF-%s-%d-%04d", zoneCode, year, seq)
}
