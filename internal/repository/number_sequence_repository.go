package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// NumberSequenceRepository hands out offer reference sequence numbers per
// zone code and year
type NumberSequenceRepository struct {
	db *gorm.DB
}

// NewNumberSequenceRepository creates a new NumberSequenceRepository
func NewNumberSequenceRepository(db *gorm.DB) *NumberSequenceRepository {
	return &NumberSequenceRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *NumberSequenceRepository) WithTx(tx *gorm.DB) *NumberSequenceRepository {
	return &NumberSequenceRepository{db: tx}
}

// nextNumberSQL creates the zone/year row at 1 or bumps it, in one statement.
// Two first offers of a year cannot both insert.
const nextNumberSQL = `INSERT INTO number_sequences (zone_code, year, last_sequence, created_at, updated_at)
VALUES (?, ?, 1, ?, ?)
ON CONFLICT (zone_code, year) DO UPDATE
SET last_sequence = number_sequences.last_sequence + 1, updated_at = excluded.updated_at
RETURNING last_sequence`

// GetNextNumber increments and returns the sequence for a zone/year, creating
// it at 1 on first use. The row stays locked for the rest of the caller's
// transaction, so call it inside the transaction that uses the number.
func (r *NumberSequenceRepository) GetNextNumber(ctx context.Context, zoneCode string, year int) (int, error) {
	now := time.Now().UTC()
	var next int
	result := r.db.WithContext(ctx).Raw(nextNumberSQL, zoneCode, year, now, now).Scan(&next)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to get next number sequence: %w", result.Error)
	}
	if result.RowsAffected == 0 || next == 0 {
		return 0, fmt.Errorf("number sequence %s/%d returned no value", zoneCode, year)
	}
	return next, nil
}
