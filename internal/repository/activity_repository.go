package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/offer-pipeline-api/internal/domain"
	"gorm.io/gorm"
)

// ActivityFilter represents filter options for querying activity logs
type ActivityFilter struct {
	Search          string
	Action          *domain.ActivityAction
	UserID          *uuid.UUID
	EntityType      string
	ReferenceNumber string
	StartTime       *time.Time
	EndTime         *time.Time // exclusive
}

// ActivityRepository reads and appends activity logs. It has no update or delete.
type ActivityRepository struct {
	db *gorm.DB
}

func NewActivityRepository(db *gorm.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *ActivityRepository) WithTx(tx *gorm.DB) *ActivityRepository {
	return &ActivityRepository{db: tx}
}

// Create appends one activity log
func (r *ActivityRepository) Create(ctx context.Context, log *domain.ActivityLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *ActivityRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.ActivityLog, error) {
	var log domain.ActivityLog
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&log).Error; err != nil {
		return nil, err
	}
	return &log, nil
}

// ListByReference returns the history of one offer, newest first
func (r *ActivityRepository) ListByReference(ctx context.Context, ref string, page, pageSize int) ([]domain.ActivityLog, int64, error) {
	return r.List(ctx, &ActivityFilter{ReferenceNumber: ref}, page, pageSize)
}

// List retrieves activity logs with pagination and optional filters, newest first
func (r *ActivityRepository) List(ctx context.Context, filter *ActivityFilter, page, pageSize int) ([]domain.ActivityLog, int64, error) {
	var logs []domain.ActivityLog
	var total int64

	page, pageSize = NormalizePage(page, pageSize)

	query := r.applyFilters(ctx, r.db.WithContext(ctx).Model(&domain.ActivityLog{}), filter)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count activities: %w", err)
	}

	offset := (page - 1) * pageSize
	err := query.
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&logs).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list activities: %w", err)
	}

	return logs, total, nil
}

// ListRange returns every log in [start, end) visible to the caller, oldest first
func (r *ActivityRepository) ListRange(ctx context.Context, start, end time.Time) ([]domain.ActivityLog, error) {
	var logs []domain.ActivityLog
	err := ApplyZoneFilter(ctx, r.db.WithContext(ctx), "zone_id").
		Where("created_at >= ? AND created_at < ?", start.UTC(), end.UTC()).
		Order("created_at ASC, id ASC").
		Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list activities in range: %w", err)
	}
	return logs, nil
}

// Stats counts the activity summary figures for the filtered logs
func (r *ActivityRepository) Stats(ctx context.Context, filter *ActivityFilter, todayStart time.Time) (domain.ActivityStats, error) {
	var stats domain.ActivityStats

	base := func() *gorm.DB {
		return r.applyFilters(ctx, r.db.WithContext(ctx).Model(&domain.ActivityLog{}), filter)
	}

	if err := base().Count(&stats.Total).Error; err != nil {
		return stats, fmt.Errorf("failed to count activities: %w", err)
	}
	if err := base().Where("created_at >= ?", todayStart.UTC()).Count(&stats.Today).Error; err != nil {
		return stats, fmt.Errorf("failed to count today's activities: %w", err)
	}
	if err := base().Where("user_id IS NOT NULL").Distinct("user_id").Count(&stats.UniqueUsers).Error; err != nil {
		return stats, fmt.Errorf("failed to count unique users: %w", err)
	}
	if err := base().Where("action = ?", domain.ActionOfferUpdated).Count(&stats.OfferUpdates).Error; err != nil {
		return stats, fmt.Errorf("failed to count offer updates: %w", err)
	}

	// jsonb renders with a space after the colon, plain text does not
	stageChanged := base().Where(
		"(action = ? OR (action = ? AND (CAST(details AS TEXT) LIKE ? OR CAST(details AS TEXT) LIKE ?)))",
		domain.ActionOfferStatusUpdated, domain.ActionOfferUpdated, `%"stage":{%`, `%"stage": {%`,
	)
	if err := stageChanged.Count(&stats.StageChanges).Error; err != nil {
		return stats, fmt.Errorf("failed to count stage changes: %w", err)
	}

	return stats, nil
}

// CountByAction groups the filtered logs by action, largest first
func (r *ActivityRepository) CountByAction(ctx context.Context, filter *ActivityFilter) ([]domain.CountEntry, error) {
	type result struct {
		Action domain.ActivityAction
		Count  int64
	}

	var results []result
	err := r.applyFilters(ctx, r.db.WithContext(ctx).Model(&domain.ActivityLog{}), filter).
		Select("action, COUNT(*) AS count").
		Group("action").
		Order("count DESC, action ASC").
		Scan(&results).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count activities by action: %w", err)
	}

	entries := make([]domain.CountEntry, len(results))
	for i, res := range results {
		entries[i] = domain.CountEntry{Key: string(res.Action), Count: res.Count}
	}
	return entries, nil
}

// CountByDay groups the filtered logs by UTC calendar day, oldest first
func (r *ActivityRepository) CountByDay(ctx context.Context, filter *ActivityFilter) ([]domain.CountEntry, error) {
	type result struct {
		Day   string
		Count int64
	}

	day := r.dayExpression()
	var results []result
	err := r.applyFilters(ctx, r.db.WithContext(ctx).Model(&domain.ActivityLog{}), filter).
		Select(day + " AS day, COUNT(*) AS count").
		Group(day).
		Order("day ASC").
		Scan(&results).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count activities by day: %w", err)
	}

	entries := make([]domain.CountEntry, len(results))
	for i, res := range results {
		entries[i] = domain.CountEntry{Key: res.Day, Count: res.Count}
	}
	return entries, nil
}

// TopUsers returns the most active named users
func (r *ActivityRepository) TopUsers(ctx context.Context, filter *ActivityFilter, limit int) ([]domain.CountEntry, error) {
	type result struct {
		UserID   uuid.UUID
		UserName string
		Count    int64
	}

	var results []result
	err := r.applyFilters(ctx, r.db.WithContext(ctx).Model(&domain.ActivityLog{}), filter).
		Select("user_id, user_name, COUNT(*) AS count").
		Where("user_id IS NOT NULL").
		Group("user_id, user_name").
		Order("count DESC, user_name ASC").
		Limit(limit).
		Scan(&results).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count activities by user: %w", err)
	}

	entries := make([]domain.CountEntry, len(results))
	for i, res := range results {
		entries[i] = domain.CountEntry{Key: res.UserID.String(), Label: res.UserName, Count: res.Count}
	}
	return entries, nil
}

func (r *ActivityRepository) dayExpression() string {
	if r.db.Dialector.Name() == "sqlite" {
		return "substr(created_at, 1, 10)"
	}
	return "to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD')"
}

// applyFilters limits the query to the caller's zone and applies the optional filters
func (r *ActivityRepository) applyFilters(ctx context.Context, query *gorm.DB, filter *ActivityFilter) *gorm.DB {
	query = ApplyZoneFilter(ctx, query, "zone_id")
	if filter == nil {
		return query
	}

	if s := strings.TrimSpace(filter.Search); s != "" {
		pattern := "%" + strings.ToLower(s) + "%"
		query = query.Where("(LOWER(user_name) LIKE ? OR LOWER(reference_number) LIKE ? OR LOWER(action) LIKE ?)", pattern, pattern, pattern)
	}

	if filter.Action != nil {
		query = query.Where("action = ?", *filter.Action)
	}

	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}

	if filter.EntityType != "" {
		query = query.Where("entity_type = ?", filter.EntityType)
	}

	if filter.ReferenceNumber != "" {
		query = query.Where("reference_number = ?", filter.ReferenceNumber)
	}

	if filter.StartTime != nil {
		query = query.Where("created_at >= ?", filter.StartTime.UTC())
	}

	if filter.EndTime != nil {
		query = query.Where("created_at < ?", filter.EndTime.UTC())
	}

	return query
}
