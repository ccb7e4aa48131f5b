package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/offer-pipeline-api/internal/domain"
	"github.com/straye-as/offer-pipeline-api/internal/mapper"
	"github.com/straye-as/offer-pipeline-api/internal/repository"
	"github.com/straye-as/offer-pipeline-api/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// topUsersLimit caps the per-user analytics bucket
const topUsersLimit = 10

// timeframes maps the feed timeframe parameter onto a look-back window.
// "all" has no lower bound.
var timeframes = map[string]time.Duration{
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
	"90d": 90 * 24 * time.Hour,
	"all": 0,
}

// FeedQuery holds the activity feed parameters. StartDate and EndDate take
// precedence over Timeframe; StartDate is inclusive and EndDate exclusive.
type FeedQuery struct {
	Timeframe string
	Search    string
	Action    *domain.ActivityAction
	UserID    *uuid.UUID
	StartDate *time.Time
	EndDate   *time.Time
	Page      int
	Limit     int
}

// ActivityExport is the document written by Export and ArchiveDay
type ActivityExport struct {
	From        string               `json:"from"`
	To          string               `json:"to"`
	GeneratedAt string               `json:"generatedAt"`
	Count       int                  `json:"count"`
	Activities  []domain.ActivityDTO `json:"activities"`
}

// ActivityService reads the activity log. Writes go through the Recorder.
type ActivityService struct {
	activityRepo *repository.ActivityRepository
	storage      storage.Storage
	logger       *zap.Logger
	now          func() time.Time
}

// NewActivityService creates a new ActivityService instance. store may be nil
// when archiving is disabled.
func NewActivityService(
	activityRepo *repository.ActivityRepository,
	store storage.Storage,
	logger *zap.Logger,
) *ActivityService {
	return &ActivityService{
		activityRepo: activityRepo,
		storage:      store,
		logger:       logger,
		now:          time.Now,
	}
}

// ListByOffer returns the history of one offer, newest first. The history
// survives deletion of the offer.
func (s *ActivityService) ListByOffer(ctx context.Context, referenceNumber string, page, limit int) (*domain.ActivityListResponse, error) {
	referenceNumber = strings.TrimSpace(referenceNumber)
	if referenceNumber == "" {
		return nil, invalidField("referenceNumber", "must not be empty")
	}
	page, limit = repository.NormalizePage(page, limit)

	logs, total, err := s.activityRepo.ListByReference(ctx, referenceNumber, page, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list offer activity: %w", err)
	}

	return &domain.ActivityListResponse{
		Success:    true,
		Activities: mapper.ToActivityDTOs(logs),
		Pagination: domain.NewPagination(total, page, limit),
	}, nil
}

// Feed returns one page of the filtered activity log together with summary
// stats and analytics over the same filter
func (s *ActivityService) Feed(ctx context.Context, q FeedQuery) (*domain.ActivityFeedResponse, error) {
	filter, err := s.feedFilter(q)
	if err != nil {
		return nil, err
	}
	page, limit := repository.NormalizePage(q.Page, q.Limit)
	now := s.now().UTC()
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	resp := &domain.ActivityFeedResponse{Success: true}
	var (
		logs  []domain.ActivityLog
		total int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		logs, total, err = s.activityRepo.List(gctx, filter, page, limit)
		return err
	})
	g.Go(func() error {
		var err error
		resp.Stats, err = s.activityRepo.Stats(gctx, filter, todayStart)
		return err
	})
	g.Go(func() error {
		var err error
		resp.Analytics.ByAction, err = s.activityRepo.CountByAction(gctx, filter)
		return err
	})
	g.Go(func() error {
		var err error
		resp.Analytics.ByDay, err = s.activityRepo.CountByDay(gctx, filter)
		return err
	})
	g.Go(func() error {
		var err error
		resp.Analytics.TopUsers, err = s.activityRepo.TopUsers(gctx, filter, topUsersLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Error("failed to load activity feed", zap.Error(err))
		return nil, fmt.Errorf("failed to load activity feed: %w", err)
	}

	resp.Activities = mapper.ToActivityDTOs(logs)
	resp.Pagination = domain.NewPagination(total, page, limit)
	return resp, nil
}

func (s *ActivityService) feedFilter(q FeedQuery) (*repository.ActivityFilter, error) {
	filter := &repository.ActivityFilter{
		Search: strings.TrimSpace(q.Search),
		UserID: q.UserID,
	}
	if q.Action != nil {
		if !q.Action.IsValid() {
			return nil, invalidField("action", "unknown action")
		}
		filter.Action = q.Action
	}

	if q.StartDate != nil || q.EndDate != nil {
		if q.StartDate != nil && q.EndDate != nil && q.EndDate.Before(*q.StartDate) {
			return nil, invalidField("endDate", "must not be before startDate")
		}
		filter.StartTime = q.StartDate
		filter.EndTime = q.EndDate
		return filter, nil
	}

	tf := strings.ToLower(strings.TrimSpace(q.Timeframe))
	if tf == "" {
		tf = "all"
	}
	window, ok := timeframes[tf]
	if !ok {
		return nil, invalidField("timeframe", "must be one of 24h, 7d, 30d, 90d, all")
	}
	if window > 0 {
		start := s.now().UTC().Add(-window)
		filter.StartTime = &start
	}
	return filter, nil
}

// Export returns every activity in [start, end) as a JSON document, oldest first
func (s *ActivityService) Export(ctx context.Context, start, end time.Time) ([]byte, int, error) {
	if !end.After(start) {
		return nil, 0, invalidField("endDate", "must be after startDate")
	}

	logs, err := s.activityRepo.ListRange(ctx, start, end)
	if err != nil {
		return nil, 0, err
	}

	doc := ActivityExport{
		From:        start.UTC().Format(time.RFC3339),
		To:          end.UTC().Format(time.RFC3339),
		GeneratedAt: s.now().UTC().Format(time.RFC3339),
		Count:       len(logs),
		Activities:  mapper.ToActivityDTOs(logs),
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, 0, fmt.Errorf("failed to encode activity export: %w", err)
	}
	return data, len(logs), nil
}

// ArchiveKey is the storage key of one day's archive
func ArchiveKey(day time.Time) string {
	day = day.UTC()
	return fmt.Sprintf("activity/%04d/%02d/%s.json", day.Year(), int(day.Month()), day.Format(dateLayout))
}

// ArchiveDay writes the activities of the UTC day containing day to storage.
// The log rows are kept.
func (s *ActivityService) ArchiveDay(ctx context.Context, day time.Time) (string, int, error) {
	if s.storage == nil {
		return "", 0, fmt.Errorf("activity archive storage is not configured")
	}

	day = day.UTC()
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	data, count, err := s.Export(ctx, start, start.AddDate(0, 0, 1))
	if err != nil {
		return "", 0, err
	}

	key := ArchiveKey(start)
	if _, err := storage.SaveBytes(ctx, s.storage, key, "application/json", data); err != nil {
		return "", 0, fmt.Errorf("failed to store activity archive: %w", err)
	}

	s.logger.Info("activity archived",
		zap.String("key", key),
		zap.Int("count", count))
	return key, count, nil
}
