package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/offer-pipeline-api/internal/auth"
	"github.com/straye-as/offer-pipeline-api/internal/cache"
	"github.com/straye-as/offer-pipeline-api/internal/domain"
	"github.com/straye-as/offer-pipeline-api/internal/events"
	"github.com/straye-as/offer-pipeline-api/internal/mapper"
	"github.com/straye-as/offer-pipeline-api/internal/reporting"
	"github.com/straye-as/offer-pipeline-api/internal/repository"
	"github.com/straye-as/offer-pipeline-api/internal/stage"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	reportGenerationKey = "reports:generation"
	defaultReportTTL    = 5 * time.Minute
)

// ReportFilter narrows the dashboard. Months are YYYY-MM and inclusive.
type ReportFilter struct {
	ZoneID      *uuid.UUID
	ProductType *domain.ProductType
	StartMonth  string
	EndMonth    string
}

// Dashboard is the cached pipeline overview
type Dashboard struct {
	Summary      reporting.Summary             `json:"summary"`
	Activity     domain.ActivityStats          `json:"activity"`
	Targets      []domain.TargetAchievementDTO `json:"targets"`
	CurrentMonth string                        `json:"currentMonth"`
	GeneratedAt  string                        `json:"generatedAt"`
	FromCache    bool                          `json:"fromCache"`
}

// ReportService computes the read-only reporting views. Results may trail the
// latest commits by one cache generation.
type ReportService struct {
	offerRepo    *repository.OfferRepository
	targetRepo   *repository.TargetRepository
	activityRepo *repository.ActivityRepository
	cache        cache.Cache
	ttl          time.Duration
	logger       *zap.Logger
	now          func() time.Time
}

// NewReportService creates a new ReportService. A nil cache disables caching.
func NewReportService(
	offerRepo *repository.OfferRepository,
	targetRepo *repository.TargetRepository,
	activityRepo *repository.ActivityRepository,
	c cache.Cache,
	ttl time.Duration,
	logger *zap.Logger,
) *ReportService {
	if ttl <= 0 {
		ttl = defaultReportTTL
	}
	return &ReportService{
		offerRepo:    offerRepo,
		targetRepo:   targetRepo,
		activityRepo: activityRepo,
		cache:        c,
		ttl:          ttl,
		logger:       logger,
		now:          time.Now,
	}
}

// SubscribeInvalidation drops cached views whenever an offer or target changes
func (s *ReportService) SubscribeInvalidation(m *events.Manager) {
	if m == nil || s.cache == nil {
		return
	}
	invalidate := func(ctx context.Context, e events.Event) error {
		return s.Invalidate(ctx)
	}
	m.Subscribe(events.EventOfferChanged, invalidate)
	m.Subscribe(events.EventTargetChanged, invalidate)
}

// Invalidate starts a new cache generation so every cached view is recomputed
func (s *ReportService) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	if _, err := s.cache.Incr(ctx, reportGenerationKey); err != nil {
		s.logger.Warn("failed to invalidate report cache", zap.Error(err))
		return err
	}
	return nil
}

// Dashboard summarizes the offers matching f for the caller's zone scope
func (s *ReportService) Dashboard(ctx context.Context, f ReportFilter) (*Dashboard, error) {
	if err := validateMonths(f.StartMonth, f.EndMonth); err != nil {
		return nil, err
	}

	key := s.cacheKey(ctx, "dashboard", f)
	if key != "" {
		var cached Dashboard
		if err := cache.GetJSON(ctx, s.cache, key, &cached); err == nil {
			cached.FromCache = true
			return &cached, nil
		} else if !errors.Is(err, cache.ErrNotFound) {
			s.logger.Warn("report cache read failed", zap.String("key", key), zap.Error(err))
		}
	}

	now := s.now().UTC()
	month := now.Format("2006-01")
	out := &Dashboard{CurrentMonth: month, GeneratedAt: now.Format(time.RFC3339)}

	var figures []reporting.OfferFigure
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		figures, err = s.offerRepo.ListFigures(gctx, repository.FigureFilter{
			ZoneID:      f.ZoneID,
			ProductType: f.ProductType,
			StartMonth:  f.StartMonth,
			EndMonth:    f.EndMonth,
		})
		return err
	})
	g.Go(func() error {
		var err error
		since := now.Add(-24 * time.Hour)
		out.Activity, err = s.activityRepo.Stats(gctx, &repository.ActivityFilter{StartTime: &since}, since)
		return err
	})
	g.Go(func() error {
		var err error
		out.Targets, err = s.TargetAchievement(gctx, repository.TargetFilter{
			ZoneID:      f.ZoneID,
			Period:      domain.PeriodMonthly,
			PeriodKey:   month,
			ProductType: f.ProductType,
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to build dashboard: %w", err)
	}
	out.Summary = reporting.Summarize(figures)

	if key != "" {
		if err := cache.SetJSON(ctx, s.cache, key, out, s.ttl); err != nil {
			s.logger.Warn("report cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return out, nil
}

// TargetAchievement compares each matching target with the offer value of
// the WON offers in its scope and period
func (s *ReportService) TargetAchievement(ctx context.Context, f repository.TargetFilter) ([]domain.TargetAchievementDTO, error) {
	targets, err := s.targetRepo.List(ctx, f)
	if err != nil {
		return nil, err
	}

	out := make([]domain.TargetAchievementDTO, 0, len(targets))
	for i := range targets {
		t := &targets[i]
		from, to := reporting.PeriodMonths(t.Period, t.PeriodKey)
		q := repository.WonValueQuery{
			ProductType: t.ProductType,
			FromMonth:   from,
			ToMonth:     to,
		}
		if t.Scope == domain.TargetScopeUser {
			q.CreatedByID = t.UserID
		} else {
			q.ZoneID = t.ZoneID
		}

		actual, err := s.offerRepo.SumWonValue(ctx, q)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.TargetAchievementDTO{
			Target:             mapper.ToTargetDTO(t),
			Actual:             actual.InexactFloat64(),
			AchievementPercent: reporting.Achievement(t.TargetValue, actual),
		})
	}
	return out, nil
}

// cacheKey builds the key of a view for the current generation and the
// caller's zone scope. It returns "" when caching is off.
func (s *ReportService) cacheKey(ctx context.Context, view string, f ReportFilter) string {
	if s.cache == nil {
		return ""
	}
	gen := int64(0)
	if raw, err := s.cache.Get(ctx, reportGenerationKey); err == nil {
		gen, _ = strconv.ParseInt(string(raw), 10, 64)
	}

	scope := "all"
	if user, ok := auth.FromContext(ctx); ok {
		if z := user.ZoneFilter(); z != nil {
			scope = z.String()
		} else if !user.IsAdmin() {
			scope = "none"
		}
	}

	parts := []string{"reports", view, strconv.FormatInt(gen, 10), scope}
	if f.ZoneID != nil {
		parts = append(parts, "zone="+f.ZoneID.String())
	}
	if f.ProductType != nil {
		parts = append(parts, "product="+string(*f.ProductType))
	}
	parts = append(parts, "from="+f.StartMonth, "to="+f.EndMonth)
	return strings.Join(parts, ":")
}

func validateMonths(start, end string) error {
	var errs fieldErrors
	if start != "" && !stage.ValidMonth(start) {
		errs.add("startMonth", "must be a month (YYYY-MM)")
	}
	if end != "" && !stage.ValidMonth(end) {
		errs.add("endMonth", "must be a month (YYYY-MM)")
	}
	if start != "" && end != "" && stage.ValidMonth(start) && stage.ValidMonth(end) && end < start {
		errs.add("endMonth", "must not be before startMonth")
	}
	return errs.err()
}
