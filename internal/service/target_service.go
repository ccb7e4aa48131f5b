package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/straye-as/offer-pipeline-api/internal/auth"
	"github.com/straye-as/offer-pipeline-api/internal/changes"
	"github.com/straye-as/offer-pipeline-api/internal/domain"
	"github.com/straye-as/offer-pipeline-api/internal/events"
	"github.com/straye-as/offer-pipeline-api/internal/mapper"
	"github.com/straye-as/offer-pipeline-api/internal/metrics"
	"github.com/straye-as/offer-pipeline-api/internal/repository"
	"github.com/straye-as/offer-pipeline-api/internal/stage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var yearKey = regexp.MustCompile(`^\d{4}$`)

// TargetService manages sales targets. Every write is logged like an offer
// mutation.
type TargetService struct {
	txRunner   *TxRunner
	targetRepo *repository.TargetRepository
	zoneRepo   *repository.ZoneRepository
	userRepo   *repository.UserRepository
	recorder   Recorder
	events     *events.Manager
	logger     *zap.Logger
}

func NewTargetService(
	txRunner *TxRunner,
	targetRepo *repository.TargetRepository,
	zoneRepo *repository.ZoneRepository,
	userRepo *repository.UserRepository,
	recorder Recorder,
	eventManager *events.Manager,
	logger *zap.Logger,
) *TargetService {
	return &TargetService{
		txRunner:   txRunner,
		targetRepo: targetRepo,
		zoneRepo:   zoneRepo,
		userRepo:   userRepo,
		recorder:   recorder,
		events:     eventManager,
		logger:     logger,
	}
}

// Create adds a target. USER targets take the zone of their user so zone
// scoping applies to them too.
func (s *TargetService) Create(ctx context.Context, req *domain.CreateTargetRequest) (*domain.TargetDTO, error) {
	target, err := targetFromRequest(req)
	if err != nil {
		return nil, err
	}
	if user, ok := auth.FromContext(ctx); ok {
		target.CreatedByID = user.ActorID()
	}

	err = s.txRunner.Run(ctx, "create_target", func(tx *gorm.DB) error {
		target.ID = uuid.Nil
		if err := s.resolveOwner(ctx, tx, target); err != nil {
			return err
		}

		repo := s.targetRepo.WithTx(tx)
		dup, err := repo.FindDuplicate(ctx, target)
		if err != nil {
			return fmt.Errorf("failed to check for duplicate target: %w", err)
		}
		if dup != nil {
			return fmt.Errorf("%w: target %s already covers this scope and period", ErrConflict, dup.ID)
		}
		if err := repo.Create(ctx, target); err != nil {
			return fmt.Errorf("failed to create target: %w", err)
		}

		return recordAudit(ctx, s.recorder, tx, AuditEntry{
			Action:     domain.ActionTargetCreated,
			EntityType: domain.EntityTarget,
			EntityID:   &target.ID,
			ZoneID:     target.ZoneID,
			Details: domain.TargetDetails{
				Scope:       target.Scope,
				Period:      target.Period,
				PeriodKey:   target.PeriodKey,
				ProductType: target.ProductType,
				TargetValue: target.TargetValue.String(),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, target.ID, domain.ActionTargetCreated)
	return s.GetByID(ctx, target.ID)
}

// Update changes the value or product type of a target. An update that
// changes nothing writes nothing.
func (s *TargetService) Update(ctx context.Context, id uuid.UUID, req *domain.UpdateTargetRequest) (*domain.TargetDTO, error) {
	if req.TargetValue != nil && req.TargetValue.IsNegative() {
		return nil, invalidField("targetValue", "must not be negative")
	}
	if req.ProductType != nil && *req.ProductType != "" && !req.ProductType.IsValid() {
		return nil, invalidField(stage.FieldProductType, "unknown product type")
	}

	changed := false
	err := s.txRunner.Run(ctx, "update_target", func(tx *gorm.DB) error {
		changed = false
		repo := s.targetRepo.WithTx(tx)
		current, err := repo.GetByID(ctx, id)
		if err != nil {
			return lookupError("target", id, err)
		}
		if current.ZoneID != nil && !repository.HasZoneAccess(ctx, *current.ZoneID) {
			return notFound("target", id)
		}

		prev := changes.Snapshot{"targetValue": current.TargetValue, "productType": string(current.ProductType)}
		next := changes.Snapshot{"targetValue": current.TargetValue, "productType": string(current.ProductType)}
		columns := map[string]interface{}{}
		if req.TargetValue != nil {
			next["targetValue"] = *req.TargetValue
			columns["target_value"] = *req.TargetValue
		}
		if req.ProductType != nil {
			next["productType"] = string(*req.ProductType)
			columns["product_type"] = *req.ProductType
		}

		diff := changes.Diff(prev, next)
		if len(diff) == 0 {
			return nil
		}
		if err := repo.UpdateColumns(ctx, id, columns); err != nil {
			return lookupError("target", id, err)
		}

		value := current.TargetValue
		if req.TargetValue != nil {
			value = *req.TargetValue
		}
		product := current.ProductType
		if req.ProductType != nil {
			product = *req.ProductType
		}
		err = recordAudit(ctx, s.recorder, tx, AuditEntry{
			Action:     domain.ActionTargetUpdated,
			EntityType: domain.EntityTarget,
			EntityID:   &current.ID,
			ZoneID:     current.ZoneID,
			Details: domain.TargetDetails{
				Updated:     true,
				Scope:       current.Scope,
				Period:      current.Period,
				PeriodKey:   current.PeriodKey,
				ProductType: product,
				TargetValue: value.String(),
				Changes:     diff,
			},
		})
		if err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.afterCommit(ctx, id, domain.ActionTargetUpdated)
	}
	return s.GetByID(ctx, id)
}

// GetByID returns a target visible to the caller
func (s *TargetService) GetByID(ctx context.Context, id uuid.UUID) (*domain.TargetDTO, error) {
	target, err := s.targetRepo.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError("target", id, err)
	}
	if target.ZoneID != nil && !repository.HasZoneAccess(ctx, *target.ZoneID) {
		return nil, notFound("target", id)
	}
	dto := mapper.ToTargetDTO(target)
	return &dto, nil
}

// List returns the targets matching f in the caller's zones
func (s *TargetService) List(ctx context.Context, f repository.TargetFilter) ([]domain.TargetDTO, error) {
	targets, err := s.targetRepo.List(ctx, f)
	if err != nil {
		return nil, err
	}
	dtos := make([]domain.TargetDTO, len(targets))
	for i := range targets {
		dtos[i] = mapper.ToTargetDTO(&targets[i])
	}
	return dtos, nil
}

// resolveOwner checks the zone or user a target belongs to
func (s *TargetService) resolveOwner(ctx context.Context, tx *gorm.DB, t *domain.Target) error {
	switch t.Scope {
	case domain.TargetScopeZone:
		if _, err := s.zoneRepo.WithTx(tx).GetByID(ctx, *t.ZoneID); err != nil {
			return lookupError("zone", *t.ZoneID, err)
		}
	case domain.TargetScopeUser:
		user, err := s.userRepo.WithTx(tx).GetByID(ctx, *t.UserID)
		if err != nil {
			return lookupError("user", *t.UserID, err)
		}
		t.ZoneID = user.ZoneID
	}
	if t.ZoneID != nil && !repository.HasZoneAccess(ctx, *t.ZoneID) {
		return fmt.Errorf("%w: zone %s", ErrPermissionDenied, *t.ZoneID)
	}
	return nil
}

func (s *TargetService) afterCommit(ctx context.Context, id uuid.UUID, action domain.ActivityAction) {
	metrics.ActivityLogs.WithLabelValues(string(action)).Inc()
	if s.events != nil {
		s.events.PublishTargetChanged(ctx, id)
	}
	s.logger.Info("target saved",
		zap.String("targetID", id.String()),
		zap.String("action", string(action)))
}

// targetFromRequest validates the request shape and builds an unsaved target
func targetFromRequest(req *domain.CreateTargetRequest) (*domain.Target, error) {
	var errs fieldErrors
	t := &domain.Target{
		Scope:       req.Scope,
		Period:      req.Period,
		PeriodKey:   strings.TrimSpace(req.PeriodKey),
		ProductType: req.ProductType,
		TargetValue: req.TargetValue,
	}

	switch t.Scope {
	case domain.TargetScopeZone:
		if req.ZoneID == nil || *req.ZoneID == uuid.Nil {
			errs.add("zoneId", "required for ZONE targets")
		} else {
			id := *req.ZoneID
			t.ZoneID = &id
		}
	case domain.TargetScopeUser:
		if req.UserID == nil || *req.UserID == uuid.Nil {
			errs.add("userId", "required for USER targets")
		} else {
			id := *req.UserID
			t.UserID = &id
		}
	default:
		errs.add("scope", "must be ZONE or USER")
	}

	switch t.Period {
	case domain.PeriodMonthly:
		if !stage.ValidMonth(t.PeriodKey) {
			errs.add("periodKey", "must be a month (YYYY-MM) for MONTHLY targets")
		}
	case domain.PeriodYearly:
		if !yearKey.MatchString(t.PeriodKey) {
			errs.add("periodKey", "must be a year (YYYY) for YEARLY targets")
		}
	default:
		errs.add("period", "must be MONTHLY or YEARLY")
	}

	if t.ProductType != "" && !t.ProductType.IsValid() {
		errs.add(stage.FieldProductType, "unknown product type")
	}
	if t.TargetValue.IsNegative() {
		errs.add("targetValue", "must not be negative")
	}

	if err := errs.err(); err != nil {
		return nil, err
	}
	return t, nil
}
