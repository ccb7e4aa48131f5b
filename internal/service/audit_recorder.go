package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/offer-pipeline-api/internal/auth"
	"github.com/straye-as/offer-pipeline-api/internal/domain"
	"github.com/straye-as/offer-pipeline-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AuditEntry is one activity log to write, optionally with a stage remark.
// ZoneID decides which zone users can read the log; logs without a zone are
// visible to admins only.
type AuditEntry struct {
	Action          domain.ActivityAction
	EntityType      string
	EntityID        *uuid.UUID
	ReferenceNumber string
	ZoneID          *uuid.UUID
	Details         domain.ActivityDetails
	Remark          *domain.StageRemark
}

// Recorder writes activity logs inside the caller's transaction. Every error
// it returns is an *AuditFailureError and the caller must roll back.
type Recorder interface {
	Record(ctx context.Context, tx *gorm.DB, entry AuditEntry) (*domain.ActivityLog, error)
}

// AuditRecorder is the database-backed Recorder
type AuditRecorder struct {
	activityRepo *repository.ActivityRepository
	remarkRepo   *repository.StageRemarkRepository
	logger       *zap.Logger
	now          func() time.Time
}

// NewAuditRecorder creates a new AuditRecorder
func NewAuditRecorder(
	activityRepo *repository.ActivityRepository,
	remarkRepo *repository.StageRemarkRepository,
	logger *zap.Logger,
) *AuditRecorder {
	return &AuditRecorder{
		activityRepo: activityRepo,
		remarkRepo:   remarkRepo,
		logger:       logger,
		now:          time.Now,
	}
}

// Record writes exactly one activity log, and the entry's stage remark if it
// has one, using tx. The actor and client metadata come from ctx; without a
// user in ctx the log has no user.
func (r *AuditRecorder) Record(ctx context.Context, tx *gorm.DB, entry AuditEntry) (*domain.ActivityLog, error) {
	action := entry.Action
	if err := validateEntry(entry); err != nil {
		return nil, &AuditFailureError{Action: action, Err: err}
	}

	details, err := json.Marshal(entry.Details)
	if err != nil {
		return nil, &AuditFailureError{Action: action, Err: fmt.Errorf("encode details: %w", err)}
	}

	client := auth.ClientInfoFromContext(ctx)
	log := &domain.ActivityLog{
		Action:          action,
		EntityType:      entry.EntityType,
		EntityID:        entry.EntityID,
		ReferenceNumber: entry.ReferenceNumber,
		ZoneID:          entry.ZoneID,
		Details:         string(details),
		IPAddress:       client.IPAddress,
		UserAgent:       client.UserAgent,
		RequestID:       client.RequestID,
		CreatedAt:       r.now().UTC(),
	}

	user, ok := auth.FromContext(ctx)
	if ok {
		log.UserID = user.ActorID()
		log.UserName = user.DisplayName
	}

	if entry.Remark != nil {
		remark := entry.Remark
		if ok && remark.AuthorID == nil && remark.AuthorName == "" {
			remark.AuthorID = user.ActorID()
			remark.AuthorName = user.DisplayName
		}
		if err := r.remarkRepo.WithTx(tx).Create(ctx, remark); err != nil {
			return nil, &AuditFailureError{Action: action, Err: fmt.Errorf("write stage remark: %w", err)}
		}
	}

	if err := r.activityRepo.WithTx(tx).Create(ctx, log); err != nil {
		r.logger.Error("failed to write activity log",
			zap.String("action", string(action)),
			zap.String("reference", entry.ReferenceNumber),
			zap.Error(err))
		return nil, &AuditFailureError{Action: action, Err: err}
	}

	return log, nil
}

// recordAudit writes entry with r and makes sure any failure is typed as an
// audit failure, so the transaction rolls back without retry
func recordAudit(ctx context.Context, r Recorder, tx *gorm.DB, entry AuditEntry) error {
	_, err := r.Record(ctx, tx, entry)
	if err == nil {
		return nil
	}
	var auditErr *AuditFailureError
	if errors.As(err, &auditErr) {
		return err
	}
	return &AuditFailureError{Action: entry.Action, Err: err}
}

func validateEntry(entry AuditEntry) error {
	if !entry.Action.IsValid() {
		return fmt.Errorf("unknown action %q", entry.Action)
	}
	if entry.Details == nil {
		return errors.New("details are required")
	}
	if got := entry.Details.Action(); got != entry.Action {
		return fmt.Errorf("details for %s recorded as %s", got, entry.Action)
	}
	if strings.TrimSpace(entry.EntityType) == "" {
		return errors.New("entity type is required")
	}
	if d, ok := entry.Details.(domain.OfferUpdatedDetails); ok && len(d.Changes) == 0 {
		return errors.New("offer update without changes")
	}
	if entry.Remark != nil && strings.TrimSpace(entry.Remark.Content) == "" {
		return errors.New("stage remark without content")
	}
	return nil
}
