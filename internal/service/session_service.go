package service

import (
	"context"
	"strings"
	"time"

	"github.com/straye-as/offer-pipeline-api/internal/auth"
	"github.com/straye-as/offer-pipeline-api/internal/domain"
	"github.com/straye-as/offer-pipeline-api/internal/mapper"
	"github.com/straye-as/offer-pipeline-api/internal/metrics"
	"github.com/straye-as/offer-pipeline-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SessionService records sign-ins and sign-outs of the authenticated caller
type SessionService struct {
	txRunner *TxRunner
	userRepo *repository.UserRepository
	recorder Recorder
	logger   *zap.Logger
	now      func() time.Time
}

func NewSessionService(txRunner *TxRunner, userRepo *repository.UserRepository, recorder Recorder, logger *zap.Logger) *SessionService {
	return &SessionService{
		txRunner: txRunner,
		userRepo: userRepo,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
	}
}

// Me describes the caller. Callers that are not stored users, such as API key
// clients, are described from their token alone.
func (s *SessionService) Me(ctx context.Context) (*domain.UserDTO, error) {
	user, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUnauthorized
	}
	if id := user.ActorID(); id != nil {
		stored, err := s.userRepo.GetByID(ctx, *id)
		// the identity provider's subject may differ from the stored ID
		if repository.IsNotFound(err) && user.Email != "" {
			stored, err = s.userRepo.GetByEmail(ctx, user.Email)
		}
		if err == nil {
			dto := mapper.ToUserDTO(stored)
			return &dto, nil
		}
		if !repository.IsNotFound(err) {
			return nil, err
		}
	}
	return &domain.UserDTO{
		ID:     user.UserID,
		Email:  user.Email,
		Name:   user.DisplayName,
		Role:   user.Role,
		ZoneID: user.ZoneID,
		System: user.System,
	}, nil
}

// RecordLogin writes USER_LOGIN and stamps the user's last login time
func (s *SessionService) RecordLogin(ctx context.Context, method string) error {
	return s.record(ctx, domain.SessionDetails{Method: strings.TrimSpace(method)})
}

// RecordLogout writes USER_LOGOUT
func (s *SessionService) RecordLogout(ctx context.Context, method string) error {
	return s.record(ctx, domain.SessionDetails{Logout: true, Method: strings.TrimSpace(method)})
}

func (s *SessionService) record(ctx context.Context, details domain.SessionDetails) error {
	user, ok := auth.FromContext(ctx)
	if !ok {
		return ErrUnauthorized
	}
	action := details.Action()

	err := s.txRunner.Run(ctx, strings.ToLower(string(action)), func(tx *gorm.DB) error {
		if id := user.ActorID(); id != nil && !details.Logout {
			err := s.userRepo.WithTx(tx).TouchLastLogin(ctx, *id, s.now())
			if err != nil && !repository.IsNotFound(err) {
				return err
			}
		}
		return recordAudit(ctx, s.recorder, tx, AuditEntry{
			Action:     action,
			EntityType: domain.EntityUser,
			EntityID:   user.ActorID(),
			ZoneID:     user.ZoneID,
			Details:    details,
		})
	})
	if err != nil {
		return err
	}

	metrics.ActivityLogs.WithLabelValues(string(action)).Inc()
	s.logger.Info("session recorded",
		zap.String("action", string(action)),
		zap.String("user", user.DisplayName))
	return nil
}
