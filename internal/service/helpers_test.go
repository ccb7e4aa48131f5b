package service_test

import (
	"context"
	"testing"

	"github.com/straye-as/offer-pipeline-api/internal/auth"
	"github.com/straye-as/offer-pipeline-api/internal/config"
	"github.com/straye-as/offer-pipeline-api/internal/domain"
	"github.com/straye-as/offer-pipeline-api/internal/events"
	"github.com/straye-as/offer-pipeline-api/internal/repository"
	"github.com/straye-as/offer-pipeline-api/internal/service"
	"github.com/straye-as/offer-pipeline-api/internal/stage"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func createTxRunner(db *gorm.DB) *service.TxRunner {
	return service.NewTxRunner(db, &config.PipelineConfig{MaxRetries: 3, RetryBaseDelayMs: 1}, zap.NewNop())
}

func createAuditRecorder(db *gorm.DB) *service.AuditRecorder {
	return service.NewAuditRecorder(
		repository.NewActivityRepository(db),
		repository.NewStageRemarkRepository(db),
		zap.NewNop(),
	)
}

// createOfferService wires an orchestrator over db. A nil recorder uses the
// database-backed one.
func createOfferService(t *testing.T, db *gorm.DB, recorder service.Recorder, eventManager *events.Manager) *service.OfferService {
	t.Helper()
	logger := zap.NewNop()
	if recorder == nil {
		recorder = createAuditRecorder(db)
	}
	return service.NewOfferService(
		createTxRunner(db),
		repository.NewOfferRepository(db),
		repository.NewCustomerRepository(db),
		repository.NewContactRepository(db),
		repository.NewZoneRepository(db),
		repository.NewAssetRepository(db),
		repository.NewSparePartRepository(db),
		service.NewNumberSequenceService(repository.NewNumberSequenceRepository(db), logger),
		recorder,
		stage.DefaultPolicy,
		eventManager,
		logger,
	)
}

func createUserContext(user *domain.User) context.Context {
	return auth.WithUserContext(context.Background(), &auth.UserContext{
		UserID:      user.ID,
		DisplayName: user.Name,
		Email:       user.Email,
		Role:        user.Role,
		ZoneID:      user.ZoneID,
	})
}

func listLogs(t *testing.T, db *gorm.DB, ref string) []domain.ActivityLog {
	t.Helper()
	logs, _, err := repository.NewActivityRepository(db).ListByReference(context.Background(), ref, 1, 100)
	require.NoError(t, err)
	return logs
}

func loadOffer(t *testing.T, db *gorm.DB, ref string) *domain.Offer {
	t.Helper()
	offer, err := repository.NewOfferRepository(db).GetByReferenceNumber(context.Background(), ref)
	require.NoError(t, err)
	return offer
}

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }

func stagePtr(s domain.OfferStage) *domain.OfferStage { return &s }
