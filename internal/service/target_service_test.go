package service_test

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/straye-as/offer-pipeline-api/internal/domain"
	"github.com/straye-as/offer-pipeline-api/internal/repository"
	"github.com/straye-as/offer-pipeline-api/internal/service"
	"github.com/straye-as/offer-pipeline-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func createTargetService(db *gorm.DB) *service.TargetService {
	return service.NewTargetService(
		createTxRunner(db),
		repository.NewTargetRepository(db),
		repository.NewZoneRepository(db),
		repository.NewUserRepository(db),
		createAuditRecorder(db),
		nil,
		zap.NewNop(),
	)
}

func targetLogs(t *testing.T, db *gorm.DB) []domain.ActivityLog {
	t.Helper()
	var logs []domain.ActivityLog
	require.NoError(t, db.Where("entity_type = ?", domain.EntityTarget).Order("created_at ASC").Find(&logs).Error)
	return logs
}

func TestTargetService_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.SeedFixtures(t, db)
	svc := createTargetService(db)
	ctx := createUserContext(f.User)

	t.Run("zone target is logged", func(t *testing.T) {
		target, err := svc.Create(ctx, &domain.CreateTargetRequest{
			Scope:       domain.TargetScopeZone,
			ZoneID:      &f.Zone.ID,
			Period:      domain.PeriodMonthly,
			PeriodKey:   "2025-03",
			TargetValue: decimal.NewFromInt(1000000),
		})
		require.NoError(t, err)
		assert.Equal(t, "North", target.ZoneName)
		assert.Equal(t, 1000000.0, target.TargetValue)

		logs := targetLogs(t, db)
		require.Len(t, logs, 1)
		assert.Equal(t, domain.ActionTargetCreated, logs[0].Action)
		assert.Equal(t, &target.ID, logs[0].EntityID)
		assert.JSONEq(t, `{"scope":"ZONE","period":"MONTHLY","periodKey":"2025-03","targetValue":"1000000"}`, logs[0].Details)
	})

	t.Run("user target takes the user's zone", func(t *testing.T) {
		target, err := svc.Create(ctx, &domain.CreateTargetRequest{
			Scope:       domain.TargetScopeUser,
			UserID:      &f.User.ID,
			Period:      domain.PeriodYearly,
			PeriodKey:   "2025",
			TargetValue: decimal.NewFromInt(500000),
		})
		require.NoError(t, err)
		assert.Equal(t, &f.Zone.ID, target.ZoneID)
		assert.Equal(t, "Sam Seller", target.UserName)
	})

	t.Run("duplicate is a conflict", func(t *testing.T) {
		_, err := svc.Create(ctx, &domain.CreateTargetRequest{
			Scope:       domain.TargetScopeZone,
			ZoneID:      &f.Zone.ID,
			Period:      domain.PeriodMonthly,
			PeriodKey:   "2025-03",
			TargetValue: decimal.NewFromInt(1),
		})
		assert.True(t, errors.Is(err, service.ErrConflict))
		assert.Len(t, targetLogs(t, db), 2)
	})

	t.Run("invalid requests", func(t *testing.T) {
		tests := []struct {
			name   string
			req    domain.CreateTargetRequest
			fields []string
		}{
			{
				name:   "zone target without zone",
				req:    domain.CreateTargetRequest{Scope: domain.TargetScopeZone, Period: domain.PeriodMonthly, PeriodKey: "2025-01"},
				fields: []string{"zoneId"},
			},
			{
				name:   "monthly key that is a year",
				req:    domain.CreateTargetRequest{Scope: domain.TargetScopeZone, ZoneID: &f.Zone.ID, Period: domain.PeriodMonthly, PeriodKey: "2025"},
				fields: []string{"periodKey"},
			},
			{
				name: "negative value and unknown product",
				req: domain.CreateTargetRequest{
					Scope: domain.TargetScopeZone, ZoneID: &f.Zone.ID, Period: domain.PeriodYearly, PeriodKey: "2025",
					ProductType: "TOASTER", TargetValue: decimal.NewFromInt(-1),
				},
				fields: []string{"productType", "targetValue"},
			},
			{
				name:   "unknown scope and period",
				req:    domain.CreateTargetRequest{Scope: "TEAM", Period: "WEEKLY", PeriodKey: "2025-W01"},
				fields: []string{"scope", "period"},
			},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				req := tt.req
				_, err := svc.Create(ctx, &req)
				var ve *service.ValidationError
				require.ErrorAs(t, err, &ve)
				assert.Equal(t, tt.fields, ve.Fields)
			})
		}
	})

	t.Run("unknown user is not found", func(t *testing.T) {
		missing := uuid.New()
		_, err := svc.Create(ctx, &domain.CreateTargetRequest{
			Scope: domain.TargetScopeUser, UserID: &missing, Period: domain.PeriodYearly, PeriodKey: "2026",
		})
		assert.True(t, errors.Is(err, service.ErrNotFound))
	})

	t.Run("other zones are off limits", func(t *testing.T) {
		south := testutil.CreateZone(t, db, "South", "SO")
		_, err := svc.Create(ctx, &domain.CreateTargetRequest{
			Scope: domain.TargetScopeZone, ZoneID: &south.ID, Period: domain.PeriodYearly, PeriodKey: "2025",
		})
		assert.True(t, errors.Is(err, service.ErrPermissionDenied))
	})
}

func TestTargetService_UpdateAndList(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.SeedFixtures(t, db)
	svc := createTargetService(db)
	ctx := createUserContext(f.User)

	created, err := svc.Create(ctx, &domain.CreateTargetRequest{
		Scope:       domain.TargetScopeZone,
		ZoneID:      &f.Zone.ID,
		Period:      domain.PeriodMonthly,
		PeriodKey:   "2025-03",
		TargetValue: decimal.NewFromInt(1000000),
	})
	require.NoError(t, err)

	t.Run("same value is a no-op", func(t *testing.T) {
		same := decimal.RequireFromString("1000000.00")
		_, err := svc.Update(ctx, created.ID, &domain.UpdateTargetRequest{TargetValue: &same})
		require.NoError(t, err)
		assert.Len(t, targetLogs(t, db), 1)
	})

	t.Run("new value is logged with its diff", func(t *testing.T) {
		value := decimal.NewFromInt(1200000)
		updated, err := svc.Update(ctx, created.ID, &domain.UpdateTargetRequest{TargetValue: &value})
		require.NoError(t, err)
		assert.Equal(t, 1200000.0, updated.TargetValue)

		logs := targetLogs(t, db)
		require.Len(t, logs, 2)
		assert.Equal(t, domain.ActionTargetUpdated, logs[1].Action)

		details, err := domain.DecodeActivityDetails(logs[1].Action, logs[1].Details)
		require.NoError(t, err)
		assert.Equal(t, domain.FieldChange{From: "1000000", To: "1200000"}, details.(domain.TargetDetails).Changes["targetValue"])
	})

	t.Run("unknown target", func(t *testing.T) {
		value := decimal.NewFromInt(1)
		_, err := svc.Update(ctx, uuid.New(), &domain.UpdateTargetRequest{TargetValue: &value})
		assert.True(t, errors.Is(err, service.ErrNotFound))
	})

	t.Run("list is zone scoped", func(t *testing.T) {
		list, err := svc.List(ctx, repository.TargetFilter{})
		require.NoError(t, err)
		assert.Len(t, list, 1)

		south := testutil.CreateZone(t, db, "South", "SO")
		outsider := testutil.CreateUser(t, db, "south@example.com", "Sid South", domain.RoleZoneUser, &south.ID)
		list, err = svc.List(createUserContext(outsider), repository.TargetFilter{})
		require.NoError(t, err)
		assert.Empty(t, list)

		_, err = svc.GetByID(createUserContext(outsider), created.ID)
		assert.True(t, errors.Is(err, service.ErrNotFound))
	})
}
