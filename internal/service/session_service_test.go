package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/straye-as/offer-pipeline-api/internal/auth"
	"github.com/straye-as/offer-pipeline-api/internal/domain"
	"github.com/straye-as/offer-pipeline-api/internal/repository"
	"github.com/straye-as/offer-pipeline-api/internal/service"
	"github.com/straye-as/offer-pipeline-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSessionService(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.SeedFixtures(t, db)
	svc := service.NewSessionService(createTxRunner(db), repository.NewUserRepository(db), createAuditRecorder(db), zap.NewNop())
	ctx := createUserContext(f.User)

	t.Run("login stamps the user and is logged", func(t *testing.T) {
		require.NoError(t, svc.RecordLogin(ctx, " password "))

		var user domain.User
		require.NoError(t, db.First(&user, "id = ?", f.User.ID).Error)
		assert.NotNil(t, user.LastLoginAt)

		var logs []domain.ActivityLog
		require.NoError(t, db.Where("action = ?", domain.ActionUserLogin).Find(&logs).Error)
		require.Len(t, logs, 1)
		assert.Equal(t, domain.EntityUser, logs[0].EntityType)
		assert.Equal(t, &f.User.ID, logs[0].EntityID)
		assert.JSONEq(t, `{"method":"password"}`, logs[0].Details)
	})

	t.Run("logout is logged", func(t *testing.T) {
		require.NoError(t, svc.RecordLogout(ctx, ""))
		var count int64
		require.NoError(t, db.Model(&domain.ActivityLog{}).Where("action = ?", domain.ActionUserLogout).Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})

	t.Run("anonymous callers are rejected", func(t *testing.T) {
		err := svc.RecordLogin(context.Background(), "")
		assert.True(t, errors.Is(err, service.ErrUnauthorized))
	})

	t.Run("me", func(t *testing.T) {
		me, err := svc.Me(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Sam Seller", me.Name)
		assert.Equal(t, domain.RoleZoneManager, me.Role)

		sys, err := svc.Me(auth.WithUserContext(context.Background(), auth.SystemUser()))
		require.NoError(t, err)
		assert.True(t, sys.System)
		assert.Equal(t, "System", sys.Name)
	})

	t.Run("me falls back to the email when the subject is unknown", func(t *testing.T) {
		me, err := svc.Me(auth.WithUserContext(context.Background(), &auth.UserContext{
			UserID:      uuid.New(),
			DisplayName: "From Token",
			Email:       f.User.Email,
			Role:        domain.RoleZoneUser,
		}))
		require.NoError(t, err)
		assert.Equal(t, f.User.ID, me.ID)
		assert.Equal(t, "Sam Seller", me.Name)
	})
}
