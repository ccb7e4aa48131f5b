package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/offer-pipeline-api/internal/domain"
	"github.com/straye-as/offer-pipeline-api/internal/repository"
	"github.com/straye-as/offer-pipeline-api/internal/service"
	"github.com/straye-as/offer-pipeline-api/internal/storage"
	"github.com/straye-as/offer-pipeline-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func insertLog(t *testing.T, db *gorm.DB, action domain.ActivityAction, ref string, userID *uuid.UUID, userName string, at time.Time) {
	t.Helper()
	log := &domain.ActivityLog{
		Action:          action,
		UserID:          userID,
		UserName:        userName,
		EntityType:      domain.EntityOffer,
		ReferenceNumber: ref,
		Details:         "{}",
		CreatedAt:       at.UTC(),
	}
	require.NoError(t, db.Create(log).Error)
}

func createActivityService(t *testing.T, db *gorm.DB) (*service.ActivityService, *storage.LocalStorage) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return service.NewActivityService(repository.NewActivityRepository(db), store, zap.NewNop()), store
}

func TestActivityService_ListByOffer(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.SeedFixtures(t, db)
	svc, _ := createActivityService(t, db)
	offers := createOfferService(t, db, nil, nil)
	ctx := createUserContext(f.User)

	offer := testutil.CreateOffer(t, db, f)
	for _, title := range []string{"One", "Two", "Three"} {
		_, err := offers.Update(ctx, offer.ID, &domain.UpdateOfferRequest{Title: strPtr(title)})
		require.NoError(t, err)
	}
	require.NoError(t, offers.Delete(ctx, offer.ID, nil))

	t.Run("pages newest first and survives deletion", func(t *testing.T) {
		resp, err := svc.ListByOffer(context.Background(), offer.ReferenceNumber, 1, 3)
		require.NoError(t, err)
		assert.True(t, resp.Success)
		assert.Equal(t, domain.Pagination{Total: 4, Page: 1, Limit: 3, Pages: 2}, resp.Pagination)
		require.Len(t, resp.Activities, 3)
		assert.Equal(t, domain.ActionOfferDeleted, resp.Activities[0].Action)
		assert.JSONEq(t, `{"changes":{"title":{"from":"Two","to":"Three"}}}`, string(resp.Activities[1].Details))
	})

	t.Run("unknown reference is empty", func(t *testing.T) {
		resp, err := svc.ListByOffer(context.Background(), "OFF-XX-2025-9999", 1, 20)
		require.NoError(t, err)
		assert.Empty(t, resp.Activities)
		assert.Equal(t, int64(0), resp.Pagination.Total)
	})

	t.Run("blank reference is rejected", func(t *testing.T) {
		_, err := svc.ListByOffer(context.Background(), " ", 1, 20)
		assert.True(t, errors.Is(err, service.ErrInvalidInput))
	})
}

func TestActivityService_ZoneScope(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.SeedFixtures(t, db)
	svc, _ := createActivityService(t, db)
	offers := createOfferService(t, db, nil, nil)
	owner := createUserContext(f.User)

	offer := testutil.CreateOffer(t, db, f)
	_, err := offers.Update(owner, offer.ID, &domain.UpdateOfferRequest{Title: strPtr("Crusher liners")})
	require.NoError(t, err)

	south := testutil.CreateZone(t, db, "South", "SO")
	outsider := createUserContext(testutil.CreateUser(t, db, "south@example.com", "Sid South", domain.RoleZoneUser, &south.ID))
	day := time.Now().UTC().Truncate(24 * time.Hour)

	t.Run("logs carry the offer's zone", func(t *testing.T) {
		logs := listLogs(t, db, offer.ReferenceNumber)
		require.Len(t, logs, 1)
		require.NotNil(t, logs[0].ZoneID)
		assert.Equal(t, f.Zone.ID, *logs[0].ZoneID)
	})

	t.Run("same zone reads the history", func(t *testing.T) {
		resp, err := svc.ListByOffer(owner, offer.ReferenceNumber, 1, 20)
		require.NoError(t, err)
		assert.Len(t, resp.Activities, 1)
	})

	t.Run("other zone sees nothing", func(t *testing.T) {
		history, err := svc.ListByOffer(outsider, offer.ReferenceNumber, 1, 20)
		require.NoError(t, err)
		assert.Empty(t, history.Activities)
		assert.Equal(t, int64(0), history.Pagination.Total)

		feed, err := svc.Feed(outsider, service.FeedQuery{})
		require.NoError(t, err)
		assert.Empty(t, feed.Activities)
		assert.Equal(t, int64(0), feed.Stats.Total)
		assert.Empty(t, feed.Analytics.ByAction)

		_, count, err := svc.Export(outsider, day, day.AddDate(0, 0, 1))
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})

	t.Run("admin sees every zone", func(t *testing.T) {
		feed, err := svc.Feed(adminContext(), service.FeedQuery{})
		require.NoError(t, err)
		assert.Equal(t, int64(1), feed.Stats.Total)
	})
}

func TestActivityService_Feed(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.SeedFixtures(t, db)
	svc, _ := createActivityService(t, db)
	now := time.Now().UTC()
	other := uuid.New()

	insertLog(t, db, domain.ActionOfferCreated, "OFF-NO-2025-0001", &f.User.ID, "Sam Seller", now.Add(-time.Hour))
	insertLog(t, db, domain.ActionOfferUpdated, "OFF-NO-2025-0001", &f.User.ID, "Sam Seller", now.Add(-30*time.Minute))
	insertLog(t, db, domain.ActionOfferStatusUpdated, "OFF-NO-2025-0002", &other, "Olga Owner", now.Add(-3*24*time.Hour))
	insertLog(t, db, domain.ActionUserLogin, "", &other, "Olga Owner", now.Add(-40*24*time.Hour))

	tests := []struct {
		name      string
		query     service.FeedQuery
		wantTotal int64
	}{
		{name: "everything", query: service.FeedQuery{}, wantTotal: 4},
		{name: "last 24 hours", query: service.FeedQuery{Timeframe: "24h"}, wantTotal: 2},
		{name: "last 7 days", query: service.FeedQuery{Timeframe: "7d"}, wantTotal: 3},
		{name: "last 90 days", query: service.FeedQuery{Timeframe: "90d"}, wantTotal: 4},
		{name: "search by user name", query: service.FeedQuery{Search: "olga"}, wantTotal: 2},
		{name: "search by reference", query: service.FeedQuery{Search: "0002"}, wantTotal: 1},
		{name: "by user", query: service.FeedQuery{UserID: &f.User.ID}, wantTotal: 2},
		{name: "explicit dates win over timeframe", query: service.FeedQuery{
			Timeframe: "24h",
			StartDate: ptrTime(now.Add(-50 * 24 * time.Hour)),
			EndDate:   ptrTime(now.Add(-2 * 24 * time.Hour)),
		}, wantTotal: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := svc.Feed(context.Background(), tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTotal, resp.Pagination.Total)
			assert.Equal(t, tt.wantTotal, resp.Stats.Total)
			assert.Len(t, resp.Activities, int(tt.wantTotal))
		})
	}

	t.Run("stats and analytics", func(t *testing.T) {
		resp, err := svc.Feed(context.Background(), service.FeedQuery{Timeframe: "all", Limit: 2})
		require.NoError(t, err)
		assert.Len(t, resp.Activities, 2)
		assert.Equal(t, 2, resp.Pagination.Pages)
		assert.Equal(t, int64(2), resp.Stats.UniqueUsers)
		assert.Equal(t, int64(1), resp.Stats.OfferUpdates)
		assert.Equal(t, int64(1), resp.Stats.StageChanges)
		assert.Len(t, resp.Analytics.ByAction, 4)
		require.NotEmpty(t, resp.Analytics.TopUsers)
		assert.Equal(t, int64(2), resp.Analytics.TopUsers[0].Count)
	})

	t.Run("bad parameters", func(t *testing.T) {
		bad := domain.ActivityAction("NOPE")
		_, err := svc.Feed(context.Background(), service.FeedQuery{Timeframe: "1y"})
		assert.True(t, errors.Is(err, service.ErrInvalidInput))
		_, err = svc.Feed(context.Background(), service.FeedQuery{Action: &bad})
		assert.True(t, errors.Is(err, service.ErrInvalidInput))
		_, err = svc.Feed(context.Background(), service.FeedQuery{StartDate: ptrTime(now), EndDate: ptrTime(now.Add(-time.Hour))})
		assert.True(t, errors.Is(err, service.ErrInvalidInput))
	})
}

func TestActivityService_ExportAndArchive(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.SeedFixtures(t, db)
	svc, store := createActivityService(t, db)

	day := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	insertLog(t, db, domain.ActionOfferCreated, "OFF-NO-2025-0001", &f.User.ID, "Sam Seller", day.Add(9*time.Hour))
	insertLog(t, db, domain.ActionOfferUpdated, "OFF-NO-2025-0001", &f.User.ID, "Sam Seller", day.Add(15*time.Hour))
	insertLog(t, db, domain.ActionOfferUpdated, "OFF-NO-2025-0001", &f.User.ID, "Sam Seller", day.Add(26*time.Hour))

	t.Run("export covers the half-open range", func(t *testing.T) {
		data, count, err := svc.Export(context.Background(), day, day.AddDate(0, 0, 1))
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		var doc service.ActivityExport
		require.NoError(t, json.Unmarshal(data, &doc))
		assert.Equal(t, 2, doc.Count)
		assert.Equal(t, "2025-03-14T00:00:00Z", doc.From)
		assert.Equal(t, domain.ActionOfferCreated, doc.Activities[0].Action)
	})

	t.Run("export rejects an empty range", func(t *testing.T) {
		_, _, err := svc.Export(context.Background(), day, day)
		assert.True(t, errors.Is(err, service.ErrInvalidInput))
	})

	t.Run("archive writes the day and keeps the rows", func(t *testing.T) {
		key, count, err := svc.ArchiveDay(context.Background(), day.Add(12*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, "activity/2025/03/2025-03-14.json", key)
		assert.Equal(t, 2, count)

		rc, err := store.Open(context.Background(), key)
		require.NoError(t, err)
		defer rc.Close()
		data, err := io.ReadAll(rc)
		require.NoError(t, err)

		var doc service.ActivityExport
		require.NoError(t, json.Unmarshal(data, &doc))
		assert.Len(t, doc.Activities, 2)
		assert.Equal(t, int64(3), testutil.CountRows(t, db, &domain.ActivityLog{}))
	})
}

func ptrTime(t time.Time) *time.Time { return &t }
