package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/straye-as/offer-pipeline-api/internal/domain"
	"github.com/straye-as/offer-pipeline-api/internal/events"
	"github.com/straye-as/offer-pipeline-api/internal/repository"
	"github.com/straye-as/offer-pipeline-api/internal/service"
	"github.com/straye-as/offer-pipeline-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// failingRecorder simulates an activity log that cannot be written
type failingRecorder struct{}

func (failingRecorder) Record(ctx context.Context, tx *gorm.DB, entry service.AuditEntry) (*domain.ActivityLog, error) {
	return nil, errors.New("activity table unavailable")
}

// failOfferUpdates makes the first n UPDATEs of the offers table fail with a
// serialization error and reports how many were attempted
func failOfferUpdates(t *testing.T, db *gorm.DB, n int32) *int32 {
	t.Helper()
	var calls int32
	err := db.Callback().Update().Before("gorm:update").Register("test:serialization_failure", func(tx *gorm.DB) {
		if tx.Statement.Table != "offers" {
			return
		}
		if atomic.AddInt32(&calls, 1) <= n {
			_ = tx.AddError(&pgconn.PgError{Code: "40001", Message: "could not serialize access due to concurrent update"})
		}
	})
	require.NoError(t, err)
	return &calls
}

func TestOfferService_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.SeedFixtures(t, db)
	svc := createOfferService(t, db, nil, nil)
	ctx := createUserContext(f.User)
	part := testutil.CreateSparePart(t, db, "SP-100", 250)

	t.Run("creates an initial offer with reference number and log", func(t *testing.T) {
		req := &domain.CreateOfferRequest{
			Title:       "Crusher retrofit",
			CustomerID:  f.Customer.ID,
			ZoneID:      f.Zone.ID,
			ContactID:   f.Contact.ID,
			AssetIDs:    []uuid.UUID{f.Asset.ID},
			ProductType: domain.ProductRetrofitKit,
			LeadStatus:  domain.LeadHot,
			SpareParts:  []domain.OfferSparePartRequest{{SparePartID: part.ID, Quantity: 4}},
		}

		offer, err := svc.Create(ctx, req)
		require.NoError(t, err)

		year := time.Now().UTC().Year()
		assert.Equal(t, fmt.Sprintf("OFF-NO-%d-0001", year), offer.ReferenceNumber)
		assert.Equal(t, domain.StageInitial, offer.Stage)
		assert.Equal(t, 1, offer.Version)
		assert.Equal(t, "Sam Seller", offer.CreatedByName)
		require.Len(t, offer.Assets, 1)
		require.Len(t, offer.SpareParts, 1)
		assert.Equal(t, 1000.0, offer.SpareParts[0].LineTotal)
		require.NotNil(t, offer.Customer)
		assert.Equal(t, "Acme Mining", offer.Customer.Name)

		logs := listLogs(t, db, offer.ReferenceNumber)
		require.Len(t, logs, 1)
		assert.Equal(t, domain.ActionOfferCreated, logs[0].Action)
		assert.Equal(t, &f.User.ID, logs[0].UserID)

		details, err := domain.DecodeActivityDetails(logs[0].Action, logs[0].Details)
		require.NoError(t, err)
		created := details.(domain.OfferCreatedDetails)
		assert.Equal(t, "Crusher retrofit", created.Offer["title"])
		assert.Equal(t, "INITIAL", created.Offer["stage"])
	})

	t.Run("second offer in the zone gets the next number", func(t *testing.T) {
		offer, err := svc.Create(ctx, &domain.CreateOfferRequest{
			CustomerID:  f.Customer.ID,
			ZoneID:      f.Zone.ID,
			ContactID:   f.Contact.ID,
			AssetIDs:    []uuid.UUID{f.Asset.ID},
			ProductType: domain.ProductSPP,
			LeadStatus:  domain.LeadCold,
		})
		require.NoError(t, err)
		assert.Contains(t, offer.ReferenceNumber, "-0002")
	})

	t.Run("unknown asset is not found", func(t *testing.T) {
		missing := uuid.New()
		_, err := svc.Create(ctx, &domain.CreateOfferRequest{
			CustomerID:  f.Customer.ID,
			ZoneID:      f.Zone.ID,
			ContactID:   f.Contact.ID,
			AssetIDs:    []uuid.UUID{missing},
			ProductType: domain.ProductSPP,
			LeadStatus:  domain.LeadCold,
		})
		var nf *service.NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, "asset", nf.Entity)
		assert.Equal(t, missing.String(), nf.Key)
	})

	t.Run("starting past INITIAL requires that stage's fields", func(t *testing.T) {
		_, err := svc.Create(ctx, &domain.CreateOfferRequest{
			CustomerID:  f.Customer.ID,
			ZoneID:      f.Zone.ID,
			ContactID:   f.Contact.ID,
			AssetIDs:    []uuid.UUID{f.Asset.ID},
			ProductType: domain.ProductSPP,
			LeadStatus:  domain.LeadCold,
			Stage:       stagePtr(domain.StageProposalSent),
		})
		var ve *service.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, []string{"offerReferenceDate", "offerValue", "offerMonth", "probabilityPercentage", "poExpectedMonth"}, ve.Fields)
	})
}

func TestOfferService_Update_ToPOReceived(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.SeedFixtures(t, db)
	svc := createOfferService(t, db, nil, nil)
	ctx := createUserContext(f.User)
	offer := testutil.CreateOffer(t, db, f, testutil.AtStage(domain.StageNegotiation))

	poValue := decimal.NewFromInt(98000)
	updated, err := svc.Update(ctx, offer.ID, &domain.UpdateOfferRequest{
		Stage:    stagePtr(domain.StagePOReceived),
		PONumber: strPtr("PO-2025-118"),
		PODate:   strPtr("2025-05-02"),
		POValue:  &poValue,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StagePOReceived, updated.Stage)
	assert.Equal(t, 2, updated.Version)
	assert.Equal(t, "2025-05-02", updated.PODate)

	logs := listLogs(t, db, offer.ReferenceNumber)
	require.Len(t, logs, 1)
	assert.Equal(t, domain.ActionOfferUpdated, logs[0].Action)

	details, err := domain.DecodeActivityDetails(logs[0].Action, logs[0].Details)
	require.NoError(t, err)
	changes := details.(domain.OfferUpdatedDetails).Changes
	assert.Equal(t, domain.FieldChange{From: "NEGOTIATION", To: "PO_RECEIVED"}, changes["stage"])
	assert.Equal(t, domain.FieldChange{From: nil, To: "PO-2025-118"}, changes["poNumber"])
	assert.Equal(t, domain.FieldChange{From: nil, To: "2025-05-02"}, changes["poDate"])
	assert.Equal(t, domain.FieldChange{From: nil, To: "98000"}, changes["poValue"])
	assert.Len(t, changes, 4)

	// PO_RECEIVED is not remark-bearing
	assert.Empty(t, updated.StageRemarks)
}

func TestOfferService_Update_Validation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.SeedFixtures(t, db)
	svc := createOfferService(t, db, nil, nil)
	ctx := createUserContext(f.User)

	t.Run("proposal without offer value names offerValue", func(t *testing.T) {
		offer := testutil.CreateOffer(t, db, f)
		_, err := svc.Update(ctx, offer.ID, &domain.UpdateOfferRequest{
			Stage:                 stagePtr(domain.StageProposalSent),
			OfferReferenceDate:    strPtr("2025-03-01"),
			OfferMonth:            strPtr("2025-03"),
			ProbabilityPercentage: intPtr(40),
			POExpectedMonth:       strPtr("2025-07"),
		})

		var ve *service.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.True(t, errors.Is(err, service.ErrInvalidInput))
		assert.Equal(t, []string{"offerValue"}, ve.Fields)

		stored := loadOffer(t, db, offer.ReferenceNumber)
		assert.Equal(t, domain.StageInitial, stored.Stage)
		assert.Equal(t, 1, stored.Version)
		assert.Empty(t, listLogs(t, db, offer.ReferenceNumber))
	})

	t.Run("every missing field is reported in canonical order", func(t *testing.T) {
		offer := testutil.CreateOffer(t, db, f)
		_, err := svc.Update(ctx, offer.ID, &domain.UpdateOfferRequest{Stage: stagePtr(domain.StageOrderBooked)})

		var ve *service.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, []string{
			"offerReferenceDate", "offerValue", "offerMonth", "probabilityPercentage", "poExpectedMonth",
			"poNumber", "poDate", "poValue", "bookingDateInSap",
		}, ve.Fields)
	})

	t.Run("lost needs remarks", func(t *testing.T) {
		offer := testutil.CreateOffer(t, db, f, testutil.AtStage(domain.StageNegotiation))

		_, err := svc.Update(ctx, offer.ID, &domain.UpdateOfferRequest{Stage: stagePtr(domain.StageLost)})
		var ve *service.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, []string{"remarks"}, ve.Fields)

		lost, err := svc.Update(ctx, offer.ID, &domain.UpdateOfferRequest{
			Stage:   stagePtr(domain.StageLost),
			Remarks: strPtr("Lost to competitor"),
		})
		require.NoError(t, err)
		assert.Equal(t, domain.StageLost, lost.Stage)
		require.Len(t, lost.StageRemarks, 1)
		assert.Equal(t, domain.StageLost, lost.StageRemarks[0].Stage)
		assert.Equal(t, "Lost to competitor", lost.StageRemarks[0].Content)
		assert.Equal(t, "Sam Seller", lost.StageRemarks[0].AuthorName)
	})

	t.Run("closed offers cannot move", func(t *testing.T) {
		offer := testutil.CreateOffer(t, db, f, testutil.AtStage(domain.StageWon))
		_, err := svc.Update(ctx, offer.ID, &domain.UpdateOfferRequest{Stage: stagePtr(domain.StageNegotiation)})

		var ve *service.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Contains(t, ve.Fields, "stage")
	})

	t.Run("malformed values are reported together", func(t *testing.T) {
		offer := testutil.CreateOffer(t, db, f)
		negative := decimal.NewFromInt(-5)
		_, err := svc.Update(ctx, offer.ID, &domain.UpdateOfferRequest{
			OfferValue:            &negative,
			OfferMonth:            strPtr("March"),
			ProbabilityPercentage: intPtr(150),
		})

		var ve *service.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, []string{"offerValue", "offerMonth", "probabilityPercentage"}, ve.Fields)
	})

	t.Run("contact must belong to the customer", func(t *testing.T) {
		offer := testutil.CreateOffer(t, db, f)
		other := testutil.CreateCustomer(t, db, "Other Corp", &f.Zone.ID)
		_, err := svc.Update(ctx, offer.ID, &domain.UpdateOfferRequest{CustomerID: &other.ID})

		var ve *service.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, []string{"contactId"}, ve.Fields)
	})
}

func TestOfferService_Update_NoOp(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.SeedFixtures(t, db)
	svc := createOfferService(t, db, nil, nil)
	ctx := createUserContext(f.User)
	offer := testutil.CreateOffer(t, db, f, testutil.AtStage(domain.StageNegotiation))

	sameValue := decimal.RequireFromString("100000.00")
	result, err := svc.Update(ctx, offer.ID, &domain.UpdateOfferRequest{
		Title:              strPtr("  Test offer "),
		OfferValue:         &sameValue,
		OfferReferenceDate: strPtr("2025-03-01T00:00:00Z"),
		AssetIDs:           []uuid.UUID{f.Asset.ID, f.Asset.ID},
		Remarks:            strPtr("   "),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Version)
	assert.Empty(t, listLogs(t, db, offer.ReferenceNumber))
}

func TestOfferService_Update_Conflict(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.SeedFixtures(t, db)
	svc := createOfferService(t, db, nil, nil)
	ctx := createUserContext(f.User)
	offer := testutil.CreateOffer(t, db, f)

	_, err := svc.Update(ctx, offer.ID, &domain.UpdateOfferRequest{Version: intPtr(1), Title: strPtr("First")})
	require.NoError(t, err)

	_, err = svc.Update(ctx, offer.ID, &domain.UpdateOfferRequest{Version: intPtr(1), Title: strPtr("Second")})
	var ce *service.ConflictError
	require.ErrorAs(t, err, &ce)
	assert.True(t, errors.Is(err, service.ErrConflict))
	assert.Equal(t, 1, ce.Expected)
	assert.Equal(t, 2, ce.Actual)

	stored := loadOffer(t, db, offer.ReferenceNumber)
	assert.Equal(t, "First", stored.Title)
	assert.Len(t, listLogs(t, db, offer.ReferenceNumber), 1)
}

func TestOfferService_Update_AuditFailureRollsBack(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.SeedFixtures(t, db)
	svc := createOfferService(t, db, failingRecorder{}, nil)
	ctx := createUserContext(f.User)
	offer := testutil.CreateOffer(t, db, f, testutil.AtStage(domain.StageNegotiation))

	_, err := svc.Update(ctx, offer.ID, &domain.UpdateOfferRequest{
		Title:    strPtr("Should not stick"),
		Stage:    stagePtr(domain.StageLost),
		Remarks:  strPtr("Budget cut"),
		AssetIDs: []uuid.UUID{testutil.CreateAsset(t, db, f.Customer.ID, "SN-9").ID},
	})

	var af *service.AuditFailureError
	require.ErrorAs(t, err, &af)
	assert.True(t, errors.Is(err, service.ErrAuditFailure))
	assert.Equal(t, domain.ActionOfferUpdated, af.Action)

	stored, err := repository.NewOfferRepository(db).GetByID(context.Background(), offer.ID)
	require.NoError(t, err)
	assert.Equal(t, "Test offer", stored.Title)
	assert.Equal(t, domain.StageNegotiation, stored.Stage)
	assert.Equal(t, 1, stored.Version)
	require.Len(t, stored.Assets, 1)
	assert.Equal(t, "SN-1001", stored.Assets[0].SerialNumber)
	assert.Empty(t, stored.StageRemarks)
	assert.Empty(t, listLogs(t, db, offer.ReferenceNumber))
}

func TestOfferService_Update_RetriesTransientErrors(t *testing.T) {
	t.Run("succeeds after one serialization failure", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		f := testutil.SeedFixtures(t, db)
		svc := createOfferService(t, db, nil, nil)
		offer := testutil.CreateOffer(t, db, f)
		calls := failOfferUpdates(t, db, 1)

		updated, err := svc.Update(createUserContext(f.User), offer.ID, &domain.UpdateOfferRequest{Title: strPtr("Retried")})
		require.NoError(t, err)
		assert.Equal(t, "Retried", updated.Title)
		assert.Equal(t, 2, updated.Version)
		assert.Equal(t, int32(2), atomic.LoadInt32(calls))
		assert.Len(t, listLogs(t, db, offer.ReferenceNumber), 1)
	})

	t.Run("surfaces a storage error when retries run out", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		f := testutil.SeedFixtures(t, db)
		svc := createOfferService(t, db, nil, nil)
		offer := testutil.CreateOffer(t, db, f)
		calls := failOfferUpdates(t, db, 100)

		_, err := svc.Update(createUserContext(f.User), offer.ID, &domain.UpdateOfferRequest{Title: strPtr("Never")})
		var se *service.StorageError
		require.ErrorAs(t, err, &se)
		assert.True(t, errors.Is(err, service.ErrStorage))
		assert.Equal(t, "update", se.Op)
		assert.Equal(t, int32(4), atomic.LoadInt32(calls))
		assert.Empty(t, listLogs(t, db, offer.ReferenceNumber))
	})
}

func TestOfferService_ZoneScoping(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.SeedFixtures(t, db)
	svc := createOfferService(t, db, nil, nil)
	offer := testutil.CreateOffer(t, db, f)

	south := testutil.CreateZone(t, db, "South", "SO")
	outsider := testutil.CreateUser(t, db, "south@example.com", "Sid South", domain.RoleZoneUser, &south.ID)
	ctx := createUserContext(outsider)

	_, err := svc.GetByID(ctx, offer.ID)
	assert.True(t, errors.Is(err, service.ErrNotFound))

	_, err = svc.Update(ctx, offer.ID, &domain.UpdateOfferRequest{Title: strPtr("Hijack")})
	assert.True(t, errors.Is(err, service.ErrNotFound))

	_, err = svc.Update(createUserContext(f.User), offer.ID, &domain.UpdateOfferRequest{ZoneID: &south.ID})
	assert.True(t, errors.Is(err, service.ErrPermissionDenied))
}

func TestOfferService_UpdateStatus(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.SeedFixtures(t, db)
	svc := createOfferService(t, db, nil, nil)
	ctx := createUserContext(f.User)

	t.Run("closing as lost stores notes as remarks", func(t *testing.T) {
		offer := testutil.CreateOffer(t, db, f, testutil.AtStage(domain.StageFinalApproval))
		hot := domain.LeadHot

		result, err := svc.UpdateStatus(ctx, offer.ID, &domain.UpdateOfferStatusRequest{
			Stage:      stagePtr(domain.StageLost),
			LeadStatus: &hot,
			Notes:      "Customer postponed the project",
		})
		require.NoError(t, err)
		assert.Equal(t, domain.StageLost, result.Stage)
		assert.Equal(t, "Customer postponed the project", result.Remarks)
		require.Len(t, result.StageRemarks, 1)

		logs := listLogs(t, db, offer.ReferenceNumber)
		require.Len(t, logs, 1)
		details, err := domain.DecodeActivityDetails(logs[0].Action, logs[0].Details)
		require.NoError(t, err)
		assert.Equal(t, domain.OfferStatusUpdatedDetails{
			FromStage:  domain.StageFinalApproval,
			ToStage:    domain.StageLost,
			FromStatus: domain.LeadWarm,
			ToStatus:   domain.LeadHot,
			Notes:      "Customer postponed the project",
		}, details)
	})

	t.Run("nothing to do writes nothing", func(t *testing.T) {
		offer := testutil.CreateOffer(t, db, f)
		_, err := svc.UpdateStatus(ctx, offer.ID, &domain.UpdateOfferStatusRequest{Stage: stagePtr(domain.StageInitial)})
		require.NoError(t, err)
		assert.Empty(t, listLogs(t, db, offer.ReferenceNumber))
	})
}

func TestOfferService_AddNoteAndDelete(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.SeedFixtures(t, db)
	manager := events.NewManager(true, zap.NewNop())
	received := make(chan events.OfferChangedData, 4)
	manager.Subscribe(events.EventOfferChanged, func(ctx context.Context, e events.Event) error {
		received <- e.Data.(events.OfferChangedData)
		return nil
	})
	t.Cleanup(func() { _ = manager.Shutdown(context.Background()) })

	svc := createOfferService(t, db, nil, manager)
	ctx := createUserContext(f.User)
	offer := testutil.CreateOffer(t, db, f, testutil.AtStage(domain.StageNegotiation))

	_, err := svc.AddNote(ctx, offer.ID, &domain.AddStageRemarkRequest{Content: "  "})
	assert.True(t, errors.Is(err, service.ErrInvalidInput))

	noted, err := svc.AddNote(ctx, offer.ID, &domain.AddStageRemarkRequest{Content: "Called the buyer"})
	require.NoError(t, err)
	require.Len(t, noted.StageRemarks, 1)
	assert.Equal(t, domain.StageNegotiation, noted.StageRemarks[0].Stage)
	assert.Equal(t, 1, noted.Version)

	err = svc.Delete(ctx, offer.ID, intPtr(3))
	var ce *service.ConflictError
	require.ErrorAs(t, err, &ce)

	require.NoError(t, svc.Delete(ctx, offer.ID, nil))
	_, err = svc.GetByID(ctx, offer.ID)
	assert.True(t, errors.Is(err, service.ErrNotFound))

	logs := listLogs(t, db, offer.ReferenceNumber)
	require.Len(t, logs, 2)
	assert.Equal(t, domain.ActionOfferDeleted, logs[0].Action)
	assert.Equal(t, domain.ActionOfferNoteAdded, logs[1].Action)

	var actions []domain.ActivityAction
	for i := 0; i < 2; i++ {
		select {
		case got := <-received:
			assert.Equal(t, offer.ID, got.OfferID)
			actions = append(actions, got.Action)
		case <-time.After(2 * time.Second):
			t.Fatal("offer.changed was not published")
		}
	}
	assert.ElementsMatch(t, []domain.ActivityAction{domain.ActionOfferNoteAdded, domain.ActionOfferDeleted}, actions)
}

func TestOfferService_List(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.SeedFixtures(t, db)
	svc := createOfferService(t, db, nil, nil)
	ctx := createUserContext(f.User)

	for i := 0; i < 3; i++ {
		testutil.CreateOffer(t, db, f)
	}

	page, err := svc.List(ctx, repository.OfferFilters{}, repository.DefaultSortConfig(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, 2, page.TotalPages)
	assert.Len(t, page.Data.([]domain.OfferDTO), 2)
}
