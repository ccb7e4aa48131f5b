package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/straye-as/offer-pipeline-api/internal/domain"
	"github.com/straye-as/offer-pipeline-api/internal/repository"
	"github.com/straye-as/offer-pipeline-api/internal/service"
	"github.com/straye-as/offer-pipeline-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestReferenceService(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.SeedFixtures(t, db)
	svc := service.NewReferenceService(
		repository.NewZoneRepository(db),
		repository.NewCustomerRepository(db),
		repository.NewSparePartRepository(db),
		zap.NewNop(),
	)
	south := testutil.CreateZone(t, db, "South", "SO")
	testutil.CreateCustomer(t, db, "Bergen Quarry", &south.ID)
	testutil.CreateSparePart(t, db, "SP-200", 80)
	testutil.CreateSparePart(t, db, "SP-100", 120)

	t.Run("zones follow the caller's scope", func(t *testing.T) {
		all, err := svc.ListZones(adminContext(), false)
		require.NoError(t, err)
		assert.Len(t, all, 2)

		mine, err := svc.ListZones(createUserContext(f.User), false)
		require.NoError(t, err)
		require.Len(t, mine, 1)
		assert.Equal(t, "NO", mine[0].Code)
	})

	t.Run("customers are searchable", func(t *testing.T) {
		page, err := svc.ListCustomers(context.Background(), 1, 10, "acme", nil)
		require.NoError(t, err)
		assert.Equal(t, int64(1), page.Total)
		assert.Equal(t, "Acme Mining", page.Data.([]domain.CustomerDTO)[0].Name)

		byZone, err := svc.ListCustomers(context.Background(), 1, 10, "", &south.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), byZone.Total)
	})

	t.Run("customer details carry contacts and assets", func(t *testing.T) {
		details, err := svc.GetCustomer(context.Background(), f.Customer.ID)
		require.NoError(t, err)
		require.Len(t, details.Contacts, 1)
		require.Len(t, details.Assets, 1)
		assert.Equal(t, "SN-1001", details.Assets[0].SerialNumber)

		_, err = svc.GetCustomer(context.Background(), uuid.New())
		assert.True(t, errors.Is(err, service.ErrNotFound))
	})

	t.Run("spare parts page", func(t *testing.T) {
		page, err := svc.ListSpareParts(context.Background(), 1, 1, "")
		require.NoError(t, err)
		assert.Equal(t, int64(2), page.Total)
		assert.Equal(t, 2, page.TotalPages)
		assert.Len(t, page.Data.([]domain.SparePartDTO), 1)
	})
}
