// Package testutil provides an in-memory database and fixtures for tests.
package testutil

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/straye-as/offer-pipeline-api/internal/database"
	"github.com/straye-as/offer-pipeline-api/internal/domain"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// SetupTestDB opens a private in-memory SQLite database with the full schema.
// The pool is limited to one connection so the shared-cache database never
// reports table locks.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared", name, uuid.NewString()[:8])

	db, err := gorm.Open(sqlite.Open(dsn), database.GormConfig())
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.AutoMigrate(db))

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return db
}

// Fixtures is a minimal set of reference data offers can point at
type Fixtures struct {
	Zone     *domain.Zone
	Customer *domain.Customer
	Contact  *domain.Contact
	Asset    *domain.Asset
	User     *domain.User
}

// SeedFixtures creates one zone, customer, contact, asset and user
func SeedFixtures(t *testing.T, db *gorm.DB) *Fixtures {
	t.Helper()
	zone := CreateZone(t, db, "North", "NO")
	customer := CreateCustomer(t, db, "Acme Mining", &zone.ID)
	contact := CreateContact(t, db, customer.ID, "Kari", "Nordmann")
	asset := CreateAsset(t, db, customer.ID, "SN-1001")
	user := CreateUser(t, db, "seller@example.com", "Sam Seller", domain.RoleZoneManager, &zone.ID)
	return &Fixtures{Zone: zone, Customer: customer, Contact: contact, Asset: asset, User: user}
}

func CreateZone(t *testing.T, db *gorm.DB, name, code string) *domain.Zone {
	t.Helper()
	z := &domain.Zone{Name: name, Code: code, IsActive: true}
	require.NoError(t, db.Create(z).Error)
	return z
}

func CreateCustomer(t *testing.T, db *gorm.DB, name string, zoneID *uuid.UUID) *domain.Customer {
	t.Helper()
	c := &domain.Customer{Name: name, Email: "buyer@example.com", Country: "Norway", ZoneID: zoneID}
	require.NoError(t, db.Omit("Contacts", "Assets", "Zone").Create(c).Error)
	return c
}

func CreateContact(t *testing.T, db *gorm.DB, customerID uuid.UUID, first, last string) *domain.Contact {
	t.Helper()
	c := &domain.Contact{CustomerID: customerID, FirstName: first, LastName: last, Email: strings.ToLower(first) + "@example.com"}
	require.NoError(t, db.Create(c).Error)
	return c
}

func CreateAsset(t *testing.T, db *gorm.DB, customerID uuid.UUID, serial string) *domain.Asset {
	t.Helper()
	a := &domain.Asset{CustomerID: customerID, SerialNumber: serial, Model: "MX-200"}
	require.NoError(t, db.Create(a).Error)
	return a
}

func CreateSparePart(t *testing.T, db *gorm.DB, partNumber string, price int64) *domain.SparePart {
	t.Helper()
	p := &domain.SparePart{PartNumber: partNumber, Description: "Spare " + partNumber, UnitPrice: decimal.NewFromInt(price)}
	require.NoError(t, db.Create(p).Error)
	return p
}

func CreateUser(t *testing.T, db *gorm.DB, email, name string, role domain.UserRole, zoneID *uuid.UUID) *domain.User {
	t.Helper()
	u := &domain.User{Email: email, Name: name, Role: role, ZoneID: zoneID, IsActive: true}
	require.NoError(t, db.Omit("Zone").Create(u).Error)
	return u
}

// OfferOption adjusts an offer before it is inserted
type OfferOption func(*domain.Offer)

// AtStage fills every field the stage requires and sets the stage
func AtStage(s domain.OfferStage) OfferOption {
	return func(o *domain.Offer) {
		o.Stage = s
		if s == domain.StageInitial || s == domain.StageLost {
			if s == domain.StageLost {
				o.Remarks = "Lost to competitor"
			}
			return
		}
		ref := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
		value := decimal.NewFromInt(100000)
		prob := 60
		o.OfferReferenceDate = &ref
		o.OfferValue = &value
		o.OfferMonth = "2025-03"
		o.ProbabilityPercentage = &prob
		o.POExpectedMonth = "2025-06"
		switch s {
		case domain.StagePOReceived, domain.StageOrderBooked, domain.StageWon:
			poDate := time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC)
			poValue := decimal.NewFromInt(95000)
			o.PONumber = "PO-4711"
			o.PODate = &poDate
			o.POValue = &poValue
		}
		if s == domain.StageOrderBooked || s == domain.StageWon {
			booked := time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC)
			o.BookingDateInSAP = &booked
		}
	}
}

// WithValue sets the offer value and month
func WithValue(v int64, month string) OfferOption {
	return func(o *domain.Offer) {
		d := decimal.NewFromInt(v)
		o.OfferValue = &d
		o.OfferMonth = month
	}
}

// WithCreator sets the creating user
func WithCreator(u *domain.User) OfferOption {
	return func(o *domain.Offer) {
		o.CreatedByID = &u.ID
		o.CreatedByName = u.Name
	}
}

// WithProduct sets the product type
func WithProduct(p domain.ProductType) OfferOption {
	return func(o *domain.Offer) { o.ProductType = p }
}

var refSeq int

// CreateOffer inserts an offer directly, bypassing the orchestrator
func CreateOffer(t *testing.T, db *gorm.DB, f *Fixtures, opts ...OfferOption) *domain.Offer {
	t.Helper()
	refSeq++
	o := &domain.Offer{
		ReferenceNumber: fmt.Sprintf("OFF-%s-2025-%04d-%s", f.Zone.Code, refSeq, uuid.NewString()[:4]),
		Title:           "Test offer",
		CustomerID:      f.Customer.ID,
		ZoneID:          f.Zone.ID,
		ContactID:       f.Contact.ID,
		ProductType:     domain.ProductRetrofitKit,
		LeadStatus:      domain.LeadWarm,
		Stage:           domain.StageInitial,
		Version:         1,
	}
	for _, opt := range opts {
		opt(o)
	}
	require.NoError(t, db.Omit("Customer", "Zone", "Contact", "Assets", "SpareParts", "StageRemarks").Create(o).Error)
	require.NoError(t, db.Exec("INSERT INTO offer_assets (offer_id, asset_id) VALUES (?, ?)", o.ID, f.Asset.ID).Error)
	o.Assets = []domain.Asset{*f.Asset}
	return o
}

// CountRows counts the rows of a model, including soft-deleted ones
func CountRows(t *testing.T, db *gorm.DB, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Unscoped().Model(model).Count(&n).Error)
	return n
}
