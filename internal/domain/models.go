package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// BeforeCreate assigns an ID when the caller has not
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// OfferStage is the position of an offer in the sales pipeline
type OfferStage string

const (
	StageInitial       OfferStage = "INITIAL"
	StageProposalSent  OfferStage = "PROPOSAL_SENT"
	StageNegotiation   OfferStage = "NEGOTIATION"
	StageFinalApproval OfferStage = "FINAL_APPROVAL"
	StagePOReceived    OfferStage = "PO_RECEIVED"
	StageOrderBooked   OfferStage = "ORDER_BOOKED"
	StageWon           OfferStage = "WON"
	StageLost          OfferStage = "LOST"
)

// IsValid checks that the stage is one of the pipeline stages
func (s OfferStage) IsValid() bool {
	switch s {
	case StageInitial, StageProposalSent, StageNegotiation, StageFinalApproval,
		StagePOReceived, StageOrderBooked, StageWon, StageLost:
		return true
	}
	return false
}

// IsClosed reports whether the stage ends the pipeline
func (s OfferStage) IsClosed() bool {
	return s == StageWon || s == StageLost
}

// ProductType classifies what an offer sells
type ProductType string

const (
	ProductRelocation     ProductType = "RELOCATION"
	ProductContract       ProductType = "CONTRACT"
	ProductSPP            ProductType = "SPP"
	ProductUpgradeKit     ProductType = "UPGRADE_KIT"
	ProductSoftware       ProductType = "SOFTWARE"
	ProductBDCharges      ProductType = "BD_CHARGES"
	ProductBDSpare        ProductType = "BD_SPARE"
	ProductMidlifeUpgrade ProductType = "MIDLIFE_UPGRADE"
	ProductRetrofitKit    ProductType = "RETROFIT_KIT"
)

// ProductTypes lists every product type in display order
var ProductTypes = []ProductType{
	ProductRelocation, ProductContract, ProductSPP, ProductUpgradeKit, ProductSoftware,
	ProductBDCharges, ProductBDSpare, ProductMidlifeUpgrade, ProductRetrofitKit,
}

func (p ProductType) IsValid() bool {
	for _, t := range ProductTypes {
		if t == p {
			return true
		}
	}
	return false
}

// LeadStatus is the sales temperature of an offer
type LeadStatus string

const (
	LeadHot  LeadStatus = "HOT"
	LeadWarm LeadStatus = "WARM"
	LeadCold LeadStatus = "COLD"
)

func (l LeadStatus) IsValid() bool {
	return l == LeadHot || l == LeadWarm || l == LeadCold
}

// UserRole controls what a user may see and change
type UserRole string

const (
	RoleAdmin       UserRole = "ADMIN"
	RoleZoneManager UserRole = "ZONE_MANAGER"
	RoleZoneUser    UserRole = "ZONE_USER"
)

// Zone is a sales region. Code is used in offer reference numbers.
type Zone struct {
	BaseModel
	Name     string `gorm:"type:varchar(100);not null;uniqueIndex"`
	Code     string `gorm:"type:varchar(10);not null;uniqueIndex"`
	IsActive bool   `gorm:"not null;default:true"`
}

// Customer is an organization offers are made to
type Customer struct {
	BaseModel
	Name     string     `gorm:"type:varchar(200);not null;index"`
	Code     string     `gorm:"type:varchar(50);index"`
	Email    string     `gorm:"type:varchar(255)"`
	Phone    string     `gorm:"type:varchar(50)"`
	City     string     `gorm:"type:varchar(100)"`
	Country  string     `gorm:"type:varchar(100)"`
	ZoneID   *uuid.UUID `gorm:"type:uuid;index"`
	Zone     *Zone      `gorm:"foreignKey:ZoneID"`
	Contacts []Contact  `gorm:"foreignKey:CustomerID"`
	Assets   []Asset    `gorm:"foreignKey:CustomerID"`
}

// Contact is a person at a customer
type Contact struct {
	BaseModel
	CustomerID uuid.UUID `gorm:"type:uuid;not null;index"`
	FirstName  string    `gorm:"type:varchar(100);not null"`
	LastName   string    `gorm:"type:varchar(100)"`
	Email      string    `gorm:"type:varchar(255)"`
	Phone      string    `gorm:"type:varchar(50)"`
	Position   string    `gorm:"type:varchar(100)"`
}

// FullName returns first and last name joined
func (c *Contact) FullName() string {
	if c.LastName == "" {
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

// Asset is an installed machine at a customer site
type Asset struct {
	BaseModel
	CustomerID   uuid.UUID `gorm:"type:uuid;not null;index"`
	SerialNumber string    `gorm:"type:varchar(100);not null;index"`
	Model        string    `gorm:"type:varchar(100)"`
	Description  string    `gorm:"type:text"`
}

// SparePart is a catalog item that can be quoted on an offer
type SparePart struct {
	BaseModel
	PartNumber  string          `gorm:"type:varchar(100);not null;uniqueIndex"`
	Description string          `gorm:"type:varchar(500)"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0"`
}

// OfferSparePart is a spare part line on an offer
type OfferSparePart struct {
	BaseModel
	OfferID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	SparePartID uuid.UUID       `gorm:"type:uuid;not null;index"`
	SparePart   *SparePart      `gorm:"foreignKey:SparePartID"`
	Quantity    int             `gorm:"not null;default:1"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0"`
}

// User is an authenticated member of the sales organisation
type User struct {
	BaseModel
	Email       string     `gorm:"type:varchar(255);not null;uniqueIndex"`
	Name        string     `gorm:"type:varchar(200);not null"`
	Role        UserRole   `gorm:"type:varchar(50);not null;default:'ZONE_USER'"`
	ZoneID      *uuid.UUID `gorm:"type:uuid;index"`
	Zone        *Zone      `gorm:"foreignKey:ZoneID"`
	IsActive    bool       `gorm:"not null;default:true"`
	LastLoginAt *time.Time
}

// Offer is a sales offer moving through the pipeline
type Offer struct {
	BaseModel
	ReferenceNumber       string           `gorm:"type:varchar(50);not null;uniqueIndex"`
	Title                 string           `gorm:"type:varchar(200)"`
	CustomerID            uuid.UUID        `gorm:"type:uuid;not null;index"`
	Customer              *Customer        `gorm:"foreignKey:CustomerID"`
	ZoneID                uuid.UUID        `gorm:"type:uuid;not null;index"`
	Zone                  *Zone            `gorm:"foreignKey:ZoneID"`
	ContactID             uuid.UUID        `gorm:"type:uuid;not null;index"`
	Contact               *Contact         `gorm:"foreignKey:ContactID"`
	Assets                []Asset          `gorm:"many2many:offer_assets"`
	ProductType           ProductType      `gorm:"type:varchar(50);not null;index"`
	LeadStatus            LeadStatus       `gorm:"type:varchar(20);not null"`
	Stage                 OfferStage       `gorm:"type:varchar(50);not null;index"`
	OfferReferenceDate    *time.Time       `gorm:"type:date;column:offer_reference_date"`
	OfferValue            *decimal.Decimal `gorm:"type:decimal(15,2);column:offer_value"`
	OfferMonth            string           `gorm:"type:varchar(7);column:offer_month;index"`
	ProbabilityPercentage *int             `gorm:"column:probability_percentage"`
	POExpectedMonth       string           `gorm:"type:varchar(7);column:po_expected_month"`
	PONumber              string           `gorm:"type:varchar(100);column:po_number"`
	PODate                *time.Time       `gorm:"type:date;column:po_date"`
	POValue               *decimal.Decimal `gorm:"type:decimal(15,2);column:po_value"`
	BookingDateInSAP      *time.Time       `gorm:"type:date;column:booking_date_in_sap"`
	Remarks               string           `gorm:"type:text"`
	CreatedByID           *uuid.UUID       `gorm:"type:uuid;index"`
	CreatedByName         string           `gorm:"type:varchar(200)"`
	Version               int              `gorm:"not null;default:1"`
	DeletedAt             gorm.DeletedAt   `gorm:"index"`
	SpareParts            []OfferSparePart `gorm:"foreignKey:OfferID"`
	StageRemarks          []StageRemark    `gorm:"foreignKey:OfferID;constraint:OnDelete:CASCADE"`
}

// AssetIDs returns the IDs of the loaded assets
func (o *Offer) AssetIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(o.Assets))
	for _, a := range o.Assets {
		ids = append(ids, a.ID)
	}
	return ids
}

// StageRemark is an append-only note attached to an offer at a given stage
type StageRemark struct {
	BaseModel
	OfferID    uuid.UUID  `gorm:"type:uuid;not null;index"`
	Stage      OfferStage `gorm:"type:varchar(50);not null"`
	Content    string     `gorm:"type:text;not null"`
	AuthorID   *uuid.UUID `gorm:"type:uuid"`
	AuthorName string     `gorm:"type:varchar(200)"`
}

// ActivityLog is an immutable audit entry. UserID is a weak reference and stays
// valid after the user is removed.
type ActivityLog struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey"`
	Action          ActivityAction `gorm:"type:varchar(50);not null;index"`
	UserID          *uuid.UUID     `gorm:"type:uuid;index"`
	UserName        string         `gorm:"type:varchar(200)"`
	EntityType      string         `gorm:"type:varchar(50);not null"`
	EntityID        *uuid.UUID     `gorm:"type:uuid;index"`
	ReferenceNumber string         `gorm:"type:varchar(50);index"`
	ZoneID          *uuid.UUID     `gorm:"type:uuid;index"`
	Details         string         `gorm:"type:jsonb"`
	IPAddress       string         `gorm:"type:varchar(64);column:ip_address"`
	UserAgent       string         `gorm:"type:text"`
	RequestID       string         `gorm:"type:varchar(100)"`
	CreatedAt       time.Time      `gorm:"not null;index"`
}

func (a *ActivityLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// TargetScope says whether a target belongs to a zone or a user
type TargetScope string

const (
	TargetScopeZone TargetScope = "ZONE"
	TargetScopeUser TargetScope = "USER"
)

// TargetPeriod is the length of a target period
type TargetPeriod string

const (
	PeriodMonthly TargetPeriod = "MONTHLY"
	PeriodYearly  TargetPeriod = "YEARLY"
)

// Target is a sales goal for a zone or user over a month or year.
// An empty ProductType covers all products.
type Target struct {
	BaseModel
	Scope       TargetScope     `gorm:"type:varchar(10);not null;index"`
	ZoneID      *uuid.UUID      `gorm:"type:uuid;index"`
	Zone        *Zone           `gorm:"foreignKey:ZoneID"`
	UserID      *uuid.UUID      `gorm:"type:uuid;index"`
	User        *User           `gorm:"foreignKey:UserID"`
	Period      TargetPeriod    `gorm:"type:varchar(10);not null"`
	PeriodKey   string          `gorm:"type:varchar(7);not null;index"`
	ProductType ProductType     `gorm:"type:varchar(50)"`
	TargetValue decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	CreatedByID *uuid.UUID      `gorm:"type:uuid"`
}

// NumberSequence is the per zone and year counter behind offer reference numbers
type NumberSequence struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	ZoneCode     string `gorm:"type:varchar(10);not null;uniqueIndex:idx_number_sequences_zone_year"`
	Year         int    `gorm:"not null;uniqueIndex:idx_number_sequences_zone_year"`
	LastSequence int    `gorm:"not null;default:0"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
