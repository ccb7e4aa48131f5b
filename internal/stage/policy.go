// Package stage holds the offer pipeline rules: which stage moves are legal
// and which fields each stage requires.
package stage

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/straye-as/offer-pipeline-api/internal/domain"
)

// ErrInvalidInput is wrapped by every ValidationError
var ErrInvalidInput = errors.New("invalid input")

// Field names reported in validation errors, in canonical order
const (
	FieldStage                 = "stage"
	FieldProductType           = "productType"
	FieldLeadStatus            = "leadStatus"
	FieldCustomer              = "customerId"
	FieldContact               = "contactId"
	FieldAssets                = "assetIds"
	FieldZone                  = "zoneId"
	FieldOfferReferenceDate    = "offerReferenceDate"
	FieldOfferValue            = "offerValue"
	FieldOfferMonth            = "offerMonth"
	FieldProbabilityPercentage = "probabilityPercentage"
	FieldPOExpectedMonth       = "poExpectedMonth"
	FieldPONumber              = "poNumber"
	FieldPODate                = "poDate"
	FieldPOValue               = "poValue"
	FieldBookingDateInSAP      = "bookingDateInSap"
	FieldRemarks               = "remarks"
)

// Order is the position of each stage on the main path. LOST is off the path.
var Order = []domain.OfferStage{
	domain.StageInitial,
	domain.StageProposalSent,
	domain.StageNegotiation,
	domain.StageFinalApproval,
	domain.StagePOReceived,
	domain.StageOrderBooked,
	domain.StageWon,
}

// ValidationError lists every field that blocks a stage change
type ValidationError struct {
	Stage   domain.OfferStage
	Fields  []string
	Reasons map[string]string
}

func (e *ValidationError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("validation failed for stage %s: %s", e.Stage, strings.Join(e.Fields, ", "))
	}
	return "validation failed: " + strings.Join(e.Fields, ", ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// Fields is the merged view of an offer that stage rules are checked against
type Fields struct {
	ProductType           domain.ProductType
	LeadStatus            domain.LeadStatus
	CustomerID            uuid.UUID
	ContactID             uuid.UUID
	ZoneID                uuid.UUID
	AssetCount            int
	OfferReferenceDate    *time.Time
	OfferValue            *decimal.Decimal
	OfferMonth            string
	ProbabilityPercentage *int
	POExpectedMonth       string
	PONumber              string
	PODate                *time.Time
	POValue               *decimal.Decimal
	BookingDateInSAP      *time.Time
	Remarks               string
}

// FieldsFromOffer extracts the rule-relevant fields of an offer
func FieldsFromOffer(o *domain.Offer) Fields {
	return Fields{
		ProductType:           o.ProductType,
		LeadStatus:            o.LeadStatus,
		CustomerID:            o.CustomerID,
		ContactID:             o.ContactID,
		ZoneID:                o.ZoneID,
		AssetCount:            len(o.Assets),
		OfferReferenceDate:    o.OfferReferenceDate,
		OfferValue:            o.OfferValue,
		OfferMonth:            o.OfferMonth,
		ProbabilityPercentage: o.ProbabilityPercentage,
		POExpectedMonth:       o.POExpectedMonth,
		PONumber:              o.PONumber,
		PODate:                o.PODate,
		POValue:               o.POValue,
		BookingDateInSAP:      o.BookingDateInSAP,
		Remarks:               o.Remarks,
	}
}

// Policy decides stage transition legality. The zero value allows no
// regression and lets any open stage enter LOST.
type Policy struct {
	// RestrictLostSources limits entry into LOST to PROPOSAL_SENT, NEGOTIATION and FINAL_APPROVAL
	RestrictLostSources bool
	// AllowRegression permits moving back along the main path
	AllowRegression bool
}

// DefaultPolicy is the permissive policy used when nothing is configured
var DefaultPolicy = Policy{AllowRegression: true}

// ValidateTransition checks a move with the default policy
func ValidateTransition(current, requested domain.OfferStage, f Fields) error {
	return DefaultPolicy.ValidateTransition(current, requested, f)
}

// ValidateTransition checks that current -> requested is legal and that f
// satisfies every requirement of the requested stage. All failing fields are
// reported together.
func (p Policy) ValidateTransition(current, requested domain.OfferStage, f Fields) error {
	if !requested.IsValid() {
		return &ValidationError{
			Stage:   requested,
			Fields:  []string{FieldStage},
			Reasons: map[string]string{FieldStage: fmt.Sprintf("unknown stage %q", requested)},
		}
	}
	if reason := p.transitionError(current, requested); reason != "" {
		return &ValidationError{
			Stage:   requested,
			Fields:  []string{FieldStage},
			Reasons: map[string]string{FieldStage: reason},
		}
	}

	reasons := check(requested, f)
	if len(reasons) == 0 {
		return nil
	}

	fields := make([]string, 0, len(reasons))
	for _, name := range canonicalOrder {
		if _, ok := reasons[name]; ok {
			fields = append(fields, name)
		}
	}
	return &ValidationError{Stage: requested, Fields: fields, Reasons: reasons}
}

// CanTransition reports only whether the move itself is legal
func (p Policy) CanTransition(current, requested domain.OfferStage) bool {
	return requested.IsValid() && p.transitionError(current, requested) == ""
}

func (p Policy) transitionError(current, requested domain.OfferStage) string {
	if current == requested || current == "" {
		return ""
	}
	if current.IsClosed() {
		return fmt.Sprintf("offer is %s and can no longer change stage", current)
	}
	if requested == domain.StageLost {
		if p.RestrictLostSources && !lostSources[current] {
			return fmt.Sprintf("cannot mark an offer as LOST from %s", current)
		}
		return ""
	}
	if !p.AllowRegression && index(requested) < index(current) {
		return fmt.Sprintf("cannot move back from %s to %s", current, requested)
	}
	return ""
}

var lostSources = map[domain.OfferStage]bool{
	domain.StageProposalSent:  true,
	domain.StageNegotiation:   true,
	domain.StageFinalApproval: true,
}

func index(s domain.OfferStage) int {
	for i, o := range Order {
		if o == s {
			return i
		}
	}
	return -1
}

// IsRemarkBearing reports whether remarks at this stage are kept as stage remarks
func IsRemarkBearing(s domain.OfferStage) bool {
	switch s {
	case domain.StageProposalSent, domain.StageNegotiation, domain.StageFinalApproval, domain.StageLost:
		return true
	}
	return false
}

// RequiredFields returns the fields the stage requires, in canonical order
func RequiredFields(s domain.OfferStage) []string {
	var out []string
	for _, g := range groupsFor(s) {
		out = append(out, g...)
	}
	return out
}
