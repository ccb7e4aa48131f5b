package stage

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/straye-as/offer-pipeline-api/internal/domain"
)

var canonicalOrder = []string{
	FieldProductType,
	FieldLeadStatus,
	FieldCustomer,
	FieldContact,
	FieldAssets,
	FieldZone,
	FieldOfferReferenceDate,
	FieldOfferValue,
	FieldOfferMonth,
	FieldProbabilityPercentage,
	FieldPOExpectedMonth,
	FieldPONumber,
	FieldPODate,
	FieldPOValue,
	FieldBookingDateInSAP,
	FieldRemarks,
}

var (
	initialGroup  = []string{FieldProductType, FieldLeadStatus, FieldCustomer, FieldContact, FieldAssets, FieldZone}
	proposalGroup = []string{FieldOfferReferenceDate, FieldOfferValue, FieldOfferMonth, FieldProbabilityPercentage, FieldPOExpectedMonth}
	poGroup       = []string{FieldPONumber, FieldPODate, FieldPOValue}
	bookingGroup  = []string{FieldBookingDateInSAP}
	lostGroup     = []string{FieldRemarks}
)

// groupsFor lists the requirement groups of a stage. PO_RECEIVED carries the
// proposal group as well, like both of its neighbours.
func groupsFor(s domain.OfferStage) [][]string {
	switch s {
	case domain.StageInitial:
		return [][]string{initialGroup}
	case domain.StageProposalSent, domain.StageNegotiation, domain.StageFinalApproval:
		return [][]string{initialGroup, proposalGroup}
	case domain.StagePOReceived:
		return [][]string{initialGroup, proposalGroup, poGroup}
	case domain.StageOrderBooked, domain.StageWon:
		return [][]string{initialGroup, proposalGroup, poGroup, bookingGroup}
	case domain.StageLost:
		return [][]string{lostGroup}
	}
	return nil
}

// check returns a reason for every required field of s that f fails
func check(s domain.OfferStage, f Fields) map[string]string {
	reasons := map[string]string{}
	for _, group := range groupsFor(s) {
		for _, name := range group {
			if reason := checkField(name, f); reason != "" {
				reasons[name] = reason
			}
		}
	}
	return reasons
}

func checkField(name string, f Fields) string {
	switch name {
	case FieldProductType:
		if f.ProductType == "" {
			return "Product type is required"
		}
		if !f.ProductType.IsValid() {
			return "Product type is not recognised"
		}
	case FieldLeadStatus:
		if f.LeadStatus == "" {
			return "Lead status is required"
		}
		if !f.LeadStatus.IsValid() {
			return "Lead status must be HOT, WARM or COLD"
		}
	case FieldCustomer:
		return requireID(f.CustomerID, "Customer is required")
	case FieldContact:
		return requireID(f.ContactID, "Contact is required")
	case FieldZone:
		return requireID(f.ZoneID, "Zone is required")
	case FieldAssets:
		if f.AssetCount < 1 {
			return "At least one asset is required"
		}
	case FieldOfferReferenceDate:
		return requireDate(f.OfferReferenceDate, "Offer reference date is required")
	case FieldOfferValue:
		if f.OfferValue == nil {
			return "Offer value is required"
		}
		if f.OfferValue.IsNegative() {
			return "Offer value must not be negative"
		}
	case FieldOfferMonth:
		return requireMonth(f.OfferMonth, "Offer month is required")
	case FieldProbabilityPercentage:
		if f.ProbabilityPercentage == nil {
			return "Probability is required"
		}
		if p := *f.ProbabilityPercentage; p < 1 || p > 100 {
			return "Probability must be between 1 and 100"
		}
	case FieldPOExpectedMonth:
		return requireMonth(f.POExpectedMonth, "PO expected month is required")
	case FieldPONumber:
		if strings.TrimSpace(f.PONumber) == "" {
			return "PO number is required"
		}
	case FieldPODate:
		return requireDate(f.PODate, "PO date is required")
	case FieldPOValue:
		if f.POValue == nil {
			return "PO value is required"
		}
		if !f.POValue.GreaterThan(decimal.Zero) {
			return "PO value must be greater than zero"
		}
	case FieldBookingDateInSAP:
		return requireDate(f.BookingDateInSAP, "Booking date in SAP is required")
	case FieldRemarks:
		if strings.TrimSpace(f.Remarks) == "" {
			return "Remarks are required"
		}
	}
	return ""
}

func requireID(id uuid.UUID, msg string) string {
	if id == uuid.Nil {
		return msg
	}
	return ""
}

func requireDate(t *time.Time, msg string) string {
	if t == nil || t.IsZero() {
		return msg
	}
	return ""
}

func requireMonth(m, msg string) string {
	m = strings.TrimSpace(m)
	if m == "" {
		return msg
	}
	if !ValidMonth(m) {
		return "Must be a month in YYYY-MM format"
	}
	return ""
}

// ValidMonth reports whether m is a YYYY-MM month
func ValidMonth(m string) bool {
	_, err := time.Parse("2006-01", m)
	return err == nil && len(m) == 7
}
