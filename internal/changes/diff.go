// Package changes computes field-level diffs between two offer states.
package changes

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/straye-as/offer-pipeline-api/internal/domain"
)

// FieldChange is one entry of a diff
type FieldChange = domain.FieldChange

// Snapshot is a normalized view of an offer keyed by API field name
type Snapshot map[string]any

const dateLayout = "2006-01-02"

// Snapshot keys
const (
	KeyTitle                 = "title"
	KeyCustomerID            = "customerId"
	KeyZoneID                = "zoneId"
	KeyContactID             = "contactId"
	KeyAssetIDs              = "assetIds"
	KeyProductType           = "productType"
	KeyLeadStatus            = "leadStatus"
	KeyStage                 = "stage"
	KeyOfferReferenceDate    = "offerReferenceDate"
	KeyOfferValue            = "offerValue"
	KeyOfferMonth            = "offerMonth"
	KeyProbabilityPercentage = "probabilityPercentage"
	KeyPOExpectedMonth       = "poExpectedMonth"
	KeyPONumber              = "poNumber"
	KeyPODate                = "poDate"
	KeyPOValue               = "poValue"
	KeyBookingDateInSAP      = "bookingDateInSap"
	KeyRemarks               = "remarks"
)

// FromOffer captures the tracked fields of an offer
func FromOffer(o *domain.Offer) Snapshot {
	return Snapshot{
		KeyTitle:                 o.Title,
		KeyCustomerID:            o.CustomerID,
		KeyZoneID:                o.ZoneID,
		KeyContactID:             o.ContactID,
		KeyAssetIDs:              o.AssetIDs(),
		KeyProductType:           string(o.ProductType),
		KeyLeadStatus:            string(o.LeadStatus),
		KeyStage:                 string(o.Stage),
		KeyOfferReferenceDate:    o.OfferReferenceDate,
		KeyOfferValue:            o.OfferValue,
		KeyOfferMonth:            o.OfferMonth,
		KeyProbabilityPercentage: o.ProbabilityPercentage,
		KeyPOExpectedMonth:       o.POExpectedMonth,
		KeyPONumber:              o.PONumber,
		KeyPODate:                o.PODate,
		KeyPOValue:               o.POValue,
		KeyBookingDateInSAP:      o.BookingDateInSAP,
		KeyRemarks:               o.Remarks,
	}
}

// Display returns the snapshot with every value in its JSON display form
func (s Snapshot) Display() map[string]any {
	out := make(map[string]any, len(s))
	for k, v := range s {
		out[k] = display(normalize(v))
	}
	return out
}

// Diff returns the fields whose normalized values differ between prev and next.
// Unset values (nil, empty or blank strings, empty sets) are all equal.
func Diff(prev, next Snapshot) map[string]FieldChange {
	out := map[string]FieldChange{}
	for _, key := range keys(prev, next) {
		a, b := normalize(prev[key]), normalize(next[key])
		if equal(a, b) {
			continue
		}
		out[key] = FieldChange{From: display(a), To: display(b)}
	}
	return out
}

func keys(a, b Snapshot) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		seen[k] = struct{}{}
	}
	for k := range b {
		seen[k] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// normalize maps a raw field value onto one of: nil, string, int64,
// decimal.Decimal or a sorted []string.
func normalize(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		x = strings.TrimSpace(x)
		if x == "" {
			return nil
		}
		return x
	case *string:
		if x == nil {
			return nil
		}
		return normalize(*x)
	case int:
		return int64(x)
	case int64:
		return x
	case *int:
		if x == nil {
			return nil
		}
		return int64(*x)
	case decimal.Decimal:
		return x
	case *decimal.Decimal:
		if x == nil {
			return nil
		}
		return *x
	case time.Time:
		if x.IsZero() {
			return nil
		}
		return x.Format(dateLayout)
	case *time.Time:
		if x == nil {
			return nil
		}
		return normalize(*x)
	case uuid.UUID:
		if x == uuid.Nil {
			return nil
		}
		return x.String()
	case *uuid.UUID:
		if x == nil {
			return nil
		}
		return normalize(*x)
	case []uuid.UUID:
		ids := make([]string, 0, len(x))
		for _, id := range x {
			if id != uuid.Nil {
				ids = append(ids, id.String())
			}
		}
		return normalizeSet(ids)
	case []string:
		ids := make([]string, 0, len(x))
		for _, s := range x {
			if s = strings.TrimSpace(s); s != "" {
				ids = append(ids, s)
			}
		}
		return normalizeSet(ids)
	}
	return v
}

func normalizeSet(ids []string) any {
	if len(ids) == 0 {
		return nil
	}
	sort.Strings(ids)
	return ids
}

func equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch x := a.(type) {
	case decimal.Decimal:
		y, ok := b.(decimal.Decimal)
		return ok && x.Equal(y)
	case []string:
		y, ok := b.([]string)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if x[i] != y[i] {
				return false
			}
		}
		return true
	case string:
		y, ok := b.(string)
		return ok && x == y
	case int64:
		y, ok := b.(int64)
		return ok && x == y
	}
	return a == b
}

func display(v any) any {
	if d, ok := v.(decimal.Decimal); ok {
		return d.String()
	}
	return v
}
