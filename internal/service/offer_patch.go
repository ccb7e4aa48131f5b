package service

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/offer-pipeline-api/internal/changes"
	"github.com/straye-as/offer-pipeline-api/internal/domain"
	"github.com/straye-as/offer-pipeline-api/internal/stage"
)

const dateLayout = "2006-01-02"

// fieldErrors collects format problems in the order they are found
type fieldErrors struct {
	fields  []string
	reasons map[string]string
}

func (f *fieldErrors) add(field, reason string) {
	if f.reasons == nil {
		f.reasons = map[string]string{}
	}
	if _, dup := f.reasons[field]; dup {
		return
	}
	f.fields = append(f.fields, field)
	f.reasons[field] = reason
}

func (f *fieldErrors) err() error {
	if len(f.fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: f.fields, Reasons: f.reasons}
}

// cloneOffer copies an offer so a patch can be applied without touching the
// loaded state. Pointer fields are shared and must be replaced, not mutated.
func cloneOffer(o *domain.Offer) *domain.Offer {
	c := *o
	c.Assets = append([]domain.Asset(nil), o.Assets...)
	return &c
}

// applyPatch merges req over current. Nil fields are left alone and an empty
// string clears a text, month or date field. Format problems are reported
// together; stage requirements are checked separately on the result.
func applyPatch(current *domain.Offer, req *domain.UpdateOfferRequest) (*domain.Offer, error) {
	merged := cloneOffer(current)
	var errs fieldErrors

	if req.Title != nil {
		merged.Title = strings.TrimSpace(*req.Title)
	}
	if req.CustomerID != nil {
		merged.CustomerID = *req.CustomerID
	}
	if req.ZoneID != nil {
		merged.ZoneID = *req.ZoneID
	}
	if req.ContactID != nil {
		merged.ContactID = *req.ContactID
	}
	if req.AssetIDs != nil {
		merged.Assets = assetsFromIDs(req.AssetIDs)
	}
	if req.Stage != nil {
		merged.Stage = *req.Stage
	}

	if req.ProductType != nil {
		p := domain.ProductType(strings.TrimSpace(string(*req.ProductType)))
		if p != "" && !p.IsValid() {
			errs.add(stage.FieldProductType, "unknown product type")
		}
		merged.ProductType = p
	}
	if req.LeadStatus != nil {
		l := domain.LeadStatus(strings.TrimSpace(string(*req.LeadStatus)))
		if l != "" && !l.IsValid() {
			errs.add(stage.FieldLeadStatus, "must be HOT, WARM or COLD")
		}
		merged.LeadStatus = l
	}
	if req.OfferReferenceDate != nil {
		d, ok := parseDate(*req.OfferReferenceDate)
		if !ok {
			errs.add(stage.FieldOfferReferenceDate, "must be a date (YYYY-MM-DD)")
		}
		merged.OfferReferenceDate = d
	}
	if req.OfferValue != nil {
		if req.OfferValue.IsNegative() {
			errs.add(stage.FieldOfferValue, "must not be negative")
		}
		v := *req.OfferValue
		merged.OfferValue = &v
	}
	if req.OfferMonth != nil {
		m, ok := parseMonth(*req.OfferMonth)
		if !ok {
			errs.add(stage.FieldOfferMonth, "must be a month (YYYY-MM)")
		}
		merged.OfferMonth = m
	}
	if req.ProbabilityPercentage != nil {
		p := *req.ProbabilityPercentage
		if p < 1 || p > 100 {
			errs.add(stage.FieldProbabilityPercentage, "must be between 1 and 100")
		}
		merged.ProbabilityPercentage = &p
	}
	if req.POExpectedMonth != nil {
		m, ok := parseMonth(*req.POExpectedMonth)
		if !ok {
			errs.add(stage.FieldPOExpectedMonth, "must be a month (YYYY-MM)")
		}
		merged.POExpectedMonth = m
	}
	if req.PONumber != nil {
		merged.PONumber = strings.TrimSpace(*req.PONumber)
	}
	if req.PODate != nil {
		d, ok := parseDate(*req.PODate)
		if !ok {
			errs.add(stage.FieldPODate, "must be a date (YYYY-MM-DD)")
		}
		merged.PODate = d
	}
	if req.POValue != nil {
		if req.POValue.IsNegative() {
			errs.add(stage.FieldPOValue, "must not be negative")
		}
		v := *req.POValue
		merged.POValue = &v
	}
	if req.BookingDateInSAP != nil {
		d, ok := parseDate(*req.BookingDateInSAP)
		if !ok {
			errs.add(stage.FieldBookingDateInSAP, "must be a date (YYYY-MM-DD)")
		}
		merged.BookingDateInSAP = d
	}
	if req.Remarks != nil {
		merged.Remarks = strings.TrimSpace(*req.Remarks)
	}

	if err := errs.err(); err != nil {
		return nil, err
	}
	return merged, nil
}

// assetsFromIDs builds placeholder assets for a requested ID set, dropping
// duplicates and nil IDs
func assetsFromIDs(ids []uuid.UUID) []domain.Asset {
	seen := make(map[uuid.UUID]bool, len(ids))
	assets := make([]domain.Asset, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		assets = append(assets, domain.Asset{BaseModel: domain.BaseModel{ID: id}})
	}
	return assets
}

// parseDate accepts YYYY-MM-DD or an RFC 3339 timestamp and keeps the UTC day.
// An empty string clears the date.
func parseDate(s string) (*time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, true
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		ts, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return nil, false
		}
		t = ts.UTC().Truncate(24 * time.Hour)
	}
	return &t, true
}

func parseMonth(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", true
	}
	return s, stage.ValidMonth(s)
}

// offerColumns lists every tracked column of an offer for a versioned update
func offerColumns(o *domain.Offer, now time.Time) map[string]interface{} {
	return map[string]interface{}{
		"title":                  o.Title,
		"customer_id":            o.CustomerID,
		"zone_id":                o.ZoneID,
		"contact_id":             o.ContactID,
		"product_type":           o.ProductType,
		"lead_status":            o.LeadStatus,
		"stage":                  o.Stage,
		"offer_reference_date":   o.OfferReferenceDate,
		"offer_value":            o.OfferValue,
		"offer_month":            o.OfferMonth,
		"probability_percentage": o.ProbabilityPercentage,
		"po_expected_month":      o.POExpectedMonth,
		"po_number":              o.PONumber,
		"po_date":                o.PODate,
		"po_value":               o.POValue,
		"booking_date_in_sap":    o.BookingDateInSAP,
		"remarks":                o.Remarks,
		"updated_at":             now.UTC(),
	}
}

// stageRemarkFor returns the remark an update leaves behind: the target stage
// must carry remarks, the remarks must be set, and either they or the stage
// must have changed
func stageRemarkFor(merged *domain.Offer, diff map[string]changes.FieldChange) *domain.StageRemark {
	if !stage.IsRemarkBearing(merged.Stage) {
		return nil
	}
	content := strings.TrimSpace(merged.Remarks)
	if content == "" {
		return nil
	}
	_, remarksChanged := diff[changes.KeyRemarks]
	_, stageChanged := diff[changes.KeyStage]
	if !remarksChanged && !stageChanged {
		return nil
	}
	return &domain.StageRemark{OfferID: merged.ID, Stage: merged.Stage, Content: content}
}
