package stage

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/straye-as/offer-pipeline-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func initialFields() Fields {
	return Fields{
		ProductType: domain.ProductRetrofitKit,
		LeadStatus:  domain.LeadWarm,
		CustomerID:  uuid.New(),
		ContactID:   uuid.New(),
		ZoneID:      uuid.New(),
		AssetCount:  1,
	}
}

func proposalFields() Fields {
	f := initialFields()
	f.OfferReferenceDate = ptr(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	f.OfferValue = ptr(decimal.NewFromInt(100000))
	f.OfferMonth = "2025-03"
	f.ProbabilityPercentage = ptr(60)
	f.POExpectedMonth = "2025-06"
	return f
}

func poFields() Fields {
	f := proposalFields()
	f.PONumber = "PO-1"
	f.PODate = ptr(time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC))
	f.POValue = ptr(decimal.NewFromInt(95000))
	return f
}

func bookedFields() Fields {
	f := poFields()
	f.BookingDateInSAP = ptr(time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC))
	return f
}

func validationError(t *testing.T, err error) *ValidationError {
	t.Helper()
	require.Error(t, err)
	var ve *ValidationError
	require.True(t, errors.As(err, &ve), "expected ValidationError, got %T", err)
	assert.ErrorIs(t, err, ErrInvalidInput)
	return ve
}

func TestValidateTransition_RequiredFields(t *testing.T) {
	tests := []struct {
		name      string
		current   domain.OfferStage
		requested domain.OfferStage
		fields    Fields
		missing   []string
	}{
		{"initial complete", domain.StageInitial, domain.StageInitial, initialFields(), nil},
		{"initial empty", domain.StageInitial, domain.StageInitial, Fields{},
			[]string{FieldProductType, FieldLeadStatus, FieldCustomer, FieldContact, FieldAssets, FieldZone}},
		{"proposal complete", domain.StageInitial, domain.StageProposalSent, proposalFields(), nil},
		{"negotiation complete", domain.StageProposalSent, domain.StageNegotiation, proposalFields(), nil},
		{"final approval complete", domain.StageNegotiation, domain.StageFinalApproval, proposalFields(), nil},
		{"po received complete", domain.StageNegotiation, domain.StagePOReceived, poFields(), nil},
		{"po received without po", domain.StageNegotiation, domain.StagePOReceived, proposalFields(),
			[]string{FieldPONumber, FieldPODate, FieldPOValue}},
		{"order booked complete", domain.StagePOReceived, domain.StageOrderBooked, bookedFields(), nil},
		{"order booked without booking date", domain.StagePOReceived, domain.StageOrderBooked, poFields(),
			[]string{FieldBookingDateInSAP}},
		{"won complete", domain.StageOrderBooked, domain.StageWon, bookedFields(), nil},
		{"lost with remarks", domain.StageNegotiation, domain.StageLost, Fields{Remarks: "Lost to competitor"}, nil},
		{"lost whitespace remarks", domain.StageNegotiation, domain.StageLost, Fields{Remarks: "   "},
			[]string{FieldRemarks}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTransition(tt.current, tt.requested, tt.fields)
			if tt.missing == nil {
				assert.NoError(t, err)
				return
			}
			ve := validationError(t, err)
			assert.Equal(t, tt.missing, ve.Fields)
			assert.Equal(t, tt.requested, ve.Stage)
			for _, f := range tt.missing {
				assert.NotEmpty(t, ve.Reasons[f])
			}
		})
	}
}

func TestValidateTransition_ProposalWithoutOfferValue(t *testing.T) {
	f := proposalFields()
	f.OfferValue = nil

	ve := validationError(t, ValidateTransition(domain.StageInitial, domain.StageProposalSent, f))
	assert.Equal(t, []string{FieldOfferValue}, ve.Fields)
}

func TestValidateTransition_ReportsAllFieldsInCanonicalOrder(t *testing.T) {
	f := initialFields()
	f.ProbabilityPercentage = ptr(0)
	f.OfferMonth = "March"

	ve := validationError(t, ValidateTransition(domain.StageInitial, domain.StageNegotiation, f))
	assert.Equal(t, []string{
		FieldOfferReferenceDate,
		FieldOfferValue,
		FieldOfferMonth,
		FieldProbabilityPercentage,
		FieldPOExpectedMonth,
	}, ve.Fields)
	assert.Contains(t, ve.Reasons[FieldOfferMonth], "YYYY-MM")
}

func TestValidateTransition_ValueRanges(t *testing.T) {
	t.Run("negative offer value", func(t *testing.T) {
		f := proposalFields()
		f.OfferValue = ptr(decimal.NewFromInt(-1))
		ve := validationError(t, ValidateTransition(domain.StageInitial, domain.StageProposalSent, f))
		assert.Equal(t, []string{FieldOfferValue}, ve.Fields)
	})

	t.Run("zero offer value is allowed", func(t *testing.T) {
		f := proposalFields()
		f.OfferValue = ptr(decimal.Zero)
		assert.NoError(t, ValidateTransition(domain.StageInitial, domain.StageProposalSent, f))
	})

	t.Run("probability above 100", func(t *testing.T) {
		f := proposalFields()
		f.ProbabilityPercentage = ptr(101)
		ve := validationError(t, ValidateTransition(domain.StageInitial, domain.StageProposalSent, f))
		assert.Equal(t, []string{FieldProbabilityPercentage}, ve.Fields)
	})

	t.Run("zero po value", func(t *testing.T) {
		f := poFields()
		f.POValue = ptr(decimal.Zero)
		ve := validationError(t, ValidateTransition(domain.StageNegotiation, domain.StagePOReceived, f))
		assert.Equal(t, []string{FieldPOValue}, ve.Fields)
	})

	t.Run("po received still needs the proposal fields", func(t *testing.T) {
		f := poFields()
		f.OfferMonth = ""
		f.POExpectedMonth = ""
		ve := validationError(t, ValidateTransition(domain.StageFinalApproval, domain.StagePOReceived, f))
		assert.Equal(t, []string{FieldOfferMonth, FieldPOExpectedMonth}, ve.Fields)
	})
}

func TestValidateTransition_Legality(t *testing.T) {
	strict := Policy{RestrictLostSources: true, AllowRegression: false}

	tests := []struct {
		name      string
		policy    Policy
		current   domain.OfferStage
		requested domain.OfferStage
		fields    Fields
		legal     bool
	}{
		{"same stage", DefaultPolicy, domain.StageNegotiation, domain.StageNegotiation, proposalFields(), true},
		{"forward skip", DefaultPolicy, domain.StageInitial, domain.StageFinalApproval, proposalFields(), true},
		{"won is terminal", DefaultPolicy, domain.StageWon, domain.StageNegotiation, proposalFields(), false},
		{"lost is terminal", DefaultPolicy, domain.StageLost, domain.StageInitial, initialFields(), false},
		{"won to lost", DefaultPolicy, domain.StageWon, domain.StageLost, Fields{Remarks: "x"}, false},
		{"regression allowed by default", DefaultPolicy, domain.StageFinalApproval, domain.StageProposalSent, proposalFields(), true},
		{"regression blocked", strict, domain.StageFinalApproval, domain.StageProposalSent, proposalFields(), false},
		{"lost from initial permissive", DefaultPolicy, domain.StageInitial, domain.StageLost, Fields{Remarks: "x"}, true},
		{"lost from initial restricted", strict, domain.StageInitial, domain.StageLost, Fields{Remarks: "x"}, false},
		{"lost from negotiation restricted", strict, domain.StageNegotiation, domain.StageLost, Fields{Remarks: "x"}, true},
		{"lost from order booked restricted", strict, domain.StageOrderBooked, domain.StageLost, Fields{Remarks: "x"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.ValidateTransition(tt.current, tt.requested, tt.fields)
			assert.Equal(t, tt.legal, tt.policy.CanTransition(tt.current, tt.requested))
			if tt.legal {
				assert.NoError(t, err)
				return
			}
			ve := validationError(t, err)
			assert.Equal(t, []string{FieldStage}, ve.Fields)
		})
	}
}

func TestValidateTransition_UnknownStage(t *testing.T) {
	ve := validationError(t, ValidateTransition(domain.StageInitial, "ARCHIVED", initialFields()))
	assert.Equal(t, []string{FieldStage}, ve.Fields)
}

func TestValidateTransition_Deterministic(t *testing.T) {
	f := Fields{}
	first := ValidateTransition(domain.StageInitial, domain.StageWon, f)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first.Error(), ValidateTransition(domain.StageInitial, domain.StageWon, f).Error())
	}
}

func TestIsRemarkBearing(t *testing.T) {
	for _, s := range []domain.OfferStage{domain.StageProposalSent, domain.StageNegotiation, domain.StageFinalApproval, domain.StageLost} {
		assert.True(t, IsRemarkBearing(s), s)
	}
	for _, s := range []domain.OfferStage{domain.StageInitial, domain.StagePOReceived, domain.StageOrderBooked, domain.StageWon} {
		assert.False(t, IsRemarkBearing(s), s)
	}
}

func TestRequiredFields(t *testing.T) {
	assert.Equal(t, []string{FieldRemarks}, RequiredFields(domain.StageLost))
	assert.Len(t, RequiredFields(domain.StageWon), 15)
	assert.Len(t, RequiredFields(domain.StageInitial), 6)
}
