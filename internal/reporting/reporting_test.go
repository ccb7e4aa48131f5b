package reporting

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/straye-as/offer-pipeline-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func money(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func TestWinRate(t *testing.T) {
	tests := []struct {
		name        string
		won, closed int64
		display     string
		percent     *float64
	}{
		{"nothing closed", 0, 0, "N/A", nil},
		{"three of four", 3, 4, "75%", ptr(75.0)},
		{"all won", 2, 2, "100%", ptr(100.0)},
		{"none won", 0, 5, "0%", ptr(0.0)},
		{"two of three", 2, 3, "66.7%", ptr(66.7)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := WinRate(tt.won, tt.closed)
			assert.Equal(t, tt.display, r.Display)
			if tt.percent == nil {
				assert.Nil(t, r.Percent)
				return
			}
			require.NotNil(t, r.Percent)
			assert.InDelta(t, *tt.percent, *r.Percent, 0.001)
		})
	}
}

func TestAchievement(t *testing.T) {
	assert.Equal(t, 25.0, Achievement(decimal.NewFromInt(1000000), decimal.NewFromInt(250000)))
	assert.Equal(t, 0.0, Achievement(decimal.Zero, decimal.NewFromInt(250000)))
	assert.Equal(t, 150.0, Achievement(decimal.NewFromInt(100), decimal.NewFromInt(150)))
	assert.Equal(t, 33.33, Achievement(decimal.NewFromInt(3), decimal.NewFromInt(1)))
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)

	assert.Zero(t, s.TotalOffers)
	assert.Equal(t, NotAvailable, s.WinRate.Display)
	assert.Nil(t, s.AverageOfferValue)
	assert.Nil(t, s.AverageProbability)
	assert.Len(t, s.ByStage, 8)
	assert.Len(t, s.ByProductType, len(domain.ProductTypes))
	assert.Empty(t, s.ByMonth)
	assert.Empty(t, s.ByZone)
}

func TestSummarize(t *testing.T) {
	north := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	south := uuid.MustParse("22222222-2222-2222-2222-222222222222")

	figures := []OfferFigure{
		{Stage: domain.StageWon, ZoneID: north, ZoneName: "North", ProductType: domain.ProductSPP, OfferMonth: "2025-02", OfferValue: money(100), ProbabilityPercentage: ptr(100)},
		{Stage: domain.StageWon, ZoneID: north, ZoneName: "North", ProductType: domain.ProductSPP, OfferMonth: "2025-03", OfferValue: money(200)},
		{Stage: domain.StageWon, ZoneID: south, ZoneName: "South", ProductType: domain.ProductContract, OfferMonth: "2025-03", OfferValue: money(300)},
		{Stage: domain.StageLost, ZoneID: south, ZoneName: "South", ProductType: domain.ProductContract, OfferMonth: "2025-01", OfferValue: money(50)},
		{Stage: domain.StageNegotiation, ZoneID: north, ZoneName: "North", ProductType: domain.ProductSPP, OfferMonth: "2025-04", OfferValue: money(1000), ProbabilityPercentage: ptr(50)},
		{Stage: domain.StageInitial, ZoneID: south, ZoneName: "South", ProductType: domain.ProductSoftware},
	}

	s := Summarize(figures)

	assert.Equal(t, int64(6), s.TotalOffers)
	assert.Equal(t, int64(3), s.WonCount)
	assert.Equal(t, int64(1), s.LostCount)
	assert.Equal(t, int64(2), s.OpenOffers)
	assert.Equal(t, "75%", s.WinRate.Display)

	assert.Equal(t, 1650.0, s.TotalValue)
	assert.Equal(t, 1000.0, s.PipelineValue)
	assert.Equal(t, 500.0, s.WeightedPipelineValue)
	assert.Equal(t, 600.0, s.WonValue)

	// the initial offer has no value and is left out of the average
	require.NotNil(t, s.AverageOfferValue)
	assert.Equal(t, 330.0, *s.AverageOfferValue)
	require.NotNil(t, s.AverageProbability)
	assert.Equal(t, 75.0, *s.AverageProbability)

	months := make([]string, len(s.ByMonth))
	for i, b := range s.ByMonth {
		months[i] = b.Key
	}
	assert.Equal(t, []string{"2025-01", "2025-02", "2025-03", "2025-04", UnscheduledMonth}, months)
	assert.Equal(t, int64(2), s.ByMonth[2].WonCount)
	assert.Equal(t, 500.0, s.ByMonth[2].WonValue)

	require.Len(t, s.ByZone, 2)
	assert.Equal(t, "North", s.ByZone[0].Label)
	assert.Equal(t, int64(3), s.ByZone[0].Count)
	assert.Equal(t, 1300.0, s.ByZone[0].Value)

	for _, b := range s.ByStage {
		if b.Key == string(domain.StageWon) {
			assert.Equal(t, int64(3), b.Count)
		}
	}
}

func TestPeriodMonths(t *testing.T) {
	from, to := PeriodMonths(domain.PeriodYearly, "2025")
	assert.Equal(t, "2025-01", from)
	assert.Equal(t, "2025-12", to)

	from, to = PeriodMonths(domain.PeriodMonthly, "2025-03")
	assert.Equal(t, "2025-03", from)
	assert.Equal(t, "2025-03", to)
}
