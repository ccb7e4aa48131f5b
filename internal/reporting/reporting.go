// Package reporting computes the read-only pipeline figures shown on
// dashboards. Everything here is pure; callers load the rows.
package reporting

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/straye-as/offer-pipeline-api/internal/domain"
)

// NotAvailable is displayed for a rate with no denominator
const NotAvailable = "N/A"

// UnscheduledMonth is the month bucket for offers without an offer month
const UnscheduledMonth = "UNSCHEDULED"

var hundred = decimal.NewFromInt(100)

// OfferFigure is the slice of an offer that reports look at
type OfferFigure struct {
	Stage                 domain.OfferStage
	ZoneID                uuid.UUID
	ZoneName              string
	ProductType           domain.ProductType
	OfferMonth            string
	OfferValue            *decimal.Decimal
	ProbabilityPercentage *int
}

// Rate is a percentage that may be undefined
type Rate struct {
	Percent *float64 `json:"percent"`
	Display string   `json:"display"`
}

// WinRate is won / closed as a percentage, N/A when nothing has closed
func WinRate(won, closed int64) Rate {
	if closed <= 0 {
		return Rate{Display: NotAvailable}
	}
	p := decimal.NewFromInt(won).Div(decimal.NewFromInt(closed)).Mul(hundred).Round(1)
	f := p.InexactFloat64()
	return Rate{Percent: &f, Display: p.String() + "%"}
}

// Achievement is actual as a percentage of target, 0 when the target is 0
func Achievement(target, actual decimal.Decimal) float64 {
	if target.IsZero() {
		return 0
	}
	return actual.Div(target).Mul(hundred).Round(2).InexactFloat64()
}

// Bucket is one group of a breakdown
type Bucket struct {
	Key      string  `json:"key"`
	Label    string  `json:"label,omitempty"`
	Count    int64   `json:"count"`
	Value    float64 `json:"value"`
	WonCount int64   `json:"wonCount"`
	WonValue float64 `json:"wonValue"`
}

// Summary is the dashboard view over a set of offers
type Summary struct {
	TotalOffers           int64    `json:"totalOffers"`
	OpenOffers            int64    `json:"openOffers"`
	WonCount              int64    `json:"wonCount"`
	LostCount             int64    `json:"lostCount"`
	TotalValue            float64  `json:"totalValue"`
	PipelineValue         float64  `json:"pipelineValue"`
	WeightedPipelineValue float64  `json:"weightedPipelineValue"`
	WonValue              float64  `json:"wonValue"`
	AverageOfferValue     *float64 `json:"averageOfferValue"`
	AverageProbability    *float64 `json:"averageProbability"`
	WinRate               Rate     `json:"winRate"`
	ByStage               []Bucket `json:"byStage"`
	ByMonth               []Bucket `json:"byMonth"`
	ByZone                []Bucket `json:"byZone"`
	ByProductType         []Bucket `json:"byProductType"`
}

type acc struct {
	key, label string
	count      int64
	value      decimal.Decimal
	wonCount   int64
	wonValue   decimal.Decimal
}

func (a *acc) add(f OfferFigure, value decimal.Decimal) {
	a.count++
	a.value = a.value.Add(value)
	if f.Stage == domain.StageWon {
		a.wonCount++
		a.wonValue = a.wonValue.Add(value)
	}
}

func (a *acc) bucket() Bucket {
	return Bucket{
		Key:      a.key,
		Label:    a.label,
		Count:    a.count,
		Value:    a.value.InexactFloat64(),
		WonCount: a.wonCount,
		WonValue: a.wonValue.InexactFloat64(),
	}
}

type group struct {
	order []string
	items map[string]*acc
}

func newGroup() *group { return &group{items: map[string]*acc{}} }

func (g *group) get(key, label string) *acc {
	a, ok := g.items[key]
	if !ok {
		a = &acc{key: key, label: label}
		g.items[key] = a
		g.order = append(g.order, key)
	}
	return a
}

func (g *group) buckets(less func(a, b *acc) bool) []Bucket {
	list := make([]*acc, 0, len(g.order))
	for _, k := range g.order {
		list = append(list, g.items[k])
	}
	if less != nil {
		sort.SliceStable(list, func(i, j int) bool { return less(list[i], list[j]) })
	}
	out := make([]Bucket, len(list))
	for i, a := range list {
		out[i] = a.bucket()
	}
	return out
}

// Summarize aggregates offers. Missing values count as zero in sums and are
// left out of averages.
func Summarize(figures []OfferFigure) Summary {
	var (
		s                                 Summary
		total, pipeline, weighted, wonSum decimal.Decimal
		valued                            int64
		probSum                           int64
		probCount                         int64
	)

	stages := newGroup()
	for _, st := range append(stageOrder(), domain.StageLost) {
		stages.get(string(st), "")
	}
	products := newGroup()
	for _, p := range domain.ProductTypes {
		products.get(string(p), "")
	}
	months := newGroup()
	zones := newGroup()

	for _, f := range figures {
		value := decimal.Zero
		if f.OfferValue != nil {
			value = *f.OfferValue
			valued++
		}
		if f.ProbabilityPercentage != nil {
			probSum += int64(*f.ProbabilityPercentage)
			probCount++
		}

		s.TotalOffers++
		total = total.Add(value)

		switch f.Stage {
		case domain.StageWon:
			s.WonCount++
			wonSum = wonSum.Add(value)
		case domain.StageLost:
			s.LostCount++
		default:
			s.OpenOffers++
			pipeline = pipeline.Add(value)
			if f.ProbabilityPercentage != nil {
				weighted = weighted.Add(value.Mul(decimal.NewFromInt(int64(*f.ProbabilityPercentage))).Div(hundred))
			}
		}

		stages.get(string(f.Stage), "").add(f, value)
		products.get(string(f.ProductType), "").add(f, value)

		month := f.OfferMonth
		if month == "" {
			month = UnscheduledMonth
		}
		months.get(month, "").add(f, value)

		zones.get(f.ZoneID.String(), f.ZoneName).add(f, value)
	}

	s.TotalValue = total.InexactFloat64()
	s.PipelineValue = pipeline.InexactFloat64()
	s.WeightedPipelineValue = weighted.Round(2).InexactFloat64()
	s.WonValue = wonSum.InexactFloat64()
	s.WinRate = WinRate(s.WonCount, s.WonCount+s.LostCount)

	if valued > 0 {
		avg := total.Div(decimal.NewFromInt(valued)).Round(2).InexactFloat64()
		s.AverageOfferValue = &avg
	}
	if probCount > 0 {
		avg := decimal.NewFromInt(probSum).Div(decimal.NewFromInt(probCount)).Round(1).InexactFloat64()
		s.AverageProbability = &avg
	}

	s.ByStage = stages.buckets(nil)
	s.ByProductType = products.buckets(nil)
	s.ByMonth = months.buckets(func(a, b *acc) bool {
		// unscheduled sorts last
		if a.key == UnscheduledMonth || b.key == UnscheduledMonth {
			return b.key == UnscheduledMonth && a.key != UnscheduledMonth
		}
		return a.key < b.key
	})
	s.ByZone = zones.buckets(func(a, b *acc) bool {
		if a.label != b.label {
			return a.label < b.label
		}
		return a.key < b.key
	})

	return s
}

func stageOrder() []domain.OfferStage {
	return []domain.OfferStage{
		domain.StageInitial,
		domain.StageProposalSent,
		domain.StageNegotiation,
		domain.StageFinalApproval,
		domain.StagePOReceived,
		domain.StageOrderBooked,
		domain.StageWon,
	}
}

// PeriodMonths returns the first and last offer month a target period covers
func PeriodMonths(period domain.TargetPeriod, key string) (from, to string) {
	if period == domain.PeriodYearly {
		return key + "-01", key + "-12"
	}
	return key, key
}
