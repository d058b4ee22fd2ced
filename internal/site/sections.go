// Package site builds the read-only page sections that present the fund's constants.
package site

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"sogif-site/internal/constants"
	"sogif-site/internal/kpi"
)

// ErrUnknownSection is returned by Build for names outside SectionNames.
var ErrUnknownSection = errors.New("site: unknown section")

// CSVPath is where the performance section points its download link.
const CSVPath = "/api/v1/performance.csv"

var (
	hundred = decimal.NewFromInt(100)
	million = decimal.NewFromInt(1_000_000)
)

// Metric is one labelled figure.
type Metric struct {
	Label string `json:"label"`
	Value string `json:"value"`
	Note  string `json:"note,omitempty"`
}

type Hero struct {
	AsAt             string `json:"asAt"`
	DistributionRate string `json:"distributionRate"`
	FUM              string `json:"fum"`
	PortalURL        string `json:"portalUrl"`
}

type KeyMetrics struct {
	AsAt    string   `json:"asAt"`
	Metrics []Metric `json:"metrics"`
}

// Point is one month of the performance chart.
type Point struct {
	Month           string `json:"month"`
	SortKey         string `json:"sortKey"`
	IssuePrice      string `json:"issuePrice"`
	RedemptionPrice string `json:"redemptionPrice,omitempty"`
	NTA             string `json:"nta"`
	Distribution    string `json:"distribution"`
}

type Performance struct {
	Points      []Point `json:"points"`
	DownloadURL string  `json:"downloadUrl"`
}

// Share is an amount and its proportion of a total.
type Share struct {
	Label   string `json:"label"`
	Amount  string `json:"amount"`
	Percent string `json:"percent"`
}

// Allocation describes the latest month's asset mix. Buckets are shown as
// reported; they are not reconciled against FUM.
type Allocation struct {
	Month   string  `json:"month"`
	Buckets []Share `json:"buckets"`
	ByType  []Share `json:"byType"`
	ByState []Share `json:"byState"`
}

type Invest struct {
	PortalURL     string `json:"portalUrl"`
	PDSURL        string `json:"pdsUrl,omitempty"`
	ContactEmail  string `json:"contactEmail,omitempty"`
	InceptionDate string `json:"inceptionDate,omitempty"`
}

func BuildHero(p *constants.Provider) (Hero, error) {
	b, err := p.Use()
	if err != nil {
		return Hero{}, err
	}
	perf := b.Performance()
	return Hero{
		AsAt:             perf.AsAt,
		DistributionRate: percent(perf.DistributionRate),
		FUM:              millions(perf.FUM),
		PortalURL:        b.PortalURL(),
	}, nil
}

func BuildKeyMetrics(p *constants.Provider) (KeyMetrics, error) {
	b, err := p.Use()
	if err != nil {
		return KeyMetrics{}, err
	}
	perf := b.Performance()

	redemption := Metric{Label: "Redemption Price", Value: "n/a", Note: "No redemption price for this period"}
	if perf.RedemptionPrice.Valid {
		redemption = Metric{Label: "Redemption Price", Value: price(perf.RedemptionPrice.Decimal)}
	}

	return KeyMetrics{
		AsAt: perf.AsAt,
		Metrics: []Metric{
			{Label: "Issue Price", Value: price(perf.IssuePrice)},
			redemption,
			{Label: "NTA", Value: price(perf.NTA)},
			{Label: "Distribution Rate", Value: percent(perf.DistributionRate), Note: "Annualised"},
			{Label: "Funds Under Management", Value: millions(perf.FUM)},
		},
	}, nil
}

// BuildPerformance lists the monthly series oldest first.
func BuildPerformance(p *constants.Provider) (Performance, error) {
	b, err := p.Use()
	if err != nil {
		return Performance{}, err
	}
	rows := kpi.Chronological(b.MonthlySeries())
	points := make([]Point, 0, len(rows))
	for _, row := range rows {
		pt := Point{
			Month:        row.MonthLabel,
			SortKey:      row.SortKey,
			IssuePrice:   row.IssuePrice.StringFixed(4),
			NTA:          row.NTA.StringFixed(4),
			Distribution: row.Distribution.StringFixed(4),
		}
		if row.RedemptionPrice.Valid {
			pt.RedemptionPrice = row.RedemptionPrice.Decimal.StringFixed(4)
		}
		points = append(points, pt)
	}
	return Performance{Points: points, DownloadURL: CSVPath}, nil
}

// BuildAllocation returns nil when the series is empty.
func BuildAllocation(p *constants.Provider) (*Allocation, error) {
	b, err := p.Use()
	if err != nil {
		return nil, err
	}
	latest, ok := b.Latest()
	if !ok {
		return nil, nil
	}

	alloc := latest.AssetAllocation
	efficient := latest.EfficientAssetsByType
	out := &Allocation{
		Month: latest.MonthLabel,
		Buckets: shares(
			[]string{"Cash", "Efficient", "Inefficient"},
			[]decimal.Decimal{alloc.Cash, alloc.Efficient, alloc.Inefficient},
		),
		ByType: shares(
			[]string{"Australian", "International"},
			[]decimal.Decimal{efficient.Australian, efficient.International},
		),
		ByState: shares(kpi.StateCodes, latest.InefficientByState.Values()),
	}
	return out, nil
}

func BuildInvest(p *constants.Provider) (Invest, error) {
	b, err := p.Use()
	if err != nil {
		return Invest{}, err
	}
	return Invest{
		PortalURL:     b.PortalURL(),
		PDSURL:        b.PDSURL(),
		ContactEmail:  b.ContactEmail(),
		InceptionDate: b.Performance().InceptionDate,
	}, nil
}

// shares expresses each value as a percentage of their sum.
func shares(labels []string, values []decimal.Decimal) []Share {
	total := decimal.Sum(decimal.Zero, values...)
	out := make([]Share, len(values))
	for i, v := range values {
		pct := decimal.Zero
		if total.IsPositive() {
			pct = v.Div(total).Mul(hundred)
		}
		out[i] = Share{Label: labels[i], Amount: dollars(v), Percent: pct.StringFixed(1) + "%"}
	}
	return out
}

func price(d decimal.Decimal) string { return "$" + d.StringFixed(4) }

func percent(d decimal.Decimal) string { return d.StringFixed(2) + "%" }

func dollars(d decimal.Decimal) string { return "$" + d.StringFixed(0) }

func millions(d decimal.Decimal) string {
	return fmt.Sprintf("$%sm", d.Div(million).StringFixed(1))
}
