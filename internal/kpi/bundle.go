package kpi

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Performance holds the headline fund metrics shown across the site.
type Performance struct {
	AsAt             string
	InceptionDate    string
	IssuePrice       decimal.Decimal
	RedemptionPrice  decimal.NullDecimal
	NTA              decimal.Decimal
	DistributionRate decimal.Decimal
	FUM              decimal.Decimal
}

// Reference carries the simple link and contact fields of the bundle.
type Reference struct {
	PortalURL    string
	ContactEmail string
	PDSURL       string
}

// Bundle is an immutable snapshot of the site's reference data for one cache epoch.
// Accessors return copies; nothing outside this package can modify a Bundle.
type Bundle struct {
	performance Performance
	series      []Row
	reference   Reference
}

// NewBundle validates rows and builds a snapshot. Rows keep the order given.
func NewBundle(perf Performance, rows []Row, ref Reference) (*Bundle, error) {
	seen := make(map[string]struct{}, len(rows))
	for i, row := range rows {
		key := strings.TrimSpace(row.SortKey)
		if key == "" {
			return nil, fmt.Errorf("%w: monthlySeries[%d] has empty sortKey", ErrMalformed, i)
		}
		if strings.TrimSpace(row.MonthLabel) == "" {
			return nil, fmt.Errorf("%w: monthlySeries[%d] has empty monthLabel", ErrMalformed, i)
		}
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("%w: duplicate sortKey %q", ErrMalformed, key)
		}
		seen[key] = struct{}{}
	}

	series := make([]Row, len(rows))
	copy(series, rows)
	return &Bundle{performance: perf, series: series, reference: ref}, nil
}

// Performance returns the summary metrics.
func (b *Bundle) Performance() Performance { return b.performance }

// MonthlySeries returns a copy of the rows in the order they were received.
func (b *Bundle) MonthlySeries() []Row {
	rows := make([]Row, len(b.series))
	copy(rows, b.series)
	return rows
}

// Len reports the number of monthly rows.
func (b *Bundle) Len() int { return len(b.series) }

// Latest returns the row with the greatest SortKey.
func (b *Bundle) Latest() (Row, bool) {
	if len(b.series) == 0 {
		return Row{}, false
	}
	latest := b.series[0]
	for _, row := range b.series[1:] {
		if row.SortKey > latest.SortKey {
			latest = row
		}
	}
	return latest, true
}

// PortalURL is the investor portal link.
func (b *Bundle) PortalURL() string { return b.reference.PortalURL }

// ContactEmail is the investor relations address.
func (b *Bundle) ContactEmail() string { return b.reference.ContactEmail }

// PDSURL links the current product disclosure statement.
func (b *Bundle) PDSURL() string { return b.reference.PDSURL }

type bundleJSON struct {
	PerformanceData    performanceJSON `json:"performanceData"`
	PerformanceKpiData struct {
		MonthlySeries []Row `json:"monthlySeries"`
	} `json:"performanceKpiData"`
	PortalURL    string `json:"portalUrl,omitempty"`
	ContactEmail string `json:"contactEmail,omitempty"`
	PDSURL       string `json:"pdsUrl,omitempty"`
}

type performanceJSON struct {
	AsAt             string              `json:"asAt,omitempty"`
	InceptionDate    string              `json:"inceptionDate,omitempty"`
	IssuePrice       decimal.Decimal     `json:"issuePrice"`
	RedemptionPrice  decimal.NullDecimal `json:"redemptionPrice"`
	NTA              decimal.Decimal     `json:"nta"`
	DistributionRate decimal.Decimal     `json:"distributionRate"`
	FUM              decimal.Decimal     `json:"fum"`
}

// MarshalJSON writes the bundle in the same document shape Decode accepts.
func (b *Bundle) MarshalJSON() ([]byte, error) {
	var doc bundleJSON
	p := b.performance
	doc.PerformanceData = performanceJSON{
		AsAt:             p.AsAt,
		InceptionDate:    p.InceptionDate,
		IssuePrice:       p.IssuePrice,
		RedemptionPrice:  p.RedemptionPrice,
		NTA:              p.NTA,
		DistributionRate: p.DistributionRate,
		FUM:              p.FUM,
	}
	doc.PerformanceKpiData.MonthlySeries = b.series
	if doc.PerformanceKpiData.MonthlySeries == nil {
		doc.PerformanceKpiData.MonthlySeries = []Row{}
	}
	doc.PortalURL = b.reference.PortalURL
	doc.ContactEmail = b.reference.ContactEmail
	doc.PDSURL = b.reference.PDSURL
	return json.Marshal(doc)
}
