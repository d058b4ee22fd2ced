package kpi

import (
	"encoding/json"
	"sort"

	"github.com/shopspring/decimal"
)

// Row is one reporting period of fund metrics.
type Row struct {
	MonthLabel string
	// SortKey orders rows chronologically ("2025-01"); MonthLabel is display only.
	SortKey string

	IssuePrice      decimal.Decimal
	RedemptionPrice decimal.NullDecimal
	NTA             decimal.Decimal
	Distribution    decimal.Decimal
	FUM             decimal.Decimal

	AssetAllocation       AssetAllocation
	EfficientAssetsByType EfficientAssets
	InefficientByState    StateBreakdown
}

// AssetAllocation splits FUM into cash, efficient and inefficient assets.
// The buckets are not required to sum to FUM.
type AssetAllocation struct {
	Cash        decimal.Decimal
	Efficient   decimal.Decimal
	Inefficient decimal.Decimal
}

// EfficientAssets splits efficient assets by market.
type EfficientAssets struct {
	Australian    decimal.Decimal
	International decimal.Decimal
}

// StateBreakdown holds inefficient assets per Australian jurisdiction.
type StateBreakdown struct {
	QLD decimal.Decimal
	TAS decimal.Decimal
	VIC decimal.Decimal
	NSW decimal.Decimal
	WA  decimal.Decimal
	SA  decimal.Decimal
	NT  decimal.Decimal
	ACT decimal.Decimal
}

// StateCodes lists the jurisdictions in their canonical output order.
var StateCodes = []string{"QLD", "TAS", "VIC", "NSW", "WA", "SA", "NT", "ACT"}

// Values returns the buckets in StateCodes order.
func (s StateBreakdown) Values() []decimal.Decimal {
	return []decimal.Decimal{s.QLD, s.TAS, s.VIC, s.NSW, s.WA, s.SA, s.NT, s.ACT}
}

// Chronological returns a copy of rows sorted ascending by SortKey. The input is left untouched.
func Chronological(rows []Row) []Row {
	sorted := make([]Row, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].SortKey < sorted[j].SortKey
	})
	return sorted
}

type rowJSON struct {
	MonthLabel            string              `json:"monthLabel"`
	SortKey               string              `json:"sortKey"`
	IssuePrice            decimal.Decimal     `json:"issuePrice"`
	RedemptionPrice       decimal.NullDecimal `json:"redemptionPrice"`
	NTA                   decimal.Decimal     `json:"nta"`
	Distribution          decimal.Decimal     `json:"distribution"`
	FUM                   decimal.Decimal     `json:"fum"`
	AssetAllocation       allocationJSON      `json:"assetAllocation"`
	EfficientAssetsByType efficientJSON       `json:"efficientAssetsByType"`
	InefficientByState    statesJSON          `json:"inefficientByState"`
}

type allocationJSON struct {
	Cash        decimal.Decimal `json:"cash"`
	Efficient   decimal.Decimal `json:"efficient"`
	Inefficient decimal.Decimal `json:"inefficient"`
}

type efficientJSON struct {
	Australian    decimal.Decimal `json:"australian"`
	International decimal.Decimal `json:"international"`
}

type statesJSON struct {
	QLD decimal.Decimal `json:"qld"`
	TAS decimal.Decimal `json:"tas"`
	VIC decimal.Decimal `json:"vic"`
	NSW decimal.Decimal `json:"nsw"`
	WA  decimal.Decimal `json:"wa"`
	SA  decimal.Decimal `json:"sa"`
	NT  decimal.Decimal `json:"nt"`
	ACT decimal.Decimal `json:"act"`
}

// MarshalJSON emits the row in the upstream document shape.
func (r Row) MarshalJSON() ([]byte, error) {
	return json.Marshal(rowJSON{
		MonthLabel:      r.MonthLabel,
		SortKey:         r.SortKey,
		IssuePrice:      r.IssuePrice,
		RedemptionPrice: r.RedemptionPrice,
		NTA:             r.NTA,
		Distribution:    r.Distribution,
		FUM:             r.FUM,
		AssetAllocation: allocationJSON{
			Cash:        r.AssetAllocation.Cash,
			Efficient:   r.AssetAllocation.Efficient,
			Inefficient: r.AssetAllocation.Inefficient,
		},
		EfficientAssetsByType: efficientJSON{
			Australian:    r.EfficientAssetsByType.Australian,
			International: r.EfficientAssetsByType.International,
		},
		InefficientByState: statesJSON{
			QLD: r.InefficientByState.QLD,
			TAS: r.InefficientByState.TAS,
			VIC: r.InefficientByState.VIC,
			NSW: r.InefficientByState.NSW,
			WA:  r.InefficientByState.WA,
			SA:  r.InefficientByState.SA,
			NT:  r.InefficientByState.NT,
			ACT: r.InefficientByState.ACT,
		},
	})
}
