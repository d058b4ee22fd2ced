package kpi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrMalformed marks a document that does not satisfy the bundle shape.
var ErrMalformed = errors.New("kpi: malformed constants document")

// number decodes any JSON value into a decimal. Missing, null or non-numeric
// values leave it unset instead of failing the document.
type number struct {
	value decimal.Decimal
	set   bool
}

func (n *number) UnmarshalJSON(data []byte) error {
	n.value, n.set = decimal.Zero, false

	raw := strings.TrimSpace(string(data))
	if raw == "" || raw == "null" {
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		unquoted, err := strconv.Unquote(raw)
		if err != nil {
			return nil
		}
		raw = strings.TrimSpace(unquoted)
	}

	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil
	}
	n.value, n.set = d, true
	return nil
}

func (n number) orZero() decimal.Decimal {
	if !n.set {
		return decimal.Zero
	}
	return n.value
}

func (n number) nullable() decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: n.value, Valid: n.set}
}

type documentIn struct {
	PerformanceData    *performanceIn `json:"performanceData"`
	PerformanceKpiData *struct {
		MonthlySeries *[]rowIn `json:"monthlySeries"`
	} `json:"performanceKpiData"`
	PortalURL    string `json:"portalUrl"`
	ContactEmail string `json:"contactEmail"`
	PDSURL       string `json:"pdsUrl"`
}

type performanceIn struct {
	AsAt             string `json:"asAt"`
	InceptionDate    string `json:"inceptionDate"`
	IssuePrice       number `json:"issuePrice"`
	RedemptionPrice  number `json:"redemptionPrice"`
	NTA              number `json:"nta"`
	DistributionRate number `json:"distributionRate"`
	FUM              number `json:"fum"`
}

type rowIn struct {
	MonthLabel      string `json:"monthLabel"`
	SortKey         string `json:"sortKey"`
	IssuePrice      number `json:"issuePrice"`
	RedemptionPrice number `json:"redemptionPrice"`
	NTA             number `json:"nta"`
	Distribution    number `json:"distribution"`
	FUM             number `json:"fum"`
	AssetAllocation struct {
		Cash        number `json:"cash"`
		Efficient   number `json:"efficient"`
		Inefficient number `json:"inefficient"`
	} `json:"assetAllocation"`
	EfficientAssetsByType struct {
		Australian    number `json:"australian"`
		International number `json:"international"`
	} `json:"efficientAssetsByType"`
	InefficientByState struct {
		QLD number `json:"qld"`
		TAS number `json:"tas"`
		VIC number `json:"vic"`
		NSW number `json:"nsw"`
		WA  number `json:"wa"`
		SA  number `json:"sa"`
		NT  number `json:"nt"`
		ACT number `json:"act"`
	} `json:"inefficientByState"`
}

func (r rowIn) row() Row {
	return Row{
		MonthLabel:      strings.TrimSpace(r.MonthLabel),
		SortKey:         strings.TrimSpace(r.SortKey),
		IssuePrice:      r.IssuePrice.orZero(),
		RedemptionPrice: r.RedemptionPrice.nullable(),
		NTA:             r.NTA.orZero(),
		Distribution:    r.Distribution.orZero(),
		FUM:             r.FUM.orZero(),
		AssetAllocation: AssetAllocation{
			Cash:        r.AssetAllocation.Cash.orZero(),
			Efficient:   r.AssetAllocation.Efficient.orZero(),
			Inefficient: r.AssetAllocation.Inefficient.orZero(),
		},
		EfficientAssetsByType: EfficientAssets{
			Australian:    r.EfficientAssetsByType.Australian.orZero(),
			International: r.EfficientAssetsByType.International.orZero(),
		},
		InefficientByState: StateBreakdown{
			QLD: r.InefficientByState.QLD.orZero(),
			TAS: r.InefficientByState.TAS.orZero(),
			VIC: r.InefficientByState.VIC.orZero(),
			NSW: r.InefficientByState.NSW.orZero(),
			WA:  r.InefficientByState.WA.orZero(),
			SA:  r.InefficientByState.SA.orZero(),
			NT:  r.InefficientByState.NT.orZero(),
			ACT: r.InefficientByState.ACT.orZero(),
		},
	}
}

// Decode parses a constants document. Structural problems (not an object, missing
// performanceData or monthlySeries, bad or duplicate sort keys) are rejected with
// ErrMalformed; individual numeric fields that are absent or non-numeric become zero.
func Decode(data []byte) (*Bundle, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: document is not a JSON object", ErrMalformed)
	}

	var doc documentIn
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if doc.PerformanceData == nil {
		return nil, fmt.Errorf("%w: performanceData missing", ErrMalformed)
	}
	if doc.PerformanceKpiData == nil || doc.PerformanceKpiData.MonthlySeries == nil {
		return nil, fmt.Errorf("%w: performanceKpiData.monthlySeries missing", ErrMalformed)
	}

	in := *doc.PerformanceKpiData.MonthlySeries
	rows := make([]Row, 0, len(in))
	for _, r := range in {
		rows = append(rows, r.row())
	}

	p := doc.PerformanceData
	perf := Performance{
		AsAt:             strings.TrimSpace(p.AsAt),
		InceptionDate:    strings.TrimSpace(p.InceptionDate),
		IssuePrice:       p.IssuePrice.orZero(),
		RedemptionPrice:  p.RedemptionPrice.nullable(),
		NTA:              p.NTA.orZero(),
		DistributionRate: p.DistributionRate.orZero(),
		FUM:              p.FUM.orZero(),
	}
	ref := Reference{
		PortalURL:    strings.TrimSpace(doc.PortalURL),
		ContactEmail: strings.TrimSpace(doc.ContactEmail),
		PDSURL:       strings.TrimSpace(doc.PDSURL),
	}

	return NewBundle(perf, rows, ref)
}
