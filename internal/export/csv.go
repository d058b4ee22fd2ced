package export

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"sogif-site/internal/kpi"
)

// ContentType is the MIME type of the CSV artifact.
const ContentType = "text/csv"

const (
	pricePlaces  = 4
	amountPlaces = 0
)

// Header lists the CSV columns in output order.
var Header = append([]string{
	"Month",
	"Issue Price",
	"Redemption Price",
	"NTA",
	"Distribution",
	"FUM",
	"Cash",
	"Efficient",
	"Inefficient",
	"Australian (Efficient)",
	"International (Efficient)",
}, kpi.StateCodes...)

// Filename names the download for the given day, e.g. sogif-performance-data-2025-03-31.csv.
func Filename(t time.Time) string {
	return "sogif-performance-data-" + t.Format("2006-01-02") + ".csv"
}

// ToCSV renders rows in chronological order. Fields are not quoted; labels and
// numbers are the only values written. An empty series yields the header alone.
func ToCSV(rows []kpi.Row) string {
	sorted := kpi.Chronological(rows)

	lines := make([]string, 0, len(sorted)+1)
	lines = append(lines, strings.Join(Header, ","))
	for _, row := range sorted {
		lines = append(lines, strings.Join(record(row), ","))
	}
	return strings.Join(lines, "\n")
}

func record(row kpi.Row) []string {
	redemption := ""
	if row.RedemptionPrice.Valid {
		redemption = row.RedemptionPrice.Decimal.StringFixed(pricePlaces)
	}

	fields := []string{
		row.MonthLabel,
		row.IssuePrice.StringFixed(pricePlaces),
		redemption,
		row.NTA.StringFixed(pricePlaces),
		row.Distribution.StringFixed(pricePlaces),
		amount(row.FUM),
		amount(row.AssetAllocation.Cash),
		amount(row.AssetAllocation.Efficient),
		amount(row.AssetAllocation.Inefficient),
		amount(row.EfficientAssetsByType.Australian),
		amount(row.EfficientAssetsByType.International),
	}
	for _, v := range row.InefficientByState.Values() {
		fields = append(fields, amount(v))
	}
	return fields
}

func amount(d decimal.Decimal) string {
	return d.StringFixed(amountPlaces)
}
