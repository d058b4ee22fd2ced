package export

import (
	"errors"
	"fmt"
	"io"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"sogif-site/internal/kpi"
)

// ErrTooFewPoints is returned when a chart would have fewer than two periods.
var ErrTooFewPoints = errors.New("export: at least two periods are needed to draw a chart")

const sortKeyLayout = "2006-01"

// WritePNG draws issue price, NTA and redemption price over time.
func WritePNG(w io.Writer, rows []kpi.Row) error {
	sorted := kpi.Chronological(rows)
	if len(sorted) < 2 {
		return ErrTooFewPoints
	}

	x := make([]time.Time, len(sorted))
	issue := make([]float64, len(sorted))
	nta := make([]float64, len(sorted))
	var redemptionX []time.Time
	var redemption []float64

	for i, row := range sorted {
		period, err := time.Parse(sortKeyLayout, row.SortKey)
		if err != nil {
			return fmt.Errorf("parse sort key %q: %w", row.SortKey, err)
		}
		x[i] = period
		issue[i] = row.IssuePrice.InexactFloat64()
		nta[i] = row.NTA.InexactFloat64()
		if row.RedemptionPrice.Valid {
			redemptionX = append(redemptionX, period)
			redemption = append(redemption, row.RedemptionPrice.Decimal.InexactFloat64())
		}
	}

	priceFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.4f")
	}
	series := []chart.Series{
		chart.TimeSeries{Name: "Issue Price", XValues: x, YValues: issue},
		chart.TimeSeries{Name: "NTA", XValues: x, YValues: nta},
	}
	if len(redemption) >= 2 {
		series = append(series, chart.TimeSeries{Name: "Redemption Price", XValues: redemptionX, YValues: redemption})
	}

	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatterWithFormat("Jan 2006"),
		},
		YAxis: chart.YAxis{
			Name:           "Unit price (AUD)",
			ValueFormatter: priceFormatter,
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	return graph.Render(chart.PNG, w)
}
