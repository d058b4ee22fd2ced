package app

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"sogif-site/internal/kpi"
)

const leadWindow = 7 * 24 * time.Hour

// Show prints the most recent periods of the performance series, oldest first.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	bundle, closeAll, err := a.loadOnce(ctx)
	if err != nil {
		return err
	}
	defer closeAll()

	perf := bundle.Performance()
	fmt.Fprintf(a.Out, "As at %s  issue %s  nta %s  distribution %s%%\n\n",
		perf.AsAt, perf.IssuePrice.StringFixed(4), perf.NTA.StringFixed(4), perf.DistributionRate.StringFixed(2))

	rows := kpi.Chronological(bundle.MonthlySeries())
	if len(rows) == 0 {
		fmt.Fprintln(a.Out, "no periods found")
		return a.showStoreSummary(ctx, opts)
	}
	if opts.Limit > 0 && len(rows) > opts.Limit {
		rows = rows[len(rows)-opts.Limit:]
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Month\tIssue\tRedemption\tNTA\tDistribution\tFUM")
	for _, row := range rows {
		redemption := "-"
		if row.RedemptionPrice.Valid {
			redemption = row.RedemptionPrice.Decimal.StringFixed(4)
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\n",
			sanitizeInline(row.MonthLabel),
			row.IssuePrice.StringFixed(4),
			redemption,
			row.NTA.StringFixed(4),
			row.Distribution.StringFixed(4),
			row.FUM.StringFixed(0),
		)
	}
	writer.Flush()

	return a.showStoreSummary(ctx, opts)
}

// showStoreSummary prints lead and snapshot activity when a database is configured.
func (a *App) showStoreSummary(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil || store == nil {
		return err
	}
	defer closeStore()

	count, err := store.CountLeadsSince(ctx, time.Now().Add(-leadWindow))
	if err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "\nleads in the last 7 days: %d\n", count)

	if !opts.Snapshots {
		return nil
	}
	snaps, err := store.ListSnapshots(ctx, 10)
	if err != nil {
		return err
	}
	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "\nSnapshot\tPublished (UTC)\tSource\tBytes")
	for _, snap := range snaps {
		fmt.Fprintf(writer, "%d\t%s\t%s\t%d\n", snap.ID, snap.PublishedAt.UTC().Format(time.RFC3339), sanitizeInline(snap.Source), len(snap.Document))
	}
	writer.Flush()
	return nil
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
