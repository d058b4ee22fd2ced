package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"sogif-site/internal/export"
	"sogif-site/internal/kpi"
)

// Export writes the performance series as CSV and, optionally, a PNG chart.
// With no explicit paths the CSV lands in the export directory under its download name.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	bundle, closeAll, err := a.loadOnce(ctx)
	if err != nil {
		return err
	}
	defer closeAll()

	csvPath := opts.CSVPath
	if csvPath == "" && opts.PNGPath == "" {
		csvPath = filepath.Join(a.Config.ResolveExportDir(opts.Dir), export.Filename(time.Now()))
	}

	rows := bundle.MonthlySeries()
	if csvPath != "" {
		if err := writeCSV(csvPath, rows); err != nil {
			return err
		}
		a.Logger.Info().Str("path", csvPath).Int("rows", len(rows)).Msg("performance csv written")
	}

	if opts.PNGPath != "" {
		if err := writePNG(opts.PNGPath, rows); err != nil {
			if errors.Is(err, export.ErrTooFewPoints) {
				a.Logger.Warn().Int("rows", len(rows)).Msg("not enough periods for a chart; skipping png")
				return nil
			}
			return err
		}
		a.Logger.Info().Str("path", opts.PNGPath).Msg("performance chart written")
	}

	return nil
}

// loadOnce resolves the bundle through the configured loader chain without a cache.
func (a *App) loadOnce(ctx context.Context) (*kpi.Bundle, func(), error) {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	closeAll := func() {
		if closeStore != nil {
			closeStore()
		}
	}

	l, closeLoader, err := a.newLoader(store)
	if err != nil {
		closeAll()
		return nil, nil, err
	}

	bundle, err := l.Load(ctx)
	closeLoader()
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	return bundle, closeAll, nil
}

func writeCSV(path string, rows []kpi.Row) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(export.ToCSV(rows)), 0o644)
}

func writePNG(path string, rows []kpi.Row) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return export.WritePNG(file, rows)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
