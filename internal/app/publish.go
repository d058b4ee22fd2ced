package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"sogif-site/internal/kpi"
	"sogif-site/internal/loader"
	"sogif-site/internal/storage"
)

// Publish validates a constants document and stores it as the newest snapshot.
func (a *App) Publish(ctx context.Context, opts PublishOptions) error {
	if opts.File == "" {
		return errors.New("--file is required")
	}

	raw, err := os.ReadFile(opts.File)
	if err != nil {
		return fmt.Errorf("read %s: %w", opts.File, err)
	}
	doc, err := loader.ReadDocument(opts.File, raw)
	if err != nil {
		return err
	}
	bundle, err := kpi.Decode(doc)
	if err != nil {
		return fmt.Errorf("%s: %w", opts.File, err)
	}

	latest, _ := bundle.Latest()
	logger := a.Logger.With().Str("file", opts.File).Int("rows", bundle.Len()).Str("latest", latest.SortKey).Logger()
	if opts.DryRun {
		logger.Info().Msg("document valid (dry run, not stored)")
		return nil
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot publish")
	}
	defer closeStore()

	source := opts.Source
	if source == "" {
		source = filepath.Base(opts.File)
	}
	snap, err := store.InsertSnapshot(ctx, doc, source)
	if err != nil {
		return err
	}

	logger.Info().Int64("snapshot_id", snap.ID).Time("published_at", snap.PublishedAt).Msg("constants snapshot published")
	fmt.Fprintf(a.Out, "published snapshot %d (%d periods)\n", snap.ID, bundle.Len())
	return nil
}

// Migrate applies the SQL migrations.
func (a *App) Migrate(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot migrate")
	}
	defer closeStore()

	applied, err := storage.Migrate(ctx, store.Pool(), a.Config.Database.MigrationsPath)
	if err != nil {
		return err
	}
	a.Logger.Info().Strs("applied", applied).Msg("migrations applied")
	return nil
}
