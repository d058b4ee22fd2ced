package loader

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"sogif-site/internal/kpi"
	"sogif-site/internal/storage"
)

// SnapshotReader is the part of the snapshot store the loader needs.
type SnapshotReader interface {
	LatestSnapshot(ctx context.Context) (storage.Snapshot, error)
}

// Store loads the most recently published snapshot from the database.
type Store struct {
	reader SnapshotReader
	logger zerolog.Logger
}

// NewStore constructs a database-backed loader.
func NewStore(reader SnapshotReader, logger zerolog.Logger) *Store {
	return &Store{reader: reader, logger: logger.With().Str("component", "store_loader").Logger()}
}

// Load reads and validates the latest snapshot.
func (s *Store) Load(ctx context.Context) (*kpi.Bundle, error) {
	if s.reader == nil {
		return nil, Unavailable("store", storage.ErrNotConfigured)
	}

	snap, err := s.reader.LatestSnapshot(ctx)
	if err != nil {
		return nil, Unavailable("store", err)
	}

	bundle, err := kpi.Decode(snap.Document)
	if err != nil {
		return nil, Unavailable("store", fmt.Errorf("snapshot %d: %w", snap.ID, err))
	}

	s.logger.Debug().Int64("snapshot_id", snap.ID).Time("published_at", snap.PublishedAt).Msg("constants snapshot loaded")
	return bundle, nil
}

var _ Loader = (*Store)(nil)
