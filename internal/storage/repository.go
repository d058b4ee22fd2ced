package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
	// ErrNoSnapshot indicates no constants document has been published yet.
	ErrNoSnapshot = errors.New("storage: no constants snapshot published")
)

const (
	insertSnapshotSQL = `INSERT INTO constants_snapshots (
        document,
        source
    ) VALUES (
        $1,$2
    )
    RETURNING id, published_at;`

	latestSnapshotSQL = `SELECT
        id,
        document,
        source,
        published_at
    FROM constants_snapshots
    ORDER BY published_at DESC, id DESC
    LIMIT 1;`

	listSnapshotsSQL = `SELECT
        id,
        document,
        source,
        published_at
    FROM constants_snapshots
    ORDER BY published_at DESC, id DESC
    LIMIT $1;`

	insertLeadSQL = `INSERT INTO leads (
        id,
        email,
        phone,
        investment_min_k,
        investment_max_k,
        source,
        turnstile_success,
        ip_hash,
        user_agent
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9
    )
    RETURNING created_at;`

	countLeadsSinceSQL = `SELECT COUNT(*) FROM leads WHERE created_at >= $1;`
)

// SnapshotStore defines operations for published constants documents.
type SnapshotStore interface {
	InsertSnapshot(ctx context.Context, document []byte, source string) (Snapshot, error)
	LatestSnapshot(ctx context.Context) (Snapshot, error)
	ListSnapshots(ctx context.Context, limit int) ([]Snapshot, error)
}

// LeadStore defines operations for lead persistence.
type LeadStore interface {
	InsertLead(ctx context.Context, lead Lead) (Lead, error)
	CountLeadsSince(ctx context.Context, since time.Time) (int64, error)
}

// Store aggregates access to snapshots and leads.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Pool exposes the underlying pool, nil when unconfigured.
func (s *Store) Pool() *pgxpool.Pool {
	if s == nil {
		return nil
	}
	return s.pool
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// InsertSnapshot publishes a constants document.
func (s *Store) InsertSnapshot(ctx context.Context, document []byte, source string) (Snapshot, error) {
	pool, err := s.getPool()
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{Document: document, Source: source}
	if scanErr := pool.QueryRow(ctx, insertSnapshotSQL, document, source).Scan(&snap.ID, &snap.PublishedAt); scanErr != nil {
		return Snapshot{}, fmt.Errorf("insert snapshot: %w", scanErr)
	}
	return snap, nil
}

// LatestSnapshot returns the most recently published document.
func (s *Store) LatestSnapshot(ctx context.Context) (Snapshot, error) {
	pool, err := s.getPool()
	if err != nil {
		return Snapshot{}, err
	}

	var snap Snapshot
	scanErr := pool.QueryRow(ctx, latestSnapshotSQL).Scan(&snap.ID, &snap.Document, &snap.Source, &snap.PublishedAt)
	if errors.Is(scanErr, pgx.ErrNoRows) {
		return Snapshot{}, ErrNoSnapshot
	}
	if scanErr != nil {
		return Snapshot{}, fmt.Errorf("latest snapshot: %w", scanErr)
	}
	return snap, nil
}

// ListSnapshots lists the most recent documents, newest first.
func (s *Store) ListSnapshots(ctx context.Context, limit int) ([]Snapshot, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listSnapshotsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list snapshots: %w", queryErr)
	}
	defer rows.Close()

	snaps := make([]Snapshot, 0, limit)
	for rows.Next() {
		var snap Snapshot
		if err := rows.Scan(&snap.ID, &snap.Document, &snap.Source, &snap.PublishedAt); err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return snaps, nil
}

// InsertLead persists a form submission and returns it with its creation time.
func (s *Store) InsertLead(ctx context.Context, lead Lead) (Lead, error) {
	pool, err := s.getPool()
	if err != nil {
		return Lead{}, err
	}

	row := pool.QueryRow(ctx, insertLeadSQL,
		lead.ID,
		lead.Email,
		lead.Phone,
		lead.InvestmentMinK,
		lead.InvestmentMaxK,
		lead.Source,
		lead.TurnstileSuccess,
		lead.IPHash,
		lead.UserAgent,
	)
	if scanErr := row.Scan(&lead.CreatedAt); scanErr != nil {
		return Lead{}, fmt.Errorf("insert lead: %w", scanErr)
	}
	return lead, nil
}

// CountLeadsSince counts submissions created at or after since.
func (s *Store) CountLeadsSince(ctx context.Context, since time.Time) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countLeadsSinceSQL, since).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count leads: %w", scanErr)
	}
	return count, nil
}

var (
	_ SnapshotStore = (*Store)(nil)
	_ LeadStore     = (*Store)(nil)
)
