// Package pgstore saves and restores editing snapshots in PostgreSQL. A
// snapshot keeps every element with its version and edit state, tombstones
// included, plus the original download box.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/wegman-software/osmedit/internal/graph"
	"github.com/wegman-software/osmedit/internal/logger"
)

// ErrNotFound is returned when a snapshot id is unknown
var ErrNotFound = errors.New("snapshot not found")

// Snapshot describes a saved snapshot
type Snapshot struct {
	ID        uuid.UUID
	Label     string
	CreatedAt time.Time
	Nodes     int64
	Ways      int64
	Relations int64
	Changes   int64
}

// Store manages the snapshot tables
type Store struct {
	pool   *pgxpool.Pool
	schema string
	log    *zap.Logger
}

// Open connects to the database and returns a store on schema
func Open(ctx context.Context, databaseURL, schema string) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return New(pool, schema), nil
}

// New wraps an existing pool
func New(pool *pgxpool.Pool, schema string) *Store {
	if schema == "" {
		schema = "public"
	}
	return &Store{pool: pool, schema: schema, log: logger.Named("pgstore")}
}

// Close releases the pool
func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) table(name string) string {
	return pgx.Identifier{s.schema, name}.Sanitize()
}

// EnsureSchema creates the snapshot tables if they don't exist
func (s *Store) EnsureSchema(ctx context.Context) error {
	statements := []struct {
		name string
		sql  string
	}{
		{"schema", fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", pgx.Identifier{s.schema}.Sanitize())},
		{tableSnapshots, fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id UUID PRIMARY KEY,
				label TEXT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				bbox INTEGER[],
				nodes BIGINT NOT NULL,
				ways BIGINT NOT NULL,
				relations BIGINT NOT NULL,
				changes BIGINT NOT NULL
			)`, s.table(tableSnapshots))},
		{tableNodes, fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				snapshot UUID NOT NULL REFERENCES %s (id) ON DELETE CASCADE,
				id BIGINT NOT NULL,
				version INTEGER NOT NULL,
				state SMALLINT NOT NULL,
				lat INTEGER NOT NULL,
				lon INTEGER NOT NULL,
				tags JSONB,
				PRIMARY KEY (snapshot, id)
			)`, s.table(tableNodes), s.table(tableSnapshots))},
		{tableWays, fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				snapshot UUID NOT NULL REFERENCES %s (id) ON DELETE CASCADE,
				id BIGINT NOT NULL,
				version INTEGER NOT NULL,
				state SMALLINT NOT NULL,
				nodes BIGINT[] NOT NULL,
				tags JSONB,
				PRIMARY KEY (snapshot, id)
			)`, s.table(tableWays), s.table(tableSnapshots))},
		{tableRelations, fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				snapshot UUID NOT NULL REFERENCES %s (id) ON DELETE CASCADE,
				id BIGINT NOT NULL,
				version INTEGER NOT NULL,
				state SMALLINT NOT NULL,
				members JSONB NOT NULL,
				tags JSONB,
				PRIMARY KEY (snapshot, id)
			)`, s.table(tableRelations), s.table(tableSnapshots))},
	}

	for _, st := range statements {
		s.log.Debug("Ensuring table", zap.String("table", st.name))
		if _, err := s.pool.Exec(ctx, st.sql); err != nil {
			return fmt.Errorf("failed to create %s: %w", st.name, err)
		}
	}
	return nil
}

// Save writes st as a new snapshot inside one transaction and returns its id
func (s *Store) Save(ctx context.Context, st *graph.Storage, label string) (uuid.UUID, error) {
	id := uuid.New()
	rows := buildRows(id, st)
	start := time.Now()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, label, bbox, nodes, ways, relations, changes)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`, s.table(tableSnapshots)),
		id, label, bboxArray(st.OriginalBox()),
		int64(st.NodeCount()), int64(st.WayCount()), int64(st.RelationCount()), int64(st.Changes().Len()),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert snapshot: %w", err)
	}

	copies := []struct {
		table   string
		columns []string
		rows    [][]any
	}{
		{tableNodes, nodeColumns, rows.nodes},
		{tableWays, wayColumns, rows.ways},
		{tableRelations, relationColumns, rows.relations},
	}
	for _, c := range copies {
		n, err := tx.CopyFrom(ctx, pgx.Identifier{s.schema, c.table}, c.columns, pgx.CopyFromRows(c.rows))
		if err != nil {
			return uuid.Nil, fmt.Errorf("COPY to %s failed: %w", c.table, err)
		}
		s.log.Debug("Copied snapshot rows", zap.String("table", c.table), zap.Int64("rows", n))
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("failed to commit snapshot: %w", err)
	}

	s.log.Info("Saved snapshot",
		zap.Stringer("id", id),
		zap.String("label", label),
		zap.Int("rows", len(rows.nodes)+len(rows.ways)+len(rows.relations)),
		zap.Duration("elapsed", time.Since(start)))
	return id, nil
}

// Load reads a snapshot back into a builder
func (s *Store) Load(ctx context.Context, id uuid.UUID) (*graph.Builder, error) {
	var bbox []int32
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf("SELECT bbox FROM %s WHERE id = $1", s.table(tableSnapshots)), id,
	).Scan(&bbox)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	b := graph.NewBuilder()
	box, err := bboxFromArray(bbox)
	if err != nil {
		return nil, err
	}
	b.SetBounds(box)

	if err := s.loadNodes(ctx, b, id); err != nil {
		return nil, err
	}
	if err := s.loadWays(ctx, b, id); err != nil {
		return nil, err
	}
	if err := s.loadRelations(ctx, b, id); err != nil {
		return nil, err
	}

	s.log.Info("Loaded snapshot", zap.Stringer("id", id), zap.Int("elements", b.Len()))
	return b, nil
}

func (s *Store) loadNodes(ctx context.Context, b *graph.Builder, id uuid.UUID) error {
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf("SELECT id, version, state, lat, lon, tags FROM %s WHERE snapshot = $1", s.table(tableNodes)), id)
	if err != nil {
		return fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r nodeRecord
		if err := rows.Scan(&r.ID, &r.Version, &r.State, &r.Lat, &r.Lon, &r.Tags); err != nil {
			return fmt.Errorf("failed to scan node: %w", err)
		}
		if err := r.addTo(b); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *Store) loadWays(ctx context.Context, b *graph.Builder, id uuid.UUID) error {
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf("SELECT id, version, state, nodes, tags FROM %s WHERE snapshot = $1", s.table(tableWays)), id)
	if err != nil {
		return fmt.Errorf("failed to query ways: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r wayRecord
		if err := rows.Scan(&r.ID, &r.Version, &r.State, &r.Nodes, &r.Tags); err != nil {
			return fmt.Errorf("failed to scan way: %w", err)
		}
		if err := r.addTo(b); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *Store) loadRelations(ctx context.Context, b *graph.Builder, id uuid.UUID) error {
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf("SELECT id, version, state, members, tags FROM %s WHERE snapshot = $1", s.table(tableRelations)), id)
	if err != nil {
		return fmt.Errorf("failed to query relations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r relationRecord
		if err := rows.Scan(&r.ID, &r.Version, &r.State, &r.Members, &r.Tags); err != nil {
			return fmt.Errorf("failed to scan relation: %w", err)
		}
		if err := r.addTo(b); err != nil {
			return err
		}
	}
	return rows.Err()
}

// List returns every snapshot, newest first
func (s *Store) List(ctx context.Context) ([]Snapshot, error) {
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT id, label, created_at, nodes, ways, relations, changes
			FROM %s ORDER BY created_at DESC`, s.table(tableSnapshots)))
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []Snapshot
	for rows.Next() {
		var snap Snapshot
		if err := rows.Scan(&snap.ID, &snap.Label, &snap.CreatedAt,
			&snap.Nodes, &snap.Ways, &snap.Relations, &snap.Changes); err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, rows.Err()
}

// Delete removes a snapshot and its rows
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", s.table(tableSnapshots)), id)
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return nil
}
