package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/trackside-analytics/railscan-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for the
// hot paths: bulk point and segment inserts during a run.
var preparedStatements = map[string]string{
	"insert_point": `INSERT INTO points (run_id, seq, latitude, longitude, label) VALUES ($1, $2, $3, $4, $5)`,
	"insert_segment": `INSERT INTO segments (run_id, idx, start_sample, end_sample, label, channels, mean_speed)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
	"get_run": `SELECT id, name, status, threshold_m, point_count, segment_count, created_at, updated_at FROM runs WHERE id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS features (
	id        BIGSERIAL PRIMARY KEY,
	position  INTEGER NOT NULL,
	category  TEXT NOT NULL,
	latitude  DOUBLE PRECISION NOT NULL,
	longitude DOUBLE PRECISION NOT NULL,
	source    TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	status        TEXT NOT NULL DEFAULT 'running',
	threshold_m   DOUBLE PRECISION NOT NULL,
	point_count   INTEGER NOT NULL DEFAULT 0,
	segment_count INTEGER NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS points (
	run_id    TEXT NOT NULL REFERENCES runs(id),
	seq       INTEGER NOT NULL,
	latitude  DOUBLE PRECISION NOT NULL,
	longitude DOUBLE PRECISION NOT NULL,
	label     TEXT NOT NULL,
	PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS segments (
	run_id       TEXT NOT NULL REFERENCES runs(id),
	idx          INTEGER NOT NULL,
	start_sample INTEGER NOT NULL,
	end_sample   INTEGER NOT NULL,
	label        TEXT,
	channels     JSONB NOT NULL,
	mean_speed   DOUBLE PRECISION,
	PRIMARY KEY (run_id, idx)
);

CREATE INDEX IF NOT EXISTS idx_features_position ON features(position);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_points_label ON points(run_id, label);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) ReplaceFeatures(ctx context.Context, features []model.Feature) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: begin replace features")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM features`); err != nil {
		return 0, eris.Wrap(err, "postgres: clear features")
	}
	for i, f := range features {
		_, err := tx.Exec(ctx,
			`INSERT INTO features (position, category, latitude, longitude, source) VALUES ($1, $2, $3, $4, $5)`,
			i, string(f.Category), f.Latitude, f.Longitude, f.Source)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: insert feature %d", i)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: commit replace features")
	}
	return len(features), nil
}

func (s *PostgresStore) ListFeatures(ctx context.Context) ([]model.Feature, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, category, latitude, longitude, source FROM features ORDER BY position, id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list features")
	}
	defer rows.Close()

	var features []model.Feature
	for rows.Next() {
		var f model.Feature
		var cat string
		if err := rows.Scan(&f.ID, &cat, &f.Latitude, &f.Longitude, &f.Source); err != nil {
			return nil, eris.Wrap(err, "postgres: scan feature")
		}
		f.Category = model.Category(cat)
		features = append(features, f)
	}
	return features, eris.Wrap(rows.Err(), "postgres: iterate features")
}

func (s *PostgresStore) CountFeaturesByCategory(ctx context.Context) (map[model.Category]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT category, COUNT(*) FROM features GROUP BY category`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count features")
	}
	defer rows.Close()

	counts := make(map[model.Category]int)
	for rows.Next() {
		var cat string
		var n int
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan feature count")
		}
		counts[model.Category(cat)] = n
	}
	return counts, eris.Wrap(rows.Err(), "postgres: iterate feature counts")
}

func (s *PostgresStore) CreateRun(ctx context.Context, name string, thresholdM float64) (*model.Run, error) {
	run := &model.Run{
		ID:         uuid.New().String(),
		Name:       name,
		Status:     model.RunStatusRunning,
		ThresholdM: thresholdM,
		CreatedAt:  time.Now().UTC(),
	}
	run.UpdatedAt = run.CreatedAt

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, name, status, threshold_m, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		run.ID, run.Name, string(run.Status), run.ThresholdM, run.CreatedAt, run.UpdatedAt)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create run")
	}
	return run, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, status model.RunStatus, points, segments int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, point_count = $2, segment_count = $3, updated_at = $4 WHERE id = $5`,
		string(status), points, segments, time.Now().UTC(), runID)
	if err != nil {
		return eris.Wrap(err, "postgres: complete run")
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: run %s not found", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	var (
		run    model.Run
		status string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, status, threshold_m, point_count, segment_count, created_at, updated_at FROM runs WHERE id = $1`,
		runID).
		Scan(&run.ID, &run.Name, &status, &run.ThresholdM, &run.PointCount, &run.SegmentCount,
			&run.CreatedAt, &run.UpdatedAt)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return nil, eris.Errorf("postgres: run %s not found", runID)
		}
		return nil, eris.Wrap(err, "postgres: get run")
	}
	run.Status = model.RunStatus(status)
	return &run, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, name, status, threshold_m, point_count, segment_count, created_at, updated_at FROM runs`
	var args []any
	if filter.Status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(filter.Status))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += ` ORDER BY created_at DESC LIMIT ` + placeholder(len(args)+1) + ` OFFSET ` + placeholder(len(args)+2)
	args = append(args, limit, filter.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var (
			run    model.Run
			status string
		)
		if err := rows.Scan(&run.ID, &run.Name, &status, &run.ThresholdM, &run.PointCount,
			&run.SegmentCount, &run.CreatedAt, &run.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		run.Status = model.RunStatus(status)
		runs = append(runs, run)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: iterate runs")
}

func (s *PostgresStore) InsertLabeledPoints(ctx context.Context, runID string, points []model.LabeledPoint) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin insert points")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, p := range points {
		_, err := tx.Exec(ctx,
			`INSERT INTO points (run_id, seq, latitude, longitude, label) VALUES ($1, $2, $3, $4, $5)`,
			runID, p.Index, p.Latitude, p.Longitude, string(p.Label))
		if err != nil {
			return eris.Wrapf(err, "postgres: insert point %d", p.Index)
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit insert points")
}

func (s *PostgresStore) ListLabeledPoints(ctx context.Context, runID string) ([]model.LabeledPoint, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT seq, latitude, longitude, label FROM points WHERE run_id = $1 ORDER BY seq`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list points")
	}
	defer rows.Close()

	var points []model.LabeledPoint
	for rows.Next() {
		var (
			p     model.LabeledPoint
			label string
		)
		if err := rows.Scan(&p.Index, &p.Latitude, &p.Longitude, &label); err != nil {
			return nil, eris.Wrap(err, "postgres: scan point")
		}
		p.Label = model.Category(label)
		points = append(points, p)
	}
	return points, eris.Wrap(rows.Err(), "postgres: iterate points")
}

func (s *PostgresStore) InsertSegments(ctx context.Context, runID string, segments []model.Segment) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin insert segments")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, seg := range segments {
		channels, err := json.Marshal(seg.Channels)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal segment %d channels", seg.Index)
		}
		var label any
		if seg.Labeled {
			label = string(seg.Label)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO segments (run_id, idx, start_sample, end_sample, label, channels, mean_speed)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			runID, seg.Index, seg.Start, seg.End, label, channels, seg.MeanSpeed)
		if err != nil {
			return eris.Wrapf(err, "postgres: insert segment %d", seg.Index)
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit insert segments")
}

func (s *PostgresStore) ListSegments(ctx context.Context, runID string) ([]model.Segment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT idx, start_sample, end_sample, label, channels, mean_speed
		 FROM segments WHERE run_id = $1 ORDER BY idx`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list segments")
	}
	defer rows.Close()

	var segments []model.Segment
	for rows.Next() {
		seg, err := scanPgSegment(rows)
		if err != nil {
			return nil, err
		}
		segments = append(segments, *seg)
	}
	return segments, eris.Wrap(rows.Err(), "postgres: iterate segments")
}

func (s *PostgresStore) GetSegment(ctx context.Context, runID string, index int) (*model.Segment, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT idx, start_sample, end_sample, label, channels, mean_speed
		 FROM segments WHERE run_id = $1 AND idx = $2`, runID, index)
	seg, err := scanPgSegment(row)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return nil, eris.Errorf("postgres: segment %d of run %s not found", index, runID)
		}
		return nil, err
	}
	return seg, nil
}

func scanPgSegment(row pgx.Row) (*model.Segment, error) {
	var (
		seg      model.Segment
		label    *string
		channels []byte
		speed    *float64
	)
	if err := row.Scan(&seg.Index, &seg.Start, &seg.End, &label, &channels, &speed); err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, eris.Wrap(err, "postgres: scan segment")
	}
	if label != nil {
		seg.Label = model.Category(*label)
		seg.Labeled = true
	}
	seg.MeanSpeed = speed
	if err := json.Unmarshal(channels, &seg.Channels); err != nil {
		return nil, eris.Wrapf(err, "postgres: unmarshal segment %d channels", seg.Index)
	}
	return &seg, nil
}

// placeholder renders a $n positional parameter.
func placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}
