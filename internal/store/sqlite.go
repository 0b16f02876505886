package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/trackside-analytics/railscan-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS features (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	position  INTEGER NOT NULL,
	category  TEXT NOT NULL,
	latitude  REAL NOT NULL,
	longitude REAL NOT NULL,
	source    TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	status        TEXT NOT NULL DEFAULT 'running',
	threshold_m   REAL NOT NULL,
	point_count   INTEGER NOT NULL DEFAULT 0,
	segment_count INTEGER NOT NULL DEFAULT 0,
	created_at    DATETIME NOT NULL,
	updated_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS points (
	run_id    TEXT NOT NULL REFERENCES runs(id),
	seq       INTEGER NOT NULL,
	latitude  REAL NOT NULL,
	longitude REAL NOT NULL,
	label     TEXT NOT NULL,
	PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS segments (
	run_id       TEXT NOT NULL REFERENCES runs(id),
	idx          INTEGER NOT NULL,
	start_sample INTEGER NOT NULL,
	end_sample   INTEGER NOT NULL,
	label        TEXT,
	channels     TEXT NOT NULL,
	mean_speed   REAL,
	PRIMARY KEY (run_id, idx)
);

CREATE INDEX IF NOT EXISTS idx_features_position ON features(position);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_points_label ON points(run_id, label);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ReplaceFeatures(ctx context.Context, features []model.Feature) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin replace features")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM features`); err != nil {
		return 0, eris.Wrap(err, "sqlite: clear features")
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO features (position, category, latitude, longitude, source) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare insert feature")
	}
	defer stmt.Close() //nolint:errcheck

	for i, f := range features {
		if _, err := stmt.ExecContext(ctx, i, string(f.Category), f.Latitude, f.Longitude, f.Source); err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert feature %d", i)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit replace features")
	}
	return len(features), nil
}

func (s *SQLiteStore) ListFeatures(ctx context.Context) ([]model.Feature, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, category, latitude, longitude, source FROM features ORDER BY position, id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list features")
	}
	defer rows.Close() //nolint:errcheck

	var features []model.Feature
	for rows.Next() {
		var f model.Feature
		var cat string
		if err := rows.Scan(&f.ID, &cat, &f.Latitude, &f.Longitude, &f.Source); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan feature")
		}
		f.Category = model.Category(cat)
		features = append(features, f)
	}
	return features, eris.Wrap(rows.Err(), "sqlite: iterate features")
}

func (s *SQLiteStore) CountFeaturesByCategory(ctx context.Context) (map[model.Category]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT category, COUNT(*) FROM features GROUP BY category`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count features")
	}
	defer rows.Close() //nolint:errcheck

	counts := make(map[model.Category]int)
	for rows.Next() {
		var cat string
		var n int
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan feature count")
		}
		counts[model.Category(cat)] = n
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: iterate feature counts")
}

func (s *SQLiteStore) CreateRun(ctx context.Context, name string, thresholdM float64) (*model.Run, error) {
	run := &model.Run{
		ID:         uuid.New().String(),
		Name:       name,
		Status:     model.RunStatusRunning,
		ThresholdM: thresholdM,
		CreatedAt:  time.Now().UTC(),
	}
	run.UpdatedAt = run.CreatedAt

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, name, status, threshold_m, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Name, string(run.Status), run.ThresholdM, run.CreatedAt, run.UpdatedAt)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: create run")
	}
	return run, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, status model.RunStatus, points, segments int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, point_count = ?, segment_count = ?, updated_at = ? WHERE id = ?`,
		string(status), points, segments, time.Now().UTC(), runID)
	if err != nil {
		return eris.Wrap(err, "sqlite: complete run")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: complete run rows affected")
	}
	if n == 0 {
		return eris.Errorf("sqlite: run %s not found", runID)
	}
	return nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	var (
		run    model.Run
		status string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, status, threshold_m, point_count, segment_count, created_at, updated_at
		 FROM runs WHERE id = ?`, runID).
		Scan(&run.ID, &run.Name, &status, &run.ThresholdM, &run.PointCount, &run.SegmentCount,
			&run.CreatedAt, &run.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("sqlite: run %s not found", runID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get run")
	}
	run.Status = model.RunStatus(status)
	return &run, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, name, status, threshold_m, point_count, segment_count, created_at, updated_at FROM runs`
	var args []any
	if filter.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += ` LIMIT ? OFFSET ?`
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		var (
			run    model.Run
			status string
		)
		if err := rows.Scan(&run.ID, &run.Name, &status, &run.ThresholdM, &run.PointCount,
			&run.SegmentCount, &run.CreatedAt, &run.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		run.Status = model.RunStatus(status)
		runs = append(runs, run)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: iterate runs")
}

func (s *SQLiteStore) InsertLabeledPoints(ctx context.Context, runID string, points []model.LabeledPoint) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin insert points")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO points (run_id, seq, latitude, longitude, label) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert point")
	}
	defer stmt.Close() //nolint:errcheck

	for _, p := range points {
		if _, err := stmt.ExecContext(ctx, runID, p.Index, p.Latitude, p.Longitude, string(p.Label)); err != nil {
			return eris.Wrapf(err, "sqlite: insert point %d", p.Index)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit insert points")
}

func (s *SQLiteStore) ListLabeledPoints(ctx context.Context, runID string) ([]model.LabeledPoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, latitude, longitude, label FROM points WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list points")
	}
	defer rows.Close() //nolint:errcheck

	var points []model.LabeledPoint
	for rows.Next() {
		var (
			p     model.LabeledPoint
			label string
		)
		if err := rows.Scan(&p.Index, &p.Latitude, &p.Longitude, &label); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan point")
		}
		p.Label = model.Category(label)
		points = append(points, p)
	}
	return points, eris.Wrap(rows.Err(), "sqlite: iterate points")
}

func (s *SQLiteStore) InsertSegments(ctx context.Context, runID string, segments []model.Segment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin insert segments")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO segments (run_id, idx, start_sample, end_sample, label, channels, mean_speed)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert segment")
	}
	defer stmt.Close() //nolint:errcheck

	for _, seg := range segments {
		channels, err := json.Marshal(seg.Channels)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal segment %d channels", seg.Index)
		}
		var label any
		if seg.Labeled {
			label = string(seg.Label)
		}
		var speed any
		if seg.MeanSpeed != nil {
			speed = *seg.MeanSpeed
		}
		if _, err := stmt.ExecContext(ctx, runID, seg.Index, seg.Start, seg.End, label, string(channels), speed); err != nil {
			return eris.Wrapf(err, "sqlite: insert segment %d", seg.Index)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit insert segments")
}

func (s *SQLiteStore) ListSegments(ctx context.Context, runID string) ([]model.Segment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT idx, start_sample, end_sample, label, channels, mean_speed
		 FROM segments WHERE run_id = ? ORDER BY idx`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list segments")
	}
	defer rows.Close() //nolint:errcheck

	var segments []model.Segment
	for rows.Next() {
		seg, err := scanSegment(rows)
		if err != nil {
			return nil, err
		}
		segments = append(segments, *seg)
	}
	return segments, eris.Wrap(rows.Err(), "sqlite: iterate segments")
}

func (s *SQLiteStore) GetSegment(ctx context.Context, runID string, index int) (*model.Segment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT idx, start_sample, end_sample, label, channels, mean_speed
		 FROM segments WHERE run_id = ? AND idx = ?`, runID, index)
	seg, err := scanSegment(row)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("sqlite: segment %d of run %s not found", index, runID)
	}
	return seg, err
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSegment(row rowScanner) (*model.Segment, error) {
	var (
		seg      model.Segment
		label    sql.NullString
		channels string
		speed    sql.NullFloat64
	)
	if err := row.Scan(&seg.Index, &seg.Start, &seg.End, &label, &channels, &speed); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, eris.Wrap(err, "sqlite: scan segment")
	}
	if label.Valid {
		seg.Label = model.Category(label.String)
		seg.Labeled = true
	}
	if speed.Valid {
		seg.MeanSpeed = &speed.Float64
	}
	if err := json.Unmarshal([]byte(channels), &seg.Channels); err != nil {
		return nil, eris.Wrapf(err, "sqlite: unmarshal segment %d channels", seg.Index)
	}
	return &seg, nil
}
