package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/sells-group/dining-cli/internal/aggregate"
	"github.com/sells-group/dining-cli/internal/db"
	"github.com/sells-group/dining-cli/internal/dbscan"
)

// PostgresStore implements Store using pgxpool. Cluster summaries go into
// their own table with a point geometry so they can be queried spatially.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// summaryColumns is the COPY column order for cluster_summaries.
var summaryColumns = []string{
	"run_id", "metric", "label", "latitude", "longitude", "mean_score", "size", "color", "geom",
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
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

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id                  TEXT PRIMARY KEY,
	source_key          TEXT NOT NULL,
	source              TEXT NOT NULL DEFAULT '',
	config              JSONB NOT NULL,
	record_count        INTEGER NOT NULL DEFAULT 0,
	establishment_count INTEGER NOT NULL DEFAULT 0,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS run_metrics (
	run_id       TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	metric       TEXT NOT NULL,
	eps          DOUBLE PRECISION NOT NULL,
	clusters     INTEGER NOT NULL,
	noise        INTEGER NOT NULL,
	average_size DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (run_id, metric)
);

CREATE TABLE IF NOT EXISTS cluster_summaries (
	run_id     TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	metric     TEXT NOT NULL,
	label      INTEGER NOT NULL,
	latitude   DOUBLE PRECISION NOT NULL,
	longitude  DOUBLE PRECISION NOT NULL,
	mean_score DOUBLE PRECISION NOT NULL,
	size       INTEGER NOT NULL,
	color      TEXT NOT NULL,
	geom       BYTEA,
	PRIMARY KEY (run_id, metric, label)
);

CREATE INDEX IF NOT EXISTS idx_runs_source_key ON runs(source_key);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SaveRun(ctx context.Context, run *RunRecord) error {
	cfg := []byte(run.Config)
	if len(cfg) == 0 {
		cfg = []byte("{}")
	}

	var summaryRows [][]any
	for _, m := range run.Metrics {
		for _, cs := range m.Summaries {
			geomBytes, err := ewkb.Marshal(cs.Point(), ewkb.NDR)
			if err != nil {
				return eris.Wrap(err, "postgres: encode centroid")
			}
			summaryRows = append(summaryRows, []any{
				run.ID, string(m.Metric), cs.Label, cs.Latitude, cs.Longitude,
				cs.MeanScore, cs.Size, string(cs.Color), geomBytes,
			})
		}
	}

	return db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO runs (id, source_key, source, config, record_count, establishment_count, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			run.ID, run.SourceKey, run.Source, cfg, run.RecordCount, run.EstablishmentCount, run.CreatedAt.UTC(),
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: insert run %s", run.ID)
		}

		for _, m := range run.Metrics {
			_, err := tx.Exec(ctx,
				`INSERT INTO run_metrics (run_id, metric, eps, clusters, noise, average_size)
				 VALUES ($1, $2, $3, $4, $5, $6)`,
				run.ID, string(m.Metric), m.Eps, m.Stats.Clusters, m.Stats.Noise, m.Stats.AverageSize,
			)
			if err != nil {
				return eris.Wrapf(err, "postgres: insert metric %s", m.Metric)
			}
		}

		if _, err := db.CopyFrom(ctx, tx, "cluster_summaries", summaryColumns, summaryRows); err != nil {
			return eris.Wrap(err, "postgres: copy summaries")
		}
		return nil
	})
}

func (s *PostgresStore) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	var r RunRecord
	var cfg []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, source_key, source, config, record_count, establishment_count, created_at FROM runs WHERE id = $1`,
		id,
	).Scan(&r.ID, &r.SourceKey, &r.Source, &cfg, &r.RecordCount, &r.EstablishmentCount, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", id)
	}
	r.Config = json.RawMessage(cfg)

	if err := s.loadMetrics(ctx, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *PostgresStore) loadMetrics(ctx context.Context, r *RunRecord) error {
	rows, err := s.pool.Query(ctx,
		`SELECT metric, eps, clusters, noise, average_size FROM run_metrics WHERE run_id = $1 ORDER BY metric`,
		r.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: query metrics %s", r.ID)
	}
	defer rows.Close()

	index := make(map[dbscan.Metric]int)
	for rows.Next() {
		var m MetricRecord
		var metric string
		if err := rows.Scan(&metric, &m.Eps, &m.Stats.Clusters, &m.Stats.Noise, &m.Stats.AverageSize); err != nil {
			return eris.Wrap(err, "postgres: scan metric")
		}
		m.Metric = dbscan.Metric(metric)
		index[m.Metric] = len(r.Metrics)
		r.Metrics = append(r.Metrics, m)
	}
	if err := rows.Err(); err != nil {
		return eris.Wrap(err, "postgres: metrics iterate")
	}

	srows, err := s.pool.Query(ctx,
		`SELECT metric, label, latitude, longitude, mean_score, size, color
		 FROM cluster_summaries WHERE run_id = $1 ORDER BY metric, label`,
		r.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: query summaries %s", r.ID)
	}
	defer srows.Close()

	for srows.Next() {
		var cs aggregate.ClusterSummary
		var metric, color string
		if err := srows.Scan(&metric, &cs.Label, &cs.Latitude, &cs.Longitude, &cs.MeanScore, &cs.Size, &color); err != nil {
			return eris.Wrap(err, "postgres: scan summary")
		}
		cs.Color = aggregate.Color(color)
		i, ok := index[dbscan.Metric(metric)]
		if !ok {
			return eris.Errorf("postgres: summary for unknown metric %s", metric)
		}
		r.Metrics[i].Summaries = append(r.Metrics[i].Summaries, cs)
	}
	return eris.Wrap(srows.Err(), "postgres: summaries iterate")
}

// ListRuns returns run headers; metrics and summaries are only loaded by
// GetRun.
func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]RunRecord, error) {
	query := `SELECT id, source_key, source, config, record_count, establishment_count, created_at FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.SourceKey != "" {
		query += fmt.Sprintf(` AND source_key = $%d`, argIdx)
		args = append(args, filter.SourceKey)
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, argIdx)
	args = append(args, listLimit(filter.Limit))
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		var cfg []byte
		if err := rows.Scan(&r.ID, &r.SourceKey, &r.Source, &cfg, &r.RecordCount, &r.EstablishmentCount, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		r.Config = json.RawMessage(cfg)
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}
