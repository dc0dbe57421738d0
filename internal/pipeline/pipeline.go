// Package pipeline runs load, filter, transform, cluster and aggregate as one
// explicit computation and caches the result per source and configuration.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/dining-cli/internal/aggregate"
	"github.com/sells-group/dining-cli/internal/dbscan"
	"github.com/sells-group/dining-cli/internal/features"
	"github.com/sells-group/dining-cli/internal/inspection"
	"github.com/sells-group/dining-cli/internal/loader"
	"github.com/sells-group/dining-cli/internal/model"
)

// Loader produces the normalized record table for a source.
type Loader interface {
	Load(ctx context.Context, src loader.Source) (*model.RecordTable, error)
}

// MetricRun is the clustering output for one metric.
type MetricRun struct {
	Metric    dbscan.Metric              `json:"metric"`
	Eps       float64                    `json:"eps"`
	Result    dbscan.Result              `json:"result"`
	Stats     dbscan.Stats               `json:"stats"`
	Summaries []aggregate.ClusterSummary `json:"summaries"`
}

// Result is everything one pipeline run produced. It is shared through the
// cache and must not be modified.
type Result struct {
	ID        string                       `json:"id"`
	Key       string                       `json:"key"`
	Source    loader.Source                `json:"source"`
	Config    Config                       `json:"config"`
	CreatedAt time.Time                    `json:"created_at"`
	Records   *model.RecordTable           `json:"-"`
	Current   []model.CurrentInspection    `json:"-"`
	Features  features.Matrix              `json:"-"`
	Eps       float64                      `json:"eps"`
	Runs      map[dbscan.Metric]*MetricRun `json:"runs"`
}

// Run returns the clustering output for m.
func (r *Result) Run(m dbscan.Metric) (*MetricRun, bool) {
	if r == nil {
		return nil, false
	}
	mr, ok := r.Runs[m]
	return mr, ok
}

// Pipeline wires the loader to the pure clustering stages.
type Pipeline struct {
	loader Loader
	cache  *Cache
}

// New creates a Pipeline. A nil cache disables caching.
func New(l Loader, cache *Cache) *Pipeline {
	return &Pipeline{loader: l, cache: cache}
}

// Cache returns the pipeline's cache, which may be nil.
func (p *Pipeline) Cache() *Cache {
	return p.cache
}

// Run loads src and clusters it under cfg, serving repeated calls with the
// same source and configuration from the cache.
func (p *Pipeline) Run(ctx context.Context, src loader.Source, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.normalized()
	key := Key(src, cfg)
	log := zap.L().With(zap.String("key", key[:12]))

	if r, ok := p.cache.Get(key); ok {
		log.Debug("pipeline: cache hit", zap.String("run_id", r.ID))
		return r, nil
	}

	start := time.Now()
	table, err := p.loader.Load(ctx, src)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load")
	}
	log.Info("pipeline: records loaded",
		zap.String("source", table.Source),
		zap.Int("records", table.Len()),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)

	r, err := Compute(ctx, table, cfg)
	if err != nil {
		return nil, err
	}
	r.Key = key
	r.Source = src

	p.cache.Put(key, r)
	return r, nil
}

// Compute runs filter, transform, cluster and aggregate over an already
// loaded table. The metrics run concurrently over the same read-only matrix.
func Compute(ctx context.Context, table *model.RecordTable, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.normalized()

	var records []model.InspectionRecord
	if table != nil {
		records = table.Records
	}
	current := inspection.Current(records)
	if cfg.DropUnknownLocation {
		current = inspection.DropUnknownLocation(current)
	}
	matrix, eps := features.Transform(current, cfg.Features())

	zap.L().Info("pipeline: features ready",
		zap.Int("establishments", len(current)),
		zap.Float64("eps", eps),
	)

	runs := make([]*MetricRun, len(cfg.Metrics))
	g, gCtx := errgroup.WithContext(ctx)
	for i, metric := range cfg.Metrics {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			mr, err := clusterMetric(current, matrix, eps, metric, cfg)
			if err != nil {
				return err
			}
			runs[i] = mr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "pipeline: cluster")
	}

	r := &Result{
		ID:        uuid.NewString(),
		Config:    cfg,
		CreatedAt: time.Now().UTC(),
		Records:   table,
		Current:   current,
		Features:  matrix,
		Eps:       eps,
		Runs:      make(map[dbscan.Metric]*MetricRun, len(runs)),
	}
	for _, mr := range runs {
		r.Runs[mr.Metric] = mr
	}
	return r, nil
}

func clusterMetric(rows []model.CurrentInspection, m features.Matrix, eps float64, metric dbscan.Metric, cfg Config) (*MetricRun, error) {
	start := time.Now()
	scaled := eps * cfg.EpsScale(metric)
	res := dbscan.Cluster(m, dbscan.Params{Eps: scaled, MinSamples: cfg.MinSamples, Metric: metric})

	summaries, err := aggregate.FromResult(rows, res)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: summarize %s", metric)
	}

	stats := res.Stats()
	zap.L().Info("pipeline: clustering complete",
		zap.String("metric", string(metric)),
		zap.Float64("eps", scaled),
		zap.Int("clusters", stats.Clusters),
		zap.Int("noise", stats.Noise),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)

	return &MetricRun{
		Metric:    metric,
		Eps:       scaled,
		Result:    res,
		Stats:     stats,
		Summaries: summaries,
	}, nil
}
