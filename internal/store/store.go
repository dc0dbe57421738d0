// Package store persists clustering runs.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dining-cli/internal/aggregate"
	"github.com/sells-group/dining-cli/internal/dbscan"
	"github.com/sells-group/dining-cli/internal/pipeline"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("run not found")

// RunRecord is the persisted form of a pipeline result.
type RunRecord struct {
	ID                 string          `json:"id" yaml:"id"`
	SourceKey          string          `json:"source_key" yaml:"source_key"`
	Source             string          `json:"source" yaml:"source"`
	Config             json.RawMessage `json:"config" yaml:"-"`
	RecordCount        int             `json:"record_count" yaml:"record_count"`
	EstablishmentCount int             `json:"establishment_count" yaml:"establishment_count"`
	CreatedAt          time.Time       `json:"created_at" yaml:"created_at"`
	Metrics            []MetricRecord  `json:"metrics" yaml:"metrics"`
}

// MetricRecord is the persisted output of one metric.
type MetricRecord struct {
	Metric    dbscan.Metric              `json:"metric" yaml:"metric"`
	Eps       float64                    `json:"eps" yaml:"eps"`
	Stats     dbscan.Stats               `json:"stats" yaml:"stats"`
	Summaries []aggregate.ClusterSummary `json:"summaries" yaml:"summaries"`
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	SourceKey string `json:"source_key,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	Offset    int    `json:"offset,omitempty"`
}

// Store defines the persistence interface for clustering runs.
type Store interface {
	SaveRun(ctx context.Context, run *RunRecord) error
	GetRun(ctx context.Context, id string) (*RunRecord, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]RunRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// FromResult converts a pipeline result into a RunRecord. Metrics are
// ordered by name.
func FromResult(r *pipeline.Result) (*RunRecord, error) {
	if r == nil {
		return nil, eris.New("store: nil result")
	}
	cfgJSON, err := json.Marshal(r.Config)
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal config")
	}

	rec := &RunRecord{
		ID:                 r.ID,
		SourceKey:          r.Key,
		Config:             cfgJSON,
		RecordCount:        r.Records.Len(),
		EstablishmentCount: len(r.Current),
		CreatedAt:          r.CreatedAt,
	}
	if r.Records != nil {
		rec.Source = r.Records.Source
	}
	for _, mr := range r.Runs {
		rec.Metrics = append(rec.Metrics, MetricRecord{
			Metric:    mr.Metric,
			Eps:       mr.Eps,
			Stats:     mr.Stats,
			Summaries: mr.Summaries,
		})
	}
	sort.Slice(rec.Metrics, func(i, j int) bool { return rec.Metrics[i].Metric < rec.Metrics[j].Metric })
	return rec, nil
}

// Metric returns the record for m.
func (r *RunRecord) Metric(m dbscan.Metric) (*MetricRecord, bool) {
	for i := range r.Metrics {
		if r.Metrics[i].Metric == m {
			return &r.Metrics[i], true
		}
	}
	return nil, false
}

func listLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	return limit
}
