package pipeline

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/dining-cli/internal/dbscan"
	"github.com/sells-group/dining-cli/internal/features"
)

// Default epsilon multipliers. They were tuned by eye so both metrics give
// clusters of similar granularity on the city dataset.
const (
	DefaultPlanarEpsScale      = 0.5
	DefaultGreatCircleEpsScale = 0.03
)

// Config is the clustering configuration for one pipeline run.
type Config struct {
	ScoreWeight         float64         `json:"score_weight" mapstructure:"score_weight"`
	RadiusKM            float64         `json:"radius_km" mapstructure:"radius_km"`
	MinSamples          int             `json:"min_samples" mapstructure:"min_samples"`
	Metrics             []dbscan.Metric `json:"metrics" mapstructure:"metrics"`
	PlanarEpsScale      float64         `json:"planar_eps_scale" mapstructure:"planar_eps_scale"`
	GreatCircleEpsScale float64         `json:"great_circle_eps_scale" mapstructure:"great_circle_eps_scale"`
	DropUnknownLocation bool            `json:"drop_unknown_location" mapstructure:"drop_unknown_location"`
}

// DefaultConfig returns the stock settings for both metrics.
func DefaultConfig() Config {
	return Config{
		ScoreWeight:         features.DefaultScoreWeight,
		RadiusKM:            features.DefaultRadiusKM,
		MinSamples:          dbscan.DefaultMinSamples,
		Metrics:             []dbscan.Metric{dbscan.Planar, dbscan.GreatCircle},
		PlanarEpsScale:      DefaultPlanarEpsScale,
		GreatCircleEpsScale: DefaultGreatCircleEpsScale,
	}
}

// Validate rejects settings the pipeline cannot run with.
func (c Config) Validate() error {
	if c.ScoreWeight < 0 {
		return eris.Errorf("pipeline: score_weight must be >= 0, got %v", c.ScoreWeight)
	}
	if c.RadiusKM < 0 {
		return eris.Errorf("pipeline: radius_km must be >= 0, got %v", c.RadiusKM)
	}
	if c.MinSamples < 1 {
		return eris.Errorf("pipeline: min_samples must be >= 1, got %d", c.MinSamples)
	}
	if c.PlanarEpsScale < 0 || c.GreatCircleEpsScale < 0 {
		return eris.New("pipeline: eps scales must be >= 0")
	}
	if len(c.Metrics) == 0 {
		return eris.New("pipeline: at least one metric is required")
	}
	for _, m := range c.Metrics {
		if _, err := dbscan.ParseMetric(string(m)); err != nil {
			return eris.Wrap(err, "pipeline: validate")
		}
	}
	return nil
}

// Features returns the transform settings.
func (c Config) Features() features.Config {
	return features.Config{ScoreWeight: c.ScoreWeight, RadiusKM: c.RadiusKM}
}

// EpsScale returns the epsilon multiplier for m.
func (c Config) EpsScale(m dbscan.Metric) float64 {
	if m == dbscan.GreatCircle {
		return c.GreatCircleEpsScale
	}
	return c.PlanarEpsScale
}

// normalized resolves metric aliases and drops duplicates, keeping order.
func (c Config) normalized() Config {
	out := c
	out.Metrics = make([]dbscan.Metric, 0, len(c.Metrics))
	seen := make(map[dbscan.Metric]bool)
	for _, m := range c.Metrics {
		pm, err := dbscan.ParseMetric(string(m))
		if err != nil || seen[pm] {
			continue
		}
		seen[pm] = true
		out.Metrics = append(out.Metrics, pm)
	}
	return out
}
