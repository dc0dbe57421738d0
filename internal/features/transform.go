// Package features turns current inspections into the numeric feature space
// used by the cluster engine.
package features

import (
	"math"

	"github.com/sells-group/dining-cli/internal/model"
)

// EarthRadiusKM is the mean Earth radius used to convert kilometres to radians.
const EarthRadiusKM = 6371.0

// DefaultScoreWeight and DefaultRadiusKM are the stock transform settings.
const (
	DefaultScoreWeight = 0.1
	DefaultRadiusKM    = 1.0
)

// Config controls the transform.
type Config struct {
	ScoreWeight float64 `json:"score_weight" mapstructure:"score_weight"`
	RadiusKM    float64 `json:"radius_km" mapstructure:"radius_km"`
}

// DefaultConfig returns the stock transform settings.
func DefaultConfig() Config {
	return Config{ScoreWeight: DefaultScoreWeight, RadiusKM: DefaultRadiusKM}
}

// FeatureVector is one row of the feature matrix.
type FeatureVector struct {
	LatRad        float64 `json:"lat_rad"`
	LonRad        float64 `json:"lon_rad"`
	WeightedScore float64 `json:"weighted_score"`
}

// Matrix holds one FeatureVector per input row, in input order.
type Matrix []FeatureVector

// Len returns the number of rows.
func (m Matrix) Len() int { return len(m) }

// ToRadians converts degrees to radians.
func ToRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// KMToRadians converts a ground distance to an angle on the Earth's surface.
func KMToRadians(km float64) float64 {
	return km / EarthRadiusKM
}

// Transform builds the feature matrix and the neighbourhood radius in radians.
// Scores are min-max scaled over rows and multiplied by cfg.ScoreWeight; when
// every score is equal the scaled value is 0.
func Transform(rows []model.CurrentInspection, cfg Config) (Matrix, float64) {
	eps := KMToRadians(cfg.RadiusKM)
	m := make(Matrix, len(rows))
	if len(rows) == 0 {
		return m, eps
	}

	lo, hi := rows[0].Score, rows[0].Score
	for _, r := range rows[1:] {
		lo = math.Min(lo, r.Score)
		hi = math.Max(hi, r.Score)
	}
	span := hi - lo

	for i, r := range rows {
		var scaled float64
		if span > 0 {
			scaled = (r.Score - lo) / span
		}
		m[i] = FeatureVector{
			LatRad:        ToRadians(r.Latitude),
			LonRad:        ToRadians(r.Longitude),
			WeightedScore: scaled * cfg.ScoreWeight,
		}
	}
	return m, eps
}
