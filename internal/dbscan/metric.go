package dbscan

import (
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dining-cli/internal/features"
)

// Metric selects the distance used between feature vectors.
type Metric string

const (
	// Planar is straight-line distance over (lat_rad, lon_rad, weighted_score).
	Planar Metric = "planar"
	// GreatCircle is haversine distance on the unit sphere over (lat_rad, lon_rad).
	GreatCircle Metric = "great-circle"
)

// Metrics lists the supported metrics in display order.
var Metrics = []Metric{Planar, GreatCircle}

// ParseMetric accepts a metric name or one of its aliases.
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "planar", "euclidean":
		return Planar, nil
	case "great-circle", "great_circle", "greatcircle", "haversine":
		return GreatCircle, nil
	default:
		return "", eris.Errorf("dbscan: unknown metric %q", s)
	}
}

// Distance returns the distance between a and b.
func (m Metric) Distance(a, b features.FeatureVector) float64 {
	if m == GreatCircle {
		return Haversine(a.LatRad, a.LonRad, b.LatRad, b.LonRad)
	}
	return Euclidean(a, b)
}

func (m Metric) String() string { return string(m) }

// Euclidean returns the straight-line distance over all three feature columns.
func Euclidean(a, b features.FeatureVector) float64 {
	dx := a.LatRad - b.LatRad
	dy := a.LonRad - b.LonRad
	dz := a.WeightedScore - b.WeightedScore
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Haversine returns the central angle in radians between two points given in
// radians, i.e. the great-circle distance on a unit sphere.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	sinLat := math.Sin((lat2 - lat1) / 2)
	sinLon := math.Sin((lon2 - lon1) / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon
	if h > 1 {
		h = 1
	}
	return 2 * math.Asin(math.Sqrt(h))
}
