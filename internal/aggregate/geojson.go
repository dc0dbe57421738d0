package aggregate

import (
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// Point returns the summary centroid as a WGS84 point (lon, lat order).
func (s ClusterSummary) Point() *geom.Point {
	return geom.NewPointFlat(geom.XY, []float64{s.Longitude, s.Latitude}).SetSRID(4326)
}

// FeatureCollection renders summaries as GeoJSON points carrying score, size,
// color and the palette RGBA.
func FeatureCollection(summaries []ClusterSummary) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(summaries))}
	for _, s := range summaries {
		rgba := s.Color.RGBA()
		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry: s.Point(),
			Properties: map[string]any{
				"cluster":      s.Label,
				"score":        s.MeanScore,
				"cluster_size": s.Size,
				"color":        string(s.Color),
				"rgba":         []int{int(rgba[0]), int(rgba[1]), int(rgba[2]), int(rgba[3])},
			},
		})
	}
	return fc
}
