// Package aggregate reduces cluster assignments to map-ready summaries.
package aggregate

import (
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dining-cli/internal/dbscan"
	"github.com/sells-group/dining-cli/internal/model"
)

// ClusterSummary is one non-noise cluster reduced to a single map point.
type ClusterSummary struct {
	Label     int     `json:"cluster" yaml:"cluster"`
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
	MeanScore float64 `json:"score" yaml:"score"`
	Size      int     `json:"cluster_size" yaml:"cluster_size"`
	Color     Color   `json:"color" yaml:"color"`
}

// Summarize groups rows by label, skipping noise, and returns one summary per
// cluster ordered by label. Centroids are coordinate medians and sizes come
// from sizes rather than the member count.
func Summarize(rows []model.CurrentInspection, labels []int, sizes map[int]int) ([]ClusterSummary, error) {
	if len(rows) != len(labels) {
		return nil, eris.Errorf("aggregate: %d rows but %d labels", len(rows), len(labels))
	}

	type members struct {
		lats, lons []float64
		scoreSum   float64
	}
	groups := make(map[int]*members)
	for i, l := range labels {
		if l == dbscan.Noise {
			continue
		}
		g, ok := groups[l]
		if !ok {
			g = &members{}
			groups[l] = g
		}
		g.lats = append(g.lats, rows[i].Latitude)
		g.lons = append(g.lons, rows[i].Longitude)
		g.scoreSum += rows[i].Score
	}

	out := make([]ClusterSummary, 0, len(groups))
	for l, g := range groups {
		mean := g.scoreSum / float64(len(g.lats))
		out = append(out, ClusterSummary{
			Label:     l,
			Latitude:  median(g.lats),
			Longitude: median(g.lons),
			MeanScore: mean,
			Size:      sizes[l],
			Color:     Bucket(mean),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out, nil
}

// FromResult summarizes a clustering result over the rows it was computed from.
func FromResult(rows []model.CurrentInspection, res dbscan.Result) ([]ClusterSummary, error) {
	return Summarize(rows, res.Labels, res.Sizes)
}

// FilterColors keeps summaries whose color is in colors. No colors keeps all.
func FilterColors(summaries []ClusterSummary, colors []Color) []ClusterSummary {
	if len(colors) == 0 {
		return summaries
	}
	want := make(map[Color]bool, len(colors))
	for _, c := range colors {
		want[c] = true
	}
	out := make([]ClusterSummary, 0, len(summaries))
	for _, s := range summaries {
		if want[s.Color] {
			out = append(out, s)
		}
	}
	return out
}

// median sorts vs in place.
func median(vs []float64) float64 {
	n := len(vs)
	if n == 0 {
		return 0
	}
	sort.Float64s(vs)
	if n%2 == 1 {
		return vs[n/2]
	}
	return (vs[n/2-1] + vs[n/2]) / 2
}
