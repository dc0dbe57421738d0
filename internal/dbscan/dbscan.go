// Package dbscan implements density-based spatial clustering over feature
// matrices, under planar or great-circle distance.
package dbscan

import (
	"sort"

	"github.com/sells-group/dining-cli/internal/features"
)

// Noise labels points that belong to no cluster.
const Noise = -1

// DefaultMinSamples is the neighbourhood size (self included) that makes a
// point a core point.
const DefaultMinSamples = 5

// Params configures one clustering run. Eps must already be scaled for Metric.
type Params struct {
	Eps        float64
	MinSamples int
	Metric     Metric
}

// Result holds one label per input row and the member count per cluster.
// Sizes never contains Noise.
type Result struct {
	Labels []int       `json:"labels"`
	Sizes  map[int]int `json:"sizes"`
}

// Stats summarizes a clustering run.
type Stats struct {
	Clusters    int     `json:"total_clusters" yaml:"total_clusters"`
	Noise       int     `json:"noise" yaml:"noise"`
	AverageSize float64 `json:"average_cluster_size" yaml:"average_cluster_size"`
}

// Cluster labels every row of m. Clusters are numbered from 0 in the order of
// their lowest-index core point and a border point joins the first cluster
// that reaches it, so the output depends only on the inputs.
func Cluster(m features.Matrix, p Params) Result {
	n := len(m)
	res := Result{Labels: make([]int, n), Sizes: make(map[int]int)}
	for i := range res.Labels {
		res.Labels[i] = Noise
	}
	if n == 0 {
		return res
	}

	minSamples := p.MinSamples
	if minSamples <= 0 {
		minSamples = DefaultMinSamples
	}
	if minSamples > n {
		return res
	}
	metric := p.Metric
	if metric == "" {
		metric = Planar
	}

	idx := newIndex(m, p.Eps, metric)

	// Neighbourhoods are recomputed during expansion rather than stored,
	// which keeps memory linear for dense inputs.
	core := make([]bool, n)
	var buf []int
	for i := range m {
		buf = idx.neighbors(i, buf[:0])
		core[i] = len(buf) >= minSamples
	}

	label := 0
	var stack []int
	for i := range m {
		if !core[i] || res.Labels[i] != Noise {
			continue
		}
		res.Labels[i] = label
		stack = append(stack[:0], i)
		for len(stack) > 0 {
			j := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if !core[j] {
				continue
			}
			buf = idx.neighbors(j, buf[:0])
			for _, k := range buf {
				if res.Labels[k] == Noise {
					res.Labels[k] = label
					stack = append(stack, k)
				}
			}
		}
		label++
	}

	for _, l := range res.Labels {
		if l != Noise {
			res.Sizes[l]++
		}
	}
	return res
}

// SizeOf returns the size of the cluster row i belongs to, or 0 for noise.
func (r Result) SizeOf(i int) int {
	if i < 0 || i >= len(r.Labels) || r.Labels[i] == Noise {
		return 0
	}
	return r.Sizes[r.Labels[i]]
}

// NoiseCount returns the number of noise rows.
func (r Result) NoiseCount() int {
	var n int
	for _, l := range r.Labels {
		if l == Noise {
			n++
		}
	}
	return n
}

// ClusterLabels returns the non-noise labels in ascending order.
func (r Result) ClusterLabels() []int {
	out := make([]int, 0, len(r.Sizes))
	for l := range r.Sizes {
		out = append(out, l)
	}
	sort.Ints(out)
	return out
}

// Stats reports cluster count, noise count and the average number of rows per
// distinct label. Noise counts as one label in the average, matching the
// dashboard readout.
func (r Result) Stats() Stats {
	s := Stats{Clusters: len(r.Sizes), Noise: r.NoiseCount()}
	distinct := s.Clusters
	if s.Noise > 0 {
		distinct++
	}
	if distinct > 0 {
		s.AverageSize = float64(len(r.Labels)) / float64(distinct)
	}
	return s
}
