package dbscan

import (
	"math"

	"github.com/sells-group/dining-cli/internal/features"
)

// maxCellIndex bounds grid coordinates so cell keys never overflow.
const maxCellIndex = 1 << 50

// cellInflation widens grid cells slightly so rounding in the projected
// coordinates never hides a true neighbour.
const cellInflation = 1 + 1e-9

// neighborIndex answers eps-neighbourhood queries. Results include the query
// point itself when eps >= 0 and are always verified with the exact metric.
type neighborIndex interface {
	neighbors(i int, buf []int) []int
}

type cellKey [3]int64

// bruteIndex compares the query against every point.
type bruteIndex struct {
	m      features.Matrix
	eps    float64
	metric Metric
}

func (b *bruteIndex) neighbors(i int, buf []int) []int {
	p := b.m[i]
	for j := range b.m {
		if b.metric.Distance(p, b.m[j]) <= b.eps {
			buf = append(buf, j)
		}
	}
	return buf
}

// gridIndex buckets projected points into cubes whose side is at least the
// projected search radius, so all neighbours of a point lie in the 27 cells
// around it.
type gridIndex struct {
	m      features.Matrix
	eps    float64
	metric Metric
	keys   []cellKey
	cells  map[cellKey][]int
}

func (g *gridIndex) neighbors(i int, buf []int) []int {
	p := g.m[i]
	k := g.keys[i]
	for dx := int64(-1); dx <= 1; dx++ {
		for dy := int64(-1); dy <= 1; dy++ {
			for dz := int64(-1); dz <= 1; dz++ {
				for _, j := range g.cells[cellKey{k[0] + dx, k[1] + dy, k[2] + dz}] {
					if g.metric.Distance(p, g.m[j]) <= g.eps {
						buf = append(buf, j)
					}
				}
			}
		}
	}
	return buf
}

// newIndex picks the grid index when the projection is well defined and
// falls back to brute force otherwise.
func newIndex(m features.Matrix, eps float64, metric Metric) neighborIndex {
	brute := &bruteIndex{m: m, eps: eps, metric: metric}
	if !(eps > 0) || math.IsInf(eps, 0) {
		return brute
	}

	var radius float64
	project := planarPoint
	if metric == GreatCircle {
		if eps >= math.Pi {
			return brute
		}
		radius = 2 * math.Sin(eps/2)
		project = spherePoint
	} else {
		radius = eps
	}

	cell := radius * cellInflation
	if !(cell > 0) || math.IsInf(cell, 0) {
		return brute
	}

	g := &gridIndex{
		m:      m,
		eps:    eps,
		metric: metric,
		keys:   make([]cellKey, len(m)),
		cells:  make(map[cellKey][]int),
	}
	for i, v := range m {
		p := project(v)
		var key cellKey
		for d := 0; d < 3; d++ {
			c := math.Floor(p[d] / cell)
			if math.IsNaN(c) || math.Abs(c) > maxCellIndex {
				return brute
			}
			key[d] = int64(c)
		}
		g.keys[i] = key
		g.cells[key] = append(g.cells[key], i)
	}
	return g
}

func planarPoint(v features.FeatureVector) [3]float64 {
	return [3]float64{v.LatRad, v.LonRad, v.WeightedScore}
}

// spherePoint maps (lat, lon) to the unit sphere. The chord between two such
// points is 2*sin(d/2) for central angle d.
func spherePoint(v features.FeatureVector) [3]float64 {
	cosLat := math.Cos(v.LatRad)
	return [3]float64{
		cosLat * math.Cos(v.LonRad),
		cosLat * math.Sin(v.LonRad),
		math.Sin(v.LatRad),
	}
}
