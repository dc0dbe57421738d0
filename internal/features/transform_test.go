package features

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dining-cli/internal/model"
)

func TestTransform_Basic(t *testing.T) {
	rows := []model.CurrentInspection{
		{ID: "1", Latitude: 40.7, Longitude: -74.0, Score: 0},
		{ID: "2", Latitude: 40.8, Longitude: -73.9, Score: 50},
		{ID: "3", Latitude: 40.6, Longitude: -73.8, Score: 100},
	}

	m, eps := Transform(rows, DefaultConfig())
	require.Len(t, m, 3)
	assert.InDelta(t, 1.0/6371.0, eps, 1e-15)

	assert.InDelta(t, 40.7*math.Pi/180, m[0].LatRad, 1e-12)
	assert.InDelta(t, -74.0*math.Pi/180, m[0].LonRad, 1e-12)
	assert.InDelta(t, 0.0, m[0].WeightedScore, 1e-12)
	assert.InDelta(t, 0.05, m[1].WeightedScore, 1e-12)
	assert.InDelta(t, 0.1, m[2].WeightedScore, 1e-12)
}

func TestTransform_ZeroRangeScoresScaleToZero(t *testing.T) {
	rows := []model.CurrentInspection{
		{Latitude: 40.7, Longitude: -74.0, Score: 12},
		{Latitude: 40.8, Longitude: -73.9, Score: 12},
	}

	m, _ := Transform(rows, DefaultConfig())
	for _, v := range m {
		assert.Equal(t, 0.0, v.WeightedScore)
		assert.False(t, math.IsNaN(v.WeightedScore))
	}
}

func TestTransform_Empty(t *testing.T) {
	m, eps := Transform(nil, DefaultConfig())
	assert.NotNil(t, m)
	assert.Equal(t, 0, m.Len())
	assert.False(t, math.IsNaN(eps) || math.IsInf(eps, 0))
}

func TestTransform_WeightedScoreWithinBounds(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for trial := 0; trial < 20; trial++ {
		weight := rng.Float64()
		rows := make([]model.CurrentInspection, 1+rng.IntN(200))
		for i := range rows {
			rows[i] = model.CurrentInspection{
				Latitude:  40.5 + rng.Float64()*0.4,
				Longitude: -74.2 + rng.Float64()*0.5,
				Score:     float64(rng.IntN(150)),
			}
		}

		m, _ := Transform(rows, Config{ScoreWeight: weight, RadiusKM: 1})
		for _, v := range m {
			assert.GreaterOrEqual(t, v.WeightedScore, 0.0)
			assert.LessOrEqual(t, v.WeightedScore, weight)
		}
	}
}

func TestKMToRadians(t *testing.T) {
	assert.InDelta(t, 2.0/EarthRadiusKM, KMToRadians(2), 1e-15)
	assert.Equal(t, 0.0, KMToRadians(0))
}
