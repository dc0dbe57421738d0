package aggregate

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Color is a score bucket mirroring the city's letter-grade cutoffs.
type Color string

const (
	Green  Color = "green"
	Yellow Color = "yellow"
	Red    Color = "red"
)

// Score cutoffs; lower scores are healthier.
const (
	GreenMax  = 13.0
	YellowMax = 27.0
)

// Colors lists the buckets from healthiest to poorest.
var Colors = []Color{Green, Yellow, Red}

// Palette maps buckets to RGBA byte values for point rendering.
var Palette = map[Color][4]uint8{
	Green:  {0, 255, 0, 100},
	Yellow: {255, 255, 0, 130},
	Red:    {255, 0, 0, 200},
}

// Bucket returns the color for a (mean) score.
func Bucket(score float64) Color {
	switch {
	case score <= GreenMax:
		return Green
	case score <= YellowMax:
		return Yellow
	default:
		return Red
	}
}

// RGBA returns the palette entry for c.
func (c Color) RGBA() [4]uint8 {
	return Palette[c]
}

// ParseColors parses a comma-separated color list. An empty string yields nil.
func ParseColors(s string) ([]Color, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []Color
	for _, part := range strings.Split(s, ",") {
		c := Color(strings.ToLower(strings.TrimSpace(part)))
		if _, ok := Palette[c]; !ok {
			return nil, eris.Errorf("aggregate: unknown color %q", part)
		}
		out = append(out, c)
	}
	return out, nil
}
