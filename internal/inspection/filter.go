// Package inspection reduces the raw inspection table to one current
// inspection per establishment.
package inspection

import (
	"sort"
	"strconv"
	"time"

	"github.com/sells-group/dining-cli/internal/model"
)

// Current returns the most recent inspection of every establishment.
//
// Never-inspected rows are dropped, remaining rows are ordered by inspection
// date (newest first, null dates last) then id, and the first row per id is
// kept. A missing score means no violations were assessed and becomes 0;
// a score column that could not be cast to integers uses ScoreValue.
// Rows without latitude or longitude are dropped after deduplication; zero
// coordinates are kept (see DropUnknownLocation).
func Current(records []model.InspectionRecord) []model.CurrentInspection {
	idx := make([]int, 0, len(records))
	for i := range records {
		if records[i].IsNeverInspected() {
			continue
		}
		idx = append(idx, i)
	}

	sort.SliceStable(idx, func(a, b int) bool {
		ra, rb := &records[idx[a]], &records[idx[b]]
		if c := compareDateDesc(ra.InspectionDate, rb.InspectionDate); c != 0 {
			return c < 0
		}
		return CompareID(ra.ID, rb.ID) < 0
	})

	seen := make(map[string]struct{}, len(idx))
	out := make([]model.CurrentInspection, 0, len(idx))
	for _, i := range idx {
		r := &records[i]
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}

		if r.Latitude == nil || r.Longitude == nil {
			continue
		}

		var score float64
		switch {
		case r.Score != nil:
			score = float64(*r.Score)
		case r.ScoreValue != nil:
			score = *r.ScoreValue
		}
		out = append(out, model.CurrentInspection{
			ID:             r.ID,
			Name:           r.Name,
			Latitude:       *r.Latitude,
			Longitude:      *r.Longitude,
			InspectionDate: r.InspectionDate,
			Score:          score,
		})
	}
	return out
}

// DropUnknownLocation removes rows whose coordinates are zero, which the city
// uses for establishments it could not geocode.
func DropUnknownLocation(rows []model.CurrentInspection) []model.CurrentInspection {
	out := make([]model.CurrentInspection, 0, len(rows))
	for _, r := range rows {
		if r.Latitude == 0 || r.Longitude == 0 {
			continue
		}
		out = append(out, r)
	}
	return out
}

// History returns every inspection row of one establishment, newest first.
func History(records []model.InspectionRecord, id string) []model.InspectionRecord {
	var out []model.InspectionRecord
	for _, r := range records {
		if r.ID == id && !r.IsNeverInspected() {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		return compareDateDesc(out[a].InspectionDate, out[b].InspectionDate) < 0
	})
	return out
}

// compareDateDesc orders newer dates first and nil dates last.
func compareDateDesc(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	case a.After(*b):
		return -1
	case a.Before(*b):
		return 1
	default:
		return 0
	}
}

// CompareID orders establishment ids numerically when both are integers and
// lexically otherwise.
func CompareID(a, b string) int {
	ai, aErr := strconv.ParseInt(a, 10, 64)
	bi, bErr := strconv.ParseInt(b, 10, 64)
	if aErr == nil && bErr == nil {
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		default:
			return 0
		}
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
