package model

import (
	"time"
)

// NeverInspected is the inspection date the city assigns to establishments
// that have not been inspected yet.
var NeverInspected = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)

// InspectionRecord is one row of the inspection dataset: one establishment
// at one inspection event (often one row per cited violation).
type InspectionRecord struct {
	ID                   string `json:"camis"`
	Name                 string `json:"dba"`
	Borough              string `json:"boro,omitempty"`
	Building             string `json:"building,omitempty"`
	Street               string `json:"street,omitempty"`
	Cuisine              string `json:"cuisine_description,omitempty"`
	Action               string `json:"action,omitempty"`
	ViolationCode        string `json:"violation_code,omitempty"`
	ViolationDescription string `json:"violation_description,omitempty"`
	CriticalFlag         string `json:"critical_flag,omitempty"`
	Grade                string `json:"grade,omitempty"`
	InspectionType       string `json:"inspection_type,omitempty"`
	NTA                  string `json:"nta,omitempty"`

	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`

	InspectionDate *time.Time `json:"inspection_date"`
	GradeDate      *time.Time `json:"grade_date,omitempty"`
	RecordDate     *time.Time `json:"record_date,omitempty"`

	Zipcode         *int64 `json:"zipcode,omitempty"`
	Phone           *int64 `json:"phone,omitempty"`
	Score           *int64 `json:"score"`
	CommunityBoard  *int64 `json:"community_board,omitempty"`
	CouncilDistrict *int64 `json:"council_district,omitempty"`
	CensusTract     *int64 `json:"census_tract,omitempty"`
	BIN             *int64 `json:"bin,omitempty"`
	BBL             *int64 `json:"bbl,omitempty"`

	// ScoreValue is the numeric score read when the score column could not be
	// cast to integers (for example a fractional value in the column).
	ScoreValue *float64 `json:"score_value,omitempty"`

	// Raw holds the original text of columns whose type cast failed.
	Raw map[string]string `json:"raw,omitempty"`
}

// IsNeverInspected reports whether the record carries the never-inspected sentinel.
func (r InspectionRecord) IsNeverInspected() bool {
	return r.InspectionDate != nil && r.InspectionDate.Equal(NeverInspected)
}

// RecordTable is the normalized output of the record loader.
type RecordTable struct {
	Records []InspectionRecord `json:"records"`
	// UncastColumns lists integer columns left in their original type.
	UncastColumns []string `json:"uncast_columns,omitempty"`
	// Source names the source that actually produced the rows ("archive" or "remote").
	Source string `json:"source"`
}

// Len returns the number of records.
func (t *RecordTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Records)
}

// CurrentInspection is the most recent inspection of one establishment.
type CurrentInspection struct {
	ID             string     `json:"camis"`
	Name           string     `json:"dba"`
	Latitude       float64    `json:"latitude"`
	Longitude      float64    `json:"longitude"`
	InspectionDate *time.Time `json:"inspection_date"`
	Score          float64    `json:"score"`
}

// Date returns a calendar date at UTC midnight.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
