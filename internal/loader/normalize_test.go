package loader

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dining-cli/internal/inspection"
	"github.com/sells-group/dining-cli/internal/model"
)

func TestCanonicalColumn(t *testing.T) {
	tests := map[string]string{
		"INSPECTION DATE":      "inspection date",
		"inspection_date":      "inspection date",
		"  Community  Board ":  "community board",
		"CAMIS":                "camis",
		"cuisine_description":  "cuisine description",
	}
	for in, want := range tests {
		assert.Equal(t, want, canonicalColumn(in), in)
	}
}

func TestParseInt(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		want    *int64
		wantErr bool
	}{
		{"nil", nil, nil, false},
		{"empty", "", nil, false},
		{"nan", "NaN", nil, false},
		{"string int", "12", model.Ptr(int64(12)), false},
		{"json number", json.Number("10012"), model.Ptr(int64(10012)), false},
		{"integral float", json.Number("40.0"), model.Ptr(int64(40)), false},
		{"float64", 7.0, model.Ptr(int64(7)), false},
		{"fractional", "40.5", nil, true},
		{"garbage", "N/A", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseInt(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDate(t *testing.T) {
	want := model.Date(2023, time.February, 16)
	for _, in := range []any{
		"2023-02-16",
		"2023-02-16T00:00:00.000",
		"2023-02-16T00:00:00",
		"2023-02-16T13:45:00Z",
		"02/16/2023",
		json.Number("1676505600000"),
	} {
		got := parseDate(in)
		require.NotNil(t, got, "%v", in)
		assert.True(t, want.Equal(*got), "%v parsed to %v", in, got)
	}

	assert.Nil(t, parseDate(nil))
	assert.Nil(t, parseDate(""))
	assert.Nil(t, parseDate("not a date"))

	sentinel := parseDate("01/01/1900")
	require.NotNil(t, sentinel)
	assert.True(t, model.NeverInspected.Equal(*sentinel))
}

func TestParseFloat(t *testing.T) {
	assert.Nil(t, parseFloat(nil))
	assert.Nil(t, parseFloat(""))
	assert.Nil(t, parseFloat("abc"))

	got := parseFloat("40.7128")
	require.NotNil(t, got)
	assert.InDelta(t, 40.7128, *got, 1e-12)

	zero := parseFloat(json.Number("0"))
	require.NotNil(t, zero)
	assert.Equal(t, 0.0, *zero)
}

func TestNormalize_TypedFields(t *testing.T) {
	rows := []rawRow{
		{
			"CAMIS":           json.Number("30075445"),
			"DBA":             " MORRIS PARK BAKE SHOP ",
			"BORO":            "Bronx",
			"ZIPCODE":         json.Number("10462"),
			"SCORE":           json.Number("12"),
			"INSPECTION DATE": "2023-02-16T00:00:00.000",
			"GRADE DATE":      nil,
			"Latitude":        json.Number("40.848231"),
			"Longitude":       json.Number("-73.855972"),
			"BBL":             "2040190035",
		},
	}

	table := normalize(rows, SourceArchive)
	require.Equal(t, 1, table.Len())
	assert.Equal(t, SourceArchive, table.Source)
	assert.Empty(t, table.UncastColumns)

	r := table.Records[0]
	assert.Equal(t, "30075445", r.ID)
	assert.Equal(t, "MORRIS PARK BAKE SHOP", r.Name)
	assert.Equal(t, "Bronx", r.Borough)
	require.NotNil(t, r.Zipcode)
	assert.Equal(t, int64(10462), *r.Zipcode)
	require.NotNil(t, r.Score)
	assert.Equal(t, int64(12), *r.Score)
	require.NotNil(t, r.BBL)
	assert.Equal(t, int64(2040190035), *r.BBL)
	require.NotNil(t, r.InspectionDate)
	assert.True(t, model.Date(2023, time.February, 16).Equal(*r.InspectionDate))
	assert.Nil(t, r.GradeDate)
	require.NotNil(t, r.Latitude)
	assert.InDelta(t, 40.848231, *r.Latitude, 1e-9)
	assert.Nil(t, r.Raw)
}

func TestNormalize_APIColumnNames(t *testing.T) {
	rows := []rawRow{{
		"camis":               "1",
		"cuisine_description": "Bakery",
		"inspection_date":     "2022-01-05T00:00:00.000",
		"community_board":     "204",
		"violation_code":      "10F",
	}}

	r := normalize(rows, SourceRemote).Records[0]
	assert.Equal(t, "Bakery", r.Cuisine)
	assert.Equal(t, "10F", r.ViolationCode)
	require.NotNil(t, r.CommunityBoard)
	assert.Equal(t, int64(204), *r.CommunityBoard)
	require.NotNil(t, r.InspectionDate)
}

func TestNormalize_FailedCastLeavesColumnUncast(t *testing.T) {
	rows := []rawRow{
		{"camis": "1", "phone": "7185551234", "score": json.Number("5")},
		{"camis": "2", "phone": "__________", "score": json.Number("9")},
		{"camis": "3", "phone": nil, "score": nil},
	}

	table := normalize(rows, SourceArchive)
	assert.Equal(t, []string{"phone"}, table.UncastColumns)

	for _, r := range table.Records {
		assert.Nil(t, r.Phone, "phone must stay uncast for %s", r.ID)
	}
	assert.Equal(t, "7185551234", table.Records[0].Raw["phone"])
	assert.Equal(t, "__________", table.Records[1].Raw["phone"])
	assert.Nil(t, table.Records[2].Raw)

	// Other columns are unaffected.
	require.NotNil(t, table.Records[0].Score)
	assert.Equal(t, int64(5), *table.Records[0].Score)
	assert.Nil(t, table.Records[2].Score)
}

func TestCastIntegerColumn_ReturnsColumnCastError(t *testing.T) {
	rows := []map[string]any{{"score": "bad"}}
	records := make([]model.InspectionRecord, 1)

	err := castIntegerColumn(rows, records, "score")
	require.Error(t, err)

	var ce *ColumnCastError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "score", ce.Column)
	assert.Equal(t, "bad", ce.Value)
	assert.Contains(t, ce.Error(), `column "score"`)
}

func TestNormalize_UncastScoreKeepsNumericValues(t *testing.T) {
	rows := []rawRow{
		{"camis": "1", "score": json.Number("40"), "inspection date": "2023-01-01", "latitude": "40.7", "longitude": "-73.9"},
		{"camis": "2", "score": json.Number("35"), "inspection date": "2023-01-01", "latitude": "40.7", "longitude": "-73.9"},
		{"camis": "3", "score": json.Number("12.5"), "inspection date": "2023-01-01", "latitude": "40.7", "longitude": "-73.9"},
		{"camis": "4", "score": nil, "inspection date": "2023-01-01", "latitude": "40.7", "longitude": "-73.9"},
	}

	table := normalize(rows, SourceArchive)
	assert.Equal(t, []string{"score"}, table.UncastColumns)
	assert.Nil(t, table.Records[0].Score)
	require.NotNil(t, table.Records[0].ScoreValue)
	assert.Equal(t, 40.0, *table.Records[0].ScoreValue)
	assert.Nil(t, table.Records[3].ScoreValue)

	current := inspection.Current(table.Records)
	require.Len(t, current, 4)
	scores := make(map[string]float64, len(current))
	for _, c := range current {
		scores[c.ID] = c.Score
	}
	assert.Equal(t, map[string]float64{"1": 40, "2": 35, "3": 12.5, "4": 0}, scores)
}

func TestNormalize_CastScoreLeavesScoreValueEmpty(t *testing.T) {
	table := normalize([]rawRow{{"camis": "1", "score": json.Number("12")}}, SourceArchive)
	require.NotNil(t, table.Records[0].Score)
	assert.Nil(t, table.Records[0].ScoreValue)
}
