package loader

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/dining-cli/internal/model"
)

// integerColumns are coerced to nullable integers.
var integerColumns = []string{
	"zipcode",
	"phone",
	"score",
	"community board",
	"council district",
	"census tract",
	"bin",
	"bbl",
}

// dateLayouts are tried in order when parsing date columns.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"01/02/2006",
	"1/2/2006",
}

// canonicalColumn maps "INSPECTION DATE", "inspection_date" and
// " Inspection  Date " to "inspection date".
func canonicalColumn(name string) string {
	name = strings.ToLower(strings.ReplaceAll(name, "_", " "))
	return strings.Join(strings.Fields(name), " ")
}

// canonicalRows lower-cases and canonicalizes all column names.
func canonicalRows(rows []rawRow) []map[string]any {
	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		m := make(map[string]any, len(row))
		for k, v := range row {
			m[canonicalColumn(k)] = v
		}
		out[i] = m
	}
	return out
}

// normalize converts raw rows into typed records. Integer columns that fail to
// cast are logged and kept as text in Record.Raw; they never abort the load.
// An uncast score column still carries its numeric values in ScoreValue.
func normalize(rows []rawRow, source string) *model.RecordTable {
	canon := canonicalRows(rows)
	records := make([]model.InspectionRecord, len(canon))

	for i, row := range canon {
		r := &records[i]
		r.ID = text(row["camis"])
		r.Name = text(row["dba"])
		r.Borough = text(row["boro"])
		r.Building = text(row["building"])
		r.Street = text(row["street"])
		r.Cuisine = text(row["cuisine description"])
		r.Action = text(row["action"])
		r.ViolationCode = text(row["violation code"])
		r.ViolationDescription = text(row["violation description"])
		r.CriticalFlag = text(row["critical flag"])
		r.Grade = text(row["grade"])
		r.InspectionType = text(row["inspection type"])
		r.NTA = text(row["nta"])

		r.Latitude = parseFloat(row["latitude"])
		r.Longitude = parseFloat(row["longitude"])

		r.InspectionDate = parseDate(row["inspection date"])
		r.GradeDate = parseDate(row["grade date"])
		r.RecordDate = parseDate(row["record date"])
	}

	table := &model.RecordTable{Records: records, Source: source}
	for _, col := range integerColumns {
		if err := castIntegerColumn(canon, records, col); err != nil {
			zap.L().Warn("loader: column left uncast", zap.String("column", col), zap.Error(err))
			table.UncastColumns = append(table.UncastColumns, col)
			if col == "score" {
				for i, row := range canon {
					records[i].ScoreValue = parseFloat(row[col])
				}
			}
		}
	}
	return table
}

// castIntegerColumn parses col for every row and assigns it only if all
// values parse. On failure the original text goes into Record.Raw.
func castIntegerColumn(rows []map[string]any, records []model.InspectionRecord, col string) error {
	parsed := make([]*int64, len(rows))
	for i, row := range rows {
		v, err := parseInt(row[col])
		if err != nil {
			for j, row := range rows {
				raw := text(row[col])
				if raw == "" {
					continue
				}
				if records[j].Raw == nil {
					records[j].Raw = make(map[string]string)
				}
				records[j].Raw[col] = raw
			}
			return &ColumnCastError{Column: col, Value: text(row[col]), Err: err}
		}
		parsed[i] = v
	}

	for i := range records {
		assignInteger(&records[i], col, parsed[i])
	}
	return nil
}

func assignInteger(r *model.InspectionRecord, col string, v *int64) {
	switch col {
	case "zipcode":
		r.Zipcode = v
	case "phone":
		r.Phone = v
	case "score":
		r.Score = v
	case "community board":
		r.CommunityBoard = v
	case "council district":
		r.CouncilDistrict = v
	case "census tract":
		r.CensusTract = v
	case "bin":
		r.BIN = v
	case "bbl":
		r.BBL = v
	}
}

// text renders a raw JSON value as a trimmed, NFC-normalized string.
func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return norm.NFC.String(strings.TrimSpace(t))
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// parseInt accepts integers and integral floats. Empty values and NaN are null.
func parseInt(v any) (*int64, error) {
	s := text(v)
	if s == "" || strings.EqualFold(s, "nan") {
		return nil, nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return &n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(f) {
		return nil, nil
	}
	if math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) >= 1<<63 {
		return nil, strconv.ErrRange
	}
	n := int64(f)
	return &n, nil
}

// parseFloat returns nil for missing or unparseable values.
func parseFloat(v any) *float64 {
	s := text(v)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// parseDate returns the calendar date at UTC midnight, or nil for missing or
// invalid input. Bare numbers are epoch milliseconds.
func parseDate(v any) *time.Time {
	if n, ok := v.(json.Number); ok {
		ms, err := n.Int64()
		if err != nil {
			return nil
		}
		return calendarDate(time.UnixMilli(ms).UTC())
	}

	s := text(v)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return calendarDate(t)
		}
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return calendarDate(time.UnixMilli(ms).UTC())
	}
	return nil
}

func calendarDate(t time.Time) *time.Time {
	d := model.Date(t.Year(), t.Month(), t.Day())
	return &d
}
