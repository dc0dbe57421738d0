package loader

import (
	"context"
	"encoding/json"
	"io"
	"sort"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dining-cli/internal/fetcher"
)

// rawRow is one undecoded inspection row keyed by its original column name.
type rawRow map[string]any

// decodePayload reads either a JSON array of row objects or a column-oriented
// object of the form {"column": {"0": value, "1": value}} as written by
// dataframe exporters. Numbers are kept as json.Number.
func decodePayload(ctx context.Context, r io.Reader) ([]rawRow, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, eris.Wrap(err, "json: read opening token")
	}

	delim, ok := tok.(json.Delim)
	if !ok {
		return nil, eris.Errorf("json: expected '[' or '{', got %v", tok)
	}

	switch delim {
	case '[':
		return decodeRecords(ctx, dec)
	case '{':
		return decodeColumns(ctx, dec)
	default:
		return nil, eris.Errorf("json: unexpected delimiter %v", delim)
	}
}

func decodeRecords(ctx context.Context, dec *json.Decoder) ([]rawRow, error) {
	var rows []rawRow
	for dec.More() {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "json: context cancelled")
		}
		var row rawRow
		if err := dec.Decode(&row); err != nil {
			return nil, eris.Wrapf(err, "json: decode row %d", len(rows))
		}
		rows = append(rows, row)
	}
	if _, err := dec.Token(); err != nil && err != io.EOF {
		return nil, eris.Wrap(err, "json: read closing token")
	}
	return rows, nil
}

func decodeColumns(ctx context.Context, dec *json.Decoder) ([]rawRow, error) {
	columns := make(map[string]map[string]any)
	indexSet := make(map[string]struct{})

	for dec.More() {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "json: context cancelled")
		}
		keyTok, err := dec.Token()
		if err != nil {
			return nil, eris.Wrap(err, "json: read column name")
		}
		name, ok := keyTok.(string)
		if !ok {
			return nil, eris.Errorf("json: expected column name, got %v", keyTok)
		}
		var values map[string]any
		if err := dec.Decode(&values); err != nil {
			return nil, eris.Wrapf(err, "json: decode column %q", name)
		}
		columns[name] = values
		for idx := range values {
			indexSet[idx] = struct{}{}
		}
	}
	if _, err := dec.Token(); err != nil && err != io.EOF {
		return nil, eris.Wrap(err, "json: read closing token")
	}

	index := make([]string, 0, len(indexSet))
	for idx := range indexSet {
		index = append(index, idx)
	}
	sort.Slice(index, func(i, j int) bool { return lessNumeric(index[i], index[j]) })

	rows := make([]rawRow, len(index))
	for i, idx := range index {
		row := make(rawRow, len(columns))
		for name, values := range columns {
			row[name] = values[idx]
		}
		rows[i] = row
	}
	return rows, nil
}

// lessNumeric orders integer strings numerically and anything else lexically.
func lessNumeric(a, b string) bool {
	ai, aErr := strconv.ParseInt(a, 10, 64)
	bi, bErr := strconv.ParseInt(b, 10, 64)
	if aErr == nil && bErr == nil {
		return ai < bi
	}
	return a < b
}

// decodeCSV reads a CSV export with a header row. Empty cells become nil so
// they behave like JSON nulls during normalization.
func decodeCSV(ctx context.Context, r io.Reader) ([]rawRow, error) {
	headerCh := make(chan []string, 1)
	rowCh, errCh := fetcher.StreamCSV(ctx, r, fetcher.CSVOptions{
		HasHeader: true,
		HeaderCh:  headerCh,
		TrimSpace: true,
	})

	var header []string
	var rows []rawRow
	for record := range rowCh {
		if header == nil {
			header = <-headerCh
		}
		row := make(rawRow, len(header))
		for i, col := range header {
			if i >= len(record) || record[i] == "" {
				row[col] = nil
				continue
			}
			row[col] = record[i]
		}
		rows = append(rows, row)
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	return rows, nil
}
