package export

import (
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dining-cli/internal/aggregate"
)

// WriteGeoJSON encodes summaries as a GeoJSON FeatureCollection.
func WriteGeoJSON(w io.Writer, summaries []aggregate.ClusterSummary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(aggregate.FeatureCollection(summaries)), "export: encode geojson")
}

// WriteGeoJSONFile writes summaries to a GeoJSON file at path.
func WriteGeoJSONFile(path string, summaries []aggregate.ClusterSummary) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	if err := WriteGeoJSON(f, summaries); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	return eris.Wrapf(f.Close(), "export: close %s", path)
}
