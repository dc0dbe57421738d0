package export

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"

	"github.com/sells-group/dining-cli/internal/aggregate"
)

// wgs84PRJ is the ESRI projection string for EPSG:4326.
const wgs84PRJ = `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`

// shapeFields is the dBASE attribute layout. Field names are limited to ten
// characters.
var shapeFields = []shp.Field{
	shp.NumberField("cluster", 10),
	shp.FloatField("latitude", 12, 6),
	shp.FloatField("longitude", 12, 6),
	shp.FloatField("score", 8, 2),
	shp.NumberField("size", 10),
	shp.StringField("color", 8),
}

// WriteShapefile writes summaries as a point layer. The path must end in
// .shp (it is appended otherwise).
func WriteShapefile(path string, summaries []aggregate.ClusterSummary) error {
	if !strings.EqualFold(filepath.Ext(path), ".shp") {
		path += ".shp"
	}

	w, err := shp.Create(path, shp.POINT)
	if err != nil {
		return eris.Wrapf(err, "export: create shapefile %s", path)
	}
	defer w.Close()

	if err := w.SetFields(shapeFields); err != nil {
		return eris.Wrap(err, "export: set shapefile fields")
	}

	for _, cs := range summaries {
		row := int(w.Write(&shp.Point{X: cs.Longitude, Y: cs.Latitude}))
		attrs := []any{cs.Label, cs.Latitude, cs.Longitude, cs.MeanScore, cs.Size, string(cs.Color)}
		for field, v := range attrs {
			if err := w.WriteAttribute(row, field, v); err != nil {
				return eris.Wrapf(err, "export: write attribute %d of cluster %d", field, cs.Label)
			}
		}
	}

	prj := strings.TrimSuffix(path, filepath.Ext(path)) + ".prj"
	if err := os.WriteFile(prj, []byte(wgs84PRJ), 0o644); err != nil {
		return eris.Wrapf(err, "export: write %s", prj)
	}
	return nil
}
