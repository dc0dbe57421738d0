// Package export writes cluster summaries and current inspections to files:
// GeoJSON, ESRI shapefiles and Excel workbooks.
package export

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dining-cli/internal/aggregate"
	"github.com/sells-group/dining-cli/internal/dbscan"
	"github.com/sells-group/dining-cli/internal/pipeline"
)

// Format is an export file format.
type Format string

// Supported formats.
const (
	FormatGeoJSON   Format = "geojson"
	FormatShapefile Format = "shp"
	FormatXLSX      Format = "xlsx"
)

// ParseFormat resolves a format name. "shapefile" and "excel" are accepted as
// aliases.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "geojson", "json":
		return FormatGeoJSON, nil
	case "shp", "shapefile":
		return FormatShapefile, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	default:
		return "", eris.Errorf("export: unknown format %q", s)
	}
}

// Options selects what gets exported.
type Options struct {
	Format Format
	// Path is the output file. Shapefiles also write sibling .shx, .dbf and
	// .prj files.
	Path string
	// Metric picks the clustering for single-layer formats (geojson, shp).
	// The workbook always contains every metric in the result.
	Metric dbscan.Metric
	// Colors optionally restricts the exported clusters.
	Colors []aggregate.Color
}

// Write exports res according to opts.
func Write(ctx context.Context, res *pipeline.Result, opts Options) error {
	if res == nil {
		return eris.New("export: nil result")
	}
	if err := ctx.Err(); err != nil {
		return eris.Wrap(err, "export: context cancelled")
	}
	if opts.Path == "" {
		return eris.New("export: output path is required")
	}

	log := zap.L().With(zap.String("format", string(opts.Format)), zap.String("path", opts.Path))

	switch opts.Format {
	case FormatXLSX:
		if err := WriteXLSX(opts.Path, res, opts.Colors); err != nil {
			return err
		}
		log.Info("export: workbook written", zap.Int("metrics", len(res.Runs)))
		return nil
	case FormatGeoJSON, FormatShapefile:
	default:
		return eris.Errorf("export: unknown format %q", opts.Format)
	}

	metric := opts.Metric
	if metric == "" {
		metric = dbscan.Planar
	}
	mr, ok := res.Run(metric)
	if !ok {
		return eris.Errorf("export: metric %s was not clustered", metric)
	}
	summaries := aggregate.FilterColors(mr.Summaries, opts.Colors)

	var err error
	if opts.Format == FormatGeoJSON {
		err = WriteGeoJSONFile(opts.Path, summaries)
	} else {
		err = WriteShapefile(opts.Path, summaries)
	}
	if err != nil {
		return err
	}
	log.Info("export: clusters written",
		zap.String("metric", string(metric)),
		zap.Int("clusters", len(summaries)),
	)
	return nil
}
