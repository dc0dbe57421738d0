package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/dining-cli/internal/dbscan"
	"github.com/sells-group/dining-cli/internal/export"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write cluster summaries to GeoJSON, a shapefile or an Excel workbook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("export"); err != nil {
			return err
		}

		remote, _ := cmd.Flags().GetBool("remote")
		formatFlag, _ := cmd.Flags().GetString("format")
		out, _ := cmd.Flags().GetString("out")
		metricFlag, _ := cmd.Flags().GetString("metric")
		colorFlag, _ := cmd.Flags().GetString("colors")

		format, err := export.ParseFormat(formatFlag)
		if err != nil {
			return err
		}
		metric, err := dbscan.ParseMetric(metricFlag)
		if err != nil {
			return err
		}
		colors, err := parseColorsFlag(colorFlag)
		if err != nil {
			return err
		}

		pc := cfg.Pipeline()
		if format != export.FormatXLSX {
			pc.Metrics = []dbscan.Metric{metric}
		}

		res, err := newPipeline().Run(ctx, sourceFromFlags(remote), pc)
		if err != nil {
			return err
		}

		return export.Write(ctx, res, export.Options{
			Format: format,
			Path:   out,
			Metric: metric,
			Colors: colors,
		})
	},
}

func init() {
	exportCmd.Flags().Bool("remote", false, "fetch from the open data API (falls back to the archive)")
	exportCmd.Flags().String("format", "geojson", "output format: geojson, shp, xlsx")
	exportCmd.Flags().String("out", "", "output file path")
	exportCmd.Flags().String("metric", string(dbscan.Planar), "metric for geojson and shp output")
	exportCmd.Flags().String("colors", "", "comma-separated color buckets to export (green, yellow, red)")
	_ = exportCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(exportCmd)
}
