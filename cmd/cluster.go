package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/dining-cli/internal/aggregate"
	"github.com/sells-group/dining-cli/internal/dbscan"
	"github.com/sells-group/dining-cli/internal/pipeline"
	"github.com/sells-group/dining-cli/internal/store"
)

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Cluster establishments and print per-cluster summaries",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("cluster"); err != nil {
			return err
		}

		remote, _ := cmd.Flags().GetBool("remote")
		metrics, _ := cmd.Flags().GetStringSlice("metric")
		format, _ := cmd.Flags().GetString("format")
		colorFlag, _ := cmd.Flags().GetString("colors")
		persist, _ := cmd.Flags().GetBool("persist")

		pc, err := pipelineConfig(metrics)
		if err != nil {
			return err
		}
		colors, err := parseColorsFlag(colorFlag)
		if err != nil {
			return err
		}

		res, err := newPipeline().Run(ctx, sourceFromFlags(remote), pc)
		if err != nil {
			return err
		}
		views := clusterViews(res, colors)

		if persist {
			if err := persistRun(cmd, res); err != nil {
				return err
			}
		}

		return writeClusters(os.Stdout, format, views)
	},
}

func init() {
	clusterCmd.Flags().Bool("remote", false, "fetch from the open data API (falls back to the archive)")
	clusterCmd.Flags().StringSlice("metric", nil, "metrics to cluster with (planar, great-circle); default from config")
	clusterCmd.Flags().String("format", "table", "output format: table, json, yaml")
	clusterCmd.Flags().String("colors", "", "comma-separated color buckets to show (green, yellow, red)")
	clusterCmd.Flags().Bool("persist", false, "save the run to the configured store")
	rootCmd.AddCommand(clusterCmd)
}

// clusterView is the printable output of one metric.
type clusterView struct {
	Metric   dbscan.Metric              `json:"metric" yaml:"metric"`
	Eps      float64                    `json:"eps" yaml:"eps"`
	Stats    dbscan.Stats               `json:"stats" yaml:"stats"`
	Clusters []aggregate.ClusterSummary `json:"clusters" yaml:"clusters"`
}

func clusterViews(res *pipeline.Result, colors []aggregate.Color) []clusterView {
	views := make([]clusterView, 0, len(res.Runs))
	for _, mr := range res.Runs {
		views = append(views, clusterView{
			Metric:   mr.Metric,
			Eps:      mr.Eps,
			Stats:    mr.Stats,
			Clusters: aggregate.FilterColors(mr.Summaries, colors),
		})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Metric < views[j].Metric })
	return views
}

func persistRun(cmd *cobra.Command, res *pipeline.Result) error {
	ctx := cmd.Context()
	st, err := initStore(ctx)
	if err != nil {
		return err
	}
	if st == nil {
		return eris.New("--persist requires store.driver to be set")
	}
	defer st.Close() //nolint:errcheck

	rec, err := store.FromResult(res)
	if err != nil {
		return err
	}
	if err := st.SaveRun(ctx, rec); err != nil {
		return eris.Wrap(err, "save run")
	}
	zap.L().Info("run saved", zap.String("run_id", rec.ID))
	return nil
}

func writeClusters(out io.Writer, format string, views []clusterView) error {
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(views)
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(views); err != nil {
			return eris.Wrap(err, "encode yaml")
		}
		return enc.Close()
	case "table", "":
		formatClusterTable(out, views)
		return nil
	default:
		return eris.Errorf("unknown output format %q", format)
	}
}

// formatClusterTable writes one block per metric: statistics, then a row per cluster.
func formatClusterTable(out io.Writer, views []clusterView) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for i, v := range views {
		if i > 0 {
			_, _ = fmt.Fprintln(w)
		}
		_, _ = fmt.Fprintf(w, "Metric:\t%s (eps %.3g)\n", v.Metric, v.Eps)
		_, _ = fmt.Fprintf(w, "Total clusters:\t%d\n", v.Stats.Clusters)
		_, _ = fmt.Fprintf(w, "Noise:\t%d\n", v.Stats.Noise)
		_, _ = fmt.Fprintf(w, "Average cluster size:\t%.2f\n", v.Stats.AverageSize)
		_, _ = fmt.Fprintln(w, "CLUSTER\tLATITUDE\tLONGITUDE\tSCORE\tSIZE\tCOLOR")
		for _, cs := range v.Clusters {
			_, _ = fmt.Fprintf(w, "%d\t%.6f\t%.6f\t%.2f\t%d\t%s\n",
				cs.Label, cs.Latitude, cs.Longitude, cs.MeanScore, cs.Size, cs.Color)
		}
	}
	_ = w.Flush()
}
