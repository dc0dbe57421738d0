package export

import (
	"sort"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/dining-cli/internal/aggregate"
	"github.com/sells-group/dining-cli/internal/dbscan"
	"github.com/sells-group/dining-cli/internal/pipeline"
)

// RecordsSheet is the workbook sheet holding one row per establishment.
const RecordsSheet = "establishments"

var summaryHeader = []string{"cluster", "latitude", "longitude", "score", "cluster_size", "color"}

// WriteXLSX writes a workbook with one sheet of cluster summaries per metric
// and an establishments sheet carrying each row's cluster label and size.
func WriteXLSX(path string, res *pipeline.Result, colors []aggregate.Color) error {
	f := xlsx.NewFile()

	metrics := make([]dbscan.Metric, 0, len(res.Runs))
	for m := range res.Runs {
		metrics = append(metrics, m)
	}
	sort.Slice(metrics, func(i, j int) bool { return metrics[i] < metrics[j] })

	for _, m := range metrics {
		sheet, err := f.AddSheet(string(m))
		if err != nil {
			return eris.Wrapf(err, "export: add sheet %s", m)
		}
		addStringRow(sheet, summaryHeader)
		for _, cs := range aggregate.FilterColors(res.Runs[m].Summaries, colors) {
			row := sheet.AddRow()
			row.AddCell().SetInt(cs.Label)
			row.AddCell().SetFloat(cs.Latitude)
			row.AddCell().SetFloat(cs.Longitude)
			row.AddCell().SetFloat(cs.MeanScore)
			row.AddCell().SetInt(cs.Size)
			row.AddCell().SetString(string(cs.Color))
		}
	}

	sheet, err := f.AddSheet(RecordsSheet)
	if err != nil {
		return eris.Wrapf(err, "export: add sheet %s", RecordsSheet)
	}
	header := []string{"camis", "dba", "latitude", "longitude", "inspection_date", "score"}
	for _, m := range metrics {
		header = append(header, string(m)+"_cluster", string(m)+"_cluster_size")
	}
	addStringRow(sheet, header)

	for i, c := range res.Current {
		row := sheet.AddRow()
		row.AddCell().SetString(c.ID)
		row.AddCell().SetString(c.Name)
		row.AddCell().SetFloat(c.Latitude)
		row.AddCell().SetFloat(c.Longitude)
		date := ""
		if c.InspectionDate != nil {
			date = c.InspectionDate.Format("2006-01-02")
		}
		row.AddCell().SetString(date)
		row.AddCell().SetFloat(c.Score)
		for _, m := range metrics {
			mr := res.Runs[m]
			row.AddCell().SetInt(mr.Result.Labels[i])
			row.AddCell().SetInt(mr.Result.SizeOf(i))
		}
	}

	return eris.Wrapf(f.Save(path), "export: save workbook %s", path)
}

func addStringRow(sheet *xlsx.Sheet, values []string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}
