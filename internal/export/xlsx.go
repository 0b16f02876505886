package export

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/trackside-analytics/railscan-cli/internal/model"
)

// Report bundles everything the XLSX survey report needs.
type Report struct {
	Run      *model.Run
	Counts   map[model.Category]int // labeled point counts per category
	Segments []model.Segment
}

// WriteXLSXReport writes a two-sheet survey report: a summary of the run and
// per-category point counts, and a per-segment sheet with vibration stats.
func WriteXLSXReport(report Report, outputPath string) error {
	file := xlsx.NewFile()

	summary, err := file.AddSheet("Summary")
	if err != nil {
		return eris.Wrap(err, "export: add summary sheet")
	}
	writeSummary(summary, report)

	segments, err := file.AddSheet("Segments")
	if err != nil {
		return eris.Wrap(err, "export: add segments sheet")
	}
	writeSegments(segments, report.Segments)

	if err := file.Save(outputPath); err != nil {
		return eris.Wrap(err, "export: save xlsx")
	}
	return nil
}

func writeSummary(sheet *xlsx.Sheet, report Report) {
	addRow := func(key string, value any) {
		row := sheet.AddRow()
		row.AddCell().Value = key
		cell := row.AddCell()
		switch v := value.(type) {
		case string:
			cell.Value = v
		case int:
			cell.SetInt(v)
		case float64:
			cell.SetFloat(v)
		}
	}

	if report.Run != nil {
		addRow("Run", report.Run.ID)
		addRow("Name", report.Run.Name)
		addRow("Status", string(report.Run.Status))
		addRow("Threshold (m)", report.Run.ThresholdM)
		addRow("Points", report.Run.PointCount)
		addRow("Segments", report.Run.SegmentCount)
	}

	sheet.AddRow() // blank separator
	header := sheet.AddRow()
	header.AddCell().Value = "Category"
	header.AddCell().Value = "Points"

	categories := append([]model.Category{}, model.FeatureCategories...)
	categories = append(categories, model.CategoryOther)
	for _, cat := range categories {
		row := sheet.AddRow()
		row.AddCell().Value = string(cat)
		row.AddCell().SetInt(report.Counts[cat])
	}
}

func writeSegments(sheet *xlsx.Sheet, segments []model.Segment) {
	header := sheet.AddRow()
	for _, col := range []string{"Segment", "Label", "Start", "End", "RMS 1", "Peak 1", "RMS 2", "Peak 2", "Mean Speed"} {
		header.AddCell().Value = col
	}

	for _, seg := range segments {
		row := sheet.AddRow()
		row.AddCell().SetInt(seg.Index)
		label := ""
		if seg.Labeled {
			label = string(seg.Label)
		}
		row.AddCell().Value = label
		row.AddCell().SetInt(seg.Start)
		row.AddCell().SetInt(seg.End)
		for _, ch := range seg.Channels {
			row.AddCell().SetFloat(ch.RMS)
			row.AddCell().SetFloat(ch.Peak)
		}
		if seg.MeanSpeed != nil {
			row.AddCell().SetFloat(*seg.MeanSpeed)
		}
	}
}
