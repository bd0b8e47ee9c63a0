package report

import (
	"io"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/weldalign/internal/model"
)

// Sheet names, in workbook order.
const (
	SheetWelds      = "Weld Alignment"
	SheetDefects    = "Defect Alignment"
	SheetStatistics = "Statistics"
	SheetMatchTypes = "Match Types"
)

var weldHeader = []string{
	"Kind",
	"Source 1 Weld", "Source 1 Position", "Source 1 Delta",
	"Source 2 Weld", "Source 2 Position", "Source 2 Delta",
	"Confidence",
}

var defectHeader = []string{
	"Source 1 Row", "Source 1 Weld", "Source 1 Distance To Weld", "Source 1 Clock", "Source 1 Type",
	"Source 1 Depth", "Source 1 Length", "Source 1 Width", "Source 1 Comment", "Source 1 Position",
	"Source 2 Row", "Source 2 Weld", "Source 2 Distance To Weld", "Source 2 Clock", "Source 2 Type",
	"Source 2 Depth", "Source 2 Length", "Source 2 Width", "Source 2 Comment", "Source 2 Position",
	"Confidence", "Explanation", "Match Type",
}

// WriteXLSX writes the four-sheet report workbook to w. Matches are written
// in the order given.
func WriteXLSX(w io.Writer, res *model.AlignmentResult, matches []model.DefectMatch, summary model.Summary) error {
	f := xlsx.NewFile()

	welds, err := f.AddSheet(SheetWelds)
	if err != nil {
		return eris.Wrap(err, "report: add weld sheet")
	}
	writeHeader(welds, weldHeader)
	if res != nil {
		for _, p := range res.Pairs {
			writeWeldRow(welds.AddRow(), p)
		}
	}

	defects, err := f.AddSheet(SheetDefects)
	if err != nil {
		return eris.Wrap(err, "report: add defect sheet")
	}
	writeHeader(defects, defectHeader)
	for _, m := range matches {
		row := defects.AddRow()
		writeDefectCells(row, m.Defect1)
		writeDefectCells(row, m.Defect2)
		if m.Confidence > 0 {
			row.AddCell().SetFloatWithFormat(m.Confidence, "0.000")
		} else {
			row.AddCell().SetString("")
		}
		row.AddCell().SetString(m.Explanation)
		row.AddCell().SetString(string(m.Type))
	}

	stats, err := f.AddSheet(SheetStatistics)
	if err != nil {
		return eris.Wrap(err, "report: add statistics sheet")
	}
	writeHeader(stats, []string{"Item", "Value"})
	var ds model.Stats
	if res != nil {
		ds = res.Stats
	}
	for _, kv := range statisticsRows(summary, ds) {
		row := stats.AddRow()
		row.AddCell().SetString(kv.name)
		row.AddCell().SetFloat(kv.value)
	}

	types, err := f.AddSheet(SheetMatchTypes)
	if err != nil {
		return eris.Wrap(err, "report: add match type sheet")
	}
	writeHeader(types, []string{"Match Type", "Count"})
	for _, t := range model.MatchTypes {
		row := types.AddRow()
		row.AddCell().SetString(string(t))
		row.AddCell().SetInt(summary.ByType[t])
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "report: write workbook")
	}
	return nil
}

// SaveXLSX writes the report workbook to path.
func SaveXLSX(path string, res *model.AlignmentResult, matches []model.DefectMatch, summary model.Summary) error {
	out, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "report: create file")
	}
	if err := WriteXLSX(out, res, matches, summary); err != nil {
		out.Close() //nolint:errcheck
		return err
	}
	return eris.Wrap(out.Close(), "report: close file")
}

func writeHeader(sheet *xlsx.Sheet, cols []string) {
	row := sheet.AddRow()
	for _, c := range cols {
		row.AddCell().SetString(c)
	}
}

func writeWeldRow(row *xlsx.Row, p model.AlignmentPair) {
	row.AddCell().SetString(string(p.Kind()))
	writeAnchorCells(row, p.Anchor1, p.Delta1)
	writeAnchorCells(row, p.Anchor2, p.Delta2)
	row.AddCell().SetFloatWithFormat(p.Confidence, "0.000")
}

func writeAnchorCells(row *xlsx.Row, a *model.Anchor, delta float64) {
	if a == nil {
		for range 3 {
			row.AddCell().SetString("")
		}
		return
	}
	row.AddCell().SetString(a.ID)
	row.AddCell().SetFloatWithFormat(a.Position, "0.000")
	row.AddCell().SetFloatWithFormat(delta, "0.0000")
}

func writeDefectCells(row *xlsx.Row, d *model.Defect) {
	if d == nil {
		for range 10 {
			row.AddCell().SetString("")
		}
		return
	}
	row.AddCell().SetInt(d.Index)
	row.AddCell().SetString(d.WeldID)
	row.AddCell().SetFloatWithFormat(d.DistanceToWeld, "0.000")
	row.AddCell().SetFloatWithFormat(d.ClockDegrees, "0.0")
	row.AddCell().SetString(d.Type)
	row.AddCell().SetFloatWithFormat(d.Depth, "0.00")
	row.AddCell().SetFloatWithFormat(d.Length, "0.0")
	row.AddCell().SetFloatWithFormat(d.Width, "0.0")
	row.AddCell().SetString(d.Comment)
	row.AddCell().SetFloatWithFormat(d.Position, "0.000")
}

type statRow struct {
	name  string
	value float64
}

func statisticsRows(s model.Summary, ds model.Stats) []statRow {
	return []statRow{
		{"Source 1 anchors", float64(s.Anchors1)},
		{"Source 2 anchors", float64(s.Anchors2)},
		{"Aligned anchors", float64(s.AlignedAnchors)},
		{"Source 1 only anchors", float64(s.Source1OnlyAnchors)},
		{"Source 2 only anchors", float64(s.Source2OnlyAnchors)},
		{"Source 1 defects", float64(s.Defects1)},
		{"Source 2 defects", float64(s.Defects2)},
		{"Weld-anchored matches", float64(s.WeldAnchored)},
		{"Distance-extrapolated matches", float64(s.DistanceExtrapolated)},
		{"Total matches", float64(s.TotalMatched)},
		{"Base distance", s.BaseDistance},
		{"Delta mean", ds.Mean},
		{"Delta std", ds.Std},
		{"Delta CV", ds.CV},
		{"Delta Q25", ds.Q25},
		{"Delta median", ds.Q50},
		{"Delta Q75", ds.Q75},
		{"Delta IQR", ds.IQR},
		{"Filtered mean", ds.FilteredMean},
		{"Filtered std", ds.FilteredStd},
		{"Filtered CV", ds.FilteredCV},
	}
}

// FormatConfidence renders a confidence the way the report does: three
// decimals, blank when zero.
func FormatConfidence(c float64) string {
	if c <= 0 {
		return ""
	}
	return strconv.FormatFloat(c, 'f', 3, 64)
}
