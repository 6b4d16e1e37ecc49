package report

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/futuretree/internal/contradiction"
	"github.com/sells-group/futuretree/internal/model"
)

// Sheet names written by WriteContradictionsXLSX.
const (
	SheetSummary        = "Summary"
	SheetContradictions = "Contradictions"
	SheetFailureLayers  = "FailureLayers"
)

// WriteContradictionsXLSX writes s as a workbook with a summary sheet, one
// row per contradiction, and the failure-layer breakdown.
func WriteContradictionsXLSX(w io.Writer, s contradiction.Summary) error {
	f := xlsx.NewFile()

	summary, err := f.AddSheet(SheetSummary)
	if err != nil {
		return eris.Wrap(err, "report: add summary sheet")
	}
	addRow(summary, "Metric", "Value")
	addKV(summary, "Total Contradictions", s.TotalContradictions)
	addKV(summary, "Paths Analyzed", s.PathsAnalyzed)
	for _, sev := range contradiction.Severities {
		addKV(summary, "Severity "+string(sev), s.BySeverity[sev])
	}
	for _, m := range contradiction.Metrics {
		addKV(summary, "Metric "+string(m), s.ByMetric[m])
	}

	rows, err := f.AddSheet(SheetContradictions)
	if err != nil {
		return eris.Wrap(err, "report: add contradictions sheet")
	}
	addRow(rows, contradictionColumns...)
	for _, c := range s.Contradictions {
		row := rows.AddRow()
		vals := contradictionRow(c)
		for i, v := range vals {
			cell := row.AddCell()
			switch i {
			case 3:
				cell.SetFloat(c.Evidence.Predicted)
			case 4:
				cell.SetFloat(c.Evidence.Actual)
			case 5:
				cell.SetFloat(c.Evidence.VariancePercent)
			case 6:
				cell.SetInt(c.SampleSize)
			default:
				cell.SetString(v)
			}
		}
	}

	layers, err := f.AddSheet(SheetFailureLayers)
	if err != nil {
		return eris.Wrap(err, "report: add failure layers sheet")
	}
	addRow(layers, "Layer", "Outcomes")
	for _, l := range model.FailureLayers {
		addKV(layers, string(l), s.ByFailureLayer[l])
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "report: write xlsx")
	}
	return nil
}

func addRow(sheet *xlsx.Sheet, vals ...string) {
	row := sheet.AddRow()
	for _, v := range vals {
		row.AddCell().SetString(v)
	}
}

func addKV(sheet *xlsx.Sheet, key string, n int) {
	row := sheet.AddRow()
	row.AddCell().SetString(key)
	row.AddCell().SetInt(n)
}
