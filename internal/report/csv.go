package report

import (
	"encoding/csv"
	"io"

	"github.com/rotisserie/eris"

	"github.com/sells-group/futuretree/internal/contradiction"
)

// WriteContradictionsCSV writes one row per contradiction, most severe first.
func WriteContradictionsCSV(w io.Writer, s contradiction.Summary) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(contradictionColumns); err != nil {
		return eris.Wrap(err, "report: write csv header")
	}
	for _, c := range s.Contradictions {
		if err := cw.Write(contradictionRow(c)); err != nil {
			return eris.Wrap(err, "report: write csv row")
		}
	}

	cw.Flush()
	return eris.Wrap(cw.Error(), "report: flush csv")
}
