// Package report builds the contradiction summary from resolved outcomes and
// exports it as XLSX or CSV.
package report

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/futuretree/internal/contradiction"
	"github.com/sells-group/futuretree/internal/model"
	"github.com/sells-group/futuretree/internal/store"
	"github.com/sells-group/futuretree/internal/variance"
)

// OutcomeLister reads stored outcomes.
type OutcomeLister interface {
	ListOutcomes(ctx context.Context, filter store.OutcomeFilter) ([]model.PathOutcome, error)
}

// Contradictions aggregates variance over every resolved outcome and runs
// contradiction detection with p.
func Contradictions(ctx context.Context, ol OutcomeLister, p contradiction.Policy) (contradiction.Summary, error) {
	outcomes, err := ol.ListOutcomes(ctx, store.OutcomeFilter{Status: model.OutcomeResolved})
	if err != nil {
		return contradiction.Summary{}, eris.Wrap(err, "report: list resolved outcomes")
	}
	return contradiction.Detect(variance.AggregateAcrossPaths(outcomes), p), nil
}

// contradictionColumns is the column order shared by both export formats.
var contradictionColumns = []string{
	"Path",
	"Metric",
	"Severity",
	"Predicted",
	"Actual",
	"Variance %",
	"Samples",
	"Suggested Action",
	"Failure Layers",
}

func contradictionRow(c contradiction.Contradiction) []string {
	return []string{
		c.PathID,
		string(c.Metric),
		string(c.Severity),
		formatFloat(c.Evidence.Predicted),
		formatFloat(c.Evidence.Actual),
		formatFloat(c.Evidence.VariancePercent),
		strconv.Itoa(c.SampleSize),
		c.SuggestedAction,
		formatLayers(c.FailureLayers),
	}
}

// formatLayers renders layer counts in reporting order, e.g. "decision=2".
func formatLayers(layers map[model.FailureLayer]int) string {
	out := ""
	for _, l := range model.FailureLayers {
		n := layers[l]
		if n == 0 {
			continue
		}
		if out != "" {
			out += " "
		}
		out += fmt.Sprintf("%s=%d", l, n)
	}
	return out
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
