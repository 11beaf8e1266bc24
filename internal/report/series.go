// Package report shapes evaluation results for presentation: chart series,
// the evaluator-versus-baseline comparison table, terminal and markdown
// tables, and spreadsheet export.
package report

import (
	"math"
	"strconv"

	"github.com/crsarena/arena-eval/internal/annotation"
	"github.com/crsarena/arena-eval/internal/baseline"
	"github.com/crsarena/arena-eval/internal/evaluation"
	"github.com/crsarena/arena-eval/internal/stats"
)

// Missing is the table placeholder for an insufficient estimate.
const Missing = "—"

// ChartValue is the plotted value of e: 0 when insufficient, otherwise
// rounded to three decimals.
func ChartValue(e stats.Estimate) float64 {
	v, ok := e.Value()
	if !ok {
		return 0
	}
	return math.Round(v*1000) / 1000
}

// TableValue formats e with three decimals, or Missing when insufficient.
func TableValue(e stats.Estimate) string {
	v, ok := e.Value()
	if !ok {
		return Missing
	}
	return strconv.FormatFloat(v, 'f', 3, 64)
}

// UploadedSeries builds one series per recognized dataset from the turn and
// dialogue results, in annotation.AllAspects order.
func UploadedSeries(turn, dialogue evaluation.Results) map[string]baseline.Series {
	out := make(map[string]baseline.Series, len(annotation.Datasets()))
	for _, ds := range annotation.DatasetNames() {
		var s baseline.Series
		for _, a := range annotation.TurnAspects() {
			cell := turn.Cell(a, ds)
			s.Pearson = append(s.Pearson, cell.Pearson)
			s.Spearman = append(s.Spearman, cell.Spearman)
		}
		for _, a := range annotation.DialogueAspects() {
			cell := dialogue.Cell(a, ds)
			s.Pearson = append(s.Pearson, cell.Pearson)
			s.Spearman = append(s.Spearman, cell.Spearman)
		}
		out[ds] = s
	}
	return out
}

// ReportSeries is UploadedSeries over a report's results.
func ReportSeries(r *evaluation.Report) map[string]baseline.Series {
	if r == nil {
		return nil
	}
	return UploadedSeries(r.Turn, r.Dialogue)
}

// Pick returns the metric's values of s.
func Pick(s baseline.Series, m evaluation.Metric) []stats.Estimate {
	if m == evaluation.MetricPearson {
		return s.Pearson
	}
	return s.Spearman
}

// ChartValues maps a series to plotted values.
func ChartValues(values []stats.Estimate) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = ChartValue(v)
	}
	return out
}

// ChartLabels are the x-axis labels, one per aspect in AllAspects order.
func ChartLabels() []string {
	aspects := annotation.AllAspects()
	labels := make([]string, len(aspects))
	for i, a := range aspects {
		labels[i] = a.Label()
	}
	return labels
}
