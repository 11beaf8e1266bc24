package report

import (
	"fmt"
	"slices"

	"github.com/crsarena/arena-eval/internal/annotation"
	"github.com/crsarena/arena-eval/internal/baseline"
	"github.com/crsarena/arena-eval/internal/evaluation"
	apperrors "github.com/crsarena/arena-eval/internal/pkg/errors"
)

// Notes shown under a comparison table.
const (
	NoteNoUploaded          = "No data available for your evaluator."
	NoteNoBaselines         = "No baselines are available for this dataset."
	NoteBaselineUnavailable = "Baseline data unavailable for the selected evaluator."
)

// YourEvaluator is the display name of the uploaded run.
const YourEvaluator = "Your evaluator"

// ComparisonRow is one aspect of a comparison table.
type ComparisonRow struct {
	Aspect   annotation.Aspect `json:"aspect"`
	Label    string            `json:"label"`
	Yours    string            `json:"yours"`
	Baseline string            `json:"baseline"`
}

// Comparison is the evaluator-versus-baseline table for one dataset and metric.
type Comparison struct {
	Dataset   string            `json:"dataset"`
	Label     string            `json:"label"`
	Metric    evaluation.Metric `json:"metric"`
	Baseline  string            `json:"baseline,omitempty"`
	Baselines []string          `json:"baselines"`
	Header    []string          `json:"header"`
	Rows      []ComparisonRow   `json:"rows"`
	Note      string            `json:"note,omitempty"`

	// Chart holds the plotted values keyed by source name.
	Chart map[string][]float64 `json:"chart"`
}

// Compare builds the comparison table of the uploaded series against one
// baseline. An empty baselineName selects the first baseline in sorted order.
// uploaded may be nil when no run has been evaluated.
func Compare(dataset string, metric evaluation.Metric, uploaded map[string]baseline.Series, doc baseline.Document, baselineName string) (*Comparison, error) {
	ds, ok := annotation.LookupDataset(dataset)
	if !ok {
		return nil, apperrors.ValidationError(fmt.Sprintf("unknown dataset %q", dataset)).
			WithDetail("dataset", dataset)
	}
	if _, ok := evaluation.ParseMetric(string(metric)); !ok {
		return nil, apperrors.ValidationError(fmt.Sprintf("unknown metric %q", metric)).
			WithDetail("metric", string(metric))
	}

	names := doc.Names(dataset)
	if baselineName == "" && len(names) > 0 {
		baselineName = names[0]
	}

	c := &Comparison{
		Dataset:   ds.Name,
		Label:     ds.Label,
		Metric:    metric,
		Baseline:  baselineName,
		Baselines: names,
		Header:    []string{"Aspect", YourEvaluator, baselineHeader(baselineName)},
		Chart:     make(map[string][]float64),
	}

	var yours []string
	if s, ok := uploaded[dataset]; ok {
		values := Pick(s, metric)
		c.Chart[YourEvaluator] = ChartValues(values)
		for _, v := range values {
			yours = append(yours, TableValue(v))
		}
	}
	if len(yours) == 0 {
		c.Note = NoteNoUploaded
		return c, nil
	}

	var theirs []string
	if baselineName != "" && slices.Contains(names, baselineName) {
		s, _ := doc.Series(dataset, baselineName)
		values := Pick(s, metric)
		c.Chart[baselineName] = ChartValues(values)
		for _, v := range values {
			theirs = append(theirs, TableValue(v))
		}
	}

	for i, a := range annotation.AllAspects() {
		row := ComparisonRow{Aspect: a, Label: a.Label(), Yours: yours[i], Baseline: Missing}
		if theirs != nil {
			row.Baseline = theirs[i]
		}
		c.Rows = append(c.Rows, row)
	}

	switch {
	case baselineName == "":
		c.Note = NoteNoBaselines
	case theirs == nil:
		c.Note = NoteBaselineUnavailable
	}
	return c, nil
}

func baselineHeader(name string) string {
	if name == "" {
		return "Baseline"
	}
	return "Baseline - " + name
}
