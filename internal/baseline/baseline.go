// Package baseline decodes published baseline evaluator results and shapes
// them into per-dataset series aligned with the aspect catalog.
package baseline

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/crsarena/arena-eval/internal/annotation"
	apperrors "github.com/crsarena/arena-eval/internal/pkg/errors"
	"github.com/crsarena/arena-eval/internal/stats"
)

// InputBaselines names the baselines document in errors.
const InputBaselines = "baselines"

// Scores is one baseline's result for one aspect.
type Scores struct {
	PearsonR    stats.Estimate `json:"pearson_r"`
	SpearmanRho stats.Estimate `json:"spearman_rho"`
}

// Document maps group key -> baseline name -> aspect -> Scores.
type Document map[string]map[string]map[annotation.Aspect]Scores

// Series holds one value per aspect, in annotation.AllAspects order.
type Series struct {
	Pearson  []stats.Estimate `json:"pearson"`
	Spearman []stats.Estimate `json:"spearman"`
}

// Decode parses a baselines document. An empty input yields an empty document.
func Decode(data []byte) (Document, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Document{}, nil
	}
	if trimmed[0] != '{' {
		return nil, apperrors.SchemaMismatchError(InputBaselines, "expected an object keyed by baseline group", nil)
	}

	var doc Document
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, apperrors.SchemaMismatchError(InputBaselines, "expected an object keyed by baseline group", err)
	}
	if doc == nil {
		doc = Document{}
	}
	return doc, nil
}

// group returns the baselines recorded for a recognized dataset.
func (d Document) group(dataset string) map[string]map[annotation.Aspect]Scores {
	ds, ok := annotation.LookupDataset(dataset)
	if !ok {
		return nil
	}
	return d[ds.BaselineKey]
}

// Names returns the sorted baseline names available for dataset.
func (d Document) Names(dataset string) []string {
	g := d.group(dataset)
	names := make([]string, 0, len(g))
	for name := range g {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Series returns the series of baseline name for dataset.
func (d Document) Series(dataset, name string) (Series, bool) {
	results, ok := d.group(dataset)[name]
	if !ok {
		return Series{}, false
	}
	return buildSeries(results), true
}

// AllSeries returns every baseline series for dataset keyed by name.
func (d Document) AllSeries(dataset string) map[string]Series {
	g := d.group(dataset)
	out := make(map[string]Series, len(g))
	for name, results := range g {
		out[name] = buildSeries(results)
	}
	return out
}

// DefaultName returns the first baseline name in sorted order.
func (d Document) DefaultName(dataset string) (string, bool) {
	names := d.Names(dataset)
	if len(names) == 0 {
		return "", false
	}
	return names[0], true
}

func buildSeries(results map[annotation.Aspect]Scores) Series {
	aspects := annotation.AllAspects()
	s := Series{
		Pearson:  make([]stats.Estimate, len(aspects)),
		Spearman: make([]stats.Estimate, len(aspects)),
	}
	for i, a := range aspects {
		r := results[a]
		s.Pearson[i] = r.PearsonR
		s.Spearman[i] = r.SpearmanRho
	}
	return s
}
