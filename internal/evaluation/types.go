package evaluation

import (
	"time"

	"github.com/crsarena/arena-eval/internal/annotation"
	"github.com/crsarena/arena-eval/internal/stats"
)

// AllDatasets is the results key of the cross-dataset aggregate.
const AllDatasets = "all"

// Cell holds the agreement between predictions and gold for one
// (aspect, dataset) pair.
type Cell struct {
	Pearson  stats.Estimate `json:"pearson"`
	Spearman stats.Estimate `json:"spearman"`
	Pairs    int            `json:"pairs"` // matched (prediction, gold) pairs
}

// Metric selects one of the two correlation measures.
type Metric string

const (
	MetricPearson  Metric = "pearson"
	MetricSpearman Metric = "spearman"
)

// ParseMetric validates a metric name.
func ParseMetric(s string) (Metric, bool) {
	switch Metric(s) {
	case MetricPearson, MetricSpearman:
		return Metric(s), true
	default:
		return "", false
	}
}

// Label is the display name of the metric.
func (m Metric) Label() string {
	if m == MetricPearson {
		return "Pearson"
	}
	return "Spearman"
}

// Get returns the cell's value for metric m.
func (c Cell) Get(m Metric) stats.Estimate {
	if m == MetricPearson {
		return c.Pearson
	}
	return c.Spearman
}

// Results maps aspect -> dataset name (or AllDatasets) -> Cell.
type Results map[annotation.Aspect]map[string]Cell

// Cell returns the cell for aspect and dataset. Missing cells are reported
// as insufficient.
func (r Results) Cell(aspect annotation.Aspect, dataset string) Cell {
	return r[aspect][dataset]
}

// SystemRanking is the per-system Spearman table. Values and Pairs are
// indexed [system][aspect] following Systems and Aspects.
type SystemRanking struct {
	Systems []string            `json:"systems"`
	Aspects []annotation.Aspect `json:"aspects"`
	Values  [][]stats.Estimate  `json:"values"`
	Pairs   [][]int             `json:"pairs"`
}

// Value returns the Spearman estimate for system and aspect.
func (r *SystemRanking) Value(system string, aspect annotation.Aspect) (stats.Estimate, bool) {
	for i, s := range r.Systems {
		if s != system {
			continue
		}
		for j, a := range r.Aspects {
			if a == aspect {
				return r.Values[i][j], true
			}
		}
	}
	return stats.Insufficient(), false
}

// RunSummary counts what a run contributed.
type RunSummary struct {
	Dialogues        int `json:"dialogues"`
	Turns            int `json:"turns"`
	MatchedTurns     int `json:"matched_turns"`
	MatchedDialogues int `json:"matched_dialogues"`
}

// Report is the complete outcome of evaluating one run.
type Report struct {
	ID              string         `json:"id"`
	RunDigest       string         `json:"run_digest"`
	ReferenceDigest string         `json:"reference_digest"`
	CreatedAt       time.Time      `json:"created_at"`
	Summary         RunSummary     `json:"summary"`
	Turn            Results        `json:"turn_level"`
	Dialogue        Results        `json:"dialogue_level"`
	Systems         *SystemRanking `json:"systems"`
}
