package evaluation

import (
	"github.com/crsarena/arena-eval/internal/annotation"
	"github.com/crsarena/arena-eval/internal/identity"
	"github.com/crsarena/arena-eval/internal/stats"
)

// bucket collects matched (prediction, gold) pairs.
type bucket struct {
	pred []float64
	gold []float64
}

func (b *bucket) add(pred, gold float64) {
	b.pred = append(b.pred, pred)
	b.gold = append(b.gold, gold)
}

func (b *bucket) len() int {
	if b == nil {
		return 0
	}
	return len(b.pred)
}

func (b *bucket) cell() Cell {
	if b.len() == 0 {
		return Cell{Pearson: stats.Insufficient(), Spearman: stats.Insufficient()}
	}
	return Cell{
		Pearson:  stats.Of(stats.Pearson(b.pred, b.gold)),
		Spearman: stats.Of(stats.Spearman(b.pred, b.gold)),
		Pairs:    len(b.pred),
	}
}

func (b *bucket) spearman() stats.Estimate {
	if b.len() == 0 {
		return stats.Insufficient()
	}
	return stats.Of(stats.Spearman(b.pred, b.gold))
}

// match walks gold in insertion order and calls fn for every key whose
// aspect is scored on both sides.
func match[K comparable](preds, gold *annotation.Index[K], aspect annotation.Aspect, fn func(key K, pred, gold float64) error) error {
	for _, key := range gold.Keys() {
		goldScores, _ := gold.Get(key)
		g, ok := goldScores.Get(aspect)
		if !ok {
			continue
		}
		predScores, ok := preds.Get(key)
		if !ok {
			continue
		}
		p, ok := predScores.Get(aspect)
		if !ok {
			continue
		}
		if err := fn(key, p, g); err != nil {
			return err
		}
	}
	return nil
}

func turnConvID(k annotation.TurnKey) string { return k.ConvID }

func dialogueConvID(convID string) string { return convID }

// EvaluateTurnLevel correlates turn-level predictions with gold, per
// recognized dataset and across all of them.
func EvaluateTurnLevel(preds, gold *annotation.TurnIndex) (Results, error) {
	return evaluateLevel(annotation.TurnAspects(), preds, gold, turnConvID)
}

// EvaluateDialogueLevel correlates dialogue-level predictions with gold, per
// recognized dataset and across all of them.
func EvaluateDialogueLevel(preds, gold *annotation.DialogueIndex) (Results, error) {
	return evaluateLevel(annotation.DialogueAspects(), preds, gold, dialogueConvID)
}

// evaluateLevel builds one Cell per aspect for every recognized dataset and
// for AllDatasets. Pairs from unrecognized datasets are dropped.
func evaluateLevel[K comparable](aspects []annotation.Aspect, preds, gold *annotation.Index[K], convID func(K) string) (Results, error) {
	names := annotation.DatasetNames()
	results := make(Results, len(aspects))

	for _, aspect := range aspects {
		byDataset := make(map[string]*bucket, len(names))
		for _, name := range names {
			byDataset[name] = &bucket{}
		}
		all := &bucket{}

		err := match(preds, gold, aspect, func(key K, p, g float64) error {
			dataset, err := identity.DatasetOf(convID(key))
			if err != nil {
				return err
			}
			b, ok := byDataset[dataset]
			if !ok {
				return nil
			}
			b.add(p, g)
			all.add(p, g)
			return nil
		})
		if err != nil {
			return nil, err
		}

		cells := make(map[string]Cell, len(names)+1)
		for _, name := range names {
			cells[name] = byDataset[name].cell()
		}
		cells[AllDatasets] = all.cell()
		results[aspect] = cells
	}

	return results, nil
}

// countMatches returns how many gold keys have a prediction entry.
func countMatches[K comparable](preds, gold *annotation.Index[K]) int {
	n := 0
	for _, key := range gold.Keys() {
		if _, ok := preds.Get(key); ok {
			n++
		}
	}
	return n
}
