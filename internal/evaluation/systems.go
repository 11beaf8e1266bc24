package evaluation

import (
	"sort"

	"github.com/crsarena/arena-eval/internal/annotation"
	"github.com/crsarena/arena-eval/internal/identity"
	"github.com/crsarena/arena-eval/internal/stats"
)

// systemBuckets holds one bucket per aspect for a single system.
type systemBuckets map[annotation.Aspect]*bucket

// ComputePerSystemSpearman groups matched pairs by system identifier across
// every aspect and computes one Spearman value per (system, aspect).
//
// Pairs are not filtered by dataset. A system with at least one matched key
// is listed even when none of its aspects matched.
func ComputePerSystemSpearman(turnPreds, turnGold *annotation.TurnIndex, dialPreds, dialGold *annotation.DialogueIndex) (*SystemRanking, error) {
	aspects := annotation.AllAspects()
	bySystem := make(map[string]systemBuckets)

	ensure := func(convID string) (systemBuckets, error) {
		system, err := identity.SystemOf(convID)
		if err != nil {
			return nil, err
		}
		buckets, ok := bySystem[system]
		if !ok {
			buckets = make(systemBuckets, len(aspects))
			for _, a := range aspects {
				buckets[a] = &bucket{}
			}
			bySystem[system] = buckets
		}
		return buckets, nil
	}

	for _, key := range turnGold.Keys() {
		predScores, ok := turnPreds.Get(key)
		if !ok {
			continue
		}
		buckets, err := ensure(key.ConvID)
		if err != nil {
			return nil, err
		}
		goldScores, _ := turnGold.Get(key)
		collect(buckets, annotation.TurnAspects(), predScores, goldScores)
	}

	for _, convID := range dialGold.Keys() {
		predScores, ok := dialPreds.Get(convID)
		if !ok {
			continue
		}
		buckets, err := ensure(convID)
		if err != nil {
			return nil, err
		}
		goldScores, _ := dialGold.Get(convID)
		collect(buckets, annotation.DialogueAspects(), predScores, goldScores)
	}

	systems := make([]string, 0, len(bySystem))
	for s := range bySystem {
		systems = append(systems, s)
	}
	sort.Strings(systems)

	ranking := &SystemRanking{
		Systems: systems,
		Aspects: aspects,
		Values:  make([][]stats.Estimate, len(systems)),
		Pairs:   make([][]int, len(systems)),
	}
	for i, s := range systems {
		ranking.Values[i] = make([]stats.Estimate, len(aspects))
		ranking.Pairs[i] = make([]int, len(aspects))
		for j, a := range aspects {
			b := bySystem[s][a]
			ranking.Values[i][j] = b.spearman()
			ranking.Pairs[i][j] = b.len()
		}
	}

	return ranking, nil
}

func collect(buckets systemBuckets, aspects []annotation.Aspect, pred, gold annotation.Scores) {
	for _, a := range aspects {
		g, ok := gold.Get(a)
		if !ok {
			continue
		}
		p, ok := pred.Get(a)
		if !ok {
			continue
		}
		buckets[a].add(p, g)
	}
}
