package evaluation

import (
	"github.com/crsarena/arena-eval/internal/annotation"
)

// Scores is the outcome of scoring one prediction set against gold.
type Scores struct {
	Summary  RunSummary
	Turn     Results
	Dialogue Results
	Systems  *SystemRanking
}

// Score runs both level aggregations and the per-system ranking.
func Score(gold *annotation.GoldSet, preds *annotation.PredictionSet) (*Scores, error) {
	turn, err := EvaluateTurnLevel(preds.Turns, gold.Turns)
	if err != nil {
		return nil, err
	}
	dialogue, err := EvaluateDialogueLevel(preds.Dialogues, gold.Dialogues)
	if err != nil {
		return nil, err
	}
	systems, err := ComputePerSystemSpearman(preds.Turns, gold.Turns, preds.Dialogues, gold.Dialogues)
	if err != nil {
		return nil, err
	}

	return &Scores{
		Summary: RunSummary{
			Dialogues:        preds.Dialogues.Len(),
			Turns:            preds.Turns.Len(),
			MatchedTurns:     countMatches(preds.Turns, gold.Turns),
			MatchedDialogues: countMatches(preds.Dialogues, gold.Dialogues),
		},
		Turn:     turn,
		Dialogue: dialogue,
		Systems:  systems,
	}, nil
}
