package annotation

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	apperrors "github.com/crsarena/arena-eval/internal/pkg/errors"
)

var (
	errMissingIndex  = errors.New("missing")
	errNotInteger    = errors.New("not an integer")
	errNegativeIndex = errors.New("negative")
)

// ParseGold indexes a gold document. Dialogue scores are taken as given;
// only assistant turns are indexed. Every dialogue gets an entry, even an
// empty one. Later records replace earlier ones with the same identity.
func ParseGold(records []GoldRecord) (*GoldSet, error) {
	set := &GoldSet{
		Turns:     newIndex[TurnKey](),
		Dialogues: newIndex[string](),
	}

	for i, rec := range records {
		if rec.ConvID == "" {
			return nil, missingConvID(InputGold, i)
		}
		set.Dialogues.set(rec.ConvID, coerceScores(rec.Scores, nil))

		for _, turn := range rec.Dialogue {
			if turn.Role != AssistantRole {
				continue
			}
			idx, err := parseTurnIndex(turn.TurnInd)
			if err != nil {
				return nil, badTurnIndex(InputGold, rec.ConvID, turn.TurnInd, err)
			}
			set.Turns.set(TurnKey{ConvID: rec.ConvID, Turn: idx}, coerceScores(turn.Scores, nil))
		}
	}

	return set, nil
}

// ParseRun indexes a run document. Only the fixed aspects of each level are
// read; missing or non-numeric scores are left out.
func ParseRun(records []RunRecord) (*PredictionSet, error) {
	set := &PredictionSet{
		Turns:     newIndex[TurnKey](),
		Dialogues: newIndex[string](),
	}

	for i, rec := range records {
		if rec.ConvID == "" {
			return nil, missingConvID(InputRun, i)
		}
		for _, turn := range rec.Turns {
			idx, err := parseTurnIndex(turn.TurnInd)
			if err != nil {
				return nil, badTurnIndex(InputRun, rec.ConvID, turn.TurnInd, err)
			}
			set.Turns.set(TurnKey{ConvID: rec.ConvID, Turn: idx}, coerceScores(turn.Scores, turnAspects))
		}
		set.Dialogues.set(rec.ConvID, coerceScores(rec.Scores, dialogueAspects))
	}

	return set, nil
}

// coerceScores converts raw values to floats. When only is non-nil, keys
// outside it are ignored.
func coerceScores(raw map[string]any, only []Aspect) Scores {
	scores := make(Scores, len(raw))
	if only != nil {
		for _, a := range only {
			if v, ok := raw[string(a)]; ok {
				if f, ok := toFloat(v); ok {
					scores[a] = f
				}
			}
		}
		return scores
	}
	for k, v := range raw {
		if f, ok := toFloat(v); ok {
			scores[Aspect(k)] = f
		}
	}
	return scores
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func parseTurnIndex(v any) (int, error) {
	switch x := v.(type) {
	case nil:
		return 0, errMissingIndex
	case string:
		s := strings.TrimSpace(x)
		if n, err := strconv.Atoi(s); err == nil {
			return checkTurnIndex(n)
		}
		// "2.0" is an integer written as a float.
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, errNotInteger
		}
		return integralTurnIndex(f)
	default:
		f, ok := toFloat(x)
		if !ok {
			return 0, errNotInteger
		}
		return integralTurnIndex(f)
	}
}

func integralTurnIndex(f float64) (int, error) {
	if math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, errNotInteger
	}
	return checkTurnIndex(int(f))
}

func checkTurnIndex(n int) (int, error) {
	if n < 0 {
		return 0, errNegativeIndex
	}
	return n, nil
}

func missingConvID(input string, record int) error {
	return apperrors.SchemaMismatchError(input, fmt.Sprintf("record %d has no conv_id", record), nil).
		WithDetail("record", strconv.Itoa(record))
}

func badTurnIndex(input, convID string, value any, err error) error {
	return apperrors.SchemaMismatchError(input,
		fmt.Sprintf("invalid turn_ind %v in conversation %q", value, convID), err).
		WithDetail("conv_id", convID).
		WithDetail("turn_ind", fmt.Sprint(value))
}
