package evaluation

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/crsarena/arena-eval/internal/annotation"
	apperrors "github.com/crsarena/arena-eval/internal/pkg/errors"
)

type turnScore struct {
	conv  string
	turn  int
	score float64
}

// goldTurns builds a gold set with one assistant turn per entry, scored on
// relevance.
func goldTurns(t *testing.T, entries ...turnScore) *annotation.GoldSet {
	t.Helper()
	var records []annotation.GoldRecord
	for _, e := range entries {
		records = append(records, annotation.GoldRecord{
			ConvID: e.conv,
			Dialogue: []annotation.GoldTurn{{
				Role:    annotation.AssistantRole,
				TurnInd: float64(e.turn),
				Scores:  map[string]any{"relevance": e.score},
			}},
		})
	}
	gold, err := annotation.ParseGold(mergeGold(records))
	if err != nil {
		t.Fatalf("ParseGold() error = %v", err)
	}
	return gold
}

// mergeGold folds records sharing a conv_id into one record.
func mergeGold(records []annotation.GoldRecord) []annotation.GoldRecord {
	var out []annotation.GoldRecord
	pos := map[string]int{}
	for _, r := range records {
		if i, ok := pos[r.ConvID]; ok {
			out[i].Dialogue = append(out[i].Dialogue, r.Dialogue...)
			continue
		}
		pos[r.ConvID] = len(out)
		out = append(out, r)
	}
	return out
}

func runTurns(t *testing.T, entries ...turnScore) *annotation.PredictionSet {
	t.Helper()
	var records []annotation.RunRecord
	pos := map[string]int{}
	for _, e := range entries {
		turn := annotation.RunTurn{TurnInd: float64(e.turn), Scores: map[string]any{"relevance": e.score}}
		if i, ok := pos[e.conv]; ok {
			records[i].Turns = append(records[i].Turns, turn)
			continue
		}
		pos[e.conv] = len(records)
		records = append(records, annotation.RunRecord{ConvID: e.conv, Turns: []annotation.RunTurn{turn}})
	}
	preds, err := annotation.ParseRun(records)
	if err != nil {
		t.Fatalf("ParseRun() error = %v", err)
	}
	return preds
}

func TestEvaluateTurnLevel_SinglePair(t *testing.T) {
	gold := goldTurns(t, turnScore{"sysA_redial_001", 0, 4})
	preds := runTurns(t, turnScore{"sysA_redial_001", 0, 4.0})

	results, err := EvaluateTurnLevel(preds.Turns, gold.Turns)
	if err != nil {
		t.Fatalf("EvaluateTurnLevel() error = %v", err)
	}

	cell := results.Cell(annotation.Relevance, "redial")
	if cell.Pairs != 1 {
		t.Errorf("Pairs = %d, want 1", cell.Pairs)
	}
	if cell.Pearson.Valid() || cell.Spearman.Valid() {
		t.Errorf("single pair should be insufficient, got %v/%v", cell.Pearson, cell.Spearman)
	}
}

func TestEvaluateTurnLevel_TwoPairs(t *testing.T) {
	gold := goldTurns(t,
		turnScore{"sysA_redial_1", 0, 2},
		turnScore{"sysA_redial_1", 2, 5},
	)
	preds := runTurns(t,
		turnScore{"sysA_redial_1", 0, 1},
		turnScore{"sysA_redial_1", 2, 5},
	)

	results, err := EvaluateTurnLevel(preds.Turns, gold.Turns)
	if err != nil {
		t.Fatalf("EvaluateTurnLevel() error = %v", err)
	}

	for _, ds := range []string{"redial", AllDatasets} {
		cell := results.Cell(annotation.Relevance, ds)
		if cell.Pairs != 2 {
			t.Errorf("%s Pairs = %d, want 2", ds, cell.Pairs)
		}
		if p, ok := cell.Pearson.Value(); !ok || math.Abs(p-1) > 1e-9 {
			t.Errorf("%s Pearson = %v, want 1", ds, cell.Pearson)
		}
		if s, ok := cell.Spearman.Value(); !ok || s != 1 {
			t.Errorf("%s Spearman = %v, want 1", ds, cell.Spearman)
		}
	}

	kg := results.Cell(annotation.Relevance, "opendialkg")
	if kg.Pairs != 0 || kg.Pearson.Valid() {
		t.Errorf("opendialkg cell = %+v, want empty", kg)
	}
	if other := results.Cell(annotation.Interestingness, "redial"); other.Pairs != 0 {
		t.Errorf("interestingness Pairs = %d, want 0", other.Pairs)
	}
}

func TestEvaluateTurnLevel_Buckets(t *testing.T) {
	gold := goldTurns(t,
		turnScore{"sysA_redial_001", 0, 1},
		turnScore{"sysA_redial_002", 0, 3},
		turnScore{"sysB_opendialkg_001", 0, 2},
		turnScore{"sysB_opendialkg_002", 0, 4},
		turnScore{"sysC_movies_001", 0, 5},
		turnScore{"sysD_redial_009", 0, 5},
	)
	preds := runTurns(t,
		turnScore{"sysA_redial_001", 0, 1},
		turnScore{"sysA_redial_002", 0, 2},
		turnScore{"sysB_opendialkg_001", 0, 4},
		turnScore{"sysB_opendialkg_002", 0, 3},
		turnScore{"sysC_movies_001", 0, 5},
		turnScore{"sysA_redial_003", 0, 5}, // no gold
	)

	results, err := EvaluateTurnLevel(preds.Turns, gold.Turns)
	if err != nil {
		t.Fatalf("EvaluateTurnLevel() error = %v", err)
	}

	tests := []struct {
		dataset   string
		wantPairs int
	}{
		{"redial", 2},
		{"opendialkg", 2},
		{AllDatasets, 4}, // unrecognized dataset excluded
	}
	for _, tt := range tests {
		t.Run(tt.dataset, func(t *testing.T) {
			if got := results.Cell(annotation.Relevance, tt.dataset).Pairs; got != tt.wantPairs {
				t.Errorf("Pairs = %d, want %d", got, tt.wantPairs)
			}
		})
	}

	if s, _ := results.Cell(annotation.Relevance, "opendialkg").Spearman.Value(); s != -1 {
		t.Errorf("opendialkg Spearman = %v, want -1", s)
	}
	if _, ok := results[annotation.Relevance]["movies"]; ok {
		t.Error("unrecognized dataset should not get a cell")
	}
}

func TestEvaluateTurnLevel_MalformedIdentity(t *testing.T) {
	tests := []struct {
		name    string
		gold    []turnScore
		preds   []turnScore
		wantErr bool
	}{
		{
			name:    "matched malformed id",
			gold:    []turnScore{{"broken", 0, 3}},
			preds:   []turnScore{{"broken", 0, 3}},
			wantErr: true,
		},
		{
			name:  "unmatched malformed id",
			gold:  []turnScore{{"broken", 0, 3}, {"sysA_redial_001", 0, 2}},
			preds: []turnScore{{"sysA_redial_001", 0, 2}, {"other", 0, 1}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gold := goldTurns(t, tt.gold...)
			preds := runTurns(t, tt.preds...)

			_, err := EvaluateTurnLevel(preds.Turns, gold.Turns)
			if tt.wantErr {
				if !apperrors.IsMalformedIdentity(err) {
					t.Errorf("error = %v, want MALFORMED_IDENTITY", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestEvaluateDialogueLevel(t *testing.T) {
	gold, err := annotation.ParseGold([]annotation.GoldRecord{
		{ConvID: "sysA_redial_001", Scores: map[string]any{"dialog_overall": 2, "efficiency": 1}},
		{ConvID: "sysA_redial_002", Scores: map[string]any{"dialog_overall": 4, "efficiency": 1}},
		{ConvID: "sysB_redial_003", Scores: map[string]any{"dialog_overall": 5}},
	})
	if err != nil {
		t.Fatal(err)
	}
	preds, err := annotation.ParseRun([]annotation.RunRecord{
		{ConvID: "sysA_redial_001", Scores: map[string]any{"dialog_overall": 1.5, "efficiency": 3}},
		{ConvID: "sysA_redial_002", Scores: map[string]any{"dialog_overall": 3.5, "efficiency": 2}},
		{ConvID: "sysB_redial_003", Scores: map[string]any{"dialog_overall": 4.0}},
	})
	if err != nil {
		t.Fatal(err)
	}

	results, err := EvaluateDialogueLevel(preds.Dialogues, gold.Dialogues)
	if err != nil {
		t.Fatalf("EvaluateDialogueLevel() error = %v", err)
	}

	overall := results.Cell(annotation.DialogOverall, "redial")
	if overall.Pairs != 3 {
		t.Errorf("dialog_overall Pairs = %d, want 3", overall.Pairs)
	}
	if s, _ := overall.Spearman.Value(); s != 1 {
		t.Errorf("dialog_overall Spearman = %v, want 1", overall.Spearman)
	}

	// constant gold efficiency has zero variance
	eff := results.Cell(annotation.Efficiency, "redial")
	if eff.Pairs != 2 || eff.Pearson.Valid() {
		t.Errorf("efficiency cell = %+v, want 2 pairs and insufficient", eff)
	}

	if _, ok := results[annotation.Relevance]; ok {
		t.Error("turn aspect should not appear in dialogue results")
	}
}

func TestComputePerSystemSpearman(t *testing.T) {
	gold, err := annotation.ParseGold([]annotation.GoldRecord{
		{
			ConvID: "zeta_redial_001",
			Scores: map[string]any{"dialog_overall": 1},
			Dialogue: []annotation.GoldTurn{
				{Role: annotation.AssistantRole, TurnInd: 1.0, Scores: map[string]any{"relevance": 1}},
				{Role: annotation.AssistantRole, TurnInd: 3.0, Scores: map[string]any{"relevance": 3}},
			},
		},
		{ConvID: "zeta_redial_002", Scores: map[string]any{"dialog_overall": 4}},
		{ConvID: "alpha_movies_001", Scores: map[string]any{"dialog_overall": 2}},
		{ConvID: "beta_opendialkg_001", Scores: map[string]any{"understanding": 2}},
	})
	if err != nil {
		t.Fatal(err)
	}
	preds, err := annotation.ParseRun([]annotation.RunRecord{
		{
			ConvID: "zeta_redial_001",
			Scores: map[string]any{"dialog_overall": 2},
			Turns: []annotation.RunTurn{
				{TurnInd: "1", Scores: map[string]any{"relevance": 5}},
				{TurnInd: "3", Scores: map[string]any{"relevance": 1}},
			},
		},
		{ConvID: "zeta_redial_002", Scores: map[string]any{"dialog_overall": 3}},
		{ConvID: "alpha_movies_001", Scores: map[string]any{"dialog_overall": 5}},
		{ConvID: "beta_opendialkg_001", Scores: map[string]any{"efficiency": 2}},
	})
	if err != nil {
		t.Fatal(err)
	}

	ranking, err := ComputePerSystemSpearman(preds.Turns, gold.Turns, preds.Dialogues, gold.Dialogues)
	if err != nil {
		t.Fatalf("ComputePerSystemSpearman() error = %v", err)
	}

	if diff := cmp.Diff([]string{"alpha_movies", "beta_opendialkg", "zeta_redial"}, ranking.Systems); diff != "" {
		t.Errorf("Systems mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(annotation.AllAspects(), ranking.Aspects); diff != "" {
		t.Errorf("Aspects mismatch (-want +got):\n%s", diff)
	}

	tests := []struct {
		system    string
		aspect    annotation.Aspect
		want      float64
		wantValid bool
	}{
		{"zeta_redial", annotation.Relevance, -1, true},
		{"zeta_redial", annotation.DialogOverall, 1, true},
		{"alpha_movies", annotation.DialogOverall, 0, false}, // one pair
		{"beta_opendialkg", annotation.Understanding, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.system+"/"+string(tt.aspect), func(t *testing.T) {
			v, ok := ranking.Value(tt.system, tt.aspect)
			if !ok {
				t.Fatal("cell not found")
			}
			got, valid := v.Value()
			if valid != tt.wantValid || (valid && got != tt.want) {
				t.Errorf("Value() = %v, want %v (valid %v)", v, tt.want, tt.wantValid)
			}
		})
	}

	if _, ok := ranking.Value("nobody", annotation.Relevance); ok {
		t.Error("unknown system should not be found")
	}
}

func TestComputePerSystemSpearman_MalformedIdentity(t *testing.T) {
	gold := goldTurns(t, turnScore{"solo", 0, 1})
	preds := runTurns(t, turnScore{"solo", 0, 1})

	_, err := ComputePerSystemSpearman(preds.Turns, gold.Turns, preds.Dialogues, gold.Dialogues)
	if !apperrors.IsMalformedIdentity(err) {
		t.Errorf("error = %v, want MALFORMED_IDENTITY", err)
	}
}

func TestParseMetric(t *testing.T) {
	tests := []struct {
		in      string
		want    Metric
		wantOK  bool
		wantLbl string
	}{
		{"pearson", MetricPearson, true, "Pearson"},
		{"spearman", MetricSpearman, true, "Spearman"},
		{"kendall", "", false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseMetric(tt.in)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseMetric() = %q, %v", got, ok)
			}
			if ok && got.Label() != tt.wantLbl {
				t.Errorf("Label() = %q, want %q", got.Label(), tt.wantLbl)
			}
		})
	}
}
