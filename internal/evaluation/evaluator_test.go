package evaluation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/crsarena/arena-eval/internal/annotation"
	"github.com/crsarena/arena-eval/internal/bus"
	"github.com/crsarena/arena-eval/internal/cache"
	"github.com/crsarena/arena-eval/internal/metrics"
	apperrors "github.com/crsarena/arena-eval/internal/pkg/errors"
	"github.com/crsarena/arena-eval/internal/pkg/logger"
)

const testGold = `[
  {
    "conv_id": "sysA_redial_001",
    "dial_level_aggregated": {"dialog_overall": 2, "understanding": 1},
    "dialogue": [
      {"role": "USR", "turn_ind": 0},
      {"role": "ASST", "turn_ind": 1, "turn_level_aggregated": {"relevance": 1, "interestingness": 2}},
      {"role": "USR", "turn_ind": 2},
      {"role": "ASST", "turn_ind": 3, "turn_level_aggregated": {"relevance": 5, "interestingness": 2}}
    ]
  },
  {
    "conv_id": "sysB_opendialkg_001",
    "dial_level_aggregated": {"dialog_overall": 4},
    "dialogue": [
      {"role": "ASST", "turn_ind": 0, "turn_level_aggregated": {"relevance": 3}}
    ]
  }
]`

const testRun = `[
  {
    "conv_id": "sysA_redial_001",
    "turns": [
      {"turn_ind": 1, "turn_level_pred": {"relevance": 2, "interestingness": 3}},
      {"turn_ind": "3", "turn_level_pred": {"relevance": 5, "interestingness": 1}}
    ],
    "dial_level_pred": {"dialog_overall": 2.5}
  },
  {
    "conv_id": "sysB_opendialkg_001",
    "turns": [{"turn_ind": 0, "turn_level_pred": {"relevance": 3}}],
    "dial_level_pred": {"dialog_overall": 3.0}
  }
]`

const testBaselines = `{"CRSArena-Eval_RD": {"judge": {"relevance": {"pearson_r": 0.5, "spearman_rho": 0.4}}}}`

type fakeRecorder struct {
	mu       sync.Mutex
	outcomes []string
	failures []string
	matched  map[string]int
}

func (f *fakeRecorder) RecordEvaluation(outcome string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, outcome)
}

func (f *fakeRecorder) RecordFailure(code string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, code)
}

func (f *fakeRecorder) RecordMatched(level string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.matched == nil {
		f.matched = map[string]int{}
	}
	f.matched[level] += n
}

func newTestReference(t *testing.T) *Reference {
	t.Helper()
	ref, err := NewReference([]byte(testGold), []byte(testBaselines))
	if err != nil {
		t.Fatalf("NewReference() error = %v", err)
	}
	return ref
}

func TestNewReference(t *testing.T) {
	tests := []struct {
		name      string
		gold      string
		baselines string
		wantCode  string
	}{
		{name: "valid", gold: testGold, baselines: testBaselines},
		{name: "no baselines", gold: testGold},
		{name: "gold not a list", gold: `{}`, wantCode: apperrors.CodeSchemaMismatch},
		{name: "baselines not an object", gold: testGold, baselines: `[]`, wantCode: apperrors.CodeSchemaMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, err := NewReference([]byte(tt.gold), []byte(tt.baselines))
			if tt.wantCode != "" {
				if !apperrors.HasCode(err, tt.wantCode) {
					t.Errorf("NewReference() error = %v, want %s", err, tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewReference() error = %v", err)
			}
			if ref.Gold.Turns.Len() != 3 || ref.Gold.Dialogues.Len() != 2 {
				t.Errorf("gold turns/dialogues = %d/%d, want 3/2", ref.Gold.Turns.Len(), ref.Gold.Dialogues.Len())
			}
		})
	}

	a, _ := NewReference([]byte(testGold), nil)
	b, _ := NewReference([]byte(testGold), []byte(testBaselines))
	if a.Digest == b.Digest {
		t.Error("digest should depend on baselines content")
	}
}

func TestNewEvaluator_RequiresReference(t *testing.T) {
	if _, err := NewEvaluator(nil, Deps{}); err == nil {
		t.Error("NewEvaluator(nil) should fail")
	}
}

func TestEvaluator_Evaluate(t *testing.T) {
	rec := &fakeRecorder{}
	e, err := NewEvaluator(newTestReference(t), Deps{Metrics: rec, Log: logger.Discard()})
	if err != nil {
		t.Fatal(err)
	}

	report, err := e.Evaluate(context.Background(), []byte(testRun))
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}

	if report.ID == "" || report.RunDigest == "" || report.ReferenceDigest != e.Reference().Digest {
		t.Errorf("report identity not set: %+v", report)
	}

	wantSummary := RunSummary{Dialogues: 2, Turns: 3, MatchedTurns: 3, MatchedDialogues: 2}
	if report.Summary != wantSummary {
		t.Errorf("Summary = %+v, want %+v", report.Summary, wantSummary)
	}

	rel := report.Turn.Cell(annotation.Relevance, "redial")
	if rel.Pairs != 2 {
		t.Errorf("redial relevance Pairs = %d, want 2", rel.Pairs)
	}
	if s, _ := rel.Spearman.Value(); s != 1 {
		t.Errorf("redial relevance Spearman = %v, want 1", rel.Spearman)
	}
	if all := report.Turn.Cell(annotation.Relevance, AllDatasets); all.Pairs != 3 {
		t.Errorf("all relevance Pairs = %d, want 3", all.Pairs)
	}
	// gold interestingness is constant
	if report.Turn.Cell(annotation.Interestingness, "redial").Pearson.Valid() {
		t.Error("constant gold should give insufficient Pearson")
	}
	if report.Dialogue.Cell(annotation.DialogOverall, AllDatasets).Pairs != 2 {
		t.Error("dialog_overall should match both dialogues")
	}
	if len(report.Systems.Systems) != 2 {
		t.Errorf("Systems = %v", report.Systems.Systems)
	}

	if len(rec.outcomes) != 1 || rec.outcomes[0] != metrics.OutcomeCompleted {
		t.Errorf("outcomes = %v", rec.outcomes)
	}
	if rec.matched["turn"] != 3 || rec.matched["dialogue"] != 2 {
		t.Errorf("matched = %v", rec.matched)
	}

	recent := e.Recent(10)
	if len(recent) != 1 || recent[0].ReportID != report.ID {
		t.Errorf("Recent() = %+v", recent)
	}
}

func TestEvaluator_Cache(t *testing.T) {
	rec := &fakeRecorder{}
	c := cache.NewMemoryCache(8)
	e, err := NewEvaluator(newTestReference(t), Deps{Cache: c, Metrics: rec})
	if err != nil {
		t.Fatal(err)
	}

	first, err := e.Evaluate(context.Background(), []byte(testRun))
	if err != nil {
		t.Fatal(err)
	}
	second, err := e.Evaluate(context.Background(), []byte(testRun))
	if err != nil {
		t.Fatal(err)
	}

	if first.ID != second.ID {
		t.Errorf("cached report ID = %s, want %s", second.ID, first.ID)
	}
	if c.Len() != 1 {
		t.Errorf("cache Len() = %d, want 1", c.Len())
	}
	if got := second.Turn.Cell(annotation.Relevance, "redial"); got != first.Turn.Cell(annotation.Relevance, "redial") {
		t.Errorf("cached cell = %+v, want %+v", got, first.Turn.Cell(annotation.Relevance, "redial"))
	}
	if len(rec.outcomes) != 2 || rec.outcomes[1] != metrics.OutcomeCached {
		t.Errorf("outcomes = %v", rec.outcomes)
	}
}

func TestEvaluator_Failures(t *testing.T) {
	tests := []struct {
		name     string
		run      string
		wantCode string
	}{
		{"not a list", `{"conv_id": "x"}`, apperrors.CodeSchemaMismatch},
		{"empty", ``, apperrors.CodeSchemaMismatch},
		{"bad turn index", `[{"conv_id": "sysA_redial_001", "turns": [{"turn_ind": "one"}]}]`, apperrors.CodeSchemaMismatch},
		{"unmatched malformed identity", `[{"conv_id": "orphan", "dial_level_pred": {"dialog_overall": 1}}]`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &fakeRecorder{}
			ref := newTestReference(t)
			turnsBefore := ref.Gold.Turns.Len()

			e, _ := NewEvaluator(ref, Deps{Metrics: rec})
			report, err := e.Evaluate(context.Background(), []byte(tt.run))

			if tt.wantCode == "" {
				// unmatched malformed ids are never resolved
				if err != nil {
					t.Fatalf("Evaluate() error = %v", err)
				}
				if report.Summary.MatchedDialogues != 0 {
					t.Errorf("MatchedDialogues = %d, want 0", report.Summary.MatchedDialogues)
				}
				return
			}

			if !apperrors.HasCode(err, tt.wantCode) {
				t.Fatalf("Evaluate() error = %v, want %s", err, tt.wantCode)
			}
			if len(rec.failures) != 1 || rec.failures[0] != tt.wantCode {
				t.Errorf("failures = %v", rec.failures)
			}
			if ref.Gold.Turns.Len() != turnsBefore {
				t.Error("reference changed after failed evaluation")
			}
			if _, err := e.Evaluate(context.Background(), []byte(testRun)); err != nil {
				t.Errorf("evaluation after failure: %v", err)
			}
		})
	}
}

func TestEvaluator_MalformedMatchedIdentity(t *testing.T) {
	ref, err := NewReference([]byte(`[{"conv_id": "orphan", "dial_level_aggregated": {"dialog_overall": 3}}]`), nil)
	if err != nil {
		t.Fatal(err)
	}
	e, _ := NewEvaluator(ref, Deps{})

	_, err = e.Evaluate(context.Background(), []byte(`[{"conv_id": "orphan", "dial_level_pred": {"dialog_overall": 1}}]`))
	if !apperrors.IsMalformedIdentity(err) {
		t.Errorf("Evaluate() error = %v, want MALFORMED_IDENTITY", err)
	}
}

func TestEvaluator_PublishesEvents(t *testing.T) {
	b := bus.NewMemoryBus(logger.Discard())
	defer b.Close()

	events := make(chan bus.Event, 4)
	collect := func(_ context.Context, ev bus.Event) error {
		events <- ev
		return nil
	}
	if err := b.Subscribe(context.Background(), bus.TopicEvaluationCompleted, collect); err != nil {
		t.Fatal(err)
	}
	if err := b.Subscribe(context.Background(), bus.TopicEvaluationFailed, collect); err != nil {
		t.Fatal(err)
	}

	e, _ := NewEvaluator(newTestReference(t), Deps{Bus: b})
	ctx := logger.ContextWithRequestID(context.Background(), "req-42")

	report, err := e.Evaluate(ctx, []byte(testRun))
	if err != nil {
		t.Fatal(err)
	}
	_, _ = e.Evaluate(ctx, []byte(`nope`))

	got := map[string]bus.Event{}
	for len(got) < 2 {
		select {
		case ev := <-events:
			got[ev.Type] = ev
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for events, got %v", got)
		}
	}

	completed := got[bus.TopicEvaluationCompleted]
	payload, ok := completed.Payload.(CompletedPayload)
	if !ok || payload.ReportID != report.ID || payload.Cached {
		t.Errorf("completed payload = %#v", completed.Payload)
	}
	if completed.CorrelationID != "req-42" || completed.Source != EventSource {
		t.Errorf("completed event = %+v", completed)
	}

	failed, ok := got[bus.TopicEvaluationFailed].Payload.(FailedPayload)
	if !ok || failed.Code != apperrors.CodeSchemaMismatch {
		t.Errorf("failed payload = %#v", got[bus.TopicEvaluationFailed].Payload)
	}
}

func TestEvaluator_CanceledContext(t *testing.T) {
	e, _ := NewEvaluator(newTestReference(t), Deps{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := e.Evaluate(ctx, []byte(testRun)); err == nil {
		t.Error("Evaluate() with canceled context should fail")
	}
}
