package baseline

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	apperrors "github.com/crsarena/arena-eval/internal/pkg/errors"
)

const sampleDoc = `{
  "CRSArena-Eval_RD": {
    "zeta-judge": {"relevance": {"pearson_r": 0.41, "spearman_rho": 0.39}},
    "alpha-judge": {
      "relevance": {"pearson_r": 0.5, "spearman_rho": 0.45},
      "dialog_overall": {"pearson_r": null, "spearman_rho": 0.2}
    }
  },
  "CRSArena-Eval_KG": {}
}`

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr bool
	}{
		{"valid", sampleDoc, false},
		{"empty", "", false},
		{"null", "null", true},
		{"list", `[{"a":1}]`, true},
		{"string metric", `{"g":{"b":{"relevance":{"pearson_r":"high"}}}}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Decode([]byte(tt.data))
			if tt.wantErr {
				if !apperrors.IsSchemaMismatch(err) {
					t.Errorf("Decode() error = %v, want SCHEMA_MISMATCH", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if doc == nil {
				t.Error("Decode() returned nil document")
			}
		})
	}
}

func TestDocument_Names(t *testing.T) {
	doc, err := Decode([]byte(sampleDoc))
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff([]string{"alpha-judge", "zeta-judge"}, doc.Names("redial")); diff != "" {
		t.Errorf("Names(redial) mismatch (-want +got):\n%s", diff)
	}
	if names := doc.Names("opendialkg"); len(names) != 0 {
		t.Errorf("Names(opendialkg) = %v, want empty", names)
	}
	if names := doc.Names("movies"); len(names) != 0 {
		t.Errorf("Names(unrecognized) = %v, want empty", names)
	}

	if name, ok := doc.DefaultName("redial"); !ok || name != "alpha-judge" {
		t.Errorf("DefaultName() = %q, %v", name, ok)
	}
	if _, ok := doc.DefaultName("opendialkg"); ok {
		t.Error("DefaultName() on empty group should report false")
	}
}

func TestDocument_Series(t *testing.T) {
	doc, _ := Decode([]byte(sampleDoc))

	s, ok := doc.Series("redial", "alpha-judge")
	if !ok {
		t.Fatal("Series() not found")
	}
	if len(s.Pearson) != 7 || len(s.Spearman) != 7 {
		t.Fatalf("series length = %d/%d, want 7", len(s.Pearson), len(s.Spearman))
	}

	// relevance is first, dialog_overall last
	if v, ok := s.Pearson[0].Value(); !ok || v != 0.5 {
		t.Errorf("Pearson[relevance] = %v, %v", v, ok)
	}
	if s.Pearson[6].Valid() {
		t.Error("null pearson_r should be insufficient")
	}
	if v, _ := s.Spearman[6].Value(); v != 0.2 {
		t.Errorf("Spearman[dialog_overall] = %v, want 0.2", v)
	}
	if s.Spearman[1].Valid() {
		t.Error("missing aspect should be insufficient")
	}

	if _, ok := doc.Series("redial", "nobody"); ok {
		t.Error("Series() for unknown baseline should report false")
	}
	if all := doc.AllSeries("redial"); len(all) != 2 {
		t.Errorf("AllSeries() len = %d, want 2", len(all))
	}
}
