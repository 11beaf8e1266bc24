package source

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	apperrors "github.com/crsarena/arena-eval/internal/pkg/errors"
	"github.com/crsarena/arena-eval/internal/pkg/logger"
)

const goldDoc = `[
  {
    "conv_id": "sysA_redial_001",
    "dial_level_aggregated": {"dialog_overall": 3},
    "dialogue": [
      {"role": "USR", "turn_ind": 0},
      {"role": "ASST", "turn_ind": 1, "turn_level_aggregated": {"relevance": 4}}
    ]
  }
]`

const baselineDoc = `{"CRSArena-Eval_RD": {"judge": {"relevance": {"pearson_r": 0.5, "spearman_rho": 0.4}}}}`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoader_Load(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/gold.json":
			_, _ = w.Write([]byte(goldDoc))
		case "/slow.json":
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	path := writeFile(t, "gold.json", goldDoc)

	tests := []struct {
		name     string
		location string
		opts     []Option
		want     string
		wantCode string
	}{
		{name: "file", location: path, want: goldDoc},
		{name: "url", location: srv.URL + "/gold.json", want: goldDoc},
		{name: "missing file", location: filepath.Join(t.TempDir(), "none.json"), wantCode: apperrors.CodeNotFound},
		{name: "http 404", location: srv.URL + "/missing.json", wantCode: apperrors.CodeUnavailable},
		{name: "timeout", location: srv.URL + "/slow.json", wantCode: apperrors.CodeTimeout},
		{name: "too large", location: path, opts: []Option{WithMaxBytes(10)}, wantCode: apperrors.CodePayloadTooLarge},
		{name: "empty location", location: "", wantCode: apperrors.CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLoader(100*time.Millisecond, tt.opts...)
			got, err := l.Load(context.Background(), tt.location)
			if tt.wantCode != "" {
				if !apperrors.HasCode(err, tt.wantCode) {
					t.Errorf("Load() error = %v, want code %s", err, tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("Load() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoader_MasksSignedLocation(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := NewLoader(time.Second).Load(context.Background(), srv.URL+"/gold.json?token=s3cret")
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("Load() error = %v, want *AppError", err)
	}
	if strings.Contains(appErr.Error(), "s3cret") || strings.Contains(appErr.Details["location"], "s3cret") {
		t.Errorf("credential leaked in error: %v %v", appErr, appErr.Details)
	}
}

func TestLoader_MasksLocationOnTransportError(t *testing.T) {
	_, err := NewLoader(time.Second).Load(context.Background(), "http://127.0.0.1:1/gold.json?token=s3cret")
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("Load() error = %v, want *AppError", err)
	}
	if appErr.Code != apperrors.CodeUnavailable {
		t.Errorf("code = %s, want %s", appErr.Code, apperrors.CodeUnavailable)
	}
	if strings.Contains(appErr.Error(), "s3cret") || strings.Contains(appErr.Details["location"], "s3cret") {
		t.Errorf("credential leaked in error: %v %v", appErr, appErr.Details)
	}
}

func TestIsURL(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"http://example.com/a.json", true},
		{"https://example.com/a.json", true},
		{"./crs_arena_eval.json", false},
		{"ftp://example.com/a.json", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := IsURL(tt.in); got != tt.want {
				t.Errorf("IsURL(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLoadReference(t *testing.T) {
	goldPath := writeFile(t, "gold.json", goldDoc)
	baselinePath := writeFile(t, "baselines.json", baselineDoc)
	l := NewLoader(time.Second)
	log := logger.Discard()

	t.Run("gold and baselines", func(t *testing.T) {
		ref, err := LoadReference(context.Background(), l, goldPath, baselinePath, log)
		if err != nil {
			t.Fatalf("LoadReference() error = %v", err)
		}
		if ref.Gold.Turns.Len() != 1 || ref.Gold.Dialogues.Len() != 1 {
			t.Errorf("gold turns/dialogues = %d/%d, want 1/1", ref.Gold.Turns.Len(), ref.Gold.Dialogues.Len())
		}
		if names := ref.Baselines.Names("redial"); len(names) != 1 {
			t.Errorf("baseline names = %v", names)
		}
		if ref.Digest == "" {
			t.Error("digest is empty")
		}
	})

	t.Run("missing baselines are tolerated", func(t *testing.T) {
		ref, err := LoadReference(context.Background(), l, goldPath, filepath.Join(t.TempDir(), "none.json"), log)
		if err != nil {
			t.Fatalf("LoadReference() error = %v", err)
		}
		if len(ref.Baselines.Names("redial")) != 0 {
			t.Error("expected no baselines")
		}
	})

	t.Run("missing gold fails", func(t *testing.T) {
		_, err := LoadReference(context.Background(), l, filepath.Join(t.TempDir(), "none.json"), "", log)
		if !apperrors.IsNotFound(err) {
			t.Errorf("LoadReference() error = %v, want NOT_FOUND", err)
		}
	})

	t.Run("gold failure does not warn about baselines", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		}))
		defer srv.Close()

		var buf bytes.Buffer
		captured := logger.NewWithWriter("debug", "text", &buf)
		_, err := LoadReference(context.Background(), l, filepath.Join(t.TempDir(), "none.json"), srv.URL+"/baselines.json", captured)
		if !apperrors.IsNotFound(err) {
			t.Errorf("LoadReference() error = %v, want NOT_FOUND", err)
		}
		if strings.Contains(buf.String(), "Baselines unavailable") {
			t.Errorf("unexpected baselines warning: %s", buf.String())
		}
	})

	t.Run("malformed gold fails", func(t *testing.T) {
		bad := writeFile(t, "bad.json", `{"conv_id": "x"}`)
		_, err := LoadReference(context.Background(), l, bad, "", log)
		if !apperrors.IsSchemaMismatch(err) {
			t.Errorf("LoadReference() error = %v, want SCHEMA_MISMATCH", err)
		}
	})
}
