package server

import (
	"net/http"
	"runtime"

	"github.com/crsarena/arena-eval/internal/evaluation"
)

// HealthResponse is returned by GET /healthz.
type HealthResponse struct {
	Status          string `json:"status"`
	GoldDialogues   int    `json:"gold_dialogues"`
	GoldTurns       int    `json:"gold_turns"`
	ReferenceDigest string `json:"reference_digest"`
}

// VersionResponse is returned by GET /v1/version.
type VersionResponse struct {
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	ref := s.evaluator.Reference()
	evaluation.WriteJSON(w, http.StatusOK, HealthResponse{
		Status:          "ok",
		GoldDialogues:   ref.Gold.Dialogues.Len(),
		GoldTurns:       ref.Gold.Turns.Len(),
		ReferenceDigest: ref.Digest,
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	evaluation.WriteJSON(w, http.StatusOK, VersionResponse{
		Version:   s.cfg.Version,
		GoVersion: runtime.Version(),
	})
}
