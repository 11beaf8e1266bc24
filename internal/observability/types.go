package observability

import "time"

// EvaluationLogEntry records the outcome of one evaluation request.
type EvaluationLogEntry struct {
	Timestamp        time.Time `json:"timestamp"`
	ReportID         string    `json:"report_id,omitempty"`
	RunDigest        string    `json:"run_digest"`
	Outcome          string    `json:"outcome"`
	ErrorCode        string    `json:"error_code,omitempty"`
	Dialogues        int       `json:"dialogues"`
	MatchedTurns     int       `json:"matched_turns"`
	MatchedDialogues int       `json:"matched_dialogues"`
	LatencyMs        int64     `json:"latency_ms"`
}
