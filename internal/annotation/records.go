package annotation

import (
	"bytes"
	"encoding/json"

	apperrors "github.com/crsarena/arena-eval/internal/pkg/errors"
)

// AssistantRole marks assistant-authored turns in gold documents.
const AssistantRole = "ASST"

// Input names used in error messages.
const (
	InputGold = "gold"
	InputRun  = "run"
)

// GoldTurn is one turn of an annotated dialogue.
type GoldTurn struct {
	Role    string         `json:"role"`
	TurnInd any            `json:"turn_ind"`
	Scores  map[string]any `json:"turn_level_aggregated,omitempty"`
}

// GoldRecord is one annotated dialogue.
type GoldRecord struct {
	ConvID   string         `json:"conv_id"`
	Scores   map[string]any `json:"dial_level_aggregated,omitempty"`
	Dialogue []GoldTurn     `json:"dialogue"`
}

// RunTurn is one predicted turn. TurnInd may be a number or a numeric string.
type RunTurn struct {
	TurnInd any            `json:"turn_ind"`
	Scores  map[string]any `json:"turn_level_pred,omitempty"`
}

// RunRecord is one dialogue of a run document.
type RunRecord struct {
	ConvID string         `json:"conv_id"`
	Turns  []RunTurn      `json:"turns"`
	Scores map[string]any `json:"dial_level_pred,omitempty"`
}

// DecodeGold decodes a gold document.
func DecodeGold(data []byte) ([]GoldRecord, error) {
	var records []GoldRecord
	if err := decodeList(InputGold, data, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// DecodeRun decodes a run document.
func DecodeRun(data []byte) ([]RunRecord, error) {
	var records []RunRecord
	if err := decodeList(InputRun, data, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func decodeList(input string, data []byte, v any) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return apperrors.SchemaMismatchError(input, "document is empty", nil)
	}
	if trimmed[0] != '[' {
		return apperrors.SchemaMismatchError(input, "expected a list of dialogue records", nil)
	}
	if err := json.Unmarshal(trimmed, v); err != nil {
		return apperrors.SchemaMismatchError(input, "expected a list of dialogue records", err)
	}
	return nil
}
