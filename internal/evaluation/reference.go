package evaluation

import (
	"github.com/crsarena/arena-eval/internal/annotation"
	"github.com/crsarena/arena-eval/internal/baseline"
	"github.com/crsarena/arena-eval/internal/pkg/hash"
)

// Reference is the immutable evaluation context: gold annotations plus the
// optional baselines document. It is built once and shared by every
// evaluation; nothing mutates it after NewReference returns.
type Reference struct {
	Gold      *annotation.GoldSet
	Baselines baseline.Document
	// Digest identifies the gold and baselines content.
	Digest string
}

// NewReference decodes and indexes the gold document and decodes the
// baselines document. Empty baselines data yields an empty document.
func NewReference(goldData, baselineData []byte) (*Reference, error) {
	records, err := annotation.DecodeGold(goldData)
	if err != nil {
		return nil, err
	}
	gold, err := annotation.ParseGold(records)
	if err != nil {
		return nil, err
	}
	baselines, err := baseline.Decode(baselineData)
	if err != nil {
		return nil, err
	}

	return &Reference{
		Gold:      gold,
		Baselines: baselines,
		Digest:    hash.SHA256String(hash.SHA256(goldData) + ":" + hash.SHA256(baselineData)),
	}, nil
}
