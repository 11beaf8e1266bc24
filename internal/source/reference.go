package source

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/crsarena/arena-eval/internal/evaluation"
	"github.com/crsarena/arena-eval/internal/pkg/logger"
	"github.com/crsarena/arena-eval/internal/pkg/security"
)

// LoadReference loads the gold annotations and the optional baselines
// document concurrently and builds the evaluation reference. A baselines
// document that cannot be loaded is logged and replaced by an empty one.
func LoadReference(ctx context.Context, l *Loader, goldLoc, baselineLoc string, log *logger.Logger) (*evaluation.Reference, error) {
	var goldData, baselineData []byte

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		data, err := l.Load(gctx, goldLoc)
		if err != nil {
			return err
		}
		goldData = data
		return nil
	})
	if baselineLoc != "" {
		g.Go(func() error {
			data, err := l.Load(gctx, baselineLoc)
			if err != nil {
				if gctx.Err() != nil {
					return nil
				}
				log.Warn("Baselines unavailable, comparisons disabled", "location", security.MaskLocation(baselineLoc), "error", err)
				return nil
			}
			baselineData = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ref, err := evaluation.NewReference(goldData, baselineData)
	if err != nil {
		return nil, err
	}

	log.Info("Reference loaded",
		"gold", security.MaskLocation(goldLoc),
		"baselines", security.MaskLocation(baselineLoc),
		"dialogues", ref.Gold.Dialogues.Len(),
		"turns", ref.Gold.Turns.Len(),
		"digest", ref.Digest,
	)
	return ref, nil
}
