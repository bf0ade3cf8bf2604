package steps

import (
	"context"

	dataframe "github.com/rocketlaunchr/dataframe-go"

	"github.com/ckguru/orchestrator/internal/jobs/cleaning"
	"github.com/ckguru/orchestrator/internal/jobs/engine"
	"github.com/ckguru/orchestrator/internal/jobs/featureselect"
)

// CombineBatches concatenates the per-batch frames StreamAndProcessBatches
// left in pc.Scratch["batches"] into a single pc.Frame.
type CombineBatches struct{}

func (CombineBatches) Name() string { return "CombineBatches" }

func (CombineBatches) Run(_ context.Context, pc *engine.Context, _ engine.Deps) error {
	raw, _ := pc.Scratch["batches"].([]*dataframe.DataFrame)
	if len(raw) == 0 {
		pc.AddWarning("CombineBatches: no processed batches to combine")
		pc.Sentinel = true
		return nil
	}

	names := raw[0].Names()
	rows := make([]map[string]interface{}, 0)
	for _, df := range raw {
		n := df.NRows()
		for i := 0; i < n; i++ {
			rows = append(rows, rowAt(df, df.Names(), i))
		}
	}
	pc.Frame = framesFromRows(names, rows)
	delete(pc.Scratch, "batches")
	return nil
}

// ProcessGloballyStrategy is the fixed three-step sequence
// CombineBatches -> GlobalCleaningRules -> FeatureSelection, which
// early-breaks as soon as the combined frame becomes empty -- modeled
// by the shared Sentinel flag rather than a bespoke early-exit check,
// since that is exactly what Sentinel is for.
func ProcessGloballyStrategy(registry *cleaning.Registry, algorithms *featureselect.Registry) engine.Strategy {
	return engine.Strategy{
		&CombineBatches{},
		&GlobalCleaningRules{Registry: registry},
		&FeatureSelection{Registry: algorithms},
	}
}
