package steps

import (
	"context"
	"fmt"

	"github.com/ckguru/orchestrator/internal/jobs/engine"
	"github.com/ckguru/orchestrator/internal/jobs/featureselect"
)

// FeatureSelection runs the Dataset's configured algorithm (Config's
// "feature_selection" block, mirroring domainml.FeatureSelectionConfig)
// over the cleaned, combined frame, narrowing pc.SelectedColumns to
// whatever the algorithm keeps, right before final column selection. A
// Dataset with no feature_selection block configured skips this Step
// entirely -- feature selection is opt-in, matching
// FeatureSelectionConfig being a pointer (nil-able) field.
type FeatureSelection struct {
	Registry *featureselect.Registry
}

func (s *FeatureSelection) Name() string { return "FeatureSelection" }

func (s *FeatureSelection) Run(ctx context.Context, pc *engine.Context, _ engine.Deps) error {
	if pc.Frame == nil || pc.Frame.NRows() == 0 {
		return nil
	}

	cfg, _ := pc.Config["feature_selection"].(map[string]any)
	if cfg == nil {
		return nil
	}
	algName, _ := cfg["algorithm"].(string)
	if algName == "" {
		return nil
	}
	alg, ok := s.Registry.Get(algName)
	if !ok {
		return fmt.Errorf("FeatureSelection: unknown algorithm %q", algName)
	}
	params, _ := cfg["params"].(map[string]any)
	if params == nil {
		params = map[string]any{}
	}

	featureCols := pc.SelectedColumns
	if len(featureCols) == 0 {
		featureCols = featureColumnsExcluding(pc.Frame, targetColumnOf(pc.Config))
	}
	targetCol := targetColumnOf(pc.Config)

	selected, err := alg.SelectFeatures(ctx, pc.Frame, featureCols, targetCol, params)
	if err != nil {
		return fmt.Errorf("FeatureSelection: algorithm %q failed: %w", algName, err)
	}
	if len(selected) == 0 {
		pc.AddWarning(fmt.Sprintf("FeatureSelection: algorithm %q selected zero features, keeping original set", algName))
		return nil
	}
	pc.SelectedColumns = selected
	return nil
}

func targetColumnOf(config map[string]any) string {
	t, _ := config["target_column"].(string)
	return t
}

func featureColumnsExcluding(df interface{ Names() []string }, targetCol string) []string {
	names := df.Names()
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n != targetCol {
			out = append(out, n)
		}
	}
	return out
}
