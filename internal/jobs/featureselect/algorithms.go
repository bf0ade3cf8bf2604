package featureselect

import (
	"context"
	"math"
	"sort"

	dataframe "github.com/rocketlaunchr/dataframe-go"
)

func floatParam(params map[string]any, name string, def float64) float64 {
	switch v := params[name].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return def
}

func intParam(params map[string]any, name string, def int) int {
	switch v := params[name].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

// CBFS is the correlation-based feature-selection strategy: keep
// features whose absolute correlation with the target exceeds
// threshold, then greedily drop whichever of two mutually-redundant
// survivors (|corr| > threshold between them) has the weaker target
// correlation.
type CBFS struct{}

func (CBFS) Name() string        { return "cbfs" }
func (CBFS) DisplayName() string { return "Correlation-Based Feature Selection" }
func (CBFS) Description() string {
	return "Selects features correlated with the target above a threshold, then prunes mutually redundant survivors."
}

func (CBFS) Params() []ParamDef {
	min, max := 0.0, 1.0
	return []ParamDef{
		{Name: "threshold", Type: "float", Description: "Minimum absolute correlation with the target to keep a feature", Default: 0.7, Range: &ParamRange{Min: &min, Max: &max}},
	}
}

func (CBFS) SelectFeatures(_ context.Context, df *dataframe.DataFrame, featureCols []string, targetCol string, params map[string]any) ([]string, error) {
	threshold := floatParam(params, "threshold", 0.7)
	target := numericColumn(df, targetCol)

	type scored struct {
		col  string
		vals []float64
		corr float64
	}
	candidates := make([]scored, 0, len(featureCols))
	for _, col := range featureCols {
		vals := numericColumn(df, col)
		candidates = append(candidates, scored{col: col, vals: vals, corr: math.Abs(pearson(vals, target))})
	}

	kept := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		if c.corr > threshold {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		// Fall back to every feature when nothing clears the bar,
		// rather than shipping an empty dataset.
		return append([]string{}, featureCols...), nil
	}

	sort.Slice(kept, func(i, j int) bool { return kept[i].corr > kept[j].corr })

	dropped := make(map[string]bool, len(kept))
	for i := 0; i < len(kept); i++ {
		if dropped[kept[i].col] {
			continue
		}
		for j := i + 1; j < len(kept); j++ {
			if dropped[kept[j].col] {
				continue
			}
			if math.Abs(pearson(kept[i].vals, kept[j].vals)) > threshold {
				dropped[kept[j].col] = true
			}
		}
	}

	out := make([]string, 0, len(kept))
	for _, c := range kept {
		if !dropped[c.col] {
			out = append(out, c.col)
		}
	}
	return out, nil
}

// MRMR ranks features by absolute correlation with the target and
// keeps the top K -- a relevance-only stand-in for true
// minimum-redundancy-maximum-relevance scoring.
type MRMR struct{}

func (MRMR) Name() string        { return "mrmr" }
func (MRMR) DisplayName() string { return "Minimum Redundancy Maximum Relevance" }
func (MRMR) Description() string {
	return "Ranks features by correlation with the target and keeps the top K (simplified relevance-only ranking)."
}

func (MRMR) Params() []ParamDef {
	min := 1.0
	return []ParamDef{
		{Name: "k", Type: "integer", Description: "Number of top-ranked features to keep", Default: 20, Range: &ParamRange{Min: &min}},
	}
}

func (MRMR) SelectFeatures(_ context.Context, df *dataframe.DataFrame, featureCols []string, targetCol string, params map[string]any) ([]string, error) {
	k := intParam(params, "k", 20)
	target := numericColumn(df, targetCol)

	type scored struct {
		col  string
		corr float64
	}
	ranked := make([]scored, 0, len(featureCols))
	for _, col := range featureCols {
		if col == targetCol {
			continue
		}
		ranked = append(ranked, scored{col: col, corr: math.Abs(pearson(numericColumn(df, col), target))})
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].corr > ranked[j].corr })

	if k > len(ranked) {
		k = len(ranked)
	}
	out := make([]string, k)
	for i := 0; i < k; i++ {
		out[i] = ranked[i].col
	}
	return out, nil
}

// ModelBased stands in for a random-forest importance selector without
// a random-forest fit behind it: no Go ML/stats library is wired in,
// so this ranks features by how much their variance (scaled by target
// correlation strength) could plausibly drive a tree split --
// var(feature)*|corr(feature,target)| as a cheap proxy for "this
// feature both varies and moves with the target", which a forest's
// impurity-reduction score would also reward -- and keeps the top K.
type ModelBased struct{}

func (ModelBased) Name() string        { return "model_based" }
func (ModelBased) DisplayName() string { return "Model-Based Feature Importance" }
func (ModelBased) Description() string {
	return "Ranks features by a variance/correlation importance proxy and keeps the top K."
}

func (ModelBased) Params() []ParamDef {
	min := 1.0
	return []ParamDef{
		{Name: "k", Type: "integer", Description: "Number of top-ranked features to keep", Default: 20, Range: &ParamRange{Min: &min}},
	}
}

func (ModelBased) SelectFeatures(_ context.Context, df *dataframe.DataFrame, featureCols []string, targetCol string, params map[string]any) ([]string, error) {
	k := intParam(params, "k", 20)
	target := numericColumn(df, targetCol)

	type scored struct {
		col   string
		score float64
	}
	ranked := make([]scored, 0, len(featureCols))
	for _, col := range featureCols {
		if col == targetCol {
			continue
		}
		vals := numericColumn(df, col)
		ranked = append(ranked, scored{col: col, score: variance(vals) * math.Abs(pearson(vals, target))})
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	if k > len(ranked) {
		k = len(ranked)
	}
	out := make([]string, k)
	for i := 0; i < k; i++ {
		out[i] = ranked[i].col
	}
	return out, nil
}
