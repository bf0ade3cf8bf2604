// Package xaitype is the XAI explanation-strategy plug-in family. No
// Go equivalent of SHAP, LIME, or DiCE-style counterfactuals is wired
// in, so each Strategy below is a hand-rolled
// reimplementation of the same underlying technique rather than a
// library wrapper.
package xaitype

import "context"

// Identifier carries the row-aligned identifying info threaded
// alongside every XAI result (a row's `file`/`class_name`).
type Identifier struct {
	File      string
	ClassName string
}

// Strategy is one pluggable explanation method. Background may be nil;
// strategies that need it (SHAP, LIME) fall back to sampling from X
// exactly as the originals do when background_data is missing.
type Strategy interface {
	Name() string
	Explain(ctx context.Context, model Model, background, X [][]float64, featureNames []string, identifiers []Identifier) (any, error)
}

// Model is the subset of modeltype.Model a Strategy needs; declared
// locally so this package doesn't import modeltype's Fit-time types.
type Model interface {
	Predict(X [][]float64) []int
	PredictProba(X [][]float64) [][]float64
	FeatureImportances() []float64
}

type Registry struct {
	strategies map[string]Strategy
}

func NewRegistry() *Registry { return &Registry{strategies: make(map[string]Strategy)} }

func (r *Registry) Register(s Strategy) { r.strategies[s.Name()] = s }

func (r *Registry) Get(name string) (Strategy, bool) {
	s, ok := r.strategies[name]
	return s, ok
}

func (r *Registry) All() []Strategy {
	out := make([]Strategy, 0, len(r.strategies))
	for _, s := range r.strategies {
		out = append(out, s)
	}
	return out
}

// XAI type name constants, matching the Job.XAIType values spec 4.3's
// Explanation Orchestration Handler dispatches.
const (
	TypeSHAP              = "shap"
	TypeLIME              = "lime"
	TypeFeatureImportance = "feature_importance"
	TypeCounterfactuals   = "counterfactuals"
	TypeDecisionPath      = "decision_path"
)

// DefaultRegistry registers every strategy in this package.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&FeatureImportanceStrategy{})
	r.Register(&SHAPStrategy{})
	r.Register(&LIMEStrategy{})
	r.Register(&CounterfactualsStrategy{})
	r.Register(&DecisionPathStrategy{})
	return r
}

// AlwaysApplicable are the XAI types the Explanation Orchestration
// Handler dispatches for every model (spec 4.3); DecisionPath is
// additionally gated on modeltype.ModelType.IsTreeBased().
var AlwaysApplicable = []string{TypeSHAP, TypeLIME, TypeFeatureImportance, TypeCounterfactuals}
