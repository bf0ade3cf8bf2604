// Package modeltype is the ML-model-type plug-in registry, one of the
// three compiled-in capability registries alongside cleaning and
// featureselect.
//
// No Go ML/stats library is wired in anywhere in this module (no
// gonum, golearn, or similar dependency), so every Model here is
// trained by a hand-rolled implementation of its algorithm rather than
// a wrapped third-party fit/predict call.
package modeltype

import (
	"context"
	"fmt"
	"sync"
)

// ParamDef describes one hyperparameter -- kept as an independent type
// from featureselect.ParamDef rather than a shared generic, since the
// registries evolve independently.
type ParamDef struct {
	Name        string
	Type        string // "integer", "float", "text_choice", "boolean", "string"
	Description string
	Default     any
	Options     []ParamOption
	Range       *ParamRange
	Log         bool
	Required    bool
}

type ParamOption struct {
	Value string
	Label string
}

type ParamRange struct {
	Min  *float64
	Max  *float64
	Step *float64
}

// TrainResult mirrors BaseModelStrategy.TrainResult: the fitted Model
// plus the evaluation metrics computed against the held-out split.
type TrainResult struct {
	Model   Model
	Metrics map[string]float64
}

// Model is a fitted estimator, returned by ModelType.Fit and consumed
// by Predict/PredictProba/Evaluate.
type Model interface {
	Predict(X [][]float64) []int
	// PredictProba returns per-class probabilities, mirroring
	// predict_proba; a model with no natural probabilistic output
	// still returns a one-hot-ish distribution so downstream XAI code
	// (which expects probabilities) always has something to read.
	PredictProba(X [][]float64) [][]float64
	// FeatureImportances returns a per-feature importance score,
	// consumed by FeatureImportance and DecisionPath XAI strategies.
	// Returns nil when the algorithm has no natural notion of
	// per-feature importance.
	FeatureImportances() []float64
}

// ModelType is one pluggable model family.
type ModelType interface {
	Name() string
	DisplayName() string
	Description() string
	Params() []ParamDef
	// IsTreeBased gates DecisionPath XAI eligibility, since that
	// strategy only makes sense for tree-structured models.
	IsTreeBased() bool
	Fit(ctx context.Context, X [][]float64, y []int, params map[string]any) (Model, error)
}

type Registry struct {
	mu     sync.RWMutex
	models map[string]ModelType
}

func NewRegistry() *Registry {
	return &Registry{models: make(map[string]ModelType)}
}

func (r *Registry) Register(mt ModelType) error {
	if mt == nil || mt.Name() == "" {
		return fmt.Errorf("modeltype: model type must have a non-empty name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.models[mt.Name()]; exists {
		return fmt.Errorf("modeltype: model type %q already registered", mt.Name())
	}
	r.models[mt.Name()] = mt
	return nil
}

func (r *Registry) Get(name string) (ModelType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	mt, ok := r.models[name]
	return mt, ok
}

func (r *Registry) All() []ModelType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ModelType, 0, len(r.models))
	for _, mt := range r.models {
		out = append(out, mt)
	}
	return out
}

// DefaultRegistry returns a Registry pre-populated with every model
// type defined in this package.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, mt := range []ModelType{
		&LogisticRegression{},
		&DecisionTree{},
		&RandomForest{},
		&KNN{},
	} {
		_ = r.Register(mt)
	}
	return r
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

func stringParam(params map[string]any, name string, def string) string {
	if v, ok := params[name].(string); ok && v != "" {
		return v
	}
	return def
}
