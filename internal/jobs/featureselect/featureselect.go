// Package featureselect is the feature-selection-algorithm plug-in
// registry -- the algorithm-side twin of internal/jobs/cleaning's rule
// registry and internal/jobs/modeltype's model-type registry. All
// three are independent, self-contained registries. featureselect and
// modeltype each declare a ParamDef param schema per plug-in; cleaning
// rules declare no param schema.
package featureselect

import (
	"context"
	"fmt"
	"sync"

	dataframe "github.com/rocketlaunchr/dataframe-go"
)

// ParamDef mirrors a hyper-parameter schema contract: {name, type,
// default?, range?, options?, required}.
type ParamDef struct {
	Name        string
	Type        string // "integer", "float", "string", "boolean", "text_choice", "enum"
	Description string
	Default     any
	Options     []any
	Range       *ParamRange
	Required    bool
}

type ParamRange struct {
	Min  *float64
	Max  *float64
	Step *float64
	Log  bool
}

// Algorithm is one pluggable feature-selection strategy.
type Algorithm interface {
	Name() string
	DisplayName() string
	Description() string
	Params() []ParamDef
	SelectFeatures(ctx context.Context, df *dataframe.DataFrame, featureCols []string, targetCol string, params map[string]any) ([]string, error)
}

type Registry struct {
	mu   sync.RWMutex
	algs map[string]Algorithm
}

func NewRegistry() *Registry {
	return &Registry{algs: make(map[string]Algorithm)}
}

func (r *Registry) Register(alg Algorithm) error {
	if alg == nil || alg.Name() == "" {
		return fmt.Errorf("featureselect: algorithm must have a non-empty name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.algs[alg.Name()]; exists {
		return fmt.Errorf("featureselect: algorithm %q already registered", alg.Name())
	}
	r.algs[alg.Name()] = alg
	return nil
}

func (r *Registry) Get(name string) (Algorithm, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	alg, ok := r.algs[name]
	return alg, ok
}

func (r *Registry) All() []Algorithm {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Algorithm, 0, len(r.algs))
	for _, alg := range r.algs {
		out = append(out, alg)
	}
	return out
}

// DefaultRegistry returns a Registry pre-populated with every
// algorithm defined in this package.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, alg := range []Algorithm{
		&CBFS{},
		&MRMR{},
		&ModelBased{},
	} {
		_ = r.Register(alg)
	}
	return r
}
