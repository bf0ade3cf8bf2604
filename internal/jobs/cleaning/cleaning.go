// Package cleaning is the cleaning-rule plug-in registry: each Rule is
// a small, independently testable struct satisfying the Rule
// interface, and DefaultRegistry wires the built-in set together.
package cleaning

import (
	"context"
	"fmt"
	"sort"
	"sync"

	dataframe "github.com/rocketlaunchr/dataframe-go"
)

// Rule is one pluggable cleaning operation. IsBatchSafe false means the
// rule only produces correct results over the fully combined frame
// (e.g. drop-duplicates needs cross-batch visibility) and must run as
// part of the global cleaning pass, never the per-batch one.
type Rule interface {
	Name() string
	Description() string
	IsBatchSafe() bool
	Apply(ctx context.Context, df *dataframe.DataFrame, params map[string]any) (*dataframe.DataFrame, error)
}

type Registry struct {
	mu    sync.RWMutex
	rules map[string]Rule
}

func NewRegistry() *Registry {
	return &Registry{rules: make(map[string]Rule)}
}

func (r *Registry) Register(rule Rule) error {
	if rule == nil || rule.Name() == "" {
		return fmt.Errorf("cleaning: rule must have a non-empty name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.rules[rule.Name()]; exists {
		return fmt.Errorf("cleaning: rule %q already registered", rule.Name())
	}
	r.rules[rule.Name()] = rule
	return nil
}

func (r *Registry) Get(name string) (Rule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rule, ok := r.rules[name]
	return rule, ok
}

// BatchSafe returns every registered rule with IsBatchSafe() == true,
// in a stable order -- the set BatchCleaningRules is allowed to apply.
func (r *Registry) BatchSafe() []Rule {
	return r.filter(func(rule Rule) bool { return rule.IsBatchSafe() })
}

// GlobalOnly returns every registered rule with IsBatchSafe() == false
// -- the set that must wait for ProcessGlobally's fully combined frame.
func (r *Registry) GlobalOnly() []Rule {
	return r.filter(func(rule Rule) bool { return !rule.IsBatchSafe() })
}

func (r *Registry) filter(pred func(Rule) bool) []Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Rule, 0, len(r.rules))
	for _, rule := range r.rules {
		if pred(rule) {
			out = append(out, rule)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// DefaultRegistry returns a Registry pre-populated with every rule
// defined in this package.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, rule := range []Rule{
		&DropDuplicates{},
		&RemoveEmptyClass{},
		&RemoveTrivialGetSet{},
	} {
		_ = r.Register(rule)
	}
	return r
}
