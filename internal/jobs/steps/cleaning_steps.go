package steps

import (
	"context"
	"fmt"

	"github.com/ckguru/orchestrator/internal/jobs/cleaning"
	"github.com/ckguru/orchestrator/internal/jobs/engine"
)

// BatchCleaningRules applies every batch-safe registered rule to the
// current frame in sequence. pc.Config["cleaning_rules"] mirrors
// domainml.DatasetConfig's CleaningRules map (rule name -> params); a
// rule absent from the map still runs with no params -- "enabled":
// false in a rule's params is the one way to opt a rule out.
type BatchCleaningRules struct {
	Registry *cleaning.Registry
}

func (s *BatchCleaningRules) Name() string { return "BatchCleaningRules" }

func (s *BatchCleaningRules) Run(ctx context.Context, pc *engine.Context, _ engine.Deps) error {
	if pc.Frame == nil || pc.Frame.NRows() == 0 {
		return nil
	}
	for _, rule := range s.Registry.BatchSafe() {
		if !ruleEnabled(pc.Config, rule.Name()) {
			continue
		}
		df, err := rule.Apply(ctx, pc.Frame, ruleParams(pc.Config, rule.Name()))
		if err != nil {
			return fmt.Errorf("rule %s: %w", rule.Name(), err)
		}
		pc.Frame = df
		if pc.Frame == nil || pc.Frame.NRows() == 0 {
			pc.AddWarning(fmt.Sprintf("frame became empty after rule %s", rule.Name()))
			pc.Sentinel = true
			return nil
		}
	}
	return nil
}

// GlobalCleaningRules is the mirror of BatchCleaningRules for rules
// marked IsBatchSafe()==false (e.g. DropDuplicates): it only ever runs
// once, inside ProcessGlobally, over the fully combined frame.
type GlobalCleaningRules struct {
	Registry *cleaning.Registry
}

func (s *GlobalCleaningRules) Name() string { return "GlobalCleaningRules" }

func (s *GlobalCleaningRules) Run(ctx context.Context, pc *engine.Context, _ engine.Deps) error {
	if pc.Frame == nil || pc.Frame.NRows() == 0 {
		return nil
	}
	for _, rule := range s.Registry.GlobalOnly() {
		if !ruleEnabled(pc.Config, rule.Name()) {
			continue
		}
		df, err := rule.Apply(ctx, pc.Frame, ruleParams(pc.Config, rule.Name()))
		if err != nil {
			return fmt.Errorf("rule %s: %w", rule.Name(), err)
		}
		pc.Frame = df
		if pc.Frame == nil || pc.Frame.NRows() == 0 {
			pc.AddWarning(fmt.Sprintf("frame became empty after rule %s", rule.Name()))
			pc.Sentinel = true
			return nil
		}
	}
	return nil
}

func cleaningRules(config map[string]any) map[string]any {
	rules, _ := config["cleaning_rules"].(map[string]any)
	if rules == nil {
		return map[string]any{}
	}
	return rules
}

func ruleEnabled(config map[string]any, name string) bool {
	entry, ok := cleaningRules(config)[name].(map[string]any)
	if !ok {
		return true
	}
	if v, ok := entry["enabled"].(bool); ok {
		return v
	}
	return true
}

func ruleParams(config map[string]any, name string) map[string]any {
	entry, ok := cleaningRules(config)[name].(map[string]any)
	if !ok {
		return map[string]any{}
	}
	return entry
}
