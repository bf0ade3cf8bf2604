package xaitype

import (
	"context"
	"fmt"
	"sort"
)

// FeatureImportanceValue is one feature's importance score.
type FeatureImportanceValue struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

type FeatureImportanceResult struct {
	FeatureImportances []FeatureImportanceValue `json:"feature_importances"`
}

// FeatureImportanceStrategy reports the fitted Model's own
// FeatureImportances(): every modeltype.Model already exposes one
// (Gini-based for trees/forests, mean |weight| for logistic
// regression, nil for KNN, which has no native notion of importance).
type FeatureImportanceStrategy struct{}

func (FeatureImportanceStrategy) Name() string { return TypeFeatureImportance }

func (FeatureImportanceStrategy) Explain(_ context.Context, model Model, _, X [][]float64, featureNames []string, _ []Identifier) (any, error) {
	if len(X) == 0 {
		return nil, fmt.Errorf("FeatureImportanceStrategy: input is empty")
	}
	importances := model.FeatureImportances()
	if importances == nil {
		return nil, fmt.Errorf("FeatureImportanceStrategy: model does not support feature importances")
	}
	n := len(featureNames)
	if len(importances) < n {
		n = len(importances)
	}
	values := make([]FeatureImportanceValue, 0, n)
	for i := 0; i < n; i++ {
		values = append(values, FeatureImportanceValue{Feature: featureNames[i], Importance: importances[i]})
	}
	sort.Slice(values, func(i, j int) bool { return values[i].Importance > values[j].Importance })
	return &FeatureImportanceResult{FeatureImportances: values}, nil
}
