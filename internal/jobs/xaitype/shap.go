package xaitype

import (
	"context"
	"fmt"
	"math/rand"
)

// FeatureSHAPValue is one feature's SHAP contribution for one instance.
type FeatureSHAPValue struct {
	Feature      string  `json:"feature"`
	Value        float64 `json:"value"`
	FeatureValue float64 `json:"feature_value"`
}

type InstanceSHAPResult struct {
	Identifier
	SHAPValues []FeatureSHAPValue `json:"shap_values"`
	BaseValue  float64            `json:"base_value"`
}

type SHAPResult struct {
	InstanceSHAPValues []InstanceSHAPResult `json:"instance_shap_values"`
}

const shapPermutations = 64

// SHAPStrategy estimates each feature's Shapley value via the textbook
// permutation-sampling estimator (Strumbelj & Kononenko): for random
// feature orderings, start from a background baseline and reveal
// features one at a time, attributing each reveal's change in
// predicted probability to the revealed feature, averaged over many
// permutations. A model-agnostic approximation, with no `shap`
// package wired in to compute it exactly for tree models.
type SHAPStrategy struct{}

func (SHAPStrategy) Name() string { return TypeSHAP }

func (SHAPStrategy) Explain(_ context.Context, model Model, background, X [][]float64, featureNames []string, identifiers []Identifier) (any, error) {
	if len(X) == 0 {
		return nil, fmt.Errorf("SHAPStrategy: input is empty")
	}
	baseline := backgroundBaseline(background, X)
	nFeatures := len(featureNames)
	rng := rand.New(rand.NewSource(42))

	baseValue := positiveProb(model, baseline)

	results := make([]InstanceSHAPResult, 0, len(X))
	for i, row := range X {
		shapVals := shapleyValues(model, baseline, row, nFeatures, shapPermutations, rng)
		values := make([]FeatureSHAPValue, nFeatures)
		for f := 0; f < nFeatures; f++ {
			values[f] = FeatureSHAPValue{Feature: featureNames[f], Value: shapVals[f], FeatureValue: row[f]}
		}
		results = append(results, InstanceSHAPResult{
			Identifier: identifierAt(identifiers, i),
			SHAPValues: values,
			BaseValue:  baseValue,
		})
	}
	return &SHAPResult{InstanceSHAPValues: results}, nil
}

func shapleyValues(model Model, baseline, instance []float64, nFeatures, permutations int, rng *rand.Rand) []float64 {
	shapVals := make([]float64, nFeatures)
	coalition := make([]float64, nFeatures)
	perm := make([]int, nFeatures)
	for f := range perm {
		perm[f] = f
	}
	for p := 0; p < permutations; p++ {
		rng.Shuffle(nFeatures, func(i, j int) { perm[i], perm[j] = perm[j], perm[i] })
		copy(coalition, baseline)
		prev := positiveProb(model, coalition)
		for _, f := range perm {
			coalition[f] = instance[f]
			next := positiveProb(model, coalition)
			shapVals[f] += next - prev
			prev = next
		}
	}
	for f := range shapVals {
		shapVals[f] /= float64(permutations)
	}
	return shapVals
}

func backgroundBaseline(background, fallback [][]float64) []float64 {
	sample := background
	if len(sample) == 0 {
		sample = fallback
	}
	if len(sample) == 0 {
		return nil
	}
	n := len(sample[0])
	baseline := make([]float64, n)
	for _, row := range sample {
		for i := 0; i < n && i < len(row); i++ {
			baseline[i] += row[i]
		}
	}
	for i := range baseline {
		baseline[i] /= float64(len(sample))
	}
	return baseline
}

func positiveProb(model Model, row []float64) float64 {
	probs := model.PredictProba([][]float64{row})
	if len(probs) == 0 || len(probs[0]) == 0 {
		return 0
	}
	if len(probs[0]) > 1 {
		return probs[0][1]
	}
	return probs[0][0]
}

func identifierAt(identifiers []Identifier, i int) Identifier {
	if i < len(identifiers) {
		return identifiers[i]
	}
	return Identifier{}
}
