package xaitype

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// FeatureWeight is one (feature, weight) pair from a LIME surrogate
// model.
type FeatureWeight struct {
	Feature string  `json:"feature"`
	Weight  float64 `json:"weight"`
}

type InstanceLIMEResult struct {
	Identifier
	Explanation []FeatureWeight `json:"explanation"`
}

// LIMEResult mirrors LIMEResultData.
type LIMEResult struct {
	InstanceLIMEValues []InstanceLIMEResult `json:"instance_lime_values"`
}

const (
	limeSamples     = 500
	limeTopFeatures = 10
	limeRidgeLambda = 1e-3
)

// LIMEStrategy implements LIME's local-surrogate-model algorithm
// directly rather than wrapping a library, since no `lime` package is
// wired in: perturb the instance by adding Normal(0, std) noise to
// each feature, std fit on the background data, weight each perturbed
// sample by an RBF kernel on its distance from the original instance,
// and fit a weighted ridge regression of the model's predicted
// positive-class probability against the perturbed features --
// without a discretization/one-hot step for categoricals.
type LIMEStrategy struct{}

func (LIMEStrategy) Name() string { return TypeLIME }

func (LIMEStrategy) Explain(_ context.Context, model Model, background, X [][]float64, featureNames []string, identifiers []Identifier) (any, error) {
	if len(X) == 0 {
		return nil, fmt.Errorf("LIMEStrategy: input is empty")
	}
	sample := background
	if len(sample) == 0 {
		sample = X
	}
	means, stds := columnStats(sample, len(featureNames))
	rng := rand.New(rand.NewSource(42))

	results := make([]InstanceLIMEResult, 0, len(X))
	for i, row := range X {
		weights := fitLocalSurrogate(model, row, means, stds, rng)
		explanation := make([]FeatureWeight, len(featureNames))
		for f, name := range featureNames {
			explanation[f] = FeatureWeight{Feature: name, Weight: weights[f+1]}
		}
		sort.Slice(explanation, func(a, b int) bool {
			return math.Abs(explanation[a].Weight) > math.Abs(explanation[b].Weight)
		})
		if len(explanation) > limeTopFeatures {
			explanation = explanation[:limeTopFeatures]
		}
		results = append(results, InstanceLIMEResult{Identifier: identifierAt(identifiers, i), Explanation: explanation})
	}
	return &LIMEResult{InstanceLIMEValues: results}, nil
}

func columnStats(rows [][]float64, nFeatures int) (means, stds []float64) {
	means = make([]float64, nFeatures)
	stds = make([]float64, nFeatures)
	if len(rows) == 0 {
		for f := range stds {
			stds[f] = 1
		}
		return
	}
	for _, row := range rows {
		for f := 0; f < nFeatures && f < len(row); f++ {
			means[f] += row[f]
		}
	}
	for f := range means {
		means[f] /= float64(len(rows))
	}
	for _, row := range rows {
		for f := 0; f < nFeatures && f < len(row); f++ {
			d := row[f] - means[f]
			stds[f] += d * d
		}
	}
	for f := range stds {
		stds[f] = math.Sqrt(stds[f] / float64(len(rows)))
		if stds[f] < 1e-6 {
			stds[f] = 1
		}
	}
	return
}

// fitLocalSurrogate returns coefficients [intercept, w_1..w_d].
func fitLocalSurrogate(model Model, instance, means, stds []float64, rng *rand.Rand) []float64 {
	d := len(instance)
	kernelWidth := 0.75 * math.Sqrt(float64(d))

	designRows := make([][]float64, 0, limeSamples)
	weights := make([]float64, 0, limeSamples)
	targets := make([]float64, 0, limeSamples)

	for s := 0; s < limeSamples; s++ {
		perturbed := make([]float64, d)
		var sqDist float64
		for f := 0; f < d; f++ {
			noise := rng.NormFloat64() * stds[f]
			perturbed[f] = instance[f] + noise
			normalized := noise / stds[f]
			sqDist += normalized * normalized
		}
		dist := math.Sqrt(sqDist)
		weight := math.Exp(-(dist * dist) / (kernelWidth * kernelWidth))

		row := make([]float64, d+1)
		row[0] = 1
		copy(row[1:], perturbed)
		designRows = append(designRows, row)
		weights = append(weights, weight)
		targets = append(targets, positiveProb(model, perturbed))
	}

	n := d + 1
	ata := make([][]float64, n)
	for i := range ata {
		ata[i] = make([]float64, n)
	}
	atb := make([]float64, n)
	for s, row := range designRows {
		w := weights[s]
		y := targets[s]
		for i := 0; i < n; i++ {
			atb[i] += w * row[i] * y
			for j := 0; j < n; j++ {
				ata[i][j] += w * row[i] * row[j]
			}
		}
	}
	for i := 0; i < n; i++ {
		ata[i][i] += limeRidgeLambda
	}

	beta := solveLinearSystem(ata, atb)
	if beta == nil {
		return make([]float64, n)
	}
	return beta
}
