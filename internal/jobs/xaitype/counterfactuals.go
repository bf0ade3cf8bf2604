package xaitype

import (
	"context"
	"math"
	"math/rand"
)

// CounterfactualExample mirrors CounterfactualExample.
type CounterfactualExample struct {
	Features           map[string]float64 `json:"features"`
	OutcomeProbability float64             `json:"outcome_probability"`
}

// InstanceCounterfactualResult mirrors InstanceCounterfactualResult.
type InstanceCounterfactualResult struct {
	Identifier
	Counterfactuals []CounterfactualExample `json:"counterfactuals"`
}

// CounterfactualResult mirrors CounterfactualResultData.
type CounterfactualResult struct {
	InstanceCounterfactuals []InstanceCounterfactualResult `json:"instance_counterfactuals"`
}

const (
	cfPerInstance   = 3
	cfDesiredClass  = 0
	cfMaxIterations = 2000
)

// CounterfactualsStrategy implements a random-search counterfactual
// method directly, since no `dice_ml`-equivalent package is wired in:
// for every instance the model predicts as the undesired class (1,
// "defect-prone"), repeatedly perturb a random subset of features,
// each uniformly within its observed [min, max] range (from the background sample, falling
// back to the inference batch) until the prediction flips to class 0,
// keeping up to cfPerInstance distinct examples.
type CounterfactualsStrategy struct{}

func (CounterfactualsStrategy) Name() string { return TypeCounterfactuals }

func (CounterfactualsStrategy) Explain(_ context.Context, model Model, background, X [][]float64, featureNames []string, identifiers []Identifier) (any, error) {
	if len(X) == 0 {
		return &CounterfactualResult{}, nil
	}
	ranges := backgroundRanges(background, X, len(featureNames))
	rng := rand.New(rand.NewSource(42))
	preds := model.Predict(X)

	results := make([]InstanceCounterfactualResult, 0, len(X))
	for i, row := range X {
		if preds[i] != 1 {
			continue
		}
		examples := searchCounterfactuals(model, row, ranges, rng)
		if len(examples) == 0 {
			continue
		}
		cfExamples := make([]CounterfactualExample, 0, len(examples))
		for _, ex := range examples {
			featMap := make(map[string]float64, len(featureNames))
			for f, name := range featureNames {
				featMap[name] = ex.features[f]
			}
			cfExamples = append(cfExamples, CounterfactualExample{Features: featMap, OutcomeProbability: ex.prob})
		}
		results = append(results, InstanceCounterfactualResult{Identifier: identifierAt(identifiers, i), Counterfactuals: cfExamples})
	}
	return &CounterfactualResult{InstanceCounterfactuals: results}, nil
}

type featureRange struct{ min, max float64 }

func backgroundRanges(background, fallback [][]float64, nFeatures int) []featureRange {
	sample := background
	if len(sample) == 0 {
		sample = fallback
	}
	ranges := make([]featureRange, nFeatures)
	for f := range ranges {
		ranges[f] = featureRange{min: math.Inf(1), max: math.Inf(-1)}
	}
	for _, row := range sample {
		for f := 0; f < nFeatures && f < len(row); f++ {
			if row[f] < ranges[f].min {
				ranges[f].min = row[f]
			}
			if row[f] > ranges[f].max {
				ranges[f].max = row[f]
			}
		}
	}
	for f := range ranges {
		if ranges[f].min > ranges[f].max {
			ranges[f] = featureRange{min: 0, max: 1}
		}
	}
	return ranges
}

type cfCandidate struct {
	features []float64
	prob     float64
}

func searchCounterfactuals(model Model, instance []float64, ranges []featureRange, rng *rand.Rand) []cfCandidate {
	d := len(instance)
	var found []cfCandidate
	for iter := 0; iter < cfMaxIterations && len(found) < cfPerInstance; iter++ {
		candidate := append([]float64{}, instance...)
		numPerturb := 1 + rng.Intn(d)
		perturbIdx := rng.Perm(d)[:numPerturb]
		for _, f := range perturbIdx {
			r := ranges[f]
			candidate[f] = r.min + rng.Float64()*(r.max-r.min)
		}
		pred := model.Predict([][]float64{candidate})[0]
		if pred != cfDesiredClass {
			continue
		}
		probs := model.PredictProba([][]float64{candidate})
		prob := 0.0
		if len(probs) > 0 && len(probs[0]) > cfDesiredClass {
			prob = probs[0][cfDesiredClass]
		}
		if isDuplicateCandidate(found, candidate) {
			continue
		}
		found = append(found, cfCandidate{features: candidate, prob: prob})
	}
	return found
}

func isDuplicateCandidate(found []cfCandidate, candidate []float64) bool {
	for _, f := range found {
		same := true
		for i := range candidate {
			if f.features[i] != candidate[i] {
				same = false
				break
			}
		}
		if same {
			return true
		}
	}
	return false
}

