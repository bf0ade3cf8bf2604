package modeltype

import (
	"context"
	"math"
	"sort"
)

// KNN stores the training set and classifies by Minkowski-distance
// majority vote among the k nearest neighbors -- a hand-rolled
// stand-in for a library k-NN classifier, since no ML library is wired
// in (see package doc comment). It has no natural feature-importance
// notion.
type KNN struct{}

func (KNN) Name() string        { return "sklearn_knnclassifier" }
func (KNN) DisplayName() string { return "K-Nearest Neighbors" }
func (KNN) Description() string {
	return "Classifies by Minkowski-distance majority vote among the k nearest training neighbors."
}
func (KNN) IsTreeBased() bool { return false }

func (KNN) Params() []ParamDef {
	minK, maxK := 1.0, 50.0
	minP, maxP := 1.0, 5.0
	return []ParamDef{
		{Name: "n_neighbors", Type: "integer", Description: "Number of neighbors to use", Default: 5, Range: &ParamRange{Min: &minK, Max: &maxK}},
		{Name: "p", Type: "integer", Description: "Power parameter for the Minkowski metric", Default: 2, Range: &ParamRange{Min: &minP, Max: &maxP}},
	}
}

func (KNN) Fit(_ context.Context, X [][]float64, y []int, params map[string]any) (Model, error) {
	k := intParam(params, "n_neighbors", 5)
	p := floatParam(params, "p", 2)
	return &knnModel{X: X, y: y, k: k, p: p, classes: distinctClasses(y)}, nil
}

type knnModel struct {
	X       [][]float64
	y       []int
	k       int
	p       float64
	classes []int
}

func minkowski(a, b []float64, p float64) float64 {
	var sum float64
	for i := range a {
		d := math.Abs(a[i] - b[i])
		sum += math.Pow(d, p)
	}
	return math.Pow(sum, 1/p)
}

func (m *knnModel) neighborVotes(row []float64) map[int]int {
	type dist struct {
		d     float64
		label int
	}
	dists := make([]dist, len(m.X))
	for i, train := range m.X {
		dists[i] = dist{d: minkowski(row, train, m.p), label: m.y[i]}
	}
	sort.Slice(dists, func(a, b int) bool { return dists[a].d < dists[b].d })

	k := m.k
	if k > len(dists) {
		k = len(dists)
	}
	votes := map[int]int{}
	for i := 0; i < k; i++ {
		votes[dists[i].label]++
	}
	return votes
}

func (m *knnModel) Predict(X [][]float64) []int {
	out := make([]int, len(X))
	for i, row := range X {
		out[i] = majorityClass(m.neighborVotes(row))
	}
	return out
}

func (m *knnModel) PredictProba(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, row := range X {
		votes := m.neighborVotes(row)
		k := m.k
		if k > len(m.X) {
			k = len(m.X)
		}
		probs := make([]float64, len(m.classes))
		for idx, cls := range m.classes {
			if k > 0 {
				probs[idx] = float64(votes[cls]) / float64(k)
			}
		}
		out[i] = probs
	}
	return out
}

func (m *knnModel) FeatureImportances() []float64 { return nil }
