package modeltype

import (
	"context"
	"math"
)

// LogisticRegression fits one-vs-rest binary logistic classifiers per
// class via batch gradient descent with L2 regularization -- a
// hand-rolled stand-in for a library fit, since no ML library is wired
// in (see package doc comment).
type LogisticRegression struct{}

func (LogisticRegression) Name() string        { return "sklearn_logisticregression" }
func (LogisticRegression) DisplayName() string { return "Logistic Regression" }
func (LogisticRegression) Description() string {
	return "Linear one-vs-rest classifier fit by L2-regularized gradient descent."
}
func (LogisticRegression) IsTreeBased() bool { return false }

func (LogisticRegression) Params() []ParamDef {
	minC, maxC := 0.001, 1000.0
	minIter, maxIter := 50.0, 1000.0
	return []ParamDef{
		{Name: "C", Type: "float", Description: "Inverse regularization strength", Default: 1.0, Range: &ParamRange{Min: &minC, Max: &maxC}, Log: true},
		{Name: "max_iter", Type: "integer", Description: "Maximum gradient-descent iterations", Default: 200, Range: &ParamRange{Min: &minIter, Max: &maxIter}},
	}
}

func (lr LogisticRegression) Fit(_ context.Context, X [][]float64, y []int, params map[string]any) (Model, error) {
	c := floatParam(params, "C", 1.0)
	maxIter := intParam(params, "max_iter", 200)
	classes := distinctClasses(y)

	nFeatures := 0
	if len(X) > 0 {
		nFeatures = len(X[0])
	}

	weights := make(map[int][]float64, len(classes))
	biases := make(map[int]float64, len(classes))
	for _, cls := range classes {
		target := make([]float64, len(y))
		for i, label := range y {
			if label == cls {
				target[i] = 1
			}
		}
		w, b := fitBinaryLogistic(X, target, nFeatures, c, maxIter)
		weights[cls] = w
		biases[cls] = b
	}

	return &logisticModel{classes: classes, weights: weights, biases: biases, nFeatures: nFeatures}, nil
}

// fitBinaryLogistic trains a single weight vector + bias via batch
// gradient descent on the binary cross-entropy loss, with an L2 term
// scaled by 1/C (mirroring sklearn's C=1/lambda convention).
func fitBinaryLogistic(X [][]float64, target []float64, nFeatures int, c float64, maxIter int) ([]float64, float64) {
	w := make([]float64, nFeatures)
	var b float64
	if len(X) == 0 || nFeatures == 0 {
		return w, b
	}
	lr := 0.1
	lambda := 1.0 / c
	n := float64(len(X))

	for iter := 0; iter < maxIter; iter++ {
		gradW := make([]float64, nFeatures)
		var gradB float64
		for i, row := range X {
			z := b
			for j, v := range row {
				z += w[j] * v
			}
			pred := sigmoid(z)
			err := pred - target[i]
			for j, v := range row {
				gradW[j] += err * v
			}
			gradB += err
		}
		for j := range w {
			w[j] -= lr * (gradW[j]/n + lambda*w[j]/n)
		}
		b -= lr * gradB / n
	}
	return w, b
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}

type logisticModel struct {
	classes   []int
	weights   map[int][]float64
	biases    map[int]float64
	nFeatures int
}

func (m *logisticModel) scores(row []float64) map[int]float64 {
	out := make(map[int]float64, len(m.classes))
	for _, cls := range m.classes {
		z := m.biases[cls]
		w := m.weights[cls]
		for j, v := range row {
			if j < len(w) {
				z += w[j] * v
			}
		}
		out[cls] = sigmoid(z)
	}
	return out
}

func (m *logisticModel) Predict(X [][]float64) []int {
	out := make([]int, len(X))
	for i, row := range X {
		scores := m.scores(row)
		best, bestScore := m.classes[0], -1.0
		for cls, s := range scores {
			if s > bestScore {
				best, bestScore = cls, s
			}
		}
		out[i] = best
	}
	return out
}

func (m *logisticModel) PredictProba(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, row := range X {
		scores := m.scores(row)
		var sum float64
		probs := make([]float64, len(m.classes))
		for k, cls := range m.classes {
			probs[k] = scores[cls]
			sum += probs[k]
		}
		if sum > 0 {
			for k := range probs {
				probs[k] /= sum
			}
		}
		out[i] = probs
	}
	return out
}

func (m *logisticModel) FeatureImportances() []float64 {
	if m.nFeatures == 0 {
		return nil
	}
	out := make([]float64, m.nFeatures)
	for _, w := range m.weights {
		for j, v := range w {
			out[j] += math.Abs(v)
		}
	}
	n := float64(len(m.weights))
	if n == 0 {
		return out
	}
	for j := range out {
		out[j] /= n
	}
	return out
}

func distinctClasses(y []int) []int {
	seen := map[int]bool{}
	var out []int
	for _, v := range y {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
