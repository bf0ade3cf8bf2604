package modeltype

import "math/rand"

// TrainTestSplit performs a seeded random train/test split, without
// stratification.
func TrainTestSplit(X [][]float64, y []int, testSize float64, seed int64) (xTrain, xTest [][]float64, yTrain, yTest []int) {
	n := len(X)
	if n == 0 || testSize <= 0 || testSize >= 1 {
		return X, nil, y, nil
	}
	rng := rand.New(rand.NewSource(seed))
	perm := rng.Perm(n)
	nTest := int(float64(n) * testSize)
	if nTest < 1 {
		nTest = 1
	}
	if nTest >= n {
		nTest = n - 1
	}

	testIdx := perm[:nTest]
	trainIdx := perm[nTest:]

	xTrain = make([][]float64, len(trainIdx))
	yTrain = make([]int, len(trainIdx))
	for i, idx := range trainIdx {
		xTrain[i] = X[idx]
		yTrain[i] = y[idx]
	}
	xTest = make([][]float64, len(testIdx))
	yTest = make([]int, len(testIdx))
	for i, idx := range testIdx {
		xTest[i] = X[idx]
		yTest[i] = y[idx]
	}
	return xTrain, xTest, yTrain, yTest
}

// Evaluate computes accuracy and weighted F1.
func Evaluate(model Model, X [][]float64, y []int) map[string]float64 {
	if len(X) == 0 {
		return map[string]float64{"accuracy": 0, "f1_weighted": 0}
	}
	preds := model.Predict(X)

	correct := 0
	for i := range y {
		if preds[i] == y[i] {
			correct++
		}
	}
	accuracy := float64(correct) / float64(len(y))

	classes := distinctClasses(y)
	var weightedF1, total float64
	for _, cls := range classes {
		var tp, fp, fn int
		for i := range y {
			switch {
			case preds[i] == cls && y[i] == cls:
				tp++
			case preds[i] == cls && y[i] != cls:
				fp++
			case preds[i] != cls && y[i] == cls:
				fn++
			}
		}
		var precision, recall, f1 float64
		if tp+fp > 0 {
			precision = float64(tp) / float64(tp+fp)
		}
		if tp+fn > 0 {
			recall = float64(tp) / float64(tp+fn)
		}
		if precision+recall > 0 {
			f1 = 2 * precision * recall / (precision + recall)
		}
		support := float64(tp + fn)
		weightedF1 += f1 * support
		total += support
	}
	if total > 0 {
		weightedF1 /= total
	}

	return map[string]float64{"accuracy": accuracy, "f1_weighted": weightedF1}
}
