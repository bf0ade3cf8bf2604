package modeltype

import (
	"context"
	"math"
	"math/rand"
	"sort"
)

// DecisionTree fits a CART-style binary tree with Gini-impurity splits
// -- a hand-rolled stand-in for a library decision-tree classifier,
// since no ML library is wired in (see package doc comment).
type DecisionTree struct{}

func (DecisionTree) Name() string        { return "sklearn_decisiontreeclassifier" }
func (DecisionTree) DisplayName() string { return "Decision Tree" }
func (DecisionTree) Description() string {
	return "CART classifier fit by recursive Gini-impurity splitting."
}
func (DecisionTree) IsTreeBased() bool { return true }

func (DecisionTree) Params() []ParamDef {
	minDepth, maxDepth := 1.0, 100.0
	minSplit, maxSplit := 2.0, 50.0
	minLeaf, maxLeaf := 1.0, 50.0
	return []ParamDef{
		{Name: "max_depth", Type: "integer", Description: "Maximum tree depth", Default: 10, Range: &ParamRange{Min: &minDepth, Max: &maxDepth}},
		{Name: "min_samples_split", Type: "integer", Description: "Minimum samples required to split a node", Default: 2, Range: &ParamRange{Min: &minSplit, Max: &maxSplit}},
		{Name: "min_samples_leaf", Type: "integer", Description: "Minimum samples required at a leaf", Default: 1, Range: &ParamRange{Min: &minLeaf, Max: &maxLeaf}},
	}
}

func (DecisionTree) Fit(_ context.Context, X [][]float64, y []int, params map[string]any) (Model, error) {
	cfg := treeConfig{
		maxDepth:        intParam(params, "max_depth", 10),
		minSamplesSplit: intParam(params, "min_samples_split", 2),
		minSamplesLeaf:  intParam(params, "min_samples_leaf", 1),
	}
	idx := make([]int, len(X))
	for i := range idx {
		idx[i] = i
	}
	nFeatures := 0
	if len(X) > 0 {
		nFeatures = len(X[0])
	}
	root := buildTreeNode(X, y, idx, 0, cfg, allFeatureIndices(nFeatures))
	imp := make([]float64, nFeatures)
	accumulateImportance(root, imp)
	normalizeImportance(imp)
	return &treeModel{root: root, classes: distinctClasses(y), nFeatures: nFeatures, importances: imp}, nil
}

type treeConfig struct {
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
}

type treeNode struct {
	isLeaf       bool
	classCounts  map[int]int
	feature      int
	threshold    float64
	left, right  *treeNode
	giniGain     float64
	nSamples     int
}

func allFeatureIndices(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func buildTreeNode(X [][]float64, y []int, idx []int, depth int, cfg treeConfig, features []int) *treeNode {
	counts := classCounts(y, idx)
	node := &treeNode{classCounts: counts, nSamples: len(idx)}

	if len(idx) < cfg.minSamplesSplit || (cfg.maxDepth > 0 && depth >= cfg.maxDepth) || len(counts) <= 1 {
		node.isLeaf = true
		return node
	}

	bestFeature, bestThreshold, bestGain, leftIdx, rightIdx := findBestSplit(X, y, idx, features, cfg.minSamplesLeaf)
	if bestFeature < 0 {
		node.isLeaf = true
		return node
	}

	node.feature = bestFeature
	node.threshold = bestThreshold
	node.giniGain = bestGain
	node.left = buildTreeNode(X, y, leftIdx, depth+1, cfg, features)
	node.right = buildTreeNode(X, y, rightIdx, depth+1, cfg, features)
	return node
}

func classCounts(y []int, idx []int) map[int]int {
	counts := map[int]int{}
	for _, i := range idx {
		counts[y[i]]++
	}
	return counts
}

func gini(counts map[int]int, total int) float64 {
	if total == 0 {
		return 0
	}
	g := 1.0
	for _, c := range counts {
		p := float64(c) / float64(total)
		g -= p * p
	}
	return g
}

func findBestSplit(X [][]float64, y []int, idx []int, features []int, minLeaf int) (int, float64, float64, []int, []int) {
	parentCounts := classCounts(y, idx)
	parentGini := gini(parentCounts, len(idx))

	bestFeature := -1
	var bestThreshold, bestGain float64
	var bestLeft, bestRight []int

	for _, f := range features {
		sorted := append([]int{}, idx...)
		sort.Slice(sorted, func(a, b int) bool { return X[sorted[a]][f] < X[sorted[b]][f] })

		for i := 1; i < len(sorted); i++ {
			if X[sorted[i-1]][f] == X[sorted[i]][f] {
				continue
			}
			left := sorted[:i]
			right := sorted[i:]
			if len(left) < minLeaf || len(right) < minLeaf {
				continue
			}
			threshold := (X[sorted[i-1]][f] + X[sorted[i]][f]) / 2
			leftGini := gini(classCounts(y, left), len(left))
			rightGini := gini(classCounts(y, right), len(right))
			weighted := (float64(len(left))*leftGini + float64(len(right))*rightGini) / float64(len(sorted))
			gain := parentGini - weighted
			if gain > bestGain {
				bestFeature = f
				bestThreshold = threshold
				bestGain = gain
				bestLeft = append([]int{}, left...)
				bestRight = append([]int{}, right...)
			}
		}
	}
	return bestFeature, bestThreshold, bestGain, bestLeft, bestRight
}

func accumulateImportance(n *treeNode, imp []float64) {
	if n == nil || n.isLeaf {
		return
	}
	imp[n.feature] += n.giniGain * float64(n.nSamples)
	accumulateImportance(n.left, imp)
	accumulateImportance(n.right, imp)
}

func normalizeImportance(imp []float64) {
	var sum float64
	for _, v := range imp {
		sum += v
	}
	if sum == 0 {
		return
	}
	for i := range imp {
		imp[i] /= sum
	}
}

func predictNode(n *treeNode, row []float64) map[int]int {
	for !n.isLeaf {
		if row[n.feature] < n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n.classCounts
}

type treeModel struct {
	root        *treeNode
	classes     []int
	nFeatures   int
	importances []float64
}

func majorityClass(counts map[int]int) int {
	best, bestCount := 0, -1
	for cls, c := range counts {
		if c > bestCount {
			best, bestCount = cls, c
		}
	}
	return best
}

func (m *treeModel) Predict(X [][]float64) []int {
	out := make([]int, len(X))
	for i, row := range X {
		out[i] = majorityClass(predictNode(m.root, row))
	}
	return out
}

func (m *treeModel) PredictProba(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, row := range X {
		counts := predictNode(m.root, row)
		total := 0
		for _, c := range counts {
			total += c
		}
		probs := make([]float64, len(m.classes))
		for k, cls := range m.classes {
			if total > 0 {
				probs[k] = float64(counts[cls]) / float64(total)
			}
		}
		out[i] = probs
	}
	return out
}

func (m *treeModel) FeatureImportances() []float64 { return m.importances }

// PathNode and PathStep expose one visited node of a fitted tree, used
// by xaitype's decision-path explainer -- the Go equivalent of walking
// sklearn's opaque tree_.feature/tree_.threshold arrays via
// decision_path(), except here the tree structure is already a live Go
// value rather than a packed numpy array.
type PathNode struct {
	IsLeaf      bool
	Feature     int
	Threshold   float64
	ClassCounts map[int]int
	Samples     int
}

type PathStep struct {
	Node     PathNode
	WentLeft bool
}

// DecisionPathExplainer is implemented by every tree-based Model
// (treeModel, forestModel). NumTrees lets callers cap how many trees
// of a forest they walk rather than explaining every estimator.
type DecisionPathExplainer interface {
	NumTrees() int
	TreePath(treeIdx int, row []float64) []PathStep
}

func walkTreePath(n *treeNode, row []float64) []PathStep {
	var steps []PathStep
	for !n.isLeaf {
		left := row[n.feature] < n.threshold
		steps = append(steps, PathStep{
			Node:     PathNode{IsLeaf: false, Feature: n.feature, Threshold: n.threshold, ClassCounts: n.classCounts, Samples: n.nSamples},
			WentLeft: left,
		})
		if left {
			n = n.left
		} else {
			n = n.right
		}
	}
	steps = append(steps, PathStep{Node: PathNode{IsLeaf: true, ClassCounts: n.classCounts, Samples: n.nSamples}})
	return steps
}

func (m *treeModel) NumTrees() int { return 1 }

func (m *treeModel) TreePath(_ int, row []float64) []PathStep {
	return walkTreePath(m.root, row)
}

// RandomForest bags bootstrap-sampled DecisionTrees, each restricted to
// a random sqrt(n_features)-sized feature subset per split candidate
// set, and predicts by majority/averaged vote -- a hand-rolled
// stand-in for a library random-forest classifier.
type RandomForest struct{}

func (RandomForest) Name() string        { return "sklearn_randomforest" }
func (RandomForest) DisplayName() string { return "Random Forest" }
func (RandomForest) Description() string {
	return "Bagged ensemble of Gini-impurity decision trees over random feature subsets."
}
func (RandomForest) IsTreeBased() bool { return true }

func (RandomForest) Params() []ParamDef {
	minEst, maxEst := 10.0, 1000.0
	minDepth, maxDepth := 1.0, 100.0
	return []ParamDef{
		{Name: "n_estimators", Type: "integer", Description: "Number of trees in the forest", Default: 100, Range: &ParamRange{Min: &minEst, Max: &maxEst, Step: floatPtr(10)}},
		{Name: "max_depth", Type: "integer", Description: "Maximum depth of each tree", Default: 10, Range: &ParamRange{Min: &minDepth, Max: &maxDepth}},
	}
}

func floatPtr(v float64) *float64 { return &v }

func (RandomForest) Fit(ctx context.Context, X [][]float64, y []int, params map[string]any) (Model, error) {
	nEstimators := intParam(params, "n_estimators", 100)
	cfg := treeConfig{
		maxDepth:        intParam(params, "max_depth", 10),
		minSamplesSplit: intParam(params, "min_samples_split", 2),
		minSamplesLeaf:  intParam(params, "min_samples_leaf", 1),
	}
	nFeatures := 0
	if len(X) > 0 {
		nFeatures = len(X[0])
	}
	subsetSize := int(math.Sqrt(float64(nFeatures)))
	if subsetSize < 1 {
		subsetSize = nFeatures
	}

	rng := rand.New(rand.NewSource(42))
	trees := make([]*treeNode, 0, nEstimators)
	imp := make([]float64, nFeatures)

	for e := 0; e < nEstimators; e++ {
		sampleIdx := bootstrapSample(len(X), rng)
		features := randomFeatureSubset(nFeatures, subsetSize, rng)
		root := buildTreeNode(X, y, sampleIdx, 0, cfg, features)
		trees = append(trees, root)
		accumulateImportance(root, imp)
	}
	normalizeImportance(imp)

	return &forestModel{trees: trees, classes: distinctClasses(y), nFeatures: nFeatures, importances: imp}, nil
}

func bootstrapSample(n int, rng *rand.Rand) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = rng.Intn(n)
	}
	return out
}

func randomFeatureSubset(nFeatures, size int, rng *rand.Rand) []int {
	if size >= nFeatures {
		return allFeatureIndices(nFeatures)
	}
	perm := rng.Perm(nFeatures)[:size]
	sort.Ints(perm)
	return perm
}

type forestModel struct {
	trees       []*treeNode
	classes     []int
	nFeatures   int
	importances []float64
}

func (m *forestModel) votes(row []float64) map[int]int {
	votes := map[int]int{}
	for _, t := range m.trees {
		votes[majorityClass(predictNode(t, row))]++
	}
	return votes
}

func (m *forestModel) Predict(X [][]float64) []int {
	out := make([]int, len(X))
	for i, row := range X {
		out[i] = majorityClass(m.votes(row))
	}
	return out
}

func (m *forestModel) PredictProba(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, row := range X {
		votes := m.votes(row)
		probs := make([]float64, len(m.classes))
		for k, cls := range m.classes {
			if len(m.trees) > 0 {
				probs[k] = float64(votes[cls]) / float64(len(m.trees))
			}
		}
		out[i] = probs
	}
	return out
}

func (m *forestModel) FeatureImportances() []float64 { return m.importances }

func (m *forestModel) NumTrees() int { return len(m.trees) }

func (m *forestModel) TreePath(treeIdx int, row []float64) []PathStep {
	if treeIdx < 0 || treeIdx >= len(m.trees) {
		return nil
	}
	return walkTreePath(m.trees[treeIdx], row)
}
