package modeltype

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

// snapshot is the exported mirror every concrete Model type converts
// itself to/from before crossing encoding/gob, since gob silently
// drops unexported fields and every fitted Model here
// (knnModel/logisticModel/treeModel/forestModel) keeps its fields
// private. No model-serialization library is wired in, so this uses
// gob, the standard library's own binary codec, rather than inventing
// a bespoke format.
type snapshot struct {
	Kind string

	// knn
	KNNX       [][]float64
	KNNY       []int
	KNNK       int
	KNNP       float64
	KNNClasses []int

	// logistic
	LogisticClasses   []int
	LogisticWeights   map[int][]float64
	LogisticBiases    map[int]float64
	LogisticNFeatures int

	// tree / forest
	TreeRoot    *treeSnapshot
	ForestTrees []*treeSnapshot
	Classes     []int
	NFeatures   int
	Importances []float64
}

type treeSnapshot struct {
	IsLeaf      bool
	ClassCounts map[int]int
	Feature     int
	Threshold   float64
	Left, Right *treeSnapshot
	GiniGain    float64
	NSamples    int
}

func toTreeSnapshot(n *treeNode) *treeSnapshot {
	if n == nil {
		return nil
	}
	return &treeSnapshot{
		IsLeaf:      n.isLeaf,
		ClassCounts: n.classCounts,
		Feature:     n.feature,
		Threshold:   n.threshold,
		Left:        toTreeSnapshot(n.left),
		Right:       toTreeSnapshot(n.right),
		GiniGain:    n.giniGain,
		NSamples:    n.nSamples,
	}
}

func fromTreeSnapshot(s *treeSnapshot) *treeNode {
	if s == nil {
		return nil
	}
	return &treeNode{
		isLeaf:      s.IsLeaf,
		classCounts: s.ClassCounts,
		feature:     s.Feature,
		threshold:   s.Threshold,
		left:        fromTreeSnapshot(s.Left),
		right:       fromTreeSnapshot(s.Right),
		giniGain:    s.GiniGain,
		nSamples:    s.NSamples,
	}
}

// Marshal serializes a fitted Model to bytes for artifact storage. The
// model-type name is embedded in the envelope so Unmarshal never has
// to be told which concrete type to expect.
func Marshal(modelTypeName string, m Model) ([]byte, error) {
	snap := snapshot{Kind: modelTypeName}
	switch v := m.(type) {
	case *knnModel:
		snap.KNNX, snap.KNNY, snap.KNNK, snap.KNNP, snap.KNNClasses = v.X, v.y, v.k, v.p, v.classes
	case *logisticModel:
		snap.LogisticClasses = v.classes
		snap.LogisticWeights = v.weights
		snap.LogisticBiases = v.biases
		snap.LogisticNFeatures = v.nFeatures
	case *treeModel:
		snap.TreeRoot = toTreeSnapshot(v.root)
		snap.Classes, snap.NFeatures, snap.Importances = v.classes, v.nFeatures, v.importances
	case *forestModel:
		for _, t := range v.trees {
			snap.ForestTrees = append(snap.ForestTrees, toTreeSnapshot(t))
		}
		snap.Classes, snap.NFeatures, snap.Importances = v.classes, v.nFeatures, v.importances
	default:
		return nil, fmt.Errorf("modeltype: unsupported concrete model type %T", m)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&snap); err != nil {
		return nil, fmt.Errorf("modeltype: encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// Unmarshal rebuilds a fitted Model from bytes previously produced by
// Marshal, dispatching on the model-type name recorded in the Model
// row rather than the envelope's own Kind field, so a renamed
// ModelType registration can't silently desync from its persisted
// artifacts.
func Unmarshal(modelTypeName string, data []byte) (Model, error) {
	var snap snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return nil, fmt.Errorf("modeltype: decode snapshot: %w", err)
	}

	switch modelTypeName {
	case (KNN{}).Name():
		return &knnModel{X: snap.KNNX, y: snap.KNNY, k: snap.KNNK, p: snap.KNNP, classes: snap.KNNClasses}, nil
	case (LogisticRegression{}).Name():
		return &logisticModel{
			classes:   snap.LogisticClasses,
			weights:   snap.LogisticWeights,
			biases:    snap.LogisticBiases,
			nFeatures: snap.LogisticNFeatures,
		}, nil
	case (DecisionTree{}).Name():
		return &treeModel{
			root:        fromTreeSnapshot(snap.TreeRoot),
			classes:     snap.Classes,
			nFeatures:   snap.NFeatures,
			importances: snap.Importances,
		}, nil
	case (RandomForest{}).Name():
		trees := make([]*treeNode, 0, len(snap.ForestTrees))
		for _, t := range snap.ForestTrees {
			trees = append(trees, fromTreeSnapshot(t))
		}
		return &forestModel{
			trees:       trees,
			classes:     snap.Classes,
			nFeatures:   snap.NFeatures,
			importances: snap.Importances,
		}, nil
	default:
		return nil, fmt.Errorf("modeltype: unknown model type %q", modelTypeName)
	}
}
