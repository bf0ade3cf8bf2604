package xaitype

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ckguru/orchestrator/internal/jobs/modeltype"
)

// DecisionPathNode mirrors DecisionPathNode.
type DecisionPathNode struct {
	ID        string    `json:"id"`
	Condition string    `json:"condition,omitempty"`
	Samples   int       `json:"samples"`
	Value     []float64 `json:"value,omitempty"`
}

// DecisionPathEdge mirrors DecisionPathEdge.
type DecisionPathEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label,omitempty"`
}

// InstanceDecisionPath mirrors InstanceDecisionPath.
type InstanceDecisionPath struct {
	Identifier
	Nodes []DecisionPathNode `json:"nodes"`
	Edges []DecisionPathEdge `json:"edges"`
}

// DecisionPathResult mirrors DecisionPathResultData.
type DecisionPathResult struct {
	InstanceDecisionPaths []InstanceDecisionPath `json:"instance_decision_paths"`
}

const decisionPathMaxTrees = 3

// DecisionPathStrategy walks the tree(s) the fitted model is built
// from and emits a node/edge per decision boundary crossed for each
// instance. modeltype.DecisionTree/RandomForest already expose their
// tree structure as live Go values (modeltype.PathStep), so this
// strategy walks that directly. Only applicable to tree-based model
// types -- the Explanation Orchestration Handler gates dispatch on
// ModelType.IsTreeBased() before ever calling this.
type DecisionPathStrategy struct{}

func (DecisionPathStrategy) Name() string { return TypeDecisionPath }

func (DecisionPathStrategy) Explain(_ context.Context, model Model, _, X [][]float64, featureNames []string, identifiers []Identifier) (any, error) {
	explainer, ok := model.(modeltype.DecisionPathExplainer)
	if !ok {
		return nil, fmt.Errorf("DecisionPathStrategy: model type does not expose a tree structure")
	}
	if len(X) == 0 {
		return &DecisionPathResult{}, nil
	}
	numTrees := explainer.NumTrees()
	if numTrees > decisionPathMaxTrees {
		numTrees = decisionPathMaxTrees
	}

	results := make([]InstanceDecisionPath, 0, len(X))
	for i, row := range X {
		var nodes []DecisionPathNode
		var edges []DecisionPathEdge
		for t := 0; t < numTrees; t++ {
			steps := explainer.TreePath(t, row)
			treeNodes, treeEdges := stepsToGraph(t, steps, featureNames)
			nodes = append(nodes, treeNodes...)
			edges = append(edges, treeEdges...)
		}
		results = append(results, InstanceDecisionPath{Identifier: identifierAt(identifiers, i), Nodes: nodes, Edges: edges})
	}
	return &DecisionPathResult{InstanceDecisionPaths: results}, nil
}

func stepsToGraph(treeIdx int, steps []modeltype.PathStep, featureNames []string) ([]DecisionPathNode, []DecisionPathEdge) {
	nodes := make([]DecisionPathNode, 0, len(steps))
	edges := make([]DecisionPathEdge, 0, len(steps))

	nodeID := func(i int) string { return "t" + strconv.Itoa(treeIdx) + "_n" + strconv.Itoa(i) }

	for i, step := range steps {
		id := nodeID(i)
		node := DecisionPathNode{ID: id, Samples: step.Node.Samples}
		if step.Node.IsLeaf {
			node.Value = classCountsToValue(step.Node.ClassCounts)
		} else {
			name := "feature"
			if step.Node.Feature < len(featureNames) {
				name = featureNames[step.Node.Feature]
			}
			op := ">="
			if step.WentLeft {
				op = "<"
			}
			node.Condition = fmt.Sprintf("%s %s %.4f", name, op, step.Node.Threshold)
		}
		nodes = append(nodes, node)
		if i > 0 {
			label := "false"
			if steps[i-1].WentLeft {
				label = "true"
			}
			edges = append(edges, DecisionPathEdge{Source: nodeID(i - 1), Target: id, Label: label})
		}
	}
	return nodes, edges
}

func classCountsToValue(counts map[int]int) []float64 {
	if len(counts) == 0 {
		return nil
	}
	maxClass := 0
	for cls := range counts {
		if cls > maxClass {
			maxClass = cls
		}
	}
	value := make([]float64, maxClass+1)
	for cls, c := range counts {
		value[cls] = float64(c)
	}
	return value
}
