package ml

import (
	"context"
	"errors"
	"fmt"
	"math"
)

type DecisionTree struct {
	Nodes []TreeNode `json:"nodes"`
}

// TreeNode is one entry of a flattened tree. Value holds the class counts
// (or weights) of the training samples that reached a leaf, indexed by label.
type TreeNode struct {
	FeatureIdx int       `json:"feature_idx"`
	Threshold  float64   `json:"threshold"`
	LeftChild  int       `json:"left_child"`
	RightChild int       `json:"right_child"`
	ClassLabel int       `json:"class_label"`
	IsLeaf     bool      `json:"is_leaf"`
	Value      []float64 `json:"value,omitempty"`
}

func (dt *DecisionTree) Predict(ctx context.Context, features []float64) (int, error) {
	leaf, err := dt.leaf(features)
	if err != nil {
		return 0, err
	}
	if len(leaf.Value) == 0 {
		return leaf.ClassLabel, nil
	}
	return argmax(leaf.Value), nil
}

func (dt *DecisionTree) PredictProba(ctx context.Context, features []float64) ([]float64, error) {
	leaf, err := dt.leaf(features)
	if err != nil {
		return nil, err
	}
	return leafDistribution(leaf), nil
}

func (dt *DecisionTree) leaf(features []float64) (TreeNode, error) {
	if len(dt.Nodes) == 0 {
		return TreeNode{}, errors.New("model not trained")
	}
	idx := 0
	// a well-formed tree never visits more nodes than it has
	for steps := 0; steps <= len(dt.Nodes); steps++ {
		node := dt.Nodes[idx]
		if node.IsLeaf {
			return node, nil
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(features) {
			return TreeNode{}, errors.New("feature index out of range")
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
		if idx < 0 || idx >= len(dt.Nodes) {
			return TreeNode{}, errors.New("invalid tree state")
		}
	}
	return TreeNode{}, errors.New("tree contains a cycle")
}

func (dt *DecisionTree) validate(nFeatures int) error {
	if len(dt.Nodes) == 0 {
		return fmt.Errorf("%w: tree has no nodes", ErrInvalidModel)
	}
	for i, node := range dt.Nodes {
		if node.IsLeaf {
			if len(node.Value) > 2 {
				return fmt.Errorf("%w: leaf %d has %d classes", ErrClassMismatch, i, len(node.Value))
			}
			if len(node.Value) == 0 && node.ClassLabel != 0 && node.ClassLabel != 1 {
				return fmt.Errorf("%w: leaf %d has label %d", ErrClassMismatch, i, node.ClassLabel)
			}
			for _, v := range node.Value {
				if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
					return fmt.Errorf("%w: leaf %d has count %v", ErrInvalidModel, i, v)
				}
			}
			continue
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= nFeatures {
			return fmt.Errorf("%w: node %d splits on feature %d", ErrInvalidModel, i, node.FeatureIdx)
		}
		if node.LeftChild <= i || node.LeftChild >= len(dt.Nodes) ||
			node.RightChild <= i || node.RightChild >= len(dt.Nodes) {
			return fmt.Errorf("%w: node %d has invalid children", ErrInvalidModel, i)
		}
	}
	return nil
}

// leafDistribution normalises the leaf counts into a two-class probability
// vector. A leaf without counts is treated as certain of its label.
func leafDistribution(leaf TreeNode) []float64 {
	proba := make([]float64, 2)
	total := 0.0
	for i, v := range leaf.Value {
		proba[i] = v
		total += v
	}
	if total <= 0 {
		if leaf.ClassLabel == 1 {
			return []float64{0, 1}
		}
		return []float64{1, 0}
	}
	proba[0] /= total
	proba[1] /= total
	return proba
}

func argmax(values []float64) int {
	best := 0
	for i := 1; i < len(values); i++ {
		if values[i] > values[best] {
			best = i
		}
	}
	return best
}
