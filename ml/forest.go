package ml

import (
	"context"
	"fmt"
)

// RandomForest averages the leaf distributions of its trees, the same way a
// bagged ensemble of probability trees votes.
type RandomForest struct {
	Trees []DecisionTree `json:"trees"`
}

func (rf *RandomForest) Predict(ctx context.Context, features []float64) (int, error) {
	proba, err := rf.PredictProba(ctx, features)
	if err != nil {
		return 0, err
	}
	return argmax(proba), nil
}

func (rf *RandomForest) PredictProba(ctx context.Context, features []float64) ([]float64, error) {
	if len(rf.Trees) == 0 {
		return nil, fmt.Errorf("%w: forest has no trees", ErrInvalidModel)
	}
	sum := make([]float64, 2)
	for i := range rf.Trees {
		proba, err := rf.Trees[i].PredictProba(ctx, features)
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
		sum[0] += proba[0]
		sum[1] += proba[1]
	}
	n := float64(len(rf.Trees))
	return []float64{sum[0] / n, sum[1] / n}, nil
}

func (rf *RandomForest) validate(nFeatures int) error {
	if len(rf.Trees) == 0 {
		return fmt.Errorf("%w: forest has no trees", ErrInvalidModel)
	}
	for i := range rf.Trees {
		if err := rf.Trees[i].validate(nFeatures); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}
