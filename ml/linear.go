package ml

import (
	"context"
	"fmt"
	"math"
)

// StandardScaler centres and scales each column before a linear model sees it.
type StandardScaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

func (s *StandardScaler) transform(features []float64) []float64 {
	out := make([]float64, len(features))
	for i, v := range features {
		scale := s.Scale[i]
		if scale == 0 {
			scale = 1
		}
		out[i] = (v - s.Mean[i]) / scale
	}
	return out
}

func (s *StandardScaler) validate(nFeatures int) error {
	if len(s.Mean) != nFeatures || len(s.Scale) != nFeatures {
		return fmt.Errorf("%w: scaler has %d means and %d scales", ErrFeatureMismatch, len(s.Mean), len(s.Scale))
	}
	return nil
}

// linearModel is the shared decision function w·x + b.
type linearModel struct {
	Coef      []float64       `json:"coef"`
	Intercept float64         `json:"intercept"`
	Scaler    *StandardScaler `json:"scaler,omitempty"`
}

func (lm *linearModel) decision(features []float64) (float64, error) {
	if len(features) != len(lm.Coef) {
		return 0, fmt.Errorf("%w: got %d, want %d", ErrFeatureMismatch, len(features), len(lm.Coef))
	}
	x := features
	if lm.Scaler != nil {
		x = lm.Scaler.transform(features)
	}
	z := lm.Intercept
	for i, w := range lm.Coef {
		z += w * x[i]
	}
	return z, nil
}

func (lm *linearModel) validate(nFeatures int) error {
	if len(lm.Coef) != nFeatures {
		return fmt.Errorf("%w: %d coefficients", ErrFeatureMismatch, len(lm.Coef))
	}
	if lm.Scaler != nil {
		return lm.Scaler.validate(nFeatures)
	}
	return nil
}

// LogisticRegression is a binary logistic model. It estimates probabilities.
type LogisticRegression struct {
	linearModel
}

func (lr *LogisticRegression) Predict(ctx context.Context, features []float64) (int, error) {
	z, err := lr.decision(features)
	if err != nil {
		return 0, err
	}
	if z > 0 {
		return 1, nil
	}
	return 0, nil
}

func (lr *LogisticRegression) PredictProba(ctx context.Context, features []float64) ([]float64, error) {
	z, err := lr.decision(features)
	if err != nil {
		return nil, err
	}
	p := 1 / (1 + math.Exp(-z))
	return []float64{1 - p, p}, nil
}

// LinearSVC only knows which side of the margin a point falls on, so a model
// built from it is label-only.
type LinearSVC struct {
	linearModel
}

func (svc *LinearSVC) Predict(ctx context.Context, features []float64) (int, error) {
	z, err := svc.decision(features)
	if err != nil {
		return 0, err
	}
	if z > 0 {
		return 1, nil
	}
	return 0, nil
}
