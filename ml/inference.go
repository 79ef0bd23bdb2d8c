package ml

import (
	"context"
	"fmt"
	"math"
)

// RiskLabel is the binary model output.
type RiskLabel int

const (
	LowRisk  RiskLabel = 0
	HighRisk RiskLabel = 1
)

func (l RiskLabel) String() string {
	if l == HighRisk {
		return "high risk"
	}
	return "low risk"
}

// Prediction is the outcome of one submission.
type Prediction struct {
	Label RiskLabel
	// PositiveProbability is P(label == 1). Only meaningful when
	// HasProbability is set.
	PositiveProbability float64
	HasProbability      bool
}

// DisplayProbability returns the percentage shown to the user: the
// probability of the predicted class, not of disease. High risk shows p*100,
// low risk shows (1-p)*100.
func (p Prediction) DisplayProbability() (float64, bool) {
	if !p.HasProbability {
		return 0, false
	}
	if p.Label == HighRisk {
		return p.PositiveProbability * 100, true
	}
	return (1 - p.PositiveProbability) * 100, true
}

const probabilityTolerance = 1e-9

// Infer runs one prediction. It does not validate the features; errors from
// the model are returned unchanged apart from wrapping.
func Infer(ctx context.Context, model *Model, features PatientFeatures) (Prediction, error) {
	vector := features.Vector()

	var result Prediction
	if model.SupportsProbability() {
		proba, err := model.PredictProba(ctx, vector)
		if err != nil {
			return Prediction{}, fmt.Errorf("predict probability: %w", err)
		}
		if len(proba) != 2 {
			return Prediction{}, fmt.Errorf("%w: %d classes", ErrMalformedProbability, len(proba))
		}
		p := proba[1]
		if p < -probabilityTolerance || p > 1+probabilityTolerance || math.IsNaN(p) {
			return Prediction{}, fmt.Errorf("%w: p=%v", ErrMalformedProbability, p)
		}
		result.PositiveProbability = clamp01(p)
		result.HasProbability = true
	}

	label, err := model.Predict(ctx, vector)
	if err != nil {
		return Prediction{}, fmt.Errorf("predict label: %w", err)
	}
	switch RiskLabel(label) {
	case LowRisk, HighRisk:
		result.Label = RiskLabel(label)
	default:
		return Prediction{}, fmt.Errorf("%w: %d", ErrUnexpectedLabel, label)
	}
	return result, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
