package ml

import (
	"context"
	"errors"
)

var (
	ErrUnsupportedModel     = errors.New("unsupported model type")
	ErrFeatureMismatch      = errors.New("feature count mismatch")
	ErrClassMismatch        = errors.New("model must be a binary 0/1 classifier")
	ErrNoProbability        = errors.New("model does not support probability estimates")
	ErrUnexpectedLabel      = errors.New("model returned a label outside {0, 1}")
	ErrMalformedProbability = errors.New("model returned a malformed probability vector")
	ErrInvalidModel         = errors.New("invalid model artifact")
)

// Classifier predicts a class label for one feature vector.
type Classifier interface {
	Predict(ctx context.Context, features []float64) (int, error)
}

// ProbabilityEstimator returns one probability per class, indexed by label.
type ProbabilityEstimator interface {
	PredictProba(ctx context.Context, features []float64) ([]float64, error)
}

// Model is a loaded classifier. Whether it can estimate probabilities is
// decided once when it is built and never re-checked. A Model is never
// mutated after construction and may be shared between goroutines.
type Model struct {
	name       string
	classifier Classifier
	estimator  ProbabilityEstimator
}

// NewModel wraps c. If c also implements ProbabilityEstimator the model
// advertises probability support.
func NewModel(name string, c Classifier) *Model {
	estimator, _ := c.(ProbabilityEstimator)
	return newModel(name, c, estimator)
}

// NewLabelOnlyModel wraps c without probability support even if c has it.
func NewLabelOnlyModel(name string, c Classifier) *Model {
	return newModel(name, c, nil)
}

func newModel(name string, c Classifier, estimator ProbabilityEstimator) *Model {
	return &Model{name: name, classifier: c, estimator: estimator}
}

func (m *Model) Name() string {
	return m.name
}

func (m *Model) SupportsProbability() bool {
	return m.estimator != nil
}

func (m *Model) Predict(ctx context.Context, features []float64) (int, error) {
	return m.classifier.Predict(ctx, features)
}

func (m *Model) PredictProba(ctx context.Context, features []float64) ([]float64, error) {
	if m.estimator == nil {
		return nil, ErrNoProbability
	}
	return m.estimator.PredictProba(ctx, features)
}
