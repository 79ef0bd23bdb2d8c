package ml

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

const (
	TypeDecisionTree       = "decision_tree"
	TypeRandomForest       = "random_forest"
	TypeLogisticRegression = "logistic_regression"
	TypeLinearSVC          = "linear_svc"
)

// artifact is the on-disk envelope written by the export step of training.
type artifact struct {
	Type      string          `json:"type"`
	Name      string          `json:"name"`
	NFeatures int             `json:"n_features"`
	Classes   []int           `json:"classes"`
	Params    json.RawMessage `json:"params"`
}

type artifactValidator interface {
	validate(nFeatures int) error
}

// LoadModel reads a classifier artifact from path.
func LoadModel(path string) (*Model, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open model artifact: %w", err)
	}
	defer file.Close()

	model, err := DecodeModel(file)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return model, nil
}

// DecodeModel builds a Model from an artifact stream. The artifact must
// describe a binary classifier over FeatureCount columns.
func DecodeModel(r io.Reader) (*Model, error) {
	var a artifact
	if err := json.NewDecoder(r).Decode(&a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidModel, err)
	}
	if a.NFeatures != FeatureCount {
		return nil, fmt.Errorf("%w: artifact expects %d features, form provides %d", ErrFeatureMismatch, a.NFeatures, FeatureCount)
	}
	if err := checkClasses(a.Classes); err != nil {
		return nil, err
	}

	var classifier Classifier
	switch a.Type {
	case TypeDecisionTree:
		classifier = &DecisionTree{}
	case TypeRandomForest:
		classifier = &RandomForest{}
	case TypeLogisticRegression:
		classifier = &LogisticRegression{}
	case TypeLinearSVC:
		classifier = &LinearSVC{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedModel, a.Type)
	}
	if len(a.Params) == 0 {
		return nil, fmt.Errorf("%w: missing params", ErrInvalidModel)
	}
	if err := json.Unmarshal(a.Params, classifier); err != nil {
		return nil, fmt.Errorf("%w: decode %s params: %v", ErrInvalidModel, a.Type, err)
	}
	if v, ok := classifier.(artifactValidator); ok {
		if err := v.validate(a.NFeatures); err != nil {
			return nil, err
		}
	}

	name := a.Name
	if name == "" {
		name = a.Type
	}
	return NewModel(name, classifier), nil
}

func checkClasses(classes []int) error {
	if len(classes) == 0 {
		return nil
	}
	if len(classes) != 2 || classes[0] != 0 || classes[1] != 1 {
		return fmt.Errorf("%w: classes %v", ErrClassMismatch, classes)
	}
	return nil
}
