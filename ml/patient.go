package ml

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FeatureCount is the width of the vector every classifier is trained on.
const FeatureCount = 13

// PatientFeatures holds one submission. Field order matches FeatureNames and
// must never change: the classifier was trained on exactly this order.
type PatientFeatures struct {
	Age      int     `json:"age" validate:"min=0,max=120"`
	Sex      int     `json:"sex" validate:"oneof=0 1"`
	CP       int     `json:"cp" validate:"oneof=0 1 2 3"`
	Trestbps int     `json:"trestbps" validate:"min=0,max=250"`
	Chol     int     `json:"chol" validate:"min=0,max=600"`
	FBS      int     `json:"fbs" validate:"oneof=0 1"`
	RestECG  int     `json:"restecg" validate:"oneof=0 1 2"`
	Thalach  int     `json:"thalach" validate:"min=0,max=220"`
	Exang    int     `json:"exang" validate:"oneof=0 1"`
	Oldpeak  float64 `json:"oldpeak" validate:"min=0,max=10,tenths"`
	Slope    int     `json:"slope" validate:"oneof=0 1 2"`
	CA       int     `json:"ca" validate:"oneof=0 1 2 3 4"`
	Thal     int     `json:"thal" validate:"oneof=1 2 3"`
}

var featureNames = []string{
	"age", "sex", "cp", "trestbps", "chol", "fbs", "restecg",
	"thalach", "exang", "oldpeak", "slope", "ca", "thal",
}

// FeatureNames returns the training column order.
func FeatureNames() []string {
	return append([]string(nil), featureNames...)
}

// DefaultPatientFeatures mirrors the initial state of the form widgets.
func DefaultPatientFeatures() PatientFeatures {
	return PatientFeatures{Thal: 1}
}

// Vector flattens the record for the model call.
func (p PatientFeatures) Vector() []float64 {
	return []float64{
		float64(p.Age),
		float64(p.Sex),
		float64(p.CP),
		float64(p.Trestbps),
		float64(p.Chol),
		float64(p.FBS),
		float64(p.RestECG),
		float64(p.Thalach),
		float64(p.Exang),
		p.Oldpeak,
		float64(p.Slope),
		float64(p.CA),
		float64(p.Thal),
	}
}

// FeaturesFromVector is the inverse of Vector. Integer columns must hold
// whole numbers.
func FeaturesFromVector(values []float64) (PatientFeatures, error) {
	if len(values) != FeatureCount {
		return PatientFeatures{}, fmt.Errorf("%w: got %d values, want %d", ErrFeatureMismatch, len(values), FeatureCount)
	}
	ints := make([]int, FeatureCount)
	for i, v := range values {
		if i == 9 {
			continue
		}
		if v != math.Trunc(v) {
			return PatientFeatures{}, fmt.Errorf("%s must be a whole number, got %v", featureNames[i], v)
		}
		ints[i] = int(v)
	}
	return PatientFeatures{
		Age:      ints[0],
		Sex:      ints[1],
		CP:       ints[2],
		Trestbps: ints[3],
		Chol:     ints[4],
		FBS:      ints[5],
		RestECG:  ints[6],
		Thalach:  ints[7],
		Exang:    ints[8],
		Oldpeak:  values[9],
		Slope:    ints[10],
		CA:       ints[11],
		Thal:     ints[12],
	}, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// oldpeak is entered with a 0.1 step
	_ = v.RegisterValidation("tenths", func(fl validator.FieldLevel) bool {
		scaled := fl.Field().Float() * 10
		return math.Abs(scaled-math.Round(scaled)) < 1e-6
	})
	return v
}

// FieldError describes one out-of-domain input.
type FieldError struct {
	Field string
	Tag   string
	Param string
}

func (e FieldError) Error() string {
	switch e.Tag {
	case "min", "max":
		lo, hi := fieldBounds(e.Field)
		return fmt.Sprintf("%s must be between %s and %s", e.Field, lo, hi)
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", e.Field, strings.ReplaceAll(e.Param, " ", ", "))
	case "tenths":
		return fmt.Sprintf("%s must use steps of 0.1", e.Field)
	default:
		return fmt.Sprintf("%s is invalid", e.Field)
	}
}

// ValidationError lists every field outside its domain.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Error()
	}
	return "invalid patient features: " + strings.Join(parts, "; ")
}

// Validate checks every field against the domain the form widgets allow.
func (p PatientFeatures) Validate() error {
	err := validate.Struct(p)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{Field: fe.Field(), Tag: fe.Tag(), Param: fe.Param()})
	}
	return out
}

func fieldBounds(field string) (string, string) {
	switch field {
	case "age":
		return "0", "120"
	case "trestbps":
		return "0", "250"
	case "chol":
		return "0", "600"
	case "thalach":
		return "0", "220"
	case "oldpeak":
		return "0.0", "10.0"
	}
	return "?", "?"
}
