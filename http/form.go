package http

import (
	"errors"
	"net/url"
	"strconv"
	"strings"

	"heartrisk/ml"
)

type optionSpec struct {
	Value string
	Label string
}

// fieldSpec describes one form control. formFields is in training column order.
type fieldSpec struct {
	Name    string
	Label   string
	Number  bool
	Float   bool
	Min     string
	Max     string
	Step    string
	Options []optionSpec
	Column  int
}

func numbered(values ...string) []optionSpec {
	opts := make([]optionSpec, len(values))
	for i, v := range values {
		opts[i] = optionSpec{Value: v, Label: v}
	}
	return opts
}

var yesNo = []optionSpec{{Value: "0", Label: "No"}, {Value: "1", Label: "Yes"}}

var formFields = []fieldSpec{
	{Name: "age", Label: "Age", Number: true, Min: "0", Max: "120", Step: "1", Column: 0},
	{Name: "sex", Label: "Sex", Options: []optionSpec{{Value: "0", Label: "Female"}, {Value: "1", Label: "Male"}}, Column: 0},
	{Name: "cp", Label: "Chest Pain Type", Options: numbered("0", "1", "2", "3"), Column: 0},
	{Name: "trestbps", Label: "Resting Blood Pressure", Number: true, Min: "0", Max: "250", Step: "1", Column: 0},
	{Name: "chol", Label: "Serum Cholesterol", Number: true, Min: "0", Max: "600", Step: "1", Column: 0},
	{Name: "fbs", Label: "Fasting Blood Sugar >120 mg/dl", Options: yesNo, Column: 0},
	{Name: "restecg", Label: "Resting ECG", Options: numbered("0", "1", "2"), Column: 1},
	{Name: "thalach", Label: "Max Heart Rate Achieved", Number: true, Min: "0", Max: "220", Step: "1", Column: 1},
	{Name: "exang", Label: "Exercise Induced Angina", Options: yesNo, Column: 1},
	{Name: "oldpeak", Label: "ST Depression", Number: true, Float: true, Min: "0.0", Max: "10.0", Step: "0.1", Column: 1},
	{Name: "slope", Label: "Slope of ST Segment", Options: numbered("0", "1", "2"), Column: 1},
	{Name: "ca", Label: "Major Vessels Colored", Options: numbered("0", "1", "2", "3", "4"), Column: 1},
	{Name: "thal", Label: "Thalassemia", Options: numbered("1", "2", "3"), Column: 1},
}

// defaultFormValues matches ml.DefaultPatientFeatures.
func defaultFormValues() map[string]string {
	values := make(map[string]string, len(formFields))
	defaults := ml.DefaultPatientFeatures().Vector()
	for i, field := range formFields {
		if field.Float {
			values[field.Name] = strconv.FormatFloat(defaults[i], 'f', 1, 64)
		} else {
			values[field.Name] = strconv.Itoa(int(defaults[i]))
		}
	}
	return values
}

// submittedValues keeps what the user typed so the form can be re-rendered.
func submittedValues(form url.Values) map[string]string {
	values := make(map[string]string, len(formFields))
	for _, field := range formFields {
		values[field.Name] = strings.TrimSpace(form.Get(field.Name))
	}
	return values
}

// decodePatientForm parses and validates a submission. The second return
// value maps field name to a message and is empty on success.
func decodePatientForm(form url.Values) (ml.PatientFeatures, map[string]string) {
	fieldErrors := make(map[string]string)
	vector := make([]float64, len(formFields))

	for i, field := range formFields {
		raw := strings.TrimSpace(form.Get(field.Name))
		if raw == "" {
			fieldErrors[field.Name] = field.Name + " is required"
			continue
		}
		if field.Float {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				fieldErrors[field.Name] = field.Name + " must be a number"
				continue
			}
			vector[i] = v
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			fieldErrors[field.Name] = field.Name + " must be a whole number"
			continue
		}
		vector[i] = float64(v)
	}
	if len(fieldErrors) > 0 {
		return ml.PatientFeatures{}, fieldErrors
	}

	features, err := ml.FeaturesFromVector(vector)
	if err != nil {
		fieldErrors["form"] = err.Error()
		return ml.PatientFeatures{}, fieldErrors
	}
	if err := features.Validate(); err != nil {
		var verr *ml.ValidationError
		if !errors.As(err, &verr) {
			fieldErrors["form"] = err.Error()
			return ml.PatientFeatures{}, fieldErrors
		}
		for _, fe := range verr.Fields {
			fieldErrors[fe.Field] = fe.Error()
		}
		return ml.PatientFeatures{}, fieldErrors
	}
	return features, fieldErrors
}
