package ml

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sync"
	"testing"
)

func referenceLogistic() *LogisticRegression {
	return &LogisticRegression{linearModel{
		Coef:      []float64{-0.071, -0.782, 0.868, -0.281, -0.183, 0.041, 0.172, 0.419, -0.448, -0.562, 0.371, -0.819, -0.578},
		Intercept: 0.152,
		Scaler: &StandardScaler{
			Mean:  []float64{54.37, 0.683, 0.967, 131.62, 246.26, 0.149, 0.528, 149.65, 0.327, 1.040, 1.399, 0.729, 2.314},
			Scale: []float64{9.07, 0.466, 1.031, 17.51, 51.75, 0.356, 0.525, 22.87, 0.470, 1.159, 0.616, 1.021, 0.612},
		},
	}}
}

func maxPatientFeatures() PatientFeatures {
	return PatientFeatures{
		Age: 120, Sex: 1, CP: 3, Trestbps: 250, Chol: 600, FBS: 1, RestECG: 2,
		Thalach: 220, Exang: 1, Oldpeak: 10.0, Slope: 2, CA: 4, Thal: 3,
	}
}

type stubClassifier struct {
	label int
	proba []float64
	err   error
	calls int
}

func (s *stubClassifier) Predict(ctx context.Context, features []float64) (int, error) {
	s.calls++
	return s.label, s.err
}

func (s *stubClassifier) PredictProba(ctx context.Context, features []float64) ([]float64, error) {
	return s.proba, s.err
}

type labelOnlyStub struct {
	label int
}

func (s labelOnlyStub) Predict(ctx context.Context, features []float64) (int, error) {
	return s.label, nil
}

func TestInferWellFormedAcrossDomain(t *testing.T) {
	models := []*Model{
		NewModel("logreg", referenceLogistic()),
		NewModel("tree", cholesterolTree()),
		NewModel("svc", &LinearSVC{linearModel{Coef: referenceLogistic().Coef, Scaler: referenceLogistic().Scaler}}),
	}
	vectors := []PatientFeatures{DefaultPatientFeatures(), {}, maxPatientFeatures()}
	for age := 0; age <= 120; age += 30 {
		for chol := 0; chol <= 600; chol += 150 {
			f := DefaultPatientFeatures()
			f.Age, f.Chol, f.Oldpeak, f.CA = age, chol, float64(age)/20, age%5
			vectors = append(vectors, f)
		}
	}

	for _, model := range models {
		for _, f := range vectors {
			result, err := Infer(context.Background(), model, f)
			if err != nil {
				t.Fatalf("%s: unexpected error for %+v: %v", model.Name(), f, err)
			}
			if result.Label != LowRisk && result.Label != HighRisk {
				t.Fatalf("%s: unexpected label %d", model.Name(), result.Label)
			}
			if result.HasProbability != model.SupportsProbability() {
				t.Fatalf("%s: probability presence mismatch", model.Name())
			}
			if result.PositiveProbability < 0 || result.PositiveProbability > 1 {
				t.Fatalf("%s: probability out of range: %v", model.Name(), result.PositiveProbability)
			}
		}
	}
}

func TestInferIdempotent(t *testing.T) {
	model := NewModel("logreg", referenceLogistic())
	f := maxPatientFeatures()
	first, err := Infer(context.Background(), model, f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := Infer(context.Background(), model, f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second {
		t.Fatalf("expected identical results, got %+v and %+v", first, second)
	}
}

func TestInferReferenceScenario(t *testing.T) {
	f, err := FeaturesFromVector([]float64{63, 1, 3, 145, 233, 1, 0, 150, 0, 2.3, 0, 0, 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result, err := Infer(context.Background(), NewModel("logreg", referenceLogistic()), f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Label != LowRisk && result.Label != HighRisk {
		t.Fatalf("unexpected label %d", result.Label)
	}
	shown, ok := result.DisplayProbability()
	if !ok {
		t.Fatal("expected probability")
	}
	p := result.PositiveProbability
	want := (1 - p) * 100
	if result.Label == HighRisk {
		want = p * 100
	}
	if fmt.Sprintf("%.1f", shown) != fmt.Sprintf("%.1f", want) {
		t.Fatalf("displayed %.1f, want %.1f", shown, want)
	}
}

func TestDisplayProbabilityPerBranch(t *testing.T) {
	high := Prediction{Label: HighRisk, PositiveProbability: 0.8, HasProbability: true}
	if v, _ := high.DisplayProbability(); math.Abs(v-80) > 1e-9 {
		t.Fatalf("expected 80, got %v", v)
	}
	low := Prediction{Label: LowRisk, PositiveProbability: 0.2, HasProbability: true}
	if v, _ := low.DisplayProbability(); math.Abs(v-80) > 1e-9 {
		t.Fatalf("expected 80, got %v", v)
	}
	none := Prediction{Label: HighRisk}
	if _, ok := none.DisplayProbability(); ok {
		t.Fatal("expected no probability")
	}
}

func TestInferLabelOnlyModel(t *testing.T) {
	model := NewModel("svc", labelOnlyStub{label: 1})
	if model.SupportsProbability() {
		t.Fatal("label-only classifier must not advertise probability")
	}
	result, err := Infer(context.Background(), model, DefaultPatientFeatures())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.HasProbability {
		t.Fatal("expected probability to be absent")
	}
	if result.Label != HighRisk {
		t.Fatalf("expected high risk, got %v", result.Label)
	}
	if _, err := model.PredictProba(context.Background(), nil); !errors.Is(err, ErrNoProbability) {
		t.Fatalf("expected ErrNoProbability, got %v", err)
	}
}

func TestNewLabelOnlyModelHidesProbability(t *testing.T) {
	model := NewLabelOnlyModel("forced", &stubClassifier{label: 0, proba: []float64{1, 0}})
	if model.SupportsProbability() {
		t.Fatal("expected label-only model")
	}
}

func TestInferErrors(t *testing.T) {
	cases := []struct {
		name string
		stub *stubClassifier
		want error
	}{
		{"label outside range", &stubClassifier{label: 2, proba: []float64{0.5, 0.5}}, ErrUnexpectedLabel},
		{"three classes", &stubClassifier{label: 1, proba: []float64{0.2, 0.3, 0.5}}, ErrMalformedProbability},
		{"probability above one", &stubClassifier{label: 1, proba: []float64{-0.5, 1.5}}, ErrMalformedProbability},
		{"probability NaN", &stubClassifier{label: 1, proba: []float64{0, math.NaN()}}, ErrMalformedProbability},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Infer(context.Background(), NewModel("stub", tc.stub), DefaultPatientFeatures())
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	boom := errors.New("boom")
	_, err := Infer(context.Background(), NewModel("stub", &stubClassifier{err: boom}), DefaultPatientFeatures())
	if !errors.Is(err, boom) {
		t.Fatalf("expected model error to propagate, got %v", err)
	}
}

// Run with -race: the loaded model is shared by every request without locks.
func TestInferConcurrentSharedModel(t *testing.T) {
	model, err := LoadModel(filepath.Join("..", "models", "heart_model.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f, err := FeaturesFromVector([]float64{63, 1, 3, 145, 233, 1, 0, 150, 0, 2.3, 0, 0, 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want, err := Infer(context.Background(), model, f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	const workers = 32
	results := make([]Prediction, workers*10)
	errs := make([]error, len(results))
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				idx := w*10 + i
				input := f
				if i%2 == 1 {
					input = maxPatientFeatures()
				}
				results[idx], errs[idx] = Infer(context.Background(), model, input)
			}
		}(w)
	}
	wg.Wait()

	for i, got := range results {
		if errs[i] != nil {
			t.Fatalf("call %d: unexpected error: %v", i, errs[i])
		}
		if i%2 == 0 && got != want {
			t.Fatalf("call %d: got %+v, want %+v", i, got, want)
		}
		if !got.HasProbability || got.PositiveProbability < 0 || got.PositiveProbability > 1 {
			t.Fatalf("call %d: malformed result %+v", i, got)
		}
	}
}
