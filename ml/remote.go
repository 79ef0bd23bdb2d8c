package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// RemoteClassifier talks to a scoring sidecar that hosts an estimator Go
// cannot deserialize itself (e.g. a joblib pickle).
//
// Sidecar contract:
//
//	GET  /capabilities  -> {"name": "...", "n_features": 13, "classes": [0,1], "predict_proba": true}
//	POST /predict       {"instances": [[...13 values]]} -> {"labels": [1]}
//	POST /predict_proba {"instances": [[...13 values]]} -> {"probabilities": [[0.2, 0.8]]}
type RemoteClassifier struct {
	baseURL    string
	httpClient *http.Client
}

type remoteCapabilities struct {
	Name         string `json:"name"`
	NFeatures    int    `json:"n_features"`
	Classes      []int  `json:"classes"`
	PredictProba bool   `json:"predict_proba"`
}

type remoteRequest struct {
	Instances [][]float64 `json:"instances"`
}

type remoteLabels struct {
	Labels []int `json:"labels"`
}

type remoteProbabilities struct {
	Probabilities [][]float64 `json:"probabilities"`
}

// NewRemoteClassifier creates a client for the sidecar at baseURL.
func NewRemoteClassifier(baseURL string, timeout time.Duration) *RemoteClassifier {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RemoteClassifier{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// LoadRemoteModel asks the sidecar what it can do and returns a Model with
// the matching capability. Probability support is fixed from this answer.
func LoadRemoteModel(ctx context.Context, baseURL string, timeout time.Duration) (*Model, error) {
	rc := NewRemoteClassifier(baseURL, timeout)

	var caps remoteCapabilities
	if err := rc.do(ctx, http.MethodGet, "/capabilities", nil, &caps); err != nil {
		return nil, fmt.Errorf("remote_model: fetch capabilities: %w", err)
	}
	if caps.NFeatures != FeatureCount {
		return nil, fmt.Errorf("remote_model: %w: scorer expects %d features", ErrFeatureMismatch, caps.NFeatures)
	}
	if err := checkClasses(caps.Classes); err != nil {
		return nil, fmt.Errorf("remote_model: %w", err)
	}

	name := caps.Name
	if name == "" {
		name = "remote"
	}
	if caps.PredictProba {
		return NewModel(name, rc), nil
	}
	return NewLabelOnlyModel(name, rc), nil
}

func (rc *RemoteClassifier) Predict(ctx context.Context, features []float64) (int, error) {
	var resp remoteLabels
	if err := rc.do(ctx, http.MethodPost, "/predict", remoteRequest{Instances: [][]float64{features}}, &resp); err != nil {
		return 0, fmt.Errorf("remote_model: predict: %w", err)
	}
	if len(resp.Labels) != 1 {
		return 0, fmt.Errorf("remote_model: predict returned %d labels", len(resp.Labels))
	}
	return resp.Labels[0], nil
}

func (rc *RemoteClassifier) PredictProba(ctx context.Context, features []float64) ([]float64, error) {
	var resp remoteProbabilities
	if err := rc.do(ctx, http.MethodPost, "/predict_proba", remoteRequest{Instances: [][]float64{features}}, &resp); err != nil {
		return nil, fmt.Errorf("remote_model: predict_proba: %w", err)
	}
	if len(resp.Probabilities) != 1 {
		return nil, fmt.Errorf("remote_model: predict_proba returned %d rows", len(resp.Probabilities))
	}
	return resp.Probabilities[0], nil
}

func (rc *RemoteClassifier) do(ctx context.Context, method, path string, body, out interface{}) error {
	var payload *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		payload = bytes.NewReader(raw)
	} else {
		payload = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, rc.baseURL+path, payload)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := rc.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("scorer returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
