package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"heartrisk/ml"
	"heartrisk/monitoring"
)

func main() {
	modelPath := flag.String("model_path", "./models/heart_model.json", "model artifact path")
	remoteURL := flag.String("remote_url", "", "scoring sidecar base url, overrides model_path")
	vector := flag.String("vector", "", "13 comma separated values in training order")
	input := flag.String("input", "", "json file with one patient, - for stdin")
	timeout := flag.Duration("timeout", 10*time.Second, "remote call timeout")
	flag.Parse()

	logCfg := monitoring.DefaultLogConfig()
	logCfg.Level = "warn"
	logger, err := monitoring.NewLogger(logCfg)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	features, err := readFeatures(*vector, *input)
	if errors.Is(err, errNoInput) {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Fatal("invalid input", zap.Error(err))
	}
	if err := features.Validate(); err != nil {
		logger.Fatal("invalid input", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout+time.Second)
	defer cancel()

	var model *ml.Model
	if *remoteURL != "" {
		model, err = ml.LoadRemoteModel(ctx, *remoteURL, *timeout)
	} else {
		model, err = ml.LoadModel(*modelPath)
	}
	if err != nil {
		logger.Fatal("failed to load model", zap.Error(err))
	}

	prediction, err := ml.Infer(ctx, model, features)
	if err != nil {
		logger.Fatal("prediction failed", zap.Error(err))
	}
	fmt.Println(formatPrediction(prediction))
}

var errNoInput = errors.New("one of -vector or -input is required")

func readFeatures(vector, input string) (ml.PatientFeatures, error) {
	switch {
	case vector != "" && input != "":
		return ml.PatientFeatures{}, fmt.Errorf("use either -vector or -input")
	case vector != "":
		return parseVector(vector)
	case input != "":
		file := os.Stdin
		if input != "-" {
			f, err := os.Open(input)
			if err != nil {
				return ml.PatientFeatures{}, err
			}
			defer f.Close()
			file = f
		}
		features := ml.DefaultPatientFeatures()
		decoder := json.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&features); err != nil {
			return ml.PatientFeatures{}, fmt.Errorf("decode %s: %w", input, err)
		}
		return features, nil
	default:
		return ml.PatientFeatures{}, errNoInput
	}
}

func parseVector(s string) (ml.PatientFeatures, error) {
	parts := strings.Split(s, ",")
	values := make([]float64, 0, len(parts))
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return ml.PatientFeatures{}, fmt.Errorf("value %d: %w", i+1, err)
		}
		values = append(values, v)
	}
	return ml.FeaturesFromVector(values)
}

func formatPrediction(p ml.Prediction) string {
	out := fmt.Sprintf("label=%d risk=%q", int(p.Label), p.Label.String())
	if pct, ok := p.DisplayProbability(); ok {
		out += fmt.Sprintf(" probability=%.1f%%", pct)
	}
	return out
}
