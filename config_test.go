package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	config, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if config.Http.Port != 8080 || config.ML.ModelPath != "models/heart_model.json" {
		t.Fatalf("unexpected defaults: %+v", config)
	}
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
http:
  port: 9090
  timeout: 5s
ml:
  model_path: /srv/models/best_heart_model.json
log:
  level: debug
ui:
  default_language: de
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("HEARTRISK_PORT", "7070")

	config, err := loadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if config.Http.Port != 7070 {
		t.Fatalf("env must override file, got port %d", config.Http.Port)
	}
	if config.Http.Timeout != 5*time.Second {
		t.Fatalf("unexpected timeout %v", config.Http.Timeout)
	}
	if config.ML.ModelPath != "/srv/models/best_heart_model.json" || config.Log.Level != "debug" || config.UI.DefaultLanguage != "de" {
		t.Fatalf("unexpected config: %+v", config)
	}
	// untouched keys keep their defaults
	if config.UI.FormTokenCapacity != 4096 || !config.ML.WatchArtifact {
		t.Fatalf("defaults lost: %+v", config)
	}
}

func TestLoadConfigInvalidPort(t *testing.T) {
	t.Setenv("HEARTRISK_PORT", "http")
	if _, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestLoadModelFromConfig(t *testing.T) {
	config := defaultConfig()
	config.ML.ModelPath = filepath.Join("models", "heart_model.json")
	model, err := loadModel(context.Background(), config)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !model.SupportsProbability() {
		t.Fatal("bundled model should support probability")
	}

	config.ML.ModelPath = filepath.Join(t.TempDir(), "best_heart_model.pkl")
	if _, err := loadModel(context.Background(), config); err == nil {
		t.Fatal("expected missing artifact to fail")
	}
}
