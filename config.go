package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"

	"heartrisk/monitoring"
)

type Config struct {
	Http struct {
		Port         int           `yaml:"port"`
		Timeout      time.Duration `yaml:"timeout"`
		MaxBodyBytes int64         `yaml:"max_body_bytes"`
	} `yaml:"http"`
	ML struct {
		ModelPath     string        `yaml:"model_path"`
		RemoteURL     string        `yaml:"remote_url"`
		RemoteTimeout time.Duration `yaml:"remote_timeout"`
		WatchArtifact bool          `yaml:"watch_artifact"`
	} `yaml:"ml"`
	Log monitoring.LogConfig `yaml:"log"`
	UI  struct {
		DefaultLanguage   string `yaml:"default_language"`
		FormTokenCapacity int    `yaml:"form_token_capacity"`
	} `yaml:"ui"`
}

func defaultConfig() *Config {
	var config Config
	config.Http.Port = 8080
	config.Http.Timeout = 30 * time.Second
	config.Http.MaxBodyBytes = 64 << 10
	config.ML.ModelPath = "models/heart_model.json"
	config.ML.RemoteTimeout = 10 * time.Second
	config.ML.WatchArtifact = true
	config.Log = monitoring.DefaultLogConfig()
	config.UI.DefaultLanguage = "en"
	config.UI.FormTokenCapacity = 4096
	return &config
}

// loadConfig reads path on top of the defaults. A missing file is not an
// error; environment variables override both.
func loadConfig(path string) (*Config, error) {
	config := defaultConfig()

	file, err := os.Open(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		defer file.Close()
		if err := yaml.NewDecoder(file).Decode(config); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	}

	if err := applyEnv(config); err != nil {
		return nil, err
	}
	return config, nil
}

func applyEnv(config *Config) error {
	if v := os.Getenv("HEARTRISK_MODEL_PATH"); v != "" {
		config.ML.ModelPath = v
	}
	if v := os.Getenv("HEARTRISK_REMOTE_URL"); v != "" {
		config.ML.RemoteURL = v
	}
	if v := os.Getenv("HEARTRISK_LOG_LEVEL"); v != "" {
		config.Log.Level = v
	}
	if v := os.Getenv("HEARTRISK_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid HEARTRISK_PORT %q: %w", v, err)
		}
		config.Http.Port = port
	}
	return nil
}
