package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	qhttp "heartrisk/http"
	"heartrisk/ml"
	"heartrisk/monitoring"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// .env is optional
	_ = godotenv.Load()

	// 1. Load config
	config, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := monitoring.NewLogger(config.Log)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Load the model once; the process cannot serve without it
	model, err := loadModel(ctx, config)
	if err != nil {
		logger.Fatal("failed to load model", zap.Error(err))
	}
	logger.Info("model loaded",
		zap.String("model", model.Name()),
		zap.Bool("probability", model.SupportsProbability()))

	if config.ML.RemoteURL == "" && config.ML.WatchArtifact {
		watcher, err := monitoring.NewArtifactWatcher(config.ML.ModelPath, logger)
		if err != nil {
			logger.Warn("artifact watcher disabled", zap.Error(err))
		} else {
			go watcher.Run(ctx)
		}
	}

	// 3. Start HTTP server
	serverConfig := qhttp.DefaultServerConfig()
	serverConfig.Port = config.Http.Port
	serverConfig.Timeout = config.Http.Timeout
	serverConfig.MaxBodyBytes = config.Http.MaxBodyBytes
	serverConfig.DefaultLanguage = config.UI.DefaultLanguage
	serverConfig.FormTokenCapacity = config.UI.FormTokenCapacity

	handler, err := qhttp.NewHandler(model, logger, monitoring.NewMetricsCollector(), serverConfig)
	if err != nil {
		logger.Fatal("failed to create handler", zap.Error(err))
	}
	server := qhttp.NewServer(serverConfig, handler, logger)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// 4. Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	if err := server.Stop(); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("exiting")
}

func loadModel(ctx context.Context, config *Config) (*ml.Model, error) {
	if config.ML.RemoteURL != "" {
		return ml.LoadRemoteModel(ctx, config.ML.RemoteURL, config.ML.RemoteTimeout)
	}
	return ml.LoadModel(config.ML.ModelPath)
}
