package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/adversarial"
	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/alerts"
	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/analyzer"
	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/checkpoints"
	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/common/config"
	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/common/database"
	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/common/kafka"
	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/common/logger"
	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/node"
	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/store"
	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/validator"
)

func main() {
	logger.Init()
	cfg := config.Load()

	redisClient := database.GetRedis()
	jobStore := store.NewRedisStore(redisClient)

	producer := kafka.NewProducer(kafka.TopicTrainingEvents)
	defer producer.Close()
	alertProducer := kafka.NewProducer(kafka.TopicIntegrityAlerts)
	defer alertProducer.Close()

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to connect to postgres")
	}

	alertRepo := alerts.NewRepository(db, alertProducer)
	if err := alertRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("Failed to migrate alert schema")
	}
	checkpointRepo := checkpoints.NewRepository(db)
	if err := checkpointRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("Failed to migrate checkpoint schema")
	}

	integrityValidator, err := validator.New(validator.OptionsFromConfig(cfg), alertRepo)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to build integrity validator")
	}

	generator := adversarial.NewGenerator(cfg.ArtifactDir)
	if err := generator.LoadModel("latest"); err != nil {
		logger.Log.WithError(err).Info("No saved model, starting from fresh weights")
	}

	trainingNode := node.New(generator, integrityValidator, jobStore, producer, checkpointRepo, node.Options{
		ID:                 cfg.NodeID,
		ValidationSplit:    cfg.ValidationSplit,
		CheckpointInterval: cfg.CheckpointInterval,
		CheckpointRetain:   cfg.CheckpointRetain,
		MaxGradientNorm:    cfg.MaxGradientNorm,
	})

	patternAnalyzer := analyzer.New(
		integrityValidator,
		generator,
		analyzer.NewRedisLiquidityProvider(redisClient),
		analyzer.NewRedisRouteFinder(redisClient),
		analyzer.Options{
			MinTransactions: cfg.MinPatternTransactions,
			MaxTrackingAge:  cfg.MaxTrackingAge,
			BaselineGasGwei: cfg.BaselineGasGwei,
		},
	)

	router := trainingNode.Router()
	router.HandleFunc("/observe", patternAnalyzer.ObserveHandler()).Methods("POST")

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host":    cfg.ServerHost,
			"port":    cfg.ServerPort,
			"node_id": cfg.NodeID,
		}).Info("Training node started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down training node...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}

	if err := generator.SaveModel("latest"); err != nil {
		logger.Log.WithError(err).Error("Failed to persist model weights")
	}

	logger.Log.Info("Training node exited")
}
