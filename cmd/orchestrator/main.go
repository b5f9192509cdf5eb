package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/common/config"
	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/common/database"
	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/common/kafka"
	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/common/logger"
	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/common/models"
	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/orchestrator"
	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/store"
)

func main() {
	logger.Init()
	cfg := config.Load()

	regions, err := config.LoadRegions(cfg.RegionsConfigPath)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to load regions config")
	}

	jobStore := store.NewRedisStore(database.GetRedis())
	producer := kafka.NewProducer(kafka.TopicTrainingEvents)
	defer producer.Close()

	client := orchestrator.NewNodeClient(cfg.NodeRequestTimeout)

	ctx := context.Background()
	orch, err := orchestrator.New(ctx, jobStore, client, producer, regions, orchestrator.Options{
		HealthCheckInterval: cfg.HealthCheckInterval,
		ModelSyncInterval:   cfg.ModelSyncInterval,
		RequestTimeout:      cfg.NodeRequestTimeout,
		LoadCeiling:         cfg.NodeLoadCeiling,
	})
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to build orchestrator")
	}
	if err := orch.Start(ctx); err != nil {
		logger.Log.WithError(err).Fatal("Failed to start orchestrator")
	}
	defer orch.Stop()

	// Mirror the node event stream into the structured log.
	consumerCtx, cancelConsumer := context.WithCancel(ctx)
	defer cancelConsumer()
	consumer := kafka.NewConsumer(kafka.TopicTrainingEvents, cfg.KafkaGroupID)
	go func() {
		defer consumer.Close()
		err := consumer.Consume(consumerCtx, func(ctx context.Context, event models.Event) error {
			logger.Log.WithFields(map[string]interface{}{
				"event_type": event.Type,
				"source":     event.Source,
			}).Info("Training event received")
			return nil
		})
		if err != nil && consumerCtx.Err() == nil {
			logger.Log.WithError(err).Error("Event consumer stopped")
		}
	}()

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      orch.Router(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host":    cfg.ServerHost,
			"port":    cfg.ServerPort,
			"regions": len(regions),
		}).Info("Orchestrator started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down orchestrator...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}

	logger.Log.Info("Orchestrator exited")
}
