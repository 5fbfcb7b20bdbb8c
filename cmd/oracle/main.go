package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arkhai-io/alkahest-sub000/internal/app"
	awsclient "github.com/arkhai-io/alkahest-sub000/internal/client/aws"
	"github.com/arkhai-io/alkahest-sub000/internal/config"
	"github.com/arkhai-io/alkahest-sub000/internal/logger"
	"github.com/arkhai-io/alkahest-sub000/internal/oracle"
	"github.com/arkhai-io/alkahest-sub000/internal/server"
	"go.uber.org/zap"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Printf("Warning: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	secrets, err := awsclient.NewSecretsManagerClient(ctx)
	if err != nil {
		log.Fatalf("Failed to initialize AWS Secrets Manager client: %v", err)
	}

	cfg, err := config.Load(ctx, secrets)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.InitLogger(cfg.Stage)
	defer func() {
		_ = logger.Sync()
	}()

	mode, err := oracle.ParseMode(cfg.Mode)
	if err != nil {
		logger.Fatal("Invalid ARBITRATION_MODE", zap.Error(err))
	}

	application, err := app.Build(ctx, cfg, logger.ForComponent(logger.ComponentOracle))
	if err != nil {
		logger.Fatal("Failed to initialize oracle", zap.Error(err))
	}
	defer application.Close()

	status := server.New(cfg.StatusAddr, application.Oracle)
	go func() {
		if err := status.Start(); err != nil {
			logger.Error("Status API stopped", zap.Error(err))
			stop()
		}
	}()

	logger.Info("Starting oracle",
		zap.String("stage", cfg.Stage),
		zap.String("oracle", application.Oracle.Address().Hex()),
		zap.String("mode", string(mode)),
		zap.Duration("timeout", cfg.ListenTimeout),
	)

	result, err := application.Run(ctx, mode, cfg.ListenTimeout)
	if err != nil {
		logger.Error("Arbitration failed", zap.Error(err))
	} else {
		logger.Info("Historical arbitration finished",
			zap.Int("decisions", len(result.PastDecisions)),
			zap.Int("failed", len(result.Failed)),
		)
		// live subscriptions keep running until a signal arrives
		if result.SubscriptionID != nil {
			<-ctx.Done()
		}
	}

	logger.Info("Shutting down oracle...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := status.Shutdown(shutdownCtx); err != nil {
		logger.Error("Status API forced to shutdown", zap.Error(err))
	}
	if err != nil {
		application.Close()
		_ = logger.Sync()
		os.Exit(1)
	}
}
