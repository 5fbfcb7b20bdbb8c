package main

import (
	"context"
	"fmt"
	"log"

	"github.com/arkhai-io/alkahest-sub000/internal/app"
	awsclient "github.com/arkhai-io/alkahest-sub000/internal/client/aws"
	"github.com/arkhai-io/alkahest-sub000/internal/config"
	"github.com/arkhai-io/alkahest-sub000/internal/helpers"
	"github.com/arkhai-io/alkahest-sub000/internal/logger"
	"github.com/arkhai-io/alkahest-sub000/internal/oracle"
	"github.com/arkhai-io/alkahest-sub000/internal/server"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"
)

// Sweeper re-runs arbitration over undecided history, picking up requests
// whose decisions failed to land
type Sweeper struct {
	app *app.Application
}

// Sweep runs one past-unarbitrated sweep
func (s *Sweeper) Sweep(ctx context.Context) (server.SweepResponse, error) {
	log := logger.ForComponent(logger.ComponentSweeper)
	log.Info("Starting arbitration sweep")

	result, err := s.app.Run(ctx, oracle.ModePastUnarbitrated, 0)
	if err != nil {
		log.Error("Arbitration sweep failed", zap.Error(err))
		return server.SweepResponse{}, fmt.Errorf("Sweep: %w", err)
	}

	log.Info("Arbitration sweep finished",
		zap.Int("decisions", len(result.PastDecisions)),
		zap.Int("failed", len(result.Failed)),
	)
	return server.SweepResponse{Decisions: len(result.PastDecisions), Failed: len(result.Failed)}, nil
}

// HandleRequest runs a sweep for scheduled invocations
func (s *Sweeper) HandleRequest(ctx context.Context) error {
	_, err := s.Sweep(ctx)
	return err
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Printf("Warning: %v", err)
	}

	ctx := context.Background()

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
	logger.Info("Initializing arbitration sweeper", zap.String("stage", cfg.Stage))

	application, err := app.Build(ctx, cfg, logger.ForComponent(logger.ComponentSweeper))
	if err != nil {
		logger.Fatal("Failed to initialize oracle", zap.Error(err))
	}
	defer application.Close()

	sweeper := &Sweeper{app: application}
	if cfg.Stage == helpers.StageLocal {
		if err := sweeper.HandleRequest(ctx); err != nil {
			logger.Fatal("Sweep failed", zap.Error(err))
		}
		return
	}

	// API Gateway requests reach the status API; scheduled events sweep
	api := server.New(cfg.StatusAddr, application.Oracle)
	api.HandleSweeps(sweeper.Sweep)
	lambda.Start(api.Lambda(sweeper.HandleRequest).Invoke)
}
