package aws

import (
	"context"
	"fmt"
	"os"

	"github.com/arkhai-io/alkahest-sub000/internal/logger"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"go.uber.org/zap"
)

const (
	envLocalEndpoint  = "AWS_LOCAL_ENDPOINT"
	envLocalRegion    = "AWS_LOCAL_REGION"
	envLocalAccessKey = "AWS_LOCAL_ACCESS_KEY_ID"
	envLocalSecretKey = "AWS_LOCAL_SECRET_ACCESS_KEY"

	defaultLocalRegion = "us-east-1"
	defaultLocalKey    = "test"
)

// LocalEndpoint points the AWS clients at an emulator (LocalStack, ElasticMQ)
// with static credentials instead of the default provider chain.
type LocalEndpoint struct {
	URL             string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// LocalEndpointFromEnv reads AWS_LOCAL_ENDPOINT and its companions. It
// returns nil when no local endpoint is configured.
func LocalEndpointFromEnv() *LocalEndpoint {
	url := os.Getenv(envLocalEndpoint)
	if url == "" {
		return nil
	}
	return &LocalEndpoint{
		URL:             url,
		Region:          getEnv(envLocalRegion, defaultLocalRegion),
		AccessKeyID:     getEnv(envLocalAccessKey, defaultLocalKey),
		SecretAccessKey: getEnv(envLocalSecretKey, defaultLocalKey),
	}
}

// LoadConfig loads the AWS SDK configuration. With a local endpoint the
// clients use its URL, region and static credentials.
func LoadConfig(ctx context.Context, local *LocalEndpoint) (aws.Config, error) {
	var opts []func(*config.LoadOptions) error
	if local != nil {
		logger.Log.Info("Using local AWS endpoint", zap.String("endpoint", local.URL))
		opts = append(opts,
			config.WithRegion(local.Region),
			config.WithBaseEndpoint(local.URL),
			config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(local.AccessKeyID, local.SecretAccessKey, ""),
			),
		)
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("unable to load AWS SDK config: %w", err)
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
