package aws

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/arkhai-io/alkahest-sub000/internal/logger"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"
)

// SQSAPI is the subset of the SQS client used by FailureQueue
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// FailureMessage describes a decision whose submission failed
type FailureMessage struct {
	Obligation  string    `json:"obligation"`
	Oracle      string    `json:"oracle"`
	Demand      string    `json:"demand"`
	DecisionKey string    `json:"decision_key"`
	Decision    bool      `json:"decision"`
	Error       string    `json:"error"`
	FailedAt    time.Time `json:"failed_at"`
}

// FailureQueue publishes failed decision submissions to SQS for later sweeping
type FailureQueue struct {
	client   SQSAPI
	queueURL string
}

// NewFailureQueue creates a FailureQueue using the default AWS configuration
// chain, or the local endpoint when AWS_LOCAL_ENDPOINT is set
func NewFailureQueue(ctx context.Context, queueURL string) (*FailureQueue, error) {
	cfg, err := LoadConfig(ctx, LocalEndpointFromEnv())
	if err != nil {
		return nil, err
	}
	return NewFailureQueueWithClient(sqs.NewFromConfig(cfg), queueURL), nil
}

// NewFailureQueueWithClient wraps an existing SQS client
func NewFailureQueueWithClient(client SQSAPI, queueURL string) *FailureQueue {
	return &FailureQueue{client: client, queueURL: queueURL}
}

// Publish sends a failure record to the queue
func (q *FailureQueue) Publish(ctx context.Context, msg FailureMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal failure message: %w", err)
	}

	_, err = q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"Oracle": {
				StringValue: aws.String(msg.Oracle),
				DataType:    aws.String("String"),
			},
			"Obligation": {
				StringValue: aws.String(msg.Obligation),
				DataType:    aws.String("String"),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send message to SQS: %w", err)
	}

	logger.Log.Info("Queued failed decision",
		zap.String("obligation", msg.Obligation),
		zap.String("oracle", msg.Oracle),
	)
	return nil
}
