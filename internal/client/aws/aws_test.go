package aws_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	awsclient "github.com/arkhai-io/alkahest-sub000/internal/client/aws"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSecrets struct {
	mock.Mock
}

func (m *mockSecrets) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	args := m.Called(ctx, aws.ToString(params.SecretId))
	if out := args.Get(0); out != nil {
		return out.(*secretsmanager.GetSecretValueOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockSQS struct {
	mock.Mock
}

func (m *mockSQS) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	args := m.Called(ctx, params)
	if out := args.Get(0); out != nil {
		return out.(*sqs.SendMessageOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestGetSecretString(t *testing.T) {
	ctx := context.Background()
	const arn = "arn:aws:secretsmanager:us-east-1:000000000000:secret:oracle"

	t.Run("reads from secrets manager", func(t *testing.T) {
		t.Setenv("TEST_KEY_ARN", arn)
		t.Setenv("TEST_KEY", "")
		svc := &mockSecrets{}
		svc.On("GetSecretValue", mock.Anything, arn).
			Return(&secretsmanager.GetSecretValueOutput{SecretString: aws.String("0xabc")}, nil).Once()

		got, err := awsclient.NewSecretsManagerClientWithAPI(svc).GetSecretString(ctx, "TEST_KEY_ARN", "TEST_KEY")
		require.NoError(t, err)
		assert.Equal(t, "0xabc", got)
		svc.AssertExpectations(t)
	})

	t.Run("falls back to env var on fetch failure", func(t *testing.T) {
		t.Setenv("TEST_KEY_ARN", arn)
		t.Setenv("TEST_KEY", "0xdef")
		svc := &mockSecrets{}
		svc.On("GetSecretValue", mock.Anything, arn).Return(nil, errors.New("access denied")).Once()

		got, err := awsclient.NewSecretsManagerClientWithAPI(svc).GetSecretString(ctx, "TEST_KEY_ARN", "TEST_KEY")
		require.NoError(t, err)
		assert.Equal(t, "0xdef", got)
	})

	t.Run("no arn and no fallback", func(t *testing.T) {
		t.Setenv("TEST_KEY_ARN", "")
		t.Setenv("TEST_KEY", "")

		_, err := awsclient.NewSecretsManagerClientWithAPI(&mockSecrets{}).GetSecretString(ctx, "TEST_KEY_ARN", "TEST_KEY")
		assert.Error(t, err)
	})
}

func TestGetSignerKey(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		secret  string
		want    string
		wantErr bool
	}{
		{name: "raw hex", secret: "0xabc", want: "0xabc"},
		{name: "json object", secret: `{"private_key":"0xabc"}`, want: "0xabc"},
		{name: "json without key", secret: `{"other":"x"}`, wantErr: true},
		{name: "broken json", secret: `{"private_key":`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_SIGNER_ARN", "")
			t.Setenv("TEST_SIGNER", tt.secret)

			got, err := awsclient.NewSecretsManagerClientWithAPI(&mockSecrets{}).GetSignerKey(ctx, "TEST_SIGNER_ARN", "TEST_SIGNER")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFailureQueue_Publish(t *testing.T) {
	const queueURL = "https://sqs.us-east-1.amazonaws.com/000000000000/oracle-failures"
	msg := awsclient.FailureMessage{
		Obligation:  "0x01",
		Oracle:      "0x02",
		Demand:      "0x",
		DecisionKey: "0x03",
		Decision:    true,
		Error:       "transaction reverted",
		FailedAt:    time.Unix(1_700_000_000, 0).UTC(),
	}

	t.Run("sends the encoded message", func(t *testing.T) {
		client := &mockSQS{}
		client.On("SendMessage", mock.Anything, mock.MatchedBy(func(in *sqs.SendMessageInput) bool {
			var got awsclient.FailureMessage
			if err := json.Unmarshal([]byte(aws.ToString(in.MessageBody)), &got); err != nil {
				return false
			}
			if !got.FailedAt.Equal(msg.FailedAt) {
				return false
			}
			got.FailedAt = msg.FailedAt
			return aws.ToString(in.QueueUrl) == queueURL &&
				got == msg &&
				aws.ToString(in.MessageAttributes["Oracle"].StringValue) == "0x02"
		})).Return(&sqs.SendMessageOutput{}, nil).Once()

		err := awsclient.NewFailureQueueWithClient(client, queueURL).Publish(context.Background(), msg)
		require.NoError(t, err)
		client.AssertExpectations(t)
	})

	t.Run("send error", func(t *testing.T) {
		client := &mockSQS{}
		client.On("SendMessage", mock.Anything, mock.Anything).Return(nil, errors.New("throttled")).Once()

		err := awsclient.NewFailureQueueWithClient(client, queueURL).Publish(context.Background(), msg)
		assert.ErrorContains(t, err, "throttled")
	})
}

func TestLoadConfig_LocalEndpoint(t *testing.T) {
	ctx := context.Background()
	const endpoint = "http://localhost:4566"
	t.Setenv("AWS_LOCAL_ENDPOINT", endpoint)
	t.Setenv("AWS_LOCAL_REGION", "")
	t.Setenv("AWS_LOCAL_ACCESS_KEY_ID", "local-key")
	t.Setenv("AWS_LOCAL_SECRET_ACCESS_KEY", "")

	local := awsclient.LocalEndpointFromEnv()
	require.NotNil(t, local)
	assert.Equal(t, "us-east-1", local.Region)
	assert.Equal(t, "test", local.SecretAccessKey)

	cfg, err := awsclient.LoadConfig(ctx, local)
	require.NoError(t, err)
	assert.Equal(t, endpoint, aws.ToString(cfg.BaseEndpoint))
	assert.Equal(t, "us-east-1", cfg.Region)

	creds, err := cfg.Credentials.Retrieve(ctx)
	require.NoError(t, err)
	assert.Equal(t, "local-key", creds.AccessKeyID)
	assert.Equal(t, "test", creds.SecretAccessKey)
	assert.Equal(t, credentials.StaticCredentialsName, creds.Source)

	queue, err := awsclient.NewFailureQueue(ctx, endpoint+"/000000000000/oracle-failures")
	require.NoError(t, err)
	assert.NotNil(t, queue)
}

func TestLocalEndpointFromEnv_Unset(t *testing.T) {
	t.Setenv("AWS_LOCAL_ENDPOINT", "")
	assert.Nil(t, awsclient.LocalEndpointFromEnv())
}
