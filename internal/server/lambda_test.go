package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/arkhai-io/alkahest-sub000/internal/oracle"
	"github.com/arkhai-io/alkahest-sub000/internal/server"
	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLambdaHandler_Invoke(t *testing.T) {
	ctx := context.Background()

	t.Run("proxies API Gateway requests", func(t *testing.T) {
		manager := new(MockManager)
		manager.On("Address").Return(oracleAddress)
		manager.On("Subscriptions").Return([]oracle.SubscriptionInfo{})

		fallbackCalled := false
		handler := server.New(":0", manager).Lambda(func(context.Context) error {
			fallbackCalled = true
			return nil
		})

		event, err := json.Marshal(events.APIGatewayProxyRequest{HTTPMethod: http.MethodGet, Path: "/health"})
		require.NoError(t, err)
		resp, err := handler.Invoke(ctx, event)
		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body server.HealthResponse
		require.NoError(t, json.Unmarshal([]byte(resp.Body), &body))
		assert.Equal(t, oracleAddress.Hex(), body.Oracle)
		assert.False(t, fallbackCalled)
	})

	t.Run("scheduled events run the fallback", func(t *testing.T) {
		calls := 0
		handler := server.New(":0", new(MockManager)).Lambda(func(context.Context) error {
			calls++
			return errors.New("sweep failed")
		})

		resp, err := handler.Invoke(ctx, json.RawMessage(`{"source":"aws.events","detail-type":"Scheduled Event"}`))
		assert.EqualError(t, err, "sweep failed")
		assert.Nil(t, resp)
		assert.Equal(t, 1, calls)
	})

	t.Run("no fallback", func(t *testing.T) {
		handler := server.New(":0", new(MockManager)).Lambda(nil)

		_, err := handler.Invoke(ctx, json.RawMessage(`{}`))
		assert.ErrorIs(t, err, server.ErrUnsupportedEvent)
	})
}

func TestServer_HandleSweeps(t *testing.T) {
	tests := []struct {
		name           string
		result         server.SweepResponse
		err            error
		expectedStatus int
	}{
		{name: "reports counts", result: server.SweepResponse{Decisions: 2, Failed: 1}, expectedStatus: http.StatusOK},
		{name: "sweep error", err: errors.New("rpc down"), expectedStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := server.New(":0", new(MockManager))
			srv.HandleSweeps(func(context.Context) (server.SweepResponse, error) {
				return tt.result, tt.err
			})

			w := httptest.NewRecorder()
			srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/sweeps", nil))
			require.Equal(t, tt.expectedStatus, w.Code)
			if tt.err != nil {
				return
			}
			var body server.SweepResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.result, body)
		})
	}
}
