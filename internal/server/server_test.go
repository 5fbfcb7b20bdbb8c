package server_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/arkhai-io/alkahest-sub000/internal/oracle"
	"github.com/arkhai-io/alkahest-sub000/internal/server"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockManager struct {
	mock.Mock
}

func (m *MockManager) Address() common.Address {
	return m.Called().Get(0).(common.Address)
}

func (m *MockManager) Subscriptions() []oracle.SubscriptionInfo {
	return m.Called().Get(0).([]oracle.SubscriptionInfo)
}

func (m *MockManager) Unsubscribe(id uuid.UUID) error {
	return m.Called(id).Error(0)
}

var oracleAddress = common.HexToAddress("0x0000000000000000000000000000000000000b0b")

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(t *testing.T, manager *MockManager, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	srv := server.New(":0", manager)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestServer_Health(t *testing.T) {
	manager := new(MockManager)
	manager.On("Address").Return(oracleAddress)
	manager.On("Subscriptions").Return([]oracle.SubscriptionInfo{{ID: uuid.New(), Mode: oracle.ModeAll}})

	w := serve(t, manager, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(server.CorrelationIDHeader))

	var body server.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, oracleAddress.Hex(), body.Oracle)
	assert.Equal(t, 1, body.Subscriptions)
}

func TestServer_ListSubscriptions(t *testing.T) {
	since := time.Unix(1_700_000_000, 0).UTC()
	subs := []oracle.SubscriptionInfo{
		{ID: uuid.New(), Mode: oracle.ModeUnarbitratedThenLive, Since: since, Decisions: 3, Failures: 1},
	}
	manager := new(MockManager)
	manager.On("Subscriptions").Return(subs)

	w := serve(t, manager, http.MethodGet, "/subscriptions")
	require.Equal(t, http.StatusOK, w.Code)

	var body server.SubscriptionsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Subscriptions, 1)
	assert.Equal(t, subs[0].ID, body.Subscriptions[0].ID)
	assert.Equal(t, subs[0].Mode, body.Subscriptions[0].Mode)
	assert.True(t, since.Equal(body.Subscriptions[0].Since))
	assert.Equal(t, int64(3), body.Subscriptions[0].Decisions)
	assert.Equal(t, int64(1), body.Subscriptions[0].Failures)
}

func TestServer_DeleteSubscription(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name           string
		path           string
		unsubscribeErr error
		expectCall     bool
		expectedStatus int
	}{
		{
			name:           "stops a running subscription",
			path:           "/subscriptions/" + id.String(),
			expectCall:     true,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "unknown subscription",
			path:           "/subscriptions/" + id.String(),
			unsubscribeErr: oracle.ErrUnknownSubscription,
			expectCall:     true,
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "unexpected failure",
			path:           "/subscriptions/" + id.String(),
			unsubscribeErr: errors.New("boom"),
			expectCall:     true,
			expectedStatus: http.StatusInternalServerError,
		},
		{
			name:           "malformed id",
			path:           "/subscriptions/not-a-uuid",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager := new(MockManager)
			if tt.expectCall {
				manager.On("Unsubscribe", id).Return(tt.unsubscribeErr)
			}

			w := serve(t, manager, http.MethodDelete, tt.path)
			assert.Equal(t, tt.expectedStatus, w.Code)
			manager.AssertExpectations(t)
		})
	}
}

func TestServer_CorrelationIDPassthrough(t *testing.T) {
	manager := new(MockManager)
	manager.On("Subscriptions").Return([]oracle.SubscriptionInfo{})

	srv := server.New(":0", manager)
	req := httptest.NewRequest(http.MethodGet, "/subscriptions", nil)
	req.Header.Set(server.CorrelationIDHeader, "corr-123")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, "corr-123", w.Header().Get(server.CorrelationIDHeader))
}
