package server

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/aws/aws-lambda-go/events"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"go.uber.org/zap"
)

// ErrUnsupportedEvent is returned for non-HTTP events when no fallback is set
var ErrUnsupportedEvent = errors.New("unsupported lambda event")

// LambdaHandler serves the status API behind API Gateway. Events that are
// not API Gateway requests, such as scheduled invocations, go to fallback.
type LambdaHandler struct {
	adapter  *ginadapter.GinLambda
	fallback func(ctx context.Context) error
	logger   *zap.Logger
}

// Lambda adapts the router for a Lambda runtime
func (s *Server) Lambda(fallback func(ctx context.Context) error) *LambdaHandler {
	return &LambdaHandler{
		adapter:  ginadapter.New(s.router),
		fallback: fallback,
		logger:   s.logger,
	}
}

// Invoke handles one Lambda event
func (h *LambdaHandler) Invoke(ctx context.Context, event json.RawMessage) (*events.APIGatewayProxyResponse, error) {
	var req events.APIGatewayProxyRequest
	if err := json.Unmarshal(event, &req); err == nil && req.HTTPMethod != "" {
		resp, err := h.adapter.ProxyWithContext(ctx, req)
		if err != nil {
			h.logger.Error("Failed to proxy API Gateway request",
				zap.String("method", req.HTTPMethod),
				zap.String("path", req.Path),
				zap.Error(err),
			)
			return nil, err
		}
		return &resp, nil
	}

	if h.fallback == nil {
		return nil, ErrUnsupportedEvent
	}
	return nil, h.fallback(ctx)
}
