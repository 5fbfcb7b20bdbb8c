package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/arkhai-io/alkahest-sub000/internal/logger"
	"github.com/arkhai-io/alkahest-sub000/internal/oracle"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SubscriptionManager is the part of the oracle the status API exposes
type SubscriptionManager interface {
	Address() common.Address
	Subscriptions() []oracle.SubscriptionInfo
	Unsubscribe(id uuid.UUID) error
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status        string `json:"status"`
	Oracle        string `json:"oracle"`
	Subscriptions int    `json:"subscriptions"`
	Uptime        string `json:"uptime"`
}

// SubscriptionsResponse is returned by GET /subscriptions
type SubscriptionsResponse struct {
	Subscriptions []oracle.SubscriptionInfo `json:"subscriptions"`
}

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// SuccessResponse represents a standard success response
type SuccessResponse struct {
	Message string `json:"message"`
}

// SweepResponse is returned by POST /sweeps
type SweepResponse struct {
	Decisions int `json:"decisions"`
	Failed    int `json:"failed"`
}

// SweepFunc runs one sweep over undecided history
type SweepFunc func(ctx context.Context) (SweepResponse, error)

// Server is the operator status API of a running oracle
type Server struct {
	manager SubscriptionManager
	started time.Time
	router  *gin.Engine
	http    *http.Server
	logger  *zap.Logger
}

// New builds the status API listening on addr
func New(addr string, manager SubscriptionManager) *Server {
	s := &Server{
		manager: manager,
		started: time.Now(),
		logger:  logger.ForComponent(logger.ComponentServer),
	}

	router := gin.New()
	router.Use(gin.Recovery(), CorrelationIDMiddleware(), RequestLoggingMiddleware(s.logger))
	router.GET("/health", s.Health)
	router.GET("/subscriptions", s.ListSubscriptions)
	router.DELETE("/subscriptions/:id", s.DeleteSubscription)
	s.router = router

	s.http = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 20 * time.Second,
	}
	return s
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	s.logger.Info("Status API listening", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server, waiting for in-flight requests until ctx ends
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Health reports liveness and the number of running subscriptions
func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:        "ok",
		Oracle:        s.manager.Address().Hex(),
		Subscriptions: len(s.manager.Subscriptions()),
		Uptime:        time.Since(s.started).Truncate(time.Second).String(),
	})
}

// ListSubscriptions lists the oracle's live subscriptions
func (s *Server) ListSubscriptions(c *gin.Context) {
	c.JSON(http.StatusOK, SubscriptionsResponse{Subscriptions: s.manager.Subscriptions()})
}

// DeleteSubscription stops one live subscription
func (s *Server) DeleteSubscription(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid subscription id"})
		return
	}

	if err := s.manager.Unsubscribe(id); err != nil {
		if errors.Is(err, oracle.ErrUnknownSubscription) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "subscription not found"})
			return
		}
		s.logger.Error("Failed to unsubscribe",
			zap.String("correlation_id", GetCorrelationID(c)),
			zap.String("subscription_id", id.String()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to unsubscribe"})
		return
	}

	s.logger.Info("Subscription stopped via status API", zap.String("subscription_id", id.String()))
	c.JSON(http.StatusOK, SuccessResponse{Message: "subscription stopped"})
}

// HandleSweeps exposes POST /sweeps, running fn once per request
func (s *Server) HandleSweeps(fn SweepFunc) {
	s.router.POST("/sweeps", func(c *gin.Context) {
		result, err := fn(c.Request.Context())
		if err != nil {
			s.logger.Error("Sweep failed",
				zap.String("correlation_id", GetCorrelationID(c)),
				zap.Error(err),
			)
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "sweep failed"})
			return
		}
		c.JSON(http.StatusOK, result)
	})
}
