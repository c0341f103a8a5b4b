package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/entity-advisor/internal/advisor"
	"github.com/danielpatrickdp/entity-advisor/internal/breaker"
	"github.com/danielpatrickdp/entity-advisor/internal/guardrail"
	"github.com/danielpatrickdp/entity-advisor/internal/metrics"
	"github.com/danielpatrickdp/entity-advisor/internal/orchestrator"
	"github.com/danielpatrickdp/entity-advisor/internal/reasoner"
	"github.com/danielpatrickdp/entity-advisor/internal/state"
)

// #region types
// Breakers exposes provider circuit state. Satisfied by *reasoner.Gateway.
type Breakers interface {
	Breakers() []breaker.Stats
	ResetBreaker(name string) bool
}

type turnRequest struct {
	Message string `json:"message" binding:"required"`
}

// TurnResponse is the JSON body returned for every turn.
type TurnResponse struct {
	SessionID      string                       `json:"session_id"`
	Message        string                       `json:"message"`
	NextAction     state.NextAction             `json:"next_action"`
	Iteration      int                          `json:"iteration"`
	Terminated     bool                         `json:"terminated"`
	Recommendation *orchestrator.Recommendation `json:"recommendation,omitempty"`
	Violation      *guardrail.Violation         `json:"violation,omitempty"`
	Usage          reasoner.Usage               `json:"usage"`
}

// #endregion types

// #region router
// NewRouter wires the HTTP surface over svc.
func NewRouter(svc *advisor.Service, breakers Breakers, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "server"))

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := r.Group("/v1")
	v1.POST("/sessions", OpenSession(svc, logger))
	v1.GET("/sessions", ListSessions(svc, logger))
	v1.GET("/sessions/:sessionId", GetSession(svc, logger))
	v1.DELETE("/sessions/:sessionId", CloseSession(svc, logger))
	v1.POST("/sessions/:sessionId/turns", ProcessTurn(svc, logger))
	v1.GET("/breakers", ListBreakers(breakers))
	v1.POST("/breakers/:name/reset", ResetBreaker(breakers, logger))
	return r
}

// #endregion router

// #region handlers
func OpenSession(svc *advisor.Service, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := svc.OpenSession(c.Request.Context())
		if err != nil {
			logger.Error("open session failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to open session"})
			return
		}
		c.JSON(http.StatusCreated, turnResponse(svc, res))
	}
}

func ProcessTurn(svc *advisor.Service, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("sessionId")
		var req turnRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
			return
		}

		res, err := svc.ProcessTurn(c.Request.Context(), id, req.Message)
		if err != nil {
			status, msg := errorStatus(err)
			if status == http.StatusInternalServerError {
				logger.Error("turn failed", zap.String("session_id", id), zap.Error(err))
			}
			c.JSON(status, gin.H{"error": msg})
			return
		}
		c.JSON(http.StatusOK, turnResponse(svc, res))
	}
}

func GetSession(svc *advisor.Service, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, err := svc.Session(c.Request.Context(), c.Param("sessionId"))
		if err != nil {
			status, msg := errorStatus(err)
			c.JSON(status, gin.H{"error": msg})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"state": st,
			"usage": svc.Usage(st.SessionID),
		})
	}
}

func ListSessions(svc *advisor.Service, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
		if err != nil || limit < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		list, err := svc.Sessions(c.Request.Context(), limit)
		if err != nil {
			logger.Error("list sessions failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list sessions"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"sessions": list})
	}
}

func CloseSession(svc *advisor.Service, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("sessionId")
		if err := svc.Close(c.Request.Context(), id); err != nil {
			status, msg := errorStatus(err)
			c.JSON(status, gin.H{"error": msg})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "closed", "session_id": id})
	}
}

func ListBreakers(b Breakers) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"breakers": b.Breakers()})
	}
}

func ResetBreaker(b Breakers, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")
		if !b.ResetBreaker(name) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown provider"})
			return
		}
		logger.Info("breaker reset", zap.String("provider", name))
		c.JSON(http.StatusOK, gin.H{"status": "reset", "provider": name})
	}
}

// #endregion handlers

// #region helpers
func turnResponse(svc *advisor.Service, res orchestrator.TurnResult) TurnResponse {
	return TurnResponse{
		SessionID:      res.State.SessionID,
		Message:        res.AssistantMessage,
		NextAction:     res.State.NextAction,
		Iteration:      res.State.IterationCount,
		Terminated:     res.Terminated,
		Recommendation: res.Recommendation,
		Violation:      res.Violation,
		Usage:          svc.Usage(res.State.SessionID),
	}
}

// errorStatus maps service errors to HTTP status and a safe message.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, state.ErrSessionNotFound):
		return http.StatusNotFound, "session not found"
	case errors.Is(err, advisor.ErrEmptyUtterance):
		return http.StatusBadRequest, "message is required"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "request timed out"
	case errors.Is(err, context.Canceled):
		return 499, "request canceled"
	}
	return http.StatusInternalServerError, "internal error"
}

// #endregion helpers
