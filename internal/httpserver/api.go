package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/ibridge-meter/internal/session"
)

// commandTimeout 单个下行命令（含限速等待）的最长时间
const commandTimeout = 2 * time.Second

type telemetryResponse struct {
	session.TelemetrySnapshot
	PowerWatts float64 `json:"power_w"`
}

func newTelemetryResponse(t session.TelemetrySnapshot) telemetryResponse {
	return telemetryResponse{TelemetrySnapshot: t, PowerWatts: t.PowerWatts()}
}

func (s *Server) registerAPI(r *gin.Engine) {
	api := r.Group("/api/v1")
	api.GET("/telemetry", s.getTelemetry)
	api.GET("/identity", s.getIdentity)
	api.GET("/session", s.getSession)
	api.POST("/stream/enable", s.command("stream_enable", Meter.EnableStream))
	api.POST("/stream/disable", s.command("stream_disable", Meter.DisableStream))
	api.POST("/identity/request", s.command("identity_request", Meter.RequestIdentity))

	r.GET("/ws/telemetry", s.handleTelemetryWS)
}

func (s *Server) getTelemetry(c *gin.Context) {
	c.JSON(http.StatusOK, newTelemetryResponse(s.meter.LatestTelemetry()))
}

func (s *Server) getIdentity(c *gin.Context) {
	id, ok := s.meter.LatestIdentity()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "identity not received yet"})
		return
	}
	c.JSON(http.StatusOK, id)
}

func (s *Server) getSession(c *gin.Context) {
	c.JSON(http.StatusOK, s.meter.Status())
}

// command 包装下行命令处理器：命令只负责发出，应答异步到达
func (s *Server) command(name string, fn func(Meter, context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), commandTimeout)
		defer cancel()

		if err := fn(s.meter, ctx); err != nil {
			s.log.Warn("command failed", zap.String("command", name), zap.Error(err))
			c.JSON(commandStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"command": name, "sent": true})
	}
}

func commandStatus(err error) int {
	switch {
	case errors.Is(err, session.ErrNotConnected):
		return http.StatusServiceUnavailable
	case errors.Is(err, session.ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusBadGateway
	}
}
