package httpserver

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const wsWriteWait = time.Second

// handleTelemetryWS 按 pushInterval 轮询最新读数，有新读数时推送给客户端
func (s *Server) handleTelemetryWS(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	// 读循环只用于感知客户端断开
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.pushInterval)
	defer ticker.Stop()

	var last time.Time
	for {
		select {
		case <-gone:
			return
		case <-s.closing:
			return
		case <-ticker.C:
			t := s.meter.LatestTelemetry()
			if t.IsZero() || !t.ObservedAt.After(last) {
				continue
			}
			last = t.ObservedAt
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(newTelemetryResponse(t)); err != nil {
				s.log.Debug("websocket push stopped", zap.Error(err))
				return
			}
		}
	}
}
