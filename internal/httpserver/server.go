package httpserver

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/ibridge-meter/internal/config"
	"github.com/taoyao-code/ibridge-meter/internal/health"
	"github.com/taoyao-code/ibridge-meter/internal/session"
)

// Meter HTTP 层依赖的仪表会话能力
type Meter interface {
	LatestTelemetry() session.TelemetrySnapshot
	LatestIdentity() (session.IdentitySnapshot, bool)
	EnableStream(ctx context.Context) error
	DisableStream(ctx context.Context) error
	RequestIdentity(ctx context.Context) error
	Status() session.Status
}

// Server HTTP 服务封装
type Server struct {
	srv          *http.Server
	engine       *gin.Engine
	meter        Meter
	log          *zap.Logger
	upgrader     websocket.Upgrader
	pushInterval time.Duration

	closeOnce sync.Once
	closing   chan struct{} // 关闭时通知 WebSocket 推送退出
}

// New 创建并配置 Gin + HTTP Server，注册健康检查、指标与仪表 API 路由
func New(cfg cfgpkg.HTTPConfig, meter Meter, agg *health.Aggregator, metricsPath string, metricsHandler http.Handler, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	push := cfg.PushInterval
	if push <= 0 {
		push = 100 * time.Millisecond
	}

	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{
		engine:       r,
		meter:        meter,
		log:          log,
		pushInterval: push,
		closing:      make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	r.GET("/readyz", func(c *gin.Context) {
		if agg == nil || agg.Ready(c.Request.Context()) {
			c.String(http.StatusOK, "ready")
			return
		}
		c.String(http.StatusServiceUnavailable, "not-ready")
	})
	if agg != nil {
		health.RegisterHTTPRoutes(r, agg)
	}
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	if metricsHandler != nil {
		r.GET(metricsPath, gin.WrapH(metricsHandler))
	}
	s.registerAPI(r)

	s.srv = &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Handler 返回路由（测试用）
func (s *Server) Handler() http.Handler { return s.engine }

// Start 启动 HTTP 服务（阻塞）；正常关闭时返回 nil
func (s *Server) Start() error {
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown 优雅关闭
func (s *Server) Shutdown(ctx context.Context) error {
	s.closeOnce.Do(func() { close(s.closing) })
	return s.srv.Shutdown(ctx)
}
