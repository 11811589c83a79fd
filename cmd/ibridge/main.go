package main

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/ibridge-meter/internal/config"
	"github.com/taoyao-code/ibridge-meter/internal/logging"
	"github.com/taoyao-code/ibridge-meter/internal/metrics"
	"github.com/taoyao-code/ibridge-meter/internal/session"
	"github.com/taoyao-code/ibridge-meter/internal/transport"
)

// 构建时注入
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// 全局参数
var (
	configFlag string
	portFlag   string
	baudFlag   int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ibridge",
		Short: "Qianli iBridge USB power meter client",
		Long: `ibridge talks to a Qianli iBridge USB power meter over its serial
protocol: live voltage/current readout, device identity, and an
HTTP/WebSocket API with health checks and Prometheus metrics.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "config file (default ./configs/ibridge.yaml or $IBRIDGE_CONFIG)")
	rootCmd.PersistentFlags().StringVarP(&portFlag, "port", "p", "", "serial device path or tcp://host:port (overrides serial.port)")
	rootCmd.PersistentFlags().IntVarP(&baudFlag, "baud", "b", 0, "baud rate (overrides serial.baudRate)")

	rootCmd.AddCommand(
		monitorCmd(),
		identityCmd(),
		serveCmd(),
		portsCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

// env 命令运行所需的公共组件
type env struct {
	cfg      *cfgpkg.Config
	log      *zap.Logger
	registry *prometheus.Registry
	metrics  *metrics.AppMetrics
	client   *session.Client
}

// bootstrap 加载配置、初始化日志与指标，并创建（未连接的）仪表会话
func bootstrap() (*env, error) {
	cfg, err := cfgpkg.Load(configFlag)
	if err != nil {
		return nil, err
	}
	if portFlag != "" {
		cfg.Serial.Port = portFlag
	}
	if baudFlag > 0 {
		cfg.Serial.BaudRate = baudFlag
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := logging.InitLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)

	reg := metrics.NewRegistry()
	m := metrics.NewAppMetrics(reg)

	opener := transport.NewOpener(transport.Options{
		Address:     cfg.Serial.Port,
		BaudRate:    cfg.Serial.BaudRate,
		ReadTimeout: cfg.Serial.ReadTimeout,
		DialTimeout: cfg.Serial.DialTimeout,
	})
	client := session.New(opener, session.Options{
		PollInterval: cfg.Serial.PollInterval,
		StopTimeout:  cfg.Serial.StopTimeout,
		MaxBuffer:    cfg.Serial.MaxBuffer,
		CommandRate:  cfg.Command.RatePerSec,
		CommandBurst: cfg.Command.Burst,
		Logger:       logger.With(zap.String("port", cfg.Serial.Port)),
		Metrics:      m,
	})

	return &env{cfg: cfg, log: logger, registry: reg, metrics: m, client: client}, nil
}

// close 断开仪表并刷新日志
func (e *env) close() {
	if err := e.client.Disconnect(); err != nil {
		e.log.Warn("disconnect", zap.Error(err))
	}
	_ = e.log.Sync()
}
