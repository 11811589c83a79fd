package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AppConfig 应用基础信息
type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

// SerialConfig 仪表连接配置
// Port 为串口设备路径（/dev/ttyACM0、COM5），或 tcp://host:port 形式的串口服务器地址。
type SerialConfig struct {
	Port         string        `mapstructure:"port"`
	BaudRate     int           `mapstructure:"baudRate"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	PollInterval time.Duration `mapstructure:"pollInterval"`
	StopTimeout  time.Duration `mapstructure:"stopTimeout"`
	DialTimeout  time.Duration `mapstructure:"dialTimeout"`
	MaxBuffer    int           `mapstructure:"maxBuffer"`
}

// CommandConfig 下行命令限速
type CommandConfig struct {
	RatePerSec float64 `mapstructure:"ratePerSec"`
	Burst      int     `mapstructure:"burst"`
}

// HTTPConfig HTTP 服务配置
type HTTPConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
	PushInterval time.Duration `mapstructure:"pushInterval"`
}

// LumberjackConfig 日志滚动（lumberjack）配置
type LumberjackConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAge"`
	Compress   bool   `mapstructure:"compress"`
}

// LoggingConfig 日志级别与输出配置
// Filename 为空时只写标准错误
type LoggingConfig struct {
	Level  string           `mapstructure:"level"`
	Format string           `mapstructure:"format"`
	File   LumberjackConfig `mapstructure:"file"`
}

// MetricsConfig Prometheus 指标暴露配置
type MetricsConfig struct {
	Enable bool   `mapstructure:"enable"`
	Path   string `mapstructure:"path"`
}

// HealthConfig 健康检查阈值
type HealthConfig struct {
	StaleAfter time.Duration `mapstructure:"staleAfter"`
}

// Config 顶层配置结构
type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Serial  SerialConfig  `mapstructure:"serial"`
	Command CommandConfig `mapstructure:"command"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Health  HealthConfig  `mapstructure:"health"`
}

// EnvPrefix 环境变量前缀
const EnvPrefix = "IBRIDGE"

// Load 从 YAML/TOML/JSON 文件与环境变量加载配置。
// 若 path 为空，则尝试从环境变量 IBRIDGE_CONFIG 读取；否则回退到 configs/ibridge.yaml。
func Load(path string) (*Config, error) {
	v := viper.New()

	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.SetConfigName("ibridge")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	// 环境变量覆盖：前缀 IBRIDGE_，并将点号替换为下划线
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// 允许缺少配置文件，依赖默认值与环境变量
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 校验关键参数
func (c *Config) Validate() error {
	switch {
	case c.Serial.Port == "":
		return errors.New("serial.port is required")
	case c.Serial.BaudRate <= 0:
		return fmt.Errorf("serial.baudRate must be positive, got %d", c.Serial.BaudRate)
	case c.Serial.PollInterval <= 0:
		return fmt.Errorf("serial.pollInterval must be positive, got %s", c.Serial.PollInterval)
	case c.Serial.StopTimeout <= 0:
		return fmt.Errorf("serial.stopTimeout must be positive, got %s", c.Serial.StopTimeout)
	case c.Command.RatePerSec < 0:
		return fmt.Errorf("command.ratePerSec must not be negative, got %v", c.Command.RatePerSec)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "ibridge-meter")
	v.SetDefault("app.env", "dev")

	v.SetDefault("serial.port", "/dev/ttyACM0")
	v.SetDefault("serial.baudRate", 115200)
	v.SetDefault("serial.readTimeout", "50ms")
	v.SetDefault("serial.pollInterval", "10ms")
	v.SetDefault("serial.stopTimeout", "1s")
	v.SetDefault("serial.dialTimeout", "5s")
	v.SetDefault("serial.maxBuffer", 4096)

	v.SetDefault("command.ratePerSec", 5)
	v.SetDefault("command.burst", 5)

	v.SetDefault("http.addr", ":8090")
	v.SetDefault("http.readTimeout", "5s")
	v.SetDefault("http.writeTimeout", "10s")
	v.SetDefault("http.pushInterval", "100ms")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file.filename", "")
	v.SetDefault("logging.file.maxSize", 50)
	v.SetDefault("logging.file.maxBackups", 5)
	v.SetDefault("logging.file.maxAge", 14)
	v.SetDefault("logging.file.compress", true)

	v.SetDefault("metrics.enable", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("health.staleAfter", "3s")
}
