package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Config 应用配置
type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Consul   ConsulConfig   `json:"consul"`
	Jaeger   JaegerConfig   `json:"jaeger"`
	Telegram TelegramConfig `json:"telegram"`
	Log      LogConfig      `json:"log"`
}

// ServerConfig 服务配置
type ServerConfig struct {
	Name       string `json:"name"`        // 服务名称
	Host       string `json:"host"`        // 服务地址
	HealthPort int    `json:"health_port"` // 健康检查 gRPC 端口
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver   string `json:"driver"`   // 数据库驱动
	Host     string `json:"host"`     // 数据库地址
	Port     int    `json:"port"`     // 数据库端口
	User     string `json:"user"`     // 用户名
	Password string `json:"password"` // 密码
	Database string `json:"database"` // 数据库名
	MaxIdle  int    `json:"max_idle"` // 最大空闲连接
	MaxOpen  int    `json:"max_open"` // 最大打开连接
}

// ConsulConfig Consul配置
type ConsulConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// JaegerConfig Jaeger配置
type JaegerConfig struct {
	Endpoint string  `json:"endpoint"`
	Sampler  float64 `json:"sampler"` // 采样率 0.0-1.0
}

// TelegramConfig Telegram Bot API 配置。
// 注意：bot token 不进配置文件，只从环境变量 TELEGRAM_BOT_TOKEN 读取。
type TelegramConfig struct {
	APIEndpoint    string `json:"api_endpoint"`    // 默认 https://api.telegram.org
	PollTimeout    int    `json:"poll_timeout"`    // getUpdates 长轮询秒数
	SendRate       int64  `json:"send_rate"`       // 每秒允许的出站消息数（令牌桶补充速率）
	SendBurst      int64  `json:"send_burst"`      // 令牌桶容量
	RequestTimeout int    `json:"request_timeout"` // 单次 HTTP 请求超时秒数
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
	Output string `json:"output"` // stdout, file
	Path   string `json:"path"`   // 日志文件路径
}

var (
	globalConfig *Config
	configOnce   sync.Once
)

// LoadConfig 加载配置
func LoadConfig(configPath string) (*Config, error) {
	var err error
	configOnce.Do(func() {
		globalConfig = &Config{}
		// 如果配置文件不存在，使用默认配置
		if _, err = os.Stat(configPath); os.IsNotExist(err) {
			logrus.Warnf("Config file not found: %s, using default config", configPath)
			globalConfig = defaultConfig()
			err = nil
			return
		}

		data, readErr := os.ReadFile(configPath)
		if readErr != nil {
			err = fmt.Errorf("failed to read config file: %w", readErr)
			return
		}

		if unmarshalErr := json.Unmarshal(data, globalConfig); unmarshalErr != nil {
			err = fmt.Errorf("failed to parse config file: %w", unmarshalErr)
			return
		}
		applyDefaults(globalConfig)
	})

	if err != nil {
		return nil, err
	}

	return globalConfig, nil
}

// GetConfig 获取全局配置
func GetConfig() *Config {
	if globalConfig == nil {
		return defaultConfig()
	}
	return globalConfig
}

// BotToken 从环境变量读取 bot 凭证；缺失由调用方按启动致命错误处理。
func BotToken() (string, error) {
	token := strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN"))
	if token == "" {
		return "", fmt.Errorf("TELEGRAM_BOT_TOKEN is not set")
	}
	return token, nil
}

// applyDefaults 补齐配置文件里缺省的字段。
func applyDefaults(c *Config) {
	d := defaultConfig()
	if c.Server.Name == "" {
		c.Server.Name = d.Server.Name
	}
	if c.Telegram.APIEndpoint == "" {
		c.Telegram.APIEndpoint = d.Telegram.APIEndpoint
	}
	if c.Telegram.PollTimeout <= 0 {
		c.Telegram.PollTimeout = d.Telegram.PollTimeout
	}
	if c.Telegram.SendRate <= 0 {
		c.Telegram.SendRate = d.Telegram.SendRate
	}
	if c.Telegram.SendBurst <= 0 {
		c.Telegram.SendBurst = d.Telegram.SendBurst
	}
	if c.Telegram.RequestTimeout <= 0 {
		c.Telegram.RequestTimeout = d.Telegram.RequestTimeout
	}
}

// defaultConfig 默认配置（开发环境）
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Name:       "valet-service",
			Host:       "0.0.0.0",
			HealthPort: 50051,
		},
		Database: DatabaseConfig{
			Driver:   "mysql",
			Host:     "localhost",
			Port:     3306,
			User:     "root",
			Password: "root",
			Database: "valetflow",
			MaxIdle:  10,
			MaxOpen:  100,
		},
		Consul: ConsulConfig{
			Host: "localhost",
			Port: 8500,
		},
		Jaeger: JaegerConfig{
			Endpoint: "localhost:6831",
			Sampler:  1.0,
		},
		Telegram: TelegramConfig{
			APIEndpoint:    "https://api.telegram.org",
			PollTimeout:    30,
			SendRate:       25,
			SendBurst:      25,
			RequestTimeout: 40,
		},
		Log: LogConfig{
			Level:  "debug",
			Format: "text",
			Output: "stdout",
			Path:   "logs/app.log",
		},
	}
}
