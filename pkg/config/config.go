package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// 默认值
const (
	DefaultSymbol                = "BTC"
	DefaultDurationSeconds       = 30
	DefaultOutputDir             = "latency_results"
	DefaultLogLevel              = "info"
	DefaultReceiveTimeoutSeconds = 5
	DefaultLookupTimeoutSeconds  = 10
	DefaultProgressEvery         = 50
)

// ProxyConfig 代理配置
type ProxyConfig struct {
	Host string
	Port int
}

// URL 代理地址，例如 http://127.0.0.1:15236
func (p *ProxyConfig) URL() string {
	if p == nil || p.Host == "" || p.Port <= 0 {
		return ""
	}
	return fmt.Sprintf("http://%s:%d", p.Host, p.Port)
}

// FeedEndpoints 数据源地址覆盖（为空时使用内置地址）
type FeedEndpoints struct {
	ExtendedURL    string // Extended WebSocket 地址模板，{symbol} 为交易对
	LighterURL     string // Lighter WebSocket 地址
	LighterRESTURL string // Lighter REST 基础地址（市场查询）
}

// Config 应用配置
type Config struct {
	Symbol                string // 交易对，例如 BTC
	DurationSeconds       int    // 采样时长（秒）
	OutputDir             string // 结果根目录
	LogLevel              string // 日志级别
	ReceiveTimeoutSeconds int    // 单条消息等待超时（秒）
	LookupTimeoutSeconds  int    // 市场查询超时（秒）
	ProgressEvery         int    // 每 N 个样本打印一次进度
	MetricsAddr           string // metrics 监听地址，为空时不启动
	Proxy                 *ProxyConfig
	Feeds                 FeedEndpoints
}

// ConfigFile 配置文件结构（用于 YAML/JSON 解析）
type ConfigFile struct {
	Symbol                string `yaml:"symbol" json:"symbol"`
	DurationSeconds       int    `yaml:"duration_seconds" json:"duration_seconds"`
	OutputDir             string `yaml:"output_dir" json:"output_dir"`
	LogLevel              string `yaml:"log_level" json:"log_level"`
	ReceiveTimeoutSeconds int    `yaml:"receive_timeout_seconds" json:"receive_timeout_seconds"`
	LookupTimeoutSeconds  int    `yaml:"lookup_timeout_seconds" json:"lookup_timeout_seconds"`
	ProgressEvery         int    `yaml:"progress_every" json:"progress_every"`
	MetricsAddr           string `yaml:"metrics_addr" json:"metrics_addr"`
	Proxy                 struct {
		Host string `yaml:"host" json:"host"`
		Port int    `yaml:"port" json:"port"`
	} `yaml:"proxy" json:"proxy"`
	Feeds struct {
		Extended struct {
			URL string `yaml:"url" json:"url"`
		} `yaml:"extended" json:"extended"`
		Lighter struct {
			URL     string `yaml:"url" json:"url"`
			RESTURL string `yaml:"rest_url" json:"rest_url"`
		} `yaml:"lighter" json:"lighter"`
	} `yaml:"feeds" json:"feeds"`
}

// Default 内置默认配置
func Default() *Config {
	return &Config{
		Symbol:                DefaultSymbol,
		DurationSeconds:       DefaultDurationSeconds,
		OutputDir:             DefaultOutputDir,
		LogLevel:              DefaultLogLevel,
		ReceiveTimeoutSeconds: DefaultReceiveTimeoutSeconds,
		LookupTimeoutSeconds:  DefaultLookupTimeoutSeconds,
		ProgressEvery:         DefaultProgressEvery,
	}
}

// Load 加载配置（优先级：环境变量 > 配置文件 > 默认值）
// filePath 为空时读取 FEED_LATENCY_CONFIG；仍为空则只使用默认值和环境变量。
func Load(filePath string) (*Config, error) {
	if filePath == "" {
		filePath = getEnv("FEED_LATENCY_CONFIG", "")
	}

	config := Default()
	if filePath != "" {
		configFile, err := loadConfigFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("加载配置文件失败 %s: %w", filePath, err)
		}
		config.applyFile(configFile)
	}
	config.applyEnv()
	return config, nil
}

// applyFile 配置文件中非零值覆盖默认值
func (c *Config) applyFile(cf *ConfigFile) {
	c.Symbol = getValueFromSources(cf.Symbol, c.Symbol)
	c.DurationSeconds = getIntFromSources(cf.DurationSeconds, c.DurationSeconds)
	c.OutputDir = getValueFromSources(cf.OutputDir, c.OutputDir)
	c.LogLevel = getValueFromSources(cf.LogLevel, c.LogLevel)
	c.ReceiveTimeoutSeconds = getIntFromSources(cf.ReceiveTimeoutSeconds, c.ReceiveTimeoutSeconds)
	c.LookupTimeoutSeconds = getIntFromSources(cf.LookupTimeoutSeconds, c.LookupTimeoutSeconds)
	c.ProgressEvery = getIntFromSources(cf.ProgressEvery, c.ProgressEvery)
	c.MetricsAddr = getValueFromSources(cf.MetricsAddr, c.MetricsAddr)
	if cf.Proxy.Host != "" {
		c.Proxy = &ProxyConfig{Host: cf.Proxy.Host, Port: cf.Proxy.Port}
	}
	c.Feeds.ExtendedURL = getValueFromSources(cf.Feeds.Extended.URL, c.Feeds.ExtendedURL)
	c.Feeds.LighterURL = getValueFromSources(cf.Feeds.Lighter.URL, c.Feeds.LighterURL)
	c.Feeds.LighterRESTURL = getValueFromSources(cf.Feeds.Lighter.RESTURL, c.Feeds.LighterRESTURL)
}

// applyEnv 环境变量覆盖
func (c *Config) applyEnv() {
	c.Symbol = getEnv("FEED_LATENCY_SYMBOL", c.Symbol)
	c.DurationSeconds = parseIntEnv("FEED_LATENCY_DURATION", c.DurationSeconds)
	c.OutputDir = getEnv("FEED_LATENCY_OUTPUT_DIR", c.OutputDir)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.MetricsAddr = getEnv("METRICS_ADDR", c.MetricsAddr)

	if host := getEnv("PROXY_HOST", ""); host != "" {
		c.Proxy = &ProxyConfig{Host: host, Port: parseIntEnv("PROXY_PORT", 0)}
	}
}

// loadConfigFile 加载配置文件（支持 YAML 和 JSON）
func loadConfigFile(filePath string) (*ConfigFile, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var configFile ConfigFile
	ext := strings.ToLower(filepath.Ext(filePath))

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &configFile); err != nil {
			return nil, fmt.Errorf("解析 YAML 配置文件失败: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &configFile); err != nil {
			return nil, fmt.Errorf("解析 JSON 配置文件失败: %w", err)
		}
	default:
		return nil, fmt.Errorf("不支持的配置文件格式: %s (支持 .yaml, .yml, .json)", ext)
	}

	return &configFile, nil
}

// Validate 验证配置
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Symbol) == "" {
		return fmt.Errorf("symbol 不能为空")
	}
	if c.DurationSeconds <= 0 {
		return fmt.Errorf("duration 必须大于 0，当前为 %d", c.DurationSeconds)
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output_dir 不能为空")
	}
	if c.ReceiveTimeoutSeconds <= 0 {
		return fmt.Errorf("receive_timeout_seconds 必须大于 0")
	}
	if c.LookupTimeoutSeconds <= 0 {
		return fmt.Errorf("lookup_timeout_seconds 必须大于 0")
	}
	if c.ProgressEvery <= 0 {
		return fmt.Errorf("progress_every 必须大于 0")
	}
	if c.Proxy != nil && c.Proxy.Host != "" && c.Proxy.Port <= 0 {
		return fmt.Errorf("代理端口无效: %d", c.Proxy.Port)
	}
	return nil
}

// Duration 采样时长
func (c *Config) Duration() time.Duration {
	return time.Duration(c.DurationSeconds) * time.Second
}

// ReceiveTimeout 单条消息等待超时
func (c *Config) ReceiveTimeout() time.Duration {
	return time.Duration(c.ReceiveTimeoutSeconds) * time.Second
}

// LookupTimeout 市场查询超时
func (c *Config) LookupTimeout() time.Duration {
	return time.Duration(c.LookupTimeoutSeconds) * time.Second
}

// ProxyURL 代理地址（未配置时为空）
func (c *Config) ProxyURL() string {
	return c.Proxy.URL()
}

// getValueFromSources 配置文件值非空时覆盖
func getValueFromSources(configValue, current string) string {
	if configValue != "" {
		return configValue
	}
	return current
}

// getIntFromSources 配置文件值非零时覆盖
func getIntFromSources(configValue, current int) int {
	if configValue != 0 {
		return configValue
	}
	return current
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// parseIntEnv 解析整数环境变量
func parseIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
