// Package config 加载 YAML 配置。
// strategies 段按策略 ID 保存原始 yaml.Node，由各策略自行解码自己的配置块。
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// MarketConfig 市场规格
type MarketConfig struct {
	Symbol    string `yaml:"symbol"`    // 如 "btc"
	Timeframe string `yaml:"timeframe"` // "15m" / "1h"
}

// WalletConfig 钱包配置。Mnemonic 与 PrivateKey 二选一；都为空时只读监控。
type WalletConfig struct {
	Mnemonic       string `yaml:"mnemonic"`
	DerivationPath string `yaml:"derivation_path"`
	PrivateKey     string `yaml:"private_key"`
	FunderAddress  string `yaml:"funder_address"`
}

// FeedConfig 行情流连接参数
type FeedConfig struct {
	PingInterval   time.Duration `yaml:"ping_interval"`
	LivenessFactor int           `yaml:"liveness_factor"`
	BackoffBase    time.Duration `yaml:"backoff_base"`
	BackoffMax     time.Duration `yaml:"backoff_max"`
	MaxAttempts    int           `yaml:"max_attempts"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	ByCycle    bool   `yaml:"by_cycle"`
}

// ArchiveConfig 归档配置
type ArchiveConfig struct {
	Path string `yaml:"path"` // SQLite 文件路径；为空时不归档
}

// SecretStoreConfig 凭证存储配置
type SecretStoreConfig struct {
	Path          string `yaml:"path"`
	EncryptionKey string `yaml:"encryption_key"` // 32 字节 hex/base64；为空时明文
}

// RiskConfig 下单熔断配置；阈值 <= 0 表示关闭对应限制
type RiskConfig struct {
	MaxConsecutiveErrors int64 `yaml:"max_consecutive_errors"`
	DailyLossLimitCents  int64 `yaml:"daily_loss_limit_cents"`
}

// ServerConfig 状态接口配置
type ServerConfig struct {
	Listen string `yaml:"listen"` // 如 ":8080"；为空时不启动
}

// Config 应用配置
type Config struct {
	Market      MarketConfig         `yaml:"market"`
	Wallet      WalletConfig         `yaml:"wallet"`
	Proxy       string               `yaml:"proxy"` // http://host:port
	Feed        FeedConfig           `yaml:"feed"`
	Log         LogConfig            `yaml:"log"`
	Archive     ArchiveConfig        `yaml:"archive"`
	SecretStore SecretStoreConfig    `yaml:"secret_store"`
	Server      ServerConfig         `yaml:"server"`
	Risk        RiskConfig           `yaml:"risk"`
	DryRun      bool                 `yaml:"dry_run"`
	Enabled     []string             `yaml:"enabled_strategies"`
	Strategies  map[string]yaml.Node `yaml:"strategies"`
}

// Load 从文件加载配置
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}
	return Parse(data)
}

// Parse 解析 YAML 配置
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Market.Symbol == "" {
		c.Market.Symbol = "btc"
	}
	if c.Market.Timeframe == "" {
		c.Market.Timeframe = "15m"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 100
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = 3
	}
	if c.Log.MaxAgeDays == 0 {
		c.Log.MaxAgeDays = 7
	}
	if len(c.Enabled) == 0 {
		c.Enabled = []string{"gridhedge"}
	}
}

// Validate 校验配置一致性
func (c *Config) Validate() error {
	for _, id := range c.Enabled {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("enabled_strategies 包含空策略 ID")
		}
	}
	if !c.DryRun && c.Wallet.Mnemonic == "" && c.Wallet.PrivateKey == "" {
		// 没有任何密钥时只能只读运行
		c.DryRun = true
	}
	return nil
}

// DecodeStrategy 将策略 ID 对应的配置块解码到 out（通常是策略的 Config 结构）。
// 配置中没有该块时返回 false，不视为错误。
func (c *Config) DecodeStrategy(id string, out interface{}) (bool, error) {
	node, ok := c.Strategies[id]
	if !ok || node.IsZero() {
		return false, nil
	}
	if err := node.Decode(out); err != nil {
		return true, fmt.Errorf("解析策略 %s 配置失败: %w", id, err)
	}
	return true, nil
}

// BinanceSymbol 返回开盘价查询用的 Binance 交易对（如 BTCUSDT）
func (c *Config) BinanceSymbol() string {
	return strings.ToUpper(c.Market.Symbol) + "USDT"
}
