// 文件: pkg/config/config.go
// 进程配置：环境变量 + 可选 .env 文件

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"laminar.com/pkg/book"
)

// Config 全部配置
type Config struct {
	Node  NodeConfig  `envPrefix:"NODE_"`
	Book  BookConfig  `envPrefix:"BOOK_"`
	Redis RedisConfig `envPrefix:"REDIS_"`
	Kafka KafkaConfig `envPrefix:"KAFKA_"`
	NATS  NATSConfig  `envPrefix:"NATS_"`
	MySQL MySQLConfig `envPrefix:"MYSQL_"`

	DexAddress   string        `env:"DEX_ADDRESS,required"`
	PollInterval time.Duration `env:"POLL_INTERVAL" envDefault:"1s"`
	NodeID       int64         `env:"NODE_ID" envDefault:"1"` // 雪花算法节点 (0-1023)
	LogLevel     string        `env:"LOG_LEVEL" envDefault:"info"`
}

// NodeConfig 链节点 REST 接口
type NodeConfig struct {
	URL        string        `env:"URL,required"`
	Timeout    time.Duration `env:"TIMEOUT" envDefault:"5s"`
	MaxRetries int           `env:"MAX_RETRIES" envDefault:"3"`
}

// BookConfig 订单簿
type BookConfig struct {
	BaseTag       string `env:"BASE_TAG"`
	QuoteTag      string `env:"QUOTE_TAG"`
	Levels        int    `env:"LEVELS" envDefault:"10"`
	PriceDecimals int32  `env:"PRICE_DECIMALS" envDefault:"0"`
	SizeDecimals  int32  `env:"SIZE_DECIMALS" envDefault:"0"`
}

// RedisConfig 资源缓存，Addr 为空时不启用
type RedisConfig struct {
	Addr string        `env:"ADDR"`
	TTL  time.Duration `env:"TTL" envDefault:"500ms"`
}

// KafkaConfig 深度快照 topic，Brokers 为空时不启用
type KafkaConfig struct {
	Brokers []string `env:"BROKERS" envSeparator:","`
	Topic   string   `env:"TOPIC" envDefault:"book.depth"`
	GroupID string   `env:"GROUP_ID" envDefault:"depth_writer"`
}

// NATSConfig 深度快照 subject，URL 为空时不启用
type NATSConfig struct {
	URL     string `env:"URL"`
	Subject string `env:"SUBJECT" envDefault:"book.depth"`
}

// MySQLConfig 深度历史库
type MySQLConfig struct {
	DSN string `env:"DSN"`
}

// Load 读取配置
// files 为空时尝试当前目录的 .env；已存在的环境变量优先
func Load(files ...string) (*Config, error) {
	_ = godotenv.Load(files...)

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验取值范围
func (c *Config) Validate() error {
	if c.Book.Levels < 0 {
		return fmt.Errorf("BOOK_LEVELS must be >= 0, got %d", c.Book.Levels)
	}
	if c.Book.PriceDecimals < 0 || c.Book.SizeDecimals < 0 {
		return fmt.Errorf("book decimals must be >= 0")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive, got %s", c.PollInterval)
	}
	if c.NodeID < 0 || c.NodeID > 1023 {
		return fmt.Errorf("NODE_ID must be in [0, 1023], got %d", c.NodeID)
	}
	return nil
}

// Owner 订单簿发布者地址，补全 0x 前缀
func (c *Config) Owner() string {
	addr := strings.TrimSpace(c.DexAddress)
	if !strings.HasPrefix(addr, "0x") {
		addr = "0x" + addr
	}
	return addr
}

// Market 当前订单簿
// 币种未配置时用发布者下的 FakeBaseCoin / FakeQuoteCoin
func (c *Config) Market() book.Market {
	owner := c.Owner()
	m := book.Market{
		Owner:    owner,
		BaseTag:  c.Book.BaseTag,
		QuoteTag: c.Book.QuoteTag,
	}
	if m.BaseTag == "" {
		m.BaseTag = owner + "::coin::FakeBaseCoin"
	}
	if m.QuoteTag == "" {
		m.QuoteTag = owner + "::coin::FakeQuoteCoin"
	}
	return m
}

// Formatter 展示精度
func (c *Config) Formatter() book.Formatter {
	return book.Formatter{
		PriceDecimals: c.Book.PriceDecimals,
		SizeDecimals:  c.Book.SizeDecimals,
	}
}
