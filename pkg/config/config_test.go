package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("NODE_URL", "http://localhost:8080")
	t.Setenv("DEX_ADDRESS", "b0b")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", cfg.Node.URL)
	assert.Equal(t, 3, cfg.Node.MaxRetries)
	assert.Equal(t, 10, cfg.Book.Levels)
	assert.Equal(t, time.Second, cfg.PollInterval)
	assert.Equal(t, 500*time.Millisecond, cfg.Redis.TTL)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, "book.depth", cfg.NATS.Subject)
	assert.Equal(t, "info", cfg.LogLevel)

	m := cfg.Market()
	assert.Equal(t, "0xb0b", m.Owner)
	assert.Equal(t, "0xb0b::coin::FakeBaseCoin", m.BaseTag)
	assert.Equal(t, "0xb0b::coin::FakeQuoteCoin", m.QuoteTag)
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("DEX_ADDRESS", "0xabc")
	t.Setenv("BOOK_BASE_TAG", "0x1::aptos_coin::AptosCoin")
	t.Setenv("BOOK_LEVELS", "3")
	t.Setenv("BOOK_PRICE_DECIMALS", "4")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("POLL_INTERVAL", "250ms")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, int32(4), cfg.Formatter().PriceDecimals)

	m := cfg.Market()
	assert.Equal(t, "0xabc", m.Owner)
	assert.Equal(t, "0x1::aptos_coin::AptosCoin", m.BaseTag)
	assert.Equal(t, "0xabc::coin::FakeQuoteCoin", m.QuoteTag)
}

func TestLoad_DotEnvFile(t *testing.T) {
	t.Setenv("DEX_ADDRESS", "0xd")
	// 让 godotenv 写入的变量在测试结束后被还原
	t.Setenv("NODE_URL", "")
	os.Unsetenv("NODE_URL")

	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("NODE_URL=http://node:8080\nBOOK_LEVELS=7\n"), 0o600))
	t.Setenv("BOOK_LEVELS", "")
	os.Unsetenv("BOOK_LEVELS")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://node:8080", cfg.Node.URL)
	assert.Equal(t, 7, cfg.Book.Levels)
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("DEX_ADDRESS", "0xd")
	t.Setenv("NODE_URL", "")
	os.Unsetenv("NODE_URL")

	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
}

func TestLoad_Validate(t *testing.T) {
	setRequired(t)
	t.Setenv("NODE_ID", "4096")

	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
}
