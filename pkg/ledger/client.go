// 文件: pkg/ledger/client.go
// 链节点 REST 客户端，只读账户资源
//
//	GET {base}/v1/accounts/{owner}/resource/{resource_type}
//	-> {"type": "...", "data": {...}}

package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

var (
	ErrResourceNotFound = errors.New("ledger: resource not found")
	ErrUnexpectedStatus = errors.New("ledger: unexpected status")
	ErrEmptyResource    = errors.New("ledger: resource has no data")
)

// Config 客户端配置
type Config struct {
	BaseURL    string
	Timeout    time.Duration // 单次请求超时
	MaxRetries int           // 传输错误和 5xx 的重试次数
	Backoff    time.Duration // 第 n 次重试前等待约 n*Backoff，带抖动
}

// DefaultConfig 默认配置
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:    baseURL,
		Timeout:    5 * time.Second,
		MaxRetries: 3,
		Backoff:    200 * time.Millisecond,
	}
}

// Client 节点客户端，实现 book.Fetcher
type Client struct {
	cfg    Config
	http   *retryablehttp.Client
	logger *zap.Logger
}

// NewClient 创建客户端
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("ledger")
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	rc := retryablehttp.NewClient()
	rc.HTTPClient.Timeout = cfg.Timeout
	rc.RetryMax = cfg.MaxRetries
	rc.RetryWaitMin = cfg.Backoff
	rc.RetryWaitMax = 2 * cfg.Backoff
	rc.Backoff = retryablehttp.LinearJitterBackoff
	rc.CheckRetry = retryPolicy
	// 重试用尽后把最后一次响应原样交回，由 get 映射状态码
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.Logger = leveledLogger{logger.Sugar()}

	return &Client{
		cfg:    cfg,
		http:   rc,
		logger: logger,
	}
}

// retryPolicy 只重试传输错误和 5xx，上下文结束立即停止
func retryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, nil
	}
	return resp.StatusCode >= http.StatusInternalServerError, nil
}

// leveledLogger 把 retryablehttp 的日志接到 zap
type leveledLogger struct{ s *zap.SugaredLogger }

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.s.Infow(msg, kv...) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }

type resourceEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// GetAccountResource 读取账户下某个资源的 data 字段
func (c *Client) GetAccountResource(ctx context.Context, owner, resourceType string) ([]byte, error) {
	data, err := c.get(ctx, c.resourceURL(owner, resourceType))
	if err != nil {
		if !errors.Is(err, ErrResourceNotFound) && ctx.Err() == nil {
			c.logger.Warn("resource request failed",
				zap.String("resource", resourceType),
				zap.Error(err))
		}
		return nil, fmt.Errorf("get %s: %w", resourceType, err)
	}
	return data, nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrResourceNotFound
	default:
		return nil, fmt.Errorf("%w: %s: %s", ErrUnexpectedStatus, resp.Status, snippet(body))
	}

	var env resourceEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode resource envelope: %w", err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, ErrEmptyResource
	}
	return env.Data, nil
}

func (c *Client) resourceURL(owner, resourceType string) string {
	return c.cfg.BaseURL + "/v1/accounts/" + url.PathEscape(owner) + "/resource/" + url.PathEscape(resourceType)
}

func snippet(body []byte) string {
	const limit = 256
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
