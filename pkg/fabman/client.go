// Package fabman 是会员管理 API 的轻量客户端：分页拉取、JSON 编解码、非 2xx 转换为 *APIError。
package fabman

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fabsignup/fabsignup/pkg/logger"
	"golang.org/x/time/rate"
)

// DefaultBaseURL 默认 API 根路径
const DefaultBaseURL = "https://fabman.io/api/v1"

// Config 客户端配置
type Config struct {
	BaseURL  string
	APIKey   string
	PageSize int
	// Timeout 为 0 时使用传输层默认（不设置整体超时）
	Timeout   time.Duration
	RateLimit float64
	RateBurst int
	// Transport 允许测试注入
	Transport http.RoundTripper
}

// Client 会员管理 API 客户端，所有调用只尝试一次
type Client struct {
	config      Config
	httpClient  *http.Client
	rateLimiter *rate.Limiter
}

// NewClient 创建客户端
func NewClient(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.PageSize <= 0 {
		config.PageSize = 1000
	}
	if config.RateLimit <= 0 {
		config.RateLimit = 10
	}
	if config.RateBurst <= 0 {
		config.RateBurst = 5
	}
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout:   config.Timeout,
			Transport: config.Transport,
		},
		rateLimiter: rate.NewLimiter(rate.Limit(config.RateLimit), config.RateBurst),
	}
}

// Response 原始响应
type Response struct {
	Method     string
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// IsSuccess 状态码不大于 299
func (r *Response) IsSuccess() bool {
	return r.StatusCode <= 299
}

// JSON 解析响应体
func (r *Response) JSON(target any) error {
	if err := json.Unmarshal(r.Body, target); err != nil {
		return fmt.Errorf("decode %s %s: %w", r.Method, r.URL, err)
	}
	return nil
}

// Send 发送请求并返回原始响应；非 2xx 不视为错误，由调用方决定如何处理
func (c *Client) Send(ctx context.Context, method, path string, payload any) (*Response, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	fullURL := c.config.BaseURL + path
	logger.Debug("Fabman request", "method", method, "url", fullURL)

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		logger.Debug("Fabman payload", "payload", string(data))
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, fullURL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return &Response{
		Method:     method,
		URL:        fullURL,
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       data,
	}, nil
}

// Do 发送请求，非 2xx 转为 *APIError，成功时解析到 target（可为 nil）
func (c *Client) Do(ctx context.Context, method, path string, payload, target any) error {
	resp, err := c.Send(ctx, method, path, payload)
	if err != nil {
		return err
	}
	if !resp.IsSuccess() {
		return NewAPIError(resp)
	}
	if target == nil || len(resp.Body) == 0 {
		return nil
	}
	return resp.JSON(target)
}

// FetchAll 按 limit/offset 拉取全部分页，x-total-count 响应头给出总数
func (c *Client) FetchAll(ctx context.Context, path string) ([]json.RawMessage, error) {
	separator := "?"
	if strings.Contains(path, "?") {
		separator = "&"
	}
	var results []json.RawMessage
	for {
		pageURL := fmt.Sprintf("%s%slimit=%d&offset=%d", path, separator, c.config.PageSize, len(results))
		resp, err := c.Send(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return nil, err
		}
		if !resp.IsSuccess() {
			return nil, NewAPIError(resp)
		}
		var page []json.RawMessage
		if err := resp.JSON(&page); err != nil {
			return nil, err
		}
		results = append(results, page...)

		// http.Header 已规范化键名，Get 本身大小写不敏感
		total, _ := strconv.Atoi(strings.TrimSpace(resp.Headers.Get("X-Total-Count")))
		if len(results) >= total || len(page) == 0 {
			break
		}
	}
	return results, nil
}
